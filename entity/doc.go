// Package entity describes how Go types map to relational rows.
//
// A Descriptor lists the columns of an entity type, each with a getter and
// a setter, and carries the fixed statements used to read and write it:
//
//	type City struct {
//	    ID   int64
//	    Name string
//	}
//
//	func init() {
//	    entity.Register(func() *entity.Descriptor[City] {
//	        return entity.MustNew("CITY", []*entity.Column[City]{
//	            entity.Field("CITY_ID", func(c *City) int64 { return c.ID }, func(c *City, v int64) { c.ID = v }).AsKey(),
//	            entity.Field("NAME", func(c *City) string { return c.Name }, func(c *City, v string) { c.Name = v }),
//	        }, entity.Cacheable())
//	    })
//	}
//
// Statements not supplied through options are derived from the table and
// the columns. A Delegate tracks whether an entity was loaded or modified.
package entity
