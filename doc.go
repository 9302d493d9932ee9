// Package persist holds the types shared by every layer of the persistence
// runtime: bound arguments, the second-level cache contract, entity
// lifecycle hooks and the error values returned to callers.
//
// Most programs start from the client package:
//
//	c, err := client.Open("sqlite", "file:app.db")
//	if err != nil {
//		return err
//	}
//	defer c.Close()
package persist
