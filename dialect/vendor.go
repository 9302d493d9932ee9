package dialect

import (
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/syssam/persist"
)

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (MySQL, SQLite, DuckDB).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. for parameters (PostgreSQL).
	PlaceholderDollar
)

// Vendor describes the SQL fragment rendering of a backend. A nil strategy
// means the backend has no implementation for that capability.
type Vendor struct {
	Name        string
	Like        LikeSpecific
	LimitOffset LimitOffsetSpecific
	Placeholder PlaceholderStyle
	// Returning reports whether INSERT ... RETURNING is available.
	Returning bool
}

// FormatPlaceholder returns a placeholder for the given parameter index (1-based).
func (v Vendor) FormatPlaceholder(index int) string {
	if v.Placeholder == PlaceholderDollar {
		return "$" + strconv.Itoa(index)
	}
	return "?"
}

// Rebind rewrites the '?' placeholders of query to the vendor style.
func (v Vendor) Rebind(query string) string {
	if v.Placeholder == PlaceholderQuestion || !strings.Contains(query, "?") {
		return query
	}
	var (
		b     strings.Builder
		n     int
		quote byte
	)
	b.Grow(len(query) + 8)
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '?':
			n++
			b.WriteString(v.FormatPlaceholder(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

var (
	vendorsMu sync.RWMutex
	vendors   = map[string]Vendor{}
	aliases   = map[string]string{
		"pgx":     Postgres,
		"pq":      Postgres,
		"sqlite3": SQLite,
		"mssql":   SQLServer,
		"mariadb": MySQL,
	}
)

func init() {
	for _, v := range []Vendor{
		{Name: Postgres, Like: PipeLike, LimitOffset: LimitThenOffset(""), Placeholder: PlaceholderDollar, Returning: true},
		{Name: SQLite, Like: PipeLike, LimitOffset: LimitThenOffset("-1"), Returning: true},
		{Name: MySQL, Like: ConcatLike, LimitOffset: LimitThenOffset("18446744073709551615")},
		{Name: DuckDB, Like: PipeLike, LimitOffset: LimitThenOffset(""), Returning: true},
		{Name: SQLServer, Like: PlusLike, LimitOffset: OrderedOffsetFetch},
		{Name: Oracle, Like: PipeLike, LimitOffset: OffsetFetch},
		{Name: HSQLDB, Like: PipeLike, LimitOffset: OffsetFetch},
		{Name: Standard, Like: PipeLike, LimitOffset: OffsetFetch},
	} {
		Register(v)
	}
}

// Register adds or replaces a vendor. It is meant to be called from init.
func Register(v Vendor) {
	vendorsMu.Lock()
	defer vendorsMu.Unlock()
	vendors[v.Name] = v
}

// Lookup returns the vendor registered under name. Driver names such as
// "pgx" or "sqlite3" resolve to their dialect.
func Lookup(name string) (Vendor, bool) {
	name = normalize(name)
	vendorsMu.RLock()
	defer vendorsMu.RUnlock()
	v, ok := vendors[name]
	return v, ok
}

// MustLookup is like Lookup but panics if the vendor is unknown.
func MustLookup(name string) Vendor {
	v, ok := Lookup(name)
	if !ok {
		panic("dialect: unknown vendor " + strconv.Quote(name))
	}
	return v
}

// Vendors returns all registered vendors sorted by name.
func Vendors() []Vendor {
	vendorsMu.RLock()
	defer vendorsMu.RUnlock()
	vs := make([]Vendor, 0, len(vendors))
	for _, v := range vendors {
		vs = append(vs, v)
	}
	slices.SortFunc(vs, func(a, b Vendor) int { return strings.Compare(a.Name, b.Name) })
	return vs
}

// Like returns the LIKE strategy of the named backend.
func Like(name string) (LikeSpecific, error) {
	v, ok := Lookup(name)
	if !ok || v.Like == nil {
		return nil, persist.NewNoSupportError(name, "LIKE")
	}
	return v.Like, nil
}

// LimitOffset returns the LIMIT/OFFSET strategy of the named backend.
func LimitOffset(name string) (LimitOffsetSpecific, error) {
	v, ok := Lookup(name)
	if !ok || v.LimitOffset == nil {
		return nil, persist.NewNoSupportError(name, "LIMIT/OFFSET")
	}
	return v.LimitOffset, nil
}

func normalize(name string) string {
	name = strings.ToLower(name)
	if a, ok := aliases[name]; ok {
		return a
	}
	return name
}
