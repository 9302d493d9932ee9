package sql

import (
	"errors"
	"strings"
	"sync"
)

// Constraint kinds reported by ConstraintKind.
const (
	ConstraintUnique     = "unique"
	ConstraintForeignKey = "foreign key"
	ConstraintCheck      = "check"
	ConstraintNotNull    = "not null"
)

// Classifier returns the constraint kind of a driver error, or "" when it
// does not recognize the error. Driver packages register one for their own
// error types.
type Classifier func(error) string

var classifiers struct {
	sync.RWMutex
	fns []Classifier
}

// RegisterClassifier adds c to the classifiers consulted by ConstraintKind
// before its generic rules.
func RegisterClassifier(c Classifier) {
	classifiers.Lock()
	defer classifiers.Unlock()
	classifiers.fns = append(classifiers.fns, c)
}

// SQLStateKind maps a class 23 SQLSTATE code to a constraint kind.
func SQLStateKind(code string) string {
	switch code {
	case "23505":
		return ConstraintUnique
	case "23503":
		return ConstraintForeignKey
	case "23514":
		return ConstraintCheck
	case "23502":
		return ConstraintNotNull
	default:
		return ""
	}
}

// MySQLKind maps a MySQL server error number to a constraint kind.
func MySQLKind(n uint16) string {
	switch n {
	case 1062, 1586:
		return ConstraintUnique
	case 1216, 1217, 1451, 1452:
		return ConstraintForeignKey
	case 3819:
		return ConstraintCheck
	case 1048:
		return ConstraintNotNull
	default:
		return ""
	}
}

// SQLite extended result codes of SQLITE_CONSTRAINT.
const (
	sqliteCheck      = 275
	sqliteForeignKey = 787
	sqliteNotNull    = 1299
	sqlitePrimaryKey = 1555
	sqliteUnique     = 2067
)

// SQLiteKind maps a SQLite extended result code to a constraint kind.
func SQLiteKind(code int) string {
	switch code {
	case sqliteUnique, sqlitePrimaryKey:
		return ConstraintUnique
	case sqliteForeignKey:
		return ConstraintForeignKey
	case sqliteCheck:
		return ConstraintCheck
	case sqliteNotNull:
		return ConstraintNotNull
	default:
		return ""
	}
}

// Message fragments for drivers whose errors carry no code, checked in order.
var messages = []struct {
	kind      string
	fragments []string
}{
	{ConstraintUnique, []string{"Error 1062", "violates unique constraint", "UNIQUE constraint failed", "violates primary key constraint"}},
	{ConstraintForeignKey, []string{"Error 1451", "Error 1452", "violates foreign key constraint", "FOREIGN KEY constraint failed"}},
	{ConstraintCheck, []string{"Error 3819", "violates check constraint", "CHECK constraint failed"}},
	{ConstraintNotNull, []string{"Error 1048", "violates not-null constraint", "NOT NULL constraint failed"}},
}

// ConstraintKind returns the kind of constraint violated by err, or "" if
// err is not a constraint violation. Registered classifiers are asked
// first, then errors exposing SQLState() or Number() anywhere in the chain,
// then the error message.
func ConstraintKind(err error) string {
	if err == nil {
		return ""
	}
	classifiers.RLock()
	fns := classifiers.fns
	classifiers.RUnlock()
	for _, c := range fns {
		if k := c(err); k != "" {
			return k
		}
	}
	var state interface{ SQLState() string }
	if errors.As(err, &state) {
		if k := SQLStateKind(state.SQLState()); k != "" {
			return k
		}
	}
	var num interface{ Number() uint16 }
	if errors.As(err, &num) {
		if k := MySQLKind(num.Number()); k != "" {
			return k
		}
	}
	msg := err.Error()
	for _, m := range messages {
		for _, f := range m.fragments {
			if strings.Contains(msg, f) {
				return m.kind
			}
		}
	}
	return ""
}

// IsConstraintError reports whether err is a constraint violation.
func IsConstraintError(err error) bool { return ConstraintKind(err) != "" }

// IsUniqueConstraintError reports whether err violates a unique index or
// primary key.
func IsUniqueConstraintError(err error) bool { return ConstraintKind(err) == ConstraintUnique }

// IsForeignKeyConstraintError reports whether err violates a foreign key.
func IsForeignKeyConstraintError(err error) bool {
	return ConstraintKind(err) == ConstraintForeignKey
}

// IsCheckConstraintError reports whether err violates a check constraint.
func IsCheckConstraintError(err error) bool { return ConstraintKind(err) == ConstraintCheck }

// IsNotNullConstraintError reports whether err wrote NULL into a NOT NULL
// column.
func IsNotNullConstraintError(err error) bool { return ConstraintKind(err) == ConstraintNotNull }
