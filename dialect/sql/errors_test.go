package sql

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sqlStateErr string

func (e sqlStateErr) Error() string    { return "sqlstate " + string(e) }
func (e sqlStateErr) SQLState() string { return string(e) }

type numberErr uint16

func (e numberErr) Error() string  { return "mysql error" }
func (e numberErr) Number() uint16 { return uint16(e) }

type vendorErr struct{ code int }

func (e *vendorErr) Error() string { return fmt.Sprintf("vendor error %d", e.code) }

func TestConstraintKind(t *testing.T) {
	RegisterClassifier(func(err error) string {
		var e *vendorErr
		if errors.As(err, &e) {
			return SQLiteKind(e.code)
		}
		return ""
	})
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", errors.New("connection refused"), ""},
		{"pg_unique", sqlStateErr("23505"), ConstraintUnique},
		{"pg_fk", fmt.Errorf("wrap: %w", sqlStateErr("23503")), ConstraintForeignKey},
		{"pg_check", sqlStateErr("23514"), ConstraintCheck},
		{"pg_not_null", sqlStateErr("23502"), ConstraintNotNull},
		{"pg_other", sqlStateErr("40001"), ""},
		{"mysql_duplicate", numberErr(1062), ConstraintUnique},
		{"mysql_fk", numberErr(1452), ConstraintForeignKey},
		{"mysql_null", numberErr(1048), ConstraintNotNull},
		{"mysql_deadlock", numberErr(1213), ""},
		{"classifier", fmt.Errorf("insert: %w", &vendorErr{sqliteForeignKey}), ConstraintForeignKey},
		{"classifier_miss", &vendorErr{5}, ""},
		{"sqlite_unique", errors.New("constraint failed: UNIQUE constraint failed: CITY.NAME (2067)"), ConstraintUnique},
		{"sqlite_fk", errors.New("FOREIGN KEY constraint failed"), ConstraintForeignKey},
		{"sqlite_check", errors.New("CHECK constraint failed: POP > 0"), ConstraintCheck},
		{"sqlite_not_null", errors.New("NOT NULL constraint failed: CITY.NAME"), ConstraintNotNull},
		{"pg_message", errors.New(`duplicate key value violates unique constraint "city_name_key"`), ConstraintUnique},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConstraintKind(tt.err))
			assert.Equal(t, tt.want != "", IsConstraintError(tt.err))
		})
	}
}

func TestConstraintPredicates(t *testing.T) {
	assert.True(t, IsUniqueConstraintError(sqlStateErr("23505")))
	assert.False(t, IsUniqueConstraintError(sqlStateErr("23503")))
	assert.True(t, IsForeignKeyConstraintError(numberErr(1451)))
	assert.True(t, IsCheckConstraintError(numberErr(3819)))
	assert.True(t, IsNotNullConstraintError(sqlStateErr("23502")))
	assert.False(t, IsNotNullConstraintError(nil))

	assert.Equal(t, ConstraintUnique, SQLiteKind(1555), "primary key")
	assert.Equal(t, "", SQLiteKind(19))
	assert.Equal(t, ConstraintUnique, MySQLKind(1586))
	assert.Equal(t, "", SQLStateKind(""))
}
