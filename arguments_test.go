package persist_test

import (
	"database/sql/driver"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/persist"
)

type cents struct{ amount int64 }

func (c cents) Value() (driver.Value, error) { return c.amount, nil }

type point struct{ x, y int }

func TestArgumentsEquality(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		a, b  persist.Arguments
		equal bool
	}{
		{"empty", persist.EmptyArguments(), persist.Args(), true},
		{"zero value", persist.Arguments{}, persist.EmptyArguments(), true},
		{"same values", persist.Args(1, "a", now), persist.Args(1, "a", now), true},
		{"integer widths", persist.Args(int(7)), persist.Args(int64(7)), true},
		{"columns ignored", persist.NewArguments(persist.Argument{Value: 1, Column: "A"}), persist.Args(1), true},
		{"order matters", persist.Args(1, 2), persist.Args(2, 1), false},
		{"length matters", persist.Args(1), persist.Args(1, nil), false},
		{"types matter", persist.Args("1"), persist.Args(1), false},
		{"nil vs empty", persist.Args(nil), persist.EmptyArguments(), false},
		{"valuer values", persist.Args(cents{100}), persist.Args(cents{999}), false},
		{"valuer same value", persist.Args(cents{100}), persist.Args(cents{100}), true},
		{"valuer bound value", persist.Args(cents{100}), persist.Args(int64(100)), true},
		{"unexported fields", persist.Args(point{1, 2}), persist.Args(point{3, 4}), false},
		{"unexported fields equal", persist.Args(&point{1, 2}), persist.Args(&point{1, 2}), true},
		{"nested structs", persist.Args([]point{{1, 2}}), persist.Args([]point{{1, 3}}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, tt.a.Equal(tt.b))
			assert.Equal(t, tt.equal, tt.b.Equal(tt.a))
			if tt.equal {
				assert.Equal(t, tt.a.Hash(), tt.b.Hash())
			}
		})
	}
}

func TestArgumentsStableKey(t *testing.T) {
	t.Parallel()

	a := persist.Args(42, "NAME", []byte{1, 2}, map[string]any{"b": 2, "a": 1})
	require.True(t, a.Equal(a))
	key, hash := a.Key(), a.Hash()
	for range 10 {
		assert.Equal(t, key, a.Key())
		assert.Equal(t, hash, a.Hash())
	}
	assert.Equal(t, key, persist.Args(42, "NAME", []byte{1, 2}, map[string]any{"a": 1, "b": 2}).Key())

	seen := map[string]bool{a.Key(): true}
	assert.True(t, seen[persist.Args(42, "NAME", []byte{1, 2}, map[string]any{"a": 1, "b": 2}).Key()])
}

func TestArgumentsImmutable(t *testing.T) {
	t.Parallel()

	base := persist.Args(1)
	extended := base.Append(persist.Argument{Value: 2, Column: "B"})
	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, extended.Len())
	assert.Equal(t, []any{1, 2}, extended.Values())
	assert.Equal(t, "B", extended.At(1).Column)

	values := base.Values()
	values[0] = 99
	assert.Equal(t, []any{1}, base.Values())

	joined := base.Concat(persist.Args("x"))
	assert.True(t, joined.Equal(persist.Args(1, "x")))
	assert.Equal(t, "[1, B=2]", extended.String())
}
