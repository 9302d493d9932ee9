package dialect

import (
	"strconv"
	"strings"
)

// LikeType is the match kind of a LIKE predicate.
type LikeType int

// Match kinds.
const (
	// LikeFull matches the value anywhere (%v%).
	LikeFull LikeType = iota
	// LikeStart matches values starting with v (v%).
	LikeStart
	// LikeEnd matches values ending with v (%v).
	LikeEnd
)

// String returns the match kind name.
func (t LikeType) String() string {
	switch t {
	case LikeFull:
		return "FULL"
	case LikeStart:
		return "START"
	case LikeEnd:
		return "END"
	default:
		return "LikeType(" + strconv.Itoa(int(t)) + ")"
	}
}

// Pattern returns v with the wildcards of the match kind applied.
// It is the value a LIKE rendered for t is equivalent to.
func (t LikeType) Pattern(v string) string {
	switch t {
	case LikeStart:
		return v + "%"
	case LikeEnd:
		return "%" + v
	default:
		return "%" + v + "%"
	}
}

// LikeSpecific renders the right-hand operand of a LIKE predicate. The
// returned fragment holds exactly one '?' placeholder bound to the raw value.
type LikeSpecific interface {
	Like(LikeType) string
}

// LimitOffsetSpecific renders the row limiting clause. A negative limit
// means no limit and a non-positive offset means no offset. The returned
// clause is empty when neither is set.
type LimitOffsetSpecific interface {
	LimitOffset(limit, offset int) string
}

// OrderedLimitOffset is implemented by row limiting strategies whose clause
// is only valid after an ORDER BY. DefaultOrder returns the ordering written
// for queries that declare none.
type OrderedLimitOffset interface {
	LimitOffsetSpecific
	DefaultOrder() string
}

// LikeFunc adapts a function to LikeSpecific.
type LikeFunc func(LikeType) string

// Like implements LikeSpecific.
func (f LikeFunc) Like(t LikeType) string { return f(t) }

// LimitOffsetFunc adapts a function to LimitOffsetSpecific.
type LimitOffsetFunc func(limit, offset int) string

// LimitOffset implements LimitOffsetSpecific.
func (f LimitOffsetFunc) LimitOffset(limit, offset int) string { return f(limit, offset) }

// PipeLike concatenates wildcards with the || operator.
var PipeLike LikeSpecific = LikeFunc(func(t LikeType) string {
	switch t {
	case LikeStart:
		return "? || '%'"
	case LikeEnd:
		return "'%' || ?"
	default:
		return "'%' || ? || '%'"
	}
})

// ConcatLike concatenates wildcards with the CONCAT function.
var ConcatLike LikeSpecific = LikeFunc(func(t LikeType) string {
	switch t {
	case LikeStart:
		return "CONCAT(?, '%')"
	case LikeEnd:
		return "CONCAT('%', ?)"
	default:
		return "CONCAT('%', ?, '%')"
	}
})

// PlusLike concatenates wildcards with the + operator.
var PlusLike LikeSpecific = LikeFunc(func(t LikeType) string {
	switch t {
	case LikeStart:
		return "? + '%'"
	case LikeEnd:
		return "'%' + ?"
	default:
		return "'%' + ? + '%'"
	}
})

// LimitThenOffset renders "LIMIT n OFFSET m". unbounded is the limit
// written when only an offset is requested, or empty if the backend
// accepts a bare OFFSET clause.
func LimitThenOffset(unbounded string) LimitOffsetSpecific {
	return LimitOffsetFunc(func(limit, offset int) string {
		var b strings.Builder
		switch {
		case limit >= 0:
			b.WriteString("LIMIT ")
			b.WriteString(strconv.Itoa(limit))
		case offset > 0 && unbounded != "":
			b.WriteString("LIMIT ")
			b.WriteString(unbounded)
		}
		if offset > 0 {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString("OFFSET ")
			b.WriteString(strconv.Itoa(offset))
		}
		return b.String()
	})
}

// OffsetFetch renders the standard "OFFSET m ROWS FETCH NEXT n ROWS ONLY".
var OffsetFetch LimitOffsetSpecific = LimitOffsetFunc(func(limit, offset int) string {
	switch {
	case limit < 0 && offset <= 0:
		return ""
	case limit < 0:
		return "OFFSET " + strconv.Itoa(offset) + " ROWS"
	default:
		return "OFFSET " + strconv.Itoa(max(offset, 0)) + " ROWS FETCH NEXT " + strconv.Itoa(limit) + " ROWS ONLY"
	}
})

// OrderedOffsetFetch is OffsetFetch for backends rejecting it without an
// ORDER BY, such as SQL Server. Unordered queries get ORDER BY (SELECT NULL).
var OrderedOffsetFetch OrderedLimitOffset = orderedOffsetFetch{}

type orderedOffsetFetch struct{}

func (orderedOffsetFetch) LimitOffset(limit, offset int) string {
	return OffsetFetch.LimitOffset(limit, offset)
}

func (orderedOffsetFetch) DefaultOrder() string { return "(SELECT NULL)" }
