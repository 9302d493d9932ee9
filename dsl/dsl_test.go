package dsl_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/persist"
	"github.com/syssam/persist/dialect"
	"github.com/syssam/persist/dialect/sql"
	"github.com/syssam/persist/dsl"
	"github.com/syssam/persist/entity"
	"github.com/syssam/persist/runner"
)

type user struct {
	ID    int
	Name  string
	Age   int
	Email *string
}

var userDesc = entity.MustNew("USERS", []*entity.Column[user]{
	entity.Field("USER_ID", func(u *user) int { return u.ID }, func(u *user, v int) { u.ID = v }).AsKey(),
	entity.Field("NAME", func(u *user) string { return u.Name }, func(u *user, v string) { u.Name = v }),
	entity.Field("AGE", func(u *user) int { return u.Age }, func(u *user, v int) { u.Age = v }),
	entity.Field("EMAIL", func(u *user) *string { return u.Email }, func(u *user, v *string) { u.Email = v }),
}, entity.Label("User"))

const base = "SELECT USERS.USER_ID, USERS.NAME, USERS.AGE, USERS.EMAIL FROM USERS"

// fakeSource records the statements of the terminal operations.
type fakeSource struct {
	vendor dialect.Vendor
	query  string
	args   persist.Arguments
}

func newSource(vendor string) *fakeSource {
	return &fakeSource{vendor: dialect.MustLookup(vendor)}
}

func (s *fakeSource) Descriptor() *entity.Descriptor[user] { return userDesc }
func (s *fakeSource) Vendor() dialect.Vendor               { return s.vendor }

func (s *fakeSource) ReadSQL(_ context.Context, query string, args persist.Arguments) (*user, error) {
	s.query, s.args = query, args
	return &user{ID: 1}, nil
}

func (s *fakeSource) ReadOptionalSQL(_ context.Context, query string, args persist.Arguments) (*user, bool, error) {
	s.query, s.args = query, args
	return nil, false, nil
}

func (s *fakeSource) ReadAllSQL(_ context.Context, query string, args persist.Arguments) ([]*user, error) {
	s.query, s.args = query, args
	return []*user{{ID: 1}, {ID: 2}}, nil
}

func (s *fakeSource) CountSQL(_ context.Context, query string, args persist.Arguments) (int64, error) {
	s.query, s.args = query, args
	return 2, nil
}

func TestBuild(t *testing.T) {
	src := newSource(dialect.SQLite)
	tests := []struct {
		name  string
		query *dsl.Query[user]
		want  string
		args  []any
	}{
		{
			name:  "all",
			query: dsl.Select[user](src),
			want:  base,
		},
		{
			name: "groups",
			query: dsl.Select[user](src).
				Where("USER_ID").Eq(1).And("NAME").Eq("a").
				OrWhere("AGE").Eq(3).
				OrderBy(dsl.Asc, "USER_ID").
				Limit(3),
			want: base + " WHERE (USERS.USER_ID = ? AND USERS.NAME = ?) OR (USERS.AGE = ?) ORDER BY USERS.USER_ID ASC LIMIT 3",
			args: []any{1, "a", 3},
		},
		{
			name:  "or within group",
			query: dsl.Select[user](src).Where("user_id").Eq(1).Or("USERS.NAME").Eq("b"),
			want:  base + " WHERE (USERS.USER_ID = ? OR USERS.NAME = ?)",
			args:  []any{1, "b"},
		},
		{
			name:  "and where",
			query: dsl.Select[user](src).Where("AGE").Gt(1).Or("AGE").Lt(0).AndWhere("NAME").Ne("x"),
			want:  base + " WHERE (USERS.AGE > ? OR USERS.AGE < ?) AND (USERS.NAME <> ?)",
			args:  []any{1, 0, "x"},
		},
		{
			name:  "second where",
			query: dsl.Select[user](src).Where("AGE").Ge(18).Where("AGE").Le(65),
			want:  base + " WHERE (USERS.AGE >= ?) AND (USERS.AGE <= ?)",
			args:  []any{18, 65},
		},
		{
			name:  "null",
			query: dsl.Select[user](src).Where("EMAIL").IsNull().Or("EMAIL").IsNotNull(),
			want:  base + " WHERE (USERS.EMAIL IS NULL OR USERS.EMAIL IS NOT NULL)",
		},
		{
			name:  "in",
			query: dsl.Select[user](src).Where("USER_ID").In(1, 2, 3).And("AGE").NotIn(4),
			want:  base + " WHERE (USERS.USER_ID IN (?, ?, ?) AND USERS.AGE NOT IN (?))",
			args:  []any{1, 2, 3, 4},
		},
		{
			name:  "empty in",
			query: dsl.Select[user](src).Where("USER_ID").In().And("AGE").NotIn(),
			want:  base + " WHERE (1 = 0 AND 1 = 1)",
		},
		{
			name:  "like",
			query: dsl.Select[user](src).Where("NAME").Like(dialect.LikeFull, "jo").And("NAME").NotLike(dialect.LikeEnd, "x"),
			want:  base + " WHERE (USERS.NAME LIKE '%' || ? || '%' AND USERS.NAME NOT LIKE '%' || ?)",
			args:  []any{"jo", "x"},
		},
		{
			name:  "order",
			query: dsl.Select[user](src).OrderBy(dsl.Desc, "AGE").OrderBy(dsl.Asc, "NAME", "USER_ID"),
			want:  base + " ORDER BY USERS.AGE DESC, USERS.NAME ASC, USERS.USER_ID ASC",
		},
		{
			name:  "offset limit",
			query: dsl.Select[user](src).Offset(2).Limit(2),
			want:  base + " LIMIT 2 OFFSET 2",
		},
		{
			name:  "offset only",
			query: dsl.Select[user](src).Offset(2),
			want:  base + " LIMIT -1 OFFSET 2",
		},
		{
			name: "join",
			query: dsl.Select[user](src).
				LeftJoin("ROLES").On("USER_ID").Eq("USER_ID").And("NAME").Eq("OWNER").
				Where("ROLES.KIND").Eq("admin"),
			want: base + " LEFT JOIN ROLES ON (USERS.USER_ID = ROLES.USER_ID AND USERS.NAME = ROLES.OWNER) WHERE (ROLES.KIND = ?)",
			args: []any{"admin"},
		},
		{
			name: "joins",
			query: dsl.Select[user](src).
				Join("A").On("USER_ID").Eq("UID").Or("AGE").Eq("AGE").
				FullJoin("B").On("USER_ID").Eq("A.UID").
				RightJoin("C").On("NAME").Eq("NAME").Query,
			want: base + " JOIN A ON (USERS.USER_ID = A.UID OR USERS.AGE = A.AGE) FULL JOIN B ON (USERS.USER_ID = A.UID) RIGHT JOIN C ON (USERS.NAME = C.NAME)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := tt.query.Build()
			require.NoError(t, err)
			assert.Equal(t, tt.want, query)
			if tt.args == nil {
				assert.Zero(t, args.Len())
			} else {
				assert.Equal(t, tt.args, args.Values())
			}
		})
	}
}

func TestBuildVendors(t *testing.T) {
	tests := []struct {
		vendor string
		want   string
	}{
		{vendor: dialect.Postgres, want: base + " WHERE (USERS.NAME LIKE ? || '%') LIMIT 2 OFFSET 1"},
		{vendor: dialect.MySQL, want: base + " WHERE (USERS.NAME LIKE CONCAT(?, '%')) LIMIT 2 OFFSET 1"},
		{vendor: dialect.SQLServer, want: base + " WHERE (USERS.NAME LIKE ? + '%') ORDER BY (SELECT NULL) OFFSET 1 ROWS FETCH NEXT 2 ROWS ONLY"},
		{vendor: dialect.Oracle, want: base + " WHERE (USERS.NAME LIKE ? || '%') OFFSET 1 ROWS FETCH NEXT 2 ROWS ONLY"},
	}
	for _, tt := range tests {
		t.Run(tt.vendor, func(t *testing.T) {
			query, args, err := dsl.Select[user](newSource(tt.vendor)).
				Where("NAME").Like(dialect.LikeStart, "jo").
				Limit(2).Offset(1).
				Build()
			require.NoError(t, err)
			assert.Equal(t, tt.want, query)
			assert.Equal(t, []any{"jo"}, args.Values())
		})
	}
}

func TestBuildOrderedPagination(t *testing.T) {
	src := newSource(dialect.SQLServer)
	query, _, err := dsl.Select[user](src).OrderBy(dsl.Desc, "NAME").Limit(5).Build()
	require.NoError(t, err)
	assert.Equal(t, base+" ORDER BY USERS.NAME DESC OFFSET 0 ROWS FETCH NEXT 5 ROWS ONLY", query)

	query, _, err = dsl.Select[user](src).Build()
	require.NoError(t, err)
	assert.Equal(t, base, query, "no ordering without a row limit")
}

func TestBuildErrors(t *testing.T) {
	src := newSource(dialect.SQLite)

	t.Run("unknown column", func(t *testing.T) {
		_, _, err := dsl.Select[user](src).Where("MISSING").Eq(1).Build()
		require.Error(t, err)
		var qe *persist.QueryError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, "User", qe.Entity)
		assert.Contains(t, err.Error(), "MISSING")
	})

	t.Run("unknown order column", func(t *testing.T) {
		_, err := dsl.Select[user](src).OrderBy(dsl.Asc, "MISSING").ReadAll(context.Background())
		assert.True(t, persist.IsQueryError(err))
		assert.Empty(t, src.query, "nothing is executed")
	})

	t.Run("unknown table", func(t *testing.T) {
		_, _, err := dsl.Select[user](src).Where("OTHER.ID").Eq(1).Build()
		assert.True(t, persist.IsQueryError(err))
	})

	t.Run("no limit support", func(t *testing.T) {
		partial := &fakeSource{vendor: dialect.Vendor{Name: "partial"}}
		_, _, err := dsl.Select[user](partial).Limit(1).Build()
		assert.True(t, persist.IsNoSupport(err))
		_, _, err = dsl.Select[user](partial).Where("NAME").Like(dialect.LikeFull, "a").Build()
		assert.True(t, persist.IsNoSupport(err))
	})

	t.Run("string", func(t *testing.T) {
		assert.Contains(t, dsl.Select[user](src).Where("MISSING").Eq(1).String(), "invalid query")
		assert.Equal(t, base+" WHERE (USERS.AGE = ?) [USERS.AGE=3]", dsl.Select[user](src).Where("AGE").Eq(3).String())
	})
}

func TestImmutable(t *testing.T) {
	src := newSource(dialect.SQLite)
	adults := dsl.Select[user](src).Where("AGE").Ge(18)
	named := adults.And("NAME").Eq("a")
	limited := adults.Limit(1)
	_ = adults.OrderBy(dsl.Asc, "NAME")
	_ = adults.LeftJoin("ROLES").On("USER_ID").Eq("USER_ID")

	query, _, err := adults.Build()
	require.NoError(t, err)
	assert.Equal(t, base+" WHERE (USERS.AGE >= ?)", query)

	query, _, err = named.Build()
	require.NoError(t, err)
	assert.Equal(t, base+" WHERE (USERS.AGE >= ? AND USERS.NAME = ?)", query)

	other := adults.And("NAME").Eq("b")
	query, args, err := other.Build()
	require.NoError(t, err)
	assert.Equal(t, base+" WHERE (USERS.AGE >= ? AND USERS.NAME = ?)", query)
	assert.Equal(t, []any{18, "b"}, args.Values())

	_, args, err = named.Build()
	require.NoError(t, err)
	assert.Equal(t, []any{18, "a"}, args.Values())

	query, _, err = limited.Build()
	require.NoError(t, err)
	assert.Equal(t, base+" WHERE (USERS.AGE >= ?) LIMIT 1", query)
}

func TestTerminals(t *testing.T) {
	ctx := context.Background()
	src := newSource(dialect.SQLite)
	q := dsl.Select[user](src).Where("AGE").Gt(10)

	u, err := q.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, u.ID)
	assert.Equal(t, base+" WHERE (USERS.AGE > ?)", src.query)

	_, ok, err := q.ReadOptional(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	us, err := q.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, us, 2)

	n, err := q.OrderBy(dsl.Asc, "NAME").Limit(5).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, "SELECT COUNT(*) FROM USERS WHERE (USERS.AGE > ?)", src.query)
	assert.Equal(t, []any{10}, src.args.Values())
}

func TestFrom(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	r := runner.ForDriver(sql.OpenDB(dialect.Postgres, db))
	src := dsl.From(r, userDesc)
	ctx := context.Background()

	mock.ExpectQuery(base+" WHERE (USERS.NAME LIKE '%' || $1 || '%') ORDER BY USERS.USER_ID ASC LIMIT 3").
		WithArgs("o").
		WillReturnRows(sqlmock.NewRows([]string{"USER_ID", "NAME", "AGE", "EMAIL"}).
			AddRow(1, "bob", 30, nil).
			AddRow(2, "tom", 40, "tom@example.com"))
	us, err := dsl.Select(src).Where("NAME").Like(dialect.LikeFull, "o").OrderBy(dsl.Asc, "USER_ID").Limit(3).ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, us, 2)
	assert.Nil(t, us[0].Email)
	require.NotNil(t, us[1].Email)
	assert.Equal(t, "tom@example.com", *us[1].Email)

	mock.ExpectQuery("SELECT COUNT(*) FROM USERS WHERE (USERS.AGE >= $1)").
		WithArgs(30).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))
	n, err := dsl.Select(src).Where("AGE").Ge(30).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	mock.ExpectQuery(base + " WHERE (USERS.USER_ID = $1)").
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"USER_ID", "NAME", "AGE", "EMAIL"}))
	_, err = dsl.Select(src).Where("USER_ID").Eq(9).Read(ctx)
	assert.True(t, persist.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
