package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/persist"
	"github.com/syssam/persist/entity"
)

type city struct {
	ID   int64
	Name string
}

func cityDescriptor() *entity.Descriptor[city] {
	return entity.MustNew("CITY", []*entity.Column[city]{
		entity.Field("CITY_ID", func(c *city) int64 { return c.ID }, func(c *city, v int64) { c.ID = v }).AsKey(),
		entity.Field("NAME", func(c *city) string { return c.Name }, func(c *city, v string) { c.Name = v }),
	}, entity.Cacheable())
}

const readCity = "SELECT CITY_ID, NAME FROM CITY WHERE CITY_ID = ?"

func counting[T any](calls *atomic.Int64, v *T, err error) Loader[T] {
	return func(context.Context) (*T, error) {
		calls.Add(1)
		return v, err
	}
}

func TestGetHit(t *testing.T) {
	c := New(cityDescriptor(), nil, 0, nil)
	ctx := context.Background()
	var calls atomic.Int64
	load := counting(&calls, &city{ID: 1, Name: "Rome"}, nil)

	v, err := c.Get(ctx, readCity, persist.Args(1), load)
	require.NoError(t, err)
	assert.Equal(t, "Rome", v.Name)

	v.Name = "changed"
	v2, err := c.Get(ctx, readCity, persist.Args(int64(1)), load)
	require.NoError(t, err)
	assert.Equal(t, "Rome", v2.Name, "hits return copies")
	assert.NotSame(t, v, v2)
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, Stats{Hits: 1, Misses: 1, Loads: 1}, c.Stats())

	_, err = c.Get(ctx, readCity, persist.Args(2), load)
	require.NoError(t, err)
	_, err = c.Get(ctx, "SELECT CITY_ID, NAME FROM CITY WHERE NAME = ?", persist.Args(1), load)
	require.NoError(t, err)
	assert.Equal(t, int64(3), calls.Load(), "keys differ by statement and arguments")
}

func TestGetError(t *testing.T) {
	c := New(cityDescriptor(), nil, 0, nil)
	var calls atomic.Int64
	boom := errors.New("boom")
	_, err := c.Get(context.Background(), readCity, persist.Args(1), counting[city](&calls, nil, boom))
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len())

	_, err = c.Get(context.Background(), readCity, persist.Args(1), counting[city](&calls, nil, boom))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(2), calls.Load(), "failures are not stored")
}

func TestGetOptional(t *testing.T) {
	c := New(cityDescriptor(), nil, 0, nil)
	ctx := context.Background()
	var calls atomic.Int64
	notFound := counting[city](&calls, nil, persist.NewNotFoundError("City", 9))

	v, ok, err := c.GetOptional(ctx, readCity, persist.Args(9), notFound)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
	assert.Zero(t, c.Len(), "absent values are not stored")

	_, err = c.Get(ctx, readCity, persist.Args(9), notFound)
	assert.True(t, persist.IsNotFound(err))

	v, ok, err = c.GetOptional(ctx, readCity, persist.Args(1), counting(&calls, &city{ID: 1}, nil))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), v.ID)
}

func TestGetListAndAll(t *testing.T) {
	c := New(cityDescriptor(), nil, 0, nil)
	ctx := context.Background()
	var calls atomic.Int64
	load := func(context.Context) ([]*city, error) {
		calls.Add(1)
		return []*city{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}, nil
	}

	all, err := c.GetAll(ctx, load)
	require.NoError(t, err)
	require.Len(t, all, 2)
	all[0].Name = "changed"

	all, err = c.GetAll(ctx, load)
	require.NoError(t, err)
	assert.Equal(t, "A", all[0].Name)
	assert.Equal(t, int64(1), calls.Load())

	_, err = c.GetList(ctx, "SELECT CITY_ID, NAME FROM CITY WHERE NAME LIKE ?", persist.Args("%"), load)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())

	empty, err := c.GetList(ctx, "SELECT 0", persist.EmptyArguments(), func(context.Context) ([]*city, error) { return nil, nil })
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestConcurrentMissLoadsOnce(t *testing.T) {
	c := New(cityDescriptor(), nil, 0, nil)
	var calls atomic.Int64
	release := make(chan struct{})
	load := func(context.Context) (*city, error) {
		calls.Add(1)
		<-release
		return &city{ID: 1, Name: "Rome"}, nil
	}

	const n = 16
	var (
		wg      sync.WaitGroup
		results = make([]*city, n)
		errs    = make([]error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Get(context.Background(), readCity, persist.Args(1), load)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "Rome", results[i].Name)
	}
}

func TestInvalidateDuringLoad(t *testing.T) {
	c := New(cityDescriptor(), nil, 0, nil)
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, _ = c.Get(ctx, readCity, persist.Args(1), func(context.Context) (*city, error) {
			close(started)
			<-release
			return &city{ID: 1, Name: "stale"}, nil
		})
	}()
	<-started
	c.Invalidate(ctx)
	close(release)
	<-done
	assert.Zero(t, c.Len(), "a load started before invalidation is not stored")

	v, err := c.Get(ctx, readCity, persist.Args(1), func(context.Context) (*city, error) {
		return &city{ID: 1, Name: "fresh"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", v.Name)
}

// gatedStore blocks DeletePrefix until release is closed.
type gatedStore struct {
	*MemoryStore
	deleting chan struct{}
	release  chan struct{}
}

func (s *gatedStore) DeletePrefix(ctx context.Context, prefix string) error {
	close(s.deleting)
	<-s.release
	return s.MemoryStore.DeletePrefix(ctx, prefix)
}

func TestInvalidateSecondLevelWindow(t *testing.T) {
	store := &gatedStore{MemoryStore: NewMemoryStore(), deleting: make(chan struct{}), release: make(chan struct{})}
	c := New(cityDescriptor(), store, time.Minute, nil)
	ctx := context.Background()
	var calls atomic.Int64
	_, err := c.Get(ctx, readCity, persist.Args(1), counting(&calls, &city{ID: 1, Name: "Old"}, nil))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Invalidate(ctx)
	}()
	<-store.deleting
	v, err := c.Get(ctx, readCity, persist.Args(1), counting(&calls, &city{ID: 1, Name: "Mid"}, nil))
	require.NoError(t, err)
	assert.Equal(t, "Old", v.Name, "served by the second level before it is cleared")
	close(store.release)
	<-done

	v, err = c.Get(ctx, readCity, persist.Args(1), counting(&calls, &city{ID: 1, Name: "New"}, nil))
	require.NoError(t, err)
	assert.Equal(t, "New", v.Name)
	assert.Equal(t, int64(2), calls.Load())
}

func TestInvalidate(t *testing.T) {
	c := New(cityDescriptor(), nil, 0, nil)
	ctx := context.Background()
	var calls atomic.Int64
	load := counting(&calls, &city{ID: 1}, nil)
	_, _ = c.Get(ctx, readCity, persist.Args(1), load)
	_, _ = c.GetAll(ctx, func(context.Context) ([]*city, error) { return nil, nil })
	assert.Equal(t, 2, c.Len())

	c.Invalidate(ctx)
	assert.Zero(t, c.Len())
	_, _ = c.Get(ctx, readCity, persist.Args(1), load)
	assert.Equal(t, int64(2), calls.Load())
}

func TestSecondLevel(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	first := New(cityDescriptor(), store, time.Minute, nil)
	second := New(cityDescriptor(), store, time.Minute, nil)

	var calls atomic.Int64
	_, err := first.Get(ctx, readCity, persist.Args(1), counting(&calls, &city{ID: 1, Name: "Rome"}, nil))
	require.NoError(t, err)
	_, err = first.GetAll(ctx, func(context.Context) ([]*city, error) { return []*city{}, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())

	v, err := second.Get(ctx, readCity, persist.Args(1), counting[city](&calls, nil, errors.New("not called")))
	require.NoError(t, err)
	assert.Equal(t, &city{ID: 1, Name: "Rome"}, v)
	all, err := second.GetAll(ctx, func(context.Context) ([]*city, error) { return nil, errors.New("not called") })
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, int64(1), calls.Load())

	second.Invalidate(ctx)
	assert.Zero(t, store.Len())
}

func TestManager(t *testing.T) {
	m := NewManager(WithStore(NewMemoryStore()), WithTTL(time.Minute))
	d := cityDescriptor()
	c := For(m, d)
	assert.Same(t, c, For(m, d))
	assert.True(t, m.Enabled(d.Cacheable()))
	assert.False(t, m.Enabled(false))
	assert.False(t, NewManager(Disabled()).Enabled(true))

	ctx := context.Background()
	_, _ = c.Get(ctx, readCity, persist.Args(1), func(context.Context) (*city, error) { return &city{ID: 1}, nil })
	require.Equal(t, 1, c.Len())
	Invalidate[city](ctx, m)
	assert.Zero(t, c.Len())

	_, _ = c.Get(ctx, readCity, persist.Args(1), func(context.Context) (*city, error) { return &city{ID: 1}, nil })
	m.InvalidateAll(ctx)
	assert.Zero(t, c.Len())

	var nilManager *Manager
	assert.False(t, nilManager.Enabled(true))
	nilManager.Invalidate(ctx)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "CITY:a", []byte("1"), time.Second))
	require.NoError(t, s.Set(ctx, "CITY:b", []byte("2"), 0))
	require.NoError(t, s.Set(ctx, "USER:a", []byte("3"), 0))

	b, err := s.Get(ctx, "CITY:a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), b)

	now = now.Add(time.Second)
	b, err = s.Get(ctx, "CITY:a")
	require.NoError(t, err)
	assert.Nil(t, b, "expired")

	require.NoError(t, s.DeletePrefix(ctx, "CITY:"))
	b, _ = s.Get(ctx, "CITY:b")
	assert.Nil(t, b)
	b, _ = s.Get(ctx, "USER:a")
	assert.Equal(t, []byte("3"), b)

	require.NoError(t, s.Delete(ctx, "USER:a"))
	assert.Zero(t, s.Len())
	require.NoError(t, s.Set(ctx, "x", nil, 0))
	require.NoError(t, s.Clear(ctx))
	assert.Zero(t, s.Len())
}
