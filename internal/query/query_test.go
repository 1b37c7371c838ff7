package query

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bindery/internal/predicate"
	"github.com/roach88/bindery/internal/record"
	"github.com/roach88/bindery/internal/schema"
	"github.com/roach88/bindery/internal/store"
)

func createTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path, schema.MustDefault())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newUser(name, city string, joinDate int64) record.Record {
	return record.New("User", map[string]record.Value{
		"name":      record.String(name),
		"city":      record.String(city),
		"join_date": record.Time(joinDate),
	})
}

func names(results []record.Record) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = string(r.Field("name").(record.String))
	}
	return out
}

func londonR() predicate.Predicate {
	return &predicate.And{Predicates: []predicate.Predicate{
		&predicate.Equal{Field: "city", Value: record.String("London")},
		&predicate.Contains{Field: "name", Substr: "R"},
	}}
}

func byName() predicate.SortOrder {
	return predicate.SortOrder{{Field: "name", Direction: predicate.Asc}}
}

func TestNew_InitialEvaluation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rhea := newUser("Rhea", "London", 200)
	require.NoError(t, s.Insert(ctx, newUser("Piper", "London", 100)))
	require.NoError(t, s.Insert(ctx, rhea))
	require.NoError(t, s.Insert(ctx, newUser("Rhea", "Paris", 300)))

	q, err := New(ctx, s, "User", londonR(), byName())
	require.NoError(t, err)
	defer q.Close()

	got := q.Results()
	require.Len(t, got, 1)
	assert.Equal(t, rhea.ID, got[0].ID)
}

func TestNew_RejectsInvalidPredicate(t *testing.T) {
	s := createTestStore(t)

	_, err := New(context.Background(), s, "User",
		&predicate.Contains{Field: "join_date", Substr: "20"}, nil)
	require.Error(t, err)
	assert.True(t, predicate.IsInvalid(err))
}

func TestNew_RejectsUnknownKind(t *testing.T) {
	s := createTestStore(t)

	_, err := New(context.Background(), s, "Ghost", nil, nil)
	require.Error(t, err)
}

func TestLive_TracksInsertUpdateDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	q, err := New(ctx, s, "User", londonR(), byName())
	require.NoError(t, err)
	defer q.Close()
	assert.Empty(t, q.Results())

	rhea := newUser("Rhea", "London", 200)
	require.NoError(t, s.Insert(ctx, rhea))
	assert.Equal(t, []string{"Rhea"}, names(q.Results()))

	// Moving Rhea out of London drops her from the view.
	require.NoError(t, s.Update(ctx, rhea.ID, "city", record.String("Paris")))
	assert.Empty(t, q.Results())

	require.NoError(t, s.Update(ctx, rhea.ID, "city", record.String("London")))
	assert.Equal(t, []string{"Rhea"}, names(q.Results()))

	require.NoError(t, s.Delete(ctx, rhea.ID))
	assert.Empty(t, q.Results())
}

func TestLive_ResultsConsistentDuringNotification(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	q, err := New(ctx, s, "User", nil, byName())
	require.NoError(t, err)
	defer q.Close()

	var seen [][]string
	unobserve := q.Observe(func(results []record.Record) {
		seen = append(seen, names(results))
	})
	defer unobserve()

	require.NoError(t, s.Insert(ctx, newUser("Zoe", "London", 100)))
	require.NoError(t, s.Insert(ctx, newUser("Ada", "London", 200)))

	// Each completed mutation delivered a sequence already reflecting
	// the store's new state.
	require.Len(t, seen, 2)
	assert.Equal(t, []string{"Zoe"}, seen[0])
	assert.Equal(t, []string{"Ada", "Zoe"}, seen[1])
}

func TestSetSort_ReordersWithoutChangingMembership(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, newUser("Zoe", "London", 100)))
	require.NoError(t, s.Insert(ctx, newUser("Ada", "London", 300)))
	require.NoError(t, s.Insert(ctx, newUser("Mia", "London", 200)))

	q, err := New(ctx, s, "User", nil, byName())
	require.NoError(t, err)
	defer q.Close()
	assert.Equal(t, []string{"Ada", "Mia", "Zoe"}, names(q.Results()))

	require.NoError(t, q.SetSort(ctx, predicate.SortOrder{
		{Field: "join_date", Direction: predicate.Asc},
	}))
	got := names(q.Results())
	assert.Equal(t, []string{"Zoe", "Mia", "Ada"}, got)
	assert.ElementsMatch(t, []string{"Ada", "Mia", "Zoe"}, got)
}

func TestSetPredicate_ReevaluatesImmediately(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, newUser("Rhea", "London", 200)))
	require.NoError(t, s.Insert(ctx, newUser("Mia", "Paris", 100)))

	q, err := New(ctx, s, "User", londonR(), byName())
	require.NoError(t, err)
	defer q.Close()
	assert.Equal(t, []string{"Rhea"}, names(q.Results()))

	require.NoError(t, q.SetPredicate(ctx,
		&predicate.Equal{Field: "city", Value: record.String("Paris")}))
	assert.Equal(t, []string{"Mia"}, names(q.Results()))
}

func TestSetPredicate_InvalidKeepsConfiguration(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, newUser("Rhea", "London", 200)))

	q, err := New(ctx, s, "User", londonR(), byName())
	require.NoError(t, err)
	defer q.Close()

	err = q.SetPredicate(ctx, &predicate.Equal{Field: "ghost", Value: record.String("x")})
	require.Error(t, err)
	assert.True(t, predicate.IsInvalid(err))
	assert.Equal(t, []string{"Rhea"}, names(q.Results()))
}

func TestObserve_UnregisterStopsDelivery(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	q, err := New(ctx, s, "User", nil, nil)
	require.NoError(t, err)
	defer q.Close()

	var calls int
	unobserve := q.Observe(func([]record.Record) { calls++ })

	require.NoError(t, s.Insert(ctx, newUser("Ada", "London", 100)))
	assert.Equal(t, 1, calls)

	unobserve()
	require.NoError(t, s.Insert(ctx, newUser("Zoe", "London", 200)))
	assert.Equal(t, 1, calls)
}

func TestClose_StopsTracking(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, newUser("Ada", "London", 100)))

	q, err := New(ctx, s, "User", nil, byName())
	require.NoError(t, err)
	require.Len(t, q.Results(), 1)

	q.Close()
	require.NoError(t, s.Insert(ctx, newUser("Zoe", "London", 200)))
	assert.Equal(t, []string{"Ada"}, names(q.Results()))
}

func TestNewFromDefinition(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rhea := newUser("Rhea", "London", 200)
	require.NoError(t, s.Insert(ctx, rhea))
	require.NoError(t, s.Insert(ctx, newUser("Mia", "Paris", 100)))

	def, err := predicate.Parse(schema.MustDefault(), []byte(`
kind: User
where:
  and:
    - eq: {field: city, value: London}
    - contains: {field: name, value: R}
sort:
  - {field: name, dir: asc}
`))
	require.NoError(t, err)

	q, err := NewFromDefinition(ctx, s, def)
	require.NoError(t, err)
	defer q.Close()

	got := q.Results()
	require.Len(t, got, 1)
	assert.Equal(t, rhea.ID, got[0].ID)
}
