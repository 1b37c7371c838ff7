package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bindery/internal/record"
)

func TestInsert_ThenGet(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	u := newUser("Rhea", "London", 100)
	mustInsert(t, s, u)

	got, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "User", got.Kind)
	assert.Equal(t, record.String("Rhea"), got.Field("name"))
	assert.Greater(t, got.Seq, int64(0))
}

func TestInsert_DuplicateIdentity(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	u := newUser("Rhea", "London", 100)
	mustInsert(t, s, u)

	err := s.Insert(ctx, u)
	require.Error(t, err)
	assert.True(t, IsDuplicateIdentity(err))
	assert.False(t, IsNotFound(err))
}

func TestInsert_SchemaViolations(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	badKind := record.New("Ghost", nil)
	assert.Error(t, s.Insert(ctx, badKind))

	badField := record.New("User", map[string]record.Value{"age": record.Int(1)})
	assert.Error(t, s.Insert(ctx, badField))

	badID := record.Record{ID: "not-a-uuid", Kind: "User", Fields: map[string]record.Value{}}
	assert.Error(t, s.Insert(ctx, badID))
}

func TestInsert_WithOwnerAttaches(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	u := newUser("Rhea", "London", 100)
	mustInsert(t, s, u)

	j := newJob("review", 1)
	j.OwnerID = u.ID
	mustInsert(t, s, j)

	children, err := s.Children(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, j.ID, children[0].ID)
	assert.Equal(t, u.ID, children[0].OwnerID)
}

func TestInsert_WithMissingOwner(t *testing.T) {
	s := createTestStore(t)

	j := newJob("review", 1)
	j.OwnerID = record.NewID()
	err := s.Insert(context.Background(), j)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestUpdate_PersistsField(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	u := newUser("Rhea", "London", 100)
	mustInsert(t, s, u)
	seqBefore := s.Seq()

	require.NoError(t, s.Update(ctx, u.ID, "city", record.String("Paris")))

	got, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, record.String("Paris"), got.Field("city"))
	assert.Equal(t, record.String("Rhea"), got.Field("name"), "other fields untouched")
	assert.Equal(t, seqBefore+1, got.Seq)
}

func TestUpdate_NotFound(t *testing.T) {
	s := createTestStore(t)

	err := s.Update(context.Background(), record.NewID(), "city", record.String("Paris"))
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestUpdate_RejectsBadFieldBeforeWrite(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	u := newUser("Rhea", "London", 100)
	mustInsert(t, s, u)

	assert.Error(t, s.Update(ctx, u.ID, "ghost", record.String("x")))
	assert.Error(t, s.Update(ctx, u.ID, "city", record.Int(7)))

	got, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, record.String("London"), got.Field("city"))
}

func TestDelete_RemovesRecord(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	u := newUser("Rhea", "London", 100)
	mustInsert(t, s, u)

	require.NoError(t, s.Delete(ctx, u.ID))

	_, err := s.Get(ctx, u.ID)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestDelete_NotFound(t *testing.T) {
	s := createTestStore(t)

	err := s.Delete(context.Background(), record.NewID())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestDelete_CascadesToOwnedJobs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	u := newUser("Rhea", "London", 100)
	mustInsert(t, s, u)

	j1 := newJob("review", 1)
	j1.OwnerID = u.ID
	mustInsert(t, s, j1)
	j2 := newJob("deploy", 2)
	j2.OwnerID = u.ID
	mustInsert(t, s, j2)

	require.NoError(t, s.Delete(ctx, u.ID))

	for _, id := range []string{u.ID, j1.ID, j2.ID} {
		_, err := s.Get(ctx, id)
		assert.True(t, IsNotFound(err), "record %s should be gone", id)
	}
}

func TestDelete_ChildNeverDeletesOwner(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	u := newUser("Rhea", "London", 100)
	mustInsert(t, s, u)
	j := newJob("review", 1)
	j.OwnerID = u.ID
	mustInsert(t, s, j)

	require.NoError(t, s.Delete(ctx, j.ID))

	got, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	children, err := s.Children(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestDelete_CascadeIsDeterministicChildrenFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	u := newUser("Rhea", "London", 100)
	mustInsert(t, s, u)
	j1 := newJob("first", 1)
	j1.OwnerID = u.ID
	mustInsert(t, s, j1)
	j2 := newJob("second", 2)
	j2.OwnerID = u.ID
	mustInsert(t, s, j2)

	var trace []Change
	unsub := s.Subscribe(func(c Change) { trace = append(trace, c) })
	defer unsub()

	require.NoError(t, s.Delete(ctx, u.ID))

	require.Len(t, trace, 3)
	assert.Equal(t, j1.ID, trace[0].RecordID, "children delete in position order")
	assert.Equal(t, j2.ID, trace[1].RecordID)
	assert.Equal(t, u.ID, trace[2].RecordID, "owner deletes last")
	for _, c := range trace {
		assert.Equal(t, OpDelete, c.Op)
	}
	assert.Less(t, trace[0].Seq, trace[1].Seq)
	assert.Less(t, trace[1].Seq, trace[2].Seq)
}

func TestAttachDetach_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	u := newUser("Rhea", "London", 100)
	mustInsert(t, s, u)
	j := newJob("review", 1)
	mustInsert(t, s, j)

	require.NoError(t, s.Attach(ctx, u.ID, j.ID))

	got, err := s.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.OwnerID)

	require.NoError(t, s.Detach(ctx, j.ID))

	// Detaching clears the back-reference: the edge cannot dangle.
	got, err = s.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Empty(t, got.OwnerID)

	children, err := s.Children(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestAttach_AppendsAtEndOfCollection(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	u := newUser("Rhea", "London", 100)
	mustInsert(t, s, u)

	jobs := make([]record.Record, 3)
	for i, name := range []string{"a", "b", "c"} {
		jobs[i] = newJob(name, int64(i))
		mustInsert(t, s, jobs[i])
		require.NoError(t, s.Attach(ctx, u.ID, jobs[i].ID))
	}

	children, err := s.Children(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, children, 3)
	for i := range jobs {
		assert.Equal(t, jobs[i].ID, children[i].ID)
		assert.Equal(t, int64(i), children[i].Position)
	}
}

func TestAttach_Guards(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	u1 := newUser("Rhea", "London", 100)
	u2 := newUser("Piper", "Paris", 200)
	j := newJob("review", 1)
	mustInsert(t, s, u1)
	mustInsert(t, s, u2)
	mustInsert(t, s, j)

	// Self-ownership.
	assert.Error(t, s.Attach(ctx, u1.ID, u1.ID))

	// Missing records are NOT_FOUND.
	assert.True(t, IsNotFound(s.Attach(ctx, record.NewID(), j.ID)))
	assert.True(t, IsNotFound(s.Attach(ctx, u1.ID, record.NewID())))

	// User does not own User.
	assert.Error(t, s.Attach(ctx, u1.ID, u2.ID))

	require.NoError(t, s.Attach(ctx, u1.ID, j.ID))

	// Re-attaching to the same owner is a no-op.
	assert.NoError(t, s.Attach(ctx, u1.ID, j.ID))

	// Attaching elsewhere requires an explicit detach first.
	assert.Error(t, s.Attach(ctx, u2.ID, j.ID))
}

func TestDetach_NotAttached(t *testing.T) {
	s := createTestStore(t)

	j := newJob("review", 1)
	mustInsert(t, s, j)

	assert.Error(t, s.Detach(context.Background(), j.ID))
	assert.True(t, IsNotFound(s.Detach(context.Background(), record.NewID())))
}

func TestSubscribe_NotifiesEveryMutation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	var trace []Change
	unsub := s.Subscribe(func(c Change) { trace = append(trace, c) })

	u := newUser("Rhea", "London", 100)
	mustInsert(t, s, u)
	require.NoError(t, s.Update(ctx, u.ID, "city", record.String("Paris")))
	require.NoError(t, s.Delete(ctx, u.ID))

	require.Len(t, trace, 3)
	assert.Equal(t, OpInsert, trace[0].Op)
	assert.Equal(t, OpUpdate, trace[1].Op)
	assert.Equal(t, "city", trace[1].Field)
	assert.Equal(t, OpDelete, trace[2].Op)

	// After unsubscribe, no further notifications.
	unsub()
	mustInsert(t, s, newUser("Piper", "Paris", 200))
	assert.Len(t, trace, 3)
}

func TestSubscribe_FailedMutationDoesNotNotify(t *testing.T) {
	s := createTestStore(t)

	u := newUser("Rhea", "London", 100)
	mustInsert(t, s, u)

	var trace []Change
	unsub := s.Subscribe(func(c Change) { trace = append(trace, c) })
	defer unsub()

	_ = s.Insert(context.Background(), u) // duplicate, fails
	_ = s.Update(context.Background(), record.NewID(), "city", record.String("x"))

	assert.Empty(t, trace)
}

func TestSubscribe_ObserverSeesCommittedState(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	u := newUser("Rhea", "London", 100)
	mustInsert(t, s, u)

	// The notification cycle must never expose stale reads: by the
	// time a subscriber runs, the mutation is durable.
	var observed record.Value
	unsub := s.Subscribe(func(c Change) {
		got, err := s.Get(ctx, c.RecordID)
		require.NoError(t, err)
		observed = got.Field("city")
	})
	defer unsub()

	require.NoError(t, s.Update(ctx, u.ID, "city", record.String("Paris")))
	assert.Equal(t, record.String("Paris"), observed)
}
