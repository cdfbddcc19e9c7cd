package feed

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/waveline/feedsync/internal/errors"
)

// fakeMutationAPI scripts success or failure per call.
type fakeMutationAPI struct {
	createFn func(p Params, draft Item) (Item, error)
	editFn   func(item Item) (Item, error)
	deleteFn func(id string) error
	voteFn   func(id string) (Item, error)
}

func (f *fakeMutationAPI) Create(_ context.Context, p Params, draft Item) (Item, error) {
	return f.createFn(p, draft)
}

func (f *fakeMutationAPI) Edit(_ context.Context, item Item) (Item, error) {
	return f.editFn(item)
}

func (f *fakeMutationAPI) Delete(_ context.Context, id string) error {
	return f.deleteFn(id)
}

func (f *fakeMutationAPI) Vote(_ context.Context, id string) (Item, error) {
	return f.voteFn(id)
}

func failingAPI() *fakeMutationAPI {
	boom := apierrors.Transport("request", assert.AnError)
	return &fakeMutationAPI{
		createFn: func(Params, Item) (Item, error) { return Item{}, boom },
		editFn:   func(Item) (Item, error) { return Item{}, boom },
		deleteFn: func(string) error { return boom },
		voteFn:   func(string) (Item, error) { return Item{}, boom },
	}
}

func TestVoteRollbackRestoresExactState(t *testing.T) {
	s := NewStore(NewestFirst, BySeq)
	it := seqItem("c1", 5)
	it.Votes = 5
	it.Upvoted = false
	s.Merge([]Item{it}, Append)

	m := NewMutator(s, failingAPI(), Params{ParentID: "p1"})
	mut, err := m.ToggleVote(context.Background(), "c1")

	require.Error(t, err)
	assert.Equal(t, PhaseRolledBack, mut.Phase())

	got, _ := s.Get("c1")
	assert.Equal(t, 5, got.Votes)
	assert.False(t, got.Upvoted)
}

func TestVoteAppliesExactlyPlusMinusOne(t *testing.T) {
	s := NewStore(NewestFirst, BySeq)
	it := seqItem("c1", 5)
	it.Votes = 5
	s.Merge([]Item{it}, Append)

	// Block the API long enough to observe the optimistic state? Not
	// needed: the fake can observe the store synchronously.
	var optimistic Item
	api := &fakeMutationAPI{voteFn: func(id string) (Item, error) {
		optimistic, _ = s.Get(id)
		server := seqItem("c1", 5)
		server.Votes = 6
		server.Upvoted = true
		return server, nil
	}}

	m := NewMutator(s, api, Params{})
	mut, err := m.ToggleVote(context.Background(), "c1")

	require.NoError(t, err)
	assert.Equal(t, PhaseConfirmed, mut.Phase())
	assert.Equal(t, 6, optimistic.Votes, "optimistic bump is exactly +1")
	assert.True(t, optimistic.Upvoted)

	got, _ := s.Get("c1")
	assert.Equal(t, 6, got.Votes, "server counts are authoritative")
}

func TestVoteToggleDown(t *testing.T) {
	s := NewStore(NewestFirst, BySeq)
	it := seqItem("c1", 5)
	it.Votes = 6
	it.Upvoted = true
	s.Merge([]Item{it}, Append)

	m := NewMutator(s, failingAPI(), Params{})
	_, err := m.ToggleVote(context.Background(), "c1")
	require.Error(t, err)

	got, _ := s.Get("c1")
	assert.Equal(t, 6, got.Votes)
	assert.True(t, got.Upvoted)
}

func TestDeleteParentAdjustsTotalByRepliesPlusOne(t *testing.T) {
	s := NewStore(NewestFirst, BySeq)
	parent := seqItem("c1", 2)
	parent.Replies = 3
	s.Merge([]Item{parent, seqItem("c2", 3)}, Append)

	total := 10
	api := &fakeMutationAPI{deleteFn: func(string) error { return nil }}
	m := NewMutator(s, api, Params{})
	m.OnTotalDelta = func(delta int) { total += delta }

	mut, err := m.Delete(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, PhaseConfirmed, mut.Phase())
	assert.Equal(t, 6, total, "parent with 3 replies removes 4 from the total")

	c2, _ := s.Get("c2")
	assert.Equal(t, 2, c2.Seq, "later siblings cascade down")
}

func TestDeleteRollbackRestoresListAndTotal(t *testing.T) {
	s := NewStore(NewestFirst, BySeq)
	parent := seqItem("c1", 2)
	parent.Replies = 3
	s.Merge([]Item{parent, seqItem("c2", 3)}, Append)

	total := 10
	m := NewMutator(s, failingAPI(), Params{})
	m.OnTotalDelta = func(delta int) { total += delta }

	mut, err := m.Delete(context.Background(), "c1")
	require.Error(t, err)
	assert.Equal(t, PhaseRolledBack, mut.Phase())
	assert.Equal(t, 10, total, "rollback reverts the total adjustment")

	c1, ok := s.Get("c1")
	require.True(t, ok)
	assert.Equal(t, 2, c1.Seq)
	c2, _ := s.Get("c2")
	assert.Equal(t, 3, c2.Seq, "cascaded indices are restored verbatim")
}

func TestCreateReconcilesServerID(t *testing.T) {
	s := NewStore(NewestFirst, ByCreatedAt)

	total := 0
	api := &fakeMutationAPI{createFn: func(_ Params, draft Item) (Item, error) {
		require.True(t, strings.HasPrefix(draft.ID, "local-"))
		server := draft
		server.ID = "srv-1"
		server.Seq = 7
		return server, nil
	}}
	m := NewMutator(s, api, Params{ParentID: "p1"})
	m.OnTotalDelta = func(delta int) { total += delta }

	mut, err := m.Create(context.Background(), Item{Payload: []byte(`{"body":"hi"}`)})
	require.NoError(t, err)
	assert.Equal(t, PhaseConfirmed, mut.Phase())
	assert.Equal(t, 1, total)

	require.Equal(t, 1, s.Len())
	got, ok := s.Get("srv-1")
	require.True(t, ok, "optimistic item is replaced by server truth")
	assert.Equal(t, 7, got.Seq)
}

func TestCreateRollbackRemovesDraft(t *testing.T) {
	s := NewStore(NewestFirst, ByCreatedAt)

	total := 0
	m := NewMutator(s, failingAPI(), Params{})
	m.OnTotalDelta = func(delta int) { total += delta }

	mut, err := m.Create(context.Background(), Item{})
	require.Error(t, err)
	assert.Equal(t, PhaseRolledBack, mut.Phase())
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, total)
}

func TestMutateMissingItem(t *testing.T) {
	s := NewStore(NewestFirst, BySeq)
	m := NewMutator(s, failingAPI(), Params{})

	_, err := m.ToggleVote(context.Background(), "missing")
	assert.True(t, apierrors.IsNotFound(err))
	_, err = m.Delete(context.Background(), "missing")
	assert.True(t, apierrors.IsNotFound(err))
	_, err = m.Edit(context.Background(), "missing", func(it Item) Item { return it })
	assert.True(t, apierrors.IsNotFound(err))
}

func TestSupersededRollbackIsSkipped(t *testing.T) {
	s := NewStore(NewestFirst, BySeq)
	it := seqItem("c1", 1)
	it.Votes = 5
	s.Merge([]Item{it}, Append)

	m := NewMutator(s, nil, Params{})

	// First mutation applies, then a second one captures the already
	// optimistic state before the first resolves.
	tagA := m.push("c1", it)
	s.Replace("c1", func(x Item) Item { x.Votes = 6; return x })

	afterA, _ := s.Get("c1")
	m.push("c1", afterA)
	s.Replace("c1", func(x Item) Item { x.Replies = 9; return x })

	// Rolling back A now would resurrect pre-B state out of order; the
	// engine must drop A's snapshot instead.
	m.rollback("c1", tagA)

	got, _ := s.Get("c1")
	assert.Equal(t, 6, got.Votes, "superseded snapshot is never re-applied")
}

func TestMutationPhaseReducer(t *testing.T) {
	tests := []struct {
		from MutationPhase
		ev   mutationEvent
		want MutationPhase
	}{
		{PhaseIdle, evApply, PhaseApplied},
		{PhaseIdle, evConfirm, PhaseIdle},
		{PhaseApplied, evConfirm, PhaseConfirmed},
		{PhaseApplied, evFail, PhaseRolledBack},
		{PhaseConfirmed, evFail, PhaseConfirmed},
		{PhaseRolledBack, evConfirm, PhaseRolledBack},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, nextPhase(tc.from, tc.ev),
			"%s + %d", tc.from, tc.ev)
	}
}
