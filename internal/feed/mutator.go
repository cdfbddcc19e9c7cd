package feed

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apierrors "github.com/waveline/feedsync/internal/errors"
	"github.com/waveline/feedsync/internal/logger"
)

// MutationAPI is the remote side of optimistic mutations. The api package
// adapts its typed endpoints to this interface per list surface. Items
// returned on success are authoritative and overwrite the optimistic copy.
type MutationAPI interface {
	Create(ctx context.Context, p Params, draft Item) (Item, error)
	Edit(ctx context.Context, item Item) (Item, error)
	Delete(ctx context.Context, id string) error
	Vote(ctx context.Context, id string) (Item, error)
}

// Mutator applies create/edit/delete/vote actions to a store immediately,
// fires the remote call, and reconciles or rolls back when it resolves.
//
// Snapshots compose as a per-item LIFO stack: a second mutation issued while
// the first is in flight captures the current (already optimistic) state. A
// rollback restores its own snapshot only while it is the newest pending
// mutation for that item; a snapshot that has been superseded is discarded
// rather than re-applied out of order.
type Mutator struct {
	store  *Store
	api    MutationAPI
	params Params

	// OnTotalDelta adjusts an external running total (the post's comment
	// counter shown outside the list). Deleting a parent with N loaded
	// replies reports a delta of -(N+1).
	OnTotalDelta func(delta int)

	mu      sync.Mutex
	nextTag uint64
	stacks  map[string][]pendingSnapshot
}

type pendingSnapshot struct {
	tag  uint64
	prev Item
}

// NewMutator creates a mutator bound to one store and parameter set.
func NewMutator(store *Store, api MutationAPI, params Params) *Mutator {
	return &Mutator{
		store:  store,
		api:    api,
		params: params,
		stacks: make(map[string][]pendingSnapshot),
	}
}

// Create inserts a draft item locally under a temporary ID, posts it, and
// swaps in the server item (with its final ID) on success.
func (m *Mutator) Create(ctx context.Context, draft Item) (*Mutation, error) {
	mut := newMutation("create")

	if draft.ID == "" {
		draft.ID = "local-" + uuid.NewString()
	}
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = time.Now().UTC()
	}
	if draft.Seq == 0 {
		draft.Seq = -1
	}

	if !m.store.InsertLocal(draft) {
		return mut, apierrors.BadRequest("draft item could not be inserted")
	}
	m.totalDelta(1)
	mut.advance(evApply)

	server, err := m.api.Create(ctx, m.params, draft)
	if err != nil {
		m.store.RemoveCascading(draft.ID)
		m.totalDelta(-1)
		mut.advance(evFail)
		logger.WarnWithFields("Create rolled back", err)
		return mut, err
	}

	m.store.Replace(draft.ID, func(Item) Item { return server })
	mut.advance(evConfirm)
	return mut, nil
}

// Edit applies a pure transform to one item, sends the edited item, and
// reconciles with the server copy.
func (m *Mutator) Edit(ctx context.Context, id string, transform func(Item) Item) (*Mutation, error) {
	mut := newMutation("edit")

	prev, ok := m.store.Get(id)
	if !ok {
		return mut, apierrors.NotFound("item")
	}
	tag := m.push(id, prev)
	m.store.Replace(id, transform)
	mut.advance(evApply)

	optimistic, _ := m.store.Get(id)
	server, err := m.api.Edit(ctx, optimistic)
	if err != nil {
		m.rollback(id, tag)
		mut.advance(evFail)
		logger.WarnWithFields("Edit rolled back", err)
		return mut, err
	}

	m.settle(id, tag)
	m.store.Replace(id, func(Item) Item { return server })
	mut.advance(evConfirm)
	return mut, nil
}

// ToggleVote flips the item's vote state and adjusts the counter by exactly
// one, then reconciles with the server-returned counts.
func (m *Mutator) ToggleVote(ctx context.Context, id string) (*Mutation, error) {
	mut := newMutation("vote")

	prev, ok := m.store.Get(id)
	if !ok {
		return mut, apierrors.NotFound("item")
	}
	tag := m.push(id, prev)
	m.store.Replace(id, func(it Item) Item {
		if it.Upvoted {
			it.Votes--
			it.Upvoted = false
		} else {
			it.Votes++
			it.Upvoted = true
		}
		return it
	})
	mut.advance(evApply)

	server, err := m.api.Vote(ctx, id)
	if err != nil {
		m.rollback(id, tag)
		mut.advance(evFail)
		logger.WarnWithFields("Vote rolled back", err)
		return mut, err
	}

	m.settle(id, tag)
	m.store.Replace(id, func(Item) Item { return server })
	mut.advance(evConfirm)
	return mut, nil
}

// Delete removes the item and cascades sequence indices down, adjusting the
// external total by -(replies+1). Rollback restores the full pre-delete list,
// since a cascading delete touches every later item's index.
func (m *Mutator) Delete(ctx context.Context, id string) (*Mutation, error) {
	mut := newMutation("delete")

	full := m.store.Snapshot()
	removed, ok := m.store.RemoveCascading(id)
	if !ok {
		return mut, apierrors.NotFound("item")
	}
	delta := -(removed.Replies + 1)
	m.totalDelta(delta)
	mut.advance(evApply)

	if err := m.api.Delete(ctx, id); err != nil {
		m.store.Restore(full)
		m.totalDelta(-delta)
		mut.advance(evFail)
		logger.WarnWithFields("Delete rolled back", err)
		return mut, err
	}

	mut.advance(evConfirm)
	return mut, nil
}

func (m *Mutator) totalDelta(delta int) {
	if m.OnTotalDelta != nil {
		m.OnTotalDelta(delta)
	}
}

// push captures a pre-mutation snapshot and returns its stack tag.
func (m *Mutator) push(id string, prev Item) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextTag++
	m.stacks[id] = append(m.stacks[id], pendingSnapshot{tag: m.nextTag, prev: prev})
	return m.nextTag
}

// rollback restores the snapshot with the given tag, but only while it is
// the newest pending snapshot for the item. A superseded snapshot is dropped
// without touching the store.
func (m *Mutator) rollback(id string, tag uint64) {
	m.mu.Lock()
	stack := m.stacks[id]
	top := len(stack) > 0 && stack[len(stack)-1].tag == tag
	var prev Item
	if top {
		prev = stack[len(stack)-1].prev
		m.stacks[id] = stack[:len(stack)-1]
	} else {
		m.dropTagLocked(id, tag)
	}
	m.mu.Unlock()

	if top {
		m.store.Replace(id, func(Item) Item { return prev })
	} else {
		logger.DebugWithFields("Skipped out-of-order rollback",
			logger.WithItemID(id), zap.Uint64("tag", tag))
	}
}

// settle discards the snapshot for a confirmed mutation.
func (m *Mutator) settle(id string, tag uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropTagLocked(id, tag)
}

func (m *Mutator) dropTagLocked(id string, tag uint64) {
	stack := m.stacks[id]
	for i := range stack {
		if stack[i].tag == tag {
			m.stacks[id] = append(stack[:i], stack[i+1:]...)
			break
		}
	}
	if len(m.stacks[id]) == 0 {
		delete(m.stacks, id)
	}
}
