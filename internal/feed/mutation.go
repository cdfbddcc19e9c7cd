package feed

import "sync"

// MutationPhase is the lifecycle state of one optimistic mutation.
type MutationPhase int

const (
	// PhaseIdle: created but not yet applied locally.
	PhaseIdle MutationPhase = iota

	// PhaseApplied: the local store reflects the mutation, the network
	// call is outstanding.
	PhaseApplied

	// PhaseConfirmed: the server accepted and its canonical item replaced
	// the optimistic one.
	PhaseConfirmed

	// PhaseRolledBack: the call failed and the captured snapshot was
	// restored verbatim.
	PhaseRolledBack
)

// String implements Stringer.
func (p MutationPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseApplied:
		return "applied"
	case PhaseConfirmed:
		return "confirmed"
	case PhaseRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// mutationEvent drives the phase reducer.
type mutationEvent int

const (
	evApply mutationEvent = iota
	evConfirm
	evFail
)

// nextPhase is the pure transition function for the mutation lifecycle.
// Invalid transitions return the current phase unchanged; a mutation can
// never leave a terminal phase.
func nextPhase(p MutationPhase, ev mutationEvent) MutationPhase {
	switch p {
	case PhaseIdle:
		if ev == evApply {
			return PhaseApplied
		}
	case PhaseApplied:
		switch ev {
		case evConfirm:
			return PhaseConfirmed
		case evFail:
			return PhaseRolledBack
		}
	}
	return p
}

// Mutation is the observable handle for one optimistic mutation.
type Mutation struct {
	// Kind is "create", "edit", "delete" or "vote".
	Kind string

	mu    sync.Mutex
	phase MutationPhase
}

func newMutation(kind string) *Mutation {
	return &Mutation{Kind: kind}
}

// Phase returns the current lifecycle phase.
func (m *Mutation) Phase() MutationPhase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Mutation) advance(ev mutationEvent) {
	m.mu.Lock()
	m.phase = nextPhase(m.phase, ev)
	phase := m.phase
	m.mu.Unlock()

	if phase == PhaseConfirmed || phase == PhaseRolledBack {
		mutationsTotal.WithLabelValues(m.Kind, phase.String()).Inc()
	}
}
