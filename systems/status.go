package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/leeway/components"
	"github.com/pthm-cable/leeway/ensemble"
)

// StatusTracker applies status transitions. Terminal statuses are sticky:
// once stranded, evaporated or dispersed, a particle never changes status.
type StatusTracker struct {
	ens *ensemble.Ensemble
	// transitions counts transitions into each status since creation.
	transitions [6]int
}

// NewStatusTracker creates a tracker for ens.
func NewStatusTracker(ens *ensemble.Ensemble) *StatusTracker {
	return &StatusTracker{ens: ens}
}

// Set moves st to status unless st is terminal. It reports whether the
// status changed.
func (t *StatusTracker) Set(st *components.State, status components.Status) bool {
	if st.Status == status || st.Status.Terminal() {
		return false
	}
	st.Status = status
	if int(status) < len(t.transitions) {
		t.transitions[status]++
	}
	return true
}

// Deactivate moves st into a terminal status.
func (t *StatusTracker) Deactivate(st *components.State, reason components.Status) bool {
	if !reason.Terminal() {
		return false
	}
	return t.Set(st, reason)
}

// DeactivateWhere deactivates every particle for which pred holds and
// returns the number of particles changed.
func (t *StatusTracker) DeactivateWhere(reason components.Status, pred func(st *components.State, pos *components.Position) bool) int {
	n := 0
	t.ens.Each(func(_ ecs.Entity, st *components.State, _ *components.Leeway, pos *components.Position, _ *components.Release) {
		if pred(st, pos) && t.Deactivate(st, reason) {
			n++
		}
	})
	return n
}

// Transitions returns how many times particles entered status.
func (t *StatusTracker) Transitions(status components.Status) int {
	if int(status) >= len(t.transitions) {
		return 0
	}
	return t.transitions[status]
}
