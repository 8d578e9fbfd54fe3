// Package ensemble holds the particle ensemble of a leeway simulation.
//
// Particles are ECS entities carrying the State, Leeway, Position and Release
// components. Systems iterate them with their own filters built on World().
package ensemble

import (
	"sort"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/leeway/components"
)

// Particle is a value snapshot of one particle's components.
type Particle struct {
	Entity   ecs.Entity
	State    components.State
	Leeway   components.Leeway
	Position components.Position
	Release  components.Release
}

// Ensemble owns the ECS world that stores the particles.
type Ensemble struct {
	world  *ecs.World
	mapper *ecs.Map4[components.State, components.Leeway, components.Position, components.Release]
	filter *ecs.Filter4[components.State, components.Leeway, components.Position, components.Release]

	nextID uint32
	count  int
}

// New creates an empty ensemble.
func New() *Ensemble {
	world := ecs.NewWorld()
	return &Ensemble{
		world:  world,
		mapper: ecs.NewMap4[components.State, components.Leeway, components.Position, components.Release](world),
		filter: ecs.NewFilter4[components.State, components.Leeway, components.Position, components.Release](world),
	}
}

// World returns the underlying ECS world.
func (e *Ensemble) World() *ecs.World { return e.world }

// Spawn adds a particle in the initial status with zero age and returns its entity.
// IDs are assigned in spawn order, starting at 0.
func (e *Ensemble) Spawn(lw components.Leeway, pos components.Position, rel components.Release) ecs.Entity {
	st := components.State{ID: e.nextID, Status: components.StatusInitial}
	e.nextID++
	e.count++
	return e.mapper.NewEntity(&st, &lw, &pos, &rel)
}

// Len returns the number of particles, terminal ones included.
func (e *Ensemble) Len() int { return e.count }

// Get returns a snapshot of the particle behind entity.
func (e *Ensemble) Get(entity ecs.Entity) (Particle, bool) {
	if !e.world.Alive(entity) {
		return Particle{}, false
	}
	st, lw, pos, rel := e.mapper.Get(entity)
	return Particle{Entity: entity, State: *st, Leeway: *lw, Position: *pos, Release: *rel}, true
}

// Each calls fn for every particle with pointers to its components.
// fn must not add particles.
func (e *Ensemble) Each(fn func(entity ecs.Entity, st *components.State, lw *components.Leeway, pos *components.Position, rel *components.Release)) {
	query := e.filter.Query()
	for query.Next() {
		st, lw, pos, rel := query.Get()
		fn(query.Entity(), st, lw, pos, rel)
	}
}

// Particles returns snapshots of all particles ordered by ID.
func (e *Ensemble) Particles() []Particle {
	out := make([]Particle, 0, e.count)
	e.Each(func(entity ecs.Entity, st *components.State, lw *components.Leeway, pos *components.Position, rel *components.Release) {
		out = append(out, Particle{Entity: entity, State: *st, Leeway: *lw, Position: *pos, Release: *rel})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].State.ID < out[j].State.ID })
	return out
}

// StatusCounts holds the number of particles per status, indexed by Status.
type StatusCounts [6]int

// Of returns the count for s.
func (c StatusCounts) Of(s components.Status) int {
	if int(s) >= len(c) {
		return 0
	}
	return c[s]
}

// CountByStatus tallies particles per status.
func (e *Ensemble) CountByStatus() StatusCounts {
	var counts StatusCounts
	e.Each(func(_ ecs.Entity, st *components.State, _ *components.Leeway, _ *components.Position, _ *components.Release) {
		if int(st.Status) < len(counts) {
			counts[st.Status]++
		}
	})
	return counts
}
