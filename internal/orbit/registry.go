package orbit

import (
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"
)

// Body is a catalogue entry with its session phase resolved.
type Body struct {
	Entry
	Phase float64
}

// Angle returns the orbital angle at simulated time t in seconds.
func (b Body) Angle(t float64) float64 {
	return b.Phase + t*b.AngularSpeed
}

// PositionAt is the pure circular-orbit position at simulated time t.
func (b Body) PositionAt(t float64) mgl64.Vec3 {
	theta := b.Angle(t)
	return mgl64.Vec3{math.Cos(theta) * b.Radius, 0, math.Sin(theta) * b.Radius}
}

// Registry is the read-only set of bodies shared by every session in a process.
type Registry struct {
	star   Star
	bodies []Body
	index  map[string]int
}

// SeededRand derives the deterministic generator used for a session seed.
func SeededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewRegistry assigns each body an independent random phase drawn from rng.
func NewRegistry(catalogue Catalogue, rng *rand.Rand) (*Registry, error) {
	if err := catalogue.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	registry := &Registry{
		star:   catalogue.Star,
		bodies: make([]Body, len(catalogue.Bodies)),
		index:  make(map[string]int, len(catalogue.Bodies)),
	}
	//1.- Draw phases in catalogue order so a fixed seed reproduces the same sky.
	for idx, entry := range catalogue.Bodies {
		registry.bodies[idx] = Body{Entry: entry, Phase: rng.Float64() * 2 * math.Pi}
		registry.index[entry.ID] = idx
	}
	return registry, nil
}

// NewRegistryWithPhases builds a registry with explicit phases, matching bodies by index.
func NewRegistryWithPhases(catalogue Catalogue, phases []float64) (*Registry, error) {
	if err := catalogue.Validate(); err != nil {
		return nil, err
	}
	registry := &Registry{
		star:   catalogue.Star,
		bodies: make([]Body, len(catalogue.Bodies)),
		index:  make(map[string]int, len(catalogue.Bodies)),
	}
	for idx, entry := range catalogue.Bodies {
		phase := 0.0
		if idx < len(phases) {
			phase = phases[idx]
		}
		registry.bodies[idx] = Body{Entry: entry, Phase: phase}
		registry.index[entry.ID] = idx
	}
	return registry, nil
}

// Star returns the body at the origin.
func (r *Registry) Star() Star {
	if r == nil {
		return Star{}
	}
	return r.star
}

// Bodies returns the bodies in catalogue order.
func (r *Registry) Bodies() []Body {
	if r == nil {
		return nil
	}
	return append([]Body(nil), r.bodies...)
}

// Len reports the number of orbiting bodies.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.bodies)
}

// At returns the body at catalogue index idx without copying the list.
func (r *Registry) At(idx int) Body {
	return r.bodies[idx]
}

// Lookup resolves a body by id.
func (r *Registry) Lookup(id string) (Body, bool) {
	if r == nil {
		return Body{}, false
	}
	idx, ok := r.index[id]
	if !ok {
		return Body{}, false
	}
	return r.bodies[idx], true
}

// PositionAt resolves id and returns its position at simulated time t.
func (r *Registry) PositionAt(id string, t float64) (mgl64.Vec3, bool) {
	body, ok := r.Lookup(id)
	if !ok {
		return mgl64.Vec3{}, false
	}
	return body.PositionAt(t), true
}
