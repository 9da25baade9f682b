package proximity

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"starfolio/navigator/internal/orbit"
)

// TieBreak decides which body wins when several are near at once.
type TieBreak int

const (
	// TieBreakFirst selects the first near body in catalogue order.
	TieBreakFirst TieBreak = iota
	// TieBreakNearest selects the near body with the smallest distance.
	TieBreakNearest
)

// ParseTieBreak maps a config value to a TieBreak.
func ParseTieBreak(raw string) (TieBreak, bool) {
	switch raw {
	case "", "first":
		return TieBreakFirst, true
	case "nearest":
		return TieBreakNearest, true
	default:
		return TieBreakFirst, false
	}
}

// Event is a selection change. Cleared events carry no body id.
type Event struct {
	BodyID  string `json:"body,omitempty"`
	Cleared bool   `json:"cleared,omitempty"`
}

// Contact is the sweep result for one body.
type Contact struct {
	BodyID   string
	Distance float64
	Near     bool
}

// Detector tracks which body, if any, the agent is currently approaching.
type Detector struct {
	registry *orbit.Registry
	margin   float64
	tieBreak TieBreak
	selected string
	active   bool
}

// NewDetector sweeps the registry with a fixed approach margin added to each body's size.
func NewDetector(registry *orbit.Registry, margin float64, tieBreak TieBreak) *Detector {
	return &Detector{registry: registry, margin: margin, tieBreak: tieBreak}
}

// Selected returns the current selection.
func (d *Detector) Selected() (string, bool) {
	if d == nil || !d.active {
		return "", false
	}
	return d.selected, true
}

// Sweep measures every body at simulated time t without touching the selection.
func (d *Detector) Sweep(agent mgl64.Vec3, t float64) []Contact {
	if d == nil || d.registry == nil {
		return nil
	}
	contacts := make([]Contact, d.registry.Len())
	for idx := range contacts {
		body := d.registry.At(idx)
		distance := agent.Sub(body.PositionAt(t)).Len()
		contacts[idx] = Contact{BodyID: body.ID, Distance: distance, Near: distance < body.Size+d.margin}
	}
	return contacts
}

// Step updates the selection for the agent position at simulated time t and returns
// the resulting event, if any. Remaining near the selected body emits nothing.
func (d *Detector) Step(agent mgl64.Vec3, t float64) (Event, bool) {
	if d == nil || d.registry == nil {
		return Event{}, false
	}
	candidate, found := d.candidate(agent, t)
	switch {
	case found && (!d.active || candidate != d.selected):
		//1.- A new body entered range, or an earlier one in order took over.
		d.selected, d.active = candidate, true
		return Event{BodyID: candidate}, true
	case !found && d.active:
		//2.- Nothing is near anymore; drop the selection once.
		d.selected, d.active = "", false
		return Event{Cleared: true}, true
	default:
		return Event{}, false
	}
}

// Reset clears the selection without emitting an event.
func (d *Detector) Reset() {
	if d == nil {
		return
	}
	d.selected, d.active = "", false
}

func (d *Detector) candidate(agent mgl64.Vec3, t float64) (string, bool) {
	best := ""
	bestDistance := math.Inf(1)
	for idx := 0; idx < d.registry.Len(); idx++ {
		body := d.registry.At(idx)
		distance := agent.Sub(body.PositionAt(t)).Len()
		if distance >= body.Size+d.margin {
			continue
		}
		if d.tieBreak == TieBreakFirst {
			return body.ID, true
		}
		if distance < bestDistance {
			best, bestDistance = body.ID, distance
		}
	}
	return best, best != ""
}
