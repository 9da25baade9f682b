package orbit

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "embed"
)

// Content is the portfolio material surfaced when a body is approached.
type Content struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Details     []string `json:"details,omitempty"`
	Color       string   `json:"color"`
	Rings       []string `json:"rings,omitempty"`
}

// Star describes the body fixed at the origin.
type Star struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// Entry is the immutable catalogue entry of an orbiting body.
type Entry struct {
	ID           string  `json:"id"`
	Radius       float64 `json:"radius"`
	AngularSpeed float64 `json:"angularSpeed"`
	Size         float64 `json:"size"`
	Content      Content `json:"content"`
}

// Catalogue lists the star and its bodies in approach order.
type Catalogue struct {
	Star   Star    `json:"star"`
	Bodies []Entry `json:"bodies"`
}

// Validate rejects duplicate identifiers, bodies sharing the star's id and
// non-physical geometry.
func (c Catalogue) Validate() error {
	seen := make(map[string]struct{}, len(c.Bodies))
	star := strings.TrimSpace(c.Star.ID)
	var problems []string
	for idx, body := range c.Bodies {
		id := strings.TrimSpace(body.ID)
		if id == "" {
			problems = append(problems, fmt.Sprintf("body %d has no id", idx))
			continue
		}
		if _, dup := seen[id]; dup {
			problems = append(problems, fmt.Sprintf("body %q declared twice", id))
		}
		seen[id] = struct{}{}
		if star != "" && id == star {
			problems = append(problems, fmt.Sprintf("body %q shares the star's id", id))
		}
		if body.Radius < 0 || body.Size < 0 {
			problems = append(problems, fmt.Sprintf("body %q has negative geometry", id))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid catalogue: %s", strings.Join(problems, "; "))
	}
	return nil
}

//go:embed solar_system.json
var solarSystemPayload []byte

var (
	solarOnce sync.Once
	solarData Catalogue
	solarErr  error
)

// SolarSystem returns the embedded portfolio system.
func SolarSystem() Catalogue {
	solarOnce.Do(func() {
		//1.- Decode once and validate so a broken edit fails loudly at startup.
		if solarErr = json.Unmarshal(solarSystemPayload, &solarData); solarErr == nil {
			solarErr = solarData.Validate()
		}
	})
	if solarErr != nil {
		panic(solarErr)
	}
	//2.- Copy the body list so callers cannot reorder the shared one.
	clone := solarData
	clone.Bodies = append([]Entry(nil), solarData.Bodies...)
	return clone
}
