package wire

import (
	"time"

	"starfolio/navigator/internal/orbit"
)

// BodyInfo describes one orbiting body to a freshly connected client so it can draw
// orbits locally between frames.
type BodyInfo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Title        string   `json:"title,omitempty"`
	Description  string   `json:"description,omitempty"`
	Details      []string `json:"details,omitempty"`
	Color        string   `json:"color,omitempty"`
	Rings        []string `json:"rings,omitempty"`
	Radius       float64  `json:"radius"`
	Size         float64  `json:"size"`
	AngularSpeed float64  `json:"angular_speed"`
	Phase        float64  `json:"phase"`
}

// Hello is the first message on every pilot connection.
type Hello struct {
	Type        string     `json:"type"`
	SessionID   string     `json:"session_id"`
	StepMs      float64    `json:"step_ms"`
	Encoding    string     `json:"encoding"`
	Compression string     `json:"compression"`
	Star        orbit.Star `json:"star"`
	Bodies      []BodyInfo `json:"bodies"`
}

// NavEntry is one row of the warp navigation list.
type NavEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Color string `json:"color,omitempty"`
}

// NewHello snapshots the registry for a new session.
func NewHello(sessionID string, step time.Duration, registry *orbit.Registry, format Format) Hello {
	return Hello{
		Type:        "hello",
		SessionID:   sessionID,
		StepMs:      float64(step) / float64(time.Millisecond),
		Encoding:    format.Encoding.String(),
		Compression: format.Compression.String(),
		Star:        registry.Star(),
		Bodies:      BodyInfos(registry),
	}
}

// BodyInfos describes every body in catalogue order.
func BodyInfos(registry *orbit.Registry) []BodyInfo {
	bodies := registry.Bodies()
	infos := make([]BodyInfo, 0, len(bodies))
	for _, body := range bodies {
		infos = append(infos, BodyInfo{
			ID:           body.ID,
			Name:         body.Content.Name,
			Title:        body.Content.Title,
			Description:  body.Content.Description,
			Details:      body.Content.Details,
			Color:        body.Content.Color,
			Rings:        body.Content.Rings,
			Radius:       body.Radius,
			Size:         body.Size,
			AngularSpeed: body.AngularSpeed,
			Phase:        body.Phase,
		})
	}
	return infos
}

// NavigationList returns the warp targets: the star first, then the bodies in catalogue order.
func NavigationList(registry *orbit.Registry) []NavEntry {
	star := registry.Star()
	bodies := registry.Bodies()
	entries := make([]NavEntry, 0, len(bodies)+1)
	entries = append(entries, NavEntry{ID: star.ID, Name: star.Name, Kind: "star", Color: star.Color})
	for _, body := range bodies {
		entries = append(entries, NavEntry{ID: body.ID, Name: body.Content.Name, Kind: "planet", Color: body.Content.Color})
	}
	return entries
}
