package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"starfolio/navigator/internal/input"
	"starfolio/navigator/internal/orbit"
	"starfolio/navigator/internal/wire"
)

// ControlDoc describes a single control a client can send, with the keys that drive it.
type ControlDoc struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Shortcut    string `json:"shortcut,omitempty"`
}

var buttonDocs = map[input.Button]ControlDoc{
	input.Forward:  {Label: "Thrust", Description: "Accelerate along the ship's heading."},
	input.Backward: {Label: "Brake", Description: "Thrust against the heading to slow down or reverse."},
	input.Left:     {Label: "Turn Left", Description: "Yaw left and bank into the turn."},
	input.Right:    {Label: "Turn Right", Description: "Yaw right and bank into the turn."},
	input.Ascend:   {Label: "Ascend", Description: "Climb along world up."},
	input.Descend:  {Label: "Descend", Description: "Sink along world up."},
}

var messageDocs = []ControlDoc{
	{
		ID:          "joystick",
		Label:       "Joystick",
		Description: "Analog stick: x turns, y thrusts with forward up. Overrides keys while active.",
	},
	{
		ID:          "warp",
		Label:       "Warp",
		Description: "Fly automatically to a planet from the navigation list, or to the star when no body is given.",
	},
	{
		ID:          "reset",
		Label:       "Reset Input",
		Description: "Release every held key and the joystick, for example when the window loses focus.",
	},
}

// controlDocs lists the key-driven buttons in button order followed by the message-only controls.
func controlDocs() []ControlDoc {
	bindings := input.Bindings()
	docs := make([]ControlDoc, 0, len(bindings)+len(messageDocs))
	for _, binding := range bindings {
		doc := buttonDocs[binding.Button]
		doc.ID = binding.Button.String()
		doc.Shortcut = strings.Join(binding.Codes, " / ")
		docs = append(docs, doc)
	}
	return append(docs, messageDocs...)
}

// registerControlDocEndpoints serves the control reference and the body catalogue so
// clients can build their UI before opening a session.
func registerControlDocEndpoints(mux *http.ServeMux, registry *orbit.Registry) {
	mux.HandleFunc("/api/controls", func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, controlDocs())
	})
	mux.HandleFunc("/api/bodies", func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, struct {
			Star       orbit.Star      `json:"star"`
			Bodies     []wire.BodyInfo `json:"bodies"`
			Navigation []wire.NavEntry `json:"navigation"`
		}{
			Star:       registry.Star(),
			Bodies:     wire.BodyInfos(registry),
			Navigation: wire.NavigationList(registry),
		})
	})
}

func writeJSONResponse(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
