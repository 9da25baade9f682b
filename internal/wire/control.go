// Package wire defines the messages exchanged with remote pilots: JSON control input,
// the hello catalogue, and per-tick frames in JSON or a compact protobuf-compatible
// binary form.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"starfolio/navigator/internal/input"
)

// ControlType discriminates inbound control messages.
type ControlType string

const (
	ControlKey      ControlType = "key"
	ControlJoystick ControlType = "joystick"
	ControlWarp     ControlType = "warp"
	ControlReset    ControlType = "reset"
)

var (
	// ErrUnknownControl marks a message whose type is not recognised.
	ErrUnknownControl = errors.New("unknown control type")
	// ErrInvalidControl marks a recognised message with missing or malformed fields.
	ErrInvalidControl = errors.New("invalid control message")
)

// ControlMessage is the JSON shape pilots send for every input edge.
//
// Key messages name either a browser KeyboardEvent.code ("KeyW") or a button ("forward").
// Warp messages carry the body id; a null or missing body targets the star.
type ControlMessage struct {
	Type     ControlType     `json:"type"`
	Key      string          `json:"key,omitempty"`
	Down     *bool           `json:"down,omitempty"`
	Joystick *input.Joystick `json:"joystick,omitempty"`
	Body     *string         `json:"body,omitempty"`
	Sequence uint64          `json:"seq,omitempty"`
	SentAtMs int64           `json:"sent_at_ms,omitempty"`
}

// Button resolves the key field into a flight button.
func (m ControlMessage) Button() (input.Button, bool) {
	key := strings.TrimSpace(m.Key)
	if button, ok := input.ButtonForKey(key); ok {
		return button, true
	}
	return input.ParseButton(strings.ToLower(key))
}

// SentAt converts the optional client timestamp; the zero time means unknown.
func (m ControlMessage) SentAt() time.Time {
	if m.SentAtMs <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(m.SentAtMs)
}

// WarpTarget returns the requested body id, empty for the star.
func (m ControlMessage) WarpTarget() string {
	if m.Body == nil {
		return ""
	}
	return strings.TrimSpace(*m.Body)
}

// DecodeControl parses and validates one control message.
func DecodeControl(data []byte) (ControlMessage, error) {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ControlMessage{}, fmt.Errorf("%w: %v", ErrInvalidControl, err)
	}
	if err := msg.Validate(); err != nil {
		return ControlMessage{}, err
	}
	if msg.Joystick != nil {
		sanitized := input.SanitizeJoystick(*msg.Joystick)
		msg.Joystick = &sanitized
	}
	return msg, nil
}

// Validate checks that the fields required by the message type are present.
func (m ControlMessage) Validate() error {
	switch m.Type {
	case ControlKey:
		if m.Down == nil {
			return fmt.Errorf("%w: key message missing down", ErrInvalidControl)
		}
		if _, ok := m.Button(); !ok {
			return fmt.Errorf("%w: unbound key %q", ErrInvalidControl, m.Key)
		}
	case ControlJoystick:
		if m.Joystick == nil {
			return fmt.Errorf("%w: joystick message missing sample", ErrInvalidControl)
		}
	case ControlWarp, ControlReset:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownControl, m.Type)
	}
	return nil
}

// EncodeControl renders a control message for clients and tests.
func EncodeControl(msg ControlMessage) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}
