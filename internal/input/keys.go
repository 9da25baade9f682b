package input

import "sort"

// Binding documents which key codes drive a button.
type Binding struct {
	Button Button
	Codes  []string
}

var keyBindings = map[string]Button{
	"KeyW":       Forward,
	"ArrowUp":    Forward,
	"KeyS":       Backward,
	"ArrowDown":  Backward,
	"KeyA":       Left,
	"ArrowLeft":  Left,
	"KeyD":       Right,
	"ArrowRight": Right,
	"Space":      Ascend,
	"ShiftLeft":  Descend,
	"ShiftRight": Descend,
}

// ButtonForKey maps a browser KeyboardEvent.code to its flight button.
func ButtonForKey(code string) (Button, bool) {
	button, ok := keyBindings[code]
	return button, ok
}

// Bindings lists the key codes per button in button order.
func Bindings() []Binding {
	grouped := make(map[Button][]string, buttonCount)
	for code, button := range keyBindings {
		grouped[button] = append(grouped[button], code)
	}
	bindings := make([]Binding, 0, buttonCount)
	for b := Forward; b < buttonCount; b++ {
		codes := grouped[b]
		sort.Strings(codes)
		bindings = append(bindings, Binding{Button: b, Codes: codes})
	}
	return bindings
}
