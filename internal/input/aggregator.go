package input

// Button identifies one of the six logical flight buttons.
type Button int

const (
	Forward Button = iota
	Backward
	Left
	Right
	Ascend
	Descend

	buttonCount
)

var buttonNames = [buttonCount]string{"forward", "backward", "left", "right", "ascend", "descend"}

// String returns the wire name of the button.
func (b Button) String() string {
	if b < 0 || b >= buttonCount {
		return "unknown"
	}
	return buttonNames[b]
}

// ParseButton resolves a wire name back into a Button.
func ParseButton(name string) (Button, bool) {
	for idx, candidate := range buttonNames {
		if candidate == name {
			return Button(idx), true
		}
	}
	return 0, false
}

// Intent is the per-step control demand derived from the latched input state.
type Intent struct {
	Turn     float64
	Thrust   float64
	Vertical float64
}

// Aggregator latches key edges and the most recent joystick sample.
// It is not safe for concurrent use; hosts serialise access through the session.
type Aggregator struct {
	held     [buttonCount]bool
	joystick Joystick
}

// NewAggregator returns an aggregator with every button released and the joystick idle.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Press latches a key-down edge and reports whether the state changed.
func (a *Aggregator) Press(b Button) bool {
	return a.set(b, true)
}

// Release latches a key-up edge and reports whether the state changed.
func (a *Aggregator) Release(b Button) bool {
	return a.set(b, false)
}

func (a *Aggregator) set(b Button, down bool) bool {
	if a == nil || b < 0 || b >= buttonCount {
		return false
	}
	//1.- Auto-repeat delivers repeated downs; only a real edge toggles the latch.
	if a.held[b] == down {
		return false
	}
	a.held[b] = down
	return true
}

// Held reports the latched state of b.
func (a *Aggregator) Held(b Button) bool {
	if a == nil || b < 0 || b >= buttonCount {
		return false
	}
	return a.held[b]
}

// SetJoystick replaces the latched joystick sample after sanitising it.
func (a *Aggregator) SetJoystick(x, y float64, active bool) {
	if a == nil {
		return
	}
	a.joystick = SanitizeJoystick(Joystick{X: x, Y: y, Active: active})
}

// Joystick returns the latched joystick sample.
func (a *Aggregator) Joystick() Joystick {
	if a == nil {
		return Joystick{}
	}
	return a.joystick
}

// Reset releases every button and idles the joystick.
func (a *Aggregator) Reset() {
	if a == nil {
		return
	}
	a.held = [buttonCount]bool{}
	a.joystick = Joystick{}
}

// Sample derives the intent without mutating the latched state.
func (a *Aggregator) Sample() Intent {
	if a == nil {
		return Intent{}
	}
	intent := Intent{Vertical: a.axis(Ascend, Descend)}
	//1.- An active joystick owns turn and thrust entirely; screen-down is positive y so thrust is inverted.
	if a.joystick.Active {
		intent.Turn = a.joystick.X
		intent.Thrust = -a.joystick.Y
		return intent
	}
	//2.- Otherwise opposing buttons cancel out into {-1, 0, 1}.
	intent.Turn = a.axis(Right, Left)
	intent.Thrust = a.axis(Forward, Backward)
	return intent
}

func (a *Aggregator) axis(positive, negative Button) float64 {
	value := 0.0
	if a.held[positive] {
		value++
	}
	if a.held[negative] {
		value--
	}
	return value
}
