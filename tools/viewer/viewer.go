// Package viewer flies a local navigation session in a top-down ebiten window. It needs no
// server: the session runs in-process at the window's tick rate.
package viewer

import (
	"fmt"
	"image/color"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/colornames"

	"starfolio/navigator/internal/input"
	"starfolio/navigator/internal/logging"
	"starfolio/navigator/internal/navigation"
	"starfolio/navigator/internal/orbit"
	"starfolio/navigator/internal/physics"
)

const (
	// ScreenWidth and ScreenHeight are the logical canvas size.
	ScreenWidth  = 1280
	ScreenHeight = 720

	defaultScale = 7.0
	minScale     = 2.0
	maxScale     = 30.0
	lineHeight   = 16
)

// keyCodes maps window keys onto the browser key codes the bindings table uses.
var keyCodes = map[ebiten.Key]string{
	ebiten.KeyW:          "KeyW",
	ebiten.KeyArrowUp:    "ArrowUp",
	ebiten.KeyS:          "KeyS",
	ebiten.KeyArrowDown:  "ArrowDown",
	ebiten.KeyA:          "KeyA",
	ebiten.KeyArrowLeft:  "ArrowLeft",
	ebiten.KeyD:          "KeyD",
	ebiten.KeyArrowRight: "ArrowRight",
	ebiten.KeySpace:      "Space",
	ebiten.KeyShiftLeft:  "ShiftLeft",
	ebiten.KeyShiftRight: "ShiftRight",
}

var warpKeys = []ebiten.Key{
	ebiten.KeyDigit0, ebiten.KeyDigit1, ebiten.KeyDigit2, ebiten.KeyDigit3, ebiten.KeyDigit4,
	ebiten.KeyDigit5, ebiten.KeyDigit6, ebiten.KeyDigit7, ebiten.KeyDigit8, ebiten.KeyDigit9,
}

// Viewer implements ebiten.Game around one navigation session.
type Viewer struct {
	session  *navigation.Session
	registry *orbit.Registry
	logger   *logging.Logger
	glyphs   *glyphAtlas
	scale    float64
	last     navigation.Output
	visited  []string
	palette  map[string]color.Color
}

// New builds a viewer over a fresh session. Options are passed to the session.
func New(registry *orbit.Registry, logger *logging.Logger, opts ...navigation.Option) *Viewer {
	if logger == nil {
		logger = logging.L()
	}
	opts = append([]navigation.Option{navigation.WithLogger(logger)}, opts...)
	palette := make(map[string]color.Color, registry.Len()+1)
	star := registry.Star()
	palette[star.ID] = parseColor(star.Color, colornames.Gold)
	for _, body := range registry.Bodies() {
		palette[body.ID] = parseColor(body.Content.Color, colornames.Lightsteelblue)
	}
	return &Viewer{
		session:  navigation.New(registry, opts...),
		registry: registry,
		logger:   logger,
		glyphs:   newGlyphAtlas(),
		scale:    defaultScale,
		palette:  palette,
	}
}

// HandleKey forwards a key edge to the session. Unbound codes are ignored.
func (v *Viewer) HandleKey(code string, down bool) bool {
	button, ok := input.ButtonForKey(code)
	if !ok {
		return false
	}
	if down {
		return v.session.Press(button)
	}
	return v.session.Release(button)
}

// WarpTo starts a warp from the navigation list: 0 is the star, n is the nth body.
func (v *Viewer) WarpTo(index int) bool {
	if index < 0 || index > v.registry.Len() {
		return false
	}
	if index == 0 {
		return v.session.RequestWarp("")
	}
	return v.session.RequestWarp(v.registry.At(index - 1).ID)
}

// Advance runs the session for elapsed and remembers the output for drawing.
func (v *Viewer) Advance(elapsed time.Duration) navigation.Output {
	out := v.session.Tick(elapsed)
	for _, event := range out.Events {
		if event.BodyID == "" {
			continue
		}
		if !slices.Contains(v.visited, event.BodyID) {
			v.visited = append(v.visited, event.BodyID)
		}
		v.logger.Info("body selected", logging.String("body", event.BodyID), logging.Uint64("tick", out.Tick))
	}
	if out.WarpArrived {
		v.logger.Info("warp arrived", logging.Uint64("tick", out.Tick))
	}
	v.last = out
	return out
}

// Update polls the keyboard once per ebiten tick and advances the session by one tick.
func (v *Viewer) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	for key, code := range keyCodes {
		if inpututil.IsKeyJustPressed(key) {
			v.HandleKey(code, true)
		}
		if inpututil.IsKeyJustReleased(key) {
			v.HandleKey(code, false)
		}
	}
	for idx, key := range warpKeys {
		if inpututil.IsKeyJustPressed(key) {
			v.WarpTo(idx)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		v.session.ResetInput()
	}
	if _, wheel := ebiten.Wheel(); wheel != 0 {
		v.scale = clampScale(v.scale * (1 + wheel*0.1))
	}
	tps := ebiten.TPS()
	if tps <= 0 {
		tps = ebiten.DefaultTPS
	}
	v.Advance(time.Second / time.Duration(tps))
	return nil
}

// Draw renders the orbits, bodies, ship and HUD centred on the star.
func (v *Viewer) Draw(screen *ebiten.Image) {
	screen.Fill(colornames.Black)
	t := v.last.SimTime

	star := v.registry.Star()
	sx, sy := v.project(mgl64.Vec3{})
	vector.DrawFilledCircle(screen, sx, sy, float32(2.5*v.scale), v.palette[star.ID], true)

	for _, body := range v.registry.Bodies() {
		vector.StrokeCircle(screen, sx, sy, float32(body.Radius*v.scale), 1, colornames.Dimgray, true)
		bx, by := v.project(body.PositionAt(t))
		radius := float32(body.Size * v.scale)
		vector.DrawFilledCircle(screen, bx, by, radius, v.palette[body.ID], true)
		if v.last.HasSelection && v.last.Selected == body.ID {
			vector.StrokeCircle(screen, bx, by, radius+4, 2, colornames.White, true)
		}
		v.label(screen, body.Content.Name, bx+radius+4, by-6, colornames.Lightgray)
	}

	//1.- The ship is a short heading line from its position along the yaw direction.
	agent := v.last.Agent
	ax, ay := v.project(agent.Position)
	heading := agent.Rotation.Rotate(physics.Forward)
	hx, hy := v.project(agent.Position.Add(heading.Mul(2)))
	vector.StrokeLine(screen, ax, ay, hx, hy, 2, colornames.Orange, true)
	vector.DrawFilledCircle(screen, ax, ay, 4, colornames.White, true)

	for idx, line := range v.hudLines() {
		v.label(screen, line, 12, float32(12+idx*lineHeight), colornames.White)
	}
}

// Layout fixes the logical canvas size.
func (v *Viewer) Layout(int, int) (int, int) {
	return ScreenWidth, ScreenHeight
}

// Visited lists the bodies selected so far in first-visit order.
func (v *Viewer) Visited() []string {
	return append([]string(nil), v.visited...)
}

func (v *Viewer) project(p mgl64.Vec3) (float32, float32) {
	return project(p, v.scale, ScreenWidth, ScreenHeight)
}

func (v *Viewer) label(screen *ebiten.Image, msg string, x, y float32, clr color.Color) {
	v.glyphs.draw(screen, msg, float64(x), float64(y), clr)
}

func (v *Viewer) hudLines() []string {
	out := v.last
	speed := out.Agent.Velocity.Len()
	lines := []string{
		fmt.Sprintf("tick %d  t=%.1fs  mode %s", out.Tick, out.SimTime, out.Mode),
		fmt.Sprintf("pos %.1f %.1f %.1f  speed %.2f", out.Agent.Position.X(), out.Agent.Position.Y(), out.Agent.Position.Z(), speed),
	}
	if out.HasSelection {
		if body, ok := v.registry.Lookup(out.Selected); ok {
			lines = append(lines, fmt.Sprintf("near %s: %s", body.Content.Name, body.Content.Title))
		}
	}
	lines = append(lines, fmt.Sprintf("visited %d/%d", len(v.visited), v.registry.Len()))
	lines = append(lines, "WASD/arrows fly  space/shift climb  0-"+strconv.Itoa(min(9, v.registry.Len()))+" warp  R reset  wheel zoom")
	return lines
}

// project maps world x/z onto the screen with the star at the centre; y is dropped.
func project(p mgl64.Vec3, scale float64, width, height int) (float32, float32) {
	return float32(float64(width)/2 + p.X()*scale), float32(float64(height)/2 + p.Z()*scale)
}

func clampScale(scale float64) float64 {
	return max(minScale, min(maxScale, scale))
}

// parseColor reads #RRGGBB, falling back when the value is malformed.
func parseColor(hex string, fallback color.Color) color.Color {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(hex) != 6 {
		return fallback
	}
	value, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return fallback
	}
	return color.RGBA{R: uint8(value >> 16), G: uint8(value >> 8), B: uint8(value), A: 0xff}
}
