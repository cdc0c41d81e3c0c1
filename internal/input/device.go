package input

import (
	"math"
	"sort"
	"sync"
)

// Movement keys held by navigation. StopNavigation releases all of them.
const (
	KeyForward  = "keyW"
	KeyLeft     = "keyA"
	KeyBackward = "keyS"
	KeyRight    = "keyD"
	KeySprint   = "shiftLeft"
	KeyInteract = "keyE"
	KeyCancel   = "keyX"
	KeyJump     = "space"
)

var MovementKeys = []string{KeyForward, KeyLeft, KeyBackward, KeyRight, KeySprint}

// DefaultKeys are created at construction so the host sees a stable key set
// from the first frame.
var DefaultKeys = []string{
	KeyForward, KeyLeft, KeyBackward, KeyRight,
	KeyInteract, KeyCancel, "keyC", "keyF", "keyR", "keyQ", "keyZ",
	KeyJump, KeySprint, "shiftRight", "controlLeft", "altLeft",
	"tab", "enter", "escape", "backspace",
	"digit1", "digit2", "digit3", "digit4", "digit5",
	"mouseLeft", "mouseRight", "mouseWheel",
}

// ButtonState is a tracked virtual key. Down is level-triggered; Pressed and
// Released are edge flags that live for exactly one host frame.
type ButtonState struct {
	Down     bool
	Pressed  bool
	Released bool
}

type Pointer struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	DeltaX float64 `json:"dx"`
	DeltaY float64 `json:"dy"`
	Locked bool    `json:"locked"`
}

type Stick struct {
	X float64
	Y float64
}

// Device is the registry of virtual buttons and auxiliary controls the host
// engine reads once per frame.
type Device struct {
	mu      sync.Mutex
	buttons map[string]*ButtonState
	pointer Pointer
	sticks  map[string]Stick
	camera  *CameraRig
}

func NewDevice(keys ...string) *Device {
	if len(keys) == 0 {
		keys = DefaultKeys
	}
	d := &Device{
		buttons: make(map[string]*ButtonState, len(keys)),
		sticks: map[string]Stick{
			"left":  {},
			"right": {},
		},
		camera: NewCameraRig(),
	}
	for _, k := range keys {
		d.buttons[k] = &ButtonState{}
	}
	return d
}

// SetKey updates the level state of name, raising Pressed on a down edge and
// Released on an up edge. Unknown keys are created on first use.
func (d *Device) SetKey(name string, down bool) {
	if d == nil || name == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	b := d.buttonLocked(name)
	if down && !b.Down {
		b.Pressed = true
	}
	if !down && b.Down {
		b.Released = true
	}
	b.Down = down
}

// MarkPressed raises the Pressed edge without touching Down.
func (d *Device) MarkPressed(name string) {
	if d == nil || name == "" {
		return
	}
	d.mu.Lock()
	d.buttonLocked(name).Pressed = true
	d.mu.Unlock()
}

// MarkReleased raises the Released edge without touching Down.
func (d *Device) MarkReleased(name string) {
	if d == nil || name == "" {
		return
	}
	d.mu.Lock()
	d.buttonLocked(name).Released = true
	d.mu.Unlock()
}

// ResetEdges clears Pressed and Released on every button. The host calls it
// once per frame after reading the device.
func (d *Device) ResetEdges() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range d.buttons {
		b.Pressed = false
		b.Released = false
	}
	d.pointer.DeltaX = 0
	d.pointer.DeltaY = 0
}

func (d *Device) Button(name string) (ButtonState, bool) {
	if d == nil {
		return ButtonState{}, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buttons[name]
	if !ok {
		return ButtonState{}, false
	}
	return *b, true
}

func (d *Device) IsDown(name string) bool {
	b, _ := d.Button(name)
	return b.Down
}

func (d *Device) Snapshot() map[string]ButtonState {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]ButtonState, len(d.buttons))
	for name, b := range d.buttons {
		out[name] = *b
	}
	return out
}

func (d *Device) Keys() []string {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	names := make([]string, 0, len(d.buttons))
	for name := range d.buttons {
		names = append(names, name)
	}
	d.mu.Unlock()
	sort.Strings(names)
	return names
}

// DownKeys lists the keys currently held, sorted.
func (d *Device) DownKeys() []string {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	var names []string
	for name, b := range d.buttons {
		if b.Down {
			names = append(names, name)
		}
	}
	d.mu.Unlock()
	sort.Strings(names)
	return names
}

func (d *Device) Pointer() Pointer {
	if d == nil {
		return Pointer{}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pointer
}

// MovePointer moves the pointer to (x, y), accumulating the frame delta.
func (d *Device) MovePointer(x, y float64) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pointer.DeltaX += x - d.pointer.X
	d.pointer.DeltaY += y - d.pointer.Y
	d.pointer.X = x
	d.pointer.Y = y
}

func (d *Device) SetPointerLocked(locked bool) {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.pointer.Locked = locked
	d.mu.Unlock()
}

func (d *Device) Stick(name string) (Stick, bool) {
	if d == nil {
		return Stick{}, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sticks[name]
	return s, ok
}

// SetStick clamps each axis to [-1, 1]; non-finite axes read as 0.
func (d *Device) SetStick(name string, x, y float64) {
	if d == nil || name == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sticks[name] = Stick{X: clampAxis(x), Y: clampAxis(y)}
}

func (d *Device) Camera() *CameraRig {
	if d == nil {
		return nil
	}
	return d.camera
}

func (d *Device) buttonLocked(name string) *ButtonState {
	b, ok := d.buttons[name]
	if !ok {
		b = &ButtonState{}
		d.buttons[name] = b
	}
	return b
}

// clampAxis maps non-finite input to 0.
func clampAxis(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
