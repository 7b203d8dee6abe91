package control

import "sync"

// Mouse buttons reported by the window.
const (
	MouseLeft uint8 = iota
	MouseRight
	MouseMiddle
)

// Input is the keyboard and mouse state. The window goroutine writes it and the control
// goroutine reads it, so every method locks.
type Input struct {
	mu      sync.Mutex
	keys    map[uint32]bool
	pressed map[uint32]bool
	buttons [3]bool
	x, y    int32
	scroll  float32
}

// NewInput returns an empty input state.
func NewInput() *Input {
	return &Input{keys: make(map[uint32]bool), pressed: make(map[uint32]bool)}
}

// KeyDown records a key press.
func (in *Input) KeyDown(code uint32) {
	in.mu.Lock()
	if !in.keys[code] {
		in.pressed[code] = true
	}
	in.keys[code] = true
	in.mu.Unlock()
}

// KeyUp records a key release.
func (in *Input) KeyUp(code uint32) {
	in.mu.Lock()
	delete(in.keys, code)
	in.mu.Unlock()
}

// Key reports whether a key is held.
func (in *Input) Key(code uint32) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.keys[code]
}

// KeyPressed reports whether a key went down since the last call for that key.
func (in *Input) KeyPressed(code uint32) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	p := in.pressed[code]
	delete(in.pressed, code)
	return p
}

// MouseMove records the cursor position.
func (in *Input) MouseMove(x, y int32) {
	in.mu.Lock()
	in.x, in.y = x, y
	in.mu.Unlock()
}

// SetButton records a mouse button state.
func (in *Input) SetButton(button uint8, down bool, x, y int32) {
	if int(button) >= len(in.buttons) {
		return
	}
	in.mu.Lock()
	in.buttons[button] = down
	in.x, in.y = x, y
	in.mu.Unlock()
}

// Button reports whether a mouse button is held.
func (in *Input) Button(button uint8) bool {
	if int(button) >= len(in.buttons) {
		return false
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.buttons[button]
}

// Mouse returns the cursor position in pixels.
func (in *Input) Mouse() (int32, int32) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.x, in.y
}

// Scroll accumulates scroll wheel movement.
func (in *Input) Scroll(delta float32) {
	in.mu.Lock()
	in.scroll += delta
	in.mu.Unlock()
}

// TakeScroll returns the scroll accumulated since the last call and resets it.
func (in *Input) TakeScroll() float32 {
	in.mu.Lock()
	defer in.mu.Unlock()
	s := in.scroll
	in.scroll = 0
	return s
}
