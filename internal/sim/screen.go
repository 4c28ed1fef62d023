// Package sim runs the keypad against a desktop window instead of the SPI
// panel and touch controller.
package sim

import (
	"image"
	"sync"

	"github.com/strefethen/amplipi-keypad-go/internal/ui"
)

// Screen is an RGBA mirror of the panel plus the pointer state. It
// implements ui.Panel and keypad.TouchSource so the keypad loop can drive it
// like real hardware while the window goroutine reads it.
type Screen struct {
	w, h int

	mu      sync.Mutex
	pix     []byte
	changed bool
	down    bool
	px, py  int
}

func NewScreen(w, h int) *Screen {
	s := &Screen{w: w, h: h, pix: make([]byte, w*h*4)}
	for i := 3; i < len(s.pix); i += 4 {
		s.pix[i] = 0xFF
	}
	return s
}

func (s *Screen) Size() (int, int) {
	return s.w, s.h
}

// Flush copies rect from an RGB565 framebuffer into the RGBA mirror.
func (s *Screen) Flush(pixels []uint16, stride int, rect image.Rectangle) error {
	rect = rect.Intersect(image.Rect(0, 0, s.w, s.h))
	if rect.Empty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			c := ui.RGBA(pixels[y*stride+x])
			j := (y*s.w + x) * 4
			s.pix[j+0] = c.R
			s.pix[j+1] = c.G
			s.pix[j+2] = c.B
			s.pix[j+3] = 0xFF
		}
	}
	s.changed = true
	return nil
}

// Touch reports the pointer position while the button is held.
func (s *Screen) Touch() (int, int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.down {
		return 0, 0, false, nil
	}
	return s.px, s.py, true, nil
}

// SetPointer records the pointer in screen coordinates. Presses outside the
// screen are ignored.
func (s *Screen) SetPointer(x, y int, down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if down && (x < 0 || y < 0 || x >= s.w || y >= s.h) {
		down = false
	}
	s.down, s.px, s.py = down, x, y
}

// copyIfChanged copies the mirror into dst when a flush landed since the
// last call.
func (s *Screen) copyIfChanged(dst []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.changed {
		return false
	}
	copy(dst, s.pix)
	s.changed = false
	return true
}
