package hw

import (
	"sync"
)

// RawReader reads one uncalibrated sample from a touch controller. ok is
// false when nothing is pressed.
type RawReader interface {
	Raw() (p Point, ok bool, err error)
}

// Touchscreen applies a calibration to a RawReader and yields screen
// coordinates. It implements keypad.TouchSource.
type Touchscreen struct {
	raw  RawReader
	w, h int

	mu  sync.Mutex
	cal Calibration
}

// NewTouchscreen wraps raw for a w x h screen. An invalid calibration falls
// back to Identity.
func NewTouchscreen(raw RawReader, w, h int, cal Calibration) *Touchscreen {
	t := &Touchscreen{raw: raw, w: w, h: h}
	t.SetCalibration(cal)
	return t
}

func (t *Touchscreen) Touch() (int, int, bool, error) {
	p, ok, err := t.raw.Raw()
	if err != nil || !ok {
		return 0, 0, false, err
	}
	x, y := t.Calibration().Apply(p.X, p.Y, t.w, t.h)
	return x, y, true, nil
}

// Raw reads the controller without calibration.
func (t *Touchscreen) Raw() (Point, bool, error) {
	return t.raw.Raw()
}

func (t *Touchscreen) Calibration() Calibration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cal
}

func (t *Touchscreen) SetCalibration(cal Calibration) {
	if !cal.Valid() {
		cal = Identity
	}
	t.mu.Lock()
	t.cal = cal
	t.mu.Unlock()
}
