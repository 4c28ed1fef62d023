package hw

import (
	"errors"
	"math"
)

// Point is a touch or screen coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Calibration maps raw controller coordinates to screen pixels with an
// independent scale and offset per axis.
type Calibration struct {
	XScale  float64 `json:"x_scale"`
	YScale  float64 `json:"y_scale"`
	XOffset float64 `json:"x_offset"`
	YOffset float64 `json:"y_offset"`
}

// Identity passes raw coordinates through unchanged.
var Identity = Calibration{XScale: 1, YScale: 1}

var (
	ErrPointsTooClose = errors.New("touch points too close, retry calibration")
	ErrInvalidScale   = errors.New("invalid scale computed, retry calibration")
)

// Valid reports whether both scales are usable.
func (c Calibration) Valid() bool {
	return c.XScale != 0 && c.YScale != 0
}

// Apply maps a raw point into a w x h screen, clamping to its edges.
func (c Calibration) Apply(x, y, w, h int) (int, int) {
	cx := int(math.Round(float64(x)*c.XScale + c.XOffset))
	cy := int(math.Round(float64(y)*c.YScale + c.YOffset))
	return clamp(cx, 0, w-1), clamp(cy, 0, h-1)
}

// Targets returns the three calibration targets for a w x h screen. The
// first two share a row and the first and third share a column offset, so
// each axis is solved from one pair.
func Targets(w, h int) [3]Point {
	return [3]Point{
		{X: 20, Y: 40},
		{X: w - 20, Y: 40},
		{X: w / 2, Y: h - 40},
	}
}

// Compute solves the calibration from raw readings taken at targets.
func Compute(raw, targets [3]Point) (Calibration, error) {
	dx := float64(raw[1].X - raw[0].X)
	dy := float64(raw[2].Y - raw[0].Y)
	if math.Abs(dx) < 2 || math.Abs(dy) < 2 {
		return Calibration{}, ErrPointsTooClose
	}
	xScale := float64(targets[1].X-targets[0].X) / dx
	yScale := float64(targets[2].Y-targets[0].Y) / dy
	if math.Abs(xScale) > 3 || math.Abs(yScale) > 3 {
		return Calibration{}, ErrInvalidScale
	}
	return Calibration{
		XScale:  xScale,
		YScale:  yScale,
		XOffset: float64(targets[0].X) - float64(raw[0].X)*xScale,
		YOffset: float64(targets[0].Y) - float64(raw[0].Y)*yScale,
	}, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
