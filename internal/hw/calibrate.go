package hw

import (
	"context"
	"fmt"
	"image"
	"log"
	"time"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freesans"

	"github.com/strefethen/amplipi-keypad-go/internal/ui"
)

const calibrationAttempts = 3

// Calibrate shows three crosshairs on fb, samples raw at each and solves the
// calibration. A bad solve restarts the sequence, up to three attempts.
func Calibrate(ctx context.Context, fb *ui.Framebuffer, raw RawReader, poll time.Duration, logger *log.Logger) (Calibration, error) {
	if logger == nil {
		logger = log.Default()
	}
	w, h := fb.Size()
	targets := Targets(int(w), int(h))

	var lastErr error
	for attempt := 1; attempt <= calibrationAttempts; attempt++ {
		var samples [3]Point
		for i, target := range targets {
			drawTarget(fb, target, i)
			if err := fb.Display(); err != nil {
				return Calibration{}, err
			}
			p, err := capturePress(ctx, raw, poll)
			if err != nil {
				return Calibration{}, err
			}
			samples[i] = p
			logger.Printf("calib: captured step %d raw=(%d,%d)", i+1, p.X, p.Y)
		}

		cal, err := Compute(samples, targets)
		if err == nil {
			logger.Printf("calib: solved %+v", cal)
			return cal, nil
		}
		logger.Printf("calib: attempt %d failed: %v", attempt, err)
		lastErr = err
	}
	return Calibration{}, fmt.Errorf("calibration failed after %d attempts: %w", calibrationAttempts, lastErr)
}

// capturePress waits for a press, then averages samples until release.
func capturePress(ctx context.Context, raw RawReader, poll time.Duration) (Point, error) {
	var sx, sy, n int
	for {
		p, ok, err := raw.Raw()
		if err != nil {
			return Point{}, err
		}
		if ok {
			sx += p.X
			sy += p.Y
			n++
		} else if n > 0 {
			return Point{X: sx / n, Y: sy / n}, nil
		}

		select {
		case <-ctx.Done():
			return Point{}, ctx.Err()
		case <-time.After(poll):
		}
	}
}

func drawTarget(fb *ui.Framebuffer, target Point, step int) {
	fb.Fill(fb.Bounds(), ui.Black)
	tinyfont.WriteLine(fb, &freesans.Regular9pt7b, 30, 160, "Touch the crosshair", ui.White)
	tinyfont.WriteLine(fb, &freesans.Regular9pt7b, 95, 185, fmt.Sprintf("%d of 3", step+1), ui.Grey)

	x, y := target.X, target.Y
	fb.Fill(image.Rect(x-10, y, x+11, y+1), ui.Red)
	fb.Fill(image.Rect(x, y-10, x+1, y+11), ui.Red)
}
