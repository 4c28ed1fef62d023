package ui

import (
	"image"
	"image/color"
)

// Palette, defined in RGB565 so colors survive a round trip through the
// framebuffer unchanged.
var (
	Black = RGBA(0x0000)
	White = RGBA(0xFFFF)
	Grey  = RGBA(0x5AEB)
	Blue  = RGBA(0x9DFF)
	Red   = RGBA(0xF800)
	Amber = RGBA(0xFDA0)
	Slate = RGBA(0x10A3)
)

func (f *Framebuffer) rectOutline(r image.Rectangle, c color.RGBA) {
	if r.Empty() {
		return
	}
	x0, y0, x1, y1 := r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1
	f.line(x0, y0, x1, y0, c)
	f.line(x0, y1, x1, y1, c)
	f.line(x0, y0, x0, y1, c)
	f.line(x1, y0, x1, y1, c)
}

// line draws with Bresenham's algorithm.
func (f *Framebuffer) line(x0, y0, x1, y1 int, c color.RGBA) {
	p := RGB565(c)
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		f.set565(x0, y0, p)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func (f *Framebuffer) circle(cx, cy, r int, c color.RGBA, fill bool) {
	p := RGB565(c)
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			d := x*x + y*y
			if fill {
				if d <= r*r {
					f.set565(cx+x, cy+y, p)
				}
			} else if d >= (r-1)*(r-1) && d <= r*r {
				f.set565(cx+x, cy+y, p)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
