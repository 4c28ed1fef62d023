package ui

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"tinygo.org/x/drivers"
)

// Panel receives finished frames. pixels is row-major RGB565 with the given
// stride in pixels; only rect needs to be written.
type Panel interface {
	Flush(pixels []uint16, stride int, rect image.Rectangle) error
}

// NopPanel discards frames, for headless operation.
type NopPanel struct{}

func (NopPanel) Flush([]uint16, int, image.Rectangle) error { return nil }

// Framebuffer is a double-buffered RGB565 canvas. Drawing goes to the back
// buffer; Display copies it to the front buffer and pushes the changed
// rectangle to the panel. It satisfies both draw.Image and the tinygo
// drivers.Displayer interface so x/image and tinyfont can draw on it.
type Framebuffer struct {
	w, h  int
	back  []uint16
	dirty image.Rectangle
	panel Panel

	mu    sync.RWMutex
	front []uint16
}

var (
	_ drivers.Displayer = (*Framebuffer)(nil)
	_ draw.Image        = (*Framebuffer)(nil)
)

// NewFramebuffer creates a black w x h framebuffer.
func NewFramebuffer(w, h int, panel Panel) *Framebuffer {
	if panel == nil {
		panel = NopPanel{}
	}
	return &Framebuffer{
		w:     w,
		h:     h,
		back:  make([]uint16, w*h),
		front: make([]uint16, w*h),
		panel: panel,
		dirty: image.Rect(0, 0, w, h),
	}
}

// Size implements drivers.Displayer.
func (f *Framebuffer) Size() (int16, int16) {
	return int16(f.w), int16(f.h)
}

// SetPixel implements drivers.Displayer.
func (f *Framebuffer) SetPixel(x, y int16, c color.RGBA) {
	f.set565(int(x), int(y), RGB565(c))
}

// Display implements drivers.Displayer.
func (f *Framebuffer) Display() error {
	if f.dirty.Empty() {
		return nil
	}
	rect := f.dirty
	f.mu.Lock()
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		row := y * f.w
		copy(f.front[row+rect.Min.X:row+rect.Max.X], f.back[row+rect.Min.X:row+rect.Max.X])
	}
	f.mu.Unlock()
	f.dirty = image.Rectangle{}
	return f.panel.Flush(f.back, f.w, rect)
}

// ColorModel implements image.Image.
func (f *Framebuffer) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements image.Image.
func (f *Framebuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.w, f.h)
}

// At returns the back buffer pixel at (x, y).
func (f *Framebuffer) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= f.w || y >= f.h {
		return color.RGBA{}
	}
	return RGBA(f.back[y*f.w+x])
}

// Set implements draw.Image.
func (f *Framebuffer) Set(x, y int, c color.Color) {
	f.set565(x, y, RGB565(color.RGBAModel.Convert(c).(color.RGBA)))
}

func (f *Framebuffer) set565(x, y int, p uint16) {
	if x < 0 || y < 0 || x >= f.w || y >= f.h {
		return
	}
	f.back[y*f.w+x] = p
	f.markDirty(image.Rect(x, y, x+1, y+1))
}

// Fill paints r with c.
func (f *Framebuffer) Fill(r image.Rectangle, c color.RGBA) {
	r = r.Intersect(f.Bounds())
	if r.Empty() {
		return
	}
	p := RGB565(c)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := f.back[y*f.w+r.Min.X : y*f.w+r.Max.X]
		for i := range row {
			row[i] = p
		}
	}
	f.markDirty(r)
}

func (f *Framebuffer) markDirty(r image.Rectangle) {
	if f.dirty.Empty() {
		f.dirty = r
		return
	}
	f.dirty = f.dirty.Union(r)
}

// Dirty returns the area changed since the last Display.
func (f *Framebuffer) Dirty() image.Rectangle {
	return f.dirty
}

// Snapshot returns a copy of the last displayed frame.
func (f *Framebuffer) Snapshot() *image.RGBA {
	img := image.NewRGBA(f.Bounds())
	f.mu.RLock()
	defer f.mu.RUnlock()
	for i, p := range f.front {
		c := RGBA(p)
		o := i * 4
		img.Pix[o] = c.R
		img.Pix[o+1] = c.G
		img.Pix[o+2] = c.B
		img.Pix[o+3] = 0xFF
	}
	return img
}

// RGB565 packs c into the panel's 16-bit format.
func RGB565(c color.RGBA) uint16 {
	return uint16((uint16(c.R>>3)&0x1F)<<11 | (uint16(c.G>>2)&0x3F)<<5 | (uint16(c.B>>3) & 0x1F))
}

// RGBA expands an RGB565 pixel, replicating high bits into the low ones.
func RGBA(p uint16) color.RGBA {
	r := uint8(p>>11) & 0x1F
	g := uint8(p>>5) & 0x3F
	b := uint8(p) & 0x1F
	return color.RGBA{R: r<<3 | r>>2, G: g<<2 | g>>4, B: b<<3 | b>>2, A: 0xFF}
}
