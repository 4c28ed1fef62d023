package ui

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freesans"
	"tinygo.org/x/tinyfont/proggy"

	"github.com/strefethen/amplipi-keypad-go/internal/keypad"
)

var (
	fontLarge  tinyfont.Fonter = &freesans.Regular18pt7b
	fontMedium tinyfont.Fonter = &freesans.Regular12pt7b
	fontSmall  tinyfont.Fonter = &freesans.Regular9pt7b
	fontTiny   tinyfont.Fonter = &proggy.TinySZ8pt7b
)

// Renderer draws keypad regions onto a Framebuffer.
type Renderer struct {
	fb     *Framebuffer
	icons  map[string]image.Image
	logger *log.Logger
}

// NewRenderer creates a renderer. icons may be nil.
func NewRenderer(fb *Framebuffer, icons map[string]image.Image, logger *log.Logger) *Renderer {
	if logger == nil {
		logger = log.Default()
	}
	if icons == nil {
		icons = map[string]image.Image{}
	}
	return &Renderer{fb: fb, icons: icons, logger: logger}
}

var _ keypad.Renderer = (*Renderer)(nil)

// Framebuffer returns the canvas the renderer draws on.
func (r *Renderer) Framebuffer() *Framebuffer {
	return r.fb
}

func (r *Renderer) DrawSplash() {
	r.fb.Fill(r.fb.Bounds(), Black)
	r.textCentered(fontLarge, keypad.DisplayWidth/2, 150, "AmpliPi", White)
	r.textCentered(fontMedium, keypad.DisplayWidth/2, 190, "Welcome", Grey)
}

func (r *Renderer) ClearMain(rect keypad.Rect) {
	r.fb.Fill(rect.Image(), Black)
}

func (r *Renderer) DrawSourceBar(rect keypad.Rect, title string, alert bool) {
	r.fb.Fill(rect.Image(), Black)
	ink := White
	if alert {
		ink = Red
	}
	iconX := rect.X + rect.W - 36
	r.text(fontMedium, rect.X+5, rect.Y+26, fitText(fontMedium, title, iconX-rect.X-10), ink)
	if !r.icon(IconSource, iconX, rect.Y) {
		// Three list lines.
		for i := 0; i < 3; i++ {
			y := rect.Y + 11 + i*7
			r.fb.Fill(image.Rect(iconX+8, y, iconX+28, y+3), White)
		}
	}
	r.fb.Fill(image.Rect(rect.X, rect.Y+rect.H-1, rect.X+rect.W, rect.Y+rect.H), Grey)
}

func (r *Renderer) DrawAlbumArt(rect keypad.Rect, img image.Image) {
	dst := rect.Image()
	if img == nil {
		r.fb.Fill(dst, Slate)
		r.fb.rectOutline(dst, Grey)
		cx, cy := rect.Center()
		r.fb.circle(cx-8, cy+14, 8, Grey, true)
		r.fb.Fill(image.Rect(cx-1, cy-22, cx+1, cy+14), Grey)
		r.fb.Fill(image.Rect(cx-1, cy-22, cx+14, cy-18), Grey)
		return
	}
	if img.Bounds().Dx() == rect.W && img.Bounds().Dy() == rect.H {
		draw.Draw(r.fb, dst, img, img.Bounds().Min, draw.Src)
		return
	}
	xdraw.CatmullRom.Scale(r.fb, dst, img, img.Bounds(), xdraw.Src, nil)
}

func (r *Renderer) DrawMetadata(rect keypad.Rect, md keypad.Metadata) {
	r.fb.Fill(rect.Image(), Black)
	cx := rect.X + rect.W/2
	r.textCentered(fontMedium, cx, rect.Y+26, keypad.TruncateLabel(md.Song), White)
	r.fb.Fill(image.Rect(20, rect.Y+36, 220, rect.Y+37), Grey)
	artist := keypad.TruncateLabel(md.Artist)
	if rect.H >= 100 {
		r.textCentered(fontMedium, cx, rect.Y+61, artist, White)
		if md.Status != "" && md.Status != "playing" {
			r.textCentered(fontTiny, cx, rect.Y+84, md.Status, Grey)
		}
		return
	}
	r.textCentered(fontSmall, cx, rect.Y+56, artist, White)
}

func (r *Renderer) DrawMute(rect keypad.Rect, muted bool) {
	r.fb.Fill(rect.Image(), Black)
	name := IconVolumeUp
	if muted {
		name = IconVolumeOff
	}
	if r.icon(name, rect.X, rect.Y) {
		return
	}

	ink := White
	if muted {
		ink = Grey
	}
	x, y := rect.X+6, rect.Y+12
	r.fb.Fill(image.Rect(x, y, x+6, y+12), ink)
	for i := 0; i < 8; i++ {
		r.fb.line(x+6+i, y-i, x+6+i, y+11+i, ink)
	}
	if muted {
		r.fb.line(x+17, y, x+27, y+11, Red)
		r.fb.line(x+27, y, x+17, y+11, Red)
		return
	}
	r.fb.line(x+18, y+1, x+18, y+10, ink)
	r.fb.line(x+22, y-2, x+22, y+13, ink)
}

// DrawVolume draws the bar and a knob at the fill position. The 150px bar
// sits 5px inside the 160px touch region.
func (r *Renderer) DrawVolume(rect keypad.Rect, percent float64, muted bool) {
	r.fb.Fill(rect.Image(), Black)
	barX0 := rect.X + 5
	barX1 := rect.X + rect.W - 5
	barY := rect.Y + 15

	fill := keypad.XFromPercent(percent) - keypad.VolumeOriginX + rect.X
	if fill < barX0 {
		fill = barX0
	}
	if fill > barX1 {
		fill = barX1
	}

	active := Blue
	if muted {
		active = Grey
	}
	r.fb.Fill(image.Rect(barX0, barY, barX1, barY+6), Grey)
	r.fb.Fill(image.Rect(barX0, barY, fill, barY+6), active)
	r.fb.circle(fill, barY+3, 7, White, true)
}

func (r *Renderer) DrawWarning(rect keypad.Rect, text string) {
	r.fb.Fill(rect.Image(), Black)
	if text == "" {
		return
	}
	ink := Amber
	if text == keypad.WarningText {
		ink = Red
	}
	w := font.MeasureString(basicfont.Face7x13, text).Round()
	x := rect.X + (rect.W-w)/2
	if x < rect.X {
		x = rect.X
	}
	r.basicText(x, rect.Y+rect.H-5, text, ink)
}

func (r *Renderer) DrawSourceList(layout *keypad.Layout, items []keypad.StreamItem, offset int) {
	for i, item := range items {
		row := keypad.RowRect(i)
		r.fb.Fill(row.Image(), Black)
		r.text(fontMedium, row.X+10, row.Y+28, fitText(fontMedium, item.DisplayName, row.W-20), White)
		r.fb.Fill(image.Rect(row.X+5, row.Y+row.H-1, row.X+row.W-5, row.Y+row.H), Grey)
	}
	for i := len(items); i < keypad.PageSize; i++ {
		r.fb.Fill(keypad.RowRect(i).Image(), Black)
	}

	prevInk := White
	if offset == 0 {
		prevInk = Grey
	}
	r.button(layout, keypad.ScreenSourceSelect, keypad.RegionPrev, IconPrev, "<", prevInk)
	r.button(layout, keypad.ScreenSourceSelect, keypad.RegionCancel, IconCancel, "X", White)
	r.button(layout, keypad.ScreenSourceSelect, keypad.RegionOpenSettings, IconSettings, "Set", White)
	r.button(layout, keypad.ScreenSourceSelect, keypad.RegionNext, IconNext, ">", White)
}

func (r *Renderer) DrawSettings(layout *keypad.Layout, pending keypad.DeviceConfig) {
	rows := []struct {
		label       string
		value       int
		minus, plus keypad.RegionName
	}{
		{"Zone 1", pending.Zone1, keypad.RegionZone1Minus, keypad.RegionZone1Plus},
		{"Zone 2", pending.Zone2, keypad.RegionZone2Minus, keypad.RegionZone2Plus},
		{"Source", pending.Source, keypad.RegionSourceMinus, keypad.RegionSourcePlus},
	}
	for i, row := range rows {
		y := keypad.SettingsRowY(i)
		r.fb.Fill(image.Rect(0, y, keypad.DisplayWidth, y+36), Black)
		r.text(fontSmall, 10, y+24, row.label, White)
		value := fmt.Sprintf("%d", row.value)
		if row.value == keypad.ZoneDisabled {
			value = "Off"
		}
		r.textCentered(fontSmall, 180, y+24, value, Blue)
		r.button(layout, keypad.ScreenSettings, row.minus, "", "-", White)
		r.button(layout, keypad.ScreenSettings, row.plus, "", "+", White)
	}
	r.button(layout, keypad.ScreenSettings, keypad.RegionResetNetwork, "", "Reset Network", Red)
	r.button(layout, keypad.ScreenSettings, keypad.RegionRecalibrate, "", "Recalibrate Touch", Amber)
	r.button(layout, keypad.ScreenSettings, keypad.RegionSave, "", "Save", Blue)
	r.button(layout, keypad.ScreenSettings, keypad.RegionSettingsCancel, "", "Cancel", White)
}

func (r *Renderer) Present() error {
	return r.fb.Display()
}

// button draws a region as an outlined box with an icon or a centered label.
func (r *Renderer) button(layout *keypad.Layout, screen keypad.Screen, name keypad.RegionName, icon, label string, ink color.RGBA) {
	region, ok := layout.Region(screen, name)
	if !ok {
		return
	}
	rect := region.Rect
	r.fb.Fill(rect.Image(), Black)
	if icon != "" {
		if img, ok := r.icons[icon]; ok {
			b := img.Bounds()
			x := rect.X + (rect.W-b.Dx())/2
			y := rect.Y + (rect.H-b.Dy())/2
			draw.Draw(r.fb, image.Rect(x, y, x+b.Dx(), y+b.Dy()), img, b.Min, draw.Src)
			return
		}
	}
	r.fb.rectOutline(image.Rect(rect.X+2, rect.Y+2, rect.X+rect.W-2, rect.Y+rect.H-2), Grey)
	cx, _ := rect.Center()
	r.textCentered(fontSmall, cx, rect.Y+rect.H/2+6, label, ink)
}

// icon draws a loaded icon with its top-left corner at (x, y).
func (r *Renderer) icon(name string, x, y int) bool {
	img, ok := r.icons[name]
	if !ok {
		return false
	}
	b := img.Bounds()
	draw.Draw(r.fb, image.Rect(x, y, x+b.Dx(), y+b.Dy()), img, b.Min, draw.Src)
	return true
}

// text draws s with its baseline at y.
func (r *Renderer) text(f tinyfont.Fonter, x, y int, s string, c color.RGBA) {
	if s == "" {
		return
	}
	tinyfont.WriteLine(r.fb, f, int16(x), int16(y), s, c)
}

func (r *Renderer) textCentered(f tinyfont.Fonter, cx, y int, s string, c color.RGBA) {
	if s == "" {
		return
	}
	_, w := tinyfont.LineWidth(f, s)
	r.text(f, cx-int(w)/2, y, s, c)
}

func (r *Renderer) basicText(x, y int, s string, c color.RGBA) {
	d := font.Drawer{
		Dst:  r.fb,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// fitText trims s with a trailing "..." until it fits in maxWidth pixels.
func fitText(f tinyfont.Fonter, s string, maxWidth int) string {
	if _, w := tinyfont.LineWidth(f, s); int(w) <= maxWidth {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + "..."
		if _, w := tinyfont.LineWidth(f, candidate); int(w) <= maxWidth {
			return candidate
		}
	}
	return ""
}
