package keypad

import (
	"fmt"
	"image"
)

// Display geometry of the 240x320 portrait panel.
const (
	DisplayWidth  = 240
	DisplayHeight = 320
)

// Source list geometry.
const (
	ListTop   = 36
	RowHeight = 40
	PageSize  = 6
)

// Rect is a half-open rectangle in screen pixels.
type Rect struct {
	X, Y, W, H int
}

// Contains reports whether (px, py) lies inside r: x0 <= px < x0+w and
// y0 <= py < y0+h.
func (r Rect) Contains(px, py int) bool {
	return px >= r.X && px < r.X+r.W && py >= r.Y && py < r.Y+r.H
}

// Overlaps reports whether r and o share at least one pixel.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W && r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// Center returns the middle pixel of r.
func (r Rect) Center() (int, int) {
	return r.X + r.W/2, r.Y + r.H/2
}

// Image converts r to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// RegionName names a visual or touchable area.
type RegionName string

const (
	RegionSourceBar RegionName = "source_bar"
	RegionMain      RegionName = "main"
	RegionAlbumArt  RegionName = "album_art"
	RegionMetadata  RegionName = "metadata"
	RegionWarning   RegionName = "warning"
	RegionMute1     RegionName = "mute1"
	RegionVolume1   RegionName = "volume1"
	RegionMute2     RegionName = "mute2"
	RegionVolume2   RegionName = "volume2"

	RegionStreamList     RegionName = "stream_list"
	RegionPrev           RegionName = "prev"
	RegionCancel         RegionName = "cancel"
	RegionOpenSettings   RegionName = "settings"
	RegionNext           RegionName = "next"
	RegionZone1Minus     RegionName = "zone1_minus"
	RegionZone1Plus      RegionName = "zone1_plus"
	RegionZone2Minus     RegionName = "zone2_minus"
	RegionZone2Plus      RegionName = "zone2_plus"
	RegionSourceMinus    RegionName = "source_minus"
	RegionSourcePlus     RegionName = "source_plus"
	RegionResetNetwork   RegionName = "reset_network"
	RegionRecalibrate    RegionName = "recalibrate"
	RegionSave           RegionName = "save"
	RegionSettingsCancel RegionName = "settings_cancel"
)

// Region is a named rectangle on one screen. Zone is the zone index (0 or 1)
// for mute and volume regions and -1 otherwise.
type Region struct {
	Name  RegionName
	Rect  Rect
	Touch bool
	Zone  int
}

// Settings screen rows, top to bottom.
var settingsRowY = [3]int{40, 84, 128}

// Layout is the static region table for one device configuration.
type Layout struct {
	dual    bool
	regions map[Screen][]Region
}

// NewLayout builds the region table. dual selects the two-zone metadata
// screen with upper and lower mute/volume bands.
func NewLayout(dual bool) *Layout {
	l := &Layout{dual: dual, regions: make(map[Screen][]Region, len(Screens))}

	metadata := []Region{
		{Name: RegionSourceBar, Rect: Rect{0, 0, 240, 36}, Touch: true, Zone: -1},
		{Name: RegionAlbumArt, Rect: Rect{60, 36, 120, 120}, Zone: -1},
	}
	if dual {
		metadata = append(metadata,
			Region{Name: RegionMain, Rect: Rect{0, 36, 240, 184}, Zone: -1},
			Region{Name: RegionMetadata, Rect: Rect{0, 156, 240, 64}, Zone: -1},
			Region{Name: RegionWarning, Rect: Rect{0, 220, 240, 20}, Zone: -1},
			Region{Name: RegionMute1, Rect: Rect{0, 240, 36, 36}, Touch: true, Zone: 0},
			Region{Name: RegionVolume1, Rect: Rect{40, 240, 160, 40}, Touch: true, Zone: 0},
			Region{Name: RegionMute2, Rect: Rect{0, 280, 36, 36}, Touch: true, Zone: 1},
			Region{Name: RegionVolume2, Rect: Rect{40, 280, 160, 40}, Touch: true, Zone: 1},
		)
	} else {
		metadata = append(metadata,
			Region{Name: RegionMain, Rect: Rect{0, 36, 240, 220}, Zone: -1},
			Region{Name: RegionMetadata, Rect: Rect{0, 156, 240, 104}, Zone: -1},
			Region{Name: RegionWarning, Rect: Rect{0, 260, 240, 20}, Zone: -1},
			Region{Name: RegionMute1, Rect: Rect{0, 280, 36, 36}, Touch: true, Zone: 0},
			Region{Name: RegionVolume1, Rect: Rect{40, 280, 160, 40}, Touch: true, Zone: 0},
		)
	}
	l.regions[ScreenMetadata] = metadata

	l.regions[ScreenSourceSelect] = []Region{
		{Name: RegionSourceBar, Rect: Rect{0, 0, 240, 36}, Zone: -1},
		{Name: RegionMain, Rect: Rect{0, 36, 240, 284}, Zone: -1},
		{Name: RegionStreamList, Rect: Rect{0, ListTop, 240, PageSize * RowHeight}, Touch: true, Zone: -1},
		{Name: RegionPrev, Rect: Rect{0, 280, 60, 40}, Touch: true, Zone: -1},
		{Name: RegionCancel, Rect: Rect{60, 280, 60, 40}, Touch: true, Zone: -1},
		{Name: RegionOpenSettings, Rect: Rect{120, 280, 60, 40}, Touch: true, Zone: -1},
		{Name: RegionNext, Rect: Rect{180, 280, 60, 40}, Touch: true, Zone: -1},
	}

	steppers := [3][2]RegionName{
		{RegionZone1Minus, RegionZone1Plus},
		{RegionZone2Minus, RegionZone2Plus},
		{RegionSourceMinus, RegionSourcePlus},
	}
	settings := []Region{
		{Name: RegionSourceBar, Rect: Rect{0, 0, 240, 36}, Zone: -1},
		{Name: RegionMain, Rect: Rect{0, 36, 240, 284}, Zone: -1},
	}
	for i, names := range steppers {
		y := settingsRowY[i]
		settings = append(settings,
			Region{Name: names[0], Rect: Rect{130, y, 40, 36}, Touch: true, Zone: -1},
			Region{Name: names[1], Rect: Rect{190, y, 40, 36}, Touch: true, Zone: -1},
		)
	}
	settings = append(settings,
		Region{Name: RegionResetNetwork, Rect: Rect{10, 172, 220, 36}, Touch: true, Zone: -1},
		Region{Name: RegionRecalibrate, Rect: Rect{10, 216, 220, 36}, Touch: true, Zone: -1},
		Region{Name: RegionSave, Rect: Rect{0, 280, 120, 40}, Touch: true, Zone: -1},
		Region{Name: RegionSettingsCancel, Rect: Rect{120, 280, 120, 40}, Touch: true, Zone: -1},
	)
	l.regions[ScreenSettings] = settings

	return l
}

// Dual reports whether the layout carries a second zone band.
func (l *Layout) Dual() bool {
	return l.dual
}

// Regions returns the regions of a screen in table order.
func (l *Layout) Regions(screen Screen) []Region {
	return l.regions[screen]
}

// Region looks up a region by name.
func (l *Layout) Region(screen Screen, name RegionName) (Region, bool) {
	for _, r := range l.regions[screen] {
		if r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

// HitTest returns the touchable region containing (x, y).
func (l *Layout) HitTest(screen Screen, x, y int) (Region, bool) {
	for _, r := range l.regions[screen] {
		if r.Touch && r.Rect.Contains(x, y) {
			return r, true
		}
	}
	return Region{}, false
}

// Validate checks that no two touchable regions of a screen overlap and
// that every region lies on the display.
func (l *Layout) Validate() error {
	display := Rect{0, 0, DisplayWidth, DisplayHeight}
	for _, screen := range Screens {
		regions := l.regions[screen]
		for i, a := range regions {
			if a.Rect.X < 0 || a.Rect.Y < 0 || a.Rect.X+a.Rect.W > display.W || a.Rect.Y+a.Rect.H > display.H {
				return fmt.Errorf("%s: region %s %v is off screen", screen, a.Name, a.Rect)
			}
			if !a.Touch {
				continue
			}
			for _, b := range regions[i+1:] {
				if b.Touch && a.Rect.Overlaps(b.Rect) {
					return fmt.Errorf("%s: touch regions %s and %s overlap", screen, a.Name, b.Name)
				}
			}
		}
	}
	return nil
}

// RowRect returns the rectangle of source list row i (0..PageSize-1).
func RowRect(i int) Rect {
	return Rect{0, ListTop + i*RowHeight, DisplayWidth, RowHeight}
}

// SettingsRowY returns the top of settings row i: zone 1, zone 2, source.
func SettingsRowY(i int) int {
	return settingsRowY[i]
}
