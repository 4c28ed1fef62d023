package monitor

import (
	"github.com/strefethen/amplipi-keypad-go/internal/keypad"
)

// volumeStep is the change one key press makes, in percent.
const volumeStep = 10

// touchForKey maps a key press to the panel coordinates a finger would
// press on the screen snap shows. ok is false for keys with no meaning there.
func touchForKey(snap keypad.Snapshot, key string) (x, y int, ok bool) {
	layout := keypad.NewLayout(snap.Dual)

	center := func(name keypad.RegionName) (int, int, bool) {
		r, found := layout.Region(snap.Screen, name)
		if !found || !r.Touch {
			return 0, 0, false
		}
		x, y := r.Rect.Center()
		return x, y, true
	}

	switch snap.Screen {
	case keypad.ScreenMetadata:
		switch key {
		case "s", "enter":
			return center(keypad.RegionSourceBar)
		case "m":
			return center(keypad.RegionMute1)
		case "M":
			return center(keypad.RegionMute2)
		case "+", "=", "up":
			return volumeTouch(layout, snap, 0, volumeStep)
		case "-", "down":
			return volumeTouch(layout, snap, 0, -volumeStep)
		case "]":
			return volumeTouch(layout, snap, 1, volumeStep)
		case "[":
			return volumeTouch(layout, snap, 1, -volumeStep)
		}

	case keypad.ScreenSourceSelect:
		switch key {
		case "1", "2", "3", "4", "5", "6":
			row := int(key[0] - '1')
			if snap.Offset+row >= len(snap.Streams) {
				return 0, 0, false
			}
			return keypad.DisplayWidth / 2, keypad.ListTop + row*keypad.RowHeight + keypad.RowHeight/2, true
		case "left", "p":
			return center(keypad.RegionPrev)
		case "right", "n":
			return center(keypad.RegionNext)
		case "esc", "c":
			return center(keypad.RegionCancel)
		case ",":
			return center(keypad.RegionOpenSettings)
		}

	case keypad.ScreenSettings:
		switch key {
		case "a":
			return center(keypad.RegionZone1Plus)
		case "z":
			return center(keypad.RegionZone1Minus)
		case "s":
			return center(keypad.RegionZone2Plus)
		case "x":
			return center(keypad.RegionZone2Minus)
		case "d":
			return center(keypad.RegionSourcePlus)
		case "c":
			return center(keypad.RegionSourceMinus)
		case "enter":
			return center(keypad.RegionSave)
		case "esc":
			return center(keypad.RegionSettingsCancel)
		case "R":
			return center(keypad.RegionResetNetwork)
		case "K":
			return center(keypad.RegionRecalibrate)
		}
	}
	return 0, 0, false
}

// volumeTouch presses the volume bar of zone i at its current level moved
// by delta percent.
func volumeTouch(layout *keypad.Layout, snap keypad.Snapshot, i int, delta float64) (int, int, bool) {
	if i >= len(snap.Zones) || !snap.Zones[i].Known {
		return 0, 0, false
	}
	name := keypad.RegionVolume1
	if i == 1 {
		name = keypad.RegionVolume2
	}
	r, found := layout.Region(keypad.ScreenMetadata, name)
	if !found {
		return 0, 0, false
	}

	target := snap.Zones[i].VolumePercent + delta
	x := keypad.XFromPercent(target)
	if x < r.Rect.X {
		x = r.Rect.X
	}
	if x > r.Rect.X+r.Rect.W-1 {
		x = r.Rect.X + r.Rect.W - 1
	}
	_, y := r.Rect.Center()
	return x, y, true
}
