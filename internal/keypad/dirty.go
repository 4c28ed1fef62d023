package keypad

import "strings"

// Element is one independently redrawable part of the display.
type Element uint16

const (
	ElementMainArea Element = 1 << iota
	ElementSourceBar
	ElementMetadata
	ElementAlbumArt
	ElementMute1
	ElementMute2
	ElementVolume1
	ElementVolume2
	ElementWarning
	ElementSourceList
	ElementSettings
)

var elementNames = []struct {
	e    Element
	name string
}{
	{ElementMainArea, "main"},
	{ElementSourceBar, "source_bar"},
	{ElementMetadata, "metadata"},
	{ElementAlbumArt, "album_art"},
	{ElementMute1, "mute1"},
	{ElementMute2, "mute2"},
	{ElementVolume1, "volume1"},
	{ElementVolume2, "volume2"},
	{ElementWarning, "warning"},
	{ElementSourceList, "source_list"},
	{ElementSettings, "settings"},
}

func (e Element) String() string {
	for _, n := range elementNames {
		if n.e == e {
			return n.name
		}
	}
	return "unknown"
}

// MuteElement returns the mute button element of zone index i.
func MuteElement(i int) Element {
	if i == 1 {
		return ElementMute2
	}
	return ElementMute1
}

// VolumeElement returns the volume bar element of zone index i.
func VolumeElement(i int) Element {
	if i == 1 {
		return ElementVolume2
	}
	return ElementVolume1
}

// DirtySet is the set of elements that need a redraw.
type DirtySet uint16

// Mark adds elements to the set.
func (d *DirtySet) Mark(elements ...Element) {
	for _, e := range elements {
		*d |= DirtySet(e)
	}
}

// Merge adds every element of o.
func (d *DirtySet) Merge(o DirtySet) {
	*d |= o
}

// Has reports whether e is in the set.
func (d DirtySet) Has(e Element) bool {
	return d&DirtySet(e) != 0
}

// Clear removes e from the set.
func (d *DirtySet) Clear(e Element) {
	*d &^= DirtySet(e)
}

// Empty reports whether nothing needs drawing.
func (d DirtySet) Empty() bool {
	return d == 0
}

// Elements lists the members in declaration order.
func (d DirtySet) Elements() []Element {
	var out []Element
	for _, n := range elementNames {
		if d.Has(n.e) {
			out = append(out, n.e)
		}
	}
	return out
}

func (d DirtySet) String() string {
	names := make([]string, 0, len(elementNames))
	for _, e := range d.Elements() {
		names = append(names, e.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}
