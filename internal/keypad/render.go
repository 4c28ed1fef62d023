package keypad

// drawOrder is the order elements are drawn in a frame. The main area
// clears first so the elements drawn over it survive.
var drawOrder = []Element{
	ElementMainArea,
	ElementSourceBar,
	ElementAlbumArt,
	ElementMetadata,
	ElementMute1,
	ElementVolume1,
	ElementMute2,
	ElementVolume2,
	ElementWarning,
	ElementSourceList,
	ElementSettings,
}

// Flush draws every dirty element the current screen shows, clearing each
// flag right after its draw call, and presents the frame. Flags of elements
// the screen does not show stay set. It reports whether anything was drawn.
func (c *Controller) Flush() bool {
	s := c.state
	drawn := false
	for _, e := range drawOrder {
		if !s.Dirty.Has(e) || !c.shows(e) {
			continue
		}
		c.draw(e)
		s.Dirty.Clear(e)
		drawn = true
	}
	if drawn {
		if err := c.renderer.Present(); err != nil {
			c.logger.Printf("Present failed: %v", err)
		}
	}
	return drawn
}

func (c *Controller) shows(e Element) bool {
	s := c.state
	switch e {
	case ElementMainArea, ElementSourceBar:
		return true
	}
	switch s.Screen {
	case ScreenMetadata:
		switch e {
		case ElementMetadata, ElementAlbumArt, ElementMute1, ElementVolume1, ElementWarning:
			return true
		case ElementMute2, ElementVolume2:
			return s.Layout.Dual()
		}
	case ScreenSourceSelect:
		return e == ElementSourceList
	case ScreenSettings:
		return e == ElementSettings
	}
	return false
}

func (c *Controller) rect(name RegionName) Rect {
	r, _ := c.state.Layout.Region(c.state.Screen, name)
	return r.Rect
}

func (c *Controller) draw(e Element) {
	s := c.state
	switch e {
	case ElementMainArea:
		c.renderer.ClearMain(c.rect(RegionMain))
	case ElementSourceBar:
		c.renderer.DrawSourceBar(c.rect(RegionSourceBar), c.sourceBarTitle(), s.Screen != ScreenMetadata && s.Warning)
	case ElementAlbumArt:
		c.renderer.DrawAlbumArt(c.rect(RegionAlbumArt), s.AlbumArt)
	case ElementMetadata:
		c.renderer.DrawMetadata(c.rect(RegionMetadata), s.Metadata)
	case ElementMute1:
		c.renderer.DrawMute(c.rect(RegionMute1), s.Zones[0].Muted)
	case ElementVolume1:
		c.renderer.DrawVolume(c.rect(RegionVolume1), s.Zones[0].VolumePercent, s.Zones[0].Muted)
	case ElementMute2:
		c.renderer.DrawMute(c.rect(RegionMute2), s.Zones[1].Muted)
	case ElementVolume2:
		c.renderer.DrawVolume(c.rect(RegionVolume2), s.Zones[1].VolumePercent, s.Zones[1].Muted)
	case ElementWarning:
		c.renderer.DrawWarning(c.rect(RegionWarning), c.statusText())
	case ElementSourceList:
		c.renderer.DrawSourceList(s.Layout, s.pageItems(), s.Offset)
	case ElementSettings:
		c.renderer.DrawSettings(s.Layout, s.Pending)
	}
}

func (c *Controller) sourceBarTitle() string {
	s := c.state
	switch s.Screen {
	case ScreenSourceSelect, ScreenSettings:
		if text := c.statusText(); text != "" {
			return text
		}
		if s.Screen == ScreenSettings {
			return "Settings"
		}
		return "Select Source"
	default:
		return s.Metadata.SourceName
	}
}
