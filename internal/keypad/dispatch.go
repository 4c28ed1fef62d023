package keypad

import (
	"context"
	"fmt"
	"strconv"

	"github.com/strefethen/amplipi-keypad-go/internal/amplipi"
)

// Dispatch maps a touch at (x, y) on the current screen to at most one
// action and at most one API write. It reports whether an action ran; only
// those touches are audited.
func (c *Controller) Dispatch(ctx context.Context, x, y int) bool {
	s := c.state
	region, ok := s.Layout.HitTest(s.Screen, x, y)
	if !ok {
		return false
	}

	screen := s.Screen
	var hit bool
	switch screen {
	case ScreenMetadata:
		hit = c.dispatchMetadata(ctx, region, x)
	case ScreenSourceSelect:
		hit = c.dispatchSourceSelect(ctx, region, y)
	case ScreenSettings:
		hit = c.dispatchSettings(ctx, region)
	}
	if hit {
		// Attributed to the screen that was touched, not the one it led to.
		c.auditor.Record(AuditEvent{
			Type:    EventTouchAction,
			Screen:  screen,
			Message: string(region.Name),
			Payload: map[string]any{"x": x, "y": y},
		})
	}
	return hit
}

func (c *Controller) dispatchMetadata(ctx context.Context, region Region, x int) bool {
	s := c.state
	switch region.Name {
	case RegionSourceBar:
		c.openSourceSelect(ctx)
		return true

	case RegionMute1, RegionMute2:
		if region.Zone >= len(s.Zones) {
			return false
		}
		z := &s.Zones[region.Zone]
		z.Muted = !z.Muted
		s.Dirty.Mark(MuteElement(region.Zone), VolumeElement(region.Zone))
		muted := z.Muted
		err := c.api.UpdateZone(ctx, z.ID, amplipi.ZoneUpdate{Mute: &muted})
		c.afterWrite(zonePath(z.ID), region.Zone, err)
		return true

	case RegionVolume1, RegionVolume2:
		if region.Zone >= len(s.Zones) {
			return false
		}
		z := &s.Zones[region.Zone]
		z.VolumePercent = PercentFromX(x)
		s.Dirty.Mark(VolumeElement(region.Zone))
		vol := DBFromPercent(z.VolumePercent)
		err := c.api.UpdateZone(ctx, z.ID, amplipi.ZoneUpdate{Vol: &vol})
		c.afterWrite(zonePath(z.ID), region.Zone, err)
		return true
	}
	return false
}

func (c *Controller) dispatchSourceSelect(ctx context.Context, region Region, y int) bool {
	s := c.state
	switch region.Name {
	case RegionStreamList:
		idx := s.Offset + (y-ListTop)/RowHeight
		if idx < 0 || idx >= len(s.Streams) {
			return false
		}
		item := s.Streams[idx]
		input := amplipi.StreamInput(item.ID)
		err := c.api.UpdateSource(ctx, s.Device.Source, amplipi.SourceUpdate{Input: &input})
		c.afterWrite(sourcePath(s.Device.Source), -1, err)
		c.logger.Printf("Source %d switched to %s (%s)", s.Device.Source, item.DisplayName, input)
		c.showMetadata(true)
		return true

	case RegionPrev:
		s.Offset -= PageSize
		if s.Offset < 0 {
			s.Offset = 0
		}
		s.Dirty.Mark(ElementSourceList)
		return true

	case RegionNext:
		s.Offset += PageSize
		s.Dirty.Mark(ElementSourceList)
		return true

	case RegionCancel:
		c.showMetadata(false)
		return true

	case RegionOpenSettings:
		s.Screen = ScreenSettings
		s.Pending = s.Device
		s.invalidate()
		return true
	}
	return false
}

func (c *Controller) dispatchSettings(ctx context.Context, region Region) bool {
	s := c.state
	p := &s.Pending
	switch region.Name {
	case RegionZone1Minus:
		p.Zone1 = clampInt(p.Zone1-1, MinZoneID, MaxZoneID)
	case RegionZone1Plus:
		p.Zone1 = clampInt(p.Zone1+1, MinZoneID, MaxZoneID)
	case RegionZone2Minus:
		p.Zone2 = clampInt(p.Zone2-1, ZoneDisabled, MaxZoneID)
	case RegionZone2Plus:
		p.Zone2 = clampInt(p.Zone2+1, ZoneDisabled, MaxZoneID)
	case RegionSourceMinus:
		p.Source = clampInt(p.Source-1, MinSourceID, MaxSourceID)
	case RegionSourcePlus:
		p.Source = clampInt(p.Source+1, MinSourceID, MaxSourceID)

	case RegionResetNetwork:
		c.resetDevice(ctx, "reset network settings", func(ctx context.Context) error {
			return c.store.Reset(ctx)
		})
		return true

	case RegionRecalibrate:
		c.resetDevice(ctx, "clear touch calibration", func(ctx context.Context) error {
			return c.store.ClearCalibration(ctx)
		})
		return true

	case RegionSave:
		cfg := p.Clamped()
		event := AuditEvent{
			Type:    EventSettingsSaved,
			Message: fmt.Sprintf("zone1=%d zone2=%d source=%d", cfg.Zone1, cfg.Zone2, cfg.Source),
		}
		if c.store != nil {
			if err := c.store.SaveDevice(ctx, cfg); err != nil {
				c.logger.Printf("Failed to persist device settings: %v", err)
				event.Failed = true
				event.Payload = map[string]any{"error": err.Error()}
			}
		}
		c.record(event)
		c.applyDevice(cfg)
		c.showMetadata(true)
		return true

	case RegionSettingsCancel:
		s.Pending = s.Device
		c.showMetadata(false)
		return true

	default:
		return false
	}

	s.Dirty.Mark(ElementSettings)
	return true
}

// resetDevice clears persisted state through wipe and restarts the process.
func (c *Controller) resetDevice(ctx context.Context, what string, wipe func(context.Context) error) {
	event := AuditEvent{Type: EventDeviceReset, Message: what}
	if c.store == nil {
		c.logger.Printf("No settings store, cannot %s", what)
	} else if err := wipe(ctx); err != nil {
		c.logger.Printf("Failed to %s: %v", what, err)
		event.Failed = true
		event.Payload = map[string]any{"error": err.Error()}
	}
	c.record(event)

	if c.restarter == nil {
		c.logger.Printf("No restarter configured, continuing after %s", what)
		return
	}
	c.logger.Printf("Restarting after %s", what)
	if err := c.restarter.Restart(); err != nil {
		c.logger.Printf("Restart failed: %v", err)
	}
}

// openSourceSelect halts refresh and loads the stream list once. The list
// always starts with the local input.
func (c *Controller) openSourceSelect(ctx context.Context) {
	s := c.state
	s.Screen = ScreenSourceSelect
	s.RefreshEnabled = false
	s.Offset = 0
	s.Streams = []StreamItem{{ID: amplipi.LocalInput, DisplayName: LocalInputName}}

	var cycle fetchCycle
	status, err := c.api.Status(ctx)
	if err != nil {
		c.fetchFailed(&cycle, "", err)
	} else {
		for _, st := range status.Streams {
			id := strconv.Itoa(st.ID)
			name := st.Name
			if name == "" {
				name = "Stream " + id
			}
			s.Streams = append(s.Streams, StreamItem{ID: id, DisplayName: name})
		}
	}
	c.settleWarning(cycle)
	s.invalidate()
}

// showMetadata returns to the metadata screen and resumes refresh. With
// reload the cached metadata is dropped and a refresh is due immediately.
func (c *Controller) showMetadata(reload bool) {
	s := c.state
	s.Screen = ScreenMetadata
	s.RefreshEnabled = true
	if reload {
		s.resetMetadata()
		s.NextRefresh = c.clock.Now()
	}
	s.invalidate()
}

// afterWrite handles the outcome of a PATCH. Local state is never rolled
// back; the next refresh reconciles it.
func (c *Controller) afterWrite(path string, zone int, err error) {
	if err == nil {
		c.setWarning(false)
		return
	}
	c.logger.Printf("AmpliPi write %s failed: %v", path, err)
	c.setWarning(true)
	event := AuditEvent{
		Type:    EventAPIWriteFailed,
		Message: path,
		Failed:  true,
		Payload: map[string]any{"error": err.Error()},
	}
	if zone >= 0 && zone < len(c.state.Zones) {
		id := c.state.Zones[zone].ID
		event.Zone = &id
	}
	c.record(event)
}

func zonePath(id int) string {
	return "zones/" + strconv.Itoa(id)
}

func sourcePath(id int) string {
	return "sources/" + strconv.Itoa(id)
}
