package keypad

import (
	"image"
	"time"
)

// LocalInputName labels the local analog input in the source bar and list.
const LocalInputName = "Local Input"

// WarningText is shown while the AmpliPi cannot be reached.
const WarningText = "Unable to access AmpliPi"

// Stepper bounds on the settings screen.
const (
	MinZoneID    = 0
	MaxZoneID    = 3
	ZoneDisabled = -1
	MinSourceID  = 0
	MaxSourceID  = 3
)

// ZoneState is the cached state of one controlled zone.
type ZoneState struct {
	ID            int     `json:"id"`
	Muted         bool    `json:"muted"`
	VolumePercent float64 `json:"volume_percent"`
	// Known is false until the first successful fetch.
	Known bool `json:"known"`
}

// Metadata is the cached now-playing information of the configured source.
type Metadata struct {
	SourceName  string `json:"source_name"`
	Artist      string `json:"artist"`
	Song        string `json:"song"`
	Album       string `json:"album"`
	Status      string `json:"status"`
	AlbumArtRef string `json:"album_art_ref"`
	StreamID    string `json:"stream_id,omitempty"`
}

// DiffMetadata returns the elements that must be redrawn to move the
// display from old to next.
func DiffMetadata(old, next Metadata) DirtySet {
	var d DirtySet
	if old.Artist != next.Artist || old.Song != next.Song || old.Status != next.Status {
		d.Mark(ElementMetadata)
	}
	if old.AlbumArtRef != next.AlbumArtRef {
		d.Mark(ElementAlbumArt)
	}
	if old.SourceName != next.SourceName {
		d.Mark(ElementSourceBar)
	}
	return d
}

// StreamItem is one selectable row on the source select screen.
type StreamItem struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// DeviceConfig holds the zone and source identifiers the keypad controls.
// Zone2 == ZoneDisabled means single-zone operation.
type DeviceConfig struct {
	Zone1  int `json:"zone1"`
	Zone2  int `json:"zone2"`
	Source int `json:"source"`
}

// Dual reports whether a second zone is configured.
func (c DeviceConfig) Dual() bool {
	return c.Zone2 != ZoneDisabled
}

// Clamped returns c with every field forced into its valid range.
func (c DeviceConfig) Clamped() DeviceConfig {
	return DeviceConfig{
		Zone1:  clampInt(c.Zone1, MinZoneID, MaxZoneID),
		Zone2:  clampInt(c.Zone2, ZoneDisabled, MaxZoneID),
		Source: clampInt(c.Source, MinSourceID, MaxSourceID),
	}
}

// AppState is the keypad state. It is owned by the Controller goroutine.
type AppState struct {
	Screen Screen
	Layout *Layout
	Device DeviceConfig

	Zones    []ZoneState
	Metadata Metadata
	AlbumArt image.Image

	Streams []StreamItem
	Offset  int

	Pending DeviceConfig

	Warning        bool
	Notice         string
	NoticeExpires  time.Time
	RefreshEnabled bool
	NextRefresh    time.Time

	Dirty DirtySet
}

func newAppState(device DeviceConfig) *AppState {
	s := &AppState{Screen: ScreenMetadata, RefreshEnabled: true}
	s.applyDevice(device)
	return s
}

// applyDevice selects the layout and zone caches for a configuration.
func (s *AppState) applyDevice(device DeviceConfig) {
	device = device.Clamped()
	s.Device = device
	s.Layout = NewLayout(device.Dual())
	s.Zones = []ZoneState{{ID: device.Zone1}}
	if device.Dual() {
		s.Zones = append(s.Zones, ZoneState{ID: device.Zone2})
	}
}

// resetMetadata forgets cached now-playing data so the next refresh redraws
// every field.
func (s *AppState) resetMetadata() {
	s.Metadata = Metadata{}
	s.AlbumArt = nil
}

// invalidate marks every element the current screen shows.
func (s *AppState) invalidate() {
	s.Dirty.Mark(ElementMainArea, ElementSourceBar, ElementWarning)
	switch s.Screen {
	case ScreenMetadata:
		s.Dirty.Mark(ElementMetadata, ElementAlbumArt)
		for i := range s.Zones {
			s.Dirty.Mark(MuteElement(i), VolumeElement(i))
		}
	case ScreenSourceSelect:
		s.Dirty.Mark(ElementSourceList)
	case ScreenSettings:
		s.Dirty.Mark(ElementSettings)
	}
}

// pageItems returns the stream rows visible at the current offset.
func (s *AppState) pageItems() []StreamItem {
	if s.Offset >= len(s.Streams) {
		return nil
	}
	end := s.Offset + PageSize
	if end > len(s.Streams) {
		end = len(s.Streams)
	}
	return s.Streams[s.Offset:end]
}

// Snapshot is an immutable view of AppState for the control plane.
type Snapshot struct {
	Screen   Screen       `json:"screen"`
	Dual     bool         `json:"dual"`
	Device   DeviceConfig `json:"device"`
	Zones    []ZoneState  `json:"zones"`
	Metadata Metadata     `json:"metadata"`
	HasArt   bool         `json:"has_album_art"`
	Streams  []StreamItem `json:"streams,omitempty"`
	Offset   int          `json:"offset"`
	Pending  DeviceConfig `json:"pending"`
	Warning  bool         `json:"warning"`
	Notice   string       `json:"notice,omitempty"`
	Refresh  bool         `json:"refresh_enabled"`
	Updated  time.Time    `json:"updated_at"`
	Sequence uint64       `json:"sequence"`
}

func (s *AppState) snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		Screen:   s.Screen,
		Dual:     s.Layout.Dual(),
		Device:   s.Device,
		Zones:    append([]ZoneState(nil), s.Zones...),
		Metadata: s.Metadata,
		HasArt:   s.AlbumArt != nil,
		Offset:   s.Offset,
		Pending:  s.Pending,
		Warning:  s.Warning,
		Notice:   s.Notice,
		Refresh:  s.RefreshEnabled,
		Updated:  now,
	}
	if s.Screen == ScreenSourceSelect {
		snap.Streams = append([]StreamItem(nil), s.Streams...)
	}
	return snap
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TruncateLabel shortens a song or artist label of 19 or more characters
// to its first 18 characters followed by "...".
func TruncateLabel(s string) string {
	r := []rune(s)
	if len(r) >= 19 {
		return string(r[:18]) + "..."
	}
	return s
}
