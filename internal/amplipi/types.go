package amplipi

import "strings"

// Zone is the subset of GET /api/zones/{id} the keypad reads.
type Zone struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	SourceID int    `json:"source_id"`
	Mute     bool   `json:"mute"`
	// Vol is the zone volume in dB, MinVolumeDB..0.
	Vol      int  `json:"vol"`
	Disabled bool `json:"disabled"`
}

// Source is the subset of GET /api/sources/{id} the keypad reads.
type Source struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Input string `json:"input"`
}

// StreamInfo carries now-playing metadata. Any field may hold the literal
// string "null"; use Normalized before comparing.
type StreamInfo struct {
	Name   string `json:"name"`
	State  string `json:"state"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Song   string `json:"song"`
	ImgURL string `json:"img_url"`
}

// Stream is the subset of GET /api/streams/{id} the keypad reads.
type Stream struct {
	ID     int        `json:"id"`
	Name   string     `json:"name"`
	Type   string     `json:"type"`
	Status string     `json:"status"`
	Info   StreamInfo `json:"info"`
}

// Normalized returns a copy with "null" placeholders replaced by "".
func (s Stream) Normalized() Stream {
	s.Name = NormalizeNull(s.Name)
	s.Type = NormalizeNull(s.Type)
	s.Status = NormalizeNull(s.Status)
	s.Info.Name = NormalizeNull(s.Info.Name)
	s.Info.State = NormalizeNull(s.Info.State)
	s.Info.Artist = NormalizeNull(s.Info.Artist)
	s.Info.Album = NormalizeNull(s.Info.Album)
	s.Info.Song = NormalizeNull(s.Info.Song)
	s.Info.ImgURL = NormalizeNull(s.Info.ImgURL)
	return s
}

// Status is the root listing returned by GET /api/.
type Status struct {
	Sources []Source `json:"sources"`
	Zones   []Zone   `json:"zones"`
	Streams []Stream `json:"streams"`
}

// ZoneUpdate is the PATCH body for /api/zones/{id}. Nil fields are omitted.
type ZoneUpdate struct {
	Mute *bool `json:"mute,omitempty"`
	Vol  *int  `json:"vol,omitempty"`
}

// SourceUpdate is the PATCH body for /api/sources/{id}.
type SourceUpdate struct {
	Input *string `json:"input,omitempty"`
}

// NormalizeNull maps the literal "null" to the empty string.
func NormalizeNull(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), "null") {
		return ""
	}
	return s
}
