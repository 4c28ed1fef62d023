package keypad

import (
	"context"

	"github.com/strefethen/amplipi-keypad-go/internal/amplipi"
)

// Refresh fetches every configured zone and the configured source, then
// marks the elements whose cached values changed. A failed fetch leaves its
// caches untouched. The warning is settled once for the whole cycle, so a
// single zone that keeps failing holds it up.
func (c *Controller) Refresh(ctx context.Context) {
	var cycle fetchCycle
	for i := range c.state.Zones {
		c.refreshZone(ctx, i, &cycle)
	}
	c.refreshSource(ctx, &cycle)
	c.settleWarning(cycle)
}

// fetchCycle remembers the first fetch that failed during one refresh.
type fetchCycle struct {
	path string
	err  error
}

func (f *fetchCycle) failed() bool { return f.err != nil }

func (c *Controller) refreshZone(ctx context.Context, i int, cycle *fetchCycle) {
	s := c.state
	z := &s.Zones[i]
	zone, err := c.api.Zone(ctx, z.ID)
	if err != nil {
		c.fetchFailed(cycle, zonePath(z.ID), err)
		return
	}

	percent := PercentFromDB(zone.Vol)
	if !z.Known || z.Muted != zone.Mute {
		z.Muted = zone.Mute
		s.Dirty.Mark(MuteElement(i), VolumeElement(i))
	}
	if !z.Known || z.VolumePercent != percent {
		z.VolumePercent = percent
		s.Dirty.Mark(VolumeElement(i))
	}
	z.Known = true
}

func (c *Controller) refreshSource(ctx context.Context, cycle *fetchCycle) {
	s := c.state
	source, err := c.api.Source(ctx, s.Device.Source)
	if err != nil {
		c.fetchFailed(cycle, sourcePath(s.Device.Source), err)
		return
	}

	next := Metadata{SourceName: source.Name}
	ref := amplipi.ParseStreamRef(source.Input)
	switch ref.Kind {
	case amplipi.StreamLocal:
		next.SourceName = LocalInputName
	case amplipi.StreamNamed:
		stream, err := c.api.Stream(ctx, ref.ID)
		if err != nil {
			c.fetchFailed(cycle, "streams/"+ref.ID, err)
			return
		}
		next = Metadata{
			SourceName:  stream.Name,
			Artist:      stream.Info.Artist,
			Song:        stream.Info.Song,
			Album:       stream.Info.Album,
			Status:      stream.Status,
			AlbumArtRef: stream.Info.ImgURL,
			StreamID:    ref.ID,
		}
	}

	c.reconcileMetadata(ctx, next, cycle)
}

// reconcileMetadata diffs next against the cache, downloads album art when
// its reference changed and marks the changed elements.
func (c *Controller) reconcileMetadata(ctx context.Context, next Metadata, cycle *fetchCycle) {
	s := c.state
	dirty := DiffMetadata(s.Metadata, next)
	if dirty.Has(ElementAlbumArt) {
		s.AlbumArt = nil
		if next.AlbumArtRef != "" && next.StreamID != "" {
			img, err := c.api.StreamImage(ctx, next.StreamID)
			switch {
			case err == nil:
				s.AlbumArt = img
			case amplipi.IsMalformed(err):
				c.logger.Printf("Album art for stream %s could not be decoded: %v", next.StreamID, err)
			default:
				c.fetchFailed(cycle, "streams/image/"+next.StreamID, err)
				// Forget the reference so the download is retried next tick.
				next.AlbumArtRef = ""
			}
		}
	}
	s.Metadata = next
	s.Dirty.Merge(dirty)
}

// fetchFailed logs a failed fetch and, for transport and status failures,
// notes it in cycle. Malformed bodies are only logged.
func (c *Controller) fetchFailed(cycle *fetchCycle, path string, err error) {
	if amplipi.IsMalformed(err) {
		c.logger.Printf("Malformed AmpliPi response for %q: %v", path, err)
		return
	}
	c.logger.Printf("AmpliPi fetch %q failed: %v", path, err)
	if !cycle.failed() {
		cycle.path, cycle.err = path, err
	}
}

// settleWarning raises or clears the warning from a finished cycle. The
// first failure of an outage is audited; later cycles of the same outage
// are not.
func (c *Controller) settleWarning(cycle fetchCycle) {
	if !cycle.failed() {
		c.setWarning(false)
		return
	}
	if !c.state.Warning {
		c.record(AuditEvent{
			Type:    EventAPIFetchFailed,
			Message: cycle.path,
			Failed:  true,
			Payload: map[string]any{"error": cycle.err.Error()},
		})
	}
	c.setWarning(true)
}
