package keypad

import (
	"context"
	"image"
	"time"

	"github.com/strefethen/amplipi-keypad-go/internal/amplipi"
)

// API is the subset of the AmpliPi client the keypad uses.
type API interface {
	Zone(ctx context.Context, id int) (*amplipi.Zone, error)
	Source(ctx context.Context, id int) (*amplipi.Source, error)
	Stream(ctx context.Context, id string) (*amplipi.Stream, error)
	Status(ctx context.Context) (*amplipi.Status, error)
	StreamImage(ctx context.Context, id string) (image.Image, error)
	UpdateZone(ctx context.Context, id int, update amplipi.ZoneUpdate) error
	UpdateSource(ctx context.Context, id int, update amplipi.SourceUpdate) error
}

// Renderer draws named regions. Calls only happen for dirty elements; the
// frame becomes visible on Present.
type Renderer interface {
	DrawSplash()
	ClearMain(r Rect)
	// DrawSourceBar draws the title strip. alert marks the title as a
	// warning on screens without a warning strip.
	DrawSourceBar(r Rect, title string, alert bool)
	// DrawAlbumArt draws img scaled into r, or a blank tile when img is nil.
	DrawAlbumArt(r Rect, img image.Image)
	DrawMetadata(r Rect, md Metadata)
	DrawMute(r Rect, muted bool)
	DrawVolume(r Rect, percent float64, muted bool)
	// DrawWarning draws text in the warning strip; empty text clears it.
	DrawWarning(r Rect, text string)
	DrawSourceList(layout *Layout, items []StreamItem, offset int)
	DrawSettings(layout *Layout, pending DeviceConfig)
	Present() error
}

// TouchSource yields calibrated touch coordinates, one press per call.
type TouchSource interface {
	Touch() (x, y int, ok bool, err error)
}

// SettingsStore persists device configuration.
type SettingsStore interface {
	SaveDevice(ctx context.Context, cfg DeviceConfig) error
	// Reset clears persisted network and device configuration.
	Reset(ctx context.Context) error
	ClearCalibration(ctx context.Context) error
}

// Restarter restarts the keypad process.
type Restarter interface {
	Restart() error
}

// Audit event types recorded by the controller.
const (
	EventTouchAction    = "TOUCH_ACTION"
	EventAPIWriteFailed = "API_WRITE_FAILED"
	EventAPIFetchFailed = "API_FETCH_FAILED"
	EventSettingsSaved  = "SETTINGS_SAVED"
	EventDeviceReset    = "DEVICE_RESET"
)

// AuditEvent is one controller action worth keeping.
type AuditEvent struct {
	Type    string
	Screen  Screen
	Zone    *int
	Message string
	Failed  bool
	Payload map[string]any
}

// Auditor records controller actions.
type Auditor interface {
	Record(event AuditEvent)
}

// Publisher receives a snapshot after every frame that drew something.
type Publisher interface {
	Publish(snap Snapshot)
}

// Clock abstracts time for the keypad loop.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

type nopAuditor struct{}

func (nopAuditor) Record(AuditEvent) {}
