package keypad

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/strefethen/amplipi-keypad-go/internal/amplipi"
)

var errOffline = &amplipi.UnreachableError{Method: "GET", Path: "zones/0", Err: errors.New("connection refused")}

type fakeAPI struct {
	zones   map[int]amplipi.Zone
	sources map[int]amplipi.Source
	streams map[string]amplipi.Stream
	images  map[string]image.Image

	zoneErr   error
	sourceErr error
	streamErr error
	statusErr error
	imageErr  error
	writeErr  error

	calls        []string
	zoneUpdates  []amplipi.ZoneUpdate
	inputUpdates []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		zones:   map[int]amplipi.Zone{0: {ID: 0, Vol: -79}, 1: {ID: 1, Vol: -79}, 2: {ID: 2, Vol: -79}},
		sources: map[int]amplipi.Source{0: {ID: 0, Name: "Input 1", Input: "local"}},
		streams: map[string]amplipi.Stream{},
		images:  map[string]image.Image{},
	}
}

func (f *fakeAPI) Zone(_ context.Context, id int) (*amplipi.Zone, error) {
	f.calls = append(f.calls, "GET zones/"+strconv.Itoa(id))
	if f.zoneErr != nil {
		return nil, f.zoneErr
	}
	z, ok := f.zones[id]
	if !ok {
		return nil, &amplipi.RejectedError{Method: "GET", Path: "zones/" + strconv.Itoa(id), StatusCode: 404}
	}
	return &z, nil
}

func (f *fakeAPI) Source(_ context.Context, id int) (*amplipi.Source, error) {
	f.calls = append(f.calls, "GET sources/"+strconv.Itoa(id))
	if f.sourceErr != nil {
		return nil, f.sourceErr
	}
	s, ok := f.sources[id]
	if !ok {
		return nil, &amplipi.RejectedError{Method: "GET", Path: "sources/" + strconv.Itoa(id), StatusCode: 404}
	}
	return &s, nil
}

func (f *fakeAPI) Stream(_ context.Context, id string) (*amplipi.Stream, error) {
	f.calls = append(f.calls, "GET streams/"+id)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	s, ok := f.streams[id]
	if !ok {
		return nil, &amplipi.RejectedError{Method: "GET", Path: "streams/" + id, StatusCode: 404}
	}
	return &s, nil
}

func (f *fakeAPI) Status(_ context.Context) (*amplipi.Status, error) {
	f.calls = append(f.calls, "GET /")
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	status := &amplipi.Status{}
	for i := 0; i < len(f.streams); i++ {
		id := strconv.Itoa(1000 + i)
		if s, ok := f.streams[id]; ok {
			status.Streams = append(status.Streams, s)
		}
	}
	return status, nil
}

func (f *fakeAPI) StreamImage(_ context.Context, id string) (image.Image, error) {
	f.calls = append(f.calls, "GET streams/image/"+id)
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	return f.images[id], nil
}

func (f *fakeAPI) UpdateZone(_ context.Context, id int, update amplipi.ZoneUpdate) error {
	f.calls = append(f.calls, "PATCH zones/"+strconv.Itoa(id))
	f.zoneUpdates = append(f.zoneUpdates, update)
	return f.writeErr
}

func (f *fakeAPI) UpdateSource(_ context.Context, id int, update amplipi.SourceUpdate) error {
	f.calls = append(f.calls, "PATCH sources/"+strconv.Itoa(id))
	if update.Input != nil {
		f.inputUpdates = append(f.inputUpdates, *update.Input)
	}
	return f.writeErr
}

func (f *fakeAPI) reset() {
	f.calls = nil
	f.zoneUpdates = nil
	f.inputUpdates = nil
}

func (f *fakeAPI) called(call string) bool {
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

// addStreams registers n streams with ids 1000.. and names "Stream A"...
func (f *fakeAPI) addStreams(n int) {
	for i := 0; i < n; i++ {
		id := 1000 + i
		f.streams[strconv.Itoa(id)] = amplipi.Stream{ID: id, Name: fmt.Sprintf("Stream %c", 'A'+i)}
	}
}

type fakeRenderer struct {
	draws    []string
	presents int
	lastMeta Metadata
	lastBar  string
	lastWarn string
	lastList []StreamItem
	lastSet  DeviceConfig
}

func (r *fakeRenderer) DrawSplash() { r.draws = append(r.draws, "splash") }

func (r *fakeRenderer) ClearMain(Rect) { r.draws = append(r.draws, "main") }

func (r *fakeRenderer) DrawMute(Rect, bool) { r.draws = append(r.draws, "mute") }

func (r *fakeRenderer) DrawSourceBar(_ Rect, title string, _ bool) {
	r.draws = append(r.draws, "source_bar")
	r.lastBar = title
}

func (r *fakeRenderer) DrawAlbumArt(Rect, image.Image) {
	r.draws = append(r.draws, "album_art")
}

func (r *fakeRenderer) DrawMetadata(_ Rect, md Metadata) {
	r.draws = append(r.draws, "metadata")
	r.lastMeta = md
}

func (r *fakeRenderer) DrawVolume(Rect, float64, bool) {
	r.draws = append(r.draws, "volume")
}

func (r *fakeRenderer) DrawWarning(_ Rect, text string) {
	r.draws = append(r.draws, "warning")
	r.lastWarn = text
}

func (r *fakeRenderer) DrawSourceList(_ *Layout, items []StreamItem, _ int) {
	r.draws = append(r.draws, "source_list")
	r.lastList = items
}

func (r *fakeRenderer) DrawSettings(_ *Layout, pending DeviceConfig) {
	r.draws = append(r.draws, "settings")
	r.lastSet = pending
}

func (r *fakeRenderer) Present() error {
	r.presents++
	return nil
}

func (r *fakeRenderer) reset() {
	r.draws = nil
	r.presents = 0
}

type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeTouch struct {
	points [][2]int
	err    error
}

func (t *fakeTouch) Touch() (int, int, bool, error) {
	if t.err != nil {
		return 0, 0, false, t.err
	}
	if len(t.points) == 0 {
		return 0, 0, false, nil
	}
	p := t.points[0]
	t.points = t.points[1:]
	return p[0], p[1], true, nil
}

type fakeStore struct {
	saved       []DeviceConfig
	resets      int
	calibClears int
	err         error
}

func (s *fakeStore) SaveDevice(_ context.Context, cfg DeviceConfig) error {
	s.saved = append(s.saved, cfg)
	return s.err
}

func (s *fakeStore) Reset(context.Context) error {
	s.resets++
	return s.err
}

func (s *fakeStore) ClearCalibration(context.Context) error {
	s.calibClears++
	return s.err
}

type fakeRestarter struct{ restarts int }

func (r *fakeRestarter) Restart() error {
	r.restarts++
	return nil
}

type fakeAuditor struct{ events []AuditEvent }

func (a *fakeAuditor) Record(e AuditEvent) { a.events = append(a.events, e) }

func (a *fakeAuditor) types() []string {
	out := make([]string, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Type)
	}
	return out
}

type fakePublisher struct{ snaps []Snapshot }

func (p *fakePublisher) Publish(s Snapshot) { p.snaps = append(p.snaps, s) }

type harness struct {
	api       *fakeAPI
	renderer  *fakeRenderer
	clock     *fakeClock
	store     *fakeStore
	restarter *fakeRestarter
	auditor   *fakeAuditor
	publisher *fakePublisher
	touch     *fakeTouch
	ctrl      *Controller
}

func newHarness(device DeviceConfig) *harness {
	h := &harness{
		api:       newFakeAPI(),
		renderer:  &fakeRenderer{},
		clock:     newFakeClock(),
		store:     &fakeStore{},
		restarter: &fakeRestarter{},
		auditor:   &fakeAuditor{},
		publisher: &fakePublisher{},
		touch:     &fakeTouch{},
	}
	h.ctrl = NewController(h.api, h.renderer, Options{
		Device:    device,
		Touch:     h.touch,
		Store:     h.store,
		Restarter: h.restarter,
		Auditor:   h.auditor,
		Publisher: h.publisher,
		Clock:     h.clock,
		Logger:    log.New(io.Discard, "", 0),
	})
	return h
}

func singleZone() DeviceConfig {
	return DeviceConfig{Zone1: 0, Zone2: ZoneDisabled, Source: 0}
}

func dualZone() DeviceConfig {
	return DeviceConfig{Zone1: 0, Zone2: 1, Source: 0}
}

// settle runs the startup step and clears recorded calls.
func (h *harness) settle() {
	_ = h.ctrl.Step(context.Background())
	h.api.reset()
	h.renderer.reset()
}
