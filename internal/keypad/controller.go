package keypad

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrInboxFull is returned when the controller cannot take more input.
var ErrInboxFull = errors.New("keypad inbox full")

const splashHold = 1500 * time.Millisecond

// Options configures a Controller. Zero values pick the defaults.
type Options struct {
	Device          DeviceConfig
	RefreshInterval time.Duration
	Debounce        time.Duration
	PollInterval    time.Duration
	InboxSize       int

	Touch     TouchSource
	Store     SettingsStore
	Restarter Restarter
	Auditor   Auditor
	Publisher Publisher
	Clock     Clock
	Logger    *log.Logger
}

type inboxKind int

const (
	inboxTouch inboxKind = iota
	inboxNotice
	inboxDevice
)

type inboxMsg struct {
	kind   inboxKind
	x, y   int
	text   string
	ttl    time.Duration
	device DeviceConfig
}

// Controller owns the keypad state and drives the touch dispatcher, the
// polling refresh loop and the renderer from a single goroutine. Other
// goroutines talk to it through Inject, Notify and ApplyDevice and read it
// through Snapshot.
type Controller struct {
	api       API
	renderer  Renderer
	touch     TouchSource
	store     SettingsStore
	restarter Restarter
	auditor   Auditor
	publisher Publisher
	clock     Clock
	logger    *log.Logger

	refreshInterval time.Duration
	debounce        time.Duration
	pollInterval    time.Duration

	inbox chan inboxMsg
	state *AppState

	snapMu sync.RWMutex
	seq    uint64
	latest Snapshot
}

// NewController creates a controller showing the metadata screen with every
// element dirty and a refresh due immediately.
func NewController(api API, renderer Renderer, opts Options) *Controller {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 5 * time.Second
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 100 * time.Millisecond
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 20 * time.Millisecond
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = 16
	}
	if opts.Auditor == nil {
		opts.Auditor = nopAuditor{}
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	c := &Controller{
		api:             api,
		renderer:        renderer,
		touch:           opts.Touch,
		store:           opts.Store,
		restarter:       opts.Restarter,
		auditor:         opts.Auditor,
		publisher:       opts.Publisher,
		clock:           opts.Clock,
		logger:          opts.Logger,
		refreshInterval: opts.RefreshInterval,
		debounce:        opts.Debounce,
		pollInterval:    opts.PollInterval,
		inbox:           make(chan inboxMsg, opts.InboxSize),
		state:           newAppState(opts.Device),
	}
	c.state.invalidate()
	c.latest = c.state.snapshot(c.clock.Now())
	return c
}

// Inject queues a touch at screen coordinates, e.g. from the control server.
func (c *Controller) Inject(x, y int) error {
	return c.send(inboxMsg{kind: inboxTouch, x: x, y: y})
}

// Notify shows text in the status area for ttl. A non-positive ttl keeps it
// until replaced.
func (c *Controller) Notify(text string, ttl time.Duration) error {
	return c.send(inboxMsg{kind: inboxNotice, text: text, ttl: ttl})
}

// ApplyDevice switches the controller to a new zone/source configuration.
func (c *Controller) ApplyDevice(cfg DeviceConfig) error {
	return c.send(inboxMsg{kind: inboxDevice, device: cfg})
}

func (c *Controller) send(msg inboxMsg) error {
	select {
	case c.inbox <- msg:
		return nil
	default:
		return ErrInboxFull
	}
}

// Snapshot returns the most recently published state.
func (c *Controller) Snapshot() Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.latest
}

// State exposes the controller state. It must only be used from the
// goroutine that calls Step.
func (c *Controller) State() *AppState {
	return c.state
}

// Run shows the splash screen and then steps the keypad loop until ctx is
// cancelled.
func (c *Controller) Run(ctx context.Context) error {
	d := c.state.Device
	c.logger.Printf("Keypad started: zone1=%d zone2=%d source=%d", d.Zone1, d.Zone2, d.Source)

	c.renderer.DrawSplash()
	if err := c.renderer.Present(); err != nil {
		c.logger.Printf("Splash present failed: %v", err)
	}
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(splashHold):
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		if err := c.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Step runs one pass of the keypad loop: dispatch at most one touch and
// debounce, refresh when due, expire notices, flush dirty elements and
// publish a snapshot when anything was drawn.
func (c *Controller) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if x, y, ok := c.nextTouch(); ok {
		c.Dispatch(ctx, x, y)
		c.clock.Sleep(c.debounce)
	}

	now := c.clock.Now()
	s := c.state
	if s.RefreshEnabled && !now.Before(s.NextRefresh) {
		prev := s.NextRefresh
		c.Refresh(ctx)
		s.NextRefresh = nextRefresh(prev, c.clock.Now(), c.refreshInterval)
	}

	c.expireNotice(now)

	if c.Flush() {
		c.publish(now)
	}
	return nil
}

// nextRefresh anchors the next deadline on the previous one so the interval
// does not drift, re-anchoring on now when the loop fell behind.
func nextRefresh(prev, now time.Time, interval time.Duration) time.Time {
	if prev.IsZero() {
		return now.Add(interval)
	}
	next := prev.Add(interval)
	if !next.After(now) {
		return now.Add(interval)
	}
	return next
}

// nextTouch polls the hardware first, then drains the inbox until a touch
// is found. Notices and device changes are applied along the way.
func (c *Controller) nextTouch() (int, int, bool) {
	if c.touch != nil {
		x, y, ok, err := c.touch.Touch()
		if err != nil {
			c.logger.Printf("Touch read failed: %v", err)
		} else if ok {
			return x, y, true
		}
	}
	for {
		select {
		case msg := <-c.inbox:
			switch msg.kind {
			case inboxTouch:
				return msg.x, msg.y, true
			case inboxNotice:
				c.setNotice(msg.text, msg.ttl)
			case inboxDevice:
				c.applyDevice(msg.device)
			}
		default:
			return 0, 0, false
		}
	}
}

func (c *Controller) setNotice(text string, ttl time.Duration) {
	s := c.state
	s.Notice = text
	s.NoticeExpires = time.Time{}
	if ttl > 0 {
		s.NoticeExpires = c.clock.Now().Add(ttl)
	}
	c.markStatus()
}

func (c *Controller) expireNotice(now time.Time) {
	s := c.state
	if s.Notice == "" || s.NoticeExpires.IsZero() || now.Before(s.NoticeExpires) {
		return
	}
	s.Notice = ""
	s.NoticeExpires = time.Time{}
	c.markStatus()
}

func (c *Controller) setWarning(on bool) {
	s := c.state
	if s.Warning == on {
		return
	}
	s.Warning = on
	if on {
		c.logger.Printf("AmpliPi unreachable, showing warning")
	} else {
		c.logger.Printf("AmpliPi reachable again")
	}
	c.markStatus()
}

// markStatus dirties whichever element shows the warning and notices on
// the current screen.
func (c *Controller) markStatus() {
	if c.state.Screen == ScreenMetadata {
		c.state.Dirty.Mark(ElementWarning)
		return
	}
	c.state.Dirty.Mark(ElementSourceBar)
}

// statusText is the warning when raised, otherwise the active notice.
func (c *Controller) statusText() string {
	if c.state.Warning {
		return WarningText
	}
	return c.state.Notice
}

func (c *Controller) applyDevice(cfg DeviceConfig) {
	s := c.state
	s.applyDevice(cfg)
	if !s.Layout.Dual() {
		s.Dirty.Clear(ElementMute2)
		s.Dirty.Clear(ElementVolume2)
	}
	s.resetMetadata()
	s.NextRefresh = c.clock.Now()
	if s.Screen == ScreenMetadata {
		s.invalidate()
	}
	c.logger.Printf("Device config applied: zone1=%d zone2=%d source=%d", s.Device.Zone1, s.Device.Zone2, s.Device.Source)
}

func (c *Controller) publish(now time.Time) {
	snap := c.state.snapshot(now)
	c.snapMu.Lock()
	c.seq++
	snap.Sequence = c.seq
	c.latest = snap
	c.snapMu.Unlock()
	if c.publisher != nil {
		c.publisher.Publish(snap)
	}
}

func (c *Controller) record(event AuditEvent) {
	event.Screen = c.state.Screen
	c.auditor.Record(event)
}
