package server

import (
	"image"
	"time"

	"github.com/strefethen/amplipi-keypad-go/internal/keypad"
)

// Keypad is the part of the controller the server drives. Every call is
// non-blocking; a full inbox returns keypad.ErrInboxFull.
type Keypad interface {
	Inject(x, y int) error
	Notify(text string, ttl time.Duration) error
	Snapshot() keypad.Snapshot
}

// SnapshotSource returns the last published snapshot.
type SnapshotSource interface {
	Latest() (keypad.Snapshot, bool)
}

// ScreenSource returns the last displayed frame.
type ScreenSource interface {
	Snapshot() *image.RGBA
}

// StateAdapter prefers the hub's published snapshot and falls back to the
// controller's own copy before the first frame has been broadcast.
type StateAdapter struct {
	hub    SnapshotSource
	keypad Keypad
}

// NewStateAdapter creates a new adapter over the hub and controller. Either
// may be nil.
func NewStateAdapter(hub SnapshotSource, kp Keypad) *StateAdapter {
	return &StateAdapter{hub: hub, keypad: kp}
}

// Latest implements SnapshotSource. The second result is false only when
// neither source has anything.
func (a *StateAdapter) Latest() (keypad.Snapshot, bool) {
	if a.hub != nil {
		if snap, ok := a.hub.Latest(); ok {
			return snap, true
		}
	}
	if a.keypad == nil {
		return keypad.Snapshot{}, false
	}
	snap := a.keypad.Snapshot()
	return snap, !snap.Updated.IsZero()
}
