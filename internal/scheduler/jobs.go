package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/strefethen/amplipi-keypad-go/internal/amplipi"
)

// Job names.
const (
	JobHeartbeat  = "heartbeat"
	JobResolve    = "resolve_host"
	JobAuditPrune = "audit_prune"
)

const heartbeatTimeout = 5 * time.Second

// StatusChecker reports whether the AmpliPi answers.
type StatusChecker interface {
	Status(ctx context.Context) (*amplipi.Status, error)
}

// HeartbeatJob polls the AmpliPi root listing and logs the result. onResult
// may be nil.
func HeartbeatJob(spec string, checker StatusChecker, onResult func(err error), logger *log.Logger) Job {
	if logger == nil {
		logger = log.Default()
	}
	return Job{
		Name: JobHeartbeat,
		Spec: spec,
		Run: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, heartbeatTimeout)
			defer cancel()

			status, err := checker.Status(ctx)
			if onResult != nil {
				onResult(err)
			}
			if err != nil {
				return fmt.Errorf("heartbeat: %w", err)
			}
			logger.Printf("[DEBUG] Heartbeat ok: %d zones, %d sources, %d streams",
				len(status.Zones), len(status.Sources), len(status.Streams))
			return nil
		},
	}
}

// HostResolver resolves configured hostnames, caching results.
type HostResolver interface {
	Resolve(ctx context.Context, host string) (string, error)
	Invalidate(host string)
}

// HostTarget is the client whose base address follows resolution.
type HostTarget interface {
	Host() string
	SetHost(host string)
}

// HostRefresher re-resolves the configured AmpliPi host while the keypad
// cannot reach it, so a controller that changed address is found again.
type HostRefresher struct {
	Resolver HostResolver
	Target   HostTarget
	// Host returns the configured (unresolved) host name.
	Host func() string
	// Unreachable reports whether the keypad warning is raised.
	Unreachable func() bool
	// Changed may be nil.
	Changed func(name, oldAddr, newAddr string)
	Logger  *log.Logger
}

// Job wraps Refresh as a scheduler job.
func (h *HostRefresher) Job(spec string) Job {
	return Job{Name: JobResolve, Spec: spec, Run: h.Refresh}
}

// Refresh drops the cached address and resolves again. It does nothing while
// the AmpliPi is reachable.
func (h *HostRefresher) Refresh(ctx context.Context) error {
	if h.Unreachable != nil && !h.Unreachable() {
		return nil
	}
	logger := h.Logger
	if logger == nil {
		logger = log.Default()
	}

	name := h.Host()
	h.Resolver.Invalidate(name)
	addr, err := h.Resolver.Resolve(ctx, name)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", name, err)
	}

	old := h.Target.Host()
	if addr == old {
		return nil
	}
	logger.Printf("AmpliPi host %s now resolves to %s (was %s)", name, addr, old)
	h.Target.SetHost(addr)
	if h.Changed != nil {
		h.Changed(name, old, addr)
	}
	return nil
}

// Pruner deletes expired audit events.
type Pruner interface {
	Prune() (int64, error)
}

// AuditPruneJob applies the audit retention window.
func AuditPruneJob(spec string, pruner Pruner) Job {
	return Job{
		Name: JobAuditPrune,
		Spec: spec,
		Run: func(context.Context) error {
			_, err := pruner.Prune()
			return err
		},
	}
}
