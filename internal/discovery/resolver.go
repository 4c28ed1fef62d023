package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

// AmpliPi advertises its REST API as a plain HTTP service.
const (
	serviceType   = "_http._tcp"
	serviceDomain = "local."
)

type browseFunc func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

type lookupFunc func(ctx context.Context, host string) ([]string, error)

type cacheEntry struct {
	addr    string
	expires time.Time
}

// Resolver turns configured AmpliPi hosts into dialable addresses. Names
// ending in .local are resolved over mDNS with a system resolver fallback;
// everything else passes through unchanged.
type Resolver struct {
	browse  browseFunc
	lookup  lookupFunc
	timeout time.Duration
	ttl     time.Duration
	now     func() time.Time
	logger  *log.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewResolver creates a resolver that browses for at most timeout and
// caches answers for ttl.
func NewResolver(timeout, ttl time.Duration, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{
		browse:  zeroconfBrowse,
		lookup:  net.DefaultResolver.LookupHost,
		timeout: timeout,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
		cache:   make(map[string]cacheEntry),
	}
}

// Resolve returns host with its name replaced by an IP address when it is an
// mDNS name. A port, if present, is kept.
func (r *Resolver) Resolve(ctx context.Context, host string) (string, error) {
	name, port := splitPort(host)
	if !IsMDNSName(name) {
		return host, nil
	}
	key := strings.ToLower(name)

	r.mu.Lock()
	if e, ok := r.cache[key]; ok && r.now().Before(e.expires) {
		r.mu.Unlock()
		return joinPort(e.addr, port), nil
	}
	r.mu.Unlock()

	addr, err := r.resolveMDNS(ctx, key)
	if err != nil {
		r.logger.Printf("mDNS browse for %s failed: %v, trying system resolver", name, err)
		addr, err = r.resolveSystem(ctx, name)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", name, err)
		}
	}
	r.logger.Printf("Resolved %s to %s", name, addr)

	r.mu.Lock()
	r.cache[key] = cacheEntry{addr: addr, expires: r.now().Add(r.ttl)}
	r.mu.Unlock()
	return joinPort(addr, port), nil
}

// Invalidate drops the cached address for host so the next Resolve browses
// again.
func (r *Resolver) Invalidate(host string) {
	name, _ := splitPort(host)
	r.mu.Lock()
	delete(r.cache, strings.ToLower(name))
	r.mu.Unlock()
}

func (r *Resolver) resolveMDNS(ctx context.Context, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan string, 1)
	go func() {
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if addr := matchEntry(entry, name); addr != "" {
					select {
					case found <- addr:
					default:
					}
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := r.browse(ctx, serviceType, serviceDomain, entries); err != nil {
		return "", err
	}
	select {
	case addr := <-found:
		return addr, nil
	case <-ctx.Done():
		select {
		case addr := <-found:
			return addr, nil
		default:
		}
		return "", fmt.Errorf("no mDNS answer for %s", name)
	}
}

func (r *Resolver) resolveSystem(ctx context.Context, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	addrs, err := r.lookup(ctx, name)
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return a, nil
		}
	}
	if len(addrs) > 0 {
		return addrs[0], nil
	}
	return "", fmt.Errorf("no addresses for %s", name)
}

// matchEntry returns the entry's first IPv4 address when its host name or
// instance name is name ("amplipi.local"). Otherwise it returns "".
func matchEntry(entry *zeroconf.ServiceEntry, name string) string {
	if entry == nil || len(entry.AddrIPv4) == 0 {
		return ""
	}
	want := strings.TrimSuffix(strings.ToLower(name), ".")
	host := strings.TrimSuffix(strings.ToLower(entry.HostName), ".")
	instance := strings.ToLower(entry.Instance) + ".local"
	if host != want && instance != want {
		return ""
	}
	return entry.AddrIPv4[0].String()
}

// IsMDNSName reports whether name is in the .local domain.
func IsMDNSName(name string) bool {
	name = strings.TrimSuffix(strings.ToLower(name), ".")
	return strings.HasSuffix(name, ".local") && net.ParseIP(name) == nil
}

func splitPort(host string) (string, string) {
	if h, p, err := net.SplitHostPort(host); err == nil {
		return h, p
	}
	return host, ""
}

// joinPort forms the host part of a URL. IPv6 literals are bracketed even
// without a port, and a zone separator is escaped.
func joinPort(addr, port string) string {
	if strings.Contains(addr, ":") {
		addr = strings.Replace(addr, "%", "%25", 1)
		if port == "" {
			return "[" + addr + "]"
		}
	}
	if port == "" {
		return addr
	}
	return net.JoinHostPort(addr, port)
}

func zeroconfBrowse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("initialize resolver: %w", err)
	}
	return resolver.Browse(ctx, service, domain, entries)
}
