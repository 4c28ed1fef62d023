package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// MaxPairingAttempts is how many wrong codes burn the code on display.
const MaxPairingAttempts = 5

var (
	ErrPairingInvalid = errors.New("pairing code invalid")
	ErrPairingExpired = errors.New("pairing code expired")
	ErrPairingLocked  = errors.New("pairing code locked after too many attempts")
)

// PairingStore holds the one pairing code the keypad is showing. Starting a
// new pairing replaces the previous code, a redeemed code is gone, and
// MaxPairingAttempts wrong guesses discard it.
type PairingStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	code     string
	issuedAt time.Time
	failures int
}

// NewPairingStore creates a store whose codes expire after ttl.
func NewPairingStore(ttl time.Duration) *PairingStore {
	return &PairingStore{ttl: ttl, now: time.Now}
}

// TTL reports how long a code stays valid.
func (s *PairingStore) TTL() time.Duration {
	return s.ttl
}

// Start issues a new six-digit code, replacing any code still showing.
func (s *PairingStore) Start() (string, error) {
	code, err := randomPairingCode()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = code
	s.issuedAt = s.now()
	s.failures = 0
	return code, nil
}

// Active reports whether a code is waiting to be redeemed.
func (s *PairingStore) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	return s.code != ""
}

// Redeem consumes code. It fails with ErrPairingInvalid when no code is
// showing or code is wrong, ErrPairingExpired once the ttl has passed and
// ErrPairingLocked on the guess that exhausts the attempts.
func (s *PairingStore) Redeem(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.code == "" {
		return ErrPairingInvalid
	}
	if s.now().Sub(s.issuedAt) > s.ttl {
		s.clearLocked()
		return ErrPairingExpired
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(s.code)) != 1 {
		s.failures++
		if s.failures >= MaxPairingAttempts {
			s.clearLocked()
			return ErrPairingLocked
		}
		return ErrPairingInvalid
	}
	s.clearLocked()
	return nil
}

// StartCleanup drops an expired code every interval until ctx ends.
func (s *PairingStore) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				s.expireLocked()
				s.mu.Unlock()
			case <-ctx.Done():
				s.mu.Lock()
				s.clearLocked()
				s.mu.Unlock()
				return
			}
		}
	}()
}

func (s *PairingStore) expireLocked() {
	if s.code != "" && s.now().Sub(s.issuedAt) > s.ttl {
		s.clearLocked()
	}
}

func (s *PairingStore) clearLocked() {
	s.code = ""
	s.failures = 0
}

func randomPairingCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", 100000+n.Int64()), nil
}
