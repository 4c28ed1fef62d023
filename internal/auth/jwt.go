package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/strefethen/amplipi-keypad-go/internal/config"
)

// Scope limits what a paired client may do.
type Scope string

const (
	// ScopeControl clients may press the keypad and change settings.
	ScopeControl Scope = "control"
	// ScopeMonitor clients may only read.
	ScopeMonitor Scope = "monitor"
)

// ParseScope accepts a scope name; "" means control.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopeControl:
		return ScopeControl, nil
	case ScopeMonitor:
		return ScopeMonitor, nil
	}
	return "", fmt.Errorf("unknown scope %q", s)
}

// Allows reports whether a token of this scope may issue method.
func (s Scope) Allows(method string) bool {
	if s == ScopeControl {
		return true
	}
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return s == ScopeMonitor
	}
	return false
}

// TokenType describes access vs refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Identity is what a verified token says about its bearer.
type Identity struct {
	DeviceID   string
	DeviceName string
	Scope      Scope
	Type       TokenType
}

// TokenPair is returned when pairing completes.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

const (
	tokenIssuer   = "amplipi-keypad"
	tokenAudience = "amplipi-keypad-client"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenType    = errors.New("token has invalid type")
)

type tokenClaims struct {
	DeviceName string    `json:"device_name"`
	Scope      Scope     `json:"scope"`
	Type       TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies the keypad's HS256 tokens.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer takes the secret and lifetimes from cfg.
func NewIssuer(cfg config.Config) *Issuer {
	return &Issuer{
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  time.Duration(cfg.JWTAccessTokenExpirySec) * time.Second,
		refreshTTL: time.Duration(cfg.JWTRefreshTokenExpirySec) * time.Second,
		now:        time.Now,
	}
}

// Issue signs a fresh access and refresh token for id. id.Type is ignored.
func (i *Issuer) Issue(id Identity) (TokenPair, error) {
	access, err := i.sign(id, TokenTypeAccess, i.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := i.sign(id, TokenTypeRefresh, i.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: i.accessTTL}, nil
}

// Refresh trades a refresh token for a new access token with the same
// device and scope.
func (i *Issuer) Refresh(refreshToken string) (string, time.Duration, error) {
	id, err := i.Verify(refreshToken)
	if err != nil {
		return "", 0, err
	}
	if id.Type != TokenTypeRefresh {
		return "", 0, ErrTokenType
	}
	access, err := i.sign(id, TokenTypeAccess, i.accessTTL)
	if err != nil {
		return "", 0, err
	}
	return access, i.accessTTL, nil
}

// Verify checks signature, issuer, audience and expiry and returns the
// bearer's identity.
func (i *Issuer) Verify(token string) (Identity, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithAudience(tokenAudience),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(i.now),
	)

	claims := &tokenClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return Identity{}, ErrTokenExpired
	}
	if err != nil || parsed == nil || !parsed.Valid {
		return Identity{}, ErrTokenInvalid
	}

	id := Identity{
		DeviceID:   claims.Subject,
		DeviceName: claims.DeviceName,
		Scope:      claims.Scope,
		Type:       claims.Type,
	}
	if id.DeviceID == "" || id.DeviceName == "" {
		return Identity{}, ErrTokenInvalid
	}
	if id.Scope != ScopeControl && id.Scope != ScopeMonitor {
		return Identity{}, ErrTokenInvalid
	}
	if id.Type != TokenTypeAccess && id.Type != TokenTypeRefresh {
		return Identity{}, ErrTokenInvalid
	}
	return id, nil
}

func (i *Issuer) sign(id Identity, tokenType TokenType, ttl time.Duration) (string, error) {
	now := i.now()
	claims := tokenClaims{
		DeviceName: id.DeviceName,
		Scope:      id.Scope,
		Type:       tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.DeviceID,
			Issuer:    tokenIssuer,
			Audience:  []string{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}
