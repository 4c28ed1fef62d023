package auth

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strefethen/amplipi-keypad-go/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		JWTSecret:                strings.Repeat("k", 32),
		JWTAccessTokenExpirySec:  60,
		JWTRefreshTokenExpirySec: 600,
		NodeEnv:                  "production",
	}
}

var phone = Identity{DeviceID: "dev-1", DeviceName: "Phone", Scope: ScopeControl}

func TestIssuer_IssueVerifyRefresh(t *testing.T) {
	issuer := NewIssuer(testConfig())
	pair, err := issuer.Issue(Identity{DeviceID: "dev-1", DeviceName: "Phone", Scope: ScopeMonitor})
	require.NoError(t, err)
	assert.Equal(t, time.Minute, pair.ExpiresIn)

	id, err := issuer.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, Identity{DeviceID: "dev-1", DeviceName: "Phone", Scope: ScopeMonitor, Type: TokenTypeAccess}, id)

	access, expires, err := issuer.Refresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, expires)
	id, err = issuer.Verify(access)
	require.NoError(t, err)
	assert.Equal(t, ScopeMonitor, id.Scope)

	_, _, err = issuer.Refresh(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenType)
}

func TestIssuer_VerifyRejects(t *testing.T) {
	cfg := testConfig()
	issuer := NewIssuer(cfg)

	pair, err := issuer.Issue(phone)
	require.NoError(t, err)
	later := NewIssuer(cfg)
	later.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = later.Verify(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)

	other := cfg
	other.JWTSecret = strings.Repeat("z", 32)
	pair, err = NewIssuer(other).Issue(phone)
	require.NoError(t, err)
	_, err = issuer.Verify(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	pair, err = issuer.Issue(Identity{DeviceID: "dev-1", DeviceName: "Phone", Scope: "admin"})
	require.NoError(t, err)
	_, err = issuer.Verify(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = issuer.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestScope(t *testing.T) {
	s, err := ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopeControl, s)
	_, err = ParseScope("admin")
	assert.Error(t, err)

	assert.True(t, ScopeControl.Allows(http.MethodPost))
	assert.True(t, ScopeMonitor.Allows(http.MethodGet))
	assert.False(t, ScopeMonitor.Allows(http.MethodPost))
	assert.False(t, ScopeMonitor.Allows(http.MethodDelete))
}

func TestPairingStore_RedeemOnce(t *testing.T) {
	store := NewPairingStore(time.Minute)
	assert.False(t, store.Active())
	assert.ErrorIs(t, store.Redeem("123456"), ErrPairingInvalid)

	code, err := store.Start()
	require.NoError(t, err)
	require.Len(t, code, 6)
	assert.True(t, store.Active())

	require.NoError(t, store.Redeem(code))
	assert.False(t, store.Active())
	assert.ErrorIs(t, store.Redeem(code), ErrPairingInvalid)
}

func TestPairingStore_StartReplacesCode(t *testing.T) {
	store := NewPairingStore(time.Minute)
	first, err := store.Start()
	require.NoError(t, err)
	second, err := store.Start()
	require.NoError(t, err)

	if first != second {
		assert.ErrorIs(t, store.Redeem(first), ErrPairingInvalid)
	}
	assert.NoError(t, store.Redeem(second))
}

func TestPairingStore_Expires(t *testing.T) {
	now := time.Now()
	store := NewPairingStore(time.Minute)
	store.now = func() time.Time { return now }

	code, err := store.Start()
	require.NoError(t, err)
	now = now.Add(time.Minute + time.Second)

	assert.ErrorIs(t, store.Redeem(code), ErrPairingExpired)
	assert.ErrorIs(t, store.Redeem(code), ErrPairingInvalid)
}

func TestPairingStore_LocksAfterWrongGuesses(t *testing.T) {
	store := NewPairingStore(time.Minute)
	code, err := store.Start()
	require.NoError(t, err)
	wrong := "000000"

	for i := 1; i < MaxPairingAttempts; i++ {
		assert.ErrorIs(t, store.Redeem(wrong), ErrPairingInvalid)
	}
	assert.ErrorIs(t, store.Redeem(wrong), ErrPairingLocked)
	assert.ErrorIs(t, store.Redeem(code), ErrPairingInvalid)
}

func newAuthRouter(store *PairingStore, issuer *Issuer, hooks Hooks) chi.Router {
	router := chi.NewRouter()
	router.Use(Middleware(issuer, false))
	RegisterRoutes(router, store, issuer, hooks, log.New(io.Discard, "", 0))
	return router
}

func send(t *testing.T, h http.Handler, method, path, body, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func errorCode(body map[string]any) any {
	return body["error"].(map[string]any)["code"]
}

func TestPairingFlowShowsCodeOnKeypad(t *testing.T) {
	issuer := NewIssuer(testConfig())
	var shown string
	var shownTTL time.Duration
	var paired Identity
	router := newAuthRouter(NewPairingStore(time.Minute), issuer, Hooks{
		ShowCode: func(code string, ttl time.Duration) { shown, shownTTL = code, ttl },
		Paired:   func(id Identity) { paired = id },
	})

	rec, body := send(t, router, http.MethodPost, "/v1/auth/pair/start", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, shown, 6)
	assert.Equal(t, time.Minute, shownTTL)
	assert.NotContains(t, body["pairing_hint"], shown)

	rec, body = send(t, router, http.MethodPost, "/v1/auth/pair/complete",
		`{"pair_code":"`+shown+`","device_name":"Kitchen tablet","scope":"monitor"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "token_pair", body["object"])
	assert.Equal(t, "monitor", body["scope"])
	assert.Equal(t, "Kitchen tablet", paired.DeviceName)
	assert.Equal(t, body["device_id"], paired.DeviceID)

	rec, who := send(t, router, http.MethodGet, "/v1/auth/whoami", "", body["access_token"].(string))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Kitchen tablet", who["device_name"])
	assert.Equal(t, "monitor", who["scope"])

	rec, body = send(t, router, http.MethodPost, "/v1/auth/pair/complete", `{"pair_code":"`+shown+`","device_name":"again"}`, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTH_PAIRING_INVALID", errorCode(body))
}

func TestPairComplete_Validation(t *testing.T) {
	router := newAuthRouter(NewPairingStore(time.Minute), NewIssuer(testConfig()), Hooks{})

	for _, body := range []string{
		`{"device_name":"x"}`,
		`{"pair_code":"123456","device_name":"  "}`,
		`{"pair_code":"123456","device_name":"x","scope":"admin"}`,
	} {
		rec, out := send(t, router, http.MethodPost, "/v1/auth/pair/complete", body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(out), body)
	}
}

func TestPairComplete_LockedReturns429(t *testing.T) {
	store := NewPairingStore(time.Minute)
	router := newAuthRouter(store, NewIssuer(testConfig()), Hooks{})
	_, err := store.Start()
	require.NoError(t, err)

	var rec *httptest.ResponseRecorder
	var out map[string]any
	for i := 0; i < MaxPairingAttempts; i++ {
		rec, out = send(t, router, http.MethodPost, "/v1/auth/pair/complete", `{"pair_code":"000000","device_name":"x"}`, "")
	}
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "AUTH_PAIRING_LOCKED", errorCode(out))
	assert.False(t, store.Active())
}

func TestRefreshRoute(t *testing.T) {
	issuer := NewIssuer(testConfig())
	router := newAuthRouter(NewPairingStore(time.Minute), issuer, Hooks{})
	pair, err := issuer.Issue(phone)
	require.NoError(t, err)

	rec, body := send(t, router, http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+pair.RefreshToken+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["access_token"])
	assert.Equal(t, float64(60), body["expires_in_sec"])

	rec, body = send(t, router, http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+pair.AccessToken+`"}`, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTH_TOKEN_INVALID", errorCode(body))

	rec, _ = send(t, router, http.MethodPost, "/v1/auth/refresh", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMiddleware(t *testing.T) {
	issuer := NewIssuer(testConfig())
	var seen Identity
	protected := Middleware(issuer, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	control, err := issuer.Issue(phone)
	require.NoError(t, err)
	monitor, err := issuer.Issue(Identity{DeviceID: "dev-2", DeviceName: "TUI", Scope: ScopeMonitor})
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		header string
		want   int
	}{
		{"public health", http.MethodGet, "/v1/health/live", "", http.StatusNoContent},
		{"public openapi", http.MethodGet, "/v1/openapi.yaml", "", http.StatusNoContent},
		{"missing header", http.MethodGet, "/v1/state", "", http.StatusUnauthorized},
		{"wrong scheme", http.MethodGet, "/v1/state", "Basic abc", http.StatusUnauthorized},
		{"empty bearer", http.MethodGet, "/v1/state", "Bearer ", http.StatusUnauthorized},
		{"refresh token", http.MethodGet, "/v1/state", "Bearer " + control.RefreshToken, http.StatusUnauthorized},
		{"monitor read", http.MethodGet, "/v1/state", "Bearer " + monitor.AccessToken, http.StatusNoContent},
		{"monitor write", http.MethodPost, "/v1/touch", "Bearer " + monitor.AccessToken, http.StatusForbidden},
		{"control write", http.MethodPost, "/v1/touch", "Bearer " + control.AccessToken, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.Equal(t, "Phone", seen.DeviceName)
}

func TestMiddlewareTestMode(t *testing.T) {
	cfg := testConfig()
	assert.False(t, TestModeEnabled(cfg))
	cfg.NodeEnv = "development"
	cfg.AllowTestMode = true
	require.True(t, TestModeEnabled(cfg))

	var seen Identity
	h := Middleware(NewIssuer(cfg), true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/touch", nil)
	req.Header.Set("x-test-mode", "true")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test-device", seen.DeviceID)
}
