// Package monitor is a terminal client for a keypad's control server. It
// mirrors the keypad state pushed over the events websocket and sends
// touches back through the REST API.
package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/strefethen/amplipi-keypad-go/internal/events"
	"github.com/strefethen/amplipi-keypad-go/internal/keypad"
)

const requestTimeout = 5 * time.Second

// Client talks to one keypad control server.
type Client struct {
	base     *url.URL
	token    string
	testMode bool
	http     *http.Client
	dialer   *websocket.Dialer
}

// NewClient parses baseURL (http or https). token is a paired access token;
// testMode sends the x-test-mode header instead, for development servers.
func NewClient(baseURL, token string, testMode bool) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return &Client{
		base:     u,
		token:    token,
		testMode: testMode,
		http:     &http.Client{Timeout: requestTimeout},
		dialer:   &websocket.Dialer{HandshakeTimeout: requestTimeout},
	}, nil
}

// Base returns the server address.
func (c *Client) Base() string {
	return c.base.String()
}

func (c *Client) header() http.Header {
	h := http.Header{}
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	if c.testMode {
		h.Set("x-test-mode", "true")
	}
	return h
}

// Touch queues a press at screen coordinates.
func (c *Client) Touch(ctx context.Context, x, y int) error {
	return c.post(ctx, "/v1/touch", map[string]int{"x": x, "y": y})
}

// Notice shows text on the keypad status line for ttl.
func (c *Client) Notice(ctx context.Context, text string, ttl time.Duration) error {
	return c.post(ctx, "/v1/notice", map[string]any{"text": text, "ttl_ms": ttl.Milliseconds()})
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.String()+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header = c.header()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	return nil
}

// decodeError pulls the error code out of the server's error envelope.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Code != "" {
		return fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message)
	}
	return fmt.Errorf("HTTP %d", resp.StatusCode)
}

// Stream is an open events websocket.
type Stream struct {
	conn *websocket.Conn
}

// Dial opens the events websocket. The server sends the latest snapshot
// straight away.
func (c *Client) Dial(ctx context.Context) (*Stream, error) {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/events"

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), c.header())
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w", u.String(), decodeError(resp))
		}
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}
	return &Stream{conn: conn}, nil
}

// Next blocks for the next snapshot, skipping keepalive frames.
func (s *Stream) Next() (keypad.Snapshot, error) {
	for {
		var msg events.Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			return keypad.Snapshot{}, err
		}
		if msg.Type == events.TypeSnapshot && msg.Snapshot != nil {
			return *msg.Snapshot, nil
		}
	}
}

// Close closes the websocket.
func (s *Stream) Close() error {
	return s.conn.Close()
}
