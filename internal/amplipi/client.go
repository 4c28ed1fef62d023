package amplipi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "golang.org/x/image/bmp"
)

const maxImageBytes = 2 << 20

// Client talks to the AmpliPi REST API at http://{host}/api/.
type Client struct {
	httpClient *http.Client
	logger     *log.Logger

	mu   sync.RWMutex
	host string
}

// NewClient creates a client. connectTimeout bounds the TCP dial and
// timeout bounds the whole request.
func NewClient(host string, connectTimeout, timeout time.Duration, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		host:   host,
		logger: logger,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: connectTimeout}).DialContext,
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Host returns the host the client currently targets.
func (c *Client) Host() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.host
}

// SetHost retargets the client, e.g. after an mDNS re-resolution.
func (c *Client) SetHost(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.host != host {
		c.logger.Printf("AmpliPi host changed: %s -> %s", c.host, host)
	}
	c.host = host
}

func (c *Client) url(path string) string {
	return "http://" + c.Host() + "/api/" + strings.TrimPrefix(path, "/")
}

// Zone fetches a zone.
func (c *Client) Zone(ctx context.Context, id int) (*Zone, error) {
	var zone Zone
	if err := c.getJSON(ctx, "zones/"+strconv.Itoa(id), &zone); err != nil {
		return nil, err
	}
	return &zone, nil
}

// Source fetches a source.
func (c *Client) Source(ctx context.Context, id int) (*Source, error) {
	var source Source
	if err := c.getJSON(ctx, "sources/"+strconv.Itoa(id), &source); err != nil {
		return nil, err
	}
	source.Input = NormalizeNull(source.Input)
	source.Name = NormalizeNull(source.Name)
	return &source, nil
}

// Stream fetches a stream with "null" placeholders normalized.
func (c *Client) Stream(ctx context.Context, id string) (*Stream, error) {
	var stream Stream
	if err := c.getJSON(ctx, "streams/"+id, &stream); err != nil {
		return nil, err
	}
	normalized := stream.Normalized()
	return &normalized, nil
}

// Status fetches the root listing, which carries the stream list.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var status Status
	if err := c.getJSON(ctx, "", &status); err != nil {
		return nil, err
	}
	for i := range status.Streams {
		status.Streams[i] = status.Streams[i].Normalized()
	}
	return &status, nil
}

// UpdateZone patches zone mute and/or volume.
func (c *Client) UpdateZone(ctx context.Context, id int, update ZoneUpdate) error {
	return c.patchJSON(ctx, "zones/"+strconv.Itoa(id), update)
}

// UpdateSource patches a source, typically its input.
func (c *Client) UpdateSource(ctx context.Context, id int, update SourceUpdate) error {
	return c.patchJSON(ctx, "sources/"+strconv.Itoa(id), update)
}

// StreamImage downloads and decodes the album art for a stream. BMP, PNG
// and JPEG bodies are accepted.
func (c *Client) StreamImage(ctx context.Context, id string) (image.Image, error) {
	path := "streams/image/" + id
	body, err := c.do(ctx, http.MethodGet, path, nil, "image/*")
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return img, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, nil, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	return nil
}

func (c *Client) patchJSON(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	_, err = c.do(ctx, http.MethodPatch, path, body, "application/json")
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, accept string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{Method: method, Path: path}
		}
		return nil, &UnreachableError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{Method: method, Path: path}
		}
		return nil, &UnreachableError{Method: method, Path: path, Err: err}
	}

	// Any 2xx is success. An empty 204 body still fails to decode for GETs.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RejectedError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(truncate(body, 200))),
		}
	}

	return body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
