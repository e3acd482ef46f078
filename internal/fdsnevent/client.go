// Package fdsnevent resolves event identifiers against an FDSNWS event service.
package fdsnevent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single request to the event service.
const DefaultTimeout = 15 * time.Second

// maxBodySize caps how much of a text response is read. Only the first data row matters.
const maxBodySize = 1 << 20

var (
	// ErrNotFound is returned when the service answers with the no-data status (404).
	ErrNotFound = errors.New("event not found")
	// ErrService is returned for any other non-success status or transport failure.
	ErrService = errors.New("failed to fetch event")
	// ErrMalformedResponse is returned when the text payload cannot be parsed.
	ErrMalformedResponse = errors.New("invalid response")
)

// Client talks to the fdsnws-event endpoints below a base URL such as
// http://localhost:8080/fdsnws/event/1.
type Client struct {
	base   string
	client *http.Client
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a client for the event service at base.
func NewClient(base string, opts ...ClientOption) *Client {
	c := &Client{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the event service base URL.
func (c *Client) BaseURL() string {
	return c.base
}

// Available probes the version endpoint. Any failure means the service is unavailable.
func (c *Client) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/version", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// QueryURL returns the text-format query URL used to resolve eventID.
func (c *Client) QueryURL(eventID string) string {
	v := url.Values{}
	v.Set("eventid", eventID)
	v.Set("format", "text")
	v.Set("nodata", "404")
	return c.base + "/query?" + v.Encode()
}

// OriginTime resolves eventID to the preferred origin time of the event.
func (c *Client) OriginTime(ctx context.Context, eventID string) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.QueryURL(eventID), nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: create request: %v", ErrService, err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return time.Time{}, ctxErr
		}
		return time.Time{}, fmt.Errorf("%w: %v", ErrService, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return time.Time{}, ctxErr
		}
		return time.Time{}, fmt.Errorf("%w: read response: %v", ErrService, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return time.Time{}, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return time.Time{}, fmt.Errorf("%w: unexpected status %d", ErrService, resp.StatusCode)
	}

	return ParseOriginTime(string(body))
}

// ParseOriginTime extracts the origin time from a format=text event response:
// a header line followed by pipe-delimited rows with the time in the second column.
func ParseOriginTime(body string) (time.Time, error) {
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) < 2 {
		return time.Time{}, fmt.Errorf("%w: expected header and data row", ErrMalformedResponse)
	}

	fields := strings.Split(strings.TrimSpace(lines[1]), "|")
	if len(fields) < 2 || strings.TrimSpace(fields[1]) == "" {
		return time.Time{}, fmt.Errorf("%w: no origin time found", ErrMalformedResponse)
	}

	t, err := parseTimestamp(strings.TrimSpace(fields[1]))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid origin time %q", ErrMalformedResponse, fields[1])
	}
	return t, nil
}

// parseTimestamp accepts RFC 3339 and the bare form the service emits, which is UTC.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s+"Z")
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
