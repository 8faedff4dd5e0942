// Package beds24 is the only place allowed to talk to the channel-manager
// API. Core packages consume the Client interface and never see the base URL
// or credentials.
package beds24

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ErrWritesDisabled indicates the write API is switched off by configuration;
// callers should fall back to the locally recorded extension flow.
var ErrWritesDisabled = errors.New("beds24: write API disabled by configuration")

// Client is the channel-manager surface the platform consumes.
type Client interface {
	// Availability reports whether the external system answered for the
	// property. The boolean is reachability of authoritative data, not
	// vacancy.
	Availability(ctx context.Context, propertyID string) (bool, error)
	// ExtendBooking delegates a booking extension to the external system.
	ExtendBooking(ctx context.Context, bookingID int64, newEnd time.Time) error
}

// Config carries the connection settings. The API key lives here and nowhere
// else in the codebase.
type Config struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	WritesEnabled bool
}

// HTTPClient is the real implementation.
type HTTPClient struct {
	cfg  Config
	http *http.Client
}

// NewHTTPClient builds the client. A zero timeout defaults to 10s.
func NewHTTPClient(cfg Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{cfg: cfg, http: &http.Client{Timeout: timeout}}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("token", c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

// Availability probes the property endpoint. Any transport error or non-2xx
// answer counts as unreachable.
func (c *HTTPClient) Availability(ctx context.Context, propertyID string) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, "/properties/"+propertyID+"/availability", nil)
	if err != nil {
		return false, fmt.Errorf("beds24: availability probe: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("beds24: availability probe: status %d", resp.StatusCode)
	}
	return true, nil
}

type extendRequest struct {
	NewEndDate string `json:"new_end_date"`
}

// ExtendBooking pushes the new end date to the external system. Disabled
// writes fail fast with ErrWritesDisabled before any network traffic.
func (c *HTTPClient) ExtendBooking(ctx context.Context, bookingID int64, newEnd time.Time) error {
	if !c.cfg.WritesEnabled {
		return ErrWritesDisabled
	}
	resp, err := c.do(ctx, http.MethodPost, "/bookings/"+strconv.FormatInt(bookingID, 10)+"/extend", extendRequest{
		NewEndDate: newEnd.Format("2006-01-02"),
	})
	if err != nil {
		return fmt.Errorf("beds24: extend booking %d: %w", bookingID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("beds24: extend booking %d: status %d", bookingID, resp.StatusCode)
	}
	return nil
}
