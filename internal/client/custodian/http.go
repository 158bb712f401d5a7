package custodian

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/saltkeeper/internal/common"
)

// HTTPClient speaks the custodian REST API.
type HTTPClient struct {
	baseURL string
	token   string
	timeout time.Duration
	hc      *http.Client
}

// NewHTTPClient returns a client for baseURL (e.g. "http://10.8.0.2:8081").
// hc may be nil.
func NewHTTPClient(baseURL, token string, timeout time.Duration, hc *http.Client) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("custodian endpoint %q is not an absolute URL: %w", baseURL, common.ErrorValidation)
	}
	if hc == nil {
		hc = &http.Client{}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
		hc:      hc,
	}, nil
}

type storeRequest struct {
	Salt          []byte `json:"salt"`
	Purpose       string `json:"purpose"`
	ExpiresInDays *int   `json:"expiresInDays,omitempty"`
}

type storeResponse struct {
	SaltID    string     `json:"saltId"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

type fetchResponse struct {
	Salt        []byte    `json:"salt"`
	Purpose     string    `json:"purpose"`
	CreatedAt   time.Time `json:"createdAt"`
	AccessCount int64     `json:"accessCount"`
}

type cleanupResponse struct {
	DeletedCount int64 `json:"deletedCount"`
}

type statsResponse struct {
	Purposes map[string]int64 `json:"purposes"`
}

func (c *HTTPClient) Store(ctx context.Context, salt []byte, purpose string, expiresInDays *int) (*StoreResult, error) {
	var resp storeResponse
	req := storeRequest{Salt: salt, Purpose: purpose, ExpiresInDays: expiresInDays}
	if err := c.do(ctx, http.MethodPost, "/salts", req, http.StatusCreated, &resp); err != nil {
		return nil, err
	}
	return &StoreResult{SaltID: resp.SaltID, ExpiresAt: resp.ExpiresAt}, nil
}

func (c *HTTPClient) Fetch(ctx context.Context, id string) (*Salt, error) {
	var resp fetchResponse
	if err := c.do(ctx, http.MethodGet, "/salts/"+url.PathEscape(id), nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &Salt{Value: resp.Salt, Purpose: resp.Purpose, CreatedAt: resp.CreatedAt, AccessCount: resp.AccessCount}, nil
}

func (c *HTTPClient) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/salts/"+url.PathEscape(id), nil, http.StatusOK, nil)
}

func (c *HTTPClient) Cleanup(ctx context.Context) (int64, error) {
	var resp cleanupResponse
	if err := c.do(ctx, http.MethodPost, "/salts/cleanup", nil, http.StatusOK, &resp); err != nil {
		return 0, err
	}
	return resp.DeletedCount, nil
}

func (c *HTTPClient) Stats(ctx context.Context) (map[string]int64, error) {
	var resp statsResponse
	if err := c.do(ctx, http.MethodGet, "/salts/stats", nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	if resp.Purposes == nil {
		resp.Purposes = map[string]int64{}
	}
	return resp.Purposes, nil
}

func (c *HTTPClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, http.StatusOK, nil)
}

func (c *HTTPClient) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in any, want int, out any) error {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", common.BearerPrefix+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return transportError(method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return statusError(method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %v: %w", method, path, err, common.ErrorUnavailable)
	}
	return nil
}

// transportError wraps a failed round trip. Dial and lookup failures
// never left this host.
func transportError(method, path string, err error) error {
	var op *net.OpError
	var dns *net.DNSError
	if (errors.As(err, &op) && op.Op == "dial") || errors.As(err, &dns) {
		return fmt.Errorf("%s %s: %v: %w: %w", method, path, err, common.ErrorUnavailable, errNotDelivered)
	}
	return fmt.Errorf("%s %s: %v: %w", method, path, err, common.ErrorUnavailable)
}

func statusError(method, path string, code int) error {
	var kind error
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		kind = common.ErrorUnauthorized
	case code == http.StatusNotFound:
		kind = common.ErrorNotFound
	case code == http.StatusBadRequest, code == http.StatusRequestEntityTooLarge:
		kind = common.ErrorValidation
	case code == http.StatusTooManyRequests:
		// the rate limiter answers before any handler runs
		return fmt.Errorf("%s %s: status %d: %w: %w", method, path, code, common.ErrorUnavailable, errNotDelivered)
	case code >= 500:
		kind = common.ErrorUnavailable
	default:
		kind = common.ErrorInternal
	}
	return fmt.Errorf("%s %s: status %d: %w", method, path, code, kind)
}
