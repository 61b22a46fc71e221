package storeclient

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

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/jakechorley/study-scheduler/internal/config"
	"github.com/jakechorley/study-scheduler/pkg/core/model"
)

// ErrNotFound is returned when the store answers 404
var ErrNotFound = errors.New("not found")

// StatusError is returned for non-2xx responses that are neither 404 nor 5xx
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status=%d, body=%s", e.Method, e.Path, e.Code, e.Body)
}

// Client talks to the study store REST API
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a store client from configuration. When client
// credentials are configured, requests carry an OAuth2 bearer token.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	httpClient := newHTTPClient(cfg.StoreTimeout)

	if cfg.Auth.Enabled() {
		cc := clientcredentials.Config{
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			TokenURL:     cfg.Auth.TokenURL,
			Scopes:       cfg.Auth.Scopes,
		}
		// Token requests and API requests share the tuned transport
		authCtx := context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		authClient := cc.Client(authCtx)
		authClient.Timeout = cfg.StoreTimeout
		httpClient = authClient
	}

	return NewClientWithHTTP(cfg.StoreBaseURL, httpClient)
}

// NewClientWithHTTP creates a store client around an existing HTTP client
func NewClientWithHTTP(baseURL string, httpClient *http.Client) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid store base URL: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// do sends a request and decodes a JSON response into out when out is non-nil.
// Transport failures and 5xx responses wrap model.ErrStoreUnavailable.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", model.ErrStoreUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	case resp.StatusCode >= 500:
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %s %s: status=%d, body=%s", model.ErrStoreUnavailable, method, path, resp.StatusCode, strings.TrimSpace(string(b)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		b, _ := io.ReadAll(resp.Body)
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
