// Package linkhub provides the HTTP client for the LinkHub batch ingest API.
//
// Every request is HMAC-signed over the exact transmitted bytes; the caller
// hands Send the marshaled payload and must not re-serialize it afterward.
package linkhub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/okrtools/goalpost/internal/config"
	"github.com/okrtools/goalpost/internal/secrets"
	"github.com/okrtools/goalpost/internal/signer"
)

// Response is the remote reply to a batch POST. Success reports whether the
// batch as a whole was accepted; individual items carry their own outcome.
type Response struct {
	Success bool         `json:"success"`
	Results []ItemResult `json:"results"`
}

// ItemResult is the per-item outcome within a batch response. Items are
// correlated back to queue entries by (EntityType, ExternalID).
type ItemResult struct {
	EntityType string `json:"entityType"`
	ExternalID string `json:"externalId"`
	LinkHubID  string `json:"linkHubId,omitempty"`
	Action     string `json:"action,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Client posts signed sync batches to the LinkHub ingest endpoint.
type Client struct {
	cfg        config.LinkHub
	creds      *secrets.Vault
	httpClient *http.Client
	breaker    *breaker
}

// NewClient creates a LinkHub client from configuration. Outgoing requests
// are traced via otelhttp.
func NewClient(cfg config.LinkHub) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: newBreaker(5, 30*time.Second),
	}
}

// SetCredentials attaches a hot-reloadable credential vault. When set, its
// current values take precedence over the static configuration, which lets
// the signing secret rotate without a restart.
func (c *Client) SetCredentials(v *secrets.Vault) {
	c.creds = v
}

// Send posts the payload bytes, signed, to the ingest endpoint and parses
// the batch response. A transport error or non-2xx status fails the whole
// batch; per-item errors come back inside the Response.
func (c *Client) Send(ctx context.Context, payload []byte) (*Response, error) {
	if !c.breaker.allow() {
		return nil, ErrUnavailable
	}

	resp, err := c.post(ctx, payload)
	c.breaker.observe(err == nil)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, payload []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.EndpointURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	prefix, secret := c.cfg.APIKeyPrefix, c.cfg.SigningSecret
	if c.creds != nil {
		if p := c.creds.KeyPrefix(); p != "" {
			prefix = p
		}
		if s := c.creds.SigningSecret(); s != "" {
			secret = s
		}
	}
	req.Header = signer.Headers(payload, prefix, secret, c.cfg.ProtocolVersion)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post batch: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return nil, fmt.Errorf("linkhub error %d: %s", httpResp.StatusCode, string(data))
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, nil
}
