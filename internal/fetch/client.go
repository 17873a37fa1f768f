// Package fetch implements the client side of the agent's data
// plane: one GET against the local endpoint, body buffered to EOF,
// decoded as JSON. Transport, status and decode failures are
// reported as distinct error types so callers can tell a flaky
// network from a broken payload.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/appconfd/appconfd/internal/source"
)

// versionHeader carries the deployed configuration version on
// data plane responses.
const versionHeader = "Configuration-Version"

// Document is a configuration document as served by the agent.
type Document struct {
	// Value is the decoded JSON document.
	Value any

	// Raw is the response body as received.
	Raw []byte

	// Version is the agent-reported configuration version, if any.
	Version string
}

type Config struct {
	// Host is the agent host.
	Host string `conf:"host"`

	// Port is the agent port.
	Port int `conf:"port"`

	// Timeout is the per-attempt request timeout.
	Timeout time.Duration `conf:"timeout"`

	// Retries is the number of retries for transport failures.
	// Status and decode failures are never retried.
	Retries int `conf:"retries"`

	// Backoff is the delay before the first retry, doubled for
	// each subsequent one.
	Backoff time.Duration `conf:"backoff"`
}

type Client struct {
	baseURL string
	client  *http.Client
	retries int
	backoff time.Duration
	log     *zap.Logger
}

func New(config Config, log *zap.Logger) *Client {
	host := config.Host
	if host == "" {
		host = "localhost"
	}

	port := config.Port
	if port == 0 {
		port = 2772
	}

	backoff := config.Backoff
	if backoff == 0 {
		backoff = 100 * time.Millisecond
	}

	return &Client{
		baseURL: fmt.Sprintf("http://%s:%d", host, port),
		client:  &http.Client{Timeout: config.Timeout},
		retries: config.Retries,
		backoff: backoff,
		log:     log.Named("fetch"),
	}
}

// URL returns the agent endpoint for the given profile.
func (c *Client) URL(ref source.ProfileRef) string {
	return fmt.Sprintf("%s/applications/%s/environments/%s/configurations/%s",
		c.baseURL,
		url.PathEscape(ref.Application),
		url.PathEscape(ref.Environment),
		url.PathEscape(ref.Configuration),
	)
}

// Fetch retrieves the currently deployed configuration for the
// given profile and decodes it as JSON.
func (c *Client) Fetch(ctx context.Context, ref source.ProfileRef) (Document, error) {
	endpoint := c.URL(ref)

	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := c.backoff << (attempt - 1)

			c.log.Debug("retrying fetch",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)

			select {
			case <-ctx.Done():
				return Document{}, &TransportError{URL: endpoint, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		doc, err := c.fetchOnce(ctx, endpoint)
		if err == nil {
			return doc, nil
		}

		// only transport failures are worth another attempt
		if !IsTransportError(err) {
			return Document{}, err
		}

		lastErr = err
	}

	return Document{}, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, endpoint string) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Document{}, &TransportError{URL: endpoint, Err: err}
	}

	res, err := c.client.Do(req)
	if err != nil {
		return Document{}, &TransportError{URL: endpoint, Err: err}
	}
	defer res.Body.Close()

	// Buffer the body to EOF before looking at anything else. A
	// partially delivered body must never yield a partial result.
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Document{}, &TransportError{URL: endpoint, Err: err}
	}

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return Document{}, &StatusError{URL: endpoint, StatusCode: res.StatusCode}
	}

	c.log.Debug("fetched configuration", zap.ByteString("body", body))

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return Document{}, &DecodeError{URL: endpoint, Err: err}
	}

	return Document{
		Value:   value,
		Raw:     body,
		Version: res.Header.Get(versionHeader),
	}, nil
}
