package edge

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"HlxPurge/internal/logger"

	"go.uber.org/zap"
)

const (
	DefaultMethod         = "HLXPURGE"
	DefaultMaxConnections = 20
)

// Purger issues a single purge against an absolute target URL.
type Purger interface {
	Purge(ctx context.Context, target string) ([]Entry, error)
}

// Session is a Purger that owns a connection pool.
type Session interface {
	Purger
	Close() error
}

// Options configure a HelixClient.
type Options struct {
	// Method is the purge verb. Default HLXPURGE.
	Method string
	// Token, when set, is sent as a bearer credential.
	Token string
	// MaxConnections caps total and per-host sockets. Default 20.
	MaxConnections int
	// Transport overrides the pooled transport; used by tests.
	Transport http.RoundTripper
}

// HelixClient sends purge requests to a Helix edge over one shared pool.
type HelixClient struct {
	client *http.Client
	method string
	token  string
	log    *zap.Logger
}

// NewHelixClient opens a pool sized by opts.MaxConnections. Close releases it.
func NewHelixClient(opts Options) *HelixClient {
	if opts.Method == "" {
		opts.Method = DefaultMethod
	}
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = DefaultMaxConnections
	}
	rt := opts.Transport
	if rt == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.MaxConnsPerHost = opts.MaxConnections
		t.MaxIdleConns = opts.MaxConnections
		t.MaxIdleConnsPerHost = opts.MaxConnections
		rt = t
	}
	return &HelixClient{
		client: &http.Client{Transport: rt},
		method: opts.Method,
		token:  opts.Token,
		log:    logger.Named("edge").With(logger.Method(opts.Method)),
	}
}

// Purge sends one purge request and validates the acknowledgment.
// Network failures come back as *TransportError; contract failures as the
// error types returned by Validate.
func (c *HelixClient) Purge(ctx context.Context, target string) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, c.method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create purge request: %w", err)
	}
	req.Header.Set("Accept", jsonContentType)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	began := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug("purge response",
		logger.URL(target),
		logger.Status(resp.StatusCode),
		logger.Duration(time.Since(began)))

	return Validate(resp)
}

// Close drops every idle connection of the pool.
func (c *HelixClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
