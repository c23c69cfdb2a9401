package edge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	cloudflare "github.com/cloudflare/cloudflare-go"
)

// Cloudflare accepts at most this many files per purge_cache call.
const cloudflareBatchSize = 30

// ErrCloudflareDisabled is returned when zone, token or public URL is missing.
var ErrCloudflareDisabled = errors.New("cloudflare mirror purge is not configured")

// CloudflareConfig describes the production zone fronting the site.
type CloudflareConfig struct {
	ZoneID    string
	APIToken  string
	PublicURL string
}

func (c CloudflareConfig) Enabled() bool {
	return c.ZoneID != "" && c.APIToken != "" && c.PublicURL != ""
}

// BatchError is one failed purge_cache call.
type BatchError struct {
	From, To int
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("cloudflare[%d:%d]: %v", e.From, e.To, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// CloudflarePurger purges changed files from a Cloudflare zone by URL.
type CloudflarePurger struct {
	api     *cloudflare.API
	zoneID  string
	baseURL string
}

// NewCloudflarePurger builds a purger; opts are passed to the API client.
func NewCloudflarePurger(cfg CloudflareConfig, opts ...cloudflare.Option) (*CloudflarePurger, error) {
	if !cfg.Enabled() {
		return nil, ErrCloudflareDisabled
	}
	if _, err := ParseBase(cfg.PublicURL); err != nil {
		return nil, err
	}
	opts = append([]cloudflare.Option{cloudflare.HTTPClient(&http.Client{Timeout: 30 * time.Second})}, opts...)
	api, err := cloudflare.NewWithAPIToken(cfg.APIToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("init cloudflare client: %w", err)
	}
	return &CloudflarePurger{api: api, zoneID: cfg.ZoneID, baseURL: cfg.PublicURL}, nil
}

// PurgeFiles purges the public URL of every path. Batches are sent in order;
// a failing batch does not stop later ones. Returns the number of URLs sent
// in successful batches and one *BatchError per failed batch.
func (p *CloudflarePurger) PurgeFiles(ctx context.Context, paths []string) (int, []error) {
	urls := make([]string, len(paths))
	for i, f := range paths {
		urls[i] = JoinURLPath(p.baseURL, f)
	}

	var (
		purged int
		errs   []error
	)
	for from := 0; from < len(urls); from += cloudflareBatchSize {
		to := min(from+cloudflareBatchSize, len(urls))
		if err := p.purgeBatch(ctx, urls[from:to]); err != nil {
			errs = append(errs, &BatchError{From: from, To: to, Err: err})
			continue
		}
		purged += to - from
	}
	return purged, errs
}

func (p *CloudflarePurger) purgeBatch(ctx context.Context, files []string) error {
	ctx, cancel := ensureTimeout(ctx)
	defer cancel()

	resp, err := p.api.PurgeCache(ctx, p.zoneID, cloudflare.PurgeCacheRequest{Files: files})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("purge_cache unsuccessful: %v", resp.Errors)
	}
	return nil
}

func ensureTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 30*time.Second)
}
