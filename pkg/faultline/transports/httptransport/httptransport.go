// Package httptransport posts crash reports directly to the reporting
// backend and flushes the offline store on demand.
package httptransport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/faultline-io/faultline-go/pkg/faultline"
	"github.com/faultline-io/faultline-go/pkg/faultline/offline"
)

// DefaultEndpoint is the hosted ingestion endpoint for crash reports.
const DefaultEndpoint = "https://api.faultline.io/entries"

const apiKeyHeader = "X-ApiKey"

// HTTPClient is the minimal interface for the underlying HTTP client.
// *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures the transport.
type Option func(*Transport)

// WithEndpoint overrides the ingestion endpoint.
func WithEndpoint(url string) Option {
	return func(t *Transport) {
		if url != "" {
			t.endpoint = url
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client HTTPClient) Option {
	return func(t *Transport) { t.client = client }
}

// WithStore attaches the offline store SendCachedReports drains.
func WithStore(store *offline.Store) Option {
	return func(t *Transport) { t.store = store }
}

// WithLogger sets the logger for flush bookkeeping notices.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Transport) { t.logger = logger }
}

// Transport implements faultline.Transport over HTTP.
type Transport struct {
	endpoint string
	client   HTTPClient
	store    *offline.Store
	logger   zerolog.Logger
}

// New creates a transport posting to the default endpoint with a 30s
// request timeout.
func New(opts ...Option) *Transport {
	t := &Transport{
		endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SendCrashReport posts one report. Non-2xx responses are errors so the
// caller can queue the report for retry.
func (t *Transport) SendCrashReport(ctx context.Context, payload *faultline.CrashReportPayload, apiKey string) error {
	wire, err := payload.MarshalWire()
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return t.post(ctx, wire, apiKey)
}

// SendCachedReports drains the offline store oldest-first. A report is
// removed only after the backend accepted it; the first failure stops the
// flush so the remainder is retried next time.
func (t *Transport) SendCachedReports(ctx context.Context, apiKey string) error {
	if t.store == nil {
		return nil
	}

	cached, err := t.store.List()
	if err != nil {
		return fmt.Errorf("list cached reports: %w", err)
	}
	for _, entry := range cached {
		if err := t.post(ctx, entry.Wire, apiKey); err != nil {
			return fmt.Errorf("flush report %s: %w", entry.OccurrenceID, err)
		}
		if err := t.store.Remove(entry.OccurrenceID); err != nil {
			t.logger.Warn().Err(err).Str("occurrence_id", entry.OccurrenceID).Msg("sent report could not be removed from store")
		}
	}
	return nil
}

func (t *Transport) post(ctx context.Context, body []byte, apiKey string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
