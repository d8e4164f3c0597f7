// transport.go defines the direct delivery path used when no native
// reporter is active.

package faultline

import (
	"context"

	"github.com/rs/zerolog"
)

// Transport delivers crash reports to the reporting backend.
// Implementations must be safe for concurrent use.
type Transport interface {
	// SendCrashReport transmits one report. A returned error means the
	// backend did not accept the report and it should be queued for retry.
	SendCrashReport(ctx context.Context, payload *CrashReportPayload, apiKey string) error

	// SendCachedReports flushes previously queued reports. Invoked
	// asynchronously after init, never inline with user-facing calls.
	SendCachedReports(ctx context.Context, apiKey string) error
}

// ReportQueue is the durable on-device store for reports that failed to
// send. The router's obligation is to hand each failed report over exactly
// once; the queue owns bounding and eviction.
type ReportQueue interface {
	Enqueue(payload *CrashReportPayload) error
}

// noopTransport is the default when no transport is configured. Every send
// fails over to the queue so occurrences are never silently lost.
type noopTransport struct {
	logger zerolog.Logger
}

func (t noopTransport) SendCrashReport(_ context.Context, payload *CrashReportPayload, _ string) error {
	t.logger.Warn().Str("occurrence_id", payload.OccurrenceID).Msg("no transport configured")
	return errNoTransport
}

func (t noopTransport) SendCachedReports(context.Context, string) error { return nil }

// noopQueue is the default when no queue is configured. Reports handed to
// it are dropped with a log line.
type noopQueue struct {
	logger zerolog.Logger
}

func (q noopQueue) Enqueue(payload *CrashReportPayload) error {
	q.logger.Warn().Str("occurrence_id", payload.OccurrenceID).Msg("no report queue configured, dropping report")
	return nil
}
