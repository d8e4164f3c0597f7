// router.go decides, per occurrence, how a built report leaves the process.

package faultline

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// fatalTag is appended to the session tag set when the captured error was
// unrecoverable, so the built payload carries it.
const fatalTag = "Fatal"

var errNoTransport = errors.New("no transport configured")

// DiscardReason says why an occurrence produced no report at the backend.
type DiscardReason string

const (
	// DiscardBeforeSend: the configured before-send filter returned false.
	DiscardBeforeSend DiscardReason = "before_send"

	// DiscardMalformed: the occurrence had no usable error identity.
	DiscardMalformed DiscardReason = "malformed"

	// DiscardEncoding: the report could not be serialized.
	DiscardEncoding DiscardReason = "encoding"

	// DiscardQueueOverflow: the offline store evicted the report to stay
	// within its bound.
	DiscardQueueOverflow DiscardReason = "queue_overflow"
)

// deliveryRouter runs one occurrence through
// Captured -> Normalized -> Built -> Filtered -> Delivered|Queued|Dropped.
// Stages run in strict sequence per occurrence; concurrent occurrences each
// run their own pipeline against independent session snapshots.
type deliveryRouter struct {
	apiKey       string
	bridge       NativeBridge
	transport    Transport
	queue        ReportQueue
	normalizer   *stackNormalizer
	builder      *payloadBuilder
	store        *sessionStore
	onBeforeSend BeforeSendFilter
	logger       zerolog.Logger
	flushGroup   singleflight.Group
}

// processOccurrence feeds one captured error through the pipeline. It never
// returns an error: every failure mode is absorbed here.
func (r *deliveryRouter) processOccurrence(ctx context.Context, err error, frames []StackFrame, fatal bool) {
	if err == nil || strings.TrimSpace(err.Error()) == "" {
		r.logger.Warn().Str("reason", string(DiscardMalformed)).Msg("dropping occurrence without a usable error")
		return
	}

	if fatal {
		r.store.AddTags(fatalTag)
	}

	normalized := r.normalizer.Normalize(frames)
	payload, buildErr := r.builder.build(errorInfo(err, normalized), r.store.Snapshot())
	if buildErr != nil {
		r.logger.Error().Err(buildErr).Str("reason", string(DiscardEncoding)).Msg("dropping unencodable report")
		return
	}

	r.deliver(ctx, payload)
}

// deliver applies the before-send gate and commits to a transport path.
// Once committed, the occurrence runs to completion: success, queue, or
// drop.
func (r *deliveryRouter) deliver(ctx context.Context, payload *CrashReportPayload) {
	if r.onBeforeSend != nil && !r.onBeforeSend(*payload) {
		r.logger.Debug().
			Str("occurrence_id", payload.OccurrenceID).
			Str("reason", string(DiscardBeforeSend)).
			Msg("report suppressed by before-send filter")
		return
	}

	// The wire bytes were frozen at build time, so nothing a filter mutated
	// above is observable from here on.
	if r.bridge.HasInitialized() {
		wire, err := payload.MarshalWire()
		if err != nil {
			r.logger.Error().Err(err).Str("reason", string(DiscardEncoding)).Msg("dropping unencodable report")
			return
		}
		if err := r.bridge.SendCrashReport(string(wire), r.apiKey); err != nil {
			// The native layer owns retry; nothing more to do here.
			r.logger.Warn().Err(err).Str("occurrence_id", payload.OccurrenceID).Msg("native reporter rejected crash report")
		}
		return
	}

	if err := r.transport.SendCrashReport(ctx, payload, r.apiKey); err != nil {
		if !errors.Is(err, errNoTransport) {
			r.logger.Warn().Err(err).Str("occurrence_id", payload.OccurrenceID).Msg("transmission failed, queueing report")
		}
		if qErr := r.queue.Enqueue(payload); qErr != nil {
			r.logger.Error().Err(qErr).Str("occurrence_id", payload.OccurrenceID).Msg("failed to queue crash report")
		}
	}
}

// flushCachedReports pushes previously queued reports through the direct
// transport. Concurrent triggers collapse into a single in-flight flush.
func (r *deliveryRouter) flushCachedReports(ctx context.Context) {
	_, err, _ := r.flushGroup.Do("flush", func() (any, error) {
		return nil, r.transport.SendCachedReports(ctx, r.apiKey)
	})
	if err != nil {
		r.logger.Warn().Err(err).Msg("cached report flush failed")
	}
}
