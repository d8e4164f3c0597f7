// payload.go builds the immutable crash report for one fault occurrence.

package faultline

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// versionNotSupplied is the application version sentinel used when the host
// never configured one.
const versionNotSupplied = "Not supplied"

// Client descriptor stamped on every report.
const (
	clientName    = "faultline-go"
	clientVersion = "1.3.0"
)

// ErrorInfo is the identity of the captured error.
type ErrorInfo struct {
	ClassName  string       `json:"className"`
	Message    string       `json:"message"`
	StackTrace []StackFrame `json:"stackTrace"`
}

// ClientInfo names the SDK that produced a report.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// PayloadDetails is the body of a crash report.
type PayloadDetails struct {
	Error       ErrorInfo   `json:"error"`
	Environment Environment `json:"environment"`
	Client      ClientInfo  `json:"client"`

	// UserCustomData crosses the wire byte-for-byte, unrelabeled.
	UserCustomData map[string]any `json:"userCustomData"`

	Tags        []string     `json:"tags"`
	User        User         `json:"user"`
	Breadcrumbs []Breadcrumb `json:"breadcrumbs"`
	Version     string       `json:"version"`
}

// CrashReportPayload is one fault occurrence, fully qualified and immutable
// once built. OccurredOn is stamped at build time, so it trails the actual
// fault by however long capture and normalization took.
type CrashReportPayload struct {
	// OccurrenceID identifies the occurrence in logs and in the offline
	// store. It is not part of the wire payload.
	OccurrenceID string `json:"-"`

	OccurredOn string         `json:"occurredOn"`
	Details    PayloadDetails `json:"details"`

	// wire is the serialized form, fixed at build time. Mutations made to
	// the payload afterward (for example by a before-send filter) never
	// reach these bytes.
	wire []byte
}

// MarshalWire returns the wire-form JSON: every field name relabeled to
// upper camel case except the custom-data subtrees. The result is cached at
// build time and returned verbatim afterward.
func (p *CrashReportPayload) MarshalWire() ([]byte, error) {
	if p.wire != nil {
		out := make([]byte, len(p.wire))
		copy(out, p.wire)
		return out, nil
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("decode report tree: %w", err)
	}
	wire, err := json.Marshal(toWireCase(tree))
	if err != nil {
		return nil, fmt.Errorf("encode wire report: %w", err)
	}
	return wire, nil
}

// errorInfo derives the report error identity from a Go error.
func errorInfo(err error, frames []StackFrame) ErrorInfo {
	return ErrorInfo{
		ClassName:  errorClassName(err),
		Message:    err.Error(),
		StackTrace: frames,
	}
}

// errorClassName names the concrete error type, without pointer markers.
func errorClassName(err error) string {
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "error"
	}
	return t.String()
}

// payloadBuilder composes session snapshots, normalized frames, and
// environment metadata into frozen reports.
type payloadBuilder struct {
	version string
	clock   clock.Clock
	env     func() Environment
}

// build constructs a CrashReportPayload and freezes its wire form. The
// session snapshot is already a deep copy, so later session mutations
// cannot reach the report.
func (b *payloadBuilder) build(info ErrorInfo, session Session) (*CrashReportPayload, error) {
	now := b.clock.Now()
	_, offsetSeconds := now.Zone()

	env := b.env()
	env.UtcOffset = float64(offsetSeconds) / 3600

	version := b.version
	if version == "" {
		version = versionNotSupplied
	}

	custom := session.CustomData
	if custom == nil {
		custom = map[string]any{}
	}

	p := &CrashReportPayload{
		OccurrenceID: uuid.NewString(),
		OccurredOn:   now.UTC().Format("2006-01-02T15:04:05Z"),
		Details: PayloadDetails{
			Error:          info,
			Environment:    env,
			Client:         ClientInfo{Name: clientName, Version: clientVersion},
			UserCustomData: custom,
			Tags:           session.Tags,
			User:           session.User,
			Breadcrumbs:    session.Breadcrumbs,
			Version:        version,
		},
	}

	wire, err := p.MarshalWire()
	if err != nil {
		return nil, err
	}
	p.wire = wire
	return p, nil
}
