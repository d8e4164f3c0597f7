package faultline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// stubTransport captures direct-path sends for verification in tests.
type stubTransport struct {
	mu          sync.Mutex
	sent        []*CrashReportPayload
	sendErr     error
	cachedCalls int
	cachedErr   error
	flushed     chan struct{}
}

func (t *stubTransport) SendCrashReport(_ context.Context, payload *CrashReportPayload, _ string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return t.sendErr
	}
	t.sent = append(t.sent, payload)
	return nil
}

func (t *stubTransport) SendCachedReports(context.Context, string) error {
	t.mu.Lock()
	t.cachedCalls++
	err := t.cachedErr
	t.mu.Unlock()
	if t.flushed != nil {
		t.flushed <- struct{}{}
	}
	return err
}

func (t *stubTransport) sentReports() []*CrashReportPayload {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*CrashReportPayload, len(t.sent))
	copy(out, t.sent)
	return out
}

// stubQueue records reports handed over for retry.
type stubQueue struct {
	mu      sync.Mutex
	entries []*CrashReportPayload
}

func (q *stubQueue) Enqueue(payload *CrashReportPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, payload)
	return nil
}

func (q *stubQueue) queued() []*CrashReportPayload {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*CrashReportPayload, len(q.entries))
	copy(out, q.entries)
	return out
}

// stubBridge records native-layer interactions.
type stubBridge struct {
	mu          sync.Mutex
	initErr     error
	initialized bool
	tags        []string
	user        User
	custom      map[string]any
	crumbs      []Breadcrumb
	sent        []string
	propErr     error
	env         Environment
	envErr      error
}

func (b *stubBridge) Init(BridgeConfig) error {
	if b.initErr != nil {
		return b.initErr
	}
	b.initialized = true
	return nil
}

func (b *stubBridge) HasInitialized() bool { return b.initialized }

func (b *stubBridge) SetTags(tags []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.propErr != nil {
		return b.propErr
	}
	b.tags = tags
	return nil
}

func (b *stubBridge) SetUser(user User) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.propErr != nil {
		return b.propErr
	}
	b.user = user
	return nil
}

func (b *stubBridge) SetCustomData(data map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.propErr != nil {
		return b.propErr
	}
	b.custom = data
	return nil
}

func (b *stubBridge) RecordBreadcrumb(crumb Breadcrumb) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.propErr != nil {
		return b.propErr
	}
	b.crumbs = append(b.crumbs, crumb)
	return nil
}

func (b *stubBridge) SendCrashReport(serialized string, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, serialized)
	return nil
}

func (b *stubBridge) EnvironmentInfo() (Environment, error) {
	if b.envErr != nil {
		return Environment{}, b.envErr
	}
	return b.env, nil
}

func quietOpts(extra ...Option) []Option {
	return append([]Option{WithLogger(zerolog.Nop()), WithAPIKey("test-key")}, extra...)
}

func TestRouter_FilterFalse_SuppressesEntirely(t *testing.T) {
	transport := &stubTransport{}
	queue := &stubQueue{}
	c, err := newClient(quietOpts(
		WithTransport(transport),
		WithReportQueue(queue),
		WithBeforeSendFilter(func(CrashReportPayload) bool { return false }),
	)...)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}

	c.CaptureError(context.Background(), errors.New("boom"))

	if got := len(transport.sentReports()); got != 0 {
		t.Errorf("transport calls = %d, want 0", got)
	}
	if got := len(queue.queued()); got != 0 {
		t.Errorf("queued reports = %d, want 0", got)
	}
}

func TestRouter_FilterTrue_SendsExactlyOnce(t *testing.T) {
	transport := &stubTransport{}
	c, err := newClient(quietOpts(
		WithTransport(transport),
		WithBeforeSendFilter(func(CrashReportPayload) bool { return true }),
	)...)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}

	c.CaptureError(context.Background(), errors.New("boom"))

	if got := len(transport.sentReports()); got != 1 {
		t.Errorf("transport calls = %d, want 1", got)
	}
}

func TestRouter_NoFilter_AlwaysSends(t *testing.T) {
	transport := &stubTransport{}
	c, err := newClient(quietOpts(WithTransport(transport))...)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}

	c.CaptureError(context.Background(), errors.New("boom"))

	if got := len(transport.sentReports()); got != 1 {
		t.Errorf("transport calls = %d, want 1", got)
	}
}

func TestRouter_TransportFailure_QueuesExactlyOne(t *testing.T) {
	transport := &stubTransport{sendErr: errors.New("network down")}
	queue := &stubQueue{}
	c, err := newClient(quietOpts(
		WithTransport(transport),
		WithReportQueue(queue),
	)...)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}

	c.CaptureError(context.Background(), errors.New("boom"))

	queued := queue.queued()
	if len(queued) != 1 {
		t.Fatalf("queued reports = %d, want 1", len(queued))
	}
	if queued[0].Details.Error.Message != "boom" {
		t.Errorf("queued message = %q, want boom", queued[0].Details.Error.Message)
	}
	if queued[0].OccurrenceID == "" {
		t.Error("queued report should carry its occurrence ID")
	}
}

func TestRouter_NativeBridgeActive_DelegatesDelivery(t *testing.T) {
	bridge := &stubBridge{}
	transport := &stubTransport{}
	c, err := newClient(quietOpts(
		WithNativeBridge(bridge),
		WithTransport(transport),
	)...)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}

	c.CaptureError(context.Background(), errors.New("boom"))

	if got := len(bridge.sent); got != 1 {
		t.Fatalf("bridge sends = %d, want 1", got)
	}
	if !strings.Contains(bridge.sent[0], `"Message":"boom"`) {
		t.Errorf("bridge payload missing wire message: %s", bridge.sent[0])
	}
	if got := len(transport.sentReports()); got != 0 {
		t.Errorf("transport calls = %d, want 0 when the native path is active", got)
	}
}

func TestRouter_MalformedOccurrences_Dropped(t *testing.T) {
	transport := &stubTransport{}
	queue := &stubQueue{}
	c, err := newClient(quietOpts(
		WithTransport(transport),
		WithReportQueue(queue),
	)...)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}

	c.router.processOccurrence(context.Background(), nil, nil, false)
	c.router.processOccurrence(context.Background(), errors.New("   "), nil, false)

	if got := len(transport.sentReports()) + len(queue.queued()); got != 0 {
		t.Errorf("malformed occurrences produced %d reports, want 0", got)
	}
}

func TestRouter_FatalAppendsTag(t *testing.T) {
	transport := &stubTransport{}
	c, err := newClient(quietOpts(WithTransport(transport))...)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}

	c.router.processOccurrence(context.Background(), errors.New("boom"), nil, true)

	sent := transport.sentReports()
	if len(sent) != 1 {
		t.Fatalf("transport calls = %d, want 1", len(sent))
	}
	if !containsTag(sent[0].Details.Tags, fatalTag) {
		t.Errorf("Tags = %v, want %q present", sent[0].Details.Tags, fatalTag)
	}
}

func TestRouter_NonFatalHasNoFatalTag(t *testing.T) {
	transport := &stubTransport{}
	c, err := newClient(quietOpts(WithTransport(transport))...)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}

	c.CaptureError(context.Background(), errors.New("boom"))

	sent := transport.sentReports()
	if len(sent) != 1 {
		t.Fatalf("transport calls = %d, want 1", len(sent))
	}
	if containsTag(sent[0].Details.Tags, fatalTag) {
		t.Errorf("Tags = %v, want no %q", sent[0].Details.Tags, fatalTag)
	}
}

func TestRouter_FilterMutation_NotObservableOnWire(t *testing.T) {
	bridge := &stubBridge{}
	c, err := newClient(quietOpts(
		WithNativeBridge(bridge),
		WithBeforeSendFilter(func(p CrashReportPayload) bool {
			p.Details.Tags[0] = "tampered"
			p.Details.UserCustomData["injected"] = true
			return true
		}),
	)...)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}

	c.AddTags("real")
	c.CaptureError(context.Background(), errors.New("boom"))

	if len(bridge.sent) != 1 {
		t.Fatalf("bridge sends = %d, want 1", len(bridge.sent))
	}
	if strings.Contains(bridge.sent[0], "tampered") || strings.Contains(bridge.sent[0], "injected") {
		t.Errorf("filter mutation leaked into wire payload: %s", bridge.sent[0])
	}
}

func containsTag(tags []string, want string) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}
