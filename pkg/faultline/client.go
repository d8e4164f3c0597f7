// client.go is the public pipeline surface: initialization, session
// mutators, and capture entry points.

package faultline

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrRUMWithoutNative is returned by Init when real user monitoring is
// requested but no native layer is available to host it.
var ErrRUMWithoutNative = errors.New("real user monitoring requires an initialized native reporter")

// Client owns one crash-report pipeline: the live session, the delivery
// router, and the interceptor chain. There is exactly one live session per
// client.
type Client struct {
	cfg      config
	logger   zerolog.Logger
	store    *sessionStore
	bridge   NativeBridge
	router   *deliveryRouter
	handlers *handlerChain
	closed   atomic.Bool
}

// Init builds a client, installs it as the package-level singleton, and, if
// no native reporter is active, schedules an asynchronous flush of any
// reports queued by earlier runs.
func Init(opts ...Option) (*Client, error) {
	c, err := newClient(opts...)
	if err != nil {
		return nil, err
	}

	globalMu.Lock()
	globalClient = c
	globalMu.Unlock()

	if c.cfg.enableCrashReporting && !c.bridge.HasInitialized() {
		go c.router.flushCachedReports(context.Background())
	}
	return c, nil
}

func newClient(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger

	bridge := cfg.bridge
	if bridge == nil || cfg.disableNativeCrashReporting {
		bridge = noopBridge{}
	} else if err := bridge.Init(BridgeConfig{
		APIKey:                       cfg.apiKey,
		Version:                      cfg.version,
		CustomCrashReportingEndpoint: cfg.customEndpoint,
		EnableRealUserMonitoring:     cfg.enableRealUserMonitoring,
		DisableNetworkMonitoring:     cfg.disableNetworkMonitoring,
		IgnoredURLs:                  append([]string(nil), cfg.ignoredURLs...),
	}); err != nil {
		logger.Warn().Err(err).Msg("native reporter failed to initialize, using direct delivery")
		bridge = noopBridge{}
	}

	// RUM has no transport of its own; without a native layer it cannot
	// function, and silently ignoring the request would hide a
	// misconfiguration.
	if cfg.enableRealUserMonitoring && !bridge.HasInitialized() {
		return nil, ErrRUMWithoutNative
	}

	transport := cfg.transport
	if transport == nil {
		transport = noopTransport{logger: logger}
	}
	queue := cfg.queue
	if queue == nil {
		queue = noopQueue{logger: logger}
	}

	store := newSessionStore(cfg.maxBreadcrumbs, cfg.clock)
	router := &deliveryRouter{
		apiKey:    cfg.apiKey,
		bridge:    bridge,
		transport: transport,
		queue:     queue,
		normalizer: &stackNormalizer{
			developmentMode: cfg.developmentMode,
			symbolicator:    cfg.symbolicator,
			logger:          logger,
		},
		builder: &payloadBuilder{
			version: cfg.version,
			clock:   cfg.clock,
			env:     environmentSource(bridge, logger),
		},
		store:        store,
		onBeforeSend: cfg.onBeforeSend,
		logger:       logger,
	}

	return &Client{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		bridge:   bridge,
		router:   router,
		handlers: &handlerChain{},
	}, nil
}

// enabled reports whether pipeline operations may run, logging a warning
// when they may not.
func (c *Client) enabled(op string) bool {
	if c.closed.Load() {
		c.logger.Warn().Str("op", op).Msg("client closed, call ignored")
		return false
	}
	if !c.cfg.enableCrashReporting {
		c.logger.Warn().Str("op", op).Msg("crash reporting disabled, call ignored")
		return false
	}
	return true
}

// propagate forwards new session state to the native layer. Failure is
// logged and never reaches the caller.
func (c *Client) propagate(op string, fn func(NativeBridge) error) {
	if !c.bridge.HasInitialized() {
		return
	}
	if err := fn(c.bridge); err != nil {
		c.logger.Warn().Err(err).Str("op", op).Msg("native session propagation failed")
	}
}

// AddTags adds tags to the session tag set. Idempotent, order-independent.
func (c *Client) AddTags(tags ...string) {
	if !c.enabled("AddTags") {
		return
	}
	c.store.AddTags(tags...)
	c.propagate("SetTags", func(b NativeBridge) error {
		return b.SetTags(c.store.Snapshot().Tags)
	})
}

// SetUser overwrites the session user. An empty identifier synthesizes a
// stable anonymous identity.
func (c *Client) SetUser(arg UserArg) {
	if !c.enabled("SetUser") {
		return
	}
	user := c.store.SetUser(arg)
	c.propagate("SetUser", func(b NativeBridge) error {
		return b.SetUser(user)
	})
}

// AddCustomData shallow-merges data into the session custom data.
func (c *Client) AddCustomData(data map[string]any) {
	if !c.enabled("AddCustomData") {
		return
	}
	c.store.AddCustomData(data)
	c.propagate("SetCustomData", func(b NativeBridge) error {
		return b.SetCustomData(c.store.Snapshot().CustomData)
	})
}

// UpdateCustomData replaces the session custom data with fn(current).
func (c *Client) UpdateCustomData(fn func(map[string]any) map[string]any) {
	if !c.enabled("UpdateCustomData") {
		return
	}
	c.store.UpdateCustomData(fn)
	c.propagate("SetCustomData", func(b NativeBridge) error {
		return b.SetCustomData(c.store.Snapshot().CustomData)
	})
}

// RecordBreadcrumb appends a breadcrumb to the session trail.
func (c *Client) RecordBreadcrumb(message string, details *BreadcrumbDetails) {
	if !c.enabled("RecordBreadcrumb") {
		return
	}
	crumb := c.store.RecordBreadcrumb(message, details)
	c.propagate("RecordBreadcrumb", func(b NativeBridge) error {
		return b.RecordBreadcrumb(crumb)
	})
}

// ClearSession atomically resets the session to its empty default state.
func (c *Client) ClearSession() {
	if !c.enabled("ClearSession") {
		return
	}
	c.store.Clear()
	snap := c.store.Snapshot()
	c.propagate("ClearSession", func(b NativeBridge) error {
		if err := b.SetTags(snap.Tags); err != nil {
			return err
		}
		if err := b.SetUser(snap.User); err != nil {
			return err
		}
		return b.SetCustomData(snap.CustomData)
	})
}

// Close stops the client. Further captures and mutations are dropped with a
// warning.
func (c *Client) Close() error {
	c.closed.Store(true)
	return nil
}

// Package-level singleton surface.

var (
	globalMu     sync.RWMutex
	globalClient *Client

	fallbackLogger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
)

func active() *Client {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalClient
}

func warnUninitialized(op string) {
	fallbackLogger.Warn().Str("op", op).Msg("faultline not initialized, call ignored")
}

// AddTags adds tags on the shared client.
func AddTags(tags ...string) {
	if c := active(); c != nil {
		c.AddTags(tags...)
		return
	}
	warnUninitialized("AddTags")
}

// SetUser overwrites the user on the shared client.
func SetUser(arg UserArg) {
	if c := active(); c != nil {
		c.SetUser(arg)
		return
	}
	warnUninitialized("SetUser")
}

// AddCustomData merges custom data on the shared client.
func AddCustomData(data map[string]any) {
	if c := active(); c != nil {
		c.AddCustomData(data)
		return
	}
	warnUninitialized("AddCustomData")
}

// UpdateCustomData replaces custom data on the shared client.
func UpdateCustomData(fn func(map[string]any) map[string]any) {
	if c := active(); c != nil {
		c.UpdateCustomData(fn)
		return
	}
	warnUninitialized("UpdateCustomData")
}

// RecordBreadcrumb records a breadcrumb on the shared client.
func RecordBreadcrumb(message string, details *BreadcrumbDetails) {
	if c := active(); c != nil {
		c.RecordBreadcrumb(message, details)
		return
	}
	warnUninitialized("RecordBreadcrumb")
}

// ClearSession resets the shared client's session.
func ClearSession() {
	if c := active(); c != nil {
		c.ClearSession()
		return
	}
	warnUninitialized("ClearSession")
}

// CaptureError records a non-fatal occurrence on the shared client.
func CaptureError(ctx context.Context, err error) {
	if c := active(); c != nil {
		c.CaptureError(ctx, err)
		return
	}
	warnUninitialized("CaptureError")
}

// Recover captures an in-flight panic on the shared client as a fatal
// occurrence. Must be deferred directly: defer faultline.Recover(ctx).
func Recover(ctx context.Context) any {
	r := recover()
	if r == nil {
		return nil
	}
	if c := active(); c != nil {
		c.capture(ctx, recoveredError(r), captureFrames(2), true)
	} else {
		warnUninitialized("Recover")
	}
	return r
}

// Go runs fn on a goroutine via the shared client, capturing returned
// errors as non-fatal occurrences and panics as fatal ones.
func Go(ctx context.Context, fn func() error) {
	if c := active(); c != nil {
		c.Go(ctx, fn)
		return
	}
	warnUninitialized("Go")
}
