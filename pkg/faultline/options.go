// options.go holds client configuration and its defaults.

package faultline

import (
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// BeforeSendFilter gates transmission of a built payload. Returning false
// suppresses the report entirely; there is no partial send. The payload's
// wire form is frozen before the filter runs, so mutating the argument has
// no effect on what is transmitted.
type BeforeSendFilter func(payload CrashReportPayload) bool

// Option configures a Client.
type Option func(*config)

type config struct {
	apiKey                      string
	version                     string
	enableCrashReporting        bool
	enableRealUserMonitoring    bool
	disableNativeCrashReporting bool
	disableNetworkMonitoring    bool
	customEndpoint              string
	onBeforeSend                BeforeSendFilter
	ignoredURLs                 []string
	maxBreadcrumbs              int
	developmentMode             bool
	symbolicator                Symbolicator
	bridge                      NativeBridge
	transport                   Transport
	queue                       ReportQueue
	logger                      zerolog.Logger
	clock                       clock.Clock
}

func defaultConfig() config {
	return config{
		enableCrashReporting: true,
		maxBreadcrumbs:       defaultMaxBreadcrumbs,
		logger: zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger(),
		clock: clock.New(),
	}
}

// WithAPIKey sets the API key sent with every report.
func WithAPIKey(key string) Option {
	return func(c *config) { c.apiKey = key }
}

// WithVersion sets the application version stamped on reports. Unset
// versions are reported as "Not supplied".
func WithVersion(version string) Option {
	return func(c *config) { c.version = version }
}

// WithCrashReporting enables or disables crash reporting. When disabled,
// every pipeline operation logs a warning and no-ops.
func WithCrashReporting(enabled bool) Option {
	return func(c *config) { c.enableCrashReporting = enabled }
}

// WithRealUserMonitoring requests real user monitoring. RUM is fully
// delegated to the native layer; Init fails if no native bridge is active.
func WithRealUserMonitoring(enabled bool) Option {
	return func(c *config) { c.enableRealUserMonitoring = enabled }
}

// WithoutNativeCrashReporting forces the direct transport path even when a
// native bridge is configured.
func WithoutNativeCrashReporting() Option {
	return func(c *config) { c.disableNativeCrashReporting = true }
}

// WithoutNetworkMonitoring disables native network-request monitoring.
func WithoutNetworkMonitoring() Option {
	return func(c *config) { c.disableNetworkMonitoring = true }
}

// WithCustomCrashReportingEndpoint overrides the backend ingestion endpoint
// handed to the native layer at init. Direct transports take their endpoint
// at construction.
func WithCustomCrashReportingEndpoint(url string) Option {
	return func(c *config) { c.customEndpoint = url }
}

// WithBeforeSendFilter installs the before-send gate. Absence of a filter
// is equivalent to "always send".
func WithBeforeSendFilter(filter BeforeSendFilter) Option {
	return func(c *config) { c.onBeforeSend = filter }
}

// WithIgnoredURLs sets URL patterns the network monitor skips. Passed to
// the native layer at init.
func WithIgnoredURLs(patterns ...string) Option {
	return func(c *config) { c.ignoredURLs = append(c.ignoredURLs, patterns...) }
}

// WithMaxBreadcrumbs bounds the breadcrumb trail (default: 32). Oldest
// entries are evicted first.
func WithMaxBreadcrumbs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxBreadcrumbs = n
		}
	}
}

// WithDevelopmentMode routes stack traces through the symbolicator instead
// of production normalization.
func WithDevelopmentMode() Option {
	return func(c *config) { c.developmentMode = true }
}

// WithSymbolicator sets the development-mode symbolication collaborator.
func WithSymbolicator(s Symbolicator) Option {
	return func(c *config) { c.symbolicator = s }
}

// WithNativeBridge sets the embedded native reporter.
func WithNativeBridge(b NativeBridge) Option {
	return func(c *config) { c.bridge = b }
}

// WithTransport sets the direct delivery transport.
func WithTransport(t Transport) Option {
	return func(c *config) { c.transport = t }
}

// WithReportQueue sets the on-device retry queue for failed sends.
func WithReportQueue(q ReportQueue) Option {
	return func(c *config) { c.queue = q }
}

// WithLogger replaces the default stderr logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithClock injects the clock behind breadcrumb and report timestamps.
func WithClock(clk clock.Clock) Option {
	return func(c *config) { c.clock = clk }
}
