// bridge.go defines the contract with the embedded native crash reporter.

package faultline

// BridgeConfig carries the option subset the native layer needs at init.
type BridgeConfig struct {
	APIKey                       string
	Version                      string
	CustomCrashReportingEndpoint string
	EnableRealUserMonitoring     bool
	DisableNetworkMonitoring     bool
	IgnoredURLs                  []string
}

// NativeBridge is the embedded platform reporter. When initialized it takes
// over report delivery (including its own persistence and retry) and
// receives every session mutation so native-captured crashes carry the same
// context. All methods are best-effort from the pipeline's point of view:
// failures are logged and never surface to host code.
type NativeBridge interface {
	// Init hands the bridge its configuration. An error here disables the
	// native path for the life of the process.
	Init(cfg BridgeConfig) error

	// HasInitialized reports whether the native layer is active.
	HasInitialized() bool

	SetTags(tags []string) error
	SetUser(user User) error
	SetCustomData(data map[string]any) error
	RecordBreadcrumb(crumb Breadcrumb) error

	// SendCrashReport hands over a serialized wire payload for delivery.
	// Retry on failure is the bridge's responsibility, not the caller's.
	SendCrashReport(serializedPayload string, apiKey string) error

	// EnvironmentInfo describes the device, best-effort.
	EnvironmentInfo() (Environment, error)
}

// noopBridge stands in when native crash reporting is disabled or absent.
// It never reports as initialized, so the router always takes the direct
// transport path.
type noopBridge struct{}

func (noopBridge) Init(BridgeConfig) error               { return nil }
func (noopBridge) HasInitialized() bool                  { return false }
func (noopBridge) SetTags([]string) error                { return nil }
func (noopBridge) SetUser(User) error                    { return nil }
func (noopBridge) SetCustomData(map[string]any) error    { return nil }
func (noopBridge) RecordBreadcrumb(Breadcrumb) error     { return nil }
func (noopBridge) SendCrashReport(string, string) error  { return nil }
func (noopBridge) EnvironmentInfo() (Environment, error) { return Environment{}, nil }
