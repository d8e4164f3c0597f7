// breadcrumb.go defines the breadcrumb trail entries recorded ahead of a fault.

package faultline

// BreadcrumbLevel indicates the severity of a breadcrumb.
type BreadcrumbLevel string

const (
	// BreadcrumbDebug marks diagnostic noise useful only when digging in.
	BreadcrumbDebug BreadcrumbLevel = "debug"

	// BreadcrumbInfo is the default level for recorded breadcrumbs.
	BreadcrumbInfo BreadcrumbLevel = "info"

	// BreadcrumbWarning marks something suspicious that preceded the fault.
	BreadcrumbWarning BreadcrumbLevel = "warning"

	// BreadcrumbError marks a handled error that preceded the fault.
	BreadcrumbError BreadcrumbLevel = "error"
)

// Breadcrumb is a timestamped marker recorded by the host application prior
// to a fault and included in reports for context. The timestamp is stamped
// by the pipeline at record time, never by the caller.
type Breadcrumb struct {
	Message  string          `json:"message"`
	Category string          `json:"category"`
	Level    BreadcrumbLevel `json:"level"`

	// CustomData is user data and crosses the wire without relabeling.
	CustomData map[string]any `json:"customData"`

	// Timestamp is epoch milliseconds at record time.
	Timestamp int64 `json:"timestamp"`
}

// BreadcrumbDetails carries the optional fields of RecordBreadcrumb.
// Zero-valued fields fall back to defaults: empty category, info level,
// empty custom data.
type BreadcrumbDetails struct {
	Category   string
	Level      BreadcrumbLevel
	CustomData map[string]any
}
