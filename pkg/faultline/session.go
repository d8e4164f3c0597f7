// session.go holds the process-wide mutable session attached to every report.

package faultline

import (
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"
)

// platformTag seeds the tag set of every fresh session.
const platformTag = "Go"

// defaultMaxBreadcrumbs bounds the trail; oldest entries are evicted first.
const defaultMaxBreadcrumbs = 32

// Session is a deep-copied snapshot of the live session. Reports are built
// from snapshots so later session mutations cannot race with an in-flight
// report. Tags are sorted for stable output.
type Session struct {
	User        User           `json:"user"`
	Tags        []string       `json:"tags"`
	CustomData  map[string]any `json:"customData"`
	Breadcrumbs []Breadcrumb   `json:"breadcrumbs"`
}

// sessionStore owns the live session. There is exactly one per client; all
// mutation goes through its methods and readers only ever see snapshots.
type sessionStore struct {
	mu             sync.Mutex
	user           User
	tags           map[string]struct{}
	customData     map[string]any
	breadcrumbs    []Breadcrumb
	maxBreadcrumbs int
	clock          clock.Clock
}

func newSessionStore(maxBreadcrumbs int, clk clock.Clock) *sessionStore {
	s := &sessionStore{maxBreadcrumbs: maxBreadcrumbs, clock: clk}
	if s.maxBreadcrumbs <= 0 {
		s.maxBreadcrumbs = defaultMaxBreadcrumbs
	}
	s.resetLocked()
	return s
}

// resetLocked swaps in a fresh empty session. Callers hold s.mu (or own the
// store exclusively, as in newSessionStore).
func (s *sessionStore) resetLocked() {
	s.user = anonymousUser()
	s.tags = map[string]struct{}{platformTag: {}}
	s.customData = map[string]any{}
	s.breadcrumbs = nil
}

// AddTags adds tags to the session tag set. Set semantics: duplicates
// collapse and empty strings are ignored.
func (s *sessionStore) AddTags(tags ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tags {
		if t != "" {
			s.tags[t] = struct{}{}
		}
	}
}

// SetUser overwrites the session user and returns the canonical form.
func (s *sessionStore) SetUser(arg UserArg) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = resolveUser(arg)
	return s.user
}

// AddCustomData shallow-merges data into the session custom data, last
// write wins per key. The input is copied so callers cannot alias live state.
func (s *sessionStore) AddCustomData(data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customData = lo.Assign(s.customData, deepCopyMap(data))
}

// UpdateCustomData replaces the custom data with fn(current). Whatever the
// caller returns is stored as-is; the caller is trusted.
func (s *sessionStore) UpdateCustomData(fn func(map[string]any) map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customData = fn(deepCopyMap(s.customData))
}

// RecordBreadcrumb appends a breadcrumb to the trail, stamping the timestamp
// and defaulting unset fields. Returns the stored breadcrumb.
func (s *sessionStore) RecordBreadcrumb(message string, details *BreadcrumbDetails) Breadcrumb {
	crumb := Breadcrumb{
		Message:    message,
		Level:      BreadcrumbInfo,
		CustomData: map[string]any{},
		Timestamp:  s.clock.Now().UnixMilli(),
	}
	if details != nil {
		crumb.Category = details.Category
		if details.Level != "" {
			crumb.Level = details.Level
		}
		if details.CustomData != nil {
			crumb.CustomData = deepCopyMap(details.CustomData)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.breadcrumbs = append(s.breadcrumbs, crumb)
	if overflow := len(s.breadcrumbs) - s.maxBreadcrumbs; overflow > 0 {
		s.breadcrumbs = append([]Breadcrumb(nil), s.breadcrumbs[overflow:]...)
	}
	return crumb
}

// Clear atomically resets to a fresh empty session. No partial state is
// observable: the swap happens under the store lock.
func (s *sessionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// Snapshot returns a deep copy of the current session.
func (s *sessionStore) Snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags := lo.Keys(s.tags)
	sort.Strings(tags)

	crumbs := make([]Breadcrumb, len(s.breadcrumbs))
	for i, c := range s.breadcrumbs {
		c.CustomData = deepCopyMap(c.CustomData)
		crumbs[i] = c
	}

	return Session{
		User:        s.user,
		Tags:        tags,
		CustomData:  deepCopyMap(s.customData),
		Breadcrumbs: crumbs,
	}
}

// deepCopyValue copies maps and slices so snapshots cannot alias live
// session state. Scalars pass through.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = deepCopyValue(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = deepCopyValue(child)
		}
		return out
	default:
		return v
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return deepCopyValue(m).(map[string]any)
}
