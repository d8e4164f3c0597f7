// Package offline is the durable on-device retry queue for crash reports
// that could not be transmitted. Reports are spooled one file per report
// and evicted oldest-first once the configured bound is exceeded.
package offline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/faultline-io/faultline-go/pkg/faultline"
)

// DefaultMaxReports bounds the spool when not configured otherwise.
const DefaultMaxReports = 64

const entrySuffix = ".report"

// Entry is one spooled report: the identity it was queued under and the
// wire bytes that would have been sent. Queuing and flushing move these
// bytes verbatim, so the meaning of a report survives the round trip.
type Entry struct {
	OccurrenceID string `msgpack:"occurrence_id"`
	QueuedAt     int64  `msgpack:"queued_at"`
	Wire         []byte `msgpack:"wire"`
}

// Option configures a Store.
type Option func(*Store)

// WithMaxReports sets the maximum number of spooled reports.
func WithMaxReports(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxReports = n
		}
	}
}

// WithLogger sets the logger used for eviction and corruption notices.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Store spools reports under dir, one msgpack-encoded file per report.
// Filenames embed a zero-padded queue timestamp so lexical order is
// chronological order.
type Store struct {
	mu         sync.Mutex
	dir        string
	maxReports int
	logger     zerolog.Logger
}

// NewStore creates a store rooted at dir. The directory is created on first
// enqueue.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{
		dir:        dir,
		maxReports: DefaultMaxReports,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue spools one report, evicting the oldest entries once the bound is
// exceeded. Files are written via temp-and-rename so a crash mid-write
// never leaves a corrupt entry behind.
func (s *Store) Enqueue(payload *faultline.CrashReportPayload) error {
	wire, err := payload.MarshalWire()
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create spool dir: %w", err)
	}

	entry := Entry{
		OccurrenceID: payload.OccurrenceID,
		QueuedAt:     time.Now().UnixMilli(),
		Wire:         wire,
	}
	data, err := msgpack.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode spool entry: %w", err)
	}

	path := filepath.Join(s.dir, entryName(entry))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write spool entry: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit spool entry: %w", err)
	}

	s.evictLocked()
	return nil
}

// List returns all spooled entries, oldest first. Corrupt entries are
// removed and skipped.
func (s *Store) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.entryNamesLocked()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read spool entry: %w", err)
		}
		var entry Entry
		if err := msgpack.Unmarshal(data, &entry); err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("removing corrupt spool entry")
			_ = os.Remove(path)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Remove deletes the entry queued under occurrenceID. Removing an absent
// entry is not an error, so a flush retried after a partial run converges.
func (s *Store) Remove(occurrenceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.entryNamesLocked()
	if err != nil {
		return err
	}
	for _, name := range names {
		if strings.HasSuffix(name, "-"+occurrenceID+entrySuffix) {
			if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
				return fmt.Errorf("remove spool entry: %w", err)
			}
			return nil
		}
	}
	return nil
}

// Len reports the number of spooled entries.
func (s *Store) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.entryNamesLocked()
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

// entryNamesLocked lists spool filenames in chronological order. A missing
// spool directory means an empty queue.
func (s *Store) entryNamesLocked() ([]string, error) {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read spool dir: %w", err)
	}

	var names []string
	for _, d := range dirents {
		if !d.IsDir() && strings.HasSuffix(d.Name(), entrySuffix) {
			names = append(names, d.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// evictLocked drops the oldest entries until the bound holds.
func (s *Store) evictLocked() {
	names, err := s.entryNamesLocked()
	if err != nil {
		s.logger.Warn().Err(err).Msg("spool eviction scan failed")
		return
	}
	for len(names) > s.maxReports {
		victim := names[0]
		names = names[1:]
		if err := os.Remove(filepath.Join(s.dir, victim)); err != nil {
			s.logger.Warn().Err(err).Str("file", victim).Msg("spool eviction failed")
			continue
		}
		s.logger.Warn().
			Str("file", victim).
			Str("reason", string(faultline.DiscardQueueOverflow)).
			Msg("evicted oldest spooled report")
	}
}

func entryName(entry Entry) string {
	return fmt.Sprintf("%020d-%s%s", entry.QueuedAt, entry.OccurrenceID, entrySuffix)
}
