package store

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// DefaultLimit is the result cap for Query and Search when none is given.
const DefaultLimit = 20

// entry is an Alert with its timestamp pre-parsed for ordering.
type entry struct {
	alert Alert
	ts    stamp
}

// Store holds every Alert parsed from the history log. It is built by Load
// and read-only afterwards, so concurrent readers need no locking.
type Store struct {
	logger *slog.Logger

	loaded    bool
	path      string
	exists    bool
	sizeBytes int64
	linesRead int
	skipped   map[SkipReason]int

	// entries is in log order; recent indexes entries most-recent-first.
	entries []entry
	recent  []int
}

// New creates an unloaded Store. Call Load before any query.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger, skipped: make(map[SkipReason]int)}
}

// Load reads the JSON-Lines history file at path, replacing any previous
// contents. A missing file leaves the store loaded and empty and is not an
// error. Other I/O errors are returned with the store loaded and empty.
func (s *Store) Load(path string) error {
	s.reset(path)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("history_file_absent", "path", path)
			return nil
		}
		return fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	s.exists = true
	if info, err := f.Stat(); err == nil {
		s.sizeBytes = info.Size()
	}

	entries, err := s.readEntries(f)
	if err != nil {
		return fmt.Errorf("read history file: %w", err)
	}

	s.entries = entries
	s.recent = recencyIndex(entries)

	s.logger.Info("alerts_loaded",
		"path", path,
		"alerts", len(entries),
		"lines", s.linesRead,
		"skipped", s.Skipped(),
	)

	return nil
}

func (s *Store) reset(path string) {
	s.loaded = true
	s.path = path
	s.exists = false
	s.sizeBytes = 0
	s.linesRead = 0
	s.skipped = make(map[SkipReason]int)
	s.entries = nil
	s.recent = nil
}

// readEntries parses r line by line. Lines have no length cap.
func (s *Store) readEntries(r io.Reader) ([]entry, error) {
	reader := bufio.NewReader(r)
	var entries []entry

	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			s.linesRead++
			result := ParseLine(line)
			if result.OK {
				entries = append(entries, entry{
					alert: result.Alert,
					ts:    parseStamp(result.Alert.Timestamp),
				})
			} else if result.Reason != SkipEmpty {
				s.skipped[result.Reason]++
				s.logger.Debug("alert_line_skipped",
					"line", s.linesRead,
					"reason", result.Reason,
					"field", result.Field,
				)
			}
		}
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// recencyIndex orders entries by timestamp descending; equal timestamps put
// the later log line first.
func recencyIndex(entries []entry) []int {
	idx := make([]int, len(entries))
	for i := range idx {
		idx[i] = len(entries) - 1 - i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return entries[idx[a]].ts.compare(entries[idx[b]].ts) > 0
	})
	return idx
}

func (s *Store) mustBeLoaded() {
	if !s.loaded {
		panic("store: query on an unloaded Store; call Load first")
	}
}

// Path returns the file passed to the last Load.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the history file was present at the last Load.
func (s *Store) Exists() bool {
	return s.exists
}

// SizeBytes returns the history file size seen at the last Load.
func (s *Store) SizeBytes() int64 {
	return s.sizeBytes
}

// LinesRead returns the number of lines read, including skipped ones.
func (s *Store) LinesRead() int {
	return s.linesRead
}

// Skipped returns the number of non-empty lines that did not parse.
func (s *Store) Skipped() int {
	total := 0
	for _, n := range s.skipped {
		total += n
	}
	return total
}

// SkippedByReason returns a copy of the skip counters.
func (s *Store) SkippedByReason() map[SkipReason]int {
	out := make(map[SkipReason]int, len(s.skipped))
	for k, v := range s.skipped {
		out[k] = v
	}
	return out
}

// Count returns the number of successfully parsed alerts.
func (s *Store) Count() int {
	s.mustBeLoaded()
	return len(s.entries)
}

// LatestAlertTime returns the most recent alert timestamp, or false when the
// store is empty.
func (s *Store) LatestAlertTime() (string, bool) {
	s.mustBeLoaded()
	if len(s.recent) == 0 {
		return "", false
	}
	return s.entries[s.recent[0]].alert.Timestamp, true
}

// Query returns alerts matching every predicate in f, most recent first,
// truncated to f.Limit (DefaultLimit when not positive).
func (s *Store) Query(f Filter) []Alert {
	s.mustBeLoaded()

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var since stamp
	if f.Since != "" {
		since = parseStamp(f.Since)
	}

	return s.collect(limit, func(e *entry) bool {
		if f.Platform != "" && e.alert.Platform != f.Platform {
			return false
		}
		if f.AlertType != "" && e.alert.AlertType != f.AlertType {
			return false
		}
		if f.MinValue != nil && e.alert.Value < *f.MinValue {
			return false
		}
		if f.Since != "" && !e.ts.notBefore(since) {
			return false
		}
		return true
	})
}

// Search returns alerts whose market title or outcome contains query,
// case-insensitively, most recent first. An empty query matches everything.
func (s *Store) Search(query string, limit int) []Alert {
	s.mustBeLoaded()

	if limit <= 0 {
		limit = DefaultLimit
	}
	needle := strings.ToLower(query)

	return s.collect(limit, func(e *entry) bool {
		return strings.Contains(strings.ToLower(e.alert.MarketTitle), needle) ||
			strings.Contains(strings.ToLower(e.alert.Outcome), needle)
	})
}

// collect walks the recency index and keeps up to limit matching alerts.
func (s *Store) collect(limit int, keep func(*entry) bool) []Alert {
	out := make([]Alert, 0, min(limit, len(s.recent)))
	for _, i := range s.recent {
		if len(out) == limit {
			break
		}
		if keep(&s.entries[i]) {
			out = append(out, s.entries[i].alert)
		}
	}
	return out
}

// All returns every alert, most recent first.
func (s *Store) All() []Alert {
	s.mustBeLoaded()
	return s.collect(len(s.recent), func(*entry) bool { return true })
}
