// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache stores JSON values in one file per key under a directory.
// Keys are "{date}_{entity}" (for example "2024-06-01_output",
// "2024-06-01_authors" or "2024-06-01_2401.01234"). Entries are written once
// and never expire; removing files is the only invalidation.
//
// Reads never fail: a missing, unreadable or malformed file is a miss.
// Writes never fail the caller: errors are logged and dropped.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/pdiddy/paper-digest/internal/metrics"
)

// DateLayout is the date part of every key.
const DateLayout = "2006-01-02"

// Entity names for the non-paper keys.
const (
	OutputEntity  = "output"
	AuthorsEntity = "authors"
)

// Store is a file-per-key cache rooted at Dir.
type Store struct {
	Dir    string
	Logger *slog.Logger
}

// New returns a store rooted at dir.
func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{Dir: dir, Logger: logger}
}

// Key joins a date and an entity id.
func Key(date, entity string) string {
	return date + "_" + entity
}

// Date formats t as a key date.
func Date(t time.Time) string {
	return t.Format(DateLayout)
}

// Path returns the file backing key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.Dir, sanitize(key)+".json")
}

// Get decodes the value stored under key into v and reports whether it was
// present. Any failure counts as a miss.
func (s *Store) Get(key string, v any) bool {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log().Warn("cache read failed", "key", key, "err", err)
		}
		s.count(key, "miss")
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.log().Warn("cache entry malformed", "key", key, "err", err)
		s.count(key, "miss")
		return false
	}
	s.count(key, "hit")
	return true
}

// Has reports whether a file exists for key.
func (s *Store) Has(key string) bool {
	_, err := os.Stat(s.Path(key))
	return err == nil
}

// Put stores v under key unless the key already exists. The file is written
// to a temp file in the same directory and renamed into place so readers
// never observe a partial entry. Failures are logged.
func (s *Store) Put(key string, v any) {
	if err := s.put(key, v); err != nil {
		s.log().Warn("cache write failed", "key", key, "err", err)
	}
}

func (s *Store) put(key string, v any) error {
	path := s.Path(key)
	if _, err := os.Stat(path); err == nil {
		s.log().Debug("cache entry exists, not overwriting", "key", key)
		return nil
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding value: %w", err)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(s.Dir, ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing entry: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming entry: %w", err)
	}
	return nil
}

// Dates returns the dates that have an entry for entity, newest first.
func (s *Store) Dates(entity string) []string {
	matches, err := doublestar.Glob(os.DirFS(s.Dir), "*_"+sanitize(entity)+".json")
	if err != nil {
		s.log().Warn("listing cache entries failed", "entity", entity, "err", err)
		return nil
	}
	var dates []string
	for _, m := range matches {
		date, _, ok := strings.Cut(strings.TrimSuffix(m, ".json"), "_")
		if !ok {
			continue
		}
		if _, err := time.Parse(DateLayout, date); err != nil {
			continue
		}
		dates = append(dates, date)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates
}

// Latest returns the newest date with an entry for entity.
func (s *Store) Latest(entity string) (string, bool) {
	dates := s.Dates(entity)
	if len(dates) == 0 {
		return "", false
	}
	return dates[0], true
}

func (s *Store) log() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Store) count(key, result string) {
	metrics.CacheLookups.WithLabelValues(kindOf(key), result).Inc()
}

// kindOf classifies a key for metrics.
func kindOf(key string) string {
	_, entity, _ := strings.Cut(key, "_")
	switch entity {
	case OutputEntity, AuthorsEntity:
		return entity
	default:
		return "qa"
	}
}

// sanitize keeps old-style arXiv ids ("hep-th/9901001") inside the cache dir.
func sanitize(key string) string {
	return strings.ReplaceAll(key, "/", "_")
}
