package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/RushiPardeshi/agent-marketplace/internal/market"
)

// ErrInvalidPathComponent is returned when an ID contains unsafe
// characters for use as a file name.
var ErrInvalidPathComponent = errors.New("invalid path component: contains path separator or traversal sequence")

// validatePathComponent rejects empty strings, path separators, and
// traversal sequences.
func validatePathComponent(s string) error {
	if s == "" {
		return errors.New("path component cannot be empty")
	}
	if strings.ContainsAny(s, `/\`) || strings.Contains(s, "..") {
		return ErrInvalidPathComponent
	}
	return nil
}

// File is a Repository backed by JSON files. Storage layout:
//
//	<baseDir>/
//	  ├── sessions/<session-id>.json
//	  └── listings.json
type File struct {
	baseDir string
	mu      sync.RWMutex
	closed  bool
}

// NewFile creates a file-based repository rooted at baseDir. If baseDir
// is empty, ~/.agent-marketplace is used.
func NewFile(baseDir string) (*File, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".agent-marketplace")
	}
	if err := os.MkdirAll(filepath.Join(baseDir, "sessions"), 0700); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}
	return &File{baseDir: baseDir}, nil
}

func (f *File) sessionPath(id string) string {
	return filepath.Join(f.baseDir, "sessions", id+".json")
}

func (f *File) listingsPath() string {
	return filepath.Join(f.baseDir, "listings.json")
}

// SaveSession implements Repository.
func (f *File) SaveSession(ctx context.Context, s *market.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrStoreClosed
	}
	if err := validatePathComponent(s.ID); err != nil {
		return fmt.Errorf("invalid session ID: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(f.sessionPath(s.ID), data, 0600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// GetSession implements Repository.
func (f *File) GetSession(ctx context.Context, id string) (*market.Session, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrStoreClosed
	}
	if err := validatePathComponent(id); err != nil {
		return nil, fmt.Errorf("invalid session ID: %w", err)
	}

	data, err := os.ReadFile(f.sessionPath(id)) // #nosec G304 - path component validated above
	if os.IsNotExist(err) {
		return nil, market.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var s market.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	return &s, nil
}

// DeleteSession implements Repository.
func (f *File) DeleteSession(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrStoreClosed
	}
	if err := validatePathComponent(id); err != nil {
		return fmt.Errorf("invalid session ID: %w", err)
	}
	if err := os.Remove(f.sessionPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ListSessions implements Repository.
func (f *File) ListSessions(ctx context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrStoreClosed
	}

	entries, err := os.ReadDir(filepath.Join(f.baseDir, "sessions"))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".json") {
			ids = append(ids, strings.TrimSuffix(name, ".json"))
		}
	}
	return ids, nil
}

// SaveListing implements Repository.
func (f *File) SaveListing(ctx context.Context, l *market.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrStoreClosed
	}

	index, err := f.loadListings()
	if err != nil {
		return err
	}
	index[l.ID] = l

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal listings: %w", err)
	}
	if err := os.WriteFile(f.listingsPath(), data, 0600); err != nil {
		return fmt.Errorf("write listings: %w", err)
	}
	return nil
}

// GetListing implements Repository.
func (f *File) GetListing(ctx context.Context, id string) (*market.Listing, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrStoreClosed
	}

	index, err := f.loadListings()
	if err != nil {
		return nil, err
	}
	l, ok := index[id]
	if !ok {
		return nil, market.ErrListingNotFound
	}
	return l, nil
}

// loadListings reads the listing index; a missing file is an empty index.
func (f *File) loadListings() (map[string]*market.Listing, error) {
	index := make(map[string]*market.Listing)
	data, err := os.ReadFile(f.listingsPath())
	if os.IsNotExist(err) {
		return index, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read listings: %w", err)
	}
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parse listings: %w", err)
	}
	return index, nil
}

// Close implements Repository.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
