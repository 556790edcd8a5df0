// Package frame decides, per response, whether the frame-deny header can be
// dropped because the request was referred by an allow-listed host.
package frame

import (
	"context"
	"strings"
	"sync"
	"time"
)

const (
	// SettingsKey is where the allow-list text is persisted.
	SettingsKey = "frame.allowed_referers"

	// CacheTag invalidates cached decisions when the allow-list changes.
	CacheTag = "config:" + SettingsKey

	// HeaderFrameOptions is the frame-deny response header.
	HeaderFrameOptions = "X-Frame-Options"
)

// AllowList is the administrator-maintained list of referer host patterns,
// one unanchored regular expression per line.
type AllowList struct {
	Patterns  string
	UpdatedAt time.Time
}

// Empty reports whether the list holds no usable lines.
func (a AllowList) Empty() bool {
	return len(a.Lines()) == 0
}

// Lines splits the text on CR and LF in any combination and drops blank lines.
func (a AllowList) Lines() []string {
	return splitLines(a.Patterns)
}

func splitLines(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r'
	})
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			lines = append(lines, f)
		}
	}
	return lines
}

// Store persists the allow-list.
type Store interface {
	Get(ctx context.Context) (AllowList, error)
	Set(ctx context.Context, patterns string) error
}

// MemoryStore keeps the allow-list in process.
type MemoryStore struct {
	mu   sync.RWMutex
	list AllowList
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(initial string) *MemoryStore {
	return &MemoryStore{list: AllowList{Patterns: initial, UpdatedAt: time.Now().UTC()}}
}

func (s *MemoryStore) Get(ctx context.Context) (AllowList, error) {
	if err := ctx.Err(); err != nil {
		return AllowList{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list, nil
}

func (s *MemoryStore) Set(ctx context.Context, patterns string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = AllowList{Patterns: patterns, UpdatedAt: time.Now().UTC()}
	return nil
}
