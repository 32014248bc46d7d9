// Package citation accumulates the sources a session's tools report and hands
// out stable citation keys for them.
package citation

import (
	"fmt"
	"strings"
	"sync"

	"slingshot-be/pkg/research/domain"
)

// KeyPrefix is the prefix of every citation key; keys read "cite-<n>".
const KeyPrefix = "cite-"

// Source is a reference produced by a tool before it has been assigned a key.
type Source struct {
	Type       string `json:"source_type"`
	Name       string `json:"source_name"`
	URL        string `json:"source_url,omitempty"`
	Snippet    string `json:"content_snippet,omitempty"`
	PageNumber *int   `json:"page_number,omitempty"`
}

// Store holds the citations of one session.
type Store struct {
	mu       sync.RWMutex
	items    []domain.Citation
	byKey    map[string]int
	bySource map[string]int
}

func NewStore() *Store {
	return &Store{
		byKey:    make(map[string]int),
		bySource: make(map[string]int),
	}
}

// Restore rebuilds a store from citations already issued, e.g. when a session
// in error starts a new run.
func Restore(existing []domain.Citation) *Store {
	s := NewStore()
	for _, c := range existing {
		s.byKey[c.Key] = len(s.items)
		s.bySource[identity(c.SourceType, c.SourceURL, c.SourceName)] = len(s.items)
		s.items = append(s.items, c)
	}
	return s
}

// Add returns the citation for src, minting a new key only the first time an
// equivalent source is seen.
func (s *Store) Add(src Source) domain.Citation {
	id := identity(src.Type, src.URL, src.Name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.bySource[id]; ok {
		return s.items[idx]
	}

	c := domain.Citation{
		Key:            fmt.Sprintf("%s%d", KeyPrefix, len(s.items)+1),
		SourceType:     src.Type,
		SourceName:     src.Name,
		SourceURL:      src.URL,
		ContentSnippet: src.Snippet,
		PageNumber:     src.PageNumber,
	}
	s.byKey[c.Key] = len(s.items)
	s.bySource[id] = len(s.items)
	s.items = append(s.items, c)
	return c
}

func (s *Store) Resolve(key string) (domain.Citation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byKey[key]
	if !ok {
		return domain.Citation{}, fmt.Errorf("citation %s: %w", key, domain.ErrNotFound)
	}
	return s.items[idx], nil
}

// List returns the citations in key order.
func (s *Store) List() []domain.Citation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Citation, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// SourceTypes returns the distinct source types seen so far.
func (s *Store) SourceTypes() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]bool, len(s.items))
	for _, c := range s.items {
		out[c.SourceType] = true
	}
	return out
}

// identity is the dedup key: the URL when present, otherwise the name.
func identity(sourceType, url, name string) string {
	ref := strings.TrimSpace(url)
	if ref == "" {
		ref = strings.ToLower(strings.TrimSpace(name))
	}
	return strings.ToLower(sourceType) + "|" + ref
}
