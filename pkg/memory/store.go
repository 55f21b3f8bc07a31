// Package memory is the conversation store: per-identity rolling history
// plus a bounded affection score, persisted as one flat JSON document.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/omax404/aiko/pkg/logger"
)

// Message is one stored conversation entry. Immutable once appended except
// through OverwriteHistory/TruncateHistory.
type Message struct {
	Role      string  `json:"role"`
	Content   string  `json:"content"`
	Timestamp float64 `json:"timestamp"`
}

// HistoryEntry is the timestamp-free shape handed to the model.
type HistoryEntry struct {
	Role    string
	Content string
}

// Record is everything persisted for one identity.
type Record struct {
	History   []Message `json:"history"`
	Affection int       `json:"affection"`
	Name      string    `json:"name,omitempty"`
}

// SessionInfo summarizes one conversation for session pickers.
type SessionInfo struct {
	ID        string
	Name      string
	Preview   string
	Timestamp float64
}

// Options configures a Store.
type Options struct {
	Path                 string
	MaxHistory           int
	DefaultAffection     int
	PrivilegedIdentities []string
}

const (
	defaultMaxHistory = 20
	defaultAffection  = 30
	maxAffection      = 100
	previewLength     = 30
)

// Store owns all conversation records. The in-memory cache mirrors the
// on-disk document and every mutation writes through before returning.
type Store struct {
	path             string
	maxHistory       int
	defaultAffection int
	privileged       map[string]bool
	now              func() time.Time

	mu    sync.Mutex
	cache map[string]*Record
}

func NewStore(opts Options) *Store {
	maxHistory := opts.MaxHistory
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	affection := opts.DefaultAffection
	if affection <= 0 {
		affection = defaultAffection
	}
	privileged := make(map[string]bool, len(opts.PrivilegedIdentities))
	for _, id := range opts.PrivilegedIdentities {
		privileged[id] = true
	}

	return &Store{
		path:             opts.Path,
		maxHistory:       maxHistory,
		defaultAffection: affection,
		privileged:       privileged,
		now:              time.Now,
	}
}

// load populates the cache from disk. Corrupt or unreadable state degrades to
// an empty store; the store never refuses to operate.
func (s *Store) load() {
	if s.cache != nil {
		return
	}
	s.cache = make(map[string]*Record)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.WarnCF("memory", "Failed to read memory file, starting empty",
				map[string]any{"path": s.path, "error": err.Error()})
		}
		return
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.ErrorCF("memory", "Corrupt memory file, starting empty",
			map[string]any{"path": s.path, "error": err.Error()})
		return
	}

	migrated := false
	for id, blob := range raw {
		var rec Record
		if err := json.Unmarshal(blob, &rec); err == nil && rec.History != nil {
			rec.Affection = clampAffection(rec.Affection)
			s.cache[id] = &rec
			continue
		}

		// Legacy shape: a bare message list with no affection field.
		var history []Message
		if err := json.Unmarshal(blob, &history); err == nil {
			s.cache[id] = &Record{
				History:   history,
				Affection: s.initialAffection(id),
			}
			migrated = true
			continue
		}

		logger.WarnCF("memory", "Skipping unreadable record",
			map[string]any{"identity": id})
	}

	if migrated {
		logger.InfoC("memory", "Migrated legacy records to affection schema")
		s.saveLocked()
	}
}

// saveLocked writes the whole document. Failure is logged, not fatal: the
// in-memory state stays authoritative until the next successful save.
func (s *Store) saveLocked() {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		logger.ErrorCF("memory", "Failed to create memory dir",
			map[string]any{"error": err.Error()})
		return
	}
	data, err := json.MarshalIndent(s.cache, "", "  ")
	if err != nil {
		logger.ErrorCF("memory", "Failed to encode memory",
			map[string]any{"error": err.Error()})
		return
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		logger.ErrorCF("memory", "Failed to write memory file",
			map[string]any{"path": s.path, "error": err.Error()})
	}
}

func (s *Store) initialAffection(identity string) int {
	if s.privileged[identity] {
		return maxAffection
	}
	return s.defaultAffection
}

// recordLocked returns the identity's record, creating it if absent.
func (s *Store) recordLocked(identity string) *Record {
	s.load()
	rec, ok := s.cache[identity]
	if !ok || rec == nil {
		rec = &Record{
			History:   []Message{},
			Affection: s.initialAffection(identity),
		}
		s.cache[identity] = rec
	}
	return rec
}

// GetHistory returns up to MaxHistory most recent messages, oldest first,
// stripped of timestamps.
func (s *Store) GetHistory(identity string) []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.recordLocked(identity)
	out := make([]HistoryEntry, 0, len(rec.History))
	for _, m := range rec.History {
		out = append(out, HistoryEntry{Role: m.Role, Content: m.Content})
	}
	return out
}

// Append records a timestamped message, evicting the oldest entries beyond
// the history bound, and persists before returning.
func (s *Store) Append(identity, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.recordLocked(identity)
	rec.History = append(rec.History, Message{
		Role:      role,
		Content:   content,
		Timestamp: float64(s.now().UnixNano()) / float64(time.Second),
	})
	if len(rec.History) > s.maxHistory {
		rec.History = rec.History[len(rec.History)-s.maxHistory:]
	}
	s.saveLocked()
}

// UpdateAffection shifts the identity's affection by delta, clamped to
// [0,100], and returns the new value.
func (s *Store) UpdateAffection(identity string, delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.recordLocked(identity)
	rec.Affection = clampAffection(rec.Affection + delta)
	s.saveLocked()
	return rec.Affection
}

// Affection returns the identity's current affection level.
func (s *Store) Affection(identity string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordLocked(identity).Affection
}

// OverwriteHistory replaces the identity's history, re-timestamping entries
// and applying the same bound as Append. Used by edit/redo flows.
func (s *Store) OverwriteHistory(identity string, history []HistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.recordLocked(identity)
	ts := float64(s.now().UnixNano()) / float64(time.Second)
	clean := make([]Message, 0, len(history))
	for _, h := range history {
		clean = append(clean, Message{Role: h.Role, Content: h.Content, Timestamp: ts})
	}
	if len(clean) > s.maxHistory {
		clean = clean[len(clean)-s.maxHistory:]
	}
	rec.History = clean
	s.saveLocked()
}

// TruncateHistory cuts the identity's history at index (the entry at index
// and everything after it is dropped). Out-of-range indexes are ignored.
func (s *Store) TruncateHistory(identity string, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.recordLocked(identity)
	if index < 0 || index >= len(rec.History) {
		return
	}
	rec.History = rec.History[:index]
	s.saveLocked()
}

// Clear resets one identity's history and affection.
func (s *Store) Clear(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.recordLocked(identity)
	rec.History = []Message{}
	rec.Affection = s.initialAffection(identity)
	s.saveLocked()
}

// ListSessions returns all conversations sorted newest-first, with a short
// preview of the last message.
func (s *Store) ListSessions() []SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	sessions := make([]SessionInfo, 0, len(s.cache))
	for id, rec := range s.cache {
		preview := "Empty Chat"
		var ts float64
		if n := len(rec.History); n > 0 {
			last := rec.History[n-1]
			preview = previewOf(last.Content)
			ts = last.Timestamp
		}
		name := rec.Name
		if name == "" {
			name = fmt.Sprintf("Chat %s", shortID(id))
		}
		sessions = append(sessions, SessionInfo{
			ID:        id,
			Name:      name,
			Preview:   preview,
			Timestamp: ts,
		})
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Timestamp > sessions[j].Timestamp
	})
	return sessions
}

// RenameSession sets a display name. Returns false for unknown identities.
func (s *Store) RenameSession(identity, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	rec, ok := s.cache[identity]
	if !ok {
		return false
	}
	rec.Name = name
	s.saveLocked()
	return true
}

// DeleteSession removes an identity entirely. Returns false if unknown.
func (s *Store) DeleteSession(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	if _, ok := s.cache[identity]; !ok {
		return false
	}
	delete(s.cache, identity)
	s.saveLocked()
	return true
}

func clampAffection(v int) int {
	if v < 0 {
		return 0
	}
	if v > maxAffection {
		return maxAffection
	}
	return v
}

func previewOf(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength]) + "..."
}

func shortID(id string) string {
	if len(id) > 6 {
		return id[:6]
	}
	return id
}
