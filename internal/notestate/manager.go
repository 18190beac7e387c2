// Package notestate owns the in-memory note of one active session and keeps
// the persisted copy in step with it.
//
// Manual edits go through UpdateContent and are persisted after a quiet
// period. Assistant edits go through Append and Replace and are persisted
// immediately. The two paths share the same store and last-saved tracking.
package notestate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultAutosaveDelay is the trailing-edge debounce for manual edits.
const DefaultAutosaveDelay = 800 * time.Millisecond

// DefaultTemplate seeds a session whose note is missing or blank.
const DefaultTemplate = "# Session Notes\n\nUse this space to collect findings from your screenshots.\n"

// Store persists one note per session.
type Store interface {
	// GetNote returns the stored note and whether one exists.
	GetNote(ctx context.Context, sessionID string) (string, bool, error)
	SaveNote(ctx context.Context, sessionID, content string) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithAutosaveDelay overrides DefaultAutosaveDelay.
func WithAutosaveDelay(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.delay = d
		}
	}
}

// WithTemplate overrides DefaultTemplate.
func WithTemplate(tpl string) Option {
	return func(m *Manager) {
		if strings.TrimSpace(tpl) != "" {
			m.template = tpl
		}
	}
}

// WithLogger sets the logger used for soft failures.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithOnChange registers a hook called with every new in-memory content.
// It runs outside the manager's lock.
func WithOnChange(fn func(content string)) Option {
	return func(m *Manager) { m.onChange = fn }
}

// Manager holds the authoritative copy of a session's note.
type Manager struct {
	store     Store
	sessionID string
	delay     time.Duration
	template  string
	logger    *slog.Logger
	onChange  func(string)

	mu        sync.Mutex
	content   string
	lastSaved string
	loaded    bool
	timer     *time.Timer
	gen       uint64

	// saveMu serialises writes to the store so they land in call order.
	saveMu sync.Mutex
}

// New creates a Manager for sessionID. Call Load before use.
func New(store Store, sessionID string, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		sessionID: sessionID,
		delay:     DefaultAutosaveDelay,
		template:  DefaultTemplate,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SessionID returns the session this manager belongs to.
func (m *Manager) SessionID() string { return m.sessionID }

// Content returns the current in-memory note.
func (m *Manager) Content() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.content
}

// Loaded reports whether Load has produced content.
func (m *Manager) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// Load fetches the persisted note, seeding the template when it is missing
// or blank. Failures are logged and leave the previous state in place.
func (m *Manager) Load(ctx context.Context) {
	content, found, err := m.store.GetNote(ctx, m.sessionID)
	if err != nil {
		m.logger.Warn("note: load failed",
			slog.String("session_id", m.sessionID),
			slog.String("error", err.Error()))
		return
	}

	if found && strings.TrimSpace(content) != "" {
		m.mu.Lock()
		m.content = content
		m.lastSaved = content
		m.loaded = true
		m.mu.Unlock()
		m.notify(content)
		return
	}

	m.mu.Lock()
	m.content = m.template
	m.loaded = true
	m.mu.Unlock()
	m.notify(m.template)

	if err := m.persist(ctx); err != nil {
		m.logger.Warn("note: seed failed",
			slog.String("session_id", m.sessionID),
			slog.String("error", err.Error()))
	}
}

// UpdateContent sets the note immediately and schedules a debounced persist.
// Calls within the autosave window restart it, so one persist carries the
// final value.
func (m *Manager) UpdateContent(text string) {
	m.mu.Lock()
	m.content = text
	m.gen++
	gen := m.gen
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.delay, func() { m.flushDebounced(gen) })
	m.mu.Unlock()

	m.notify(text)
}

func (m *Manager) flushDebounced(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.mu.Unlock()

	if err := m.persist(context.Background()); err != nil {
		m.logger.Warn("note: autosave failed",
			slog.String("session_id", m.sessionID),
			slog.String("error", err.Error()))
	}
}

// Append adds text after a blank line (or replaces a blank note) and
// persists immediately.
func (m *Manager) Append(ctx context.Context, text string) error {
	m.mu.Lock()
	if strings.TrimSpace(m.content) == "" {
		m.content = text
	} else {
		m.content = m.content + "\n\n" + text
	}
	content := m.content
	m.cancelPendingLocked()
	m.mu.Unlock()

	m.notify(content)
	return m.persist(ctx)
}

// Replace sets the note and persists immediately.
func (m *Manager) Replace(ctx context.Context, text string) error {
	m.mu.Lock()
	m.content = text
	m.cancelPendingLocked()
	m.mu.Unlock()

	m.notify(text)
	return m.persist(ctx)
}

// CompareAndReplace replaces the note only if it still equals expected.
func (m *Manager) CompareAndReplace(ctx context.Context, expected, text string) (bool, error) {
	m.mu.Lock()
	if m.content != expected {
		m.mu.Unlock()
		return false, nil
	}
	m.content = text
	m.cancelPendingLocked()
	m.mu.Unlock()

	m.notify(text)
	return true, m.persist(ctx)
}

// ForceSave cancels a pending autosave and writes the current content if it
// differs from what was last persisted. Call it when the session is torn down.
func (m *Manager) ForceSave(ctx context.Context) error {
	m.mu.Lock()
	m.cancelPendingLocked()
	loaded := m.loaded
	m.mu.Unlock()

	if !loaded {
		return nil
	}
	return m.persist(ctx)
}

// Pending reports whether the in-memory note differs from the persisted one.
func (m *Manager) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.content != m.lastSaved
}

func (m *Manager) cancelPendingLocked() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// persist writes the content current at the time the store is free, so a
// writer that waited behind a newer one never lands older text.
func (m *Manager) persist(ctx context.Context) error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.Lock()
	content := m.content
	same := content == m.lastSaved
	m.mu.Unlock()
	if same {
		return nil
	}

	if err := m.store.SaveNote(ctx, m.sessionID, content); err != nil {
		return fmt.Errorf("notestate: save %s: %w", m.sessionID, err)
	}

	m.mu.Lock()
	m.lastSaved = content
	m.mu.Unlock()
	return nil
}

func (m *Manager) notify(content string) {
	if m.onChange != nil {
		m.onChange(content)
	}
}
