// Package session holds the runtime state of one open research session:
// its note, its conversation and the annotation expiry that ties them.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/glean/internal/apperr"
	"github.com/starford/glean/internal/checksum"
	"github.com/starford/glean/internal/conversation"
	"github.com/starford/glean/internal/models"
	"github.com/starford/glean/internal/notestate"
	"github.com/starford/glean/internal/render"
	"github.com/starford/glean/internal/sse"
)

// closeSaveTimeout bounds the final note save made by Close.
const closeSaveTimeout = 5 * time.Second

// Store is everything a session reads and writes.
type Store interface {
	notestate.Store
	conversation.Store
	GetSession(ctx context.Context, id string) (models.Session, error)
	ListTurns(ctx context.Context, sessionID string) ([]models.Turn, error)
}

// Broker is the realtime feed a session listens to and reports on.
type Broker interface {
	Subscribe(sessionID string) chan sse.Event
	Unsubscribe(ch chan sse.Event)
	PublishSessionEvent(kind, sessionID string, data any)
}

// Config tunes per-session behaviour. Zero values fall back to package
// defaults.
type Config struct {
	AutosaveDelay     time.Duration
	AnnotationTTL     time.Duration
	ChatTimeout       time.Duration
	Template          string
	SummarizeKeywords []string
}

// Deps are the shared collaborators of every session.
type Deps struct {
	Store  Store
	AI     conversation.AI
	Broker Broker
	Logger *slog.Logger
	Config Config
}

// NoteView is the note as served to clients.
type NoteView struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
	Checksum  string `json:"checksum"`
	Pending   bool   `json:"pending"`
}

// Session is one active session. Create it with New and call Activate.
type Session struct {
	id     string
	deps   Deps
	logger *slog.Logger

	notes   *notestate.Manager
	history *conversation.History
	coord   *conversation.Coordinator
	expirer *render.Expirer

	mu     sync.Mutex
	meta   models.Session
	gen    uint64
	closed bool
	sub    chan sse.Event
	done   chan struct{}
}

// New wires a session without touching the store.
func New(id string, deps Deps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("session_id", id))

	s := &Session{
		id:      id,
		deps:    deps,
		logger:  logger,
		history: conversation.NewHistory(),
	}
	s.expirer = render.NewExpirer(deps.Config.AnnotationTTL, s.expire)
	s.notes = notestate.New(deps.Store, id,
		notestate.WithAutosaveDelay(deps.Config.AutosaveDelay),
		notestate.WithTemplate(deps.Config.Template),
		notestate.WithLogger(logger),
		notestate.WithOnChange(s.noteChanged),
	)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Meta returns the session record loaded at activation.
func (s *Session) Meta() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// Activate loads the session record, note and conversation, then starts
// following the realtime feed.
func (s *Session) Activate(ctx context.Context) error {
	meta, err := s.deps.Store.GetSession(ctx, s.id)
	if err != nil {
		return err
	}

	s.coord = conversation.NewCoordinator(meta, s.deps.AI, s.deps.Store, s.history,
		conversation.WithChatTimeout(s.deps.Config.ChatTimeout),
		conversation.WithClassifier(conversation.NewClassifier(s.deps.Config.SummarizeKeywords...)),
		conversation.WithLogger(s.logger),
		conversation.WithRefresh(func() {
			s.publish(sse.TypeEntitiesUpdated, map[string]string{"reason": "summary"})
		}),
	)

	s.notes.Load(ctx)

	turns, err := s.deps.Store.ListTurns(ctx, s.id)
	if err != nil {
		s.logger.Warn("session: load turns failed", slog.String("error", err.Error()))
	}
	for _, t := range turns {
		s.history.Add(t)
	}

	s.mu.Lock()
	s.meta = meta
	if s.deps.Broker != nil {
		s.sub = s.deps.Broker.Subscribe(s.id)
		s.done = make(chan struct{})
		go s.follow(s.sub, s.done)
	}
	s.mu.Unlock()

	s.logger.Debug("session: activated", slog.Int("turns", len(turns)))
	return nil
}

// follow feeds realtime turn inserts into the history. Turns this session
// created itself arrive here too and are dropped by History.Add.
func (s *Session) follow(ch chan sse.Event, done chan struct{}) {
	defer close(done)
	for ev := range ch {
		if ev.Type != sse.TypeTurnCreated || ev.SessionID != s.id {
			continue
		}
		if t, ok := ev.Data.(models.Turn); ok {
			s.history.Add(t)
		}
	}
}

// ticket returns the current generation, or ErrSessionClosed.
func (s *Session) ticket() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("session %s: %w", s.id, apperr.ErrSessionClosed)
	}
	return s.gen, nil
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.gen == gen
}

// Send runs one conversation exchange and applies the note change it asks
// for. A change that comes back after the session was closed is dropped.
func (s *Session) Send(ctx context.Context, message string) (*conversation.Result, error) {
	gen, err := s.ticket()
	if err != nil {
		return nil, err
	}
	res := s.coord.Send(ctx, conversation.SendInput{Message: message, CurrentNote: s.notes.Content()})
	s.apply(ctx, gen, res.Note)
	return res, nil
}

// Summarize summarizes the selected entities, or all of them when selected
// is empty.
func (s *Session) Summarize(ctx context.Context, selected []string) (*conversation.Result, error) {
	gen, err := s.ticket()
	if err != nil {
		return nil, err
	}
	res := s.coord.Summarize(ctx, selected)
	s.apply(ctx, gen, res.Note)
	return res, nil
}

func (s *Session) apply(ctx context.Context, gen uint64, action conversation.NoteAction) {
	if action.Kind == conversation.NoteNone || action.Kind == "" {
		return
	}
	if !s.current(gen) {
		s.logger.Info("session: dropped note change for closed session",
			slog.String("kind", string(action.Kind)))
		return
	}

	var err error
	switch action.Kind {
	case conversation.NoteAppend:
		err = s.notes.Append(ctx, action.Text)
	case conversation.NoteReplace:
		err = s.notes.Replace(ctx, action.Text)
	}
	if err != nil {
		s.logger.Warn("session: apply note change failed",
			slog.String("kind", string(action.Kind)),
			slog.String("error", err.Error()))
	}
}

// ClearTurns deletes the conversation.
func (s *Session) ClearTurns(ctx context.Context) error {
	if _, err := s.ticket(); err != nil {
		return err
	}
	if err := s.coord.Clear(ctx); err != nil {
		return err
	}
	s.publish(sse.TypeTurnsCleared, map[string]string{})
	return nil
}

// Turns returns the visible conversation.
func (s *Session) Turns() []models.Turn {
	return s.history.Turns()
}

// Note returns the current note with its checksum.
func (s *Session) Note() NoteView {
	content := s.notes.Content()
	return NoteView{
		SessionID: s.id,
		Content:   content,
		Checksum:  checksum.Sum(content),
		Pending:   s.notes.Pending(),
	}
}

// UpdateNote records a manual edit. ifMatch, when set, must be the checksum
// of the note the edit was based on.
func (s *Session) UpdateNote(text, ifMatch string) error {
	if _, err := s.ticket(); err != nil {
		return err
	}
	if !checksum.Matches(ifMatch, s.notes.Content()) {
		return fmt.Errorf("session %s: note changed: %w", s.id, apperr.ErrConflict)
	}
	s.notes.UpdateContent(text)
	return nil
}

// AppendNote appends text and persists it.
func (s *Session) AppendNote(ctx context.Context, text string) error {
	if _, err := s.ticket(); err != nil {
		return err
	}
	return s.notes.Append(ctx, text)
}

// FlushNote writes any pending edit now.
func (s *Session) FlushNote(ctx context.Context) error {
	return s.notes.ForceSave(ctx)
}

// Render parses the current note into display nodes.
func (s *Session) Render() []render.Node {
	return render.Render(s.notes.Content())
}

// AnnotationArmed reports whether highlighted text is waiting to expire.
func (s *Session) AnnotationArmed() bool {
	return s.expirer.Armed()
}

// Close stops expiry, saves pending edits and leaves the realtime feed.
// The save runs even if ctx is already done. In-flight exchanges finish but
// their note changes are discarded.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.gen++
	sub, done := s.sub, s.done
	s.mu.Unlock()

	s.expirer.Stop()
	// the final save outlives a caller whose deadline has already passed
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeSaveTimeout)
	err := s.notes.ForceSave(saveCtx)
	cancel()

	if sub != nil {
		s.deps.Broker.Unsubscribe(sub)
		<-done
	}
	if err != nil {
		return fmt.Errorf("session: close %s: %w", s.id, err)
	}
	s.logger.Debug("session: closed")
	return nil
}

func (s *Session) noteChanged(content string) {
	s.expirer.Observe(content)
	s.publish(sse.TypeNoteUpdated, map[string]string{"checksum": checksum.Sum(content)})
}

// expire commits the stripped note unless someone edited it meanwhile.
func (s *Session) expire(marked, stripped string) {
	ok, err := s.notes.CompareAndReplace(context.Background(), marked, stripped)
	if err != nil {
		s.logger.Warn("session: annotation expiry save failed", slog.String("error", err.Error()))
		return
	}
	if ok {
		s.logger.Debug("session: annotations expired")
	}
}

func (s *Session) publish(kind string, data any) {
	if s.deps.Broker != nil {
		s.deps.Broker.PublishSessionEvent(kind, s.id, data)
	}
}
