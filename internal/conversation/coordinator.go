// Package conversation runs one user-to-assistant exchange for a session:
// it persists both turns, calls the remote AI service and tells the caller
// how the note should change.
package conversation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/glean/internal/aiclient"
	"github.com/starford/glean/internal/annotate"
	"github.com/starford/glean/internal/models"
)

// DefaultChatTimeout bounds a single chat call.
const DefaultChatTimeout = 60 * time.Second

// AI is the subset of the remote service the coordinator calls.
type AI interface {
	Chat(ctx context.Context, req aiclient.ChatRequest) (*aiclient.ChatResponse, error)
	Summarize(ctx context.Context, req aiclient.SummarizeRequest) (*aiclient.SummarizeResponse, error)
}

// Store persists turns and reads the session's extracted data.
type Store interface {
	InsertTurn(ctx context.Context, t models.Turn) error
	DeleteTurns(ctx context.Context, sessionID string) error
	ListEntities(ctx context.Context, sessionID string) ([]models.Entity, error)
	InsertEntity(ctx context.Context, e models.Entity) error
	ListScreenshots(ctx context.Context, sessionID string) ([]models.Screenshot, error)
}

// NoteActionKind says how a reply wants the note changed.
type NoteActionKind string

const (
	NoteNone    NoteActionKind = "none"
	NoteAppend  NoteActionKind = "append"
	NoteReplace NoteActionKind = "replace"
)

// NoteAction is a note mutation for the caller to apply.
type NoteAction struct {
	Kind NoteActionKind `json:"kind"`
	Text string         `json:"text,omitempty"`
}

// Result is the outcome of one exchange. Reply is always set once a message
// was accepted, even when the remote call failed.
type Result struct {
	UserTurn *models.Turn `json:"user_turn,omitempty"`
	Reply    *models.Turn `json:"reply,omitempty"`
	Note     NoteAction   `json:"note"`
	// Failed is true when Reply describes an error rather than an answer.
	Failed bool `json:"failed"`
}

// SendInput is one user message together with the note it refers to.
type SendInput struct {
	Message     string
	CurrentNote string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithChatTimeout overrides DefaultChatTimeout.
func WithChatTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.chatTimeout = d
		}
	}
}

// WithClassifier replaces the default English-only classifier.
func WithClassifier(cl Classifier) Option {
	return func(c *Coordinator) { c.classifier = cl }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithRefresh registers a callback run after a summary entity is created.
func WithRefresh(fn func()) Option {
	return func(c *Coordinator) { c.refresh = fn }
}

// WithClock overrides time.Now for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator handles conversation turns for one session.
type Coordinator struct {
	session     models.Session
	ai          AI
	store       Store
	history     *History
	classifier  Classifier
	chatTimeout time.Duration
	logger      *slog.Logger
	refresh     func()
	now         func() time.Time
}

// NewCoordinator creates a Coordinator that records turns into history.
func NewCoordinator(session models.Session, ai AI, store Store, history *History, opts ...Option) *Coordinator {
	c := &Coordinator{
		session:     session,
		ai:          ai,
		store:       store,
		history:     history,
		classifier:  NewClassifier(),
		chatTimeout: DefaultChatTimeout,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// History returns the history the coordinator writes to.
func (c *Coordinator) History() *History { return c.history }

// Send records the user's message, asks the assistant and returns the reply
// with the note change it implies. An empty message is ignored.
func (c *Coordinator) Send(ctx context.Context, in SendInput) *Result {
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return &Result{Note: NoteAction{Kind: NoteNone}}
	}

	user := c.addTurn(ctx, models.RoleUser, msg)

	if c.classifier.IsSummarize(msg) {
		res := c.Summarize(ctx, nil)
		res.UserTurn = &user
		return res
	}

	req := aiclient.ChatRequest{
		SessionID:   c.session.ID,
		UserMessage: msg,
		CurrentNote: in.CurrentNote,
		Context:     c.chatContext(ctx),
	}

	callCtx, cancel := context.WithTimeout(ctx, c.chatTimeout)
	defer cancel()

	resp, err := c.ai.Chat(callCtx, req)
	if err != nil {
		c.logger.Warn("chat: remote call failed",
			slog.String("session_id", c.session.ID),
			slog.String("error", err.Error()))
		reply := c.addTurn(ctx, models.RoleAssistant, failureText(err))
		return &Result{UserTurn: &user, Reply: &reply, Note: NoteAction{Kind: NoteNone}, Failed: true}
	}

	reply := c.addTurn(ctx, models.RoleAssistant, resp.Reply)

	action := NoteAction{Kind: NoteAppend, Text: transcript(msg, resp.Reply)}
	if resp.NoteWasModified && resp.UpdatedNote != nil {
		action = NoteAction{Kind: NoteReplace, Text: annotate.Annotate(in.CurrentNote, *resp.UpdatedNote)}
	}

	return &Result{UserTurn: &user, Reply: &reply, Note: action}
}

// Summarize condenses the session's extracted entities into a summary entity
// and an assistant turn. A non-empty selected restricts the input to those
// entity ids.
func (c *Coordinator) Summarize(ctx context.Context, selected []string) *Result {
	entities, err := c.store.ListEntities(ctx, c.session.ID)
	if err != nil {
		c.logger.Warn("summarize: list entities failed",
			slog.String("session_id", c.session.ID),
			slog.String("error", err.Error()))
	}
	entities = summarizable(entities, selected)

	if len(entities) == 0 {
		reply := c.addTurn(ctx, models.RoleAssistant, MsgNothingToSummarize)
		return &Result{Reply: &reply, Note: NoteAction{Kind: NoteNone}}
	}

	req := aiclient.SummarizeRequest{
		SessionID:   c.session.ID,
		SessionName: c.session.Name,
		Entities:    make([]aiclient.EntityInput, len(entities)),
	}
	ids := make([]string, len(entities))
	for i, e := range entities {
		req.Entities[i] = aiclient.EntityInput{Type: e.Type, Attributes: e.Attributes}
		ids[i] = e.ID
	}

	resp, err := c.ai.Summarize(ctx, req)
	if err != nil {
		c.logger.Warn("summarize: remote call failed",
			slog.String("session_id", c.session.ID),
			slog.String("error", err.Error()))
		text := MsgSummaryFailure
		if f := failureText(err); f != MsgGenericFailure {
			text = f
		}
		reply := c.addTurn(ctx, models.RoleAssistant, text)
		return &Result{Reply: &reply, Note: NoteAction{Kind: NoteNone}, Failed: true}
	}

	summary := models.Entity{
		ID:        models.NewID(),
		SessionID: c.session.ID,
		Type:      models.EntityTypeSummary,
		Attributes: map[string]any{
			"condensed_summary": resp.CondensedSummary,
			"suggested_title":   resp.SuggestedTitle,
			"key_highlights":    nonNil(resp.KeyHighlights),
			"recommendations":   nonNil(resp.Recommendations),
			"merged_entities":   nonNil(resp.MergedEntities),
			"source_entity_ids": ids,
		},
		CreatedAt: c.now(),
	}
	if err := c.store.InsertEntity(ctx, summary); err != nil {
		c.logger.Warn("summarize: save summary failed",
			slog.String("session_id", c.session.ID),
			slog.String("error", err.Error()))
	} else if c.refresh != nil {
		c.refresh()
	}

	reply := c.addTurn(ctx, models.RoleAssistant, summaryText(resp))
	return &Result{Reply: &reply, Note: NoteAction{Kind: NoteNone}}
}

// Clear deletes the session's conversation.
func (c *Coordinator) Clear(ctx context.Context) error {
	if err := c.store.DeleteTurns(ctx, c.session.ID); err != nil {
		return err
	}
	c.history.Reset()
	return nil
}

// addTurn persists a new turn and shows it. A persistence failure is logged
// and the turn is still shown.
func (c *Coordinator) addTurn(ctx context.Context, role models.Role, content string) models.Turn {
	t := models.NewTurn(c.session.ID, role, content, c.now())
	if err := c.store.InsertTurn(ctx, t); err != nil {
		c.logger.Warn("chat: save turn failed",
			slog.String("session_id", c.session.ID),
			slog.String("role", string(role)),
			slog.String("error", err.Error()))
	}
	c.history.Add(t)
	return t
}

func (c *Coordinator) chatContext(ctx context.Context) *aiclient.ChatContext {
	cc := &aiclient.ChatContext{
		Screenshots:     []aiclient.ScreenshotContext{},
		SessionName:     c.session.Name,
		SessionCategory: c.session.Category,
	}
	shots, err := c.store.ListScreenshots(ctx, c.session.ID)
	if err != nil {
		c.logger.Warn("chat: list screenshots failed",
			slog.String("session_id", c.session.ID),
			slog.String("error", err.Error()))
		return cc
	}
	for _, s := range shots {
		cc.Screenshots = append(cc.Screenshots, aiclient.ScreenshotContext{
			ID:      s.ID,
			RawText: s.RawText,
			Summary: s.Summary,
		})
	}
	return cc
}

func summarizable(entities []models.Entity, selected []string) []models.Entity {
	var want map[string]struct{}
	if len(selected) > 0 {
		want = make(map[string]struct{}, len(selected))
		for _, id := range selected {
			want[id] = struct{}{}
		}
	}
	var out []models.Entity
	for _, e := range entities {
		if e.IsSummary() {
			continue
		}
		if want != nil {
			if _, ok := want[e.ID]; !ok {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
