package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/glean/internal/aiclient"
	"github.com/starford/glean/internal/conversation"
	"github.com/starford/glean/internal/ingest"
	"github.com/starford/glean/internal/models"
	"github.com/starford/glean/internal/notestate"
	"github.com/starford/glean/internal/session"
	"github.com/starford/glean/internal/sse"
	"github.com/starford/glean/internal/store"
	"github.com/starford/glean/internal/testutil"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// fakeAI answers every call without touching the network.
type fakeAI struct{}

func (fakeAI) Chat(_ context.Context, req aiclient.ChatRequest) (*aiclient.ChatResponse, error) {
	return &aiclient.ChatResponse{Reply: "echo: " + req.UserMessage}, nil
}

func (fakeAI) Summarize(context.Context, aiclient.SummarizeRequest) (*aiclient.SummarizeResponse, error) {
	return &aiclient.SummarizeResponse{CondensedSummary: "all good"}, nil
}

func (fakeAI) Analyze(context.Context, aiclient.AnalyzeRequest) (*aiclient.AnalyzeResponse, error) {
	return &aiclient.AnalyzeResponse{
		RawText:  "Hotel A",
		Entities: []aiclient.EntityInput{{Type: "hotel", Attributes: map[string]any{"name": "A"}}},
	}, nil
}

type testEnv struct {
	db       *store.DB
	blobDir  string
	registry *session.Registry
	router   http.Handler
}

// newTestEnv sets up a temp DB, blob dir, registry and router.
// An empty authToken means disabled mode.
func newTestEnv(t *testing.T, authToken string) *testEnv {
	t.Helper()
	return newTestEnvWithSSE(t, authToken, nil)
}

func newTestEnvWithSSE(t *testing.T, authToken string, sseHandler http.Handler) *testEnv {
	t.Helper()
	broker := sse.NewBroker(time.Hour)
	t.Cleanup(broker.Close)
	db := testutil.TestDB(t)
	blobDir, blobs := testutil.TestBlobs(t)
	logger := testutil.Logger()

	registry := session.NewRegistry(session.Deps{
		Store:  db,
		AI:     fakeAI{},
		Broker: broker,
		Logger: logger,
		Config: session.Config{AutosaveDelay: time.Hour},
	})
	t.Cleanup(func() { _ = registry.CloseAll(context.Background()) })

	ing := ingest.New(db, blobs, fakeAI{}, broker, logger)
	h := NewHandler(db, registry, ing, blobs, broker, logger)
	return &testEnv{
		db:       db,
		blobDir:  blobDir,
		registry: registry,
		router:   NewRouter(h, authToken != "", authToken, sseHandler),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createSession(t *testing.T, name string) models.Session {
	t.Helper()
	w := e.do(t, http.MethodPost, "/sessions", map[string]string{"name": name, "category": "travel"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var s models.Session
	_ = json.Unmarshal(w.Body.Bytes(), &s)
	return s
}

func TestSessionLifecycle(t *testing.T) {
	e := newTestEnv(t, "")
	s := e.createSession(t, "Lisbon trip")
	if s.ID == "" || s.Name != "Lisbon trip" {
		t.Fatalf("session = %+v", s)
	}

	w := e.do(t, http.MethodGet, "/sessions/"+s.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	w = e.do(t, http.MethodPatch, "/sessions/"+s.ID, map[string]string{"name": "Porto trip"})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Porto trip") {
		t.Fatalf("patch = %d %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodGet, "/sessions", nil)
	var list SessionListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 1 || list.Sessions[0].Name != "Porto trip" {
		t.Errorf("list = %+v", list)
	}

	w = e.do(t, http.MethodDelete, "/sessions/"+s.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = e.do(t, http.MethodGet, "/sessions/"+s.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
}

func TestCreateSession_Validation(t *testing.T) {
	e := newTestEnv(t, "")
	w := e.do(t, http.MethodPost, "/sessions", map[string]string{"name": ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty name = %d, want 400", w.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", rec.Code)
	}
}

func TestUnknownSession(t *testing.T) {
	e := newTestEnv(t, "")
	for _, p := range []string{"/sessions/nope", "/sessions/nope/note", "/sessions/nope/turns", "/sessions/nope/entities"} {
		if w := e.do(t, http.MethodGet, p, nil); w.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", p, w.Code)
		}
	}
}

func TestNote_GetUpdateFlush(t *testing.T) {
	e := newTestEnv(t, "")
	s := e.createSession(t, "n")
	base := "/sessions/" + s.ID + "/note"

	w := e.do(t, http.MethodGet, base, nil)
	var view session.NoteView
	_ = json.Unmarshal(w.Body.Bytes(), &view)
	if view.Content != notestate.DefaultTemplate {
		t.Fatalf("note = %q", view.Content)
	}
	etag := w.Header().Get("ETag")
	if etag != `"`+view.Checksum+`"` {
		t.Errorf("ETag = %q", etag)
	}

	w = e.do(t, http.MethodPut, base, map[string]string{"content": "stale"}, "If-Match", `"0000"`)
	if w.Code != http.StatusConflict {
		t.Errorf("stale If-Match = %d, want 409", w.Code)
	}

	w = e.do(t, http.MethodPut, base, map[string]string{"content": "draft"}, "If-Match", etag)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d %s", w.Code, w.Body.String())
	}
	_ = json.Unmarshal(w.Body.Bytes(), &view)
	if !view.Pending {
		t.Error("edit should be pending until the autosave delay")
	}

	if w = e.do(t, http.MethodPost, base+"/flush", nil); w.Code != http.StatusOK {
		t.Fatalf("flush = %d", w.Code)
	}
	stored, _, _ := e.db.GetNote(context.Background(), s.ID)
	if stored != "draft" {
		t.Errorf("stored = %q", stored)
	}
}

func TestNote_AppendAndRender(t *testing.T) {
	e := newTestEnv(t, "")
	s := e.createSession(t, "n")
	base := "/sessions/" + s.ID + "/note"

	if w := e.do(t, http.MethodPost, base+"/append", map[string]string{"text": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("empty append = %d, want 400", w.Code)
	}
	w := e.do(t, http.MethodPost, base+"/append", map[string]string{"text": ":::ai\n**new** fact\n:::"})
	if w.Code != http.StatusOK {
		t.Fatalf("append = %d %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodGet, base+"/render", nil)
	var rr struct {
		Nodes []struct {
			Kind string `json:"kind"`
		} `json:"nodes"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &rr)
	last := rr.Nodes[len(rr.Nodes)-1]
	if last.Kind != "annotated" {
		t.Errorf("last node kind = %q, want annotated", last.Kind)
	}
}

func TestMessagesAndTurns(t *testing.T) {
	e := newTestEnv(t, "")
	s := e.createSession(t, "chat")
	base := "/sessions/" + s.ID

	w := e.do(t, http.MethodPost, base+"/messages", map[string]string{"message": "hello"})
	if w.Code != http.StatusOK {
		t.Fatalf("send = %d %s", w.Code, w.Body.String())
	}
	var res conversation.Result
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Reply == nil || res.Reply.Content != "echo: hello" || res.Note.Kind != conversation.NoteAppend {
		t.Errorf("result = %+v", res)
	}

	w = e.do(t, http.MethodGet, base+"/turns", nil)
	var turns TurnListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &turns)
	if len(turns.Turns) != 2 {
		t.Errorf("turns = %d, want 2", len(turns.Turns))
	}

	if w = e.do(t, http.MethodDelete, base+"/turns", nil); w.Code != http.StatusNoContent {
		t.Fatalf("clear = %d", w.Code)
	}
	w = e.do(t, http.MethodGet, base+"/turns", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &turns)
	if len(turns.Turns) != 0 {
		t.Errorf("turns after clear = %d", len(turns.Turns))
	}
}

func TestSummarize_NothingToSummarize(t *testing.T) {
	e := newTestEnv(t, "")
	s := e.createSession(t, "sum")

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+s.ID+"/summarize", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("summarize = %d %s", w.Code, w.Body.String())
	}
	var res conversation.Result
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Reply == nil || res.Reply.Content != conversation.MsgNothingToSummarize {
		t.Errorf("reply = %+v", res.Reply)
	}
}

func uploadFile(t *testing.T, router http.Handler, path, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadScreenshot(t *testing.T) {
	e := newTestEnv(t, "")
	s := e.createSession(t, "shots")
	path := "/sessions/" + s.ID + "/screenshots"

	w := uploadFile(t, e.router, path, "shot.png", pngBytes)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	var res ingest.Result
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if _, err := os.Stat(filepath.Join(e.blobDir, filepath.FromSlash(res.Screenshot.Path))); err != nil {
		t.Errorf("blob missing: %v", err)
	}

	w = e.do(t, http.MethodGet, "/sessions/"+s.ID+"/entities", nil)
	var ents EntityListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &ents)
	if len(ents.Entities) != 1 || ents.Entities[0].Type != "hotel" {
		t.Errorf("entities = %+v", ents.Entities)
	}

	w = e.do(t, http.MethodGet, path, nil)
	var shots ScreenshotListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &shots)
	if len(shots.Screenshots) != 1 || shots.Screenshots[0].RawText != "Hotel A" {
		t.Errorf("screenshots = %+v", shots.Screenshots)
	}

	img := e.do(t, http.MethodGet, path+"/"+res.Screenshot.ID+"/image", nil)
	if img.Code != http.StatusOK || !bytes.Equal(img.Body.Bytes(), pngBytes) {
		t.Errorf("image = %d, %d bytes", img.Code, img.Body.Len())
	}
	if ct := img.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("image Content-Type = %q", ct)
	}
	if w = e.do(t, http.MethodGet, path+"/nope/image", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown screenshot = %d, want 404", w.Code)
	}

	// session delete removes the blobs
	e.do(t, http.MethodDelete, "/sessions/"+s.ID, nil)
	if _, err := os.Stat(filepath.Join(e.blobDir, s.ID)); !os.IsNotExist(err) {
		t.Errorf("blob dir should be gone, stat err = %v", err)
	}
}

func TestUploadScreenshot_Rejects(t *testing.T) {
	e := newTestEnv(t, "")
	s := e.createSession(t, "shots")
	path := "/sessions/" + s.ID + "/screenshots"

	if w := uploadFile(t, e.router, path, "shot.png", []byte("not a png")); w.Code != http.StatusBadRequest {
		t.Errorf("bad content = %d, want 400", w.Code)
	}
	if w := uploadFile(t, e.router, "/sessions/nope/screenshots", "shot.png", pngBytes); w.Code != http.StatusNotFound {
		t.Errorf("unknown session = %d, want 404", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-multipart = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	e := newTestEnv(t, "secret123")

	if w := e.do(t, http.MethodGet, "/sessions", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("missing token = %d, want 401", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/sessions", nil, "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/sessions", nil, "Authorization", "Bearer secret123"); w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}

	open := newTestEnv(t, "")
	if w := open.do(t, http.MethodGet, "/sessions", nil); w.Code != http.StatusOK {
		t.Errorf("auth disabled = %d, want 200", w.Code)
	}
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	// Minimal SSE handler stub; writes headers and blocks until context done.
	stub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		<-r.Context().Done()
	})
	e := newTestEnvWithSSE(t, "tok", stub)

	if w := e.do(t, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}

func TestSSEEvents_QueryToken(t *testing.T) {
	stub := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	e := newTestEnvWithSSE(t, "tok", stub)

	req := httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil)
	req.Header.Set("Accept", "text/event-stream")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with query token = %d, want 200", w.Code)
	}

	// the query token only counts for event streams
	req = httptest.NewRequest(http.MethodGet, "/sessions?access_token=tok", nil)
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("query token on REST = %d, want 401", w.Code)
	}
}
