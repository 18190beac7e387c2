package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/starford/glean/internal/models"
	"github.com/starford/glean/internal/store"
	"github.com/starford/glean/internal/testutil"
)

// slowStore holds GetSession for one id until release is closed.
type slowStore struct {
	*store.DB
	slowID  string
	entered chan struct{}
	release chan struct{}
}

func (s *slowStore) GetSession(ctx context.Context, id string) (models.Session, error) {
	if id == s.slowID {
		close(s.entered)
		<-s.release
	}
	return s.DB.GetSession(ctx, id)
}

func TestRegistry_GetReturnsOneSessionPerID(t *testing.T) {
	e := newEnv(t, replyOnly("r"), Config{})
	r := NewRegistry(e.deps)
	t.Cleanup(func() { _ = r.CloseAll(context.Background()) })

	const n = 8
	got := make([]*Session, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := r.Get(context.Background(), "s1")
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			got[i] = s
		}()
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if got[i] != got[0] {
			t.Fatalf("Get %d returned a different session", i)
		}
	}
	if ids := r.Active(); len(ids) != 1 || ids[0] != "s1" {
		t.Errorf("active = %v", ids)
	}
}

func TestRegistry_SlowActivationDoesNotBlockOtherSessions(t *testing.T) {
	e := newEnv(t, replyOnly("r"), Config{})
	testutil.SeedSession(t, e.db, "s2", "Porto trip")
	slow := &slowStore{DB: e.db, slowID: "s1", entered: make(chan struct{}), release: make(chan struct{})}
	deps := e.deps
	deps.Store = slow
	r := NewRegistry(deps)
	t.Cleanup(func() { _ = r.CloseAll(context.Background()) })

	done := make(chan error, 1)
	go func() {
		_, err := r.Get(context.Background(), "s1")
		done <- err
	}()
	<-slow.entered

	fast := make(chan error, 1)
	go func() {
		_, err := r.Get(context.Background(), "s2")
		fast <- err
	}()
	select {
	case err := <-fast:
		if err != nil {
			t.Fatalf("Get s2: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Get s2 waited for the s1 activation")
	}
	if _, ok := r.Lookup("s1"); ok {
		t.Error("s1 visible before activation finished")
	}

	close(slow.release)
	if err := <-done; err != nil {
		t.Fatalf("Get s1: %v", err)
	}
	if ids := r.Active(); len(ids) != 2 {
		t.Errorf("active = %v", ids)
	}
}

func TestRegistry_CloseAllSavesPendingEditWithExpiredContext(t *testing.T) {
	e := newEnv(t, replyOnly("r"), Config{AutosaveDelay: time.Hour})
	r := NewRegistry(e.deps)

	s, err := r.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := s.UpdateNote("last edit", ""); err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	if err := r.CloseAll(ctx); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}

	stored, _, err := e.db.GetNote(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if stored != "last edit" {
		t.Errorf("stored = %q, want last edit", stored)
	}
}

func TestRegistry_EvictIdle(t *testing.T) {
	e := newEnv(t, replyOnly("r"), Config{AutosaveDelay: time.Hour})
	testutil.SeedSession(t, e.db, "s2", "Porto trip")
	r := NewRegistry(e.deps)
	t.Cleanup(func() { _ = r.CloseAll(context.Background()) })

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	idle, err := r.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Get s1: %v", err)
	}
	_ = idle.UpdateNote("unsaved draft", "")
	if _, err := r.Get(context.Background(), "s2"); err != nil {
		t.Fatalf("Get s2: %v", err)
	}

	clock = clock.Add(20 * time.Minute)
	r.Lookup("s2")
	clock = clock.Add(15 * time.Minute)

	if n := r.EvictIdle(context.Background(), 30*time.Minute); n != 1 {
		t.Fatalf("evicted = %d, want 1", n)
	}
	if ids := r.Active(); len(ids) != 1 || ids[0] != "s2" {
		t.Errorf("active = %v", ids)
	}
	stored, _, _ := e.db.GetNote(context.Background(), "s1")
	if stored != "unsaved draft" {
		t.Errorf("stored = %q", stored)
	}

	again, err := r.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Get after evict: %v", err)
	}
	if again == idle || again.Note().Content != "unsaved draft" {
		t.Errorf("reactivated note = %q", again.Note().Content)
	}
}
