package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeNoteUpdated, SessionID: "s1", Data: map[string]string{"checksum": "abc"}})

	select {
	case ev := <-ch:
		if ev.Type != TypeNoteUpdated || ev.SessionID != "s1" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestSessionFilter(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	mine := b.Subscribe("s1")
	defer b.Unsubscribe(mine)

	b.Publish(Event{Type: TypeTurnCreated, SessionID: "s2"})
	b.Publish(Event{Type: TypeTurnCreated, SessionID: "s1"})
	b.Publish(Event{Type: TypeSessionsUpdated})

	var got []Event
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case ev := <-mine:
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("received %d events, want 2", len(got))
		}
	}
	if got[0].SessionID != "s1" || got[1].Type != TypeSessionsUpdated {
		t.Errorf("events = %+v", got)
	}

	time.Sleep(50 * time.Millisecond)
	select {
	case ev := <-mine:
		t.Errorf("unexpected event %+v", ev)
	default:
	}
}

func TestPublishSessionEvent_ListThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// First event should trigger sessions.updated.
	b.PublishSessionEvent(TypeSessionCreated, "a", nil)
	// Second event immediately should NOT trigger another one.
	b.PublishSessionEvent(TypeNoteUpdated, "b", nil)

	time.Sleep(50 * time.Millisecond)
	listCount := 0
	otherCount := 0
loop:
	for {
		select {
		case ev := <-ch:
			if ev.Type == TypeSessionsUpdated {
				listCount++
			} else {
				otherCount++
			}
		default:
			break loop
		}
	}

	if otherCount != 2 {
		t.Errorf("session events = %d, want 2", otherCount)
	}
	if listCount != 1 {
		t.Errorf("list events = %d, want 1 (throttled)", listCount)
	}
}

// flushRecorder guards the recorder body, which the handler writes from
// another goroutine.
type flushRecorder struct {
	mu  sync.Mutex
	rec *httptest.ResponseRecorder
}

func (f *flushRecorder) Header() http.Header { return f.rec.Header() }
func (f *flushRecorder) WriteHeader(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rec.WriteHeader(code)
}
func (f *flushRecorder) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rec.Write(p)
}
func (f *flushRecorder) Flush() {}
func (f *flushRecorder) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rec.Body.String()
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events?session=s1", nil)
	req = req.WithContext(ctx)
	w := &flushRecorder{rec: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: TypeNoteUpdated, SessionID: "other"})
	b.Publish(Event{Type: TypeNoteUpdated, SessionID: "s1", Data: map[string]string{"checksum": "x"}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.body()
	if !strings.Contains(body, "event: note.updated") || !strings.Contains(body, `"session_id":"s1"`) {
		t.Errorf("handler output missing event: %q", body)
	}
	if strings.Contains(body, `"other"`) {
		t.Errorf("handler leaked another session's event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test"})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe("s1")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: TypeNoteUpdated})
	b.PublishSessionEvent(TypeNoteUpdated, "s1", nil)
}
