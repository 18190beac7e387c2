package conversation

import (
	"testing"
	"time"

	"github.com/starford/glean/internal/models"
)

func TestHistory_DeduplicatesByID(t *testing.T) {
	h := NewHistory()
	turn := models.NewTurn("s1", models.RoleUser, "hi", time.Now())

	if !h.Add(turn) {
		t.Fatal("first Add should insert")
	}
	if h.Add(turn) {
		t.Error("second Add should be a no-op")
	}
	if h.Len() != 1 {
		t.Errorf("len = %d, want 1", h.Len())
	}
}

func TestHistory_OrdersByCreation(t *testing.T) {
	h := NewHistory()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	late := models.Turn{ID: "b", CreatedAt: base.Add(time.Second)}
	early := models.Turn{ID: "a", CreatedAt: base}
	same := models.Turn{ID: "c", CreatedAt: base.Add(time.Second)}

	h.Add(late)
	h.Add(early)
	h.Add(same)

	got := h.Turns()
	if got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "c" {
		t.Errorf("order = %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestHistory_ResetRejectsClearedTurns(t *testing.T) {
	h := NewHistory()
	seen := models.NewTurn("s1", models.RoleUser, "hi", time.Now())
	h.Add(seen)
	inFlight := models.NewTurn("s1", models.RoleAssistant, "late copy", time.Now())

	h.Reset()

	if h.Add(seen) {
		t.Error("cleared turn came back")
	}
	if h.Add(inFlight) {
		t.Error("turn created before the reset was accepted")
	}
	fresh := models.NewTurn("s1", models.RoleUser, "again", time.Now().Add(time.Millisecond))
	if !h.Add(fresh) {
		t.Error("new turn rejected after reset")
	}
	if h.Len() != 1 {
		t.Errorf("len = %d, want 1", h.Len())
	}
}

func TestClassifier(t *testing.T) {
	c := NewClassifier("Zusammenfassung", " ")
	cases := map[string]bool{
		"summarize please":          true,
		"give me a Summary":         true,
		"eine Zusammenfassung bitte": true,
		"what is the cheapest?":     false,
	}
	for msg, want := range cases {
		if got := c.IsSummarize(msg); got != want {
			t.Errorf("IsSummarize(%q) = %v, want %v", msg, got, want)
		}
	}
}
