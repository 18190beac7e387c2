package conversation

import (
	"sort"
	"sync"
	"time"

	"github.com/starford/glean/internal/models"
)

// History is the visible, ordered list of turns for one session. The same
// turn can arrive twice (once from the sender, once from the realtime feed);
// Add keeps only the first copy.
type History struct {
	mu      sync.RWMutex
	turns   []models.Turn
	ids     map[string]struct{}
	cleared time.Time
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{ids: make(map[string]struct{})}
}

// Add inserts t in creation order. It returns false if a turn with the same
// id was already seen, or if t was created before the last Reset.
func (h *History) Add(t models.Turn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.ids[t.ID]; ok {
		return false
	}
	if !h.cleared.IsZero() && !t.CreatedAt.After(h.cleared) {
		return false
	}
	h.ids[t.ID] = struct{}{}

	i := sort.Search(len(h.turns), func(i int) bool {
		return h.turns[i].CreatedAt.After(t.CreatedAt)
	})
	h.turns = append(h.turns, models.Turn{})
	copy(h.turns[i+1:], h.turns[i:])
	h.turns[i] = t
	return true
}

// Turns returns a copy of the history.
func (h *History) Turns() []models.Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]models.Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Reset drops every turn. Ids already seen stay rejected and so does any
// turn created up to now, so late realtime copies cannot bring them back.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
	h.cleared = time.Now()
}
