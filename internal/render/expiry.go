package render

import (
	"sync"
	"time"

	"github.com/starford/glean/internal/annotate"
)

// DefaultExpiry is how long annotation blocks stay visible.
const DefaultExpiry = 5 * time.Second

// Expirer strips annotation blocks from a note once they have been on
// screen for a fixed delay. Every observed text restarts the countdown; a
// text without markers cancels it.
type Expirer struct {
	delay  time.Duration
	commit func(marked, stripped string)

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// NewExpirer creates an Expirer. commit receives the text that was observed
// and the same text with delimiters removed.
func NewExpirer(delay time.Duration, commit func(marked, stripped string)) *Expirer {
	if delay <= 0 {
		delay = DefaultExpiry
	}
	return &Expirer{delay: delay, commit: commit}
}

// Observe records the latest note text.
func (e *Expirer) Observe(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if !annotate.HasMarker(text) {
		return
	}

	gen := e.gen
	e.timer = time.AfterFunc(e.delay, func() {
		e.mu.Lock()
		current := e.gen == gen
		if current {
			e.timer = nil
		}
		e.mu.Unlock()
		if current {
			e.commit(text, annotate.Strip(text))
		}
	})
}

// Armed reports whether a countdown is pending.
func (e *Expirer) Armed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timer != nil
}

// Stop cancels any pending countdown.
func (e *Expirer) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}
