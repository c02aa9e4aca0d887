package orchestrator

import (
	"sync"

	"github.com/bledden/tinker-voice/internal/domain"
)

// ─── Run Events ─────────────────────────────────────────────────────────────
// Every persisted change produces an event. UI-level callers subscribe
// instead of re-reading the run set on a timer of their own.

// EventType classifies a run event.
type EventType string

const (
	EventRunCreated EventType = "run.created"
	EventRunUpdated EventType = "run.updated"
)

// Event carries a snapshot of the run that changed.
type Event struct {
	Type EventType          `json:"type"`
	Run  domain.TrainingRun `json:"run"`
}

// hub fans events out to subscriber channels. Sends never block: a slow
// subscriber misses intermediate snapshots rather than stalling the
// orchestrator, and can always re-read the full run set.
type hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan Event]struct{})}
}

// subscribe registers a new subscriber. The returned cancel func must be
// called to release the channel.
func (h *hub) subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default: // subscriber is behind, drop
		}
	}
}
