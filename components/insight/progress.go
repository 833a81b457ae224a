package insight

import (
	"bufio"
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// UploadPhase is the stage of an upload.
type UploadPhase string

const (
	PhaseUploading  UploadPhase = "uploading"
	PhaseProcessing UploadPhase = "processing"
	PhaseDone       UploadPhase = "done"
	PhaseFailed     UploadPhase = "failed"
)

// Terminal reports whether no further events follow the phase.
func (p UploadPhase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// ProgressEvent reports upload progress to subscribers.
type ProgressEvent struct {
	UploadID string      `json:"upload_id"`
	Phase    UploadPhase `json:"phase"`
	Sent     int64       `json:"sent"`
	Total    int64       `json:"total"`
	Percent  int         `json:"percent"`
	Message  string      `json:"message,omitempty"`
}

// FinishedRetention is how long the terminal event of an upload is kept for
// subscribers that connect after it finished.
const FinishedRetention = time.Minute

// ProgressHub fans upload progress out to in-process subscribers keyed by
// upload id. The last event of each upload is replayed to late subscribers,
// terminal ones for FinishedRetention.
type ProgressHub struct {
	mu       sync.RWMutex
	subs     map[string]map[int]chan ProgressEvent
	last     map[string]ProgressEvent
	finished map[string]time.Time
	next     int
	now      func() time.Time
}

// NewProgressHub creates a hub.
func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		subs:     make(map[string]map[int]chan ProgressEvent),
		last:     make(map[string]ProgressEvent),
		finished: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Publish delivers an event without blocking; slow subscribers drop events.
func (h *ProgressHub) Publish(event ProgressEvent) {
	if event.Total > 0 {
		event.Percent = int(event.Sent * 100 / event.Total)
	}
	if event.Phase == PhaseDone {
		event.Percent = 100
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.now()
	h.expireLocked(now)
	h.last[event.UploadID] = event
	if event.Phase.Terminal() {
		h.finished[event.UploadID] = now
	} else {
		delete(h.finished, event.UploadID)
	}
	for _, ch := range h.subs[event.UploadID] {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *ProgressHub) expireLocked(now time.Time) {
	for id, at := range h.finished {
		if now.Sub(at) > FinishedRetention {
			delete(h.finished, id)
			delete(h.last, id)
		}
	}
}

// Reporter returns a callback that publishes byte progress for uploadID.
func (h *ProgressHub) Reporter(uploadID string) func(sent, total int64) {
	return func(sent, total int64) {
		h.Publish(ProgressEvent{UploadID: uploadID, Phase: PhaseUploading, Sent: sent, Total: total})
	}
}

// Subscribe returns a channel of events for uploadID and a cancel func.
func (h *ProgressHub) Subscribe(uploadID string) (<-chan ProgressEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan ProgressEvent, 16)
	if h.subs[uploadID] == nil {
		h.subs[uploadID] = make(map[int]chan ProgressEvent)
	}
	h.subs[uploadID][id] = ch
	h.expireLocked(h.now())
	if last, ok := h.last[uploadID]; ok {
		ch <- last
	}
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subs[uploadID]
		if sub, ok := subs[id]; ok {
			delete(subs, id)
			close(sub)
		}
		if len(subs) == 0 {
			delete(h.subs, uploadID)
		}
	}
	return ch, cancel
}

// StreamSSE writes events for uploadID as Server-Sent Events until a terminal
// event, ctx cancellation, or a write failure.
func (h *ProgressHub) StreamSSE(ctx context.Context, uploadID string, w *bufio.Writer) {
	events, cancel := h.Subscribe(uploadID)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				return
			}
			if _, err := w.WriteString("data: " + string(payload) + "\n\n"); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
			if event.Phase.Terminal() {
				return
			}
		}
	}
}
