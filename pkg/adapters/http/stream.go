package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/hybridqa/internal/logging"
	"github.com/aretw0/hybridqa/pkg/domain"
)

// allRuns is the subscription key that receives events from every run.
const allRuns = "*"

// StreamManager fans lifecycle events out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // run ID -> set of channels
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a channel for runID ("" means every run). The returned
// func unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(runID string) (<-chan string, func()) {
	if runID == "" {
		runID = allRuns
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 16)
	if _, ok := sm.subscribers[runID]; !ok {
		sm.subscribers[runID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[runID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[runID]; ok {
			if _, present := subs[ch]; !present {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, runID)
			}
		}
	}
}

// Subscribers counts channels registered for runID.
func (sm *StreamManager) Subscribers(runID string) int {
	if runID == "" {
		runID = allRuns
	}
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[runID])
}

// Broadcast sends msg to subscribers of runID and of every run.
// Slow subscribers drop messages rather than block the workflow.
func (sm *StreamManager) Broadcast(runID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, key := range []string{runID, allRuns} {
		for ch := range sm.subscribers[key] {
			select {
			case ch <- msg:
			default:
				sm.logger.Warn("SSE: client buffer full, dropping message", "run_id", runID)
			}
		}
		if runID == allRuns {
			break
		}
	}
}

// Hooks publishes lifecycle events as JSON to subscribers.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	publish := func(runID string, v any) {
		b, err := json.Marshal(v)
		if err != nil {
			sm.logger.Warn("SSE: event encode failed", "err", err)
			return
		}
		sm.Broadcast(runID, string(b))
	}
	return domain.LifecycleHooks{
		OnRunStart:  func(_ context.Context, e *domain.RunEvent) { publish(e.RunID, e) },
		OnRunEnd:    func(_ context.Context, e *domain.RunEvent) { publish(e.RunID, e) },
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) { publish(e.RunID, e) },
		OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) { publish(e.RunID, e) },
		OnRoute:     func(_ context.Context, e *domain.RouteEvent) { publish(e.RunID, e) },
	}
}

// SubscribeEvents handles GET /events (SSE). With run_id only that run's
// events are streamed.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	runID := r.URL.Query().Get("run_id")
	ch, cancel := s.Streams.Subscribe(runID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
