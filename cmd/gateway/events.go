package main

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hubenschmidt/dubstream-gateway/internal/orchestrator"
)

// eventHub fans out orchestrator.TaskEvents to any /api/task/{id}/events
// subscribers for that task. It is the additive live-progress convenience;
// a task with no subscribers never blocks on one.
type eventHub struct {
	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[string]map[chan orchestrator.TaskEvent]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subs: make(map[string]map[chan orchestrator.TaskEvent]struct{}),
	}
}

// Publish implements orchestrator.EventSink. It never blocks: a subscriber
// whose channel is full simply misses the event rather than stalling the
// compose worker.
func (h *eventHub) Publish(taskID string, event orchestrator.TaskEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[taskID] {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *eventHub) subscribe(taskID string) chan orchestrator.TaskEvent {
	ch := make(chan orchestrator.TaskEvent, 8)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[taskID] == nil {
		h.subs[taskID] = make(map[chan orchestrator.TaskEvent]struct{})
	}
	h.subs[taskID][ch] = struct{}{}
	return ch
}

func (h *eventHub) unsubscribe(taskID string, ch chan orchestrator.TaskEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[taskID], ch)
	if len(h.subs[taskID]) == 0 {
		delete(h.subs, taskID)
	}
	close(ch)
}

// handleTaskEvents upgrades to a WebSocket and pushes {sequence,
// playlist_url} as each HLS segment is published, until the client
// disconnects or a write fails; the stream is not closed when the task
// finishes.
func (h *eventHub) handleTaskEvents(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("events upgrade failed", "task_id", taskID, "error", err)
		return
	}
	defer conn.Close()

	ch := h.subscribe(taskID)
	defer h.unsubscribe(taskID, ch)

	// Drain client-initiated control frames (close, ping) in the background
	// so the connection tears down promptly when the client goes away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
