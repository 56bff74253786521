package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/madhatter5501/noteboard/kanban"
)

// BoardEvent is the payload of a board-update event. Revision grows with
// every change, so a client can drop a refresh it has already applied.
type BoardEvent struct {
	Type     string                  `json:"type"`
	Revision uint64                  `json:"revision"`
	Locked   bool                    `json:"locked"`
	Counts   map[kanban.ColumnID]int `json:"counts"`
}

type sseEvent struct {
	name string
	data []byte
}

// broadcastBoard announces a board change to every client.
func (s *Server) broadcastBoard(snap kanban.Snapshot) {
	ev := BoardEvent{
		Type:     "board-update",
		Revision: s.revision.Add(1),
		Locked:   snap.Locked,
		Counts:   make(map[kanban.ColumnID]int, len(kanban.Columns)),
	}
	for _, col := range kanban.Columns {
		ev.Counts[col] = len(snap.Column(col))
	}
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("Failed to encode board event", "error", err)
		return
	}
	s.send(sseEvent{name: ev.Type, data: data})
}

// send queues ev for every client, dropping it for clients that are behind.
func (s *Server) send(ev sseEvent) {
	s.sseMu.RLock()
	defer s.sseMu.RUnlock()

	for ch := range s.sseClients {
		select {
		case ch <- ev:
		default:
			// Client too slow, skip
		}
	}
}

// handleSSE streams board events. The connected event carries the current
// revision.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := make(chan sseEvent, 10)

	s.sseMu.Lock()
	s.sseClients[events] = true
	s.sseMu.Unlock()

	// Shutdown may already have closed the channel.
	defer func() {
		s.sseMu.Lock()
		if s.sseClients[events] {
			delete(s.sseClients, events)
			close(events)
		}
		s.sseMu.Unlock()
	}()

	fmt.Fprintf(w, "event: connected\ndata: {\"revision\":%d}\n\n", s.revision.Load())
	flusher.Flush()
	s.logger.Debug("SSE client connected", "remote", r.RemoteAddr)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected", "remote", r.RemoteAddr)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.data)
			flusher.Flush()
		}
	}
}
