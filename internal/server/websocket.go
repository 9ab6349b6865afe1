package server

import (
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/packhouse/packhouse/internal/types"
)

// wireEvent is the JSON shape of a repository event on the websocket.
type wireEvent struct {
	Type       string       `json:"type"`
	Repository string       `json:"repository"`
	ScanID     string       `json:"scan_id,omitempty"`
	Package    *packageView `json:"package,omitempty"`
	Error      string       `json:"error,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
}

func toWire(ev types.RepositoryEvent) wireEvent {
	out := wireEvent{
		Type:       string(ev.Type),
		Repository: ev.Repository,
		ScanID:     ev.ScanID,
		Timestamp:  ev.Timestamp,
	}
	if ev.Package != nil {
		v := viewPackage(ev.Package)
		out.Package = &v
	}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}
	return out
}

// handleWebSocket streams the manager's repository events to the client as
// JSON until the client disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	events := s.manager.Watch()
	defer s.manager.Unwatch(events)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, conn, toWire(ev)); err != nil {
				return
			}
		}
	}
}
