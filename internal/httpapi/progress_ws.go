package httpapi

import (
	"net/http"
	"time"

	"github.com/foxseedlab/callinsight/internal/analysis"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

const (
	progressMessageSnapshot = "snapshot"
	progressMessageEvent    = "progress"
	progressMessageFinished = "finished"
)

type progressMessage struct {
	Type          string              `json:"type"`
	BulkSessionID string              `json:"bulkSessionId"`
	Events        []analysis.Progress `json:"events,omitempty"`
	Event         *analysis.Progress  `json:"event,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleBulkProgress streams the current snapshot and then every live event
// of a running batch. A batch that is not running gets a single finished
// message.
func (s *Server) handleBulkProgress(w http.ResponseWriter, r *http.Request) {
	session, err := s.ownedBulkSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithRequest(r).WithField("error", err.Error()).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()
	entry := s.log.WithRequest(r).WithField("bulk_session_id", session.ID)

	snapshot, events, unsubscribe, ok := s.tracker.Subscribe(session.ID)
	if !ok {
		_ = writeProgress(conn, progressMessage{Type: progressMessageFinished, BulkSessionID: session.ID})
		return
	}
	defer unsubscribe()

	if err := writeProgress(conn, progressMessage{Type: progressMessageSnapshot, BulkSessionID: session.ID, Events: snapshot}); err != nil {
		entry.WithField("error", err.Error()).Debug("progress client went away")
		return
	}

	// The read loop only exists to notice the client closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case p, open := <-events:
			if !open {
				_ = writeProgress(conn, progressMessage{Type: progressMessageFinished, BulkSessionID: session.ID})
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "batch finished"),
					time.Now().Add(wsWriteWait))
				return
			}
			if err := writeProgress(conn, progressMessage{Type: progressMessageEvent, BulkSessionID: session.ID, Event: &p}); err != nil {
				entry.WithField("error", err.Error()).Debug("progress client went away")
				return
			}
		}
	}
}

func writeProgress(conn *websocket.Conn, msg progressMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}
