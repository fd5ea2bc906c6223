package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/guiyumin/urduscribe/internal/core/ai/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is a client message on the session socket.
type wsRequest struct {
	Action string `json:"action"` // "transcribe" or "cancel"
}

// handleTranscribeWS pushes session events over a WebSocket.
// The client starts the work with {"action":"transcribe"}; closing the
// socket abandons the session.
func (s *Server) handleTranscribeWS(c *gin.Context) {
	id := c.Param("id")
	if s.store.Get(id) == nil {
		s.sessionNotFound(c)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var writeMu sync.Mutex
	send := func(v interface{}) {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(v); err != nil {
			log.Printf("websocket write failed: %v", err)
			cancel()
		}
	}
	closeNormal := func() {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
			time.Now().Add(time.Second))
	}

	var done chan struct{}
	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			// client went away
			cancel()
			break
		}

		switch req.Action {
		case "transcribe":
			if done != nil {
				send(session.Event{Type: session.EventError, Message: errSessionBusy.Error()})
				continue
			}
			sess, err := s.store.begin(id, cancel, func(e session.Event) { send(e) })
			if err != nil {
				send(session.Event{Type: session.EventError, Message: err.Error()})
				continue
			}
			done = make(chan struct{})
			go func() {
				defer close(done)
				defer s.store.finish(id)
				if _, err := sess.Transcribe(ctx); errors.Is(err, session.ErrInvalidState) {
					send(session.Event{Type: session.EventError, State: sess.State(), Message: err.Error()})
				}
				closeNormal()
			}()
		case "cancel":
			cancel()
		default:
			send(session.Event{Type: session.EventError, Message: "unknown action: " + req.Action})
		}
	}

	if done != nil {
		<-done
	}
}
