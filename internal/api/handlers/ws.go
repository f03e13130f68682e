package handlers

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/memoapp/memo-backend/internal/services"
)

// ChatSocket handles a live bidirectional chat connection. One session
// spans the connection's lifetime; each inbound text frame is one turn and
// the reply is pushed back on the socket.
func ChatSocket(svc *services.Services, log *logrus.Logger) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		owner, _ := conn.Locals("owner").(string)
		if owner == "" {
			owner = conn.Query("userId")
		}
		if owner == "" {
			conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"userId is required"}`))
			return
		}

		ctx := context.Background()
		session, err := svc.Chat.StartSession(ctx, owner, time.Now())
		if err != nil {
			log.WithField("owner", owner).WithError(err).Error("failed to open chat session")
			return
		}
		defer func() {
			if err := svc.Chat.EndSession(ctx, session.SessionID, time.Now()); err != nil {
				log.WithField("session_id", session.SessionID).WithError(err).Warn("failed to close chat session")
			}
		}()

		for {
			msgType, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType != websocket.TextMessage || len(payload) == 0 {
				continue
			}

			reply, err := svc.Chat.HandleInSession(ctx, owner, session.SessionID, string(payload), time.Now())
			if err != nil {
				log.WithFields(logrus.Fields{
					"owner":      owner,
					"session_id": session.SessionID,
				}).WithError(err).Error("chat turn failed")
				continue
			}

			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
				return
			}
		}
	}
}
