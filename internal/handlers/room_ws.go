package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/partyroom/internal/auth"
	"github.com/jason-s-yu/partyroom/internal/middleware"
	"github.com/jason-s-yu/partyroom/internal/models"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the websocket subprotocol clients must request.
const Subprotocol = "room"

// welcome is the first message on every connection.
type welcome struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
	Token     string `json:"token,omitempty"`
	RoomID    int64  `json:"roomId,omitempty"`
}

// ensureSession authenticates the request, minting a guest session (and its
// cookie) when the client brought no valid token.
func ensureSession(w http.ResponseWriter, r *http.Request) (models.Session, string, error) {
	if token := tokenFromRequest(r); token != "" {
		if sess, err := auth.AuthenticateJWT(token); err == nil {
			return sess, "", nil
		}
	}
	sess := auth.NewGuestSession(r.URL.Query().Get("name"))
	token, err := auth.CreateJWT(sess)
	if err != nil {
		return models.Session{}, "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
	})
	return sess, token, nil
}

// RoomWSHandler upgrades to a websocket carrying room actions for one
// session. A session that already belongs to a room is rebound to it.
func RoomWSHandler(logger *logrus.Logger, s *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, freshToken, err := ensureSession(w, r)
		if err != nil {
			logger.WithError(err).Warn("failed to create guest session")
			http.Error(w, "could not create session", http.StatusInternalServerError)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the room subprotocol")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		conn := NewConn(uuid.NewString(), sess.ID, cancel)
		if old := s.Hub.Register(conn); old != nil {
			old.Cancel()
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, sess.ID, conn.Handle)

		go writePump(ctx, c, conn, logger)

		roomID, _ := s.Engine.Store().RoomOf(sess.ID)
		s.Hub.Push(sess.ID, Message{Type: "welcome", RoomID: roomID, Payload: welcome{
			SessionID: sess.ID,
			Name:      sess.Name,
			Token:     freshToken,
			RoomID:    roomID,
		}})
		s.Resume(sess, conn.Handle)

		readErr := readPump(ctx, c, s, sess, conn, logger)

		// A newer connection for the same session keeps the seat online.
		if s.Hub.Unregister(conn) {
			s.Engine.Disconnect(sess.ID, conn.Handle)
		}
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, sess.ID, conn.Handle, readErr)
	}
}

// readPump reads inbound actions until the connection fails or ctx ends.
// It returns nil on a normal closure.
func readPump(ctx context.Context, c *websocket.Conn, s *RoomServer, sess models.Session, conn *Conn, logger *logrus.Logger) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			logger.Warnf("Received non-text message type %d from session %s. Ignoring.", typ, sess.ID)
			continue
		}

		var req models.Action
		if err := json.Unmarshal(data, &req); err != nil {
			s.Hub.Push(sess.ID, Ack{Type: "ack", Code: "invalid_payload", Message: "Invalid JSON format."})
			continue
		}
		if !conn.Allow() {
			s.Hub.Push(sess.ID, Ack{
				Type:      "ack",
				Action:    req.Type,
				RoomID:    req.RoomID,
				RequestID: req.RequestID,
				Code:      codeRateLimited,
				Message:   "too many actions, slow down",
			})
			continue
		}

		ack := s.Dispatch(ctx, sess, conn.Handle, req)
		s.Hub.Push(sess.ID, ack)
	}
}

// writePump drains the outbound queue and keeps the connection alive with
// periodic pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *Conn, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.WithField("session", conn.SessionID).WithError(err).Debug("ping failed")
				conn.Cancel()
				return
			}
		case msg := <-conn.OutChan:
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("Failed to marshal outgoing msg for session %v: %v", conn.SessionID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("Failed to write to websocket for session %v: %v", conn.SessionID, err)
				conn.Cancel()
				return
			}
		}
	}
}
