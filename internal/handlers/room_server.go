package handlers

import (
	"context"
	"fmt"

	"github.com/jason-s-yu/partyroom/internal/game"
	"github.com/jason-s-yu/partyroom/internal/models"
	"github.com/jason-s-yu/partyroom/internal/scenario"
	"github.com/sirupsen/logrus"
)

// Room-level message types handled here; everything else goes to the
// room's game machine through Engine.Apply.
const (
	MsgCreateRoom = "create_room"
	MsgJoinRoom   = "join_room"
	MsgLeaveRoom  = "leave_room"
	MsgCloseRoom  = "close_room"
	MsgRebind     = "rebind"
	MsgSnapshot   = "snapshot"
	MsgPing       = "ping"
)

// ScenarioLister is the part of the scenario catalog the HTTP API exposes.
type ScenarioLister interface {
	List() []scenario.Summary
}

// RoomServer connects the transport to the engine.
type RoomServer struct {
	Engine    *game.Engine
	Hub       *Hub
	Scenarios ScenarioLister
	logger    *logrus.Logger
}

func NewRoomServer(engine *game.Engine, hub *Hub, scenarios ScenarioLister, logger *logrus.Logger) *RoomServer {
	return &RoomServer{Engine: engine, Hub: hub, Scenarios: scenarios, logger: logger}
}

// Ack answers every inbound message. Failed acks carry the error code and
// go to the sender only.
type Ack struct {
	Type      string      `json:"type"`
	Action    string      `json:"action"`
	RoomID    int64       `json:"roomId,omitempty"`
	RequestID string      `json:"requestId,omitempty"`
	Success   bool        `json:"success"`
	Code      string      `json:"code,omitempty"`
	Message   string      `json:"message,omitempty"`
	Result    interface{} `json:"result,omitempty"`
}

type createRoomPayload struct {
	Name   string          `json:"name"`
	Config game.RoomConfig `json:"config"`
}

type joinRoomPayload struct {
	Name string `json:"name"`
}

// Dispatch runs one inbound message for a session connected through handle.
func (s *RoomServer) Dispatch(ctx context.Context, sess models.Session, handle string, req models.Action) Ack {
	result, err := s.route(ctx, sess, handle, &req)
	ack := Ack{Type: "ack", Action: req.Type, RoomID: req.RoomID, RequestID: req.RequestID}
	if err != nil {
		ack.Code = game.ErrorCode(err)
		ack.Message = err.Error()
		s.logger.WithFields(logrus.Fields{
			"session": sess.ID,
			"room":    req.RoomID,
			"action":  req.Type,
			"code":    ack.Code,
		}).Debug("action rejected")
		return ack
	}
	ack.Success = true
	ack.Result = result
	return ack
}

func (s *RoomServer) route(ctx context.Context, sess models.Session, handle string, req *models.Action) (interface{}, error) {
	switch req.Type {
	case MsgPing:
		return map[string]bool{"pong": true}, nil

	case MsgCreateRoom:
		var p createRoomPayload
		if err := req.Decode(&p); err != nil {
			return nil, game.Errorf(game.ErrInvalidPayload, "invalid create_room payload: %v", err)
		}
		host := models.Host{ID: sess.ID, Name: displayName(p.Name, sess), Connected: true, Handle: handle}
		r, err := s.Engine.CreateRoom(host, p.Config)
		if err != nil {
			return nil, err
		}
		req.RoomID = r.ID
		return map[string]int64{"roomId": r.ID}, nil

	case MsgJoinRoom:
		var p joinRoomPayload
		if err := req.Decode(&p); err != nil {
			return nil, game.Errorf(game.ErrInvalidPayload, "invalid join_room payload: %v", err)
		}
		r, err := s.Engine.JoinRoom(req.RoomID, sess.ID, displayName(p.Name, sess), handle)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"roomId": r.ID}, nil

	case MsgLeaveRoom:
		return nil, s.Engine.LeaveRoom(req.RoomID, sess.ID)

	case MsgCloseRoom:
		return nil, s.Engine.CloseRoom(req.RoomID, sess.ID)

	case MsgRebind:
		return nil, s.Engine.Rebind(req.RoomID, sess.ID, handle)

	case MsgSnapshot:
		snap, err := s.Engine.Snapshot(req.RoomID, sess.ID)
		if err != nil {
			return nil, err
		}
		return snap, nil

	case "":
		return nil, game.Errorf(game.ErrInvalidPayload, "missing message type")

	default:
		reply, err := s.Engine.Apply(ctx, sess.ID, *req)
		if err != nil {
			return nil, err
		}
		return reply, nil
	}
}

// Resume rebinds a reconnecting session to the room it belongs to. It
// returns the room id, or 0 when the session has no room.
func (s *RoomServer) Resume(sess models.Session, handle string) int64 {
	roomID, ok := s.Engine.Store().RoomOf(sess.ID)
	if !ok {
		return 0
	}
	if err := s.Engine.Rebind(roomID, sess.ID, handle); err != nil {
		s.logger.WithFields(logrus.Fields{"session": sess.ID, "room": roomID}).WithError(err).Debug("resume failed")
		return 0
	}
	return roomID
}

func displayName(requested string, sess models.Session) string {
	if requested != "" {
		return requested
	}
	if sess.Name != "" {
		return sess.Name
	}
	return fmt.Sprintf("Guest-%.4s", sess.ID)
}
