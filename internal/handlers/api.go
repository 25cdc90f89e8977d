package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/jason-s-yu/partyroom/internal/auth"
	"github.com/jason-s-yu/partyroom/internal/game"
	"github.com/jason-s-yu/partyroom/internal/scenario"
)

type sessionRequest struct {
	Name string `json:"name"`
}

type sessionResponse struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
	Token     string `json:"token"`
}

// CreateSessionHandler issues a guest session token. POST /session
func CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_payload", "invalid session payload")
			return
		}
	}
	sess := auth.NewGuestSession(req.Name)
	token, err := auth.CreateJWT(sess)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "could not sign token")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
	})
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: sess.ID, Name: sess.Name, Token: token})
}

// ListRoomsHandler lists open rooms. GET /rooms
func (s *RoomServer) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.ListRooms())
}

// LeaderboardHandler serves GET /leaderboard/{gameType}?limit=N.
func (s *RoomServer) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	gameType := game.GameType(r.PathValue("gameType"))

	rankings, err := s.Engine.Leaderboard(r.Context(), gameType, limit)
	switch {
	case errors.Is(err, game.ErrUnknownGameType):
		writeError(w, http.StatusNotFound, game.ErrorCode(err), err.Error())
	case err != nil:
		s.logger.WithField("game", gameType).WithError(err).Warn("leaderboard read failed")
		writeError(w, http.StatusServiceUnavailable, "leaderboard_unavailable", "leaderboard is unavailable")
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{"gameType": gameType, "rankings": rankings})
	}
}

// ListScenariosHandler lists the murder-mystery scenarios. GET /scenarios
func (s *RoomServer) ListScenariosHandler(w http.ResponseWriter, r *http.Request) {
	if s.Scenarios == nil {
		writeJSON(w, http.StatusOK, []scenario.Summary{})
		return
	}
	writeJSON(w, http.StatusOK, s.Scenarios.List())
}
