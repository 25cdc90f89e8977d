// internal/game/game.go
package game

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jason-s-yu/partyroom/internal/models"
	"github.com/sirupsen/logrus"
)

// Engine owns the room registry and runs every room mutation through the same
// serialized path: resolve the room, check the idempotency guard, gate by
// phase and privilege, let the machine mutate, then apply the timer directive
// and publish.
type Engine struct {
	store *RoomStore

	factoriesMu sync.RWMutex
	factories   map[GameType]Factory

	transport   Transport
	leaderboard Leaderboard
	history     ActionRecorder
	logger      *logrus.Logger

	// second is the length of one timer unit. Tests shrink it.
	second         time.Duration
	asyncTimeout   time.Duration
	persistTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

func WithTransport(t Transport) Option        { return func(e *Engine) { e.transport = t } }
func WithLeaderboard(l Leaderboard) Option    { return func(e *Engine) { e.leaderboard = l } }
func WithHistory(h ActionRecorder) Option     { return func(e *Engine) { e.history = h } }
func WithLogger(l *logrus.Logger) Option      { return func(e *Engine) { e.logger = l } }
func WithSecond(d time.Duration) Option       { return func(e *Engine) { e.second = d } }
func WithAsyncTimeout(d time.Duration) Option { return func(e *Engine) { e.asyncTimeout = d } }

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		store:          NewRoomStore(),
		factories:      make(map[GameType]Factory),
		transport:      nopTransport{},
		logger:         logrus.StandardLogger(),
		second:         time.Second,
		asyncTimeout:   3 * time.Second,
		persistTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register installs the machine factory of a game type.
func (e *Engine) Register(t GameType, f Factory) {
	e.factoriesMu.Lock()
	defer e.factoriesMu.Unlock()
	e.factories[t] = f
}

func (e *Engine) factory(t GameType) (Factory, bool) {
	e.factoriesMu.RLock()
	defer e.factoriesMu.RUnlock()
	f, ok := e.factories[t]
	return f, ok
}

// Store exposes the registry.
func (e *Engine) Store() *RoomStore { return e.store }

// CreateRoom builds a room for the host. The host takes a seat as well when
// the configuration says so.
func (e *Engine) CreateRoom(host models.Host, cfg RoomConfig) (*Room, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f, ok := e.factory(cfg.GameType)
	if !ok {
		return nil, Errorf(ErrUnknownGameType, "game type %q is not available", cfg.GameType)
	}
	m, err := f(cfg)
	if err != nil {
		return nil, Errorf(ErrInvalidConfiguration, "cannot set up %s: %v", cfg.GameType, err)
	}
	r, err := e.store.Create(host, cfg, m)
	if err != nil {
		return nil, err
	}

	r.Mu.Lock()
	defer r.Mu.Unlock()
	if cfg.HostPlays {
		r.seatUnsafe(host.ID, host.Name, host.Handle)
	}
	e.transport.JoinRoom(r.ID, host.ID)
	e.logger.WithFields(logrus.Fields{"room": r.ID, "host": host.ID, "config": cfg.String()}).Info("room created")
	e.sendSnapshotsUnsafe(r)
	return r, nil
}

// JoinRoom seats a session in a pending room. A session that is already a
// member is rebound instead, keeping its game state.
func (e *Engine) JoinRoom(roomID int64, sessionID, name, handle string) (*Room, error) {
	r, err := e.store.Get(roomID)
	if err != nil {
		return nil, err
	}
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.closed {
		return nil, ErrRoomNotFound
	}
	if r.IsMemberUnsafe(sessionID) {
		e.rebindUnsafe(r, sessionID, handle)
		return r, nil
	}
	if r.broken {
		return nil, ErrRoomBroken
	}
	if r.Game.Running() {
		return nil, Errorf(ErrWrongPhase, "a game is already in progress")
	}
	if len(r.Players) >= r.MaxPlayers() {
		return nil, ErrRoomFull
	}
	if err := e.store.Claim(sessionID, r.ID); err != nil {
		return nil, err
	}
	r.seatUnsafe(sessionID, name, handle)
	e.transport.JoinRoom(r.ID, sessionID)
	e.logger.WithFields(logrus.Fields{"room": r.ID, "session": sessionID}).Info("player joined")
	e.sendSnapshotsUnsafe(r)
	return r, nil
}

// LeaveRoom removes a player while no game is running. The host leaving
// closes the room.
func (e *Engine) LeaveRoom(roomID int64, sessionID string) error {
	r, err := e.store.Get(roomID)
	if err != nil {
		return err
	}
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.closed {
		return ErrRoomNotFound
	}
	if r.Host.ID == sessionID {
		return e.closeUnsafe(r)
	}
	if r.PlayerUnsafe(sessionID) == nil {
		return ErrNotAParticipant
	}
	if r.Game.Running() && !r.broken {
		return Errorf(ErrWrongPhase, "cannot leave while a game is in progress")
	}
	r.unseatUnsafe(sessionID)
	e.store.Release(sessionID, r.ID)
	e.transport.LeaveRoom(r.ID, sessionID)
	e.logger.WithFields(logrus.Fields{"room": r.ID, "session": sessionID}).Info("player left")
	e.sendSnapshotsUnsafe(r)
	return nil
}

// CloseRoom destroys a room. Only the host may do it, and only while no game
// is running (a broken room can always be closed).
func (e *Engine) CloseRoom(roomID int64, sessionID string) error {
	r, err := e.store.Get(roomID)
	if err != nil {
		return err
	}
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.closed {
		return ErrRoomNotFound
	}
	if r.Host.ID != sessionID {
		return ErrNotHost
	}
	return e.closeUnsafe(r)
}

func (e *Engine) closeUnsafe(r *Room) error {
	if r.Game.Running() && !r.broken {
		return ErrRoomNotPending
	}
	e.stopTimerUnsafe(r)
	r.guard.Reset()
	r.closed = true
	e.recordUnsafe(r, Actor{ID: r.Host.ID, IsHost: true}, models.NewAction(r.ID, ActionRoomClosed, "", nil))
	e.transport.BroadcastToRoom(r.ID, EventRoomClosed, map[string]interface{}{"roomId": r.ID})
	e.transport.LeaveRoom(r.ID, r.Host.ID)
	for _, p := range r.Players {
		e.transport.LeaveRoom(r.ID, p.ID)
	}
	e.store.Remove(r.ID)
	e.logger.WithField("room", r.ID).Info("room closed")
	return nil
}

// Rebind attaches a new transport handle to an existing member. Game state is
// keyed by session id and is not touched.
func (e *Engine) Rebind(roomID int64, sessionID, handle string) error {
	r, err := e.store.Get(roomID)
	if err != nil {
		return err
	}
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.closed {
		return ErrRoomNotFound
	}
	if !r.IsMemberUnsafe(sessionID) {
		return ErrNotAParticipant
	}
	e.rebindUnsafe(r, sessionID, handle)
	return nil
}

func (e *Engine) rebindUnsafe(r *Room, sessionID, handle string) {
	wasOnline := r.onlineUnsafe(sessionID)
	if r.Host.ID == sessionID {
		r.Host.Handle = handle
		r.Host.Connected = true
	}
	if p := r.PlayerUnsafe(sessionID); p != nil {
		p.Handle = handle
		p.Connected = true
	}
	e.transport.JoinRoom(r.ID, sessionID)
	e.logger.WithFields(logrus.Fields{"room": r.ID, "session": sessionID}).Debug("session rebound")
	if wasOnline {
		// Only the handle moved; nobody else's view changed.
		e.sendSnapshotToUnsafe(r, sessionID)
		return
	}
	e.sendSnapshotsUnsafe(r)
}

// Disconnect marks a member offline. The record stays so the session can
// reconnect. A handle that has already been replaced is ignored.
func (e *Engine) Disconnect(sessionID, handle string) {
	roomID, ok := e.store.RoomOf(sessionID)
	if !ok {
		return
	}
	r, err := e.store.Get(roomID)
	if err != nil {
		return
	}
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.closed {
		return
	}
	changed := false
	if r.Host.ID == sessionID && r.Host.Handle == handle {
		r.Host.Connected = false
		r.Host.Handle = ""
		changed = true
	}
	if p := r.PlayerUnsafe(sessionID); p != nil && p.Handle == handle {
		p.Connected = false
		p.Handle = ""
		changed = true
	}
	if changed {
		e.logger.WithFields(logrus.Fields{"room": r.ID, "session": sessionID}).Debug("session disconnected")
		e.sendSnapshotsUnsafe(r)
	}
}

// Apply runs one client action. Duplicate request ids return the prior reply
// without running anything. Failures leave the room untouched and are only
// reported to the caller.
func (e *Engine) Apply(ctx context.Context, sessionID string, action models.Action) (Reply, error) {
	r, err := e.store.Get(action.RoomID)
	if err != nil {
		return nil, err
	}

	r.Mu.Lock()
	if err := e.checkOpenUnsafe(r); err != nil {
		r.Mu.Unlock()
		return nil, err
	}
	actor, err := r.actorUnsafe(sessionID)
	if err != nil {
		r.Mu.Unlock()
		return nil, err
	}
	if !r.guard.ShouldApply(action.RequestID) {
		reply := r.guard.Prior(action.RequestID)
		r.Mu.Unlock()
		return reply, nil
	}

	out, err := e.handleUnsafe(r, actor, action)
	if err != nil {
		r.Mu.Unlock()
		e.logger.WithFields(logrus.Fields{"room": r.ID, "session": sessionID, "action": action.Type}).WithError(err).Debug("action rejected")
		return nil, err
	}

	if out.Async != nil {
		step := *out.Async
		r.guard.Begin(action.RequestID)
		r.Mu.Unlock()

		runCtx, cancel := context.WithTimeout(ctx, e.asyncTimeout)
		result := step.Run(runCtx)
		cancel()

		r.Mu.Lock()
		if err := e.checkOpenUnsafe(r); err != nil {
			r.guard.Abort(action.RequestID)
			r.Mu.Unlock()
			return nil, err
		}
		if actor, err = r.actorUnsafe(sessionID); err != nil {
			r.guard.Abort(action.RequestID)
			r.Mu.Unlock()
			return nil, err
		}
		out, err = step.Apply(r, actor, result)
		if err != nil {
			r.guard.Abort(action.RequestID)
			r.Mu.Unlock()
			return nil, err
		}
	}

	e.commitUnsafe(r, actor, action, out)
	reply := Reply{}
	for k, v := range out.Reply {
		reply[k] = v
	}
	r.Mu.Unlock()
	return reply, nil
}

func (e *Engine) checkOpenUnsafe(r *Room) error {
	if r.closed {
		return ErrRoomNotFound
	}
	if r.broken {
		return ErrRoomBroken
	}
	return nil
}

// handleUnsafe gates the action and hands it to the machine. Nothing is
// mutated before every check has passed.
func (e *Engine) handleUnsafe(r *Room, actor Actor, action models.Action) (Outcome, error) {
	if action.Type == ActionUpdateSettings {
		return e.updateSettingsUnsafe(r, actor, action)
	}
	rule, ok := r.Game.Actions()[action.Type]
	if !ok {
		return Outcome{}, Errorf(ErrUnknownAction, "unknown action %q", action.Type)
	}
	if !rule.Allows(r.Game.Phase()) {
		return Outcome{}, Errorf(ErrWrongPhase, "%s is not allowed during %s", action.Type, r.Game.Phase())
	}
	if rule.HostOnly && !actor.IsHost {
		return Outcome{}, ErrNotHost
	}
	if rule.GameMasterOnly && (!actor.IsHost || r.HostSeatedUnsafe()) {
		return Outcome{}, ErrNotGameMaster
	}
	if rule.PlayerOnly && actor.Player == nil {
		return Outcome{}, ErrNotAParticipant
	}

	switch action.Type {
	case ActionStartRound:
		var p struct {
			Duration int `json:"duration"`
		}
		if err := action.Decode(&p); err != nil {
			return Outcome{}, Errorf(ErrInvalidPayload, "invalid start_round payload")
		}
		seconds := p.Duration
		if seconds <= 0 {
			seconds = r.Config.RoundSeconds
		}
		return r.Game.StartRound(r, seconds)
	case ActionForceEnd:
		out, err := r.Game.ForceEnd(r)
		if err != nil {
			return Outcome{}, err
		}
		if out.Timer == nil {
			out.Timer = CancelTimer()
		}
		return out, nil
	case ActionReset:
		out := r.Game.Reset(r)
		out.ResetRoom = true
		out.Timer = CancelTimer()
		return out, nil
	}
	return r.Game.Handle(r, actor, action)
}

func (e *Engine) updateSettingsUnsafe(r *Room, actor Actor, action models.Action) (Outcome, error) {
	if r.Game.Running() {
		return Outcome{}, Errorf(ErrWrongPhase, "settings can only change between games")
	}
	if !actor.IsHost {
		return Outcome{}, ErrNotHost
	}
	var settings map[string]interface{}
	if err := action.Decode(&settings); err != nil {
		return Outcome{}, Errorf(ErrInvalidPayload, "settings must be an object")
	}
	cfg := r.Config
	if err := cfg.Update(settings); err != nil {
		return Outcome{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Outcome{}, err
	}
	if cfg.MaxPlayers < len(r.Players) {
		return Outcome{}, Errorf(ErrInvalidConfiguration, "maxPlayers is below the number of seated players")
	}
	r.Config = cfg
	return Outcome{Reply: Reply{"config": cfg}}, nil
}

// commitUnsafe finishes a successful mutation: idempotency record, timer,
// status, history, leaderboard and publishing.
func (e *Engine) commitUnsafe(r *Room, actor Actor, action models.Action, out Outcome) {
	if out.ResetRoom {
		r.guard.Reset()
	}
	r.guard.Record(action.RequestID, out.Reply)

	if out.Timer != nil {
		if out.Timer.Cancel {
			e.stopTimerUnsafe(r)
		} else if out.Timer.Seconds > 0 {
			e.startTimerUnsafe(r, out.Timer.Seconds)
		}
	}

	if r.Game.Running() {
		r.Status = StatusInProgress
	} else {
		r.Status = StatusPending
	}

	e.recordUnsafe(r, actor, action)

	events := out.Events
	if out.GameOver != nil {
		gameID := out.GameOver.GameID
		if gameID == "" {
			gameID = string(r.GameType)
		}
		summary := map[string]interface{}{
			"gameId":  gameID,
			"winners": out.GameOver.Winners,
		}
		events = append(events, RoomEvent(EventGameOver, summary))
		e.recordUnsafe(r, System, models.NewAction(r.ID, ActionGameOver, "", summary))
		e.recordWinners(r.ID, gameID, out.GameOver.Winners)
	}
	e.publishUnsafe(r, events, !out.Quiet)
}

// recordUnsafe publishes the action to the history sink without waiting.
func (e *Engine) recordUnsafe(r *Room, actor Actor, action models.Action) {
	r.actionIndex++
	if e.history == nil {
		return
	}
	payload := action.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	rec := models.ActionRecord{
		RoomID:      r.ID,
		RoomKey:     r.Key,
		GameType:    string(r.GameType),
		ActionIndex: r.actionIndex,
		ActorID:     actor.ID,
		ActionType:  action.Type,
		Payload:     payload,
		Timestamp:   time.Now().UnixMilli(),
	}
	go func(rec models.ActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), e.persistTimeout)
		defer cancel()
		if err := e.history.RecordAction(ctx, rec); err != nil {
			e.logger.WithFields(logrus.Fields{"room": rec.RoomID, "index": rec.ActionIndex}).WithError(err).Warn("failed to record action")
		}
	}(rec)
}

func (e *Engine) recordWinners(roomID int64, gameID string, names []string) {
	if e.leaderboard == nil || len(names) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.persistTimeout)
		defer cancel()
		if err := e.leaderboard.RecordWinners(ctx, gameID, names); err != nil {
			e.logger.WithFields(logrus.Fields{"room": roomID, "game": gameID}).WithError(err).Warn("failed to record winners")
		}
	}()
}

// Snapshot returns the caller's own view of a room.
func (e *Engine) Snapshot(roomID int64, sessionID string) (Snapshot, error) {
	r, err := e.store.Get(roomID)
	if err != nil {
		return Snapshot{}, err
	}
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.closed {
		return Snapshot{}, ErrRoomNotFound
	}
	if !r.IsMemberUnsafe(sessionID) {
		return Snapshot{}, ErrNotAParticipant
	}
	return Project(r, sessionID, sessionID == r.Host.ID), nil
}

// Leaderboard reads the persisted winners of a game type.
func (e *Engine) Leaderboard(ctx context.Context, gameType GameType, limit int) ([]Ranking, error) {
	if _, ok := roomDefaults[gameType]; !ok {
		return nil, Errorf(ErrUnknownGameType, "unknown game type %q", gameType)
	}
	if e.leaderboard == nil {
		return []Ranking{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return e.leaderboard.GetLeaderboard(ctx, string(gameType), limit)
}

// RoomSummary is the public listing entry of a room.
type RoomSummary struct {
	ID         int64    `json:"id"`
	GameType   GameType `json:"gameType"`
	Status     Status   `json:"status"`
	HostName   string   `json:"hostName"`
	Players    int      `json:"players"`
	MaxPlayers int      `json:"maxPlayers"`
}

// ListRooms summarizes every open room, ordered by id.
func (e *Engine) ListRooms() []RoomSummary {
	rooms := e.store.List()
	out := make([]RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		r.Mu.Lock()
		if !r.closed {
			out = append(out, RoomSummary{
				ID:         r.ID,
				GameType:   r.GameType,
				Status:     r.Status,
				HostName:   r.Host.Name,
				Players:    len(r.Players),
				MaxPlayers: r.Config.MaxPlayers,
			})
		}
		r.Mu.Unlock()
	}
	return out
}

// Shutdown stops every round timer.
func (e *Engine) Shutdown() {
	for _, r := range e.store.List() {
		r.Mu.Lock()
		e.stopTimerUnsafe(r)
		r.Mu.Unlock()
	}
}
