// internal/game/game_test.go
package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jason-s-yu/partyroom/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu          sync.Mutex
	roomEvents  map[int64][]sentEvent
	sessEvents  map[string][]sentEvent
	roomMembers map[int64]map[string]bool
}

type sentEvent struct {
	Type    EventType
	Payload interface{}
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{
		roomEvents:  make(map[int64][]sentEvent),
		sessEvents:  make(map[string][]sentEvent),
		roomMembers: make(map[int64]map[string]bool),
	}
}

func (mb *mockBroadcaster) SendToSession(sessionID string, event EventType, payload interface{}) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.sessEvents[sessionID] = append(mb.sessEvents[sessionID], sentEvent{event, payload})
}

func (mb *mockBroadcaster) BroadcastToRoom(roomID int64, event EventType, payload interface{}) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.roomEvents[roomID] = append(mb.roomEvents[roomID], sentEvent{event, payload})
}

func (mb *mockBroadcaster) JoinRoom(roomID int64, sessionID string) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.roomMembers[roomID] == nil {
		mb.roomMembers[roomID] = make(map[string]bool)
	}
	mb.roomMembers[roomID][sessionID] = true
}

func (mb *mockBroadcaster) LeaveRoom(roomID int64, sessionID string) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	delete(mb.roomMembers[roomID], sessionID)
}

func (mb *mockBroadcaster) countRoom(roomID int64, event EventType) int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	n := 0
	for _, ev := range mb.roomEvents[roomID] {
		if ev.Type == event {
			n++
		}
	}
	return n
}

func (mb *mockBroadcaster) countSession(sessionID string, event EventType) int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	n := 0
	for _, ev := range mb.sessEvents[sessionID] {
		if ev.Type == event {
			n++
		}
	}
	return n
}

func (mb *mockBroadcaster) lastSnapshot(sessionID string) *Snapshot {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	events := mb.sessEvents[sessionID]
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == EventRoomState {
			snap := events[i].Payload.(Snapshot)
			return &snap
		}
	}
	return nil
}

// counterMachine is a minimal game: players tap during a timed round.
type counterMachine struct {
	phase      Phase
	taps       map[string]int
	forceEnds  int
	failForce  bool
	panicForce bool
}

const (
	phaseIdle  Phase = "idle"
	phaseRound Phase = "round"
	phaseDone  Phase = "done"
)

func newCounterMachine(RoomConfig) (Machine, error) {
	return &counterMachine{phase: phaseIdle, taps: map[string]int{}}, nil
}

func (m *counterMachine) Type() GameType { return GameHorse }
func (m *counterMachine) Phase() Phase   { return m.phase }
func (m *counterMachine) Running() bool  { return m.phase == phaseRound }

func (m *counterMachine) Actions() map[string]ActionSpec {
	return map[string]ActionSpec{
		ActionStartRound: {Phases: []Phase{phaseIdle, phaseDone}, HostOnly: true},
		ActionForceEnd:   {Phases: []Phase{phaseRound}, HostOnly: true},
		ActionReset:      {Phases: []Phase{phaseIdle, phaseRound, phaseDone}, HostOnly: true},
		"tap":            {Phases: []Phase{phaseRound}, PlayerOnly: true},
		"judge":          {Phases: []Phase{phaseRound}, GameMasterOnly: true},
	}
}

func (m *counterMachine) Handle(r *Room, actor Actor, action models.Action) (Outcome, error) {
	switch action.Type {
	case "tap":
		m.taps[actor.ID]++
		return Outcome{Reply: Reply{"taps": m.taps[actor.ID]}}, nil
	case "judge":
		return Outcome{Reply: Reply{"judged": true}}, nil
	}
	return Outcome{}, ErrUnknownAction
}

func (m *counterMachine) StartRound(r *Room, seconds int) (Outcome, error) {
	from := m.phase
	m.phase = phaseRound
	return Outcome{Events: []Event{PhaseChangeEvent(from, m.phase)}, Timer: StartTimer(seconds)}, nil
}

func (m *counterMachine) ForceEnd(r *Room) (Outcome, error) {
	if m.panicForce {
		panic("corrupt state")
	}
	if m.failForce {
		return Outcome{}, errors.New("missing game data")
	}
	m.forceEnds++
	m.phase = phaseDone
	return Outcome{
		Events:   []Event{PhaseChangeEvent(phaseRound, phaseDone)},
		GameOver: &GameOver{Winners: r.NamesUnsafe(TopScorers(r.PlayerIDsUnsafe(), m.taps))},
	}, nil
}

func (m *counterMachine) Reset(r *Room) Outcome {
	m.phase = phaseIdle
	m.taps = map[string]int{}
	return Outcome{}
}

func (m *counterMachine) Project(r *Room, v Viewer) interface{} {
	if v.IsHost {
		return m.taps
	}
	return map[string]int{v.ID: m.taps[v.ID]}
}

type fakeLeaderboard struct {
	mu      sync.Mutex
	winners map[string][]string
}

func (f *fakeLeaderboard) RecordWinners(_ context.Context, gameID string, names []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.winners[gameID] = append(f.winners[gameID], names...)
	return nil
}

func (f *fakeLeaderboard) GetLeaderboard(_ context.Context, gameID string, limit int) ([]Ranking, error) {
	return nil, nil
}

func (f *fakeLeaderboard) recorded(gameID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.winners[gameID]...)
}

func setupTestEngine(t *testing.T, numPlayers int) (*Engine, *Room, *mockBroadcaster) {
	t.Helper()
	mb := newMockBroadcaster()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	e := NewEngine(WithTransport(mb), WithLogger(logger), WithSecond(5*time.Millisecond))
	e.Register(GameHorse, newCounterMachine)

	r, err := e.CreateRoom(models.Host{ID: "host", Name: "Host", Connected: true, Handle: "h"}, RoomConfig{GameType: GameHorse, MaxPlayers: numPlayers})
	require.NoError(t, err)
	for i := 0; i < numPlayers; i++ {
		_, err := e.JoinRoom(r.ID, fmt.Sprintf("p%d", i), fmt.Sprintf("Player %d", i), fmt.Sprintf("c%d", i))
		require.NoError(t, err)
	}
	return e, r, mb
}

func apply(t *testing.T, e *Engine, r *Room, session, typ, requestID string, payload interface{}) (Reply, error) {
	t.Helper()
	return e.Apply(context.Background(), session, models.NewAction(r.ID, typ, requestID, payload))
}

func TestCreateRoomAssignsIncreasingIDs(t *testing.T) {
	e, r1, _ := setupTestEngine(t, 2)
	r2, err := e.CreateRoom(models.Host{ID: "other-host", Name: "Other"}, RoomConfig{GameType: GameHorse})
	require.NoError(t, err)
	assert.Greater(t, r2.ID, r1.ID)
	assert.Equal(t, 2, e.Store().Len())
}

func TestSessionBelongsToOneRoom(t *testing.T) {
	e, r1, _ := setupTestEngine(t, 2)

	_, err := e.CreateRoom(models.Host{ID: "p0", Name: "Sneaky"}, RoomConfig{GameType: GameHorse})
	assert.ErrorIs(t, err, ErrAlreadyInAnotherRoom)

	r2, err := e.CreateRoom(models.Host{ID: "host2", Name: "Host 2"}, RoomConfig{GameType: GameHorse})
	require.NoError(t, err)
	_, err = e.JoinRoom(r2.ID, "p1", "Player 1", "c9")
	assert.ErrorIs(t, err, ErrAlreadyInAnotherRoom)

	require.NoError(t, e.LeaveRoom(r1.ID, "p1"))
	_, err = e.JoinRoom(r2.ID, "p1", "Player 1", "c9")
	assert.NoError(t, err)
}

func TestJoinFullRoom(t *testing.T) {
	e, r, _ := setupTestEngine(t, 2)
	_, err := e.JoinRoom(r.ID, "late", "Late", "c")
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestUnknownGameType(t *testing.T) {
	e := NewEngine()
	_, err := e.CreateRoom(models.Host{ID: "h"}, RoomConfig{GameType: "chess"})
	assert.ErrorIs(t, err, ErrUnknownGameType)
	assert.Equal(t, "unknown_game_type", ErrorCode(err))
}

func TestIdempotentReplay(t *testing.T) {
	e, r, _ := setupTestEngine(t, 2)
	_, err := apply(t, e, r, "host", ActionStartRound, "start-1", map[string]int{"duration": 60})
	require.NoError(t, err)

	first, err := apply(t, e, r, "p0", "tap", "tap-1", nil)
	require.NoError(t, err)
	second, err := apply(t, e, r, "p0", "tap", "tap-1", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, first["taps"])
	assert.Equal(t, true, second["duplicate"])
	assert.Equal(t, 1, second["taps"])

	r.Mu.Lock()
	defer r.Mu.Unlock()
	assert.Equal(t, 1, r.Game.(*counterMachine).taps["p0"])
}

func TestRequestsWithoutIDAlwaysApply(t *testing.T) {
	e, r, _ := setupTestEngine(t, 1)
	_, err := apply(t, e, r, "host", ActionStartRound, "", map[string]int{"duration": 60})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := apply(t, e, r, "p0", "tap", "", nil)
		require.NoError(t, err)
	}
	r.Mu.Lock()
	defer r.Mu.Unlock()
	assert.Equal(t, 3, r.Game.(*counterMachine).taps["p0"])
}

func TestPhaseGating(t *testing.T) {
	e, r, _ := setupTestEngine(t, 2)

	_, err := apply(t, e, r, "p0", "tap", "tap-early", nil)
	assert.ErrorIs(t, err, ErrWrongPhase)

	_, err = apply(t, e, r, "host", ActionForceEnd, "", nil)
	assert.ErrorIs(t, err, ErrWrongPhase)

	r.Mu.Lock()
	assert.Equal(t, phaseIdle, r.Game.Phase())
	assert.Empty(t, r.Game.(*counterMachine).taps)
	assert.Equal(t, 0, r.guard.Len())
	r.Mu.Unlock()

	// A rejected request id stays usable.
	_, err = apply(t, e, r, "host", ActionStartRound, "", map[string]int{"duration": 60})
	require.NoError(t, err)
	reply, err := apply(t, e, r, "p0", "tap", "tap-early", nil)
	require.NoError(t, err)
	assert.Nil(t, reply["duplicate"])
}

func TestPrivilegeChecks(t *testing.T) {
	e, r, _ := setupTestEngine(t, 2)

	_, err := apply(t, e, r, "p0", ActionStartRound, "", nil)
	assert.ErrorIs(t, err, ErrNotHost)

	_, err = apply(t, e, r, "stranger", ActionStartRound, "", nil)
	assert.ErrorIs(t, err, ErrNotAParticipant)

	_, err = apply(t, e, r, "host", ActionStartRound, "", map[string]int{"duration": 60})
	require.NoError(t, err)

	_, err = apply(t, e, r, "host", "tap", "", nil)
	assert.ErrorIs(t, err, ErrNotAParticipant)

	_, err = apply(t, e, r, "p0", "judge", "", nil)
	assert.ErrorIs(t, err, ErrNotGameMaster)

	reply, err := apply(t, e, r, "host", "judge", "", nil)
	require.NoError(t, err)
	assert.Equal(t, true, reply["judged"])

	_, err = apply(t, e, r, "host", "fly", "", nil)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestGameMasterActionsDisabledForSeatedHost(t *testing.T) {
	e := NewEngine()
	e.Register(GameHorse, newCounterMachine)
	r, err := e.CreateRoom(models.Host{ID: "host", Name: "Host", Connected: true}, RoomConfig{GameType: GameHorse, HostPlays: true})
	require.NoError(t, err)
	_, err = e.Apply(context.Background(), "host", models.NewAction(r.ID, ActionStartRound, "", map[string]int{"duration": 60}))
	require.NoError(t, err)
	_, err = e.Apply(context.Background(), "host", models.NewAction(r.ID, "judge", "", nil))
	assert.ErrorIs(t, err, ErrNotGameMaster)
	_, err = e.Apply(context.Background(), "host", models.NewAction(r.ID, "tap", "", nil))
	assert.NoError(t, err)
}

func TestTimerExpiryForcesEnd(t *testing.T) {
	e, r, mb := setupTestEngine(t, 2)
	lb := &fakeLeaderboard{winners: map[string][]string{}}
	e.leaderboard = lb

	_, err := apply(t, e, r, "host", ActionStartRound, "", map[string]int{"duration": 3})
	require.NoError(t, err)
	_, err = apply(t, e, r, "p1", "tap", "", nil)
	require.NoError(t, err)

	r.Mu.Lock()
	assert.True(t, r.TimedUnsafe())
	assert.Equal(t, StatusInProgress, r.Status)
	r.Mu.Unlock()

	require.Eventually(t, func() bool {
		r.Mu.Lock()
		defer r.Mu.Unlock()
		return r.Game.Phase() == phaseDone
	}, time.Second, 5*time.Millisecond)

	r.Mu.Lock()
	assert.False(t, r.TimedUnsafe())
	assert.Equal(t, 0, r.Clock.TimeLeft)
	assert.Nil(t, r.Clock.EndsAt)
	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, 1, r.Game.(*counterMachine).forceEnds)
	r.Mu.Unlock()

	assert.GreaterOrEqual(t, mb.countRoom(r.ID, EventPhaseTick), 1)
	assert.Equal(t, 1, mb.countRoom(r.ID, EventGameOver))
	require.Eventually(t, func() bool { return len(lb.recorded(string(GameHorse))) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Player 1"}, lb.recorded(string(GameHorse)))
}

func TestHostForceEndCancelsTimer(t *testing.T) {
	e, r, mb := setupTestEngine(t, 1)
	_, err := apply(t, e, r, "host", ActionStartRound, "", map[string]int{"duration": 50})
	require.NoError(t, err)
	_, err = apply(t, e, r, "host", ActionForceEnd, "end-1", nil)
	require.NoError(t, err)

	r.Mu.Lock()
	assert.False(t, r.TimedUnsafe())
	assert.Equal(t, phaseDone, r.Game.Phase())
	r.Mu.Unlock()

	time.Sleep(30 * time.Millisecond)
	r.Mu.Lock()
	assert.Equal(t, 1, r.Game.(*counterMachine).forceEnds)
	r.Mu.Unlock()
	assert.Equal(t, 1, mb.countRoom(r.ID, EventGameOver))
}

func TestRestartReplacesTimer(t *testing.T) {
	e, r, _ := setupTestEngine(t, 1)
	_, err := apply(t, e, r, "host", ActionStartRound, "", map[string]int{"duration": 50})
	require.NoError(t, err)

	r.Mu.Lock()
	first := r.timer
	e.startTimerUnsafe(r, 60)
	second := r.timer
	r.Mu.Unlock()

	assert.NotSame(t, first, second)
	select {
	case <-first.stop:
	default:
		t.Fatal("previous timer was not stopped")
	}
}

func TestTimerFailureBreaksOnlyThatRoom(t *testing.T) {
	e, r, mb := setupTestEngine(t, 1)
	other, err := e.CreateRoom(models.Host{ID: "host2", Name: "Host 2"}, RoomConfig{GameType: GameHorse})
	require.NoError(t, err)

	r.Mu.Lock()
	r.Game.(*counterMachine).failForce = true
	r.Mu.Unlock()

	_, err = apply(t, e, r, "host", ActionStartRound, "", map[string]int{"duration": 1})
	require.NoError(t, err)
	_, err = e.Apply(context.Background(), "host2", models.NewAction(other.ID, ActionStartRound, "", map[string]int{"duration": 100}))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		r.Mu.Lock()
		defer r.Mu.Unlock()
		return r.broken
	}, time.Second, 5*time.Millisecond)

	_, err = apply(t, e, r, "p0", "tap", "", nil)
	assert.ErrorIs(t, err, ErrRoomBroken)
	assert.Equal(t, 1, mb.countRoom(r.ID, EventRoomError))

	other.Mu.Lock()
	assert.True(t, other.TimedUnsafe())
	assert.False(t, other.broken)
	other.Mu.Unlock()

	require.NoError(t, e.CloseRoom(r.ID, "host"))
}

func TestTimerPanicIsContained(t *testing.T) {
	e, r, _ := setupTestEngine(t, 1)
	r.Mu.Lock()
	r.Game.(*counterMachine).panicForce = true
	r.Mu.Unlock()

	_, err := apply(t, e, r, "host", ActionStartRound, "", map[string]int{"duration": 1})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		r.Mu.Lock()
		defer r.Mu.Unlock()
		return r.broken && !r.TimedUnsafe()
	}, time.Second, 5*time.Millisecond)
}

func TestReconnectPreservesState(t *testing.T) {
	e, r, mb := setupTestEngine(t, 2)
	_, err := apply(t, e, r, "host", ActionStartRound, "", map[string]int{"duration": 60})
	require.NoError(t, err)
	_, err = apply(t, e, r, "p0", "tap", "", nil)
	require.NoError(t, err)
	before, err := e.Snapshot(r.ID, "p0")
	require.NoError(t, err)

	e.Disconnect("p0", "c0")
	r.Mu.Lock()
	assert.False(t, r.PlayerUnsafe("p0").Connected)
	r.Mu.Unlock()

	_, err = e.JoinRoom(r.ID, "p0", "Player 0", "c0-new")
	require.NoError(t, err)

	r.Mu.Lock()
	p := r.PlayerUnsafe("p0")
	assert.True(t, p.Connected)
	assert.Equal(t, "c0-new", p.Handle)
	assert.Equal(t, 0, p.Seat)
	assert.Len(t, r.Players, 2)
	assert.Equal(t, 1, r.Game.(*counterMachine).taps["p0"])
	r.Mu.Unlock()

	// The old connection closing late must not mark the new one offline.
	e.Disconnect("p0", "c0")
	r.Mu.Lock()
	assert.True(t, r.PlayerUnsafe("p0").Connected)
	r.Mu.Unlock()

	snap := mb.lastSnapshot("p0")
	require.NotNil(t, snap)
	assert.Equal(t, map[string]int{"p0": 1}, snap.Game)

	after, err := e.Snapshot(r.ID, "p0")
	require.NoError(t, err)
	if diff := cmp.Diff(before, after, cmpopts.IgnoreFields(Snapshot{}, "Clock")); diff != "" {
		t.Errorf("snapshot changed across reconnect (-before +after):\n%s", diff)
	}
}

func TestSnapshotsAreProjectedPerViewer(t *testing.T) {
	e, r, mb := setupTestEngine(t, 2)
	_, err := apply(t, e, r, "host", ActionStartRound, "", map[string]int{"duration": 60})
	require.NoError(t, err)
	_, err = apply(t, e, r, "p0", "tap", "", nil)
	require.NoError(t, err)

	host := mb.lastSnapshot("host")
	require.NotNil(t, host)
	assert.True(t, host.IsHostView)
	assert.Equal(t, map[string]int{"p0": 1}, host.Game)

	p1 := mb.lastSnapshot("p1")
	require.NotNil(t, p1)
	assert.False(t, p1.IsHostView)
	assert.Equal(t, map[string]int{"p1": 0}, p1.Game)
}

func TestCloseRoomOnlyWhilePending(t *testing.T) {
	e, r, mb := setupTestEngine(t, 2)
	_, err := apply(t, e, r, "host", ActionStartRound, "", map[string]int{"duration": 60})
	require.NoError(t, err)

	assert.ErrorIs(t, e.CloseRoom(r.ID, "p0"), ErrNotHost)
	assert.ErrorIs(t, e.CloseRoom(r.ID, "host"), ErrRoomNotPending)

	_, err = apply(t, e, r, "host", ActionReset, "", nil)
	require.NoError(t, err)
	require.NoError(t, e.CloseRoom(r.ID, "host"))

	assert.Equal(t, 0, e.Store().Len())
	assert.Equal(t, 1, mb.countRoom(r.ID, EventRoomClosed))
	_, ok := e.Store().RoomOf("p0")
	assert.False(t, ok)

	_, err = apply(t, e, r, "p0", "tap", "", nil)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestResetReleasesIdempotencyState(t *testing.T) {
	e, r, _ := setupTestEngine(t, 1)
	_, err := apply(t, e, r, "host", ActionStartRound, "start", map[string]int{"duration": 60})
	require.NoError(t, err)
	_, err = apply(t, e, r, "p0", "tap", "same", nil)
	require.NoError(t, err)

	_, err = apply(t, e, r, "host", ActionReset, "reset-1", nil)
	require.NoError(t, err)

	r.Mu.Lock()
	assert.False(t, r.TimedUnsafe())
	assert.Equal(t, 1, r.guard.Len())
	r.Mu.Unlock()

	reply, err := apply(t, e, r, "host", ActionReset, "reset-1", nil)
	require.NoError(t, err)
	assert.Equal(t, true, reply["duplicate"])

	_, err = apply(t, e, r, "host", ActionStartRound, "start", map[string]int{"duration": 60})
	require.NoError(t, err)
	reply, err = apply(t, e, r, "p0", "tap", "same", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, reply["taps"])
}

func TestUpdateSettings(t *testing.T) {
	e, r, _ := setupTestEngine(t, 2)

	_, err := apply(t, e, r, "p0", ActionUpdateSettings, "", map[string]interface{}{"totalRounds": 3})
	assert.ErrorIs(t, err, ErrNotHost)

	_, err = apply(t, e, r, "host", ActionUpdateSettings, "", map[string]interface{}{"maxPlayers": 1})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = apply(t, e, r, "host", ActionUpdateSettings, "", map[string]interface{}{"totalRounds": "three"})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = apply(t, e, r, "host", ActionUpdateSettings, "", map[string]interface{}{"totalRounds": 7, "roundSeconds": 20})
	require.NoError(t, err)
	r.Mu.Lock()
	assert.Equal(t, 7, r.Config.TotalRounds)
	assert.Equal(t, 20, r.Config.RoundSeconds)
	r.Mu.Unlock()
}

func TestListRooms(t *testing.T) {
	e, r, _ := setupTestEngine(t, 2)
	rooms := e.ListRooms()
	require.Len(t, rooms, 1)
	assert.Equal(t, RoomSummary{ID: r.ID, GameType: GameHorse, Status: StatusPending, HostName: "Host", Players: 2, MaxPlayers: 2}, rooms[0])
}

func TestConcurrentActionsAreSerialized(t *testing.T) {
	e, r, _ := setupTestEngine(t, 4)
	_, err := apply(t, e, r, "host", ActionStartRound, "", map[string]int{"duration": 60})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		for j := 0; j < 25; j++ {
			wg.Add(1)
			go func(player, n int) {
				defer wg.Done()
				// Every request is sent twice; only one of each pair applies.
				id := fmt.Sprintf("p%d-%d", player, n)
				_, _ = e.Apply(context.Background(), fmt.Sprintf("p%d", player), models.NewAction(r.ID, "tap", id, nil))
				_, _ = e.Apply(context.Background(), fmt.Sprintf("p%d", player), models.NewAction(r.ID, "tap", id, nil))
			}(i, j)
		}
	}
	wg.Wait()

	r.Mu.Lock()
	defer r.Mu.Unlock()
	for i := 0; i < 4; i++ {
		assert.Equal(t, 25, r.Game.(*counterMachine).taps[fmt.Sprintf("p%d", i)])
	}
}

func TestRebindWhileOnlineOnlyRefreshesThatSession(t *testing.T) {
	e, r, mb := setupTestEngine(t, 2)
	p0Before := mb.countSession("p0", EventRoomState)
	p1Before := mb.countSession("p1", EventRoomState)

	require.NoError(t, e.Rebind(r.ID, "p0", "c0-b"))
	assert.Equal(t, p0Before+1, mb.countSession("p0", EventRoomState))
	assert.Equal(t, p1Before, mb.countSession("p1", EventRoomState))

	r.Mu.Lock()
	assert.Equal(t, "c0-b", r.PlayerUnsafe("p0").Handle)
	r.Mu.Unlock()

	// Coming back from offline changes everyone's view of p0.
	e.Disconnect("p0", "c0-b")
	p1Offline := mb.countSession("p1", EventRoomState)
	require.NoError(t, e.Rebind(r.ID, "p0", "c0-c"))
	assert.Equal(t, p1Offline+1, mb.countSession("p1", EventRoomState))
	snap := mb.lastSnapshot("p1")
	require.NotNil(t, snap)
	assert.True(t, snap.Players[0].Connected)
}

// animatedMachine streams one frame per timer step.
type animatedMachine struct {
	*counterMachine
	frames int
}

func (m *animatedMachine) Tick(r *Room) []Event {
	m.frames++
	return []Event{RoomEvent("frame", m.frames)}
}

func TestTimerDrivesAnimator(t *testing.T) {
	e, r, mb := setupTestEngine(t, 1)
	r.Mu.Lock()
	r.Game = &animatedMachine{counterMachine: r.Game.(*counterMachine)}
	r.Mu.Unlock()

	_, err := apply(t, e, r, "host", ActionStartRound, "", map[string]int{"duration": 3})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		r.Mu.Lock()
		defer r.Mu.Unlock()
		return r.Game.Phase() == phaseDone
	}, time.Second, 5*time.Millisecond)

	ticks := mb.countRoom(r.ID, EventPhaseTick)
	assert.GreaterOrEqual(t, ticks, 1)
	assert.Equal(t, ticks, mb.countRoom(r.ID, "frame"))

	mb.mu.Lock()
	defer mb.mu.Unlock()
	events := mb.roomEvents[r.ID]
	for i, ev := range events {
		if ev.Type == "frame" {
			require.Greater(t, i, 0)
			assert.Equal(t, EventPhaseTick, events[i-1].Type, "a frame follows its tick")
		}
	}
}
