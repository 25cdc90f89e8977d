package jamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/partyroom/internal/game"
	"github.com/jason-s-yu/partyroom/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dictFunc func(ctx context.Context, word string) (bool, error)

func (f dictFunc) Lookup(ctx context.Context, word string) (bool, error) { return f(ctx, word) }

func wordSet(words ...string) Dictionary {
	set := map[string]bool{}
	for _, w := range words {
		set[w] = true
	}
	return dictFunc(func(_ context.Context, w string) (bool, error) { return set[w], nil })
}

func setupJamoRoom(t *testing.T, dict Dictionary, players int, cfg game.RoomConfig, opts ...game.Option) (*game.Engine, *game.Room) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	opts = append([]game.Option{game.WithLogger(logger)}, opts...)
	e := game.NewEngine(opts...)
	e.Register(game.GameJamo, func(cfg game.RoomConfig) (game.Machine, error) {
		return New(dict, rand.New(rand.NewSource(3))), nil
	})
	cfg.GameType = game.GameJamo
	r, err := e.CreateRoom(models.Host{ID: "host", Name: "Host", Connected: true}, cfg)
	require.NoError(t, err)
	for i := 0; i < players; i++ {
		_, err := e.JoinRoom(r.ID, fmt.Sprintf("p%d", i), fmt.Sprintf("P%d", i), "conn")
		require.NoError(t, err)
	}
	return e, r
}

func do(t *testing.T, e *game.Engine, r *game.Room, session, typ string, payload interface{}) (game.Reply, error) {
	t.Helper()
	return e.Apply(context.Background(), session, models.NewAction(r.ID, typ, "", payload))
}

func submit(t *testing.T, e *game.Engine, r *game.Room, session string, numbers ...int) (game.Reply, error) {
	t.Helper()
	return do(t, e, r, session, ActionSubmitWord, map[string][]int{"numbers": numbers})
}

// arrange moves tiles so that each position holds the wanted jamo, keeping
// the board a permutation.
func arrange(r *game.Room, want map[int]rune) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	b := &r.Game.(*Machine).board
	for pos, jamo := range want {
		for i := range b {
			if b[i] == jamo {
				b[i], b[pos-1] = b[pos-1], b[i]
				break
			}
		}
	}
}

func machineOf(r *game.Room) *Machine { return r.Game.(*Machine) }

// writerTransport encodes every payload on its own goroutine after the send
// returns, the way the websocket write pump does.
type writerTransport struct {
	mu      sync.Mutex
	wg      sync.WaitGroup
	results []interface{}
}

func (w *writerTransport) SendToSession(_ string, _ game.EventType, payload interface{}) {
	w.encodeLater(payload)
}

func (w *writerTransport) BroadcastToRoom(_ int64, event game.EventType, payload interface{}) {
	if event == game.EventRoundResult {
		w.mu.Lock()
		w.results = append(w.results, payload)
		w.mu.Unlock()
	}
	w.encodeLater(payload)
}

func (w *writerTransport) JoinRoom(int64, string)  {}
func (w *writerTransport) LeaveRoom(int64, string) {}

func (w *writerTransport) encodeLater(payload interface{}) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		_, _ = json.Marshal(payload)
	}()
}

func TestCompose(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ㅎㅏㄴㅡㄹ", "하늘"},
		{"ㄱㅏ", "가"},
		{"ㅂㅗㅏ", "봐"},
		{"ㅇㅗㅏㅣ", "왜"},
		{"ㄷㅏㄹㄱ", "닭"},
		{"ㄱㅏㅂㅅ", "값"},
		{"ㄴㅏㄹㄱㅣ", "날기"},
		{"ㅅㅜㅓㅣ", "쉐"},
	}
	for _, c := range cases {
		got, err := Compose([]rune(c.in))
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}

	_, err := Compose([]rune("ㅏㄱ"))
	assert.ErrorIs(t, err, errNoInitial)
	_, err = Compose([]rune("ㄱ"))
	assert.ErrorIs(t, err, errNoVowel)
	_, err = Compose([]rune("ㄱㅏㄴㄷ"))
	assert.ErrorIs(t, err, errNoVowel)
	_, err = Compose(nil)
	assert.ErrorIs(t, err, errEmpty)
}

func TestBoardIsPermutationOfBasicJamo(t *testing.T) {
	b := NewBoard(rand.New(rand.NewSource(11)))
	assert.ElementsMatch(t, BasicJamo, b[:])
	assert.Len(t, BasicJamo, BoardSize)

	_, err := b.Tiles([]int{0})
	assert.ErrorIs(t, err, game.ErrInvalidTarget)
	_, err = b.Tiles([]int{25})
	assert.ErrorIs(t, err, game.ErrInvalidTarget)
	_, err = b.Tiles([]int{4, 4})
	assert.ErrorIs(t, err, game.ErrInvalidPayload)
	tiles, err := b.Tiles([]int{24, 1})
	require.NoError(t, err)
	assert.Equal(t, []rune{b[23], b[0]}, tiles)
}

func TestSubmitWordScoresAndRejectsReuse(t *testing.T) {
	e, r := setupJamoRoom(t, wordSet("하늘"), 2, game.RoomConfig{})
	_, err := do(t, e, r, "host", game.ActionStartRound, map[string]int{"duration": 60})
	require.NoError(t, err)
	arrange(r, map[int]rune{1: 'ㅎ', 3: 'ㅏ', 11: 'ㄴ', 7: 'ㅡ', 19: 'ㄹ'})

	reply, err := submit(t, e, r, "p0", 1, 3, 11, 7, 19)
	require.NoError(t, err)
	assert.Equal(t, true, reply["accepted"])
	assert.Equal(t, "하늘", reply["word"])
	assert.Equal(t, 41, reply["points"])

	r.Mu.Lock()
	m := machineOf(r)
	assert.Equal(t, 41, m.Score("p0"))
	successes := 0
	for _, entry := range m.log {
		if entry.Kind == "word_accepted" {
			successes++
			assert.Empty(t, entry.Owner)
		}
	}
	assert.Equal(t, 1, successes)
	r.Mu.Unlock()

	_, err = submit(t, e, r, "p0", 1, 3, 11, 7, 19)
	assert.ErrorIs(t, err, game.ErrInvalidTarget)
	_, err = submit(t, e, r, "p1", 1, 3, 11, 7, 19)
	assert.ErrorIs(t, err, game.ErrInvalidTarget)

	r.Mu.Lock()
	assert.Equal(t, 41, m.Score("p0"))
	assert.Equal(t, 0, m.Score("p1"))
	r.Mu.Unlock()
}

func TestRejectedWordIsPrivate(t *testing.T) {
	e, r := setupJamoRoom(t, wordSet(), 2, game.RoomConfig{})
	_, err := do(t, e, r, "host", game.ActionStartRound, nil)
	require.NoError(t, err)
	arrange(r, map[int]rune{1: 'ㄱ', 2: 'ㅏ'})

	reply, err := submit(t, e, r, "p0", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, false, reply["accepted"])

	r.Mu.Lock()
	defer r.Mu.Unlock()
	m := machineOf(r)
	assert.Equal(t, 0, m.Score("p0"))
	assert.Empty(t, m.used)

	own := m.Project(r, game.Viewer{ID: "p0"}).(View)
	other := m.Project(r, game.Viewer{ID: "p1"}).(View)
	assert.Len(t, own.Log, len(other.Log)+1)
	last := own.Log[len(own.Log)-1]
	assert.Equal(t, "word_rejected", last.Kind)
	assert.Equal(t, "p0", last.Owner)
	for _, entry := range other.Log {
		assert.NotEqual(t, "word_rejected", entry.Kind)
	}
}

func TestDictionaryFailureCountsAsNotFound(t *testing.T) {
	failing := dictFunc(func(context.Context, string) (bool, error) { return true, errors.New("upstream down") })
	e, r := setupJamoRoom(t, failing, 1, game.RoomConfig{})
	_, err := do(t, e, r, "host", game.ActionStartRound, nil)
	require.NoError(t, err)
	arrange(r, map[int]rune{1: 'ㄱ', 2: 'ㅏ'})

	reply, err := submit(t, e, r, "p0", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, false, reply["accepted"])

	slow := dictFunc(func(ctx context.Context, _ string) (bool, error) {
		<-ctx.Done()
		return true, ctx.Err()
	})
	e, r = setupJamoRoom(t, slow, 2, game.RoomConfig{}, game.WithAsyncTimeout(20*time.Millisecond))
	_, err = do(t, e, r, "host", game.ActionStartRound, nil)
	require.NoError(t, err)
	arrange(r, map[int]rune{1: 'ㄱ', 2: 'ㅏ', 3: 'ㄴ', 4: 'ㅗ'})

	done := make(chan game.Reply)
	go func() {
		reply, _ := submit(t, e, r, "p0", 1, 2)
		done <- reply
	}()
	// The pending lookup must not hold the room.
	_, err = submit(t, e, r, "p1", 3, 4)
	require.NoError(t, err)

	select {
	case reply := <-done:
		assert.Equal(t, false, reply["accepted"])
	case <-time.After(2 * time.Second):
		t.Fatal("lookup did not time out")
	}
}

func TestWordCapCountsAcceptedWords(t *testing.T) {
	all := dictFunc(func(context.Context, string) (bool, error) { return true, nil })
	e, r := setupJamoRoom(t, all, 1, game.RoomConfig{WordCap: 2})
	_, err := do(t, e, r, "host", game.ActionStartRound, nil)
	require.NoError(t, err)
	arrange(r, map[int]rune{1: 'ㄱ', 2: 'ㅏ', 3: 'ㄴ', 4: 'ㅗ', 5: 'ㄷ', 6: 'ㅣ'})

	_, err = submit(t, e, r, "p0", 1, 2)
	require.NoError(t, err)
	_, err = submit(t, e, r, "p0", 3, 4)
	require.NoError(t, err)
	_, err = submit(t, e, r, "p0", 5, 6)
	assert.ErrorIs(t, err, game.ErrNoUsesRemaining)

	r.Mu.Lock()
	defer r.Mu.Unlock()
	assert.Equal(t, 1+2+3+4, machineOf(r).Score("p0"))
	view := machineOf(r).Project(r, game.Viewer{ID: "p0"}).(View)
	assert.Equal(t, 0, view.WordsLeft)
	assert.Len(t, view.Words, 2)
}

func TestMalformedSubmissions(t *testing.T) {
	e, r := setupJamoRoom(t, wordSet(), 1, game.RoomConfig{})
	_, err := submit(t, e, r, "p0", 1, 2)
	assert.ErrorIs(t, err, game.ErrWrongPhase)

	_, err = do(t, e, r, "host", game.ActionStartRound, nil)
	require.NoError(t, err)
	arrange(r, map[int]rune{1: 'ㅏ', 2: 'ㄱ'})

	_, err = submit(t, e, r, "p0", 1, 2)
	assert.ErrorIs(t, err, game.ErrInvalidPayload)
	_, err = submit(t, e, r, "p0")
	assert.ErrorIs(t, err, game.ErrInvalidPayload)
	_, err = submit(t, e, r, "host", 2, 1)
	assert.ErrorIs(t, err, game.ErrNotAParticipant)
}

func TestRoundsProgressToEnd(t *testing.T) {
	e, r := setupJamoRoom(t, wordSet("가"), 2, game.RoomConfig{TotalRounds: 2})

	_, err := do(t, e, r, "host", game.ActionStartRound, nil)
	require.NoError(t, err)
	arrange(r, map[int]rune{1: 'ㄱ', 2: 'ㅏ'})
	_, err = submit(t, e, r, "p1", 1, 2)
	require.NoError(t, err)
	_, err = do(t, e, r, "host", game.ActionForceEnd, nil)
	require.NoError(t, err)

	r.Mu.Lock()
	assert.Equal(t, PhaseRoundEnd, machineOf(r).Phase())
	assert.Equal(t, game.StatusInProgress, r.Status)
	r.Mu.Unlock()

	_, err = do(t, e, r, "host", game.ActionStartRound, nil)
	require.NoError(t, err)
	arrange(r, map[int]rune{5: 'ㄱ', 9: 'ㅏ'})
	// Words reset with the round.
	reply, err := submit(t, e, r, "p0", 5, 9)
	require.NoError(t, err)
	assert.Equal(t, true, reply["accepted"])

	_, err = do(t, e, r, "host", game.ActionForceEnd, nil)
	require.NoError(t, err)

	r.Mu.Lock()
	defer r.Mu.Unlock()
	m := machineOf(r)
	assert.Equal(t, PhaseEnded, m.Phase())
	assert.Equal(t, game.StatusPending, r.Status)
	assert.Equal(t, 3, m.Score("p1"))
	assert.Equal(t, 14, m.Score("p0"))
}

func TestTimerEndsRound(t *testing.T) {
	e, r := setupJamoRoom(t, wordSet(), 1, game.RoomConfig{}, game.WithSecond(2*time.Millisecond))
	_, err := do(t, e, r, "host", game.ActionStartRound, map[string]int{"duration": 3})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		r.Mu.Lock()
		defer r.Mu.Unlock()
		return machineOf(r).Phase() == PhaseRoundEnd
	}, 2*time.Second, 2*time.Millisecond)

	r.Mu.Lock()
	defer r.Mu.Unlock()
	view := machineOf(r).Project(r, game.Viewer{ID: "p0"}).(View)
	assert.Len(t, view.Board, BoardSize)
}

func TestRoundSummaryOwnsItsData(t *testing.T) {
	tr := &writerTransport{}
	e, r := setupJamoRoom(t, wordSet("가"), 1, game.RoomConfig{}, game.WithTransport(tr))

	_, err := do(t, e, r, "host", game.ActionStartRound, nil)
	require.NoError(t, err)
	arrange(r, map[int]rune{1: 'ㄱ', 2: 'ㅏ'})
	_, err = submit(t, e, r, "p0", 1, 2)
	require.NoError(t, err)
	_, err = do(t, e, r, "host", game.ActionForceEnd, nil)
	require.NoError(t, err)

	// The next round mutates the live scores while the summary may still be
	// waiting to be written.
	_, err = do(t, e, r, "host", game.ActionStartRound, nil)
	require.NoError(t, err)
	arrange(r, map[int]rune{1: 'ㄱ', 2: 'ㅏ'})
	_, err = submit(t, e, r, "p0", 1, 2)
	require.NoError(t, err)
	tr.wg.Wait()

	tr.mu.Lock()
	require.Len(t, tr.results, 1)
	raw, err := json.Marshal(tr.results[0])
	tr.mu.Unlock()
	require.NoError(t, err)

	var summary RoundSummary
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.Equal(t, 1, summary.Round)
	assert.Equal(t, map[string]int{"p0": 3}, summary.Scores)
	require.Len(t, summary.Words, 1)
	assert.Equal(t, "가", summary.Words[0].Word)

	r.Mu.Lock()
	defer r.Mu.Unlock()
	assert.Equal(t, 6, machineOf(r).Score("p0"))
}

func TestWordCapFollowsSettings(t *testing.T) {
	all := dictFunc(func(context.Context, string) (bool, error) { return true, nil })
	e, r := setupJamoRoom(t, all, 1, game.RoomConfig{})

	_, err := do(t, e, r, "host", game.ActionUpdateSettings, map[string]int{"wordCap": 1})
	require.NoError(t, err)
	_, err = do(t, e, r, "host", game.ActionStartRound, nil)
	require.NoError(t, err)
	arrange(r, map[int]rune{1: 'ㄱ', 2: 'ㅏ', 3: 'ㄴ', 4: 'ㅗ'})

	r.Mu.Lock()
	view := machineOf(r).Project(r, game.Viewer{ID: "p0"}).(View)
	r.Mu.Unlock()
	assert.Equal(t, 1, view.WordCap)
	assert.Equal(t, 1, view.WordsLeft)

	_, err = submit(t, e, r, "p0", 1, 2)
	require.NoError(t, err)
	_, err = submit(t, e, r, "p0", 3, 4)
	assert.ErrorIs(t, err, game.ErrNoUsesRemaining)

	r.Mu.Lock()
	defer r.Mu.Unlock()
	assert.Equal(t, 3, machineOf(r).Score("p0"))
}

func TestLookupSpanningResetIsDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	slow := dictFunc(func(context.Context, string) (bool, error) {
		once.Do(func() { close(started) })
		<-release
		return true, nil
	})
	e, r := setupJamoRoom(t, slow, 1, game.RoomConfig{})
	_, err := do(t, e, r, "host", game.ActionStartRound, nil)
	require.NoError(t, err)
	arrange(r, map[int]rune{1: 'ㄱ', 2: 'ㅏ'})

	errs := make(chan error, 1)
	go func() {
		_, err := submit(t, e, r, "p0", 1, 2)
		errs <- err
	}()
	<-started

	// Same round number, fresh board.
	_, err = do(t, e, r, "host", game.ActionReset, nil)
	require.NoError(t, err)
	_, err = do(t, e, r, "host", game.ActionStartRound, nil)
	require.NoError(t, err)
	close(release)

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, game.ErrWrongPhase)
	case <-time.After(2 * time.Second):
		t.Fatal("submission never returned")
	}

	r.Mu.Lock()
	defer r.Mu.Unlock()
	m := machineOf(r)
	assert.Equal(t, 1, m.round)
	assert.Equal(t, 0, m.Score("p0"))
	assert.Empty(t, m.words)
}
