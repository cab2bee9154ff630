package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"crashengine/config"
	"crashengine/crypto"
	"crashengine/engine"
	"crashengine/game"
	"crashengine/state"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGame struct {
	mu      sync.Mutex
	balance float64
	bets    []PlaceBetRequest
	cashOK  bool
}

func (f *fakeGame) PlaceBet(amount float64, kind game.SideBetKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bets = append(f.bets, PlaceBetRequest{Amount: amount, SideBet: kind})
	return nil
}

func (f *fakeGame) CashOut() (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cashOK {
		return 42, true
	}
	return 0, false
}

func (f *fakeGame) Snapshot() engine.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return engine.Frame{Phase: state.PhaseLobby, Multiplier: 1, Balance: f.balance}
}

func (f *fakeGame) History() []game.HistoryEntry {
	return []game.HistoryEntry{{ID: "seed-1", CrashMultiplier: 1.96}}
}

func (f *fakeGame) Feed() []string           { return []string{"[12:00:00] Preparing new round..."} }
func (f *fakeGame) SideBets() []game.SideBet { return game.DefaultSideBets().Options() }
func (f *fakeGame) Config() config.Game      { return config.Default().Game }

func (f *fakeGame) placed() []PlaceBetRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PlaceBetRequest(nil), f.bets...)
}

type testConn struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, h *Hub) *testConn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testConn{t: t, conn: conn}
}

func (c *testConn) next() Envelope {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env Envelope
	require.NoError(c.t, c.conn.ReadJSON(&env))
	return env
}

// until reads messages until one of type typ arrives.
func (c *testConn) until(typ string) Envelope {
	c.t.Helper()
	for i := 0; i < 50; i++ {
		if env := c.next(); env.Type == typ {
			return env
		}
	}
	c.t.Fatalf("no %q message received", typ)
	return Envelope{}
}

func (c *testConn) send(typ string, data any) {
	c.t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(Envelope{Type: typ, Data: raw}))
}

func startHub(t *testing.T, g Game) *Hub {
	t.Helper()
	h := NewHub(nil)
	h.Attach(g)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

func TestConnectSendsInitialState(t *testing.T) {
	h := startHub(t, &fakeGame{balance: 5000})
	c := dial(t, h)

	assert.Equal(t, "state", c.next().Type)

	env := c.next()
	require.Equal(t, "history", env.Type)
	var hist []game.HistoryEntry
	require.NoError(t, json.Unmarshal(env.Data, &hist))
	require.Len(t, hist, 1)
	assert.Equal(t, 1.96, hist[0].CrashMultiplier)

	assert.Equal(t, "side_bets", c.next().Type)
	assert.Equal(t, "feed_history", c.next().Type)

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestPlaceBetIsClampedToBalance(t *testing.T) {
	g := &fakeGame{balance: 50.7}
	h := startHub(t, g)
	c := dial(t, h)
	c.until("feed_history")

	c.send("place_bet", PlaceBetRequest{Amount: 100, SideBet: game.SideBetUnder2x})
	c.send("place_bet", map[string]any{})

	require.Eventually(t, func() bool { return len(g.placed()) == 2 }, time.Second, 10*time.Millisecond)
	bets := g.placed()
	assert.Equal(t, 50.0, bets[0].Amount)
	assert.Equal(t, game.SideBetUnder2x, bets[0].SideBet)
	assert.Equal(t, 10.0, bets[1].Amount, "empty bet uses the default amount")
}

func TestPlaceBetRejectedWhenBroke(t *testing.T) {
	g := &fakeGame{balance: 0.5}
	h := startHub(t, g)
	c := dial(t, h)
	c.until("feed_history")

	c.send("place_bet", PlaceBetRequest{Amount: 5})
	env := c.until("error")
	assert.Contains(t, string(env.Data), engine.ErrBelowMinimum.Error())
	assert.Empty(t, g.placed())
}

func TestCashOutReplies(t *testing.T) {
	g := &fakeGame{balance: 100}
	h := startHub(t, g)
	c := dial(t, h)
	c.until("feed_history")

	c.send("cash_out", nil)
	assert.Contains(t, string(c.until("error").Data), "nothing to cash out")

	g.mu.Lock()
	g.cashOK = true
	g.mu.Unlock()
	c.send("cash_out", nil)
	env := c.until("cashed_out")
	assert.JSONEq(t, `{"payout":42}`, string(env.Data))
}

func TestBroadcastRespectsSubscriptions(t *testing.T) {
	h := startHub(t, &fakeGame{balance: 100})
	c := dial(t, h)
	c.until("feed_history")
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	c.send("unsubscribe", subscribeRequest{Channel: ChannelFeed})
	// A sync round-trip guarantees the unsubscribe was handled.
	c.send("sync", nil)
	c.until("feed_history")

	h.Feed("[12:00:01] hidden")
	h.Frame(engine.Frame{Phase: state.PhaseRunning, Multiplier: 1.5})

	env := c.next()
	require.Equal(t, "state", env.Type)
	var f engine.Frame
	require.NoError(t, json.Unmarshal(env.Data, &f))
	assert.Equal(t, 1.5, f.Multiplier)
}

func TestRoundEndedAlsoSendsHistory(t *testing.T) {
	h := startHub(t, &fakeGame{balance: 100})
	c := dial(t, h)
	c.until("feed_history")
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	h.RoundEnded(game.RoundResult{Entry: game.HistoryEntry{ID: "seed-1"}})
	assert.Equal(t, "round_ended", c.next().Type)
	assert.Equal(t, "history", c.next().Type)
}

func TestVerifyMessage(t *testing.T) {
	h := startHub(t, &fakeGame{})
	c := dial(t, h)
	c.until("feed_history")

	fd := game.FairnessData{ServerSeed: "revealed", ServerSeedHash: crypto.Commit("revealed"), ClientSeed: "c", Nonce: 4}
	want := game.CalculateCrashPoint(fd.ServerSeed, fd.ClientSeed, fd.Nonce, config.Default().Game.Params())

	c.send("verify", VerifyRequest{FairnessData: fd, CrashPoint: want})
	var v game.Verification
	require.NoError(t, json.Unmarshal(c.until("verification").Data, &v))
	assert.True(t, v.Valid)
	assert.Equal(t, want, v.CrashPoint)

	fd.ServerSeedHash = crypto.Commit("tampered")
	c.send("verify", VerifyRequest{FairnessData: fd})
	require.NoError(t, json.Unmarshal(c.until("verification").Data, &v))
	assert.False(t, v.Valid)
}

func TestUnknownMessage(t *testing.T) {
	h := startHub(t, &fakeGame{})
	c := dial(t, h)
	c.until("feed_history")

	c.send("dance", nil)
	assert.Contains(t, string(c.until("error").Data), "unknown message type")
}
