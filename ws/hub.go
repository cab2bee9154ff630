package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"crashengine/config"
	"crashengine/engine"
	"crashengine/game"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	ChannelRound = "round"
	ChannelFeed  = "feed"

	writeWait = 10 * time.Second
)

// Game is what the hub drives on behalf of connected clients.
type Game interface {
	PlaceBet(amount float64, kind game.SideBetKind) error
	CashOut() (float64, bool)
	Snapshot() engine.Frame
	History() []game.HistoryEntry
	Feed() []string
	SideBets() []game.SideBet
	Config() config.Game
}

// Envelope is every message on the socket, in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type broadcast struct {
	channel string
	data    []byte
}

type PlaceBetRequest struct {
	Amount  float64          `json:"amount"`
	SideBet game.SideBetKind `json:"sideBet"`
}

// VerifyRequest asks the server to recompute a revealed round.
type VerifyRequest struct {
	game.FairnessData
	CrashPoint float64 `json:"crashPoint"`
}

type subscribeRequest struct {
	Channel string `json:"channel"`
}

// Hub fans engine output out to every connected socket and forwards their
// bet and cash-out requests to the game.
type Hub struct {
	game Game
	log  *slog.Logger

	upgrader   websocket.Upgrader
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcast

	mu      sync.RWMutex
	clients map[*Client]bool
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		log: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcast, config.WSSendBuffer),
		clients:    make(map[*Client]bool),
	}
}

// Attach sets the game the hub drives. It must be called before serving.
func (h *Hub) Attach(g Game) {
	h.game = g
}

// Run dispatches registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("🚀 Event hub started")

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				c.close()
			}
			h.mu.Unlock()
			h.log.Info("🛑 Event hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("✅ Client registered", "id", c.ID, "total", total)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("👋 Client unregistered", "id", c.ID, "total", total)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if c.subscribed(msg.channel) {
					c.enqueue(msg.data)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) publish(channel, typ string, data any) {
	raw, err := json.Marshal(outbound{Type: typ, Data: data})
	if err != nil {
		h.log.Error("❌ Failed to marshal message", "type", typ, "error", err)
		return
	}
	select {
	case h.broadcast <- broadcast{channel: channel, data: raw}:
	default:
		h.log.Warn("⚠️  Broadcast buffer full, dropping message", "type", typ)
	}
}

/* =========================
   ENGINE DISPLAY
========================= */

func (h *Hub) Frame(f engine.Frame) {
	h.publish(ChannelRound, "state", f)
}

func (h *Hub) Feed(line string) {
	h.publish(ChannelFeed, "feed", map[string]string{"line": line})
}

func (h *Hub) RoundEnded(res game.RoundResult) {
	h.publish(ChannelRound, "round_ended", res)
	if h.game != nil {
		h.publish(ChannelRound, "history", h.game.History())
	}
}

/* =========================
   CLIENT CONNECTIONS
========================= */

// Client is one connected socket.
type Client struct {
	ID   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	mu   sync.RWMutex
	subs map[string]bool
}

// HandleWS upgrades the request and serves the socket until it closes.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("❌ WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &Client{
		ID:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, config.WSSendBuffer),
		done: make(chan struct{}),
		subs: map[string]bool{ChannelRound: true, ChannelFeed: true},
	}
	h.log.Debug("📥 WebSocket connection", "id", c.ID, "remote", r.RemoteAddr)

	h.register <- c
	c.sendInitialState()

	go c.writePump()
	go c.readPump()
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Client) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs[channel]
}

func (c *Client) enqueue(data []byte) {
	select {
	case <-c.done:
	case c.send <- data:
	default:
		c.hub.log.Warn("⚠️  Client send buffer full, skipping message", "id", c.ID)
	}
}

func (c *Client) reply(typ string, data any) {
	raw, err := json.Marshal(outbound{Type: typ, Data: data})
	if err != nil {
		c.hub.log.Error("❌ Failed to marshal reply", "type", typ, "error", err)
		return
	}
	c.enqueue(raw)
}

func (c *Client) replyError(msg string) {
	c.reply("error", map[string]string{"error": msg})
}

func (c *Client) sendInitialState() {
	g := c.hub.game
	if g == nil {
		return
	}
	c.reply("state", g.Snapshot())
	c.reply("history", g.History())
	c.reply("side_bets", g.SideBets())
	c.reply("feed_history", g.Feed())
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.log.Error("❌ Write error", "id", c.ID, "error", err)
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.done:
		}
		c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Error("❌ Read error", "id", c.ID, "error", err)
			}
			return
		}

		var msg Envelope
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.replyError("invalid message")
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg Envelope) {
	g := c.hub.game
	if g == nil {
		c.replyError("game not ready")
		return
	}

	switch msg.Type {
	case "subscribe", "unsubscribe":
		var req subscribeRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil || req.Channel == "" {
			c.replyError("channel is required")
			return
		}
		c.mu.Lock()
		c.subs[req.Channel] = msg.Type == "subscribe"
		c.mu.Unlock()

	case "place_bet":
		var req PlaceBetRequest
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				c.replyError("invalid bet")
				return
			}
		}
		amount, err := engine.NormaliseBet(g.Config(), g.Snapshot().Balance, req.Amount)
		if err != nil {
			c.replyError(err.Error())
			return
		}
		if err := g.PlaceBet(amount, req.SideBet); err != nil {
			c.replyError(err.Error())
			return
		}
		c.hub.log.Debug("🎯 Bet requested", "id", c.ID, "amount", amount, "sideBet", req.SideBet)

	case "cash_out":
		payout, ok := g.CashOut()
		if !ok {
			c.replyError("nothing to cash out")
			return
		}
		c.reply("cashed_out", map[string]float64{"payout": payout})

	case "verify":
		var req VerifyRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.replyError("invalid verify request")
			return
		}
		c.reply("verification", game.Verify(req.FairnessData, req.CrashPoint, g.Config().Params()))

	case "sync":
		c.sendInitialState()

	default:
		c.hub.log.Warn("⚠️  Unknown message type", "id", c.ID, "type", msg.Type)
		c.replyError("unknown message type")
	}
}
