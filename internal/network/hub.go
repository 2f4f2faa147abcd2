// Package network exposes the session over WebSocket: periodic state
// snapshots out, player actions in, plus the feed replay for newly
// connected clients.
package network

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/botnet-empire/server/internal/crypto"
	"github.com/botnet-empire/server/internal/engine"
	"github.com/botnet-empire/server/internal/events"
	"github.com/botnet-empire/server/internal/platform/logger"
	"github.com/botnet-empire/server/internal/platform/metrics"
	"github.com/botnet-empire/server/internal/platform/tuning"
)

// feedReplaySize is how many recent feed entries a fresh client gets.
const feedReplaySize = 50

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Single-player local server; the origin is the served page itself.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub maintains the set of active clients, broadcasts snapshots and
// feed entries, and routes player actions into the session.
type Hub struct {
	session *engine.Session
	miner   *crypto.Miner
	feed    *events.Feed
	cfg     tuning.Config
	logger  *logger.Logger

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
}

// NewHub wires the WebSocket layer around a session.
func NewHub(session *engine.Session, miner *crypto.Miner, feed *events.Feed, cfg tuning.Config, log *logger.Logger) *Hub {
	return &Hub{
		session:    session,
		miner:      miner,
		feed:       feed,
		cfg:        cfg,
		logger:     log,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the Hub's main loop to handle client connections and
// broadcasts.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket Hub shutting down.")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.Get().RecordWSConnection(1)
			h.logger.Info("WebSocket client connected")
			client.sendReplay(h.feed.Recent(feedReplaySize))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.Get().RecordWSConnection(-1)
				h.logger.Info("WebSocket client disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
					metrics.Get().RecordWSConnection(-1)
				}
			}
			h.mu.Unlock()
		}
	}
}

// StartSnapshotBroadcaster pushes the rendered state to every client on
// a fixed cadence, decoupled from the simulation tick.
func (h *Hub) StartSnapshotBroadcaster(ctx context.Context) {
	go func() {
		interval := time.Duration(h.cfg.SnapshotEveryMs) * time.Millisecond
		if interval <= 0 {
			interval = 250 * time.Millisecond
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if h.clientCount() == 0 {
					continue
				}
				h.broadcastMessage("SNAPSHOT", h.session.Snapshot())
			}
		}
	}()
}

// StartFeedPoller pushes new feed entries to all clients as they land.
func (h *Hub) StartFeedPoller(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()

		seen := h.feed.Len()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				entries := h.feed.Recent(0)
				if len(entries) <= seen {
					seen = len(entries)
					continue
				}
				for _, e := range entries[seen:] {
					h.broadcastMessage("FEED", e)
				}
				seen = len(entries)
			}
		}
	}()
}

// ServeWS upgrades an HTTP request and starts the client pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.cfg.MaxClients > 0 && h.clientCount() >= h.cfg.MaxClients {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed: %v", err)
		return
	}
	client := NewClient(h, conn)
	client.Register()
	go client.WritePump()
	go client.ReadPump()
}

func (h *Hub) broadcastMessage(msgType string, payload any) {
	raw, err := json.Marshal(map[string]any{"type": msgType, "payload": payload})
	if err != nil {
		h.logger.Error("Failed to serialize %s broadcast: %v", msgType, err)
		return
	}
	h.broadcast <- raw
	metrics.Get().RecordWSMessage(false)
}

func (h *Hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
