package network

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/botnet-empire/server/internal/crypto"
	"github.com/botnet-empire/server/internal/events"
	"github.com/botnet-empire/server/internal/platform/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// PlayerAction represents an incoming command from the frontend.
type PlayerAction struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Client represents one active WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	windowStart time.Time
	windowCount int
}

// NewClient creates a new WebSocket client.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	buf := hub.cfg.ClientSendBuffer
	if buf <= 0 {
		buf = 256
	}
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, buf),
	}
}

// Register adds the client to the hub.
func (c *Client) Register() {
	c.hub.register <- c
}

// sendReplay queues the recent feed for a freshly connected client.
func (c *Client) sendReplay(entries []events.Entry) {
	raw, err := json.Marshal(map[string]any{"type": "FEED_REPLAY", "payload": entries})
	if err != nil {
		return
	}
	select {
	case c.send <- raw:
	default:
	}
}

// ReadPump pumps messages from the websocket connection into the
// session.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket read error: %v", err)
				metrics.Get().RecordWSError()
			}
			break
		}
		metrics.Get().RecordWSMessage(true)

		var action PlayerAction
		if err := json.Unmarshal(message, &action); err != nil {
			c.hub.logger.Error("Failed to parse PlayerAction: %v", err)
			continue
		}
		c.handlePlayerAction(action)
	}
}

func (c *Client) handlePlayerAction(action PlayerAction) {
	if c.rateLimited() {
		c.hub.logger.Warn("Rate limit exceeded for action %s", action.Type)
		c.reply(action.Type, "rate limited")
		return
	}

	s := c.hub.session
	var err error

	switch action.Type {
	case "SPREAD":
		err = s.Spread()
	case "SPREAD_START":
		s.StartSpreadHold()
	case "SPREAD_STOP":
		s.StopSpreadHold()
	case "SELL":
		var p struct {
			Tier   string  `json:"tier"`
			Amount float64 `json:"amount"`
		}
		if err = json.Unmarshal(action.Payload, &p); err == nil {
			_, err = s.Sell(p.Tier, p.Amount)
		}
	case "BUY_TOOL":
		var p struct {
			ID string `json:"id"`
		}
		if err = json.Unmarshal(action.Payload, &p); err == nil {
			err = s.BuyTool(p.ID)
		}
	case "BUY_UPGRADE":
		var p struct {
			ID string `json:"id"`
		}
		if err = json.Unmarshal(action.Payload, &p); err == nil {
			err = s.BuyUpgrade(p.ID)
		}
	case "UPGRADE_SKILL":
		var p struct {
			Skill string `json:"skill"`
		}
		if err = json.Unmarshal(action.Payload, &p); err == nil {
			err = s.UpgradeSkill(p.Skill)
		}
	case "CLICK_TOOL":
		var p struct {
			ID string `json:"id"`
		}
		if err = json.Unmarshal(action.Payload, &p); err == nil {
			err = s.ClickTool(p.ID)
		}
	case "ACK_EVENT":
		err = s.AcknowledgeEvent()
	case "PRESTIGE":
		err = s.PrestigeReset()
	case "CRYPTO_TOGGLE":
		if c.hub.miner != nil {
			var p struct {
				Active bool `json:"active"`
			}
			if err = json.Unmarshal(action.Payload, &p); err == nil {
				c.hub.miner.SetActive(p.Active)
			}
		}
	case "CRYPTO_MODE":
		if c.hub.miner != nil {
			var p struct {
				Mode string `json:"mode"`
			}
			if err = json.Unmarshal(action.Payload, &p); err == nil {
				c.hub.miner.SetMode(crypto.Mode(p.Mode))
			}
		}
	default:
		c.hub.logger.Warn("Unknown PlayerAction type: %s", action.Type)
		return
	}

	if err != nil {
		c.reply(action.Type, err.Error())
	}
}

// rateLimited enforces the per-client message budget over a sliding
// one-second window.
func (c *Client) rateLimited() bool {
	limit := c.hub.cfg.MaxMessagesPerSecond
	if limit <= 0 {
		return false
	}
	now := time.Now()
	if now.Sub(c.windowStart) >= time.Second {
		c.windowStart = now
		c.windowCount = 0
	}
	c.windowCount++
	return c.windowCount > limit
}

// reply sends an action rejection back to the originating client only.
func (c *Client) reply(actionType, detail string) {
	raw, err := json.Marshal(map[string]any{
		"type":    "ACTION_REJECTED",
		"payload": map[string]string{"action": actionType, "reason": detail},
	})
	if err != nil {
		return
	}
	select {
	case c.send <- raw:
	default:
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
