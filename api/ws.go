/*
ws.go - Websocket transport for live snapshot updates

PURPOSE:
  Upgrades authenticated clients to a websocket, registers each
  connection on the bus, and relays broadcast events as JSON frames of
  the form {"event": ..., "data": ...}. Clients are read from only to
  detect disconnects; all application traffic is server to client.

LIFECYCLE:
  connect -> auth check -> upgrade -> bus register -> "connected" frame
  -> ping/read loops until either side closes -> bus unregister
*/
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/siteops/sheetsync/engine"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboard origins vary by deployment; the API key gate above is
	// the actual access control.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsFrame is the wire shape of every server-to-client message.
type wsFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// wsClient serializes writes to one connection.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Send implements engine.Sender.
func (c *wsClient) Send(event string, payload any) error {
	data, err := json.Marshal(wsFrame{Event: event, Data: payload})
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsClient) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// ServeWS upgrades the connection and streams update events.
// GET /ws
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, admin := h.Auth.Resolve(r.Header)
	if identity == "" {
		// Browsers cannot set custom headers on websocket dials, so the
		// key may arrive as query parameters instead.
		q := r.URL.Query()
		hdr := http.Header{}
		hdr.Set("X-API-Key", q.Get("api_key"))
		hdr.Set("X-User-Email", q.Get("email"))
		identity, admin = h.Auth.Resolve(hdr)
	}
	if identity == "" {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	id := uuid.NewString()
	client := &wsClient{conn: conn}
	h.Bus.Register(id, identity, admin, client)
	h.Logger.Info().Str("subscriber", id).Str("identity", identity).Msg("websocket connected")

	recordCount := 0
	if snap := h.Store.Current(); snap != nil {
		recordCount = len(snap.Rows)
	}
	_ = client.Send("connected", map[string]any{
		"subscriber_id": id,
		"record_count":  recordCount,
		"admin":         admin,
	})

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := client.ping(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		// Inbound frames carry nothing; reading only detects the close.
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(done)
	h.Bus.Unregister(id)
	conn.Close()
	h.Logger.Info().Str("subscriber", id).Msg("websocket disconnected")
}

var _ engine.Sender = (*wsClient)(nil)
