// Package broadcast fans fresh aggregation results out to the live map
// clients over websockets. The hub is a single goroutine owning all client
// state; everything reaches it through commands on a channel, so no locks.
package broadcast

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dkrasnow/worldmood/internal/domain"
	"github.com/dkrasnow/worldmood/internal/metrics"
)

const (
	maxClients      = 512
	clientSendDepth = 16
	writeTimeout    = 5 * time.Second
)

// updateMessage is the frame pushed to map clients.
type updateMessage struct {
	Type   string                   `json:"type"`
	Result domain.AggregationResult `json:"result"`
}

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	conn    *websocket.Conn
	country string // empty subscribes to every country
	errCh   chan error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	conn *websocket.Conn
}

func (cmdUnregister) hubCmd() {}

type cmdBroadcast struct {
	country string
	data    []byte
}

func (cmdBroadcast) hubCmd() {}

type cmdClientCount struct {
	replyCh chan int
}

func (cmdClientCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Per-connection writer ---

type clientWriter struct {
	conn    *websocket.Conn
	country string
	sendCh  chan []byte
	done    chan struct{}
}

func newClientWriter(conn *websocket.Conn, country string) *clientWriter {
	cw := &clientWriter{
		conn:    conn,
		country: country,
		sendCh:  make(chan []byte, clientSendDepth),
		done:    make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	for {
		select {
		case msg, ok := <-cw.sendCh:
			if !ok {
				return
			}
			cw.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-cw.done:
			return
		}
	}
}

func (cw *clientWriter) stop() {
	close(cw.done)
	cw.conn.Close()
}

// --- Hub ---

// Hub owns the connected map clients and delivers country updates to them.
type Hub struct {
	cmdCh   chan hubCmd
	clients map[*websocket.Conn]*clientWriter
}

func NewHub() *Hub {
	hub := &Hub{
		cmdCh:   make(chan hubCmd, 256),
		clients: make(map[*websocket.Conn]*clientWriter),
	}
	go hub.run()
	return hub
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.conn)
		case cmdBroadcast:
			h.handleBroadcast(c)
		case cmdClientCount:
			c.replyCh <- len(h.clients)
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	if len(h.clients) >= maxClients {
		slog.Warn("rejecting map client, hub full", "max_clients", maxClients)
		c.conn.Close()
		c.errCh <- ErrHubFull
		return
	}

	h.clients[c.conn] = newClientWriter(c.conn, c.country)
	metrics.BroadcastClientsConnected.Set(float64(len(h.clients)))
	slog.Debug("map client registered", "country_filter", c.country, "total_clients", len(h.clients))
	c.errCh <- nil
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	cw, exists := h.clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(h.clients, conn)
	metrics.BroadcastClientsConnected.Set(float64(len(h.clients)))
}

func (h *Hub) handleBroadcast(c cmdBroadcast) {
	var slow []*websocket.Conn
	for conn, cw := range h.clients {
		if cw.country != "" && cw.country != c.country {
			continue
		}
		select {
		case cw.sendCh <- c.data:
		default:
			// client cannot keep up, mark for removal
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Info("disconnecting slow map client", "country", c.country)
		metrics.BroadcastSlowClientsEvicted.Inc()
		h.handleUnregister(conn)
	}
}

func (h *Hub) handleStop() {
	for conn, cw := range h.clients {
		cw.stop()
		delete(h.clients, conn)
	}
	metrics.BroadcastClientsConnected.Set(0)
}

// --- Public API ---

// Register adds a websocket client. The country filter limits delivery to one
// country; empty receives everything.
func (h *Hub) Register(conn *websocket.Conn, country string) error {
	errCh := make(chan error, 1)
	h.cmdCh <- cmdRegister{conn: conn, country: country, errCh: errCh}
	return <-errCh
}

// Unregister removes a client and stops its writer.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.cmdCh <- cmdUnregister{conn: conn}
}

// Broadcast pushes a fresh result to every client subscribed to its country.
func (h *Hub) Broadcast(result domain.AggregationResult) {
	data, err := json.Marshal(updateMessage{Type: "country_update", Result: result})
	if err != nil {
		slog.Error("marshal broadcast message failed", "error", err)
		return
	}
	h.cmdCh <- cmdBroadcast{country: result.Country, data: data}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	h.cmdCh <- cmdClientCount{replyCh: replyCh}
	return <-replyCh
}

// Stop disconnects every client and shuts the hub down.
func (h *Hub) Stop() {
	h.cmdCh <- cmdStop{}
}
