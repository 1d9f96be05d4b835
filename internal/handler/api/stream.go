package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"QuotePulse/internal/domain/models"
	xlogger "QuotePulse/pkg/logger"
	"QuotePulse/pkg/util"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// StreamHandler pushes quote updates to WebSocket subscribers. Clients connect
// with ?symbols=AAPL,MSFT and receive only updates for those symbols; with no
// filter they receive everything. It implements domrepo.Notifier so it can be
// fanned out next to the Kafka notifier.
type StreamHandler struct {
	logger   *xlogger.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*streamClient]struct{}
}

type streamClient struct {
	conn    *websocket.Conn
	send    chan *models.QuoteUpdate
	symbols map[string]struct{} // empty means all
}

func NewStreamHandler(logger *xlogger.Logger) *StreamHandler {
	return &StreamHandler{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*streamClient]struct{}),
	}
}

// Serve upgrades the connection and streams updates until the client leaves.
func (h *StreamHandler) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &streamClient{
		conn:    conn,
		send:    make(chan *models.QuoteUpdate, 64),
		symbols: parseSymbolFilter(c.QueryParam("symbols")),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	if h.logger != nil {
		h.logger.Debug("stream client connected", xlogger.Int("clients", n))
	}

	go h.writePump(client)
	h.readPump(client)
	return nil
}

// NotifyQuote fans the update out to subscribed clients. Slow clients are
// skipped rather than blocking the pipeline.
func (h *StreamHandler) NotifyQuote(_ context.Context, u *models.QuoteUpdate) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.wants(u.Quote.Symbol) {
			continue
		}
		select {
		case client.send <- u:
		default:
		}
	}
	return nil
}

// Close disconnects all clients.
func (h *StreamHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	return nil
}

func (h *StreamHandler) drop(client *streamClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
	client.conn.Close()
}

// readPump drains control frames and detects disconnects.
func (h *StreamHandler) readPump(client *streamClient) {
	defer h.drop(client)
	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHandler) writePump(client *streamClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()
	for {
		select {
		case u, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteJSON(u); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *streamClient) wants(symbol string) bool {
	if len(c.symbols) == 0 {
		return true
	}
	_, ok := c.symbols[symbol]
	return ok
}

func parseSymbolFilter(raw string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, s := range util.SplitSymbols(raw) {
		out[s] = struct{}{}
	}
	return out
}
