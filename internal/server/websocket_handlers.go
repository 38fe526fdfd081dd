package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/scanner"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 64
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The feed is read-only; any origin may subscribe.
		return true
	},
}

// Feed message types.
const (
	MessageSnapshot    = "snapshot"
	MessageRunStart    = "run_start"
	MessageDetection   = "detection"
	MessageRunComplete = "run_complete"
)

// FeedMessage is a message sent to feed subscribers.
type FeedMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type feedClient struct {
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func (c *feedClient) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

func (c *feedClient) remoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// Feed is a scanner observer that keeps a copy of the detection log and
// pushes every new detection to WebSocket subscribers. It is safe for
// concurrent use: the scanner calls it from the scanning goroutine while
// HTTP handlers read it.
type Feed struct {
	scanner.NoOpObserver

	mu         sync.RWMutex
	clients    map[*feedClient]struct{}
	detections []scanner.Detection
	run        *scanner.RunInfo
	summary    *scanner.Summary
	metrics    *Metrics
	logger     *slog.Logger
}

// NewFeed creates an empty feed. metrics may be nil.
func NewFeed(logger *slog.Logger, metrics *Metrics) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		clients: make(map[*feedClient]struct{}),
		metrics: metrics,
		logger:  logger,
	}
}

// Snapshot returns a copy of the detections seen so far.
func (f *Feed) Snapshot() []scanner.Detection {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snapshotLocked()
}

func (f *Feed) snapshotLocked() []scanner.Detection {
	out := make([]scanner.Detection, len(f.detections))
	for i, d := range f.detections {
		d.Coordinates = d.Coordinates.Clone()
		out[i] = d
	}
	return out
}

// Summary returns the last run summary, if a run has completed.
func (f *Feed) Summary() (scanner.Summary, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.summary == nil {
		return scanner.Summary{}, false
	}
	return *f.summary, true
}

// Running reports whether a run has started and not yet completed.
func (f *Feed) Running() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.run != nil && f.summary == nil
}

// ClientCount returns the number of connected subscribers.
func (f *Feed) ClientCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

func (f *Feed) OnRunStart(info scanner.RunInfo) {
	data, ok := f.encode(FeedMessage{Type: MessageRunStart, Payload: info})

	f.mu.Lock()
	defer f.mu.Unlock()
	f.detections = nil
	f.run = &info
	f.summary = nil
	if ok {
		f.broadcastLocked(data)
	}
}

func (f *Feed) OnDetection(d scanner.Detection, inserted bool) {
	if !inserted {
		return
	}
	d.Coordinates = d.Coordinates.Clone()
	data, ok := f.encode(FeedMessage{Type: MessageDetection, Payload: d})

	// Appending and broadcasting under one lock means a subscriber sees each
	// detection exactly once: either in its snapshot or as a message.
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detections = append(f.detections, d)
	if ok {
		f.broadcastLocked(data)
	}
}

func (f *Feed) OnRunComplete(s scanner.Summary) {
	data, ok := f.encode(FeedMessage{Type: MessageRunComplete, Payload: s})

	f.mu.Lock()
	defer f.mu.Unlock()
	f.summary = &s
	if ok {
		f.broadcastLocked(data)
	}
}

func (f *Feed) encode(msg FeedMessage) ([]byte, bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		f.logger.Error("Failed to encode feed message", "type", msg.Type, "error", err)
		return nil, false
	}
	return data, true
}

// broadcastLocked queues data for every client. Clients whose buffer is full
// are dropped rather than blocking the scanner. f.mu must be held.
func (f *Feed) broadcastLocked(data []byte) {
	for c := range f.clients {
		select {
		case c.send <- data:
		default:
			f.logger.Warn("Dropping slow feed subscriber", "remote_addr", c.remoteAddr())
			delete(f.clients, c)
			c.close()
		}
	}
}

// register adds c and queues the snapshot as its first message. Both happen
// under the write lock so no detection falls between them.
func (f *Feed) register(c *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if data, ok := f.encode(FeedMessage{Type: MessageSnapshot, Payload: f.snapshotLocked()}); ok {
		c.send <- data
	}
	f.clients[c] = struct{}{}
	if f.metrics != nil {
		f.metrics.websocketConnections.Inc()
	}
}

func (f *Feed) unregister(c *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		c.close()
	}
	if f.metrics != nil {
		f.metrics.websocketConnections.Dec()
	}
}

// ServeWS upgrades the connection and streams feed messages until the client
// disconnects. The first message is a snapshot of the current log.
func (f *Feed) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}

	c := &feedClient{conn: conn, send: make(chan []byte, sendBuffer)}
	f.register(c)
	f.logger.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	go f.writeLoop(c)
	f.readLoop(c)
}

// readLoop discards client messages and keeps the read deadline fresh.
func (f *Feed) readLoop(c *feedClient) {
	defer f.unregister(c)

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				f.logger.Error("WebSocket error", "error", err)
			}
			return
		}
		if f.metrics != nil {
			f.metrics.websocketMessagesTotal.WithLabelValues("received").Inc()
		}
	}
}

func (f *Feed) writeLoop(c *feedClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			if f.metrics != nil {
				f.metrics.websocketMessagesTotal.WithLabelValues("sent").Inc()
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
