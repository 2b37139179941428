package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultReconnectDelay is the fixed wait between connection attempts.
const DefaultReconnectDelay = 5 * time.Second

// ErrNotConnected is returned by Send while no connection is open.
var ErrNotConnected = errors.New("telemetry: websocket not connected")

// Message types sent by the backend.
const (
	TypeSystemStats       = "system_stats"
	TypeSystemStatsTagged = "system.stats"
	TypeNotification      = "notification"
)

// URLFor returns the websocket endpoint for a backend origin:
// http becomes ws, https becomes wss, and the path is /api/ws.
func URLFor(server string) (string, error) {
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", server, err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws", "":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server URL %q has no host", server)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/ws"
	return u.String(), nil
}

// Listener keeps one websocket open to the backend, reconnecting forever
// on a fixed delay, and routes messages into the stats and notification
// stores.
type Listener struct {
	url    string
	delay  time.Duration
	dialer *websocket.Dialer
	stats  *StatsStore
	notes  *Notifications
	logger *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

type ListenerOption func(*Listener)

// WithReconnectDelay overrides DefaultReconnectDelay.
func WithReconnectDelay(d time.Duration) ListenerOption {
	return func(l *Listener) {
		if d > 0 {
			l.delay = d
		}
	}
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) ListenerOption {
	return func(l *Listener) {
		l.dialer = d
	}
}

func WithLogger(logger *slog.Logger) ListenerOption {
	return func(l *Listener) {
		l.logger = logger
	}
}

// NewListener creates a listener for wsURL. Call Start to connect.
func NewListener(wsURL string, stats *StatsStore, notes *Notifications, opts ...ListenerOption) *Listener {
	l := &Listener{
		url:    wsURL,
		delay:  DefaultReconnectDelay,
		dialer: websocket.DefaultDialer,
		stats:  stats,
		notes:  notes,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "telemetry")
	return l
}

// Start begins connecting in the background. Calling Start on a running
// listener does nothing.
func (l *Listener) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	go l.run(ctx, l.done)
}

// Stop closes the connection, cancels any pending reconnect and waits for
// the background goroutine to exit.
func (l *Listener) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Connected reports whether a connection is currently open.
func (l *Listener) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

// Send writes v as a JSON text frame.
func (l *Listener) Send(v any) error {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()

	if conn == nil {
		l.logger.Warn("cannot send message, websocket not connected")
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (l *Listener) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		conn, _, err := l.dialer.DialContext(ctx, l.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Error("failed to connect", "url", l.url, "error", err)
		} else {
			l.logger.Info("connected to server", "url", l.url)
			l.setConn(conn)
			stop := context.AfterFunc(ctx, func() { conn.Close() })
			l.readLoop(conn)
			stop()
			l.setConn(nil)
			conn.Close()

			if ctx.Err() != nil {
				return
			}
			l.logger.Info("connection closed, reconnecting", "delay", l.delay)
		}

		timer := time.NewTimer(l.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (l *Listener) setConn(conn *websocket.Conn) {
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
}

func (l *Listener) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l.logger.Debug("read failed", "error", err)
			}
			return
		}
		l.handle(data)
	}
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type wireStats struct {
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsage float64 `json:"memory_usage"`
	MemoryUsed  uint64  `json:"memory_used"`
	MemoryTotal uint64  `json:"memory_total"`
}

type wireNotification struct {
	ID      string `json:"id"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// handle routes one frame. Malformed frames are logged and dropped.
func (l *Listener) handle(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		l.logger.Error("failed to parse message", "error", err)
		return
	}

	// Payload fields are either flat on the message or nested under "data".
	payload := data
	if len(env.Data) > 0 && string(env.Data) != "null" {
		payload = env.Data
	}

	switch env.Type {
	case TypeSystemStats, TypeSystemStatsTagged:
		var s wireStats
		if err := json.Unmarshal(payload, &s); err != nil {
			l.logger.Error("failed to parse stats", "error", err)
			return
		}
		if l.stats != nil {
			l.stats.Set(Stats(s))
		}
	case TypeNotification:
		var n wireNotification
		if err := json.Unmarshal(payload, &n); err != nil {
			l.logger.Error("failed to parse notification", "error", err)
			return
		}
		l.logger.Info("notification", "level", n.Level, "message", n.Message)
		if l.notes != nil {
			l.notes.Add(Notification{ID: n.ID, Level: n.Level, Message: n.Message})
		}
	default:
		l.logger.Info("unknown message type", "type", env.Type)
	}
}
