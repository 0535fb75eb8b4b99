package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"social-client/internal/logger"
	"social-client/internal/observability"
)

const ackEvent = "ack"

var (
	ErrClosed     = errors.New("ws: connection closed")
	ErrAckTimeout = errors.New("ws: ack timeout")
)

// Frame is the envelope of every message on the channel.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   string          `json:"ack,omitempty"`
}

// Event is an inbound server push.
type Event struct {
	Name string
	Data json.RawMessage
}

// Ack is the server's reply to EmitWithAck.
type Ack struct {
	Data json.RawMessage
	Err  error
}

// Options tune a connection. Zero values fall back to defaults.
type Options struct {
	UserID     string
	RequestID  string
	AckTimeout time.Duration
	WriteWait  time.Duration
	PongWait   time.Duration
	PingPeriod time.Duration
	Logger     *slog.Logger
}

func (o *Options) defaults() {
	if o.AckTimeout <= 0 {
		o.AckTimeout = 10 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Conn is a client side realtime channel.
type Conn struct {
	ws     *websocket.Conn
	opts   Options
	info   ConnInfo
	log    *slog.Logger
	send   chan []byte
	events chan Event
	done   chan struct{}

	mu      sync.Mutex
	pending map[string]*pendingAck
	reason  string

	closeOnce sync.Once
	wg        sync.WaitGroup
}

type pendingAck struct {
	ch    chan Ack
	timer *time.Timer
}

// Dial opens a channel to url and starts its pumps.
func Dial(ctx context.Context, url string, header http.Header, opts Options) (*Conn, error) {
	opts.defaults()

	ctx, span := otel.Tracer("social-client/ws").Start(ctx, "ws.dial")
	defer span.End()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.WriteWait,
	}
	wsConn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck // .
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	requestID := opts.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      opts.UserID,
		URL:         url,
		RequestID:   requestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	c := &Conn{
		ws:      wsConn,
		opts:    opts,
		info:    info,
		log:     logger.Component(opts.Logger, "ws").With("conn_id", info.ConnID),
		send:    make(chan []byte, 64),
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
		pending: make(map[string]*pendingAck),
	}

	observability.IncWSActive()
	c.publish(ctx, "ws_connect", "")

	c.wg.Add(2)
	go c.readPump()
	go c.writePump()
	return c, nil
}

// Info returns the connection metadata.
func (c *Conn) Info() ConnInfo {
	return c.info
}

// Events delivers server pushes. It is closed when the connection ends.
func (c *Conn) Events() <-chan Event {
	return c.events
}

// Done is closed once the connection has shut down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Emit sends a fire-and-forget event.
func (c *Conn) Emit(ctx context.Context, event string, data any) error {
	return c.write(ctx, event, data, "")
}

// EmitWithAck sends an event carrying a correlation id. The returned channel
// yields exactly one Ack: the server reply, ErrAckTimeout or ErrClosed.
func (c *Conn) EmitWithAck(ctx context.Context, event string, data any) (<-chan Ack, error) {
	id := uuid.NewString()
	ch := make(chan Ack, 1)

	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return nil, ErrClosed
	default:
	}
	p := &pendingAck{ch: ch}
	p.timer = time.AfterFunc(c.opts.AckTimeout, func() {
		c.resolve(id, Ack{Err: ErrAckTimeout})
	})
	c.pending[id] = p
	c.mu.Unlock()

	if err := c.write(ctx, event, data, id); err != nil {
		c.resolve(id, Ack{Err: err})
		return nil, err
	}
	return ch, nil
}

// Close shuts the connection down and waits for its pumps.
func (c *Conn) Close() error {
	c.shutdown("client closed", nil)
	c.wg.Wait()
	return nil
}

func (c *Conn) write(ctx context.Context, event string, data any, ackID string) error {
	frame := Frame{Event: event, Ack: ackID}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", event, err)
		}
		frame.Data = raw
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- payload:
		observability.IncWSEvent("out", event)
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conn) resolve(id string, ack Ack) {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	p.timer.Stop()
	p.ch <- ack
}

func (c *Conn) readPump() {
	defer c.wg.Done()
	defer close(c.events)

	c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait)) //nolint:errcheck // .
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.shutdown(err.Error(), nil)
			} else {
				c.shutdown(err.Error(), err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.log.Warn("dropping malformed frame", "error", err)
			continue
		}

		if frame.Event == ackEvent {
			c.resolve(frame.Ack, Ack{Data: frame.Data})
			continue
		}

		observability.IncWSEvent("in", frame.Event)
		select {
		case c.events <- Event{Name: frame.Event, Data: frame.Data}:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) writePump() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)) //nolint:errcheck // .
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.shutdown(err.Error(), err)
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				c.shutdown(err.Error(), err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// shutdown tears the connection down once. cause is non-nil for abnormal
// terminations and is reported as ws_error.
func (c *Conn) shutdown(reason string, cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.reason = reason
		close(c.done)
		pending := c.pending
		c.pending = make(map[string]*pendingAck)
		c.mu.Unlock()

		for _, p := range pending {
			p.timer.Stop()
			p.ch <- Ack{Err: ErrClosed}
		}

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = c.ws.Close()

		observability.DecWSActive()
		if cause != nil {
			c.log.Warn("realtime channel failed", "error", cause)
			c.publish(context.Background(), "ws_error", reason)
		}
		c.publish(context.Background(), "ws_disconnect", reason)
	})
}
