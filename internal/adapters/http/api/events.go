package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/clickrank/internal/domain/model"
	"github.com/okian/clickrank/pkg/logger"
	"github.com/okian/clickrank/pkg/metrics"
)

// Stream defaults.
const (
	defaultHeartbeat        = 30 * time.Second
	defaultSubscriberBuffer = 16
	wsWriteTimeout          = 10 * time.Second
	countEventName          = "count"
)

// CountReader provides the value sent to a subscriber on connect.
type CountReader interface {
	Count(ctx context.Context) (int64, error)
}

type subscriber struct {
	ch chan model.CountEvent
}

// StreamHub fans counter updates out to Server-Sent Events and WebSocket
// subscribers. A subscriber whose buffer is full misses the update.
type StreamHub struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
	done   chan struct{}

	counts    CountReader
	heartbeat time.Duration
	buffer    int
	upgrader  websocket.Upgrader

	logger logger.Logger
}

// HubOption applies a configuration option to the StreamHub.
type HubOption func(*StreamHub)

// WithHeartbeat sets the keepalive interval.
func WithHeartbeat(d time.Duration) HubOption {
	return func(h *StreamHub) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

// WithSubscriberBuffer sets how many undelivered updates a subscriber may
// hold before it starts missing them.
func WithSubscriberBuffer(n int) HubOption {
	return func(h *StreamHub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithHubLogger sets a custom logger for the hub.
func WithHubLogger(l logger.Logger) HubOption {
	return func(h *StreamHub) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewStreamHub creates a hub that reads the initial count from counts.
func NewStreamHub(counts CountReader, opts ...HubOption) *StreamHub {
	h := &StreamHub{
		subs:      make(map[*subscriber]struct{}),
		done:      make(chan struct{}),
		counts:    counts,
		heartbeat: defaultHeartbeat,
		buffer:    defaultSubscriberBuffer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Named("stream")
	}
	return h
}

// Publish offers e to every subscriber without blocking and returns how
// many accepted it.
func (h *StreamHub) Publish(_ context.Context, e model.CountEvent) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for s := range h.subs {
		select {
		case s.ch <- e:
			delivered++
		default:
			metrics.RecordStreamDropped()
		}
	}
	return delivered
}

// Subscribers returns the number of connected subscribers.
func (h *StreamHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every open stream. Later connections are refused.
func (h *StreamHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.done)
}

func (h *StreamHub) subscribe() (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	s := &subscriber{ch: make(chan model.CountEvent, h.buffer)}
	h.subs[s] = struct{}{}
	metrics.UpdateStreamSubscribers(len(h.subs))
	return s, true
}

func (h *StreamHub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, s)
	metrics.UpdateStreamSubscribers(len(h.subs))
}

// current reads the count for the greeting; ok is false if the store failed.
func (h *StreamHub) current(ctx context.Context) (model.CountEvent, bool) {
	n, err := h.counts.Count(ctx)
	if err != nil {
		h.logger.Warn(ctx, "initial count unavailable", logger.Error(err))
		return model.CountEvent{}, false
	}
	return model.CountEvent{Count: n, TS: time.Now()}, true
}

// HandleEvents handles GET /events with a Server-Sent Events stream.
func (h *StreamHub) HandleEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.events"
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(h.logger, w, r, fmt.Errorf("%s: %w", op, ErrStreamUnsupported))
		return
	}
	sub, ok := h.subscribe()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Shutting down", Code: codeUpstream})
		return
	}
	defer h.unsubscribe(sub)

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache, no-transform")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	if ev, ok := h.current(ctx); ok {
		if err := writeSSE(w, ev); err != nil {
			return
		}
		flusher.Flush()
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-sub.ch:
			if err := writeSSE(w, ev); err != nil {
				h.logger.Debug(ctx, "sse write failed", logger.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev model.CountEvent) error {
	data, err := json.Marshal(ev.Payload())
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", countEventName, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// wsMessage is the frame sent to WebSocket subscribers.
type wsMessage struct {
	Event string `json:"event"`
	Count int64  `json:"count"`
}

// HandleWebSocket handles GET /ws, pushing the same updates as /events.
func (h *StreamHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	sub, ok := h.subscribe()
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(wsWriteTimeout))
		return
	}
	defer h.unsubscribe(sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Inbound frames are discarded; a read error means the peer left.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(ev model.CountEvent) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(wsMessage{Event: countEventName, Count: ev.Count})
	}

	if ev, ok := h.current(ctx); ok {
		if err := send(ev); err != nil {
			return
		}
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(wsWriteTimeout))
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		case ev := <-sub.ch:
			if err := send(ev); err != nil {
				h.logger.Debug(ctx, "websocket write failed", logger.Error(err))
				return
			}
		}
	}
}
