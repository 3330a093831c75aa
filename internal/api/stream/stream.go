// Package stream exposes board events to browsers over SSE and WebSocket.
// Both transports share the subscription path: access check, bus subscribe,
// fan events to the connection until it drops.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/epitrello/epitrello/internal/access"
	"github.com/epitrello/epitrello/internal/domain"
	"github.com/epitrello/epitrello/internal/events"
	"github.com/epitrello/epitrello/internal/server/middleware"
)

var (
	streamConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "epitrello_stream_connections",
		Help: "Open realtime connections by transport.",
	}, []string{"transport"})

	streamEventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epitrello_stream_events_dropped_total",
		Help: "Events dropped because a client could not keep up.",
	}, []string{"transport"})
)

// heartbeatInterval keeps intermediaries from timing out idle connections.
const heartbeatInterval = 25 * time.Second

// connBuffer is the per-connection event backlog. A client that falls this
// far behind starts losing events; the next full board fetch resyncs it.
const connBuffer = 16

// Subscriber is the bus surface the handlers need. *events.Bus satisfies it.
type Subscriber interface {
	Subscribe(boardID string, listener events.Listener) (unsubscribe func())
}

// Handler serves the realtime endpoints for one bus.
type Handler struct {
	bus       Subscriber
	checker   *access.Checker
	heartbeat time.Duration
}

func NewHandler(bus Subscriber, checker *access.Checker) *Handler {
	return &Handler{bus: bus, checker: checker, heartbeat: heartbeatInterval}
}

// resolveBoard authorizes the request and returns the board id, or writes
// an error response and returns false.
func (h *Handler) resolveBoard(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing authenticated user", http.StatusUnauthorized)
		return uuid.Nil, false
	}

	boardID, err := uuid.Parse(chi.URLParam(r, "boardID"))
	if err != nil {
		http.Error(w, "invalid board id", http.StatusBadRequest)
		return uuid.Nil, false
	}

	if _, _, err := h.checker.Require(r.Context(), boardID, userID, access.ModeView); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "board not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrForbidden):
			http.Error(w, "insufficient board access", http.StatusForbidden)
		default:
			log.Error().Err(err).Msg("stream access check")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return uuid.Nil, false
	}

	return boardID, true
}

// subscribe attaches a buffered listener for the board. Events beyond the
// buffer are dropped rather than blocking the bus fan-out.
func (h *Handler) subscribe(boardID uuid.UUID, transport string) (<-chan events.BoardUpdated, func()) {
	ch := make(chan events.BoardUpdated, connBuffer)
	unsubscribe := h.bus.Subscribe(boardID.String(), func(event events.BoardUpdated) {
		select {
		case ch <- event:
		default:
			streamEventsDropped.WithLabelValues(transport).Inc()
		}
	})
	return ch, unsubscribe
}

// ServeSSE streams board events as server-sent events. The client
// authenticates with a bearer token or, for EventSource, a token query
// parameter handled by the auth middleware.
func (h *Handler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	boardID, ok := h.resolveBoard(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// The stream outlives the server write timeout; lift the per-response
	// deadline so a nonzero operator setting does not sever it.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.Debug().Err(err).Msg("sse write deadline")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Disables proxy buffering so events reach the browser immediately.
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	streamConnections.WithLabelValues("sse").Inc()
	defer streamConnections.WithLabelValues("sse").Dec()

	ch, unsubscribe := h.subscribe(boardID, "sse")
	defer unsubscribe()

	fmt.Fprintf(w, "event: ready\ndata: {\"boardId\":%q}\n\n", boardID)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event := <-ch:
			payload, err := json.Marshal(event)
			if err != nil {
				log.Error().Err(err).Msg("sse marshal")
				continue
			}
			fmt.Fprintf(w, "event: board-updated\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// ServeWS streams board events over a WebSocket. The payloads are the same
// JSON envelopes SSE carries.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	boardID, ok := h.resolveBoard(w, r)
	if !ok {
		return
	}

	// Clear the per-response deadline before the hijack so the socket does
	// not inherit a stale server write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.Debug().Err(err).Msg("websocket write deadline")
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	streamConnections.WithLabelValues("ws").Inc()
	defer streamConnections.WithLabelValues("ws").Dec()

	ch, unsubscribe := h.subscribe(boardID, "ws")
	defer unsubscribe()

	ctx := r.Context()

	// Drain reads so close frames and pongs are processed.
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		case event := <-ch:
			payload, err := json.Marshal(event)
			if err != nil {
				log.Error().Err(err).Msg("websocket marshal")
				continue
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, payload); writeErr != nil {
				log.Debug().Err(writeErr).Msg("websocket write")
				return
			}
		}
	}
}
