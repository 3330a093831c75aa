package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var (
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "board_events_published_total",
		Help: "Board events published on the shared broadcast channel",
	}, []string{"source"})

	eventsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "board_events_delivered_total",
		Help: "Board event deliveries to local listeners",
	})

	publishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "board_events_publish_failures_total",
		Help: "Failed broadcast publishes that fell back to local dispatch",
	})
)

// Listener receives board.updated events for a subscribed board.
type Listener func(event BoardUpdated)

// Broadcaster is the pub/sub primitive the bus fans events out on.
// *redis.PubSub satisfies this interface.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// HistoryInput carries the optional audit payload of a notification.
type HistoryInput struct {
	Action   string
	Message  string
	Metadata map[string]any
}

// HistoryAppender records an audit entry for a notification. *history.Log
// satisfies this interface; appends are best-effort and must not fail the
// event path.
type HistoryAppender interface {
	AppendEntry(ctx context.Context, boardID, actorID string, source Source, input HistoryInput)
}

// UpdateInput is the notification a mutation handler fires after a record
// change has been written.
type UpdateInput struct {
	BoardID string
	ActorID string
	Source  Source
	History *HistoryInput
}

type subscriberState int

const (
	subscriberIdle subscriberState = iota
	subscriberStarting
	subscriberReady
)

// Bus delivers board-changed signals to local listeners and keeps multiple
// server processes consistent through the shared broadcast channel. One
// instance per process, constructed at startup and injected into handlers.
type Bus struct {
	broadcaster Broadcaster
	history     HistoryAppender // nil disables history recording
	channel     string
	baseCtx     context.Context // bounds the shared subscriber lifetime

	mu         sync.Mutex
	listeners  map[string]map[uint64]Listener
	nextID     uint64
	subState   subscriberState
	subPending chan struct{} // non-nil while an init attempt is in flight
	subCancel  context.CancelFunc
	subCleanup func()
}

// NewBus creates a Bus. ctx bounds the lifetime of the lazily-created
// broadcast subscription; cancel it (or call Close) on shutdown.
func NewBus(ctx context.Context, broadcaster Broadcaster, history HistoryAppender) *Bus {
	return &Bus{
		broadcaster: broadcaster,
		history:     history,
		channel:     Channel,
		baseCtx:     ctx,
		listeners:   make(map[string]map[uint64]Listener),
	}
}

// Subscribe registers a listener for future events on a board and returns
// its unsubscribe capability. An empty or whitespace board id is a guard
// case, not an error: the listener is never registered and the returned
// unsubscribe is inert. Unsubscribing twice is a no-op.
//
// The first subscriber triggers the shared broadcast subscription; the
// attempt is single-flight, so concurrent subscribers wait on the same
// in-flight init instead of opening duplicate connections. A failed init
// is retried by the next Subscribe call.
func (b *Bus) Subscribe(boardID string, listener Listener) (unsubscribe func()) {
	normalized := NormalizeID(boardID)
	if normalized == "" || listener == nil {
		return func() {}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	set := b.listeners[normalized]
	if set == nil {
		set = make(map[uint64]Listener)
		b.listeners[normalized] = set
	}
	set[id] = listener
	b.mu.Unlock()

	b.ensureSubscriber()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		remaining, ok := b.listeners[normalized]
		if !ok {
			return
		}
		delete(remaining, id)
		if len(remaining) == 0 {
			delete(b.listeners, normalized)
		}
	}
}

// Notify records a board change. Both side effects, the history append and
// the broadcast publish, run detached from the caller: a mutation's success
// is never blocked or failed by notification failures. If the broadcast
// transport is down, same-process listeners still receive the event through
// an immediate local dispatch.
func (b *Bus) Notify(ctx context.Context, input UpdateInput) {
	boardID := NormalizeID(input.BoardID)
	if boardID == "" {
		return
	}

	event := BoardUpdated{
		Type:      TypeBoardUpdated,
		BoardID:   boardID,
		ActorID:   NormalizeID(input.ActorID),
		Source:    NormalizeSource(string(input.Source)),
		EmittedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}

	detached := context.WithoutCancel(ctx)

	if b.history != nil {
		historyInput := HistoryInput{}
		if input.History != nil {
			historyInput = *input.History
		}
		go b.history.AppendEntry(detached, event.BoardID, event.ActorID, event.Source, historyInput)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("board_id", event.BoardID).Msg("board event marshal failed")
		return
	}

	go func() {
		if publishErr := b.broadcaster.Publish(detached, b.channel, payload); publishErr != nil {
			publishFailures.Inc()
			log.Error().Err(publishErr).Str("board_id", event.BoardID).Msg("board event publish failed")
			b.dispatchLocal(event)
			return
		}
		eventsPublished.WithLabelValues(string(event.Source)).Inc()
	}()
}

// Close tears down the shared broadcast subscription. Listeners stay
// registered; a later Subscribe will re-init the subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	cancel := b.subCancel
	cleanup := b.subCleanup
	b.subState = subscriberIdle
	b.subCancel = nil
	b.subCleanup = nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if cleanup != nil {
		cleanup()
	}
}

// ensureSubscriber opens the shared broadcast subscription exactly once.
// State machine: idle -> starting (pending chan) -> ready, with the guard
// reset to idle on failure so a future call can retry.
func (b *Bus) ensureSubscriber() {
	b.mu.Lock()
	for b.subState == subscriberStarting {
		pending := b.subPending
		b.mu.Unlock()
		<-pending
		b.mu.Lock()
	}
	if b.subState == subscriberReady {
		b.mu.Unlock()
		return
	}

	b.subState = subscriberStarting
	pending := make(chan struct{})
	b.subPending = pending
	b.mu.Unlock()

	ctx, cancel := context.WithCancel(b.baseCtx)
	messages, cleanup, err := b.broadcaster.Subscribe(ctx, b.channel)

	b.mu.Lock()
	b.subPending = nil
	if err != nil {
		b.subState = subscriberIdle
		b.mu.Unlock()
		cancel()
		close(pending)
		log.Error().Err(err).Msg("board events subscriber init failed")
		return
	}
	b.subState = subscriberReady
	b.subCancel = cancel
	b.subCleanup = cleanup
	b.mu.Unlock()
	close(pending)

	go b.receiveLoop(messages)
}

// receiveLoop delivers each inbound broadcast message synchronously, so all
// listeners see one event before the next message is processed.
func (b *Bus) receiveLoop(messages <-chan []byte) {
	for payload := range messages {
		event, ok := ParseEvent(payload)
		if !ok {
			continue
		}
		b.dispatchLocal(event)
	}
}

func (b *Bus) dispatchLocal(event BoardUpdated) {
	b.mu.Lock()
	set := b.listeners[event.BoardID]
	snapshot := make([]Listener, 0, len(set))
	for _, listener := range set {
		snapshot = append(snapshot, listener)
	}
	b.mu.Unlock()

	for _, listener := range snapshot {
		b.deliver(listener, event)
	}
}

// deliver isolates listener invocations: one panicking listener must not
// prevent delivery to the others.
func (b *Bus) deliver(listener Listener, event BoardUpdated) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("board_id", event.BoardID).Msg("board event listener panicked")
		}
	}()

	listener(event)
	eventsDelivered.Inc()
}
