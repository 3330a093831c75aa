// Package history keeps the append-only, bounded, per-board audit trail.
//
// The log is deliberately asymmetric: strict bounding on write (trim,
// truncate, sanitize) and loose parsing on read (per-entry validation,
// invalid records filtered). One corrupt entry must never hide the rest
// of a board's feed.
package history

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/epitrello/epitrello/internal/events"
)

const (
	DefaultLimit     = 50
	MaxLimit         = 200
	MaxStoredEntries = 300

	maxActionLength        = 96
	maxMessageLength       = 320
	maxMetadataEntries     = 12
	maxMetadataKeyLength   = 48
	maxMetadataValueLength = 180
)

var (
	appendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "board_history_appends_total",
		Help: "Board history entries appended",
	})

	appendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "board_history_append_failures_total",
		Help: "Board history appends that failed at the storage layer",
	})
)

// ListStore is the bounded-list primitive the log persists to.
// *redis.HistoryStore satisfies this interface.
type ListStore interface {
	// Prepend pushes value to the head of key and trims the list to the
	// most recent keep entries.
	Prepend(ctx context.Context, key, value string, keep int64) error
	// Range reads entries [start, stop] from the head of key.
	Range(ctx context.Context, key string, start, stop int64) ([]string, error)
}

// Entry is one immutable audit record. Entries are created on append,
// never mutated, and evicted only by the retention trim.
type Entry struct {
	ID        string            `json:"id"`
	BoardID   string            `json:"boardId"`
	ActorID   string            `json:"actorId,omitempty"` // empty for system actions
	Source    events.Source     `json:"source"`
	Action    string            `json:"action"`
	Message   string            `json:"message"`
	CreatedAt string            `json:"createdAt"`
	Metadata  map[string]string `json:"metadata"`
}

// AppendInput describes one audit entry to record.
type AppendInput struct {
	BoardID  string
	ActorID  string
	Source   events.Source
	Action   string
	Message  string
	Metadata map[string]any
}

// Log is the per-board history log. A nil store degrades every operation
// to a no-op: history is auxiliary data, not a hard dependency.
type Log struct {
	store ListStore
}

func NewLog(store ListStore) *Log {
	return &Log{store: store}
}

// Key returns the storage key of a board's history list.
func Key(boardID string) string {
	return "board:" + boardID + ":history:v1"
}

// Append records one entry at the head of the board's log and trims the
// log to the retention window. All failures are absorbed and logged; a
// mutation must never fail because its audit entry could not be written.
func (l *Log) Append(ctx context.Context, input AppendInput) {
	boardID := events.NormalizeID(input.BoardID)
	if boardID == "" || l == nil || l.store == nil {
		return
	}

	source := events.NormalizeSource(string(input.Source))

	entry := Entry{
		ID:        newEntryID(),
		BoardID:   boardID,
		ActorID:   events.NormalizeID(input.ActorID),
		Source:    source,
		Action:    boundedText(input.Action, maxActionLength),
		Message:   boundedText(input.Message, maxMessageLength),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Metadata:  sanitizeMetadata(input.Metadata),
	}
	if entry.Action == "" {
		entry.Action = string(source) + ".updated"
	}
	if entry.Message == "" {
		entry.Message = fallbackMessage(source)
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("board_id", boardID).Msg("board history marshal failed")
		return
	}

	if err := l.store.Prepend(ctx, Key(boardID), string(payload), MaxStoredEntries); err != nil {
		appendFailures.Inc()
		log.Error().Err(err).Str("board_id", boardID).Msg("board history append failed")
		return
	}
	appendsTotal.Inc()
}

// AppendEntry adapts Append to the event bus's fire-and-forget callback.
func (l *Log) AppendEntry(ctx context.Context, boardID, actorID string, source events.Source, input events.HistoryInput) {
	l.Append(ctx, AppendInput{
		BoardID:  boardID,
		ActorID:  actorID,
		Source:   source,
		Action:   input.Action,
		Message:  input.Message,
		Metadata: input.Metadata,
	})
}

// Entries reads a board's history, most recent first. limit defaults to
// DefaultLimit and is clamped to [1, MaxLimit]. Records that fail
// per-entry validation are skipped; storage failures yield an empty
// slice, never an error.
func (l *Log) Entries(ctx context.Context, boardID string, limit int) []Entry {
	normalized := events.NormalizeID(boardID)
	if normalized == "" || l == nil || l.store == nil {
		return []Entry{}
	}

	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	raw, err := l.store.Range(ctx, Key(normalized), 0, int64(limit)-1)
	if err != nil {
		log.Error().Err(err).Str("board_id", normalized).Msg("board history read failed")
		return []Entry{}
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		entry, ok := parseEntry(item)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// parseEntry validates one stored record. A record is accepted only if it
// still has a board id, entry id, action, and message after normalization;
// source is coerced and a missing createdAt falls back to now.
func parseEntry(raw string) (Entry, bool) {
	var stored struct {
		ID        string         `json:"id"`
		BoardID   string         `json:"boardId"`
		ActorID   string         `json:"actorId"`
		Source    string         `json:"source"`
		Action    string         `json:"action"`
		Message   string         `json:"message"`
		CreatedAt string         `json:"createdAt"`
		Metadata  map[string]any `json:"metadata"`
	}
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return Entry{}, false
	}

	boardID := events.NormalizeID(stored.BoardID)
	id := events.NormalizeID(stored.ID)
	action := boundedText(stored.Action, maxActionLength)
	message := boundedText(stored.Message, maxMessageLength)

	if boardID == "" || id == "" || action == "" || message == "" {
		return Entry{}, false
	}

	createdAt := stored.CreatedAt
	if createdAt == "" {
		createdAt = time.Now().UTC().Format(time.RFC3339Nano)
	}

	return Entry{
		ID:        id,
		BoardID:   boardID,
		ActorID:   events.NormalizeID(stored.ActorID),
		Source:    events.NormalizeSource(stored.Source),
		Action:    action,
		Message:   message,
		CreatedAt: createdAt,
		Metadata:  sanitizeMetadata(stored.Metadata),
	}, true
}

func newEntryID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// crypto/rand failure; fall back to v4 rather than dropping the entry
		return uuid.NewString()
	}
	return id.String()
}

// boundedText trims and truncates to maxLength runes; "" means absent.
func boundedText(value string, maxLength int) string {
	trimmed := strings.TrimSpace(value)
	if utf8.RuneCountInString(trimmed) > maxLength {
		runes := []rune(trimmed)
		return string(runes[:maxLength])
	}
	return trimmed
}

// sanitizeMetadata caps the mapping at maxMetadataEntries, drops values
// that are not string/number/boolean, and truncates long keys and values.
// Malformed metadata degrades to an empty or partial mapping, never an
// error. Keys are applied in sorted order so the count cap is
// deterministic (Go map iteration order is randomized).
func sanitizeMetadata(value map[string]any) map[string]string {
	metadata := make(map[string]string)
	if len(value) == 0 {
		return metadata
	}

	keys := make([]string, 0, len(value))
	for key := range value {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, rawKey := range keys {
		if len(metadata) >= maxMetadataEntries {
			break
		}

		key := boundedText(rawKey, maxMetadataKeyLength)
		if key == "" {
			continue
		}

		stringified, ok := stringifyPrimitive(value[rawKey])
		if !ok {
			continue
		}

		normalized := boundedText(stringified, maxMetadataValueLength)
		if normalized == "" {
			continue
		}

		metadata[key] = normalized
	}

	return metadata
}

func stringifyPrimitive(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}

func fallbackMessage(source events.Source) string {
	switch source {
	case events.SourceBoard:
		return "Board updated."
	case events.SourceList:
		return "List updated."
	case events.SourceCard:
		return "Card updated."
	case events.SourceTag:
		return "Tag updated."
	case events.SourceSharing:
		return "Sharing settings updated."
	default:
		return "Board updated."
	}
}
