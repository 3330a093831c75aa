package events

import (
	"encoding/json"
	"strings"
	"time"
)

// Source identifies which subsystem triggered a board mutation.
type Source string

const (
	SourceBoard   Source = "board"
	SourceList    Source = "list"
	SourceCard    Source = "card"
	SourceTag     Source = "tag"
	SourceSharing Source = "sharing"
	SourceUnknown Source = "unknown"
)

// NormalizeSource coerces unrecognized source tags to SourceUnknown.
// Applied on both the publish and the receive path.
func NormalizeSource(value string) Source {
	switch Source(value) {
	case SourceBoard, SourceList, SourceCard, SourceTag, SourceSharing, SourceUnknown:
		return Source(value)
	default:
		return SourceUnknown
	}
}

// TypeBoardUpdated is the type tag carried by every event envelope.
const TypeBoardUpdated = "board.updated"

// Channel is the shared broadcast channel all server processes publish
// board events on. Versioned so the envelope shape can evolve.
const Channel = "board:events:v1"

// BoardUpdated is the ephemeral envelope fanned out to subscribers when a
// board mutation completes. It is not persisted beyond transit.
type BoardUpdated struct {
	Type      string `json:"type"`
	BoardID   string `json:"boardId"`
	ActorID   string `json:"actorId,omitempty"` // empty for system-initiated changes
	Source    Source `json:"source"`
	EmittedAt string `json:"emittedAt"`
}

// NormalizeID trims an identifier and reports "" for anything unusable.
func NormalizeID(value string) string {
	return strings.TrimSpace(value)
}

// ParseEvent validates a raw broadcast payload. It returns false for
// anything that is not a well-formed board.updated envelope: bad JSON,
// wrong type tag, or an empty board id. Unrecognized sources are coerced
// to unknown and a missing emittedAt is stamped on receive.
func ParseEvent(payload []byte) (BoardUpdated, bool) {
	var raw BoardUpdated
	if err := json.Unmarshal(payload, &raw); err != nil {
		return BoardUpdated{}, false
	}

	if raw.Type != TypeBoardUpdated {
		return BoardUpdated{}, false
	}

	boardID := NormalizeID(raw.BoardID)
	if boardID == "" {
		return BoardUpdated{}, false
	}

	emittedAt := raw.EmittedAt
	if emittedAt == "" {
		emittedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}

	return BoardUpdated{
		Type:      TypeBoardUpdated,
		BoardID:   boardID,
		ActorID:   NormalizeID(raw.ActorID),
		Source:    NormalizeSource(string(raw.Source)),
		EmittedAt: emittedAt,
	}, true
}
