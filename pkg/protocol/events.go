package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Event type tags as they appear on the wire.
const (
	EventTypeRepos        = "repos"
	EventTypeBranches     = "branches"
	EventTypeTags         = "tags"
	EventTypeCommits      = "commits"
	EventTypeSessionState = "session-state"
	EventTypeDiff         = "diff"
	EventTypeDiffSummary  = "diff-summary"
	EventTypePing         = "ping"
	EventTypePong         = "pong"
)

// Event is a server-pushed message. The concrete type is determined by
// the "type" field of the wire frame; unrecognized tags decode to
// UnknownEvent rather than failing, so a newer server never kills an
// older client.
type Event interface {
	EventType() string
}

// ReposEvent replaces the known repository list wholesale.
type ReposEvent struct {
	Repos []string `json:"repos"`
}

// EventType implements Event.
func (ReposEvent) EventType() string { return EventTypeRepos }

// BranchesEvent replaces the branch list wholesale.
type BranchesEvent struct {
	Branches []Branch `json:"branches"`
}

// EventType implements Event.
func (BranchesEvent) EventType() string { return EventTypeBranches }

// TagsEvent replaces the tag list wholesale.
type TagsEvent struct {
	Tags []Tag `json:"tags"`
}

// EventType implements Event.
func (TagsEvent) EventType() string { return EventTypeTags }

// CommitsEvent replaces the commit log wholesale.
type CommitsEvent struct {
	Commits []Commit `json:"commits"`
}

// EventType implements Event.
func (CommitsEvent) EventType() string { return EventTypeCommits }

// SessionStateEvent carries the authoritative session snapshot. The
// client replaces its mirror wholesale on every delivery.
type SessionStateEvent struct {
	State Session `json:"state"`
}

// EventType implements Event.
func (SessionStateEvent) EventType() string { return EventTypeSessionState }

// DiffEvent delivers patch content. Partial deliveries carry a subset
// of the files of the commit pair and accumulate client-side; a
// non-partial delivery replaces everything assembled so far.
type DiffEvent struct {
	Diff    Diff `json:"diff"`
	Partial bool `json:"partial"`
}

// EventType implements Event.
func (DiffEvent) EventType() string { return EventTypeDiff }

// DiffSummaryEvent replaces the diff summary wholesale.
type DiffSummaryEvent struct {
	Summary DiffSummary `json:"summary"`
}

// EventType implements Event.
func (DiffSummaryEvent) EventType() string { return EventTypeDiffSummary }

// PingEvent is a liveness probe. It carries no payload.
type PingEvent struct{}

// EventType implements Event.
func (PingEvent) EventType() string { return EventTypePing }

// PongEvent answers a ping. It carries no payload.
type PongEvent struct{}

// EventType implements Event.
func (PongEvent) EventType() string { return EventTypePong }

// UnknownEvent preserves a frame whose type tag this client does not
// recognize. Consumers log it and move on.
type UnknownEvent struct {
	Tag string
	Raw json.RawMessage
}

// EventType implements Event.
func (e UnknownEvent) EventType() string { return e.Tag }

// envelope extracts the discriminator tag of a wire frame.
type envelope struct {
	Type string `json:"type"`
}

// DecodeFrame decodes one wire frame into its events. A frame is
// either a single JSON object or a JSON array of objects (batched
// delivery); array order is preserved. Malformed JSON is the only
// error condition: unknown type tags decode to UnknownEvent.
func DecodeFrame(frame []byte) ([]Event, error) {
	trimmed := bytes.TrimLeft(frame, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var raws []json.RawMessage

		unmarshalErr := json.Unmarshal(trimmed, &raws)
		if unmarshalErr != nil {
			return nil, fmt.Errorf("decode batched frame: %w", unmarshalErr)
		}

		events := make([]Event, 0, len(raws))

		for _, raw := range raws {
			event, decodeErr := DecodeEvent(raw)
			if decodeErr != nil {
				return nil, decodeErr
			}

			events = append(events, event)
		}

		return events, nil
	}

	event, decodeErr := DecodeEvent(trimmed)
	if decodeErr != nil {
		return nil, decodeErr
	}

	return []Event{event}, nil
}

// DecodeEvent decodes a single JSON object into its event variant.
func DecodeEvent(raw []byte) (Event, error) {
	var env envelope

	unmarshalErr := json.Unmarshal(raw, &env)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("decode event envelope: %w", unmarshalErr)
	}

	switch env.Type {
	case EventTypeRepos:
		var event ReposEvent

		return unmarshalEvent(raw, env.Type, &event)
	case EventTypeBranches:
		var event BranchesEvent

		return unmarshalEvent(raw, env.Type, &event)
	case EventTypeTags:
		var event TagsEvent

		return unmarshalEvent(raw, env.Type, &event)
	case EventTypeCommits:
		var event CommitsEvent

		return unmarshalEvent(raw, env.Type, &event)
	case EventTypeSessionState:
		var event SessionStateEvent

		return unmarshalEvent(raw, env.Type, &event)
	case EventTypeDiff:
		var event DiffEvent

		return unmarshalEvent(raw, env.Type, &event)
	case EventTypeDiffSummary:
		var event DiffSummaryEvent

		return unmarshalEvent(raw, env.Type, &event)
	case EventTypePing:
		return PingEvent{}, nil
	case EventTypePong:
		return PongEvent{}, nil
	default:
		return UnknownEvent{Tag: env.Type, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}

func unmarshalEvent[T Event](raw []byte, tag string, target *T) (Event, error) {
	unmarshalErr := json.Unmarshal(raw, target)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("decode %s event: %w", tag, unmarshalErr)
	}

	return *target, nil
}

// MarshalEvent serializes an event into a single wire object with the
// type tag spliced in first.
func MarshalEvent(event Event) ([]byte, error) {
	return marshalTagged(event.EventType(), event)
}

// MarshalEventBatch serializes an ordered batch of events into a JSON
// array frame, the server's chunked delivery format.
func MarshalEventBatch(events []Event) ([]byte, error) {
	parts := make([]json.RawMessage, 0, len(events))

	for _, event := range events {
		part, marshalErr := MarshalEvent(event)
		if marshalErr != nil {
			return nil, marshalErr
		}

		parts = append(parts, part)
	}

	return json.Marshal(parts)
}

// marshalTagged marshals payload and splices {"type": tag} into the
// resulting object.
func marshalTagged(tag string, payload any) ([]byte, error) {
	body, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return nil, fmt.Errorf("marshal %s: %w", tag, marshalErr)
	}

	head, tagErr := json.Marshal(envelope{Type: tag})
	if tagErr != nil {
		return nil, fmt.Errorf("marshal %s tag: %w", tag, tagErr)
	}

	if len(body) <= len("{}") || !bytes.HasPrefix(body, []byte("{")) {
		return head, nil
	}

	// head is {"type":"tag"}; graft the payload fields onto it.
	out := append(head[:len(head)-1], ',')
	out = append(out, body[1:]...)

	return out, nil
}
