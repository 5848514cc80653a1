package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

// wireEvent is the JSON published on the Pub/Sub channel. Origin names the
// sending instance so it can skip its own echo.
type wireEvent struct {
	Origin string `json:"origin"`
	shared.EventEnvelope
}

func encodeEvent(origin string, event shared.Event) ([]byte, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event.EventType(), err)
	}

	env := shared.EventEnvelope{
		ID:          uuid.NewString(),
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Version:     1,
		Payload:     payload,
	}
	if c, ok := event.(interface{ Correlation() string }); ok {
		env.CorrelationID = c.Correlation()
	}

	return json.Marshal(wireEvent{Origin: origin, EventEnvelope: env})
}

func decodeEvent(data []byte) (shared.Event, string, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, "", fmt.Errorf("decode event: %w", err)
	}

	ev := &remoteEvent{env: w.EventEnvelope, payload: map[string]interface{}{}}
	if len(w.Payload) > 0 {
		if err := json.Unmarshal(w.Payload, &ev.payload); err != nil {
			return nil, "", fmt.Errorf("decode %s payload: %w", w.Type, err)
		}
	}
	return ev, w.Origin, nil
}

// remoteEvent is an event that arrived from another process.
type remoteEvent struct {
	env     shared.EventEnvelope
	payload map[string]interface{}
}

func (e *remoteEvent) EventType() shared.EventType     { return e.env.Type }
func (e *remoteEvent) AggregateID() string             { return e.env.AggregateID }
func (e *remoteEvent) OccurredAt() time.Time           { return e.env.Timestamp }
func (e *remoteEvent) Payload() map[string]interface{} { return e.payload }
func (e *remoteEvent) Correlation() string             { return e.env.CorrelationID }
