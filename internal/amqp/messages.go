package amqp

import (
	"encoding/json"
	"time"

	"khata/internal/core"
)

// RawMessageEnvelope is the wire form of one notification message. Device
// bridges publish it; the ingest worker consumes it. Classification happens
// on the consumer side, so the envelope carries only the raw message.
type RawMessageEnvelope struct {
	ID         string    `json:"id"`
	Body       string    `json:"body"`
	Sender     string    `json:"sender"`
	ReceivedAt time.Time `json:"received_at"`
	Published  time.Time `json:"published"`
}

// NewRawMessageEnvelope wraps a raw message for publishing.
func NewRawMessageEnvelope(msg core.RawMessage) *RawMessageEnvelope {
	return &RawMessageEnvelope{
		ID:         msg.ID,
		Body:       msg.Body,
		Sender:     msg.Sender,
		ReceivedAt: msg.ReceivedAt,
		Published:  time.Now(),
	}
}

// Validate rejects envelopes that can never become transactions. Consumers
// drop them without requeue instead of cycling them through the queue.
func (e *RawMessageEnvelope) Validate() error {
	if e.ID == "" {
		return core.ErrEmptyMessageID
	}
	if e.Body == "" {
		return core.ErrEmptyMessageBody
	}
	return nil
}

// Message unwraps the envelope back into the core type.
func (e *RawMessageEnvelope) Message() core.RawMessage {
	return core.RawMessage{
		ID:         e.ID,
		Body:       e.Body,
		Sender:     e.Sender,
		ReceivedAt: e.ReceivedAt,
	}
}

// ToJSON converts the envelope to JSON bytes
func (e *RawMessageEnvelope) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// RawMessageEnvelopeFromJSON creates an envelope from JSON bytes
func RawMessageEnvelopeFromJSON(data []byte) (*RawMessageEnvelope, error) {
	var e RawMessageEnvelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
