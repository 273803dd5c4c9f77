// Package queue provides the durable, at-least-once work queue the import
// pipeline runs on. Consumers must be idempotent keyed by the IDs inside
// each payload.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Topics drained by the worker pools.
const (
	TopicImport             = "import"
	TopicCategorySuggestion = "category_suggestion"
)

// ErrEmpty is returned by Receive when no message is currently visible.
var ErrEmpty = errors.New("queue is empty")

// Message is one delivered work item. Attempts counts deliveries so far,
// including the current one.
type Message struct {
	ID       uuid.UUID
	Topic    string
	Payload  []byte
	Attempts int
}

// ImportItem is the payload of an import work item.
type ImportItem struct {
	JobID       uuid.UUID `json:"jobId"`
	UserID      uuid.UUID `json:"userId"`
	FileRef     string    `json:"fileRef"`
	FileType    string    `json:"fileType"` // CSV | PDF | IMAGE
	HasPassword bool      `json:"hasPassword"`
}

// CategoryItem is the payload of a category-suggestion work item, one per
// extracted transaction.
type CategoryItem struct {
	TransactionID uuid.UUID `json:"transactionId"`
	UserID        uuid.UUID `json:"userId"`
	Description   string    `json:"description"`
	Amount        string    `json:"amount"`
	Merchant      string    `json:"merchant,omitempty"`
	Type          string    `json:"type"`
}

// Queue is a durable at-least-once message queue. Messages not acked within
// their lease become visible again; Nack schedules an explicit redelivery
// delay for application-level backoff.
type Queue interface {
	Publish(ctx context.Context, topic string, payload any) error
	Receive(ctx context.Context, topic string) (*Message, error)
	Ack(ctx context.Context, id uuid.UUID) error
	Nack(ctx context.Context, id uuid.UUID, delay time.Duration) error
	RequeueExpired(ctx context.Context) (int, error)
}

// Encode marshals a payload for publishing.
func Encode(payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}

// Decode unmarshals a message payload into out.
func Decode(msg *Message, out any) error {
	if err := json.Unmarshal(msg.Payload, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.Topic, err)
	}
	return nil
}
