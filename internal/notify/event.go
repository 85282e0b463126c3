// Package notify fans schedule change events out to websocket clients,
// Telegram chats, email and the activity log.
package notify

import (
	"context"
	"time"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/service"
)

// Event is a snapshot of one change, taken when the change was reported.
type Event struct {
	ID        string               `json:"id"`
	Type      model.ChangeType     `json:"type"`
	GroupID   int64                `json:"group_id"`
	SlotID    int64                `json:"slot_id,omitempty"`
	ActorID   int64                `json:"actor_id,omitempty"`
	Slot      *service.SlotDetails `json:"slot,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

// Sink delivers events to one channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}
