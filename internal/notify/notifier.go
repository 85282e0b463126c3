package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SlotReader interface {
	GetByID(ctx context.Context, id int64) (*model.ScheduleSlot, error)
}

type Enqueuer interface {
	Enqueue(ev Event) error
}

// SlotNotifier implements service.Notifier. It snapshots the slot
// synchronously and hands the event to the dispatcher.
type SlotNotifier struct {
	slots  SlotReader
	queue  Enqueuer
	logger *zap.Logger
	now    func() time.Time
}

var _ service.Notifier = (*SlotNotifier)(nil)

func NewSlotNotifier(slots SlotReader, queue Enqueuer, logger *zap.Logger) *SlotNotifier {
	return &SlotNotifier{
		slots:  slots,
		queue:  queue,
		logger: logger,
		now:    time.Now,
	}
}

// NotifyScheduleSlotChange делает снимок слота и ставит событие в очередь
func (n *SlotNotifier) NotifyScheduleSlotChange(ctx context.Context, slotID int64, change model.ChangeType, actorID int64) error {
	slot, err := n.slots.GetByID(ctx, slotID)
	if err != nil {
		return fmt.Errorf("snapshot slot: %w", err)
	}
	if slot == nil {
		return &model.NotFoundError{Entity: "schedule slot", ID: slotID}
	}

	ev := Event{
		ID:        uuid.NewString(),
		Type:      change,
		GroupID:   slot.GroupID,
		SlotID:    slotID,
		ActorID:   actorID,
		Slot:      service.BuildSlotDetails(slot, n.logger),
		CreatedAt: n.now().UTC(),
	}

	if err := n.queue.Enqueue(ev); err != nil {
		return err
	}

	n.logger.Debug("Slot change queued",
		zap.String("event_id", ev.ID),
		zap.Int64("slot_id", slotID),
		zap.String("type", string(change)))
	return nil
}

// NotifyGroupChange ставит в очередь событие уровня группы (без слота)
func (n *SlotNotifier) NotifyGroupChange(ctx context.Context, groupID int64, change model.ChangeType, actorID int64) error {
	ev := Event{
		ID:        uuid.NewString(),
		Type:      change,
		GroupID:   groupID,
		ActorID:   actorID,
		CreatedAt: n.now().UTC(),
	}
	return n.queue.Enqueue(ev)
}
