package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/schoolrun/internal/email"
	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/timeutil"
	"go.uber.org/zap"
)

type GroupCatalog interface {
	ListAll(ctx context.Context) ([]*model.Group, error)
}

type SlotRangeLister interface {
	ListByGroupAndRange(ctx context.Context, groupID int64, from, to time.Time) ([]*model.ScheduleSlot, error)
}

type DigestMailer interface {
	SendWeeklyDigest(ctx context.Context, to email.Recipient, d email.WeeklyDigest) error
}

// WeeklyDigest рассылает участникам групп расписание на неделю
type WeeklyDigest struct {
	groups  GroupCatalog
	members MemberLister
	slots   SlotRangeLister
	mailer  DigestMailer
	logger  *zap.Logger
}

func NewWeeklyDigest(groups GroupCatalog, members MemberLister, slots SlotRangeLister, mailer DigestMailer, logger *zap.Logger) *WeeklyDigest {
	return &WeeklyDigest{
		groups:  groups,
		members: members,
		slots:   slots,
		mailer:  mailer,
		logger:  logger,
	}
}

// Send отправляет дайджест недели (по UTC), содержащей ref. Ошибка одной
// группы не останавливает рассылку остальным.
func (d *WeeklyDigest) Send(ctx context.Context, ref time.Time) error {
	week, err := timeutil.WeekBoundaries(ref, "UTC")
	if err != nil {
		return err
	}

	groups, err := d.groups.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}

	sent, failed := 0, 0
	for _, group := range groups {
		n, err := d.sendGroup(ctx, group, week)
		sent += n
		if err != nil {
			failed++
			d.logger.Error("Weekly digest failed for group",
				zap.Int64("group_id", group.ID),
				zap.Error(err))
		}
	}

	d.logger.Info("Weekly digest sent",
		zap.Time("week_start", week.Start),
		zap.Int("groups", len(groups)),
		zap.Int("emails", sent),
		zap.Int("failed_groups", failed))
	return nil
}

func (d *WeeklyDigest) sendGroup(ctx context.Context, group *model.Group, week timeutil.Week) (int, error) {
	slots, err := d.slots.ListByGroupAndRange(ctx, group.ID, week.Start, week.End)
	if err != nil {
		return 0, fmt.Errorf("list slots: %w", err)
	}
	users, err := d.members.ListGroupMembers(ctx, group.ID)
	if err != nil {
		return 0, fmt.Errorf("list members: %w", err)
	}

	sent := 0
	for _, u := range users {
		if u.Email == "" {
			continue
		}

		digest := email.WeeklyDigest{
			GroupID:   group.ID,
			GroupName: group.Name,
			WeekStart: week.Start,
			Trips:     make([]email.DigestTrip, 0, len(slots)),
		}
		for _, slot := range slots {
			digest.Trips = append(digest.Trips, email.DigestTrip{
				Datetime: slot.Datetime,
				Children: len(slot.ChildAssignments),
				Capacity: slot.TotalCapacity(),
				IsDriver: drives(slot, u.ID),
			})
		}

		err := d.mailer.SendWeeklyDigest(ctx, email.Recipient{
			Email:    u.Email,
			Name:     u.Name,
			Timezone: userLocation(u),
		}, digest)
		if err != nil {
			d.logger.Warn("Failed to send weekly digest",
				zap.Int64("group_id", group.ID),
				zap.Int64("user_id", u.ID),
				zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}

func drives(slot *model.ScheduleSlot, userID int64) bool {
	for _, va := range slot.VehicleAssignments {
		if va.DriverID != nil && *va.DriverID == userID {
			return true
		}
	}
	return false
}
