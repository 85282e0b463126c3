package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/schedule"
	"github.com/Freeeeeet/schoolrun/internal/timeutil"
	"go.uber.org/zap"
)

type GroupService struct {
	groups  GroupStore
	users   UserStore
	inviter FamilyInviter
	logger  *zap.Logger
}

func NewGroupService(groups GroupStore, users UserStore, logger *zap.Logger) *GroupService {
	return &GroupService{
		groups: groups,
		users:  users,
		logger: logger,
	}
}

// WithInviter включает уведомление семьи о добавлении в группу
func (s *GroupService) WithInviter(inviter FamilyInviter) *GroupService {
	s.inviter = inviter
	return s
}

type CreateGroupInput struct {
	Name           string
	FamilyID       int64
	Timezone       string
	OperatingHours *model.OperatingHours
	ActingUserID   int64
}

// CreateGroup создаёт группу и заполняет её расписание значениями по умолчанию
func (s *GroupService) CreateGroup(ctx context.Context, in CreateGroupInput) (*model.Group, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, model.NewValidationError("group name is required")
	}
	if len(name) > 100 {
		return nil, model.NewValidationError("group name must be at most 100 characters")
	}

	tz := strings.TrimSpace(in.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	if _, err := timeutil.LoadLocation(tz); err != nil {
		return nil, err
	}

	if in.OperatingHours != nil {
		start, err := timeutil.ParseClock(in.OperatingHours.StartHour)
		if err != nil {
			return nil, model.NewValidationError("invalid operating hours start %q", in.OperatingHours.StartHour)
		}
		end, err := timeutil.ParseClock(in.OperatingHours.EndHour)
		if err != nil {
			return nil, model.NewValidationError("invalid operating hours end %q", in.OperatingHours.EndHour)
		}
		if end < start {
			return nil, model.NewValidationError("operating hours end must not be before start")
		}
	}

	if err := requireFamilyAdmin(ctx, s.users, in.ActingUserID, in.FamilyID); err != nil {
		return nil, err
	}

	group := &model.Group{
		Name:           name,
		FamilyID:       in.FamilyID,
		Timezone:       tz,
		OperatingHours: in.OperatingHours,
	}
	if err := s.groups.Create(ctx, group); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}

	hours := defaultHoursFor(group.OperatingHours)
	if err := schedule.Validate(hours, group.OperatingHours); err != nil {
		return nil, err
	}
	cfg := &model.ScheduleConfig{GroupID: group.ID, ScheduleHours: hours}
	if err := s.groups.UpsertScheduleConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("seed schedule config: %w", err)
	}

	s.logger.Info("Group created",
		zap.Int64("group_id", group.ID),
		zap.Int64("family_id", in.FamilyID),
		zap.String("timezone", tz),
	)

	return group, nil
}

// GetGroup получает группу, если пользователь в ней состоит
func (s *GroupService) GetGroup(ctx context.Context, groupID, userID int64) (*model.Group, error) {
	group, err := loadGroup(ctx, s.groups, groupID)
	if err != nil {
		return nil, err
	}
	if err := requireGroupMember(ctx, s.groups, groupID, userID); err != nil {
		return nil, err
	}
	return group, nil
}

// ListUserGroups получает все группы, где состоит семья пользователя
func (s *GroupService) ListUserGroups(ctx context.Context, userID int64) ([]*model.Group, error) {
	groups, err := s.groups.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	if groups == nil {
		groups = []*model.Group{}
	}
	return groups, nil
}

// AddFamily добавляет семью в группу. Доступно только админам семьи-владельца.
func (s *GroupService) AddFamily(ctx context.Context, groupID, familyID, actingUserID int64) error {
	group, err := loadGroup(ctx, s.groups, groupID)
	if err != nil {
		return err
	}
	if err := requireFamilyAdmin(ctx, s.users, actingUserID, group.FamilyID); err != nil {
		return err
	}
	if familyID == group.FamilyID {
		return model.NewValidationError("family %d already owns this group", familyID)
	}

	if err := s.groups.AddFamily(ctx, groupID, familyID, model.GroupRoleMember); err != nil {
		return fmt.Errorf("add family to group: %w", err)
	}

	s.logger.Info("Family added to group",
		zap.Int64("group_id", groupID),
		zap.Int64("family_id", familyID),
	)

	// Ошибка приглашения не отменяет добавление
	if s.inviter != nil {
		if err := s.inviter.InviteFamily(ctx, group, familyID, actingUserID); err != nil {
			s.logger.Warn("Failed to send group invitation",
				zap.Int64("group_id", groupID),
				zap.Int64("family_id", familyID),
				zap.Error(err))
		}
	}
	return nil
}
