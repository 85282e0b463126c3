package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/timeutil"
	"go.uber.org/zap"
)

// loadGroup получает группу или возвращает NotFoundError
func loadGroup(ctx context.Context, groups GroupStore, groupID int64) (*model.Group, error) {
	group, err := groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if group == nil {
		return nil, &model.NotFoundError{Entity: "group", ID: groupID}
	}
	return group, nil
}

// requireGroupMember проверяет что пользователь состоит в группе через свою семью
func requireGroupMember(ctx context.Context, groups GroupStore, groupID, userID int64) error {
	ok, err := groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return fmt.Errorf("check group membership: %w", err)
	}
	if !ok {
		return &model.PermissionError{Message: "you are not a member of this group"}
	}
	return nil
}

// requireGroupFamily проверяет что семья (владелец машины или ребёнка) состоит в группе
func requireGroupFamily(ctx context.Context, groups GroupStore, groupID, familyID int64, what string) error {
	ok, err := groups.HasFamily(ctx, groupID, familyID)
	if err != nil {
		return fmt.Errorf("check group family: %w", err)
	}
	if !ok {
		return &model.PermissionError{Message: what + " belongs to a family outside this group"}
	}
	return nil
}

// requireGroupDriver проверяет что водитель существует и состоит в группе
func requireGroupDriver(ctx context.Context, users UserStore, groups GroupStore, groupID, driverID int64) error {
	driver, err := users.GetByID(ctx, driverID)
	if err != nil {
		return fmt.Errorf("get driver: %w", err)
	}
	if driver == nil {
		return &model.NotFoundError{Entity: "user", ID: driverID}
	}
	ok, err := groups.IsMember(ctx, groupID, driverID)
	if err != nil {
		return fmt.Errorf("check driver membership: %w", err)
	}
	if !ok {
		return model.NewValidationError("driver %d is not a member of this group", driverID)
	}
	return nil
}

// requireFamilyAdmin проверяет что пользователь - админ семьи
func requireFamilyAdmin(ctx context.Context, users UserStore, userID, familyID int64) error {
	role, err := users.FamilyRole(ctx, userID, familyID)
	if err != nil {
		return fmt.Errorf("get family role: %w", err)
	}
	if role != model.FamilyRoleAdmin {
		return &model.PermissionError{Message: "only family administrators can perform this action"}
	}
	return nil
}

// requireFamilyMember проверяет что пользователь состоит в семье (любая роль)
func requireFamilyMember(ctx context.Context, users UserStore, userID, familyID int64) error {
	role, err := users.FamilyRole(ctx, userID, familyID)
	if err != nil {
		return fmt.Errorf("get family role: %w", err)
	}
	if role == "" {
		return &model.PermissionError{Message: "you are not a member of this family"}
	}
	return nil
}

// resolveTimezone выбирает часовой пояс: пользователь, затем группа, затем UTC.
// Некорректные значения пропускаются с предупреждением.
func resolveTimezone(ctx context.Context, users UserStore, userID int64, group *model.Group, logger *zap.Logger) string {
	if userID != 0 {
		user, err := users.GetByID(ctx, userID)
		if err != nil {
			logger.Warn("Failed to load user timezone", zap.Int64("user_id", userID), zap.Error(err))
		} else if user != nil && user.Timezone != "" {
			if _, err := timeutil.LoadLocation(user.Timezone); err == nil {
				return user.Timezone
			}
			logger.Warn("Ignoring invalid user timezone",
				zap.Int64("user_id", userID),
				zap.String("timezone", user.Timezone))
		}
	}

	if group != nil && group.Timezone != "" {
		if _, err := timeutil.LoadLocation(group.Timezone); err == nil {
			return group.Timezone
		}
		logger.Warn("Ignoring invalid group timezone",
			zap.Int64("group_id", group.ID),
			zap.String("timezone", group.Timezone))
	}

	return "UTC"
}
