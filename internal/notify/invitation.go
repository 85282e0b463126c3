package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/schoolrun/internal/email"
	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/service"
	"go.uber.org/zap"
)

type FamilyMemberLister interface {
	ListFamilyMembers(ctx context.Context, familyID int64) ([]*model.User, error)
}

type InvitationMailer interface {
	SendGroupInvitation(ctx context.Context, to email.Recipient, inv email.Invitation) error
}

// FamilyInviter implements service.FamilyInviter over email.
type FamilyInviter struct {
	families FamilyMemberLister
	users    UserReader
	mailer   InvitationMailer
	logger   *zap.Logger
}

var _ service.FamilyInviter = (*FamilyInviter)(nil)

func NewFamilyInviter(families FamilyMemberLister, users UserReader, mailer InvitationMailer, logger *zap.Logger) *FamilyInviter {
	return &FamilyInviter{families: families, users: users, mailer: mailer, logger: logger}
}

// InviteFamily отправляет письмо каждому члену семьи с email
func (f *FamilyInviter) InviteFamily(ctx context.Context, group *model.Group, familyID, inviterID int64) error {
	members, err := f.families.ListFamilyMembers(ctx, familyID)
	if err != nil {
		return fmt.Errorf("list family members: %w", err)
	}

	inv := email.Invitation{
		GroupID:     group.ID,
		GroupName:   group.Name,
		InviterName: "A group admin",
	}
	if inviter, err := f.users.GetByID(ctx, inviterID); err == nil && inviter != nil {
		inv.InviterName = inviter.Name
	}

	var errs []error
	for _, u := range members {
		if u.Email == "" {
			continue
		}
		err := f.mailer.SendGroupInvitation(ctx, email.Recipient{
			Email:    u.Email,
			Name:     u.Name,
			Timezone: userLocation(u),
		}, inv)
		if err != nil {
			errs = append(errs, fmt.Errorf("invite user %d: %w", u.ID, err))
		}
	}

	f.logger.Info("Group invitation sent",
		zap.Int64("group_id", group.ID),
		zap.Int64("family_id", familyID),
		zap.Int("members", len(members)),
		zap.Int("failed", len(errs)))
	return errors.Join(errs...)
}
