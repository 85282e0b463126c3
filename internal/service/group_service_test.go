package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newGroupFixture() (*memDB, *GroupService, *FamilyService, *UserService) {
	db := newMemDB()
	db.addUser(testUser, "")
	db.addUser(testDriver, "")
	db.addUser(outsider, "")
	db.addFamilyMember(testUser, testFamily, model.FamilyRoleAdmin)
	db.addFamilyMember(testDriver, testFamily, model.FamilyRoleMember)

	logger := zap.NewNop()
	return db,
		NewGroupService(memGroups{db}, memUsers{db}, logger),
		NewFamilyService(memUsers{db}, memChildren{db}, memVehicles{db}, logger),
		NewUserService(memUsers{db}, logger)
}

func TestCreateGroupSeedsConfig(t *testing.T) {
	ctx := context.Background()
	db, groups, _, _ := newGroupFixture()

	group, err := groups.CreateGroup(ctx, CreateGroupInput{
		Name:           "  Morning run ",
		FamilyID:       testFamily,
		Timezone:       "Europe/Paris",
		OperatingHours: &model.OperatingHours{StartHour: "07:00", EndHour: "09:00"},
		ActingUserID:   testUser,
	})
	require.NoError(t, err)
	assert.Equal(t, "Morning run", group.Name)

	cfg := db.configs[group.ID]
	require.NotNil(t, cfg)
	assert.Equal(t, []string{"07:00", "07:30", "08:00", "08:30"}, cfg.ScheduleHours[model.Monday])

	got, err := groups.GetGroup(ctx, group.ID, testDriver)
	require.NoError(t, err)
	assert.Equal(t, group.ID, got.ID)

	list, err := groups.ListUserGroups(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateGroupValidation(t *testing.T) {
	ctx := context.Background()
	_, groups, _, _ := newGroupFixture()

	tests := []struct {
		name string
		in   CreateGroupInput
	}{
		{"empty name", CreateGroupInput{Name: " ", FamilyID: testFamily, ActingUserID: testUser}},
		{"bad operating start", CreateGroupInput{Name: "g", FamilyID: testFamily, ActingUserID: testUser,
			OperatingHours: &model.OperatingHours{StartHour: "7", EndHour: "18:00"}}},
		{"end before start", CreateGroupInput{Name: "g", FamilyID: testFamily, ActingUserID: testUser,
			OperatingHours: &model.OperatingHours{StartHour: "18:00", EndHour: "07:00"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := groups.CreateGroup(ctx, tt.in)
			var validation *model.ValidationError
			assert.ErrorAs(t, err, &validation)
		})
	}

	_, err := groups.CreateGroup(ctx, CreateGroupInput{Name: "g", FamilyID: testFamily, Timezone: "Nowhere/City", ActingUserID: testUser})
	assert.ErrorIs(t, err, timeutil.ErrInvalidTimezone)

	_, err = groups.CreateGroup(ctx, CreateGroupInput{Name: "g", FamilyID: testFamily, ActingUserID: testDriver})
	var perm *model.PermissionError
	assert.ErrorAs(t, err, &perm, "members cannot create groups")
}

func TestGroupMembership(t *testing.T) {
	ctx := context.Background()
	db, groups, _, _ := newGroupFixture()
	db.addGroup(testGroup, testFamily, "UTC", nil)
	db.addFamilyMember(outsider, 11, model.FamilyRoleAdmin)

	_, err := groups.GetGroup(ctx, testGroup, outsider)
	var perm *model.PermissionError
	require.ErrorAs(t, err, &perm)

	require.NoError(t, groups.AddFamily(ctx, testGroup, 11, testUser))

	_, err = groups.GetGroup(ctx, testGroup, outsider)
	assert.NoError(t, err)

	var validation *model.ValidationError
	assert.ErrorAs(t, groups.AddFamily(ctx, testGroup, testFamily, testUser), &validation)

	var notFound *model.NotFoundError
	_, err = groups.GetGroup(ctx, 404, testUser)
	assert.ErrorAs(t, err, &notFound)
}

type recordingInviter struct {
	calls []int64
	err   error
}

func (r *recordingInviter) InviteFamily(_ context.Context, group *model.Group, familyID, _ int64) error {
	r.calls = append(r.calls, familyID)
	return r.err
}

func TestAddFamilySendsInvitation(t *testing.T) {
	ctx := context.Background()
	db, groups, _, _ := newGroupFixture()
	db.addGroup(testGroup, testFamily, "UTC", nil)

	inviter := &recordingInviter{err: errors.New("ses down")}
	groups.WithInviter(inviter)

	// Ошибка приглашения не мешает добавлению семьи
	require.NoError(t, groups.AddFamily(ctx, testGroup, 11, testUser))
	assert.Equal(t, []int64{11}, inviter.calls)
}

func TestFamilyChildrenAndVehicles(t *testing.T) {
	ctx := context.Background()
	_, _, families, _ := newGroupFixture()

	child, err := families.AddChild(ctx, testFamily, "Alice", intPtr(7), testDriver)
	require.NoError(t, err)
	assert.NotZero(t, child.ID)

	var validation *model.ValidationError
	_, err = families.AddChild(ctx, testFamily, "Bob", intPtr(19), testUser)
	assert.ErrorAs(t, err, &validation)
	_, err = families.AddChild(ctx, testFamily, "", nil, testUser)
	assert.ErrorAs(t, err, &validation)

	var perm *model.PermissionError
	_, err = families.AddChild(ctx, testFamily, "Eve", nil, outsider)
	assert.ErrorAs(t, err, &perm)

	children, err := families.ListChildren(ctx, testFamily, testUser)
	require.NoError(t, err)
	assert.Len(t, children, 1)

	vehicle, err := families.AddVehicle(ctx, testFamily, "Van", 7, testUser)
	require.NoError(t, err)
	assert.Equal(t, 7, vehicle.Capacity)

	_, err = families.AddVehicle(ctx, testFamily, "Bus", 51, testUser)
	assert.ErrorAs(t, err, &validation)
	_, err = families.AddVehicle(ctx, testFamily, "Bike", 0, testUser)
	assert.ErrorAs(t, err, &validation)

	vehicles, err := families.ListVehicles(ctx, testFamily, testDriver)
	require.NoError(t, err)
	assert.Len(t, vehicles, 1)

	_, err = families.ListVehicles(ctx, testFamily, outsider)
	assert.ErrorAs(t, err, &perm)
}

func TestLinkTelegram(t *testing.T) {
	ctx := context.Background()
	_, _, _, users := newGroupFixture()

	user, err := users.LinkTelegram(ctx, testUser, int64Ptr(555))
	require.NoError(t, err)
	require.NotNil(t, user.TelegramChatID)
	assert.Equal(t, int64(555), *user.TelegramChatID)

	found, err := users.GetByTelegramChatID(ctx, 555)
	require.NoError(t, err)
	assert.Equal(t, testUser, found.ID)

	// Повторная привязка того же чата к тому же пользователю разрешена
	_, err = users.LinkTelegram(ctx, testUser, int64Ptr(555))
	require.NoError(t, err)

	var validation *model.ValidationError
	_, err = users.LinkTelegram(ctx, testDriver, int64Ptr(555))
	assert.ErrorAs(t, err, &validation)

	user, err = users.LinkTelegram(ctx, testUser, nil)
	require.NoError(t, err)
	assert.Nil(t, user.TelegramChatID)

	var notFound *model.NotFoundError
	_, err = users.LinkTelegram(ctx, 404, int64Ptr(1))
	assert.ErrorAs(t, err, &notFound)
}
