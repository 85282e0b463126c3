package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/schoolrun/internal/model"
)

// memDB - in-memory хранилище для тестов сервисов
type memDB struct {
	mu sync.Mutex

	nextID      int64
	users       map[int64]*model.User
	familyRoles map[[2]int64]model.FamilyRole // {userID, familyID}
	groups      map[int64]*model.Group
	groupFams   map[int64][]int64
	configs     map[int64]*model.ScheduleConfig
	vehicles    map[int64]*model.Vehicle
	children    map[int64]*model.Child
	slots       map[int64]*model.ScheduleSlot
	vas         map[int64]*model.VehicleAssignment
	cas         map[int64]*model.ChildAssignment

	// Ошибки для имитации сбоев
	errCountTrips error
	errActivity   error
}

func newMemDB() *memDB {
	return &memDB{
		users:       map[int64]*model.User{},
		familyRoles: map[[2]int64]model.FamilyRole{},
		groups:      map[int64]*model.Group{},
		groupFams:   map[int64][]int64{},
		configs:     map[int64]*model.ScheduleConfig{},
		vehicles:    map[int64]*model.Vehicle{},
		children:    map[int64]*model.Child{},
		slots:       map[int64]*model.ScheduleSlot{},
		vas:         map[int64]*model.VehicleAssignment{},
		cas:         map[int64]*model.ChildAssignment{},
		nextID:      100,
	}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

// --- seed helpers ---

func (db *memDB) addUser(id int64, tz string) *model.User {
	u := &model.User{ID: id, Name: "user", Email: "user@example.com", Timezone: tz}
	db.users[id] = u
	return u
}

func (db *memDB) addFamilyMember(userID, familyID int64, role model.FamilyRole) {
	db.familyRoles[[2]int64{userID, familyID}] = role
}

func (db *memDB) addGroup(id, familyID int64, tz string, hours model.ScheduleHours) *model.Group {
	g := &model.Group{ID: id, Name: "group", FamilyID: familyID, Timezone: tz}
	db.groups[id] = g
	db.groupFams[id] = append(db.groupFams[id], familyID)
	if hours != nil {
		db.configs[id] = &model.ScheduleConfig{GroupID: id, ScheduleHours: hours}
	}
	return g
}

func (db *memDB) addVehicle(id, familyID int64, capacity int) *model.Vehicle {
	v := &model.Vehicle{ID: id, FamilyID: familyID, Name: "car", Capacity: capacity}
	db.vehicles[id] = v
	return v
}

func (db *memDB) addChild(id, familyID int64) *model.Child {
	c := &model.Child{ID: id, FamilyID: familyID, Name: "kid"}
	db.children[id] = c
	return c
}

func (db *memDB) addSlot(id, groupID int64, dt time.Time) *model.ScheduleSlot {
	s := &model.ScheduleSlot{ID: id, GroupID: groupID, Datetime: dt}
	db.slots[id] = s
	return s
}

func (db *memDB) addVA(id, slotID, vehicleID int64, driverID *int64, seat *int) *model.VehicleAssignment {
	va := &model.VehicleAssignment{ID: id, ScheduleSlotID: slotID, VehicleID: vehicleID, DriverID: driverID, SeatOverride: seat}
	db.vas[id] = va
	return va
}

func (db *memDB) addCA(slotID, childID, vaID int64) {
	id := db.id()
	db.cas[id] = &model.ChildAssignment{ID: id, ScheduleSlotID: slotID, ChildID: childID, VehicleAssignmentID: vaID}
}

func (db *memDB) hydrate(s *model.ScheduleSlot) *model.ScheduleSlot {
	out := *s
	out.VehicleAssignments = nil
	out.ChildAssignments = nil

	vaIDs := make([]int64, 0)
	for id, va := range db.vas {
		if va.ScheduleSlotID == s.ID {
			vaIDs = append(vaIDs, id)
		}
	}
	sort.Slice(vaIDs, func(i, j int) bool { return vaIDs[i] < vaIDs[j] })
	for _, id := range vaIDs {
		va := *db.vas[id]
		va.Vehicle = db.vehicles[va.VehicleID]
		if va.DriverID != nil {
			va.Driver = db.users[*va.DriverID]
		}
		out.VehicleAssignments = append(out.VehicleAssignments, &va)
	}

	caIDs := make([]int64, 0)
	for id, ca := range db.cas {
		if ca.ScheduleSlotID == s.ID {
			caIDs = append(caIDs, id)
		}
	}
	sort.Slice(caIDs, func(i, j int) bool { return caIDs[i] < caIDs[j] })
	for _, id := range caIDs {
		ca := *db.cas[id]
		ca.Child = db.children[ca.ChildID]
		out.ChildAssignments = append(out.ChildAssignments, &ca)
	}
	return &out
}

// --- UserStore ---

type memUsers struct{ db *memDB }

func (m memUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m memUsers) GetByTelegramChatID(_ context.Context, chatID int64) (*model.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, u := range m.db.users {
		if u.TelegramChatID != nil && *u.TelegramChatID == chatID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m memUsers) SetTelegramChatID(_ context.Context, userID int64, chatID *int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[userID]
	if !ok {
		return errors.New("user not found")
	}
	u.TelegramChatID = chatID
	return nil
}

func (m memUsers) FamilyRole(_ context.Context, userID, familyID int64) (model.FamilyRole, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return m.db.familyRoles[[2]int64{userID, familyID}], nil
}

// --- GroupStore ---

type memGroups struct{ db *memDB }

func (m memGroups) GetByID(_ context.Context, id int64) (*model.Group, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	g, ok := m.db.groups[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (m memGroups) Create(_ context.Context, group *model.Group) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	group.ID = m.db.id()
	cp := *group
	m.db.groups[group.ID] = &cp
	m.db.groupFams[group.ID] = []int64{group.FamilyID}
	return nil
}

func (m memGroups) ListByUser(_ context.Context, userID int64) ([]*model.Group, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*model.Group
	for id, fams := range m.db.groupFams {
		for _, f := range fams {
			if m.db.familyRoles[[2]int64{userID, f}] != "" {
				cp := *m.db.groups[id]
				out = append(out, &cp)
				break
			}
		}
	}
	return out, nil
}

func (m memGroups) AddFamily(_ context.Context, groupID, familyID int64, _ model.GroupRole) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.groupFams[groupID] = append(m.db.groupFams[groupID], familyID)
	return nil
}

func (m memGroups) IsMember(_ context.Context, groupID, userID int64) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, f := range m.db.groupFams[groupID] {
		if m.db.familyRoles[[2]int64{userID, f}] != "" {
			return true, nil
		}
	}
	return false, nil
}

func (m memGroups) HasFamily(_ context.Context, groupID, familyID int64) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, f := range m.db.groupFams[groupID] {
		if f == familyID {
			return true, nil
		}
	}
	return false, nil
}

func (m memGroups) GetScheduleConfig(_ context.Context, groupID int64) (*model.ScheduleConfig, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	cfg, ok := m.db.configs[groupID]
	if !ok {
		return nil, nil
	}
	cp := *cfg
	return &cp, nil
}

func (m memGroups) UpsertScheduleConfig(_ context.Context, cfg *model.ScheduleConfig) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	cfg.UpdatedAt = time.Now()
	cp := *cfg
	m.db.configs[cfg.GroupID] = &cp
	return nil
}

// --- SlotStore ---

type memSlots struct{ db *memDB }

func (m memSlots) GetByID(_ context.Context, id int64) (*model.ScheduleSlot, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	s, ok := m.db.slots[id]
	if !ok {
		return nil, nil
	}
	return m.db.hydrate(s), nil
}

func (m memSlots) CreateWithVehicle(_ context.Context, slot *model.ScheduleSlot, va *model.VehicleAssignment) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	slot.ID = m.db.id()
	cp := *slot
	m.db.slots[slot.ID] = &cp
	va.ID = m.db.id()
	va.ScheduleSlotID = slot.ID
	vcp := *va
	m.db.vas[va.ID] = &vcp
	return nil
}

func (m memSlots) AssignVehicle(_ context.Context, va *model.VehicleAssignment) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	va.ID = m.db.id()
	cp := *va
	m.db.vas[va.ID] = &cp
	return nil
}

func (m memSlots) RemoveVehicle(_ context.Context, slotID, vehicleID int64) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	remaining := 0
	for id, va := range m.db.vas {
		if va.ScheduleSlotID != slotID {
			continue
		}
		if va.VehicleID == vehicleID {
			delete(m.db.vas, id)
			for cid, ca := range m.db.cas {
				if ca.VehicleAssignmentID == id {
					delete(m.db.cas, cid)
				}
			}
			continue
		}
		remaining++
	}
	if remaining == 0 {
		delete(m.db.slots, slotID)
		for cid, ca := range m.db.cas {
			if ca.ScheduleSlotID == slotID {
				delete(m.db.cas, cid)
			}
		}
		return true, nil
	}
	return false, nil
}

func (m memSlots) AssignChild(_ context.Context, ca *model.ChildAssignment) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	ca.ID = m.db.id()
	cp := *ca
	m.db.cas[ca.ID] = &cp
	return nil
}

func (m memSlots) RemoveChild(_ context.Context, slotID, childID int64) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for id, ca := range m.db.cas {
		if ca.ScheduleSlotID == slotID && ca.ChildID == childID {
			delete(m.db.cas, id)
			return true, nil
		}
	}
	return false, nil
}

func (m memSlots) UpdateVehicleDriver(_ context.Context, id int64, driverID *int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	va, ok := m.db.vas[id]
	if !ok {
		return errors.New("vehicle assignment not found")
	}
	va.DriverID = driverID
	return nil
}

func (m memSlots) UpdateSeatOverride(_ context.Context, id int64, seat *int) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	va, ok := m.db.vas[id]
	if !ok {
		return errors.New("vehicle assignment not found")
	}
	va.SeatOverride = seat
	return nil
}

func (m memSlots) GetVehicleAssignmentByID(_ context.Context, id int64) (*model.VehicleAssignment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	va, ok := m.db.vas[id]
	if !ok {
		return nil, nil
	}
	cp := *va
	return &cp, nil
}

func (m memSlots) ListByGroupAndRange(_ context.Context, groupID int64, from, to time.Time) ([]*model.ScheduleSlot, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*model.ScheduleSlot
	for _, s := range m.db.slots {
		if s.GroupID == groupID && !s.Datetime.Before(from) && !s.Datetime.After(to) {
			out = append(out, m.db.hydrate(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Datetime.Before(out[j].Datetime) })
	return out, nil
}

func (m memSlots) FindDriverBookingsAt(_ context.Context, driverID int64, dt time.Time) ([]model.DriverBooking, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []model.DriverBooking
	for _, va := range m.db.vas {
		if va.DriverID == nil || *va.DriverID != driverID {
			continue
		}
		s, ok := m.db.slots[va.ScheduleSlotID]
		if !ok || !s.Datetime.Equal(dt) {
			continue
		}
		out = append(out, model.DriverBooking{SlotID: s.ID, GroupID: s.GroupID, VehicleAssignmentID: va.ID})
	}
	return out, nil
}

func (m memSlots) ListBookedSlots(_ context.Context, groupID int64, from time.Time) ([]model.BookedSlot, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []model.BookedSlot
	for _, s := range m.db.slots {
		if s.GroupID != groupID || s.Datetime.Before(from) {
			continue
		}
		n := 0
		for _, ca := range m.db.cas {
			if ca.ScheduleSlotID == s.ID {
				n++
			}
		}
		if n > 0 {
			out = append(out, model.BookedSlot{SlotID: s.ID, Datetime: s.Datetime, ChildCount: n})
		}
	}
	return out, nil
}

// --- VehicleStore / ChildStore ---

type memVehicles struct{ db *memDB }

func (m memVehicles) GetByID(_ context.Context, id int64) (*model.Vehicle, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	v, ok := m.db.vehicles[id]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (m memVehicles) Create(_ context.Context, v *model.Vehicle) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	v.ID = m.db.id()
	cp := *v
	m.db.vehicles[v.ID] = &cp
	return nil
}

func (m memVehicles) ListByFamily(_ context.Context, familyID int64) ([]*model.Vehicle, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*model.Vehicle
	for _, v := range m.db.vehicles {
		if v.FamilyID == familyID {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memChildren struct{ db *memDB }

func (m memChildren) GetByID(_ context.Context, id int64) (*model.Child, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.children[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m memChildren) Create(_ context.Context, c *model.Child) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c.ID = m.db.id()
	cp := *c
	m.db.children[c.ID] = &cp
	return nil
}

func (m memChildren) ListByFamily(_ context.Context, familyID int64) ([]*model.Child, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*model.Child
	for _, c := range m.db.children {
		if c.FamilyID == familyID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- Notifier ---

type notification struct {
	SlotID  int64
	GroupID int64
	Change  model.ChangeType
	// Число машин в слоте в момент уведомления
	Vehicles int
}

type recordingNotifier struct {
	mu     sync.Mutex
	db     *memDB
	events []notification
	err    error
}

func (n *recordingNotifier) NotifyScheduleSlotChange(_ context.Context, slotID int64, change model.ChangeType, _ int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	vehicles := 0
	if n.db != nil {
		n.db.mu.Lock()
		for _, va := range n.db.vas {
			if va.ScheduleSlotID == slotID {
				vehicles++
			}
		}
		n.db.mu.Unlock()
	}
	n.events = append(n.events, notification{SlotID: slotID, Change: change, Vehicles: vehicles})
	return n.err
}

func (n *recordingNotifier) NotifyGroupChange(_ context.Context, groupID int64, change model.ChangeType, _ int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification{GroupID: groupID, Change: change})
	return n.err
}

func (n *recordingNotifier) changes() []model.ChangeType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]model.ChangeType, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Change)
	}
	return out
}

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }
