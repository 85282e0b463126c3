package httpapi

import (
	"net/http"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/render"
	"github.com/Freeeeeet/schoolrun/internal/service"
	"github.com/Freeeeeet/schoolrun/internal/timeutil"
)

// --- schedule config ---

func (s *Server) defaultScheduleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]model.ScheduleHours{
		"schedule_hours": s.deps.ScheduleConfigs.GetDefaultScheduleHours(),
	})
}

func (s *Server) getScheduleConfig(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	cfg, err := s.deps.ScheduleConfigs.GetScheduleConfig(r.Context(), groupID, userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type scheduleConfigRequest struct {
	ScheduleHours model.ScheduleHours `json:"schedule_hours"`
}

func (s *Server) updateScheduleConfig(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req scheduleConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if req.ScheduleHours == nil {
		writeError(w, http.StatusBadRequest, "schedule_hours is required")
		return
	}

	cfg, err := s.deps.ScheduleConfigs.UpdateScheduleConfig(r.Context(), groupID, req.ScheduleHours, userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) resetScheduleConfig(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	cfg, err := s.deps.ScheduleConfigs.ResetScheduleConfig(r.Context(), groupID, userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// --- schedule ---

func (s *Server) getSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, ok := s.loadSchedule(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

func (s *Server) getScheduleImage(w http.ResponseWriter, r *http.Request) {
	schedule, ok := s.loadSchedule(w, r)
	if !ok {
		return
	}
	group, err := s.deps.Groups.GetGroup(r.Context(), schedule.GroupID, userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	loc, err := timeutil.LoadLocation(schedule.Timezone)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	img, err := render.WeekImage(render.WeekInput{
		Title:     group.Name,
		WeekStart: schedule.StartDate,
		Location:  loc,
		Slots:     schedule.Slots,
		Now:       s.now(),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func (s *Server) loadSchedule(w http.ResponseWriter, r *http.Request) (*service.GroupSchedule, bool) {
	groupID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return nil, false
	}
	start, err := queryTime(r, "start")
	if err != nil {
		s.writeServiceError(w, r, err)
		return nil, false
	}
	end, err := queryTime(r, "end")
	if err != nil {
		s.writeServiceError(w, r, err)
		return nil, false
	}

	schedule, err := s.deps.Slots.GetSchedule(r.Context(), groupID, start, end, userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return nil, false
	}
	return schedule, true
}

// --- slots ---

type createSlotRequest struct {
	Datetime     string `json:"datetime"`
	VehicleID    int64  `json:"vehicle_id"`
	DriverID     *int64 `json:"driver_id"`
	SeatOverride *int   `json:"seat_override"`
}

func (s *Server) createSlot(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req createSlotRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	datetime, err := timeutil.ParseInstant(req.Datetime)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	slot, err := s.deps.Slots.CreateSlotWithVehicle(r.Context(), service.CreateSlotInput{
		GroupID:      groupID,
		Datetime:     datetime,
		VehicleID:    req.VehicleID,
		DriverID:     req.DriverID,
		SeatOverride: req.SeatOverride,
		ActingUserID: userID(r),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

func (s *Server) getSlot(w http.ResponseWriter, r *http.Request) {
	slotID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	slot, err := s.deps.Slots.GetScheduleSlotForUser(r.Context(), slotID, userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if slot == nil {
		writeError(w, http.StatusNotFound, "schedule slot not found")
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (s *Server) getSlotConflicts(w http.ResponseWriter, r *http.Request) {
	slotID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	// Сначала проверяем, что пользователь видит этот слот
	slot, err := s.deps.Slots.GetScheduleSlotForUser(r.Context(), slotID, userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if slot == nil {
		writeError(w, http.StatusNotFound, "schedule slot not found")
		return
	}

	conflicts, err := s.deps.Slots.ValidateSlotConflicts(r.Context(), slotID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"slot_id":   slotID,
		"conflicts": conflicts,
	})
}

type assignVehicleRequest struct {
	VehicleID    int64  `json:"vehicle_id"`
	DriverID     *int64 `json:"driver_id"`
	SeatOverride *int   `json:"seat_override"`
}

func (s *Server) assignVehicle(w http.ResponseWriter, r *http.Request) {
	slotID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req assignVehicleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	slot, err := s.deps.Slots.AssignVehicleToSlot(r.Context(), service.AssignVehicleInput{
		SlotID:       slotID,
		VehicleID:    req.VehicleID,
		DriverID:     req.DriverID,
		SeatOverride: req.SeatOverride,
		ActingUserID: userID(r),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (s *Server) removeVehicle(w http.ResponseWriter, r *http.Request) {
	slotID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	vehicleID, err := pathID(r, "vehicleId")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	result, err := s.deps.Slots.RemoveVehicleFromSlot(r.Context(), slotID, vehicleID, userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type assignChildRequest struct {
	ChildID             int64 `json:"child_id"`
	VehicleAssignmentID int64 `json:"vehicle_assignment_id"`
}

func (s *Server) assignChild(w http.ResponseWriter, r *http.Request) {
	slotID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req assignChildRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	slot, err := s.deps.Slots.AssignChildToSlot(r.Context(), slotID, req.ChildID, req.VehicleAssignmentID, userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (s *Server) removeChild(w http.ResponseWriter, r *http.Request) {
	slotID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	childID, err := pathID(r, "childId")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	slot, err := s.deps.Slots.RemoveChildFromSlot(r.Context(), slotID, childID, userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

type driverRequest struct {
	DriverID *int64 `json:"driver_id"`
}

func (s *Server) updateDriver(w http.ResponseWriter, r *http.Request) {
	assignmentID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req driverRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	slot, err := s.deps.Slots.UpdateVehicleDriver(r.Context(), assignmentID, req.DriverID, userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

type seatOverrideRequest struct {
	SeatOverride *int `json:"seat_override"`
}

func (s *Server) updateSeatOverride(w http.ResponseWriter, r *http.Request) {
	assignmentID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req seatOverrideRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	slot, err := s.deps.Slots.UpdateSeatOverride(r.Context(), assignmentID, req.SeatOverride, userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}
