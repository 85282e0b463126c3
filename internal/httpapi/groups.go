package httpapi

import (
	"net/http"

	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/service"
)

type createGroupRequest struct {
	Name           string                `json:"name"`
	FamilyID       int64                 `json:"family_id"`
	Timezone       string                `json:"timezone"`
	OperatingHours *model.OperatingHours `json:"operating_hours"`
}

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	group, err := s.deps.Groups.CreateGroup(r.Context(), service.CreateGroupInput{
		Name:           req.Name,
		FamilyID:       req.FamilyID,
		Timezone:       req.Timezone,
		OperatingHours: req.OperatingHours,
		ActingUserID:   userID(r),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.deps.Groups.ListUserGroups(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	group, err := s.deps.Groups.GetGroup(r.Context(), groupID, userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

type addFamilyRequest struct {
	FamilyID int64 `json:"family_id"`
}

func (s *Server) addFamily(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req addFamilyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if err := s.deps.Groups.AddFamily(r.Context(), groupID, req.FamilyID, userID(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- families ---

func (s *Server) listChildren(w http.ResponseWriter, r *http.Request) {
	familyID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	children, err := s.deps.Families.ListChildren(r.Context(), familyID, userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}

type addChildRequest struct {
	Name string `json:"name"`
	Age  *int   `json:"age"`
}

func (s *Server) addChild(w http.ResponseWriter, r *http.Request) {
	familyID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req addChildRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	child, err := s.deps.Families.AddChild(r.Context(), familyID, req.Name, req.Age, userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, child)
}

func (s *Server) listVehicles(w http.ResponseWriter, r *http.Request) {
	familyID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	vehicles, err := s.deps.Families.ListVehicles(r.Context(), familyID, userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicles)
}

type addVehicleRequest struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

func (s *Server) addVehicle(w http.ResponseWriter, r *http.Request) {
	familyID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req addVehicleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	vehicle, err := s.deps.Families.AddVehicle(r.Context(), familyID, req.Name, req.Capacity, userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, vehicle)
}
