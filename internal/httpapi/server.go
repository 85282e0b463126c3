// Package httpapi exposes the scheduling services over a JSON HTTP API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/Freeeeeet/schoolrun/internal/middleware"
	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/service"
	"go.uber.org/zap"
)

// Интерфейсы сервисов, которые использует API. Реализации - структуры из internal/service.

type ScheduleConfigs interface {
	GetDefaultScheduleHours() model.ScheduleHours
	GetScheduleConfig(ctx context.Context, groupID, actingUserID int64) (*model.ScheduleConfig, error)
	UpdateScheduleConfig(ctx context.Context, groupID int64, hours model.ScheduleHours, actingUserID int64) (*model.ScheduleConfig, error)
	ResetScheduleConfig(ctx context.Context, groupID, actingUserID int64) (*model.ScheduleConfig, error)
}

type Slots interface {
	CreateSlotWithVehicle(ctx context.Context, in service.CreateSlotInput) (*service.SlotDetails, error)
	AssignVehicleToSlot(ctx context.Context, in service.AssignVehicleInput) (*service.SlotDetails, error)
	RemoveVehicleFromSlot(ctx context.Context, slotID, vehicleID, actingUserID int64) (*service.RemoveVehicleResult, error)
	AssignChildToSlot(ctx context.Context, slotID, childID, vehicleAssignmentID, actingUserID int64) (*service.SlotDetails, error)
	RemoveChildFromSlot(ctx context.Context, slotID, childID, actingUserID int64) (*service.SlotDetails, error)
	UpdateVehicleDriver(ctx context.Context, vehicleAssignmentID int64, driverID *int64, actingUserID int64) (*service.SlotDetails, error)
	UpdateSeatOverride(ctx context.Context, vehicleAssignmentID int64, seatOverride *int, actingUserID int64) (*service.SlotDetails, error)
	GetScheduleSlotForUser(ctx context.Context, slotID, userID int64) (*service.SlotDetails, error)
	GetSchedule(ctx context.Context, groupID int64, start, end *time.Time, actingUserID int64) (*service.GroupSchedule, error)
	ValidateSlotConflicts(ctx context.Context, slotID int64) ([]model.ConflictType, error)
}

type Groups interface {
	CreateGroup(ctx context.Context, in service.CreateGroupInput) (*model.Group, error)
	GetGroup(ctx context.Context, groupID, userID int64) (*model.Group, error)
	ListUserGroups(ctx context.Context, userID int64) ([]*model.Group, error)
	AddFamily(ctx context.Context, groupID, familyID, actingUserID int64) error
}

type Families interface {
	AddChild(ctx context.Context, familyID int64, name string, age *int, actingUserID int64) (*model.Child, error)
	ListChildren(ctx context.Context, familyID, actingUserID int64) ([]*model.Child, error)
	AddVehicle(ctx context.Context, familyID int64, name string, capacity int, actingUserID int64) (*model.Vehicle, error)
	ListVehicles(ctx context.Context, familyID, actingUserID int64) ([]*model.Vehicle, error)
}

type Users interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	LinkTelegram(ctx context.Context, userID int64, chatID *int64) (*model.User, error)
}

type Dashboards interface {
	GetDashboard(ctx context.Context, userID int64) (*service.Dashboard, error)
	GetWeeklyDashboard(ctx context.Context, userID int64, ref *time.Time) (*service.WeeklyDashboard, error)
}

// Deps collects what the API server needs. Websocket may be nil.
type Deps struct {
	ScheduleConfigs ScheduleConfigs
	Slots           Slots
	Groups          Groups
	Families        Families
	Users           Users
	Dashboards      Dashboards
	Verifier        middleware.TokenVerifier
	Websocket       http.Handler
}

type Server struct {
	deps   Deps
	logger *zap.Logger
	now    func() time.Time
}

func NewServer(deps Deps, logger *zap.Logger) *Server {
	return &Server{deps: deps, logger: logger, now: time.Now}
}

// Router собирает все маршруты и цепочку middleware
func (s *Server) Router() http.Handler {
	outer := http.NewServeMux()
	outer.HandleFunc("GET /health", s.health)

	protected := http.NewServeMux()
	s.registerProtectedRoutes(protected)
	outer.Handle("/", middleware.RequireAuth(s.deps.Verifier, s.logger)(protected))

	return middleware.Chain(outer,
		middleware.RequestLogger(s.logger.Named("http")),
		middleware.Recoverer(s.logger),
	)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Schedule config
	mux.HandleFunc("GET /api/schedule-config/default", s.defaultScheduleConfig)
	mux.HandleFunc("GET /api/groups/{id}/schedule-config", s.getScheduleConfig)
	mux.HandleFunc("PUT /api/groups/{id}/schedule-config", s.updateScheduleConfig)
	mux.HandleFunc("POST /api/groups/{id}/schedule-config/reset", s.resetScheduleConfig)

	// Groups
	mux.HandleFunc("POST /api/groups", s.createGroup)
	mux.HandleFunc("GET /api/groups", s.listGroups)
	mux.HandleFunc("GET /api/groups/{id}", s.getGroup)
	mux.HandleFunc("POST /api/groups/{id}/families", s.addFamily)

	// Schedule
	mux.HandleFunc("GET /api/groups/{id}/schedule", s.getSchedule)
	mux.HandleFunc("GET /api/groups/{id}/schedule.png", s.getScheduleImage)
	mux.HandleFunc("POST /api/groups/{id}/schedule-slots", s.createSlot)
	mux.HandleFunc("GET /api/schedule-slots/{id}", s.getSlot)
	mux.HandleFunc("GET /api/schedule-slots/{id}/conflicts", s.getSlotConflicts)
	mux.HandleFunc("POST /api/schedule-slots/{id}/vehicles", s.assignVehicle)
	mux.HandleFunc("DELETE /api/schedule-slots/{id}/vehicles/{vehicleId}", s.removeVehicle)
	mux.HandleFunc("POST /api/schedule-slots/{id}/children", s.assignChild)
	mux.HandleFunc("DELETE /api/schedule-slots/{id}/children/{childId}", s.removeChild)
	mux.HandleFunc("PATCH /api/vehicle-assignments/{id}/driver", s.updateDriver)
	mux.HandleFunc("PATCH /api/vehicle-assignments/{id}/seat-override", s.updateSeatOverride)

	// Families
	mux.HandleFunc("GET /api/families/{id}/children", s.listChildren)
	mux.HandleFunc("POST /api/families/{id}/children", s.addChild)
	mux.HandleFunc("GET /api/families/{id}/vehicles", s.listVehicles)
	mux.HandleFunc("POST /api/families/{id}/vehicles", s.addVehicle)

	// Me
	mux.HandleFunc("GET /api/me", s.getMe)
	mux.HandleFunc("PUT /api/me/telegram", s.linkTelegram)

	// Dashboard
	mux.HandleFunc("GET /api/dashboard", s.getDashboard)
	mux.HandleFunc("GET /api/dashboard/weekly", s.getWeeklyDashboard)

	if s.deps.Websocket != nil {
		mux.Handle("GET /ws", s.deps.Websocket)
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
