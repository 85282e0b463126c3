package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Freeeeeet/schoolrun/internal/auth"
	"github.com/Freeeeeet/schoolrun/internal/model"
	"github.com/Freeeeeet/schoolrun/internal/timeutil"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error     string            `json:"error"`
	Conflicts []model.SlotInUse `json:"conflicts,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError переводит доменную ошибку в HTTP статус
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation    *model.ValidationError
		permission    *model.PermissionError
		notFound      *model.NotFoundError
		pastDate      *model.PastDateError
		notConfigured *model.NotConfiguredError
		noConfig      *model.NoConfigError
		inUse         *model.SlotsInUseError
		conflict      *model.ConflictError
	)

	switch {
	case errors.As(err, &validation),
		errors.As(err, &notConfigured),
		errors.As(err, &noConfig),
		errors.Is(err, timeutil.ErrInvalidDate),
		errors.Is(err, timeutil.ErrInvalidTimezone):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &permission):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &inUse):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Conflicts: inUse.Conflicts})
	case errors.As(err, &pastDate), errors.As(err, &conflict):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON читает тело запроса; неизвестные поля отклоняются
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return model.NewValidationError("invalid JSON body: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError("invalid %s %q", name, raw)
	}
	return id, nil
}

// queryTime разбирает необязательный параметр даты
func queryTime(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := timeutil.ParseInstant(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &t, nil
}

// userID достаёт пользователя, положенного в контекст middleware.RequireAuth
func userID(r *http.Request) int64 {
	id, _ := auth.UserIDFrom(r.Context())
	return id
}
