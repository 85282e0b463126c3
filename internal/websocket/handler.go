package websocket

import (
	"context"
	"net/http"

	ws "github.com/coder/websocket"
	"go.uber.org/zap"
)

// GroupLister returns the group IDs a user may receive events for.
type GroupLister interface {
	GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error)
}

// UserFromRequest извлекает ID аутентифицированного пользователя
type UserFromRequest func(r *http.Request) (int64, bool)

// Handler upgrades authenticated requests and runs them as hub clients.
func Handler(hub *Hub, groups GroupLister, userOf UserFromRequest, allowedOrigins []string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userOf(r)
		if !ok {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}

		groupIDs, err := groups.GroupIDsForUser(r.Context(), userID)
		if err != nil {
			logger.Error("Failed to load websocket subscriptions", zap.Int64("user_id", userID), zap.Error(err))
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: allowedOrigins,
		})
		if err != nil {
			logger.Warn("Websocket accept failed", zap.Error(err))
			return
		}

		NewClient(hub, conn, userID, groupIDs).Run(r.Context())
	}
}
