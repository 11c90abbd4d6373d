package ws

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tcriess/lightspeed-poker/globals"
	"github.com/tcriess/lightspeed-poker/room"
	"github.com/tcriess/lightspeed-poker/types"
)

// Handler upgrades incoming HTTP requests to websocket connections.
// Each connection becomes one participant with a fresh connection id.
type Handler struct {
	registry *room.Registry
	upgrader websocket.Upgrader
}

func NewHandler(registry *room.Registry, allowedOrigins []string) *Handler {
	checkOrigin := func(r *http.Request) bool { return true }
	if len(allowedOrigins) > 0 {
		allowed := make(map[string]struct{}, len(allowedOrigins))
		for _, origin := range allowedOrigins {
			allowed[origin] = struct{}{}
		}
		checkOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // non-browser client
			}
			_, ok := allowed[origin]
			return ok
		}
	}
	return &Handler{
		registry: registry,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		globals.AppLogger.Error("websocket upgrade error", "error", err)
		return
	}
	user := &types.User{Id: uuid.NewString()}
	globals.AppLogger.Debug("connection established", "user", user.Id)
	client := NewClient(h.registry, conn, user)
	go client.WriteLoop()
	client.ReadLoop()
}
