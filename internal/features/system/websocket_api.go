package system

import (
	"go-edu/internal/common/api"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type WebSocketApi struct {
	Hub *Hub
}

func NewWebSocketApi(hub *Hub) api.Route {
	return &WebSocketApi{Hub: hub}
}

func (h *WebSocketApi) Setup(app *fiber.App) {
	app.Get("/api/ws/approvals", websocket.New(h.Hub.HandleConnection))
}
