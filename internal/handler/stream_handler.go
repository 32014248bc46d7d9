package handler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"slingshot-be/internal/pkg/logger"
	"slingshot-be/internal/service"
	internalWS "slingshot-be/internal/websocket"
	"slingshot-be/pkg/research/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// StreamHandler upgrades /ws/<mode>/:id requests and streams the session's
// events over the connection.
type StreamHandler struct {
	service service.IResearchService
	hub     *internalWS.Hub
	grace   time.Duration
	logger  logger.ILogger
}

func NewStreamHandler(service service.IResearchService, hub *internalWS.Hub, grace time.Duration, log logger.ILogger) *StreamHandler {
	return &StreamHandler{
		service: service,
		hub:     hub,
		grace:   grace,
		logger:  log,
	}
}

// ServeWs returns a handler for one mode. Unknown sessions and sessions of
// another mode get 404 before the upgrade.
func (h *StreamHandler) ServeWs(mode domain.Mode) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// The upgrade outlives c, so keep our own copy of the id.
		id := strings.Clone(c.Params("id"))
		if _, err := h.service.Get(c.UserContext(), mode, id); err != nil {
			return err
		}
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		since, _ := strconv.ParseUint(c.Query("since"), 10, 64)

		return websocket.New(func(conn *websocket.Conn) {
			sub, err := h.service.Subscribe(context.Background(), mode, id, since)
			if err != nil {
				// Evicted between the check and the upgrade.
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session not found"))
				return
			}

			h.logger.Info("StreamHandler", "Starting WebSocket session", map[string]interface{}{"session_id": id, "mode": mode})
			client := internalWS.NewClient(h.hub, conn, id, sub, h.grace, func() { h.service.Touch(id) }, h.logger)
			internalWS.ServeWs(client)
			h.logger.Info("StreamHandler", "WebSocket session ended", map[string]interface{}{"session_id": id})
		})(c)
	}
}

// RegisterRoutes registers the stream routes on the app root. Browsers cannot
// set headers on an upgrade, so auth middleware here should accept ?token=.
func (h *StreamHandler) RegisterRoutes(router fiber.Router, middleware ...fiber.Handler) {
	ws := router.Group("/ws", middleware...)
	ws.Get("/research/:id", h.ServeWs(domain.ModeResearch))
	ws.Get("/macro/:id", h.ServeWs(domain.ModeMacro))
	ws.Get("/portfolio/:id", h.ServeWs(domain.ModePortfolio))
}
