package handlers

import (
	"lendloop/internal/services"

	"github.com/gofiber/fiber/v2"
)

// MessageHandler handles HTTP requests for the caller's in-app messages.
type MessageHandler struct {
	service *services.MessageService
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(service *services.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

// RegisterRoutes registers the message routes behind the auth middleware.
func (h *MessageHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	messageRoutes := router.Group("/messages", auth)
	messageRoutes.Get("/unread-count", h.HandleUnreadCount)
	messageRoutes.Post("/:id/read", h.HandleMarkRead)
}

// HandleUnreadCount returns the number of unread messages for the caller.
func (h *MessageHandler) HandleUnreadCount(c *fiber.Ctx) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	n, err := h.service.UnreadCount(c.UserContext(), actor)
	if err != nil {
		return respondError(c, err, "Could not count messages")
	}
	return c.JSON(fiber.Map{"unread": n})
}

// HandleMarkRead marks one of the caller's messages as read.
func (h *MessageHandler) HandleMarkRead(c *fiber.Ctx) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	if err := h.service.MarkRead(c.UserContext(), actor, c.Params("id")); err != nil {
		return respondError(c, err, "Could not mark message read")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
