package handlers

import (
	"lendloop/internal/middleware"
	"lendloop/internal/services"

	"github.com/gofiber/fiber/v2"
)

// AccountHandler handles account deletion and the admin maintenance routes.
type AccountHandler struct {
	auth      *services.AuthService
	deletion  *services.AccountDeletionService
	reminders *services.ReminderService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(auth *services.AuthService, deletion *services.AccountDeletionService, reminders *services.ReminderService) *AccountHandler {
	return &AccountHandler{
		auth:      auth,
		deletion:  deletion,
		reminders: reminders,
	}
}

// RegisterRoutes registers the account routes behind the auth middleware.
func (h *AccountHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	router.Delete("/account", auth, h.HandleDeleteSelf)

	adminRoutes := router.Group("/admin", auth, middleware.AdminRequired(h.auth))
	adminRoutes.Delete("/users/:id", h.HandleDeleteUser)
	adminRoutes.Post("/reminders/sweep", h.HandleSweep)
}

// HandleDeleteSelf deletes the caller's own account.
func (h *AccountHandler) HandleDeleteSelf(c *fiber.Ctx) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	report, err := h.deletion.DeleteAccount(c.UserContext(), actor, actor.UserID)
	if err != nil {
		return respondError(c, err, "Could not delete account")
	}
	return c.JSON(fiber.Map{
		"message": "Account deleted",
		"report":  report,
	})
}

// HandleDeleteUser deletes another user's account on behalf of a site admin.
func (h *AccountHandler) HandleDeleteUser(c *fiber.Ctx) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	userID := c.Params("id")
	if userID == actor.UserID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Use DELETE /account to delete your own account",
		})
	}
	report, err := h.deletion.DeleteAccount(c.UserContext(), actor, userID)
	if err != nil {
		return respondError(c, err, "Could not delete user")
	}
	return c.JSON(fiber.Map{
		"message": "User deleted",
		"report":  report,
	})
}

// HandleSweep runs one reminder sweep immediately.
func (h *AccountHandler) HandleSweep(c *fiber.Ctx) error {
	stats, err := h.reminders.Sweep(c.UserContext())
	if err != nil {
		return respondError(c, err, "Reminder sweep failed")
	}
	return c.JSON(stats)
}
