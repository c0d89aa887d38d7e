package handlers

import (
	"context"

	"lendloop/internal/models"
	"lendloop/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// LoanHandler handles HTTP requests for loan requests.
type LoanHandler struct {
	service  *services.LoanService
	validate *validator.Validate
}

// NewLoanHandler creates a new LoanHandler.
func NewLoanHandler(service *services.LoanService) *LoanHandler {
	return &LoanHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the loan routes behind the auth middleware.
func (h *LoanHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	loanRoutes := router.Group("/loans", auth)
	loanRoutes.Post("/", h.HandleRequest)
	loanRoutes.Get("/:id", h.HandleGet)
	loanRoutes.Post("/:id/approve", h.transition(h.service.Approve, "Could not approve loan request"))
	loanRoutes.Post("/:id/deny", h.transition(h.service.Deny, "Could not deny loan request"))
	loanRoutes.Post("/:id/cancel", h.transition(h.service.Cancel, "Could not cancel loan request"))
	loanRoutes.Post("/:id/complete", h.transition(h.service.MarkCompleted, "Could not complete loan"))
	loanRoutes.Post("/:id/extend", h.HandleExtend)

	router.Get("/items/:id/availability", auth, h.HandleAvailability)
}

// CreateLoanRequest represents the request body for borrowing an item.
type CreateLoanRequest struct {
	ItemID    string `json:"item_id" validate:"required"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Message   string `json:"message" validate:"omitempty,max=2000"`
}

// HandleRequest creates a pending loan request.
func (h *LoanHandler) HandleRequest(c *fiber.Ctx) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	var req CreateLoanRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		return respondError(c, err, "Invalid start date")
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		return respondError(c, err, "Invalid end date")
	}

	loan, err := h.service.Request(c.UserContext(), actor, req.ItemID, start, end, req.Message)
	if err != nil {
		return respondError(c, err, "Could not request loan")
	}
	return c.Status(fiber.StatusCreated).JSON(loan)
}

// HandleGet returns a loan request to one of its parties.
func (h *LoanHandler) HandleGet(c *fiber.Ctx) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	loan, err := h.service.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return respondError(c, err, "Could not retrieve loan request")
	}
	return c.JSON(loan)
}

type transitionFunc func(ctx context.Context, actor models.Actor, requestID string) (*models.LoanRequest, error)

func (h *LoanHandler) transition(fn transitionFunc, failure string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok, err := currentActor(c)
		if !ok {
			return err
		}
		loan, err := fn(c.UserContext(), actor, c.Params("id"))
		if err != nil {
			return respondError(c, err, failure)
		}
		return c.JSON(loan)
	}
}

// ExtendLoanRequest represents the request body for moving a loan's end date.
type ExtendLoanRequest struct {
	EndDate string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Message string `json:"message" validate:"omitempty,max=2000"`
}

// HandleExtend changes the end date of an approved loan.
func (h *LoanHandler) HandleExtend(c *fiber.Ctx) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	var req ExtendLoanRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		return respondError(c, err, "Invalid end date")
	}

	loan, err := h.service.Extend(c.UserContext(), actor, c.Params("id"), end, req.Message)
	if err != nil {
		return respondError(c, err, "Could not change loan end date")
	}
	return c.JSON(loan)
}

// HandleAvailability reports whether an item can currently be borrowed.
func (h *LoanHandler) HandleAvailability(c *fiber.Ctx) error {
	itemID := c.Params("id")
	available, err := h.service.ItemAvailability(c.UserContext(), itemID)
	if err != nil {
		return respondError(c, err, "Could not retrieve item availability")
	}
	return c.JSON(fiber.Map{
		"item_id":   itemID,
		"available": available,
	})
}
