package handlers

import (
	"lendloop/internal/models"
	"lendloop/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// CircleHandler handles HTTP requests for circles and their membership.
type CircleHandler struct {
	service  *services.CircleService
	validate *validator.Validate
}

// NewCircleHandler creates a new CircleHandler.
func NewCircleHandler(service *services.CircleService) *CircleHandler {
	return &CircleHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the circle routes behind the auth middleware.
func (h *CircleHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	circleRoutes := router.Group("/circles", auth)
	circleRoutes.Post("/", h.HandleCreate)
	circleRoutes.Post("/:id/join", h.HandleJoin)
	circleRoutes.Post("/:id/requests", h.HandleRequestToJoin)
	circleRoutes.Post("/:id/leave", h.HandleLeave)
	circleRoutes.Put("/:id/members/:userId/admin", h.HandleSetAdmin)
	circleRoutes.Post("/requests/:requestId/review", h.HandleReview)
}

// CreateCircleRequest represents the request body for creating a circle.
type CreateCircleRequest struct {
	Name             string `json:"name" validate:"required,max=100"`
	Description      string `json:"description" validate:"omitempty,max=2000"`
	Visibility       string `json:"visibility" validate:"omitempty,oneof=public private unlisted"`
	RequiresApproval bool   `json:"requires_approval"`
}

// HandleCreate creates a circle administered by the caller.
func (h *CircleHandler) HandleCreate(c *fiber.Ctx) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	var req CreateCircleRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}

	circle := models.Circle{
		Name:             req.Name,
		Description:      req.Description,
		Visibility:       models.Visibility(req.Visibility),
		RequiresApproval: req.RequiresApproval,
	}
	if err := h.service.Create(c.UserContext(), actor, &circle); err != nil {
		return respondError(c, err, "Could not create circle")
	}
	return c.Status(fiber.StatusCreated).JSON(circle)
}

// HandleJoin adds the caller to an open circle.
func (h *CircleHandler) HandleJoin(c *fiber.Ctx) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	member, err := h.service.Join(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return respondError(c, err, "Could not join circle")
	}
	return c.Status(fiber.StatusCreated).JSON(member)
}

// JoinCircleRequest represents the request body for asking to join a circle.
type JoinCircleRequest struct {
	Message string `json:"message" validate:"omitempty,max=1000"`
}

// HandleRequestToJoin files a join request for a circle that requires approval.
func (h *CircleHandler) HandleRequestToJoin(c *fiber.Ctx) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	var req JoinCircleRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}
	joinReq, err := h.service.RequestToJoin(c.UserContext(), actor, c.Params("id"), req.Message)
	if err != nil {
		return respondError(c, err, "Could not request to join circle")
	}
	return c.Status(fiber.StatusCreated).JSON(joinReq)
}

// ReviewJoinRequest represents an admin's decision on a join request.
type ReviewJoinRequest struct {
	Approve *bool `json:"approve" validate:"required"`
}

// HandleReview approves or rejects a pending join request.
func (h *CircleHandler) HandleReview(c *fiber.Ctx) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	var req ReviewJoinRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}
	joinReq, err := h.service.ReviewJoinRequest(c.UserContext(), actor, c.Params("requestId"), *req.Approve)
	if err != nil {
		return respondError(c, err, "Could not review join request")
	}
	return c.JSON(joinReq)
}

// HandleLeave removes the caller from a circle.
func (h *CircleHandler) HandleLeave(c *fiber.Ctx) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	res, err := h.service.Leave(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return respondError(c, err, "Could not leave circle")
	}
	body := fiber.Map{
		"message":        "Left circle",
		"circle_deleted": res.CircleDeleted,
	}
	if res.Successor != nil {
		body["new_admin_id"] = res.Successor.UserID
	}
	return c.JSON(body)
}

// SetAdminRequest grants or revokes a member's admin rights.
type SetAdminRequest struct {
	IsAdmin *bool `json:"is_admin" validate:"required"`
}

// HandleSetAdmin changes another member's admin rights. Circle admins only.
func (h *CircleHandler) HandleSetAdmin(c *fiber.Ctx) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	var req SetAdminRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}
	member, err := h.service.SetMemberAdmin(c.UserContext(), actor, c.Params("id"), c.Params("userId"), *req.IsAdmin)
	if err != nil {
		return respondError(c, err, "Could not change admin rights")
	}
	return c.JSON(member)
}
