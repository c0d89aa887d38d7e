package handlers

import (
	"errors"
	"fmt"
	"time"

	"lendloop/internal/apperrors"
	"lendloop/internal/middleware"
	"lendloop/internal/models"
	"lendloop/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// statusFor maps domain error kinds to HTTP status codes. A failed deletion
// step is matched first: whatever it wraps, the account itself was found. A
// step that lost a race with a concurrent change is 409, anything else 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrCascadeStepFailed):
		if errors.Is(err, apperrors.ErrConflict) || errors.Is(err, apperrors.ErrInvalidTransition) ||
			errors.Is(err, apperrors.ErrNotFound) {
			return fiber.StatusConflict
		}
		return fiber.StatusInternalServerError
	case errors.Is(err, apperrors.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, apperrors.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, apperrors.ErrInvalidTransition), errors.Is(err, apperrors.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, apperrors.ErrInvalid):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err as a JSON error body with the matching status.
func respondError(c *fiber.Ctx, err error, message string) error {
	status := statusFor(err)
	log := logger.FromFiber(c)
	if status >= fiber.StatusInternalServerError {
		log.Error(message, zap.Error(err))
	} else {
		log.Debug(message, zap.Int("status", status), zap.Error(err))
	}

	body := fiber.Map{
		"message": message,
		"error":   err.Error(),
	}
	var ce *apperrors.CascadeError
	if errors.As(err, &ce) {
		body["step"] = ce.Step
	}
	return c.Status(status).JSON(body)
}

func badBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"error":   err.Error(),
	})
}

// validationFailed renders validator errors per field.
func validationFailed(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return badBody(c, err)
	}
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}

// bind decodes and validates the request body into v. When it reports false
// the error response has already been written and err is what the handler
// should return.
func bind(c *fiber.Ctx, validate *validator.Validate, v any) (bool, error) {
	if err := c.BodyParser(v); err != nil {
		return false, badBody(c, err)
	}
	if err := validate.Struct(v); err != nil {
		return false, validationFailed(c, err)
	}
	return true, nil
}

// currentActor returns the authenticated actor. When it reports false a 401
// has already been written.
func currentActor(c *fiber.Ctx) (models.Actor, bool, error) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return models.Actor{}, false, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authentication required",
		})
	}
	return actor, true, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, apperrors.Invalid(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", s))
	}
	return t, nil
}
