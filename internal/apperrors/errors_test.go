package apperrors_test

import (
	"errors"
	"fmt"
	"testing"

	"lendloop/internal/apperrors"

	"github.com/stretchr/testify/assert"
)

func TestTransitionError(t *testing.T) {
	err := apperrors.NewTransitionError("denied", "approved")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))
	assert.False(t, errors.Is(err, apperrors.ErrConflict))
	assert.Equal(t, "invalid transition from denied to approved", err.Error())

	var te *apperrors.TransitionError
	wrapped := fmt.Errorf("approve: %w", err)
	assert.True(t, errors.As(wrapped, &te))
	assert.Equal(t, "denied", te.From)
	assert.Equal(t, "approved", te.To)
}

func TestCascadeError(t *testing.T) {
	inner := apperrors.NotFound("user", "u-1")
	err := &apperrors.CascadeError{Step: "anonymize user", Err: inner}

	assert.True(t, errors.Is(err, apperrors.ErrCascadeStepFailed))
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Contains(t, err.Error(), `"anonymize user"`)
	assert.Contains(t, err.Error(), "u-1")
}

func TestHelpersWrapSentinels(t *testing.T) {
	assert.ErrorIs(t, apperrors.Forbidden("not the owner"), apperrors.ErrForbidden)
	assert.ErrorIs(t, apperrors.Conflict("overlap"), apperrors.ErrConflict)
	assert.ErrorIs(t, apperrors.Invalid("bad dates"), apperrors.ErrInvalid)
}
