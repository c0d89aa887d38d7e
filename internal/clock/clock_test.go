package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixed(t *testing.T) {
	c := NewFixed(time.Date(2025, 6, 10, 22, 15, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), Today(c))

	c.Advance(2 * time.Hour)
	assert.Equal(t, time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC), Today(c))

	c.Set(time.Date(2024, 2, 29, 1, 0, 0, 0, time.UTC))
	assert.Equal(t, 29, Today(c).Day())
}

func TestReal_IsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, Real{}.Now().Location())
}
