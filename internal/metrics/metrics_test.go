package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordTransition(t *testing.T) {
	before := testutil.ToFloat64(loanTransitions.WithLabelValues("approved", "success"))
	RecordTransition("approved", nil)
	RecordTransition("approved", errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(loanTransitions.WithLabelValues("approved", "success")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(loanTransitions.WithLabelValues("approved", "error")), 1.0)
}

func TestRecordDeletionAndReminders(t *testing.T) {
	RecordDeletion(time.Now(), nil)
	assert.GreaterOrEqual(t, testutil.ToFloat64(accountDeletions.WithLabelValues("success")), 1.0)

	RecordReminder("due_soon")
	assert.GreaterOrEqual(t, testutil.ToFloat64(remindersSent.WithLabelValues("due_soon")), 1.0)

	RecordSweep(nil)
	assert.GreaterOrEqual(t, testutil.ToFloat64(reminderSweeps.WithLabelValues("success")), 1.0)
}
