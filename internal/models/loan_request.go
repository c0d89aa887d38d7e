package models

import "time"

// LoanStatus is the lifecycle state of a LoanRequest.
type LoanStatus string

const (
	LoanPending   LoanStatus = "pending"
	LoanApproved  LoanStatus = "approved"
	LoanDenied    LoanStatus = "denied"
	LoanCanceled  LoanStatus = "canceled"
	LoanCompleted LoanStatus = "completed"
)

// DueSoonWindowDays is how many days before the end date a loan counts as due soon.
const DueSoonWindowDays = 3

// transitions lists every permitted status change.
var transitions = map[LoanStatus][]LoanStatus{
	LoanPending:  {LoanApproved, LoanDenied, LoanCanceled},
	LoanApproved: {LoanCompleted},
}

// CanTransition reports whether a request may move from one status to another.
func CanTransition(from, to LoanStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s.
func (s LoanStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Valid reports whether s is a known status.
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanPending, LoanApproved, LoanDenied, LoanCanceled, LoanCompleted:
		return true
	}
	return false
}

// LoanRequest is one user's request to borrow an item over a date range.
//
// BorrowerID is nullable at the schema level. Account deletion keeps it
// pointing at the anonymized, soft-deleted user so the owner's history stays
// intact. Version is bumped on every status
// change and guards concurrent transitions.
type LoanRequest struct {
	ID                      string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ItemID                  string     `json:"item_id" gorm:"type:varchar(36);not null;index"`
	BorrowerID              *string    `json:"borrower_id" gorm:"type:varchar(36);index"`
	StartDate               time.Time  `json:"start_date" gorm:"not null"`
	EndDate                 time.Time  `json:"end_date" gorm:"not null;index"`
	Status                  LoanStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Version                 int        `json:"version" gorm:"not null;default:0"`
	DueSoonReminderSent     *time.Time `json:"due_soon_reminder_sent,omitempty"`
	DueDateReminderSent     *time.Time `json:"due_date_reminder_sent,omitempty"`
	LastOverdueReminderSent *time.Time `json:"last_overdue_reminder_sent,omitempty"`
	OverdueReminderCount    int        `json:"overdue_reminder_count" gorm:"not null;default:0"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// IsBorrowedBy reports whether userID is the request's borrower.
func (r *LoanRequest) IsBorrowedBy(userID string) bool {
	return r.BorrowerID != nil && *r.BorrowerID == userID
}

// DaysUntilDue is the signed number of calendar days from today to the end date.
func (r *LoanRequest) DaysUntilDue(today time.Time) int {
	return DaysBetween(today, r.EndDate)
}

// IsDueSoon reports whether the loan ends within the next DueSoonWindowDays days,
// not counting today.
func (r *LoanRequest) IsDueSoon(today time.Time) bool {
	d := r.DaysUntilDue(today)
	return d > 0 && d <= DueSoonWindowDays
}

// IsDueToday reports whether the loan ends today.
func (r *LoanRequest) IsDueToday(today time.Time) bool {
	return r.DaysUntilDue(today) == 0
}

// IsOverdue reports whether the end date has passed.
func (r *LoanRequest) IsOverdue(today time.Time) bool {
	return r.DaysUntilDue(today) < 0
}

// DaysOverdue is how many days past the end date the loan is, or zero.
func (r *LoanRequest) DaysOverdue(today time.Time) int {
	if d := r.DaysUntilDue(today); d < 0 {
		return -d
	}
	return 0
}

// IsActive reports whether the request is an approved loan that has not yet ended.
func (r *LoanRequest) IsActive(today time.Time) bool {
	return r.Status == LoanApproved && !r.IsOverdue(today)
}

// Overlaps compares the date ranges of two requests as half-open intervals, so a
// loan ending on day D does not collide with one starting on day D. A single-day
// range [D, D] is treated as [D, D+1).
func (r *LoanRequest) Overlaps(start, end time.Time) bool {
	aStart, aEnd := span(r.StartDate, r.EndDate)
	bStart, bEnd := span(start, end)
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func span(start, end time.Time) (time.Time, time.Time) {
	start, end = Date(start), Date(end)
	if !end.After(start) {
		end = start.AddDate(0, 0, 1)
	}
	return start, end
}

// ResetReminders clears every reminder marker, e.g. after the end date moves.
func (r *LoanRequest) ResetReminders() {
	r.DueSoonReminderSent = nil
	r.DueDateReminderSent = nil
	r.LastOverdueReminderSent = nil
	r.OverdueReminderCount = 0
}

// Date truncates t to midnight UTC of its calendar day.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Date(b).Sub(Date(a)).Hours() / 24)
}
