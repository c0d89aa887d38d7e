package services

import (
	"context"
	"time"

	"lendloop/internal/models"
	"lendloop/internal/notify"

	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// outbox collects notifications decided inside a transaction. They are sent
// only after the transaction commits.
type outbox struct {
	pending []notify.Notification
}

func (o *outbox) add(to *models.User, kind notify.Kind, payload map[string]any) {
	if to == nil || to.IsDeleted {
		return
	}
	o.pending = append(o.pending, notify.Notification{
		Recipient: recipientOf(to),
		Kind:      kind,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	})
}

func (o *outbox) reset() {
	o.pending = nil
}

// flush hands every collected notification to the sink. Delivery is best
// effort: failures are logged and never reach the caller.
func (o *outbox) flush(ctx context.Context, sink notify.Sink, log *zap.Logger) {
	for _, n := range o.pending {
		if err := sink.Send(ctx, n); err != nil {
			log.Warn("failed to send notification",
				zap.String("kind", string(n.Kind)),
				zap.String("recipient_id", n.Recipient.UserID),
				zap.Error(err))
		}
	}
	o.pending = nil
}

func recipientOf(u *models.User) notify.Recipient {
	return notify.Recipient{UserID: u.ID, Email: u.Email, Name: u.FullName()}
}

func loanPayload(req *models.LoanRequest, item *models.Item) map[string]any {
	return map[string]any{
		"loan_request_id": req.ID,
		"item_id":         item.ID,
		"item_name":       item.Name,
		"start_date":      req.StartDate.Format(dateLayout),
		"end_date":        req.EndDate.Format(dateLayout),
		"status":          string(req.Status),
	}
}
