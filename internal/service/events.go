package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/circulation/internal/domain/loan"
	"github.com/Strob0t/circulation/internal/domain/override"
	"github.com/Strob0t/circulation/internal/port/messagequeue"
)

// publish sends payload on subject. The change it describes is already
// committed, so a failed publish is logged and not returned.
func publish(ctx context.Context, q messagequeue.Queue, subject string, payload any) {
	if q == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal event payload", "subject", subject, "error", err)
		return
	}
	if err := q.Publish(ctx, subject, data); err != nil {
		slog.ErrorContext(ctx, "failed to publish event", "subject", subject, "error", err)
	}
}

func publishOverrides(ctx context.Context, q messagequeue.Queue, subjectID string, applied []override.Applied) {
	for _, ap := range applied {
		publish(ctx, q, messagequeue.SubjectOverrideApplied, messagequeue.OverrideAppliedPayload{
			Block:      string(ap.Block),
			Permission: ap.Permission,
			Operation:  ap.Operation,
			Comment:    ap.Comment,
			OperatorID: ap.OperatorID,
			SubjectID:  subjectID,
			At:         ap.At,
		})
	}
}

func loanPayload(l *loan.Loan, operatorID string) messagequeue.LoanPayload {
	return messagequeue.LoanPayload{
		LoanID:     l.ID,
		ItemID:     l.ItemID,
		UserID:     l.UserID,
		Action:     string(l.Action),
		DueDate:    l.DueDate,
		Renewals:   l.RenewalCount,
		OperatorID: operatorID,
	}
}
