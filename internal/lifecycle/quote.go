package lifecycle

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"quoteline/internal/domain"
)

// CheckSubmission validates a new bid against its order. Any vendor may bid
// on any open order; assignment does not gate eligibility.
func CheckSubmission(o domain.Order, amount decimal.Decimal) error {
	if err := domain.CheckMoney("amount", amount); err != nil {
		return err
	}
	if o.Status.Terminal() {
		return fmt.Errorf("%w: order %s is %s", domain.ErrOrderClosed, o.ID, o.Status)
	}
	return nil
}

// Review applies decision to a pending quote. Status, ReviewedAt and
// ReviewedBy change together. Approval still needs the single-winner guard
// at write time.
func Review(q domain.Quote, decision domain.Decision, reviewerID string, now time.Time) (domain.Quote, error) {
	if decision != domain.DecisionApprove && decision != domain.DecisionReject {
		return q, fmt.Errorf("%w: unknown decision %q", domain.ErrInvalidInput, decision)
	}
	if q.Status != domain.QuotePending {
		return q, fmt.Errorf("%w: quote %s is %s", domain.ErrAlreadyReviewed, q.ID, q.Status)
	}
	ts := domain.FormatTime(now)
	reviewer := reviewerID
	q.Status = decision.Status()
	q.ReviewedAt = &ts
	q.ReviewedBy = &reviewer
	return q, nil
}
