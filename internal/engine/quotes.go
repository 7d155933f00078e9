package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"quoteline/internal/domain"
	"quoteline/internal/engine/auth"
	"quoteline/internal/events"
	"quoteline/internal/lifecycle"
	"quoteline/internal/repo"
)

// QuoteSubmitOptions are parameters for a vendor bid.
type QuoteSubmitOptions struct {
	OrderID        string
	Amount         decimal.Decimal
	Description    string
	DeliveryTime   string
	IdempotencyKey string
}

// SubmitQuote records a pending bid from the calling vendor. The order row is
// locked so the bid cannot land after a concurrent cancellation commits.
func (e Engine) SubmitQuote(ctx context.Context, p domain.Principal, opts QuoteSubmitOptions) (domain.Quote, error) {
	if err := auth.Authorize(p, auth.QuoteCreate, auth.Target{}); err != nil {
		return domain.Quote{}, err
	}
	if strings.TrimSpace(opts.OrderID) == "" {
		return domain.Quote{}, invalidInput("order_id is required")
	}
	if err := domain.CheckMoney("amount", opts.Amount); err != nil {
		return domain.Quote{}, err
	}
	request := struct {
		OrderID, Amount, Description, DeliveryTime string
	}{opts.OrderID, opts.Amount.String(), opts.Description, opts.DeliveryTime}

	return createOnce(ctx, e, p, string(auth.QuoteCreate), opts.IdempotencyKey, request,
		func(tx *sql.Tx) (domain.Quote, string, error) {
			if err := e.Repo.LockOrder(ctx, tx, opts.OrderID); err != nil {
				return domain.Quote{}, "", err
			}
			o, err := e.Repo.GetOrder(ctx, tx, opts.OrderID)
			if err != nil {
				return domain.Quote{}, "", err
			}
			if err := lifecycle.CheckSubmission(o, opts.Amount); err != nil {
				return domain.Quote{}, "", err
			}
			q := domain.Quote{
				ID:           uuid.NewString(),
				OrderID:      o.ID,
				VendorID:     p.ID,
				Amount:       opts.Amount,
				Description:  opts.Description,
				DeliveryTime: opts.DeliveryTime,
				Status:       domain.QuotePending,
				SubmittedAt:  domain.FormatTime(e.now()),
			}
			if err := e.Repo.InsertQuote(ctx, tx, q); err != nil {
				return q, "", fmt.Errorf("insert quote: %w", err)
			}
			if err := e.appendEvent(ctx, tx, events.QuoteSubmitted, "quote", q.ID, p.ID, events.EventPayload{
				"order_id": q.OrderID,
				"amount":   q.Amount.String(),
			}); err != nil {
				return q, "", err
			}
			return q, q.ID, nil
		},
		func(tx *sql.Tx, id string) (domain.Quote, error) {
			return e.Repo.GetQuote(ctx, tx, id)
		})
}

// GetQuote returns one quote. Vendors only see their own.
func (e Engine) GetQuote(ctx context.Context, p domain.Principal, id string) (domain.Quote, error) {
	if err := auth.Authorize(p, auth.QuoteRead, auth.Target{}); err != nil {
		return domain.Quote{}, err
	}
	q, err := e.Repo.GetQuote(ctx, nil, id)
	if err != nil {
		return domain.Quote{}, storageError(err)
	}
	if err := auth.Authorize(p, auth.QuoteRead, auth.Target{Quote: &q}); err != nil {
		return domain.Quote{}, err
	}
	return q, nil
}

type QuoteListOptions struct {
	ListOptions
	OrderID string
	Status  domain.QuoteStatus
}

func (e Engine) ListQuotes(ctx context.Context, p domain.Principal, opts QuoteListOptions) (QuotePage, error) {
	if err := auth.Authorize(p, auth.QuoteRead, auth.Target{}); err != nil {
		return QuotePage{}, err
	}
	page := e.page(opts.ListOptions)
	items, total, err := e.Repo.ListQuotes(ctx, repo.QuoteFilters{
		VendorID: auth.ListScope(p).VendorID,
		OrderID:  opts.OrderID,
		Status:   opts.Status,
		Page:     page,
	})
	if err != nil {
		return QuotePage{}, storageError(err)
	}
	return QuotePage{Items: items, Pagination: domain.NewPagination(page.Page, page.Limit, total)}, nil
}

// ReviewQuote approves or rejects a pending quote. An order has at most one
// approved quote: the approval write is conditional on no sibling being
// approved, and the store's unique index refuses a second winner that races
// past that condition.
func (e Engine) ReviewQuote(ctx context.Context, p domain.Principal, id string, decision domain.Decision) (domain.Quote, error) {
	if err := auth.Authorize(p, auth.QuoteReview, auth.Target{}); err != nil {
		return domain.Quote{}, err
	}
	var out domain.Quote
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		q, err := e.Repo.GetQuote(ctx, tx, id)
		if err != nil {
			return err
		}
		if decision == domain.DecisionApprove {
			if err := e.Repo.LockOrder(ctx, tx, q.OrderID); err != nil {
				return err
			}
		}
		reviewed, err := lifecycle.Review(q, decision, p.ID, e.now())
		if err != nil {
			return err
		}

		var applied bool
		switch decision {
		case domain.DecisionApprove:
			applied, err = e.Repo.ApproveQuote(ctx, tx, id, q.OrderID, p.ID, *reviewed.ReviewedAt)
			if errors.Is(err, repo.ErrDuplicate) {
				return fmt.Errorf("%w: order %s already has an approved quote", domain.ErrOrderAlreadyAwarded, q.OrderID)
			}
		default:
			applied, err = e.Repo.RejectQuote(ctx, tx, id, p.ID, *reviewed.ReviewedAt)
		}
		if err != nil {
			return err
		}
		if !applied {
			return e.explainReviewMiss(ctx, tx, id, q.OrderID)
		}

		evt := events.QuoteRejected
		if decision == domain.DecisionApprove {
			evt = events.QuoteApproved
		}
		if err := e.appendEvent(ctx, tx, evt, "quote", id, p.ID, events.EventPayload{
			"order_id":  q.OrderID,
			"vendor_id": q.VendorID,
			"amount":    q.Amount.String(),
		}); err != nil {
			return err
		}
		out = reviewed
		return nil
	})
	return out, err
}

// explainReviewMiss reports why a conditional review write matched no row.
func (e Engine) explainReviewMiss(ctx context.Context, tx *sql.Tx, id, orderID string) error {
	current, err := e.Repo.GetQuote(ctx, tx, id)
	if err != nil {
		return err
	}
	if current.Status != domain.QuotePending {
		return fmt.Errorf("%w: quote %s is %s", domain.ErrAlreadyReviewed, id, current.Status)
	}
	winner, err := e.Repo.ApprovedQuoteID(ctx, tx, orderID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: order %s awarded to quote %s", domain.ErrOrderAlreadyAwarded, orderID, winner)
}
