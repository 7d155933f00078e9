package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"quoteline/internal/domain"
	"quoteline/internal/engine/auth"
	"quoteline/internal/events"
	"quoteline/internal/lifecycle"
	"quoteline/internal/repo"
)

// OrderCreateOptions are parameters for creating an order.
type OrderCreateOptions struct {
	Title          string
	Description    string
	Category       string
	Budget         decimal.Decimal
	Deadline       string
	Priority       domain.Priority
	IdempotencyKey string
}

func (e Engine) CreateOrder(ctx context.Context, p domain.Principal, opts OrderCreateOptions) (domain.Order, error) {
	if err := auth.Authorize(p, auth.OrderCreate, auth.Target{}); err != nil {
		return domain.Order{}, err
	}
	opts.Title = strings.TrimSpace(opts.Title)
	if opts.Title == "" {
		return domain.Order{}, invalidInput("title is required")
	}
	if err := domain.CheckMoney("budget", opts.Budget); err != nil {
		return domain.Order{}, err
	}
	deadline, err := time.Parse(time.RFC3339, opts.Deadline)
	if err != nil {
		return domain.Order{}, invalidInput("deadline must be an RFC 3339 timestamp")
	}
	if opts.Priority == "" {
		opts.Priority = domain.PriorityMedium
	}
	if !opts.Priority.Valid() {
		return domain.Order{}, invalidInput("priority %q is not one of low, medium, high", opts.Priority)
	}
	request := struct {
		Title, Description, Category, Budget, Deadline, Priority string
	}{opts.Title, opts.Description, opts.Category, opts.Budget.String(), domain.FormatTime(deadline), string(opts.Priority)}

	return createOnce(ctx, e, p, string(auth.OrderCreate), opts.IdempotencyKey, request,
		func(tx *sql.Tx) (domain.Order, string, error) {
			now := domain.FormatTime(e.now())
			o := domain.Order{
				ID:              uuid.NewString(),
				Title:           opts.Title,
				Description:     opts.Description,
				Category:        opts.Category,
				Budget:          opts.Budget,
				Deadline:        domain.FormatTime(deadline),
				Priority:        opts.Priority,
				Status:          domain.OrderPending,
				CreatedBy:       p.ID,
				AssignedVendors: []string{},
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := e.Repo.InsertOrder(ctx, tx, o); err != nil {
				return o, "", fmt.Errorf("insert order: %w", err)
			}
			if err := e.appendEvent(ctx, tx, events.OrderCreated, "order", o.ID, p.ID, events.EventPayload{
				"title":  o.Title,
				"budget": o.Budget.String(),
				"status": o.Status,
			}); err != nil {
				return o, "", err
			}
			return o, o.ID, nil
		},
		func(tx *sql.Tx, id string) (domain.Order, error) {
			return e.Repo.GetOrder(ctx, tx, id)
		})
}

// GetOrder returns one order. Vendors only see orders they are assigned to.
func (e Engine) GetOrder(ctx context.Context, p domain.Principal, id string) (domain.Order, error) {
	if err := auth.Authorize(p, auth.OrderRead, auth.Target{}); err != nil {
		return domain.Order{}, err
	}
	o, err := e.Repo.GetOrder(ctx, nil, id)
	if err != nil {
		return domain.Order{}, storageError(err)
	}
	if err := auth.Authorize(p, auth.OrderRead, auth.Target{Order: &o}); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

type OrderListOptions struct {
	ListOptions
	Status domain.OrderStatus
}

// ListOrders returns orders newest first, scoped to the caller.
func (e Engine) ListOrders(ctx context.Context, p domain.Principal, opts OrderListOptions) (OrderPage, error) {
	if err := auth.Authorize(p, auth.OrderRead, auth.Target{}); err != nil {
		return OrderPage{}, err
	}
	page := e.page(opts.ListOptions)
	items, total, err := e.Repo.ListOrders(ctx, repo.OrderFilters{
		VendorID: auth.ListScope(p).VendorID,
		Status:   opts.Status,
		Page:     page,
	})
	if err != nil {
		return OrderPage{}, storageError(err)
	}
	return OrderPage{Items: items, Pagination: domain.NewPagination(page.Page, page.Limit, total)}, nil
}

// SetOrderStatus moves an order along its lifecycle. The write is a
// compare-and-set on the status read, so of two racing transitions only one
// applies and the other reports an invalid transition.
func (e Engine) SetOrderStatus(ctx context.Context, p domain.Principal, id string, status domain.OrderStatus) (domain.Order, error) {
	if err := auth.Authorize(p, auth.OrderTransition, auth.Target{}); err != nil {
		return domain.Order{}, err
	}
	var out domain.Order
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.LockOrder(ctx, tx, id); err != nil {
			return err
		}
		o, err := e.Repo.GetOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		updated, err := lifecycle.TransitionOrder(o, status, e.now())
		if err != nil {
			return err
		}
		ok, err := e.Repo.UpdateOrderStatus(ctx, tx, id, o.Status, updated.Status, updated.UpdatedAt)
		if err != nil {
			return err
		}
		if !ok {
			current, err := e.Repo.GetOrder(ctx, tx, id)
			if err != nil {
				return err
			}
			return lifecycle.TransitionError{Entity: "order", From: string(current.Status), To: string(status)}
		}
		if err := e.appendEvent(ctx, tx, events.OrderStatusChanged, "order", id, p.ID, events.EventPayload{
			"from": o.Status,
			"to":   updated.Status,
		}); err != nil {
			return err
		}
		out = updated
		return nil
	})
	return out, err
}

// AssignVendors adds vendors to the order's assigned set. Re-assigning a
// vendor is a no-op.
func (e Engine) AssignVendors(ctx context.Context, p domain.Principal, id string, vendorIDs []string) (domain.Order, error) {
	if err := auth.Authorize(p, auth.OrderAssign, auth.Target{}); err != nil {
		return domain.Order{}, err
	}
	if len(vendorIDs) == 0 {
		return domain.Order{}, invalidInput("at least one vendor id is required")
	}
	var out domain.Order
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.LockOrder(ctx, tx, id); err != nil {
			return err
		}
		o, err := e.Repo.GetOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		found, err := e.Repo.GetUsers(ctx, tx, vendorIDs)
		if err != nil {
			return err
		}
		vendors := make([]domain.User, 0, len(vendorIDs))
		for _, vid := range vendorIDs {
			u, ok := found[vid]
			if !ok {
				return fmt.Errorf("%w: user %s not found", domain.ErrInvalidVendor, vid)
			}
			if !u.Active {
				return fmt.Errorf("%w: user %s is deactivated", domain.ErrInvalidVendor, vid)
			}
			vendors = append(vendors, u)
		}
		updated, added, err := lifecycle.AssignVendors(o, vendors)
		if err != nil {
			return err
		}
		if len(added) > 0 {
			now := domain.FormatTime(e.now())
			if err := e.Repo.AddOrderVendors(ctx, tx, id, added, now); err != nil {
				return err
			}
			if err := e.Repo.TouchOrder(ctx, tx, id, now); err != nil {
				return err
			}
			updated.UpdatedAt = now
			if err := e.appendEvent(ctx, tx, events.OrderVendorsAdded, "order", id, p.ID, events.EventPayload{
				"vendor_ids": added,
			}); err != nil {
				return err
			}
		}
		out = updated
		return nil
	})
	return out, err
}
