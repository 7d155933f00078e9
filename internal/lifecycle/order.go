package lifecycle

import (
	"fmt"
	"time"

	"quoteline/internal/domain"
)

// TransitionError reports a status change the state machine does not allow.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("invalid %s status transition %s -> %s", e.Entity, e.From, e.To)
}

func (e TransitionError) Unwrap() error { return domain.ErrInvalidTransition }

func ensureOrderTransition(from, to domain.OrderStatus) error {
	switch from {
	case domain.OrderPending:
		if to == domain.OrderInProgress || to == domain.OrderCancelled {
			return nil
		}
	case domain.OrderInProgress:
		if to == domain.OrderCompleted || to == domain.OrderCancelled {
			return nil
		}
	}
	return TransitionError{Entity: "order", From: string(from), To: string(to)}
}

// CanTransitionOrder reports whether from -> to is an edge of the order graph.
func CanTransitionOrder(from, to domain.OrderStatus) bool {
	return ensureOrderTransition(from, to) == nil
}

// TransitionOrder returns o moved to status, with UpdatedAt refreshed.
// Quotes are never touched; cancelling an order leaves its bids as they are.
func TransitionOrder(o domain.Order, status domain.OrderStatus, now time.Time) (domain.Order, error) {
	if err := ensureOrderTransition(o.Status, status); err != nil {
		return o, err
	}
	o.Status = status
	o.UpdatedAt = domain.FormatTime(now)
	return o, nil
}

// AssignVendors unions vendors into the order's assigned set. Every user must
// hold the vendor role. Already assigned ids are skipped; the returned slice
// holds only the ids that were newly added.
func AssignVendors(o domain.Order, vendors []domain.User) (domain.Order, []string, error) {
	for _, v := range vendors {
		if v.Role != domain.RoleVendor {
			return o, nil, fmt.Errorf("%w: user %s has role %s", domain.ErrInvalidVendor, v.ID, v.Role)
		}
	}
	assigned := append([]string(nil), o.AssignedVendors...)
	var added []string
	for _, v := range vendors {
		if containsID(assigned, v.ID) {
			continue
		}
		assigned = append(assigned, v.ID)
		added = append(added, v.ID)
	}
	o.AssignedVendors = assigned
	return o, added, nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
