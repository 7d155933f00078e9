package auth

import (
	"fmt"

	"quoteline/internal/domain"
)

type Action string

const (
	OrderCreate       Action = "order.create"
	OrderRead         Action = "order.read"
	OrderTransition   Action = "order.transition"
	OrderAssign       Action = "order.assign"
	QuoteCreate       Action = "quote.create"
	QuoteRead         Action = "quote.read"
	QuoteReview       Action = "quote.review"
	RequirementCreate Action = "requirement.create"
	RequirementRead   Action = "requirement.read"
	DashboardRead     Action = "dashboard.read"
	UserList          Action = "user.list"
	UserManage        Action = "user.manage"
	EventsRead        Action = "events.read"
)

var (
	buyers   = []domain.Role{domain.RoleManager, domain.RoleStaff}
	everyone = []domain.Role{domain.RoleManager, domain.RoleStaff, domain.RoleVendor}
)

var policy = map[Action][]domain.Role{
	OrderCreate:       buyers,
	OrderRead:         everyone,
	OrderTransition:   buyers,
	OrderAssign:       buyers,
	QuoteCreate:       {domain.RoleVendor},
	QuoteRead:         everyone,
	QuoteReview:       buyers,
	RequirementCreate: buyers,
	RequirementRead:   everyone,
	DashboardRead:     everyone,
	UserList:          buyers,
	UserManage:        {domain.RoleManager},
	EventsRead:        buyers,
}

// ForbiddenError indicates the caller's role may not perform the action.
type ForbiddenError struct {
	Action Action
	Role   domain.Role
}

func (e ForbiddenError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("anonymous callers may not %s", e.Action)
	}
	return fmt.Sprintf("role %s may not %s", e.Role, e.Action)
}

func (e ForbiddenError) Unwrap() error { return domain.ErrUnauthorized }

// Target carries the entity an action applies to, when the decision depends on it.
type Target struct {
	Order *domain.Order
	Quote *domain.Quote
}

// Allowed reports whether role appears in the policy row for action.
func Allowed(role domain.Role, action Action) bool {
	for _, r := range policy[action] {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize decides whether p may perform action on target. It has no side
// effects. The pending-status condition on quote.review is owned by the quote
// lifecycle, which reports it as an already-reviewed failure.
func Authorize(p domain.Principal, action Action, target Target) error {
	if !Allowed(p.Role, action) {
		return ForbiddenError{Action: action, Role: p.Role}
	}
	if p.Role != domain.RoleVendor {
		return nil
	}
	switch action {
	case OrderRead:
		if target.Order != nil && !target.Order.HasVendor(p.ID) {
			return ForbiddenError{Action: action, Role: p.Role}
		}
	case QuoteRead:
		if target.Quote != nil && target.Quote.VendorID != p.ID {
			return ForbiddenError{Action: action, Role: p.Role}
		}
	}
	return nil
}

// Scope restricts list queries to the rows a principal may see.
// An empty VendorID means no restriction.
type Scope struct {
	VendorID string
}

// ListScope returns the list filter for p: vendors see only orders they are
// assigned to and quotes they submitted.
func ListScope(p domain.Principal) Scope {
	if p.Role == domain.RoleVendor {
		return Scope{VendorID: p.ID}
	}
	return Scope{}
}
