package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimeLayout is the storage and wire format for timestamps. It is fixed
// width so stored values sort lexically in time order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

type Role string

const (
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
	RoleVendor  Role = "vendor"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleManager, RoleStaff, RoleVendor:
		return true
	}
	return false
}

// Principal is the authenticated caller of a workflow operation.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Role         Role   `json:"role" enum:"manager,staff,vendor"`
	Phone        string `json:"phone,omitempty"`
	CompanyName  string `json:"company_name,omitempty"`
	Active       bool   `json:"is_active"`
	CreatedAt    string `json:"created_at" format:"date-time"`
	UpdatedAt    string `json:"updated_at" format:"date-time"`
}

// Principal returns the identity used for authorization decisions.
func (u User) Principal() Principal {
	return Principal{ID: u.ID, Role: u.Role}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderInProgress OrderStatus = "in-progress"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is defined from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

type Order struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	Budget          decimal.Decimal `json:"budget"`
	Deadline        string          `json:"deadline"`
	Priority        Priority        `json:"priority"`
	Status          OrderStatus     `json:"status"`
	CreatedBy       string          `json:"created_by"`
	AssignedVendors []string        `json:"assigned_vendors"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
}

// HasVendor reports whether vendorID is in the assigned set.
func (o Order) HasVendor(vendorID string) bool {
	for _, v := range o.AssignedVendors {
		if v == vendorID {
			return true
		}
	}
	return false
}

type QuoteStatus string

const (
	QuotePending  QuoteStatus = "pending"
	QuoteApproved QuoteStatus = "approved"
	QuoteRejected QuoteStatus = "rejected"
)

// Decision is the outcome a reviewer applies to a pending quote.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Status maps a decision to the quote status it produces.
func (d Decision) Status() QuoteStatus {
	if d == DecisionApprove {
		return QuoteApproved
	}
	return QuoteRejected
}

type Quote struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"order_id"`
	VendorID     string          `json:"vendor_id"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	DeliveryTime string          `json:"delivery_time"`
	Status       QuoteStatus     `json:"status"`
	SubmittedAt  string          `json:"submitted_at"`
	ReviewedAt   *string         `json:"reviewed_at,omitempty"`
	ReviewedBy   *string         `json:"reviewed_by,omitempty"`
}

type RequirementStatus string

const (
	RequirementActive    RequirementStatus = "active"
	RequirementCompleted RequirementStatus = "completed"
	RequirementCancelled RequirementStatus = "cancelled"
)

type Requirement struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Priority    Priority          `json:"priority"`
	Status      RequirementStatus `json:"status"`
	CreatedBy   string            `json:"created_by"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// Pagination describes one page of a list query.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPagination derives the page count from total and limit.
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// Dashboard is the role-shaped summary. Manager and staff callers receive
// the org-wide counters; vendors receive their own.
type Dashboard struct {
	TotalOrders     *int `json:"total_orders,omitempty"`
	PendingOrders   *int `json:"pending_orders,omitempty"`
	TotalVendors    *int `json:"total_vendors,omitempty"`
	TotalQuotes     *int `json:"total_quotes,omitempty"`
	AssignedOrders  *int `json:"assigned_orders,omitempty"`
	SubmittedQuotes *int `json:"submitted_quotes,omitempty"`
	ApprovedQuotes  *int `json:"approved_quotes,omitempty"`
}
