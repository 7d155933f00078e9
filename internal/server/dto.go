package server

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"quoteline/internal/domain"
	"quoteline/internal/engine"
)

// Request payloads

type RegisterRequest struct {
	Email       string `json:"email" format:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Role        string `json:"role" enum:"manager,staff,vendor"`
	Phone       string `json:"phone,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SetUserActiveRequest struct {
	Active bool `json:"is_active"`
}

// Money travels as a decimal string to keep exact cents.
type CreateOrderRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Budget      string `json:"budget" maxLength:"32" example:"1500.00"`
	Deadline    string `json:"deadline" format:"date-time"`
	Priority    string `json:"priority,omitempty" enum:"low,medium,high"`
}

type SetOrderStatusRequest struct {
	Status string `json:"status" enum:"pending,in-progress,completed,cancelled"`
}

type AssignVendorsRequest struct {
	VendorIDs []string `json:"vendor_ids"`
}

type SubmitQuoteRequest struct {
	OrderID      string `json:"order_id"`
	Amount       string `json:"amount" maxLength:"32" example:"450.00"`
	Description  string `json:"description,omitempty"`
	DeliveryTime string `json:"delivery_time,omitempty"`
}

type CreateRequirementRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Priority    string `json:"priority,omitempty" enum:"low,medium,high"`
}

// Responses

type UserResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Role        string `json:"role"`
	Phone       string `json:"phone,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	Active      bool   `json:"is_active"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expires_at" format:"date-time"`
	User      UserResponse `json:"user"`
}

type OrderResponse struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	Budget          string   `json:"budget"`
	Deadline        string   `json:"deadline"`
	Priority        string   `json:"priority"`
	Status          string   `json:"status"`
	CreatedBy       string   `json:"created_by"`
	AssignedVendors []string `json:"assigned_vendors"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

type QuoteResponse struct {
	ID           string  `json:"id"`
	OrderID      string  `json:"order_id"`
	VendorID     string  `json:"vendor_id"`
	Amount       string  `json:"amount"`
	Description  string  `json:"description"`
	DeliveryTime string  `json:"delivery_time"`
	Status       string  `json:"status"`
	SubmittedAt  string  `json:"submitted_at"`
	ReviewedAt   *string `json:"reviewed_at,omitempty"`
	ReviewedBy   *string `json:"reviewed_by,omitempty"`
}

type paginatedOrders struct {
	Items      []OrderResponse   `json:"items"`
	Pagination domain.Pagination `json:"pagination"`
}

type paginatedQuotes struct {
	Items      []QuoteResponse   `json:"items"`
	Pagination domain.Pagination `json:"pagination"`
}

type paginatedEvents struct {
	Items      []domain.Event `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        string(u.Role),
		Phone:       u.Phone,
		CompanyName: u.CompanyName,
		Active:      u.Active,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func orderResponse(o domain.Order) OrderResponse {
	vendors := o.AssignedVendors
	if vendors == nil {
		vendors = []string{}
	}
	return OrderResponse{
		ID:              o.ID,
		Title:           o.Title,
		Description:     o.Description,
		Category:        o.Category,
		Budget:          o.Budget.StringFixed(2),
		Deadline:        o.Deadline,
		Priority:        string(o.Priority),
		Status:          string(o.Status),
		CreatedBy:       o.CreatedBy,
		AssignedVendors: vendors,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func quoteResponse(q domain.Quote) QuoteResponse {
	return QuoteResponse{
		ID:           q.ID,
		OrderID:      q.OrderID,
		VendorID:     q.VendorID,
		Amount:       q.Amount.StringFixed(2),
		Description:  q.Description,
		DeliveryTime: q.DeliveryTime,
		Status:       string(q.Status),
		SubmittedAt:  q.SubmittedAt,
		ReviewedAt:   q.ReviewedAt,
		ReviewedBy:   q.ReviewedBy,
	}
}

func mapUsers(items []domain.User) []UserResponse {
	res := make([]UserResponse, 0, len(items))
	for _, u := range items {
		res = append(res, userResponse(u))
	}
	return res
}

func ordersResponse(p engine.OrderPage) paginatedOrders {
	items := make([]OrderResponse, 0, len(p.Items))
	for _, o := range p.Items {
		items = append(items, orderResponse(o))
	}
	return paginatedOrders{Items: items, Pagination: p.Pagination}
}

func quotesResponse(p engine.QuotePage) paginatedQuotes {
	items := make([]QuoteResponse, 0, len(p.Items))
	for _, q := range p.Items {
		items = append(items, quoteResponse(q))
	}
	return paginatedQuotes{Items: items, Pagination: p.Pagination}
}

const maxMoneyLen = 32

// parseMoney accepts a positive plain decimal string with at most two
// decimal places. Exponent notation is refused.
func parseMoney(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > maxMoneyLen || strings.ContainsAny(raw, "eE") {
		return decimal.Decimal{}, fmt.Errorf("%w: %s must be a plain decimal number", domain.ErrInvalidInput, field)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s must be a decimal number", domain.ErrInvalidInput, field)
	}
	if err := domain.CheckMoney(field, d); err != nil {
		return decimal.Decimal{}, err
	}
	return d, nil
}
