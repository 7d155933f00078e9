package engine

import (
	"context"

	"quoteline/internal/domain"
	"quoteline/internal/repo"
)

// Workflow is the set of operations exposed to transports. Engine implements
// it directly; decorators wrap it for tracing and metrics.
type Workflow interface {
	Register(ctx context.Context, caller *domain.Principal, opts RegisterOptions) (domain.User, error)
	Authenticate(ctx context.Context, email, password string) (domain.User, error)
	ResolvePrincipal(ctx context.Context, userID string) (domain.Principal, error)
	Me(ctx context.Context, p domain.Principal) (domain.User, error)
	ListVendors(ctx context.Context, p domain.Principal) ([]domain.User, error)
	SetUserActive(ctx context.Context, p domain.Principal, userID string, active bool) (domain.User, error)

	CreateOrder(ctx context.Context, p domain.Principal, opts OrderCreateOptions) (domain.Order, error)
	GetOrder(ctx context.Context, p domain.Principal, id string) (domain.Order, error)
	ListOrders(ctx context.Context, p domain.Principal, opts OrderListOptions) (OrderPage, error)
	SetOrderStatus(ctx context.Context, p domain.Principal, id string, status domain.OrderStatus) (domain.Order, error)
	AssignVendors(ctx context.Context, p domain.Principal, id string, vendorIDs []string) (domain.Order, error)

	SubmitQuote(ctx context.Context, p domain.Principal, opts QuoteSubmitOptions) (domain.Quote, error)
	GetQuote(ctx context.Context, p domain.Principal, id string) (domain.Quote, error)
	ListQuotes(ctx context.Context, p domain.Principal, opts QuoteListOptions) (QuotePage, error)
	ReviewQuote(ctx context.Context, p domain.Principal, id string, decision domain.Decision) (domain.Quote, error)

	CreateRequirement(ctx context.Context, p domain.Principal, opts RequirementCreateOptions) (domain.Requirement, error)
	ListRequirements(ctx context.Context, p domain.Principal, opts RequirementListOptions) (RequirementPage, error)

	Dashboard(ctx context.Context, p domain.Principal) (domain.Dashboard, error)
	ListEvents(ctx context.Context, p domain.Principal, f repo.EventFilters) ([]domain.Event, error)
}

var _ Workflow = Engine{}
