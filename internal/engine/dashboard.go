package engine

import (
	"context"
	"database/sql"

	"quoteline/internal/domain"
	"quoteline/internal/engine/auth"
	"quoteline/internal/repo"
)

// Dashboard returns counters shaped by the caller's role. On postgres the
// counts come from one read-only snapshot.
func (e Engine) Dashboard(ctx context.Context, p domain.Principal) (domain.Dashboard, error) {
	if err := auth.Authorize(p, auth.DashboardRead, auth.Target{}); err != nil {
		return domain.Dashboard{}, err
	}
	var d domain.Dashboard
	err := e.readTx(ctx, func(tx *sql.Tx) error {
		var firstErr error
		count := func(n int, err error) *int {
			if err != nil && firstErr == nil {
				firstErr = err
			}
			return &n
		}
		if p.Role == domain.RoleVendor {
			d.AssignedOrders = count(e.Repo.CountOrders(ctx, tx, repo.OrderFilters{VendorID: p.ID}))
			d.SubmittedQuotes = count(e.Repo.CountQuotes(ctx, tx, repo.QuoteFilters{VendorID: p.ID}))
			d.ApprovedQuotes = count(e.Repo.CountQuotes(ctx, tx, repo.QuoteFilters{VendorID: p.ID, Status: domain.QuoteApproved}))
		} else {
			d.TotalOrders = count(e.Repo.CountOrders(ctx, tx, repo.OrderFilters{}))
			d.PendingOrders = count(e.Repo.CountOrders(ctx, tx, repo.OrderFilters{Status: domain.OrderPending}))
			d.TotalVendors = count(e.Repo.CountUsers(ctx, tx, repo.UserFilters{Role: domain.RoleVendor, ActiveOnly: true}))
			d.TotalQuotes = count(e.Repo.CountQuotes(ctx, tx, repo.QuoteFilters{}))
		}
		return firstErr
	})
	if err != nil {
		return domain.Dashboard{}, err
	}
	return d, nil
}
