package lifecycle_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"quoteline/internal/domain"
	"quoteline/internal/lifecycle"
)

var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func TestOrderTransitionGraph(t *testing.T) {
	all := []domain.OrderStatus{domain.OrderPending, domain.OrderInProgress, domain.OrderCompleted, domain.OrderCancelled}
	legal := map[[2]domain.OrderStatus]bool{
		{domain.OrderPending, domain.OrderInProgress}:   true,
		{domain.OrderPending, domain.OrderCancelled}:    true,
		{domain.OrderInProgress, domain.OrderCompleted}: true,
		{domain.OrderInProgress, domain.OrderCancelled}: true,
	}
	for _, from := range all {
		for _, to := range all {
			o := domain.Order{ID: "o1", Status: from, UpdatedAt: "old"}
			got, err := lifecycle.TransitionOrder(o, to, fixedNow)
			if legal[[2]domain.OrderStatus{from, to}] {
				require.NoError(t, err, "%s -> %s", from, to)
				require.Equal(t, to, got.Status)
				require.Equal(t, domain.FormatTime(fixedNow), got.UpdatedAt)
				continue
			}
			require.ErrorIs(t, err, domain.ErrInvalidTransition, "%s -> %s", from, to)
			require.Equal(t, from, got.Status)
			require.Equal(t, "old", got.UpdatedAt)
		}
	}
}

func TestAssignVendorsIsSetUnion(t *testing.T) {
	o := domain.Order{ID: "o1", AssignedVendors: []string{"v1"}}
	v1 := domain.User{ID: "v1", Role: domain.RoleVendor}
	v2 := domain.User{ID: "v2", Role: domain.RoleVendor}

	o, added, err := lifecycle.AssignVendors(o, []domain.User{v1, v2, v2})
	require.NoError(t, err)
	require.Equal(t, []string{"v2"}, added)
	require.Equal(t, []string{"v1", "v2"}, o.AssignedVendors)

	again, added, err := lifecycle.AssignVendors(o, []domain.User{v2})
	require.NoError(t, err)
	require.Empty(t, added)
	require.Equal(t, o.AssignedVendors, again.AssignedVendors)
}

func TestAssignVendorsRejectsNonVendor(t *testing.T) {
	o := domain.Order{ID: "o1"}
	_, _, err := lifecycle.AssignVendors(o, []domain.User{
		{ID: "v1", Role: domain.RoleVendor},
		{ID: "s1", Role: domain.RoleStaff},
	})
	require.ErrorIs(t, err, domain.ErrInvalidVendor)
}

func TestCheckSubmission(t *testing.T) {
	open := domain.Order{ID: "o1", Status: domain.OrderInProgress}
	require.NoError(t, lifecycle.CheckSubmission(open, decimal.NewFromInt(500)))
	require.ErrorIs(t, lifecycle.CheckSubmission(open, decimal.Zero), domain.ErrInvalidInput)
	require.ErrorIs(t, lifecycle.CheckSubmission(open, decimal.NewFromInt(-1)), domain.ErrInvalidInput)
	require.ErrorIs(t, lifecycle.CheckSubmission(open, decimal.RequireFromString("0.004")), domain.ErrInvalidInput)

	for _, status := range []domain.OrderStatus{domain.OrderCompleted, domain.OrderCancelled} {
		closed := domain.Order{ID: "o2", Status: status}
		require.ErrorIs(t, lifecycle.CheckSubmission(closed, decimal.NewFromInt(10)), domain.ErrOrderClosed)
	}
}

func TestReviewSetsFieldsTogether(t *testing.T) {
	q := domain.Quote{ID: "q1", Status: domain.QuotePending}

	approved, err := lifecycle.Review(q, domain.DecisionApprove, "s1", fixedNow)
	require.NoError(t, err)
	require.Equal(t, domain.QuoteApproved, approved.Status)
	require.NotNil(t, approved.ReviewedAt)
	require.NotNil(t, approved.ReviewedBy)
	require.Equal(t, "s1", *approved.ReviewedBy)
	require.Nil(t, q.ReviewedAt, "input quote must not be mutated")

	rejected, err := lifecycle.Review(q, domain.DecisionReject, "m1", fixedNow)
	require.NoError(t, err)
	require.Equal(t, domain.QuoteRejected, rejected.Status)
	require.NotNil(t, rejected.ReviewedAt)
	require.NotNil(t, rejected.ReviewedBy)
}

func TestReviewTerminalQuote(t *testing.T) {
	for _, status := range []domain.QuoteStatus{domain.QuoteApproved, domain.QuoteRejected} {
		q := domain.Quote{ID: "q1", Status: status}
		_, err := lifecycle.Review(q, domain.DecisionReject, "s1", fixedNow)
		require.ErrorIs(t, err, domain.ErrAlreadyReviewed)
	}
	_, err := lifecycle.Review(domain.Quote{Status: domain.QuotePending}, "maybe", "s1", fixedNow)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}
