package repo

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"quoteline/internal/db"
	"quoteline/internal/domain"
	"quoteline/internal/migrate"
)

const ts = "2024-01-01T00:00:00Z"

func newSQLiteRepo(t *testing.T) Repo {
	t.Helper()
	conn, dialect, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn, dialect))
	return Repo{DB: conn, Dialect: dialect}
}

type fixture struct {
	Manager, VendorA, VendorB domain.User
	Order                     domain.Order
	QuoteA, QuoteB            domain.Quote
}

func seed(t *testing.T, r Repo, prefix string) fixture {
	t.Helper()
	ctx := context.Background()
	user := func(name string, role domain.Role) domain.User {
		u := domain.User{
			ID: prefix + name, Email: prefix + name + "@example.com", PasswordHash: "x",
			FirstName: name, LastName: "Test", Role: role, Active: true, CreatedAt: ts, UpdatedAt: ts,
		}
		require.NoError(t, r.InsertUser(ctx, nil, u))
		return u
	}
	f := fixture{
		Manager: user("boss", domain.RoleManager),
		VendorA: user("va", domain.RoleVendor),
		VendorB: user("vb", domain.RoleVendor),
	}
	f.Order = domain.Order{
		ID: prefix + "order", Title: "Chairs", Budget: decimal.RequireFromString("1000"), Deadline: ts,
		Priority: domain.PriorityMedium, Status: domain.OrderPending, CreatedBy: f.Manager.ID, CreatedAt: ts, UpdatedAt: ts,
	}
	require.NoError(t, r.InsertOrder(ctx, nil, f.Order))
	quote := func(id string, vendor domain.User, amount string) domain.Quote {
		q := domain.Quote{
			ID: prefix + id, OrderID: f.Order.ID, VendorID: vendor.ID, Amount: decimal.RequireFromString(amount),
			Status: domain.QuotePending, SubmittedAt: ts,
		}
		require.NoError(t, r.InsertQuote(ctx, nil, q))
		return q
	}
	f.QuoteA = quote("qa", f.VendorA, "450.50")
	f.QuoteB = quote("qb", f.VendorB, "400")
	return f
}

func TestApproveQuoteSingleWinner(t *testing.T) {
	r := newSQLiteRepo(t)
	ctx := context.Background()
	f := seed(t, r, "")

	ok, err := r.ApproveQuote(ctx, nil, f.QuoteA.ID, f.Order.ID, f.Manager.ID, ts)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.ApproveQuote(ctx, nil, f.QuoteB.ID, f.Order.ID, f.Manager.ID, ts)
	require.NoError(t, err)
	require.False(t, ok)

	winner, err := r.ApprovedQuoteID(ctx, nil, f.Order.ID)
	require.NoError(t, err)
	require.Equal(t, f.QuoteA.ID, winner)

	ok, err = r.RejectQuote(ctx, nil, f.QuoteA.ID, f.Manager.ID, ts)
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = r.RejectQuote(ctx, nil, f.QuoteB.ID, f.Manager.ID, ts)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := r.GetQuote(ctx, nil, f.QuoteA.ID)
	require.NoError(t, err)
	require.Equal(t, domain.QuoteApproved, got.Status)
	require.True(t, decimal.RequireFromString("450.5").Equal(got.Amount))
	require.NotNil(t, got.ReviewedBy)
	require.Equal(t, f.Manager.ID, *got.ReviewedBy)
}

func TestSingleWinnerIndexRejectsSecondApproval(t *testing.T) {
	r := newSQLiteRepo(t)
	ctx := context.Background()
	f := seed(t, r, "")

	ok, err := r.ApproveQuote(ctx, nil, f.QuoteA.ID, f.Order.ID, f.Manager.ID, ts)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = r.exec(ctx, nil, `UPDATE quotes SET status='approved', reviewed_at=?, reviewed_by=? WHERE id=?`, ts, f.Manager.ID, f.QuoteB.ID)
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestApprovedQuoteIDWithoutWinner(t *testing.T) {
	r := newSQLiteRepo(t)
	f := seed(t, r, "")
	id, err := r.ApprovedQuoteID(context.Background(), nil, f.Order.ID)
	require.NoError(t, err)
	require.Empty(t, id)
}

func TestUserEmailIsUnique(t *testing.T) {
	r := newSQLiteRepo(t)
	ctx := context.Background()
	f := seed(t, r, "")

	dup := f.VendorA
	dup.ID = "other"
	dup.Email = "  VA@Example.com "
	require.ErrorIs(t, r.InsertUser(ctx, nil, dup), ErrDuplicate)

	got, err := r.GetUserByEmail(ctx, nil, "VA@example.com")
	require.NoError(t, err)
	require.Equal(t, f.VendorA.ID, got.ID)

	_, err = r.GetUser(ctx, nil, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOrderVendorsAndScopedListing(t *testing.T) {
	r := newSQLiteRepo(t)
	ctx := context.Background()
	f := seed(t, r, "")

	require.NoError(t, r.AddOrderVendors(ctx, nil, f.Order.ID, []string{f.VendorA.ID}, ts))
	require.NoError(t, r.AddOrderVendors(ctx, nil, f.Order.ID, []string{f.VendorA.ID, f.VendorB.ID}, ts))

	o, err := r.GetOrder(ctx, nil, f.Order.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{f.VendorA.ID, f.VendorB.ID}, o.AssignedVendors)

	items, total, err := r.ListOrders(ctx, OrderFilters{VendorID: f.VendorA.ID, Page: Page{Page: 1, Limit: 10}})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, items, 1)

	_, total, err = r.ListOrders(ctx, OrderFilters{VendorID: f.Manager.ID, Page: Page{Page: 1, Limit: 10}})
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestUpdateOrderStatusIsConditional(t *testing.T) {
	r := newSQLiteRepo(t)
	ctx := context.Background()
	f := seed(t, r, "")

	ok, err := r.UpdateOrderStatus(ctx, nil, f.Order.ID, domain.OrderPending, domain.OrderInProgress, ts)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = r.UpdateOrderStatus(ctx, nil, f.Order.ID, domain.OrderPending, domain.OrderCancelled, ts)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestQuoteFiltersAndPaging(t *testing.T) {
	r := newSQLiteRepo(t)
	ctx := context.Background()
	f := seed(t, r, "")

	items, total, err := r.ListQuotes(ctx, QuoteFilters{VendorID: f.VendorB.ID, Page: Page{Page: 1, Limit: 10}})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, f.QuoteB.ID, items[0].ID)

	items, total, err = r.ListQuotes(ctx, QuoteFilters{OrderID: f.Order.ID, Page: Page{Page: 2, Limit: 1}})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, items, 1)

	n, err := r.CountQuotes(ctx, nil, QuoteFilters{Status: domain.QuoteApproved})
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestIdempotencyRecords(t *testing.T) {
	r := newSQLiteRepo(t)
	ctx := context.Background()

	hash, err := Fingerprint(map[string]string{"title": "Chairs"})
	require.NoError(t, err)
	rec := IdempotencyRecord{ActorID: "u1", Operation: "order.create", Key: " k1 ", RequestHash: hash, EntityID: "o1", CreatedAt: ts}
	require.NoError(t, r.InsertIdempotencyRecord(ctx, nil, rec))
	require.ErrorIs(t, r.InsertIdempotencyRecord(ctx, nil, rec), ErrDuplicate)

	got, err := r.GetIdempotencyRecord(ctx, nil, "u1", "order.create", "k1")
	require.NoError(t, err)
	require.Equal(t, "o1", got.EntityID)
	require.Equal(t, hash, got.RequestHash)

	_, err = r.GetIdempotencyRecord(ctx, nil, "u2", "order.create", "k1")
	require.ErrorIs(t, err, ErrNotFound)

	n, err := r.PurgeIdempotencyRecords(ctx, "2023-12-31T00:00:00Z")
	require.NoError(t, err)
	require.Zero(t, n)
	n, err = r.PurgeIdempotencyRecords(ctx, "2024-01-02T00:00:00Z")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestEventsCursor(t *testing.T) {
	r := newSQLiteRepo(t)
	ctx := context.Background()
	for _, typ := range []string{"order.created", "quote.submitted", "quote.approved"} {
		_, err := r.exec(ctx, nil, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
			ts, typ, "quote", "q1", "u1", "{}")
		require.NoError(t, err)
	}
	latest, err := r.LatestEventID(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), latest)

	after, err := r.EventsAfter(ctx, 10, 1)
	require.NoError(t, err)
	require.Len(t, after, 2)
	require.Equal(t, "quote.submitted", after[0].Type)

	recent, err := r.LatestEvents(ctx, EventFilters{Type: "quote.approved"})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, int64(3), recent[0].ID)

	older, err := r.LatestEvents(ctx, EventFilters{Before: 3, Limit: 5})
	require.NoError(t, err)
	require.Len(t, older, 2)
	require.Equal(t, int64(2), older[0].ID)
}
