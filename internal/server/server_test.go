package server_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"quoteline/internal/config"
	"quoteline/internal/db"
	"quoteline/internal/domain"
	"quoteline/internal/engine"
	"quoteline/internal/migrate"
	"quoteline/internal/server"
	quotelinesdk "quoteline/sdk/go"
)

type testServer struct {
	URL    string
	Client *quotelinesdk.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn, dialect, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, migrate.Migrate(conn, dialect))
	e := engine.New(conn, dialect, config.Default())
	e.HashCost = bcrypt.MinCost

	handler, err := server.New(server.Config{
		Workflow: e,
		BasePath: "/v1",
		Auth:     server.AuthConfig{JWTSecret: "test-secret", Issuer: "quoteline"},
	})
	require.NoError(t, err)
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		conn.Close()
	})
	url := "http://" + ln.Addr().String()
	return &testServer{URL: url, Client: quotelinesdk.New(url + "/v1")}
}

// session registers an account and returns a client authenticated as it.
func (s *testServer) session(t *testing.T, as *quotelinesdk.Client, email, role string) (*quotelinesdk.Client, quotelinesdk.User) {
	t.Helper()
	ctx := context.Background()
	_, err := as.Register(ctx, quotelinesdk.RegisterInput{
		Email: email, Password: "secret1", FirstName: "Test", LastName: "User", Role: role,
	})
	require.NoError(t, err)
	sess, err := s.Client.Login(ctx, email, "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, sess.Token)
	return s.Client.WithToken(sess.Token), sess.User
}

func (s *testServer) manager(t *testing.T) *quotelinesdk.Client {
	c, _ := s.session(t, s.Client, "boss@example.com", "manager")
	return c
}

func requireAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var apiErr *quotelinesdk.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	require.Equal(t, status, apiErr.StatusCode, apiErr.Body)
	if code != "" {
		require.Equal(t, code, apiErr.Code, apiErr.Body)
	}
}

func newOrder(t *testing.T, c *quotelinesdk.Client) quotelinesdk.Order {
	t.Helper()
	o, err := c.CreateOrder(context.Background(), quotelinesdk.CreateOrderInput{
		Title:    "Office chairs",
		Budget:   "1000.00",
		Deadline: "2030-02-01T00:00:00Z",
	}, "")
	require.NoError(t, err)
	return o
}

func TestAwardFlow(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	mgr := s.manager(t)
	va, vendorA := s.session(t, s.Client, "a@vendors.test", "vendor")
	vb, vendorB := s.session(t, s.Client, "b@vendors.test", "vendor")

	order := newOrder(t, mgr)
	require.Equal(t, "pending", order.Status)
	require.Equal(t, "1000.00", order.Budget)

	order, err := mgr.AssignVendors(ctx, order.ID, vendorA.ID, vendorB.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{vendorA.ID, vendorB.ID}, order.AssignedVendors)

	qa, err := va.SubmitQuote(ctx, quotelinesdk.SubmitQuoteInput{OrderID: order.ID, Amount: "450.5"}, "")
	require.NoError(t, err)
	require.Equal(t, "450.50", qa.Amount)
	qb, err := vb.SubmitQuote(ctx, quotelinesdk.SubmitQuoteInput{OrderID: order.ID, Amount: "400"}, "")
	require.NoError(t, err)

	approved, err := mgr.ApproveQuote(ctx, qa.ID)
	require.NoError(t, err)
	require.Equal(t, "approved", approved.Status)
	require.NotNil(t, approved.ReviewedAt)

	_, err = mgr.ApproveQuote(ctx, qb.ID)
	requireAPIError(t, err, http.StatusConflict, "order_already_awarded")
	_, err = mgr.RejectQuote(ctx, qa.ID)
	requireAPIError(t, err, http.StatusConflict, "already_reviewed")

	rejected, err := mgr.RejectQuote(ctx, qb.ID)
	require.NoError(t, err)
	require.Equal(t, "rejected", rejected.Status)

	own, err := va.ListQuotes(ctx, quotelinesdk.ListQuotesInput{})
	require.NoError(t, err)
	require.Len(t, own.Items, 1)
	require.Equal(t, qa.ID, own.Items[0].ID)

	all, err := mgr.ListQuotes(ctx, quotelinesdk.ListQuotesInput{OrderID: order.ID})
	require.NoError(t, err)
	require.Equal(t, 2, all.Pagination.Total)

	dash, err := va.Dashboard(ctx)
	require.NoError(t, err)
	require.NotNil(t, dash.ApprovedQuotes)
	require.Equal(t, 1, *dash.ApprovedQuotes)
	require.Nil(t, dash.TotalOrders)
}

func TestAuthenticationRequired(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	s.manager(t)

	_, err := s.Client.ListOrders(ctx, "", 0, 0)
	requireAPIError(t, err, http.StatusUnauthorized, "unauthenticated")

	_, err = s.Client.WithToken("not-a-jwt").ListOrders(ctx, "", 0, 0)
	requireAPIError(t, err, http.StatusUnauthorized, "unauthenticated")

	sess, err := s.Client.Login(ctx, "boss@example.com", "secret1")
	require.NoError(t, err)
	forged, _, err := server.IssueToken(server.AuthConfig{JWTSecret: "other-secret", Issuer: "quoteline"}, domain.User{
		ID: sess.User.ID, Role: domain.RoleManager,
	})
	require.NoError(t, err)
	_, err = s.Client.WithToken(forged).Me(ctx)
	requireAPIError(t, err, http.StatusUnauthorized, "unauthenticated")

	_, err = s.Client.Login(ctx, "boss@example.com", "wrong-password")
	requireAPIError(t, err, http.StatusUnauthorized, "unauthenticated")
}

func TestDeactivatedAccountLosesAccess(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	mgr := s.manager(t)
	vendor, vu := s.session(t, s.Client, "v@vendors.test", "vendor")

	_, err := vendor.Me(ctx)
	require.NoError(t, err)

	u, err := mgr.SetUserActive(ctx, vu.ID, false)
	require.NoError(t, err)
	require.False(t, u.Active)

	_, err = vendor.Me(ctx)
	requireAPIError(t, err, http.StatusUnauthorized, "unauthenticated")
}

func TestRoleEnforcement(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	mgr := s.manager(t)
	vendor, _ := s.session(t, s.Client, "v@vendors.test", "vendor")

	_, err := vendor.CreateOrder(ctx, quotelinesdk.CreateOrderInput{
		Title: "x", Budget: "10", Deadline: "2030-01-01T00:00:00Z",
	}, "")
	requireAPIError(t, err, http.StatusForbidden, "forbidden")

	// Anonymous sign-up is vendor only once the first account exists.
	_, err = s.Client.Register(ctx, quotelinesdk.RegisterInput{
		Email: "sneaky@example.com", Password: "secret1", FirstName: "S", LastName: "N", Role: "manager",
	})
	requireAPIError(t, err, http.StatusForbidden, "forbidden")

	staff, _ := s.session(t, mgr, "staff@example.com", "staff")
	order := newOrder(t, staff)
	q, err := vendor.SubmitQuote(ctx, quotelinesdk.SubmitQuoteInput{OrderID: order.ID, Amount: "5"}, "")
	require.NoError(t, err)
	_, err = vendor.ApproveQuote(ctx, q.ID)
	requireAPIError(t, err, http.StatusForbidden, "forbidden")

	_, err = vendor.GetOrder(ctx, order.ID)
	requireAPIError(t, err, http.StatusForbidden, "forbidden")
}

func TestOrderStatusTransitions(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	mgr := s.manager(t)
	order := newOrder(t, mgr)

	_, err := mgr.SetOrderStatus(ctx, order.ID, "completed")
	requireAPIError(t, err, http.StatusConflict, "invalid_transition")

	o, err := mgr.SetOrderStatus(ctx, order.ID, "in-progress")
	require.NoError(t, err)
	require.Equal(t, "in-progress", o.Status)

	o, err = mgr.SetOrderStatus(ctx, order.ID, "cancelled")
	require.NoError(t, err)
	require.Equal(t, "cancelled", o.Status)

	vendor, _ := s.session(t, s.Client, "v@vendors.test", "vendor")
	_, err = vendor.SubmitQuote(ctx, quotelinesdk.SubmitQuoteInput{OrderID: order.ID, Amount: "5"}, "")
	requireAPIError(t, err, http.StatusConflict, "order_closed")

	_, err = mgr.SetOrderStatus(ctx, order.ID, "done")
	requireAPIError(t, err, http.StatusBadRequest, "")

	_, err = mgr.GetOrder(ctx, "missing")
	requireAPIError(t, err, http.StatusNotFound, "not_found")
}

func TestInputValidation(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	mgr := s.manager(t)

	_, err := mgr.CreateOrder(ctx, quotelinesdk.CreateOrderInput{
		Title: "Desks", Budget: "lots", Deadline: "2030-01-01T00:00:00Z",
	}, "")
	requireAPIError(t, err, http.StatusUnprocessableEntity, "invalid_input")

	_, err = mgr.CreateOrder(ctx, quotelinesdk.CreateOrderInput{
		Title: "Desks", Budget: "-1", Deadline: "2030-01-01T00:00:00Z",
	}, "")
	requireAPIError(t, err, http.StatusUnprocessableEntity, "invalid_input")

	order := newOrder(t, mgr)
	_, err = mgr.AssignVendors(ctx, order.ID, "nobody")
	requireAPIError(t, err, http.StatusUnprocessableEntity, "invalid_vendor")

	vendor, _ := s.session(t, s.Client, "v@vendors.test", "vendor")
	_, err = vendor.SubmitQuote(ctx, quotelinesdk.SubmitQuoteInput{OrderID: order.ID, Amount: "0"}, "")
	requireAPIError(t, err, http.StatusUnprocessableEntity, "invalid_input")

	_, err = s.Client.Register(ctx, quotelinesdk.RegisterInput{
		Email: "boss@example.com", Password: "secret1", FirstName: "A", LastName: "B", Role: "vendor",
	})
	requireAPIError(t, err, http.StatusConflict, "conflict")
}

func TestMoneyBounds(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	mgr := s.manager(t)
	order := newOrder(t, mgr)
	vendor, _ := s.session(t, s.Client, "v@vendors.test", "vendor")

	for _, amount := range []string{"1e50000000", "1E3", "0.004", "1000000000000000"} {
		_, err := vendor.SubmitQuote(ctx, quotelinesdk.SubmitQuoteInput{OrderID: order.ID, Amount: amount}, "")
		requireAPIError(t, err, http.StatusUnprocessableEntity, "invalid_input")
	}
	_, err := vendor.SubmitQuote(ctx, quotelinesdk.SubmitQuoteInput{OrderID: order.ID, Amount: strings.Repeat("9", 40)}, "")
	requireAPIError(t, err, http.StatusBadRequest, "")

	_, err = mgr.CreateOrder(ctx, quotelinesdk.CreateOrderInput{
		Title: "Desks", Budget: "1e50000000", Deadline: "2030-01-01T00:00:00Z",
	}, "")
	requireAPIError(t, err, http.StatusUnprocessableEntity, "invalid_input")

	q, err := vendor.SubmitQuote(ctx, quotelinesdk.SubmitQuoteInput{OrderID: order.ID, Amount: "12.340"}, "")
	require.NoError(t, err)
	require.Equal(t, "12.34", q.Amount)
	page, err := mgr.ListQuotes(ctx, quotelinesdk.ListQuotesInput{OrderID: order.ID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "12.34", page.Items[0].Amount)
}

func TestIdempotencyKeyHeader(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	mgr := s.manager(t)
	in := quotelinesdk.CreateOrderInput{Title: "Lamps", Budget: "250", Deadline: "2030-01-01T00:00:00Z"}

	first, err := mgr.CreateOrder(ctx, in, "order-123")
	require.NoError(t, err)
	again, err := mgr.CreateOrder(ctx, in, "order-123")
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)

	in.Budget = "300"
	_, err = mgr.CreateOrder(ctx, in, "order-123")
	requireAPIError(t, err, http.StatusConflict, "idempotency_conflict")

	page, err := mgr.ListOrders(ctx, "", 1, 10)
	require.NoError(t, err)
	require.Equal(t, 1, page.Pagination.Total)
}

func TestEventsPaging(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	mgr := s.manager(t)
	for i := 0; i < 3; i++ {
		newOrder(t, mgr)
	}

	first, err := mgr.EventsPage(ctx, 2, "")
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)
	require.Greater(t, first.Items[0].ID, first.Items[1].ID)

	rest, err := mgr.EventsPage(ctx, 50, first.NextCursor)
	require.NoError(t, err)
	require.NotEmpty(t, rest.Items)
	require.Less(t, rest.Items[0].ID, first.Items[1].ID)
	require.Empty(t, rest.NextCursor)

	vendor, _ := s.session(t, s.Client, "v@vendors.test", "vendor")
	_, err = vendor.EventsPage(ctx, 10, "")
	requireAPIError(t, err, http.StatusForbidden, "forbidden")
}

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t)
	for _, p := range []string{"/v1/health", "/v1/openapi.json", "/v1/docs"} {
		res, err := http.Get(s.URL + p)
		require.NoError(t, err)
		body, err := io.ReadAll(res.Body)
		res.Body.Close()
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode, p)
		if p == "/v1/openapi.json" {
			require.True(t, strings.Contains(string(body), "bearerAuth"))
			require.True(t, strings.Contains(string(body), "/v1/quotes/{id}/approve"))
		}
	}
}
