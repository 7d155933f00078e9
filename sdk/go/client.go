package quotelinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Quoteline HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults. baseURL includes the API base
// path, for example http://127.0.0.1:8080/v1.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// WithToken returns a copy of c that authenticates as token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.BearerToken = token
	return &cp
}

type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Role        string `json:"role"`
	Phone       string `json:"phone,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	Active      bool   `json:"is_active"`
}

type RegisterInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Role        string `json:"role"`
	Phone       string `json:"phone,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
}

type Session struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	User      User   `json:"user"`
}

type Order struct {
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
}

type CreateOrderInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Budget      string `json:"budget"`
	Deadline    string `json:"deadline"`
	Priority    string `json:"priority,omitempty"`
}

type Quote struct {
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

type SubmitQuoteInput struct {
	OrderID      string `json:"order_id"`
	Amount       string `json:"amount"`
	Description  string `json:"description,omitempty"`
	DeliveryTime string `json:"delivery_time,omitempty"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type OrderPage struct {
	Items      []Order    `json:"items"`
	Pagination Pagination `json:"pagination"`
}

type QuotePage struct {
	Items      []Quote    `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// ListQuotesInput filters quote listings. Zero values are omitted.
type ListQuotesInput struct {
	OrderID string
	Status  string
	Page    int
	Limit   int
}

// Dashboard fields are present only for the caller's role.
type Dashboard struct {
	TotalOrders     *int `json:"total_orders,omitempty"`
	PendingOrders   *int `json:"pending_orders,omitempty"`
	TotalVendors    *int `json:"total_vendors,omitempty"`
	TotalQuotes     *int `json:"total_quotes,omitempty"`
	AssignedOrders  *int `json:"assigned_orders,omitempty"`
	SubmittedQuotes *int `json:"submitted_quotes,omitempty"`
	ApprovedQuotes  *int `json:"approved_quotes,omitempty"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Register creates an account. Anonymous clients may only register vendors.
func (c *Client) Register(ctx context.Context, in RegisterInput) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodPost, "auth/register", nil, in, &resp)
	return resp, err
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodPost, "auth/login", nil, map[string]string{"email": email, "password": password}, &resp)
	return resp, err
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "auth/me", nil, nil, &resp)
	return resp, err
}

func (c *Client) ListVendors(ctx context.Context) ([]User, error) {
	var resp []User
	err := c.do(ctx, http.MethodGet, "users/vendors", nil, nil, &resp)
	return resp, err
}

func (c *Client) SetUserActive(ctx context.Context, userID string, active bool) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodPatch, "users/"+url.PathEscape(userID)+"/active", nil, map[string]bool{"is_active": active}, &resp)
	return resp, err
}

// CreateOrder creates an order. A non-empty idempotencyKey makes retries safe.
func (c *Client) CreateOrder(ctx context.Context, in CreateOrderInput, idempotencyKey string) (Order, error) {
	var resp Order
	err := c.do(ctx, http.MethodPost, "orders", idempotencyHeader(idempotencyKey), in, &resp)
	return resp, err
}

func (c *Client) GetOrder(ctx context.Context, id string) (Order, error) {
	var resp Order
	err := c.do(ctx, http.MethodGet, "orders/"+url.PathEscape(id), nil, nil, &resp)
	return resp, err
}

func (c *Client) ListOrders(ctx context.Context, status string, page, limit int) (OrderPage, error) {
	q := url.Values{}
	setQuery(q, "status", status)
	setQueryInt(q, "page", page)
	setQueryInt(q, "limit", limit)
	var resp OrderPage
	err := c.do(ctx, http.MethodGet, withQuery("orders", q), nil, nil, &resp)
	return resp, err
}

func (c *Client) SetOrderStatus(ctx context.Context, id, status string) (Order, error) {
	var resp Order
	err := c.do(ctx, http.MethodPut, "orders/"+url.PathEscape(id)+"/status", nil, map[string]string{"status": status}, &resp)
	return resp, err
}

func (c *Client) AssignVendors(ctx context.Context, id string, vendorIDs ...string) (Order, error) {
	if vendorIDs == nil {
		vendorIDs = []string{}
	}
	var resp Order
	err := c.do(ctx, http.MethodPost, "orders/"+url.PathEscape(id)+"/vendors", nil, map[string][]string{"vendor_ids": vendorIDs}, &resp)
	return resp, err
}

// SubmitQuote places a bid on an order as the authenticated vendor.
func (c *Client) SubmitQuote(ctx context.Context, in SubmitQuoteInput, idempotencyKey string) (Quote, error) {
	var resp Quote
	err := c.do(ctx, http.MethodPost, "quotes", idempotencyHeader(idempotencyKey), in, &resp)
	return resp, err
}

func (c *Client) GetQuote(ctx context.Context, id string) (Quote, error) {
	var resp Quote
	err := c.do(ctx, http.MethodGet, "quotes/"+url.PathEscape(id), nil, nil, &resp)
	return resp, err
}

func (c *Client) ListQuotes(ctx context.Context, in ListQuotesInput) (QuotePage, error) {
	q := url.Values{}
	setQuery(q, "order_id", in.OrderID)
	setQuery(q, "status", in.Status)
	setQueryInt(q, "page", in.Page)
	setQueryInt(q, "limit", in.Limit)
	var resp QuotePage
	err := c.do(ctx, http.MethodGet, withQuery("quotes", q), nil, nil, &resp)
	return resp, err
}

func (c *Client) ApproveQuote(ctx context.Context, id string) (Quote, error) {
	var resp Quote
	err := c.do(ctx, http.MethodPut, "quotes/"+url.PathEscape(id)+"/approve", nil, nil, &resp)
	return resp, err
}

func (c *Client) RejectQuote(ctx context.Context, id string) (Quote, error) {
	var resp Quote
	err := c.do(ctx, http.MethodPut, "quotes/"+url.PathEscape(id)+"/reject", nil, nil, &resp)
	return resp, err
}

func (c *Client) Dashboard(ctx context.Context) (Dashboard, error) {
	var resp Dashboard
	err := c.do(ctx, http.MethodGet, "dashboard", nil, nil, &resp)
	return resp, err
}

// EventsPage lists audit events newest first; pass the previous page's
// NextCursor to continue.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	setQueryInt(q, "limit", limit)
	setQuery(q, "cursor", cursor)
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, withQuery("events", q), nil, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, headers map[string]string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	u := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func idempotencyHeader(key string) map[string]string {
	if key == "" {
		return nil
	}
	return map[string]string{"Idempotency-Key": key}
}

func setQuery(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func setQueryInt(q url.Values, key string, value int) {
	if value > 0 {
		q.Set(key, strconv.Itoa(value))
	}
}

func withQuery(endpoint string, q url.Values) string {
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}
