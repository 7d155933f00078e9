package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"quoteline/internal/domain"
	"quoteline/internal/engine"
	"quoteline/internal/repo"
)

const tracerName = "quoteline/internal/observability"

// Workflow decorates an engine.Workflow with spans, logs and counters.
type Workflow struct {
	inner   engine.Workflow
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics workflowMetrics
}

type Option func(*Workflow)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) { w.logger = logger }
}

func WithTracer(tr trace.Tracer) Option {
	return func(w *Workflow) { w.tracer = tr }
}

func WithMeter(m metric.Meter) Option {
	return func(w *Workflow) { w.metrics = newWorkflowMetrics(m) }
}

// NewWorkflow wraps inner. Without options it traces to a no-op provider and
// discards logs.
func NewWorkflow(inner engine.Workflow, opts ...Option) *Workflow {
	w := &Workflow{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: newWorkflowMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	if w.tracer == nil {
		w.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	if w.logger == nil {
		w.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return w
}

// observe runs fn inside a span named op. Failures are recorded on the span
// and logged; expected domain refusals log at info, everything else at error.
func observe[T any](ctx context.Context, w *Workflow, op string, p *domain.Principal, attrs []attribute.KeyValue, fn func(context.Context) (T, error)) (T, error) {
	if p != nil {
		attrs = append(attrs, attribute.String("actor.id", p.ID), attribute.String("actor.role", string(p.Role)))
	}
	ctx, span := w.tracer.Start(ctx, "Workflow."+op, trace.WithAttributes(attrs...))
	defer span.End()

	out, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		level := slog.LevelInfo
		kind := domain.Kind(err)
		if kind == nil || errors.Is(kind, domain.ErrStorageUnavailable) {
			level = slog.LevelError
		}
		w.logger.LogAttrs(ctx, level, op+" failed", append(logAttrs(attrs), slog.String("error", err.Error()))...)
		return out, err
	}
	w.logger.LogAttrs(ctx, slog.LevelDebug, op, logAttrs(attrs)...)
	return out, nil
}

func logAttrs(attrs []attribute.KeyValue) []slog.Attr {
	out := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, slog.String(string(a.Key), a.Value.Emit()))
	}
	return out
}

func (w *Workflow) Register(ctx context.Context, caller *domain.Principal, opts engine.RegisterOptions) (domain.User, error) {
	return observe(ctx, w, "Register", caller, []attribute.KeyValue{attribute.String("user.role", string(opts.Role))},
		func(ctx context.Context) (domain.User, error) { return w.inner.Register(ctx, caller, opts) })
}

func (w *Workflow) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	return observe(ctx, w, "Authenticate", nil, nil,
		func(ctx context.Context) (domain.User, error) { return w.inner.Authenticate(ctx, email, password) })
}

func (w *Workflow) ResolvePrincipal(ctx context.Context, userID string) (domain.Principal, error) {
	return observe(ctx, w, "ResolvePrincipal", nil, []attribute.KeyValue{attribute.String("user.id", userID)},
		func(ctx context.Context) (domain.Principal, error) { return w.inner.ResolvePrincipal(ctx, userID) })
}

func (w *Workflow) Me(ctx context.Context, p domain.Principal) (domain.User, error) {
	return observe(ctx, w, "Me", &p, nil,
		func(ctx context.Context) (domain.User, error) { return w.inner.Me(ctx, p) })
}

func (w *Workflow) ListVendors(ctx context.Context, p domain.Principal) ([]domain.User, error) {
	return observe(ctx, w, "ListVendors", &p, nil,
		func(ctx context.Context) ([]domain.User, error) { return w.inner.ListVendors(ctx, p) })
}

func (w *Workflow) SetUserActive(ctx context.Context, p domain.Principal, userID string, active bool) (domain.User, error) {
	attrs := []attribute.KeyValue{attribute.String("user.id", userID), attribute.Bool("user.active", active)}
	return observe(ctx, w, "SetUserActive", &p, attrs,
		func(ctx context.Context) (domain.User, error) { return w.inner.SetUserActive(ctx, p, userID, active) })
}

func (w *Workflow) CreateOrder(ctx context.Context, p domain.Principal, opts engine.OrderCreateOptions) (domain.Order, error) {
	return observe(ctx, w, "CreateOrder", &p, []attribute.KeyValue{attribute.String("order.priority", string(opts.Priority))},
		func(ctx context.Context) (domain.Order, error) { return w.inner.CreateOrder(ctx, p, opts) })
}

func (w *Workflow) GetOrder(ctx context.Context, p domain.Principal, id string) (domain.Order, error) {
	return observe(ctx, w, "GetOrder", &p, []attribute.KeyValue{attribute.String("order.id", id)},
		func(ctx context.Context) (domain.Order, error) { return w.inner.GetOrder(ctx, p, id) })
}

func (w *Workflow) ListOrders(ctx context.Context, p domain.Principal, opts engine.OrderListOptions) (engine.OrderPage, error) {
	return observe(ctx, w, "ListOrders", &p, []attribute.KeyValue{attribute.Int("page", opts.Page)},
		func(ctx context.Context) (engine.OrderPage, error) { return w.inner.ListOrders(ctx, p, opts) })
}

func (w *Workflow) SetOrderStatus(ctx context.Context, p domain.Principal, id string, status domain.OrderStatus) (domain.Order, error) {
	attrs := []attribute.KeyValue{attribute.String("order.id", id), attribute.String("order.status", string(status))}
	o, err := observe(ctx, w, "SetOrderStatus", &p, attrs,
		func(ctx context.Context) (domain.Order, error) { return w.inner.SetOrderStatus(ctx, p, id, status) })
	if err == nil {
		w.metrics.recordTransition(ctx, o.Status)
	}
	return o, err
}

func (w *Workflow) AssignVendors(ctx context.Context, p domain.Principal, id string, vendorIDs []string) (domain.Order, error) {
	attrs := []attribute.KeyValue{attribute.String("order.id", id), attribute.Int("vendor.count", len(vendorIDs))}
	return observe(ctx, w, "AssignVendors", &p, attrs,
		func(ctx context.Context) (domain.Order, error) { return w.inner.AssignVendors(ctx, p, id, vendorIDs) })
}

func (w *Workflow) SubmitQuote(ctx context.Context, p domain.Principal, opts engine.QuoteSubmitOptions) (domain.Quote, error) {
	return observe(ctx, w, "SubmitQuote", &p, []attribute.KeyValue{attribute.String("order.id", opts.OrderID)},
		func(ctx context.Context) (domain.Quote, error) { return w.inner.SubmitQuote(ctx, p, opts) })
}

func (w *Workflow) GetQuote(ctx context.Context, p domain.Principal, id string) (domain.Quote, error) {
	return observe(ctx, w, "GetQuote", &p, []attribute.KeyValue{attribute.String("quote.id", id)},
		func(ctx context.Context) (domain.Quote, error) { return w.inner.GetQuote(ctx, p, id) })
}

func (w *Workflow) ListQuotes(ctx context.Context, p domain.Principal, opts engine.QuoteListOptions) (engine.QuotePage, error) {
	attrs := []attribute.KeyValue{attribute.String("order.id", opts.OrderID), attribute.Int("page", opts.Page)}
	return observe(ctx, w, "ListQuotes", &p, attrs,
		func(ctx context.Context) (engine.QuotePage, error) { return w.inner.ListQuotes(ctx, p, opts) })
}

func (w *Workflow) ReviewQuote(ctx context.Context, p domain.Principal, id string, decision domain.Decision) (domain.Quote, error) {
	attrs := []attribute.KeyValue{attribute.String("quote.id", id), attribute.String("quote.decision", string(decision))}
	q, err := observe(ctx, w, "ReviewQuote", &p, attrs,
		func(ctx context.Context) (domain.Quote, error) { return w.inner.ReviewQuote(ctx, p, id, decision) })
	switch {
	case err == nil:
		w.metrics.recordReview(ctx, decision)
	case errors.Is(err, domain.ErrOrderAlreadyAwarded):
		w.metrics.recordAwardConflict(ctx)
	}
	return q, err
}

func (w *Workflow) CreateRequirement(ctx context.Context, p domain.Principal, opts engine.RequirementCreateOptions) (domain.Requirement, error) {
	return observe(ctx, w, "CreateRequirement", &p, nil,
		func(ctx context.Context) (domain.Requirement, error) { return w.inner.CreateRequirement(ctx, p, opts) })
}

func (w *Workflow) ListRequirements(ctx context.Context, p domain.Principal, opts engine.RequirementListOptions) (engine.RequirementPage, error) {
	return observe(ctx, w, "ListRequirements", &p, []attribute.KeyValue{attribute.Int("page", opts.Page)},
		func(ctx context.Context) (engine.RequirementPage, error) { return w.inner.ListRequirements(ctx, p, opts) })
}

func (w *Workflow) Dashboard(ctx context.Context, p domain.Principal) (domain.Dashboard, error) {
	return observe(ctx, w, "Dashboard", &p, nil,
		func(ctx context.Context) (domain.Dashboard, error) { return w.inner.Dashboard(ctx, p) })
}

func (w *Workflow) ListEvents(ctx context.Context, p domain.Principal, f repo.EventFilters) ([]domain.Event, error) {
	return observe(ctx, w, "ListEvents", &p, []attribute.KeyValue{attribute.String("event.type", f.Type)},
		func(ctx context.Context) ([]domain.Event, error) { return w.inner.ListEvents(ctx, p, f) })
}

type workflowMetrics struct {
	quotesReviewed     metric.Int64Counter
	ordersTransitioned metric.Int64Counter
	awardConflicts     metric.Int64Counter
}

func newWorkflowMetrics(m metric.Meter) workflowMetrics {
	if m == nil {
		return workflowMetrics{}
	}
	reviewed, _ := m.Int64Counter("quoteline.quotes.reviewed", metric.WithDescription("Quotes approved or rejected"))
	transitioned, _ := m.Int64Counter("quoteline.orders.transitioned", metric.WithDescription("Order status changes"))
	conflicts, _ := m.Int64Counter("quoteline.quotes.award_conflicts", metric.WithDescription("Approvals refused because the order was already awarded"))
	return workflowMetrics{quotesReviewed: reviewed, ordersTransitioned: transitioned, awardConflicts: conflicts}
}

func (m workflowMetrics) recordReview(ctx context.Context, d domain.Decision) {
	if m.quotesReviewed != nil {
		m.quotesReviewed.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", string(d))))
	}
}

func (m workflowMetrics) recordTransition(ctx context.Context, to domain.OrderStatus) {
	if m.ordersTransitioned != nil {
		m.ordersTransitioned.Add(ctx, 1, metric.WithAttributes(attribute.String("to", string(to))))
	}
}

func (m workflowMetrics) recordAwardConflict(ctx context.Context) {
	if m.awardConflicts != nil {
		m.awardConflicts.Add(ctx, 1)
	}
}

var _ engine.Workflow = (*Workflow)(nil)
