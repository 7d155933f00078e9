package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"quoteline/internal/app"
	"quoteline/internal/domain"
	"quoteline/internal/engine"
)

func orderCmd() *cobra.Command {
	ord := &cobra.Command{Use: "order", Short: "Manage orders"}
	ord.AddCommand(orderCreateCmd())
	ord.AddCommand(orderListCmd())
	ord.AddCommand(orderShowCmd())
	ord.AddCommand(orderStatusCmd())
	ord.AddCommand(orderAssignCmd())
	return ord
}

func orderCreateCmd() *cobra.Command {
	var opts engine.OrderCreateOptions
	var budget, priority string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an order",
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseMoney("budget", budget)
			if err != nil {
				return err
			}
			opts.Budget = amount
			opts.Priority = domain.Priority(priority)
			return withActor(cmd.Context(), func(ctx context.Context, env *app.Env, p domain.Principal) error {
				o, err := env.Engine.CreateOrder(ctx, p, opts)
				if err != nil {
					return err
				}
				return printOrders([]domain.Order{o})
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "order title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category")
	cmd.Flags().StringVar(&budget, "budget", "", "budget, e.g. 1500.00")
	cmd.Flags().StringVar(&opts.Deadline, "deadline", "", "deadline (RFC 3339)")
	cmd.Flags().StringVar(&priority, "priority", "", "low|medium|high")
	cmd.Flags().StringVar(&opts.IdempotencyKey, "idempotency-key", "", "makes retries return the first result")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("budget")
	_ = cmd.MarkFlagRequired("deadline")
	return cmd
}

func orderListCmd() *cobra.Command {
	var status string
	var page, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders visible to the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, env *app.Env, p domain.Principal) error {
				res, err := env.Engine.ListOrders(ctx, p, engine.OrderListOptions{
					ListOptions: engine.ListOptions{Page: page, Limit: limit},
					Status:      domain.OrderStatus(status),
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				if err := printOrders(res.Items); err != nil {
					return err
				}
				printPagination(res.Pagination)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "pending|in-progress|completed|cancelled")
	addPageFlags(cmd, &page, &limit)
	return cmd
}

func orderShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an order and its quotes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, env *app.Env, p domain.Principal) error {
				o, err := env.Engine.GetOrder(ctx, p, args[0])
				if err != nil {
					return err
				}
				quotes, err := env.Engine.ListQuotes(ctx, p, engine.QuoteListOptions{
					ListOptions: engine.ListOptions{Limit: env.Config.Pagination.MaxLimit},
					OrderID:     o.ID,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"order": o, "quotes": quotes.Items})
				}
				fmt.Printf("Order %s: %s [%s]\n", o.ID, o.Title, o.Status)
				fmt.Printf("Budget %s, deadline %s, priority %s\n", o.Budget.StringFixed(2), o.Deadline, o.Priority)
				if o.Description != "" {
					fmt.Println(o.Description)
				}
				fmt.Printf("Assigned vendors: %s\n", joinOrNone(o.AssignedVendors))
				return printQuotes(quotes.Items)
			})
		},
	}
}

func orderStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <pending|in-progress|completed|cancelled>",
		Short: "Move an order through its lifecycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, env *app.Env, p domain.Principal) error {
				o, err := env.Engine.SetOrderStatus(ctx, p, args[0], domain.OrderStatus(args[1]))
				if err != nil {
					return err
				}
				return printOrders([]domain.Order{o})
			})
		},
	}
}

func orderAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <id> <vendor-email>...",
		Short: "Assign vendors to an order",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, env *app.Env, p domain.Principal) error {
				ids := make([]string, 0, len(args)-1)
				for _, email := range args[1:] {
					u, err := env.Engine.Repo.GetUserByEmail(ctx, nil, email)
					if err != nil {
						return fmt.Errorf("vendor %s: %w", email, err)
					}
					ids = append(ids, u.ID)
				}
				o, err := env.Engine.AssignVendors(ctx, p, args[0], ids)
				if err != nil {
					return err
				}
				return printOrders([]domain.Order{o})
			})
		},
	}
}

func quoteCmd() *cobra.Command {
	qt := &cobra.Command{Use: "quote", Short: "Submit and review quotes"}
	qt.AddCommand(quoteSubmitCmd())
	qt.AddCommand(quoteListCmd())
	qt.AddCommand(quoteReviewCmd(domain.DecisionApprove))
	qt.AddCommand(quoteReviewCmd(domain.DecisionReject))
	return qt
}

func quoteSubmitCmd() *cobra.Command {
	var opts engine.QuoteSubmitOptions
	var amount string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a quote as the acting vendor",
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseMoney("amount", amount)
			if err != nil {
				return err
			}
			opts.Amount = value
			return withActor(cmd.Context(), func(ctx context.Context, env *app.Env, p domain.Principal) error {
				q, err := env.Engine.SubmitQuote(ctx, p, opts)
				if err != nil {
					return err
				}
				return printQuotes([]domain.Quote{q})
			})
		},
	}
	cmd.Flags().StringVar(&opts.OrderID, "order", "", "order id")
	cmd.Flags().StringVar(&amount, "amount", "", "quoted amount")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.DeliveryTime, "delivery-time", "", "promised delivery time")
	cmd.Flags().StringVar(&opts.IdempotencyKey, "idempotency-key", "", "makes retries return the first result")
	_ = cmd.MarkFlagRequired("order")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func quoteListCmd() *cobra.Command {
	var orderID, status string
	var page, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List quotes visible to the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, env *app.Env, p domain.Principal) error {
				res, err := env.Engine.ListQuotes(ctx, p, engine.QuoteListOptions{
					ListOptions: engine.ListOptions{Page: page, Limit: limit},
					OrderID:     orderID,
					Status:      domain.QuoteStatus(status),
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				if err := printQuotes(res.Items); err != nil {
					return err
				}
				printPagination(res.Pagination)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&orderID, "order", "", "order id filter")
	cmd.Flags().StringVar(&status, "status", "", "pending|approved|rejected")
	addPageFlags(cmd, &page, &limit)
	return cmd
}

func quoteReviewCmd(decision domain.Decision) *cobra.Command {
	return &cobra.Command{
		Use:   string(decision) + " <id>",
		Short: strings.ToUpper(string(decision[:1])) + string(decision[1:]) + " a pending quote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, env *app.Env, p domain.Principal) error {
				q, err := env.Engine.ReviewQuote(ctx, p, args[0], decision)
				if err != nil {
					return err
				}
				return printQuotes([]domain.Quote{q})
			})
		},
	}
}

func requirementCmd() *cobra.Command {
	req := &cobra.Command{Use: "requirement", Short: "Manage requirements"}
	req.AddCommand(requirementCreateCmd())
	req.AddCommand(requirementListCmd())
	return req
}

func requirementCreateCmd() *cobra.Command {
	var opts engine.RequirementCreateOptions
	var priority string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a requirement",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Priority = domain.Priority(priority)
			return withActor(cmd.Context(), func(ctx context.Context, env *app.Env, p domain.Principal) error {
				r, err := env.Engine.CreateRequirement(ctx, p, opts)
				if err != nil {
					return err
				}
				return printRequirements([]domain.Requirement{r})
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category")
	cmd.Flags().StringVar(&priority, "priority", "", "low|medium|high")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func requirementListCmd() *cobra.Command {
	var status, category string
	var page, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requirements",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, env *app.Env, p domain.Principal) error {
				res, err := env.Engine.ListRequirements(ctx, p, engine.RequirementListOptions{
					ListOptions: engine.ListOptions{Page: page, Limit: limit},
					Status:      domain.RequirementStatus(status),
					Category:    category,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				if err := printRequirements(res.Items); err != nil {
					return err
				}
				printPagination(res.Pagination)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "active|completed|cancelled")
	cmd.Flags().StringVar(&category, "category", "", "category filter")
	addPageFlags(cmd, &page, &limit)
	return cmd
}

func addPageFlags(cmd *cobra.Command, page, limit *int) {
	cmd.Flags().IntVar(page, "page", 1, "page number")
	cmd.Flags().IntVar(limit, "limit", 0, "page size (config default when 0)")
}

func parseMoney(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("--%s must be a decimal number", field)
	}
	return d, nil
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func printOrders(items []domain.Order) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable(table.Row{"ID", "Title", "Status", "Budget", "Deadline", "Priority", "Vendors"})
	for _, o := range items {
		tw.AppendRow(table.Row{o.ID, o.Title, o.Status, o.Budget.StringFixed(2), o.Deadline, o.Priority, len(o.AssignedVendors)})
	}
	fmt.Println(tw.Render())
	return nil
}

func printQuotes(items []domain.Quote) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable(table.Row{"ID", "Order", "Vendor", "Amount", "Status", "Submitted"})
	for _, q := range items {
		tw.AppendRow(table.Row{q.ID, q.OrderID, q.VendorID, q.Amount.StringFixed(2), q.Status, q.SubmittedAt})
	}
	fmt.Println(tw.Render())
	return nil
}

func printRequirements(items []domain.Requirement) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable(table.Row{"ID", "Title", "Category", "Priority", "Status"})
	for _, r := range items {
		tw.AppendRow(table.Row{r.ID, r.Title, r.Category, r.Priority, r.Status})
	}
	fmt.Println(tw.Render())
	return nil
}
