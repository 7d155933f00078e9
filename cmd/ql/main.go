package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"quoteline/internal/app"
	"quoteline/internal/domain"
	"quoteline/internal/engine"
	"quoteline/internal/repo"
	"quoteline/internal/server"
)

const jwtSecretEnv = "QUOTELINE_JWT_SECRET"

var rootCmd = &cobra.Command{
	Use:   "ql",
	Short: "Quoteline CLI",
	Long: `Quoteline runs procurement for one organization.
- Managers and staff publish orders and assign vendors to them.
- Vendors bid on orders with quotes.
- An order awards at most one quote; approving a second one is refused.
- Orders move pending -> in-progress -> completed, and may be cancelled until completed.
- Every change lands in the event log, view with 'ql log tail'.
Local commands act as the user named by --actor (login email).`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("QUOTELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor", "", "acting user email")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor", rootCmd.PersistentFlags().Lookup("actor"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(orderCmd())
	rootCmd.AddCommand(quoteCmd())
	rootCmd.AddCommand(requirementCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(logCmd())
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				fmt.Printf("Database (%s) is up to date\n", env.Dialect)
				return nil
			})
		},
	}
}

func userCmd() *cobra.Command {
	usr := &cobra.Command{Use: "user", Short: "Manage accounts"}
	usr.AddCommand(userRegisterCmd())
	usr.AddCommand(userListCmd())
	usr.AddCommand(userActiveCmd("deactivate", false))
	usr.AddCommand(userActiveCmd("activate", true))
	return usr
}

func userRegisterCmd() *cobra.Command {
	var opts engine.RegisterOptions
	var role string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register an account",
		Long:  "Without --actor only vendors can sign up, except for the very first account of a new workspace.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				var caller *domain.Principal
				if email := viper.GetString("actor"); email != "" {
					p, err := env.Actor(ctx, email)
					if err != nil {
						return err
					}
					caller = &p
				}
				opts.Role = domain.Role(role)
				u, err := env.Engine.Register(ctx, caller, opts)
				if err != nil {
					return err
				}
				return printUsers([]domain.User{u})
			})
		},
	}
	cmd.Flags().StringVar(&opts.Email, "email", "", "login email")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password")
	cmd.Flags().StringVar(&opts.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&opts.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleVendor), "manager|staff|vendor")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&opts.CompanyName, "company", "", "vendor company name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active vendors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, env *app.Env, p domain.Principal) error {
				users, err := env.Engine.ListVendors(ctx, p)
				if err != nil {
					return err
				}
				return printUsers(users)
			})
		},
	}
}

func userActiveCmd(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <email>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, env *app.Env, p domain.Principal) error {
				target, err := env.Engine.Repo.GetUserByEmail(ctx, nil, args[0])
				if err != nil {
					return err
				}
				u, err := env.Engine.SetUserActive(ctx, p, target.ID, active)
				if err != nil {
					return err
				}
				return printUsers([]domain.User{u})
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	tok := &cobra.Command{Use: "token", Short: "Bearer tokens"}
	var email string
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Mint a bearer token for an account (development)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				secret := os.Getenv(jwtSecretEnv)
				if secret == "" {
					return fmt.Errorf("%s is required to sign tokens", jwtSecretEnv)
				}
				u, err := env.Engine.Repo.GetUserByEmail(ctx, nil, email)
				if err != nil {
					return err
				}
				if !u.Active {
					return fmt.Errorf("account %s is deactivated", u.Email)
				}
				token, expires, err := server.IssueToken(authConfig(env, secret), u)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"token": token, "expires_at": domain.FormatTime(expires)})
				}
				fmt.Println(token)
				return nil
			})
		},
	}
	mint.Flags().StringVar(&email, "email", "", "account email")
	_ = mint.MarkFlagRequired("email")
	tok.AddCommand(mint)
	return tok
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show summary counters for the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, env *app.Env, p domain.Principal) error {
				d, err := env.Engine.Dashboard(ctx, p)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(d)
				}
				tw := newTable(table.Row{"Counter", "Value"})
				for _, c := range []struct {
					name string
					v    *int
				}{
					{"total orders", d.TotalOrders},
					{"pending orders", d.PendingOrders},
					{"active vendors", d.TotalVendors},
					{"total quotes", d.TotalQuotes},
					{"assigned orders", d.AssignedOrders},
					{"submitted quotes", d.SubmittedQuotes},
					{"approved quotes", d.ApprovedQuotes},
				} {
					if c.v != nil {
						tw.AppendRow(table.Row{c.name, *c.v})
					}
				}
				fmt.Println(tw.Render())
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, env *app.Env, p domain.Principal) error {
				items, err := env.Engine.ListEvents(ctx, p, repo.EventFilters{
					Type:       evtType,
					EntityKind: entityKind,
					EntityID:   entityID,
					Limit:      n,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"ID", "TS", "Type", "Entity", "Actor", "Payload"})
				for _, e := range items {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.EntityKind + "/" + e.EntityID, e.ActorID, e.Payload})
				}
				fmt.Println(tw.Render())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

// --- helpers ---

func withEnv(ctx context.Context, fn func(context.Context, *app.Env) error) error {
	env, err := app.Open(ctx, viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env)
}

func withActor(ctx context.Context, fn func(context.Context, *app.Env, domain.Principal) error) error {
	return withEnv(ctx, func(ctx context.Context, env *app.Env) error {
		p, err := env.Actor(ctx, viper.GetString("actor"))
		if err != nil {
			return err
		}
		return fn(ctx, env, p)
	})
}

func authConfig(env *app.Env, secret string) server.AuthConfig {
	return server.AuthConfig{
		JWTSecret: secret,
		Issuer:    env.Config.Auth.Issuer,
		TokenTTL:  env.Config.Auth.TokenTTL,
		Now:       time.Now,
	}
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	return tw
}

func printUsers(users []domain.User) error {
	if viper.GetBool("json") {
		return printJSON(users)
	}
	tw := newTable(table.Row{"ID", "Email", "Name", "Role", "Company", "Active"})
	for _, u := range users {
		tw.AppendRow(table.Row{u.ID, u.Email, u.FirstName + " " + u.LastName, u.Role, u.CompanyName, u.Active})
	}
	fmt.Println(tw.Render())
	return nil
}

func printPagination(p domain.Pagination) {
	fmt.Printf("page %d/%d (%d total)\n", p.Page, p.Pages, p.Total)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
