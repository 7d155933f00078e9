package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"quoteline/internal/app"
	"quoteline/internal/jobs"
	"quoteline/internal/observability"
	"quoteline/internal/server"
)

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env, err := app.Open(ctx, viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer env.Close()
			secret := os.Getenv(jwtSecretEnv)
			if secret == "" {
				return fmt.Errorf("%s is required for bearer auth", jwtSecretEnv)
			}
			if !cmd.Flags().Changed("addr") {
				addr = env.Config.Server.Addr
			}
			if !cmd.Flags().Changed("base-path") && env.Config.Server.BasePath != "" {
				basePath = env.Config.Server.BasePath
			}

			inst, shutdownTelemetry, err := observability.Init(ctx, "quoteline", os.Stderr)
			if err != nil {
				return err
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdownTelemetry(flushCtx)
			}()
			logger := inst.Logger

			workflow := observability.NewWorkflow(env.Engine,
				observability.WithLogger(logger),
				observability.WithTracer(inst.Tracer("quoteline/engine")),
				observability.WithMeter(inst.Meter("quoteline/engine")),
			)
			handler, err := server.New(server.Config{
				Workflow: workflow,
				BasePath: basePath,
				Auth:     authConfig(env, secret),
				Logger:   logger,
			})
			if err != nil {
				return err
			}

			jm := jobs.NewJobManager(env.Engine, env.Config.Idempotency.PurgeSchedule, logger)
			if err := jm.StartAll(); err != nil {
				return err
			}
			defer jm.StopAll()
			go server.NewWebhookDispatcher(env.Engine.Repo, env.Config.Webhooks, logger).Run(ctx)

			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			logger.Info("serving quoteline api",
				"addr", addr,
				"base_path", basePath,
				"storage", string(env.Dialect),
				"openapi", basePath+"/openapi.json",
				"docs", basePath+"/docs",
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address (defaults to server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path (defaults to server.base_path)")
	return cmd
}
