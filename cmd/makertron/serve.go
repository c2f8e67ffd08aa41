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
	"golang.org/x/sync/errgroup"

	"github.com/chazu/makertron/internal/cache"
	"github.com/chazu/makertron/internal/ctxlog"
	"github.com/chazu/makertron/internal/metrics"
	"github.com/chazu/makertron/internal/server"
	"github.com/chazu/makertron/pkg/session"
	"github.com/chazu/makertron/pkg/tessellate"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the evaluation server",
	Long:  `Starts the HTTP server with the socket.io endpoint, the synchronous /evaluate API and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if v, _ := cmd.Flags().GetString("listen"); v != "" {
			cfg.Listen = v
		}
		if cmd.Flags().Changed("workers") {
			cfg.Eval.Workers, _ = cmd.Flags().GetInt("workers")
		}
		if v, _ := cmd.Flags().GetString("kernel"); v != "" {
			cfg.Eval.Kernel = v
		}
		if v, _ := cmd.Flags().GetString("redis"); v != "" {
			cfg.Redis.Addr = v
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger := newLogger(cfg)

		k, err := newKernel(cfg.Eval.Kernel)
		if err != nil {
			return err
		}

		m := metrics.New()
		opts := []session.Option{
			session.WithMaxIterations(cfg.Eval.MaxIterations),
			session.WithDefaults(cfg.Eval.DefaultQuality, tessellate.Format(cfg.Eval.DefaultFormat)),
			session.WithMetrics(m),
		}
		if cfg.Redis.Addr != "" {
			rc := cache.NewRedis(cfg.Redis.Addr, cache.WithTTL(cfg.Redis.TTL))
			defer rc.Close()
			if err := rc.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
			}
			opts = append(opts, session.WithCache(rc))
			logger.Info("result cache enabled", "backend", "redis", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL)
		} else {
			opts = append(opts, session.WithCache(cache.NewMemory(cache.DefaultMemoryEntries)))
		}

		pool := session.NewPool(session.New(k, opts...), session.PoolConfig{
			Workers:     cfg.Eval.Workers,
			QueueSize:   cfg.Eval.QueueSize,
			EvalTimeout: cfg.Eval.Timeout,
		})
		defer pool.Close()

		srv := server.New(pool, server.Options{
			Version:     cfg.Version,
			Metrics:     m.Handler(),
			CORSOrigin:  cfg.SocketIO.CORSOrigin,
			PingTimeout: cfg.SocketIO.PingTimeout,
			Logger:      logger,
		})
		defer srv.Close()

		httpSrv := &http.Server{
			Addr:              cfg.Listen,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = ctxlog.WithLogger(ctx, logger)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("Makertron starting", "version", cfg.Version, "listen", cfg.Listen, "kernel", cfg.Eval.Kernel)
			if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
				return httpSrv.Close()
			}
			return nil
		})
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "Address to listen on (overrides config)")
	serveCmd.Flags().IntP("workers", "w", 0, "Evaluation workers, 0 means one per CPU")
	serveCmd.Flags().String("kernel", "", "Geometry kernel: sdfx or manifold")
	serveCmd.Flags().String("redis", "", "Redis address for the result cache")
}
