package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ragchat/answerrelay/server/internal/api"
	"github.com/ragchat/answerrelay/server/internal/config"
	"github.com/ragchat/answerrelay/server/internal/httpx"
	"github.com/ragchat/answerrelay/server/internal/metrics"
	"github.com/ragchat/answerrelay/server/internal/receiver"
	"github.com/ragchat/answerrelay/server/internal/store"
	"github.com/ragchat/answerrelay/server/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "relay-server",
		Short: "Buffer producer-pushed answers until the chat client polls for them",
		Long: `relay-server accepts answers from the RAG backend on POST /webhook and
holds at most one answer per user until the chat client claims it with
GET /poll/{userId}. Unclaimed answers are evicted after answers.max_age.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, configPath, logLevel)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config file (defaults apply when empty)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug|info|warn|error")
	return cmd
}

func run(ctx context.Context, configPath, logLevel string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("relay-server starting", "config", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		return err
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"max_age", cfg.Server.Answers.MaxAge,
		"reap_interval", cfg.Server.Answers.ReapInterval,
		"stream_interval", cfg.Server.StreamInterval,
	)

	// Answer store with background eviction.
	st := store.New(cfg.Server.Answers.MaxAge, cfg.Server.Answers.ReapInterval)
	rec := &metrics.Recorder{}
	hub := ws.New(st, cfg.Server.StreamInterval)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           newHandler(cfg.Server, st, rec, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		st.Run(gctx)
		return nil
	})

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		slog.Info("HTTP server listening",
			"port", cfg.Server.HTTPPort,
			"webhook_url", fmt.Sprintf("http://localhost:%d/webhook", cfg.Server.HTTPPort),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("relay-server shutting down", "pending_answers", st.Count())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("relay-server stopped with error", "err", err)
		return err
	}
	return nil
}

// newHandler mounts every relay route behind the shared middleware chain.
func newHandler(cfg config.ServerConfig, st *store.Store, rec *metrics.Recorder, hub *ws.Hub) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/webhook", receiver.New(st, rec))
	mux.Handle("/metrics", metrics.New(st, rec))
	mux.Handle("/ws/health", hub)
	mux.Handle("/", api.New(st, rec))

	return httpx.Chain(mux,
		httpx.Recover(),
		httpx.RequestID(),
		httpx.CORS(cfg.CORS.AllowedOrigins),
	)
}
