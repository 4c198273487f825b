package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ragchat/answerrelay/client/internal/config"
	"github.com/ragchat/answerrelay/client/internal/health"
	"github.com/ragchat/answerrelay/client/internal/poller"
	"github.com/ragchat/answerrelay/client/internal/relayclient"
	"github.com/ragchat/answerrelay/pkg/relay"
)

const maxHealthBackoff = 60 * time.Second

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd(out io.Writer) *cobra.Command {
	var gf globalFlags

	cmd := &cobra.Command{
		Use:   "relay-poller",
		Short: "Poll relay-server for answers and print each one as a JSON line",
		Long: `relay-poller polls GET /poll/{userId} for every configured user on a
fixed interval and writes each claimed answer to stdout as one JSON object
per line. Logs go to stderr. When --config is set the file is watched and
changes to client.users take effect on the next tick.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return setupLogging(gf.logLevel)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, gf.configPath, out)
		},
	}

	cmd.PersistentFlags().StringVar(&gf.configPath, "config", "", "path to config file (defaults apply when empty)")
	cmd.PersistentFlags().StringVar(&gf.logLevel, "log-level", "info", "log level: debug|info|warn|error")

	cmd.AddCommand(newPushCmd(&gf, out))
	return cmd
}

func setupLogging(logLevel string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func run(ctx context.Context, configPath string, out io.Writer) error {
	slog.Info("relay-poller starting", "config", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		return err
	}
	c := cfg.Client
	slog.Info("config loaded",
		"relay_url", c.RelayURL,
		"users", c.Users,
		"poll_interval", c.PollInterval,
		"poll_timeout", c.PollTimeout,
	)

	client, err := relayclient.New(c.RelayURL)
	if err != nil {
		return err
	}

	p := poller.New(client, c.Users, poller.Options{
		Interval:      c.PollInterval,
		Timeout:       c.PollTimeout,
		MaxConcurrent: c.MaxConcurrentPolls,
		BufferSize:    c.BufferSize,
	})
	mon := health.New(client, c.HealthInterval, maxHealthBackoff)

	g, gctx := errgroup.WithContext(ctx)

	stop := p.Start(gctx)
	g.Go(func() error {
		<-gctx.Done()
		stop()
		return nil
	})

	// Drains until the poller closes its channel, so buffered answers are
	// still printed during shutdown.
	g.Go(func() error {
		enc := json.NewEncoder(out)
		return poller.Dispatch(context.Background(), p.Messages(), func(m poller.Message) {
			if err := enc.Encode(relay.Answer{UserID: m.UserID, Answer: m.Answer, Timestamp: m.Timestamp}); err != nil {
				slog.Error("failed to write answer", "user", m.UserID, "err", err)
			}
		})
	})

	g.Go(func() error {
		mon.Run(gctx)
		return nil
	})
	g.Go(func() error {
		for s := range mon.Changes() {
			slog.Info("relay connection", "state", s.String(), "stored_responses", mon.Pending())
		}
		return nil
	})

	if configPath != "" {
		g.Go(func() error {
			err := config.Watch(gctx, configPath, func(updated *config.Config) {
				p.SetUsers(updated.Client.Users)
				slog.Info("poll users updated", "users", updated.Client.Users)
			})
			if err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
			return nil
		})
	}

	err = g.Wait()
	st := p.Stats()
	slog.Info("relay-poller stopped",
		"ticks", st.Ticks,
		"delivered", st.Delivered,
		"discarded", st.Discarded,
		"errors", st.Errors,
	)
	return err
}

func newPushCmd(gf *globalFlags, out io.Writer) *cobra.Command {
	var (
		userID    string
		answer    string
		timestamp string
		relayURL  string
	)

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Send one answer to the relay the way the RAG backend does",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" || answer == "" {
				return errors.New("--user and --answer are required")
			}

			base := relayURL
			if base == "" {
				cfg, err := config.Load(gf.configPath)
				if err != nil {
					return err
				}
				base = cfg.Client.RelayURL
			}

			client, err := relayclient.New(base)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			resp, err := client.Push(ctx, relay.PushRequest{UserID: userID, Answer: answer, Timestamp: timestamp})
			if err != nil {
				return err
			}
			return json.NewEncoder(out).Encode(resp)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id the answer belongs to")
	cmd.Flags().StringVar(&answer, "answer", "", "answer text")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "producer timestamp (relay time when empty)")
	cmd.Flags().StringVar(&relayURL, "relay-url", "", "relay base URL (overrides config)")
	return cmd
}
