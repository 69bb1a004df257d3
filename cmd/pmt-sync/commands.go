package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/commandgrid/pmt/internal/offline"
)

// app is built per invocation from the resolved configuration.
type app struct {
	cfg     *syncConfig
	manager *offline.Manager
	tr      offline.Translations
	out     io.Writer
}

func newApp(cmd *cobra.Command) (*app, error) {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(configFile, cmd)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))

	tr, err := offline.LoadTranslations(cfg.TranslationsFile)
	if err != nil {
		logger.Warn("translations unavailable, using built-in bundle", "error", err)
		tr = offline.DefaultTranslations()
	}

	manager, err := offline.NewManager(offline.Config{
		Store:         offline.NewFileStore(cfg.QueueFile),
		API:           offline.NewClient(cfg.APIURL, cfg.Token),
		Translations:  tr,
		Language:      cfg.Language,
		CheckInterval: cfg.CheckInterval,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, manager: manager, tr: tr, out: cmd.OutOrStdout()}, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pmt-sync",
		Short: "Offline change queue for the PMT API",
		Long: `pmt-sync keeps project edits made without connectivity in a local queue
and replays them against the PMT API, in order, once it is reachable.

Configuration is read from $HOME/.pmt-sync.yaml (or --config), then from
PMT_SYNC_* environment variables, then from flags.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "Config file (default $HOME/.pmt-sync.yaml)")
	pf.String("api-url", "", "PMT API base URL")
	pf.String("token", "", "Bearer access token")
	pf.String("queue-file", "", "Path of the pending change queue")
	pf.String("language", "", "Message language")
	pf.String("translations-file", "", "Path of the translations bundle")
	pf.Duration("check-interval", 0, "Connectivity check interval for watch")
	pf.String("log-level", "", "Log level: debug, info, warn or error")

	root.AddCommand(
		newQueueCmd(),
		newSyncCmd(),
		newStatusCmd(),
		newWatchCmd(),
		newTranslateCmd(),
	)
	return root
}

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue <task-update|feature-update|project-update>",
		Short: "Queue a change for the next sync",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("data")
			var data map[string]any
			if err := json.Unmarshal([]byte(raw), &data); err != nil {
				return fmt.Errorf("--data must be a JSON object: %w", err)
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if err := a.manager.Queue(offline.Change{Type: args[0], Data: data}); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "queued %s (%d pending)\n", args[0], len(a.manager.Pending()))
			return nil
		},
	}
	cmd.Flags().String("data", "", "Change payload as a JSON object; must include \"id\"")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay the queue now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if !a.manager.CheckConnection(cmd.Context()) {
				return fmt.Errorf("%s", a.manager.T("errors.offline"))
			}
			res, err := a.manager.Sync(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s: %w", a.manager.T("errors.syncFailed"), err)
			}
			fmt.Fprintf(a.out, "synced %d change(s), %d pending\n", res.Synced, res.Remaining)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity and pending changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			online := a.manager.CheckConnection(cmd.Context())
			pending := a.manager.Pending()

			state := "online"
			if !online {
				state = "offline"
			}
			fmt.Fprintf(a.out, "api:     %s (%s)\n", a.cfg.APIURL, state)
			fmt.Fprintf(a.out, "queue:   %s\n", a.cfg.QueueFile)
			fmt.Fprintf(a.out, "pending: %d\n", len(pending))
			for i, c := range pending {
				fmt.Fprintf(a.out, "  %d. %s %v at %s\n", i+1, c.Type, c.Data["id"], c.Timestamp.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Check connectivity periodically and sync on reconnect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := a.manager.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}

func newTranslateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate <key>",
		Short: "Print the translation of a dot-separated key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			namespace, _ := cmd.Flags().GetString("namespace")
			fmt.Fprintln(a.out, a.tr.Translate(args[0], a.cfg.Language, namespace))
			return nil
		},
	}
	cmd.Flags().String("namespace", offline.DefaultNamespace, "Translation namespace")
	return cmd
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
