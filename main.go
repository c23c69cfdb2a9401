package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"HlxPurge/changeset"
	"HlxPurge/config"
	"HlxPurge/edge"
	"HlxPurge/internal/app"
	"HlxPurge/internal/host"
	"HlxPurge/internal/logger"
	"HlxPurge/internal/metrics"
	"HlxPurge/scm"
	"HlxPurge/telegram"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-githubactions"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

var errRunFailed = errors.New("purge run failed")

type options struct {
	configPath     string
	envFile        string
	pathsFile      string
	baseURL        string
	maxConnections int
	logLevel       string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "hlxpurge",
		Short:         "Purge the Helix edge cache for the files changed by a push",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "optional YAML config file")
	f.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded when present")
	f.StringVar(&opts.pathsFile, "paths-file", "", "read changed paths from this file instead of the compare API")
	f.StringVar(&opts.baseURL, "base-url", "", "edge base url (overrides helix_url)")
	f.IntVar(&opts.maxConnections, "max-connections", 0, "concurrent purge ceiling (0 = config)")
	f.StringVar(&opts.logLevel, "log-level", "", "debug|info|warn|error (empty = config)")
	return cmd
}

func (o options) apply(cfg *config.Config) {
	if o.pathsFile != "" {
		cfg.PathsFile = o.pathsFile
	}
	if o.baseURL != "" {
		cfg.HelixURL = o.baseURL
	}
	if o.maxConnections > 0 {
		cfg.MaxConnections = o.maxConnections
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
}

func run(ctx context.Context, opts options) error {
	if opts.envFile != "" {
		if _, err := os.Stat(opts.envFile); err == nil {
			if err := godotenv.Load(opts.envFile); err != nil {
				return fmt.Errorf("load %s: %w", opts.envFile, err)
			}
		}
	}

	action := githubactions.New()
	reporter := host.NewActions(action)

	cfg, err := config.Load(opts.configPath, action)
	if err != nil {
		reporter.Failed(err.Error())
		return errRunFailed
	}
	opts.apply(&cfg)

	logger.Init(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level, Version: version})
	defer logger.Sync()
	log := logger.Named("main")

	var ev scm.Event
	payload, err := host.Event(action)
	if err != nil {
		log.Warn("no workflow event", zap.Error(err))
	} else {
		ev = scm.EventFromPayload(payload)
	}

	paths, err := loadPaths(ctx, cfg, ev)
	if err != nil {
		reporter.Failed(err.Error())
		return errRunFailed
	}
	base, err := cfg.EdgeURL(ev)
	if err != nil {
		reporter.Failed(err.Error())
		return errRunFailed
	}

	orch, cleanup, err := buildOrchestrator(cfg, reporter, ev)
	if err != nil {
		reporter.Failed(err.Error())
		return errRunFailed
	}
	defer cleanup()

	out, err := orch.Run(ctx, app.RunRequest{Paths: paths, BaseURL: base, Credential: cfg.PurgeToken})
	if err != nil || out.Failed {
		return errRunFailed
	}
	return nil
}

func loadPaths(ctx context.Context, cfg config.Config, ev scm.Event) ([]string, error) {
	if cfg.PathsFile != "" {
		return changeset.NewFileRepository([]string{cfg.PathsFile}, "").LoadPaths()
	}
	owner, repo, err := ev.Repository()
	if err != nil {
		return nil, err
	}
	return scm.NewClient(cfg.RepoToken).ChangedFiles(ctx, owner, repo, ev.Before, ev.After)
}

func buildOrchestrator(cfg config.Config, reporter host.Reporter, ev scm.Event) (*app.Orchestrator, func(), error) {
	cleanup := func() {}
	orch := &app.Orchestrator{
		Connect: func(token string) edge.Session {
			return edge.NewHelixClient(edge.Options{
				Method:         cfg.Method,
				Token:          token,
				MaxConnections: cfg.MaxConnections,
			})
		},
		Reporter:     reporter,
		Metrics:      metrics.New(),
		IgnorePrefix: cfg.IgnorePrefix,
		Limit:        cfg.MaxConnections,
		MetricsFile:  cfg.MetricsFile,
		Subject:      subject(ev),
	}
	if cfg.FailureFile != "" {
		orch.Sink = changeset.NewFileRepository(nil, cfg.FailureFile)
	}

	if cf := cfg.CloudflareConfig(); cf.Enabled() {
		mirror, err := edge.NewCloudflarePurger(cf)
		if err != nil {
			return nil, cleanup, err
		}
		orch.Mirror = mirror
	}

	if cfg.Telegram.BotToken != "" {
		sender, err := telegram.NewBotSender(cfg.Telegram.BotToken, cfg.Telegram.ChatID, 2, time.Second, 10*time.Second)
		if err != nil {
			logger.Named("main").Warn("telegram disabled", zap.Error(err))
			orch.Notifier = &app.NotifierService{Sender: telegram.NoopSender{}}
		} else {
			orch.Notifier = &app.NotifierService{Sender: sender}
			cleanup = sender.Close
		}
	}
	return orch, cleanup, nil
}

func subject(ev scm.Event) string {
	owner, repo, err := ev.Repository()
	if err != nil {
		return "hlxpurge"
	}
	return owner + "/" + repo + "@" + ev.Branch("")
}
