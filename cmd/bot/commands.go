package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"WedgeSentinel/internal/config"
	"WedgeSentinel/internal/logging"
	"WedgeSentinel/internal/notifier"
)

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "dev"

const defaultConfigPath = "configs/config.yaml"

type globals struct {
	configPath string
	debug      bool

	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "bot",
		Short: "WedgeSentinel - wedge breakout alerts for a watch list",
		Long: `WedgeSentinel polls recent candles for a list of symbols, fits resistance and
support lines to each window and sends an alert with a chart when price breaks
out of a converging wedge.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default $CONFIG_PATH or "+defaultConfigPath+")")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug logging")

	root.AddCommand(newRunCmd(g), newScanCmd(g), newVersionCmd())
	return root
}

// load reads and validates the configuration and builds the logger.
func (g *globals) load() error {
	path := g.configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if g.debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	g.cfg = cfg
	g.log = logging.New(cfg.Log)
	g.log.Debug().Str("path", path).Msg("config loaded")
	return nil
}

func newRunCmd(g *globals) *cobra.Command {
	var runOnStart bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scan on a schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.load(); err != nil {
				return err
			}
			if os.Getenv("RUN_ON_START") == "true" {
				runOnStart = true
			}
			return runService(g, runOnStart)
		},
	}
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "run one scan immediately after starting")
	return cmd
}

func runService(g *globals, runOnStart bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, g.cfg, g.log)
	if err != nil {
		return err
	}
	defer a.Close()

	log := g.log
	log.Info().
		Str("version", Version).
		Str("source", a.fetcher.Name()).
		Int("symbols", len(g.cfg.Scan.Symbols)).
		Strs("timeframes", g.cfg.Scan.Labels()).
		Msg("WedgeSentinel starting")

	if err := a.sched.Register(g.cfg.ScheduleSpec()); err != nil {
		return err
	}
	a.sched.Start()

	if a.metricsSrv != nil {
		a.metricsSrv.Start()
		a.health.StartLivenessChecker(ctx, a.redisClient(), a.sqlDB(), 30*time.Second)
	}

	if a.telegram != nil && g.cfg.Telegram.Polling {
		go a.telegram.StartPolling(ctx, a.sched.HandleCommand, a.state)
		log.Info().Msg("telegram polling started")
	}

	if runOnStart {
		log.Info().Msg("run on start enabled, executing scan now")
		go a.sched.RunOnce(ctx)
	}

	log.Info().Msg("WedgeSentinel is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	log.Info().Msg("shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.sched.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("scheduler did not stop cleanly")
	}
	if a.metricsSrv != nil {
		if err := a.metricsSrv.Stop(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("metrics server shutdown")
		}
	}
	log.Info().Msg("WedgeSentinel stopped")
	return nil
}

var htmlTags = strings.NewReplacer("<b>", "", "</b>", "")

func newScanCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run exactly one scan cycle and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.load(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, g.cfg, g.log)
			if err != nil {
				return err
			}
			defer a.Close()

			rep := a.sched.RunOnce(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), htmlTags.Replace(notifier.FormatScanReport(rep)))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "WedgeSentinel %s\n", Version)
		},
	}
}
