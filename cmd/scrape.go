package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/timeline-scraper/internal/browser"
	"github.com/JakeFAU/timeline-scraper/internal/clock/system"
	"github.com/JakeFAU/timeline-scraper/internal/config"
	"github.com/JakeFAU/timeline-scraper/internal/controller"
	"github.com/JakeFAU/timeline-scraper/internal/extract"
	"github.com/JakeFAU/timeline-scraper/internal/logging"
	"github.com/JakeFAU/timeline-scraper/internal/scrape"
	"github.com/JakeFAU/timeline-scraper/internal/timeline"
)

// errScrapeFailed marks a run that emitted a failure envelope.
var errScrapeFailed = errors.New("scrape failed")

func newScrapeCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape <url>",
		Short: "Scrapes one timeline and prints the result envelope",
		Long: `Scrapes a single profile timeline in a fresh browser session and writes
exactly one JSON envelope to stdout. Logs are written to stderr. The exit
status is non-zero when the envelope reports a failure.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runScrape(ctx, cmd, *cfgFile, args[0])
		},
	}
}

func runScrape(ctx context.Context, cmd *cobra.Command, cfgFile, rawURL string) error {
	clock := system.New()
	out := cmd.OutOrStdout()

	runner, logger, err := buildScrapeRunner(cfgFile, clock)
	if err != nil {
		// The parent still expects an envelope.
		res := timeline.NewFailure(rawURL, err, clock.Now(), nil)
		if emitErr := scrape.Emit(out, res); emitErr != nil {
			return errors.Join(err, emitErr)
		}
		return err
	}
	defer func() { _ = logger.Sync() }()

	res := runner.Run(ctx, rawURL)
	if err := scrape.Emit(out, res); err != nil {
		logger.Error("emit result failed", zap.Error(err))
		return err
	}
	if !res.Success {
		return fmt.Errorf("%w: %s", errScrapeFailed, res.ErrorKind)
	}
	return nil
}

func buildScrapeRunner(cfgFile string, clock timeline.Clock) (*scrape.Runner, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("logger init failed: %w", err)
	}
	fields, err := cfg.FieldStrategies()
	if err != nil {
		return nil, nil, err
	}

	engine := extract.NewEngine(extract.NewExtractor(fields, cfg.ExtractPolicy()), logger.Named("extract"))
	browserCfg := cfg.BrowserConfig()
	sessions := func(context.Context) (controller.Session, func(), error) {
		session, err := browser.New(browserCfg, logger.Named("browser"))
		if err != nil {
			return nil, nil, err
		}
		return session, session.Close, nil
	}

	runner := scrape.NewRunner(cfg.Scrape.MaxPosts, cfg.ControllerConfig(), engine, sessions, clock, logger.Named("scrape"))
	return runner, logger, nil
}
