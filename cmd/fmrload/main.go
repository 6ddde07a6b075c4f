package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"github.com/nicolovejoy/housing-data-v1/config"
	"github.com/nicolovejoy/housing-data-v1/internal/loader"
	"github.com/nicolovejoy/housing-data-v1/internal/models"
	"github.com/nicolovejoy/housing-data-v1/internal/source"
	"github.com/nicolovejoy/housing-data-v1/internal/store"
)

const (
	exitOK         = 0
	exitSource     = 1
	exitValidation = 2
	exitStore      = 3
)

var cli struct {
	File           string  `arg:"" optional:"" default:"fmr_data.json" type:"path" help:"Rent data file to load."`
	DB             string  `short:"d" help:"Path to the SQLite database file. Defaults to DATABASE_PATH or database/fmr.db."`
	Reset          bool    `help:"Delete all stored areas before loading."`
	BatchSize      int     `default:"500" help:"Records written per transaction."`
	MaxRejectRatio float64 `default:"0.05" help:"Share of records allowed to fail validation before the run aborts."`
	Quiet          bool    `short:"q" help:"Suppress the progress bar and summary."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("fmrload"),
		kong.Description("Load HUD Fair Market Rent data into the local store."),
		kong.ShortUsageOnError(),
	)
	os.Exit(run())
}

func run() int {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	if cli.Quiet {
		logger.SetLevel(logrus.ErrorLevel)
	}

	// Load .env if present so the CLI sees the same settings as the server
	if err := godotenv.Overload(); err == nil {
		logger.Debug("Loaded .env file")
	}

	dbPath := cli.DB
	if dbPath == "" {
		cfg, err := config.LoadConfig()
		if err != nil {
			logger.WithError(err).Error("Failed to load configuration")
			return exitStore
		}
		dbPath = cfg.Database.Path
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	records, err := source.ReadFile(cli.File)
	if err != nil {
		logger.WithError(err).Error("Failed to read source file")
		return exitSource
	}

	st, err := store.Open(dbPath, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to open store")
		return exitStore
	}
	defer st.Close()

	if err := st.Migrate(); err != nil {
		logger.WithError(err).Error("Failed to run database migrations")
		return exitStore
	}

	if cli.Reset {
		if err := st.Reset(); err != nil {
			logger.WithError(err).Error("Failed to reset store")
			return exitStore
		}
	}

	opts := loader.Options{
		BatchSize:      cli.BatchSize,
		MaxRejectRatio: cli.MaxRejectRatio,
		Source:         cli.File,
	}

	var bar *progressbar.ProgressBar
	if !cli.Quiet {
		bar = newProgressBar(len(records))
		opts.Progress = func(done, total int) {
			_ = bar.Set(done)
		}
	}

	report, err := loader.New(st, logger).Run(ctx, records, opts)
	if err != nil {
		if bar != nil {
			_ = bar.Clear()
		}
		committed := report.Inserted + report.Updated
		switch {
		case errors.Is(err, loader.ErrRejectionLimit):
			logger.WithError(err).Error("Too many records failed validation, nothing was written")
			return exitValidation
		case errors.Is(err, context.Canceled):
			logger.Warnf("Interrupted after %d committed areas; rerun to converge", committed)
			return exitStore
		default:
			logger.WithError(err).Errorf("Load failed after %d committed areas", committed)
			return exitStore
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if !cli.Quiet {
		printReport(report)
	}
	return exitOK
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{Saucer: "#", SaucerPadding: " ", BarStart: "|", BarEnd: "|"}),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func printReport(report *models.LoadReport) {
	fmt.Printf("Loaded %s areas from %s in %s\n",
		humanize.Comma(int64(report.Inserted+report.Updated)),
		report.Source,
		report.Duration.Round(time.Millisecond))
	fmt.Printf("  received:   %s\n", humanize.Comma(int64(report.Received)))
	fmt.Printf("  inserted:   %s\n", humanize.Comma(int64(report.Inserted)))
	fmt.Printf("  updated:    %s\n", humanize.Comma(int64(report.Updated)))
	fmt.Printf("  duplicates: %s\n", humanize.Comma(int64(report.Duplicates)))
	fmt.Printf("  rejected:   %s\n", humanize.Comma(int64(report.Rejected)))
	for _, reason := range sortedReasons(report.RejectedByReason) {
		fmt.Printf("    %s: %s\n", reason, humanize.Comma(int64(report.RejectedByReason[reason])))
	}

	fmt.Printf("Store now holds %s areas", humanize.Comma(report.Fingerprint.TotalAreas))
	if report.Fingerprint.MinTwoBedroom != nil && report.Fingerprint.MaxTwoBedroom != nil {
		fmt.Printf(", two bedroom rents $%s to $%s",
			humanize.Comma(int64(*report.Fingerprint.MinTwoBedroom)),
			humanize.Comma(int64(*report.Fingerprint.MaxTwoBedroom)))
	}
	fmt.Println()
}

func sortedReasons(byReason map[models.RejectReason]int) []models.RejectReason {
	reasons := lo.Keys(byReason)
	sort.Slice(reasons, func(i, j int) bool {
		return reasons[i] < reasons[j]
	})
	return reasons
}
