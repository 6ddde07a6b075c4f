package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nicolovejoy/housing-data-v1/internal/models"
	"github.com/nicolovejoy/housing-data-v1/internal/normalize"
)

const (
	DefaultBatchSize      = 500
	DefaultMaxRejectRatio = 0.05
)

// ErrRejectionLimit aborts a run whose validation failures exceed the
// configured share of the input. Nothing has been written when Run returns
// this error.
var ErrRejectionLimit = errors.New("validation rejections exceed limit")

// Storage is the slice of the store the loader writes through.
type Storage interface {
	UpsertBatch(pairs []models.AreaRent) (inserted, updated int, err error)
	GetFingerprint() (models.Fingerprint, error)
}

// Options tune a single run.
type Options struct {
	// BatchSize is the number of pairs written per transaction.
	BatchSize int

	// MaxRejectRatio is the share of records allowed to fail validation
	// before the run aborts without writing.
	MaxRejectRatio float64

	// Source names where the records came from, for the report.
	Source string

	// Progress, when set, is called after each committed batch.
	Progress func(done, total int)
}

// Loader turns raw source records into committed area/rent rows.
type Loader struct {
	store  Storage
	logger *logrus.Logger
}

func New(store Storage, logger *logrus.Logger) *Loader {
	if logger == nil {
		logger = logrus.New()
	}
	return &Loader{
		store:  store,
		logger: logger,
	}
}

// Run normalizes and loads one set of raw records. Records that fail
// validation are counted per reason and skipped; the run only aborts, before
// any write, when their share of the input exceeds opts.MaxRejectRatio.
// Records sharing an identity tuple are collapsed so the last one wins.
//
// Batches commit independently: on a store failure or a cancelled context
// the committed batches stay, the current batch never partially applies, and
// the returned report carries the progress so far. Re-running the same input
// afterwards converges the store to the same final state.
func (l *Loader) Run(ctx context.Context, records []models.RawRecord, opts Options) (*models.LoadReport, error) {
	start := time.Now()
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxRejectRatio <= 0 {
		opts.MaxRejectRatio = DefaultMaxRejectRatio
	}

	report := &models.LoadReport{
		RunID:            uuid.NewString(),
		Source:           opts.Source,
		Received:         len(records),
		RejectedByReason: make(map[models.RejectReason]int),
		StartedAt:        start,
	}

	// Validate everything up front so a bad source aborts before the first
	// write.
	pairs := make([]models.AreaRent, 0, len(records))
	for i, raw := range records {
		pair, err := normalize.Normalize(raw)
		if err != nil {
			var rej *normalize.Rejection
			if !errors.As(err, &rej) {
				return report, fmt.Errorf("record %d: %w", i, err)
			}
			report.Rejected++
			report.RejectedByReason[rej.Reason]++
			l.logger.WithFields(logrus.Fields{
				"record": i,
				"reason": rej.Reason,
				"field":  rej.Field,
			}).Debug("Rejected record")
			continue
		}
		pairs = append(pairs, pair)
	}

	if len(records) > 0 {
		ratio := float64(report.Rejected) / float64(len(records))
		if ratio > opts.MaxRejectRatio {
			return report, fmt.Errorf("%w: %d of %d records (%.1f%%)",
				ErrRejectionLimit, report.Rejected, len(records), ratio*100)
		}
	}

	pairs, report.Duplicates = dedupe(pairs)

	for offset := 0; offset < len(pairs); offset += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
		end := min(offset+opts.BatchSize, len(pairs))
		inserted, updated, err := l.store.UpsertBatch(pairs[offset:end])
		if err != nil {
			report.Duration = time.Since(start)
			return report, fmt.Errorf("failed to load batch %d-%d: %w", offset, end, err)
		}
		report.Inserted += inserted
		report.Updated += updated
		if opts.Progress != nil {
			opts.Progress(end, len(pairs))
		}
	}

	fingerprint, err := l.store.GetFingerprint()
	if err != nil {
		report.Duration = time.Since(start)
		return report, fmt.Errorf("failed to fingerprint store: %w", err)
	}
	report.Fingerprint = fingerprint
	report.Duration = time.Since(start)

	l.logger.WithFields(logrus.Fields{
		"run_id":   report.RunID,
		"inserted": report.Inserted,
		"updated":  report.Updated,
		"rejected": report.Rejected,
		"areas":    fingerprint.TotalAreas,
	}).Info("Load completed")

	return report, nil
}

// dedupe collapses pairs sharing an identity tuple. The first occurrence
// keeps its position and the last occurrence keeps its values.
func dedupe(pairs []models.AreaRent) ([]models.AreaRent, int) {
	if len(pairs) < 2 {
		return pairs, 0
	}
	position := make(map[string]int, len(pairs))
	out := make([]models.AreaRent, 0, len(pairs))
	duplicates := 0
	for _, pair := range pairs {
		key := pair.Key()
		if at, seen := position[key]; seen {
			out[at] = pair
			duplicates++
			continue
		}
		position[key] = len(out)
		out = append(out, pair)
	}
	return out, duplicates
}
