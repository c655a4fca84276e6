package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const (
	guestCartReaperName    = "guest-cart-reaper"
	defaultGuestCartWindow = 30 * 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type guestCartStore interface {
	DeleteStaleGuestCarts(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, int64, error)
	PurgeMergedLines(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type GuestCartReaperParams struct {
	DB        txRunner
	Store     guestCartStore
	Retention time.Duration
}

// NewGuestCartReaperJob removes anonymous carts idle longer than the guest
// token lifetime, plus the lines left behind in merged carts.
func NewGuestCartReaperJob(params GuestCartReaperParams) (Job, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("guest cart store required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultGuestCartWindow
	}
	return &guestCartReaperJob{
		db:        params.DB,
		store:     params.Store,
		retention: retention,
		now:       time.Now,
	}, nil
}

type guestCartReaperJob struct {
	db        txRunner
	store     guestCartStore
	retention time.Duration
	now       func() time.Time
}

func (j *guestCartReaperJob) Name() string { return guestCartReaperName }

// Run executes both sweeps; a failure in one does not skip the other.
func (j *guestCartReaperJob) Run(ctx context.Context) (Report, error) {
	cutoff := j.now().UTC().Add(-j.retention)
	var carts, lines, mergedLines int64

	staleErr := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		carts, lines, err = j.store.DeleteStaleGuestCarts(ctx, tx, cutoff)
		return err
	})
	if staleErr != nil {
		carts, lines = 0, 0
		staleErr = fmt.Errorf("delete stale guest carts: %w", staleErr)
	}

	mergedErr := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		mergedLines, err = j.store.PurgeMergedLines(ctx, tx, cutoff)
		return err
	})
	if mergedErr != nil {
		mergedLines = 0
		mergedErr = fmt.Errorf("purge merged cart lines: %w", mergedErr)
	}

	report := Report{
		Affected: carts + lines + mergedLines,
		Fields: map[string]any{
			"cutoff":              cutoff,
			"carts_deleted":       carts,
			"lines_deleted":       lines,
			"merged_lines_purged": mergedLines,
		},
	}
	return report, multierr.Append(staleErr, mergedErr)
}
