package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	outboxRetentionName = "outbox-retention"
	outboxRetentionDays = 30

	RetentionPublished = "published"
	RetentionAll       = "all"
)

type OutboxRetentionJobParams struct {
	DB         txRunner
	Repository outboxRetentionRepo
	Retention  int
	Target     string
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
	DeleteAllBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewOutboxRetentionJob deletes outbox rows older than the retention window.
// Target "published" keeps undelivered rows; "all" removes them too.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	target := params.Target
	if target == "" {
		target = RetentionPublished
	}
	if target != RetentionPublished && target != RetentionAll {
		return nil, fmt.Errorf("unknown outbox retention target %q", target)
	}
	return &outboxRetentionJob{
		db:        params.DB,
		repo:      params.Repository,
		retention: retention,
		target:    target,
		now:       time.Now,
	}, nil
}

type outboxRetentionJob struct {
	db        txRunner
	repo      outboxRetentionRepo
	retention int
	target    string
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return outboxRetentionName }

func (j *outboxRetentionJob) Run(ctx context.Context) (Report, error) {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if j.target == RetentionAll {
			deleted, err = j.repo.DeleteAllBefore(tx, cutoff)
		} else {
			deleted, err = j.repo.DeletePublishedBefore(tx, cutoff)
		}
		return err
	})
	if err != nil {
		return Report{}, fmt.Errorf("outbox retention: %w", err)
	}
	return Report{
		Affected: deleted,
		Fields: map[string]any{
			"cutoff":         cutoff,
			"retention_days": j.retention,
			"target":         j.target,
		},
	}, nil
}
