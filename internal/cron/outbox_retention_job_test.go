package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"
)

type fakeOutboxRetentionRepo struct {
	lastCutoff time.Time
	published  int
	all        int
	err        error
}

func (f *fakeOutboxRetentionRepo) DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error) {
	f.published++
	f.lastCutoff = cutoff
	return 7, f.err
}

func (f *fakeOutboxRetentionRepo) DeleteAllBefore(tx *gorm.DB, cutoff time.Time) (int64, error) {
	f.all++
	f.lastCutoff = cutoff
	return 9, f.err
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newOutboxRetentionJob(t *testing.T, repo *fakeOutboxRetentionRepo, target string) *outboxRetentionJob {
	t.Helper()
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		DB:         passthroughTx{},
		Repository: repo,
		Target:     target,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job, ok := jobIface.(*outboxRetentionJob)
	if !ok {
		t.Fatalf("expected outboxRetentionJob, got %T", jobIface)
	}
	return job
}

func TestOutboxRetentionJobDeletesPublishedRows(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeOutboxRetentionRepo{}
	job := newOutboxRetentionJob(t, repo, "")
	job.now = func() time.Time { return now }

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectedCutoff := now.Add(-outboxRetentionDays * 24 * time.Hour)
	if !repo.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, repo.lastCutoff)
	}
	if repo.published != 1 || repo.all != 0 {
		t.Fatalf("expected published sweep only, got published=%d all=%d", repo.published, repo.all)
	}
	if report.Affected != 7 {
		t.Fatalf("expected 7 affected, got %d", report.Affected)
	}
}

func TestOutboxRetentionJobAllTarget(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{}
	job := newOutboxRetentionJob(t, repo, RetentionAll)

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if repo.all != 1 {
		t.Fatalf("expected full sweep, got %d", repo.all)
	}
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{err: errors.New("boom")}
	job := newOutboxRetentionJob(t, repo, "")

	if _, err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestOutboxRetentionJobRejectsUnknownTarget(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{DB: passthroughTx{}, Repository: &fakeOutboxRetentionRepo{}, Target: "failed"})
	if err == nil {
		t.Fatal("expected error")
	}
}
