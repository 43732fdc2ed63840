package repository

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/wingspan-tracker/constants"
)

func newTestRepo(t *testing.T) (*scanJobRepo, *time.Time) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := Open(ctx, Config{DSN: ":memory:"}, logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close(logger) })
	if err := db.HealthCheck(ctx, time.Second, logger); err != nil {
		t.Fatalf("health: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// second run is a no-op
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate again: %v", err)
	}

	clock := time.Date(2025, 3, 14, 9, 26, 53, 589793238, time.UTC)
	repo := NewScanJobRepository(db.SQL, logger).(*scanJobRepo)
	repo.now = func() time.Time { return clock }
	return repo, &clock
}

func TestScanJobLifecycleSuccess(t *testing.T) {
	ctx := context.Background()
	repo, clock := newTestRepo(t)

	job, err := repo.Start(ctx, StartScan{CallerID: "u1", Filename: "final.png", MediaType: "image/png", RawBytes: 1234})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if job.Status != string(constants.JobStatusRunning) {
		t.Fatalf("status = %q", job.Status)
	}

	*clock = clock.Add(3 * time.Second)
	extracted := json.RawMessage(`{"players":[{"name":"Robin","totalScore":88}]}`)
	err = repo.FinishSuccess(ctx, job.ID, ScanSuccess{
		PreparedBytes: 900,
		Confidence:    0.93,
		NeedsReview:   false,
		Extracted:     extracted,
		ModelName:     "claude-sonnet-4-5-20250929",
	})
	if err != nil {
		t.Fatalf("finish: %v", err)
	}

	got, err := repo.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != string(constants.JobStatusExtracted) {
		t.Errorf("status = %q", got.Status)
	}
	if got.PreparedBytes == nil || *got.PreparedBytes != 900 {
		t.Errorf("prepared_bytes = %v", got.PreparedBytes)
	}
	if got.Confidence == nil || *got.Confidence != 0.93 {
		t.Errorf("confidence = %v", got.Confidence)
	}
	if got.ModelName == nil || *got.ModelName != "claude-sonnet-4-5-20250929" {
		t.Errorf("model = %v", got.ModelName)
	}
	if got.ErrorCode != nil || got.ErrorMessage != nil {
		t.Errorf("unexpected error columns: %v %v", got.ErrorCode, got.ErrorMessage)
	}
	if diff := cmp.Diff(string(extracted), string(got.ExtractedJSON)); diff != "" {
		t.Errorf("extracted_json mismatch (-want +got):\n%s", diff)
	}
	wantStart := time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.UTC)
	if !got.StartedAt.Equal(wantStart) {
		t.Errorf("started_at = %v, want %v", got.StartedAt, wantStart)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(wantStart.Add(3*time.Second)) {
		t.Errorf("finished_at = %v", got.FinishedAt)
	}
}

func TestScanJobLifecycleFailure(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	job, err := repo.Start(ctx, StartScan{CallerID: "u1", Filename: "x.jpg", MediaType: "image/jpeg", RawBytes: 10})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := repo.FinishFailure(ctx, job.ID, "TIMEOUT", "Request timeout. Please try again."); err != nil {
		t.Fatalf("finish: %v", err)
	}

	got, err := repo.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != string(constants.JobStatusFailed) {
		t.Errorf("status = %q", got.Status)
	}
	if got.ErrorCode == nil || *got.ErrorCode != "TIMEOUT" {
		t.Errorf("error_code = %v", got.ErrorCode)
	}
	if got.Confidence != nil || got.PreparedBytes != nil || got.ExtractedJSON != nil {
		t.Errorf("success columns should stay null: %+v", got)
	}
}

func TestScanJobNotFound(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	missing := uuid.New()

	if _, err := repo.Get(ctx, missing); !errors.Is(err, ErrScanJobNotFound) {
		t.Errorf("Get err = %v", err)
	}
	if err := repo.FinishFailure(ctx, missing, "X", "y"); !errors.Is(err, ErrScanJobNotFound) {
		t.Errorf("FinishFailure err = %v", err)
	}
	if err := repo.FinishSuccess(ctx, missing, ScanSuccess{}); !errors.Is(err, ErrScanJobNotFound) {
		t.Errorf("FinishSuccess err = %v", err)
	}
}

func TestListByCallerNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo, clock := newTestRepo(t)

	var ids []uuid.UUID
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		job, err := repo.Start(ctx, StartScan{CallerID: "u1", Filename: name, MediaType: "image/png", RawBytes: 1})
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		ids = append(ids, job.ID)
		*clock = clock.Add(time.Minute)
	}
	if _, err := repo.Start(ctx, StartScan{CallerID: "u2", Filename: "other.png", MediaType: "image/png", RawBytes: 1}); err != nil {
		t.Fatalf("start: %v", err)
	}

	got, err := repo.ListByCaller(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var names []string
	for _, j := range got {
		names = append(names, j.Filename)
	}
	if diff := cmp.Diff([]string{"c.png", "b.png"}, names); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}
	if got[0].ID != ids[2] {
		t.Errorf("first id = %v, want %v", got[0].ID, ids[2])
	}

	none, err := repo.ListByCaller(ctx, "nobody", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected empty list, got %d", len(none))
	}
}
