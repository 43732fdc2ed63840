package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/wingspan-tracker/constants"
	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
	"github.com/joseph-ayodele/wingspan-tracker/internal/imageprep"
	"github.com/joseph-ayodele/wingspan-tracker/internal/repository"
	"github.com/joseph-ayodele/wingspan-tracker/internal/scoresheet"
)

type scriptedScanner struct {
	res Result
	err error
}

func (s scriptedScanner) Process(context.Context, string, imageprep.RawUpload) (Result, error) {
	return s.res, s.err
}

func openStore(t *testing.T) repository.ScanJobRepository {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := repository.Open(context.Background(), repository.Config{DSN: ":memory:"}, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close(logger) })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repository.NewScanJobRepository(db.SQL, logger)
}

var auditUpload = imageprep.RawUpload{Data: []byte{1, 2, 3}, MediaType: "image/png", Filename: "night.png"}

func TestAuditedProcessorRecordsSuccess(t *testing.T) {
	jobs := openStore(t)
	inner := scriptedScanner{res: Result{
		Data: scoresheet.GameData{Players: []scoresheet.Player{{PlayerName: "Robin", Placement: 1, TotalScore: 88}}},
		// below the review threshold
		Confidence: 0.5,
		Image:      ImageInfo{Bytes: 2048},
		Model:      "fake-vision-1",
	}}

	res, id, err := NewAuditedProcessor(inner, jobs, nil).Scan(context.Background(), "u1", auditUpload)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("expected a job id")
	}
	if res.Model != "fake-vision-1" {
		t.Errorf("result not passed through: %+v", res)
	}

	job, err := jobs.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != string(constants.JobStatusExtracted) || !job.NeedsReview {
		t.Errorf("job = %+v", job)
	}
	if job.PreparedBytes == nil || *job.PreparedBytes != 2048 || job.RawBytes != 3 {
		t.Errorf("sizes = %v / %d", job.PreparedBytes, job.RawBytes)
	}
	if len(job.ExtractedJSON) == 0 {
		t.Error("extracted json not stored")
	}
}

func TestAuditedProcessorRecordsFailure(t *testing.T) {
	jobs := openStore(t)
	boom := common.NewKindError(common.CodeTimeout, "vision call timed out", context.DeadlineExceeded)

	_, id, err := NewAuditedProcessor(scriptedScanner{err: boom}, jobs, nil).Scan(context.Background(), "u1", auditUpload)
	if !errors.Is(err, common.ErrTimeout) {
		t.Fatalf("err = %v, want timeout", err)
	}

	job, err := jobs.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != string(constants.JobStatusFailed) {
		t.Errorf("status = %s", job.Status)
	}
	if job.ErrorCode == nil || *job.ErrorCode != common.CodeTimeout {
		t.Errorf("error_code = %v", job.ErrorCode)
	}
}

func TestAuditedProcessorWithoutStore(t *testing.T) {
	_, id, err := NewAuditedProcessor(scriptedScanner{}, nil, nil).Scan(context.Background(), "u1", auditUpload)
	if err != nil || id != uuid.Nil {
		t.Fatalf("id=%v err=%v", id, err)
	}
}
