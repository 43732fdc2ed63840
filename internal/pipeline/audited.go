package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
	"github.com/joseph-ayodele/wingspan-tracker/internal/imageprep"
	"github.com/joseph-ayodele/wingspan-tracker/internal/repository"
)

const maxStoredErrorLen = 1000

// Scanner is anything that can run an upload through the pipeline.
type Scanner interface {
	Process(ctx context.Context, callerID string, upload imageprep.RawUpload) (Result, error)
}

// AuditedProcessor records every scan in the audit store around an inner Scanner.
// Store failures are logged and never fail the scan itself.
type AuditedProcessor struct {
	next   Scanner
	jobs   repository.ScanJobRepository
	logger *slog.Logger
}

// NewAuditedProcessor accepts a nil repository, in which case scans are not recorded.
func NewAuditedProcessor(next Scanner, jobs repository.ScanJobRepository, logger *slog.Logger) *AuditedProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditedProcessor{next: next, jobs: jobs, logger: logger}
}

// Scan processes upload and returns the audit row id, or uuid.Nil when nothing was recorded.
func (a *AuditedProcessor) Scan(ctx context.Context, callerID string, upload imageprep.RawUpload) (Result, uuid.UUID, error) {
	if a.jobs == nil {
		res, err := a.next.Process(ctx, callerID, upload)
		return res, uuid.Nil, err
	}

	// the audit row must be written even when the request context is already done
	storeCtx := context.WithoutCancel(ctx)

	jobID := uuid.Nil
	job, err := a.jobs.Start(storeCtx, repository.StartScan{
		CallerID:  callerID,
		Filename:  upload.Filename,
		MediaType: upload.MediaType,
		RawBytes:  len(upload.Data),
	})
	if err != nil {
		a.logger.Warn("pipeline.audit.start_failed", "req_id", common.RequestIDFromContext(ctx), "error", err)
	} else {
		jobID = job.ID
	}

	res, procErr := a.next.Process(ctx, callerID, upload)
	if jobID == uuid.Nil {
		return res, jobID, procErr
	}

	if procErr != nil {
		msg := procErr.Error()
		if len(msg) > maxStoredErrorLen {
			msg = msg[:maxStoredErrorLen]
		}
		if err := a.jobs.FinishFailure(storeCtx, jobID, common.CodeOf(procErr), msg); err != nil {
			a.logger.Warn("pipeline.audit.finish_failed", "job_id", jobID, "error", err)
		}
		return res, jobID, procErr
	}

	extracted, err := json.Marshal(res.Data)
	if err != nil {
		a.logger.Warn("pipeline.audit.encode_failed", "job_id", jobID, "error", err)
	}
	if err := a.jobs.FinishSuccess(storeCtx, jobID, repository.ScanSuccess{
		PreparedBytes: res.Image.Bytes,
		Confidence:    res.Confidence,
		NeedsReview:   res.NeedsReview(),
		Extracted:     extracted,
		ModelName:     res.Model,
	}); err != nil {
		a.logger.Warn("pipeline.audit.finish_failed", "job_id", jobID, "error", err)
	}
	return res, jobID, nil
}
