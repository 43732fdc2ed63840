package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/wingspan-tracker/constants"
	"github.com/joseph-ayodele/wingspan-tracker/internal/entity"
)

// ErrScanJobNotFound is returned when no row has the requested id.
var ErrScanJobNotFound = errors.New("scan job not found")

// StartScan describes an upload as it enters the pipeline.
type StartScan struct {
	CallerID  string
	Filename  string
	MediaType string
	RawBytes  int
}

// ScanSuccess is what gets recorded for a completed extraction.
type ScanSuccess struct {
	PreparedBytes int
	Confidence    float64
	NeedsReview   bool
	Extracted     json.RawMessage
	ModelName     string
}

type ScanJobRepository interface {
	Start(ctx context.Context, in StartScan) (*entity.ScanJob, error)
	FinishSuccess(ctx context.Context, jobID uuid.UUID, out ScanSuccess) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, code, message string) error
	Get(ctx context.Context, jobID uuid.UUID) (*entity.ScanJob, error)
	ListByCaller(ctx context.Context, callerID string, limit int) ([]entity.ScanJob, error)
}

type scanJobRepo struct {
	db  *sql.DB
	log *slog.Logger
	now func() time.Time
}

func NewScanJobRepository(db *sql.DB, log *slog.Logger) ScanJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &scanJobRepo{db: db, log: log, now: time.Now}
}

// timestamps are stored in UTC at microsecond precision, the coarser of both dialects.
func (r *scanJobRepo) stamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

func (r *scanJobRepo) Start(ctx context.Context, in StartScan) (*entity.ScanJob, error) {
	job := &entity.ScanJob{
		ID:        uuid.New(),
		CallerID:  in.CallerID,
		Filename:  in.Filename,
		MediaType: in.MediaType,
		RawBytes:  in.RawBytes,
		Status:    string(constants.JobStatusRunning),
		StartedAt: r.stamp(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scan_job (id, caller_id, filename, media_type, raw_bytes, status, needs_review, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID.String(), job.CallerID, job.Filename, job.MediaType, job.RawBytes, job.Status, false, job.StartedAt)
	if err != nil {
		r.log.Error("scan_job start failed", "caller_id", in.CallerID, "err", err)
		return nil, fmt.Errorf("insert scan_job: %w", err)
	}
	r.log.Info("scan_job started", "job_id", job.ID, "caller_id", in.CallerID, "filename", in.Filename)
	return job, nil
}

func (r *scanJobRepo) FinishSuccess(ctx context.Context, jobID uuid.UUID, out ScanSuccess) error {
	var extracted any
	if len(out.Extracted) > 0 {
		extracted = string(out.Extracted)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE scan_job
		 SET status = $1, prepared_bytes = $2, confidence = $3, needs_review = $4,
		     extracted_json = $5, model_name = $6, finished_at = $7
		 WHERE id = $8`,
		string(constants.JobStatusExtracted), out.PreparedBytes, out.Confidence, out.NeedsReview,
		extracted, out.ModelName, r.stamp(), jobID.String())
	if err != nil {
		r.log.Error("scan_job finish(EXTRACTED) failed", "job_id", jobID, "err", err)
		return fmt.Errorf("update scan_job: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return err
	}
	r.log.Info("scan_job finished (EXTRACTED)", "job_id", jobID, "confidence", out.Confidence, "needs_review", out.NeedsReview)
	return nil
}

func (r *scanJobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, code, message string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE scan_job SET status = $1, error_code = $2, error_message = $3, finished_at = $4 WHERE id = $5`,
		string(constants.JobStatusFailed), code, message, r.stamp(), jobID.String())
	if err != nil {
		r.log.Error("scan_job finish(FAILED) failed", "job_id", jobID, "err", err)
		return fmt.Errorf("update scan_job: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return err
	}
	r.log.Warn("scan_job finished (FAILED)", "job_id", jobID, "code", code, "error", message)
	return nil
}

const scanJobColumns = `id, caller_id, filename, media_type, raw_bytes, prepared_bytes, status, error_code,
	error_message, confidence, needs_review, extracted_json, model_name, started_at, finished_at`

func (r *scanJobRepo) Get(ctx context.Context, jobID uuid.UUID) (*entity.ScanJob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+scanJobColumns+` FROM scan_job WHERE id = $1`, jobID.String())
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScanJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scan_job: %w", err)
	}
	return job, nil
}

// ListByCaller returns the caller's most recent scans, newest first.
func (r *scanJobRepo) ListByCaller(ctx context.Context, callerID string, limit int) ([]entity.ScanJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+scanJobColumns+` FROM scan_job WHERE caller_id = $1 ORDER BY started_at DESC, id LIMIT $2`,
		callerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list scan_job: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			r.log.Warn("scan_job rows close error", "err", cerr)
		}
	}()

	var out []entity.ScanJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scan_job: %w", err)
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(s rowScanner) (*entity.ScanJob, error) {
	var (
		job           entity.ScanJob
		id            string
		preparedBytes sql.NullInt64
		errorCode     sql.NullString
		errorMessage  sql.NullString
		confidence    sql.NullFloat64
		extracted     sql.NullString
		modelName     sql.NullString
		finishedAt    sql.NullTime
	)
	err := s.Scan(&id, &job.CallerID, &job.Filename, &job.MediaType, &job.RawBytes, &preparedBytes,
		&job.Status, &errorCode, &errorMessage, &confidence, &job.NeedsReview, &extracted, &modelName,
		&job.StartedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	job.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse id %q: %w", id, err)
	}
	if preparedBytes.Valid {
		v := int(preparedBytes.Int64)
		job.PreparedBytes = &v
	}
	if errorCode.Valid {
		job.ErrorCode = &errorCode.String
	}
	if errorMessage.Valid {
		job.ErrorMessage = &errorMessage.String
	}
	if confidence.Valid {
		job.Confidence = &confidence.Float64
	}
	if extracted.Valid {
		job.ExtractedJSON = json.RawMessage(extracted.String)
	}
	if modelName.Valid {
		job.ModelName = &modelName.String
	}
	if finishedAt.Valid {
		t := finishedAt.Time.UTC()
		job.FinishedAt = &t
	}
	job.StartedAt = job.StartedAt.UTC()
	return &job, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrScanJobNotFound
	}
	return nil
}
