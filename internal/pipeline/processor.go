// Package pipeline runs one screenshot through preparation, extraction, normalization
// and grading.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/wingspan-tracker/constants"
	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
	"github.com/joseph-ayodele/wingspan-tracker/internal/imageprep"
	"github.com/joseph-ayodele/wingspan-tracker/internal/llm"
	"github.com/joseph-ayodele/wingspan-tracker/internal/metrics"
	"github.com/joseph-ayodele/wingspan-tracker/internal/scoresheet"
)

// Preparer fits an upload under the vision transport ceiling.
type Preparer interface {
	Prepare(ctx context.Context, u imageprep.RawUpload) (imageprep.PreparedImage, error)
}

// Gate admits or rejects a caller before any work is done.
type Gate interface {
	Allow(callerID string) bool
}

// ImageInfo describes what was actually sent to the vision service.
type ImageInfo struct {
	MediaType string `json:"mediaType"`
	Bytes     int    `json:"bytes"`
	Resized   bool   `json:"resized"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// Result is the observable output of one scan.
type Result struct {
	Data       scoresheet.GameData `json:"extractedData"`
	Confidence float64             `json:"confidence"`
	Warnings   []string            `json:"warnings,omitempty"`
	Image      ImageInfo           `json:"image"`
	Model      string              `json:"model"`
}

// NeedsReview reports whether a human should look at the result before it is trusted.
func (r Result) NeedsReview() bool {
	return r.Confidence < constants.ReviewConfidenceThreshold || len(r.Warnings) > 0
}

// Processor coordinates the stages. It holds no per-call state.
type Processor struct {
	Logger *slog.Logger
	Prep   Preparer
	Vision llm.VisionExtractor
	Gate   Gate
}

// Option configures a Processor.
type Option func(*Processor)

// WithGate installs a rate-limit gate consulted before each scan.
func WithGate(g Gate) Option {
	return func(p *Processor) {
		p.Gate = g
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.Logger = logger
		}
	}
}

func NewProcessor(prep Preparer, vision llm.VisionExtractor, opts ...Option) *Processor {
	p := &Processor{Logger: slog.Default(), Prep: prep, Vision: vision}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs one upload through every stage. A failure is reported once, as the typed
// error of the stage that produced it; nothing is retried.
func (p *Processor) Process(ctx context.Context, callerID string, upload imageprep.RawUpload) (Result, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
		ctx = common.WithRequestID(ctx, rid)
	}
	start := time.Now()

	if p.Gate != nil && !p.Gate.Allow(callerID) {
		metrics.RecordRateLimited()
		err := common.NewKindError(common.CodeUploadRateLimited, "too many uploads for caller "+callerID, nil)
		return Result{}, p.fail(rid, "gate", err, start)
	}

	p.Logger.Info("pipeline.process.start",
		"req_id", rid,
		"caller_id", callerID,
		"filename", upload.Filename,
		"media_type", upload.MediaType,
		"raw_bytes", len(upload.Data),
	)

	stageStart := time.Now()
	prepared, err := p.Prep.Prepare(ctx, upload)
	if err != nil {
		return Result{}, p.fail(rid, "prepare", err, start)
	}
	p.stageDone(rid, "prepare", stageStart, "bytes", len(prepared.Data), "resized", prepared.Resized)
	metrics.RecordPreparedImage(len(prepared.Data), prepared.Resized)

	stageStart = time.Now()
	text, err := p.Vision.ExtractScores(ctx, llm.ExtractRequest{
		Image:        prepared.Data,
		MediaType:    prepared.MediaType,
		FilenameHint: upload.Filename,
	})
	if err != nil {
		return Result{}, p.fail(rid, "extract", err, start)
	}
	p.stageDone(rid, "extract", stageStart, "text_len", len(text))

	stageStart = time.Now()
	data, err := scoresheet.Normalize(text)
	if err != nil {
		return Result{}, p.fail(rid, "normalize", err, start)
	}
	p.stageDone(rid, "normalize", stageStart, "players", len(data.Players))

	res := Result{
		Data:       data,
		Confidence: scoresheet.Confidence(data),
		Warnings:   scoresheet.Warnings(data),
		Image: ImageInfo{
			MediaType: prepared.MediaType,
			Bytes:     len(prepared.Data),
			Resized:   prepared.Resized,
			Width:     prepared.Width,
			Height:    prepared.Height,
		},
		Model: p.Vision.Model(),
	}

	metrics.RecordScan("ok")
	metrics.RecordConfidence(res.Confidence)
	metrics.RecordWarnings(len(res.Warnings))
	p.Logger.Info("pipeline.process.ok",
		"req_id", rid,
		"players", len(data.Players),
		"confidence", res.Confidence,
		"warnings", len(res.Warnings),
		"needs_review", res.NeedsReview(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (p *Processor) stageDone(rid, stage string, started time.Time, attrs ...any) {
	elapsed := time.Since(started)
	metrics.RecordStageLatency(stage, float64(elapsed.Milliseconds()))
	args := append([]any{"req_id", rid, "elapsed_ms", elapsed.Milliseconds()}, attrs...)
	p.Logger.Info("pipeline."+stage+".ok", args...)
}

func (p *Processor) fail(rid, stage string, err error, started time.Time) error {
	code := common.CodeOf(err)
	metrics.RecordScan(code)
	p.Logger.Error("pipeline."+stage+".failed",
		"req_id", rid,
		"code", code,
		"error", err,
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	return err
}
