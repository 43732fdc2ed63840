// Package export writes scan results to spreadsheets for manual review.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/wingspan-tracker/constants"
	"github.com/joseph-ayodele/wingspan-tracker/internal/pipeline"
	"github.com/joseph-ayodele/wingspan-tracker/internal/repository"
	"github.com/joseph-ayodele/wingspan-tracker/internal/scoresheet"
)

const (
	scoresSheet = "Scores"
	reviewSheet = "Review"
)

// Scan is one screenshot and what the pipeline made of it.
type Scan struct {
	Source string
	Result pipeline.Result
}

// Service builds XLSX workbooks from pipeline results or from the audit store.
type Service struct {
	jobs   repository.ScanJobRepository
	logger *slog.Logger
}

// NewService accepts a nil repository when only in-memory results are exported.
func NewService(jobs repository.ScanJobRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, logger: logger}
}

// ScoresheetXLSX returns a workbook with one "Scores" row per player and one
// "Review" row per screenshot.
func (s *Service) ScoresheetXLSX(scans []Scan) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_failed", "error", err)
		}
	}()
	if err := f.SetSheetName("Sheet1", scoresSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(reviewSheet); err != nil {
		return nil, err
	}

	cats := constants.Categories()
	headers := []any{"Source", "Placement", "Player", "Total"}
	for _, c := range cats {
		headers = append(headers, c.Label())
	}
	headers = append(headers, "Breakdown Sum")
	if err := f.SetSheetRow(scoresSheet, "A1", &headers); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(reviewSheet, "A1", &[]any{
		"Source", "Players", "Confidence", "Needs Review", "Warnings", "Extraction Notes", "Model",
	}); err != nil {
		return nil, err
	}

	row := 2
	for i, scan := range scans {
		for _, p := range scan.Result.Data.Players {
			values := []any{scan.Source, p.Placement, p.PlayerName, p.TotalScore}
			for _, c := range cats {
				values = append(values, p.ScoringBreakdown.Get(c))
			}
			values = append(values, p.ScoringBreakdown.Sum())
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetSheetRow(scoresSheet, cell, &values); err != nil {
				return nil, err
			}
			row++
		}

		review := []any{
			scan.Source,
			len(scan.Result.Data.Players),
			math.Round(scan.Result.Confidence*100) / 100,
			yesNo(scan.Result.NeedsReview()),
			strings.Join(scan.Result.Warnings, "\n"),
			truncate(scan.Result.Data.ExtractionNotes, 500),
			scan.Result.Model,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(reviewSheet, cell, &review); err != nil {
			return nil, err
		}
	}

	_ = f.SetColWidth(scoresSheet, "A", "A", 32) // source
	_ = f.SetColWidth(scoresSheet, "C", "C", 24) // player
	_ = f.SetColWidth(reviewSheet, "A", "A", 32)
	_ = f.SetColWidth(reviewSheet, "E", "F", 60) // warnings, notes

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"scans", len(scans),
		"rows", row-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// CallerHistoryXLSX exports the caller's most recent successful scans from the audit store.
// Warnings are recomputed from the stored extraction.
func (s *Service) CallerHistoryXLSX(ctx context.Context, callerID string, limit int) ([]byte, error) {
	if s.jobs == nil {
		return nil, fmt.Errorf("export: no scan store configured")
	}
	jobs, err := s.jobs.ListByCaller(ctx, callerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}

	scans := make([]Scan, 0, len(jobs))
	for _, j := range jobs {
		if j.Status != string(constants.JobStatusExtracted) || len(j.ExtractedJSON) == 0 {
			continue
		}
		var data scoresheet.GameData
		if err := json.Unmarshal(j.ExtractedJSON, &data); err != nil {
			s.logger.Warn("export.history.skip", "job_id", j.ID, "error", err)
			continue
		}
		res := pipeline.Result{Data: data, Warnings: scoresheet.Warnings(data)}
		if j.Confidence != nil {
			res.Confidence = *j.Confidence
		}
		if j.ModelName != nil {
			res.Model = *j.ModelName
		}
		scans = append(scans, Scan{Source: j.Filename, Result: res})
	}
	return s.ScoresheetXLSX(scans)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
