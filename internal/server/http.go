// Package server exposes the screenshot pipeline over HTTP and gRPC health.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/wingspan-tracker/constants"
	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
	"github.com/joseph-ayodele/wingspan-tracker/internal/entity"
	"github.com/joseph-ayodele/wingspan-tracker/internal/export"
	"github.com/joseph-ayodele/wingspan-tracker/internal/imageprep"
	"github.com/joseph-ayodele/wingspan-tracker/internal/metrics"
	"github.com/joseph-ayodele/wingspan-tracker/internal/pipeline"
	"github.com/joseph-ayodele/wingspan-tracker/internal/repository"
	"github.com/joseph-ayodele/wingspan-tracker/internal/scoresheet"
)

const (
	routeUpload = "/api/games/upload-screenshot"
	routeScans  = "/api/scans"
	routeExport = "/api/scans/export"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// room for the multipart envelope around the image part
	multipartOverhead = 1 << 20
)

// Scanner runs one upload through the audited pipeline.
type Scanner interface {
	Scan(ctx context.Context, callerID string, upload imageprep.RawUpload) (pipeline.Result, uuid.UUID, error)
}

// HealthFunc reports whether a dependency is usable.
type HealthFunc func(ctx context.Context) error

// Server serves the upload endpoint and the review endpoints.
type Server struct {
	scanner        Scanner
	auth           Authenticator
	jobs           repository.ScanJobRepository
	exporter       *export.Service
	health         HealthFunc
	logger         *slog.Logger
	maxUploadBytes int
	requestTimeout time.Duration
}

type Option func(*Server)

func WithAuthenticator(a Authenticator) Option {
	return func(s *Server) {
		if a != nil {
			s.auth = a
		}
	}
}

// WithScanStore enables the scan history and export endpoints.
func WithScanStore(jobs repository.ScanJobRepository) Option {
	return func(s *Server) {
		s.jobs = jobs
	}
}

func WithHealthCheck(h HealthFunc) Option {
	return func(s *Server) {
		s.health = h
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMaxUploadBytes(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithRequestTimeout bounds one upload end to end. It should exceed the vision timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

func New(scanner Scanner, opts ...Option) *Server {
	s := &Server{
		scanner:        scanner,
		auth:           HeaderAuthenticator{},
		logger:         slog.Default(),
		maxUploadBytes: constants.MaxUploadBytes,
		requestTimeout: 3 * time.Minute,
	}
	for _, o := range opts {
		o(s)
	}
	s.exporter = export.NewService(s.jobs, s.logger)
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+routeUpload, s.instrument("upload", s.handleUpload))
	mux.HandleFunc("GET "+routeScans, s.instrument("scans", s.handleListScans))
	mux.HandleFunc("GET "+routeExport, s.instrument("export", s.handleExport))
	mux.HandleFunc("GET /healthz", s.instrument("healthz", s.handleHealth))
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}

type uploadResponse struct {
	Success       bool                 `json:"success"`
	ExtractedData *scoresheet.GameData `json:"extractedData,omitempty"`
	Confidence    *float64             `json:"confidence,omitempty"`
	Warnings      []string             `json:"warnings,omitempty"`
	NeedsReview   bool                 `json:"needsReview,omitempty"`
	Error         string               `json:"error,omitempty"`
	JobID         string               `json:"jobId,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rid := common.RequestIDFromContext(r.Context())

	callerID, ok := s.auth.CallerID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, uploadResponse{Error: "Not authenticated"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(s.maxUploadBytes)+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusBadRequest, uploadResponse{
				Error: fmt.Sprintf("File size exceeds %dMB limit.", s.maxUploadBytes>>20),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, uploadResponse{Error: "Missing required fields"})
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("image")
	leagueID := strings.TrimSpace(r.FormValue("leagueId"))
	if err != nil || leagueID == "" {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Error: "Missing required fields"})
		return
	}
	defer file.Close()
	if _, err := strconv.Atoi(leagueID); err != nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Error: "Invalid league ID"})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.logger.Error("http.upload.read_failed", "req_id", rid, "error", err)
		writeJSON(w, http.StatusBadRequest, uploadResponse{Error: "Could not read uploaded file"})
		return
	}

	s.logger.Info("http.upload.start",
		"req_id", rid,
		"caller_id", callerID,
		"league_id", leagueID,
		"filename", header.Filename,
		"bytes", len(data),
	)

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()
	res, jobID, err := s.scanner.Scan(ctx, callerID, imageprep.RawUpload{
		Data:      data,
		MediaType: header.Header.Get("Content-Type"),
		Filename:  header.Filename,
	})

	resp := uploadResponse{}
	if jobID != uuid.Nil {
		resp.JobID = jobID.String()
	}
	if err != nil {
		elapsed := time.Since(start)
		status := httpStatus(err)
		s.logger.Error("http.upload.failed",
			"req_id", rid,
			"caller_id", callerID,
			"status", status,
			"code", common.CodeOf(err),
			"error", err,
			"elapsed_ms", elapsed.Milliseconds(),
		)
		resp.Error = userMessage(err, elapsed)
		writeJSON(w, status, resp)
		return
	}

	resp.Success = true
	resp.ExtractedData = &res.Data
	resp.Confidence = &res.Confidence
	resp.Warnings = res.Warnings
	resp.NeedsReview = res.NeedsReview()
	s.logger.Info("http.upload.ok",
		"req_id", rid,
		"caller_id", callerID,
		"job_id", resp.JobID,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	writeJSON(w, http.StatusOK, resp)
}

type scansResponse struct {
	Scans []entity.ScanJob `json:"scans"`
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	callerID, ok := s.auth.CallerID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	if s.jobs == nil {
		writeError(w, http.StatusNotFound, "Scan history is not enabled")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobs, err := s.jobs.ListByCaller(r.Context(), callerID, limit)
	if err != nil {
		s.logger.Error("http.scans.failed", "req_id", common.RequestIDFromContext(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if jobs == nil {
		jobs = []entity.ScanJob{}
	}
	writeJSON(w, http.StatusOK, scansResponse{Scans: jobs})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	callerID, ok := s.auth.CallerID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	if s.jobs == nil {
		writeError(w, http.StatusNotFound, "Scan history is not enabled")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := s.exporter.CallerHistoryXLSX(r.Context(), callerID, limit)
	if err != nil {
		s.logger.Error("http.export.failed", "req_id", common.RequestIDFromContext(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="wingspan-scans.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 50, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 500 {
		return 0, errors.New("limit must be between 1 and 500")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
