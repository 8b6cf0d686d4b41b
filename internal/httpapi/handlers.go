// Package httpapi exposes the compliance service over HTTP.
//
// Endpoints:
//
//	GET  /api/health                  health check
//	POST /api/analyze                 analyze one ad
//	POST /api/fix                     revise a non-compliant ad
//	POST /api/batch                   stage and submit a batch job
//	GET  /api/batch/{job}/status      point-in-time job status (?arn= optional with a job registry)
//	GET  /api/batch/{job}/results     collected per-ad results
//	POST /api/assets?filename=...     upload one asset, or a zip of assets
package httpapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/ad-compliance-analyzer/internal/compliance"
	"github.com/fpang/ad-compliance-analyzer/internal/inference"
	"github.com/fpang/ad-compliance-analyzer/internal/jobs"
	"github.com/fpang/ad-compliance-analyzer/internal/jobutil"
	"github.com/fpang/ad-compliance-analyzer/internal/storage"
	"github.com/fpang/ad-compliance-analyzer/internal/store"
)

const (
	batchRoutePrefix = "/api/batch/"
	assetsKeyPrefix  = "assets/"

	maxUploadBytes = 100 << 20
)

// safeFilenameRegex allows alphanumeric, dots, hyphens, underscores, spaces, and parentheses.
var safeFilenameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._ ()-]{0,254}$`)

// Analyzer is the compliance service behind the API. Satisfied by *inference.Service.
type Analyzer interface {
	Analyze(ctx context.Context, details compliance.AdDetails, images, video, audio compliance.MediaRefs) (*compliance.AnalysisResult, error)
	Fix(ctx context.Context, originalAnalysis, adContent string) (string, error)
	CreateBatchJob(ctx context.Context, items []inference.BatchItem, jobName string) (string, error)
	GetBatchJobStatus(ctx context.Context, jobARN string) (*inference.BatchJobStatus, error)
	GetBatchResults(ctx context.Context, jobName string) (*inference.BatchResults, error)
}

// Config holds the HTTP layer's own settings.
type Config struct {
	// Bucket receives uploaded assets.
	Bucket           string
	MetricsNamespace string
	// MetricsOut receives request EMF lines. Defaults to stdout.
	MetricsOut io.Writer
}

// Server routes API requests to the compliance service.
type Server struct {
	svc     Analyzer
	objects storage.ObjectStore
	jobs    store.JobStore
	cfg     Config
}

// New creates a Server. jobs may be nil; without it, status requests must
// carry the job ARN.
func New(svc Analyzer, objects storage.ObjectStore, jobs store.JobStore, cfg Config) *Server {
	if cfg.MetricsOut == nil {
		cfg.MetricsOut = os.Stdout
	}
	return &Server{svc: svc, objects: objects, jobs: jobs, cfg: cfg}
}

// Handler returns the routed handler wrapped with request metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/fix", s.handleFix)
	mux.HandleFunc("/api/batch", s.handleBatchCreate)
	mux.HandleFunc(batchRoutePrefix, s.handleBatchRoutes)
	mux.HandleFunc("/api/assets", s.handleAssets)
	return withMetrics(s.cfg.MetricsNamespace, s.cfg.MetricsOut, mux)
}

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "ad-compliance-analyzer",
	})
}

// --- Analysis ---

// POST /api/analyze
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req inference.AnalyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.AdDetails == nil {
		httpError(w, http.StatusBadRequest, "ad_details is required")
		return
	}

	result, err := s.svc.Analyze(r.Context(), req.AdDetails, req.Images, req.Video, req.Audio)
	if err != nil {
		httpError(w, http.StatusBadGateway, "analysis failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// POST /api/fix
func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req inference.FixRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	analysis := req.AnalysisText()
	if analysis == "" || strings.TrimSpace(req.AdContent) == "" {
		httpError(w, http.StatusBadRequest, "original_analysis and ad_content are required")
		return
	}

	fixed, err := s.svc.Fix(r.Context(), analysis, req.AdContent)
	if err != nil {
		httpError(w, http.StatusBadGateway, "fix failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, inference.FixResponse{Fixed: fixed})
}

// --- Batch ---

// POST /api/batch
func (s *Server) handleBatchCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req inference.BatchRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if len(req.Items) == 0 {
		httpError(w, http.StatusBadRequest, "items is required")
		return
	}
	if req.JobName == "" {
		req.JobName = jobs.GenerateID(jobs.BatchPrefix)
	}
	if !jobs.ValidName(req.JobName) {
		httpError(w, http.StatusBadRequest, "invalid job_name")
		return
	}

	arn, err := s.svc.CreateBatchJob(r.Context(), req.Items, req.JobName)
	if err != nil {
		httpError(w, http.StatusBadGateway, "batch job submission failed", err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, inference.BatchSubmitted{JobName: req.JobName, JobARN: arn})
}

// GET /api/batch/{job}/status, GET /api/batch/{job}/results
func (s *Server) handleBatchRoutes(w http.ResponseWriter, r *http.Request) {
	jobName, action, ok := jobs.ParseRoute(r.URL.Path, batchRoutePrefix)
	if !ok {
		httpError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	switch action {
	case "status":
		s.handleBatchStatus(w, r, jobName)
	case "results":
		s.handleBatchResults(w, r, jobName)
	default:
		httpError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request, jobName string) {
	arn := r.URL.Query().Get("arn")
	if arn == "" {
		if s.jobs == nil {
			httpError(w, http.StatusBadRequest, "arn is required")
			return
		}
		job, err := s.jobs.GetBatchJob(r.Context(), jobName)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "job lookup failed", err.Error())
			return
		}
		if job == nil {
			httpError(w, http.StatusNotFound, "job not found")
			return
		}
		arn = job.ARN
	}

	status, err := s.svc.GetBatchJobStatus(r.Context(), arn)
	if err != nil {
		httpError(w, http.StatusBadGateway, "status lookup failed", err.Error())
		return
	}

	if s.jobs != nil && status.Status == store.StatusFailed && status.FailureReason != nil {
		err := jobutil.SetJobError(r.Context(), jobName, *status.FailureReason, func(ctx context.Context, name, msg string) error {
			return s.jobs.UpdateBatchJobStatus(ctx, name, store.StatusFailed, msg)
		})
		if err != nil {
			log.Warn().Err(err).Str("jobName", jobName).Msg("Failed to record batch job failure")
		}
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleBatchResults(w http.ResponseWriter, r *http.Request, jobName string) {
	results, err := s.svc.GetBatchResults(r.Context(), jobName)
	if err != nil {
		httpError(w, http.StatusBadGateway, "results lookup failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, results)
}

// --- Assets ---

// POST /api/assets?filename=...
// A .zip upload is extracted and every entry stored; anything else is stored
// as a single object. Assets land under assets/<uuid>/.
func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.cfg.Bucket == "" {
		httpError(w, http.StatusServiceUnavailable, "asset uploads are not configured")
		return
	}

	filename := r.URL.Query().Get("filename")
	if err := validateFilename(filename); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		httpError(w, http.StatusBadRequest, "could not read body", err.Error())
		return
	}
	if len(data) > maxUploadBytes {
		httpError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", maxUploadBytes))
		return
	}

	prefix := assetsKeyPrefix + uuid.NewString()
	if strings.EqualFold(path.Ext(filename), ".zip") {
		files, err := storage.ExtractZip(r.Context(), s.objects, s.cfg.Bucket, prefix, bytes.NewReader(data), int64(len(data)))
		if errors.Is(err, storage.ErrZipEntryTooLarge) {
			httpError(w, http.StatusRequestEntityTooLarge, "zip entry too large", err.Error())
			return
		}
		if err != nil {
			httpError(w, http.StatusBadRequest, "could not extract zip", err.Error())
			return
		}
		locators := make(map[string]string, len(files))
		for name, f := range files {
			locators[name] = f.Locator.String()
		}
		respondJSON(w, http.StatusCreated, map[string]any{"files": locators})
		return
	}

	loc, err := storage.UploadFile(r.Context(), s.objects, s.cfg.Bucket, prefix+"/"+filename, bytes.NewReader(data))
	if err != nil {
		httpError(w, http.StatusInternalServerError, "upload failed", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"locator": loc.String()})
}

func validateFilename(name string) error {
	if name == "" {
		return fmt.Errorf("filename is required")
	}
	if strings.Contains(name, "..") || strings.Contains(name, "/") || strings.Contains(name, "\\") {
		return fmt.Errorf("filename contains invalid characters")
	}
	if !safeFilenameRegex.MatchString(name) {
		return fmt.Errorf("filename contains invalid characters; only alphanumeric, dots, hyphens, underscores, spaces, and parentheses allowed")
	}
	return nil
}
