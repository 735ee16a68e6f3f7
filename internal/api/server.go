package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/septivank/meter-report-service/internal/archive"
	"github.com/septivank/meter-report-service/internal/db"
	"github.com/septivank/meter-report-service/internal/export"
	"github.com/septivank/meter-report-service/internal/metrics"
	"github.com/septivank/meter-report-service/internal/repository"
	"github.com/septivank/meter-report-service/internal/validator"
	"go.uber.org/zap"
)

const maxRequestBytes = 1 << 16

// ReportService is what the HTTP surface needs from the report core
type ReportService interface {
	CreateReport(ctx context.Context, meterSerialNumber string) (*db.Report, error)
	GetReport(ctx context.Context, id uuid.UUID) (*db.Report, error)
	Export(ctx context.Context, format export.Format) (*export.File, error)
}

// Pinger checks a dependency for health reporting
type Pinger interface {
	Ping(ctx context.Context) error
}

// CreateReportRequest is the body of POST /api/reports
type CreateReportRequest struct {
	MeterSerialNumber string `json:"meterSerialNumber"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server is the HTTP API
type Server struct {
	server   *http.Server
	service  ReportService
	archiver archive.Archiver
	health   Pinger
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewServer creates the HTTP server and its routes
func NewServer(
	addr string,
	service ReportService,
	archiver archive.Archiver,
	health Pinger,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Server {
	router := mux.NewRouter()

	s := &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		service:  service,
		archiver: archiver,
		health:   health,
		metrics:  m,
		logger:   logger,
	}

	router.Use(s.metricsMiddleware)
	router.Use(s.loggingMiddleware)

	router.HandleFunc("/health", s.healthCheck).Methods(http.MethodGet)
	router.HandleFunc("/api/reports", s.createReport).Methods(http.MethodPost)
	router.HandleFunc("/api/reports/download/{format}", s.downloadReports).Methods(http.MethodGet)
	router.HandleFunc("/api/reports/{id}", s.getReport).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		// label by route template so ids do not explode cardinality
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}

		s.metrics.ObserveHTTPRequest(r.Method, path, strconv.Itoa(rw.statusCode), time.Since(start))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("ip", r.RemoteAddr),
			zap.Int("status", rw.statusCode),
			zap.Int("response_size", rw.size),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.health.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", zap.Error(err))
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) createReport(w http.ResponseWriter, r *http.Request) {
	var req CreateReportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	report, err := s.service.CreateReport(r.Context(), req.MeterSerialNumber)
	if errors.Is(err, validator.ErrInvalidSerialNumber) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("failed to create report", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "report could not be created")
		return
	}

	s.writeJSON(w, http.StatusCreated, report)
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	report, err := s.service.GetReport(r.Context(), id)
	if errors.Is(err, repository.ErrReportNotFound) {
		s.writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get report", zap.String("id", id.String()), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) downloadReports(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(mux.Vars(r)["format"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, err := s.service.Export(r.Context(), format)
	if err != nil {
		s.logger.Error("failed to generate export", zap.String("format", format.Key), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "export could not be generated")
		return
	}

	if err := s.archiver.Archive(r.Context(), file); err != nil {
		s.logger.Warn("failed to archive export", zap.String("file_name", file.FileName), zap.Error(err))
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", file.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Data); err != nil {
		s.logger.Error("failed to write export", zap.Error(err))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}
