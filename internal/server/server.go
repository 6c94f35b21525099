// Package server exposes stored runs, new runs and Prometheus metrics over
// HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/semaphore"

	"github.com/micrenda/circlesim-sub000/internal/config"
	"github.com/micrenda/circlesim-sub000/internal/dynamo"
	"github.com/micrenda/circlesim-sub000/internal/experiment"
	"github.com/micrenda/circlesim-sub000/internal/metrics"
	"github.com/micrenda/circlesim-sub000/internal/sim"
	"github.com/micrenda/circlesim-sub000/internal/storage"
)

// maxConfigBytes bounds the size of a submitted configuration.
const maxConfigBytes = 1 << 20

// DefaultRunTimeout bounds a POSTed run when Options.RunTimeout is zero.
const DefaultRunTimeout = 2 * time.Minute

type Options struct {
	Store     *storage.Store
	Gatherer  prometheus.Gatherer
	Collector *metrics.Collector
	Logger    *slog.Logger
	// MaxRuns bounds concurrent POST /runs. Zero means one.
	MaxRuns int64
	// RunTimeout bounds the wall time of one POSTed run.
	RunTimeout time.Duration
}

type Server struct {
	store     *storage.Store
	collector *metrics.Collector
	logger    *slog.Logger
	runs      *semaphore.Weighted
	timeout   time.Duration
}

// NewHandler returns the HTTP API.
//
//	GET  /healthz
//	GET  /presets
//	GET  /runs
//	POST /runs?label=name        body: YAML configuration
//	GET  /runs/{id}
//	GET  /runs/{id}/trajectory
//	GET  /runs/{id}/trajectory.csv
//	GET  /metrics
func NewHandler(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	maxRuns := opts.MaxRuns
	if maxRuns <= 0 {
		maxRuns = 1
	}
	timeout := opts.RunTimeout
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	s := &Server{
		store:     opts.Store,
		collector: opts.Collector,
		logger:    logger,
		runs:      semaphore.NewWeighted(maxRuns),
		timeout:   timeout,
	}

	r := chi.NewRouter()
	r.Use(s.logRequests)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})
	r.Get("/presets", s.listPresets)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.listRuns)
		r.Post("/", s.createRun)
		r.Get("/{id}", s.getRun)
		r.Get("/{id}/trajectory", s.getTrajectory)
		r.Get("/{id}/trajectory.csv", s.getTrajectoryCSV)
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
	RunID string `json:"id,omitempty"`
}

func (s *Server) notFound(w http.ResponseWriter, err error) bool {
	if errors.Is(err, os.ErrNotExist) {
		s.writeJSON(w, http.StatusNotFound, errorBody{Error: "run not found"})
		return true
	}
	return false
}

func (s *Server) listPresets(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, config.ListPresets())
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.List()
	if err != nil {
		s.logger.Error("list runs failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	meta, err := s.store.Load(chi.URLParam(r, "id"))
	if err != nil {
		if !s.notFound(w, err) {
			s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		}
		return
	}
	s.writeJSON(w, http.StatusOK, meta)
}

func (s *Server) getTrajectory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.Load(id); err != nil {
		if !s.notFound(w, err) {
			s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := s.store.ExportJSON(w, id); err != nil {
		s.logger.Error("export failed", "run", id, "error", err)
	}
}

func (s *Server) getTrajectoryCSV(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.Load(id); err != nil {
		if !s.notFound(w, err) {
			s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		}
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	if err := s.store.ExportCSV(w, id); err != nil {
		s.logger.Error("export failed", "run", id, "error", err)
	}
}

type runResponse struct {
	RunID   string              `json:"id"`
	Time    float64             `json:"time"`
	Regime  string              `json:"regime"`
	Final   storage.StateRecord `json:"final"`
	Metrics map[string]float64  `json:"metrics"`
	Result  *sim.Result         `json:"result"`
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBytes+1))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if len(data) > maxConfigBytes {
		s.writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "configuration too large"})
		return
	}

	cfg, err := config.Parse(data)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if cfg.Field.Script != "" {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "field scripts must be inline (field.source)"})
		return
	}

	label := r.URL.Query().Get("label")
	if label == "" {
		label = "api"
	}

	// building the experiment compiles inline scripts, so it counts as work
	if err := s.runs.Acquire(r.Context(), 1); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
		return
	}
	defer s.runs.Release(1)

	exp, err := experiment.New(label, cfg, ".")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	s.logger.Info("run started", "label", label)
	out, err := exp.Run(ctx, experiment.Options{Store: s.store, Collector: s.collector, Logger: s.logger})
	if err != nil {
		body := errorBody{Error: err.Error()}
		if out != nil {
			body.RunID = out.RunID
		}
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, dynamo.ErrConfig):
			status = http.StatusBadRequest
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		}
		s.logger.Warn("run failed", "label", label, "error", err)
		s.writeJSON(w, status, body)
		return
	}

	res := out.Result
	s.logger.Info("run finished", "id", out.RunID, "interactions", res.Interactions)
	s.writeJSON(w, http.StatusCreated, runResponse{
		RunID:   out.RunID,
		Time:    res.Time,
		Regime:  res.Regime.String(),
		Final:   storage.NewStateRecord(res.Final),
		Metrics: out.Metrics,
		Result:  res,
	})
}
