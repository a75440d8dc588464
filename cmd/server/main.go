package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	gcs "cloud.google.com/go/storage"

	"github.com/citypulse/eventsync/internal/config"
	"github.com/citypulse/eventsync/internal/images"
	"github.com/citypulse/eventsync/internal/models"
	"github.com/citypulse/eventsync/internal/source"
	"github.com/citypulse/eventsync/internal/storage"
	"github.com/citypulse/eventsync/internal/syncer"
)

const defaultRunHistory = 20

type syncRunner interface {
	Sync(ctx context.Context, opts syncer.Options) (models.SyncStats, error)
}

type runLister interface {
	GetRecentSyncRuns(ctx context.Context, limit int) ([]models.SyncRun, error)
}

type Server struct {
	engine     syncRunner
	runs       runLister
	cronSecret string
}

func main() {
	slog.Info("Starting event sync server...")
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := storage.New(ctx, cfg.ProjectID)
	if err != nil {
		slog.Error("Critical error initializing Firestore client", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	var gcsClient *gcs.Client
	if cfg.ImageBucket != "" {
		gcsClient, err = gcs.NewClient(ctx)
		if err != nil {
			slog.Warn("Failed to initialize storage client. Image persistence disabled.", "error", err)
			gcsClient = nil
		}
	}

	src := source.New(cfg)
	resolver := images.NewResolver(cfg.ScrapeTimeout)
	persister := images.NewPersister(gcsClient, cfg.ImageBucket)
	engine := syncer.New(src, store, resolver, persister, cfg)

	srv := &Server{engine: engine, runs: store, cronSecret: cfg.SyncCronSecret}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /sync", srv.SyncHandler)
	mux.HandleFunc("GET /cron/sync", srv.CronSyncHandler)
	mux.HandleFunc("GET /sync/runs", srv.RunsHandler)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		slog.Info("Received signal, shutting down gracefully...", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
	}()

	slog.Info("Listening on port", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Failed to listen and serve", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped.")
}

type syncRequest struct {
	TriggeredBy      string `json:"triggeredBy"`
	ForceImageResync bool   `json:"forceImageResync"`
}

type syncResponse struct {
	Success bool              `json:"success"`
	Stats   *models.SyncStats `json:"stats,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// SyncHandler runs a full reconciliation synchronously and reports its
// stats. A run can take minutes; the server's write timeout is sized for it.
func (s *Server) SyncHandler(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if r.Body != nil {
		// An empty or absent body is a valid manual trigger.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, syncResponse{Error: "invalid request body"})
			return
		}
	}
	if req.TriggeredBy == "" {
		req.TriggeredBy = "manual"
	}

	s.runSync(w, r, syncer.Options{
		TriggeredBy:      req.TriggeredBy,
		ForceImageResync: req.ForceImageResync,
	})
}

// CronSyncHandler is the scheduler entry point, guarded by a bearer secret.
func (s *Server) CronSyncHandler(w http.ResponseWriter, r *http.Request) {
	if s.cronSecret == "" {
		slog.Error("Cron trigger rejected: SYNC_CRON_SECRET is not configured")
		writeJSON(w, http.StatusInternalServerError, syncResponse{Error: "cron secret not configured"})
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+s.cronSecret {
		writeJSON(w, http.StatusUnauthorized, syncResponse{Error: "unauthorized"})
		return
	}

	s.runSync(w, r, syncer.Options{TriggeredBy: "cron"})
}

func (s *Server) runSync(w http.ResponseWriter, r *http.Request, opts syncer.Options) {
	stats, err := s.engine.Sync(r.Context(), opts)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, syncResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Success: true, Stats: &stats})
}

// RunsHandler returns the most recent sync audit records, newest first.
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunHistory
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, syncResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	runs, err := s.runs.GetRecentSyncRuns(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, syncResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
