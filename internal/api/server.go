package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"sumika/internal/config"
	"sumika/internal/dataset"
	"sumika/internal/logging"
	"sumika/internal/runstore"
)

// Server exposes the published dataset and run status.
type Server struct {
	cfg    *config.Config
	store  *dataset.Store
	ledger *runstore.Store
	logger *slog.Logger
	http   *http.Server
}

// NewServer builds the API server. The ledger may be nil; /api/run then
// reports not found.
func NewServer(cfg *config.Config, ledger *runstore.Store, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		store:  dataset.NewStore(cfg.Paths.DataDir, logger),
		ledger: ledger,
		logger: logging.NewComponentLogger(logger, "api"),
	}
	s.http = &http.Server{
		Addr:              cfg.Paths.APIBind,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the route table with authentication applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/dataset/{category}", s.requireAuth(s.handleDataset))
	mux.HandleFunc("GET /api/run", s.requireAuth(s.handleRun))
	return mux
}

// ListenAndServe blocks until the context is canceled or the listener
// fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", logging.String("bind", s.http.Addr))
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	token := s.cfg.Paths.APIToken
	if token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		presented, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	if !s.knownCategory(category) {
		http.Error(w, "unknown category", http.StatusNotFound)
		return
	}

	data, err := os.ReadFile(s.store.CurrentPath(category))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.Error(w, "no dataset yet", http.StatusNotFound)
			return
		}
		s.logger.Error("read dataset failed", logging.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(data)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		http.Error(w, "no run history", http.StatusNotFound)
		return
	}
	runs, err := s.ledger.RecentRuns(r.Context(), 1)
	if err != nil {
		s.logger.Error("query run history failed", logging.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if len(runs) == 0 {
		http.Error(w, "no run history", http.StatusNotFound)
		return
	}

	run := runs[0]
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":          run.RunID,
		"started_at":      run.StartedAt,
		"finished_at":     run.FinishedAt,
		"has_changes":     run.HasChanges,
		"notify":          run.Notify,
		"category_counts": run.CategoryCounts,
		"error":           run.Error,
	})
}

func (s *Server) knownCategory(category string) bool {
	for _, known := range s.cfg.AllCategories() {
		if known == category {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
