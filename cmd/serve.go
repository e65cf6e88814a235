package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vikabot-systems/leadscout/internal/collector"
	"github.com/vikabot-systems/leadscout/internal/model"
	"github.com/vikabot-systems/leadscout/internal/store"
)

var servePort int

// serveState serializes collection: one run at a time, fired from the
// trigger endpoint and observed through the runs endpoints.
type serveState struct {
	mu      sync.Mutex
	running bool
}

func (s *serveState) tryStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *serveState) finish() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for triggering and inspecting collection",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		col, err := buildCollector(st)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(ctx, st, col),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// newRouter builds the API. The baseCtx outlives individual requests;
// triggered runs are attached to it so an impatient client hanging up does
// not abort a half-finished collection pass.
func newRouter(baseCtx context.Context, st store.Store, col *collector.Collector) http.Handler {
	state := &serveState{}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/runs", func(w http.ResponseWriter, _ *http.Request) {
		if !state.tryStart() {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "a collection run is already in progress"})
			return
		}

		go func() {
			defer state.finish()
			run, err := col.Run(baseCtx)
			if err != nil {
				zap.L().Error("triggered run failed", zap.Error(err))
				return
			}
			zap.L().Info("triggered run finished",
				zap.String("run_id", run.ID),
				zap.String("status", string(run.Status)),
				zap.Int("accepted", run.Counters.Accepted),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	})

	r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		runs, err := st.ListRuns(req.Context(), store.RunFilter{
			Status: model.RunStatus(q.Get("status")),
			Limit:  intParam(q.Get("limit")),
			Offset: intParam(q.Get("offset")),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	r.Get("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		run, err := st.GetRun(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	r.Get("/leads", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		minScore, _ := strconv.ParseFloat(q.Get("min_score"), 64)
		leads, err := st.ListLeads(req.Context(), store.LeadFilter{
			Status:   model.PipelineStatus(q.Get("status")),
			Tier:     model.Tier(q.Get("tier")),
			Source:   q.Get("source"),
			MinScore: minScore,
			Unsynced: q.Get("unsynced") == "true",
			Limit:    intParam(q.Get("limit")),
			Offset:   intParam(q.Get("offset")),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, leads)
	})

	r.Get("/leads/{key}", func(w http.ResponseWriter, req *http.Request) {
		lead, err := st.GetLead(req.Context(), chi.URLParam(req, "key"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, lead)
	})

	r.Post("/sync", func(w http.ResponseWriter, req *http.Request) {
		leads, err := st.ListLeads(req.Context(), store.LeadFilter{Unsynced: true})
		if err != nil {
			writeError(w, err)
			return
		}
		if len(leads) == 0 {
			writeJSON(w, http.StatusOK, map[string]int{"synced": 0})
			return
		}
		synced, err := syncLeads(req.Context(), st, leads)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"synced": synced})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if eris.Is(err, store.ErrNotFound) {
		status = http.StatusNotFound
	}
	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func intParam(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
