package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/triagemap/internal/feed"
	"github.com/sells-group/triagemap/internal/mapview"
	"github.com/sells-group/triagemap/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve disease maps over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initMapEnv(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the HTTP API over a map environment.
func newRouter(env *mapEnv, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	h := &handlers{env: env}

	r.Get("/health", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/diseases", h.listDiseases)
		r.Post("/cases", h.addCase)
		r.Get("/disease-location/{diseaseID}", h.diseaseLocation)
		r.Get("/map/{diseaseID}", h.diseaseMap)
		r.Get("/resolve/{region}", h.resolveRegion)
		r.Get("/resolve-stats", h.resolveStats)

		r.Route("/view", func(r chi.Router) {
			r.Get("/", h.viewSnapshot)
			r.Post("/select", h.viewSelect)
			r.Post("/retry", h.viewRetry)
		})

		r.Post("/admin/reload", h.reload)
	})

	return r
}

type handlers struct {
	env *mapEnv
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSONStatus(w, status, map[string]any{"success": false, "error": err.Error()})
}

func diseaseIDParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "diseaseID")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, eris.Errorf("invalid disease id %q", raw)
	}
	return id, nil
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *handlers) listDiseases(w http.ResponseWriter, r *http.Request) {
	diseases, err := h.env.Diseases(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, diseases)
}

func (h *handlers) addCase(w http.ResponseWriter, r *http.Request) {
	if h.env.Store == nil {
		writeError(w, http.StatusServiceUnavailable, eris.New("no case store configured"))
		return
	}

	var c model.Case
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, eris.New("invalid request body"))
		return
	}
	c.ID = ""
	c.CreatedAt = time.Time{}
	if err := c.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	saved, err := h.env.Store.AddCase(r.Context(), c)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, saved)
}

func (h *handlers) fetch(w http.ResponseWriter, r *http.Request) (int, *feed.Response, bool) {
	id, err := diseaseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return 0, nil, false
	}
	resp, err := h.env.Feed.Fetch(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return 0, nil, false
	}
	return id, resp, true
}

func (h *handlers) diseaseLocation(w http.ResponseWriter, r *http.Request) {
	if _, resp, ok := h.fetch(w, r); ok {
		writeJSON(w, resp)
	}
}

func (h *handlers) diseaseMap(w http.ResponseWriter, r *http.Request) {
	if id, resp, ok := h.fetch(w, r); ok {
		writeJSON(w, h.env.Builder.Build(id, resp))
	}
}

func (h *handlers) resolveRegion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, explainRegion(h.env, chi.URLParam(r, "region")))
}

func (h *handlers) resolveStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.env.Resolver.CacheStats())
}

func (h *handlers) viewSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.env.View.Snapshot())
}

func (h *handlers) viewSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DiseaseID int `json:"disease_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DiseaseID <= 0 {
		writeError(w, http.StatusBadRequest, eris.New("disease_id is required"))
		return
	}

	// The fetch outlives the request; View.Close cancels it on shutdown.
	p := h.env.View.Select(context.WithoutCancel(r.Context()), req.DiseaseID)
	writeJSONStatus(w, http.StatusAccepted, pendingBody(p))
}

func (h *handlers) viewRetry(w http.ResponseWriter, r *http.Request) {
	p, err := h.env.View.Retry(context.WithoutCancel(r.Context()))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, mapview.ErrNothingSelected) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, pendingBody(p))
}

func pendingBody(p *mapview.Pending) map[string]any {
	return map[string]any{
		"status":     "loading",
		"disease_id": p.DiseaseID,
		"generation": p.Generation,
	}
}

func (h *handlers) reload(w http.ResponseWriter, r *http.Request) {
	if err := h.env.Reload(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]string{"status": "reloaded"})
}
