package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dtnitsch/ragebait-block/models"
	"github.com/dtnitsch/ragebait-block/pkg/blocker"
	"github.com/dtnitsch/ragebait-block/pkg/message"
	"github.com/dtnitsch/ragebait-block/pkg/metrics"
	"github.com/dtnitsch/ragebait-block/pkg/scanner"
	"github.com/dtnitsch/ragebait-block/pkg/settings"
	"github.com/dtnitsch/ragebait-block/pkg/sites"
)

const maxBodyBytes = 10 << 20

// SettingsStore is the part of settings.Store the API uses.
type SettingsStore interface {
	Load(ctx context.Context) (*models.Settings, error)
	Save(ctx context.Context, s *models.Settings) error
}

// Permissions is the part of permission.Manager the API uses.
type Permissions interface {
	Contains(ctx context.Context, name string) (bool, error)
	Request(ctx context.Context, name string) (bool, error)
}

type Deps struct {
	Settings    SettingsStore
	Permissions Permissions
	Classifier  scanner.Classifier
	// Ready, when set, reports engine readiness on /healthz.
	Ready    func() bool
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Workers  int
	Logger   *slog.Logger
}

// Service is the background coordinator exposed over HTTP.
type Service struct {
	deps    Deps
	handler *message.Handler
	logger  *slog.Logger
}

func New(deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		deps:    deps,
		handler: message.NewHandler(deps.Classifier),
		logger:  deps.Logger,
	}
}

// Router returns the full route table.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.deps.Registry != nil {
		r.Handle("/metrics", metrics.Handler(s.deps.Registry))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/message", s.handleMessage)
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)
		r.Get("/permissions/{name}", s.handleGetPermission)
		r.Post("/permissions/{name}", s.handleRequestPermission)
		r.Post("/filter", s.handleFilter)
	})
	return r
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]interface{}{"status": "ok"}
	if s.deps.Ready != nil {
		resp["engine_ready"] = s.deps.Ready()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleMessage answers the runML contract. Other message types get 204.
// POST /api/message
func (s *Service) handleMessage(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	out, err := s.handler.HandleJSON(r.Context(), raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if out == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

func (s *Service) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.deps.Settings.Load(r.Context())
	if err != nil {
		s.logger.Error("failed to load settings", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handlePutSettings replaces the stored settings wholesale.
// PUT /api/settings
func (s *Service) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var in models.Settings
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid settings body: %w", err))
		return
	}

	if err := s.deps.Settings.Save(r.Context(), &in); err != nil {
		if errors.Is(err, settings.ErrInvalid) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		s.logger.Error("failed to save settings", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	saved, err := s.deps.Settings.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Service) handleGetPermission(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ok, err := s.deps.Permissions.Contains(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"name": name, "granted": ok})
}

func (s *Service) handleRequestPermission(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ok, err := s.deps.Permissions.Request(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.logger.Info("permission granted", "name", name)
	writeJSON(w, http.StatusOK, map[string]interface{}{"name": name, "granted": ok})
}

// handleFilter runs the blocker over an HTML body. The page's host comes
// from ?url= or ?host=. Unsupported or disabled sites are echoed back.
// POST /api/filter?url=https://www.reddit.com/
func (s *Service) handleFilter(w http.ResponseWriter, r *http.Request) {
	host := r.URL.Query().Get("host")
	if host == "" {
		rawURL := r.URL.Query().Get("url")
		if rawURL == "" {
			writeError(w, http.StatusBadRequest, errors.New("url or host query parameter is required"))
			return
		}
		h, err := sites.Hostname(rawURL)
		if err != nil || h == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid url %q", rawURL))
			return
		}
		host = h
	}

	cfg, err := s.deps.Settings.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	res, err := blocker.FilterHTML(r.Context(), http.MaxBytesReader(w, r.Body, maxBodyBytes), blocker.Config{
		Hostname:   host,
		Settings:   cfg,
		Classifier: s.deps.Classifier,
		Workers:    s.deps.Workers,
		Metrics:    s.deps.Metrics,
		Logger:     s.logger,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	if res.Skipped != nil {
		h.Set("X-Ragebait-Skipped", res.Skipped.Error())
	} else {
		h.Set("X-Ragebait-Site", res.Site)
		h.Set("X-Ragebait-Page-Id", res.PageID)
		h.Set("X-Ragebait-Submitted", strconv.Itoa(res.Stats.Submitted))
		h.Set("X-Ragebait-Suppressed", strconv.Itoa(res.Stats.Hidden+res.Stats.Annotated))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(res.HTML)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
