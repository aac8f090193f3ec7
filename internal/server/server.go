// Package server exposes the fiscal views over HTTP.
package server

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/fiscal-cli/internal/aggregate"
	"github.com/sells-group/fiscal-cli/internal/briefing"
	"github.com/sells-group/fiscal-cli/internal/model"
	"github.com/sells-group/fiscal-cli/internal/narrative"
	"github.com/sells-group/fiscal-cli/internal/scorer"
	"github.com/sells-group/fiscal-cli/internal/views"
)

// Narrator generates memos. *narrative.Writer satisfies it.
type Narrator interface {
	EntityMemo(ctx context.Context, brief briefing.Brief) (string, error)
	SnapshotMemo(ctx context.Context, snap aggregate.ExecutiveSnapshot) (string, error)
	CriticalPack(ctx context.Context, briefs []briefing.Brief) ([]narrative.MemoResult, error)
}

// Options configures a Server.
type Options struct {
	// Narrator is optional; memo routes answer 503 without it.
	Narrator       Narrator
	Gatherer       prometheus.Gatherer
	Metrics        *Metrics
	AllowedOrigins []string
	TopN           int
	SnapshotID     string
	SnapshotLabel  string
}

// Server answers read queries over one aggregated snapshot.
type Server struct {
	agg     *aggregate.Aggregator
	builder *briefing.Builder
	opts    Options
}

// New creates a Server over agg.
func New(agg *aggregate.Aggregator, opts Options) *Server {
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{
		agg:     agg,
		builder: briefing.NewBuilder(agg.Entities()),
		opts:    opts,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(s.opts.Metrics.instrument)

	r.Get("/health", s.handleHealth)
	if s.opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Route("/api/v1", s.Register)
	return r
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/snapshot", s.handleSnapshot)
	r.Post("/snapshot/memo", s.handleSnapshotMemo)
	r.Get("/scores", s.handleScores)
	r.Get("/critical", s.handleCritical)
	r.Post("/critical/memos", s.handleCriticalMemos)
	r.Get("/views", s.handleViewIndex)
	r.Get("/views/{group}/{view}", s.handleView)
	r.Route("/entities/{key}", func(r chi.Router) {
		r.Get("/", s.handleEntity)
		r.Get("/brief", s.handleBrief)
		r.Post("/memo", s.handleEntityMemo)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":         "ok",
		"entities":       len(s.agg.Entities()),
		"snapshot_id":    s.opts.SnapshotID,
		"snapshot_label": s.opts.SnapshotLabel,
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.agg.ExecutiveSnapshot())
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("tier")
	if raw == "" {
		writeJSON(w, r, http.StatusOK, s.agg.Table())
		return
	}
	tier, err := scorer.ParseTier(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.agg.ByTier(tier))
}

func (s *Server) handleCritical(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.builder.Critical(s.agg.Table()))
}

func (s *Server) handleViewIndex(w http.ResponseWriter, r *http.Request) {
	index := map[string][]string{}
	for _, name := range views.GroupNames() {
		index[name] = views.Groups[name].Names()
	}
	writeJSON(w, r, http.StatusOK, index)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	group, ok := views.Groups[chi.URLParam(r, "group")]
	if !ok {
		writeError(w, r, http.StatusNotFound, errors.New("unknown view group"))
		return
	}
	view, err := group.Find(chi.URLParam(r, "view"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, err)
		return
	}

	q := views.Query{N: s.opts.TopN, Category: r.URL.Query().Get("category")}
	if raw := r.URL.Query().Get("n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, errors.New("n must be a non-negative integer"))
			return
		}
		q.N = n
	}
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		th, err := strconv.ParseFloat(raw, 64)
		if err != nil || th < 0 || math.IsNaN(th) || math.IsInf(th, 0) {
			writeError(w, r, http.StatusBadRequest, errors.New("threshold must be a non-negative number"))
			return
		}
		q.Threshold = th
	}

	out, err := view.Run(s.agg, q)
	switch {
	case errors.Is(err, views.ErrMissingCategory):
		writeError(w, r, http.StatusBadRequest, err)
	case err != nil:
		zap.L().Error("server: view failed", zap.String("view", group.Name+"/"+view.Name), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, err)
	default:
		writeJSON(w, r, http.StatusOK, out)
	}
}

func (s *Server) handleEntity(w http.ResponseWriter, r *http.Request) {
	row, err := s.agg.Lookup(chi.URLParam(r, "key"))
	if err != nil {
		writeLookupError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, row)
}

func (s *Server) handleBrief(w http.ResponseWriter, r *http.Request) {
	brief, err := s.builder.Brief(chi.URLParam(r, "key"))
	if err != nil {
		writeLookupError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, brief)
}

func (s *Server) handleEntityMemo(w http.ResponseWriter, r *http.Request) {
	if !s.requireNarrator(w, r) {
		return
	}
	brief, err := s.builder.Brief(chi.URLParam(r, "key"))
	if err != nil {
		writeLookupError(w, r, err)
		return
	}

	start := time.Now()
	memo, err := s.opts.Narrator.EntityMemo(r.Context(), brief)
	s.opts.Metrics.ObserveMemo(start, err)
	if err != nil {
		writeNarrativeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, narrative.MemoResult{Key: brief.Key, Name: brief.Name, Memo: memo})
}

func (s *Server) handleSnapshotMemo(w http.ResponseWriter, r *http.Request) {
	if !s.requireNarrator(w, r) {
		return
	}
	start := time.Now()
	memo, err := s.opts.Narrator.SnapshotMemo(r.Context(), s.agg.ExecutiveSnapshot())
	s.opts.Metrics.ObserveMemo(start, err)
	if err != nil {
		writeNarrativeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"memo": memo})
}

func (s *Server) handleCriticalMemos(w http.ResponseWriter, r *http.Request) {
	if !s.requireNarrator(w, r) {
		return
	}
	start := time.Now()
	results, err := s.opts.Narrator.CriticalPack(r.Context(), s.builder.Critical(s.agg.Table()))
	s.opts.Metrics.ObserveMemo(start, err)
	if err != nil {
		writeNarrativeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, results)
}

func (s *Server) requireNarrator(w http.ResponseWriter, r *http.Request) bool {
	if s.opts.Narrator == nil {
		writeError(w, r, http.StatusServiceUnavailable, errors.New("narrative generation is not configured"))
		return false
	}
	return true
}

func writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if model.IsNotFound(err) {
		writeError(w, r, http.StatusNotFound, err)
		return
	}
	writeError(w, r, http.StatusInternalServerError, err)
}

func writeNarrativeError(w http.ResponseWriter, r *http.Request, err error) {
	zap.L().Error("server: memo failed", zap.Error(err))
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		writeError(w, r, http.StatusGatewayTimeout, err)
		return
	}
	writeError(w, r, http.StatusBadGateway, err)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	writeJSON(w, r, status, map[string]string{"error": err.Error()})
}
