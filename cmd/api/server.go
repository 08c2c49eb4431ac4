package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/bighogz/Kirana-Predict/internal/aggregator"
	"github.com/bighogz/Kirana-Predict/internal/cache"
	"github.com/bighogz/Kirana-Predict/internal/config"
	"github.com/bighogz/Kirana-Predict/internal/dashboard"
	"github.com/bighogz/Kirana-Predict/internal/forecast"
	"github.com/bighogz/Kirana-Predict/internal/ingest"
	"github.com/bighogz/Kirana-Predict/internal/models"
	"github.com/bighogz/Kirana-Predict/internal/planner"
	"github.com/bighogz/Kirana-Predict/internal/store"
)

const (
	refreshDebounce = 5 * time.Minute
	maxUploadBytes  = 10 << 20
	defaultSaleDays = 7
)

type server struct {
	cfg     *config.Config
	store   store.Store
	backend string
	cache   cache.Cache
	planner *planner.Planner
	log     *logrus.Logger
	tracer  trace.Tracer

	importLimiter *rateLimiter

	refreshMu     sync.Mutex
	lastRefreshAt time.Time
	// cacheMu orders dashboard cache writes against invalidations.
	// generation counts invalidations and is guarded by cacheMu.
	cacheMu    sync.Mutex
	generation uint64
	background    sync.WaitGroup
	now           func() time.Time
}

func newServer(cfg *config.Config, st store.Store, backend string, c cache.Cache, log *logrus.Logger, tracer trace.Tracer) *server {
	return &server{
		cfg:           cfg,
		store:         st,
		backend:       backend,
		cache:         c,
		planner:       planner.New(st, log, tracer),
		log:           log,
		tracer:        tracer,
		importLimiter: newRateLimiter(5 * time.Second),
		now:           time.Now,
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, securityHeaders(s.traced(pattern, h)))
	}
	handle("/", serveIndex)
	handle("/static/", serveStatic)
	handle("/api/health", s.handleHealth)
	handle("/api/dashboard", s.handleDashboard)
	handle("/api/dashboard/refresh", s.adminOnly(s.handleRefresh))
	handle("/api/dashboard/meta", s.handleMeta)
	handle("/api/products", s.handleProducts)
	handle("/api/sales", s.adminOnly(s.handleSales))
	handle("/api/sales/import", s.adminOnly(s.rateLimitImport(s.handleImport)))
	handle("/api/sales/top", s.handleTopSellers)
	handle("/api/sales/weekly", s.handleWeekly)
	handle("/api/inventory", s.handleInventory)
	handle("/api/forecast", s.handleForecast)
	handle("/api/restock-report", s.handleRestockReport)
	return mux
}

func serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	indexPath := "static/index.html"
	if _, err := os.Stat(indexPath); err == nil {
		http.ServeFile(w, r, indexPath)
		return
	}
	jsonResponse(w, map[string]string{"message": "Frontend not found. API is under /api/."})
}

func serveStatic(w http.ResponseWriter, r *http.Request) {
	subpath := strings.TrimPrefix(r.URL.Path, "/static/")
	subpath = strings.TrimPrefix(subpath, "/")
	if subpath == "" || strings.Contains(subpath, "..") {
		http.NotFound(w, r)
		return
	}
	path := safeStaticPath("static", subpath)
	if path == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]string{"status": "ok", "store": s.backend})
}

func allow(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

func (s *server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	from, to, err := parseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	// A custom top-seller range is built on demand and never cached.
	if !from.IsZero() || !to.IsZero() {
		data, err := dashboard.Build(r.Context(), s.store, dashboard.Options{From: from, To: to, TopN: s.cfg.TopN})
		if err != nil {
			s.writeError(w, err)
			return
		}
		jsonResponse(w, data)
		return
	}
	if cached, ok := s.cache.Read(r.Context(), cache.DashboardKey, true); ok {
		if _, fresh := s.cache.Read(r.Context(), cache.DashboardKey, false); !fresh {
			s.refreshAsync(false)
		}
		jsonResponse(w, cached)
		return
	}
	data, err := s.refreshCache(r.Context(), true)
	if err != nil {
		s.writeError(w, err)
		return
	}
	jsonResponse(w, data)
}

// refreshCache rebuilds the dashboard. Without force, calls within the
// debounce window of the last rebuild are dropped.
func (s *server) refreshCache(ctx context.Context, force bool) (map[string]interface{}, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	if !force && !s.lastRefreshAt.IsZero() && s.now().Sub(s.lastRefreshAt) < refreshDebounce {
		return nil, nil
	}
	s.lastRefreshAt = s.now()
	s.cacheMu.Lock()
	gen := s.generation
	s.cacheMu.Unlock()

	data, err := dashboard.Build(ctx, s.store, dashboard.Options{TopN: s.cfg.TopN})
	if err != nil {
		s.log.WithError(err).Error("dashboard refresh failed")
		return nil, err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	// Sales changed while building; the snapshot may predate that write.
	if s.generation != gen {
		s.log.Debug("dashboard changed during refresh, not caching")
		return data, nil
	}
	if err := s.cache.Write(ctx, cache.DashboardKey, data); err != nil {
		s.log.WithError(err).Warn("dashboard cache write failed")
	}
	return data, nil
}

func (s *server) refreshAsync(force bool) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		s.refreshCache(context.Background(), force)
	}()
}

func (s *server) startupRefresh() {
	if _, ok := s.cache.Read(context.Background(), cache.DashboardKey, false); !ok {
		s.refreshCache(context.Background(), false)
	}
}

// invalidate drops the cached dashboard after the sales table changes.
func (s *server) invalidate(ctx context.Context) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.generation++
	if err := s.cache.Delete(ctx, cache.DashboardKey); err != nil {
		s.log.WithError(err).Warn("dashboard cache invalidation failed")
	}
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	s.refreshAsync(true)
	jsonResponse(w, map[string]string{"status": "refresh started"})
}

func (s *server) handleMeta(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	t := s.cache.CachedAt(r.Context(), cache.DashboardKey)
	var ts *string
	if t != nil {
		formatted := t.Format(time.RFC3339)
		ts = &formatted
	}
	jsonResponse(w, map[string]interface{}{"last_updated": ts})
}

func (s *server) handleProducts(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	products, err := s.store.Products(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	jsonResponse(w, map[string]interface{}{"products": products, "count": len(products)})
}

type saleRequest struct {
	TransactionID   string `json:"transaction_id"`
	ProductName     string `json:"product_name"`
	Quantity        *int   `json:"quantity"`
	TransactionDate string `json:"transaction_date"`
}

func (s *server) handleSales(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	if r.Method == http.MethodGet {
		days := clamp(parseInt(r.URL.Query().Get("days"), defaultSaleDays), 1, 365)
		sales, err := s.store.RecentSales(r.Context(), days)
		if err != nil {
			s.writeError(w, err)
			return
		}
		jsonResponse(w, map[string]interface{}{"days": days, "sales": sales, "count": len(sales)})
		return
	}

	var req saleRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Quantity == nil {
		jsonError(w, http.StatusBadRequest, "quantity is required")
		return
	}
	date := models.Day(s.now())
	if req.TransactionDate != "" {
		d, err := ingest.ParseDate(req.TransactionDate)
		if err != nil {
			s.writeError(w, err)
			return
		}
		date = d
	}
	saved, err := s.store.AddSale(r.Context(), models.Sale{
		TransactionID:   req.TransactionID,
		ProductName:     req.ProductName,
		Quantity:        *req.Quantity,
		TransactionDate: date,
		DataSource:      models.SourceAPI,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.invalidate(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(saved)
}

func (s *server) handleImport(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	var body io.Reader = r.Body
	name := r.URL.Query().Get("filename")
	if name == "" {
		name = r.Header.Get("Content-Type")
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, hdr, err := r.FormFile("file")
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				s.writeError(w, err)
				return
			}
			jsonError(w, http.StatusBadRequest, "multipart upload needs a file field")
			return
		}
		defer file.Close()
		body, name = file, hdr.Filename
	}
	sales, err := ingest.Parse(body, name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sum, err := ingest.Import(r.Context(), s.store, sales, s.log)
	// A failed import may still have committed some rows.
	if sum.Inserted > 0 {
		s.invalidate(r.Context())
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	jsonResponse(w, sum)
}

func (s *server) handleTopSellers(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	from, to, err := parseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	limit := clamp(parseInt(q.Get("limit"), s.cfg.TopN), 1, 100)
	sales, err := s.store.AllSales(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	jsonResponse(w, map[string]interface{}{
		"top_sellers": aggregator.TopProducts(sales, from, to, limit),
	})
}

func (s *server) handleWeekly(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	sales, err := s.store.AllSales(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	weeks := aggregator.WeeklyTotals(sales)
	if weeks == nil {
		weeks = []aggregator.WeekTotal{}
	}
	jsonResponse(w, map[string]interface{}{"weekly_sales": weeks})
}

func (s *server) handleInventory(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	stock, err := intParam(q.Get("stock"), s.cfg.DefaultStock)
	if err != nil {
		s.writeError(w, err)
		return
	}
	inv, err := s.planner.Inventory(r.Context(), q.Get("product"), stock,
		parseInt(q.Get("lookback"), s.cfg.DefaultLookbackDays))
	if err != nil {
		s.writeError(w, err)
		return
	}
	jsonResponse(w, inv)
}

func (s *server) handleForecast(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	horizon, err := intParam(q.Get("horizon"), s.cfg.HorizonDays)
	if err != nil {
		s.writeError(w, err)
		return
	}
	proj, err := s.planner.Forecast(r.Context(), q.Get("product"), horizon)
	if err != nil {
		s.writeError(w, err)
		return
	}
	jsonResponse(w, proj)
}

func (s *server) handleRestockReport(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	stock, err := intParam(q.Get("stock"), s.cfg.DefaultStock)
	if err != nil {
		s.writeError(w, err)
		return
	}
	limit := clamp(parseInt(q.Get("limit"), s.cfg.TopN), 1, 100)
	report, err := s.planner.RestockReport(r.Context(), stock, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	jsonResponse(w, map[string]interface{}{"stock": stock, "products": report})
}

// writeError maps domain errors onto status codes. Anything unrecognised
// is logged and reported as a 500.
func (s *server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, forecast.ErrInsufficientData), errors.Is(err, forecast.ErrNoData):
		jsonError(w, http.StatusUnprocessableEntity, "Not enough data to forecast: "+err.Error())
	case errors.Is(err, forecast.ErrInvalidInput), errors.Is(err, store.ErrInvalidSale):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, planner.ErrProductNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrDuplicateSale):
		jsonError(w, http.StatusConflict, err.Error())
	default:
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		s.log.WithError(err).Error("request failed")
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}

func jsonResponse(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if fromStr != "" {
		if from, err = ingest.ParseDate(fromStr); err != nil {
			return from, to, err
		}
	}
	if toStr != "" {
		if to, err = ingest.ParseDate(toStr); err != nil {
			return from, to, err
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, errors.Wrap(forecast.ErrInvalidInput, "to is before from")
	}
	return from, to, nil
}

// intParam parses an optional integer query value, rejecting junk
// instead of silently using the default.
func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(forecast.ErrInvalidInput, "not an integer: %q", s)
	}
	return n, nil
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
