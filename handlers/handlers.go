package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"pricewatch/matcher"
	"pricewatch/metrics"
	"pricewatch/models"
	"pricewatch/scheduler"
)

// Trigger starts sweeps and reports on recent ones
type Trigger interface {
	Arm() error
	Armed() bool
	StartSweep() (string, bool)
	Run(id string) (models.SweepRun, bool)
	RecentRuns(n int) []models.SweepRun
	SweepStats() map[string]int
}

// PriceReader is the read side of the price store
type PriceReader interface {
	FindOne(ctx context.Context, retailer, product string) (*models.PriceRecord, error)
	FindAll(ctx context.Context, product string) ([]models.PriceRecord, error)
	History(ctx context.Context, recordID int64, limit int) ([]models.PriceHistory, error)
}

type Handlers struct {
	trigger Trigger
	prices  PriceReader
	catalog *matcher.Catalog
	started time.Time
}

func NewHandlers(trigger Trigger, prices PriceReader, catalog *matcher.Catalog) *Handlers {
	return &Handlers{
		trigger: trigger,
		prices:  prices,
		catalog: catalog,
		started: time.Now(),
	}
}

// RegisterRoutes mounts every route on r. sweepLimit wraps the manual
// sweep trigger.
func (h *Handlers) RegisterRoutes(r *mux.Router, sweepLimit func(http.Handler) http.Handler) {
	r.HandleFunc("/", h.StartScraper).Methods(http.MethodGet)
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Handle("/sweep", sweepLimit(http.HandlerFunc(h.TriggerSweep))).Methods(http.MethodPost)
	api.HandleFunc("/sweeps", h.GetSweeps).Methods(http.MethodGet)
	api.HandleFunc("/sweeps/{id}", h.GetSweep).Methods(http.MethodGet)
	api.HandleFunc("/catalog", h.GetCatalog).Methods(http.MethodGet)
	api.HandleFunc("/prices", h.GetPrices).Methods(http.MethodGet)
	api.HandleFunc("/prices/history", h.GetPriceHistory).Methods(http.MethodGet)
}

// StartScraper arms the scheduler. Repeated calls are harmless.
func (h *Handlers) StartScraper(w http.ResponseWriter, r *http.Request) {
	if err := h.trigger.Arm(); err != nil && !eris.Is(err, scheduler.ErrAlreadyArmed) {
		zap.L().Error("failed to arm scheduler", zap.Error(err))
		http.Error(w, "Failed to start scraper", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Scraper started"))
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"timestamp": time.Now().UTC(),
		"scheduler": map[string]any{
			"armed":  h.trigger.Armed(),
			"sweeps": h.trigger.SweepStats(),
		},
	})
}

// TriggerSweep starts a sweep in the background
func (h *Handlers) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	id, ok := h.trigger.StartSweep()
	if !ok {
		writeError(w, http.StatusConflict, "a sweep is already running")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":   "sweep started",
		"sweep_id": id,
	})
}

// GetSweeps lists recent sweeps, newest first
func (h *Handlers) GetSweeps(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"sweeps": h.trigger.RecentRuns(limit)})
}

// GetSweep returns the status of one sweep
func (h *Handlers) GetSweep(w http.ResponseWriter, r *http.Request) {
	run, ok := h.trigger.Run(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "Sweep not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetCatalog lists the tracked products and retailers in declared order
func (h *Handlers) GetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		"products":  h.catalog.Products(),
		"retailers": h.catalog.Retailers(),
	})
}

// GetPrices returns the latest record per retailer of a catalog product.
// The product parameter is resolved against the catalog like a chat query.
func (h *Handlers) GetPrices(w http.ResponseWriter, r *http.Request) {
	product, ok := h.resolve(w, r)
	if !ok {
		return
	}

	records, err := h.prices.FindAll(r.Context(), product)
	if err != nil {
		zap.L().Error("failed to read prices", zap.String("product", product), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to read prices")
		return
	}
	if records == nil {
		records = []models.PriceRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"product": product,
		"prices":  records,
	})
}

// GetPriceHistory returns the price points of one (retailer, product) record
func (h *Handlers) GetPriceHistory(w http.ResponseWriter, r *http.Request) {
	product, ok := h.resolve(w, r)
	if !ok {
		return
	}

	retailer, ok := h.catalog.ResolveRetailer(r.URL.Query().Get("retailer"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown retailer")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	record, err := h.prices.FindOne(r.Context(), retailer, product)
	if err != nil {
		zap.L().Error("failed to read price record", zap.String("product", product), zap.String("retailer", retailer), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to read price history")
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "No price recorded")
		return
	}

	history, err := h.prices.History(r.Context(), record.ID, limit)
	if err != nil {
		zap.L().Error("failed to read price history", zap.Int64("record_id", record.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to read price history")
		return
	}
	if history == nil {
		history = []models.PriceHistory{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"record":  record,
		"history": history,
	})
}

func (h *Handlers) resolve(w http.ResponseWriter, r *http.Request) (string, bool) {
	query := r.URL.Query().Get("product")
	if query == "" {
		writeError(w, http.StatusBadRequest, "product is required")
		return "", false
	}
	product, ok := h.catalog.LookupProduct(query)
	if !ok {
		writeError(w, http.StatusNotFound, "Product not recognized")
		return "", false
	}
	return product, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Debug("failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
