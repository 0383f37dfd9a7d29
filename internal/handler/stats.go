package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/itemstats/internal/middleware"
	"github.com/vyrodovalexey/itemstats/internal/model"
	"github.com/vyrodovalexey/itemstats/internal/stats"
)

// emptyObject is written when a single-item statistic has no data.
var emptyObject = struct{}{}

// StatsHandler serves the read-only statistics endpoints.
type StatsHandler struct {
	engine *stats.Engine
	logger *zap.Logger
}

// NewStatsHandler creates a new StatsHandler instance.
func NewStatsHandler(engine *stats.Engine, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		engine: engine,
		logger: logger,
	}
}

// RegisterRoutes registers the statistics routes with the router.
func (h *StatsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/stats/maior", h.Highest).Methods(http.MethodGet)
	router.HandleFunc("/stats/menor", h.Lowest).Methods(http.MethodGet)
	router.HandleFunc("/stats/media", h.Average).Methods(http.MethodGet)
	router.HandleFunc("/stats/acima-media", h.AboveAverage).Methods(http.MethodGet)
	router.HandleFunc("/stats/abaixo-media", h.BelowAverage).Methods(http.MethodGet)
}

// Highest handles GET /stats/maior requests.
func (h *StatsHandler) Highest(w http.ResponseWriter, r *http.Request) {
	item, err := h.engine.Highest(r.Context())
	h.writeItem(w, r, item, err, "highest priced")
}

// Lowest handles GET /stats/menor requests.
func (h *StatsHandler) Lowest(w http.ResponseWriter, r *http.Request) {
	item, err := h.engine.Lowest(r.Context())
	h.writeItem(w, r, item, err, "lowest priced")
}

// Average handles GET /stats/media requests.
func (h *StatsHandler) Average(w http.ResponseWriter, r *http.Request) {
	avg, err := h.engine.Average(r.Context())
	if err != nil {
		h.writeFailure(w, r, err, "average price")
		return
	}

	writeJSON(h.logger, w, http.StatusOK, model.AverageResponse{Media: avg})
}

// AboveAverage handles GET /stats/acima-media requests.
func (h *StatsHandler) AboveAverage(w http.ResponseWriter, r *http.Request) {
	items, err := h.engine.AboveAverage(r.Context())
	h.writeItems(w, r, items, err, "above average")
}

// BelowAverage handles GET /stats/abaixo-media requests.
func (h *StatsHandler) BelowAverage(w http.ResponseWriter, r *http.Request) {
	items, err := h.engine.BelowAverage(r.Context())
	h.writeItems(w, r, items, err, "below average")
}

func (h *StatsHandler) writeItem(w http.ResponseWriter, r *http.Request, item *model.Item, err error, operation string) {
	if err != nil {
		h.writeFailure(w, r, err, operation)
		return
	}

	if item == nil {
		writeJSON(h.logger, w, http.StatusOK, emptyObject)
		return
	}

	writeJSON(h.logger, w, http.StatusOK, item)
}

func (h *StatsHandler) writeItems(w http.ResponseWriter, r *http.Request, items []model.Item, err error, operation string) {
	if err != nil {
		h.writeFailure(w, r, err, operation)
		return
	}

	writeJSON(h.logger, w, http.StatusOK, items)
}

func (h *StatsHandler) writeFailure(w http.ResponseWriter, r *http.Request, err error, operation string) {
	h.logger.Error("stats computation failed",
		zap.String("operation", operation),
		zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
		zap.Error(err),
	)
	writeError(h.logger, w, http.StatusInternalServerError, "internal server error")
}
