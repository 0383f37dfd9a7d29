package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/itemstats/internal/middleware"
	"github.com/vyrodovalexey/itemstats/internal/model"
	"github.com/vyrodovalexey/itemstats/internal/store"
)

// DeletedMessage is the acknowledgment returned by a successful delete.
const DeletedMessage = "Deletado"

// RESTHandler handles REST API requests for items.
type RESTHandler struct {
	store  store.Store
	logger *zap.Logger
}

// NewRESTHandler creates a new RESTHandler instance.
func NewRESTHandler(s store.Store, logger *zap.Logger) *RESTHandler {
	return &RESTHandler{
		store:  s,
		logger: logger,
	}
}

// RegisterRoutes registers the REST API routes with the router.
func (h *RESTHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/api/items", h.ListItems).Methods(http.MethodGet)
	router.HandleFunc("/api/items", h.CreateItem).Methods(http.MethodPost)
	router.HandleFunc("/api/items/{id}", h.GetItem).Methods(http.MethodGet)
	router.HandleFunc("/api/items/{id}", h.DeleteItem).Methods(http.MethodDelete)
}

// HealthCheck handles GET /health requests.
func (h *RESTHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status:  "healthy",
		Version: Version,
	}
	writeJSON(h.logger, w, http.StatusOK, response)
}

// ListItems handles GET /api/items requests.
func (h *RESTHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.List(r.Context())
	if err != nil {
		h.handleStoreError(w, r, err, "list items")
		return
	}

	writeJSON(h.logger, w, http.StatusOK, items)
}

// GetItem handles GET /api/items/{id} requests.
func (h *RESTHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.handleStoreError(w, r, err, "get item")
		return
	}

	item, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.handleStoreError(w, r, err, "get item")
		return
	}

	writeJSON(h.logger, w, http.StatusOK, item)
}

// CreateItem handles POST /api/items requests.
func (h *RESTHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var input model.CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		writeError(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := input.ToItem()
	if err != nil {
		h.logger.Warn("validation failed", zap.Error(err))
		writeError(h.logger, w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.store.Create(r.Context(), item)
	if err != nil {
		h.handleStoreError(w, r, err, "create item")
		return
	}

	h.logger.Debug("item created", zap.Int64("id", created.ID))
	writeJSON(h.logger, w, http.StatusCreated, created)
}

// DeleteItem handles DELETE /api/items/{id} requests.
func (h *RESTHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.handleStoreError(w, r, err, "delete item")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.handleStoreError(w, r, err, "delete item")
		return
	}

	h.logger.Debug("item deleted", zap.Int64("id", id))
	writeJSON(h.logger, w, http.StatusOK, model.MessageResponse{Msg: DeletedMessage})
}

// handleStoreError handles store errors and writes appropriate HTTP responses.
func (h *RESTHandler) handleStoreError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(h.logger, w, http.StatusNotFound, "item not found")
	case errors.Is(err, store.ErrInvalidID):
		writeError(h.logger, w, http.StatusBadRequest, "invalid item ID")
	default:
		h.logger.Error("store operation failed",
			zap.String("operation", operation),
			zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		writeError(h.logger, w, http.StatusInternalServerError, "internal server error")
	}
}

// parseID reads the {id} path variable.
func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, store.ErrInvalidID
	}
	return id, nil
}
