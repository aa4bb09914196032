package products

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"atelier/models"
	"atelier/utils"

	"github.com/julienschmidt/httprouter"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, ErrInvalidProduct):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInsufficientStock):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("products error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// GetProducts lists the catalog: ?category=, ?search=, ?page=, ?limit=.
func (h *Handler) GetProducts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	skip, limit := utils.ParsePagination(r, 24, 100)
	q := ListQuery{
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
		Search:   strings.TrimSpace(r.URL.Query().Get("search")),
		Skip:     skip,
		Limit:    limit,
	}
	list, err := h.svc.List(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, err := h.svc.Get(r.Context(), ps.ByName("id"))
	if err != nil || !p.Active {
		writeError(w, ErrNotFound)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, p)
}

func (h *Handler) AdminListProducts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	skip, limit := utils.ParsePagination(r, 50, 200)
	list, err := h.svc.List(r.Context(), ListQuery{
		Category:        r.URL.Query().Get("category"),
		Search:          r.URL.Query().Get("search"),
		Skip:            skip,
		Limit:           limit,
		IncludeInactive: true,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var p models.Product
	if err := utils.DecodeJSON(r, &p); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	created, err := h.svc.Create(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var p models.Product
	if err := utils.DecodeJSON(r, &p); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	updated, err := h.svc.Update(r.Context(), ps.ByName("id"), p)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.svc.Delete(r.Context(), ps.ByName("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		Delta int `json:"delta"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil || body.Delta == 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "delta is required")
		return
	}
	p, err := h.svc.AdjustStock(r.Context(), ps.ByName("id"), body.Delta)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, p)
}
