package reviews

import (
	"errors"
	"log"
	"net/http"

	"atelier/products"
	"atelier/utils"

	"github.com/julienschmidt/httprouter"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type reviewBody struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidReview):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, products.ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyReviewed):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrForbidden):
		utils.RespondWithError(w, http.StatusForbidden, "Forbidden")
	default:
		log.Printf("reviews: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

// GET /api/products/:id/reviews
func (h *Handler) GetReviews(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	skip, limit := utils.ParsePagination(r, 10, 100)
	list, err := h.svc.List(r.Context(), ps.ByName("id"), skip, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"ok": true, "reviews": list})
}

// POST /api/products/:id/reviews
func (h *Handler) AddReview(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body reviewBody
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid review data")
		return
	}
	review, err := h.svc.Add(r.Context(),
		utils.GetUserIDFromRequest(r), utils.GetUsernameFromRequest(r),
		ps.ByName("id"), body.Rating, body.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, review)
}

// PUT /api/reviews/:reviewId
func (h *Handler) EditReview(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body reviewBody
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid update data")
		return
	}
	review, err := h.svc.Edit(r.Context(), utils.GetUserIDFromRequest(r), ps.ByName("reviewId"), body.Rating, body.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, review)
}

// DELETE /api/reviews/:reviewId
func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	err := h.svc.Delete(r.Context(), utils.GetUserIDFromRequest(r), ps.ByName("reviewId"), utils.HasRole(r, "admin"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
