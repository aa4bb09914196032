package address

import (
	"errors"
	"log"
	"net/http"

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
	case errors.Is(err, ErrInvalidAddress):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Address not found")
	default:
		log.Printf("address error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handler) ListAddresses(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := h.svc.List(r.Context(), utils.GetUserIDFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

func (h *Handler) CreateAddress(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var raw map[string]any
	if err := utils.DecodeJSON(r, &raw); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	a, err := h.svc.Create(r.Context(), utils.GetUserIDFromRequest(r), raw)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, a)
}

func (h *Handler) DeleteAddress(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.svc.Delete(r.Context(), utils.GetUserIDFromRequest(r), ps.ByName("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetDefaultAddress(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	a, err := h.svc.SetDefault(r.Context(), utils.GetUserIDFromRequest(r), ps.ByName("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, a)
}
