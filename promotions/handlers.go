package promotions

import (
	"errors"
	"log"
	"net/http"

	"atelier/utils"

	"github.com/julienschmidt/httprouter"
)

type Handler struct {
	coupons *Coupons
	banners *Banners
}

func NewHandler(coupons *Coupons, banners *Banners) *Handler {
	return &Handler{coupons: coupons, banners: banners}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidCoupon), errors.Is(err, ErrInvalidBanner):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "not found")
	case errors.Is(err, ErrDuplicateCode):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("promotions: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

// POST /api/coupons/validate
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req CouponRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid request")
		return
	}
	resp, err := h.coupons.Validate(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := h.coupons.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var c Coupon
	if err := utils.DecodeJSON(r, &c); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	created, err := h.coupons.Create(r.Context(), c)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var c Coupon
	if err := utils.DecodeJSON(r, &c); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	updated, err := h.coupons.Update(r.Context(), ps.ByName("code"), c)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.coupons.Delete(r.Context(), ps.ByName("code")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/banners
func (h *Handler) GetBanners(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := h.banners.Active(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

func (h *Handler) AdminListBanners(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := h.banners.All(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

func (h *Handler) CreateBanner(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var b Banner
	if err := utils.DecodeJSON(r, &b); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	created, err := h.banners.Create(r.Context(), b)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateBanner(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var b Banner
	if err := utils.DecodeJSON(r, &b); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	updated, err := h.banners.Update(r.Context(), ps.ByName("id"), b)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteBanner(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.banners.Delete(r.Context(), ps.ByName("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
