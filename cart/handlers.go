package cart

import (
	"errors"
	"log"
	"net/http"

	"atelier/models"
	"atelier/utils"

	"github.com/julienschmidt/httprouter"
)

type Handler struct {
	carts     *Service
	wishlists *Wishlists
}

func NewHandler(carts *Service, wishlists *Wishlists) *Handler {
	return &Handler{carts: carts, wishlists: wishlists}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMissingProductID), errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidVariant):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnknownProduct), errors.Is(err, ErrItemNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrOutOfStock):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("cart error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Cart operation failed")
	}
}

// lineKey builds the line key from the :productId route param and the
// optional ?size= and ?color= query values.
func lineKey(r *http.Request, ps httprouter.Params) string {
	q := r.URL.Query()
	return models.ItemKey(ps.ByName("productId"), q.Get("size"), q.Get("color"))
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	c, err := h.carts.Get(r.Context(), utils.GetUserIDFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, c)
}

func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var raw map[string]any
	if err := utils.DecodeJSON(r, &raw); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	c, err := h.carts.Add(r.Context(), utils.GetUserIDFromRequest(r), raw)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, c)
}

func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		Quantity *int `json:"quantity"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil || body.Quantity == nil {
		utils.RespondWithError(w, http.StatusBadRequest, "quantity is required")
		return
	}
	c, err := h.carts.SetQuantity(r.Context(), utils.GetUserIDFromRequest(r), lineKey(r, ps), *body.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, c)
}

func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	c, err := h.carts.Remove(r.Context(), utils.GetUserIDFromRequest(r), lineKey(r, ps))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, c)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := h.carts.Clear(r.Context(), utils.GetUserIDFromRequest(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) MergeCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		Items []map[string]any `json:"items"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	c, skipped, err := h.carts.Merge(r.Context(), utils.GetUserIDFromRequest(r), body.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"cart": c, "skipped": skipped})
}

func (h *Handler) GetWishlist(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	products, err := h.wishlists.List(r.Context(), utils.GetUserIDFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, products)
}

func (h *Handler) AddToWishlist(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.wishlists.Add(r.Context(), utils.GetUserIDFromRequest(r), ps.ByName("productId")); err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

func (h *Handler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.wishlists.Remove(r.Context(), utils.GetUserIDFromRequest(r), ps.ByName("productId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) MoveToCart(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	q := r.URL.Query()
	c, err := h.wishlists.MoveToCart(r.Context(), utils.GetUserIDFromRequest(r), ps.ByName("productId"), q.Get("size"), q.Get("color"))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, c)
}
