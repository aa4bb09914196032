package orders

import (
	"errors"
	"io"
	"log"
	"net/http"

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
	case errors.Is(err, ErrInvalidOrder):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrPaymentNotVerified):
		utils.RespondWithError(w, http.StatusPaymentRequired, ErrPaymentNotVerified.Error())
	case errors.Is(err, ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrStatusChanged):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrBadSignature):
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
	default:
		log.Printf("orders error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var p models.OrderPayload
	if err := utils.DecodeJSON(r, &p); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	o, err := h.svc.Submit(r.Context(), utils.GetUserIDFromRequest(r), p)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, o)
}

func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	skip, limit := utils.ParsePagination(r, 20, 100)
	list, err := h.svc.ListMine(r.Context(), utils.GetUserIDFromRequest(r), skip, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

func (h *Handler) GetMyOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	o, err := h.svc.GetMine(r.Context(), utils.GetUserIDFromRequest(r), ps.ByName("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, o)
}

func (h *Handler) CancelMyOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	o, err := h.svc.CancelMine(r.Context(), utils.GetUserIDFromRequest(r), ps.ByName("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, o)
}

func (h *Handler) DownloadInvoice(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	o, err := h.svc.GetMine(r.Context(), utils.GetUserIDFromRequest(r), ps.ByName("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	pdf, err := Invoice(o, h.svc.qrSecret)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=invoice-"+o.OrderID+".pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	skip, limit := utils.ParsePagination(r, 50, 200)
	list, err := h.svc.List(r.Context(), r.URL.Query().Get("status"), skip, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

func (h *Handler) AdminGetOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	o, err := h.svc.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, o)
}

func (h *Handler) AdminUpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		Status string `json:"status"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil || body.Status == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "status is required")
		return
	}
	o, err := h.svc.UpdateStatus(r.Context(), ps.ByName("id"), body.Status, utils.GetUserIDFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, o)
}

// PaymentWebhook is called by the gateway, not by users, so it sits outside
// the auth middleware and authenticates by body signature instead.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if err := h.svc.HandleWebhook(r.Context(), body, r.Header.Get("X-Razorpay-Signature")); err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
