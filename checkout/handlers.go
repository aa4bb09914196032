package checkout

import (
	"errors"
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
	case errors.Is(err, ErrEmptySelection), errors.Is(err, ErrNoAddress), errors.Is(err, ErrUnsupportedMethod):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrMissingProductIdentifier):
		utils.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrPaymentFailed):
		utils.RespondWithError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, ErrInvalidStep), errors.Is(err, ErrCheckoutInProgress), errors.Is(err, ErrQuoteStale):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrOrderSubmission):
		utils.RespondWithError(w, http.StatusBadGateway, err.Error())
	default:
		log.Printf("checkout error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Checkout failed")
	}
}

func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	view, err := h.svc.View(r.Context(), utils.GetUserIDFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, view)
}

func (h *Handler) SetSelection(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		Keys []string `json:"keys"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	view, err := h.svc.Select(r.Context(), utils.GetUserIDFromRequest(r), body.Keys)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, view)
}

func (h *Handler) ChooseAddress(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		AddressID string `json:"addressId"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	sess, err := h.svc.ChooseAddress(r.Context(), utils.GetUserIDFromRequest(r), body.AddressID)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, sess)
}

func (h *Handler) Back(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sess, err := h.svc.Back(r.Context(), utils.GetUserIDFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, sess)
}

func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	intent, err := h.svc.CreatePaymentIntent(r.Context(), utils.GetUserIDFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, intent)
}

func (h *Handler) PaymentFailed(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = utils.DecodeJSON(r, &body)
	sess, err := h.svc.ReportPaymentFailure(r.Context(), utils.GetUserIDFromRequest(r), body.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, sess)
}

// placeBody accepts the references either nested or as the flat names the
// gateway widget hands back.
type placeBody struct {
	PaymentMethod     string             `json:"paymentMethod"`
	Gateway           *models.GatewayRef `json:"gateway"`
	RazorpayOrderID   string             `json:"razorpay_order_id"`
	RazorpayPaymentID string             `json:"razorpay_payment_id"`
	RazorpaySignature string             `json:"razorpay_signature"`
}

func (b placeBody) request() PlaceRequest {
	req := PlaceRequest{PaymentMethod: b.PaymentMethod, Gateway: b.Gateway}
	if req.Gateway == nil && b.RazorpayOrderID != "" {
		req.Gateway = &models.GatewayRef{
			OrderID:   b.RazorpayOrderID,
			PaymentID: b.RazorpayPaymentID,
			Signature: b.RazorpaySignature,
		}
	}
	return req
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body placeBody
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	order, err := h.svc.PlaceOrder(r.Context(), utils.GetUserIDFromRequest(r), body.request())
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, order)
}
