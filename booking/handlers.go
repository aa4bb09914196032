package booking

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
	case errors.Is(err, ErrInvalidSlot), errors.Is(err, ErrInvalidBooking), errors.Is(err, ErrInvalidStatus):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "booking or slot not found")
	case errors.Is(err, ErrSlotFull), errors.Is(err, ErrOnePerDay), errors.Is(err, ErrBusy), errors.Is(err, ErrAlreadyFinished):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("booking: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

// GET /api/slots?date=YYYY-MM-DD
func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	slots, err := h.svc.ListSlots(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

func (h *Handler) CreateSlot(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var s Slot
	if err := utils.DecodeJSON(r, &s); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	slot, err := h.svc.CreateSlot(r.Context(), s)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, map[string]any{"slot": slot})
}

func (h *Handler) GenerateSlots(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req GenerateRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	slots, err := h.svc.GenerateSlots(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, map[string]any{"ok": true, "slots": slots})
}

func (h *Handler) DeleteSlot(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.svc.DeleteSlot(r.Context(), ps.ByName("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		SlotID string `json:"slotId"`
		Notes  string `json:"notes"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	b, err := h.svc.Book(r.Context(), utils.GetUserIDFromRequest(r), body.SlotID, body.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, map[string]any{"ok": true, "booking": b})
}

func (h *Handler) ListMyBookings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := h.svc.ListMine(r.Context(), utils.GetUserIDFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"bookings": list})
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	b, err := h.svc.CancelMine(r.Context(), utils.GetUserIDFromRequest(r), ps.ByName("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"ok": true, "booking": b})
}

// GET /api/bookings/:id/qr
func (h *Handler) BookingQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	png, err := h.svc.QRCode(r.Context(), utils.GetUserIDFromRequest(r), ps.ByName("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *Handler) AdminListBookings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	list, err := h.svc.List(r.Context(), BookingFilter{Date: q.Get("date"), Status: q.Get("status")})
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"bookings": list})
}

func (h *Handler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		Status string `json:"status"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	b, err := h.svc.SetStatus(r.Context(), ps.ByName("id"), body.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"ok": true, "booking": b})
}
