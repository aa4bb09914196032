package booking

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"atelier/utils"

	"github.com/skip2/go-qrcode"
)

var (
	ErrInvalidSlot     = errors.New("invalid slot")
	ErrInvalidBooking  = errors.New("invalid booking")
	ErrSlotFull        = errors.New("slot is full")
	ErrOnePerDay       = errors.New("already booked on that day")
	ErrBusy            = errors.New("slot is being booked, try again")
	ErrInvalidStatus   = errors.New("invalid booking status")
	ErrAlreadyFinished = errors.New("booking can no longer change")
)

// generated ranges are capped so a typo cannot create years of slots
const maxGenerateDays = 92

var clock = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

type Locker interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string)
}

// Notifier tells open availability views that a day changed.
type Notifier interface {
	Publish(date string)
}

type Service struct {
	repo     Repository
	locks    Locker
	notify   Notifier
	qrSecret []byte
}

func NewService(repo Repository, locks Locker, notify Notifier, qrSecret []byte) *Service {
	return &Service{repo: repo, locks: locks, notify: notify, qrSecret: qrSecret}
}

func validSlot(s Slot) error {
	if _, err := time.Parse(dateLayout, s.Date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidSlot)
	}
	if !clock.MatchString(s.Start) || (s.End != "" && !clock.MatchString(s.End)) {
		return fmt.Errorf("%w: times must be HH:MM", ErrInvalidSlot)
	}
	if s.End != "" && s.End <= s.Start {
		return fmt.Errorf("%w: end must be after start", ErrInvalidSlot)
	}
	if s.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive", ErrInvalidSlot)
	}
	return nil
}

func (s *Service) CreateSlot(ctx context.Context, in Slot) (*Slot, error) {
	if err := validSlot(in); err != nil {
		return nil, err
	}
	in.ID = utils.GetUUID()
	in.CreatedAt = time.Now()
	if err := s.repo.InsertSlots(ctx, []Slot{in}); err != nil {
		return nil, err
	}
	return &in, nil
}

// GenerateRequest describes a run of identical daily slots. Weekdays uses
// 0=Sunday..6=Saturday; empty means every day.
type GenerateRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Weekdays  []int  `json:"weekdays,omitempty"`
	Start     string `json:"start"`
	End       string `json:"end,omitempty"`
	Capacity  int    `json:"capacity"`
	Label     string `json:"label,omitempty"`
}

func (s *Service) GenerateSlots(ctx context.Context, req GenerateRequest) ([]Slot, error) {
	from, err1 := time.Parse(dateLayout, req.StartDate)
	to, err2 := time.Parse(dateLayout, req.EndDate)
	if err1 != nil || err2 != nil || from.After(to) {
		return nil, fmt.Errorf("%w: invalid date range", ErrInvalidSlot)
	}
	if to.Sub(from) > maxGenerateDays*24*time.Hour {
		return nil, fmt.Errorf("%w: range longer than %d days", ErrInvalidSlot, maxGenerateDays)
	}

	now := time.Now()
	slots := []Slot{}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if len(req.Weekdays) > 0 && !slices.Contains(req.Weekdays, int(d.Weekday())) {
			continue
		}
		slot := Slot{
			ID:        utils.GetUUID(),
			Date:      d.Format(dateLayout),
			Start:     req.Start,
			End:       req.End,
			Capacity:  req.Capacity,
			Label:     req.Label,
			CreatedAt: now,
		}
		if err := validSlot(slot); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	if err := s.repo.InsertSlots(ctx, slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func (s *Service) DeleteSlot(ctx context.Context, id string) error {
	slot, err := s.repo.GetSlot(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteSlot(ctx, id); err != nil {
		return err
	}
	s.notify.Publish(slot.Date)
	return nil
}

// SlotView is a slot with its remaining seats.
type SlotView struct {
	Slot
	Booked    int `json:"booked"`
	Available int `json:"available"`
}

func (s *Service) ListSlots(ctx context.Context, date string) ([]SlotView, error) {
	if date != "" {
		if _, err := time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidSlot)
		}
	}
	slots, err := s.repo.ListSlots(ctx, date)
	if err != nil {
		return nil, err
	}
	views := make([]SlotView, 0, len(slots))
	for _, slot := range slots {
		n, err := s.repo.CountActiveForSlot(ctx, slot.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, SlotView{Slot: slot, Booked: n, Available: max(slot.Capacity-n, 0)})
	}
	return views, nil
}

// Book reserves a seat in a slot. Capacity counts every booking that is not
// cancelled, and a user holds at most one such booking per day.
func (s *Service) Book(ctx context.Context, userID, slotID, notes string) (*Booking, error) {
	if slotID == "" {
		return nil, fmt.Errorf("%w: slotId is required", ErrInvalidBooking)
	}
	slot, err := s.repo.GetSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}

	for _, key := range []string{"slot:" + slot.ID, "booking:" + userID + ":" + slot.Date} {
		ok, err := s.locks.Acquire(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrBusy
		}
		defer s.locks.Release(context.WithoutCancel(ctx), key)
	}

	taken, err := s.repo.HasActiveOn(ctx, userID, slot.Date)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrOnePerDay
	}
	n, err := s.repo.CountActiveForSlot(ctx, slot.ID)
	if err != nil {
		return nil, err
	}
	if n >= slot.Capacity {
		return nil, ErrSlotFull
	}

	now := time.Now()
	b := &Booking{
		ID:        utils.GetUUID(),
		SlotID:    slot.ID,
		UserID:    userID,
		Date:      slot.Date,
		Start:     slot.Start,
		End:       slot.End,
		Notes:     strings.TrimSpace(notes),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertBooking(ctx, b); err != nil {
		return nil, err
	}
	s.notify.Publish(slot.Date)
	return b, nil
}

func (s *Service) ListMine(ctx context.Context, userID string) ([]Booking, error) {
	return s.repo.ListBookings(ctx, BookingFilter{UserID: userID})
}

func (s *Service) List(ctx context.Context, f BookingFilter) ([]Booking, error) {
	if f.Status != "" && !validStatus(f.Status) {
		return nil, ErrInvalidStatus
	}
	return s.repo.ListBookings(ctx, f)
}

func (s *Service) GetMine(ctx context.Context, userID, id string) (*Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrNotFound
	}
	return b, nil
}

// CancelMine is idempotent for bookings that are already cancelled.
func (s *Service) CancelMine(ctx context.Context, userID, id string) (*Booking, error) {
	b, err := s.GetMine(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	switch b.Status {
	case StatusCancelled:
		return b, nil
	case StatusCompleted:
		return nil, ErrAlreadyFinished
	}
	return s.setStatus(ctx, b, StatusCancelled)
}

func (s *Service) SetStatus(ctx context.Context, id, status string) (*Booking, error) {
	if !validStatus(status) {
		return nil, ErrInvalidStatus
	}
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == status {
		return b, nil
	}
	if b.Status == StatusCancelled || b.Status == StatusCompleted {
		return nil, ErrAlreadyFinished
	}
	return s.setStatus(ctx, b, status)
}

func (s *Service) setStatus(ctx context.Context, b *Booking, status string) (*Booking, error) {
	updated, err := s.repo.SetStatus(ctx, b.ID, status)
	if err != nil {
		return nil, err
	}
	if status == StatusCancelled {
		s.notify.Publish(b.Date)
	}
	return updated, nil
}

func validStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// QRPayload is what the front desk scans when the customer arrives.
func QRPayload(b *Booking, secret []byte) string {
	data := fmt.Sprintf("BKG|%s|%s|%s|%s", b.ID, b.UserID, b.Date, b.Start)
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(data))
	return data + "|" + base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (s *Service) QRCode(ctx context.Context, userID, id string) ([]byte, error) {
	b, err := s.GetMine(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if b.Status == StatusCancelled {
		return nil, ErrAlreadyFinished
	}
	return qrcode.Encode(QRPayload(b, s.qrSecret), qrcode.Medium, 256)
}
