package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"atelier/globals"
	"atelier/models"
	"atelier/mq"
	"atelier/payment"
	"atelier/utils"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidOrder       = errors.New("invalid order")
	ErrPaymentNotVerified = errors.New("payment could not be verified")
	ErrInvalidTransition  = errors.New("order cannot move to that status")
	ErrBadSignature       = errors.New("invalid webhook signature")
)

type Gateway interface {
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhook(body []byte, signature string) bool
	FetchOrder(ctx context.Context, id string) (*payment.GatewayOrder, error)
}

type Catalog interface {
	Lookup(ctx context.Context, ids []string) (map[string]models.Product, error)
}

type Service struct {
	repo     Repository
	gateway  Gateway
	catalog  Catalog
	events   mq.Emitter
	shipping decimal.Decimal
	qrSecret []byte
}

func NewService(repo Repository, gateway Gateway, catalog Catalog, events mq.Emitter, shipping decimal.Decimal, qrSecret []byte) *Service {
	return &Service{repo: repo, gateway: gateway, catalog: catalog, events: events, shipping: shipping, qrSecret: qrSecret}
}

// tolerance for totals computed client-side in floating point
var cent = decimal.New(1, -2)

func validatePayload(p models.OrderPayload) error {
	if len(p.Items) == 0 {
		return fmt.Errorf("%w: no items", ErrInvalidOrder)
	}
	subtotal := decimal.Zero
	for _, it := range p.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return fmt.Errorf("%w: item %q has no product id", ErrInvalidOrder, it.Name)
		}
		if it.Quantity <= 0 || it.Price < 0 {
			return fmt.Errorf("%w: item %q has a bad quantity or price", ErrInvalidOrder, it.ProductID)
		}
		subtotal = subtotal.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	a := p.ShippingAddress
	if a.Name == "" || a.Phone == "" || a.AddressLine1 == "" || a.City == "" || a.Pincode == "" {
		return fmt.Errorf("%w: incomplete shipping address", ErrInvalidOrder)
	}

	if p.Subtotal != 0 && decimal.NewFromFloat(p.Subtotal).Sub(subtotal).Abs().GreaterThan(cent) {
		return fmt.Errorf("%w: subtotal does not match items", ErrInvalidOrder)
	}
	want := subtotal.Add(decimal.NewFromFloat(p.Tax)).Add(decimal.NewFromFloat(p.Shipping))
	if decimal.NewFromFloat(p.Total).Sub(want).Abs().GreaterThan(cent) {
		return fmt.Errorf("%w: total does not add up", ErrInvalidOrder)
	}
	return nil
}

// idAttempts bounds how often Create draws a fresh id after a collision.
const idAttempts = 3

func newOrderID() string {
	return "ORD" + time.Now().Format("060102") + utils.GenerateRandomDigitString(10)
}

// Submit places an order put together by the client. Item prices, tax and
// shipping are taken from the catalog, not from the payload, and a gateway
// payment counts only if the gateway order was opened for exactly that total.
func (s *Service) Submit(ctx context.Context, userID string, p models.OrderPayload) (*models.Order, error) {
	if err := s.reprice(ctx, &p); err != nil {
		return nil, err
	}

	method := strings.ToLower(strings.TrimSpace(p.PaymentMethod))
	if payment.IsGatewayMethod(method) {
		ref := p.Gateway
		if ref == nil || !s.gateway.VerifyPaymentSignature(ref.OrderID, ref.PaymentID, ref.Signature) {
			return nil, ErrPaymentNotVerified
		}
		gw, err := s.gateway.FetchOrder(ctx, ref.OrderID)
		if errors.Is(err, payment.ErrGatewayRejected) {
			return nil, fmt.Errorf("%w: %v", ErrPaymentNotVerified, err)
		}
		if err != nil {
			return nil, fmt.Errorf("fetch gateway order: %w", err)
		}
		if gw.Amount != payment.ToMinorUnits(decimal.NewFromFloat(p.Total)) {
			return nil, fmt.Errorf("%w: gateway order %s was opened for %d", ErrPaymentNotVerified, gw.ID, gw.Amount)
		}
		if owner := gw.Notes["userId"]; owner != "" && owner != userID {
			return nil, fmt.Errorf("%w: gateway order %s belongs to another user", ErrPaymentNotVerified, gw.ID)
		}
	}

	return s.Create(ctx, userID, p)
}

// reprice overwrites the money fields of p from the catalog. Every product
// must exist and be on sale.
func (s *Service) reprice(ctx context.Context, p *models.OrderPayload) error {
	if len(p.Items) == 0 {
		return fmt.Errorf("%w: no items", ErrInvalidOrder)
	}
	ids := make([]string, 0, len(p.Items))
	for _, it := range p.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.catalog.Lookup(ctx, ids)
	if err != nil {
		return fmt.Errorf("lookup products: %w", err)
	}

	subtotal := decimal.Zero
	tax := decimal.Zero
	for i := range p.Items {
		it := &p.Items[i]
		prod, ok := products[it.ProductID]
		if !ok || !prod.Active {
			return fmt.Errorf("%w: product %q is not available", ErrInvalidOrder, it.ProductID)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: item %q has a bad quantity or price", ErrInvalidOrder, it.ProductID)
		}
		qty := decimal.NewFromInt(int64(it.Quantity))
		it.Name = prod.Name
		it.Price = prod.Price
		subtotal = subtotal.Add(decimal.NewFromFloat(prod.Price).Mul(qty))
		tax = tax.Add(decimal.NewFromFloat(prod.Tax).Mul(qty))
	}

	p.Subtotal = subtotal.InexactFloat64()
	p.Tax = tax.InexactFloat64()
	p.Shipping = s.shipping.InexactFloat64()
	p.Total = subtotal.Add(tax).Add(s.shipping).InexactFloat64()
	return nil
}

// Create stores an order whose prices were worked out on the server. The
// payment status sent by the client is not trusted: cash on delivery is
// pending, and a gateway method is paid only when its signature verifies and
// its gateway order has not settled another order.
func (s *Service) Create(ctx context.Context, userID string, p models.OrderPayload) (*models.Order, error) {
	if err := validatePayload(p); err != nil {
		return nil, err
	}

	p.PaymentMethod = strings.ToLower(strings.TrimSpace(p.PaymentMethod))
	switch {
	case p.PaymentMethod == globals.PaymentMethodCOD:
		p.PaymentStatus = globals.PaymentStatusPending
		p.Gateway = nil
		p.SettledBy = ""
	case payment.IsGatewayMethod(p.PaymentMethod):
		ref := p.Gateway
		if ref == nil || !s.gateway.VerifyPaymentSignature(ref.OrderID, ref.PaymentID, ref.Signature) {
			return nil, ErrPaymentNotVerified
		}
		if _, err := s.repo.FindByGatewayOrder(ctx, ref.OrderID); err == nil {
			return nil, fmt.Errorf("%w: %v", ErrPaymentNotVerified, ErrGatewayOrderUsed)
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		p.PaymentStatus = globals.PaymentStatusPaid
		p.SettledBy = models.SettledByClientSignature
	default:
		return nil, fmt.Errorf("%w: unsupported payment method %q", ErrInvalidOrder, p.PaymentMethod)
	}
	if p.Subtotal == 0 {
		p.Subtotal = p.Total - p.Tax - p.Shipping
	}

	now := time.Now()
	o := &models.Order{
		UserID:       userID,
		OrderPayload: p,
		Status:       models.OrderPlaced,
		History:      []models.StatusChange{{Status: models.OrderPlaced, At: now, By: userID}},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	var err error
	for i := 0; i < idAttempts; i++ {
		o.OrderID = newOrderID()
		if err = s.repo.Insert(ctx, o); !errors.Is(err, ErrDuplicateID) {
			break
		}
		log.Printf("Create: order id %s taken, drawing another", o.OrderID)
	}
	if errors.Is(err, ErrGatewayOrderUsed) {
		// lost a race with another order carrying the same reference
		return nil, fmt.Errorf("%w: %v", ErrPaymentNotVerified, err)
	}
	if err != nil {
		return nil, err
	}

	s.events.Emit(ctx, mq.OrderEvents, models.Index{EntityType: "order", Method: models.OrderPlaced, EntityId: o.OrderID, UserID: userID})
	return o, nil
}

func (s *Service) GetByID(ctx context.Context, orderID string) (*models.Order, error) {
	return s.repo.Get(ctx, orderID)
}

// GetMine hides other users' orders behind ErrNotFound.
func (s *Service) GetMine(ctx context.Context, userID, orderID string) (*models.Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

func (s *Service) ListMine(ctx context.Context, userID string, skip, limit int64) ([]models.Order, error) {
	return s.repo.List(ctx, Filter{UserID: userID, Skip: skip, Limit: limit})
}

func (s *Service) List(ctx context.Context, status string, skip, limit int64) ([]models.Order, error) {
	if status != "" && !models.ValidOrderStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidOrder, status)
	}
	return s.repo.List(ctx, Filter{Status: status, Skip: skip, Limit: limit})
}

// CancelMine lets a customer cancel an order nobody has confirmed yet.
func (s *Service) CancelMine(ctx context.Context, userID, orderID string) (*models.Order, error) {
	o, err := s.GetMine(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != models.OrderPlaced {
		return nil, ErrInvalidTransition
	}
	return s.transition(ctx, o, models.OrderCancelled, userID)
}

// UpdateStatus is the staff path through placed, confirmed, shipped and
// delivered, with cancellation allowed until shipping.
func (s *Service) UpdateStatus(ctx context.Context, orderID, to, by string) (*models.Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, o, to, by)
}

func (s *Service) transition(ctx context.Context, o *models.Order, to, by string) (*models.Order, error) {
	if !models.CanTransition(o.Status, to) {
		return nil, ErrInvalidTransition
	}
	change := models.StatusChange{Status: to, At: time.Now(), By: by}
	if err := s.repo.Transition(ctx, o.OrderID, o.Status, change); err != nil {
		return nil, err
	}
	o.Status = to
	o.UpdatedAt = change.At
	o.History = append(o.History, change)

	if to == models.OrderCancelled {
		s.events.Emit(ctx, mq.OrderEvents, models.Index{EntityType: "order", Method: models.OrderCancelled, EntityId: o.OrderID, UserID: o.UserID})
	}
	return o, nil
}

// HandleWebhook settles payment state from a signed gateway callback. Events
// for gateway orders that never became orders are ignored.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !s.gateway.VerifyWebhook(body, signature) {
		return ErrBadSignature
	}
	ev, err := payment.ParseWebhook(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	entity := ev.Payload.Payment.Entity

	o, err := s.repo.FindByGatewayOrder(ctx, entity.OrderID)
	if errors.Is(err, ErrNotFound) {
		log.Printf("Webhook %s for unknown gateway order %s ignored", ev.Event, entity.OrderID)
		return nil
	}
	if err != nil {
		return err
	}

	switch ev.Event {
	case payment.EventPaymentCaptured:
		return s.repo.SetPayment(ctx, o.OrderID, globals.PaymentStatusPaid, models.SettledByWebhook, entity.ID)
	case payment.EventPaymentFailed:
		if o.PaymentStatus == globals.PaymentStatusPaid {
			// a later failed attempt does not undo a captured payment
			return nil
		}
		return s.repo.SetPayment(ctx, o.OrderID, globals.PaymentStatusFailed, models.SettledByWebhook, entity.ID)
	}
	return nil
}
