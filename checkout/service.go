package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"atelier/globals"
	"atelier/models"
	"atelier/orders"
	"atelier/payment"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptySelection     = errors.New("no items selected")
	ErrNoAddress          = errors.New("no shipping address selected")
	ErrUnsupportedMethod  = errors.New("unsupported payment method")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrPaymentFailed      = errors.New("payment failed")
	ErrQuoteStale         = errors.New("cart changed since payment was started")
	ErrOrderSubmission    = errors.New("order submission failed")
)

func SupportedMethod(method string) bool {
	return method == globals.PaymentMethodCOD || payment.IsGatewayMethod(method)
}

type CartStore interface {
	CartRemover
	Get(ctx context.Context, userID string) (*models.Cart, error)
}

type Catalog interface {
	Lookup(ctx context.Context, ids []string) (map[string]models.Product, error)
}

type AddressBook interface {
	Get(ctx context.Context, userID, id string) (*models.Address, error)
	Default(ctx context.Context, userID string) (*models.Address, error)
}

type OrderCreator interface {
	Create(ctx context.Context, userID string, p models.OrderPayload) (*models.Order, error)
}

type Gateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, req payment.OrderRequest) (*payment.GatewayOrder, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
}

type Locker interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string)
}

type Service struct {
	Carts      CartStore
	Catalog    Catalog
	Addresses  AddressBook
	Orders     OrderCreator
	Gateway    Gateway
	Selections *SelectionStore
	Sessions   *SessionStore
	Locks      Locker
	Shipping   decimal.Decimal
	Currency   string
}

// View is what the checkout page renders.
type View struct {
	Step      string            `json:"step"`
	AddressID string            `json:"addressId,omitempty"`
	Items     []models.CartItem `json:"items"`
	Selected  []string          `json:"selected"`
	Summary   Summary           `json:"summary"`
}

type state struct {
	cart    *models.Cart
	sel     Selection
	summary Summary
}

func (s *Service) load(ctx context.Context, userID string) (*state, error) {
	cart, err := s.Carts.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	sel, err := s.Selections.Load(ctx, userID, cart.Items)
	if err != nil {
		return nil, err
	}
	catalog, err := s.Catalog.Lookup(ctx, productIDs(cart.Items))
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return &state{
		cart:    cart,
		sel:     sel,
		summary: Reconcile(cart.Items, sel, catalog, s.Shipping),
	}, nil
}

func productIDs(items []models.CartItem) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.ProductID != "" {
			ids = append(ids, it.ProductID)
		}
	}
	return ids
}

func (s *Service) View(ctx context.Context, userID string) (*View, error) {
	st, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	sess, err := s.Sessions.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &View{
		Step:      sess.Step,
		AddressID: sess.AddressID,
		Items:     st.cart.Items,
		Selected:  st.sel.Keys(st.cart.Items),
		Summary:   st.summary,
	}, nil
}

// Select replaces the selection and returns the repriced view.
func (s *Service) Select(ctx context.Context, userID string, keys []string) (*View, error) {
	cart, err := s.Carts.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if _, err := s.Selections.Save(ctx, userID, cart.Items, keys); err != nil {
		return nil, err
	}
	return s.View(ctx, userID)
}

// ChooseAddress completes the address step. An empty id picks the default
// address.
func (s *Service) ChooseAddress(ctx context.Context, userID, addressID string) (*Session, error) {
	var addr *models.Address
	var err error
	if addressID == "" {
		addr, err = s.Addresses.Default(ctx, userID)
	} else {
		addr, err = s.Addresses.Get(ctx, userID, addressID)
	}
	if err != nil || addr == nil {
		return nil, ErrNoAddress
	}

	st, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(st.sel.Pick(st.cart.Items)) == 0 {
		return nil, ErrEmptySelection
	}

	sess, err := s.Sessions.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := sess.ChooseAddress(addr.ID); err != nil {
		return nil, err
	}
	if err := s.Sessions.Save(ctx, userID, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) Back(ctx context.Context, userID string) (*Session, error) {
	sess, err := s.Sessions.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := sess.Back(); err != nil {
		return nil, err
	}
	if err := s.Sessions.Save(ctx, userID, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

type Prefill struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

// PaymentIntent is everything the browser widget needs to open.
type PaymentIntent struct {
	KeyID          string  `json:"keyId"`
	GatewayOrderID string  `json:"gatewayOrderId"`
	Amount         int64   `json:"amount"`
	Currency       string  `json:"currency"`
	Description    string  `json:"description"`
	Prefill        Prefill `json:"prefill"`
}

// CreatePaymentIntent opens a gateway order for the reconciled total. A
// gateway failure leaves the wizard on the payment step.
func (s *Service) CreatePaymentIntent(ctx context.Context, userID string) (*PaymentIntent, error) {
	sess, err := s.Sessions.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess.Step != StepPayment {
		return nil, ErrInvalidStep
	}
	addr, err := s.Addresses.Get(ctx, userID, sess.AddressID)
	if err != nil || addr == nil {
		return nil, ErrNoAddress
	}
	st, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	selected := st.sel.Pick(st.cart.Items)
	if len(selected) == 0 {
		return nil, ErrEmptySelection
	}

	amount := payment.ToMinorUnits(st.summary.Total)
	gwOrder, err := s.Gateway.CreateOrder(ctx, payment.OrderRequest{
		Amount:   amount,
		Currency: s.Currency,
		Receipt:  receipt(userID),
		Notes:    map[string]string{"userId": userID},
	})
	if err != nil {
		log.Printf("CreatePaymentIntent: gateway order for %s failed: %v", userID, err)
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	if err := sess.Quote(gwOrder.ID, amount, Fingerprint(selected)); err != nil {
		return nil, err
	}
	if err := s.Sessions.Save(ctx, userID, sess); err != nil {
		return nil, err
	}

	return &PaymentIntent{
		KeyID:          s.Gateway.KeyID(),
		GatewayOrderID: gwOrder.ID,
		Amount:         amount,
		Currency:       s.Currency,
		Description:    fmt.Sprintf("Order of %d item(s)", len(selected)),
		Prefill:        Prefill{Name: addr.FullName, Contact: addr.Phone},
	}, nil
}

func receipt(userID string) string {
	r := "rcpt_" + userID
	// gateway limit is 40 characters
	if len(r) > 40 {
		r = r[:40]
	}
	return r
}

// ReportPaymentFailure records a failed or dismissed widget. Nothing is
// created and the wizard stays on the payment step.
func (s *Service) ReportPaymentFailure(ctx context.Context, userID, reason string) (*Session, error) {
	sess, err := s.Sessions.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess.Step != StepPayment {
		return nil, ErrInvalidStep
	}
	log.Printf("Checkout: payment for %s not completed (gateway order %s): %s", userID, sess.GatewayOrderID, reason)
	return sess, nil
}

type PlaceRequest struct {
	PaymentMethod string             `json:"paymentMethod"`
	Gateway       *models.GatewayRef `json:"gateway,omitempty"`
}

// PlaceOrder submits the selected lines as an order and prunes them from the
// cart. Nothing is written before the payload is fully assembled, and the
// cart is left alone if the order cannot be stored.
func (s *Service) PlaceOrder(ctx context.Context, userID string, req PlaceRequest) (*models.Order, error) {
	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if !SupportedMethod(method) {
		return nil, ErrUnsupportedMethod
	}

	lockKey := "checkout:" + userID
	ok, err := s.Locks.Acquire(ctx, lockKey)
	if err != nil {
		return nil, fmt.Errorf("acquire checkout lock: %w", err)
	}
	if !ok {
		return nil, ErrCheckoutInProgress
	}
	defer s.Locks.Release(context.WithoutCancel(ctx), lockKey)

	sess, err := s.Sessions.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess.Step != StepPayment {
		return nil, ErrInvalidStep
	}
	addr, err := s.Addresses.Get(ctx, userID, sess.AddressID)
	if err != nil || addr == nil {
		return nil, ErrNoAddress
	}

	st, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	selected := st.sel.Pick(st.cart.Items)
	if len(selected) == 0 {
		return nil, ErrEmptySelection
	}

	var ref *models.GatewayRef
	if method != globals.PaymentMethodCOD {
		ref = req.Gateway
		if ref == nil || ref.OrderID == "" || ref.OrderID != sess.GatewayOrderID {
			return nil, fmt.Errorf("%w: unknown gateway order", ErrPaymentFailed)
		}
		if !s.Gateway.VerifyPaymentSignature(ref.OrderID, ref.PaymentID, ref.Signature) {
			return nil, fmt.Errorf("%w: signature mismatch", ErrPaymentFailed)
		}
		if payment.ToMinorUnits(st.summary.Total) != sess.Amount || Fingerprint(selected) != sess.Lines {
			return nil, ErrQuoteStale
		}
	}

	payload, err := Assemble(selected, *addr, st.summary, method, ref)
	if err != nil {
		return nil, err
	}

	order, err := s.Orders.Create(ctx, userID, payload)
	if errors.Is(err, orders.ErrPaymentNotVerified) {
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderSubmission, err)
	}

	// from here on the order is the source of truth
	Prune(context.WithoutCancel(ctx), s.Carts, userID, st.cart.Items, selected)
	if err := s.Selections.Clear(ctx, userID); err != nil {
		log.Printf("PlaceOrder: clear selection for %s: %v", userID, err)
	}
	if err := sess.Complete(order.OrderID); err == nil {
		bg := context.WithoutCancel(ctx)
		if err := s.Sessions.Save(bg, userID, sess); err != nil {
			// the old session still holds the spent quote
			log.Printf("PlaceOrder: save session for %s: %v", userID, err)
			if err := s.Sessions.Drop(bg, userID); err != nil {
				log.Printf("PlaceOrder: drop session for %s: %v", userID, err)
			}
		}
	}
	return order, nil
}
