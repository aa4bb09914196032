package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"atelier/globals"
	"atelier/models"
	"atelier/payment"

	"github.com/julienschmidt/httprouter"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo enforces the same unique keys as the Mongo indexes: orderId and
// gateway.orderId.
type memRepo struct {
	mu         sync.Mutex
	orders     map[string]*models.Order
	collisions int // inserts still to be refused as a taken id
	inserts    int
}

func newMemRepo() *memRepo {
	return &memRepo{orders: map[string]*models.Order{}}
}

func (m *memRepo) Insert(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.collisions > 0 {
		m.collisions--
		return ErrDuplicateID
	}
	if _, ok := m.orders[o.OrderID]; ok {
		return ErrDuplicateID
	}
	if o.Gateway != nil {
		for _, x := range m.orders {
			if x.Gateway != nil && x.Gateway.OrderID == o.Gateway.OrderID {
				return ErrGatewayOrderUsed
			}
		}
	}
	cp := *o
	m.orders[o.OrderID] = &cp
	return nil
}

func (m *memRepo) Get(_ context.Context, id string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, f Filter) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Order{}
	for _, o := range m.orders {
		if (f.UserID == "" || o.UserID == f.UserID) && (f.Status == "" || o.Status == f.Status) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memRepo) Transition(_ context.Context, id, from string, change models.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return ErrStatusChanged
	}
	o.Status = change.Status
	o.History = append(o.History, change)
	return nil
}

func (m *memRepo) FindByGatewayOrder(_ context.Context, gw string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.Gateway != nil && o.Gateway.OrderID == gw {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRepo) SetPayment(_ context.Context, id, status, settledBy, paymentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[id]
	o.PaymentStatus = status
	o.SettledBy = settledBy
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []models.Index
}

func (r *recorder) Emit(_ context.Context, _ string, ev models.Index) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

type fakeCatalog map[string]models.Product

func (f fakeCatalog) Lookup(_ context.Context, ids []string) (map[string]models.Product, error) {
	out := map[string]models.Product{}
	for _, id := range ids {
		if p, ok := f[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func testCatalog() fakeCatalog {
	return fakeCatalog{
		"p1": {ProductID: "p1", Name: "Kurta", Price: 500, Tax: 20, Stock: 5, Active: true},
		"p2": {ProductID: "p2", Name: "Dupatta", Price: 300, Tax: 10, Stock: 5, Active: true},
		"p3": {ProductID: "p3", Name: "Old stock", Price: 50, Stock: 5, Active: false},
	}
}

func newServiceAt(baseURL string) (*Service, *memRepo, *recorder) {
	repo := newMemRepo()
	events := &recorder{}
	gw := payment.NewClient(baseURL, "rzp_test", "secret", "whsec")
	return NewService(repo, gw, testCatalog(), events, decimal.NewFromInt(100), []byte("qr")), repo, events
}

func newService() (*Service, *memRepo, *recorder) {
	return newServiceAt("http://unused")
}

// gatewayServer answers GET /orders/{id} from orders and rejects any other id.
func gatewayServer(t *testing.T, orders map[string]payment.GatewayOrder) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		o, ok := orders[strings.TrimPrefix(r.URL.Path, "/orders/")]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The id provided does not exist"}}`))
			return
		}
		json.NewEncoder(w).Encode(o)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func payload(method string) models.OrderPayload {
	return models.OrderPayload{
		Items: []models.OrderItem{
			{ID: "p1|M|", ProductID: "p1", Name: "Kurta", Price: 500, Quantity: 2, Size: "M"},
			{ID: "p2||", ProductID: "p2", Name: "Dupatta", Price: 300, Quantity: 1},
		},
		ShippingAddress: models.ShippingAddress{Name: "Asha", Phone: "9876543210", AddressLine1: "12 MG Road", City: "Pune", State: "MH", Pincode: "411001"},
		PaymentMethod:   method,
		PaymentStatus:   "paid",
		Subtotal:        1300,
		Tax:             50,
		Shipping:        100,
		Total:           1450,
	}
}

func signedRef(gwOrder, pay string) *models.GatewayRef {
	return &models.GatewayRef{OrderID: gwOrder, PaymentID: pay, Signature: payment.Sign([]byte(gwOrder+"|"+pay), "secret")}
}

func TestCreate_CODIgnoresClientPaymentStatus(t *testing.T) {
	svc, _, events := newService()
	o, err := svc.Create(context.Background(), "u1", payload("COD"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(o.OrderID, "ORD"))
	assert.Equal(t, globals.PaymentStatusPending, o.PaymentStatus)
	assert.Equal(t, models.OrderPlaced, o.Status)
	require.Len(t, events.events, 1)
	assert.Equal(t, o.OrderID, events.events[0].EntityId)
}

func TestCreate_GatewayNeedsVerifiedSignature(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	p := payload("upi")
	_, err := svc.Create(ctx, "u1", p)
	assert.ErrorIs(t, err, ErrPaymentNotVerified)

	p.Gateway = &models.GatewayRef{OrderID: "order_1", PaymentID: "pay_1", Signature: "nope"}
	_, err = svc.Create(ctx, "u1", p)
	assert.ErrorIs(t, err, ErrPaymentNotVerified)

	p.Gateway = signedRef("order_1", "pay_1")
	o, err := svc.Create(ctx, "u1", p)
	require.NoError(t, err)
	assert.Equal(t, globals.PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, models.SettledByClientSignature, o.SettledBy)
}

func TestCreate_GatewayOrderSettlesOnce(t *testing.T) {
	svc, repo, _ := newService()
	ctx := context.Background()

	p := payload("upi")
	p.Gateway = signedRef("order_1", "pay_1")
	_, err := svc.Create(ctx, "u1", p)
	require.NoError(t, err)

	big := payload("card")
	big.Items[0].Quantity = 180
	big.Subtotal = 90300
	big.Total = 90450
	big.Gateway = signedRef("order_1", "pay_1")
	_, err = svc.Create(ctx, "u1", big)
	assert.ErrorIs(t, err, ErrPaymentNotVerified)
	assert.Len(t, repo.orders, 1)
}

// blindRepo never finds an order by gateway reference, as when two requests
// with the same reference race past the lookup.
type blindRepo struct{ *memRepo }

func (blindRepo) FindByGatewayOrder(context.Context, string) (*models.Order, error) {
	return nil, ErrNotFound
}

func TestCreate_GatewayOrderRaceLosesOnInsert(t *testing.T) {
	repo := newMemRepo()
	gw := payment.NewClient("http://unused", "rzp_test", "secret", "whsec")
	svc := NewService(blindRepo{repo}, gw, testCatalog(), &recorder{}, decimal.NewFromInt(100), []byte("qr"))
	ctx := context.Background()

	p := payload("upi")
	p.Gateway = signedRef("order_1", "pay_1")
	_, err := svc.Create(ctx, "u1", p)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "u2", p)
	assert.ErrorIs(t, err, ErrPaymentNotVerified)
	assert.Len(t, repo.orders, 1)
}

func TestCreate_RetriesTakenOrderID(t *testing.T) {
	svc, repo, _ := newService()
	ctx := context.Background()

	repo.collisions = 2
	o, err := svc.Create(ctx, "u1", payload("cod"))
	require.NoError(t, err)
	assert.Equal(t, 3, repo.inserts)
	assert.Len(t, o.OrderID, len("ORD")+6+10)

	repo.collisions = idAttempts
	_, err = svc.Create(ctx, "u1", payload("cod"))
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Len(t, repo.orders, 1)
}

func TestSubmit_PricesComeFromCatalog(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	p := payload("cod")
	p.Items = []models.OrderItem{{ProductID: "p1", Name: "Kurta", Price: 0.01, Quantity: 5}}
	p.Subtotal, p.Tax, p.Shipping, p.Total = 0.05, 0, 0, 0.05

	o, err := svc.Submit(ctx, "u1", p)
	require.NoError(t, err)
	assert.Equal(t, 500.0, o.Items[0].Price)
	assert.Equal(t, 2500.0, o.Subtotal)
	assert.Equal(t, 100.0, o.Tax)
	assert.Equal(t, 100.0, o.Shipping)
	assert.Equal(t, 2700.0, o.Total)

	for _, id := range []string{"p3", "ghost"} {
		p := payload("cod")
		p.Items[1].ProductID = id
		_, err := svc.Submit(ctx, "u1", p)
		assert.ErrorIs(t, err, ErrInvalidOrder, id)
	}
}

func TestSubmit_GatewayOrderMustCoverTotal(t *testing.T) {
	url := gatewayServer(t, map[string]payment.GatewayOrder{
		"order_small": {ID: "order_small", Amount: 100, Notes: map[string]string{"userId": "u1"}},
		"order_other": {ID: "order_other", Amount: 145000, Notes: map[string]string{"userId": "u2"}},
		"order_ok":    {ID: "order_ok", Amount: 145000, Notes: map[string]string{"userId": "u1"}},
	})
	svc, repo, _ := newServiceAt(url)
	ctx := context.Background()

	for _, gw := range []string{"order_small", "order_other", "order_missing"} {
		p := payload("upi")
		p.Gateway = signedRef(gw, "pay_1")
		_, err := svc.Submit(ctx, "u1", p)
		assert.ErrorIs(t, err, ErrPaymentNotVerified, gw)
	}
	assert.Empty(t, repo.orders)

	p := payload("upi")
	p.Gateway = signedRef("order_ok", "pay_1")
	o, err := svc.Submit(ctx, "u1", p)
	require.NoError(t, err)
	assert.Equal(t, globals.PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, 1450.0, o.Total)

	_, err = svc.Submit(ctx, "u1", p)
	assert.ErrorIs(t, err, ErrPaymentNotVerified)
	assert.Len(t, repo.orders, 1)
}

func TestCreateOrderHandlerReprices(t *testing.T) {
	svc, _, _ := newService()
	h := NewHandler(svc)

	body := `{"items":[{"productId":"p2","name":"Dupatta","price":0.01,"quantity":2}],` +
		`"shippingAddress":{"name":"Asha","phone":"9876543210","addressLine1":"12 MG Road","city":"Pune","pincode":"411001"},` +
		`"paymentMethod":"cod","paymentStatus":"paid","subtotal":0.02,"total":0.02}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	req = req.WithContext(context.WithValue(req.Context(), globals.UserIDKey, "u1"))
	rec := httptest.NewRecorder()
	h.CreateOrder(rec, req, nil)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var o models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	assert.Equal(t, 720.0, o.Total)
	assert.Equal(t, globals.PaymentStatusPending, o.PaymentStatus)
}

func TestCreate_Validation(t *testing.T) {
	svc, repo, _ := newService()
	ctx := context.Background()

	tests := map[string]func(p *models.OrderPayload){
		"no items":        func(p *models.OrderPayload) { p.Items = nil },
		"missing product": func(p *models.OrderPayload) { p.Items[0].ProductID = "" },
		"zero quantity":   func(p *models.OrderPayload) { p.Items[1].Quantity = 0 },
		"bad total":       func(p *models.OrderPayload) { p.Total = 1400 },
		"bad subtotal":    func(p *models.OrderPayload) { p.Subtotal = 1000 },
		"no address":      func(p *models.OrderPayload) { p.ShippingAddress = models.ShippingAddress{} },
		"unknown method":  func(p *models.OrderPayload) { p.PaymentMethod = "barter" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			p := payload("cod")
			mutate(&p)
			_, err := svc.Create(ctx, "u1", p)
			assert.ErrorIs(t, err, ErrInvalidOrder)
		})
	}
	assert.Empty(t, repo.orders)
}

func TestStatusTransitions(t *testing.T) {
	svc, _, events := newService()
	ctx := context.Background()
	o, err := svc.Create(ctx, "u1", payload("cod"))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, o.OrderID, models.OrderShipped, "staff")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	for _, s := range []string{models.OrderConfirmed, models.OrderShipped, models.OrderDelivered} {
		o, err = svc.UpdateStatus(ctx, o.OrderID, s, "staff")
		require.NoError(t, err)
		assert.Equal(t, s, o.Status)
	}
	assert.Len(t, o.History, 4)

	_, err = svc.UpdateStatus(ctx, o.OrderID, models.OrderCancelled, "staff")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Len(t, events.events, 1, "only placement was announced")
}

func TestCancelMine(t *testing.T) {
	svc, _, events := newService()
	ctx := context.Background()
	o, err := svc.Create(ctx, "u1", payload("cod"))
	require.NoError(t, err)

	_, err = svc.CancelMine(ctx, "u2", o.OrderID)
	assert.ErrorIs(t, err, ErrNotFound)

	cancelled, err := svc.CancelMine(ctx, "u1", o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, cancelled.Status)
	assert.Equal(t, models.OrderCancelled, events.events[1].Method)

	_, err = svc.CancelMine(ctx, "u1", o.OrderID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestHandleWebhook(t *testing.T) {
	svc, repo, _ := newService()
	ctx := context.Background()
	p := payload("card")
	p.Gateway = signedRef("order_7", "pay_7")
	o, err := svc.Create(ctx, "u1", p)
	require.NoError(t, err)

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_7","order_id":"order_7","amount":145000,"status":"captured"}}}}`)
	assert.ErrorIs(t, svc.HandleWebhook(ctx, body, "forged"), ErrBadSignature)

	require.NoError(t, svc.HandleWebhook(ctx, body, payment.Sign(body, "whsec")))
	assert.Equal(t, models.SettledByWebhook, repo.orders[o.OrderID].SettledBy)

	failed := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_8","order_id":"order_7","status":"failed"}}}}`)
	require.NoError(t, svc.HandleWebhook(ctx, failed, payment.Sign(failed, "whsec")))
	assert.Equal(t, globals.PaymentStatusPaid, repo.orders[o.OrderID].PaymentStatus, "captured stays captured")

	unknown := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_9","order_id":"order_unknown"}}}}`)
	assert.NoError(t, svc.HandleWebhook(ctx, unknown, payment.Sign(unknown, "whsec")))
}

func TestDownloadInvoice(t *testing.T) {
	svc, _, _ := newService()
	o, err := svc.Create(context.Background(), "u1", payload("cod"))
	require.NoError(t, err)

	h := NewHandler(svc)
	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+o.OrderID+"/invoice", nil)
	req = req.WithContext(context.WithValue(req.Context(), globals.UserIDKey, "u1"))
	rec := httptest.NewRecorder()
	h.DownloadInvoice(rec, req, httprouter.Params{{Key: "id", Value: o.OrderID}})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestQRPayloadIsSigned(t *testing.T) {
	o := &models.Order{OrderID: "ORD1", UserID: "u1", OrderPayload: models.OrderPayload{Total: 1450}}
	a := QRPayload(o, []byte("k1"))
	b := QRPayload(o, []byte("k2"))
	assert.True(t, strings.HasPrefix(a, "ORD1|u1|1450.00|"))
	assert.NotEqual(t, a, b)
}
