package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"atelier/address"
	"atelier/admin"
	"atelier/booking"
	"atelier/cart"
	"atelier/checkout"
	"atelier/middleware"
	"atelier/models"
	"atelier/newchat"
	"atelier/orders"
	"atelier/products"
	"atelier/promotions"
	"atelier/ratelim"
	"atelier/reviews"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("routes-secret")

type quietSource struct{}

func (quietSource) OrderTotals(context.Context) (map[string]int, float64, error) {
	return map[string]int{"placed": 2}, 1450, nil
}

func (quietSource) PendingBookings(context.Context) (int, error) {
	return 1, nil
}

func (quietSource) UnreadMessages(context.Context) (int, error) {
	return 0, nil
}

func (quietSource) LowStock(context.Context, int) ([]models.Product, error) {
	return []models.Product{}, nil
}

// newRouter registers every table. Handlers that would reach a service are
// never called here; only the middleware in front of them is.
func newRouter(t *testing.T) *httprouter.Router {
	t.Helper()
	d := &Deps{
		Auth:        middleware.NewAuth(secret),
		RateLimiter: ratelim.NewRateLimiter(1000, 1000),

		Products:     products.NewHandler(nil),
		Cart:         cart.NewHandler(nil, nil),
		Addresses:    address.NewHandler(nil),
		Checkout:     checkout.NewHandler(nil),
		Orders:       orders.NewHandler(nil),
		Booking:      booking.NewHandler(nil),
		Availability: booking.NewAvailability(),
		Reviews:      reviews.NewHandler(nil),
		Support:      newchat.NewSupport(newchat.NewHub(), nil),
		Contact:      newchat.NewContactHandler(nil),
		Promotions:   promotions.NewHandler(nil, nil),
		Dashboard:    admin.NewHandler(quietSource{}, 5),
	}
	router := httprouter.New()
	require.NotPanics(t, func() { RoutesWrapper(router, d) })
	return router
}

func bearer(t *testing.T, userID string, roles ...string) string {
	t.Helper()
	claims := &middleware.Claims{
		UserID: userID,
		Role:   roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return "Bearer " + s
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	router := newRouter(t)

	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/cart"},
		{http.MethodDelete, "/api/cart/p1"},
		{http.MethodPost, "/api/wishlist/p1/move"},
		{http.MethodGet, "/api/addresses"},
		{http.MethodGet, "/api/checkout"},
		{http.MethodPost, "/api/checkout/place"},
		{http.MethodPost, "/api/orders"},
		{http.MethodGet, "/api/orders/ORD1/invoice"},
		{http.MethodGet, "/api/bookings/b1/qr"},
		{http.MethodPost, "/api/products/p1/reviews"},
		{http.MethodGet, "/api/support/ws"},
		{http.MethodGet, "/api/admin/dashboard"},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(p.method, p.path, nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAdminRoutesNeedAdminRole(t *testing.T) {
	router := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/dashboard", nil)
	req.Header.Set("Authorization", bearer(t, "u1", "user"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/dashboard", nil)
	req.Header.Set("Authorization", bearer(t, "staff1", "admin"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalOrders":2`)
}

func TestUnknownRoute(t *testing.T) {
	router := newRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nothing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
