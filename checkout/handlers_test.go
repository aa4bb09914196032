package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"atelier/globals"
	"atelier/models"
	"atelier/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func asUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), globals.UserIDKey, userID))
}

func TestWriteError_StatusCodes(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrEmptySelection, http.StatusBadRequest},
		{ErrNoAddress, http.StatusBadRequest},
		{fmt.Errorf("%w: \"x\"", ErrMissingProductIdentifier), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: signature mismatch", ErrPaymentFailed), http.StatusPaymentRequired},
		{ErrInvalidStep, http.StatusConflict},
		{ErrOrderSubmission, http.StatusBadGateway},
		{fmt.Errorf("random"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, tt.err)
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())
	}
}

func TestPlaceBody_AcceptsFlatWidgetNames(t *testing.T) {
	var b placeBody
	require.NoError(t, json.Unmarshal([]byte(`{"paymentMethod":"upi","razorpay_order_id":"order_1","razorpay_payment_id":"pay_1","razorpay_signature":"sig"}`), &b))
	assert.Equal(t, &models.GatewayRef{OrderID: "order_1", PaymentID: "pay_1", Signature: "sig"}, b.request().Gateway)

	b = placeBody{PaymentMethod: "cod"}
	assert.Nil(t, b.request().Gateway)
}

func TestHandler_CheckoutOverHTTP(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)

	rec := httptest.NewRecorder()
	h.ChooseAddress(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/checkout/address", strings.NewReader(`{"addressId":"a1"}`)), "u1"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.CreatePaymentIntent(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/checkout/payment-intent", nil), "u1"), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var intent PaymentIntent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &intent))

	sig := payment.Sign([]byte(intent.GatewayOrderID+"|pay_9"), "secret")
	body := fmt.Sprintf(`{"paymentMethod":"card","razorpay_order_id":%q,"razorpay_payment_id":"pay_9","razorpay_signature":%q}`, intent.GatewayOrderID, sig)
	rec = httptest.NewRecorder()
	h.PlaceOrder(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/checkout/place", strings.NewReader(body)), "u1"), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"paymentStatus":"paid"`)

	rec = httptest.NewRecorder()
	h.GetCheckout(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/checkout", nil), "u1"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"step":"address"`)
	assert.Contains(t, rec.Body.String(), `"total":100`)
}
