package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayRejected    = errors.New("payment gateway rejected the request")
	ErrNotConfigured      = errors.New("payment gateway not configured")
)

// OrderRequest asks the gateway for an order the checkout widget can pay.
// Amount is in minor units (paise).
type OrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type GatewayOrder struct {
	ID         string            `json:"id"`
	Amount     int64             `json:"amount"`
	AmountPaid int64             `json:"amount_paid"`
	Currency   string            `json:"currency"`
	Receipt    string            `json:"receipt"`
	Status     string            `json:"status"`
	Notes      map[string]string `json:"notes,omitempty"`
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// Client talks to the Razorpay orders API. Orders are created and read back
// here; the payment itself happens in the browser widget.
type Client struct {
	http          *resty.Client
	keyID         string
	keySecret     string
	webhookSecret string
	cb            *gobreaker.CircuitBreaker[*GatewayOrder]
}

func NewClient(baseURL, keyID, keySecret, webhookSecret string) *Client {
	hc := resty.New().
		SetBaseURL(baseURL).
		SetBasicAuth(keyID, keySecret).
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json")

	cb := gobreaker.NewCircuitBreaker[*GatewayOrder](gobreaker.Settings{
		Name:        "razorpay",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// a rejected request says nothing about gateway health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrGatewayRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[Payment] breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Client{
		http:          hc,
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		cb:            cb,
	}
}

// KeyID is the public key the browser widget is opened with.
func (c *Client) KeyID() string {
	return c.keyID
}

// CreateOrder registers an order with the gateway. There are no retries: a
// failure aborts the checkout attempt.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*GatewayOrder, error) {
	if c.keyID == "" || c.keySecret == "" {
		return nil, ErrNotConfigured
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrGatewayRejected)
	}

	return c.do(func(r *resty.Request) (*resty.Response, error) {
		return r.SetContext(ctx).SetBody(req).Post("/orders")
	})
}

// FetchOrder reads an order back from the gateway. The amount on it is the
// one the customer was asked to pay.
func (c *Client) FetchOrder(ctx context.Context, id string) (*GatewayOrder, error) {
	if c.keyID == "" || c.keySecret == "" {
		return nil, ErrNotConfigured
	}
	if id == "" {
		return nil, fmt.Errorf("%w: missing order id", ErrGatewayRejected)
	}
	return c.do(func(r *resty.Request) (*resty.Response, error) {
		return r.SetContext(ctx).SetPathParam("id", id).Get("/orders/{id}")
	})
}

// do runs one gateway call behind the breaker and sorts failures into
// unavailable and rejected.
func (c *Client) do(send func(*resty.Request) (*resty.Response, error)) (*GatewayOrder, error) {
	order, err := c.cb.Execute(func() (*GatewayOrder, error) {
		var out GatewayOrder
		var apiErr apiError
		resp, err := send(c.http.R().SetResult(&out).SetError(&apiErr))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
		if resp.StatusCode() >= 500 {
			return nil, fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode())
		}
		if resp.IsError() {
			return nil, fmt.Errorf("%w: %s", ErrGatewayRejected, apiErr.Error.Description)
		}
		return &out, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return order, err
}

// VerifyPaymentSignature checks the signature the widget hands back after a
// successful payment: HMAC-SHA256 of "orderId|paymentId" with the key secret.
func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if c.keySecret == "" || orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return validMAC([]byte(orderID+"|"+paymentID), signature, c.keySecret)
}

// VerifyWebhook checks the X-Razorpay-Signature header against the raw body.
func (c *Client) VerifyWebhook(body []byte, signature string) bool {
	if c.webhookSecret == "" || signature == "" {
		return false
	}
	return validMAC(body, signature, c.webhookSecret)
}

func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func validMAC(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}

// ToMinorUnits converts rupees to paise, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// WebhookEvent is the subset of a webhook body we act on.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Amount  int64  `json:"amount"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	if ev.Event == "" || ev.Payload.Payment.Entity.OrderID == "" {
		return nil, errors.New("webhook missing event or order id")
	}
	return &ev, nil
}

// Methods the gateway widget settles. Cash on delivery never reaches it.
var gatewayMethods = map[string]bool{
	"card":       true,
	"upi":        true,
	"netbanking": true,
	"wallet":     true,
	"razorpay":   true,
}

func IsGatewayMethod(method string) bool {
	return gatewayMethods[method]
}
