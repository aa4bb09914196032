package routes

import (
	"atelier/middleware"

	"github.com/julienschmidt/httprouter"
)

// AddCheckoutRoutes wires the address → payment → done wizard. Placing an
// order is idempotent per Idempotency-Key so a retried tap cannot order twice.
func AddCheckoutRoutes(router *httprouter.Router, d *Deps) {
	router.GET("/api/checkout", d.user(d.Checkout.GetCheckout))
	router.PUT("/api/checkout/selection", d.user(d.Checkout.SetSelection))
	router.POST("/api/checkout/address", d.user(d.Checkout.ChooseAddress))
	router.POST("/api/checkout/back", d.user(d.Checkout.Back))
	router.POST("/api/checkout/payment-intent", d.user(d.Checkout.CreatePaymentIntent))
	router.POST("/api/checkout/payment-failed", d.user(d.Checkout.PaymentFailed))

	router.POST("/api/checkout/place",
		middleware.Chain(
			d.RateLimiter.Limit,
			d.Auth.Authenticate,
			middleware.Idempotent(d.Idempotency),
		)(d.Checkout.PlaceOrder),
	)
}

// AddPayRoutes covers direct order submission and the gateway callback.
func AddPayRoutes(router *httprouter.Router, d *Deps) {
	router.POST("/api/orders",
		middleware.Chain(
			d.RateLimiter.Limit,
			d.Auth.Authenticate,
			middleware.Idempotent(d.Idempotency),
		)(d.Orders.CreateOrder),
	)

	// signed by the gateway, not by a user token
	router.POST("/api/payments/webhook", d.Orders.PaymentWebhook)
}
