package routes

import (
	"atelier/address"
	"atelier/admin"
	"atelier/booking"
	"atelier/cart"
	"atelier/checkout"
	"atelier/middleware"
	"atelier/newchat"
	"atelier/orders"
	"atelier/products"
	"atelier/promotions"
	"atelier/ratelim"
	"atelier/reviews"

	"github.com/julienschmidt/httprouter"
)

// Deps is everything the route tables need. main builds it once.
type Deps struct {
	Auth        *middleware.Auth
	RateLimiter *ratelim.RateLimiter
	Idempotency middleware.IdempotencyStore

	Products     *products.Handler
	Cart         *cart.Handler
	Addresses    *address.Handler
	Checkout     *checkout.Handler
	Orders       *orders.Handler
	Booking      *booking.Handler
	Availability *booking.Availability
	Reviews      *reviews.Handler
	Support      *newchat.Support
	Contact      *newchat.ContactHandler
	Promotions   *promotions.Handler
	Dashboard    *admin.Handler
}

func RoutesWrapper(router *httprouter.Router, d *Deps) {
	AddProductRoutes(router, d)
	AddCartRoutes(router, d)
	AddAddressRoutes(router, d)
	AddCheckoutRoutes(router, d)
	AddOrderRoutes(router, d)
	AddPayRoutes(router, d)
	AddBookingRoutes(router, d)
	AddReviewsRoutes(router, d)
	AddSupportRoutes(router, d)
	AddPromotionRoutes(router, d)
	AddAdminRoutes(router, d)
}

// user is the chain for signed-in customer routes.
func (d *Deps) user(h httprouter.Handle) httprouter.Handle {
	return middleware.Chain(d.RateLimiter.Limit, d.Auth.Authenticate)(h)
}

// staff is the chain for the back office.
func (d *Deps) staff(h httprouter.Handle) httprouter.Handle {
	return middleware.Chain(d.RateLimiter.Limit, d.Auth.Authenticate, middleware.RequireRoles("admin"))(h)
}
