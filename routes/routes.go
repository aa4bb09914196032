package routes

import (
	"github.com/julienschmidt/httprouter"
)

func AddProductRoutes(router *httprouter.Router, d *Deps) {
	router.GET("/api/products", d.RateLimiter.Limit(d.Products.GetProducts))
	router.GET("/api/products/:id", d.RateLimiter.Limit(d.Products.GetProduct))
}

func AddCartRoutes(router *httprouter.Router, d *Deps) {
	router.GET("/api/cart", d.user(d.Cart.GetCart))
	router.POST("/api/cart", d.user(d.Cart.AddToCart))
	router.POST("/api/cart/merge", d.user(d.Cart.MergeCart))
	router.PATCH("/api/cart/:productId", d.user(d.Cart.UpdateQuantity))
	router.DELETE("/api/cart/:productId", d.user(d.Cart.RemoveFromCart))
	router.DELETE("/api/cart", d.user(d.Cart.ClearCart))

	router.GET("/api/wishlist", d.user(d.Cart.GetWishlist))
	router.POST("/api/wishlist/:productId", d.user(d.Cart.AddToWishlist))
	router.DELETE("/api/wishlist/:productId", d.user(d.Cart.RemoveFromWishlist))
	router.POST("/api/wishlist/:productId/move", d.user(d.Cart.MoveToCart))
}

func AddAddressRoutes(router *httprouter.Router, d *Deps) {
	router.GET("/api/addresses", d.user(d.Addresses.ListAddresses))
	router.POST("/api/addresses", d.user(d.Addresses.CreateAddress))
	router.DELETE("/api/addresses/:id", d.user(d.Addresses.DeleteAddress))
	router.PUT("/api/addresses/:id/default", d.user(d.Addresses.SetDefaultAddress))
}

func AddOrderRoutes(router *httprouter.Router, d *Deps) {
	router.GET("/api/orders", d.user(d.Orders.ListMyOrders))
	router.GET("/api/orders/:id", d.user(d.Orders.GetMyOrder))
	router.POST("/api/orders/:id/cancel", d.user(d.Orders.CancelMyOrder))
	router.GET("/api/orders/:id/invoice", d.user(d.Orders.DownloadInvoice))
}

func AddBookingRoutes(router *httprouter.Router, d *Deps) {
	router.GET("/api/slots", d.RateLimiter.Limit(d.Booking.ListSlots))
	router.GET("/api/slots/ws/:date", d.Availability.HandleWS)

	router.GET("/api/bookings", d.user(d.Booking.ListMyBookings))
	router.POST("/api/bookings", d.user(d.Booking.CreateBooking))
	router.POST("/api/bookings/:id/cancel", d.user(d.Booking.CancelBooking))
	router.GET("/api/bookings/:id/qr", d.user(d.Booking.BookingQR))
}

func AddReviewsRoutes(router *httprouter.Router, d *Deps) {
	router.GET("/api/products/:id/reviews", d.RateLimiter.Limit(d.Reviews.GetReviews))
	router.POST("/api/products/:id/reviews", d.user(d.Reviews.AddReview))
	router.PUT("/api/reviews/:reviewId", d.user(d.Reviews.EditReview))
	router.DELETE("/api/reviews/:reviewId", d.user(d.Reviews.DeleteReview))
}

func AddSupportRoutes(router *httprouter.Router, d *Deps) {
	router.POST("/api/contact", d.RateLimiter.Limit(d.Contact.Submit))
	router.GET("/api/support/ws", d.Auth.Authenticate(d.Support.WebSocketHandler))
	router.GET("/api/support/history", d.user(d.Support.History))
}

func AddPromotionRoutes(router *httprouter.Router, d *Deps) {
	router.GET("/api/banners", d.RateLimiter.Limit(d.Promotions.GetBanners))
	router.POST("/api/coupons/validate", d.user(d.Promotions.ValidateCoupon))
}

func AddAdminRoutes(router *httprouter.Router, d *Deps) {
	router.GET("/api/admin/dashboard", d.staff(d.Dashboard.GetDashboard))

	router.GET("/api/admin/products", d.staff(d.Products.AdminListProducts))
	router.POST("/api/admin/products", d.staff(d.Products.CreateProduct))
	router.PUT("/api/admin/products/:id", d.staff(d.Products.UpdateProduct))
	router.DELETE("/api/admin/products/:id", d.staff(d.Products.DeleteProduct))
	router.PATCH("/api/admin/products/:id/stock", d.staff(d.Products.AdjustStock))

	router.GET("/api/admin/orders", d.staff(d.Orders.AdminListOrders))
	router.GET("/api/admin/orders/:id", d.staff(d.Orders.AdminGetOrder))
	router.PATCH("/api/admin/orders/:id/status", d.staff(d.Orders.AdminUpdateStatus))

	router.POST("/api/admin/slots", d.staff(d.Booking.CreateSlot))
	router.POST("/api/admin/slots/generate", d.staff(d.Booking.GenerateSlots))
	router.DELETE("/api/admin/slots/:id", d.staff(d.Booking.DeleteSlot))
	router.GET("/api/admin/bookings", d.staff(d.Booking.AdminListBookings))
	router.PATCH("/api/admin/bookings/:id/status", d.staff(d.Booking.UpdateBookingStatus))

	router.GET("/api/admin/messages", d.staff(d.Contact.List))
	router.PATCH("/api/admin/messages/:id/read", d.staff(d.Contact.MarkRead))
	router.DELETE("/api/admin/messages/:id", d.staff(d.Contact.Delete))
	router.GET("/api/admin/support/rooms", d.staff(d.Support.Rooms))

	router.GET("/api/admin/coupons", d.staff(d.Promotions.ListCoupons))
	router.POST("/api/admin/coupons", d.staff(d.Promotions.CreateCoupon))
	router.PUT("/api/admin/coupons/:code", d.staff(d.Promotions.UpdateCoupon))
	router.DELETE("/api/admin/coupons/:code", d.staff(d.Promotions.DeleteCoupon))

	router.GET("/api/admin/banners", d.staff(d.Promotions.AdminListBanners))
	router.POST("/api/admin/banners", d.staff(d.Promotions.CreateBanner))
	router.PUT("/api/admin/banners/:id", d.staff(d.Promotions.UpdateBanner))
	router.DELETE("/api/admin/banners/:id", d.staff(d.Promotions.DeleteBanner))
}
