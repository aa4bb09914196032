package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"atelier/address"
	"atelier/admin"
	"atelier/booking"
	"atelier/cart"
	"atelier/checkout"
	"atelier/config"
	"atelier/db"
	"atelier/middleware"
	"atelier/mq"
	"atelier/newchat"
	"atelier/orders"
	"atelier/payment"
	"atelier/products"
	"atelier/promotions"
	"atelier/ratelim"
	"atelier/rdx"
	"atelier/reviews"
	"atelier/routes"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
)

// securityHeaders applies a set of recommended HTTP security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		// HSTS (must be on HTTPS)
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request method, path, remote address, and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s from %s in %v", r.Method, r.RequestURI, r.RemoteAddr, time.Since(start))
	})
}

// Index is a simple health check handler.
func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

func setupRouter(deps *routes.Deps) *httprouter.Router {
	router := httprouter.New()
	router.GET("/health", Index)
	routes.RoutesWrapper(router, deps)
	return router
}

// app owns the long-lived pieces main has to stop on shutdown.
type app struct {
	deps    *routes.Deps
	hub     *newchat.Hub
	bus     *mq.Bus
	reviews *reviews.Service
	orders  *orders.Service
	catalog *products.Service
}

func build(cfg *config.Config, store *db.Store, conn *redis.Client) *app {
	locks := rdx.NewLocker(conn, 30*time.Second)
	bus := mq.NewBus(conn)
	gateway := payment.NewClient(cfg.RazorpayBaseURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayWebhookSecret)

	catalog := products.NewService(
		products.NewMongoRepository(store.ProductsCollection),
		products.NewCache(conn, 5*time.Minute),
	)
	carts := cart.NewService(cart.NewMongoRepository(store.CartsCollection), cart.NewRedisCache(conn), catalog)
	wishlists := cart.NewWishlists(cart.NewMongoWishlist(store.WishlistsCollection), catalog, carts)
	addresses := address.NewService(address.NewMongoRepository(store.AddressesCollection))
	ordersSvc := orders.NewService(orders.NewMongoRepository(store.OrdersCollection), gateway, catalog, bus, cfg.ShippingFlat, cfg.QRSecret)

	checkoutSvc := &checkout.Service{
		Carts:      carts,
		Catalog:    catalog,
		Addresses:  addresses,
		Orders:     ordersSvc,
		Gateway:    gateway,
		Selections: checkout.NewSelectionStore(conn, 24*time.Hour),
		Sessions:   checkout.NewSessionStore(conn, time.Hour),
		Locks:      locks,
		Shipping:   cfg.ShippingFlat,
		Currency:   cfg.Currency,
	}

	availability := booking.NewAvailability()
	bookings := booking.NewService(
		booking.NewMongoRepository(store.SlotCollection, store.BookingsCollection),
		locks, availability, cfg.QRSecret,
	)

	reviewsSvc := reviews.NewService(reviews.NewMongoRepository(store.ReviewsCollection), catalog, bus)

	hub := newchat.NewHub()

	promos := promotions.NewHandler(
		promotions.NewCoupons(promotions.NewMongoCoupons(store.CouponCollection)),
		promotions.NewBanners(promotions.NewMongoBanners(store.BannerCollection), conn, 10*time.Minute),
	)

	deps := &routes.Deps{
		Auth:        middleware.NewAuth(cfg.JWTSecret),
		RateLimiter: ratelim.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Idempotency: middleware.NewMongoIdempotencyStore(store.IdempotencyCollection),

		Products:     products.NewHandler(catalog),
		Cart:         cart.NewHandler(carts, wishlists),
		Addresses:    address.NewHandler(addresses),
		Checkout:     checkout.NewHandler(checkoutSvc),
		Orders:       orders.NewHandler(ordersSvc),
		Booking:      booking.NewHandler(bookings),
		Availability: availability,
		Reviews:      reviews.NewHandler(reviewsSvc),
		Support:      newchat.NewSupport(hub, newchat.NewMongoChatStore(store.ChatCollection)),
		Contact:      newchat.NewContactHandler(newchat.NewMongoContactStore(store.MessagesCollection)),
		Promotions:   promos,
		Dashboard:    admin.NewHandler(admin.NewMongoSource(store, catalog), cfg.LowStockThreshold),
	}

	return &app{
		deps:    deps,
		hub:     hub,
		bus:     bus,
		reviews: reviewsSvc,
		orders:  ordersSvc,
		catalog: catalog,
	}
}

// startWorkers subscribes the background consumers. They exit when ctx is cancelled.
func (a *app) startWorkers(ctx context.Context, threshold int) {
	go a.bus.Listen(ctx, "stock", mq.OrderEvents, mq.OrderStockHandler(a.orders, a.catalog, threshold), nil)
	go a.bus.Listen(ctx, "ratings", mq.ReviewEvents, mq.ReviewRatingHandler(a.reviews), nil)
}

func main() {
	cfg := config.Load()

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 15*time.Second)
	store, err := db.Connect(bootCtx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("❌ MongoDB: %v", err)
	}
	if err := store.EnsureIndexes(bootCtx); err != nil {
		log.Fatalf("❌ Indexes: %v", err)
	}
	conn, err := rdx.Connect(bootCtx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("❌ Redis: %v", err)
	}
	cancelBoot()

	a := build(cfg, store, conn)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	a.startWorkers(workerCtx, cfg.LowStockThreshold)

	go a.hub.Run()

	stopCleanup := make(chan struct{})
	go a.deps.RateLimiter.RunCleanup(stopCleanup)

	router := setupRouter(a.deps)

	// apply middleware: CORS → security headers → logging → router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key"},
		AllowCredentials: true,
	}).Handler(router)

	handler := loggingMiddleware(securityHeaders(corsHandler))

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           handler,
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	server.RegisterOnShutdown(func() {
		log.Println("🛑 Shutting down chat hub and workers...")
		a.hub.Stop()
		stopWorkers()
		close(stopCleanup)
	})

	go func() {
		log.Printf("🚀 Server listening on %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ ListenAndServe error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("🛑 Shutdown signal received; shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("❌ Graceful shutdown failed: %v", err)
	}
	if err := store.Disconnect(ctx); err != nil {
		log.Printf("MongoDB disconnect: %v", err)
	}
	if err := conn.Close(); err != nil {
		log.Printf("Redis close: %v", err)
	}

	log.Println("✅ Server stopped cleanly")
}
