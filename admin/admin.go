package admin

import (
	"context"
	"log"
	"net/http"
	"time"

	"atelier/db"
	"atelier/models"
	"atelier/utils"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Dashboard is the summary shown on the admin landing page.
type Dashboard struct {
	OrdersByStatus  map[string]int   `json:"ordersByStatus"`
	TotalOrders     int              `json:"totalOrders"`
	Revenue         float64          `json:"revenue"`
	PendingBookings int              `json:"pendingBookings"`
	UnreadMessages  int              `json:"unreadMessages"`
	LowStock        []models.Product `json:"lowStock"`
}

// Source answers the individual dashboard queries.
type Source interface {
	OrderTotals(ctx context.Context) (map[string]int, float64, error)
	PendingBookings(ctx context.Context) (int, error)
	UnreadMessages(ctx context.Context) (int, error)
	LowStock(ctx context.Context, threshold int) ([]models.Product, error)
}

// LowStocker is the catalog query for products that need restocking.
type LowStocker interface {
	LowStock(ctx context.Context, threshold int) ([]models.Product, error)
}

type mongoSource struct {
	LowStocker
	orders   *mongo.Collection
	bookings *mongo.Collection
	messages *mongo.Collection
}

func NewMongoSource(store *db.Store, stock LowStocker) Source {
	return &mongoSource{
		LowStocker: stock,
		orders:     store.OrdersCollection,
		bookings:   store.BookingsCollection,
		messages:   store.MessagesCollection,
	}
}

// OrderTotals counts orders per status and sums the total of every order
// that was not cancelled.
func (m *mongoSource) OrderTotals(ctx context.Context) (map[string]int, float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":     "$status",
			"count":   bson.M{"$sum": 1},
			"revenue": bson.M{"$sum": "$total"},
		}}},
	}
	cur, err := m.orders.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		Status  string  `bson:"_id"`
		Count   int     `bson:"count"`
		Revenue float64 `bson:"revenue"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, 0, err
	}

	counts := make(map[string]int, len(rows))
	revenue := 0.0
	for _, row := range rows {
		counts[row.Status] = row.Count
		if row.Status != models.OrderCancelled {
			revenue += row.Revenue
		}
	}
	return counts, revenue, nil
}

func (m *mongoSource) PendingBookings(ctx context.Context) (int, error) {
	n, err := m.bookings.CountDocuments(ctx, bson.M{"status": "pending"})
	return int(n), err
}

func (m *mongoSource) UnreadMessages(ctx context.Context) (int, error) {
	n, err := m.messages.CountDocuments(ctx, bson.M{"read": false})
	return int(n), err
}

type Handler struct {
	src       Source
	threshold int
}

func NewHandler(src Source, lowStockThreshold int) *Handler {
	return &Handler{src: src, threshold: lowStockThreshold}
}

// Build gathers every figure; the first failing query aborts it.
func (h *Handler) Build(ctx context.Context) (*Dashboard, error) {
	counts, revenue, err := h.src.OrderTotals(ctx)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{OrdersByStatus: counts, Revenue: revenue}
	for _, n := range counts {
		d.TotalOrders += n
	}
	if d.PendingBookings, err = h.src.PendingBookings(ctx); err != nil {
		return nil, err
	}
	if d.UnreadMessages, err = h.src.UnreadMessages(ctx); err != nil {
		return nil, err
	}
	if d.LowStock, err = h.src.LowStock(ctx, h.threshold); err != nil {
		return nil, err
	}
	return d, nil
}

// GetDashboard serves GET /api/admin/dashboard.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	d, err := h.Build(ctx)
	if err != nil {
		log.Printf("dashboard: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to build dashboard")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, d)
}
