package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"atelier/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	counts    map[string]int
	revenue   float64
	pending   int
	unread    int
	low       []models.Product
	threshold int
	fail      error
}

func (f *fakeSource) OrderTotals(context.Context) (map[string]int, float64, error) {
	return f.counts, f.revenue, f.fail
}

func (f *fakeSource) PendingBookings(context.Context) (int, error) { return f.pending, nil }
func (f *fakeSource) UnreadMessages(context.Context) (int, error)  { return f.unread, nil }

func (f *fakeSource) LowStock(_ context.Context, threshold int) ([]models.Product, error) {
	f.threshold = threshold
	return f.low, nil
}

func TestGetDashboard(t *testing.T) {
	src := &fakeSource{
		counts:  map[string]int{models.OrderPlaced: 3, models.OrderDelivered: 2, models.OrderCancelled: 1},
		revenue: 8450,
		pending: 4,
		unread:  2,
		low:     []models.Product{{ProductID: "kurta", Stock: 1}},
	}
	h := NewHandler(src, 5)

	rec := httptest.NewRecorder()
	h.GetDashboard(rec, httptest.NewRequest(http.MethodGet, "/api/admin/dashboard", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var d Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, 6, d.TotalOrders)
	assert.Equal(t, 8450.0, d.Revenue)
	assert.Equal(t, 4, d.PendingBookings)
	assert.Equal(t, 2, d.UnreadMessages)
	require.Len(t, d.LowStock, 1)
	assert.Equal(t, 5, src.threshold)
}

func TestGetDashboard_SourceFailure(t *testing.T) {
	h := NewHandler(&fakeSource{fail: errors.New("mongo down")}, 5)
	rec := httptest.NewRecorder()
	h.GetDashboard(rec, httptest.NewRequest(http.MethodGet, "/api/admin/dashboard", nil), nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
