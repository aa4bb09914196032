package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"atelier/utils"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memIdempotencyStore struct {
	mu   sync.Mutex
	recs map[string]*IdempotencyRecord
}

func newMemIdempotencyStore() *memIdempotencyStore {
	return &memIdempotencyStore{recs: map[string]*IdempotencyRecord{}}
}

func (m *memIdempotencyStore) Insert(_ context.Context, rec IdempotencyRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[rec.Key]; ok {
		return true, nil
	}
	m.recs[rec.Key] = &rec
	return false, nil
}

func (m *memIdempotencyStore) Find(_ context.Context, key string) (*IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[key]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *rec
	return &cp, nil
}

func (m *memIdempotencyStore) SaveResponse(_ context.Context, key string, response map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[key].Response = response
	return nil
}

func (m *memIdempotencyStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, key)
	return nil
}

func TestIdempotent_ServerErrorReleasesKey(t *testing.T) {
	store := newMemIdempotencyStore()
	calls := 0
	h := Idempotent(store)(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		calls++
		if calls == 1 {
			utils.RespondWithError(w, http.StatusBadGateway, "order submission failed")
			return
		}
		utils.RespondWithJSON(w, http.StatusCreated, map[string]string{"orderId": "ORD1"})
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/checkout/place", strings.NewReader(`{"paymentMethod":"cod"}`))
		req.Header.Set("Idempotency-Key", "retry-me")
		rec := httptest.NewRecorder()
		h(rec, req, nil)
		return rec
	}

	assert.Equal(t, http.StatusBadGateway, send().Code)
	assert.Empty(t, store.recs)

	second := send()
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, 2, calls)

	// the success is what gets replayed from now on
	third := send()
	assert.Equal(t, http.StatusCreated, third.Code)
	assert.JSONEq(t, `{"orderId":"ORD1"}`, third.Body.String())
	assert.Equal(t, 2, calls)
}

func TestIdempotent_PanicReleasesKey(t *testing.T) {
	store := newMemIdempotencyStore()
	calls := 0
	h := Idempotent(store)(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		utils.RespondWithJSON(w, http.StatusCreated, map[string]string{"orderId": "ORD1"})
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "crash")
		rec := httptest.NewRecorder()
		h(rec, req, nil)
		return rec
	}

	assert.PanicsWithValue(t, "boom", func() { send() })
	assert.Empty(t, store.recs)

	rec := send()
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotent_ReplaysStoredResponse(t *testing.T) {
	calls := 0
	h := Idempotent(newMemIdempotencyStore())(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		calls++
		utils.RespondWithJSON(w, http.StatusCreated, map[string]string{"orderId": "ORD1"})
	})

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/checkout/place", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "abc")
		rec := httptest.NewRecorder()
		h(rec, req, nil)
		return rec
	}

	first := send(`{"paymentMethod":"cod"}`)
	require.Equal(t, http.StatusCreated, first.Code)

	second := send(`{"paymentMethod":"cod"}`)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, `{"orderId":"ORD1"}`, second.Body.String())
	assert.Equal(t, 1, calls)

	conflict := send(`{"paymentMethod":"upi"}`)
	assert.Equal(t, http.StatusConflict, conflict.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotent_NoHeaderPassesThrough(t *testing.T) {
	calls := 0
	h := Idempotent(newMemIdempotencyStore())(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	})
	for i := 0; i < 2; i++ {
		h(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil), nil)
	}
	assert.Equal(t, 2, calls)
}
