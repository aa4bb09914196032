package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"atelier/models"

	"github.com/redis/go-redis/v9"
)

// Selection is the set of cart line keys being bought in this pass.
type Selection map[string]struct{}

func NewSelection(keys ...string) Selection {
	s := make(Selection, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// SelectAll selects every line of the cart.
func SelectAll(items []models.CartItem) Selection {
	s := make(Selection, len(items))
	for _, it := range items {
		s[it.Key()] = struct{}{}
	}
	return s
}

func (s Selection) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Pick returns the selected lines in cart order. Keys that are no longer in
// the cart are ignored.
func (s Selection) Pick(items []models.CartItem) []models.CartItem {
	out := make([]models.CartItem, 0, len(items))
	for _, it := range items {
		if s.Has(it.Key()) {
			out = append(out, it)
		}
	}
	return out
}

// Keys lists the selected keys that exist in items, in cart order.
func (s Selection) Keys(items []models.CartItem) []string {
	keys := make([]string, 0, len(s))
	for _, it := range s.Pick(items) {
		keys = append(keys, it.Key())
	}
	return keys
}

// Fingerprint identifies which lines, in which quantities, are being bought.
// Line order does not matter.
func Fingerprint(lines []models.CartItem) string {
	parts := make([]string, 0, len(lines))
	for _, it := range lines {
		parts = append(parts, it.Key()+"#"+strconv.Itoa(it.Quantity))
	}
	sort.Strings(parts)
	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(sum[:])
}

type storedSelection struct {
	Count int      `json:"count"`
	Keys  []string `json:"keys"`
}

// SelectionStore keeps each user's selection in Redis together with the
// number of cart lines it was made against. When the cart grows or shrinks
// the stored selection is discarded and everything is selected again.
type SelectionStore struct {
	conn *redis.Client
	ttl  time.Duration
}

func NewSelectionStore(conn *redis.Client, ttl time.Duration) *SelectionStore {
	return &SelectionStore{conn: conn, ttl: ttl}
}

func selectionKey(userID string) string {
	return "checkout:selection:" + userID
}

func (s *SelectionStore) Load(ctx context.Context, userID string, items []models.CartItem) (Selection, error) {
	raw, err := s.conn.Get(ctx, selectionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return SelectAll(items), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load selection: %w", err)
	}

	var stored storedSelection
	if err := json.Unmarshal(raw, &stored); err != nil || stored.Count != len(items) {
		return SelectAll(items), nil
	}
	return NewSelection(stored.Keys...), nil
}

func (s *SelectionStore) Save(ctx context.Context, userID string, items []models.CartItem, keys []string) (Selection, error) {
	sel := NewSelection(keys...)
	data, err := json.Marshal(storedSelection{Count: len(items), Keys: sel.Keys(items)})
	if err != nil {
		return nil, err
	}
	if err := s.conn.Set(ctx, selectionKey(userID), data, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("save selection: %w", err)
	}
	return sel, nil
}

func (s *SelectionStore) Clear(ctx context.Context, userID string) error {
	return s.conn.Del(ctx, selectionKey(userID)).Err()
}
