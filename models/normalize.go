package models

import (
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Older clients and older cart documents carry the same concepts under
// different keys. Everything below turns those loose shapes into the
// canonical types once, at the edge, so the rest of the code never has to.

// ResolveProductID finds the product id of a raw cart line. It looks at a
// populated product object first, then nested references, then plain ids.
// It returns "" when nothing resolves.
func ResolveProductID(raw map[string]any) string {
	if p, ok := asMap(raw["product"]); ok {
		if id := str(p["_id"]); id != "" {
			return id
		}
		if id := str(p["id"]); id != "" {
			return id
		}
	}
	if id := str(raw["product"]); id != "" {
		return id
	}
	if ref, ok := asMap(raw["productRef"]); ok {
		if id := str(ref["id"]); id != "" {
			return id
		}
	}
	if id := str(raw["productId"]); id != "" {
		return id
	}
	return str(raw["product_id"])
}

// NormalizeCartItem converts a raw cart line. The product id is left empty
// when it cannot be resolved; callers decide whether that is fatal.
func NormalizeCartItem(raw map[string]any) CartItem {
	item := CartItem{
		ProductID: ResolveProductID(raw),
		Name:      first(raw, "name", "title"),
		Image:     first(raw, "image", "thumbnail"),
		Size:      str(raw["size"]),
		Color:     str(raw["color"]),
		Quantity:  int(Number(raw["quantity"])),
		Price:     Number(raw["price"]),
		Tax:       Number(raw["tax"]),
	}
	if p, ok := asMap(raw["product"]); ok {
		if item.Name == "" {
			item.Name = str(p["name"])
		}
		if item.Price == 0 {
			item.Price = Number(p["price"])
		}
		if item.Tax == 0 {
			item.Tax = Number(p["tax"])
		}
		if item.Image == "" {
			item.Image = firstElem(p["images"])
		}
	}
	switch t := raw["addedAt"].(type) {
	case time.Time:
		item.AddedAt = t
	case primitive.DateTime:
		item.AddedAt = t.Time()
	}
	return item
}

// NormalizeAddress accepts either the storefront form names (fullName,
// street, postalCode) or the order backend names (name, addressLine1,
// pincode).
func NormalizeAddress(raw map[string]any) Address {
	return Address{
		ID:         first(raw, "id", "_id"),
		FullName:   first(raw, "fullName", "name"),
		Phone:      strings.TrimSpace(first(raw, "phone", "mobile")),
		Street:     first(raw, "street", "addressLine1", "address"),
		City:       first(raw, "city"),
		State:      first(raw, "state"),
		PostalCode: strings.TrimSpace(first(raw, "postalCode", "pincode", "zip")),
		Landmark:   first(raw, "landmark"),
		Label:      first(raw, "label"),
	}
}

// Number reads a JSON/BSON number or numeric string. Anything that does not
// parse to a finite value is 0.
func Number(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case primitive.Decimal128:
		parsed, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func first(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := str(raw[k]); s != "" {
			return s
		}
	}
	return ""
}

func str(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case primitive.ObjectID:
		return s.Hex()
	}
	return ""
}

func firstElem(v any) string {
	var list []any
	switch a := v.(type) {
	case []any:
		list = a
	case primitive.A:
		list = a
	case []string:
		if len(a) > 0 {
			return a[0]
		}
	}
	if len(list) == 0 {
		return ""
	}
	return str(list[0])
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case primitive.M:
		return m, true
	case primitive.D:
		out := make(map[string]any, len(m))
		for _, e := range m {
			out[e.Key] = e.Value
		}
		return out, true
	}
	return nil, false
}
