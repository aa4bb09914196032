package checkout

import (
	"encoding/json"
	"math"

	"atelier/models"

	"github.com/shopspring/decimal"
)

// Summary is derived from the cart, the selection and the catalog on every
// read and never stored.
type Summary struct {
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Shipping  decimal.Decimal
	Total     decimal.Decimal
}

func (s Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]float64{
		"subtotal":  s.Subtotal.InexactFloat64(),
		"taxAmount": s.TaxAmount.InexactFloat64(),
		"shipping":  s.Shipping.InexactFloat64(),
		"total":     s.Total.InexactFloat64(),
	})
}

// Reconcile prices the selected lines of a cart. Unit price comes from the
// line itself; unit tax comes from the catalog entry for the product and
// falls back to the line's own tax snapshot when the catalog has no entry.
// Shipping is flat and is charged even when nothing is selected.
func Reconcile(items []models.CartItem, sel Selection, catalog map[string]models.Product, shipping decimal.Decimal) Summary {
	subtotal := decimal.Zero
	tax := decimal.Zero

	for _, it := range items {
		if !sel.Has(it.Key()) || it.Quantity <= 0 {
			continue
		}
		qty := decimal.NewFromInt(int64(it.Quantity))

		unitTax := it.Tax
		if p, ok := catalog[it.ProductID]; ok {
			unitTax = p.Tax
		}

		subtotal = subtotal.Add(Amount(it.Price).Mul(qty))
		tax = tax.Add(Amount(unitTax).Mul(qty))
	}

	return Summary{
		Subtotal:  subtotal,
		TaxAmount: tax,
		Shipping:  shipping,
		Total:     subtotal.Add(tax).Add(shipping),
	}
}

// Amount turns a stored float into a decimal; NaN and infinities count as 0.
func Amount(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}
