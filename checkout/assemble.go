package checkout

import (
	"errors"
	"fmt"
	"strings"

	"atelier/globals"
	"atelier/models"
)

var ErrMissingProductIdentifier = errors.New("missing product identifier")

// Assemble builds the order creation body from the selected lines. It does no
// I/O and fails before anything is sent when a line has no product id.
//
// Cash on delivery is pending; every gateway method is marked paid. The order
// service only accepts that when the attached gateway references verify.
func Assemble(selected []models.CartItem, addr models.Address, sum Summary, method string, ref *models.GatewayRef) (models.OrderPayload, error) {
	items := make([]models.OrderItem, 0, len(selected))
	for _, it := range selected {
		if strings.TrimSpace(it.ProductID) == "" {
			name := it.Name
			if name == "" {
				name = it.Key()
			}
			return models.OrderPayload{}, fmt.Errorf("%w: %q", ErrMissingProductIdentifier, name)
		}
		items = append(items, models.OrderItem{
			ID:        it.Key(),
			ProductID: it.ProductID,
			Name:      it.Name,
			Image:     it.Image,
			Price:     Amount(it.Price).InexactFloat64(),
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
		})
	}

	method = strings.ToLower(strings.TrimSpace(method))
	p := models.OrderPayload{
		Items:           items,
		ShippingAddress: addr.Shipping(),
		PaymentMethod:   method,
		PaymentStatus:   PaymentStatusFor(method),
		Subtotal:        sum.Subtotal.InexactFloat64(),
		Tax:             sum.TaxAmount.InexactFloat64(),
		Shipping:        sum.Shipping.InexactFloat64(),
		Total:           sum.Total.InexactFloat64(),
	}
	if method != globals.PaymentMethodCOD && ref != nil {
		p.Gateway = ref
		p.SettledBy = models.SettledByClientSignature
	}
	return p, nil
}

func PaymentStatusFor(method string) string {
	if method == globals.PaymentMethodCOD {
		return globals.PaymentStatusPending
	}
	return globals.PaymentStatusPaid
}
