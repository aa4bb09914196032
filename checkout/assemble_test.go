package checkout

import (
	"testing"

	"atelier/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAddress = models.Address{
	ID: "a1", FullName: "Asha Rao", Phone: "9876543210", Street: "12 MG Road",
	City: "Pune", State: "MH", PostalCode: "411001", Landmark: "Opp. temple",
}

func TestAssemble_CODIsPending(t *testing.T) {
	items := sampleCart()
	sum := Reconcile(items, SelectAll(items), sampleCatalog(), shipping)

	p, err := Assemble(items, testAddress, sum, "cod", nil)
	require.NoError(t, err)

	assert.Equal(t, "pending", p.PaymentStatus)
	assert.Nil(t, p.Gateway)
	assert.Empty(t, p.SettledBy)
	assert.Equal(t, 1450.0, p.Total)
	assert.Equal(t, 50.0, p.Tax)
	require.Len(t, p.Items, 2)
	assert.Equal(t, models.OrderItem{ID: "p1|M|", ProductID: "p1", Name: "Kurta", Price: 500, Quantity: 2, Size: "M"}, p.Items[0])
	assert.Equal(t, "12 MG Road", p.ShippingAddress.AddressLine1)
	assert.Equal(t, "411001", p.ShippingAddress.Pincode)
	assert.Equal(t, "Asha Rao", p.ShippingAddress.Name)
}

func TestAssemble_GatewayMethodsArePaid(t *testing.T) {
	items := sampleCart()
	sum := Reconcile(items, SelectAll(items), sampleCatalog(), shipping)
	ref := &models.GatewayRef{OrderID: "order_1", PaymentID: "pay_1", Signature: "sig"}

	for _, method := range []string{"card", "upi", "netbanking", "UPI"} {
		p, err := Assemble(items, testAddress, sum, method, ref)
		require.NoError(t, err)
		assert.Equal(t, "paid", p.PaymentStatus, method)
		assert.Equal(t, ref, p.Gateway)
		assert.Equal(t, models.SettledByClientSignature, p.SettledBy)
	}
}

func TestAssemble_MissingProductIdentifier(t *testing.T) {
	items := []models.CartItem{
		{ProductID: "p1", Name: "Kurta", Price: 500, Quantity: 1},
		{Name: "Mystery stole", Price: 100, Quantity: 1},
	}
	_, err := Assemble(items, testAddress, Summary{}, "cod", nil)
	require.ErrorIs(t, err, ErrMissingProductIdentifier)
	assert.Contains(t, err.Error(), "Mystery stole")
}
