package orders

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"atelier/models"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

// QRPayload is orderId|userId|total|signature. Staff scan it at pickup or
// returns to check the slip was issued by us.
func QRPayload(o *models.Order, secret []byte) string {
	data := fmt.Sprintf("%s|%s|%.2f", o.OrderID, o.UserID, o.Total)
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(data))
	return data + "|" + base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Invoice renders the order as an A4 PDF.
func Invoice(o *models.Order, secret []byte) ([]byte, error) {
	qrPNG, err := qrcode.Encode(QRPayload(o, secret), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("qr code: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Invoice")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 7, "Order: "+o.OrderID)
	pdf.Ln(6)
	pdf.Cell(0, 7, "Date: "+o.CreatedAt.Format("02 Jan 2006"))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Payment: %s (%s)", o.PaymentMethod, o.PaymentStatus))
	pdf.Ln(10)

	a := o.ShippingAddress
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 7, "Ship to")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 11)
	for _, line := range []string{a.Name, a.AddressLine1, a.Landmark, fmt.Sprintf("%s, %s %s", a.City, a.State, a.Pincode), "Phone: " + a.Phone} {
		if line == "" {
			continue
		}
		pdf.Cell(0, 6, line)
		pdf.Ln(5)
	}
	pdf.Ln(6)

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 160, 20, 35, 35, false, imageOpts, 0, "")

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(90, 8, "Item", "1", 0, "L", true, 0, "")
	pdf.CellFormat(20, 8, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(35, 8, "Price", "1", 0, "R", true, 0, "")
	pdf.CellFormat(35, 8, "Amount", "1", 1, "R", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, it := range o.Items {
		name := it.Name
		if it.Size != "" || it.Color != "" {
			name = fmt.Sprintf("%s (%s %s)", it.Name, it.Size, it.Color)
		}
		pdf.CellFormat(90, 7, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", it.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 7, money(it.Price), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, money(it.Price*float64(it.Quantity)), "1", 1, "R", false, 0, "")
	}

	for _, row := range []struct {
		label string
		value float64
	}{
		{"Subtotal", o.Subtotal},
		{"Tax", o.Tax},
		{"Shipping", o.Shipping},
		{"Total", o.Total},
	} {
		pdf.CellFormat(145, 7, row.label, "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, money(row.value), "", 1, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice: %w", err)
	}
	return buf.Bytes(), nil
}

// core PDF fonts have no rupee glyph
func money(v float64) string {
	return fmt.Sprintf("Rs. %.2f", v)
}
