package printer

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/lunaretail/posync/internal/models"
)

// GenerateReceiptPDF renders a purchase order as a printable A4 receipt with
// a QR code carrying the order id for pickup scanning.
func GenerateReceiptPDF(po *models.PurchaseOrder, storeName string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, storeName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Order %s", po.ID), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, po.CreatedAt.Format("02.01.2006 15:04"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	// Table header
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(90, 7, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(25, 7, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(30, 7, "Price", "B", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, "Total", "B", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, it := range po.Items {
		title := it.Title
		if len(title) > 48 {
			title = title[:45] + "..."
		}
		qty := fmt.Sprintf("%g", it.Quantity)
		if it.Unit != "" {
			qty += " " + it.Unit
		}
		pdf.CellFormat(90, 6, title, "", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, qty, "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", it.UnitPrice), "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", it.LineTotal), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(145, 6, "Subtotal", "T", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", po.Subtotal), "T", 1, "R", false, 0, "")
	pdf.CellFormat(145, 6, "Tax", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", po.TaxTotal), "", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(145, 8, "Total", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 8, fmt.Sprintf("%.2f", po.FinalTotal), "", 1, "R", false, 0, "")

	// QR code with the order id
	qrPng, err := qrcode.Encode(po.ID, qrcode.Medium, 256)
	if err != nil {
		return nil, err
	}
	imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	_ = pdf.RegisterImageOptionsReader("order_qr", imgOptions, bytes.NewReader(qrPng))
	pdf.Ln(6)
	pdf.ImageOptions("order_qr", 85, pdf.GetY(), 40, 40, false, imgOptions, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
