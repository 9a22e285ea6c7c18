package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/nurpe/wcpms-billing/internal/model"
)

type Generator struct {
	fontName string
}

func NewGenerator() *Generator {
	return &Generator{fontName: "Helvetica"}
}

// InvoiceDocument bundles everything the printable invoice needs.
type InvoiceDocument struct {
	Invoice  model.Invoice
	Contract model.Contract
}

func (g *Generator) Generate(doc InvoiceDocument) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 14)
	pdf.CellFormat(0, 10, invoiceTitle(doc.Invoice.Kind), "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Invoice No. %s dated %s", doc.Invoice.InvoiceNumber, formatDate(&doc.Invoice.InvoiceDate)), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Contract No. %s", doc.Contract.ContractNumber), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	addPartyBlock(pdf, g.fontName, doc.Contract)
	pdf.Ln(4)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, "Charges", "", 1, "L", false, 0, "")

	headers := []string{"Description", "Amount"}
	colWidths := []float64{130, 50}
	drawTableRow(pdf, g.fontName, headers, colWidths, true)

	for _, line := range chargeLines(doc.Invoice) {
		drawTableRow(pdf, g.fontName, line, colWidths, false)
	}

	pdf.Ln(2)
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total due: %s", formatAmount(doc.Invoice.TotalAmount)), "", 1, "R", false, 0, "")

	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Payment due by %s", formatDate(&doc.Invoice.DueDate)), "", 1, "R", false, 0, "")
	if doc.Invoice.PaymentStatus == model.PaymentStatusPaid {
		pdf.CellFormat(0, 6, fmt.Sprintf("Paid on %s", formatDate(doc.Invoice.PaidDate)), "", 1, "R", false, 0, "")
	}

	if strings.TrimSpace(doc.Invoice.Notes) != "" {
		pdf.Ln(2)
		pdf.MultiCell(0, 5, "Notes: "+doc.Invoice.Notes, "", "L", false)
	}

	pdf.Ln(6)
	pdf.CellFormat(0, 6, "Accountant: ______________________", "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func invoiceTitle(kind model.InvoiceKind) string {
	switch kind {
	case model.InvoiceKindWater:
		return "WATER CONSUMPTION INVOICE"
	case model.InvoiceKindInstallation:
		return "INSTALLATION INVOICE"
	case model.InvoiceKindService:
		return "SERVICE INVOICE"
	default:
		return "INVOICE"
	}
}

// chargeLines renders only the rows that apply to the invoice kind:
// consumption and the environment fee exist on water invoices, the
// late fee only once the invoice went overdue.
func chargeLines(invoice model.Invoice) [][]string {
	var lines [][]string
	if invoice.Kind == model.InvoiceKindWater {
		lines = append(lines, []string{
			fmt.Sprintf("Water consumption: %s m3", invoice.TotalConsumption.String()),
			formatAmount(invoice.SubtotalAmount),
		})
		lines = append(lines, []string{"Environment protection fee", formatAmount(invoice.EnvironmentFeeAmount)})
	} else {
		lines = append(lines, []string{"Service charge", formatAmount(invoice.SubtotalAmount)})
	}
	lines = append(lines, []string{"VAT", formatAmount(invoice.VATAmount)})
	if invoice.LatePaymentFee.IsPositive() {
		lines = append(lines, []string{"Late payment fee", formatAmount(invoice.LatePaymentFee)})
	}
	return lines
}

func addPartyBlock(pdf *gofpdf.Fpdf, fontName string, contract model.Contract) {
	pdf.SetFont(fontName, "B", 11)
	pdf.CellFormat(0, 6, "Customer", "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "", 10)

	name := contract.GuestName
	phone := contract.GuestPhone
	if contract.Customer != nil {
		name = contract.Customer.FullName
		phone = contract.Customer.Phone
		pdf.MultiCell(0, 5, fmt.Sprintf("Code: %s", safeValue(contract.Customer.Code)), "", "L", false)
	}
	pdf.MultiCell(0, 5, safeValue(name), "", "L", false)
	pdf.MultiCell(0, 5, fmt.Sprintf("Phone: %s", safeValue(phone)), "", "L", false)
}

func drawTableRow(pdf *gofpdf.Fpdf, fontName string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 10)
	for i, col := range cols {
		align := "L"
		if i > 0 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 8, col, "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatAmount(value decimal.Decimal) string {
	return value.StringFixed(0)
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format("02.01.2006")
}
