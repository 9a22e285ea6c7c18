package excel

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/wcpms-billing/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate produces the billing-period workbook: a summary sheet with
// per-kind and per-status totals, plus one sheet per invoice kind.
func (g *Generator) Generate(report model.BillingReport) ([]byte, error) {
	file := excelize.NewFile()

	summarySheet := "Summary"
	file.SetSheetName("Sheet1", summarySheet)
	if err := g.writeSummary(file, summarySheet, report); err != nil {
		return nil, err
	}

	for _, kind := range []model.InvoiceKind{model.InvoiceKindWater, model.InvoiceKindInstallation, model.InvoiceKindService} {
		invoices := filterByKind(report.Invoices, kind)
		if len(invoices) == 0 {
			continue
		}
		sheetName := sheetNameForKind(kind)
		file.NewSheet(sheetName)
		if err := g.writeDetail(file, sheetName, invoices); err != nil {
			return nil, err
		}
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, report model.BillingReport) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Period start")
	set("B1", formatDate(report.PeriodStart))
	set("A2", "Period end")
	set("B2", formatDate(report.PeriodEnd))
	set("A3", "Invoice count")
	set("B3", len(report.Invoices))
	set("A4", "Billed total")
	set("B4", formatAmount(sumTotal(report.Invoices)))
	set("A5", "Collected (paid)")
	set("B5", formatAmount(sumTotalByStatus(report.Invoices, model.PaymentStatusPaid)))
	set("A6", "Outstanding (pending + overdue)")
	outstanding := sumTotalByStatus(report.Invoices, model.PaymentStatusPending).
		Add(sumTotalByStatus(report.Invoices, model.PaymentStatusOverdue))
	set("B6", formatAmount(outstanding))

	tableRow := 8
	set(fmt.Sprintf("A%d", tableRow), "Invoice kind")
	set(fmt.Sprintf("B%d", tableRow), "Count")
	set(fmt.Sprintf("C%d", tableRow), "Total")

	kinds := []model.InvoiceKind{model.InvoiceKindWater, model.InvoiceKindInstallation, model.InvoiceKindService}
	for i, kind := range kinds {
		invoices := filterByKind(report.Invoices, kind)
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), string(kind))
		set(fmt.Sprintf("B%d", row), len(invoices))
		set(fmt.Sprintf("C%d", row), formatAmount(sumTotal(invoices)))
	}

	_ = file.SetColWidth(sheet, "A", "A", 32)
	_ = file.SetColWidth(sheet, "B", "B", 18)
	_ = file.SetColWidth(sheet, "C", "C", 18)
	return nil
}

func (g *Generator) writeDetail(file *excelize.File, sheet string, invoices []model.Invoice) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	headers := []string{
		"Invoice number",
		"Invoice date",
		"Due date",
		"Contract ID",
		"Subtotal",
		"Environment fee",
		"VAT",
		"Late fee",
		"Total",
		"Status",
		"Paid date",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		set(cell, header)
	}

	for i, invoice := range invoices {
		row := 2 + i
		set(fmt.Sprintf("A%d", row), invoice.InvoiceNumber)
		set(fmt.Sprintf("B%d", row), formatDate(invoice.InvoiceDate))
		set(fmt.Sprintf("C%d", row), formatDate(invoice.DueDate))
		set(fmt.Sprintf("D%d", row), invoice.ContractID)
		set(fmt.Sprintf("E%d", row), formatAmount(invoice.SubtotalAmount))
		set(fmt.Sprintf("F%d", row), formatAmount(invoice.EnvironmentFeeAmount))
		set(fmt.Sprintf("G%d", row), formatAmount(invoice.VATAmount))
		set(fmt.Sprintf("H%d", row), formatAmount(invoice.LatePaymentFee))
		set(fmt.Sprintf("I%d", row), formatAmount(invoice.TotalAmount))
		set(fmt.Sprintf("J%d", row), string(invoice.PaymentStatus))
		if invoice.PaidDate != nil {
			set(fmt.Sprintf("K%d", row), formatDate(*invoice.PaidDate))
		}
	}

	_ = file.SetColWidth(sheet, "A", "A", 24)
	_ = file.SetColWidth(sheet, "B", "C", 14)
	_ = file.SetColWidth(sheet, "D", "D", 12)
	_ = file.SetColWidth(sheet, "E", "I", 16)
	_ = file.SetColWidth(sheet, "J", "K", 14)
	return nil
}

func sheetNameForKind(kind model.InvoiceKind) string {
	switch kind {
	case model.InvoiceKindWater:
		return "Water"
	case model.InvoiceKindInstallation:
		return "Installation"
	case model.InvoiceKindService:
		return "Service"
	default:
		return "Other"
	}
}

func filterByKind(invoices []model.Invoice, kind model.InvoiceKind) []model.Invoice {
	var out []model.Invoice
	for _, invoice := range invoices {
		if invoice.Kind == kind {
			out = append(out, invoice)
		}
	}
	return out
}

func sumTotal(invoices []model.Invoice) decimal.Decimal {
	total := decimal.Zero
	for _, invoice := range invoices {
		if invoice.PaymentStatus == model.PaymentStatusCancelled {
			continue
		}
		total = total.Add(invoice.TotalAmount)
	}
	return total
}

func sumTotalByStatus(invoices []model.Invoice, status model.PaymentStatus) decimal.Decimal {
	total := decimal.Zero
	for _, invoice := range invoices {
		if invoice.PaymentStatus == status {
			total = total.Add(invoice.TotalAmount)
		}
	}
	return total
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatAmount(value decimal.Decimal) string {
	return value.StringFixed(0)
}
