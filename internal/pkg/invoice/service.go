// internal/pkg/invoice/service.go
package invoice

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/SebastiaanKlippert/go-wkhtmltopdf"

	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/order"
)

// Service renders order invoices as PDF
type Service struct {
	config *config.Config
}

// NewService creates a new invoice service
func NewService(cfg *config.Config) *Service {
	return &Service{config: cfg}
}

// Generate renders a PDF invoice for an order. Line amounts come straight
// from the order's frozen values; nothing is re-read from the catalog.
func (s *Service) Generate(ord *order.Order) (*bytes.Buffer, error) {
	data := invoiceData{
		InvoiceNumber: fmt.Sprintf("INV-%s", ord.OrderNumber),
		InvoiceDate:   time.Now().UTC().Format("January 2, 2006"),
		Order:         ord,
		Company: companyInfo{
			Name:    s.config.Company.Name,
			Address: s.config.Company.Address,
			Phone:   s.config.Company.Phone,
			Email:   s.config.Company.Email,
			Website: s.config.Company.Website,
		},
	}

	htmlContent, err := renderHTML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to render invoice HTML: %w", err)
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF generator: %w", err)
	}

	pdfg.Dpi.Set(300)
	pdfg.Orientation.Set(wkhtmltopdf.OrientationPortrait)

	page := wkhtmltopdf.NewPageReader(bytes.NewReader([]byte(htmlContent)))
	page.FooterRight.Set("[page]")
	page.FooterFontSize.Set(9)
	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return nil, fmt.Errorf("failed to create PDF: %w", err)
	}

	return bytes.NewBuffer(pdfg.Bytes()), nil
}

func renderHTML(data invoiceData) (string, error) {
	tmpl := template.Must(template.New("invoice").Funcs(template.FuncMap{
		"cents": formatCents,
		"line": func(price int64, qty int) string {
			return formatCents(price * int64(qty))
		},
	}).Parse(invoiceTemplate))

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// formatCents renders a cent amount as a decimal currency string
func formatCents(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}

type invoiceData struct {
	InvoiceNumber string
	InvoiceDate   string
	Order         *order.Order
	Company       companyInfo
}

type companyInfo struct {
	Name    string
	Address string
	Phone   string
	Email   string
	Website string
}

const invoiceTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Invoice {{.InvoiceNumber}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 0; padding: 20px; color: #333; }
        .header { display: flex; justify-content: space-between; margin-bottom: 30px; }
        .company h1 { margin: 0 0 5px 0; font-size: 22px; }
        .meta { text-align: right; }
        table { width: 100%; border-collapse: collapse; margin-top: 20px; }
        th { background: #f4f4f4; text-align: left; padding: 8px; border-bottom: 2px solid #ddd; }
        td { padding: 8px; border-bottom: 1px solid #eee; }
        .amount { text-align: right; }
        .totals { margin-top: 20px; width: 300px; margin-left: auto; }
        .totals td { border: none; padding: 4px 8px; }
        .totals .grand td { font-weight: bold; border-top: 2px solid #333; }
    </style>
</head>
<body>
    <div class="header">
        <div class="company">
            <h1>{{.Company.Name}}</h1>
            <div>{{.Company.Address}}</div>
            <div>{{.Company.Phone}} {{.Company.Email}}</div>
            <div>{{.Company.Website}}</div>
        </div>
        <div class="meta">
            <h2>Invoice {{.InvoiceNumber}}</h2>
            <div>Date: {{.InvoiceDate}}</div>
            <div>Order: {{.Order.OrderNumber}}</div>
            <div>Status: {{.Order.Status}}</div>
        </div>
    </div>

    <table>
        <thead>
            <tr>
                <th>Variant</th>
                <th class="amount">Unit Price</th>
                <th class="amount">Qty</th>
                <th class="amount">Line Total</th>
            </tr>
        </thead>
        <tbody>
            {{range .Order.Items}}
            <tr>
                <td>#{{.VariantID}}</td>
                <td class="amount">{{cents .Price}}</td>
                <td class="amount">{{.Quantity}}</td>
                <td class="amount">{{line .Price .Quantity}}</td>
            </tr>
            {{end}}
        </tbody>
    </table>

    <table class="totals">
        <tr><td>Subtotal</td><td class="amount">{{cents .Order.SubtotalAmount}}</td></tr>
        <tr><td>Tax</td><td class="amount">{{cents .Order.TaxAmount}}</td></tr>
        {{if gt .Order.DiscountAmount 0}}
        <tr><td>Discount</td><td class="amount">-{{cents .Order.DiscountAmount}}</td></tr>
        {{end}}
        <tr class="grand"><td>Total</td><td class="amount">{{cents .Order.TotalAmount}}</td></tr>
    </table>
</body>
</html>
`
