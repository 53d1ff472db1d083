package domain

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"
)

// DefaultReceiptTimeLayout matches the day-first short date used in Peru.
const DefaultReceiptTimeLayout = "2/1/2006, 15:04:05"

const (
	methodPlaceholder  = "No especificado"
	addressPlaceholder = "No proporcionada"
)

type ReceiptLine struct {
	Name     string
	Quantity int
	Subtotal string
}

// Receipt is the printable ticket produced once payment is verified.
type Receipt struct {
	StoreName     string
	IssuedAt      time.Time
	IssuedAtText  string
	Lines         []ReceiptLine
	Total         string
	PaymentMethod string
	Address       string
	MapsLink      string
}

type ReceiptInput struct {
	StoreName     string
	Currency      string
	PaymentMethod PaymentMethod
	Address       string
	Location      *Location
	IssuedAt      time.Time
	TimeLayout    string
}

// ComposeReceipt renders order and checkout details into a Receipt.
func ComposeReceipt(order Order, in ReceiptInput) Receipt {
	store := in.StoreName
	if store == "" {
		store = DefaultStoreName
	}
	currency := in.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	layout := in.TimeLayout
	if layout == "" {
		layout = DefaultReceiptTimeLayout
	}

	r := Receipt{
		StoreName:     store,
		IssuedAt:      in.IssuedAt,
		IssuedAtText:  in.IssuedAt.Format(layout),
		Lines:         make([]ReceiptLine, 0, len(order.Lines)),
		Total:         FormatMoney(currency, order.Total),
		PaymentMethod: methodPlaceholder,
		Address:       addressPlaceholder,
	}
	for _, line := range order.Lines {
		r.Lines = append(r.Lines, ReceiptLine{
			Name:     line.Name,
			Quantity: line.Quantity,
			Subtotal: FormatMoney(currency, line.Subtotal),
		})
	}
	if m := strings.TrimSpace(string(in.PaymentMethod)); m != "" {
		r.PaymentMethod = m
	}
	if a := strings.TrimSpace(in.Address); a != "" {
		r.Address = a
	}
	if in.Location != nil {
		r.MapsLink = MapsLink(*in.Location)
	}
	return r
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`<html>
<head>
  <meta charset="utf-8">
  <title>Boleta - {{.StoreName}}</title>
  <style>
    body{font-family:Arial,Helvetica,sans-serif;padding:20px;color:#111}
    .ticket{max-width:420px;margin:0 auto;border:1px solid #eee;padding:16px;border-radius:8px}
    h2{text-align:center;margin:0 0 8px 0}
    table{width:100%;border-collapse:collapse;margin-top:12px}
    td{padding:6px 4px;border-bottom:1px dashed #ddd}
    .total{font-weight:700;font-size:1.1rem;text-align:right;padding-top:8px}
    .meta{font-size:0.9rem;color:#555;margin-top:8px}
    .actions{margin-top:16px;text-align:center}
    .btn{display:inline-block;padding:8px 12px;border-radius:6px;background:#10b981;color:#fff;text-decoration:none}
  </style>
</head>
<body>
  <div class="ticket">
    <h2>{{.StoreName}} — Boleta</h2>
    <div class="meta">Fecha: {{.IssuedAtText}}</div>
    <table>
      <thead><tr><td>Producto</td><td style="text-align:center">Cant</td><td style="text-align:right">Subtotal</td></tr></thead>
      <tbody>
{{- range .Lines}}
        <tr><td>{{.Name}}</td><td style="text-align:center">{{.Quantity}}</td><td style="text-align:right">{{.Subtotal}}</td></tr>
{{- end}}
      </tbody>
    </table>
    <div class="total">Total: {{.Total}}</div>
    <div class="meta">Método de pago: {{.PaymentMethod}}</div>
    <div class="meta">Dirección: {{.Address}}</div>
{{- if .MapsLink}}
    <div class="meta">Mapa: <a href="{{.MapsLink}}" target="_blank">Ver ubicación</a></div>
{{- end}}
    <div class="actions">
      <a href="#" onclick="window.print();return false;" class="btn">Imprimir / Guardar</a>
    </div>
  </div>
</body>
</html>
`))

// RenderHTML writes the standalone printable document.
func (r Receipt) RenderHTML(w io.Writer) error {
	return receiptTemplate.Execute(w, r)
}

// Text renders the receipt for terminals.
func (r Receipt) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s — Boleta\n", r.StoreName)
	fmt.Fprintf(&b, "Fecha: %s\n", r.IssuedAtText)
	for _, line := range r.Lines {
		fmt.Fprintf(&b, "%-24s %4d %12s\n", line.Name, line.Quantity, line.Subtotal)
	}
	fmt.Fprintf(&b, "Total: %s\n", r.Total)
	fmt.Fprintf(&b, "Método de pago: %s\n", r.PaymentMethod)
	fmt.Fprintf(&b, "Dirección: %s\n", r.Address)
	if r.MapsLink != "" {
		fmt.Fprintf(&b, "Mapa: %s\n", r.MapsLink)
	}
	return b.String()
}
