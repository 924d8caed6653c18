package service

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"storefront/internal/domain"
)

const layout = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
{{template "content" .}}
<p style="color: #888; font-size: 12px;">This is an automated message from the storefront.</p>
</body>
</html>`

var contents = map[domain.NotificationType]string{
	domain.NotificationOrderConfirmation: `{{define "content"}}
<h2>Thank you for your order, {{.CustomerName}}!</h2>
<p>Order <strong>{{.OrderNumber}}</strong> is {{.Status}}.</p>
{{template "items" .}}
{{if .EstimatedDelivery}}<p>Estimated delivery: {{.EstimatedDelivery}}</p>{{end}}
{{end}}`,

	domain.NotificationStatusUpdate: `{{define "content"}}
<h2>Order {{.OrderNumber}} update</h2>
<p>Your order moved from {{.PreviousStatus}} to <strong>{{.Status}}</strong>.</p>
{{if .Notes}}<p>{{.Notes}}</p>{{end}}
{{end}}`,

	domain.NotificationOrderShipped: `{{define "content"}}
<h2>Order {{.OrderNumber}} is on its way</h2>
{{if .CourierName}}<p>Courier: {{.CourierName}}</p>{{end}}
{{if .TrackingNumber}}<p>Tracking number: {{.TrackingNumber}}</p>{{end}}
{{if .TrackingURL}}<p><a href="{{.TrackingURL}}">Track your package</a></p>{{end}}
{{end}}`,

	domain.NotificationOrderDelivered: `{{define "content"}}
<h2>Order {{.OrderNumber}} was delivered</h2>
<p>We hope you enjoy your purchase, {{.CustomerName}}.</p>
{{end}}`,

	domain.NotificationOrderCancelled: `{{define "content"}}
<h2>Order {{.OrderNumber}} was cancelled</h2>
{{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
{{if .Refunded}}<p>A refund of {{.Total}} has been initiated to your original payment method.</p>{{end}}
{{end}}`,

	domain.NotificationAdminNewOrder: `{{define "content"}}
<h2>New order {{.OrderNumber}}</h2>
<p>Customer: {{.CustomerName}} ({{.Phone}})</p>
<p>Payment: {{.PaymentMethod}}, total {{.Total}}</p>
{{template "items" .}}
{{end}}`,

	domain.NotificationAdminBatch: `{{define "content"}}
<h2>{{len .Orders}} new orders</h2>
<table>
<tr><th>Order</th><th>Customer</th><th>Total</th></tr>
{{range .Orders}}<tr><td>{{.OrderNumber}}</td><td>{{.CustomerName}}</td><td>{{.Total}}</td></tr>
{{end}}</table>
<p>Combined value: {{.Total}}</p>
{{end}}`,

	domain.NotificationAdminPriority: `{{define "content"}}
<h2>Priority order {{.OrderNumber}}</h2>
<p>{{.Reason}}</p>
<p>Customer: {{.CustomerName}} ({{.Phone}}), total {{.Total}}</p>
{{template "items" .}}
{{end}}`,

	domain.NotificationReportReady: `{{define "content"}}
<h2>Your order report is ready</h2>
<p>Orders: {{.Report.TotalOrders}}, revenue {{.Report.TotalRevenue}}, average {{.Report.AverageOrderValue}}</p>
<table>
<tr><th>Status</th><th>Orders</th><th>Revenue</th></tr>
{{range $status, $m := .Report.ByStatus}}<tr><td>{{$status}}</td><td>{{$m.Count}}</td><td>{{$m.Revenue}}</td></tr>
{{end}}</table>
<p>Report id: {{.ReportID}}</p>
{{end}}`,
}

const itemsPartial = `{{define "items"}}{{if .Items}}
<table>
<tr><th>Item</th><th>Qty</th><th>Subtotal</th></tr>
{{range .Items}}<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{.Subtotal}}</td></tr>
{{end}}</table>
<p>Total: {{.Total}}</p>
{{end}}{{end}}`

var templates = func() map[domain.NotificationType]*template.Template {
	base := template.Must(template.New("layout").Parse(layout))
	template.Must(base.Parse(itemsPartial))

	out := make(map[domain.NotificationType]*template.Template, len(contents))
	for typ, content := range contents {
		t := template.Must(base.Clone())
		out[typ] = template.Must(t.Parse(content))
	}
	return out
}()

type itemView struct {
	Name     string
	Quantity int
	Subtotal string
}

type orderView struct {
	OrderNumber       string
	CustomerName      string
	Phone             string
	Status            string
	PreviousStatus    string
	PaymentMethod     string
	Total             string
	Items             []itemView
	EstimatedDelivery string
	TrackingNumber    string
	TrackingURL       string
	CourierName       string
	Reason            string
	Notes             string
	Refunded          bool
}

type batchView struct {
	Orders []orderView
	Total  string
}

type reportView struct {
	ReportID string
	Report   *domain.ReportMetrics
}

func newOrderView(o *domain.Order) orderView {
	v := orderView{
		OrderNumber:    o.OrderNumber,
		CustomerName:   o.ShippingAddress.Name,
		Phone:          o.ShippingAddress.Phone,
		Status:         string(o.Status),
		PaymentMethod:  string(o.PaymentMethod),
		Total:          o.Total.StringFixed(2),
		TrackingNumber: o.TrackingNumber,
		TrackingURL:    o.TrackingURL,
		CourierName:    o.CourierName,
		Reason:         o.CancellationReason,
		Refunded:       o.PaymentStatus == domain.PaymentStatusRefunded,
	}
	for _, it := range o.Items {
		name := it.ProductName
		if it.VariantName != "" {
			name = fmt.Sprintf("%s (%s)", name, it.VariantName)
		}
		v.Items = append(v.Items, itemView{Name: name, Quantity: it.Quantity, Subtotal: it.Subtotal.StringFixed(2)})
	}
	if o.EstimatedDeliveryDate != nil {
		v.EstimatedDelivery = o.EstimatedDeliveryDate.Format("Mon, 02 Jan 2006")
	}
	if n := len(o.StatusHistory); n > 0 {
		v.Notes = o.StatusHistory[n-1].Notes
	}
	return v
}

func render(typ domain.NotificationType, data interface{}) (string, error) {
	t, ok := templates[typ]
	if !ok {
		return "", fmt.Errorf("no template for notification type %s", typ)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", typ, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func subjectFor(typ domain.NotificationType, v orderView) string {
	switch typ {
	case domain.NotificationOrderConfirmation:
		return fmt.Sprintf("We received your order %s", v.OrderNumber)
	case domain.NotificationOrderShipped:
		return fmt.Sprintf("Order %s has shipped", v.OrderNumber)
	case domain.NotificationOrderDelivered:
		return fmt.Sprintf("Order %s was delivered", v.OrderNumber)
	case domain.NotificationOrderCancelled:
		return fmt.Sprintf("Order %s was cancelled", v.OrderNumber)
	case domain.NotificationAdminNewOrder:
		return fmt.Sprintf("New order %s (%s)", v.OrderNumber, v.Total)
	case domain.NotificationAdminPriority:
		return fmt.Sprintf("Priority order %s (%s)", v.OrderNumber, v.Total)
	default:
		return fmt.Sprintf("Order %s is now %s", v.OrderNumber, v.Status)
	}
}
