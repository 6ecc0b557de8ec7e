package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"

	"github.com/mieldesol/modhu-backend/pkg/db/models"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/money"
)

// orderEmail is the rendered subject and bodies for one message.
type orderEmail struct {
	Subject  string
	HTMLBody string
	TextBody string
}

type orderEmailLine struct {
	Name  string
	Qty   int
	Total string
}

type orderEmailData struct {
	StoreName     string
	RecipientName string
	Number        int64
	Items         []orderEmailLine
	Subtotal      string
	Discount      string
	PromotionName string
	Shipping      string
	Total         string
	Carrier       string
	ShipService   string
	Tracking      string
	Reason        string
}

const orderConfirmationHTML = `<p>Hi{{if .RecipientName}} {{.RecipientName}}{{end}},</p>
<p>Thanks for your order from {{.StoreName}}. Payment for order #{{.Number}} has been received.</p>
<table cellpadding="4">
{{range .Items}}<tr><td>{{.Name}}</td><td>x{{.Qty}}</td><td align="right">{{.Total}}</td></tr>
{{end}}</table>
<p>Subtotal: {{.Subtotal}}<br>
{{if .Discount}}Discount{{if .PromotionName}} ({{.PromotionName}}){{end}}: -{{.Discount}}<br>
{{end}}Shipping: {{.Shipping}}<br>
<strong>Total: {{.Total}}</strong></p>
<p>We will let you know as soon as it ships.</p>
<p>{{.StoreName}}</p>
`

const orderConfirmationText = `Hi{{if .RecipientName}} {{.RecipientName}}{{end}},

Thanks for your order from {{.StoreName}}. Payment for order #{{.Number}} has been received.

{{range .Items}}  {{.Name}} x{{.Qty}}  {{.Total}}
{{end}}
Subtotal: {{.Subtotal}}
{{if .Discount}}Discount{{if .PromotionName}} ({{.PromotionName}}){{end}}: -{{.Discount}}
{{end}}Shipping: {{.Shipping}}
Total: {{.Total}}

We will let you know as soon as it ships.

{{.StoreName}}
`

const orderFulfilledHTML = `<p>Hi{{if .RecipientName}} {{.RecipientName}}{{end}},</p>
<p>Your {{.StoreName}} order #{{.Number}} is on its way{{if .Carrier}} with {{.Carrier}}{{if .ShipService}} ({{.ShipService}}){{end}}{{end}}.</p>
{{if .Tracking}}<p>Tracking number: <strong>{{.Tracking}}</strong></p>
{{end}}<p>{{.StoreName}}</p>
`

const orderFulfilledText = `Hi{{if .RecipientName}} {{.RecipientName}}{{end}},

Your {{.StoreName}} order #{{.Number}} is on its way{{if .Carrier}} with {{.Carrier}}{{if .ShipService}} ({{.ShipService}}){{end}}{{end}}.
{{if .Tracking}}
Tracking number: {{.Tracking}}
{{end}}
{{.StoreName}}
`

const orderCancelledHTML = `<p>Hi{{if .RecipientName}} {{.RecipientName}}{{end}},</p>
<p>Your {{.StoreName}} order #{{.Number}} has been cancelled{{if .Reason}}: {{.Reason}}{{end}}.</p>
<p>If you were charged, the payment has not been captured or will be refunded.</p>
<p>{{.StoreName}}</p>
`

const orderCancelledText = `Hi{{if .RecipientName}} {{.RecipientName}}{{end}},

Your {{.StoreName}} order #{{.Number}} has been cancelled{{if .Reason}}: {{.Reason}}{{end}}.

If you were charged, the payment has not been captured or will be refunded.

{{.StoreName}}
`

var (
	confirmationHTMLTmpl = template.Must(template.New("order_confirmation").Parse(orderConfirmationHTML))
	confirmationTextTmpl = texttemplate.Must(texttemplate.New("order_confirmation").Parse(orderConfirmationText))
	fulfilledHTMLTmpl    = template.Must(template.New("order_fulfilled").Parse(orderFulfilledHTML))
	fulfilledTextTmpl    = texttemplate.Must(texttemplate.New("order_fulfilled").Parse(orderFulfilledText))
	cancelledHTMLTmpl    = template.Must(template.New("order_cancelled").Parse(orderCancelledHTML))
	cancelledTextTmpl    = texttemplate.Must(texttemplate.New("order_cancelled").Parse(orderCancelledText))
)

func buildOrderEmailData(storeName string, order *models.Order) orderEmailData {
	data := orderEmailData{
		StoreName: storeName,
		Number:    order.Number,
		Subtotal:  money.FormatCents(order.SubtotalCents),
		Shipping:  money.FormatCents(order.ShippingCents),
		Total:     money.FormatCents(order.TotalCents),
	}
	if order.DiscountCents > 0 {
		data.Discount = money.FormatCents(order.DiscountCents)
	}
	if order.PromotionName != nil {
		data.PromotionName = *order.PromotionName
	}
	if order.ShippingAddress != nil {
		data.RecipientName = firstName(order.ShippingAddress.Name)
	}
	if order.ShippingLine != nil {
		data.Carrier = order.ShippingLine.Carrier
		data.ShipService = order.ShippingLine.Service
	}
	if order.TrackingNumber != nil {
		data.Tracking = *order.TrackingNumber
	}
	for _, item := range order.Items {
		data.Items = append(data.Items, orderEmailLine{
			Name:  item.Name,
			Qty:   item.Qty,
			Total: money.FormatCents(item.TotalCents),
		})
	}
	return data
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func renderOrderEmail(kind string, storeName string, order *models.Order, reason string) (*orderEmail, error) {
	data := buildOrderEmailData(storeName, order)
	data.Reason = reason

	var subject string
	var htmlTmpl *template.Template
	var textTmpl *texttemplate.Template
	switch kind {
	case templateOrderConfirmation:
		subject = fmt.Sprintf("%s order #%d confirmed", storeName, order.Number)
		htmlTmpl, textTmpl = confirmationHTMLTmpl, confirmationTextTmpl
	case templateOrderFulfilled:
		subject = fmt.Sprintf("%s order #%d is on its way", storeName, order.Number)
		htmlTmpl, textTmpl = fulfilledHTMLTmpl, fulfilledTextTmpl
	case templateOrderCancelled:
		subject = fmt.Sprintf("%s order #%d cancelled", storeName, order.Number)
		htmlTmpl, textTmpl = cancelledHTMLTmpl, cancelledTextTmpl
	default:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "unknown email template")
	}

	var htmlBuf bytes.Buffer
	if err := htmlTmpl.Execute(&htmlBuf, data); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render email html")
	}
	var textBuf bytes.Buffer
	if err := textTmpl.Execute(&textBuf, data); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render email text")
	}

	return &orderEmail{
		Subject:  subject,
		HTMLBody: htmlBuf.String(),
		TextBody: textBuf.String(),
	}, nil
}
