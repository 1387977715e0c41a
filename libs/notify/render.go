package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"

	"github.com/decorstudio/platform/libs/money"
)

var funcs = template.FuncMap{"money": money.Format}

type mailTemplate struct {
	subject *template.Template
	body    *template.Template
}

func mustTemplate(subject, body string) mailTemplate {
	return mailTemplate{
		subject: template.Must(template.New("subject").Funcs(funcs).Parse(subject)),
		body:    template.Must(template.New("body").Funcs(funcs).Parse(body)),
	}
}

var templates = map[Kind]mailTemplate{
	KindAppointmentStatus: mustTemplate(
		`Your consultation on {{.P.Date}} at {{.P.StartTime}}: {{.P.Status}}`,
		`Hello {{.Name}},

Your consultation request ({{.P.EventType}}) on {{.P.Date}} at {{.P.StartTime}} is now {{.P.Status}}.

Reference: {{.P.AppointmentID}}
`),
	KindQuoteLink: mustTemplate(
		`Your quote {{.P.QuoteNumber}}`,
		`Hello {{.Name}},

Your quote {{.P.QuoteNumber}} for {{money .P.Total .P.Currency}} is ready:
{{.P.Link}}

It is valid until {{.P.ExpiresAt.Format "2006-01-02"}}.
`),
	KindPaymentRequest: mustTemplate(
		`Payment request for quote {{.P.QuoteNumber}}: {{.P.Label}}`,
		`Hello {{.Name}},

{{.P.Label}} of quote {{.P.QuoteNumber}} ({{money .P.Amount .P.Currency}}) can be paid here:
{{.P.Link}}
`),
	KindPaymentConfirmation: mustTemplate(
		`Payment received for quote {{.P.QuoteNumber}}`,
		`Hello {{.Name}},

We received {{money .P.Amount .P.Currency}} for {{.P.Label}} of quote {{.P.QuoteNumber}}.
Invoice: {{.P.InvoiceNumber}}
Paid so far: {{money .P.TotalPaid .P.Currency}}. Remaining: {{money .P.Remaining .P.Currency}}.
`),
	KindInvoice: mustTemplate(
		`Invoice {{.P.InvoiceNumber}}`,
		`Hello {{.Name}},

Thank you for your payment for quote {{.P.QuoteNumber}}.

Invoice {{.P.InvoiceNumber}}
Net: {{money .P.Amount .P.Currency}}
VAT: {{money .P.VATAmount .P.Currency}}
Total: {{money .P.TotalAmount .P.Currency}}
`),
}

var htmlLayout = htmltemplate.Must(htmltemplate.New("layout").Parse(
	`<!doctype html><html><body><pre style="font-family:sans-serif">{{.}}</pre></body></html>`))

// Render produces the subject and bodies for msg.
func Render(msg Message) (Email, error) {
	if err := msg.Validate(); err != nil {
		return Email{}, err
	}
	tpl, ok := templates[msg.Kind]
	if !ok {
		return Email{}, fmt.Errorf("%w: no template for %s", ErrInvalidMessage, msg.Kind)
	}
	data := templateData(msg)

	var subject, text, html bytes.Buffer
	if err := tpl.subject.Execute(&subject, data); err != nil {
		return Email{}, fmt.Errorf("render %s subject: %w", msg.Kind, err)
	}
	if err := tpl.body.Execute(&text, data); err != nil {
		return Email{}, fmt.Errorf("render %s body: %w", msg.Kind, err)
	}
	if err := htmlLayout.Execute(&html, text.String()); err != nil {
		return Email{}, fmt.Errorf("render %s html: %w", msg.Kind, err)
	}
	return Email{To: msg.To, Subject: subject.String(), Text: text.String(), HTML: html.String()}, nil
}

type view struct {
	Name string
	P    any
}

func templateData(msg Message) view {
	v := view{Name: msg.To.Name}
	if v.Name == "" {
		v.Name = msg.To.Email
	}
	switch msg.Kind {
	case KindAppointmentStatus:
		v.P = msg.StatusUpdate
	case KindQuoteLink:
		v.P = msg.QuoteLink
	case KindPaymentRequest:
		v.P = msg.PaymentRequest
	case KindPaymentConfirmation:
		v.P = msg.PaymentConfirmation
	case KindInvoice:
		v.P = msg.Invoice
	}
	return v
}
