// Copyright 2024 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package render fills the confirmation email template from an order
// event. All interpolated fields are HTML-escaped and rendering the same
// event twice yields byte-identical output.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"

	"github.com/bookhive/order-notifier/pkg/events"
)

//go:embed templates/order_confirmation.html.tmpl
var defaultTemplateFS embed.FS

const defaultTemplateName = "templates/order_confirmation.html.tmpl"

// Subject is the subject line of every confirmation email.
const Subject = "Your Booking QR Code"

// TemplateError indicates the template could not be executed against the
// event, for example because it references a field the event does not
// carry. This is a configuration problem, not an input problem.
type TemplateError struct {
	Err error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error: %v", e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// RenderedNotification is the rendered output for a single order event. It
// is owned by the request that produced it.
type RenderedNotification struct {
	Subject string
	HTML    []byte
}

// Renderer renders order events into HTML notifications.
type Renderer struct {
	tmpl *template.Template
}

// itemRow is one line item row in the rendered table.
type itemRow struct {
	Name     string
	Quantity int
	Total    string
}

// New creates a Renderer. An empty path loads the embedded default
// template, otherwise the template is read from the given file once at
// startup.
func New(path string) (*Renderer, error) {
	var text []byte
	var err error
	if path == "" {
		text, err = defaultTemplateFS.ReadFile(defaultTemplateName)
	} else {
		text, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}

	tmpl, err := template.New("order_confirmation").
		Option("missingkey=error").
		Parse(string(text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return &Renderer{tmpl: tmpl}, nil
}

// Render merges an order event into the template. Identical events always
// produce identical bytes; nothing here consults the clock.
func (r *Renderer) Render(event *events.OrderEvent) (*RenderedNotification, error) {
	rows := make([]itemRow, 0, len(event.Items))
	for _, item := range event.Items {
		rows = append(rows, itemRow{
			Name:     item.Name,
			Quantity: item.Quantity,
			Total:    item.Total,
		})
	}

	data := map[string]any{
		"FirstName":       event.Billing.FirstName,
		"LastName":        event.Billing.LastName,
		"OrderNumber":     event.Number,
		"DateCreated":     event.CreatedAt.Format("2006-01-02 15:04:05"),
		"EntryTime":       event.Window.Entry.Format(events.WindowTimeLayout),
		"StartTime":       event.Window.Start.Format(events.WindowTimeLayout),
		"EndTime":         event.Window.End.Format(events.WindowTimeLayout),
		"Total":           event.Total,
		"Currency":        event.Currency,
		"Items":           rows,
		"BillingAddress":  event.Billing.Format(),
		"ShippingAddress": event.Shipping.Format(),
		"PaymentMethod":   event.PaymentMethodTitle,
		// The footer year derives from the order timestamp so rendering
		// stays deterministic.
		"Year": event.CreatedAt.Year(),
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, &TemplateError{Err: err}
	}

	return &RenderedNotification{
		Subject: Subject,
		HTML:    buf.Bytes(),
	}, nil
}
