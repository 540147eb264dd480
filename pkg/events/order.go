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

// Package events defines the order event parsed from inbound WooCommerce
// webhook payloads.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// WindowTimeLayout is the layout WooCommerce booking plugins use for the
	// display time meta values.
	WindowTimeLayout = "02/01/2006 15:04"

	// createdAtLayout matches the zone-less date_created field of the order
	// payload. Only the first 19 characters of the raw value are significant.
	createdAtLayout = "2006-01-02T15:04:05"

	// metaKeyWindowStart and metaKeyWindowEnd are the line item meta keys
	// that carry the booked access window.
	metaKeyWindowStart = "phive_display_time_from"
	metaKeyWindowEnd   = "phive_display_time_to"

	// placeholderWindowTime is used when an order carries no timed line
	// items at all.
	placeholderWindowTime = "01/01/2025 00:00"

	// entryLeadTime is how far before the booked start the venue admits the
	// customer.
	entryLeadTime = 10 * time.Minute
)

// ErrMalformedPayload is returned when the webhook body cannot be parsed
// into an order event.
var ErrMalformedPayload = errors.New("malformed order payload")

// Address is a billing or shipping contact block of an order.
type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Format joins the non-empty address parts into a single display line.
func (a *Address) Format() string {
	parts := make([]string, 0, 8)
	for _, p := range []string{
		a.FirstName, a.LastName,
		a.Address1, a.Address2,
		a.City, a.State, a.Postcode,
		a.Country,
	} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "N/A"
	}
	return strings.Join(parts, ", ")
}

// MetaData is a single key/value meta entry attached to a line item. Values
// are either scalars or lists depending on the plugin that wrote them.
type MetaData struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// LineItem is a purchased item on the order.
type LineItem struct {
	Name     string     `json:"name"`
	Quantity int        `json:"quantity"`
	Total    string     `json:"total"`
	MetaData []MetaData `json:"meta_data"`
}

// BookingWindow is the access window booked by the order. Entry opens
// slightly before the window starts.
type BookingWindow struct {
	Start time.Time
	End   time.Time
	Entry time.Time
}

// OrderEvent is the normalized, immutable order record parsed from a
// webhook payload. It lives for the duration of a single request.
type OrderEvent struct {
	Number             string
	CreatedAt          time.Time
	Currency           string
	Total              string
	PaymentMethodTitle string
	Billing            Address
	Shipping           Address
	Items              []LineItem
	Window             BookingWindow
}

// flexString decodes a JSON value that may arrive either as a string or a
// bare number. WooCommerce emits order numbers as strings but some plugins
// rewrite them as integers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err //nolint:wrapcheck // Want passthrough
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err //nolint:wrapcheck // Want passthrough
	}
	*f = flexString(n.String())
	return nil
}

// orderPayload is the raw wire shape of a WooCommerce order webhook.
type orderPayload struct {
	Number             flexString `json:"number"`
	DateCreated        string     `json:"date_created"`
	Currency           string     `json:"currency"`
	Total              string     `json:"total"`
	PaymentMethodTitle string     `json:"payment_method_title"`
	Billing            Address    `json:"billing"`
	Shipping           Address    `json:"shipping"`
	LineItems          []LineItem `json:"line_items"`
}

// ParseOrderEvent parses raw webhook body bytes into an OrderEvent. All
// failures wrap [ErrMalformedPayload].
func ParseOrderEvent(payload []byte) (*OrderEvent, error) {
	var raw orderPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	if raw.Billing.Email == "" {
		return nil, fmt.Errorf("%w: order has no billing email", ErrMalformedPayload)
	}

	window, err := extractWindow(raw.LineItems)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	event := &OrderEvent{
		Number:             string(raw.Number),
		Currency:           raw.Currency,
		Total:              raw.Total,
		PaymentMethodTitle: raw.PaymentMethodTitle,
		Billing:            raw.Billing,
		Shipping:           raw.Shipping,
		Items:              raw.LineItems,
		Window:             window,
	}
	if event.Number == "" {
		event.Number = "N/A"
	}
	if event.PaymentMethodTitle == "" {
		event.PaymentMethodTitle = "N/A"
	}
	if created := raw.DateCreated; len(created) >= len(createdAtLayout) {
		t, err := time.Parse(createdAtLayout, created[:len(createdAtLayout)])
		if err != nil {
			return nil, fmt.Errorf("%w: bad date_created %q: %w", ErrMalformedPayload, created, err)
		}
		event.CreatedAt = t
	}

	return event, nil
}

// extractWindow pulls the booked access window out of the line item meta.
// The first item that carries both keys wins. Orders without timed items
// fall back to the placeholder window.
func extractWindow(items []LineItem) (BookingWindow, error) {
	var startRaw, endRaw string
	for _, item := range items {
		if v := metaValue(item.MetaData, metaKeyWindowStart); v != "" {
			startRaw = v
		}
		if v := metaValue(item.MetaData, metaKeyWindowEnd); v != "" {
			endRaw = v
		}
		if startRaw != "" && endRaw != "" {
			break
		}
	}

	if startRaw == "" || endRaw == "" {
		startRaw, endRaw = placeholderWindowTime, placeholderWindowTime
	}

	start, err := time.Parse(WindowTimeLayout, strings.TrimSpace(startRaw))
	if err != nil {
		return BookingWindow{}, fmt.Errorf("bad window start %q: %w", startRaw, err)
	}
	end, err := time.Parse(WindowTimeLayout, strings.TrimSpace(endRaw))
	if err != nil {
		return BookingWindow{}, fmt.Errorf("bad window end %q: %w", endRaw, err)
	}

	return BookingWindow{
		Start: start,
		End:   end,
		Entry: start.Add(-entryLeadTime),
	}, nil
}

// metaValue returns the value for key from a meta data list. List values
// collapse to their first element, matching how the booking plugin writes
// them.
func metaValue(meta []MetaData, key string) string {
	for _, m := range meta {
		if m.Key != key {
			continue
		}
		switch v := m.Value.(type) {
		case string:
			return v
		case []any:
			if len(v) == 0 {
				return ""
			}
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}
