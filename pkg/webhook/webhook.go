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

package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/abcxyz/pkg/logging"
	"github.com/google/uuid"

	"github.com/bookhive/order-notifier/pkg/events"
	"github.com/bookhive/order-notifier/pkg/mailer"
	"github.com/bookhive/order-notifier/pkg/metrics"
)

const (
	// SignatureHeader is the WooCommerce header key used to pass the
	// base64-encoded HMAC-SHA256 of the payload.
	SignatureHeader = "X-WC-Webhook-Signature"

	// TopicHeader is the WooCommerce header key used to pass the event
	// topic, e.g. "order.created".
	TopicHeader = "X-WC-Webhook-Topic"

	// DeliveryIDHeader is the WooCommerce header key used to pass the
	// unique ID for the webhook delivery.
	DeliveryIDHeader = "X-WC-Webhook-Delivery-ID"

	// qrFilename is the inline attachment name; the template references it
	// as the image Content-ID.
	qrFilename = "qr_code.png"

	// mb is used for conversion to megabytes.
	mb = 1000000
)

var (
	statusOK = map[string]string{"status": "ok"}

	errReadingPayload   = fmt.Errorf("failed to read webhook payload")
	errNoPayload        = fmt.Errorf("no payload received")
	errInvalidSignature = fmt.Errorf("failed to validate webhook signature")
	errMalformedPayload = fmt.Errorf("failed to parse order payload")
	errRenderingFailed  = fmt.Errorf("failed to render notification")
	errBuildingPass     = fmt.Errorf("failed to build access pass")
	errDeliveryFailed   = fmt.Errorf("failed to deliver notification")
	errDeliveryTimeout  = fmt.Errorf("notification delivery timed out")
)

// handleWebhook handles the logic for receiving order webhooks and
// dispatching confirmation emails.
func (s *Server) handleWebhook() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		metrics.WebhooksReceived.Inc()

		deliveryID := r.Header.Get(DeliveryIDHeader)
		if deliveryID == "" {
			deliveryID = uuid.NewString()
		}
		topic := r.Header.Get(TopicHeader)
		signature := r.Header.Get(SignatureHeader)

		payload, err := io.ReadAll(io.LimitReader(r.Body, 5*mb))
		if err != nil {
			logger.ErrorContext(ctx, "failed to read webhook request body",
				"code", http.StatusInternalServerError,
				"body", errReadingPayload,
				"error", err)
			s.h.RenderJSON(w, http.StatusInternalServerError, errReadingPayload)
			return
		}

		if len(payload) == 0 {
			logger.ErrorContext(ctx, "no payload received",
				"code", http.StatusBadRequest,
				"body", errNoPayload,
				"deliveryID", deliveryID)
			s.h.RenderJSON(w, http.StatusBadRequest, errNoPayload)
			return
		}

		if !s.isValidSignature(signature, payload) {
			metrics.WebhooksUnauthorized.Inc()
			logger.ErrorContext(ctx, "failed to validate webhook signature",
				"code", http.StatusUnauthorized,
				"body", errInvalidSignature,
				"deliveryID", deliveryID,
				"topic", topic)
			s.h.RenderJSON(w, http.StatusUnauthorized, errInvalidSignature)
			return
		}

		event, err := events.ParseOrderEvent(payload)
		if err != nil {
			metrics.WebhooksMalformed.Inc()
			logger.ErrorContext(ctx, "failed to parse order payload",
				"code", http.StatusBadRequest,
				"body", errMalformedPayload,
				"deliveryID", deliveryID,
				"error", err)
			s.h.RenderJSON(w, http.StatusBadRequest, errMalformedPayload)
			return
		}

		notification, err := s.templates.Render(event)
		if err != nil {
			metrics.RenderFailures.Inc()
			logger.ErrorContext(ctx, "failed to render notification",
				"code", http.StatusInternalServerError,
				"body", errRenderingFailed,
				"deliveryID", deliveryID,
				"order", event.Number,
				"error", err)
			s.h.RenderJSON(w, http.StatusInternalServerError, errRenderingFailed)
			return
		}

		pass, err := s.passes.Pass(event.Window.Start, event.Window.End)
		if err != nil {
			logger.ErrorContext(ctx, "failed to build access pass",
				"code", http.StatusInternalServerError,
				"body", errBuildingPass,
				"deliveryID", deliveryID,
				"order", event.Number,
				"error", err)
			s.h.RenderJSON(w, http.StatusInternalServerError, errBuildingPass)
			return
		}

		qrPNG, err := s.passes.QRPNG(pass)
		if err != nil {
			logger.ErrorContext(ctx, "failed to encode qr code",
				"code", http.StatusInternalServerError,
				"body", errBuildingPass,
				"deliveryID", deliveryID,
				"order", event.Number,
				"error", err)
			s.h.RenderJSON(w, http.StatusInternalServerError, errBuildingPass)
			return
		}

		result, err := s.dispatcher.Dispatch(ctx, &mailer.Message{
			To:      event.Billing.Email,
			Subject: notification.Subject,
			HTML:    notification.HTML,
			Inline:  []mailer.InlineImage{{Filename: qrFilename, Content: qrPNG}},
		})
		if result != nil {
			metrics.DeliveryAttempts.Add(float64(result.Attempts))
		}
		if err != nil {
			metrics.DeliveryFailures.Inc()
			code, body := deliveryStatus(err)
			logger.ErrorContext(ctx, "failed to deliver notification",
				"code", code,
				"body", body,
				"deliveryID", deliveryID,
				"order", event.Number,
				"attempts", attemptCount(result),
				"error", err)
			s.h.RenderJSON(w, code, body)
			return
		}

		metrics.NotificationsDelivered.Inc()
		logger.InfoContext(ctx, "notification delivered",
			"code", http.StatusOK,
			"deliveryID", deliveryID,
			"order", event.Number,
			"attempts", attemptCount(result))
		s.h.RenderJSON(w, http.StatusOK, statusOK)
	})
}

// isValidSignature validates the http request signature against the
// signature of the payload. WooCommerce sends the base64 of the
// HMAC-SHA256 digest.
func (s *Server) isValidSignature(signature string, payload []byte) bool {
	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write(payload)
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(signature), []byte(want)) == 1
}

// deliveryStatus maps a dispatch failure onto the response status. A spent
// deadline is the transport stalling (504), everything else is the
// transport rejecting us (502).
func deliveryStatus(err error) (int, error) {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, errDeliveryTimeout
	}
	return http.StatusBadGateway, errDeliveryFailed
}

func attemptCount(result *mailer.DeliveryResult) int {
	if result == nil {
		return 0
	}
	return result.Attempts
}
