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

// Package metrics registers the service's prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhooksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_notifier_webhooks_received_total",
		Help: "Total number of webhook requests received",
	})

	WebhooksUnauthorized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_notifier_webhooks_unauthorized_total",
		Help: "Total number of webhook requests rejected for a bad signature",
	})

	WebhooksMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_notifier_webhooks_malformed_total",
		Help: "Total number of webhook requests rejected as unparseable",
	})

	RenderFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_notifier_render_failures_total",
		Help: "Total number of template rendering failures",
	})

	NotificationsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_notifier_notifications_delivered_total",
		Help: "Total number of notifications delivered",
	})

	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_notifier_delivery_failures_total",
		Help: "Total number of notifications that failed delivery after retries",
	})

	DeliveryAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_notifier_delivery_attempts_total",
		Help: "Total number of transport send attempts, including retries",
	})
)
