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

// Package webhook is the webhook server turning order webhooks into
// confirmation emails.
package webhook

import (
	"context"
	"fmt"
	"net/http"

	"github.com/abcxyz/pkg/healthcheck"
	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/renderer"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bookhive/order-notifier/pkg/mailer"
	"github.com/bookhive/order-notifier/pkg/render"
	"github.com/bookhive/order-notifier/pkg/ticket"
	"github.com/bookhive/order-notifier/pkg/version"
)

// Dispatcher sends a rendered notification to its recipient. Satisfied by
// [*mailer.Dispatcher]; tests substitute fakes.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg *mailer.Message) (*mailer.DeliveryResult, error)
}

// Server provides the server implementation.
type Server struct {
	h             *renderer.Renderer
	webhookSecret string
	templates     *render.Renderer
	passes        *ticket.Encoder
	dispatcher    Dispatcher
}

// WebhookClientOptions encapsulate overrides used by tests.
type WebhookClientOptions struct {
	// DispatcherOverride replaces the SMTP dispatcher when set.
	DispatcherOverride Dispatcher
}

// NewServer creates a new HTTP server implementation that will handle
// receiving webhook payloads.
func NewServer(ctx context.Context, h *renderer.Renderer, cfg *Config, wco *WebhookClientOptions) (*Server, error) {
	templates, err := render.New(cfg.TemplatePath)
	if err != nil {
		return nil, fmt.Errorf("render.New: %w", err)
	}

	passes, err := ticket.NewEncoder(cfg.PassEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("ticket.NewEncoder: %w", err)
	}

	dispatcher := wco.DispatcherOverride
	if dispatcher == nil {
		transport, err := mailer.NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort,
			cfg.SMTPUsername, cfg.SMTPPassword, cfg.DeliveryTimeout)
		if err != nil {
			return nil, fmt.Errorf("mailer.NewSMTPTransport: %w", err)
		}
		dispatcher, err = mailer.NewDispatcher(transport, cfg.MailFrom,
			uint64(cfg.RetryLimit), cfg.DeliveryTimeout)
		if err != nil {
			return nil, fmt.Errorf("mailer.NewDispatcher: %w", err)
		}
	}

	return &Server{
		h:             h,
		webhookSecret: cfg.WebhookSecret,
		templates:     templates,
		passes:        passes,
		dispatcher:    dispatcher,
	}, nil
}

// Routes creates a ServeMux of all of the routes that
// this Router supports.
func (s *Server) Routes(ctx context.Context) http.Handler {
	logger := logging.FromContext(ctx)
	mux := http.NewServeMux()
	mux.Handle("/healthz", healthcheck.HandleHTTPHealthCheck())
	mux.Handle("/webhook", s.handleWebhook())
	mux.Handle("/version", s.handleVersion())
	mux.Handle("/metrics", promhttp.Handler())

	// Middleware
	root := logging.HTTPInterceptor(logger, "")(mux)

	return root
}

// handleVersion is a simple http.HandlerFunc that responds
// with version information for the server.
func (s *Server) handleVersion() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"version":%q}`+"\n", version.HumanVersion)
	})
}
