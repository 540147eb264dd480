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
	"testing"
	"time"

	"github.com/abcxyz/pkg/testutil"
)

func validConfig() *Config {
	return &Config{
		Port:              "8080",
		WebhookSecret:     "test-webhook-secret",
		SMTPHost:          "smtp.example.com",
		SMTPPort:          465,
		SMTPUsername:      "sender@example.com",
		SMTPPassword:      "app-password",
		MailFrom:          "sender@example.com",
		PassEncryptionKey: "0123456789abcdef0123456789abcdef",
		RetryLimit:        2,
		DeliveryTimeout:   10 * time.Second,
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "success",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "missing_webhook_secret",
			mutate:  func(cfg *Config) { cfg.WebhookSecret = "" },
			wantErr: "WEBHOOK_SECRET is required",
		},
		{
			name:    "missing_smtp_host",
			mutate:  func(cfg *Config) { cfg.SMTPHost = "" },
			wantErr: "SMTP_HOST is required",
		},
		{
			name:    "invalid_smtp_port",
			mutate:  func(cfg *Config) { cfg.SMTPPort = 70000 },
			wantErr: "SMTP_PORT must be a valid port",
		},
		{
			name:    "missing_smtp_username",
			mutate:  func(cfg *Config) { cfg.SMTPUsername = "" },
			wantErr: "SMTP_USERNAME is required",
		},
		{
			name:    "missing_smtp_password",
			mutate:  func(cfg *Config) { cfg.SMTPPassword = "" },
			wantErr: "SMTP_PASSWORD is required",
		},
		{
			name:    "missing_mail_from",
			mutate:  func(cfg *Config) { cfg.MailFrom = "" },
			wantErr: "MAIL_FROM is required",
		},
		{
			name:    "short_pass_key",
			mutate:  func(cfg *Config) { cfg.PassEncryptionKey = "too-short" },
			wantErr: "PASS_ENCRYPTION_KEY is required and must be at least 32 bytes",
		},
		{
			name:    "negative_retry_limit",
			mutate:  func(cfg *Config) { cfg.RetryLimit = -1 },
			wantErr: "RETRY_LIMIT must not be negative",
		},
		{
			name:    "zero_delivery_timeout",
			mutate:  func(cfg *Config) { cfg.DeliveryTimeout = 0 },
			wantErr: "DELIVERY_TIMEOUT must be positive",
		},
	}

	for _, tc := range tests {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			if diff := testutil.DiffErrString(err, tc.wantErr); diff != "" {
				t.Errorf("Validate(%+v) got unexpected err: %s", tc.name, diff)
			}
		})
	}
}
