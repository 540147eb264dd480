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
	"errors"
	"fmt"
	"time"

	"github.com/abcxyz/pkg/cli"
)

// passKeySize is the minimum length of the pass encryption key.
const passKeySize = 32

// Config defines the set of environment variables required for running
// this application.
type Config struct {
	Port              string
	WebhookSecret     string
	TemplatePath      string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	MailFrom          string
	PassEncryptionKey string
	RetryLimit        int
	DeliveryTimeout   time.Duration
}

// Validate validates the service config after load.
func (cfg *Config) Validate() error {
	var merr error

	if cfg.WebhookSecret == "" {
		merr = errors.Join(merr, fmt.Errorf("WEBHOOK_SECRET is required"))
	}

	if cfg.SMTPHost == "" {
		merr = errors.Join(merr, fmt.Errorf("SMTP_HOST is required"))
	}

	if cfg.SMTPPort <= 0 || cfg.SMTPPort > 65535 {
		merr = errors.Join(merr, fmt.Errorf("SMTP_PORT must be a valid port"))
	}

	if cfg.SMTPUsername == "" {
		merr = errors.Join(merr, fmt.Errorf("SMTP_USERNAME is required"))
	}

	if cfg.SMTPPassword == "" {
		merr = errors.Join(merr, fmt.Errorf("SMTP_PASSWORD is required"))
	}

	if cfg.MailFrom == "" {
		merr = errors.Join(merr, fmt.Errorf("MAIL_FROM is required"))
	}

	if len(cfg.PassEncryptionKey) < passKeySize {
		merr = errors.Join(merr, fmt.Errorf("PASS_ENCRYPTION_KEY is required and must be at least %d bytes", passKeySize))
	}

	if cfg.RetryLimit < 0 {
		merr = errors.Join(merr, fmt.Errorf("RETRY_LIMIT must not be negative"))
	}

	if cfg.DeliveryTimeout <= 0 {
		merr = errors.Join(merr, fmt.Errorf("DELIVERY_TIMEOUT must be positive"))
	}

	return merr
}

// ToFlags binds the config to the give [cli.FlagSet] and returns it.
func (cfg *Config) ToFlags(set *cli.FlagSet) *cli.FlagSet {
	f := set.NewSection("COMMON OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:    "port",
		Target:  &cfg.Port,
		EnvVar:  "PORT",
		Default: "8080",
		Usage:   `The port the webhook server listens to.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "webhook-secret",
		Target: &cfg.WebhookSecret,
		EnvVar: "WEBHOOK_SECRET",
		Usage:  `Shared secret used to verify webhook signatures.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "template-path",
		Target: &cfg.TemplatePath,
		EnvVar: "TEMPLATE_PATH",
		Usage:  `Path to the confirmation email template. Uses the built-in template when unset.`,
	})

	f.IntVar(&cli.IntVar{
		Name:    "retry-limit",
		Target:  &cfg.RetryLimit,
		EnvVar:  "RETRY_LIMIT",
		Default: 2,
		Usage:   `The maximum number of delivery retries after the first attempt.`,
	})

	f.DurationVar(&cli.DurationVar{
		Name:    "delivery-timeout",
		Target:  &cfg.DeliveryTimeout,
		EnvVar:  "DELIVERY_TIMEOUT",
		Default: 10 * time.Second,
		Usage:   `The timeout for a whole delivery, retries included.`,
	})

	f = set.NewSection("MAIL OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:   "smtp-host",
		Target: &cfg.SMTPHost,
		EnvVar: "SMTP_HOST",
		Usage:  `SMTP relay hostname.`,
	})

	f.IntVar(&cli.IntVar{
		Name:    "smtp-port",
		Target:  &cfg.SMTPPort,
		EnvVar:  "SMTP_PORT",
		Default: 465,
		Usage:   `SMTP relay port. Port 465 uses implicit TLS.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "smtp-username",
		Target: &cfg.SMTPUsername,
		EnvVar: "SMTP_USERNAME",
		Usage:  `SMTP authentication username.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "smtp-password",
		Target: &cfg.SMTPPassword,
		EnvVar: "SMTP_PASSWORD",
		Usage:  `SMTP authentication password.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "mail-from",
		Target: &cfg.MailFrom,
		EnvVar: "MAIL_FROM",
		Usage:  `Sender address for confirmation emails.`,
	})

	f = set.NewSection("PASS OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:   "pass-encryption-key",
		Target: &cfg.PassEncryptionKey,
		EnvVar: "PASS_ENCRYPTION_KEY",
		Usage:  `AES key for the QR access pass. Only the first 32 bytes are used.`,
	})

	return set
}
