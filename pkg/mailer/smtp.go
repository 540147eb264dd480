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

package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

const sslPort = 465

// SMTPTransport sends mail through an authenticated SMTP relay. The
// connection is dialed per send and closed afterwards.
type SMTPTransport struct {
	client *mail.Client
}

// NewSMTPTransport creates an SMTP transport. Port 465 uses implicit TLS,
// everything else negotiates STARTTLS.
func NewSMTPTransport(host string, port int, username, password string, timeout time.Duration) (*SMTPTransport, error) {
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(username),
		mail.WithPassword(password),
		mail.WithTimeout(timeout),
	}
	if port == sslPort {
		opts = append(opts, mail.WithSSL())
	}

	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	return &SMTPTransport{client: client}, nil
}

// Send delivers a single message. Non-temporary SMTP failures are wrapped
// as [*PermanentError] so the dispatcher stops retrying them.
func (t *SMTPTransport) Send(ctx context.Context, m *mail.Msg) error {
	if err := t.client.DialAndSendWithContext(ctx, m); err != nil {
		var sendErr *mail.SendError
		if errors.As(err, &sendErr) && !sendErr.IsTemp() {
			return &PermanentError{Err: err}
		}
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
