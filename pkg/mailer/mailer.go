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

// Package mailer delivers rendered notifications over an email transport
// with bounded retries.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/wneessen/go-mail"
)

var (
	// can be overriden for testing
	retryBaseDelay = 500 * time.Millisecond
	retryFunc      = retry.NewExponential
)

// PermanentError marks a transport failure that retrying cannot fix, such
// as a rejected recipient.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent transport error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// DeliveryError is the final failure surfaced after the retry budget is
// spent or a permanent failure is hit.
type DeliveryError struct {
	Attempts  int
	Permanent bool
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// DeliveryResult records the outcome of a dispatch, including how many
// transport attempts it took.
type DeliveryResult struct {
	Attempts  int
	Delivered bool
}

// InlineImage is an image embedded into the mail body, referenced from the
// HTML by its filename as Content-ID.
type InlineImage struct {
	Filename string
	Content  []byte
}

// Message is a rendered notification addressed to a single recipient.
type Message struct {
	To      string
	Subject string
	HTML    []byte
	Inline  []InlineImage
}

// Transport sends an assembled mail message. Implementations decide what
// counts as permanent by returning a [*PermanentError].
type Transport interface {
	Send(ctx context.Context, msg *mail.Msg) error
}

// Dispatcher sends messages through a Transport, retrying transient
// failures with exponential backoff.
type Dispatcher struct {
	transport  Transport
	from       string
	maxRetries uint64
	timeout    time.Duration
}

// NewDispatcher creates a Dispatcher. maxRetries counts retries after the
// first attempt; timeout bounds the whole dispatch including backoff.
func NewDispatcher(transport Transport, from string, maxRetries uint64, timeout time.Duration) (*Dispatcher, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if from == "" {
		return nil, fmt.Errorf("from address is required")
	}
	return &Dispatcher{
		transport:  transport,
		from:       from,
		maxRetries: maxRetries,
		timeout:    timeout,
	}, nil
}

// Dispatch attempts delivery of msg. Transient transport failures are
// retried with doubling backoff up to the configured bound; permanent
// failures surface immediately. The returned result is valid even when the
// error is non-nil.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *Message) (*DeliveryResult, error) {
	m, err := d.buildMail(msg)
	if err != nil {
		// Address and assembly failures cannot succeed on retry.
		return &DeliveryResult{}, &DeliveryError{Permanent: true, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var attempts int
	backoff := retry.WithMaxRetries(d.maxRetries, retryFunc(retryBaseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		if err := d.transport.Send(ctx, m); err != nil {
			var perm *PermanentError
			if errors.As(err, &perm) {
				return err
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		var perm *PermanentError
		return &DeliveryResult{Attempts: attempts}, &DeliveryError{
			Attempts:  attempts,
			Permanent: errors.As(err, &perm),
			Err:       err,
		}
	}

	return &DeliveryResult{Attempts: attempts, Delivered: true}, nil
}

// buildMail assembles the multipart/related message with the HTML body and
// any inline images.
func (d *Dispatcher) buildMail(msg *Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(d.from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", d.from, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, string(msg.HTML))

	for _, img := range msg.Inline {
		if err := m.EmbedReader(img.Filename, bytes.NewReader(img.Content)); err != nil {
			return nil, fmt.Errorf("failed to embed %q: %w", img.Filename, err)
		}
	}

	return m, nil
}
