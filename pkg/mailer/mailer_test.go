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
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/wneessen/go-mail"
)

func init() {
	// Constant, near-zero backoff keeps the retry tests fast.
	retryBaseDelay = time.Millisecond
	retryFunc = retry.NewConstant
}

// fakeTransport fails a configurable number of sends before succeeding.
type fakeTransport struct {
	failures  int
	permanent bool

	sends int
	last  *mail.Msg
}

func (t *fakeTransport) Send(ctx context.Context, m *mail.Msg) error {
	t.sends++
	t.last = m
	if t.permanent {
		return &PermanentError{Err: errors.New("550 no such user")}
	}
	if t.sends <= t.failures {
		return errors.New("451 temporary local problem")
	}
	return nil
}

func testMessage() *Message {
	return &Message{
		To:      "a@example.com",
		Subject: "Your Booking QR Code",
		HTML:    []byte("<p>Order #1001</p>"),
		Inline:  []InlineImage{{Filename: "qr_code.png", Content: []byte("\x89PNGfake")}},
	}
}

func TestDispatch_SucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	d, err := NewDispatcher(transport, "sender@example.com", 2, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	result, err := d.Dispatch(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !result.Delivered {
		t.Error("expected result to be delivered")
	}
	if got, want := result.Attempts, 1; got != want {
		t.Errorf("expected %d attempts to be %d", got, want)
	}
}

func TestDispatch_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	// Fails twice, succeeds on the third attempt.
	transport := &fakeTransport{failures: 2}
	d, err := NewDispatcher(transport, "sender@example.com", 2, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	result, err := d.Dispatch(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !result.Delivered {
		t.Error("expected result to be delivered")
	}
	if got, want := result.Attempts, 3; got != want {
		t.Errorf("expected %d attempts to be %d", got, want)
	}
}

func TestDispatch_ExhaustsRetryBudget(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{failures: 100}
	d, err := NewDispatcher(transport, "sender@example.com", 2, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	result, err := d.Dispatch(context.Background(), testMessage())
	if err == nil {
		t.Fatal("expected a delivery error")
	}

	var delErr *DeliveryError
	if !errors.As(err, &delErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	// 1 initial attempt + 2 retries.
	if got, want := delErr.Attempts, 3; got != want {
		t.Errorf("expected %d attempts to be %d", got, want)
	}
	if delErr.Permanent {
		t.Error("expected a transient failure classification")
	}
	if result.Delivered {
		t.Error("expected result to not be delivered")
	}
}

func TestDispatch_PermanentFailureNoRetry(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{permanent: true}
	d, err := NewDispatcher(transport, "sender@example.com", 5, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	_, err = d.Dispatch(context.Background(), testMessage())

	var delErr *DeliveryError
	if !errors.As(err, &delErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if !delErr.Permanent {
		t.Error("expected a permanent failure classification")
	}
	if got, want := delErr.Attempts, 1; got != want {
		t.Errorf("expected %d attempts to be %d, permanent failures must not retry", got, want)
	}
	if got, want := transport.sends, 1; got != want {
		t.Errorf("expected %d sends to be %d", got, want)
	}
}

func TestDispatch_InvalidRecipient(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	d, err := NewDispatcher(transport, "sender@example.com", 2, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	msg := testMessage()
	msg.To = "not an address"

	_, err = d.Dispatch(context.Background(), msg)

	var delErr *DeliveryError
	if !errors.As(err, &delErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if !delErr.Permanent {
		t.Error("expected invalid recipient to be permanent")
	}
	if transport.sends != 0 {
		t.Errorf("expected no transport sends, got %d", transport.sends)
	}
}

func TestDispatch_ContextTimeout(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{failures: 100}
	// Tiny timeout, generous retry budget: the deadline must win.
	d, err := NewDispatcher(transport, "sender@example.com", 1000, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	_, err = d.Dispatch(context.Background(), testMessage())
	if err == nil {
		t.Fatal("expected a delivery error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded in chain, got %v", err)
	}
}

func TestNewDispatcher_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewDispatcher(nil, "sender@example.com", 1, time.Second); err == nil {
		t.Error("expected nil transport to be rejected")
	}
	if _, err := NewDispatcher(&fakeTransport{}, "", 1, time.Second); err == nil {
		t.Error("expected empty sender to be rejected")
	}
}

func TestBuildMail(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	d, err := NewDispatcher(transport, "sender@example.com", 0, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := d.Dispatch(context.Background(), testMessage()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	m := transport.last
	if m == nil {
		t.Fatal("expected a message to reach the transport")
	}
	got, err := m.GetRecipients()
	if err != nil {
		t.Fatalf("GetRecipients: %v", err)
	}
	if len(got) != 1 || got[0] != "a@example.com" {
		t.Errorf("expected recipients [a@example.com], got %v", got)
	}
}
