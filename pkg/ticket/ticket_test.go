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

package ticket

import (
	"bytes"
	"crypto/aes"
	"encoding/base64"
	"strings"
	"testing"
	"time"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestNewEncoder(t *testing.T) {
	t.Parallel()

	if _, err := NewEncoder(testKey); err != nil {
		t.Errorf("expected 32-byte key to be accepted: %v", err)
	}
	if _, err := NewEncoder(testKey + "-and-some-extra"); err != nil {
		t.Errorf("expected long key to be truncated, got %v", err)
	}
	if _, err := NewEncoder("short"); err == nil {
		t.Error("expected short key to be rejected")
	}
}

func TestPass_RoundTrip(t *testing.T) {
	t.Parallel()

	e, err := NewEncoder(testKey)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 15, 11, 0, 0, 0, time.UTC)

	pass, err := e.Pass(start, end)
	if err != nil {
		t.Fatalf("Pass: %v", err)
	}

	if !strings.HasPrefix(pass, "SK01") {
		t.Fatalf("expected pass %q to carry the SK01 prefix", pass)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(pass, "SK01"))
	if err != nil {
		t.Fatalf("pass body is not base64: %v", err)
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		t.Fatalf("ciphertext length %d is not block aligned", len(ciphertext))
	}

	// Decrypt block by block and strip the PKCS7 padding.
	block, err := aes.NewCipher([]byte(testKey))
	if err != nil {
		t.Fatal(err)
	}
	plaintext := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += aes.BlockSize {
		block.Decrypt(plaintext[i:i+aes.BlockSize], ciphertext[i:i+aes.BlockSize])
	}
	pad := int(plaintext[len(plaintext)-1])
	if pad <= 0 || pad > aes.BlockSize {
		t.Fatalf("bad pkcs7 padding byte %d", pad)
	}
	plaintext = plaintext[:len(plaintext)-pad]

	if got, want := string(plaintext), "[,,20250315100000,20250315110000,,,,,]"; got != want {
		t.Errorf("expected decrypted record %q to be %q", got, want)
	}
}

func TestPass_Deterministic(t *testing.T) {
	t.Parallel()

	e, err := NewEncoder(testKey)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 15, 11, 0, 0, 0, time.UTC)

	first, err := e.Pass(start, end)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Pass(start, end)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("expected identical windows to produce identical passes")
	}
}

func TestQRPNG(t *testing.T) {
	t.Parallel()

	e, err := NewEncoder(testKey)
	if err != nil {
		t.Fatal(err)
	}

	png, err := e.QRPNG("SK01test")
	if err != nil {
		t.Fatalf("QRPNG: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("expected PNG magic bytes")
	}
}

func TestPKCS7Pad(t *testing.T) {
	t.Parallel()

	// Exact multiple gains a full padding block.
	padded := pkcs7Pad(bytes.Repeat([]byte{'a'}, 16), 16)
	if got, want := len(padded), 32; got != want {
		t.Errorf("expected padded length %d to be %d", got, want)
	}
	if padded[31] != 16 {
		t.Errorf("expected padding byte 16, got %d", padded[31])
	}

	padded = pkcs7Pad([]byte("abc"), 16)
	if got, want := len(padded), 16; got != want {
		t.Errorf("expected padded length %d to be %d", got, want)
	}
	if padded[15] != 13 {
		t.Errorf("expected padding byte 13, got %d", padded[15])
	}
}
