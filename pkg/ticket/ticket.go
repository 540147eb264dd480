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

// Package ticket builds the encrypted access pass string embedded in the
// confirmation email's QR code. The wire format is fixed by the access
// control vendor: a pass prefix followed by the base64 of the AES-ECB,
// PKCS7-padded window record.
package ticket

import (
	"crypto/aes"
	"encoding/base64"
	"fmt"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	// passPrefix identifies the pass format version to the turnstile
	// scanners.
	passPrefix = "SK01"

	// passTimeLayout is the compact timestamp layout inside the pass
	// record.
	passTimeLayout = "20060102150405"

	// keySize is the AES key length the scanners are provisioned with.
	keySize = 32

	// qrSize is the pixel width of the generated QR PNG.
	qrSize = 256
)

// Encoder produces access pass strings and their QR images.
type Encoder struct {
	key []byte
}

// NewEncoder creates an Encoder from the shared pass encryption key. Only
// the first 32 bytes of the key are used.
func NewEncoder(key string) (*Encoder, error) {
	if len(key) < keySize {
		return nil, fmt.Errorf("pass encryption key must be at least %d bytes, got %d", keySize, len(key))
	}
	return &Encoder{key: []byte(key)[:keySize]}, nil
}

// Pass builds the scannable pass string for an access window.
func (e *Encoder) Pass(start, end time.Time) (string, error) {
	record := fmt.Sprintf("[,,%s,%s,,,,,]",
		start.Format(passTimeLayout), end.Format(passTimeLayout))

	encrypted, err := e.encryptECB([]byte(record))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt pass record: %w", err)
	}

	return passPrefix + base64.StdEncoding.EncodeToString(encrypted), nil
}

// QRPNG renders a pass string into a PNG image.
func (e *Encoder) QRPNG(pass string) ([]byte, error) {
	png, err := qrcode.Encode(pass, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr png: %w", err)
	}
	return png, nil
}

// encryptECB applies PKCS7 padding and encrypts each block independently.
// ECB is what the scanner firmware expects; it is not a choice this package
// gets to make.
func (e *Encoder) encryptECB(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, block.BlockSize())
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += block.BlockSize() {
		block.Encrypt(out[i:i+block.BlockSize()], padded[i:i+block.BlockSize()])
	}
	return out, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}
