package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var errCiphertextTooShort = errors.New("ciphertext too short")

func loadKey() ([32]byte, error) {
	var key [32]byte

	raw, err := base64.StdEncoding.DecodeString(GetConfig().SessionTokenKey)
	if err != nil {
		return key, fmt.Errorf("decode session token key: %w", err)
	}
	if len(raw) != len(key) {
		return key, fmt.Errorf("session token key must be %d bytes, got %d", len(key), len(raw))
	}

	copy(key[:], raw)
	return key, nil
}

// EncryptString seals a value with the configured key and returns
// base64(nonce || box).
func EncryptString(plaintext string) (string, error) {
	key, err := loadKey()
	if err != nil {
		return "", err
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString.
func DecryptString(encoded string) (string, error) {
	key, err := loadKey()
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", errCiphertextTooShort
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plaintext, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &key)
	if !ok {
		return "", errors.New("ciphertext authentication failed")
	}

	return string(plaintext), nil
}
