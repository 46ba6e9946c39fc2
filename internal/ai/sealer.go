package ai

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// KeySealer encrypts user-supplied vendor API keys at rest.
type KeySealer struct {
	key [32]byte
}

// NewKeySealer builds a sealer from a base64 encoded 32-byte secret. An empty secret
// yields a random process-lifetime key.
func NewKeySealer(encoded string) (*KeySealer, error) {
	var s KeySealer
	if encoded == "" {
		if _, err := io.ReadFull(rand.Reader, s.key[:]); err != nil {
			return nil, fmt.Errorf("generate sealing key: %w", err)
		}
		return &s, nil
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode sealing key: %w", err)
	}
	if len(raw) != len(s.key) {
		return nil, fmt.Errorf("sealing key must be %d bytes, got %d", len(s.key), len(raw))
	}
	copy(s.key[:], raw)
	return &s, nil
}

// Seal encrypts plain and returns a base64 string carrying the nonce.
func (s *KeySealer) Seal(plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(box), nil
}

// Open reverses Seal.
func (s *KeySealer) Open(sealed string) (string, error) {
	box, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decode sealed key: %w", err)
	}
	if len(box) < nonceSize+secretbox.Overhead {
		return "", errors.New("sealed key too short")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])

	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", errors.New("sealed key could not be opened")
	}
	return string(plain), nil
}
