// Package sealer issues opaque tokens that bind a hold to its room. A
// caller presenting a token proves it received the hold, without the
// token revealing internal ids.
package sealer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrInvalidToken = errors.New("invalid token")

type Sealer struct {
	aead cipher.AEAD
}

// New builds a Sealer from a base64 encoded AES key.
func New(encodedKey string) (*Sealer, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Sealer{aead: aead}, nil
}

func (s *Sealer) Seal(roomID, lockID string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ct := s.aead.Seal(nonce, nonce, []byte(roomID+":"+lockID), nil)
	return base64.RawURLEncoding.EncodeToString(ct), nil
}

func (s *Sealer) Open(token string) (roomID string, lockID string, err error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", "", ErrInvalidToken
	}

	nonceSize := s.aead.NonceSize()
	if len(data) <= nonceSize {
		return "", "", ErrInvalidToken
	}

	pt, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", "", ErrInvalidToken
	}

	parts := strings.SplitN(string(pt), ":", 2)
	if len(parts) != 2 {
		return "", "", ErrInvalidToken
	}

	return parts[0], parts[1], nil
}
