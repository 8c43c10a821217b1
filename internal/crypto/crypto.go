package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Sealer cifra el blob de identidad antes de llegar al almacenamiento.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// NoopSealer deja pasar el valor sin cifrar.
type NoopSealer struct{}

func (NoopSealer) Seal(plaintext string) (string, error) { return plaintext, nil }
func (NoopSealer) Open(sealed string) (string, error)    { return sealed, nil }

var ErrSealedTooShort = errors.New("sealed value too short")

type ChaChaSealer struct {
	aead cipher.AEAD
}

// NewChaChaSealer recibe una clave de 32 bytes codificada en hex.
func NewChaChaSealer(hexKey string) (*ChaChaSealer, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid seal key hex: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create aead: %w", err)
	}
	return &ChaChaSealer{aead: aead}, nil
}

func (c *ChaChaSealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	// nonce || ciphertext || tag
	out := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (c *ChaChaSealer) Open(sealed string) (string, error) {
	buf, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}
	n := c.aead.NonceSize()
	if len(buf) < n {
		return "", ErrSealedTooShort
	}
	plain, err := c.aead.Open(nil, buf[:n], buf[n:], nil)
	if err != nil {
		return "", fmt.Errorf("open sealed value: %w", err)
	}
	return string(plain), nil
}

// NewSealer devuelve NoopSealer cuando no hay clave configurada.
func NewSealer(hexKey string) (Sealer, error) {
	if hexKey == "" {
		return NoopSealer{}, nil
	}
	return NewChaChaSealer(hexKey)
}
