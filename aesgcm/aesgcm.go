// Package aesgcm seals bookmark payloads with AES-256-GCM.
//
// The tag is returned separately from the ciphertext so it can be stored as
// its own envelope field. The optional AAD (the owning user id) is bound into
// the tag but not encrypted.
package aesgcm

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/abearman/mindful-sub000/envelope"
)

const (
	KeySize = 32
	IVSize  = 12
	TagSize = 16
)

var (
	ErrInvalidCryptoParameters = errors.New("invalid crypto parameters")
	ErrAuthTagMismatch         = errors.New("authentication tag mismatch")
)

// Cipher seals and opens payloads. The zero value reads IVs from crypto/rand.
type Cipher struct {
	Rand io.Reader
}

var defaultCipher Cipher

func Encrypt(key, plaintext, aad []byte) (envelope.Sealed, error) {
	return defaultCipher.Encrypt(key, plaintext, aad)
}

func Decrypt(key []byte, sealed envelope.Sealed) ([]byte, error) {
	return defaultCipher.Decrypt(key, sealed)
}

func (c Cipher) Encrypt(key, plaintext, aad []byte) (envelope.Sealed, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return envelope.Sealed{}, err
	}

	r := c.Rand
	if r == nil {
		r = rand.Reader
	}
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(r, iv); err != nil {
		return envelope.Sealed{}, fmt.Errorf("read iv: %w", err)
	}

	out := gcm.Seal(nil, iv, plaintext, aad)
	split := len(out) - TagSize

	return envelope.Sealed{
		IV:   iv,
		Tag:  out[split:],
		Data: out[:split],
		AAD:  aad,
	}, nil
}

func (c Cipher) Decrypt(key []byte, sealed envelope.Sealed) ([]byte, error) {
	if len(sealed.IV) != IVSize {
		return nil, fmt.Errorf("%w: iv is %d bytes", ErrInvalidCryptoParameters, len(sealed.IV))
	}
	if len(sealed.Tag) != TagSize {
		return nil, fmt.Errorf("%w: tag is %d bytes", ErrInvalidCryptoParameters, len(sealed.Tag))
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	in := make([]byte, 0, len(sealed.Data)+TagSize)
	in = append(in, sealed.Data...)
	in = append(in, sealed.Tag...)

	plaintext, err := gcm.Open(nil, sealed.IV, in, sealed.AAD)
	if err != nil {
		return nil, ErrAuthTagMismatch
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key is %d bytes", ErrInvalidCryptoParameters, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCryptoParameters, err)
	}
	return cipher.NewGCM(block)
}
