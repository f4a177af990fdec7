package aesgcm_test

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/abearman/mindful-sub000/aesgcm"
	"github.com/abearman/mindful-sub000/envelope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) []byte {
	key := make([]byte, aesgcm.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := newKey(t)
	plaintexts := [][]byte{
		[]byte(`[]`),
		[]byte(`[{"id":"g1","groupName":"Work","bookmarks":[{"id":"b1","name":"Foo","url":"https://foo"}]}]`),
		bytes.Repeat([]byte("x"), 64*1024),
		{},
	}

	for _, p := range plaintexts {
		sealed, err := aesgcm.Encrypt(key, p, []byte("user-1"))
		require.NoError(t, err)
		assert.Len(t, sealed.IV, aesgcm.IVSize)
		assert.Len(t, sealed.Tag, aesgcm.TagSize)

		got, err := aesgcm.Decrypt(key, sealed)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestEncrypt_FreshIVPerCall(t *testing.T) {
	key := newKey(t)
	a, err := aesgcm.Encrypt(key, []byte("same"), nil)
	require.NoError(t, err)
	b, err := aesgcm.Encrypt(key, []byte("same"), nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.IV, b.IV)
	assert.NotEqual(t, a.Data, b.Data)
}

func TestEncrypt_InjectedRand(t *testing.T) {
	c := aesgcm.Cipher{Rand: bytes.NewReader(bytes.Repeat([]byte{7}, aesgcm.IVSize))}
	sealed, err := c.Encrypt(newKey(t), []byte("hello"), nil)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{7}, aesgcm.IVSize), sealed.IV)
}

func TestDecrypt_TamperDetection(t *testing.T) {
	key := newKey(t)
	sealed, err := aesgcm.Encrypt(key, []byte(`[{"id":"g1"}]`), []byte("user-1"))
	require.NoError(t, err)

	flip := func(b []byte, bit int) []byte {
		out := append([]byte(nil), b...)
		out[bit/8] ^= 1 << (bit % 8)
		return out
	}

	for bit := 0; bit < len(sealed.Tag)*8; bit++ {
		tampered := sealed
		tampered.Tag = flip(sealed.Tag, bit)
		_, err := aesgcm.Decrypt(key, tampered)
		require.ErrorIs(t, err, aesgcm.ErrAuthTagMismatch, "tag bit %d", bit)
	}

	for bit := 0; bit < len(sealed.Data)*8; bit++ {
		tampered := sealed
		tampered.Data = flip(sealed.Data, bit)
		_, err := aesgcm.Decrypt(key, tampered)
		require.ErrorIs(t, err, aesgcm.ErrAuthTagMismatch, "data bit %d", bit)
	}
}

func TestDecrypt_WrongAADOrKey(t *testing.T) {
	key := newKey(t)
	sealed, err := aesgcm.Encrypt(key, []byte("payload"), []byte("user-a"))
	require.NoError(t, err)

	other := sealed
	other.AAD = []byte("user-b")
	_, err = aesgcm.Decrypt(key, other)
	assert.ErrorIs(t, err, aesgcm.ErrAuthTagMismatch)

	_, err = aesgcm.Decrypt(newKey(t), sealed)
	assert.ErrorIs(t, err, aesgcm.ErrAuthTagMismatch)
}

func TestInvalidCryptoParameters(t *testing.T) {
	key := newKey(t)
	good, err := aesgcm.Encrypt(key, []byte("payload"), nil)
	require.NoError(t, err)

	_, err = aesgcm.Encrypt(key[:16], []byte("payload"), nil)
	assert.ErrorIs(t, err, aesgcm.ErrInvalidCryptoParameters)

	_, err = aesgcm.Decrypt(key[:31], good)
	assert.ErrorIs(t, err, aesgcm.ErrInvalidCryptoParameters)

	shortIV := good
	shortIV.IV = good.IV[:8]
	_, err = aesgcm.Decrypt(key, shortIV)
	assert.ErrorIs(t, err, aesgcm.ErrInvalidCryptoParameters)

	shortTag := good
	shortTag.Tag = good.Tag[:12]
	_, err = aesgcm.Decrypt(key, shortTag)
	assert.ErrorIs(t, err, aesgcm.ErrInvalidCryptoParameters)

	_, err = aesgcm.Decrypt(key, envelope.Sealed{})
	assert.ErrorIs(t, err, aesgcm.ErrInvalidCryptoParameters)
}
