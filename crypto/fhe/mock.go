// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"crypto/rand"
	"fmt"

	"github.com/holiman/uint256"
)

const (
	mockValueLen = 32
	mockSaltLen  = 8
)

var (
	_ Scheme     = (*MockScheme)(nil)
	_ Ciphertext = (*MockCiphertext)(nil)
)

// MockScheme is an additively homomorphic stand-in for a real FHE scheme.
// Ciphertexts carry the plaintext alongside a random salt, so handles for
// equal values still serialize to distinct bytes. It provides no
// confidentiality whatsoever and exists for tests and local development only.
type MockScheme struct{}

// NewMockScheme returns a new mock scheme
func NewMockScheme() *MockScheme {
	return &MockScheme{}
}

// MockCiphertext is a ciphertext handle produced by MockScheme
type MockCiphertext struct {
	value *uint256.Int
	salt  [mockSaltLen]byte
}

// Bytes returns the serialized handle: 32-byte big-endian value || salt
func (c *MockCiphertext) Bytes() []byte {
	buf := make([]byte, mockValueLen+mockSaltLen)
	v := c.value.Bytes32()
	copy(buf[:mockValueLen], v[:])
	copy(buf[mockValueLen:], c.salt[:])
	return buf
}

// Add performs homomorphic addition, wrapping modulo 2^256
func (c *MockCiphertext) Add(other Ciphertext) (Ciphertext, error) {
	o, ok := other.(*MockCiphertext)
	if !ok {
		return nil, ErrIncompatibleCiphertexts
	}
	sum := new(uint256.Int).Add(c.value, o.value)
	return newMockCiphertext(sum)
}

func newMockCiphertext(value *uint256.Int) (*MockCiphertext, error) {
	ct := &MockCiphertext{value: value.Clone()}
	if _, err := rand.Read(ct.salt[:]); err != nil {
		return nil, err
	}
	return ct, nil
}

// MockKey is a key handle for MockScheme. Both halves of the pair share the
// same random identifier; the scheme never actually uses them.
type MockKey struct {
	id [16]byte
}

// Bytes returns the key identifier
func (k *MockKey) Bytes() []byte {
	return k.id[:]
}

// Encrypt encrypts a value. The public key is ignored.
func (s *MockScheme) Encrypt(value *uint256.Int, _ PublicKey) (Ciphertext, error) {
	if value == nil {
		return nil, fmt.Errorf("%w: nil value", ErrInvalidCiphertext)
	}
	return newMockCiphertext(value)
}

// Decrypt recovers the value carried by a mock ciphertext
func (s *MockScheme) Decrypt(ciphertext Ciphertext, _ PrivateKey) (*uint256.Int, error) {
	ct, ok := ciphertext.(*MockCiphertext)
	if !ok {
		return nil, ErrIncompatibleCiphertexts
	}
	return ct.value.Clone(), nil
}

// ParseCiphertext deserializes a mock ciphertext handle
func (s *MockScheme) ParseCiphertext(b []byte) (Ciphertext, error) {
	if len(b) != mockValueLen+mockSaltLen {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d",
			ErrInvalidCiphertext, mockValueLen+mockSaltLen, len(b))
	}
	ct := &MockCiphertext{value: new(uint256.Int).SetBytes(b[:mockValueLen])}
	copy(ct.salt[:], b[mockValueLen:])
	return ct, nil
}

// GenerateKeys generates a mock key pair
func (s *MockScheme) GenerateKeys() (PublicKey, PrivateKey, error) {
	k := &MockKey{}
	if _, err := rand.Read(k.id[:]); err != nil {
		return nil, nil, err
	}
	return k, k, nil
}
