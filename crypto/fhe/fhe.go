// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fhe defines the homomorphic encryption capability used by the
// confidential aggregation protocol. Ciphertexts are opaque handles: the
// protocol only ever combines them and forwards them to an external
// decryption oracle, it never inspects the underlying scheme.
package fhe

import (
	"errors"

	"github.com/holiman/uint256"
)

// Ciphertext is an opaque handle to an encrypted integer. The only
// algebraic operation the protocol relies on is homomorphic addition,
// assumed associative and commutative by the underlying scheme.
type Ciphertext interface {
	// Bytes returns the serialized ciphertext handle
	Bytes() []byte

	// Add performs homomorphic addition with another ciphertext
	Add(other Ciphertext) (Ciphertext, error)
}

// PublicKey for FHE encryption
type PublicKey interface {
	Bytes() []byte
}

// PrivateKey for FHE decryption
type PrivateKey interface {
	Bytes() []byte
}

// Scheme represents an additively homomorphic encryption scheme
type Scheme interface {
	// Encrypt encrypts a numeric value under the given public key
	Encrypt(value *uint256.Int, publicKey PublicKey) (Ciphertext, error)

	// Decrypt decrypts a ciphertext with the given private key
	Decrypt(ciphertext Ciphertext, privateKey PrivateKey) (*uint256.Int, error)

	// ParseCiphertext deserializes a ciphertext handle
	ParseCiphertext(b []byte) (Ciphertext, error)

	// GenerateKeys generates a new public/private key pair
	GenerateKeys() (PublicKey, PrivateKey, error)
}

// ErrInvalidCiphertext is returned when a ciphertext is malformed
var ErrInvalidCiphertext = errors.New("invalid ciphertext")

// ErrIncompatibleCiphertexts is returned when ciphertexts can't be combined
var ErrIncompatibleCiphertexts = errors.New("incompatible ciphertexts")
