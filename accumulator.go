// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tally

import (
	"github.com/luxfi/tally/crypto/fhe"
)

// EncryptedAccumulator holds the running homomorphic sum of every value
// submitted into a single batch. Accumulation is append-only: once seeded,
// each combine strictly replaces the handle with combine(old, new); there is
// no operation to remove a contribution.
type EncryptedAccumulator struct {
	handle fhe.Ciphertext
}

// NewEncryptedAccumulator returns an empty accumulator
func NewEncryptedAccumulator() *EncryptedAccumulator {
	return &EncryptedAccumulator{}
}

// IsSet reports whether a handle has been stored
func (a *EncryptedAccumulator) IsSet() bool {
	return a.handle != nil
}

// Handle returns the current ciphertext handle, or nil if unset
func (a *EncryptedAccumulator) Handle() fhe.Ciphertext {
	return a.handle
}

// Combine folds a new contribution into the accumulated handle and returns
// the result. The first contribution seeds the accumulator. Combine does not
// store the result; the caller is responsible for calling Store.
func (a *EncryptedAccumulator) Combine(value fhe.Ciphertext) (fhe.Ciphertext, error) {
	if value == nil {
		return nil, ErrUninitializedValue
	}
	if a.handle == nil {
		return value, nil
	}
	return a.handle.Add(value)
}

// Store replaces the accumulated handle
func (a *EncryptedAccumulator) Store(handle fhe.Ciphertext) {
	a.handle = handle
}
