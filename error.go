// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tally

import "errors"

// Authorization errors. Always rejected before any state change.
var (
	ErrNotOwner    = errors.New("caller is not the owner")
	ErrNotProvider = errors.New("caller is not an authorized provider")
)

// Lifecycle errors.
var (
	ErrBatchNotOpen       = errors.New("batch is not open")
	ErrInvalidBatch       = errors.New("invalid batch")
	ErrUninitializedValue = errors.New("uninitialized ciphertext handle")
	ErrPaused             = errors.New("submissions are paused")
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrRequestIDCollision = errors.New("oracle returned a duplicate request id")
)

// Rate-limit errors.
var ErrCooldownActive = errors.New("cooldown active")

// Protocol-integrity errors surfaced from the callback path. None of these
// mutate any state; the resolved flag is set only after every check has
// passed.
var (
	ErrUnknownRequest     = errors.New("unknown decryption request")
	ErrReplayAttempt      = errors.New("decryption request already resolved")
	ErrStaleState         = errors.New("accumulator state changed since request")
	ErrInvalidProof       = errors.New("invalid decryption proof")
	ErrMalformedCleartext = errors.New("malformed cleartext payload")
)
