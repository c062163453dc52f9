// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tally

import (
	"github.com/luxfi/ids"
)

// RequestRecord is the persisted form of a pending decryption request. A
// record is written exactly once when the request is issued and mutated
// exactly once when it resolves; it is never deleted, serving as a permanent
// audit and replay record.
type RequestRecord struct {
	BatchID  uint64
	Digest   Digest
	Resolved bool
}

// StateStore persists protocol state across restarts. Implementations live
// outside the core; the interface is defined here so the core does not
// depend on any particular storage engine. All methods must be durable
// before returning: the core persists before committing in-memory state.
type StateStore interface {
	// PutBatchMeta records the current batch id and open flag
	PutBatchMeta(currentID uint64, open bool) error

	// PutAccumulator records the serialized accumulator handle for a batch
	PutAccumulator(batchID uint64, handle []byte) error

	// PutRequest records a newly issued decryption request
	PutRequest(requestID ids.ID, record RequestRecord) error

	// MarkResolved flips a request to resolved and records the revealed value
	MarkResolved(requestID ids.ID, value []byte) error
}
