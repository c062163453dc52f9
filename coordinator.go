// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tally

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
)

// CleartextLen is the exact byte width of an oracle cleartext payload: one
// 256-bit big-endian unsigned integer
const CleartextLen = 32

// DecryptionCoordinator issues decryption requests bound to a snapshot of a
// batch accumulator and processes oracle callbacks. It guarantees
// at-most-once finalization per request and rejects callbacks whose
// underlying encrypted state no longer matches what was requested.
//
// Requests are never deleted: a resolved record stays in the table forever
// as the replay guard and audit trail. There is also no expiry — a request
// the oracle never answers stays pending indefinitely.
type DecryptionCoordinator struct {
	mu      sync.Mutex
	log     log.Logger
	emitter *Emitter
	store   StateStore // optional

	// instance is this coordinator's own identity, mixed into every
	// binding digest so digests cannot be replayed across deployments
	instance common.Address

	ledger *BatchLedger
	oracle Oracle

	requests map[ids.ID]*RequestRecord
	results  map[ids.ID]*uint256.Int
}

// NewDecryptionCoordinator returns a coordinator with an empty request
// table. store may be nil for purely in-memory operation.
func NewDecryptionCoordinator(
	logger log.Logger,
	emitter *Emitter,
	instance common.Address,
	ledger *BatchLedger,
	oracle Oracle,
	store StateStore,
) *DecryptionCoordinator {
	return &DecryptionCoordinator{
		log:      logger,
		emitter:  emitter,
		store:    store,
		instance: instance,
		ledger:   ledger,
		oracle:   oracle,
		requests: make(map[ids.ID]*RequestRecord),
		results:  make(map[ids.ID]*uint256.Int),
	}
}

// Instance returns the coordinator's identity
func (c *DecryptionCoordinator) Instance() common.Address {
	return c.instance
}

// RequestDecryption snapshots the batch's accumulator, binds a digest to the
// snapshot and this coordinator instance, and forwards the handle to the
// oracle. The revealed value arrives asynchronously via OnDecryptionResult;
// the caller must watch for the DecryptionCompleted event or poll Result.
func (c *DecryptionCoordinator) RequestDecryption(
	ctx context.Context,
	batchID uint64,
	caller common.Address,
) (ids.ID, error) {
	currentID, _ := c.ledger.CurrentBatch()
	if batchID == 0 || batchID > currentID {
		return ids.Empty, fmt.Errorf("%w: batch %d out of range (current %d)",
			ErrInvalidBatch, batchID, currentID)
	}
	handle, ok := c.ledger.AccumulatorHandle(batchID)
	if !ok {
		return ids.Empty, fmt.Errorf("%w: batch %d has no submissions", ErrInvalidBatch, batchID)
	}

	// The protocol always requests exactly one handle, but the digest and
	// the oracle boundary are defined over an ordered list.
	handles := [][]byte{handle.Bytes()}
	digest := BindingDigest(c.instance, handles)

	requestID, err := c.oracle.RequestDecryption(ctx, handles)
	if err != nil {
		return ids.Empty, fmt.Errorf("failed to forward decryption request: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// The oracle guarantees request id uniqueness. A collision means the
	// oracle broke its contract and the request table can no longer be
	// trusted, so the new request is refused outright.
	if _, exists := c.requests[requestID]; exists {
		c.log.Error(
			"oracle returned a duplicate request id",
			log.Stringer("requestID", requestID),
			log.Uint64("batchID", batchID),
		)
		return ids.Empty, ErrRequestIDCollision
	}

	record := RequestRecord{BatchID: batchID, Digest: digest}
	if c.store != nil {
		if err := c.store.PutRequest(requestID, record); err != nil {
			return ids.Empty, fmt.Errorf("failed to persist request record: %w", err)
		}
	}
	c.requests[requestID] = &record

	c.log.Info(
		"decryption requested",
		log.Stringer("requestID", requestID),
		log.Uint64("batchID", batchID),
		log.Stringer("caller", caller),
	)
	c.emitter.Emit(ctx, DecryptionRequested{
		RequestID: requestID,
		BatchID:   batchID,
		Caller:    caller,
	})
	return requestID, nil
}

// OnDecryptionResult processes an oracle callback. Checks run strictly in
// order: replay guard, state-binding freshness, proof verification, payload
// decode. The request is marked resolved only after every check passes, so a
// failed callback can be legitimately retried by the oracle.
func (c *DecryptionCoordinator) OnDecryptionResult(
	ctx context.Context,
	requestID ids.ID,
	cleartext []byte,
	proof []byte,
) (*uint256.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, ok := c.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
	}

	// Step A: replay guard, before anything else.
	if record.Resolved {
		return nil, fmt.Errorf("%w: %s", ErrReplayAttempt, requestID)
	}

	// Step B: recompute the binding digest over the batch's current
	// accumulator state and compare against the digest bound at request
	// time. Closed-batch accumulators are immutable today, so a mismatch
	// means tampering; the check also holds if that immutability is ever
	// relaxed.
	handle, ok := c.ledger.AccumulatorHandle(record.BatchID)
	if !ok {
		return nil, fmt.Errorf("%w: accumulator for batch %d is gone",
			ErrStaleState, record.BatchID)
	}
	if BindingDigest(c.instance, [][]byte{handle.Bytes()}) != record.Digest {
		return nil, fmt.Errorf("%w: digest mismatch for batch %d",
			ErrStaleState, record.BatchID)
	}

	// Step C: the only step that trusts external cryptographic material.
	if !c.oracle.VerifyProof(requestID, cleartext, proof) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProof, requestID)
	}

	// Step D: decode and finalize.
	if len(cleartext) != CleartextLen {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d",
			ErrMalformedCleartext, CleartextLen, len(cleartext))
	}
	value := new(uint256.Int).SetBytes(cleartext)

	if c.store != nil {
		if err := c.store.MarkResolved(requestID, cleartext); err != nil {
			return nil, fmt.Errorf("failed to persist resolution: %w", err)
		}
	}
	record.Resolved = true
	c.results[requestID] = value

	c.log.Info(
		"decryption completed",
		log.Stringer("requestID", requestID),
		log.Uint64("batchID", record.BatchID),
		log.String("value", value.String()),
	)
	c.emitter.Emit(ctx, DecryptionCompleted{
		RequestID: requestID,
		BatchID:   record.BatchID,
		Value:     value,
	})
	return value, nil
}

// Request returns a copy of the stored record for a request id
func (c *DecryptionCoordinator) Request(requestID ids.ID) (RequestRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, ok := c.requests[requestID]
	if !ok {
		return RequestRecord{}, false
	}
	return *record, true
}

// Result returns the revealed value of a resolved request
func (c *DecryptionCoordinator) Result(requestID ids.ID) (*uint256.Int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, ok := c.results[requestID]
	if !ok {
		return nil, false
	}
	return value.Clone(), true
}

// Restore replaces the request table with one recovered from a StateStore.
// Intended to be called once, before the coordinator serves traffic.
func (c *DecryptionCoordinator) Restore(
	requests map[ids.ID]RequestRecord,
	results map[ids.ID]*uint256.Int,
) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = make(map[ids.ID]*RequestRecord, len(requests))
	for id, record := range requests {
		record := record
		c.requests[id] = &record
	}
	c.results = make(map[ids.ID]*uint256.Int, len(results))
	for id, value := range results {
		c.results[id] = value.Clone()
	}
}
