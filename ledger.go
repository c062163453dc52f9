// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tally

import (
	"context"
	"fmt"
	"sync"

	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/tally/crypto/fhe"
)

// BatchLedger owns the batch lifecycle state machine and the per-batch
// encrypted accumulator slots. At most one batch is open at any time; batch
// ids start at 1, only increase, and are never reused once superseded.
// Closed batches retain their accumulator permanently so they stay
// decryptable.
type BatchLedger struct {
	mu      sync.RWMutex
	log     log.Logger
	emitter *Emitter
	store   StateStore // optional

	currentID    uint64
	open         bool
	accumulators map[uint64]*EncryptedAccumulator
}

// NewBatchLedger returns a ledger with batch 1 pre-allocated and closed.
// store may be nil for purely in-memory operation.
func NewBatchLedger(logger log.Logger, emitter *Emitter, store StateStore) *BatchLedger {
	return &BatchLedger{
		log:          logger,
		emitter:      emitter,
		store:        store,
		currentID:    1,
		accumulators: make(map[uint64]*EncryptedAccumulator),
	}
}

// CurrentBatch returns the current batch id and whether it is open
func (l *BatchLedger) CurrentBatch() (uint64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.currentID, l.open
}

// OpenBatch opens a batch for submissions and returns its id. Opening from
// the closed state opens the pre-allocated current id; opening while a batch
// is already open closes it implicitly and starts a brand-new batch under
// the next id, so an id never denotes more than one open window.
func (l *BatchLedger) OpenBatch(ctx context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.currentID
	if l.open {
		id++
	}
	if l.store != nil {
		if err := l.store.PutBatchMeta(id, true); err != nil {
			return 0, fmt.Errorf("failed to persist batch meta: %w", err)
		}
	}
	l.currentID = id
	l.open = true

	l.log.Info("batch opened", log.Uint64("batchID", id))
	l.emitter.Emit(ctx, BatchOpened{BatchID: id})
	return id, nil
}

// CloseBatch closes the open batch. The accumulator is retained.
func (l *BatchLedger) CloseBatch(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.open {
		return ErrBatchNotOpen
	}
	if l.store != nil {
		if err := l.store.PutBatchMeta(l.currentID, false); err != nil {
			return fmt.Errorf("failed to persist batch meta: %w", err)
		}
	}
	l.open = false

	l.log.Info("batch closed", log.Uint64("batchID", l.currentID))
	l.emitter.Emit(ctx, BatchClosed{BatchID: l.currentID})
	return nil
}

// Submit folds a provider's ciphertext into the open batch's accumulator.
// Authorization and rate limiting are the submission gate's concern, not the
// ledger's; submitter is carried only for the emitted event.
func (l *BatchLedger) Submit(ctx context.Context, submitter common.Address, value fhe.Ciphertext) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.open {
		return ErrBatchNotOpen
	}
	if value == nil {
		return ErrUninitializedValue
	}

	acc, ok := l.accumulators[l.currentID]
	if !ok {
		acc = NewEncryptedAccumulator()
		l.accumulators[l.currentID] = acc
	}

	combined, err := acc.Combine(value)
	if err != nil {
		return fmt.Errorf("failed to combine ciphertext: %w", err)
	}
	if l.store != nil {
		if err := l.store.PutAccumulator(l.currentID, combined.Bytes()); err != nil {
			return fmt.Errorf("failed to persist accumulator: %w", err)
		}
	}
	acc.Store(combined)

	l.log.Debug(
		"value submitted",
		log.Uint64("batchID", l.currentID),
		log.Stringer("submitter", submitter),
	)
	l.emitter.Emit(ctx, ValueSubmitted{
		BatchID:   l.currentID,
		Submitter: submitter,
		Handle:    combined.Bytes(),
	})
	return nil
}

// AccumulatorHandle returns the accumulator handle for a batch, or false if
// the batch has no contributions
func (l *BatchLedger) AccumulatorHandle(batchID uint64) (fhe.Ciphertext, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acc, ok := l.accumulators[batchID]
	if !ok || !acc.IsSet() {
		return nil, false
	}
	return acc.Handle(), true
}

// Restore replaces the ledger's state with one recovered from a StateStore.
// Intended to be called once, before the ledger serves traffic.
func (l *BatchLedger) Restore(currentID uint64, open bool, handles map[uint64]fhe.Ciphertext) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if currentID == 0 {
		currentID = 1
	}
	l.currentID = currentID
	l.open = open
	l.accumulators = make(map[uint64]*EncryptedAccumulator, len(handles))
	for id, handle := range handles {
		acc := NewEncryptedAccumulator()
		acc.Store(handle)
		l.accumulators[id] = acc
	}
}
