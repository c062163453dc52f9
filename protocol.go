// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tally implements a confidential aggregation protocol: trusted
// providers contribute homomorphically encrypted values into periodic
// batches, and a batch's aggregate can later be revealed exactly once per
// request through an asynchronous decryption oracle, with replay,
// state-binding, and proof checks on the callback path.
package tally

import (
	"context"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"

	"github.com/luxfi/tally/crypto/fhe"
)

// ProtocolConfig configures a Protocol instance
type ProtocolConfig struct {
	// Owner is the single identity allowed to administer the gate and the
	// batch lifecycle
	Owner common.Address

	// Instance is the protocol deployment's own identity, bound into every
	// decryption request digest
	Instance common.Address

	// Oracle performs asynchronous decryption
	Oracle Oracle

	// Store persists protocol state; nil for in-memory operation
	Store StateStore

	Logger log.Logger
}

// Protocol wires the submission gate, batch ledger, and decryption
// coordinator into the externally callable surface
type Protocol struct {
	log     log.Logger
	emitter *Emitter

	gate        *SubmissionGate
	ledger      *BatchLedger
	coordinator *DecryptionCoordinator
}

// NewProtocol creates a protocol instance from the given configuration
func NewProtocol(cfg ProtocolConfig) *Protocol {
	emitter := NewEmitter(cfg.Logger)
	ledger := NewBatchLedger(cfg.Logger, emitter, cfg.Store)
	return &Protocol{
		log:     cfg.Logger,
		emitter: emitter,
		gate:    NewSubmissionGate(cfg.Logger, emitter, cfg.Owner),
		ledger:  ledger,
		coordinator: NewDecryptionCoordinator(
			cfg.Logger,
			emitter,
			cfg.Instance,
			ledger,
			cfg.Oracle,
			cfg.Store,
		),
	}
}

// Gate returns the submission gate
func (p *Protocol) Gate() *SubmissionGate { return p.gate }

// Ledger returns the batch ledger
func (p *Protocol) Ledger() *BatchLedger { return p.ledger }

// Coordinator returns the decryption coordinator
func (p *Protocol) Coordinator() *DecryptionCoordinator { return p.coordinator }

// RegisterSink subscribes a sink to all protocol events
func (p *Protocol) RegisterSink(sink Sink) {
	p.emitter.Register(sink)
}

// AddProvider authorizes a provider. Owner only.
func (p *Protocol) AddProvider(ctx context.Context, caller, provider common.Address) error {
	return p.gate.AddProvider(ctx, caller, provider)
}

// RemoveProvider revokes a provider. Owner only.
func (p *Protocol) RemoveProvider(ctx context.Context, caller, provider common.Address) error {
	return p.gate.RemoveProvider(ctx, caller, provider)
}

// Pause stops all mutating operations. Owner only.
func (p *Protocol) Pause(ctx context.Context, caller common.Address) error {
	return p.gate.Pause(ctx, caller)
}

// Unpause resumes mutating operations. Owner only.
func (p *Protocol) Unpause(ctx context.Context, caller common.Address) error {
	return p.gate.Unpause(ctx, caller)
}

// SetCooldown changes the provider submission cooldown. Owner only.
func (p *Protocol) SetCooldown(ctx context.Context, caller common.Address, d time.Duration) error {
	return p.gate.SetCooldown(ctx, caller, d)
}

// OpenBatch opens a batch for submissions. Owner only.
func (p *Protocol) OpenBatch(ctx context.Context, caller common.Address) (uint64, error) {
	if caller != p.gate.Owner() {
		return 0, ErrNotOwner
	}
	return p.ledger.OpenBatch(ctx)
}

// CloseBatch closes the open batch. Owner only.
func (p *Protocol) CloseBatch(ctx context.Context, caller common.Address) error {
	if caller != p.gate.Owner() {
		return ErrNotOwner
	}
	return p.ledger.CloseBatch(ctx)
}

// Submit contributes an encrypted value into the open batch on behalf of a
// provider. The gate authorizes the provider before the ledger mutates, and
// the provider's cooldown restarts only after a successful submission.
func (p *Protocol) Submit(ctx context.Context, provider common.Address, value fhe.Ciphertext) error {
	if err := p.gate.Authorize(provider); err != nil {
		return err
	}
	if err := p.ledger.Submit(ctx, provider, value); err != nil {
		return err
	}
	p.gate.MarkSubmitted(provider)
	return nil
}

// RequestDecryption asks the oracle to reveal a batch's aggregate. Blocked
// while paused; the result arrives asynchronously via OnDecryptionResult.
func (p *Protocol) RequestDecryption(
	ctx context.Context,
	caller common.Address,
	batchID uint64,
) (ids.ID, error) {
	if p.gate.Paused() {
		return ids.Empty, ErrPaused
	}
	return p.coordinator.RequestDecryption(ctx, batchID, caller)
}

// OnDecryptionResult is the oracle callback entry point. Verifying that the
// caller actually is the trusted oracle identity is the transport layer's
// responsibility; deliberately, pausing does not block resolution of
// requests that were already in flight.
func (p *Protocol) OnDecryptionResult(
	ctx context.Context,
	requestID ids.ID,
	cleartext []byte,
	proof []byte,
) (*uint256.Int, error) {
	return p.coordinator.OnDecryptionResult(ctx, requestID, cleartext, proof)
}
