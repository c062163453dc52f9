// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tally

import (
	"context"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
)

// Event is implemented by every observable protocol event. Events exist for
// monitoring and audit; nothing in the protocol consumes them.
type Event interface {
	Kind() string
}

// ProviderAdded is emitted when the owner authorizes a provider
type ProviderAdded struct {
	Provider common.Address
}

// ProviderRemoved is emitted when the owner revokes a provider
type ProviderRemoved struct {
	Provider common.Address
}

// Paused is emitted when the owner pauses all mutating operations
type Paused struct{}

// Unpaused is emitted when the owner lifts a pause
type Unpaused struct{}

// CooldownChanged is emitted when the owner changes the submission cooldown
type CooldownChanged struct {
	Cooldown time.Duration
}

// BatchOpened is emitted when a batch opens for submissions
type BatchOpened struct {
	BatchID uint64
}

// BatchClosed is emitted when a batch closes
type BatchClosed struct {
	BatchID uint64
}

// ValueSubmitted is emitted when a provider's ciphertext is folded into the
// open batch. Handle is the serialized accumulator handle after the combine.
type ValueSubmitted struct {
	BatchID   uint64
	Submitter common.Address
	Handle    []byte
}

// DecryptionRequested is emitted when a decryption request is forwarded to
// the oracle
type DecryptionRequested struct {
	RequestID ids.ID
	BatchID   uint64
	Caller    common.Address
}

// DecryptionCompleted is emitted exactly once per resolved request
type DecryptionCompleted struct {
	RequestID ids.ID
	BatchID   uint64
	Value     *uint256.Int
}

func (ProviderAdded) Kind() string       { return "provider_added" }
func (ProviderRemoved) Kind() string     { return "provider_removed" }
func (Paused) Kind() string              { return "paused" }
func (Unpaused) Kind() string            { return "unpaused" }
func (CooldownChanged) Kind() string     { return "cooldown_changed" }
func (BatchOpened) Kind() string         { return "batch_opened" }
func (BatchClosed) Kind() string         { return "batch_closed" }
func (ValueSubmitted) Kind() string      { return "value_submitted" }
func (DecryptionRequested) Kind() string { return "decryption_requested" }
func (DecryptionCompleted) Kind() string { return "decryption_completed" }

// Sink receives protocol events. Sinks must not call back into the protocol.
type Sink interface {
	Accept(ctx context.Context, event Event) error
}

// Emitter fans protocol events out to registered sinks. Delivery is
// best-effort: a failing sink is logged and skipped, it never blocks or
// fails the operation that produced the event. A nil *Emitter is valid and
// drops everything.
type Emitter struct {
	mu    sync.RWMutex
	log   log.Logger
	sinks []Sink
}

// NewEmitter returns an emitter with no sinks registered
func NewEmitter(logger log.Logger) *Emitter {
	return &Emitter{log: logger}
}

// Register adds a sink
func (e *Emitter) Register(sink Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, sink)
}

// Emit delivers an event to every registered sink
func (e *Emitter) Emit(ctx context.Context, event Event) {
	if e == nil {
		return
	}
	e.mu.RLock()
	sinks := make([]Sink, len(e.sinks))
	copy(sinks, e.sinks)
	e.mu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Accept(ctx, event); err != nil {
			e.log.Warn(
				"event sink rejected event",
				log.String("kind", event.Kind()),
				log.Err(err),
			)
		}
	}
}
