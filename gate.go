// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tally

import (
	"context"
	"sync"
	"time"

	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/luxfi/math/set"

	"github.com/luxfi/tally/cache"
)

// DefaultCooldown is the submission cooldown applied until the owner sets
// another one
const DefaultCooldown = time.Minute

// SubmissionGate decides who may mutate the batch ledger. It owns the
// provider allow-list, the global pause flag, and the per-provider
// submission cooldown. All administration is restricted to a single owner
// identity fixed at construction.
type SubmissionGate struct {
	mu      sync.RWMutex
	log     log.Logger
	emitter *Emitter

	owner     common.Address
	providers set.Set[common.Address]
	paused    bool
	cooldowns *cache.Cooldown[common.Address]
}

// NewSubmissionGate returns a gate owned by owner, with an empty allow-list
// and the default cooldown
func NewSubmissionGate(logger log.Logger, emitter *Emitter, owner common.Address) *SubmissionGate {
	return &SubmissionGate{
		log:       logger,
		emitter:   emitter,
		owner:     owner,
		providers: set.Of[common.Address](),
		cooldowns: cache.NewCooldown[common.Address](DefaultCooldown),
	}
}

// Owner returns the owner identity
func (g *SubmissionGate) Owner() common.Address {
	return g.owner
}

func (g *SubmissionGate) requireOwner(caller common.Address) error {
	if caller != g.owner {
		return ErrNotOwner
	}
	return nil
}

// AddProvider authorizes a provider. Owner only.
func (g *SubmissionGate) AddProvider(ctx context.Context, caller, provider common.Address) error {
	if err := g.requireOwner(caller); err != nil {
		return err
	}
	g.mu.Lock()
	g.providers.Add(provider)
	g.mu.Unlock()

	g.log.Info("provider added", log.Stringer("provider", provider))
	g.emitter.Emit(ctx, ProviderAdded{Provider: provider})
	return nil
}

// RemoveProvider revokes a provider. Owner only.
func (g *SubmissionGate) RemoveProvider(ctx context.Context, caller, provider common.Address) error {
	if err := g.requireOwner(caller); err != nil {
		return err
	}
	g.mu.Lock()
	g.providers.Remove(provider)
	g.mu.Unlock()

	g.log.Info("provider removed", log.Stringer("provider", provider))
	g.emitter.Emit(ctx, ProviderRemoved{Provider: provider})
	return nil
}

// IsProvider reports whether the identity is on the allow-list
func (g *SubmissionGate) IsProvider(provider common.Address) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.providers.Contains(provider)
}

// Pause stops all gated operations. Owner only.
func (g *SubmissionGate) Pause(ctx context.Context, caller common.Address) error {
	if err := g.requireOwner(caller); err != nil {
		return err
	}
	g.mu.Lock()
	g.paused = true
	g.mu.Unlock()

	g.log.Info("paused")
	g.emitter.Emit(ctx, Paused{})
	return nil
}

// Unpause resumes gated operations. Owner only.
func (g *SubmissionGate) Unpause(ctx context.Context, caller common.Address) error {
	if err := g.requireOwner(caller); err != nil {
		return err
	}
	g.mu.Lock()
	g.paused = false
	g.mu.Unlock()

	g.log.Info("unpaused")
	g.emitter.Emit(ctx, Unpaused{})
	return nil
}

// Paused reports the pause flag
func (g *SubmissionGate) Paused() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.paused
}

// SetCooldown changes the per-provider submission cooldown. Owner only; the
// duration must be positive.
func (g *SubmissionGate) SetCooldown(ctx context.Context, caller common.Address, d time.Duration) error {
	if err := g.requireOwner(caller); err != nil {
		return err
	}
	if d <= 0 {
		return ErrInvalidParameter
	}
	g.cooldowns.SetTTL(d)

	g.log.Info("cooldown changed", log.String("cooldown", d.String()))
	g.emitter.Emit(ctx, CooldownChanged{Cooldown: d})
	return nil
}

// Cooldown returns the current cooldown duration
func (g *SubmissionGate) Cooldown() time.Duration {
	return g.cooldowns.TTL()
}

// Authorize checks whether a provider may submit right now. Checked in
// order: pause flag, allow-list membership, cooldown.
func (g *SubmissionGate) Authorize(provider common.Address) error {
	g.mu.RLock()
	paused := g.paused
	allowed := g.providers.Contains(provider)
	g.mu.RUnlock()

	switch {
	case paused:
		return ErrPaused
	case !allowed:
		return ErrNotProvider
	case g.cooldowns.Active(provider):
		return ErrCooldownActive
	}
	return nil
}

// MarkSubmitted restarts the provider's cooldown window after a successful
// submission
func (g *SubmissionGate) MarkSubmitted(provider common.Address) {
	g.cooldowns.Touch(provider)
}
