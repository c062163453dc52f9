// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tally_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/tally"
	"github.com/luxfi/tally/crypto/fhe"
	"github.com/luxfi/tally/oracle/simoracle"
)

var (
	owner    = common.HexToAddress("0x0000000000000000000000000000000000000b05")
	provider = common.HexToAddress("0xabcdef0000000000000000000000000000000001")
	instance = common.HexToAddress("0x00000000000000000000000000000000c0ffee01")
)

// eventRecorder is a Sink collecting every emitted event
type eventRecorder struct {
	mu     sync.Mutex
	events []tally.Event
}

func (r *eventRecorder) Accept(_ context.Context, event tally.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) completed() []tally.DecryptionCompleted {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []tally.DecryptionCompleted
	for _, ev := range r.events {
		if c, ok := ev.(tally.DecryptionCompleted); ok {
			out = append(out, c)
		}
	}
	return out
}

type fixture struct {
	protocol *tally.Protocol
	oracle   *simoracle.Oracle
	scheme   *fhe.MockScheme
	pk       fhe.PublicKey
	events   *eventRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	require := require.New(t)
	ctx := context.Background()

	scheme := fhe.NewMockScheme()
	pk, sk, err := scheme.GenerateKeys()
	require.NoError(err)

	oracle, err := simoracle.New(log.NoLog{}, scheme, sk)
	require.NoError(err)

	protocol := tally.NewProtocol(tally.ProtocolConfig{
		Owner:    owner,
		Instance: instance,
		Oracle:   oracle,
		Logger:   log.NoLog{},
	})
	oracle.SetCallback(func(ctx context.Context, requestID ids.ID, cleartext, proof []byte) error {
		_, err := protocol.OnDecryptionResult(ctx, requestID, cleartext, proof)
		return err
	})

	events := &eventRecorder{}
	protocol.RegisterSink(events)

	require.NoError(protocol.AddProvider(ctx, owner, provider))
	require.NoError(protocol.SetCooldown(ctx, owner, 10*time.Millisecond))

	return &fixture{
		protocol: protocol,
		oracle:   oracle,
		scheme:   scheme,
		pk:       pk,
		events:   events,
	}
}

func (f *fixture) encrypt(t *testing.T, v uint64) fhe.Ciphertext {
	t.Helper()
	ct, err := f.scheme.Encrypt(uint256.NewInt(v), f.pk)
	require.NoError(t, err)
	return ct
}

// Scenario A: submit 10 and 5, close, request, oracle reveals 15.
func TestEndToEndReveal(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	batchID, err := f.protocol.OpenBatch(ctx, owner)
	require.NoError(err)
	require.Equal(uint64(1), batchID)

	require.NoError(f.protocol.Submit(ctx, provider, f.encrypt(t, 10)))

	// Second submission from the same provider must wait out the cooldown.
	require.ErrorIs(f.protocol.Submit(ctx, provider, f.encrypt(t, 5)), tally.ErrCooldownActive)
	time.Sleep(15 * time.Millisecond)
	require.NoError(f.protocol.Submit(ctx, provider, f.encrypt(t, 5)))

	require.NoError(f.protocol.CloseBatch(ctx, owner))

	requestID, err := f.protocol.RequestDecryption(ctx, provider, batchID)
	require.NoError(err)

	require.NoError(f.oracle.Flush(ctx))

	value, ok := f.protocol.Coordinator().Result(requestID)
	require.True(ok)
	require.Equal(uint64(15), value.Uint64())

	completed := f.events.completed()
	require.Len(completed, 1)
	require.Equal(requestID, completed[0].RequestID)
	require.Equal(batchID, completed[0].BatchID)
	require.Equal(uint64(15), completed[0].Value.Uint64())
}

// Scenario B: a verbatim replay of a successful callback is rejected and the
// completion event fires exactly once.
func TestEndToEndReplayRejected(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	batchID, err := f.protocol.OpenBatch(ctx, owner)
	require.NoError(err)
	require.NoError(f.protocol.Submit(ctx, provider, f.encrypt(t, 10)))
	time.Sleep(15 * time.Millisecond)
	require.NoError(f.protocol.Submit(ctx, provider, f.encrypt(t, 5)))
	require.NoError(f.protocol.CloseBatch(ctx, owner))

	_, err = f.protocol.RequestDecryption(ctx, provider, batchID)
	require.NoError(err)
	require.NoError(f.oracle.Flush(ctx))

	deliveries := f.oracle.Deliveries()
	require.Len(deliveries, 1)
	d := deliveries[0]

	_, err = f.protocol.OnDecryptionResult(ctx, d.RequestID, d.Cleartext, d.Proof)
	require.ErrorIs(err, tally.ErrReplayAttempt)

	require.Len(f.events.completed(), 1)
}

// Scenario C: requesting a batch that was never opened fails.
func TestEndToEndRequestUnknownBatch(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	batchID, err := f.protocol.OpenBatch(ctx, owner)
	require.NoError(err)
	require.Equal(uint64(1), batchID)
	require.NoError(f.protocol.Submit(ctx, provider, f.encrypt(t, 10)))

	_, err = f.protocol.RequestDecryption(ctx, provider, 2)
	require.ErrorIs(err, tally.ErrInvalidBatch)
}

// Scenario D: submitting before any batch is opened fails.
func TestEndToEndSubmitBeforeOpen(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	err := f.protocol.Submit(context.Background(), provider, f.encrypt(t, 10))
	require.ErrorIs(err, tally.ErrBatchNotOpen)
}

func TestEndToEndUnauthorizedSubmit(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.protocol.OpenBatch(ctx, owner)
	require.NoError(err)

	stranger := common.HexToAddress("0x000000000000000000000000000000000000dead")
	require.ErrorIs(f.protocol.Submit(ctx, stranger, f.encrypt(t, 10)), tally.ErrNotProvider)
}

func TestEndToEndPauseBlocksMutations(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	batchID, err := f.protocol.OpenBatch(ctx, owner)
	require.NoError(err)
	require.NoError(f.protocol.Submit(ctx, provider, f.encrypt(t, 10)))
	require.NoError(f.protocol.Pause(ctx, owner))

	require.ErrorIs(f.protocol.Submit(ctx, provider, f.encrypt(t, 5)), tally.ErrPaused)
	_, err = f.protocol.RequestDecryption(ctx, provider, batchID)
	require.ErrorIs(err, tally.ErrPaused)

	require.NoError(f.protocol.Unpause(ctx, owner))
	_, err = f.protocol.RequestDecryption(ctx, provider, batchID)
	require.NoError(err)
}

func TestEndToEndNonOwnerCannotManageBatches(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.protocol.OpenBatch(ctx, provider)
	require.ErrorIs(err, tally.ErrNotOwner)

	_, err = f.protocol.OpenBatch(ctx, owner)
	require.NoError(err)
	require.ErrorIs(f.protocol.CloseBatch(ctx, provider), tally.ErrNotOwner)
}
