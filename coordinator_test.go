// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tally

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/tally/crypto/fhe"
)

var testInstance = common.HexToAddress("0x00000000000000000000000000000000c0ffee01")

// scriptedOracle hands out pre-programmed request ids and verifies proofs
// with a swappable predicate
type scriptedOracle struct {
	nextID      ids.ID
	requestErr  error
	lastHandles [][]byte
	verify      func(requestID ids.ID, cleartext, proof []byte) bool
}

func (o *scriptedOracle) RequestDecryption(_ context.Context, handles [][]byte) (ids.ID, error) {
	if o.requestErr != nil {
		return ids.Empty, o.requestErr
	}
	o.lastHandles = handles
	return o.nextID, nil
}

func (o *scriptedOracle) VerifyProof(requestID ids.ID, cleartext, proof []byte) bool {
	if o.verify == nil {
		return true
	}
	return o.verify(requestID, cleartext, proof)
}

func randomRequestID(t *testing.T) ids.ID {
	t.Helper()
	var id ids.ID
	_, err := rand.Read(id[:])
	require.NoError(t, err)
	return id
}

// newTestCoordinator builds a ledger with one closed batch holding the sum
// of the given values, wired to a scripted oracle
func newTestCoordinator(t *testing.T, values ...uint64) (*DecryptionCoordinator, *BatchLedger, *scriptedOracle) {
	t.Helper()
	require := require.New(t)
	ctx := context.Background()

	scheme := fhe.NewMockScheme()
	ledger := newTestLedger()
	_, err := ledger.OpenBatch(ctx)
	require.NoError(err)
	for _, v := range values {
		require.NoError(ledger.Submit(ctx, testProvider, encryptTestValue(t, scheme, v)))
	}
	require.NoError(ledger.CloseBatch(ctx))

	oracle := &scriptedOracle{nextID: randomRequestID(t)}
	coordinator := NewDecryptionCoordinator(log.NoLog{}, nil, testInstance, ledger, oracle, nil)
	return coordinator, ledger, oracle
}

func cleartextOf(v uint64) []byte {
	buf := make([]byte, CleartextLen)
	buf[CleartextLen-1] = byte(v)
	return buf
}

func TestRequestDecryptionInvalidBatch(t *testing.T) {
	coordinator, _, _ := newTestCoordinator(t, 10)
	ctx := context.Background()

	tests := []struct {
		name    string
		batchID uint64
	}{
		{name: "batch zero", batchID: 0},
		{name: "batch beyond current", batchID: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := coordinator.RequestDecryption(ctx, tt.batchID, testProvider)
			require.ErrorIs(t, err, ErrInvalidBatch)
		})
	}
}

func TestRequestDecryptionEmptyBatch(t *testing.T) {
	// A batch with zero submissions has nothing to reveal.
	coordinator, _, _ := newTestCoordinator(t)

	_, err := coordinator.RequestDecryption(context.Background(), 1, testProvider)
	require.ErrorIs(t, err, ErrInvalidBatch)
}

func TestRequestDecryptionSnapshotsHandle(t *testing.T) {
	require := require.New(t)
	coordinator, ledger, oracle := newTestCoordinator(t, 10, 5)

	requestID, err := coordinator.RequestDecryption(context.Background(), 1, testProvider)
	require.NoError(err)
	require.Equal(oracle.nextID, requestID)

	handle, ok := ledger.AccumulatorHandle(1)
	require.True(ok)
	require.Equal([][]byte{handle.Bytes()}, oracle.lastHandles)

	record, ok := coordinator.Request(requestID)
	require.True(ok)
	require.Equal(uint64(1), record.BatchID)
	require.False(record.Resolved)
	require.Equal(BindingDigest(testInstance, oracle.lastHandles), record.Digest)
}

func TestRequestDecryptionIDCollision(t *testing.T) {
	require := require.New(t)
	coordinator, _, _ := newTestCoordinator(t, 10)
	ctx := context.Background()

	_, err := coordinator.RequestDecryption(ctx, 1, testProvider)
	require.NoError(err)

	// The scripted oracle returns the same id again, violating uniqueness.
	_, err = coordinator.RequestDecryption(ctx, 1, testProvider)
	require.ErrorIs(err, ErrRequestIDCollision)
}

func TestOnDecryptionResultUnknownRequest(t *testing.T) {
	coordinator, _, _ := newTestCoordinator(t, 10)

	_, err := coordinator.OnDecryptionResult(context.Background(), randomRequestID(t), cleartextOf(10), nil)
	require.ErrorIs(t, err, ErrUnknownRequest)
}

func TestOnDecryptionResultSuccess(t *testing.T) {
	require := require.New(t)
	coordinator, _, _ := newTestCoordinator(t, 10, 5)
	ctx := context.Background()

	requestID, err := coordinator.RequestDecryption(ctx, 1, testProvider)
	require.NoError(err)

	value, err := coordinator.OnDecryptionResult(ctx, requestID, cleartextOf(15), []byte("proof"))
	require.NoError(err)
	require.Equal(uint64(15), value.Uint64())

	record, ok := coordinator.Request(requestID)
	require.True(ok)
	require.True(record.Resolved)

	stored, ok := coordinator.Result(requestID)
	require.True(ok)
	require.Equal(uint64(15), stored.Uint64())
}

func TestOnDecryptionResultReplay(t *testing.T) {
	require := require.New(t)
	coordinator, _, _ := newTestCoordinator(t, 10, 5)
	ctx := context.Background()

	requestID, err := coordinator.RequestDecryption(ctx, 1, testProvider)
	require.NoError(err)

	_, err = coordinator.OnDecryptionResult(ctx, requestID, cleartextOf(15), []byte("proof"))
	require.NoError(err)

	// Identical payload, replayed.
	_, err = coordinator.OnDecryptionResult(ctx, requestID, cleartextOf(15), []byte("proof"))
	require.ErrorIs(err, ErrReplayAttempt)

	// Different payload, same id.
	_, err = coordinator.OnDecryptionResult(ctx, requestID, cleartextOf(99), []byte("other"))
	require.ErrorIs(err, ErrReplayAttempt)
}

func TestOnDecryptionResultStaleState(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	// Request against a batch that is still open, then mutate it before the
	// callback lands.
	scheme := fhe.NewMockScheme()
	ledger := newTestLedger()
	_, err := ledger.OpenBatch(ctx)
	require.NoError(err)
	require.NoError(ledger.Submit(ctx, testProvider, encryptTestValue(t, scheme, 10)))

	oracle := &scriptedOracle{nextID: randomRequestID(t)}
	coordinator := NewDecryptionCoordinator(log.NoLog{}, nil, testInstance, ledger, oracle, nil)

	requestID, err := coordinator.RequestDecryption(ctx, 1, testProvider)
	require.NoError(err)

	require.NoError(ledger.Submit(ctx, testProvider, encryptTestValue(t, scheme, 5)))

	// Even a valid proof cannot save a stale callback.
	_, err = coordinator.OnDecryptionResult(ctx, requestID, cleartextOf(10), []byte("proof"))
	require.ErrorIs(err, ErrStaleState)

	record, ok := coordinator.Request(requestID)
	require.True(ok)
	require.False(record.Resolved)
}

func TestOnDecryptionResultInvalidProof(t *testing.T) {
	require := require.New(t)
	coordinator, _, oracle := newTestCoordinator(t, 10, 5)
	ctx := context.Background()

	requestID, err := coordinator.RequestDecryption(ctx, 1, testProvider)
	require.NoError(err)

	oracle.verify = func(ids.ID, []byte, []byte) bool { return false }
	_, err = coordinator.OnDecryptionResult(ctx, requestID, cleartextOf(15), []byte("bad"))
	require.ErrorIs(err, ErrInvalidProof)

	// A failed check leaves the request unresolved, so a corrected retry
	// still succeeds.
	oracle.verify = nil
	value, err := coordinator.OnDecryptionResult(ctx, requestID, cleartextOf(15), []byte("proof"))
	require.NoError(err)
	require.Equal(uint64(15), value.Uint64())
}

func TestOnDecryptionResultMalformedCleartext(t *testing.T) {
	require := require.New(t)
	coordinator, _, _ := newTestCoordinator(t, 10, 5)
	ctx := context.Background()

	requestID, err := coordinator.RequestDecryption(ctx, 1, testProvider)
	require.NoError(err)

	for _, n := range []int{0, 1, CleartextLen - 1, CleartextLen + 1} {
		_, err = coordinator.OnDecryptionResult(ctx, requestID, make([]byte, n), []byte("proof"))
		require.ErrorIs(err, ErrMalformedCleartext)
	}

	// Still resolvable after the malformed attempts.
	value, err := coordinator.OnDecryptionResult(ctx, requestID, cleartextOf(15), []byte("proof"))
	require.NoError(err)
	require.Equal(uint64(15), value.Uint64())
}
