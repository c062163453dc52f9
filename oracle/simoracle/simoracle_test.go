// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package simoracle

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/tally/crypto/fhe"
)

func newTestOracle(t *testing.T) (*Oracle, *fhe.MockScheme, fhe.PublicKey) {
	t.Helper()
	scheme := fhe.NewMockScheme()
	pk, sk, err := scheme.GenerateKeys()
	require.NoError(t, err)
	oracle, err := New(log.NoLog{}, scheme, sk)
	require.NoError(t, err)
	return oracle, scheme, pk
}

func TestOracleDecryptsAndSigns(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	oracle, scheme, pk := newTestOracle(t)

	ct, err := scheme.Encrypt(uint256.NewInt(15), pk)
	require.NoError(err)

	var (
		gotRequestID ids.ID
		gotCleartext []byte
		gotProof     []byte
	)
	oracle.SetCallback(func(_ context.Context, requestID ids.ID, cleartext, proof []byte) error {
		gotRequestID = requestID
		gotCleartext = cleartext
		gotProof = proof
		return nil
	})

	requestID, err := oracle.RequestDecryption(ctx, [][]byte{ct.Bytes()})
	require.NoError(err)
	require.Equal(1, oracle.Pending())

	require.NoError(oracle.Flush(ctx))
	require.Zero(oracle.Pending())

	require.Equal(requestID, gotRequestID)
	require.Len(gotCleartext, 32)
	require.Equal(uint64(15), new(uint256.Int).SetBytes(gotCleartext).Uint64())
	require.True(oracle.VerifyProof(requestID, gotCleartext, gotProof))
}

func TestOracleProofRejectsTampering(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	oracle, scheme, pk := newTestOracle(t)

	ct, err := scheme.Encrypt(uint256.NewInt(7), pk)
	require.NoError(err)

	requestID, err := oracle.RequestDecryption(ctx, [][]byte{ct.Bytes()})
	require.NoError(err)
	require.NoError(oracle.Flush(ctx))

	deliveries := oracle.Deliveries()
	require.Len(deliveries, 1)
	d := deliveries[0]

	require.True(oracle.VerifyProof(requestID, d.Cleartext, d.Proof))

	// Tampered cleartext.
	tampered := append([]byte(nil), d.Cleartext...)
	tampered[31]++
	require.False(oracle.VerifyProof(requestID, tampered, d.Proof))

	// Proof bound to a different request id.
	var other ids.ID
	other[0] = 0xff
	require.False(oracle.VerifyProof(other, d.Cleartext, d.Proof))

	// Garbage proof bytes.
	require.False(oracle.VerifyProof(requestID, d.Cleartext, []byte("junk")))
}

func TestOracleRequestIDsDistinct(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	oracle, scheme, pk := newTestOracle(t)

	ct, err := scheme.Encrypt(uint256.NewInt(1), pk)
	require.NoError(err)

	a, err := oracle.RequestDecryption(ctx, [][]byte{ct.Bytes()})
	require.NoError(err)
	b, err := oracle.RequestDecryption(ctx, [][]byte{ct.Bytes()})
	require.NoError(err)
	require.NotEqual(a, b)
}
