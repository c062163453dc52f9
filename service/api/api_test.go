// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

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
	testOwner    = common.HexToAddress("0x0000000000000000000000000000000000000b05")
	testProvider = common.HexToAddress("0xabcdef0000000000000000000000000000000001")
	testInstance = common.HexToAddress("0x00000000000000000000000000000000c0ffee01")
)

type fixture struct {
	protocol  *tally.Protocol
	requestID ids.ID
}

// newFixture builds a protocol with one resolved decryption request over a
// single submission of 15.
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
		Owner:    testOwner,
		Instance: testInstance,
		Oracle:   oracle,
		Logger:   log.NoLog{},
	})
	oracle.SetCallback(func(ctx context.Context, requestID ids.ID, cleartext, proof []byte) error {
		_, err := protocol.OnDecryptionResult(ctx, requestID, cleartext, proof)
		return err
	})

	require.NoError(protocol.AddProvider(ctx, testOwner, testProvider))
	batchID, err := protocol.OpenBatch(ctx, testOwner)
	require.NoError(err)
	ct, err := scheme.Encrypt(uint256.NewInt(15), pk)
	require.NoError(err)
	require.NoError(protocol.Submit(ctx, testProvider, ct))
	require.NoError(protocol.CloseBatch(ctx, testOwner))

	requestID, err := protocol.RequestDecryption(ctx, testProvider, batchID)
	require.NoError(err)
	require.NoError(oracle.Flush(ctx))

	return &fixture{protocol: protocol, requestID: requestID}
}

func get(t *testing.T, handler http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestStatusAPI(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	rec := get(t, statusAPIHandler(log.NoLog{}, f.protocol), StatusAPIPath)
	require.Equal(http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(uint64(1), resp.CurrentBatchID)
	require.False(resp.Open)
	require.False(resp.Paused)
	require.Equal(tally.DefaultCooldown.String(), resp.Cooldown)
}

func TestBatchAPI(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	handler := batchAPIHandler(log.NoLog{}, f.protocol)

	rec := get(t, handler, BatchAPIPath+"?id=1")
	require.Equal(http.StatusOK, rec.Code)
	var resp BatchResponse
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(uint64(1), resp.BatchID)
	require.NotEmpty(resp.Accumulator)

	// Batches that never saw a submission have no accumulator.
	rec = get(t, handler, BatchAPIPath+"?id=9")
	require.Equal(http.StatusOK, rec.Code)
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Empty(resp.Accumulator)

	rec = get(t, handler, BatchAPIPath+"?id=bogus")
	require.Equal(http.StatusBadRequest, rec.Code)
}

func TestRequestAPI(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	handler := requestAPIHandler(log.NoLog{}, f.protocol)

	rec := get(t, handler, RequestAPIPath+"?id=0x"+hex.EncodeToString(f.requestID[:]))
	require.Equal(http.StatusOK, rec.Code)
	var resp RequestResponse
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(uint64(1), resp.BatchID)
	require.True(resp.Resolved)
	require.Equal("15", resp.Value)

	rec = get(t, handler, RequestAPIPath+"?id=0x"+hex.EncodeToString(ids.Empty[:]))
	require.Equal(http.StatusNotFound, rec.Code)

	rec = get(t, handler, RequestAPIPath+"?id=tooshort")
	require.Equal(http.StatusBadRequest, rec.Code)
}
