// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tally

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"
	"github.com/luxfi/p2p"
)

// OracleHandlerID is the protocol ID for decryption oracle traffic
const OracleHandlerID = 0x7a111e01

// ResultHandler handles inbound decryption result frames. The transport
// layer is responsible for only routing frames from the trusted oracle
// identity to this handler.
type ResultHandler struct {
	coordinator *DecryptionCoordinator
}

// NewResultHandler creates a handler delivering results into coordinator
func NewResultHandler(coordinator *DecryptionCoordinator) *ResultHandler {
	return &ResultHandler{coordinator: coordinator}
}

// Request handles an incoming result frame and returns an empty ack
func (h *ResultHandler) Request(ctx context.Context, _ ids.NodeID, _ time.Time, request []byte) ([]byte, error) {
	result, err := UnmarshalDecryptionResult(request)
	if err != nil {
		return nil, err
	}
	if _, err := h.coordinator.OnDecryptionResult(ctx, result.RequestID, result.Cleartext, result.Proof); err != nil {
		return nil, err
	}
	return nil, nil
}

// Ensure ResultHandlerAdapter implements p2p.Handler
var _ p2p.Handler = (*ResultHandlerAdapter)(nil)

// ResultHandlerAdapter adapts a ResultHandler to the p2p.Handler interface
// so it can be registered with the p2p router
type ResultHandlerAdapter struct {
	handler *ResultHandler
}

// NewResultHandlerAdapter creates a new adapter wrapping a ResultHandler
func NewResultHandlerAdapter(handler *ResultHandler) *ResultHandlerAdapter {
	return &ResultHandlerAdapter{handler: handler}
}

// Gossip implements p2p.Handler. Oracle traffic does not use gossip.
func (a *ResultHandlerAdapter) Gossip(ctx context.Context, nodeID ids.NodeID, gossipBytes []byte) {
}

// Request implements p2p.Handler by delegating to the wrapped ResultHandler
func (a *ResultHandlerAdapter) Request(ctx context.Context, nodeID ids.NodeID, deadline time.Time, requestBytes []byte) ([]byte, *p2p.Error) {
	response, err := a.handler.Request(ctx, nodeID, deadline, requestBytes)
	if err != nil {
		return nil, &p2p.Error{
			Code:    500,
			Message: err.Error(),
		}
	}
	return response, nil
}

var errEmptyOracleResponse = errors.New("empty oracle response")

// RemoteOracle is an Oracle backed by a decryption service reachable over
// the p2p network. Proofs are verified locally against the oracle's known
// BLS public key, never by asking the remote side.
type RemoteOracle struct {
	client   *p2p.Client
	nodeID   ids.NodeID
	proofKey *bls.PublicKey
}

var _ Oracle = (*RemoteOracle)(nil)

// NewRemoteOracle creates an oracle client for the service at nodeID whose
// proofs verify under proofKey
func NewRemoteOracle(client *p2p.Client, nodeID ids.NodeID, proofKey *bls.PublicKey) *RemoteOracle {
	return &RemoteOracle{
		client:   client,
		nodeID:   nodeID,
		proofKey: proofKey,
	}
}

type remoteResult struct {
	requestID ids.ID
	err       error
}

// RequestDecryption forwards the handles to the remote oracle and blocks
// until it acknowledges with the request id it assigned, or ctx expires
func (o *RemoteOracle) RequestDecryption(ctx context.Context, handles [][]byte) (ids.ID, error) {
	requestBytes, err := MarshalDecryptionRequest(&DecryptionRequest{Handles: handles})
	if err != nil {
		return ids.Empty, fmt.Errorf("failed to marshal decryption request: %w", err)
	}

	results := make(chan remoteResult, 1)
	onResponse := func(_ context.Context, _ ids.NodeID, responseBytes []byte, err error) {
		if err != nil {
			results <- remoteResult{err: err}
			return
		}
		if len(responseBytes) != ids.IDLen {
			results <- remoteResult{err: errEmptyOracleResponse}
			return
		}
		var requestID ids.ID
		copy(requestID[:], responseBytes)
		results <- remoteResult{requestID: requestID}
	}

	if err := o.client.Request(ctx, set.Of(o.nodeID), requestBytes, onResponse); err != nil {
		return ids.Empty, fmt.Errorf("failed to send decryption request: %w", err)
	}

	select {
	case <-ctx.Done():
		return ids.Empty, ctx.Err()
	case result := <-results:
		if result.err != nil {
			return ids.Empty, fmt.Errorf("oracle rejected decryption request: %w", result.err)
		}
		return result.requestID, nil
	}
}

// VerifyProof checks the BLS signature over (requestID, cleartext) against
// the oracle's known public key
func (o *RemoteOracle) VerifyProof(requestID ids.ID, cleartext, proof []byte) bool {
	sig, err := bls.SignatureFromBytes(proof)
	if err != nil {
		return false
	}
	msg := make([]byte, 0, ids.IDLen+len(cleartext))
	msg = append(msg, requestID[:]...)
	msg = append(msg, cleartext...)
	return bls.Verify(o.proofKey, sig, msg)
}
