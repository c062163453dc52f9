// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tally

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/luxfi/ids"
)

// Oracle is the external asynchronous decryption service. RequestDecryption
// forwards an ordered list of serialized ciphertext handles and returns the
// oracle-assigned request id; the cleartext arrives later through the
// coordinator's callback. Request ids are chosen by the oracle and assumed
// globally unique; the coordinator makes no assumptions about their
// monotonicity or predictability.
type Oracle interface {
	// RequestDecryption submits handles for asynchronous decryption
	RequestDecryption(ctx context.Context, handles [][]byte) (ids.ID, error)

	// VerifyProof checks the oracle's proof of authenticity for a callback
	VerifyProof(requestID ids.ID, cleartext, proof []byte) bool
}

// DecryptionRequest is the wire form of an outbound oracle request
type DecryptionRequest struct {
	Handles [][]byte
}

// DecryptionResult is the wire form of an inbound oracle callback
type DecryptionResult struct {
	RequestID ids.ID
	Cleartext []byte
	Proof     []byte
}

// MarshalDecryptionRequest marshals a decryption request to bytes
func MarshalDecryptionRequest(req *DecryptionRequest) ([]byte, error) {
	// Format: count(4) + (handleLen(4) + handle)*
	size := 4
	for _, h := range req.Handles {
		size += 4 + len(h)
	}
	buf := make([]byte, size)
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(req.Handles)))
	offset := 4
	for _, h := range req.Handles {
		binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(h)))
		offset += 4
		copy(buf[offset:], h)
		offset += len(h)
	}
	return buf, nil
}

// UnmarshalDecryptionRequest unmarshals bytes to a decryption request
func UnmarshalDecryptionRequest(data []byte) (*DecryptionRequest, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("data too short: %d", len(data))
	}
	count := int(binary.BigEndian.Uint32(data[0:4]))
	// Each handle needs at least its 4-byte length prefix.
	if count > (len(data)-4)/4 {
		return nil, fmt.Errorf("handle count %d exceeds frame size %d", count, len(data))
	}
	handles := make([][]byte, 0, count)
	offset := 4
	for i := 0; i < count; i++ {
		if len(data)-offset < 4 {
			return nil, fmt.Errorf("data too short for handle %d length", i)
		}
		handleLen := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		offset += 4
		if handleLen > len(data)-offset {
			return nil, fmt.Errorf("data too short for handle %d", i)
		}
		handles = append(handles, data[offset:offset+handleLen])
		offset += handleLen
	}
	return &DecryptionRequest{Handles: handles}, nil
}

// MarshalDecryptionResult marshals a decryption result to bytes
func MarshalDecryptionResult(res *DecryptionResult) ([]byte, error) {
	// Format: requestID(32) + clearLen(4) + cleartext + proofLen(4) + proof
	clearLen := len(res.Cleartext)
	proofLen := len(res.Proof)
	buf := make([]byte, ids.IDLen+4+clearLen+4+proofLen)
	copy(buf[:ids.IDLen], res.RequestID[:])
	offset := ids.IDLen
	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(clearLen))
	offset += 4
	copy(buf[offset:], res.Cleartext)
	offset += clearLen
	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(proofLen))
	offset += 4
	copy(buf[offset:], res.Proof)
	return buf, nil
}

// UnmarshalDecryptionResult unmarshals bytes to a decryption result
func UnmarshalDecryptionResult(data []byte) (*DecryptionResult, error) {
	if len(data) < ids.IDLen+8 {
		return nil, fmt.Errorf("data too short: %d", len(data))
	}
	res := &DecryptionResult{}
	copy(res.RequestID[:], data[:ids.IDLen])
	offset := ids.IDLen
	clearLen := binary.BigEndian.Uint32(data[offset : offset+4])
	offset += 4
	if len(data) < offset+int(clearLen)+4 {
		return nil, fmt.Errorf("data too short for cleartext: %d", len(data))
	}
	res.Cleartext = data[offset : offset+int(clearLen)]
	offset += int(clearLen)
	proofLen := binary.BigEndian.Uint32(data[offset : offset+4])
	offset += 4
	if len(data) < offset+int(proofLen) {
		return nil, fmt.Errorf("data too short for proof: %d", len(data))
	}
	res.Proof = data[offset : offset+int(proofLen)]
	return res, nil
}
