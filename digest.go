// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tally

import (
	"encoding/binary"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// DigestLen is the length of a binding digest
const DigestLen = 32

// digestDomain separates binding digests from any other blake3 use
const digestDomain = "tally/binding-digest/v1"

// Digest is a binding digest over an ordered list of ciphertext handles
type Digest [DigestLen]byte

// BindingDigest commits to the exact ordered list of serialized ciphertext
// handles forwarded to the oracle, plus the identity of the coordinator
// instance that issued the request. Including the instance identity prevents
// a digest computed by one deployment from being replayed against another.
func BindingDigest(instance common.Address, handles [][]byte) Digest {
	h := blake3.New()
	h.Write([]byte(digestDomain))
	h.Write(instance.Bytes())

	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(handles)))
	h.Write(n[:])

	for _, handle := range handles {
		binary.BigEndian.PutUint64(n[:], uint64(len(handle)))
		h.Write(n[:])
		h.Write(handle)
	}

	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}
