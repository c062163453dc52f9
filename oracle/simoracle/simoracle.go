// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package simoracle provides an in-process decryption oracle for tests and
// local development. It decrypts with a configured FHE scheme and signs
// every result with a BLS key, so the coordinator's proof verification path
// is exercised for real. Delivery is explicit: queued requests sit until
// Flush is called, which lets tests interleave submissions and callbacks in
// any order.
package simoracle

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"

	"github.com/luxfi/tally/crypto/fhe"
)

// CallbackFunc receives a decryption result. It is the coordinator's
// OnDecryptionResult in a full wiring.
type CallbackFunc func(ctx context.Context, requestID ids.ID, cleartext, proof []byte) error

// Delivery is a recorded callback payload
type Delivery struct {
	RequestID ids.ID
	Cleartext []byte
	Proof     []byte
}

type job struct {
	requestID ids.ID
	handles   [][]byte
}

// Oracle simulates the external asynchronous decryption service
type Oracle struct {
	mu  sync.Mutex
	log log.Logger

	scheme fhe.Scheme
	key    fhe.PrivateKey
	signer *bls.SecretKey

	callback   CallbackFunc
	pending    []job
	seen       map[ids.ID]struct{}
	deliveries []Delivery
}

// New creates a simulated oracle holding the decryption key for scheme and
// a fresh BLS proof-signing key
func New(logger log.Logger, scheme fhe.Scheme, key fhe.PrivateKey) (*Oracle, error) {
	signer, err := bls.NewSecretKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate proof-signing key: %w", err)
	}
	return &Oracle{
		log:    logger,
		scheme: scheme,
		key:    key,
		signer: signer,
		seen:   make(map[ids.ID]struct{}),
	}, nil
}

// SetCallback sets the destination for flushed results
func (o *Oracle) SetCallback(cb CallbackFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.callback = cb
}

// PublicKey returns the proof verification key
func (o *Oracle) PublicKey() *bls.PublicKey {
	return o.signer.PublicKey()
}

// RequestDecryption queues a decryption job and returns a fresh random
// request id
func (o *Oracle) RequestDecryption(_ context.Context, handles [][]byte) (ids.ID, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var requestID ids.ID
	for {
		if _, err := rand.Read(requestID[:]); err != nil {
			return ids.Empty, err
		}
		if _, dup := o.seen[requestID]; !dup {
			break
		}
	}
	o.seen[requestID] = struct{}{}

	copied := make([][]byte, len(handles))
	for i, h := range handles {
		copied[i] = append([]byte(nil), h...)
	}
	o.pending = append(o.pending, job{requestID: requestID, handles: copied})

	o.log.Debug(
		"decryption job queued",
		log.Stringer("requestID", requestID),
	)
	return requestID, nil
}

// VerifyProof checks the BLS signature over (requestID, cleartext)
func (o *Oracle) VerifyProof(requestID ids.ID, cleartext, proof []byte) bool {
	sig, err := bls.SignatureFromBytes(proof)
	if err != nil {
		return false
	}
	return bls.Verify(o.signer.PublicKey(), sig, proofMessage(requestID, cleartext))
}

// Pending returns the number of queued jobs
func (o *Oracle) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Deliveries returns every callback payload delivered so far, letting tests
// replay one verbatim
func (o *Oracle) Deliveries() []Delivery {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Delivery, len(o.deliveries))
	copy(out, o.deliveries)
	return out
}

// Flush decrypts every queued job and delivers the results through the
// callback, in request order. Callback rejections are logged and do not
// stop the flush; decryption failures abort it.
func (o *Oracle) Flush(ctx context.Context) error {
	o.mu.Lock()
	jobs := o.pending
	o.pending = nil
	cb := o.callback
	o.mu.Unlock()

	for _, j := range jobs {
		cleartext, err := o.decrypt(j.handles)
		if err != nil {
			return fmt.Errorf("failed to decrypt request %s: %w", j.requestID, err)
		}

		sig, err := o.signer.Sign(proofMessage(j.requestID, cleartext))
		if err != nil {
			return fmt.Errorf("failed to sign proof for request %s: %w", j.requestID, err)
		}
		proof := bls.SignatureToBytes(sig)

		o.mu.Lock()
		o.deliveries = append(o.deliveries, Delivery{
			RequestID: j.requestID,
			Cleartext: cleartext,
			Proof:     proof,
		})
		o.mu.Unlock()

		if cb == nil {
			continue
		}
		if err := cb(ctx, j.requestID, cleartext, proof); err != nil {
			o.log.Warn(
				"callback rejected decryption result",
				log.Stringer("requestID", j.requestID),
				log.Err(err),
			)
		}
	}
	return nil
}

// decrypt decrypts each handle and concatenates the 32-byte big-endian
// values in order
func (o *Oracle) decrypt(handles [][]byte) ([]byte, error) {
	out := make([]byte, 0, 32*len(handles))
	for _, h := range handles {
		ct, err := o.scheme.ParseCiphertext(h)
		if err != nil {
			return nil, err
		}
		value, err := o.scheme.Decrypt(ct, o.key)
		if err != nil {
			return nil, err
		}
		b := value.Bytes32()
		out = append(out, b[:]...)
	}
	return out, nil
}

func proofMessage(requestID ids.ID, cleartext []byte) []byte {
	msg := make([]byte, 0, len(requestID)+len(cleartext))
	msg = append(msg, requestID[:]...)
	msg = append(msg, cleartext...)
	return msg
}
