// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package store persists protocol state in a Pebble key-value database:
// the batch counter and open flag, per-batch accumulator handles, and the
// permanent decryption request records with their revealed values.
package store

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/luxfi/geth/rlp"
	"github.com/luxfi/ids"

	"github.com/luxfi/tally"
)

// Key layout.
var (
	keyBatchMeta      = []byte("m:batch")
	prefixAccumulator = []byte("a:") // a:<batchID> -> handle bytes
	prefixRequest     = []byte("r:") // r:<requestID> -> rlp(RequestRecord)
	prefixResult      = []byte("v:") // v:<requestID> -> cleartext bytes
)

var _ tally.StateStore = (*Store)(nil)

// Store is a Pebble-backed tally.StateStore
type Store struct {
	db *pebble.DB
}

// batchMeta is the persisted form of the ledger's counter and open flag
type batchMeta struct {
	CurrentID uint64
	Open      bool
}

// New opens (or creates) a store at the given path
func New(path string) (*Store, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(8 << 20),
		MemTableSize: 4 << 20,
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// PutBatchMeta records the current batch id and open flag
func (s *Store) PutBatchMeta(currentID uint64, open bool) error {
	b, err := rlp.EncodeToBytes(&batchMeta{CurrentID: currentID, Open: open})
	if err != nil {
		return err
	}
	return s.db.Set(keyBatchMeta, b, pebble.Sync)
}

// BatchMeta returns the persisted batch counter and open flag. found is
// false on a fresh store.
func (s *Store) BatchMeta() (currentID uint64, open bool, found bool, err error) {
	b, err := s.get(keyBatchMeta)
	if err != nil || b == nil {
		return 0, false, false, err
	}
	var meta batchMeta
	if err := rlp.DecodeBytes(b, &meta); err != nil {
		return 0, false, false, fmt.Errorf("failed to decode batch meta: %w", err)
	}
	return meta.CurrentID, meta.Open, true, nil
}

// PutAccumulator records the serialized accumulator handle for a batch
func (s *Store) PutAccumulator(batchID uint64, handle []byte) error {
	return s.db.Set(accumulatorKey(batchID), handle, pebble.Sync)
}

// Accumulators returns every persisted accumulator handle keyed by batch id
func (s *Store) Accumulators() (map[uint64][]byte, error) {
	out := make(map[uint64][]byte)
	err := s.iteratePrefix(prefixAccumulator, func(key, value []byte) error {
		suffix := key[len(prefixAccumulator):]
		if len(suffix) != 8 {
			return fmt.Errorf("malformed accumulator key %x", key)
		}
		out[binary.BigEndian.Uint64(suffix)] = append([]byte(nil), value...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PutRequest records a newly issued decryption request
func (s *Store) PutRequest(requestID ids.ID, record tally.RequestRecord) error {
	b, err := rlp.EncodeToBytes(&record)
	if err != nil {
		return err
	}
	return s.db.Set(requestKey(requestID), b, pebble.Sync)
}

// MarkResolved flips a request to resolved and records the revealed value
func (s *Store) MarkResolved(requestID ids.ID, value []byte) error {
	b, err := s.get(requestKey(requestID))
	if err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("no request record for %s", requestID)
	}
	var record tally.RequestRecord
	if err := rlp.DecodeBytes(b, &record); err != nil {
		return fmt.Errorf("failed to decode request record: %w", err)
	}
	record.Resolved = true

	b, err = rlp.EncodeToBytes(&record)
	if err != nil {
		return err
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(requestKey(requestID), b, nil); err != nil {
		return err
	}
	if err := batch.Set(resultKey(requestID), value, nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

// Requests returns every persisted request record keyed by request id
func (s *Store) Requests() (map[ids.ID]tally.RequestRecord, error) {
	out := make(map[ids.ID]tally.RequestRecord)
	err := s.iteratePrefix(prefixRequest, func(key, value []byte) error {
		requestID, err := idSuffix(key, prefixRequest)
		if err != nil {
			return err
		}
		var record tally.RequestRecord
		if err := rlp.DecodeBytes(value, &record); err != nil {
			return fmt.Errorf("failed to decode request record %s: %w", requestID, err)
		}
		out[requestID] = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Results returns every persisted revealed value keyed by request id
func (s *Store) Results() (map[ids.ID][]byte, error) {
	out := make(map[ids.ID][]byte)
	err := s.iteratePrefix(prefixResult, func(key, value []byte) error {
		requestID, err := idSuffix(key, prefixResult)
		if err != nil {
			return err
		}
		out[requestID] = append([]byte(nil), value...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) get(key []byte) ([]byte, error) {
	value, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// Copy: the value is invalid after closer.Close().
	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func (s *Store) iteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return err
		}
		if err := fn(iter.Key(), value); err != nil {
			return err
		}
	}
	return iter.Error()
}

func accumulatorKey(batchID uint64) []byte {
	key := make([]byte, len(prefixAccumulator)+8)
	copy(key, prefixAccumulator)
	binary.BigEndian.PutUint64(key[len(prefixAccumulator):], batchID)
	return key
}

func requestKey(requestID ids.ID) []byte {
	return append(append([]byte(nil), prefixRequest...), requestID[:]...)
}

func resultKey(requestID ids.ID) []byte {
	return append(append([]byte(nil), prefixResult...), requestID[:]...)
}

func idSuffix(key, prefix []byte) (ids.ID, error) {
	suffix := key[len(prefix):]
	if len(suffix) != ids.IDLen {
		return ids.Empty, fmt.Errorf("malformed key %x", key)
	}
	var id ids.ID
	copy(id[:], suffix)
	return id, nil
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}
