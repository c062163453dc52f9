// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/tally"
	"github.com/luxfi/tally/crypto/fhe"
)

// Restore loads the store's contents into a ledger and coordinator.
// Accumulator handles are re-parsed with the configured scheme. Call once at
// startup, before the protocol serves traffic.
func Restore(
	s *Store,
	scheme fhe.Scheme,
	ledger *tally.BatchLedger,
	coordinator *tally.DecryptionCoordinator,
) error {
	currentID, open, found, err := s.BatchMeta()
	if err != nil {
		return fmt.Errorf("failed to load batch meta: %w", err)
	}

	rawAccumulators, err := s.Accumulators()
	if err != nil {
		return fmt.Errorf("failed to load accumulators: %w", err)
	}
	handles := make(map[uint64]fhe.Ciphertext, len(rawAccumulators))
	for batchID, raw := range rawAccumulators {
		handle, err := scheme.ParseCiphertext(raw)
		if err != nil {
			return fmt.Errorf("failed to parse accumulator for batch %d: %w", batchID, err)
		}
		handles[batchID] = handle
	}
	if found || len(handles) > 0 {
		ledger.Restore(currentID, open, handles)
	}

	requests, err := s.Requests()
	if err != nil {
		return fmt.Errorf("failed to load request records: %w", err)
	}
	rawResults, err := s.Results()
	if err != nil {
		return fmt.Errorf("failed to load revealed values: %w", err)
	}
	results := make(map[ids.ID]*uint256.Int, len(rawResults))
	for requestID, raw := range rawResults {
		results[requestID] = new(uint256.Int).SetBytes(raw)
	}
	coordinator.Restore(requests, results)
	return nil
}
