// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/luxfi/ids"
	log "github.com/luxfi/log"

	"github.com/luxfi/tally"
)

const (
	StatusAPIPath  = "/status"
	BatchAPIPath   = "/batch"
	RequestAPIPath = "/request"
)

// StatusResponse describes the protocol's current state.
type StatusResponse struct {
	CurrentBatchID uint64 `json:"current-batch-id"`
	Open           bool   `json:"open"`
	Paused         bool   `json:"paused"`
	Cooldown       string `json:"cooldown"`
}

// BatchResponse carries the accumulator handle of a batch, if one exists.
type BatchResponse struct {
	BatchID uint64 `json:"batch-id"`
	// hex encoding of the accumulator handle, empty if nothing was
	// submitted to the batch
	Accumulator string `json:"accumulator"`
}

// RequestResponse describes a decryption request record.
type RequestResponse struct {
	RequestID string `json:"request-id"`
	BatchID   uint64 `json:"batch-id"`
	Digest    string `json:"digest"`
	Resolved  bool   `json:"resolved"`
	// decimal encoding of the revealed value, empty until resolved
	Value string `json:"value"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleStatusRequest registers the status endpoint on the default mux
func HandleStatusRequest(logger log.Logger, protocol *tally.Protocol) {
	http.Handle(StatusAPIPath, statusAPIHandler(logger, protocol))
}

// HandleBatchRequest registers the batch lookup endpoint on the default mux
func HandleBatchRequest(logger log.Logger, protocol *tally.Protocol) {
	http.Handle(BatchAPIPath, batchAPIHandler(logger, protocol))
}

// HandleRequestLookup registers the decryption request lookup endpoint on the
// default mux
func HandleRequestLookup(logger log.Logger, protocol *tally.Protocol) {
	http.Handle(RequestAPIPath, requestAPIHandler(logger, protocol))
}

func writeJSONError(
	logger log.Logger,
	w http.ResponseWriter,
	httpStatusCode int,
	errorMsg string,
) {
	resp, err := json.Marshal(ErrorResponse{Error: errorMsg})
	if err != nil {
		msg := "Error marshalling JSON error response"
		logger.Error(msg, log.Err(err))
		resp = []byte(msg)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)

	if _, err := w.Write(resp); err != nil {
		logger.Error("Error writing error response", log.Err(err))
	}
}

func writeJSON(logger log.Logger, w http.ResponseWriter, body any) {
	resp, err := json.Marshal(body)
	if err != nil {
		msg := "Failed to marshal response"
		logger.Error(msg, log.Err(err))
		writeJSONError(logger, w, http.StatusInternalServerError, msg)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		logger.Error("Error writing response", log.Err(err))
	}
}

func statusAPIHandler(logger log.Logger, protocol *tally.Protocol) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		currentID, open := protocol.Ledger().CurrentBatch()
		writeJSON(logger, w, StatusResponse{
			CurrentBatchID: currentID,
			Open:           open,
			Paused:         protocol.Gate().Paused(),
			Cooldown:       protocol.Gate().Cooldown().String(),
		})
	})
}

func batchAPIHandler(logger log.Logger, protocol *tally.Protocol) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		batchID, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 64)
		if err != nil {
			msg := "Could not parse batch id"
			logger.Warn(msg, log.Err(err))
			writeJSONError(logger, w, http.StatusBadRequest, msg)
			return
		}

		resp := BatchResponse{BatchID: batchID}
		if handle, ok := protocol.Ledger().AccumulatorHandle(batchID); ok {
			resp.Accumulator = hex.EncodeToString(handle.Bytes())
		}
		writeJSON(logger, w, resp)
	})
}

func requestAPIHandler(logger log.Logger, protocol *tally.Protocol) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.URL.Query().Get("id"), "0x")
		decoded, err := hex.DecodeString(raw)
		if err != nil || len(decoded) != ids.IDLen {
			msg := "Could not parse request id"
			logger.Warn(msg, log.String("id", raw), log.Err(err))
			writeJSONError(logger, w, http.StatusBadRequest, msg)
			return
		}
		requestID := ids.ID(decoded)

		record, ok := protocol.Coordinator().Request(requestID)
		if !ok {
			writeJSONError(logger, w, http.StatusNotFound, "Unknown request")
			return
		}

		resp := RequestResponse{
			RequestID: hex.EncodeToString(requestID[:]),
			BatchID:   record.BatchID,
			Digest:    hex.EncodeToString(record.Digest[:]),
			Resolved:  record.Resolved,
		}
		if value, ok := protocol.Coordinator().Result(requestID); ok {
			resp.Value = value.Dec()
		}
		writeJSON(logger, w, resp)
	})
}
