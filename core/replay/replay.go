// Package replay re-derives hashes from stored artifacts to attest that
// nothing was altered since it was written. Verification is read-only and
// idempotent: re-running it never changes its own outcome.
package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/liyecom/govkernel/core/evidence"
	schemaevidence "github.com/liyecom/govkernel/core/schema/v1/evidence"
	"github.com/liyecom/govkernel/core/trace"
)

// HashMismatch localizes one failed recomputation.
type HashMismatch struct {
	Seq      int64  `json:"seq"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// TraceResult reports one trace replay. A failure at sequence n
// invalidates every event from n to the end of the log.
type TraceResult struct {
	TraceID         string        `json:"trace_id,omitempty"`
	OK              bool          `json:"ok"`
	EventsChecked   int           `json:"events_checked"`
	FirstFailingSeq *int64        `json:"first_failing_seq,omitempty"`
	InvalidatedFrom *int64        `json:"invalidated_from,omitempty"`
	Mismatch        *HashMismatch `json:"mismatch,omitempty"`
	StructuralError string        `json:"structural_error,omitempty"`
}

// Trace re-walks a stored event log in sequence order, recomputing every
// hash from the event's own fields plus the previous event's hash, and
// checking the structural invariants (contiguous seq from 0, null
// hash_prev at seq 0, intact links).
func Trace(dir string) (TraceResult, error) {
	events, err := trace.ReadEvents(dir)
	if err != nil {
		return TraceResult{}, err
	}
	result := TraceResult{OK: true}
	if len(events) > 0 {
		result.TraceID = events[0].TraceID
	}

	for index, event := range events {
		seq := int64(index)
		if event.Seq != seq {
			return failTrace(result, seq, index, fmt.Sprintf("sequence gap: expected seq %d, found %d", seq, event.Seq)), nil
		}
		if index == 0 {
			if event.HashPrev != nil {
				return failTrace(result, seq, index, "hash_prev of event 0 must be null"), nil
			}
		} else {
			if event.HashPrev == nil {
				return failTrace(result, seq, index, fmt.Sprintf("hash_prev missing at seq %d", seq)), nil
			}
			if *event.HashPrev != events[index-1].Hash {
				return failTrace(result, seq, index, fmt.Sprintf("hash_prev at seq %d does not match event %d", seq, seq-1)), nil
			}
		}

		recomputed, err := trace.ChainHash(event)
		if err != nil {
			return TraceResult{}, fmt.Errorf("recompute hash at seq %d: %w", seq, err)
		}
		if recomputed != event.Hash {
			failing := seq
			result.OK = false
			result.EventsChecked = index
			result.FirstFailingSeq = &failing
			result.InvalidatedFrom = &failing
			result.Mismatch = &HashMismatch{Seq: seq, Expected: recomputed, Actual: event.Hash}
			return result, nil
		}
		result.EventsChecked = index + 1
	}
	return result, nil
}

// EvidenceResult reports one evidence package replay.
type EvidenceResult struct {
	Path         string `json:"path"`
	TraceID      string `json:"trace_id,omitempty"`
	OK           bool   `json:"ok"`
	ExpectedHash string `json:"expected_hash,omitempty"`
	StoredHash   string `json:"stored_hash,omitempty"`
}

// Evidence re-reads a stored package and recomputes its package hash.
func Evidence(path string) (EvidenceResult, error) {
	// #nosec G304 -- evidence path is explicit caller input.
	raw, err := os.ReadFile(path)
	if err != nil {
		return EvidenceResult{}, fmt.Errorf("read evidence package: %w", err)
	}
	var pkg schemaevidence.Package
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return EvidenceResult{}, fmt.Errorf("parse evidence package: %w", err)
	}
	ok, err := evidence.Verify(pkg)
	if err != nil {
		return EvidenceResult{}, err
	}
	result := EvidenceResult{
		Path:       path,
		TraceID:    pkg.TraceID,
		OK:         ok,
		StoredHash: pkg.Integrity.PackageHash,
	}
	if !ok {
		recomputed, recomputeErr := evidence.PackageHash(pkg)
		if recomputeErr != nil {
			return EvidenceResult{}, recomputeErr
		}
		result.ExpectedHash = recomputed
	}
	return result, nil
}

func failTrace(result TraceResult, seq int64, index int, message string) TraceResult {
	failing := seq
	result.OK = false
	result.EventsChecked = index
	result.FirstFailingSeq = &failing
	result.InvalidatedFrom = &failing
	result.StructuralError = message
	return result
}
