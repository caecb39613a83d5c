// Package evidence defines the durable decision-record wire types.
package evidence

import (
	"time"

	schemagate "github.com/liyecom/govkernel/core/schema/v1/gate"
)

const (
	PackageVersion = "v1"
	HashAlgorithm  = "sha256"
)

// Package is the write-once, hashed summary of one decision. The integrity
// package_hash covers every other field in canonical form; a single-bit
// change anywhere invalidates it.
type Package struct {
	Version      string              `json:"version"`
	TraceID      string              `json:"trace_id"`
	Decision     schemagate.Decision `json:"decision"`
	DecisionTime time.Time           `json:"decision_time"`
	PolicyRef    string              `json:"policy_ref"`
	InputsHash   string              `json:"inputs_hash"`
	OutputsHash  string              `json:"outputs_hash"`
	Executor     Executor            `json:"executor"`
	Integrity    Integrity           `json:"integrity"`
	Signature    *Signature          `json:"signature,omitempty"`
}

type Executor struct {
	System  string `json:"system"`
	Version string `json:"version"`
}

type Integrity struct {
	Algorithm   string `json:"algorithm"`
	PackageHash string `json:"package_hash"`
}

// Signature is an optional detached ed25519 signature over the package hash.
type Signature struct {
	Alg   string `json:"alg"`
	KeyID string `json:"key_id"`
	Sig   string `json:"sig"`
}

// IndexEntry is one line of the append-only audit ledger. Created exactly
// once, at the moment the package is persisted.
type IndexEntry struct {
	TraceID     string              `json:"trace_id"`
	Decision    schemagate.Decision `json:"decision"`
	Date        string              `json:"date"`
	EvidenceRef string              `json:"evidence_ref"`
	PackageHash string              `json:"package_hash"`
}
