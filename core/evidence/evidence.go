// Package evidence builds, persists, and verifies the write-once decision
// records, and maintains the append-only audit index that points at them.
package evidence

import (
	"crypto/ed25519"
	stderrors "errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/liyecom/govkernel/core/canonical"
	kernelerrors "github.com/liyecom/govkernel/core/errors"
	"github.com/liyecom/govkernel/core/fsx"
	schemaevidence "github.com/liyecom/govkernel/core/schema/v1/evidence"
	schemagate "github.com/liyecom/govkernel/core/schema/v1/gate"
	"github.com/liyecom/govkernel/core/schema/validate"
	"github.com/liyecom/govkernel/core/sign"
)

const defaultExecutorSystem = "govkernel"

type GenerateInput struct {
	TraceID      string
	Decision     schemagate.Decision
	DecisionTime time.Time
	PolicyRef    string
	// Request is the snapshot of the proposer's input; only task and
	// proposed_actions enter the inputs hash.
	Request schemagate.TaskRequest
	// VerdictSummary is the rendered human-readable outcome; it enters the
	// outputs hash together with the decision.
	VerdictSummary  string
	ExecutorSystem  string
	ExecutorVersion string
}

// Generate builds a complete evidence package. The package hash covers
// every field except integrity itself (and any later detached signature),
// so a single-bit change anywhere invalidates it.
func Generate(in GenerateInput) (schemaevidence.Package, error) {
	traceID := strings.TrimSpace(in.TraceID)
	if traceID == "" {
		return schemaevidence.Package{}, fmt.Errorf("trace_id is required")
	}
	if !in.Decision.Valid() {
		return schemaevidence.Package{}, fmt.Errorf("invalid decision %q", string(in.Decision))
	}
	decisionTime := in.DecisionTime.UTC()
	if decisionTime.IsZero() {
		decisionTime = time.Now().UTC()
	}
	executorSystem := strings.TrimSpace(in.ExecutorSystem)
	if executorSystem == "" {
		executorSystem = defaultExecutorSystem
	}

	inputsHash, err := canonical.DigestValue(map[string]any{
		"task":             strings.TrimSpace(in.Request.Task),
		"proposed_actions": in.Request.ProposedActions,
	})
	if err != nil {
		return schemaevidence.Package{}, fmt.Errorf("hash inputs: %w", err)
	}
	outputsHash, err := canonical.DigestValue(map[string]any{
		"decision":        string(in.Decision),
		"verdict_summary": strings.TrimSpace(in.VerdictSummary),
	})
	if err != nil {
		return schemaevidence.Package{}, fmt.Errorf("hash outputs: %w", err)
	}

	pkg := schemaevidence.Package{
		Version:      schemaevidence.PackageVersion,
		TraceID:      traceID,
		Decision:     in.Decision,
		DecisionTime: decisionTime,
		PolicyRef:    strings.TrimSpace(in.PolicyRef),
		InputsHash:   inputsHash,
		OutputsHash:  outputsHash,
		Executor: schemaevidence.Executor{
			System:  executorSystem,
			Version: strings.TrimSpace(in.ExecutorVersion),
		},
	}
	packageHash, err := PackageHash(pkg)
	if err != nil {
		return schemaevidence.Package{}, err
	}
	pkg.Integrity = schemaevidence.Integrity{
		Algorithm:   schemaevidence.HashAlgorithm,
		PackageHash: packageHash,
	}
	return pkg, nil
}

// Persist writes the package to baseDir/YYYY-MM-DD/<trace_id>.json in
// canonical JSON. The path is created exclusively: an existing file means
// a write-once violation and the call fails with the already-exists code,
// leaving the original bytes untouched.
func Persist(pkg schemaevidence.Package, baseDir string) (string, error) {
	encoded, err := canonical.Canonicalize(pkg)
	if err != nil {
		return "", fmt.Errorf("canonicalize package: %w", err)
	}
	if err := validate.EvidencePackageJSON(encoded); err != nil {
		return "", fmt.Errorf("validate package before persist: %w", err)
	}
	path := PackagePath(baseDir, pkg)
	if err := fsx.WriteFileExclusive(path, encoded, 0o400); err != nil {
		if stderrors.Is(err, fs.ErrExist) {
			return "", kernelerrors.Wrap(
				fmt.Errorf("evidence package already persisted at %s: %w", path, err),
				kernelerrors.CategoryWriteOnce,
				kernelerrors.CodeAlreadyExists,
				"treat the existing artifact as authoritative; do not retry with different content",
				false,
			)
		}
		return "", fmt.Errorf("persist evidence package: %w", err)
	}
	return path, nil
}

// PackagePath returns the canonical location of a package under baseDir.
// The date segment derives from decision_time, not from the wall clock at
// persist time.
func PackagePath(baseDir string, pkg schemaevidence.Package) string {
	day := pkg.DecisionTime.UTC().Format("2006-01-02")
	return filepath.Join(baseDir, day, pkg.TraceID+".json")
}

// Verify recomputes the package hash from the package's own fields and
// compares it to the stored value.
func Verify(pkg schemaevidence.Package) (bool, error) {
	if pkg.Integrity.Algorithm != schemaevidence.HashAlgorithm {
		return false, fmt.Errorf("unsupported integrity algorithm %q", pkg.Integrity.Algorithm)
	}
	recomputed, err := PackageHash(pkg)
	if err != nil {
		return false, err
	}
	return recomputed == pkg.Integrity.PackageHash, nil
}

// Sign attaches a detached ed25519 signature over the package hash.
func Sign(pkg schemaevidence.Package, priv ed25519.PrivateKey) (schemaevidence.Package, error) {
	sig, err := sign.SignDigestHex(priv, pkg.Integrity.PackageHash)
	if err != nil {
		return schemaevidence.Package{}, fmt.Errorf("sign package hash: %w", err)
	}
	pkg.Signature = &schemaevidence.Signature{
		Alg:   sig.Alg,
		KeyID: sig.KeyID,
		Sig:   sig.Sig,
	}
	return pkg, nil
}

// VerifySignature checks the detached signature against the package hash.
func VerifySignature(pkg schemaevidence.Package, pub ed25519.PublicKey) (bool, error) {
	if pkg.Signature == nil {
		return false, fmt.Errorf("package signature missing")
	}
	return sign.VerifyDigestHex(pub, sign.Signature{
		Alg:   pkg.Signature.Alg,
		KeyID: pkg.Signature.KeyID,
		Sig:   pkg.Signature.Sig,
	}, pkg.Integrity.PackageHash)
}

// PackageHash digests every package field except integrity and signature.
// Field set and canonical form are frozen; historical packages must keep
// verifying.
func PackageHash(pkg schemaevidence.Package) (string, error) {
	digest, err := canonical.DigestValue(map[string]any{
		"version":       pkg.Version,
		"trace_id":      pkg.TraceID,
		"decision":      string(pkg.Decision),
		"decision_time": pkg.DecisionTime.UTC().Format(time.RFC3339Nano),
		"policy_ref":    pkg.PolicyRef,
		"inputs_hash":   pkg.InputsHash,
		"outputs_hash":  pkg.OutputsHash,
		"executor": map[string]any{
			"system":  pkg.Executor.System,
			"version": pkg.Executor.Version,
		},
	})
	if err != nil {
		return "", fmt.Errorf("hash package: %w", err)
	}
	return digest, nil
}
