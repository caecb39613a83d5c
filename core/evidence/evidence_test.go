package evidence

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	kernelerrors "github.com/liyecom/govkernel/core/errors"
	schemaevidence "github.com/liyecom/govkernel/core/schema/v1/evidence"
	schemagate "github.com/liyecom/govkernel/core/schema/v1/gate"
	"github.com/liyecom/govkernel/core/sign"
)

func sampleInput() GenerateInput {
	return GenerateInput{
		TraceID:      "trace-evidence",
		Decision:     schemagate.DecisionAllow,
		DecisionTime: time.Date(2026, 8, 30, 9, 30, 0, 0, time.UTC),
		PolicyRef:    "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0",
		Request: schemagate.TaskRequest{
			Task: "Summarize quarterly numbers",
			ProposedActions: []schemagate.ProposedAction{
				{ActionType: "read", Tool: "file_read", Resource: "/reports/q2.md"},
			},
		},
		VerdictSummary:  "Decision: ALLOW. No risks identified.",
		ExecutorVersion: "0.0.0-test",
	}
}

func TestGenerateProducesVerifiablePackage(t *testing.T) {
	pkg, err := Generate(sampleInput())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if pkg.Version != "v1" || pkg.Integrity.Algorithm != "sha256" {
		t.Fatalf("unexpected envelope: %+v", pkg)
	}
	if len(pkg.InputsHash) != 64 || len(pkg.OutputsHash) != 64 || len(pkg.Integrity.PackageHash) != 64 {
		t.Fatal("all hashes must be sha256 hex digests")
	}
	ok, err := Verify(pkg)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("freshly generated package must verify")
	}
}

func TestVerifyDetectsSingleFieldChange(t *testing.T) {
	pkg, err := Generate(sampleInput())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	pkg.PolicyRef = pkg.PolicyRef[:63] + "1"
	ok, err := Verify(pkg)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("modified package must not verify")
	}
}

func TestInputsHashIgnoresActionOrder(t *testing.T) {
	forward := sampleInput()
	forward.Request.ProposedActions = []schemagate.ProposedAction{
		{ActionType: "read", Tool: "file_read", Resource: "/reports/q2.md"},
		{ActionType: "call", Tool: "api_call", Resource: "https://example.com/totals"},
	}
	reversed := sampleInput()
	reversed.Request.ProposedActions = []schemagate.ProposedAction{
		{ActionType: "call", Tool: "api_call", Resource: "https://example.com/totals"},
		{ActionType: "read", Tool: "file_read", Resource: "/reports/q2.md"},
	}

	first, err := Generate(forward)
	if err != nil {
		t.Fatalf("generate forward: %v", err)
	}
	second, err := Generate(reversed)
	if err != nil {
		t.Fatalf("generate reversed: %v", err)
	}
	if first.InputsHash != second.InputsHash {
		t.Fatalf("action order leaked into inputs_hash: %s vs %s", first.InputsHash, second.InputsHash)
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	first, err := Generate(sampleInput())
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}
	second, err := Generate(sampleInput())
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if first.Integrity.PackageHash != second.Integrity.PackageHash {
		t.Fatal("same input must produce the same package hash")
	}
}

func TestPersistIsWriteOnce(t *testing.T) {
	baseDir := t.TempDir()
	pkg, err := Generate(sampleInput())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	path, err := Persist(pkg, baseDir)
	if err != nil {
		t.Fatalf("first persist: %v", err)
	}
	if !strings.Contains(path, "2026-08-30") {
		t.Fatalf("path must derive from decision_time: %s", path)
	}
	firstBytes, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read persisted package: %v", err)
	}

	altered := sampleInput()
	altered.VerdictSummary = "Decision: ALLOW. Retried with different content."
	secondPkg, err := Generate(altered)
	if err != nil {
		t.Fatalf("generate altered: %v", err)
	}
	if _, err := Persist(secondPkg, baseDir); !kernelerrors.IsAlreadyExists(err) {
		t.Fatalf("second persist must fail with already-exists, got %v", err)
	}

	afterBytes, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("re-read persisted package: %v", err)
	}
	if string(firstBytes) != string(afterBytes) {
		t.Fatal("failed persist must not alter the first file's bytes")
	}
}

func TestPersistedPackageRoundTripsAndVerifies(t *testing.T) {
	baseDir := t.TempDir()
	pkg, err := Generate(sampleInput())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	path, err := Persist(pkg, baseDir)
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read package file: %v", err)
	}
	var loaded schemaevidence.Package
	if err := json.Unmarshal(raw, &loaded); err != nil {
		t.Fatalf("parse package file: %v", err)
	}
	ok, err := Verify(loaded)
	if err != nil {
		t.Fatalf("verify loaded: %v", err)
	}
	if !ok {
		t.Fatal("persisted package must verify after a file round trip")
	}
}

func TestSignedPackageVerifies(t *testing.T) {
	kp, err := sign.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	pkg, err := Generate(sampleInput())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	signed, err := Sign(pkg, kp.Private)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := VerifySignature(signed, kp.Public)
	if err != nil {
		t.Fatalf("verify signature: %v", err)
	}
	if !ok {
		t.Fatal("expected signature to verify")
	}

	contentOK, err := Verify(signed)
	if err != nil {
		t.Fatalf("verify content: %v", err)
	}
	if !contentOK {
		t.Fatal("signature must not change the package hash")
	}
}

func TestGenerateRejectsBadInput(t *testing.T) {
	missingTrace := sampleInput()
	missingTrace.TraceID = " "
	if _, err := Generate(missingTrace); err == nil {
		t.Fatal("expected missing trace id to fail")
	}

	badDecision := sampleInput()
	badDecision.Decision = schemagate.Decision("PERHAPS")
	if _, err := Generate(badDecision); err == nil {
		t.Fatal("expected invalid decision to fail")
	}
}
