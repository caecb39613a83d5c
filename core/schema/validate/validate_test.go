package validate

import "testing"

func TestContractJSONAcceptsWellFormedRules(t *testing.T) {
	document := []byte(`{
		"version": "2026-08",
		"rules": [
			{"id": "rule-001", "effect": "DENY", "match": "/data/prod/*"},
			{"id": "rule-002", "effect": "REQUIRE_EVIDENCE", "match": "api_call"},
			{"id": "rule-003", "effect": "ALLOW", "match": "*"}
		]
	}`)
	if err := ContractJSON(document); err != nil {
		t.Fatalf("expected valid contract, got %v", err)
	}
}

func TestContractJSONRejectsUnknownEffect(t *testing.T) {
	document := []byte(`{"rules": [{"id": "rule-001", "effect": "MAYBE", "match": "*"}]}`)
	if err := ContractJSON(document); err == nil {
		t.Fatal("expected unknown effect to fail validation")
	}
}

func TestContractJSONRejectsMissingMatch(t *testing.T) {
	document := []byte(`{"rules": [{"id": "rule-001", "effect": "DENY"}]}`)
	if err := ContractJSON(document); err == nil {
		t.Fatal("expected missing match to fail validation")
	}
}

func TestEvidencePackageJSONAcceptsWellFormedPackage(t *testing.T) {
	document := []byte(`{
		"version": "v1",
		"trace_id": "trace-001",
		"decision": "ALLOW",
		"decision_time": "2026-08-30T12:00:00Z",
		"policy_ref": "contract:abcdef",
		"inputs_hash": "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		"outputs_hash": "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		"executor": {"system": "govkernel", "version": "0.0.0-dev"},
		"integrity": {"algorithm": "sha256", "package_hash": "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"}
	}`)
	if err := EvidencePackageJSON(document); err != nil {
		t.Fatalf("expected valid package, got %v", err)
	}
}

func TestEvidencePackageJSONRejectsWrongAlgorithm(t *testing.T) {
	document := []byte(`{
		"version": "v1",
		"trace_id": "trace-001",
		"decision": "ALLOW",
		"decision_time": "2026-08-30T12:00:00Z",
		"policy_ref": "contract:abcdef",
		"inputs_hash": "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		"outputs_hash": "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		"executor": {"system": "govkernel", "version": "0.0.0-dev"},
		"integrity": {"algorithm": "md5", "package_hash": "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"}
	}`)
	if err := EvidencePackageJSON(document); err == nil {
		t.Fatal("expected wrong algorithm to fail validation")
	}
}
