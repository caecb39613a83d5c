package verdict

import (
	"strings"
	"testing"

	schemacontract "github.com/liyecom/govkernel/core/schema/v1/contract"
	schemagate "github.com/liyecom/govkernel/core/schema/v1/gate"
	"github.com/sebdah/goldie/v2"
)

func golden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestRenderAllow(t *testing.T) {
	report := schemagate.Report{Decision: schemagate.DecisionAllow}
	enf := schemacontract.Enforcement{
		ContractRef: "sha256:abc",
		Decision:    schemagate.DecisionAllow,
		Combined:    schemagate.DecisionAllow,
	}
	golden(t).Assert(t, "allow_clean", []byte(Render(report, enf)))
}

func TestRenderContractOverridesGate(t *testing.T) {
	report := schemagate.Report{
		Decision: schemagate.DecisionAllow,
		Risks: []schemagate.Risk{
			{ID: "risk-002", Severity: schemagate.SeverityMedium, Rationale: "Overwrite of an existing resource."},
			{ID: "risk-001", Severity: schemagate.SeverityHigh, Rationale: "Irreversible delete of a resource."},
		},
	}
	enf := schemacontract.Enforcement{
		ContractRef: "sha256:deadbeef",
		Decision:    schemagate.DecisionBlock,
		Combined:    schemagate.DecisionBlock,
	}
	golden(t).Assert(t, "contract_blocks_allowed_gate", []byte(Render(report, enf)))
}

func TestRenderDegradeWithMissingEvidence(t *testing.T) {
	report := schemagate.Report{
		Decision: schemagate.DecisionDegrade,
		Risks: []schemagate.Risk{
			{
				ID:               "risk-001",
				Severity:         schemagate.SeverityHigh,
				Rationale:        "Irreversible delete of a resource.",
				RequiredEvidence: []string{"evidence-backup-confirmation"},
			},
		},
		Unknowns: []schemagate.Unknown{
			{ID: "unknown-evidence-api_call", Question: "What evidence supports calls to api_call?"},
		},
		Constraints: []schemagate.Constraint{
			{ID: "constraint-user-confirmation", Rule: "Require explicit user confirmation before execution.", Severity: schemagate.SeverityHigh},
		},
		RecommendedNextActions: []string{"Confirm the delete with the requesting user before execution."},
	}
	enf := schemacontract.Enforcement{
		ContractRef:     "sha256:feedface",
		Decision:        schemagate.DecisionUnknown,
		Combined:        schemagate.DecisionDegrade,
		MissingEvidence: []string{"evidence-change-ticket"},
	}
	golden(t).Assert(t, "degrade_with_missing_evidence", []byte(Render(report, enf)))
}

func TestRenderIsPureAndDeterministic(t *testing.T) {
	report := schemagate.Report{
		Decision: schemagate.DecisionDegrade,
		Risks: []schemagate.Risk{
			{ID: "risk-006", Severity: schemagate.SeverityHigh, Rationale: "Truncation of a data store."},
			{ID: "risk-001", Severity: schemagate.SeverityHigh, Rationale: "Irreversible delete of a resource."},
		},
	}
	enf := schemacontract.Enforcement{Decision: schemagate.DecisionAllow, Combined: schemagate.DecisionDegrade}

	first := Render(report, enf)
	second := Render(report, enf)
	if first != second {
		t.Fatal("rendering must be deterministic")
	}
	if report.Risks[0].ID != "risk-006" {
		t.Fatal("rendering must not reorder the caller's risks")
	}
	// Equal severities keep stable id order.
	if strings.Index(first, "risk-001") > strings.Index(first, "risk-006") {
		t.Fatal("ties must break by risk id")
	}
}

func TestRenderTruncatesToTopRisks(t *testing.T) {
	report := schemagate.Report{
		Decision: schemagate.DecisionBlock,
		Risks: []schemagate.Risk{
			{ID: "risk-001", Severity: schemagate.SeverityHigh, Rationale: "a"},
			{ID: "risk-002", Severity: schemagate.SeverityMedium, Rationale: "b"},
			{ID: "risk-003", Severity: schemagate.SeverityCritical, Rationale: "c"},
			{ID: "risk-004", Severity: schemagate.SeverityCritical, Rationale: "d"},
		},
	}
	enf := schemacontract.Enforcement{Decision: schemagate.DecisionBlock, Combined: schemagate.DecisionBlock}

	out := Render(report, enf)
	if strings.Contains(out, "risk-002") {
		t.Fatal("the least severe risk must be truncated")
	}
	for _, id := range []string{"risk-003", "risk-004", "risk-001"} {
		if !strings.Contains(out, id) {
			t.Fatalf("expected %s in verdict:\n%s", id, out)
		}
	}
}

func TestSummary(t *testing.T) {
	report := schemagate.Report{
		Decision: schemagate.DecisionUnknown,
		Risks: []schemagate.Risk{
			{ID: "risk-001", Severity: schemagate.SeverityHigh, Rationale: "Irreversible delete of a resource."},
		},
	}
	enf := schemacontract.Enforcement{
		Decision:        schemagate.DecisionUnknown,
		Combined:        schemagate.DecisionUnknown,
		MissingEvidence: []string{"evidence-change-ticket"},
	}
	got := Summary(report, enf)
	want := "Decision: UNKNOWN. Risks: 1. Missing evidence: 1."
	if got != want {
		t.Fatalf("summary mismatch:\n got %q\nwant %q", got, want)
	}
}
