// Package verdict renders a gate report and its enforcement outcome as a
// short human-readable explanation. Rendering is pure: no I/O, no clock,
// no mutation of the inputs.
package verdict

import (
	"fmt"
	"sort"
	"strings"

	schemacontract "github.com/liyecom/govkernel/core/schema/v1/contract"
	schemagate "github.com/liyecom/govkernel/core/schema/v1/gate"
)

// topRiskLimit caps how many risks the rendered verdict lists. The full
// set stays available in the gate report itself.
const topRiskLimit = 3

var severityRank = map[schemagate.Severity]int{
	schemagate.SeverityCritical: 3,
	schemagate.SeverityHigh:     2,
	schemagate.SeverityMedium:   1,
	schemagate.SeverityLow:      0,
}

var decisionHeadline = map[schemagate.Decision]string{
	schemagate.DecisionAllow:   "The proposed actions may proceed.",
	schemagate.DecisionBlock:   "The proposed actions are blocked.",
	schemagate.DecisionDegrade: "The proposed actions may proceed only with the listed constraints.",
	schemagate.DecisionUnknown: "The request could not be assessed with confidence.",
}

// Render produces the markdown verdict for one decision cycle. The
// combined decision in the enforcement outcome is authoritative; the
// gate report supplies the supporting detail.
func Render(report schemagate.Report, enf schemacontract.Enforcement) string {
	decision := enf.Combined
	if !decision.Valid() {
		decision = report.Decision
	}

	var b strings.Builder
	b.WriteString("# Verdict\n\n")
	fmt.Fprintf(&b, "**Decision: %s.** %s\n", decision, decisionHeadline[decision])

	if enf.Decision.Valid() && enf.Decision != report.Decision {
		fmt.Fprintf(&b, "\nThe contract (%s) ruled %s; the risk gate ruled %s; the stricter outcome stands.\n",
			enf.ContractRef, enf.Decision, report.Decision)
	}

	if risks := topRisks(report.Risks); len(risks) > 0 {
		b.WriteString("\n## Top risks\n\n")
		for _, risk := range risks {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", risk.ID, risk.Severity, risk.Rationale)
		}
	}

	if missing := missingEvidence(report, enf); len(missing) > 0 {
		b.WriteString("\n## Missing evidence\n\n")
		for _, item := range missing {
			fmt.Fprintf(&b, "- %s\n", item)
		}
	}

	if len(report.Unknowns) > 0 {
		b.WriteString("\n## Open questions\n\n")
		for _, unknown := range report.Unknowns {
			fmt.Fprintf(&b, "- %s\n", unknown.Question)
		}
	}

	if len(report.Constraints) > 0 {
		b.WriteString("\n## Constraints\n\n")
		for _, constraint := range report.Constraints {
			fmt.Fprintf(&b, "- %s (%s)\n", constraint.Rule, constraint.Severity)
		}
	}

	b.WriteString("\n## Recommended next step\n\n")
	b.WriteString(recommendedNextStep(decision, report, enf))
	b.WriteString("\n")
	return b.String()
}

// Summary is the one-line form used for evidence outputs_hash input.
func Summary(report schemagate.Report, enf schemacontract.Enforcement) string {
	decision := enf.Combined
	if !decision.Valid() {
		decision = report.Decision
	}
	return fmt.Sprintf("Decision: %s. Risks: %d. Missing evidence: %d.",
		decision, len(report.Risks), len(missingEvidence(report, enf)))
}

// topRisks orders by severity (most severe first), breaking ties by risk
// id for stable output, and truncates to topRiskLimit.
func topRisks(risks []schemagate.Risk) []schemagate.Risk {
	sorted := make([]schemagate.Risk, len(risks))
	copy(sorted, risks)
	sort.SliceStable(sorted, func(i, j int) bool {
		if severityRank[sorted[i].Severity] != severityRank[sorted[j].Severity] {
			return severityRank[sorted[i].Severity] > severityRank[sorted[j].Severity]
		}
		return sorted[i].ID < sorted[j].ID
	})
	if len(sorted) > topRiskLimit {
		sorted = sorted[:topRiskLimit]
	}
	return sorted
}

// missingEvidence merges the gate's required-evidence lists with the
// enforcement layer's unmet requirements, deduplicated and sorted.
func missingEvidence(report schemagate.Report, enf schemacontract.Enforcement) []string {
	seen := map[string]bool{}
	provided := map[string]bool{}
	var merged []string
	add := func(item string) {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] || provided[item] {
			return
		}
		seen[item] = true
		merged = append(merged, item)
	}
	for _, risk := range report.Risks {
		for _, item := range risk.RequiredEvidence {
			add(item)
		}
	}
	for _, item := range enf.MissingEvidence {
		add(item)
	}
	sort.Strings(merged)
	return merged
}

func recommendedNextStep(decision schemagate.Decision, report schemagate.Report, enf schemacontract.Enforcement) string {
	if len(report.RecommendedNextActions) > 0 {
		return report.RecommendedNextActions[0]
	}
	switch decision {
	case schemagate.DecisionBlock:
		return "Do not execute. Revise the proposed actions to remove the blocked operations, then resubmit."
	case schemagate.DecisionDegrade:
		return "Obtain the required confirmations, then execute under the listed constraints."
	case schemagate.DecisionUnknown:
		if len(missingEvidence(report, enf)) > 0 {
			return "Supply the missing evidence and resubmit the request."
		}
		return "Clarify the task and the proposed actions, then resubmit the request."
	default:
		return "Proceed with execution and record the result for the evidence package."
	}
}
