// Package gate implements the deterministic risk gate. It is a fixed,
// auditable table of pattern rules plus structural checks, not a
// classifier: the same task request always yields the same report.
package gate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	schemagate "github.com/liyecom/govkernel/core/schema/v1/gate"
	schematrace "github.com/liyecom/govkernel/core/schema/v1/trace"
	"github.com/liyecom/govkernel/core/trace"
)

const reportVersion = "v1"

// Recorder is the subset of the trace writer the gate needs. When nil,
// evaluation runs without emitting gate.start/gate.end events.
type Recorder interface {
	TraceID() string
	Append(eventType schematrace.EventType, payload any, opts trace.AppendOptions) (schematrace.Event, error)
}

type EvalOptions struct {
	// TraceID stamps the report when no recorder is supplied.
	TraceID string
	// Now overrides the report timestamp; zero means time.Now().UTC().
	Now time.Time
}

// Evaluate runs the gate algorithm over a task request and returns the
// risk report. When a recorder is supplied, gate.start is emitted before
// evaluation and gate.end carries the full report.
func Evaluate(req schemagate.TaskRequest, recorder Recorder, opts EvalOptions) (schemagate.Report, error) {
	traceID := strings.TrimSpace(opts.TraceID)
	if recorder != nil {
		traceID = recorder.TraceID()
		if _, err := recorder.Append(schematrace.EventGateStart, map[string]any{
			"task":         req.Task,
			"action_count": len(req.ProposedActions),
		}, trace.AppendOptions{SpanID: "gate", Now: opts.Now}); err != nil {
			return schemagate.Report{}, fmt.Errorf("record gate.start: %w", err)
		}
	}

	report := evaluate(req, traceID, opts.Now)

	if recorder != nil {
		if _, err := recorder.Append(schematrace.EventGateEnd, report, trace.AppendOptions{SpanID: "gate", Now: opts.Now}); err != nil {
			return schemagate.Report{}, fmt.Errorf("record gate.end: %w", err)
		}
	}
	return report, nil
}

func evaluate(req schemagate.TaskRequest, traceID string, now time.Time) schemagate.Report {
	createdAt := now.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	report := schemagate.Report{
		Version:                reportVersion,
		TraceID:                traceID,
		CreatedAt:              createdAt,
		Risks:                  []schemagate.Risk{},
		Unknowns:               []schemagate.Unknown{},
		Constraints:            []schemagate.Constraint{},
		RecommendedNextActions: []string{},
	}

	if len(req.ProposedActions) == 0 {
		report.Unknowns = append(report.Unknowns, schemagate.Unknown{
			ID:       "unknown-no-actions",
			Question: "what actions are planned?",
		})
		report.RecommendedNextActions = append(report.RecommendedNextActions,
			"List the concrete actions this task will take before requesting a decision.")
	}

	for _, action := range req.ProposedActions {
		serialized := serializeAction(action)
		for _, pattern := range dangerousPatterns {
			if pattern.expr.MatchString(serialized) {
				report.Risks = append(report.Risks, schemagate.Risk{
					ID:               pattern.id,
					Severity:         pattern.severity,
					Rationale:        pattern.rationale,
					RequiredEvidence: append([]string(nil), pattern.requiredEvidence...),
				})
			}
		}
	}

	for _, tool := range missingEvidenceTools(req) {
		report.Unknowns = append(report.Unknowns, schemagate.Unknown{
			ID:       "unknown-evidence-" + tool,
			Question: fmt.Sprintf("no evidence provided for external tool %q; what supports this call?", tool),
		})
		report.RecommendedNextActions = append(report.RecommendedNextActions,
			fmt.Sprintf("Supply evidence for %s under context.evidence_provided.", tool))
	}

	if len(strings.TrimSpace(req.Task)) < 5 {
		report.Unknowns = append(report.Unknowns, schemagate.Unknown{
			ID:       "unknown-task-description",
			Question: "the task description is missing or too short to assess; what is the goal?",
		})
	}

	report.Decision = deriveDecision(report.Risks, report.Unknowns)
	if report.Decision == schemagate.DecisionDegrade {
		report.Constraints = append(report.Constraints, schemagate.Constraint{
			ID:       "constraint-user-confirmation",
			Rule:     "a human must confirm this action before execution",
			Severity: schemagate.SeverityHigh,
		})
	}
	return report
}

// deriveDecision applies the fixed priority order: any CRITICAL risk
// blocks; else any HIGH risk degrades; else any unknown stays unknown;
// else allow. The decision reflects only the highest severity present.
func deriveDecision(risks []schemagate.Risk, unknowns []schemagate.Unknown) schemagate.Decision {
	hasHigh := false
	for _, risk := range risks {
		switch risk.Severity {
		case schemagate.SeverityCritical:
			return schemagate.DecisionBlock
		case schemagate.SeverityHigh:
			hasHigh = true
		}
	}
	if hasHigh {
		return schemagate.DecisionDegrade
	}
	if len(unknowns) > 0 {
		return schemagate.DecisionUnknown
	}
	return schemagate.DecisionAllow
}

// missingEvidenceTools returns the external tools used by the request
// without matching entries under context.evidence_provided, in first-use
// order without duplicates.
func missingEvidenceTools(req schemagate.TaskRequest) []string {
	provided := map[string]struct{}{}
	if req.Context != nil {
		for _, item := range req.Context.EvidenceProvided {
			provided[strings.ToLower(strings.TrimSpace(item))] = struct{}{}
		}
	}
	seen := map[string]struct{}{}
	missing := make([]string, 0, 2)
	for _, action := range req.ProposedActions {
		tool := strings.ToLower(strings.TrimSpace(action.Tool))
		if _, external := externalTools[tool]; !external {
			continue
		}
		if _, ok := provided[tool]; ok {
			continue
		}
		if _, dup := seen[tool]; dup {
			continue
		}
		seen[tool] = struct{}{}
		missing = append(missing, tool)
	}
	return missing
}

func serializeAction(action schemagate.ProposedAction) string {
	raw, err := json.Marshal(action)
	if err != nil {
		// Marshal on plain data cannot fail; fall back to the sprint form.
		return fmt.Sprintf("%v", action)
	}
	return string(raw)
}
