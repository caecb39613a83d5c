// Package gate defines the wire types for task requests and risk reports.
package gate

import "time"

// Decision is the closed set of gate and enforcement outcomes.
type Decision string

const (
	DecisionAllow   Decision = "ALLOW"
	DecisionBlock   Decision = "BLOCK"
	DecisionDegrade Decision = "DEGRADE"
	DecisionUnknown Decision = "UNKNOWN"
)

// restrictiveness orders decisions for combination: BLOCK dominates
// DEGRADE, DEGRADE dominates UNKNOWN, UNKNOWN dominates ALLOW.
var restrictiveness = map[Decision]int{
	DecisionBlock:   3,
	DecisionDegrade: 2,
	DecisionUnknown: 1,
	DecisionAllow:   0,
}

// MoreRestrictive returns the more restrictive of two decisions.
func MoreRestrictive(left, right Decision) Decision {
	if restrictiveness[right] > restrictiveness[left] {
		return right
	}
	return left
}

// Valid reports whether the decision belongs to the closed set.
func (d Decision) Valid() bool {
	_, ok := restrictiveness[d]
	return ok
}

// Severity classifies one identified risk.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// TaskRequest is the action proposer's input: a task description plus the
// concrete actions the agent intends to take.
type TaskRequest struct {
	Task            string           `json:"task"`
	Context         *TaskContext     `json:"context,omitempty"`
	ProposedActions []ProposedAction `json:"proposed_actions"`
}

type TaskContext struct {
	EvidenceProvided []string `json:"evidence_provided,omitempty"`
}

type ProposedAction struct {
	ActionType string         `json:"action_type"`
	Tool       string         `json:"tool"`
	Resource   string         `json:"resource,omitempty"`
	Args       map[string]any `json:"args,omitempty"`
}

// Report is the gate's risk assessment for one decision cycle. Immutable
// after creation; persisted only as the gate.end trace payload.
type Report struct {
	Version                string       `json:"version"`
	TraceID                string       `json:"trace_id"`
	CreatedAt              time.Time    `json:"created_at"`
	Decision               Decision     `json:"decision"`
	Risks                  []Risk       `json:"risks"`
	Unknowns               []Unknown    `json:"unknowns"`
	Constraints            []Constraint `json:"constraints"`
	RecommendedNextActions []string     `json:"recommended_next_actions"`
}

type Risk struct {
	ID               string   `json:"id"`
	Severity         Severity `json:"severity"`
	Rationale        string   `json:"rationale"`
	RequiredEvidence []string `json:"required_evidence,omitempty"`
}

type Unknown struct {
	ID       string `json:"id"`
	Question string `json:"question"`
}

type Constraint struct {
	ID       string   `json:"id"`
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
}
