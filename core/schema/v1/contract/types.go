// Package contract defines the enforcement outcome wire types.
package contract

import schemagate "github.com/liyecom/govkernel/core/schema/v1/gate"

// Effect is the closed set of rule effects.
type Effect string

const (
	EffectAllow           Effect = "ALLOW"
	EffectDeny            Effect = "DENY"
	EffectRequireEvidence Effect = "REQUIRE_EVIDENCE"
)

// Valid reports whether the effect belongs to the closed set.
func (e Effect) Valid() bool {
	switch e {
	case EffectAllow, EffectDeny, EffectRequireEvidence:
		return true
	}
	return false
}

// ActionRuling records which rule decided one proposed action.
type ActionRuling struct {
	ActionIndex int    `json:"action_index"`
	Tool        string `json:"tool"`
	Resource    string `json:"resource,omitempty"`
	RuleID      string `json:"rule_id,omitempty"`
	Effect      Effect `json:"effect"`
	EvidenceMet bool   `json:"evidence_met,omitempty"`
}

// Enforcement is the aggregate outcome of applying a contract to an
// already-gated action set. Decision is the enforcement layer's own
// verdict; Combined folds in the gate decision, keeping whichever is more
// restrictive.
type Enforcement struct {
	ContractRef     string              `json:"contract_ref"`
	Decision        schemagate.Decision `json:"decision"`
	Combined        schemagate.Decision `json:"combined"`
	Rulings         []ActionRuling      `json:"rulings"`
	MissingEvidence []string            `json:"missing_evidence,omitempty"`
}
