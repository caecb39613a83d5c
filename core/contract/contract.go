// Package contract loads declarative allow/deny/require-evidence rule sets
// and applies them to already-gated action lists. Enforcement layers on
// top of the gate decision and can only make it stricter, never looser.
package contract

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/liyecom/govkernel/core/canonical"
	kernelerrors "github.com/liyecom/govkernel/core/errors"
	schemacontract "github.com/liyecom/govkernel/core/schema/v1/contract"
	schemagate "github.com/liyecom/govkernel/core/schema/v1/gate"
	schematrace "github.com/liyecom/govkernel/core/schema/v1/trace"
	"github.com/liyecom/govkernel/core/schema/validate"
	"github.com/liyecom/govkernel/core/trace"
)

// Contract is a read-only declarative rule set. The kernel never mutates
// it; rule order is evaluation order.
type Contract struct {
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	Rules   []Rule `json:"rules" yaml:"rules"`
}

type Rule struct {
	ID     string                `json:"id" yaml:"id"`
	Effect schemacontract.Effect `json:"effect" yaml:"effect"`
	Match  string                `json:"match" yaml:"match"`
}

// LoadFile reads and parses a contract file (YAML or JSON). Any failure is
// a contract load error: the enforcer must fail closed rather than run
// without rules.
func LoadFile(path string) (Contract, error) {
	// #nosec G304 -- contract path is explicit local user input.
	content, err := os.ReadFile(path)
	if err != nil {
		return Contract{}, loadError(fmt.Errorf("read contract: %w", err))
	}
	return Parse(content)
}

// Parse validates and decodes a contract document. YAML is a superset of
// JSON here, so both serializations go through the same path.
func Parse(data []byte) (Contract, error) {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return Contract{}, loadError(fmt.Errorf("parse contract: %w", err))
	}
	normalized, err := json.Marshal(generic)
	if err != nil {
		return Contract{}, loadError(fmt.Errorf("normalize contract: %w", err))
	}
	if err := validate.ContractJSON(normalized); err != nil {
		return Contract{}, loadError(err)
	}
	var parsed Contract
	if err := json.Unmarshal(normalized, &parsed); err != nil {
		return Contract{}, loadError(fmt.Errorf("decode contract: %w", err))
	}
	seen := map[string]struct{}{}
	for _, rule := range parsed.Rules {
		if _, dup := seen[rule.ID]; dup {
			return Contract{}, loadError(fmt.Errorf("duplicate rule id %q", rule.ID))
		}
		seen[rule.ID] = struct{}{}
	}
	return parsed, nil
}

// Digest returns the sha256 hex digest of the contract's RFC 8785
// canonical JSON form, used as the policy_ref for evidence packages.
func Digest(c Contract) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal contract: %w", err)
	}
	digest, err := canonical.DigestJCS(raw)
	if err != nil {
		return "", fmt.Errorf("digest contract: %w", err)
	}
	return digest, nil
}

// Enforce applies the contract to every proposed action. For each action
// the first matching rule in file order wins; no match defaults to ALLOW.
// Aggregation: any DENY blocks; any unmet REQUIRE_EVIDENCE is unknown;
// otherwise allow. Combined takes the stricter of enforcement and gate.
func Enforce(c Contract, req schemagate.TaskRequest, gateDecision schemagate.Decision) (schemacontract.Enforcement, error) {
	ref, err := Digest(c)
	if err != nil {
		return schemacontract.Enforcement{}, err
	}

	provided := map[string]struct{}{}
	if req.Context != nil {
		for _, item := range req.Context.EvidenceProvided {
			provided[strings.ToLower(strings.TrimSpace(item))] = struct{}{}
		}
	}

	outcome := schemacontract.Enforcement{
		ContractRef: ref,
		Decision:    schemagate.DecisionAllow,
		Rulings:     make([]schemacontract.ActionRuling, 0, len(req.ProposedActions)),
	}
	for index, action := range req.ProposedActions {
		ruling := schemacontract.ActionRuling{
			ActionIndex: index,
			Tool:        action.Tool,
			Resource:    action.Resource,
			Effect:      schemacontract.EffectAllow,
		}
		for _, rule := range c.Rules {
			if !ruleMatches(rule.Match, action) {
				continue
			}
			ruling.RuleID = rule.ID
			ruling.Effect = rule.Effect
			break
		}
		switch ruling.Effect {
		case schemacontract.EffectDeny:
			outcome.Decision = schemagate.MoreRestrictive(outcome.Decision, schemagate.DecisionBlock)
		case schemacontract.EffectRequireEvidence:
			_, met := provided[strings.ToLower(strings.TrimSpace(action.Tool))]
			ruling.EvidenceMet = met
			if !met {
				outcome.Decision = schemagate.MoreRestrictive(outcome.Decision, schemagate.DecisionUnknown)
				outcome.MissingEvidence = append(outcome.MissingEvidence, action.Tool)
			}
		}
		outcome.Rulings = append(outcome.Rulings, ruling)
	}

	outcome.Combined = schemagate.MoreRestrictive(gateDecision, outcome.Decision)
	return outcome, nil
}

// Recorder is the subset of the trace writer enforcement needs.
type Recorder interface {
	Append(eventType schematrace.EventType, payload any, opts trace.AppendOptions) (schematrace.Event, error)
}

// EnforceWithTrace wraps Enforce with enforce.start/enforce.end events on
// the supplied recorder.
func EnforceWithTrace(c Contract, req schemagate.TaskRequest, gateDecision schemagate.Decision, recorder Recorder) (schemacontract.Enforcement, error) {
	if recorder == nil {
		return Enforce(c, req, gateDecision)
	}
	if _, err := recorder.Append(schematrace.EventEnforceStart, map[string]any{
		"gate_decision": string(gateDecision),
		"rule_count":    len(c.Rules),
	}, trace.AppendOptions{SpanID: "enforce"}); err != nil {
		return schemacontract.Enforcement{}, fmt.Errorf("record enforce.start: %w", err)
	}
	outcome, err := Enforce(c, req, gateDecision)
	if err != nil {
		return schemacontract.Enforcement{}, err
	}
	if _, err := recorder.Append(schematrace.EventEnforceEnd, outcome, trace.AppendOptions{SpanID: "enforce"}); err != nil {
		return schemacontract.Enforcement{}, fmt.Errorf("record enforce.end: %w", err)
	}
	return outcome, nil
}

// ruleMatches tests a rule pattern against the action's resource path and
// tool name. Patterns support '*' wildcards; matching is case-insensitive
// on tool names and exact-case on resource paths.
func ruleMatches(pattern string, action schemagate.ProposedAction) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false
	}
	if action.Resource != "" && wildcardMatch(pattern, action.Resource) {
		return true
	}
	return wildcardMatch(strings.ToLower(pattern), strings.ToLower(strings.TrimSpace(action.Tool)))
}

// wildcardMatch reports whether value matches pattern, where '*' matches
// any run of characters including none.
func wildcardMatch(pattern, value string) bool {
	segments := strings.Split(pattern, "*")
	if len(segments) == 1 {
		return pattern == value
	}
	if !strings.HasPrefix(value, segments[0]) {
		return false
	}
	remainder := value[len(segments[0]):]
	for _, segment := range segments[1 : len(segments)-1] {
		if segment == "" {
			continue
		}
		position := strings.Index(remainder, segment)
		if position < 0 {
			return false
		}
		remainder = remainder[position+len(segment):]
	}
	last := segments[len(segments)-1]
	return strings.HasSuffix(remainder, last)
}

func loadError(cause error) error {
	return kernelerrors.Wrap(
		cause,
		kernelerrors.CategoryContractLoad,
		kernelerrors.CodeContractLoadError,
		"fix the contract file; the enforcer fails closed until it parses",
		false,
	)
}
