package gate

import (
	"regexp"

	schemagate "github.com/liyecom/govkernel/core/schema/v1/gate"
)

type dangerousPattern struct {
	id               string
	expr             *regexp.Regexp
	severity         schemagate.Severity
	rationale        string
	requiredEvidence []string
}

// dangerousPatterns is the fixed table of operation patterns the gate
// tests every serialized action against. IDs and severities are part of
// the audited contract with downstream consumers; extend the table, never
// renumber it.
var dangerousPatterns = []dangerousPattern{
	{
		id:               "risk-001",
		expr:             regexp.MustCompile(`(?i)\bdelete\b`),
		severity:         schemagate.SeverityHigh,
		rationale:        "action deletes data or resources; recovery may not be possible",
		requiredEvidence: []string{"backup_confirmation"},
	},
	{
		id:               "risk-002",
		expr:             regexp.MustCompile(`(?i)\boverwrite\b`),
		severity:         schemagate.SeverityMedium,
		rationale:        "action overwrites existing content without keeping the prior version",
		requiredEvidence: []string{"prior_version_snapshot"},
	},
	{
		id:               "risk-003",
		expr:             regexp.MustCompile(`(?i)fund[_\s-]?transfer|transfer[_\s-]?funds|\bpayout\b|\bwire[_\s-]?payment\b`),
		severity:         schemagate.SeverityCritical,
		rationale:        "action moves funds; irreversible financial side effect",
		requiredEvidence: []string{"payment_authorization", "counterparty_verification"},
	},
	{
		id:               "risk-004",
		expr:             regexp.MustCompile(`(?i)rm\s+-rf|recursive[_\s-]?(force[_\s-]?)?delete|force[_\s-]?delete`),
		severity:         schemagate.SeverityCritical,
		rationale:        "recursive force-delete destroys entire subtrees without confirmation",
		requiredEvidence: []string{"backup_confirmation", "scope_review"},
	},
	{
		id:               "risk-005",
		expr:             regexp.MustCompile(`(?i)\bdrop\s+table\b`),
		severity:         schemagate.SeverityCritical,
		rationale:        "dropping a table destroys schema and data in one step",
		requiredEvidence: []string{"database_backup", "migration_plan"},
	},
	{
		id:               "risk-006",
		expr:             regexp.MustCompile(`(?i)\btruncate\b`),
		severity:         schemagate.SeverityHigh,
		rationale:        "truncate removes all rows and cannot be rolled back in most engines",
		requiredEvidence: []string{"database_backup"},
	},
}

// externalTools is the fixed set of tools that reach outside the agent's
// sandbox and therefore require caller-supplied evidence.
var externalTools = map[string]struct{}{
	"api_call":       {},
	"http_request":   {},
	"database_query": {},
	"filesystem":     {},
	"shell_exec":     {},
}
