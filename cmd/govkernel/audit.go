package main

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"

	"github.com/liyecom/govkernel/core/evidence"
	"github.com/liyecom/govkernel/core/projectconfig"
	schemaevidence "github.com/liyecom/govkernel/core/schema/v1/evidence"
)

type auditListOutput struct {
	OK      bool                        `json:"ok"`
	Count   int                         `json:"count"`
	Entries []schemaevidence.IndexEntry `json:"entries,omitempty"`
	Error   string                      `json:"error,omitempty"`
}

func (o auditListOutput) Text() string {
	if o.Error != "" {
		return "audit failed: " + o.Error
	}
	text := fmt.Sprintf("%d entries", o.Count)
	for _, entry := range o.Entries {
		text += fmt.Sprintf("\n%s  %s  %-8s  %s", entry.Date, entry.TraceID, entry.Decision, entry.EvidenceRef)
	}
	return text
}

type auditFindOutput struct {
	OK    bool                       `json:"ok"`
	Found bool                       `json:"found"`
	Entry *schemaevidence.IndexEntry `json:"entry,omitempty"`
	Error string                     `json:"error,omitempty"`
}

func (o auditFindOutput) Text() string {
	if o.Error != "" {
		return "audit find failed: " + o.Error
	}
	if !o.Found {
		return "not found"
	}
	return fmt.Sprintf("%s  %s  %-8s  %s", o.Entry.Date, o.Entry.TraceID, o.Entry.Decision, o.Entry.EvidenceRef)
}

func runAudit(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Inspect the append-only audit index that maps trace identifiers to evidence package locations and hashes.")
	}
	if len(arguments) == 0 {
		printAuditUsage()
		return exitInvalidInput
	}

	switch arguments[0] {
	case "list":
		return runAuditList(arguments[1:])
	case "count":
		return runAuditCount(arguments[1:])
	case "find":
		return runAuditFind(arguments[1:])
	default:
		printAuditUsage()
		return exitInvalidInput
	}
}

func auditIndexFlags(name string) (*flag.FlagSet, *string, *bool, *bool) {
	flagSet := flag.NewFlagSet(name, flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	indexPath := flagSet.String("index", "", "path to audit index")
	jsonOutput := flagSet.Bool("json", false, "emit JSON output")
	helpFlag := flagSet.Bool("help", false, "show help")
	return flagSet, indexPath, jsonOutput, helpFlag
}

// resolveIndexPath falls back from the flag to the project defaults file
// to the conventional location under the default output directory.
func resolveIndexPath(indexPath string) string {
	if indexPath != "" {
		return indexPath
	}
	if configuration, err := projectconfig.Load(projectconfig.DefaultPath, true); err == nil && configuration.Audit.Index != "" {
		return configuration.Audit.Index
	}
	return filepath.Join(defaultOutDir, indexFileName)
}

func runAuditList(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("List every audit index entry in append order.")
	}
	arguments = reorderInterspersedFlags(arguments, map[string]bool{"index": true})
	flagSet, indexPath, jsonOutput, helpFlag := auditIndexFlags("audit-list")
	if err := flagSet.Parse(arguments); err != nil {
		return writeJSONOutput(*jsonOutput, auditListOutput{Error: err.Error()}, exitInvalidInput)
	}
	if *helpFlag {
		printAuditUsage()
		return exitOK
	}

	entries, err := evidence.ReadIndex(resolveIndexPath(*indexPath))
	if err != nil {
		return writeJSONOutput(*jsonOutput, auditListOutput{Error: err.Error()}, exitCodeForError(err, exitInternalFailure))
	}
	return writeJSONOutput(*jsonOutput, auditListOutput{OK: true, Count: len(entries), Entries: entries}, exitOK)
}

func runAuditCount(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Count audit index entries without loading them all.")
	}
	arguments = reorderInterspersedFlags(arguments, map[string]bool{"index": true})
	flagSet, indexPath, jsonOutput, helpFlag := auditIndexFlags("audit-count")
	if err := flagSet.Parse(arguments); err != nil {
		return writeJSONOutput(*jsonOutput, auditListOutput{Error: err.Error()}, exitInvalidInput)
	}
	if *helpFlag {
		printAuditUsage()
		return exitOK
	}

	count, err := evidence.CountIndex(resolveIndexPath(*indexPath))
	if err != nil {
		return writeJSONOutput(*jsonOutput, auditListOutput{Error: err.Error()}, exitCodeForError(err, exitInternalFailure))
	}
	return writeJSONOutput(*jsonOutput, auditListOutput{OK: true, Count: count}, exitOK)
}

func runAuditFind(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Find the audit index entry for one trace identifier.")
	}
	arguments = reorderInterspersedFlags(arguments, map[string]bool{"index": true, "trace-id": true})
	flagSet, indexPath, jsonOutput, helpFlag := auditIndexFlags("audit-find")
	traceID := flagSet.String("trace-id", "", "trace identifier to look up")
	if err := flagSet.Parse(arguments); err != nil {
		return writeJSONOutput(*jsonOutput, auditFindOutput{Error: err.Error()}, exitInvalidInput)
	}
	if *helpFlag {
		printAuditUsage()
		return exitOK
	}
	if *traceID == "" {
		return writeJSONOutput(*jsonOutput, auditFindOutput{Error: "--trace-id is required"}, exitInvalidInput)
	}

	entry, found, err := evidence.FindByTraceID(*traceID, resolveIndexPath(*indexPath))
	if err != nil {
		return writeJSONOutput(*jsonOutput, auditFindOutput{Error: err.Error()}, exitCodeForError(err, exitInternalFailure))
	}
	output := auditFindOutput{OK: true, Found: found}
	if found {
		output.Entry = &entry
	}
	return writeJSONOutput(*jsonOutput, output, exitOK)
}

func printAuditUsage() {
	fmt.Println("usage: govkernel audit list [--index <file>] [--json]")
	fmt.Println("       govkernel audit count [--index <file>] [--json]")
	fmt.Println("       govkernel audit find --trace-id <id> [--index <file>] [--json]")
}
