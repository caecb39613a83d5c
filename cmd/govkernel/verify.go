package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/liyecom/govkernel/core/evidence"
	"github.com/liyecom/govkernel/core/replay"
)

type traceVerifyOutput struct {
	OK              bool   `json:"ok"`
	TraceID         string `json:"trace_id,omitempty"`
	EventsChecked   int    `json:"events_checked"`
	FirstFailingSeq *int64 `json:"first_failing_seq,omitempty"`
	ExpectedHash    string `json:"expected_hash,omitempty"`
	ActualHash      string `json:"actual_hash,omitempty"`
	StructuralError string `json:"structural_error,omitempty"`
	Error           string `json:"error,omitempty"`
}

func (o traceVerifyOutput) Text() string {
	if o.Error != "" {
		return "verify trace failed: " + o.Error
	}
	if o.OK {
		return fmt.Sprintf("trace %s ok (%d events)", o.TraceID, o.EventsChecked)
	}
	if o.FirstFailingSeq != nil {
		return fmt.Sprintf("trace %s FAILED at seq %d", o.TraceID, *o.FirstFailingSeq)
	}
	return fmt.Sprintf("trace %s FAILED", o.TraceID)
}

type evidenceVerifyOutput struct {
	OK           bool   `json:"ok"`
	Path         string `json:"path,omitempty"`
	TraceID      string `json:"trace_id,omitempty"`
	ExpectedHash string `json:"expected_hash,omitempty"`
	StoredHash   string `json:"stored_hash,omitempty"`
	Error        string `json:"error,omitempty"`
}

func (o evidenceVerifyOutput) Text() string {
	if o.Error != "" {
		return "verify evidence failed: " + o.Error
	}
	if o.OK {
		return fmt.Sprintf("evidence %s ok", o.Path)
	}
	return fmt.Sprintf("evidence %s FAILED (stored %s)", o.Path, o.StoredHash)
}

type verifyAllOutput struct {
	OK              bool     `json:"ok"`
	TracesChecked   int      `json:"traces_checked"`
	TracesFailed    []string `json:"traces_failed,omitempty"`
	EvidenceChecked int      `json:"evidence_checked"`
	EvidenceFailed  []string `json:"evidence_failed,omitempty"`
	IndexEntries    int      `json:"index_entries"`
	IndexFailed     []string `json:"index_failed,omitempty"`
	Error           string   `json:"error,omitempty"`
}

func (o verifyAllOutput) Text() string {
	if o.Error != "" {
		return "verify all failed: " + o.Error
	}
	status := "ok"
	if !o.OK {
		status = "FAILED"
	}
	return fmt.Sprintf("verify all %s: traces=%d evidence=%d index=%d failures=%d",
		status, o.TracesChecked, o.EvidenceChecked, o.IndexEntries,
		len(o.TracesFailed)+len(o.EvidenceFailed)+len(o.IndexFailed))
}

func runVerify(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Recompute hash chains and package hashes to attest that no recorded artifact has been altered. Verification is read-only and repeatable.")
	}
	if len(arguments) == 0 {
		printVerifyUsage()
		return exitInvalidInput
	}

	switch arguments[0] {
	case "trace":
		return runVerifyTrace(arguments[1:])
	case "evidence":
		return runVerifyEvidence(arguments[1:])
	case "all":
		return runVerifyAll(arguments[1:])
	default:
		printVerifyUsage()
		return exitInvalidInput
	}
}

func runVerifyTrace(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Recompute one trace's hash chain event by event and report the first tampered sequence number, if any.")
	}
	arguments = reorderInterspersedFlags(arguments, map[string]bool{"dir": true})
	flagSet := flag.NewFlagSet("verify-trace", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var dir string
	var jsonOutput bool
	var helpFlag bool
	flagSet.StringVar(&dir, "dir", "", "trace directory containing events.ndjson")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	if err := flagSet.Parse(arguments); err != nil {
		return writeJSONOutput(jsonOutput, traceVerifyOutput{Error: err.Error()}, exitInvalidInput)
	}
	if helpFlag {
		printVerifyUsage()
		return exitOK
	}
	if dir == "" {
		return writeJSONOutput(jsonOutput, traceVerifyOutput{Error: "--dir is required"}, exitInvalidInput)
	}

	result, err := replay.Trace(dir)
	if err != nil {
		return writeJSONOutput(jsonOutput, traceVerifyOutput{Error: err.Error()}, exitCodeForError(err, exitVerifyFailed))
	}
	output := traceVerifyOutput{
		OK:              result.OK,
		TraceID:         result.TraceID,
		EventsChecked:   result.EventsChecked,
		FirstFailingSeq: result.FirstFailingSeq,
		StructuralError: result.StructuralError,
	}
	if result.Mismatch != nil {
		output.ExpectedHash = result.Mismatch.Expected
		output.ActualHash = result.Mismatch.Actual
	}
	exitCode := exitOK
	if !result.OK {
		exitCode = exitVerifyFailed
	}
	return writeJSONOutput(jsonOutput, output, exitCode)
}

func runVerifyEvidence(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Re-read one evidence package and recompute its package hash against the stored integrity block.")
	}
	arguments = reorderInterspersedFlags(arguments, map[string]bool{"path": true})
	flagSet := flag.NewFlagSet("verify-evidence", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var path string
	var jsonOutput bool
	var helpFlag bool
	flagSet.StringVar(&path, "path", "", "evidence package file")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	if err := flagSet.Parse(arguments); err != nil {
		return writeJSONOutput(jsonOutput, evidenceVerifyOutput{Error: err.Error()}, exitInvalidInput)
	}
	if helpFlag {
		printVerifyUsage()
		return exitOK
	}
	if path == "" {
		return writeJSONOutput(jsonOutput, evidenceVerifyOutput{Error: "--path is required"}, exitInvalidInput)
	}

	result, err := replay.Evidence(path)
	if err != nil {
		return writeJSONOutput(jsonOutput, evidenceVerifyOutput{Error: err.Error()}, exitCodeForError(err, exitVerifyFailed))
	}
	output := evidenceVerifyOutput{
		OK:           result.OK,
		Path:         result.Path,
		TraceID:      result.TraceID,
		ExpectedHash: result.ExpectedHash,
		StoredHash:   result.StoredHash,
	}
	exitCode := exitOK
	if !result.OK {
		exitCode = exitVerifyFailed
	}
	return writeJSONOutput(jsonOutput, output, exitCode)
}

func runVerifyAll(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Verify every trace, evidence package, and audit index entry under an output directory in one pass.")
	}
	arguments = reorderInterspersedFlags(arguments, map[string]bool{"dir": true})
	flagSet := flag.NewFlagSet("verify-all", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var dir string
	var jsonOutput bool
	var helpFlag bool
	flagSet.StringVar(&dir, "dir", defaultOutDir, "output directory to verify")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	if err := flagSet.Parse(arguments); err != nil {
		return writeJSONOutput(jsonOutput, verifyAllOutput{Error: err.Error()}, exitInvalidInput)
	}
	if helpFlag {
		printVerifyUsage()
		return exitOK
	}

	output, err := verifyOutputDir(dir)
	if err != nil {
		return writeJSONOutput(jsonOutput, verifyAllOutput{Error: err.Error()}, exitCodeForError(err, exitVerifyFailed))
	}
	exitCode := exitOK
	if !output.OK {
		exitCode = exitVerifyFailed
	}
	return writeJSONOutput(jsonOutput, output, exitCode)
}

func verifyOutputDir(dir string) (verifyAllOutput, error) {
	output := verifyAllOutput{}

	tracesDir := filepath.Join(dir, tracesDirName)
	traceDirs, err := os.ReadDir(tracesDir)
	if err != nil && !os.IsNotExist(err) {
		return output, fmt.Errorf("read traces directory: %w", err)
	}
	for _, entry := range traceDirs {
		if !entry.IsDir() {
			continue
		}
		traceDir := filepath.Join(tracesDir, entry.Name())
		result, err := replay.Trace(traceDir)
		if err != nil {
			return output, fmt.Errorf("replay trace %s: %w", entry.Name(), err)
		}
		output.TracesChecked++
		if !result.OK {
			output.TracesFailed = append(output.TracesFailed, entry.Name())
		}
	}

	evidenceRoot := filepath.Join(dir, evidenceDir)
	err = filepath.WalkDir(evidenceRoot, func(path string, entry os.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			return nil
		}
		result, err := replay.Evidence(path)
		if err != nil {
			return fmt.Errorf("replay evidence %s: %w", path, err)
		}
		output.EvidenceChecked++
		if !result.OK {
			output.EvidenceFailed = append(output.EvidenceFailed, path)
		}
		return nil
	})
	if err != nil {
		return output, err
	}

	indexPath := filepath.Join(dir, indexFileName)
	if _, statErr := os.Stat(indexPath); statErr == nil {
		entries, err := evidence.ReadIndex(indexPath)
		if err != nil {
			return output, err
		}
		output.IndexEntries = len(entries)
		for _, entry := range entries {
			result, err := replay.Evidence(entry.EvidenceRef)
			if err != nil || !result.OK || result.StoredHash != entry.PackageHash {
				output.IndexFailed = append(output.IndexFailed, entry.TraceID)
			}
		}
	}

	output.OK = len(output.TracesFailed) == 0 && len(output.EvidenceFailed) == 0 && len(output.IndexFailed) == 0
	return output, nil
}

func printVerifyUsage() {
	fmt.Println("usage: govkernel verify trace --dir <trace-dir> [--json]")
	fmt.Println("       govkernel verify evidence --path <package.json> [--json]")
	fmt.Println("       govkernel verify all [--dir <out-dir>] [--json]")
}
