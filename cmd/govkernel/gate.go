package main

import (
	"crypto/ed25519"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/liyecom/govkernel/core/contract"
	"github.com/liyecom/govkernel/core/evidence"
	"github.com/liyecom/govkernel/core/gate"
	"github.com/liyecom/govkernel/core/projectconfig"
	schemaevidence "github.com/liyecom/govkernel/core/schema/v1/evidence"
	schemagate "github.com/liyecom/govkernel/core/schema/v1/gate"
	schematrace "github.com/liyecom/govkernel/core/schema/v1/trace"
	"github.com/liyecom/govkernel/core/sign"
	"github.com/liyecom/govkernel/core/trace"
	"github.com/liyecom/govkernel/core/verdict"
)

const (
	defaultOutDir = "govkernel-out"
	tracesDirName = "traces"
	evidenceDir   = "evidence"
	indexFileName = "audit_index.jsonl"
	verdictFile   = "verdict.md"
)

type gateEvalOutput struct {
	OK           bool   `json:"ok"`
	TraceID      string `json:"trace_id,omitempty"`
	Decision     string `json:"decision,omitempty"`
	GateDecision string `json:"gate_decision,omitempty"`
	PolicyRef    string `json:"policy_ref,omitempty"`
	TracePath    string `json:"trace_path,omitempty"`
	VerdictPath  string `json:"verdict_path,omitempty"`
	EvidencePath string `json:"evidence_path,omitempty"`
	PackageHash  string `json:"package_hash,omitempty"`
	IndexPath    string `json:"index_path,omitempty"`
	Signed       bool   `json:"signed,omitempty"`
	Error        string `json:"error,omitempty"`
}

func (o gateEvalOutput) Text() string {
	if o.Error != "" {
		return "gate eval failed: " + o.Error
	}
	return fmt.Sprintf("decision=%s trace_id=%s evidence=%s", o.Decision, o.TraceID, o.EvidencePath)
}

func runGate(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Evaluate a proposed task against the risk gate and a contract, record the decision trace, and persist a write-once evidence package.")
	}
	if len(arguments) == 0 {
		printGateUsage()
		return exitInvalidInput
	}

	switch arguments[0] {
	case "eval":
		return runGateEval(arguments[1:])
	default:
		printGateUsage()
		return exitInvalidInput
	}
}

func runGateEval(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Run one full decision cycle: risk gate, contract enforcement, verdict rendering, evidence persistence, and audit index append. Execution of the actions themselves is left to the caller.")
	}
	arguments = reorderInterspersedFlags(arguments, map[string]bool{
		"request":     true,
		"contract":    true,
		"out-dir":     true,
		"trace-id":    true,
		"private-key": true,
		"config":      true,
	})
	flagSet := flag.NewFlagSet("gate-eval", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var requestPath string
	var contractPath string
	var outDir string
	var traceID string
	var privateKeyPath string
	var configPath string
	var disableConfig bool
	var jsonOutput bool
	var helpFlag bool

	flagSet.StringVar(&requestPath, "request", "", "path to task request json")
	flagSet.StringVar(&contractPath, "contract", "", "path to contract yaml or json")
	flagSet.StringVar(&outDir, "out-dir", "", "directory for traces, evidence, and the audit index")
	flagSet.StringVar(&traceID, "trace-id", "", "trace identifier (generated when absent)")
	flagSet.StringVar(&privateKeyPath, "private-key", "", "path to base64 ed25519 key for evidence signing")
	flagSet.StringVar(&configPath, "config", projectconfig.DefaultPath, "path to project defaults yaml")
	flagSet.BoolVar(&disableConfig, "no-config", false, "disable project defaults file lookup")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	if err := flagSet.Parse(arguments); err != nil {
		return writeJSONOutput(jsonOutput, gateEvalOutput{Error: err.Error()}, exitInvalidInput)
	}
	if helpFlag {
		printGateEvalUsage()
		return exitOK
	}
	if len(flagSet.Args()) > 0 {
		return writeJSONOutput(jsonOutput, gateEvalOutput{Error: "unexpected positional arguments"}, exitInvalidInput)
	}
	if !disableConfig {
		allowMissing := configPath == projectconfig.DefaultPath
		configuration, err := projectconfig.Load(configPath, allowMissing)
		if err != nil {
			return writeJSONOutput(jsonOutput, gateEvalOutput{Error: err.Error()}, exitInvalidInput)
		}
		applyGateConfigDefaults(configuration.Gate, &contractPath, &outDir, &privateKeyPath)
	}
	if outDir == "" {
		outDir = defaultOutDir
	}
	if requestPath == "" || contractPath == "" {
		return writeJSONOutput(jsonOutput, gateEvalOutput{Error: "both --request and --contract are required"}, exitInvalidInput)
	}

	req, err := readTaskRequest(requestPath)
	if err != nil {
		return writeJSONOutput(jsonOutput, gateEvalOutput{Error: err.Error()}, exitCodeForError(err, exitInvalidInput))
	}
	ruleset, err := contract.LoadFile(contractPath)
	if err != nil {
		return writeJSONOutput(jsonOutput, gateEvalOutput{Error: err.Error()}, exitCodeForError(err, exitInvalidInput))
	}

	var signingKey ed25519.PrivateKey
	if privateKeyPath != "" {
		signingKey, err = sign.LoadPrivateKeyBase64(privateKeyPath)
		if err != nil {
			return writeJSONOutput(jsonOutput, gateEvalOutput{Error: err.Error()}, exitCodeForError(err, exitInvalidInput))
		}
	}

	writer, err := trace.New(filepath.Join(outDir, tracesDirName), trace.Options{TraceID: traceID})
	if err != nil {
		return writeJSONOutput(jsonOutput, gateEvalOutput{Error: err.Error()}, exitCodeForError(err, exitInternalFailure))
	}
	output := gateEvalOutput{
		TraceID:   writer.TraceID(),
		TracePath: writer.Dir(),
	}

	report, err := gate.Evaluate(req, writer, gate.EvalOptions{})
	if err != nil {
		output.Error = err.Error()
		return writeJSONOutput(jsonOutput, output, exitCodeForError(err, exitInternalFailure))
	}
	output.GateDecision = string(report.Decision)

	enforcement, err := contract.EnforceWithTrace(ruleset, req, report.Decision, writer)
	if err != nil {
		output.Error = err.Error()
		return writeJSONOutput(jsonOutput, output, exitCodeForError(err, exitInternalFailure))
	}
	output.Decision = string(enforcement.Combined)
	output.PolicyRef = enforcement.ContractRef

	verdictText := verdict.Render(report, enforcement)
	if err := writer.WriteFile(verdictFile, []byte(verdictText)); err != nil {
		output.Error = err.Error()
		return writeJSONOutput(jsonOutput, output, exitCodeForError(err, exitInternalFailure))
	}
	output.VerdictPath = filepath.Join(writer.Dir(), verdictFile)

	pkg, err := evidence.Generate(evidence.GenerateInput{
		TraceID:         writer.TraceID(),
		Decision:        enforcement.Combined,
		DecisionTime:    time.Now().UTC(),
		PolicyRef:       enforcement.ContractRef,
		Request:         req,
		VerdictSummary:  verdict.Summary(report, enforcement),
		ExecutorVersion: version,
	})
	if err != nil {
		output.Error = err.Error()
		return writeJSONOutput(jsonOutput, output, exitCodeForError(err, exitInternalFailure))
	}
	if signingKey != nil {
		pkg, err = evidence.Sign(pkg, signingKey)
		if err != nil {
			output.Error = err.Error()
			return writeJSONOutput(jsonOutput, output, exitCodeForError(err, exitInternalFailure))
		}
		output.Signed = true
	}

	evidencePath, err := evidence.Persist(pkg, filepath.Join(outDir, evidenceDir))
	if err != nil {
		output.Error = err.Error()
		return writeJSONOutput(jsonOutput, output, exitCodeForError(err, exitInternalFailure))
	}
	output.EvidencePath = evidencePath
	output.PackageHash = pkg.Integrity.PackageHash

	if _, err := writer.Append(schematrace.EventEvidenceWritten, map[string]any{
		"path":         evidencePath,
		"package_hash": pkg.Integrity.PackageHash,
	}, trace.AppendOptions{SpanID: "evidence"}); err != nil {
		output.Error = err.Error()
		return writeJSONOutput(jsonOutput, output, exitCodeForError(err, exitInternalFailure))
	}

	indexPath := filepath.Join(outDir, indexFileName)
	entry := schemaevidence.IndexEntry{
		TraceID:     pkg.TraceID,
		Decision:    pkg.Decision,
		Date:        pkg.DecisionTime.UTC().Format("2006-01-02"),
		EvidenceRef: evidencePath,
		PackageHash: pkg.Integrity.PackageHash,
	}
	if err := evidence.AppendIndex(entry, indexPath); err != nil {
		output.Error = err.Error()
		return writeJSONOutput(jsonOutput, output, exitCodeForError(err, exitInternalFailure))
	}
	output.IndexPath = indexPath

	output.OK = enforcement.Combined == schemagate.DecisionAllow
	return writeJSONOutput(jsonOutput, output, exitCodeForDecision(enforcement.Combined))
}

// exitCodeForDecision maps the combined decision to the process exit
// code: blocked work and work awaiting confirmation or evidence must be
// distinguishable to calling scripts without parsing JSON.
func exitCodeForDecision(decision schemagate.Decision) int {
	switch decision {
	case schemagate.DecisionBlock:
		return exitPolicyBlocked
	case schemagate.DecisionDegrade, schemagate.DecisionUnknown:
		return exitApprovalRequired
	default:
		return exitOK
	}
}

// applyGateConfigDefaults fills flags the caller left empty from the
// project defaults file. Explicit flags always win.
func applyGateConfigDefaults(defaults projectconfig.GateDefaults, contractPath, outDir, privateKeyPath *string) {
	if *contractPath == "" {
		*contractPath = defaults.Contract
	}
	if *outDir == "" {
		*outDir = defaults.OutDir
	}
	if *privateKeyPath == "" {
		*privateKeyPath = defaults.PrivateKey
	}
}

func readTaskRequest(path string) (schemagate.TaskRequest, error) {
	cleanPath := filepath.Clean(strings.TrimSpace(path))
	data, err := os.ReadFile(cleanPath) // #nosec G304 -- operator-supplied request path.
	if err != nil {
		return schemagate.TaskRequest{}, fmt.Errorf("read request: %w", err)
	}
	var req schemagate.TaskRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return schemagate.TaskRequest{}, fmt.Errorf("parse request: %w", err)
	}
	return req, nil
}

func printGateUsage() {
	fmt.Println("usage: govkernel gate eval --request <file> --contract <file> [--out-dir <dir>] [--trace-id <id>] [--private-key <file>] [--json]")
}

func printGateEvalUsage() {
	printGateUsage()
	fmt.Println()
	fmt.Println("flags:")
	fmt.Println("  --request      path to task request json (required)")
	fmt.Println("  --contract     path to contract yaml or json (required)")
	fmt.Println("  --out-dir      directory for traces, evidence, and the audit index")
	fmt.Println("  --trace-id     trace identifier; generated when absent")
	fmt.Println("  --private-key  base64 ed25519 key file; signs the evidence package")
	fmt.Println("  --config       project defaults yaml (default " + projectconfig.DefaultPath + ")")
	fmt.Println("  --no-config    disable project defaults file lookup")
	fmt.Println("  --json         emit JSON output")
}
