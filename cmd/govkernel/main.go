package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// version is stamped at release time via ldflags; default stays dev for local builds.
var version = "0.0.0-dev"

func main() {
	os.Exit(run(os.Args))
}

func run(arguments []string) int {
	startedAt := time.Now()
	logger := newOperationalLogger()
	command := normalizeCommand(arguments)
	logger.Info("command start", "command", command)
	exitCode := runDispatch(arguments)
	logger.Info("command end",
		"command", command,
		"exit_code", exitCode,
		"elapsed_ms", time.Since(startedAt).Seconds()*1000,
	)
	return exitCode
}

func runDispatch(arguments []string) int {
	if len(arguments) < 2 {
		fmt.Println("govkernel", version)
		return exitOK
	}
	if arguments[1] == "--explain" {
		return writeExplain("Govkernel is an offline governance kernel: it gates proposed agent actions against a deterministic risk table and a declarative contract, records a tamper-evident decision trace, and persists write-once evidence packages that can be re-verified at any time.")
	}

	switch arguments[1] {
	case "gate":
		return runGate(arguments[2:])
	case "verify":
		return runVerify(arguments[2:])
	case "audit":
		return runAudit(arguments[2:])
	case "keys":
		return runKeys(arguments[2:])
	case "version", "--version", "-v":
		if hasExplainFlag(arguments[2:]) {
			return writeExplain("Print the CLI version.")
		}
		fmt.Println("govkernel", version)
		return exitOK
	default:
		printUsage()
		return exitInvalidInput
	}
}

// newOperationalLogger emits JSON diagnostics to stderr when
// GOVKERNEL_LOG is set; otherwise every record is discarded so command
// stdout stays machine-parseable.
func newOperationalLogger() *slog.Logger {
	level := strings.ToLower(strings.TrimSpace(os.Getenv("GOVKERNEL_LOG")))
	if level == "" {
		return slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if level == "debug" {
		options.Level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, options)).With("producer", "govkernel", "version", version)
}

func normalizeCommand(arguments []string) string {
	if len(arguments) < 2 {
		return "version"
	}
	command := strings.TrimSpace(arguments[1])
	if command == "" {
		return "unknown"
	}
	switch command {
	case "--version", "-v", "version":
		return "version"
	case "--explain":
		return "explain"
	case "gate", "verify", "audit", "keys":
		if len(arguments) > 2 {
			subcommand := strings.TrimSpace(arguments[2])
			if subcommand != "" && !strings.HasPrefix(subcommand, "-") {
				return command + " " + subcommand
			}
		}
	}
	return command
}

func printUsage() {
	fmt.Println("usage: govkernel <command> [flags]")
	fmt.Println()
	fmt.Println("commands:")
	fmt.Println("  gate eval        evaluate a task request against the risk gate and a contract")
	fmt.Println("  verify trace     recompute a trace's hash chain")
	fmt.Println("  verify evidence  recompute an evidence package hash")
	fmt.Println("  verify all       verify every trace, package, and index entry under an output dir")
	fmt.Println("  audit            list, count, or find audit index entries")
	fmt.Println("  keys generate    generate an ed25519 evidence signing keypair")
	fmt.Println("  version          print the CLI version")
	fmt.Println()
	fmt.Println("run any command with --explain for a plain-language description")
}
