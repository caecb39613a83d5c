package main

import (
	"encoding/json"
	"fmt"
	"strings"

	coreerrors "github.com/liyecom/govkernel/core/errors"
)

const (
	exitOK               = 0
	exitInternalFailure  = 1
	exitPolicyBlocked    = 2
	exitApprovalRequired = 3
	exitVerifyFailed     = 4
	exitInvalidInput     = 5
)

// writeJSONOutput prints the command result. JSON mode emits the output
// struct as a single line; text mode prints a summary via the output's
// Text method when it has one.
func writeJSONOutput(jsonOutput bool, output any, exitCode int) int {
	if !jsonOutput {
		if textable, ok := output.(interface{ Text() string }); ok {
			fmt.Println(textable.Text())
			return exitCode
		}
	}
	encoded, err := json.Marshal(output)
	if err != nil {
		fmt.Println(`{"ok":false,"error":"failed to encode output"}`)
		return exitInternalFailure
	}
	fmt.Println(string(encoded))
	return exitCode
}

func exitCodeForError(err error, fallbackExit int) int {
	if err == nil {
		return exitOK
	}
	switch coreerrors.CategoryOf(err) {
	case coreerrors.CategoryInvalidInput, coreerrors.CategoryContractLoad:
		return exitInvalidInput
	case coreerrors.CategoryVerification, coreerrors.CategoryLedgerCorrupt:
		return exitVerifyFailed
	case coreerrors.CategoryWriteOnce, coreerrors.CategoryIOFailure, coreerrors.CategoryStateContention, coreerrors.CategoryInternalFailure:
		return exitInternalFailure
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "lock") || strings.Contains(msg, "contention") || strings.Contains(msg, "timeout") {
		return exitInternalFailure
	}
	return fallbackExit
}

func hasExplainFlag(arguments []string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == "--explain" {
			return true
		}
	}
	return false
}

func writeExplain(text string) int {
	fmt.Println(text)
	return exitOK
}
