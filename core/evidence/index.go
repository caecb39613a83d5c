package evidence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	kernelerrors "github.com/liyecom/govkernel/core/errors"
	"github.com/liyecom/govkernel/core/fsx"
	schemaevidence "github.com/liyecom/govkernel/core/schema/v1/evidence"
)

// AppendIndex appends one ledger line. The locked single-line append keeps
// concurrent producers from interleaving partial lines; prior lines are
// never rewritten.
func AppendIndex(entry schemaevidence.IndexEntry, indexPath string) error {
	if strings.TrimSpace(entry.TraceID) == "" {
		return fmt.Errorf("index entry trace_id is required")
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal index entry: %w", err)
	}
	if err := fsx.AppendLineLocked(indexPath, line, 0o600); err != nil {
		return fmt.Errorf("append index entry: %w", err)
	}
	return nil
}

// ReadIndex parses every ledger line. A malformed line is a hard failure:
// a corrupted ledger must not silently under-report audit history.
func ReadIndex(indexPath string) ([]schemaevidence.IndexEntry, error) {
	// #nosec G304 -- index path is explicit caller input.
	file, err := os.Open(indexPath)
	if err != nil {
		return nil, fmt.Errorf("open audit index: %w", err)
	}
	defer func() { _ = file.Close() }()

	entries := make([]schemaevidence.IndexEntry, 0, 16)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var entry schemaevidence.IndexEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, kernelerrors.Wrap(
				fmt.Errorf("audit index line %d is not valid json: %w", lineNo, err),
				kernelerrors.CategoryLedgerCorrupt,
				kernelerrors.CodeCorruptLedgerLine,
				"the ledger is corrupted; reading halts rather than under-reporting audit history",
				false,
			)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan audit index: %w", err)
	}
	return entries, nil
}

// FindByTraceID returns the first ledger entry for a trace id.
func FindByTraceID(traceID, indexPath string) (schemaevidence.IndexEntry, bool, error) {
	entries, err := ReadIndex(indexPath)
	if err != nil {
		return schemaevidence.IndexEntry{}, false, err
	}
	for _, entry := range entries {
		if entry.TraceID == traceID {
			return entry, true, nil
		}
	}
	return schemaevidence.IndexEntry{}, false, nil
}

// CountIndex returns the number of ledger entries.
func CountIndex(indexPath string) (int, error) {
	entries, err := ReadIndex(indexPath)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}
