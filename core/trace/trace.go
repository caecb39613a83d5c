// Package trace implements the append-only, hash-chained decision log.
// One Writer owns one trace directory; appends are serialized through the
// writer so seq and hash_prev stay correct under concurrent callers.
package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/liyecom/govkernel/core/canonical"
	kernelerrors "github.com/liyecom/govkernel/core/errors"
	"github.com/liyecom/govkernel/core/fsx"
	schematrace "github.com/liyecom/govkernel/core/schema/v1/trace"
)

// EventsFileName is the per-trace log file, one event per line.
const EventsFileName = "events.ndjson"

type Options struct {
	// TraceID is generated when absent.
	TraceID string
}

type AppendOptions struct {
	SpanID       string
	ParentSpanID string
	// Now overrides the event timestamp; zero means time.Now().UTC().
	Now time.Time
}

// Writer is the single writer for one trace's event log. All sequence and
// last-hash state lives here, never in process globals, so concurrent
// traces cannot corrupt each other's chains.
type Writer struct {
	dir     string
	traceID string

	mu       sync.Mutex
	seq      int64
	lastHash string
}

// New creates (or reopens) the trace directory under baseDir and returns
// its writer. Reopening an existing trace restores seq and last hash from
// the log so the chain continues instead of forking.
func New(baseDir string, opts Options) (*Writer, error) {
	traceID := strings.TrimSpace(opts.TraceID)
	if traceID == "" {
		traceID = uuid.NewString()
	}
	dir := filepath.Join(baseDir, traceID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}
	writer := &Writer{dir: dir, traceID: traceID}

	eventsPath := filepath.Join(dir, EventsFileName)
	if _, statErr := os.Stat(eventsPath); statErr == nil {
		events, err := ReadEvents(dir)
		if err != nil {
			return nil, err
		}
		if len(events) > 0 {
			last := events[len(events)-1]
			writer.seq = last.Seq + 1
			writer.lastHash = last.Hash
		}
	}
	return writer, nil
}

func (w *Writer) TraceID() string {
	return w.traceID
}

func (w *Writer) Dir() string {
	return w.dir
}

// Append validates the event type, chains the event onto the log, and
// returns it. The disk write is durable before Append returns; a write
// failure propagates to the caller, never a silent drop.
func (w *Writer) Append(eventType schematrace.EventType, payload any, opts AppendOptions) (schematrace.Event, error) {
	if !eventType.Valid() {
		return schematrace.Event{}, kernelerrors.Wrap(
			fmt.Errorf("unrecognized event type %q", string(eventType)),
			kernelerrors.CategoryInvalidInput,
			kernelerrors.CodeInvalidEventType,
			"use one of the declared trace event types",
			false,
		)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	ts := opts.Now.UTC()
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	event := schematrace.Event{
		TraceID:      w.traceID,
		SpanID:       strings.TrimSpace(opts.SpanID),
		ParentSpanID: strings.TrimSpace(opts.ParentSpanID),
		Seq:          w.seq,
		Type:         eventType,
		Payload:      payload,
		TS:           ts,
	}
	if w.seq > 0 {
		prev := w.lastHash
		event.HashPrev = &prev
	}

	hash, err := ChainHash(event)
	if err != nil {
		return schematrace.Event{}, err
	}
	event.Hash = hash

	line, err := json.Marshal(event)
	if err != nil {
		return schematrace.Event{}, fmt.Errorf("marshal trace event: %w", err)
	}
	if err := fsx.AppendLineLocked(filepath.Join(w.dir, EventsFileName), line, 0o600); err != nil {
		return schematrace.Event{}, kernelerrors.Wrap(
			fmt.Errorf("append trace event seq %d: %w", event.Seq, err),
			kernelerrors.CategoryIOFailure,
			"trace_append_failed",
			"losing an audit event silently is worse than failing loudly",
			false,
		)
	}

	w.seq++
	w.lastHash = event.Hash
	return event, nil
}

// WriteFile stores an auxiliary artifact alongside the trace. Auxiliary
// files are not part of the hash chain.
func (w *Writer) WriteFile(name string, content []byte) error {
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || cleaned == "." || cleaned == ".." {
		return fmt.Errorf("auxiliary file name must be a plain file name")
	}
	if cleaned == EventsFileName {
		return fmt.Errorf("auxiliary file must not shadow the event log")
	}
	return fsx.WriteFileAtomic(filepath.Join(w.dir, cleaned), content, 0o600)
}

// ChainHash computes the event hash from the event's own fields plus the
// previous hash. The replay verifier recomputes exactly this value.
func ChainHash(event schematrace.Event) (string, error) {
	hashInput := map[string]any{
		"ts":       event.TS.UTC().Format(time.RFC3339Nano),
		"trace_id": event.TraceID,
		"seq":      event.Seq,
		"type":     string(event.Type),
		"payload":  event.Payload,
	}
	if event.SpanID != "" {
		hashInput["span_id"] = event.SpanID
	}
	if event.ParentSpanID != "" {
		hashInput["parent_span_id"] = event.ParentSpanID
	}
	canonicalBytes, err := canonical.Canonicalize(hashInput)
	if err != nil {
		return "", fmt.Errorf("canonicalize trace event seq %d: %w", event.Seq, err)
	}
	hashPrev := ""
	if event.HashPrev != nil {
		hashPrev = *event.HashPrev
	}
	return canonical.SHA256Hex(string(canonicalBytes) + hashPrev), nil
}

// ReadEvents parses the full event log for a trace directory in file order.
func ReadEvents(dir string) ([]schematrace.Event, error) {
	eventsPath := filepath.Join(dir, EventsFileName)
	// #nosec G304 -- trace directory is explicit caller input.
	file, err := os.Open(eventsPath)
	if err != nil {
		return nil, fmt.Errorf("open trace event log: %w", err)
	}
	defer func() { _ = file.Close() }()

	events := make([]schematrace.Event, 0, 8)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var event schematrace.Event
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			return nil, fmt.Errorf("parse trace event line %d: %w", lineNo, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan trace event log: %w", err)
	}
	return events, nil
}
