package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Action classifies what the audit entry records
type Action string

const (
	ActionDeployApproved Action = "deployment_approved"
	ActionDeployOverride Action = "deployment_override"
	ActionDeployDenied   Action = "deployment_denied"
	ActionDeployBlocked  Action = "deployment_blocked"
	ActionEvaluation     Action = "governance_evaluation"
	ActionPolicyChange   Action = "policy_change"
)

// Entry is a single immutable audit record. Entries are append-only;
// the ledger never rewrites a line once flushed.
type Entry struct {
	ID        string         `json:"id"`
	Sequence  int64          `json:"sequence"`
	Timestamp time.Time      `json:"timestamp"`
	Action    Action         `json:"action"`
	ModelID   string         `json:"model_id,omitempty"`
	Actor     string         `json:"actor,omitempty"`
	Override  bool           `json:"override,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Ledger is an append-only JSON-lines audit trail. One file per process
// start, timestamped for rotation; queries scan every file in the
// directory.
type Ledger struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	sequence int64
	dir      string
}

// Open creates or opens an audit ledger in the specified directory
func Open(dir string) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	filename := fmt.Sprintf("audit-%s.jsonl", time.Now().Format("20060102-150405"))
	path := filepath.Join(dir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640) // #nosec G304 -- path is built from the configured dir
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}

	l := &Ledger{
		file:   file,
		writer: bufio.NewWriter(file),
		dir:    dir,
	}
	l.loadSequence()

	return l, nil
}

// Close flushes and closes the ledger
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writer.Flush(); err != nil {
		return err
	}
	return l.file.Close()
}

// Append writes one entry, assigning its ID, sequence and timestamp.
// The line is flushed and synced before returning so an acknowledged
// entry survives a crash.
func (l *Ledger) Append(entry Entry) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sequence++
	entry.ID = uuid.NewString()
	entry.Sequence = l.sequence
	entry.Timestamp = time.Now().UTC()

	line, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	if _, err := l.writer.Write(line); err != nil {
		return Entry{}, fmt.Errorf("failed to write audit entry: %w", err)
	}
	if _, err := l.writer.WriteString("\n"); err != nil {
		return Entry{}, fmt.Errorf("failed to write newline: %w", err)
	}
	if err := l.writer.Flush(); err != nil {
		return Entry{}, fmt.Errorf("failed to flush audit entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return Entry{}, fmt.Errorf("failed to sync audit file: %w", err)
	}

	return entry, nil
}

// loadSequence resumes the sequence from existing ledger files so
// restarts keep it monotonic.
func (l *Ledger) loadSequence() {
	_ = l.scan(func(e Entry) error {
		if e.Sequence > l.sequence {
			l.sequence = e.Sequence
		}
		return nil
	})
}

// Filter narrows a ledger query. Zero values match everything.
type Filter struct {
	ModelID      string
	Actor        string
	Action       Action
	Since        time.Time
	OverrideOnly bool
}

func (f Filter) matches(e Entry) bool {
	if f.ModelID != "" && e.ModelID != f.ModelID {
		return false
	}
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if !f.Since.IsZero() && !e.Timestamp.After(f.Since) {
		return false
	}
	if f.OverrideOnly && !e.Override {
		return false
	}
	return true
}

// Query returns matching entries in append order across all ledger files
func (l *Ledger) Query(filter Filter) ([]Entry, error) {
	l.mu.Lock()
	if err := l.writer.Flush(); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	l.mu.Unlock()

	var entries []Entry
	err := l.scan(func(e Entry) error {
		if filter.matches(e) {
			entries = append(entries, e)
		}
		return nil
	})
	return entries, err
}

// ByModel returns every audit entry for one model
func (l *Ledger) ByModel(modelID string) ([]Entry, error) {
	return l.Query(Filter{ModelID: modelID})
}

// ByActor returns every audit entry produced by one actor
func (l *Ledger) ByActor(actor string) ([]Entry, error) {
	return l.Query(Filter{Actor: actor})
}

// BlockedDeployments returns every hard-blocked deployment attempt
func (l *Ledger) BlockedDeployments() ([]Entry, error) {
	return l.Query(Filter{Action: ActionDeployBlocked})
}

// OverridesByActor returns the override deployments one actor signed off
func (l *Ledger) OverridesByActor(actor string) ([]Entry, error) {
	return l.Query(Filter{Actor: actor, OverrideOnly: true})
}

// Since returns entries recorded strictly after the given time
func (l *Ledger) Since(since time.Time) ([]Entry, error) {
	return l.Query(Filter{Since: since})
}

func (l *Ledger) scan(handler func(Entry) error) error {
	files, err := filepath.Glob(filepath.Join(l.dir, "audit-*.jsonl"))
	if err != nil {
		return fmt.Errorf("failed to list audit files: %w", err)
	}

	for _, path := range files {
		if err := scanFile(path, handler); err != nil {
			return err
		}
	}
	return nil
}

func scanFile(path string, handler func(Entry) error) error {
	file, err := os.Open(path) // #nosec G304 -- paths come from the ledger's own glob
	if err != nil {
		return fmt.Errorf("failed to open audit file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return fmt.Errorf("corrupt audit entry in %s: %w", path, err)
		}
		if err := handler(entry); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return err
	}
	return nil
}
