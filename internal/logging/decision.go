package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// DecisionEntry is one permission decision in the audit log.
type DecisionEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	DecisionID  string    `json:"decision_id"`
	TenantID    string    `json:"tenant_id"`
	ProductCode string    `json:"product_code"`
	Action      string    `json:"action"`
	UserID      string    `json:"user_id"`
	FeatureCode string    `json:"feature_code,omitempty"`
	AssetType   string    `json:"asset_type,omitempty"`
	AssetID     string    `json:"asset_id,omitempty"`
	Allowed     bool      `json:"allowed"`
	FailedGate  string    `json:"failed_gate,omitempty"`
	ReasonCode  string    `json:"reason_code"`
	StoreFault  bool      `json:"store_fault,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	Batch       bool      `json:"batch,omitempty"`
}

// DecisionLogger writes decision audit entries.
type DecisionLogger struct {
	mu      sync.Mutex
	enabled bool
	file    *os.File
	console bool
}

var defaultDecisionLogger = &DecisionLogger{enabled: true, console: true}

// Decisions returns the default decision logger.
func Decisions() *DecisionLogger {
	return defaultDecisionLogger
}

// SetOutput sets the audit log output file.
func (l *DecisionLogger) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// SetConsole enables/disables console output.
func (l *DecisionLogger) SetConsole(enabled bool) {
	l.mu.Lock()
	l.console = enabled
	l.mu.Unlock()
}

// SetEnabled turns decision logging on or off.
func (l *DecisionLogger) SetEnabled(enabled bool) {
	l.mu.Lock()
	l.enabled = enabled
	l.mu.Unlock()
}

// Log writes a decision entry.
func (l *DecisionLogger) Log(entry *DecisionEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	// Callers stamp the entry with the evaluation time; fill it in
	// only when they did not.
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	// Console output (human-readable)
	if l.console {
		status := "✓"
		if !entry.Allowed {
			status = "✗"
		}
		gate := ""
		if entry.FailedGate != "" && entry.FailedGate != "none" {
			gate = fmt.Sprintf(" [gate:%s]", entry.FailedGate)
		}
		fault := ""
		if entry.StoreFault {
			fault = " [store-fault]"
		}
		fmt.Printf("[decision] %s %s %s %s %s %dms%s%s\n",
			status, entry.DecisionID, entry.TenantID, entry.ProductCode,
			entry.Action, entry.DurationMs, gate, fault)
	}

	// File output (JSON)
	if l.file != nil {
		data, _ := json.Marshal(entry)
		l.file.Write(append(data, '\n'))
	}
}

// Close closes the audit log file.
func (l *DecisionLogger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
