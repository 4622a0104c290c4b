package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDecisionLogPreservesEvaluationTime(t *testing.T) {
	l := &DecisionLogger{}
	l.SetEnabled(true)

	path := filepath.Join(t.TempDir(), "audit.jsonl")
	if err := l.SetOutput(path); err != nil {
		t.Fatalf("set output: %v", err)
	}
	defer l.Close()

	evaluated := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	l.Log(&DecisionEntry{
		Timestamp:  evaluated,
		DecisionID: "dec-1",
		TenantID:   "T1",
		Action:     "render:create",
		Allowed:    true,
		ReasonCode: "allowed",
	})
	l.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		t.Fatal("audit log is empty")
	}
	var got DecisionEntry
	if err := json.Unmarshal(sc.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal entry: %v", err)
	}
	if !got.Timestamp.Equal(evaluated) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, evaluated)
	}
}

func TestDecisionLogStampsMissingTime(t *testing.T) {
	l := &DecisionLogger{}
	l.SetEnabled(true)

	path := filepath.Join(t.TempDir(), "audit.jsonl")
	if err := l.SetOutput(path); err != nil {
		t.Fatalf("set output: %v", err)
	}

	l.Log(&DecisionEntry{DecisionID: "dec-2", ReasonCode: "allowed"})
	l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	var got DecisionEntry
	if err := json.Unmarshal(data[:len(data)-1], &got); err != nil {
		t.Fatalf("unmarshal entry: %v", err)
	}
	if got.Timestamp.IsZero() {
		t.Error("entry written without a timestamp")
	}
}
