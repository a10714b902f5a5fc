package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLogger_WriteEvents(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.jsonl")

	logger, err := NewLogger(logPath, "test-session-123")
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	if err := logger.LogSessionStart("test-model"); err != nil {
		t.Errorf("LogSessionStart failed: %v", err)
	}
	if err := logger.LogUserQuery("thread-1", "is this hash malicious?"); err != nil {
		t.Errorf("LogUserQuery failed: %v", err)
	}
	if err := logger.LogRoutingDecision("thread-1", "single_agent", []string{"incident_response"}, false); err != nil {
		t.Errorf("LogRoutingDecision failed: %v", err)
	}
	if err := logger.LogSpecialistResponse("thread-1", "incident_response", 0.9, []string{"ioc_analysis"}, 200*time.Millisecond); err != nil {
		t.Errorf("LogSpecialistResponse failed: %v", err)
	}
	if err := logger.LogSpecialistFailure("thread-1", "compliance", errors.New("timeout")); err != nil {
		t.Errorf("LogSpecialistFailure failed: %v", err)
	}
	if err := logger.LogQualityVerdict("thread-1", 7.5, true, false); err != nil {
		t.Errorf("LogQualityVerdict failed: %v", err)
	}
	if err := logger.LogTurnComplete("thread-1", 3*time.Second, 1); err != nil {
		t.Errorf("LogTurnComplete failed: %v", err)
	}
	if err := logger.LogSessionEnd(); err != nil {
		t.Errorf("LogSessionEnd failed: %v", err)
	}

	// Every line must be a valid JSON event carrying the session id.
	file, err := os.Open(logPath)
	if err != nil {
		t.Fatalf("failed to open audit log: %v", err)
	}
	defer file.Close()

	var count int
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", count+1, err)
		}
		if event.SessionID != "test-session-123" {
			t.Errorf("line %d has session id %q, want test-session-123", count+1, event.SessionID)
		}
		if event.Timestamp.IsZero() {
			t.Errorf("line %d has zero timestamp", count+1)
		}
		count++
	}
	if count != 8 {
		t.Errorf("expected 8 events, got %d", count)
	}
}

func TestLogger_EventOrder(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.jsonl")

	logger, err := NewLogger(logPath, "s1")
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	logger.LogUserQuery("t1", "q")
	logger.LogTurnComplete("t1", time.Second, 0)
	if err := logger.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	var types []EventType
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("bad line: %v", err)
		}
		types = append(types, event.Type)
	}
	want := []EventType{EventTypeUserQuery, EventTypeTurnComplete}
	if len(types) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(types))
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, types[i], want[i])
		}
	}
}

func TestNilLoggerDiscards(t *testing.T) {
	var logger *Logger
	if err := logger.LogUserQuery("t1", "q"); err != nil {
		t.Errorf("nil logger should discard, got error: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("nil logger close should be a no-op, got error: %v", err)
	}
}
