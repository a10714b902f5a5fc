// Package audit records every advisory turn to a JSONL file for debugging,
// analysis, and reproducibility.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// EventType represents the type of audit event.
type EventType string

const (
	// EventTypeSessionStart marks the start of a new session.
	EventTypeSessionStart EventType = "session_start"
	// EventTypeUserQuery marks a user query entering the pipeline.
	EventTypeUserQuery EventType = "user_query"
	// EventTypeRoutingDecision records the router's strategy for a turn.
	EventTypeRoutingDecision EventType = "routing_decision"
	// EventTypeSpecialistResponse records one specialist's analysis.
	EventTypeSpecialistResponse EventType = "specialist_response"
	// EventTypeSpecialistFailure records a specialist that failed the turn.
	EventTypeSpecialistFailure EventType = "specialist_failure"
	// EventTypeToolCall records one tool execution made by a specialist.
	EventTypeToolCall EventType = "tool_call"
	// EventTypeQualityVerdict records the quality gate outcome.
	EventTypeQualityVerdict EventType = "quality_verdict"
	// EventTypeTurnComplete marks the end of a turn with its final answer.
	EventTypeTurnComplete EventType = "turn_complete"
	// EventTypeError marks an error during processing.
	EventTypeError EventType = "error"
	// EventTypeSessionEnd marks the end of a session.
	EventTypeSessionEnd EventType = "session_end"
)

// Event is a single audit log record.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	// ThreadID ties events to a conversation thread.
	ThreadID string `json:"thread_id,omitempty"`
	// Agent names the specialist that generated the event, if any.
	Agent string `json:"agent,omitempty"`
	// Data holds event-specific fields.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Logger writes audit events to a JSONL file. All methods are safe for
// concurrent use and a nil Logger discards every event, so callers never
// need to guard audit calls.
type Logger struct {
	file      *os.File
	writer    *bufio.Writer
	mutex     sync.Mutex
	sessionID string
}

// NewLogger creates an audit logger appending to the given file path.
func NewLogger(filePath, sessionID string) (*Logger, error) {
	// #nosec G304 -- Audit log path is intentionally configurable by user
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	return &Logger{
		file:      file,
		writer:    bufio.NewWriter(file),
		sessionID: sessionID,
	}, nil
}

func (l *Logger) write(event Event) error {
	if l == nil {
		return nil
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	if _, err := l.writer.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	// Flush immediately for crash safety
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush audit log: %w", err)
	}
	return nil
}

// LogSessionStart logs the start of a new session.
func (l *Logger) LogSessionStart(model string) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeSessionStart,
		SessionID: l.sid(),
		Data:      map[string]interface{}{"model": model},
	})
}

// LogUserQuery logs a query entering the pipeline.
func (l *Logger) LogUserQuery(threadID, query string) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeUserQuery,
		SessionID: l.sid(),
		ThreadID:  threadID,
		Data:      map[string]interface{}{"query": query},
	})
}

// LogRoutingDecision records the router's output for a turn.
func (l *Logger) LogRoutingDecision(threadID, strategy string, roles []string, followUp bool) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeRoutingDecision,
		SessionID: l.sid(),
		ThreadID:  threadID,
		Data: map[string]interface{}{
			"strategy":  strategy,
			"roles":     roles,
			"follow_up": followUp,
		},
	})
}

// LogSpecialistResponse records one specialist's analysis.
func (l *Logger) LogSpecialistResponse(threadID, agent string, confidence float64, tools []string, duration time.Duration) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeSpecialistResponse,
		SessionID: l.sid(),
		ThreadID:  threadID,
		Agent:     agent,
		Data: map[string]interface{}{
			"confidence":  confidence,
			"tools_used":  tools,
			"duration_ms": duration.Milliseconds(),
		},
	})
}

// LogSpecialistFailure records a specialist dropping out of a turn.
func (l *Logger) LogSpecialistFailure(threadID, agent string, err error) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeSpecialistFailure,
		SessionID: l.sid(),
		ThreadID:  threadID,
		Agent:     agent,
		Data:      map[string]interface{}{"error": err.Error()},
	})
}

// LogToolCall records one tool execution made by a specialist.
func (l *Logger) LogToolCall(threadID, agent, tool string, success bool, durationMs int64) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeToolCall,
		SessionID: l.sid(),
		ThreadID:  threadID,
		Agent:     agent,
		Data: map[string]interface{}{
			"tool":        tool,
			"success":     success,
			"duration_ms": durationMs,
		},
	})
}

// LogQualityVerdict records the quality gate outcome for a turn.
func (l *Logger) LogQualityVerdict(threadID string, score float64, passed, enhanced bool) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeQualityVerdict,
		SessionID: l.sid(),
		ThreadID:  threadID,
		Data: map[string]interface{}{
			"score":    score,
			"passed":   passed,
			"enhanced": enhanced,
		},
	})
}

// LogTurnComplete marks the end of a turn.
func (l *Logger) LogTurnComplete(threadID string, duration time.Duration, errorCount int) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeTurnComplete,
		SessionID: l.sid(),
		ThreadID:  threadID,
		Data: map[string]interface{}{
			"duration_ms": duration.Milliseconds(),
			"error_count": errorCount,
		},
	})
}

// LogError logs an error during processing.
func (l *Logger) LogError(threadID string, err error) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeError,
		SessionID: l.sid(),
		ThreadID:  threadID,
		Data:      map[string]interface{}{"error": err.Error()},
	})
}

// LogSessionEnd logs the end of a session and closes the file.
func (l *Logger) LogSessionEnd() error {
	err := l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeSessionEnd,
		SessionID: l.sid(),
	})
	if cerr := l.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush audit log: %w", err)
	}
	return l.file.Close()
}

func (l *Logger) sid() string {
	if l == nil {
		return ""
	}
	return l.sessionID
}
