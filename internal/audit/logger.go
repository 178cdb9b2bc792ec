// Package audit writes one JSON line per firewall decision.
package audit

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
	IP         string    `json:"ip"`
	Hostname   string    `json:"hostname,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Verdict    string    `json:"verdict"`
	Reason     int       `json:"reason"`
	ReasonText string    `json:"reason_text,omitempty"`
	Component  string    `json:"component,omitempty"`
	RuleType   string    `json:"rule_type,omitempty"`
	Attempts   int64     `json:"attempts,omitempty"`
	QueueOrder int       `json:"queue_order,omitempty"`
}

// Logger writes JSON-line audit log entries.
type Logger struct {
	mu     sync.Mutex
	writer io.Writer
	enc    *json.Encoder
}

// NewLogger creates a new audit logger writing to the given writer.
func NewLogger(w io.Writer) *Logger {
	return &Logger{
		writer: w,
		enc:    json.NewEncoder(w),
	}
}

// NewFileLogger creates a logger that appends to a size-rotated file.
func NewFileLogger(path string, maxSizeMB, maxBackups int) *Logger {
	return NewLogger(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	})
}

// NewStderrLogger creates a logger that writes to stderr.
func NewStderrLogger() *Logger {
	return NewLogger(os.Stderr)
}

// Log writes a single audit entry as a JSON line.
func (l *Logger) Log(entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(entry)
}

// NopLogger returns a logger that discards all entries.
func NopLogger() *Logger {
	return NewLogger(io.Discard)
}
