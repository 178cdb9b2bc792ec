package audit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	err := logger.Log(Entry{
		RequestID:  "req-1",
		IP:         "203.0.113.7",
		Verdict:    "TEMP_DENY",
		Reason:     14,
		ReasonText: "Secondly pageview limit reached.",
	})
	if err != nil {
		t.Fatalf("failed to log: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "203.0.113.7") {
		t.Error("expected ip in output")
	}
	if !strings.Contains(output, "TEMP_DENY") {
		t.Error("expected verdict in output")
	}

	var entry Entry
	if err := json.Unmarshal([]byte(output), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry.Reason != 14 {
		t.Errorf("expected reason 14, got %d", entry.Reason)
	}
}

func TestLogger_TimestampAutoFill(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	before := time.Now().UTC()
	logger.Log(Entry{RequestID: "ts-test", IP: "198.51.100.2", Verdict: "ALLOW"})
	after := time.Now().UTC()

	var entry Entry
	json.Unmarshal(buf.Bytes(), &entry)

	if entry.Timestamp.Before(before) || entry.Timestamp.After(after) {
		t.Error("auto-filled timestamp is out of range")
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	err := logger.Log(Entry{RequestID: "nop", IP: "198.51.100.2", Verdict: "ALLOW"})
	if err != nil {
		t.Errorf("nop logger should not error: %v", err)
	}
}
