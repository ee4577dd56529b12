package match

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogEntry is one line of the match log.
type LogEntry struct {
	Timestamp     time.Time      `json:"timestamp"`
	OpportunityID string         `json:"opportunity_id,omitempty"`
	Title         string         `json:"title"`
	TotalSearched int            `json:"total_searched"`
	PassedFilter  int            `json:"passed_filter"`
	Returned      int            `json:"returned"`
	Rejected      map[string]int `json:"rejected,omitempty"`
	Duration      time.Duration  `json:"duration_ns"`
	LatencyMs     int64          `json:"latency_ms"`
	CorrelationID string         `json:"correlation_id"`
}

type Logger struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewLogger(w io.Writer) *Logger {
	return &Logger{writer: w}
}

func NewFileLogger(path string) (*Logger, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}

	cleanPath := filepath.Clean(path)
	f, err := os.OpenFile(cleanPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) // #nosec G304 -- path is from application config, not user input
	if err != nil {
		return nil, err
	}
	return NewLogger(io.MultiWriter(os.Stdout, f)), nil
}

func (l *Logger) Log(entry LogEntry) {
	entry.Timestamp = time.Now()
	entry.LatencyMs = entry.Duration.Milliseconds()

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := json.NewEncoder(l.writer).Encode(entry); err != nil {
		slog.Error("failed to write match log entry", "error", err)
	}
}
