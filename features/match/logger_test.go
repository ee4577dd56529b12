package match

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestLogger_ThreadSafety(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	concurrency := 50
	iterations := 100
	var wg sync.WaitGroup

	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				logger.Log(LogEntry{
					Title:    "Deckhand",
					Duration: time.Millisecond,
				})
			}
		}()
	}
	wg.Wait()

	decoder := json.NewDecoder(&buf)
	count := 0
	for decoder.More() {
		var entry LogEntry
		if err := decoder.Decode(&entry); err != nil {
			t.Fatalf("Failed to decode entry %d: %v", count, err)
		}
		if entry.LatencyMs != 1 {
			t.Fatalf("entry %d: latency_ms = %d", count, entry.LatencyMs)
		}
		count++
	}

	expected := concurrency * iterations
	if count != expected {
		t.Errorf("Expected %d entries, got %d", expected, count)
	}
}

func TestNewFileLogger_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "matches.log")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	logger.Log(LogEntry{Title: "Chef"})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !bytes.Contains(data, []byte(`"title":"Chef"`)) {
		t.Errorf("log file missing entry: %s", data)
	}
}
