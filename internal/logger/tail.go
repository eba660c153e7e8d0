package logger

import (
	"encoding/json"
	"sync"
)

const defaultTailSize = 500

// Entry is one parsed log line, as served by the log tail API.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Sink receives parsed entries as they are written, typically the events
// hub pushing them to connected clients.
type Sink interface {
	Publish(eventType string, payload any)
}

// Tail is an io.Writer that keeps the most recent log entries in a ring
// and optionally forwards them to a Sink. zerolog writes JSON lines into
// it; non-JSON console output never reaches the tail.
type Tail struct {
	mu      sync.RWMutex
	entries []Entry
	head    int
	count   int
	sink    Sink
}

// NewTail creates a tail retaining up to size entries.
func NewTail(size int) *Tail {
	if size <= 0 {
		size = defaultTailSize
	}
	return &Tail{entries: make([]Entry, size)}
}

// SetSink attaches a sink for live forwarding. A nil sink disables it.
func (t *Tail) SetSink(sink Sink) {
	t.mu.Lock()
	t.sink = sink
	t.mu.Unlock()
}

// Write implements io.Writer for zerolog JSON output. Malformed lines are
// counted as written and dropped.
func (t *Tail) Write(p []byte) (int, error) {
	entry, ok := parseEntry(p)
	if !ok {
		return len(p), nil
	}

	t.mu.Lock()
	if t.count == len(t.entries) {
		t.entries[t.head] = entry
		t.head = (t.head + 1) % len(t.entries)
	} else {
		t.entries[(t.head+t.count)%len(t.entries)] = entry
		t.count++
	}
	sink := t.sink
	t.mu.Unlock()

	if sink != nil {
		sink.Publish("log.entry", entry)
	}
	return len(p), nil
}

// Recent returns buffered entries from oldest to newest.
func (t *Tail) Recent() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, t.count)
	for i := 0; i < t.count; i++ {
		out[i] = t.entries[(t.head+i)%len(t.entries)]
	}
	return out
}

// Len returns the number of buffered entries.
func (t *Tail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

func parseEntry(data []byte) (Entry, bool) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Entry{}, false
	}

	entry := Entry{Fields: make(map[string]any)}
	if ts, ok := raw["time"].(string); ok {
		entry.Timestamp = ts
		delete(raw, "time")
	}
	if level, ok := raw["level"].(string); ok {
		entry.Level = level
		delete(raw, "level")
	}
	if component, ok := raw["component"].(string); ok {
		entry.Component = component
		delete(raw, "component")
	}
	if msg, ok := raw["message"].(string); ok {
		entry.Message = msg
		delete(raw, "message")
	}
	for k, v := range raw {
		entry.Fields[k] = v
	}
	return entry, true
}
