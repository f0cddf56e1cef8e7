package logger

import (
	"container/ring"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogEntry is a single buffered log record
type LogEntry struct {
	Timestamp time.Time
	Level     string
	Message   string
	Attrs     map[string]any
}

// Buffer is a thread-safe circular buffer of log entries
type Buffer struct {
	mu   sync.RWMutex
	ring *ring.Ring
	size int
}

// NewBuffer creates a buffer holding at most capacity entries
func NewBuffer(capacity int) *Buffer {
	return &Buffer{
		ring: ring.New(capacity),
	}
}

// Add stores an entry, overwriting the oldest once full
func (b *Buffer) Add(entry LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ring.Value = entry
	b.ring = b.ring.Next()

	if b.size < b.ring.Len() {
		b.size++
	}
}

// Len returns the number of stored entries
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// GetLast returns the newest n entries in the order they were added
func (b *Buffer) GetLast(n int) []LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n > b.size {
		n = b.size
	}
	if n <= 0 {
		return nil
	}

	entries := make([]LogEntry, n)
	r := b.ring
	for i := n - 1; i >= 0; i-- {
		r = r.Prev()
		entries[i], _ = r.Value.(LogEntry)
	}
	return entries
}

// FormatEntry renders an entry as a logfmt-style line with sorted attributes
func FormatEntry(e LogEntry) string {
	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	fmt.Fprintf(&sb, "time=%s level=%s msg=%q",
		e.Timestamp.Format("15:04:05.000"),
		e.Level,
		e.Message,
	)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, e.Attrs[k])
	}
	return sb.String()
}
