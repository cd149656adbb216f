// Package logbuf is the runner-side log buffer (C9): a mutex-guarded,
// append-only queue of a single job's log lines, periodically drained
// and shipped to the orchestrator by the worker's background log
// sender.
package logbuf

import (
	"sync"

	"github.com/SolracHQ/rivet/internal/domain"
)

// Buffer accumulates LogEntry values produced by a job's log.*/
// process.run builtins until the worker drains and ships them.
type Buffer struct {
	mu      sync.Mutex
	entries []domain.LogEntry
	// limit caps the buffer's size; once reached, further Append calls
	// drop the oldest entries rather than growing unbounded, matching
	// the runner's LOG_BUFFER_SIZE configuration knob.
	limit int
}

// New builds a Buffer. limit <= 0 means unbounded.
func New(limit int) *Buffer {
	return &Buffer{limit: limit}
}

// Append adds entry to the buffer, trimming the oldest entry first if
// the buffer is at its configured limit.
func (b *Buffer) Append(entry domain.LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.limit > 0 && len(b.entries) >= b.limit {
		b.entries = b.entries[1:]
	}
	b.entries = append(b.entries, entry)
}

// Drain atomically returns every buffered entry and empties the buffer.
func (b *Buffer) Drain() []domain.LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == 0 {
		return nil
	}
	out := b.entries
	b.entries = nil
	return out
}

// Len reports how many entries are currently buffered.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

