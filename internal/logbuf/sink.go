package logbuf

import (
	"time"

	"github.com/SolracHQ/rivet/internal/domain"
	"github.com/SolracHQ/rivet/internal/sandbox"
)

// Sink adapts a Buffer to sandbox.LogSink, timestamping each line with
// the moment it was appended.
type Sink struct {
	buf *Buffer
}

var _ sandbox.LogSink = (*Sink)(nil)

// NewSink wraps buf as the LogSink a job's Primitives are built with.
func NewSink(buf *Buffer) *Sink {
	return &Sink{buf: buf}
}

func (s *Sink) Debug(msg string)   { s.append(domain.LogDebug, msg) }
func (s *Sink) Info(msg string)    { s.append(domain.LogInfo, msg) }
func (s *Sink) Warning(msg string) { s.append(domain.LogWarning, msg) }
func (s *Sink) Error(msg string)   { s.append(domain.LogError, msg) }

func (s *Sink) append(level domain.LogLevel, msg string) {
	if len(msg) > domain.MaxLogMessageLength {
		msg = msg[:domain.MaxLogMessageLength]
	}
	s.buf.Append(domain.LogEntry{Timestamp: time.Now().UTC(), Level: level, Message: msg})
}
