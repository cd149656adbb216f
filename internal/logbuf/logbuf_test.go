package logbuf

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SolracHQ/rivet/internal/domain"
)

func TestAppendAndDrain(t *testing.T) {
	b := New(0)
	b.Append(domain.LogEntry{Level: domain.LogInfo, Message: "one"})
	b.Append(domain.LogEntry{Level: domain.LogInfo, Message: "two"})
	require.Equal(t, 2, b.Len())

	drained := b.Drain()
	require.Len(t, drained, 2)
	require.Equal(t, 0, b.Len())
	require.Nil(t, b.Drain())
}

func TestAppendRespectsLimit(t *testing.T) {
	b := New(2)
	b.Append(domain.LogEntry{Message: "one"})
	b.Append(domain.LogEntry{Message: "two"})
	b.Append(domain.LogEntry{Message: "three"})

	drained := b.Drain()
	require.Len(t, drained, 2)
	require.Equal(t, "two", drained[0].Message)
	require.Equal(t, "three", drained[1].Message)
}

func TestSinkRoutesLevels(t *testing.T) {
	b := New(0)
	s := NewSink(b)
	s.Info("hello")
	s.Error("boom")

	entries := b.Drain()
	require.Len(t, entries, 2)
	require.Equal(t, domain.LogInfo, entries[0].Level)
	require.Equal(t, domain.LogError, entries[1].Level)
}
