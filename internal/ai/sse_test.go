package ai

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventReaderParsesDataRecords(t *testing.T) {
	input := "data: hello\n\ndata: world\n\n"
	reader := NewEventReader(strings.NewReader(input))

	first, err := reader.Next()
	require.NoError(t, err)
	require.Equal(t, "hello", first.Data)
	require.Empty(t, first.Name)

	second, err := reader.Next()
	require.NoError(t, err)
	require.Equal(t, "world", second.Data)

	_, err = reader.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestEventReaderJoinsMultiLineData(t *testing.T) {
	input := "data: first\ndata: second\n\n"
	reader := NewEventReader(strings.NewReader(input))

	event, err := reader.Next()
	require.NoError(t, err)
	require.Equal(t, "first\nsecond", event.Data)
}

func TestEventReaderNamedEvent(t *testing.T) {
	input := "event: FatalError\ndata: upstream exploded\n\n"
	reader := NewEventReader(strings.NewReader(input))

	event, err := reader.Next()
	require.NoError(t, err)
	require.True(t, event.IsFatal())
	require.Equal(t, "upstream exploded", event.Data)
}

func TestEventReaderSkipsCommentsAndUnknownFields(t *testing.T) {
	input := ": keep-alive\nid: 42\nretry: 1000\ndata: payload\n\n"
	reader := NewEventReader(strings.NewReader(input))

	event, err := reader.Next()
	require.NoError(t, err)
	require.Equal(t, "payload", event.Data)
}

func TestEventReaderHandlesCRLF(t *testing.T) {
	input := "data: token\r\n\r\n"
	reader := NewEventReader(strings.NewReader(input))

	event, err := reader.Next()
	require.NoError(t, err)
	require.Equal(t, "token", event.Data)
}

func TestEventReaderFlushesPartialRecordOnEOF(t *testing.T) {
	// Stream cut mid-record, no terminating blank line.
	input := "data: truncated\n"
	reader := NewEventReader(strings.NewReader(input))

	event, err := reader.Next()
	require.NoError(t, err)
	require.Equal(t, "truncated", event.Data)

	_, err = reader.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestEventReaderFlushesUnterminatedFinalLine(t *testing.T) {
	// Stream cut mid-line: the last data line has no trailing newline at all.
	input := "data: {\"choices\":[{\"delta\":{\"content\":\"hola\"}}]}"
	reader := NewEventReader(strings.NewReader(input))

	event, err := reader.Next()
	require.NoError(t, err)
	require.Equal(t, `{"choices":[{"delta":{"content":"hola"}}]}`, event.Data)

	_, err = reader.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestEventReaderDoneSentinel(t *testing.T) {
	input := "data: [DONE]\n\n"
	reader := NewEventReader(strings.NewReader(input))

	event, err := reader.Next()
	require.NoError(t, err)
	require.True(t, event.IsDone())
}

func TestEventReaderSkipsLeadingBlankLines(t *testing.T) {
	input := "\n\n\ndata: late\n\n"
	reader := NewEventReader(strings.NewReader(input))

	event, err := reader.Next()
	require.NoError(t, err)
	require.Equal(t, "late", event.Data)
}
