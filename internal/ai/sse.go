package ai

import (
	"bufio"
	"bytes"
	"io"
)

// DoneSentinel is the data payload that marks the end of a successful stream.
const DoneSentinel = "[DONE]"

// FatalErrorEvent is the event name the upstream uses to abort a stream; the
// data payload carries a plain-text error message.
const FatalErrorEvent = "FatalError"

// StreamEvent is one parsed server-sent event.
type StreamEvent struct {
	Name string
	Data string
}

// IsDone reports whether the event is the end-of-stream sentinel.
func (e StreamEvent) IsDone() bool {
	return e.Data == DoneSentinel
}

// IsFatal reports whether the upstream aborted the stream.
func (e StreamEvent) IsFatal() bool {
	return e.Name == FatalErrorEvent
}

// EventReader parses server-sent events from a byte stream. Records are
// separated by blank lines; partial records split across network chunks are
// buffered until their terminating blank line arrives.
type EventReader struct {
	r *bufio.Reader
}

func NewEventReader(r io.Reader) *EventReader {
	return &EventReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next complete event, or io.EOF when the stream ends.
// If the stream ends mid-record with data already buffered, that data is
// flushed as a final event before EOF.
func (er *EventReader) Next() (StreamEvent, error) {
	var name string
	var dataLines [][]byte

	for {
		line, err := er.r.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return StreamEvent{}, err
		}
		// ReadBytes hands back a final unterminated line together with EOF;
		// it still belongs to the record.
		atEOF := err == io.EOF

		line = bytes.TrimRight(line, "\r\n")

		// Blank line terminates the record.
		if len(line) == 0 {
			if atEOF {
				break
			}
			if len(dataLines) > 0 || name != "" {
				return StreamEvent{Name: name, Data: string(bytes.Join(dataLines, []byte("\n")))}, nil
			}
			continue
		}

		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			name = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			dataLines = append(dataLines, bytes.TrimSpace(line[len("data:"):]))
		}
		// Other fields (id:, retry:, ": comment") are ignored.

		if atEOF {
			break
		}
	}

	if len(dataLines) > 0 {
		return StreamEvent{Name: name, Data: string(bytes.Join(dataLines, []byte("\n")))}, nil
	}
	return StreamEvent{}, io.EOF
}
