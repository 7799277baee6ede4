package stream

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventReader_ParsesEvents(t *testing.T) {
	input := ": keepalive\n\n" +
		"id: 1\nevent: message\ndata: {\"type\":\"heartbeat\"}\n\n" +
		"data: line one\r\ndata: line two\r\n\r\n" +
		"event: empty\n\n" +
		"data:no-space\n\n"
	r := newEventReader(strings.NewReader(input))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "1", ev.ID)
	assert.Equal(t, "message", ev.Name)
	assert.Equal(t, `{"type":"heartbeat"}`, string(ev.Data))

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", string(ev.Data))

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "no-space", string(ev.Data))
	assert.Empty(t, ev.Name)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestEventReader_DropsPartialEventAtEOF(t *testing.T) {
	r := newEventReader(strings.NewReader("data: complete\n\ndata: partial"))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "complete", string(ev.Data))

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestEventReader_LineTooLong(t *testing.T) {
	r := newEventReader(strings.NewReader("data: " + strings.Repeat("x", maxFrameSize+1) + "\n\n"))
	_, err := r.Next()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestWriteEventRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteComment(&buf, "ping"))
	require.NoError(t, WriteEvent(&buf, "update", []byte("first\nsecond")))
	assert.Equal(t, ": ping\n\nevent: update\ndata: first\ndata: second\n\n", buf.String())

	ev, err := newEventReader(&buf).Next()
	require.NoError(t, err)
	assert.Equal(t, "update", ev.Name)
	assert.Equal(t, "first\nsecond", string(ev.Data))
}
