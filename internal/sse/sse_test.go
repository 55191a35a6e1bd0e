package sse

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopCloser struct{ io.Reader }

func (nopCloser) Close() error { return nil }

func newReader(body string) *Reader {
	return NewReader(nopCloser{strings.NewReader(body)})
}

func TestReader_SkipsBlankAndCommentLines(t *testing.T) {
	r := newReader(": comment\n\ndata: {\"a\":1}\n\n")
	ev, err := r.Next()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(ev.Data))
}

func TestReader_DoneSentinelReturnsEOF(t *testing.T) {
	r := newReader("data: {\"a\":1}\n\ndata: [DONE]\n\n")
	_, err := r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_EmptyStreamReturnsEOF(t *testing.T) {
	r := newReader("")
	_, err := r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_SuccessiveEventsInOrder(t *testing.T) {
	r := newReader("data: {\"n\":1}\n\ndata: {\"n\":2}\n\ndata: [DONE]\n\n")
	first, err := r.Next()
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(first.Data))

	second, err := r.Next()
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(second.Data))

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriter_WriteDataFormatsAsDataLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nil)
	require.NoError(t, w.WriteData([]byte(`{"a":1}`)))
	assert.Equal(t, "data: {\"a\":1}\n\n", buf.String())
}

func TestWriter_WriteDoneWritesSentinel(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nil)
	require.NoError(t, w.WriteDone())
	assert.Equal(t, "data: [DONE]\n\n", buf.String())
}

type countingFlusher struct{ n int }

func (f *countingFlusher) Flush() { f.n++ }

func TestWriter_FlushesAfterEveryWrite(t *testing.T) {
	var buf bytes.Buffer
	flusher := &countingFlusher{}
	w := NewWriter(&buf, flusher)
	require.NoError(t, w.WriteData([]byte(`{}`)))
	require.NoError(t, w.WriteData([]byte(`{}`)))
	assert.Equal(t, 2, flusher.n)
}
