package stream

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaygate/internal/formats"
	"relaygate/internal/sse"
	"relaygate/internal/translate"
)

type nopCloser struct{ io.Reader }

func (nopCloser) Close() error { return nil }

func TestRun_IdentityPassesChunksThroughAndTerminates(t *testing.T) {
	upstream := nopCloser{strings.NewReader(
		"data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\ndata: [DONE]\n\n",
	)}
	var out bytes.Buffer
	dst := sse.NewWriter(&out, nil)

	res := Run(context.Background(), upstream, dst, formats.OpenAI, formats.OpenAI, &translate.Context{Model: "gpt-4o"})
	require.NoError(t, res.ChunkErr)
	assert.False(t, res.Aborted)
	assert.Contains(t, out.String(), `"content":"hi"`)
	assert.Contains(t, out.String(), "data: [DONE]")
}

func TestRun_ContextCancelledReportsAborted(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	var out bytes.Buffer
	dst := sse.NewWriter(&out, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Run(ctx, nopCloser{r}, dst, formats.OpenAI, formats.OpenAI, &translate.Context{Model: "gpt-4o"})
	assert.True(t, res.Aborted)
}

func TestRun_MalformedChunkIsSkippedNotFatal(t *testing.T) {
	upstream := nopCloser{strings.NewReader(
		"data: not-json\n\ndata: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\ndata: [DONE]\n\n",
	)}
	var out bytes.Buffer
	dst := sse.NewWriter(&out, nil)

	res := Run(context.Background(), upstream, dst, formats.OpenAI, formats.OpenAI, &translate.Context{Model: "gpt-4o"})
	require.NoError(t, res.ChunkErr)
	assert.Contains(t, out.String(), `"content":"ok"`)
}

func TestRun_WriterFailureReportsAborted(t *testing.T) {
	upstream := nopCloser{strings.NewReader(
		"data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\ndata: [DONE]\n\n",
	)}
	dst := sse.NewWriter(failingWriter{}, nil)

	res := Run(context.Background(), upstream, dst, formats.OpenAI, formats.OpenAI, &translate.Context{Model: "gpt-4o"})
	assert.True(t, res.Aborted)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, io.ErrClosedPipe
}

func TestWriteTerminator_GeminiEmitsUsageMetadata(t *testing.T) {
	var out bytes.Buffer
	dst := sse.NewWriter(&out, nil)
	st := translate.NewStreamState()
	st.Usage.Prompt = 10
	st.Usage.Completion = 5

	writeTerminator(dst, formats.Gemini, st)
	assert.Contains(t, out.String(), `"promptTokenCount":10`)
	assert.Contains(t, out.String(), `"candidatesTokenCount":5`)
	assert.Contains(t, out.String(), `"totalTokenCount":15`)
}

func TestWriteTerminator_ClaudeEmitsMessageStop(t *testing.T) {
	var out bytes.Buffer
	dst := sse.NewWriter(&out, nil)
	st := translate.NewStreamState()

	writeTerminator(dst, formats.Claude, st)
	assert.Contains(t, out.String(), `"type":"message_stop"`)
}

func TestWriteTerminator_OpenAIEmitsDoneSentinel(t *testing.T) {
	var out bytes.Buffer
	dst := sse.NewWriter(&out, nil)
	st := translate.NewStreamState()

	writeTerminator(dst, formats.OpenAI, st)
	assert.Equal(t, "data: [DONE]\n\n", out.String())
}

func TestRun_ReadErrorAfterPipeClose(t *testing.T) {
	r, w := io.Pipe()
	go func() {
		time.Sleep(5 * time.Millisecond)
		w.CloseWithError(io.ErrUnexpectedEOF)
	}()
	var out bytes.Buffer
	dst := sse.NewWriter(&out, nil)

	res := Run(context.Background(), nopCloser{r}, dst, formats.OpenAI, formats.OpenAI, &translate.Context{Model: "gpt-4o"})
	require.Error(t, res.ChunkErr)
}
