package providers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readSSEChunks drains r and returns each decoded `data: ...` JSON payload
// in order, stopping at (and excluding) the terminal [DONE] marker.
func readSSEChunks(t *testing.T, r io.Reader) []map[string]any {
	t.Helper()
	var chunks []map[string]any
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			break
		}
		var chunk map[string]any
		require.NoError(t, json.Unmarshal([]byte(payload), &chunk))
		chunks = append(chunks, chunk)
	}
	return chunks
}

func choiceDelta(t *testing.T, chunk map[string]any) map[string]any {
	t.Helper()
	choices := chunk["choices"].([]any)
	require.Len(t, choices, 1)
	choice := choices[0].(map[string]any)
	return choice["delta"].(map[string]any)
}

func TestKiroReframe_ContentThenStop(t *testing.T) {
	f1 := buildFrame(t, ":event-type", "assistantResponseEvent", []byte(`{"content":"hello"}`))
	f2 := buildFrame(t, ":event-type", "assistantResponseEvent", []byte(`{"content":" world"}`))
	f3 := buildFrame(t, ":event-type", "messageStopEvent", []byte(`{}`))

	var src bytes.Buffer
	src.Write(f1)
	src.Write(f2)
	src.Write(f3)

	out := newKiroSSEReframer(&nopCloser{&src}, nil)
	chunks := readSSEChunks(t, out)
	require.Len(t, chunks, 3)

	d0 := choiceDelta(t, chunks[0])
	assert.Equal(t, "assistant", d0["role"])
	assert.Equal(t, "hello", d0["content"])

	d1 := choiceDelta(t, chunks[1])
	_, hasRole := d1["role"]
	assert.False(t, hasRole)
	assert.Equal(t, " world", d1["content"])

	last := chunks[2]
	choices := last["choices"].([]any)
	choice := choices[0].(map[string]any)
	assert.Equal(t, "stop", choice["finish_reason"])
}

func TestKiroReframe_ToolUseStartThenArgsThenStop(t *testing.T) {
	start := buildFrame(t, ":event-type", "toolUseEvent", []byte(`{"toolUseId":"t1","name":"search"}`))
	args := buildFrame(t, ":event-type", "toolUseEvent", []byte(`{"toolUseId":"t1","input":"{\"q\":\"x\"}"}`))
	stop := buildFrame(t, ":event-type", "messageStopEvent", []byte(`{}`))

	var src bytes.Buffer
	src.Write(start)
	src.Write(args)
	src.Write(stop)

	out := newKiroSSEReframer(&nopCloser{&src}, nil)
	chunks := readSSEChunks(t, out)
	require.Len(t, chunks, 3)

	d0 := choiceDelta(t, chunks[0])
	tc0 := d0["tool_calls"].([]any)[0].(map[string]any)
	assert.Equal(t, "t1", tc0["id"])
	assert.Equal(t, "", tc0["function"].(map[string]any)["arguments"])

	d1 := choiceDelta(t, chunks[1])
	tc1 := d1["tool_calls"].([]any)[0].(map[string]any)
	assert.Equal(t, `{"q":"x"}`, tc1["function"].(map[string]any)["arguments"])

	last := chunks[2]
	choice := last["choices"].([]any)[0].(map[string]any)
	assert.Equal(t, "tool_calls", choice["finish_reason"])
}

func TestKiroReframe_MeteringEventThenEOFEmitsOneFinish(t *testing.T) {
	content := buildFrame(t, ":event-type", "assistantResponseEvent", []byte(`{"content":"hi"}`))
	metering := buildFrame(t, ":event-type", "meteringEvent", []byte(`{}`))
	// No explicit messageStopEvent arrives; EOF after metering should
	// still emit exactly one finish chunk.

	var src bytes.Buffer
	src.Write(content)
	src.Write(metering)

	out := newKiroSSEReframer(&nopCloser{&src}, nil)
	chunks := readSSEChunks(t, out)
	require.Len(t, chunks, 2)

	choice := chunks[1]["choices"].([]any)[0].(map[string]any)
	assert.Equal(t, "stop", choice["finish_reason"])
}

// TestKiroReframe_QuietPeriodBackstopAfterMeteringWithNoFollowupFrame covers
// a connection that sends a metering event and then neither closes nor
// sends another frame — the finish chunk must still surface via the
// quiet-period timer rather than hanging forever.
func TestKiroReframe_QuietPeriodBackstopAfterMeteringWithNoFollowupFrame(t *testing.T) {
	metering := buildFrame(t, ":event-type", "meteringEvent", []byte(`{}`))

	pr, pw := io.Pipe()
	go pw.Write(metering)

	out := newKiroSSEReframer(pr, nil)

	type result struct {
		chunk map[string]any
		err   error
	}
	done := make(chan result, 1)
	go func() {
		reader := bufio.NewReader(out)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				done <- result{err: err}
				return
			}
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			payload := strings.TrimPrefix(line, "data: ")
			if payload == "[DONE]" {
				continue
			}
			var chunk map[string]any
			if err := json.Unmarshal([]byte(payload), &chunk); err == nil {
				done <- result{chunk: chunk}
				return
			}
		}
	}()

	select {
	case r := <-done:
		require.NoError(t, r.err)
		choices := r.chunk["choices"].([]any)
		choice := choices[0].(map[string]any)
		assert.Equal(t, "stop", choice["finish_reason"])
	case <-time.After(2 * time.Second):
		t.Fatal("quiet-period backstop did not emit a finish chunk in time")
	}
}

type nopCloser struct {
	io.Reader
}

func (n *nopCloser) Close() error { return nil }
