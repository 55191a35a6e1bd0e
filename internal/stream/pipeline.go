// Package stream implements the single-threaded cooperative pipeline that
// turns an upstream SSE body into a target-format SSE body, chunk by
// chunk.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bytedance/sonic"

	"relaygate/internal/formats"
	"relaygate/internal/sse"
	"relaygate/internal/translate"
)

// json uses sonic's encoding/json-compatible config: same semantics
// (map key ordering, number decoding, escaping) as the standard library,
// just faster on the hot per-chunk marshal/unmarshal path.
var json = sonic.ConfigStd

// Result is what a completed (or aborted) pipeline run reports back to the
// chat core for usage persistence and logging.
type Result struct {
	Usage    translate.Usage
	Aborted  bool
	ChunkErr error
}

// Run drains src as SSE, translating each chunk from srcFormat to
// tgtFormat via internal/translate, writing the result to dst. On success
// it writes the target format's terminator and returns the accumulated
// usage. If ctx is cancelled (the downstream consumer disconnected), Run
// stops immediately, closes src, and reports Result.Aborted.
func Run(ctx context.Context, src io.ReadCloser, dst *sse.Writer, srcFormat, tgtFormat formats.Format, tctx *translate.Context) Result {
	r := sse.NewReader(src)
	defer r.Close()

	st := translate.NewStreamState()
	st.Model = tctx.Model

	for {
		if err := ctx.Err(); err != nil {
			return Result{Usage: st.Usage, Aborted: true}
		}

		ev, err := next(ctx, r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Result{Usage: st.Usage, ChunkErr: fmt.Errorf("stream: read upstream event: %w", err)}
		}

		var chunk map[string]any
		if err := json.Unmarshal(ev.Data, &chunk); err != nil {
			// Malformed upstream chunk: skip rather than aborting the
			// whole stream over one bad frame.
			continue
		}

		out, err := translate.TranslateStreamChunk(tctx, st, srcFormat, tgtFormat, chunk)
		if err != nil {
			return Result{Usage: st.Usage, ChunkErr: fmt.Errorf("stream: translate chunk: %w", err)}
		}
		if out == nil {
			continue
		}

		data, err := json.Marshal(out)
		if err != nil {
			continue
		}
		if err := dst.WriteData(data); err != nil {
			return Result{Usage: st.Usage, Aborted: true}
		}
	}

	writeTerminator(dst, tgtFormat, st)
	return Result{Usage: st.Usage}
}

// next reads the following SSE event, unblocking early if ctx is
// cancelled while the underlying read is in flight.
func next(ctx context.Context, r *sse.Reader) (*sse.Event, error) {
	type result struct {
		ev  *sse.Event
		err error
	}
	ch := make(chan result, 1)
	go func() {
		ev, err := r.Next()
		ch <- result{ev, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.ev, res.err
	}
}

// writeTerminator emits the target format's end-of-stream marker: a bare
// [DONE] sentinel for OpenAI, a message_stop event for Claude, and a
// final usageMetadata chunk for Gemini.
func writeTerminator(dst *sse.Writer, tgtFormat formats.Format, st *translate.StreamState) {
	switch tgtFormat {
	case formats.Claude:
		data, _ := json.Marshal(map[string]any{"type": "message_stop"})
		dst.WriteData(data)
	case formats.Gemini, formats.Antigravity:
		data, _ := json.Marshal(map[string]any{
			"usageMetadata": map[string]any{
				"promptTokenCount":     st.Usage.Prompt,
				"candidatesTokenCount": st.Usage.Completion,
				"totalTokenCount":      st.Usage.Prompt + st.Usage.Completion,
			},
		})
		dst.WriteData(data)
	default:
		dst.WriteDone()
	}
}
