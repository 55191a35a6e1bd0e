package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"relaygate/internal/domain"
	"relaygate/internal/formats"
	"relaygate/internal/translate"
	"relaygate/internal/utils"
)

// KiroExecutor speaks AWS CodeWhisperer's generateAssistantResponse API:
// JSON request in, binary AWS EventStream frames out. It owns the frame
// parser and reframes every response — streaming or not, CodeWhisperer
// only ever replies with an EventStream — into OpenAI-style
// chat-completion SSE chunks so the rest of the pipeline never has to know
// Kiro exists.
type KiroExecutor struct {
	Client   *http.Client
	TokenURL string // Kiro's refresh-token endpoint (social-auth path)
}

func NewKiroExecutor(client *http.Client, tokenURL string) *KiroExecutor {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &KiroExecutor{Client: client, TokenURL: tokenURL}
}

func (e *KiroExecutor) BuildURL(_ string, _ bool, _ int, conn *domain.Connection, prov *domain.Provider) string {
	base := prov.BaseURL
	if conn.Secrets.BaseURL != "" {
		base = conn.Secrets.BaseURL
	}
	return base + "/generateAssistantResponse"
}

func (e *KiroExecutor) BuildHeaders(conn *domain.Connection, _ bool) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer "+conn.Secrets.AccessToken)
	return h
}

func (e *KiroExecutor) TransformRequest(_ context.Context, in ExecuteInput) (map[string]any, error) {
	tctx := &translate.Context{Model: in.Model, Stream: in.Stream, Provider: in.Provider.ID, ToolNameMap: in.ToolNameMap}
	body, err := translate.TranslateRequest(tctx, formats.OpenAI, formats.Kiro, in.Body)
	if err != nil {
		return nil, err
	}
	if in.Connection.Secrets.ProfileARN != "" {
		body["profileArn"] = in.Connection.Secrets.ProfileARN
	}
	return body, nil
}

func (e *KiroExecutor) Execute(ctx context.Context, in ExecuteInput) (*ExecuteOutput, error) {
	body, err := e.TransformRequest(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("providers: transform kiro request: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("providers: marshal kiro request: %w", err)
	}

	url := e.BuildURL(in.Model, in.Stream, 0, in.Connection, in.Provider)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("providers: build kiro request: %w", err)
	}
	httpReq.Header = e.BuildHeaders(in.Connection, in.Stream)

	start := time.Now()
	resp, err := e.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("providers: kiro upstream request failed: %w", err)
	}
	latency := time.Since(start)

	out := &ExecuteOutput{URL: url, StatusCode: resp.StatusCode, Header: resp.Header, TransformedBody: body, Latency: latency, ResponseFormat: formats.OpenAI}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		out.Body = respBody
		return out, nil
	}

	out.Stream = newKiroSSEReframer(resp.Body, in.Log)
	return out, nil
}

func (e *KiroExecutor) RefreshCredentials(ctx context.Context, conn *domain.Connection, _ *domain.Provider) (*RefreshedCredentials, error) {
	return refreshKiro(ctx, e.Client, conn, e.TokenURL)
}

// kiroToolCallState tracks per-toolUseId index assignment across a single
// stream, mirroring the OpenAI tool_calls index contract.
type kiroToolCallState struct {
	indexByID   map[string]int
	nextIndex   int
	roleEmitted bool
}

// newKiroSSEReframer starts a goroutine that drains src's AWS EventStream
// frames and writes OpenAI-style `data: ...` SSE lines to the returned
// reader. The goroutine owns src and closes it when done or when the
// returned reader is closed early.
func newKiroSSEReframer(src io.ReadCloser, log *utils.Logger) io.ReadCloser {
	pr, pw := io.Pipe()
	go runKiroReframe(src, pw, log)
	return pr
}

// meteringQuietPeriod bounds how long runKiroReframe waits after a
// meteringEvent/contextUsageEvent frame for either a following frame or EOF
// before treating the stream as finished anyway. CodeWhisperer is expected
// to close the connection promptly after metering, but a connection left
// open with nothing more to send would otherwise hang the client until the
// outer request timeout.
const meteringQuietPeriod = 100 * time.Millisecond

// kiroFrameResult is one ReadFrame outcome, handed from the dedicated reader
// goroutine to runKiroReframe's select loop over a channel.
type kiroFrameResult struct {
	frame *eventStreamFrame
	err   error
}

// runKiroReframe emits the synthesized finish chunk on the first of {EOF,
// next non-metering event, meteringQuietPeriod elapsed} after a
// meteringEvent/contextUsageEvent frame is seen. Reading happens on a
// dedicated goroutine so the quiet-period timer can race the next frame
// without blocking on synchronous I/O; only this goroutine ever writes to
// pw, so there is no cross-goroutine synchronization to get wrong.
func runKiroReframe(src io.ReadCloser, pw *io.PipeWriter, log *utils.Logger) {
	defer src.Close()

	esr := newEventStreamReader(src)
	tools := &kiroToolCallState{indexByID: make(map[string]int)}
	finishEmitted := false
	hasToolCalls := false
	meteringSeen := false

	frames := make(chan kiroFrameResult)
	go func() {
		for {
			frame, err := esr.ReadFrame()
			frames <- kiroFrameResult{frame: frame, err: err}
			if err != nil {
				return
			}
		}
	}()

	emitFinish := func() {
		if finishEmitted {
			return
		}
		finishEmitted = true
		reason := "stop"
		if hasToolCalls {
			reason = "tool_calls"
		}
		writeChunk(pw, kiroFinishChunk(reason))
	}

	var quiet <-chan time.Time
	for {
		select {
		case <-quiet:
			emitFinish()
			meteringSeen = false
			quiet = nil

		case res := <-frames:
			if res.err != nil {
				emitFinish()
				writeDone(pw)
				pw.Close()
				return
			}
			frame := res.frame

			eventType := frame.Headers[":event-type"]
			if meteringSeen && eventType != "meteringEvent" && eventType != "contextUsageEvent" {
				emitFinish()
				meteringSeen = false
				quiet = nil
			}

			var payload map[string]any
			if len(frame.Payload) > 0 {
				if jsonErr := json.Unmarshal(frame.Payload, &payload); jsonErr != nil {
					if log != nil {
						log.Warn("providers: kiro frame payload not JSON", "eventType", eventType, "error", jsonErr)
					}
					continue
				}
			}

			switch eventType {
			case "assistantResponseEvent", "codeEvent":
				content, _ := payload["content"].(string)
				if content != "" {
					isFirst := !tools.roleEmitted
					tools.roleEmitted = true
					writeChunk(pw, kiroContentChunk(isFirst, content))
				}
			case "toolUseEvent":
				handleKiroToolUseEvent(pw, tools, payload, &hasToolCalls)
			case "messageStopEvent":
				emitFinish()
			case "meteringEvent", "contextUsageEvent":
				meteringSeen = true
				quiet = time.After(meteringQuietPeriod)
			}
		}
	}
}

func handleKiroToolUseEvent(pw *io.PipeWriter, tools *kiroToolCallState, payload map[string]any, hasToolCalls *bool) {
	toolUseID, _ := payload["toolUseId"].(string)
	name, _ := payload["name"].(string)
	input, inputPresent := payload["input"].(string)

	idx, seen := tools.indexByID[toolUseID]
	if !seen {
		idx = tools.nextIndex
		tools.nextIndex++
		tools.indexByID[toolUseID] = idx
		*hasToolCalls = true
		isFirst := !tools.roleEmitted
		tools.roleEmitted = true
		writeChunk(pw, kiroToolStartChunk(idx, toolUseID, name, isFirst))
		return
	}
	if inputPresent && input != "" {
		writeChunk(pw, kiroToolArgsChunk(idx, input))
	}
}

func kiroDeltaChunk(delta map[string]any, finishReason *string) map[string]any {
	choice := map[string]any{"index": 0, "delta": delta}
	if finishReason != nil {
		choice["finish_reason"] = *finishReason
	} else {
		choice["finish_reason"] = nil
	}
	return map[string]any{
		"object":  "chat.completion.chunk",
		"choices": []map[string]any{choice},
	}
}

func kiroContentChunk(isFirst bool, content string) map[string]any {
	delta := map[string]any{"content": content}
	if isFirst {
		delta["role"] = "assistant"
	}
	return kiroDeltaChunk(delta, nil)
}

func kiroToolStartChunk(index int, id, name string, isFirst bool) map[string]any {
	delta := map[string]any{
		"tool_calls": []map[string]any{{
			"index": index, "id": id, "type": "function",
			"function": map[string]any{"name": name, "arguments": ""},
		}},
	}
	if isFirst {
		delta["role"] = "assistant"
	}
	return kiroDeltaChunk(delta, nil)
}

func kiroToolArgsChunk(index int, argsFragment string) map[string]any {
	delta := map[string]any{
		"tool_calls": []map[string]any{{
			"index":    index,
			"function": map[string]any{"arguments": argsFragment},
		}},
	}
	return kiroDeltaChunk(delta, nil)
}

func kiroFinishChunk(reason string) map[string]any {
	return kiroDeltaChunk(map[string]any{}, &reason)
}

func writeChunk(pw *io.PipeWriter, chunk map[string]any) {
	data, err := json.Marshal(chunk)
	if err != nil {
		return
	}
	io.WriteString(pw, "data: ")
	pw.Write(data)
	io.WriteString(pw, "\n\n")
}

func writeDone(pw *io.PipeWriter) {
	io.WriteString(pw, "data: [DONE]\n\n")
}
