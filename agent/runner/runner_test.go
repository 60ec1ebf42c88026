package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	contractx "github.com/plancanvas/plancanvas/agent/contract"
	statex "github.com/plancanvas/plancanvas/agent/state"
	toolx "github.com/plancanvas/plancanvas/agent/tool"
	llmx "github.com/plancanvas/plancanvas/pkg/llm"
)

// fakeModel serves the chat-completions streaming endpoint. The scripted
// rounds are answered in request order.
type fakeModel struct {
	t  *testing.T
	mu sync.Mutex

	requests [][]byte
	rounds   []func(w io.Writer)
}

func (f *fakeModel) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/chat/completions" {
		f.t.Errorf("unexpected path %s", r.URL.Path)
		http.NotFound(w, r)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		f.t.Errorf("read request: %v", err)
		return
	}

	f.mu.Lock()
	f.requests = append(f.requests, body)
	n := len(f.requests)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	if n > len(f.rounds) {
		f.t.Errorf("unscripted request %d", n)
		return
	}
	f.rounds[n-1](w)
	io.WriteString(w, "data: [DONE]\n\n")
}

func (f *fakeModel) requestMessages(t *testing.T, i int) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.requests) {
		t.Fatalf("request %d never arrived", i)
	}
	var parsed struct {
		Messages []map[string]any `json:"messages"`
	}
	if err := json.Unmarshal(f.requests[i], &parsed); err != nil {
		t.Fatalf("decode request %d: %v", i, err)
	}
	return parsed.Messages
}

func writeChunk(w io.Writer, delta map[string]any, finishReason any) {
	payload, err := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion.chunk",
		"created": 1,
		"model":   "gpt-4o",
		"choices": []any{map[string]any{
			"index":         0,
			"delta":         delta,
			"finish_reason": finishReason,
		}},
	})
	if err != nil {
		panic(err)
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

func textRound(parts ...string) func(io.Writer) {
	return func(w io.Writer) {
		for _, part := range parts {
			writeChunk(w, map[string]any{"role": "assistant", "content": part}, nil)
		}
		writeChunk(w, map[string]any{}, "stop")
	}
}

func toolRound(callID, name string, args any) func(io.Writer) {
	raw, err := json.Marshal(args)
	if err != nil {
		panic(err)
	}
	return toolRoundRaw(callID, name, string(raw))
}

func toolRoundRaw(callID, name, rawArgs string) func(io.Writer) {
	return func(w io.Writer) {
		writeChunk(w, map[string]any{
			"role": "assistant",
			"tool_calls": []any{map[string]any{
				"index": 0,
				"id":    callID,
				"type":  "function",
				"function": map[string]any{
					"name":      name,
					"arguments": rawArgs,
				},
			}},
		}, nil)
		writeChunk(w, map[string]any{}, "tool_calls")
	}
}

func newTestRunner(t *testing.T, model *fakeModel, cfg Config) *Runner {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(model.serve))
	t.Cleanup(srv.Close)
	client := llmx.NewClient(llmx.Config{BaseURL: srv.URL, APIKey: "test-key", Timeout: 10 * time.Second})
	if client == nil {
		t.Fatal("model client not built")
	}
	return New(client, cfg)
}

func runnerEnv() toolx.Env {
	return toolx.Env{
		State: statex.NewPlanning("s-1", time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)),
	}
}

func TestStreamPlainTextTurn(t *testing.T) {
	t.Parallel()

	model := &fakeModel{t: t, rounds: []func(io.Writer){
		textRound("Hello", ", planner!"),
	}}
	r := newTestRunner(t, model, Config{})

	var events []Event
	assistant, err := r.Stream(context.Background(), runnerEnv(), []contractx.ChatMessage{
		{ID: "m1", Role: contractx.RoleUser, Content: "hi"},
	}, nil, func(ev Event) { events = append(events, ev) })
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if assistant.Role != contractx.RoleAssistant || assistant.Content != "Hello, planner!" {
		t.Fatalf("unexpected assistant message: %+v", assistant)
	}

	var deltas string
	finished := false
	for _, ev := range events {
		switch ev.Type {
		case EventTextDelta:
			deltas += ev.Delta
		case EventFinish:
			finished = true
		case EventError:
			t.Fatalf("unexpected error event: %s", ev.Error)
		}
	}
	if deltas != "Hello, planner!" {
		t.Fatalf("streamed deltas = %q", deltas)
	}
	if !finished {
		t.Fatal("turn must end with a finish event")
	}
}

func TestStreamToolCallRoundTrip(t *testing.T) {
	t.Parallel()

	planArgs := map[string]any{
		"title":       "Team Offsite",
		"description": "Two-day strategy offsite",
		"date":        "2026-10-01",
		"location":    map[string]any{"name": "The Loft", "address": "1 Main St"},
		"agenda":      []any{map[string]any{"time": "10:00", "activity": "Kickoff"}},
	}
	model := &fakeModel{t: t, rounds: []func(io.Writer){
		toolRound("call-1", "createEventPlan", planArgs),
		textRound("Your plan is ready."),
	}}
	r := newTestRunner(t, model, Config{})

	env := runnerEnv()
	var events []Event
	assistant, err := r.Stream(context.Background(), env, []contractx.ChatMessage{
		{ID: "m1", Role: contractx.RoleUser, Content: "plan an offsite"},
	}, nil, func(ev Event) { events = append(events, ev) })
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if env.State.Plan() == nil || env.State.Plan().Title != "Team Offsite" {
		t.Fatal("tool execution must land in the session state")
	}
	if assistant.Content != "Your plan is ready." {
		t.Fatalf("assistant content = %q", assistant.Content)
	}
	if len(assistant.ToolCalls) != 1 || assistant.ToolCalls[0].Name != "createEventPlan" {
		t.Fatalf("tool call not recorded on the message: %+v", assistant.ToolCalls)
	}

	var order []EventType
	for _, ev := range events {
		if ev.Type == EventToolCall || ev.Type == EventToolResult || ev.Type == EventFinish {
			order = append(order, ev.Type)
		}
		if ev.Type == EventToolResult && ev.Error != "" {
			t.Fatalf("tool result carried a failure: %s", ev.Error)
		}
	}
	want := []EventType{EventToolCall, EventToolResult, EventFinish}
	if len(order) != len(want) {
		t.Fatalf("event order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("event order = %v, want %v", order, want)
		}
	}

	// the follow-up request carries the tool transcript
	followUp := model.requestMessages(t, 1)
	var sawToolMessage bool
	for _, msg := range followUp {
		if msg["role"] == "tool" {
			sawToolMessage = true
		}
	}
	if !sawToolMessage {
		t.Fatal("second round must include the tool result message")
	}
}

func TestStreamWindowsTranscript(t *testing.T) {
	t.Parallel()

	model := &fakeModel{t: t, rounds: []func(io.Writer){
		textRound("ok"),
	}}
	r := newTestRunner(t, model, Config{Window: 4})

	messages := make([]contractx.ChatMessage, 0, 9)
	for i := 0; i < 9; i++ {
		role := contractx.RoleUser
		if i%2 == 1 {
			role = contractx.RoleAssistant
		}
		messages = append(messages, contractx.ChatMessage{
			ID:      fmt.Sprintf("m%d", i),
			Role:    role,
			Content: fmt.Sprintf("message %d", i),
		})
	}

	if _, err := r.Stream(context.Background(), runnerEnv(), messages, nil, nil); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	sent := model.requestMessages(t, 0)
	if len(sent) != 5 {
		t.Fatalf("sent %d messages, want system plus the 4-message window", len(sent))
	}
	if sent[0]["role"] != "system" {
		t.Fatal("system instructions must lead the request")
	}
	if sent[1]["content"] != "message 5" {
		t.Fatalf("window must keep the most recent messages, first kept = %v", sent[1]["content"])
	}
}

func TestStreamMalformedToolArguments(t *testing.T) {
	t.Parallel()

	model := &fakeModel{t: t, rounds: []func(io.Writer){
		toolRoundRaw("call-bad", "createEventPlan", `{"title": broken`),
		textRound("Something went wrong with that plan."),
	}}
	r := newTestRunner(t, model, Config{})

	env := runnerEnv()
	var toolResultErr string
	assistant, err := r.Stream(context.Background(), env, nil, nil, func(ev Event) {
		if ev.Type == EventToolResult {
			toolResultErr = ev.Error
		}
	})
	if err != nil {
		t.Fatalf("malformed arguments must not fail the turn: %v", err)
	}

	if toolResultErr == "" || !strings.Contains(toolResultErr, "not valid JSON") {
		t.Fatalf("tool result error = %q, want a malformed-arguments failure", toolResultErr)
	}
	if env.State.Plan() != nil {
		t.Fatal("malformed arguments must not reach the tool")
	}
	if assistant.Content != "Something went wrong with that plan." {
		t.Fatalf("assistant content = %q", assistant.Content)
	}
}

func TestStreamToolRoundLimit(t *testing.T) {
	t.Parallel()

	loop := toolRound("call-x", "updateTaskList", map[string]any{
		"tasks": []any{map[string]any{"title": "t", "status": "todo"}},
	})
	model := &fakeModel{t: t, rounds: []func(io.Writer){loop, loop}}
	r := newTestRunner(t, model, Config{MaxRounds: 2})

	env := runnerEnv()
	env.Tasks = nil

	var lastErr string
	_, err := r.Stream(context.Background(), env, nil, nil, func(ev Event) {
		if ev.Type == EventError {
			lastErr = ev.Error
		}
	})
	if err == nil {
		t.Fatal("exceeding the round limit must fail the turn")
	}
	if lastErr == "" {
		t.Fatal("the failure must also go out as a stream event")
	}
}

func TestStreamWithoutClient(t *testing.T) {
	t.Parallel()

	r := New(nil, Config{})
	var sawError bool
	_, err := r.Stream(context.Background(), runnerEnv(), nil, nil, func(ev Event) {
		if ev.Type == EventError {
			sawError = true
		}
	})
	if err == nil || !sawError {
		t.Fatal("a missing client must fail the turn and emit an error event")
	}
}
