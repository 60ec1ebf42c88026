// Package runner drives one model turn as an explicit state machine. Tool
// execution is a suspension point: the stream consumer keeps receiving
// events while each call's structured result is appended to the transcript
// and the model resumes on a follow-up stream.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/rs/zerolog/log"

	contractx "github.com/plancanvas/plancanvas/agent/contract"
	promptx "github.com/plancanvas/plancanvas/agent/prompt"
	toolx "github.com/plancanvas/plancanvas/agent/tool"
)

type phase string

const (
	phaseIdle        phase = "idle"
	phaseAwaitingTok phase = "awaiting-first-token"
	phaseStreaming   phase = "streaming-text"
	phaseExecuting   phase = "executing-tool"
	phaseDone        phase = "done"
	phaseFailed      phase = "failed"
)

const (
	// defaultWindow bounds token cost and latency, not correctness.
	defaultWindow    = 10
	defaultMaxRounds = 4
)

type EventType string

const (
	EventTextDelta  EventType = "text-delta"
	EventToolCall   EventType = "tool-call"
	EventToolResult EventType = "tool-result"
	EventFinish     EventType = "finish"
	EventError      EventType = "error"
)

// Event is one increment of a streamed turn.
type Event struct {
	Type      EventType       `json:"type"`
	Delta     string          `json:"delta,omitempty"`
	Tool      string          `json:"tool,omitempty"`
	CallID    string          `json:"callId,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Result    any             `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Window      int
	MaxRounds   int
}

type Runner struct {
	client      *openaisdk.Client
	model       string
	temperature float64
	maxTokens   int
	window      int
	maxRounds   int
	execute     toolx.Executor
}

func New(client *openaisdk.Client, cfg Config) *Runner {
	window := cfg.Window
	if window <= 0 {
		window = defaultWindow
	}
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o"
	}
	return &Runner{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		window:      window,
		maxRounds:   maxRounds,
		execute:     toolx.NewExecutor(),
	}
}

// Stream runs one turn: system instructions plus node context lead the
// request, the transcript is truncated to the sliding window, text deltas
// and tool activity are emitted as they happen, and the assembled assistant
// message is returned once the turn is done.
func (r *Runner) Stream(
	ctx context.Context,
	env toolx.Env,
	messages []contractx.ChatMessage,
	nodes []contractx.NodeContext,
	emit func(Event),
) (contractx.ChatMessage, error) {
	if emit == nil {
		emit = func(Event) {}
	}
	if r.client == nil {
		emit(Event{Type: EventError, Error: "model client is not configured"})
		return contractx.ChatMessage{}, fmt.Errorf("%w: model client is not configured", contractx.ErrModelInvoke)
	}

	system := promptx.SystemWithContext(promptx.Build(messages, nodes))
	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(r.model),
		Messages: append([]openaisdk.ChatCompletionMessageParamUnion{openaisdk.SystemMessage(system)}, toModelMessages(windowed(messages, r.window))...),
		Tools:    toolx.Declarations(),
	}
	if r.temperature > 0 {
		params.Temperature = openaisdk.Float(r.temperature)
	}
	if r.maxTokens > 0 {
		params.MaxTokens = openaisdk.Int(int64(r.maxTokens))
	}

	st := phaseIdle
	assistant := contractx.ChatMessage{
		ID:        fmt.Sprintf("msg-%d", time.Now().UnixNano()),
		Role:      contractx.RoleAssistant,
		Timestamp: time.Now().UTC(),
	}
	var content strings.Builder

	for round := 0; round < r.maxRounds; round++ {
		st = transition(st, phaseAwaitingTok)

		stream := r.client.Chat.Completions.NewStreaming(ctx, params)
		acc := openaisdk.ChatCompletionAccumulator{}
		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				st = transition(st, phaseStreaming)
				content.WriteString(chunk.Choices[0].Delta.Content)
				emit(Event{Type: EventTextDelta, Delta: chunk.Choices[0].Delta.Content})
			}
		}
		if err := stream.Err(); err != nil {
			transition(st, phaseFailed)
			emit(Event{Type: EventError, Error: err.Error()})
			return contractx.ChatMessage{}, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
		}
		if len(acc.Choices) == 0 {
			transition(st, phaseFailed)
			emit(Event{Type: EventError, Error: "model returned an empty completion"})
			return contractx.ChatMessage{}, fmt.Errorf("%w: empty completion", contractx.ErrModelInvoke)
		}

		msg := acc.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			transition(st, phaseDone)
			assistant.Content = content.String()
			emit(Event{Type: EventFinish})
			return assistant, nil
		}

		// Suspension point: run every requested tool, then resume the
		// stream with the results appended to the transcript.
		params.Messages = append(params.Messages, msg.ToParam())
		for _, call := range msg.ToolCalls {
			st = transition(st, phaseExecuting)
			result := r.runTool(ctx, env, call, emit)
			assistant.ToolCalls = append(assistant.ToolCalls, contractx.ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: json.RawMessage(call.Function.Arguments),
				Result:    result.Result,
			})
			payload, err := json.Marshal(result)
			if err != nil {
				payload = []byte(fmt.Sprintf(`{"tool":%q,"error":"result not serializable"}`, call.Function.Name))
			}
			params.Messages = append(params.Messages, openaisdk.ToolMessage(string(payload), call.ID))
		}
	}

	transition(st, phaseFailed)
	emit(Event{Type: EventError, Error: "tool round limit reached"})
	return contractx.ChatMessage{}, fmt.Errorf("%w: tool round limit reached after %d rounds", contractx.ErrModelInvoke, r.maxRounds)
}

func (r *Runner) runTool(
	ctx context.Context,
	env toolx.Env,
	call openaisdk.ChatCompletionMessageToolCall,
	emit func(Event),
) contractx.ToolResult {
	name := call.Function.Name
	emit(Event{
		Type:      EventToolCall,
		Tool:      name,
		CallID:    call.ID,
		Arguments: json.RawMessage(call.Function.Arguments),
	})

	args := map[string]any{}
	if trimmed := strings.TrimSpace(call.Function.Arguments); trimmed != "" {
		if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
			violation := fmt.Errorf("%w: tool %s arguments are not valid JSON", contractx.ErrSchemaViolation, name)
			log.Warn().Err(err).Str("tool", name).Msg("model emitted malformed tool arguments")
			result := contractx.ToolResult{Tool: name, Error: violation.Error()}
			emit(Event{Type: EventToolResult, Tool: name, CallID: call.ID, Error: result.Error})
			return result
		}
	}

	result, err := r.execute(ctx, env, name, args)
	if err != nil {
		// executors degrade failures into the result; a Go error here is a
		// programming fault, not a tool-level failure
		log.Error().Err(err).Str("tool", name).Msg("tool executor fault")
		result = contractx.ToolResult{Tool: name, Error: err.Error()}
	}
	emit(Event{
		Type:   EventToolResult,
		Tool:   name,
		CallID: call.ID,
		Result: result.Result,
		Error:  result.Error,
	})
	return result
}

func windowed(messages []contractx.ChatMessage, window int) []contractx.ChatMessage {
	if len(messages) <= window {
		return messages
	}
	return messages[len(messages)-window:]
}

func toModelMessages(messages []contractx.ChatMessage) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case contractx.RoleUser:
			out = append(out, openaisdk.UserMessage(msg.Content))
		case contractx.RoleAssistant:
			out = append(out, openaisdk.AssistantMessage(msg.Content))
		case contractx.RoleSystem:
			out = append(out, openaisdk.SystemMessage(msg.Content))
		}
	}
	return out
}

func transition(from, to phase) phase {
	if from != to {
		log.Debug().Str("from", string(from)).Str("to", string(to)).Msg("turn state")
	}
	return to
}
