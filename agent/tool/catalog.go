package tool

import (
	"context"
	"fmt"
	"time"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/plancanvas/plancanvas/agent/contract"
	statex "github.com/plancanvas/plancanvas/agent/state"
)

const (
	ToolCreateEventPlan   = "createEventPlan"
	ToolUpdateTaskList    = "updateTaskList"
	ToolUpdateGoogleDoc   = "updateGoogleDoc"
	ToolUpdateGoogleSheet = "updateGoogleSheet"
)

// Env is the request-scoped execution environment threaded into every tool
// invocation: the session state, the adapters resolved for the caller's
// credential, and the clock. Tools read nothing ambient.
type Env struct {
	State     *statex.Planning
	Workspace contractx.WorkspaceAPI
	Tasks     contractx.TaskAPI
	Now       func() time.Time
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

type Executor func(ctx context.Context, env Env, tool string, args map[string]any) (contractx.ToolResult, error)

// NewExecutor returns the dispatch over the fixed tool catalog. Parameter
// validation happens inside each tool before any side effect; validation
// failures ride back in ToolResult.Error.
func NewExecutor() Executor {
	return func(ctx context.Context, env Env, tool string, args map[string]any) (contractx.ToolResult, error) {
		switch tool {
		case ToolCreateEventPlan:
			return executeCreateEventPlan(env, args)
		case ToolUpdateTaskList:
			return executeUpdateTaskList(ctx, env, args)
		case ToolUpdateGoogleDoc:
			return executeUpdateGoogleDoc(ctx, env, args)
		case ToolUpdateGoogleSheet:
			return executeUpdateGoogleSheet(ctx, env, args)
		default:
			return contractx.ToolResult{
				Tool:  tool,
				Error: fmt.Sprintf("tool=%s is not available", tool),
			}, nil
		}
	}
}

// Declarations returns the tool definitions advertised to the model.
func Declarations() []openaisdk.ChatCompletionToolParam {
	return []openaisdk.ChatCompletionToolParam{
		{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        ToolCreateEventPlan,
				Description: openaisdk.String("Create a structured event plan with all details"),
				Parameters:  eventPlanSchema(),
			},
		},
		{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        ToolUpdateTaskList,
				Description: openaisdk.String("Update the task list in ClickUp"),
				Parameters:  taskListSchema(),
			},
		},
		{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        ToolUpdateGoogleDoc,
				Description: openaisdk.String("Update a Google Doc with new content"),
				Parameters: openaisdk.FunctionParameters{
					"type": "object",
					"properties": map[string]any{
						"docId":   map[string]any{"type": "string"},
						"content": map[string]any{"type": "string"},
						"title":   map[string]any{"type": "string"},
					},
					"required": []string{"docId", "content"},
				},
			},
		},
		{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        ToolUpdateGoogleSheet,
				Description: openaisdk.String("Update a Google Sheet with new data"),
				Parameters: openaisdk.FunctionParameters{
					"type": "object",
					"properties": map[string]any{
						"spreadsheetId": map[string]any{"type": "string"},
						"range":         map[string]any{"type": "string"},
						"values": map[string]any{
							"type":  "array",
							"items": map[string]any{"type": "array", "items": map[string]any{}},
						},
					},
					"required": []string{"spreadsheetId", "range", "values"},
				},
			},
		},
	}
}

func eventPlanSchema() openaisdk.FunctionParameters {
	return openaisdk.FunctionParameters{
		"type": "object",
		"properties": map[string]any{
			"title":       map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"date":        map[string]any{"type": "string"},
			"location": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":    map[string]any{"type": "string"},
					"address": map[string]any{"type": "string"},
					"coordinates": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"lat": map[string]any{"type": "number"},
							"lng": map[string]any{"type": "number"},
						},
						"required": []string{"lat", "lng"},
					},
				},
				"required": []string{"name", "address"},
			},
			"capacity": map[string]any{"type": "number"},
			"agenda": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"time":     map[string]any{"type": "string"},
						"activity": map[string]any{"type": "string"},
					},
					"required": []string{"time", "activity"},
				},
			},
			"attendees": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"budget": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"total": map[string]any{"type": "number"},
					"breakdown": map[string]any{
						"type":                 "object",
						"additionalProperties": map[string]any{"type": "number"},
					},
				},
			},
		},
		"required": []string{"title", "description", "date", "location", "agenda"},
	}
}

func taskListSchema() openaisdk.FunctionParameters {
	return openaisdk.FunctionParameters{
		"type": "object",
		"properties": map[string]any{
			"tasks": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":       map[string]any{"type": "string"},
						"description": map[string]any{"type": "string"},
						"status":      map[string]any{"type": "string", "enum": []string{"todo", "in_progress", "completed"}},
						"priority":    map[string]any{"type": "string", "enum": []string{"low", "medium", "high"}},
						"assignee":    map[string]any{"type": "string"},
						"dueDate":     map[string]any{"type": "string"},
					},
					"required": []string{"title", "status"},
				},
			},
		},
		"required": []string{"tasks"},
	}
}
