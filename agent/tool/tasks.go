package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	contractx "github.com/plancanvas/plancanvas/agent/contract"
)

type TaskListResult struct {
	Success bool             `json:"success"`
	Tasks   []contractx.Task `json:"tasks"`
	Failed  int              `json:"failed,omitempty"`
}

// executeUpdateTaskList fans the drafts out as independent concurrent
// creates. A failing create is logged and excluded; it never aborts the
// others. Survivors replace the session's cached task list wholesale, so
// the cache only ever reflects what actually round-tripped.
func executeUpdateTaskList(ctx context.Context, env Env, args map[string]any) (contractx.ToolResult, error) {
	drafts, err := decodeTaskDrafts(args)
	if err != nil {
		return contractx.ToolResult{
			Tool:  ToolUpdateTaskList,
			Error: err.Error(),
		}, nil
	}
	if env.Tasks == nil {
		return contractx.ToolResult{
			Tool:  ToolUpdateTaskList,
			Error: "task service is not available",
		}, nil
	}

	created := make([]*contractx.Task, len(drafts))
	var wg sync.WaitGroup
	for i, draft := range drafts {
		wg.Add(1)
		go func(i int, draft contractx.TaskDraft) {
			defer wg.Done()
			task, err := env.Tasks.CreateTask(ctx, draft)
			if err != nil {
				log.Error().Err(err).Str("title", draft.Title).Msg("failed to create task")
				return
			}
			created[i] = &task
		}(i, draft)
	}
	wg.Wait()

	survivors := make([]contractx.Task, 0, len(created))
	for _, task := range created {
		if task != nil {
			survivors = append(survivors, *task)
		}
	}

	env.State.SetTasks(survivors)
	return contractx.ToolResult{
		Tool: ToolUpdateTaskList,
		Result: TaskListResult{
			Success: true,
			Tasks:   survivors,
			Failed:  len(drafts) - len(survivors),
		},
	}, nil
}

func decodeTaskDrafts(args map[string]any) ([]contractx.TaskDraft, error) {
	rawTasks, ok := args["tasks"]
	if !ok {
		return nil, fmt.Errorf("%w: tasks is required", contractx.ErrValidation)
	}
	raw, err := json.Marshal(rawTasks)
	if err != nil {
		return nil, fmt.Errorf("%w: encode task drafts: %v", contractx.ErrValidation, err)
	}

	var drafts []contractx.TaskDraft
	if err := json.Unmarshal(raw, &drafts); err != nil {
		return nil, fmt.Errorf("%w: task drafts are malformed: %v", contractx.ErrValidation, err)
	}

	for i, draft := range drafts {
		if draft.Title == "" {
			return nil, fmt.Errorf("%w: task %d needs a title", contractx.ErrValidation, i)
		}
		if !draft.Status.Valid() {
			return nil, fmt.Errorf("%w: task %d has invalid status %q", contractx.ErrValidation, i, draft.Status)
		}
		if draft.Priority != "" && !draft.Priority.Valid() {
			return nil, fmt.Errorf("%w: task %d has invalid priority %q", contractx.ErrValidation, i, draft.Priority)
		}
	}
	return drafts, nil
}
