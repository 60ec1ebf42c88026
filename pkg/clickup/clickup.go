// Package clickup implements the task service port. The current backend is
// an in-memory adapter mirroring the hosted service's contract; swapping in
// a real client only requires satisfying contract.TaskAPI.
package clickup

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	contractx "github.com/plancanvas/plancanvas/agent/contract"
)

// InMemory is a process-local task backend. Every operation is independent:
// there is no batching and no cross-call ordering guarantee.
type InMemory struct {
	mu     sync.Mutex
	tasks  []contractx.Task
	nextID int
}

var _ contractx.TaskAPI = (*InMemory)(nil)

// NewInMemory seeds the adapter with the default planning backlog.
func NewInMemory() *InMemory {
	return &InMemory{
		tasks: []contractx.Task{
			{
				ID:          "1",
				Title:       "Book venue",
				Description: "Find and book event venue",
				Status:      contractx.TaskTodo,
				Priority:    contractx.PriorityHigh,
			},
			{
				ID:          "2",
				Title:       "Send invitations",
				Description: "Create and send event invitations",
				Status:      contractx.TaskTodo,
				Priority:    contractx.PriorityMedium,
			},
		},
		nextID: 3,
	}
}

func (a *InMemory) ListTasks(_ context.Context) ([]contractx.Task, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]contractx.Task, len(a.tasks))
	copy(out, a.tasks)
	return out, nil
}

func (a *InMemory) CreateTask(_ context.Context, draft contractx.TaskDraft) (contractx.Task, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	task := contractx.Task{
		ID:          strconv.Itoa(a.nextID),
		Title:       draft.Title,
		Description: draft.Description,
		Status:      draft.Status,
		Assignee:    draft.Assignee,
		DueDate:     draft.DueDate,
		Priority:    draft.Priority,
	}
	a.nextID++
	a.tasks = append(a.tasks, task)
	return task, nil
}

func (a *InMemory) UpdateTask(_ context.Context, id string, patch contractx.TaskPatch) (contractx.Task, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.tasks {
		if a.tasks[i].ID != id {
			continue
		}
		applyPatch(&a.tasks[i], patch)
		return a.tasks[i], nil
	}
	return contractx.Task{}, fmt.Errorf("%w: task %s", contractx.ErrNotFound, id)
}

func (a *InMemory) DeleteTask(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.tasks[:0]
	for _, t := range a.tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	a.tasks = kept
	return nil
}

func applyPatch(task *contractx.Task, patch contractx.TaskPatch) {
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Assignee != nil {
		task.Assignee = *patch.Assignee
	}
	if patch.DueDate != nil {
		task.DueDate = *patch.DueDate
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
}
