package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	contractx "github.com/plancanvas/plancanvas/agent/contract"
	statex "github.com/plancanvas/plancanvas/agent/state"
)

func testEnv(workspace contractx.WorkspaceAPI, tasks contractx.TaskAPI) Env {
	return Env{
		State:     statex.NewPlanning("test", time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)),
		Workspace: workspace,
		Tasks:     tasks,
		Now:       func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
}

// fakeTasks fails CreateTask for any draft whose title appears in failTitles.
// Failure is keyed by title, not call order, because creates run concurrently.
type fakeTasks struct {
	mu         sync.Mutex
	nextID     int
	failTitles map[string]bool
	created    []contractx.Task
}

func newFakeTasks(failTitles ...string) *fakeTasks {
	fail := make(map[string]bool, len(failTitles))
	for _, title := range failTitles {
		fail[title] = true
	}
	return &fakeTasks{nextID: 1, failTitles: fail}
}

func (f *fakeTasks) ListTasks(context.Context) ([]contractx.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]contractx.Task, len(f.created))
	copy(out, f.created)
	return out, nil
}

func (f *fakeTasks) CreateTask(_ context.Context, draft contractx.TaskDraft) (contractx.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTitles[draft.Title] {
		return contractx.Task{}, errors.New("task service rejected the create")
	}
	task := contractx.Task{
		ID:          strconv.Itoa(f.nextID),
		Title:       draft.Title,
		Description: draft.Description,
		Status:      draft.Status,
		Priority:    draft.Priority,
		Assignee:    draft.Assignee,
		DueDate:     draft.DueDate,
	}
	f.nextID++
	f.created = append(f.created, task)
	return task, nil
}

func (f *fakeTasks) UpdateTask(_ context.Context, id string, _ contractx.TaskPatch) (contractx.Task, error) {
	return contractx.Task{}, contractx.ErrNotFound
}

func (f *fakeTasks) DeleteTask(context.Context, string) error { return nil }

// fakeWorkspace records writes and optionally fails them.
type fakeWorkspace struct {
	mu          sync.Mutex
	failDocs    bool
	failSheets  bool
	docWrites   []string
	sheetWrites []string
}

func (f *fakeWorkspace) ReadDoc(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (f *fakeWorkspace) UpdateDoc(_ context.Context, docID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDocs {
		return errors.New("google docs api returned 500")
	}
	f.docWrites = append(f.docWrites, docID)
	return nil
}

func (f *fakeWorkspace) ReadSheet(context.Context, string, string) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (f *fakeWorkspace) UpdateSheet(_ context.Context, spreadsheetID, _ string, _ [][]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSheets {
		return errors.New("google sheets api returned 500")
	}
	f.sheetWrites = append(f.sheetWrites, spreadsheetID)
	return nil
}

func (f *fakeWorkspace) ListFiles(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func (f *fakeWorkspace) FileMetadata(context.Context, string) (map[string]any, error) {
	return map[string]any{}, nil
}

func (f *fakeWorkspace) ReadFile(context.Context, string) (map[string]any, error) {
	return map[string]any{}, nil
}

func validPlanArgs() map[string]any {
	return map[string]any{
		"title":       "Team Offsite",
		"description": "Two-day strategy offsite",
		"date":        "2026-10-01",
		"location": map[string]any{
			"name":    "The Loft",
			"address": "1 Main St, Springfield",
		},
		"agenda": []any{
			map[string]any{"time": "10:00", "activity": "Kickoff"},
			map[string]any{"time": "12:00", "activity": "Lunch"},
		},
	}
}
