package contract

import (
	"context"
	"encoding/json"
)

// WorkspaceAPI is the content adapter port: document and spreadsheet access
// through the Workspace protocol server, authenticated as one user.
type WorkspaceAPI interface {
	ReadDoc(ctx context.Context, docID string) (json.RawMessage, error)
	UpdateDoc(ctx context.Context, docID, content string) error
	ReadSheet(ctx context.Context, spreadsheetID, sheetRange string) (json.RawMessage, error)
	UpdateSheet(ctx context.Context, spreadsheetID, sheetRange string, values [][]any) error
	ListFiles(ctx context.Context, query string) (json.RawMessage, error)
	FileMetadata(ctx context.Context, fileID string) (map[string]any, error)
	ReadFile(ctx context.Context, fileID string) (map[string]any, error)
}

// TaskAPI is the task service port. Operations are independent: a caller
// issuing N creates must treat each as independently failable.
type TaskAPI interface {
	ListTasks(ctx context.Context) ([]Task, error)
	CreateTask(ctx context.Context, draft TaskDraft) (Task, error)
	UpdateTask(ctx context.Context, id string, patch TaskPatch) (Task, error)
	DeleteTask(ctx context.Context, id string) error
}

type Geocoder interface {
	Geocode(ctx context.Context, region string) (GeocodeResult, error)
}
