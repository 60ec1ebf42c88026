package contract

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is one entry of the conversation transcript. Messages are
// append-only; streaming patches content in place until the turn finishes.
type ChatMessage struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
}

type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Result    any             `json:"result,omitempty"`
}

// ToolResult is the structured outcome of a tool invocation. Error carries a
// validation failure message; executors never surface tool-level failures as
// Go errors, so the model can narrate them to the user.
type ToolResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// EventPlan is the structured plan produced by the createEventPlan tool.
// The current plan is always replaced wholesale, never merged field by field.
type EventPlan struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Date        string       `json:"date"`
	Location    PlanLocation `json:"location"`
	Capacity    *int         `json:"capacity,omitempty"`
	Agenda      []AgendaItem `json:"agenda"`
	Attendees   []string     `json:"attendees,omitempty"`
	Budget      *Budget      `json:"budget,omitempty"`
}

type PlanLocation struct {
	Name        string       `json:"name"`
	Address     string       `json:"address"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

type AgendaItem struct {
	Time     string `json:"time"`
	Activity string `json:"activity"`
}

type Budget struct {
	Total     *float64           `json:"total,omitempty"`
	Breakdown map[string]float64 `json:"breakdown,omitempty"`
}

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskCompleted:
		return true
	}
	return false
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task mirrors a record in the task service. The list held by the session is
// a cache; the task service stays authoritative.
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      TaskStatus   `json:"status"`
	Assignee    string       `json:"assignee,omitempty"`
	DueDate     string       `json:"dueDate,omitempty"`
	Priority    TaskPriority `json:"priority,omitempty"`
}

// TaskDraft is the id-less shape accepted by CreateTask.
type TaskDraft struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      TaskStatus   `json:"status"`
	Assignee    string       `json:"assignee,omitempty"`
	DueDate     string       `json:"dueDate,omitempty"`
	Priority    TaskPriority `json:"priority,omitempty"`
}

// TaskPatch applies partial updates; nil fields are left untouched.
type TaskPatch struct {
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Status      *TaskStatus   `json:"status,omitempty"`
	Assignee    *string       `json:"assignee,omitempty"`
	DueDate     *string       `json:"dueDate,omitempty"`
	Priority    *TaskPriority `json:"priority,omitempty"`
}

// DocUpdate is one entry of the append-only document update log. The most
// recent entry per document is its current rendered content.
type DocUpdate struct {
	DocID     string    `json:"docId"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type GeocodeResult struct {
	Region           string      `json:"region"`
	Coordinates      Coordinates `json:"coordinates"`
	FormattedAddress string      `json:"formattedAddress"`
}
