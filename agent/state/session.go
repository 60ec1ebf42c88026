package state

import (
	"sync"
	"time"

	contractx "github.com/plancanvas/plancanvas/agent/contract"
)

// Planning is the session-scoped planning state: the single source of truth
// the canvas widgets and the tool executors both read and write. The plan,
// task cache, and doc-update log are independently owned slices; writing one
// never invalidates the others. All mutations are whole-field replacements
// or appends — last writer wins.
type Planning struct {
	mu sync.Mutex

	sessionID  string
	messages   []contractx.ChatMessage
	plan       *contractx.EventPlan
	tasks      []contractx.Task
	docUpdates []contractx.DocUpdate
	nodeData   map[string]any

	recording bool
	playing   bool
	streaming bool

	updatedAt time.Time
}

func NewPlanning(sessionID string, now time.Time) *Planning {
	return &Planning{
		sessionID: sessionID,
		nodeData:  make(map[string]any, 8),
		updatedAt: now.UTC(),
	}
}

func (p *Planning) SessionID() string {
	return p.sessionID
}

/* ------------------------------ message log ------------------------------ */

func (p *Planning) AppendMessage(msg contractx.ChatMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	p.touch()
}

// UpdateMessage patches one message in place by id; used for in-flight
// streaming status updates. Returns false when the id is unknown.
func (p *Planning) UpdateMessage(id string, apply func(*contractx.ChatMessage)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.messages {
		if p.messages[i].ID == id {
			apply(&p.messages[i])
			p.touch()
			return true
		}
	}
	return false
}

func (p *Planning) ClearMessages() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = nil
	p.touch()
}

func (p *Planning) Messages() []contractx.ChatMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]contractx.ChatMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

/* ------------------------------ event plan ------------------------------- */

// SetPlan replaces the current plan wholesale; nil clears it.
func (p *Planning) SetPlan(plan *contractx.EventPlan) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plan = plan
	p.touch()
}

func (p *Planning) Plan() *contractx.EventPlan {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plan
}

/* ------------------------------- task cache ------------------------------ */

func (p *Planning) SetTasks(tasks []contractx.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = make([]contractx.Task, len(tasks))
	copy(p.tasks, tasks)
	p.touch()
}

func (p *Planning) AppendTask(task contractx.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, task)
	p.touch()
}

func (p *Planning) PatchTask(id string, patch contractx.TaskPatch) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.tasks {
		if p.tasks[i].ID == id {
			applyTaskPatch(&p.tasks[i], patch)
			p.touch()
			return true
		}
	}
	return false
}

func (p *Planning) Tasks() []contractx.Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]contractx.Task, len(p.tasks))
	copy(out, p.tasks)
	return out
}

/* ----------------------------- doc update log ---------------------------- */

func (p *Planning) AppendDocUpdate(update contractx.DocUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docUpdates = append(p.docUpdates, update)
	p.touch()
}

func (p *Planning) SetDocUpdates(updates []contractx.DocUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docUpdates = make([]contractx.DocUpdate, len(updates))
	copy(p.docUpdates, updates)
	p.touch()
}

func (p *Planning) DocUpdates() []contractx.DocUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]contractx.DocUpdate, len(p.docUpdates))
	copy(out, p.docUpdates)
	return out
}

/* ----------------------------- node scratch ------------------------------ */

func (p *Planning) SetNodeData(nodeID string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodeData[nodeID] = data
	p.touch()
}

func (p *Planning) NodeData(nodeID string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.nodeData[nodeID]
	return data, ok
}

/* ---------------------------- transient flags ---------------------------- */

func (p *Planning) SetRecording(v bool) { p.setFlag(&p.recording, v) }
func (p *Planning) SetPlaying(v bool)   { p.setFlag(&p.playing, v) }
func (p *Planning) SetStreaming(v bool) { p.setFlag(&p.streaming, v) }

func (p *Planning) Streaming() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streaming
}

func (p *Planning) setFlag(flag *bool, v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	*flag = v
}

/* ------------------------------- snapshots ------------------------------- */

// Export captures the durable slices of the session for persistence.
// Transient flags and node scratch data are deliberately excluded.
func (p *Planning) Export() *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := &Snapshot{
		SessionID: p.sessionID,
		Messages:  make([]contractx.ChatMessage, len(p.messages)),
		Tasks:     make([]contractx.Task, len(p.tasks)),
		Updates:   make([]contractx.DocUpdate, len(p.docUpdates)),
		UpdatedAt: p.updatedAt,
	}
	copy(snap.Messages, p.messages)
	copy(snap.Tasks, p.tasks)
	copy(snap.Updates, p.docUpdates)
	if p.plan != nil {
		plan := *p.plan
		snap.Plan = &plan
	}
	return snap
}

// Restore replaces the durable slices from a snapshot.
func (p *Planning) Restore(snap *Snapshot) {
	if snap == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.messages = make([]contractx.ChatMessage, len(snap.Messages))
	copy(p.messages, snap.Messages)
	p.tasks = make([]contractx.Task, len(snap.Tasks))
	copy(p.tasks, snap.Tasks)
	p.docUpdates = make([]contractx.DocUpdate, len(snap.Updates))
	copy(p.docUpdates, snap.Updates)
	p.plan = nil
	if snap.Plan != nil {
		plan := *snap.Plan
		p.plan = &plan
	}
	p.updatedAt = snap.UpdatedAt
}

func (p *Planning) touch() {
	p.updatedAt = time.Now().UTC()
}

func applyTaskPatch(task *contractx.Task, patch contractx.TaskPatch) {
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
