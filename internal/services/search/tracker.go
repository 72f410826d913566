package search

import (
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/rateprobe/internal/models"
)

// Tracker keeps the task states of live sessions in memory
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*models.SearchTask
	now      func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		sessions: make(map[string]map[string]*models.SearchTask),
		now:      time.Now,
	}
}

// Start registers pending tasks for a session. A session with no vendors is still tracked.
func (t *Tracker) Start(sessionID string, vendors []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tasks := make(map[string]*models.SearchTask, len(vendors))
	now := t.now()
	for _, v := range vendors {
		tasks[v] = &models.SearchTask{
			SessionID: sessionID,
			Vendor:    v,
			State:     models.TaskPending,
			StartedAt: now,
		}
	}
	t.sessions[sessionID] = tasks
}

// SetState moves a task to state. Terminal tasks and dropped sessions are left alone.
func (t *Tracker) SetState(sessionID, vendor string, state models.TaskState) {
	t.update(sessionID, vendor, func(task *models.SearchTask) {
		task.State = state
	})
}

// SetURL records the last URL a task was seen on
func (t *Tracker) SetURL(sessionID, vendor, url string) {
	if url == "" {
		return
	}
	t.update(sessionID, vendor, func(task *models.SearchTask) {
		task.LastURL = url
	})
}

// Finish records the terminal outcome of a task
func (t *Tracker) Finish(sessionID, vendor string, state models.TaskState, match *models.Candidate, errMsg, url string) {
	t.update(sessionID, vendor, func(task *models.SearchTask) {
		finished := t.now()
		task.State = state
		task.Match = match
		task.Error = errMsg
		if url != "" {
			task.LastURL = url
		}
		task.FinishedAt = &finished
	})
}

func (t *Tracker) update(sessionID, vendor string, fn func(*models.SearchTask)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.sessions[sessionID][vendor]
	if !ok || task.State.Terminal() {
		return
	}
	fn(task)
}

// Tasks returns a copy of the session's tasks ordered by vendor
func (t *Tracker) Tasks(sessionID string) ([]models.SearchTask, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tasks, ok := t.sessions[sessionID]
	if !ok {
		return nil, false
	}
	out := make([]models.SearchTask, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, *task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Vendor < out[j].Vendor })
	return out, true
}

// Drop forgets a closed session
func (t *Tracker) Drop(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionID)
}
