// Package jobs tracks background work submitted to a sched.Pool
// asynchronously: Submit returns immediately with a job ID, and callers
// poll SnapshotJSON/ResultJSON for progress, independent of the
// connection that submitted it.
package jobs

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"reactorhttp/internal/sched"
	"reactorhttp/internal/util"
)

type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
	StatusTimeout Status = "timeout"
)

// ErrNotReady is returned by ResultJSON for a job that hasn't finished.
var ErrNotReady = errors.New("jobs: not finished yet")

type Job struct {
	ID         string            `json:"id"`
	Task       string            `json:"task"`
	Params     map[string]string `json:"params,omitempty"`
	Status     Status            `json:"status"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	EndedAt    *time.Time        `json:"ended_at,omitempty"`
	ResultCode int               `json:"result_code,omitempty"`
	ResultBody string            `json:"result_body,omitempty"`
}

// Manager is an in-memory registry of jobs, each run on the sched.Manager
// pool matching its task name, with periodic GC of finished jobs older
// than ttl.
type Manager struct {
	sched *sched.Manager

	mu   sync.RWMutex
	jobs map[string]*Job

	ttl   time.Duration
	stopC chan struct{}
}

func NewManager(s *sched.Manager, ttl time.Duration) *Manager {
	m := &Manager{
		sched: s,
		jobs:  make(map[string]*Job),
		ttl:   ttl,
		stopC: make(chan struct{}),
	}
	go m.gcLoop()
	return m
}

func (m *Manager) Close() { close(m.stopC) }

func (m *Manager) gcLoop() {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			m.cleanup()
		case <-m.stopC:
			return
		}
	}
}

func (m *Manager) cleanup() {
	cut := time.Now().Add(-m.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, j := range m.jobs {
		if (j.Status == StatusDone || j.Status == StatusFailed || j.Status == StatusTimeout) &&
			j.EndedAt != nil && j.EndedAt.Before(cut) {
			delete(m.jobs, id)
		}
	}
}

// Submit creates a job and runs it in the background, returning its ID.
// Returns "" if task names no registered pool.
func (m *Manager) Submit(task string, params map[string]string, execTimeout time.Duration) string {
	if _, ok := m.sched.Pool(task); !ok {
		return ""
	}

	id := util.NewReqID()
	now := time.Now()
	job := &Job{ID: id, Task: task, Params: params, Status: StatusQueued, EnqueuedAt: now}

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	go func() {
		p, _ := m.sched.Pool(task)

		start := time.Now()
		m.mu.Lock()
		job.StartedAt = &start
		job.Status = StatusRunning
		m.mu.Unlock()

		res, enqueued := p.SubmitAndWait(params, execTimeout)
		end := time.Now()

		m.mu.Lock()
		defer m.mu.Unlock()
		job.EndedAt = &end
		if !enqueued {
			job.Status = StatusFailed
			return
		}
		job.ResultCode = res.Code
		job.ResultBody = string(res.Body)

		switch {
		case res.Code == 503 && bytes.Contains(res.Body, []byte("timed out")):
			job.Status = StatusTimeout
		case res.Code >= 200 && res.Code < 300:
			job.Status = StatusDone
		default:
			job.Status = StatusFailed
		}
	}()

	return id
}

// SnapshotJSON returns a JSON-encoded copy of the job's current state.
func (m *Manager) SnapshotJSON(id string) (string, bool) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return "", false
	}
	cp := *j
	b, _ := json.Marshal(cp)
	return string(b), true
}

// ResultJSON returns the job's result body once finished; ErrNotReady if
// it is still queued or running.
func (m *Manager) ResultJSON(id string) (string, bool, error) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if j.Status == StatusQueued || j.Status == StatusRunning {
		return "", true, ErrNotReady
	}
	return j.ResultBody, true, nil
}

// Cancel marks a job's recorded status, best-effort: in-flight work on
// the sched.Pool is not preemptible, so this only prevents a caller from
// waiting on a job that has already been abandoned by the API surface.
func (m *Manager) Cancel(id string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return "", false
	}
	if j.Status == StatusQueued || j.Status == StatusRunning {
		j.Status = StatusFailed
		now := time.Now()
		j.EndedAt = &now
	}
	return j.Status, true
}

// ListJSON lists every tracked job's id/task/status.
func (m *Manager) ListJSON() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	type lite struct {
		ID     string `json:"id"`
		Task   string `json:"task"`
		Status Status `json:"status"`
	}
	out := make([]lite, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, lite{ID: j.ID, Task: j.Task, Status: j.Status})
	}
	b, _ := json.Marshal(out)
	return string(b)
}
