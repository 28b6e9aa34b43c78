// Package sched implements a priority-queued worker pool used to run
// background job handlers (internal/handlers) outside the connection
// pipeline's own executor: a job submitted through internal/jobs runs on
// one of these dedicated goroutines rather than occupying a reactor
// worker, so a slow CPU-bound job never starves I/O readiness polling.
package sched

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"reactorhttp/internal/httpresp"
)

// TaskFunc executes the work bound to a pool name.
type TaskFunc func(ctx context.Context, params map[string]string) *httpresp.Response

type work struct {
	id       string
	ctx      context.Context
	params   map[string]string
	enqueued time.Time
	done     chan *httpresp.Response
}

// stat accumulates mean/stddev with Welford's algorithm.
type stat struct {
	mu   sync.Mutex
	n    int64
	mean float64
	m2   float64
}

func (s *stat) add(x float64) {
	s.mu.Lock()
	s.n++
	delta := x - s.mean
	s.mean += delta / float64(s.n)
	delta2 := x - s.mean
	s.m2 += delta * delta2
	s.mu.Unlock()
}

func (s *stat) snapshot() (count int64, mean, std float64) {
	s.mu.Lock()
	count = s.n
	mean = s.mean
	if s.n > 1 {
		if variance := s.m2 / float64(s.n-1); variance > 0 {
			std = math.Sqrt(variance)
		}
	}
	s.mu.Unlock()
	return
}

// Pool runs TaskFunc on a fixed worker count, fed by three priority
// queues (high, normal, low) split 1:2:1 by capacity.
type Pool struct {
	name string
	fn   TaskFunc

	qHigh chan work
	qNorm chan work
	qLow  chan work

	total int
	busy  int64

	mu     sync.Mutex
	start  sync.Once
	closed bool

	submitted uint64
	completed uint64
	rejected  uint64
	waitStat  stat
	runStat   stat
}

// NewPool creates a pool with workers goroutines and about capacity total
// queue slots, split 1:2:1 across high/normal/low priority. Each queue
// gets at least one slot, so a small capacity rounds up (capacity 1
// yields three slots, one per priority).
func NewPool(name string, fn TaskFunc, workers, capacity int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if capacity <= 0 {
		capacity = 1
	}
	ch := imax(1, capacity/4)
	cn := imax(1, capacity/2)
	cl := imax(1, capacity-ch-cn)
	return &Pool{
		name:  name,
		fn:    fn,
		qHigh: make(chan work, ch),
		qNorm: make(chan work, cn),
		qLow:  make(chan work, cl),
		total: workers,
	}
}

func imax(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Close stops accepting further work; in-flight work finishes normally.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		close(p.qHigh)
		close(p.qNorm)
		close(p.qLow)
		p.closed = true
	}
	p.mu.Unlock()
}

// SubmitAndWaitCtx enqueues by priority (params["prio"]) and waits for a
// result, a submit-side timeout (backpressure), or ctx cancellation.
func (p *Pool) SubmitAndWaitCtx(ctx context.Context, id string, params map[string]string, timeout time.Duration) (*httpresp.Response, bool) {
	if p.closed {
		r, _ := httpresp.Unavailable().PlainText("pool closed").Build()
		return r, true
	}

	w := work{
		id:       id,
		ctx:      ctx,
		params:   params,
		enqueued: time.Now(),
		done:     make(chan *httpresp.Response, 1),
	}

	var ch chan work
	switch params["prio"] {
	case "high":
		ch = p.qHigh
	case "low":
		ch = p.qLow
	default:
		ch = p.qNorm
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- w:
		atomic.AddUint64(&p.submitted, 1)
	case <-timer.C:
		atomic.AddUint64(&p.rejected, 1)
		r, _ := httpresp.Unavailable().JSON([]byte(`{"retry_after_ms":100}`)).Build()
		return r, false
	case <-ctx.Done():
		r, _ := httpresp.Unavailable().PlainText("job canceled").Build()
		return r, true
	}

	timer.Reset(timeout)
	select {
	case r := <-w.done:
		return r, true
	case <-timer.C:
		r, _ := httpresp.Unavailable().PlainText("execution timed out").Build()
		return r, true
	case <-ctx.Done():
		r, _ := httpresp.Unavailable().PlainText("job canceled").Build()
		return r, true
	}
}

// SubmitAndWait is the synchronous-route helper (no external cancel).
func (p *Pool) SubmitAndWait(params map[string]string, timeout time.Duration) (*httpresp.Response, bool) {
	return p.SubmitAndWaitCtx(context.Background(), "", params, timeout)
}

// Start launches the pool's workers; safe to call more than once.
func (p *Pool) Start() {
	p.start.Do(func() {
		for i := 0; i < p.total; i++ {
			workerID := i
			go func() {
				workerTag := p.name + "#" + strconv.Itoa(workerID)
				for {
					var (
						w  work
						ok bool
					)

					select {
					case w, ok = <-p.qHigh:
						if !ok {
							w = work{}
						}
					default:
						select {
						case w, ok = <-p.qNorm:
							if !ok {
								w = work{}
							}
						default:
							select {
							case w, ok = <-p.qHigh:
								if !ok {
									w = work{}
								}
							case w, ok = <-p.qNorm:
								if !ok {
									w = work{}
								}
							case w, ok = <-p.qLow:
								if !ok {
									w = work{}
								}
							}
						}
					}

					if (w.params == nil && w.done == nil) && p.closed {
						return
					}
					if w.done == nil {
						continue
					}

					select {
					case <-w.ctx.Done():
						r, _ := httpresp.Unavailable().PlainText("job canceled before run").Build()
						w.done <- r
						close(w.done)
						continue
					default:
					}

					atomic.AddInt64(&p.busy, 1)
					wait := time.Since(w.enqueued)
					start := time.Now()

					res := p.fn(w.ctx, w.params)

					run := time.Since(start)
					atomic.AddInt64(&p.busy, -1)
					atomic.AddUint64(&p.completed, 1)

					p.waitStat.add(float64(wait) / 1e6)
					p.runStat.add(float64(run) / 1e6)

					res.Headers.Set("X-Worker-Id", workerTag)

					w.done <- res
					close(w.done)
				}
			}()
		}
	})
}

func (p *Pool) metrics() map[string]any {
	sub := atomic.LoadUint64(&p.submitted)
	comp := atomic.LoadUint64(&p.completed)
	rej := atomic.LoadUint64(&p.rejected)
	busy := atomic.LoadInt64(&p.busy)

	_, meanWait, stdWait := p.waitStat.snapshot()
	_, meanRun, stdRun := p.runStat.snapshot()

	qlen := len(p.qHigh) + len(p.qNorm) + len(p.qLow)
	qcap := cap(p.qHigh) + cap(p.qNorm) + cap(p.qLow)

	return map[string]any{
		"queue_len": qlen,
		"queue_cap": qcap,
		"priority_queues": map[string]any{
			"high": map[string]int{"len": len(p.qHigh), "cap": cap(p.qHigh)},
			"norm": map[string]int{"len": len(p.qNorm), "cap": cap(p.qNorm)},
			"low":  map[string]int{"len": len(p.qLow), "cap": cap(p.qLow)},
		},
		"workers": map[string]any{
			"total": p.total,
			"busy":  busy,
			"idle":  p.total - int(busy),
		},
		"submitted": sub,
		"completed": comp,
		"rejected":  rej,
		"latency_ms": map[string]any{
			"wait": map[string]float64{"avg": meanWait, "std": stdWait},
			"run":  map[string]float64{"avg": meanRun, "std": stdRun},
		},
	}
}

// Manager is a registry of named pools.
type Manager struct {
	mu    sync.RWMutex
	pools map[string]*Pool
}

func NewManager() *Manager {
	return &Manager{pools: make(map[string]*Pool)}
}

func (m *Manager) Register(name string, p *Pool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pools[name]; ok {
		return errors.New("pool already exists")
	}
	m.pools[name] = p
	p.Start()
	return nil
}

func (m *Manager) Pool(name string) (*Pool, bool) {
	m.mu.RLock()
	p, ok := m.pools[name]
	m.mu.RUnlock()
	return p, ok
}

func (m *Manager) MetricsJSON() string {
	m.mu.RLock()
	out := make(map[string]any, len(m.pools))
	for name, p := range m.pools {
		out[name] = p.metrics()
	}
	m.mu.RUnlock()
	b, _ := json.Marshal(out)
	return string(b)
}
