//go:build !linux

package reactor

import (
	"sync"
	"time"
)

// pollInterval is the fixed readiness-check cadence used by the portable
// fallback poller. Grounded on other_examples' SeleniaProject-Orizon
// goPoller, simplified to a fixed interval: this reactor's sources are
// already non-blocking file descriptors, so "readiness" here just means
// "try the syscall again soon" rather than true edge-triggered readiness.
const pollInterval = 2 * time.Millisecond

// genericPoller is a portable, reduced-fidelity stand-in for epoll/kqueue:
// it doesn't ask the OS for readiness, it just re-signals every registered
// token on a fixed cadence and lets the caller's non-blocking syscall
// attempt (and possible EAGAIN) decide whether there was real work. This
// keeps the module buildable on non-Linux GOOS at the cost of some wasted
// wakeups under idle load; see DESIGN.md.
type genericPoller struct {
	mu      sync.Mutex
	tokens  map[uint32]struct{}
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	events  chan uint32
}

func newPoller() (poller, error) {
	p := &genericPoller{
		tokens: make(map[uint32]struct{}),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		events: make(chan uint32, maxEpollEvents),
	}
	go p.loop()
	return p, nil
}

func (p *genericPoller) add(fd int, token uint32) error {
	p.mu.Lock()
	p.tokens[token] = struct{}{}
	p.mu.Unlock()
	return nil
}

func (p *genericPoller) remove(fd int, token uint32) error {
	p.mu.Lock()
	delete(p.tokens, token)
	p.mu.Unlock()
	return nil
}

// rearm is a no-op here: the fixed-cadence ticker re-signals every
// registered token regardless of oneshot-style arming, so there is nothing
// to re-enable between one Set call and the next.
func (p *genericPoller) rearm(fd int, token uint32) error {
	return nil
}

func (p *genericPoller) loop() {
	t := time.NewTicker(pollInterval)
	defer t.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-t.C:
			p.mu.Lock()
			toks := make([]uint32, 0, len(p.tokens))
			for tok := range p.tokens {
				toks = append(toks, tok)
			}
			p.mu.Unlock()
			for _, tok := range toks {
				select {
				case p.events <- tok:
				default:
				}
			}
		}
	}
}

func (p *genericPoller) wait() ([]uint32, error) {
	select {
	case tok := <-p.events:
		toks := []uint32{tok}
		draining := true
		for draining {
			select {
			case tok := <-p.events:
				toks = append(toks, tok)
			default:
				draining = false
			}
		}
		return toks, nil
	case <-p.done:
		return nil, nil
	}
}

func (p *genericPoller) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)
	return nil
}

const maxEpollEvents = 256
