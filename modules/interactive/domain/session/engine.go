package session

import (
	"context"
	"sync"
	"time"
)

// Engine is the one-goroutine-per-Session owning task of spec.md §5,
// grounded on the teacher's Start(ctx) worker-loop shape
// (modules/bichat/services/title_job_worker.go). It drives Session.Tick
// once per second until the Session ends, the caller's context is
// cancelled, or Stop is called.
type Engine struct {
	session *Session
	clock   Clock

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewEngine(s *Session, clock Clock) *Engine {
	return &Engine{
		session: s,
		clock:   clock,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

func (e *Engine) Session() *Session { return e.session }

// Run blocks until the Session ends or is stopped. onTick is invoked
// synchronously after every Tick, with the mutex already released; the
// caller is responsible for performing storage writes and broadcasts
// off of this Session's mutex, per spec.md §5.
func (e *Engine) Run(ctx context.Context, onTick func(TickEvent)) {
	defer close(e.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-e.clock.After(time.Second):
			ev := e.session.Tick()
			if onTick != nil {
				onTick(ev)
			}
			if ev.Ended {
				return
			}
		}
	}
}

// Stop cancels the Engine's tick loop. Idempotent.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

// Done reports when Run has returned, for callers that need to wait
// out a Stop before reclaiming resources.
func (e *Engine) Done() <-chan struct{} {
	return e.doneCh
}
