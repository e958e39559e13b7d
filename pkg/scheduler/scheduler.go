package scheduler

import (
	"context"
	"sync"
	"time"
)

type Job interface{ Run(ctx context.Context) }

type FuncJob func(ctx context.Context)

func (f FuncJob) Run(ctx context.Context) { f(ctx) }

// Scheduler runs ticker-driven background jobs that all stop with one cancel.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New() *Scheduler {
	return NewWithContext(context.Background())
}

// NewWithContext ties every job to parent as well as to Stop.
func NewWithContext(parent context.Context) *Scheduler {
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{ctx: ctx, cancel: cancel}
}

// Stop cancels all jobs and waits for running cycles to return.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Every runs job on each tick of d, first tick after d.
func (s *Scheduler) Every(d time.Duration, job Job) { s.spawn(func() { s.loopEvery(d, job, false) }) }

// EveryNow runs job once immediately, then on each tick of d.
func (s *Scheduler) EveryNow(d time.Duration, job Job) { s.spawn(func() { s.loopEvery(d, job, true) }) }

func (s *Scheduler) DailyAt(hh, mm int, job Job) { s.spawn(func() { s.loopDaily(hh, mm, job) }) }

func (s *Scheduler) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Scheduler) loopEvery(d time.Duration, job Job, now bool) {
	if now {
		if s.ctx.Err() != nil {
			return
		}
		job.Run(s.ctx)
	}
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			job.Run(s.ctx)
		}
	}
}

func (s *Scheduler) loopDaily(hh, mm int, job Job) {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), hh, mm, 0, 0, now.Location())
		if !next.After(now) {
			next = next.Add(24 * time.Hour)
		}
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			job.Run(s.ctx)
		}
	}
}
