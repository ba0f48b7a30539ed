package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/mealbook/internal/clock"
)

// Schedule yields the next run time strictly after now.
type Schedule interface {
	Next(now time.Time) time.Time
}

// Every runs at a fixed interval.
type Every time.Duration

func (e Every) Next(now time.Time) time.Time { return now.Add(time.Duration(e)) }

// DailyAt runs once a day at the given wall-clock time, in now's zone.
type DailyAt struct {
	Hour   int
	Minute int
}

func (d DailyAt) Next(now time.Time) time.Time {
	y, m, day := now.Date()
	next := time.Date(y, m, day, d.Hour, d.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(y, m, day+1, d.Hour, d.Minute, 0, 0, now.Location())
	}
	return next
}

type Job struct {
	Name       string
	Schedule   Schedule
	RunAtStart bool
	Run        func(ctx context.Context) error
}

// Scheduler drives each job on its own goroutine and timer. A failing or
// panicking run is logged and the job keeps its schedule. Runs of the same
// job never overlap, whether triggered by the timer or by Trigger.
type Scheduler struct {
	Jobs  []Job
	Clock clock.Clock
	Log   *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	wg    sync.WaitGroup
}

func (s *Scheduler) Run(ctx context.Context) error {
	for _, j := range s.Jobs {
		j := j
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop(ctx, j)
		}()
	}
	<-ctx.Done()
	s.wg.Wait()
	return ctx.Err()
}

func (s *Scheduler) loop(ctx context.Context, j Job) {
	if j.RunAtStart {
		s.runJob(ctx, j)
	}
	for {
		now := s.Clock.Now()
		next := j.Schedule.Next(now)
		t := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
			s.runJob(ctx, j)
		}
	}
}

// Trigger runs the named job once, now, and returns its error.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	for _, j := range s.Jobs {
		if j.Name == name {
			return s.runJob(ctx, j)
		}
	}
	return fmt.Errorf("scheduler: unknown job %q", name)
}

// Names lists the registered jobs in registration order.
func (s *Scheduler) Names() []string {
	out := make([]string, 0, len(s.Jobs))
	for _, j := range s.Jobs {
		out = append(out, j.Name)
	}
	return out
}

func (s *Scheduler) runJob(ctx context.Context, j Job) (err error) {
	l := s.lock(j.Name)
	l.Lock()
	defer l.Unlock()

	log := s.log().With(zap.String("job", j.Name))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler: job %s panicked: %v", j.Name, r)
			log.Error("job panicked", zap.Any("panic", r))
			return
		}
		if err != nil {
			log.Error("job finished with errors", zap.Duration("took", time.Since(start)), zap.Error(err))
			return
		}
		log.Debug("job finished", zap.Duration("took", time.Since(start)))
	}()
	return j.Run(ctx)
}

func (s *Scheduler) lock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks == nil {
		s.locks = map[string]*sync.Mutex{}
	}
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

func (s *Scheduler) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
