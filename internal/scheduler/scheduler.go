// Package scheduler provides the process-wide background job runner.  It
// is constructed once in main, handed to the components that need delayed
// work (reset-code expiry, the reading-reminder sweep) and shut down on
// process exit.  There is no package-level singleton on purpose.
package scheduler

import (
	"log"
	"sync"
	"time"
)

// Scheduler runs named one-shot jobs and periodic jobs on background
// goroutines.  One-shot jobs coalesce by name: scheduling a name that
// already has a pending job replaces the pending timer.  Periodic jobs
// run their function synchronously in the tick loop, so ticks that arrive
// while a run is still executing are dropped rather than queued.
type Scheduler struct {
	mu      sync.Mutex
	oneShot map[string]*time.Timer
	stops   map[string]chan struct{}
	wg      sync.WaitGroup
	stopped bool
}

// New returns a ready Scheduler.
func New() *Scheduler {
	return &Scheduler{
		oneShot: make(map[string]*time.Timer),
		stops:   make(map[string]chan struct{}),
	}
}

// After schedules fn to run once after delay.  A pending job with the
// same name is cancelled and replaced.  After a Stop the call is a no-op.
func (s *Scheduler) After(name string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if t, ok := s.oneShot[name]; ok {
		if t.Stop() {
			// The replaced timer never fired, so its wg slot is released here.
			s.wg.Done()
		}
	}
	s.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.mu.Lock()
		// A timer that fired while being replaced must neither run nor
		// clear the replacement's slot.
		if s.stopped || s.oneShot[name] != t {
			s.mu.Unlock()
			return
		}
		delete(s.oneShot, name)
		s.mu.Unlock()
		fn()
	})
	s.oneShot[name] = t
}

// Every runs fn on a fixed interval until Stop.  The first run happens
// one interval after registration.  Registering an existing name stops
// the previous loop first.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if stop, ok := s.stops[name]; ok {
		close(stop)
	}
	stop := make(chan struct{})
	s.stops[name] = stop
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// Stop cancels all pending and periodic jobs and waits for running ones
// to finish.  The scheduler cannot be restarted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for name, t := range s.oneShot {
		if t.Stop() {
			// Timer never fired; its wg slot must be released here.
			s.wg.Done()
		}
		delete(s.oneShot, name)
	}
	for name, stop := range s.stops {
		close(stop)
		delete(s.stops, name)
	}
	s.mu.Unlock()
	s.wg.Wait()
	log.Printf("scheduler: stopped")
}
