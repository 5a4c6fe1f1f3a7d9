package trigger

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// InProcess is a Service implementation for hosts that do allow
// goroutines/timers: the recurring trigger is a self-rescheduling
// time.AfterFunc computed from a cron.Schedule (grounded on
// scheduler.Scheduler's ticker-driven dispatchLoop and
// SchedulerManager's time.AfterFunc-based shutdown timer), and one-off
// triggers are plain time.AfterFunc calls.
type InProcess struct {
	mu        sync.Mutex
	installed map[Handle]*entry
	nextID    int
}

type entry struct {
	kind   Kind
	timer  *time.Timer
	stop   chan struct{}
}

// NewInProcess constructs an empty trigger service.
func NewInProcess() *InProcess {
	return &InProcess{installed: make(map[Handle]*entry)}
}

func (s *InProcess) List() ([]Installed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Installed, 0, len(s.installed))
	for h, e := range s.installed {
		out = append(out, Installed{Handle: h, Kind: e.kind})
	}
	return out, nil
}

func (s *InProcess) CreateRecurring(everyHours int, handler func()) (Handle, error) {
	if everyHours <= 0 {
		everyHours = 1
	}
	sched, err := cron.ParseStandard(fmt.Sprintf("0 */%d * * *", everyHours))
	if err != nil {
		return "", fmt.Errorf("parse recurring schedule: %w", err)
	}

	s.mu.Lock()
	h := s.newHandle(KindRecurring)
	stop := make(chan struct{})
	s.installed[h].stop = stop
	s.mu.Unlock()

	s.scheduleNext(h, sched, handler, stop)
	return h, nil
}

func (s *InProcess) scheduleNext(h Handle, sched cron.Schedule, handler func(), stop chan struct{}) {
	delay := time.Until(sched.Next(time.Now()))
	if delay < 0 {
		delay = 0
	}
	timer := time.AfterFunc(delay, func() {
		select {
		case <-stop:
			return
		default:
		}
		handler()
		s.mu.Lock()
		_, stillInstalled := s.installed[h]
		s.mu.Unlock()
		if stillInstalled {
			s.scheduleNext(h, sched, handler, stop)
		}
	})

	s.mu.Lock()
	if e, ok := s.installed[h]; ok {
		e.timer = timer
	}
	s.mu.Unlock()
}

func (s *InProcess) CreateOneOff(afterDelay time.Duration, handler func()) (Handle, error) {
	s.mu.Lock()
	h := s.newHandle(KindOneOff)
	s.mu.Unlock()

	timer := time.AfterFunc(afterDelay, func() {
		s.mu.Lock()
		_, stillInstalled := s.installed[h]
		if stillInstalled {
			delete(s.installed, h)
		}
		s.mu.Unlock()
		if stillInstalled {
			handler()
		}
	})

	s.mu.Lock()
	if e, ok := s.installed[h]; ok {
		e.timer = timer
	}
	s.mu.Unlock()
	return h, nil
}

func (s *InProcess) Delete(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.installed[h]
	if !ok {
		return nil
	}
	if e.stop != nil {
		close(e.stop)
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(s.installed, h)
	return nil
}

// newHandle must be called with s.mu held.
func (s *InProcess) newHandle(kind Kind) Handle {
	s.nextID++
	h := Handle(fmt.Sprintf("trigger-%d", s.nextID))
	s.installed[h] = &entry{kind: kind}
	return h
}
