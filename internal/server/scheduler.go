package server

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorhill/cronexpr"

	"github.com/mohammad-safakhou/scout/config"
	"github.com/mohammad-safakhou/scout/internal/research"
)

// Scheduler launches configured recurring research runs on their cron
// schedules. A plan never has two runs in flight at once.
type Scheduler struct {
	exec   *RunExecutor
	logger *log.Logger
	stop   chan struct{}

	mu       sync.Mutex
	entries  []scheduleEntry
	inflight map[string]bool
}

type scheduleEntry struct {
	cfg  config.ScheduleConfig
	expr *cronexpr.Expression
	next time.Time
}

// NewScheduler validates the configured schedules and prepares their next
// fire times.
func NewScheduler(schedules []config.ScheduleConfig, exec *RunExecutor) (*Scheduler, error) {
	s := &Scheduler{
		exec:     exec,
		logger:   log.New(log.Writer(), "[SCHEDULER] ", log.LstdFlags),
		stop:     make(chan struct{}),
		inflight: make(map[string]bool),
	}
	now := time.Now()
	for _, sc := range schedules {
		expr, err := cronexpr.Parse(sc.CronSpec)
		if err != nil {
			return nil, fmt.Errorf("schedule %q: bad cron spec %q: %w", sc.PlanName, sc.CronSpec, err)
		}
		s.entries = append(s.entries, scheduleEntry{cfg: sc, expr: expr, next: expr.Next(now)})
	}
	return s, nil
}

// Start begins the scheduling loop.
func (s *Scheduler) Start() {
	ticker := time.NewTicker(30 * time.Second)
	go func() {
		for {
			select {
			case <-s.stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick(time.Now())
			}
		}
	}()
}

// Stop halts the scheduling loop.
func (s *Scheduler) Stop() {
	close(s.stop)
}

func (s *Scheduler) tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		e := &s.entries[i]
		if now.Before(e.next) {
			continue
		}
		e.next = e.expr.Next(now)
		if s.inflight[e.cfg.PlanName] {
			s.logger.Printf("skipping %q: previous run still in flight", e.cfg.PlanName)
			continue
		}
		s.inflight[e.cfg.PlanName] = true
		s.logger.Printf("launching scheduled research %q (topic %q)", e.cfg.PlanName, e.cfg.Topic)

		req := research.Request{RunID: uuid.New().String(), Topic: e.cfg.Topic, PlanName: e.cfg.PlanName}
		go func(planName string, req research.Request) {
			defer func() {
				s.mu.Lock()
				s.inflight[planName] = false
				s.mu.Unlock()
			}()
			s.exec.Execute(context.Background(), req)
		}(e.cfg.PlanName, req)
	}
}
