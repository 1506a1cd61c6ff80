package scheduler

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// Refresher re-submits the current location. *weather.Debouncer satisfies it.
type Refresher interface {
	Refresh() bool
}

// Scheduler periodically refreshes the settled location.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	interval  time.Duration
}

// New creates a new Scheduler. A non-positive interval disables it.
func New(interval time.Duration, refresher Refresher) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		refresher: refresher,
		interval:  interval,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		log.Println("scheduler: refresh disabled; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 1
	}

	// The first run fires one interval after start, not immediately.
	_, err := s.scheduler.Every(minutes).Minutes().WaitForSchedule().Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) run() {
	if s.refresher.Refresh() {
		log.Println("scheduler: refresh submitted")
	} else {
		log.Println("scheduler: no location to refresh")
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
