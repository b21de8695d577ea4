package scheduler

import (
	"context"
	"fmt"
	"time"

	"FrontierDigest/internal/ports"
)

// DailyScheduler fires the job once per day at a configured wall-clock
// time in a configured location.
type DailyScheduler struct {
	runTime  string
	location *time.Location
	stop     chan struct{}
}

var _ ports.Scheduler = (*DailyScheduler)(nil)

// NewDailyScheduler builds a scheduler from an "HH:MM" run time.
func NewDailyScheduler(runTime string, location *time.Location) *DailyScheduler {
	if location == nil {
		location = time.UTC
	}
	return &DailyScheduler{runTime: runTime, location: location}
}

// Start launches the timer loop. Calling Start twice is a no-op.
func (d *DailyScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	if d.stop != nil {
		return nil
	}

	hour, minute, err := parseRunTime(d.runTime)
	if err != nil {
		return err
	}

	d.stop = make(chan struct{})
	go func() {
		for {
			next := nextRun(time.Now().In(d.location), hour, minute)
			timer := time.NewTimer(time.Until(next))
			select {
			case t := <-timer.C:
				job(t.In(d.location))
			case <-ctx.Done():
				timer.Stop()
				return
			case <-d.stop:
				timer.Stop()
				return
			}
		}
	}()

	return nil
}

// Stop halts the timer goroutine.
func (d *DailyScheduler) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	close(d.stop)
	d.stop = nil
	return nil
}

func parseRunTime(value string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(value, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("run time %q is not HH:MM: %w", value, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("run time %q is out of range", value)
	}
	return hour, minute, nil
}

// nextRun returns today's run moment, or tomorrow's when it already passed.
func nextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
