package digest

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"attendance/internal/queue"
)

// Publisher hands digest jobs to the worker loop.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Scheduler publishes one digest job per configured wall-clock slot per day.
// It is constructed once at process init with an explicit Start/Stop
// lifecycle; nothing else holds timer state.
type Scheduler struct {
	cron  *cron.Cron
	slots []string
}

// NewScheduler registers each "HH:MM" slot as a daily cron entry in tz.
// The slot string itself becomes the timeslot label carried in the job, so
// idempotency markers line up with the configured schedule.
func NewScheduler(slots []string, tz *time.Location, pub Publisher) (*Scheduler, error) {
	if tz == nil {
		tz = time.UTC
	}
	c := cron.New(
		cron.WithLocation(tz),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	for _, slot := range slots {
		spec, err := cronSpec(slot)
		if err != nil {
			return nil, err
		}
		slot := slot
		if _, err := c.AddFunc(spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := pub.Publish(ctx, queue.Message{Type: queue.TypeDigest, Body: []byte(slot)}); err != nil {
				log.Printf("digest scheduler: publishing job for slot %s failed: %v", slot, err)
			}
		}); err != nil {
			return nil, fmt.Errorf("registering slot %q: %w", slot, err)
		}
	}
	return &Scheduler{cron: c, slots: slots}, nil
}

// Start begins firing jobs at the configured slots.
func (s *Scheduler) Start() {
	log.Printf("digest scheduler: started, slots=%v", s.slots)
	s.cron.Start()
}

// Stop halts scheduling and returns a context that is done once any
// in-flight job publication has finished.
func (s *Scheduler) Stop() context.Context {
	log.Printf("digest scheduler: stopping")
	return s.cron.Stop()
}

// cronSpec converts an "HH:MM" slot label into a daily cron expression.
func cronSpec(slot string) (string, error) {
	parts := strings.Split(slot, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("slot %q is not in HH:MM form", slot)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("slot %q has an invalid hour", slot)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("slot %q has an invalid minute", slot)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}
