package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/vytor/lingorun/internal/logger"
	"github.com/vytor/lingorun/internal/paragraphcache"
)

// Warmer is the part of the paragraph pipeline the scheduler drives.
type Warmer interface {
	ScheduleWarmup(language string) bool
	Stats() paragraphcache.Stats
}

// Sweeper drops expired entries from an in-process store.
type Sweeper interface {
	Sweep() int
	Len() int
}

// Scheduler runs the periodic cache maintenance tasks.
type Scheduler struct {
	scheduler *gocron.Scheduler
	warmer    Warmer
	log       *logger.Logger
}

// New creates a scheduler that fires in UTC.
func New(warmer Warmer, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		warmer:    warmer,
		log:       log.WithPrefix("scheduler"),
	}
}

// Start registers a daily warmup per language at warmupAt (HH:MM) plus an
// hourly stats report, then starts the scheduler without blocking.
func (s *Scheduler) Start(warmupAt string, languages []string) error {
	for _, lang := range languages {
		lang := lang
		if _, err := s.scheduler.Every(1).Day().At(warmupAt).Tag("warmup", lang).Do(s.queueWarmup, lang); err != nil {
			return fmt.Errorf("schedule warmup for %q: %w", lang, err)
		}
	}
	if _, err := s.scheduler.Every(1).Hour().Tag("stats").Do(s.reportStats); err != nil {
		return fmt.Errorf("schedule stats report: %w", err)
	}

	s.scheduler.StartAsync()
	s.log.Info("scheduler started: %d jobs, warmup at %s UTC for %v", s.scheduler.Len(), warmupAt, languages)
	return nil
}

// SweepEvery registers a job that evicts expired keys from sw at the given
// interval. It may be called before or after Start.
func (s *Scheduler) SweepEvery(sw Sweeper, every time.Duration) error {
	if every <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", every)
	}
	if _, err := s.scheduler.Every(every).Tag("sweep").Do(s.sweep, sw); err != nil {
		return fmt.Errorf("schedule cache sweep: %w", err)
	}
	return nil
}

// RunNow triggers every registered job immediately.
func (s *Scheduler) RunNow() {
	s.scheduler.RunAll()
}

// Stop terminates all scheduled tasks.
func (s *Scheduler) Stop(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.scheduler.Stop()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop interrupted: %v", ctx.Err())
	}
}

func (s *Scheduler) queueWarmup(language string) {
	if !s.warmer.ScheduleWarmup(language) {
		s.log.Warn("warmup for %s not queued: prefetch queue full", language)
		return
	}
	s.log.Info("queued daily warmup for %s", language)
}

func (s *Scheduler) reportStats() {
	st := s.warmer.Stats()
	s.log.Info("cache stats: hits=%d misses=%d hit_rate=%.2f%% avg_latency=%.2fms",
		st.Hits, st.Misses, st.HitRate, st.AverageLatencyMs)
}

func (s *Scheduler) sweep(sw Sweeper) {
	if n := sw.Sweep(); n > 0 {
		s.log.Debug("evicted %d expired keys, %d held", n, sw.Len())
	}
}
