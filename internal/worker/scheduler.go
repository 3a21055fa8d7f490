// Package worker provides the monitoring scheduler that drives periodic
// feed poll cycles.
package worker

import (
	"context"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
	"github.com/hust-open-atom-club/lkml-bot/internal/pkg/distlock"
)

// CycleRunner runs one full pass over all subscribed subsystems.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*domain.MonitoringResult, error)
}

// UpdateSender posts per-subsystem cycle summaries to the platforms.
type UpdateSender interface {
	SendSubsystemUpdate(ctx context.Context, result domain.SubsystemResult, maxEntries int) error
}

// SubscriptionLister reports which subsystems are currently subscribed.
type SubscriptionLister interface {
	ListSubscribed(ctx context.Context) ([]string, error)
}

// Scheduler runs the monitoring loop: one poll cycle, per-subsystem update
// notifications, then a cancellable sleep until the next cycle. Cycle
// failures back off for a fixed minute instead of the normal interval.
type Scheduler struct {
	monitor       CycleRunner
	sender        UpdateSender
	subscriptions SubscriptionLister
	lock          distlock.DistLock

	// Configuration
	interval     time.Duration
	maxNewsCount int

	// Stats
	totalCycles  int64
	totalNew     int64
	totalReplies int64
	totalErrors  int64

	// Control
	runID   string
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
}

const errorBackoff = 60 * time.Second

// SchedulerConfig holds configuration for the monitoring scheduler.
type SchedulerConfig struct {
	Interval     time.Duration // time between poll cycles
	MaxNewsCount int           // cap on entries listed per subsystem update
}

// NewScheduler creates a scheduler. lock may be nil when only one instance
// runs; with a lock, a cycle is skipped whenever another instance holds it.
func NewScheduler(monitor CycleRunner, sender UpdateSender, subscriptions SubscriptionLister, lock distlock.DistLock, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.MaxNewsCount <= 0 {
		cfg.MaxNewsCount = 10
	}
	return &Scheduler{
		monitor:       monitor,
		sender:        sender,
		subscriptions: subscriptions,
		lock:          lock,
		interval:      cfg.Interval,
		maxNewsCount:  cfg.MaxNewsCount,
	}
}

// Start launches the monitoring loop. With no subscribed subsystems it
// logs and does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}

	names, err := s.subscriptions.ListSubscribed(context.Background())
	if err != nil {
		s.mu.Unlock()
		log.Printf("[Scheduler] Failed to list subscriptions: %v", err)
		return
	}
	if len(names) == 0 {
		s.mu.Unlock()
		log.Println("[Scheduler] No subscribed subsystems, not starting")
		return
	}

	s.running = true
	s.runID = strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	log.Printf("[Scheduler] Starting run %s with interval=%s, subsystems=%d",
		s.runID, s.interval, len(names))

	s.wg.Add(1)
	go s.loop()
}

// Stop cancels the loop and waits for the in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	log.Printf("[Scheduler] Stopping run %s...", s.runID)
	s.wg.Wait()

	log.Printf("[Scheduler] Stopped. Stats: cycles=%d, new=%d, replies=%d, errors=%d",
		atomic.LoadInt64(&s.totalCycles),
		atomic.LoadInt64(&s.totalNew),
		atomic.LoadInt64(&s.totalReplies),
		atomic.LoadInt64(&s.totalErrors))
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// RunID returns the short id of the current run, empty when stopped.
func (s *Scheduler) RunID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return ""
	}
	return s.runID
}

// Stats returns cumulative counters for the current process.
func (s *Scheduler) Stats() map[string]int64 {
	return map[string]int64{
		"total_cycles":  atomic.LoadInt64(&s.totalCycles),
		"total_new":     atomic.LoadInt64(&s.totalNew),
		"total_replies": atomic.LoadInt64(&s.totalReplies),
		"total_errors":  atomic.LoadInt64(&s.totalErrors),
	}
}

// RunOnce executes a single cycle synchronously, including update
// notifications, and returns the aggregate result.
func (s *Scheduler) RunOnce(ctx context.Context) (*domain.MonitoringResult, error) {
	return s.runCycle(ctx)
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	cycle := 0
	for {
		cycle++
		delay := s.interval

		if _, err := s.runCycle(s.ctx); err != nil {
			if s.ctx.Err() != nil {
				return
			}
			log.Printf("[Scheduler] Cycle %d failed: %v", cycle, err)
			delay = errorBackoff
		}

		if !s.sleep(delay) {
			return
		}
	}
}

// sleep waits for d, returning false when the scheduler was stopped.
func (s *Scheduler) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *Scheduler) runCycle(ctx context.Context) (*domain.MonitoringResult, error) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx)
		if err != nil {
			atomic.AddInt64(&s.totalErrors, 1)
			return nil, err
		}
		if !acquired {
			log.Println("[Scheduler] Cycle lock held elsewhere, skipping")
			return &domain.MonitoringResult{}, nil
		}
		defer func() {
			if err := s.lock.Release(ctx); err != nil {
				log.Printf("[Scheduler] Failed to release cycle lock: %v", err)
			}
		}()
	}

	result, err := s.monitor.RunCycle(ctx)
	if err != nil {
		atomic.AddInt64(&s.totalErrors, 1)
		return nil, err
	}

	atomic.AddInt64(&s.totalCycles, 1)
	atomic.AddInt64(&s.totalNew, int64(result.Stats.TotalNewCount))
	atomic.AddInt64(&s.totalReplies, int64(result.Stats.TotalReplyCount))
	atomic.AddInt64(&s.totalErrors, int64(result.Stats.ErrorCount))

	s.sendUpdates(ctx, result)
	return result, nil
}

// sendUpdates posts one summary per subsystem that saw traffic this cycle.
func (s *Scheduler) sendUpdates(ctx context.Context, result *domain.MonitoringResult) {
	if s.sender == nil {
		return
	}
	for _, r := range result.Results {
		if r.NewCount == 0 && r.ReplyCount == 0 {
			continue
		}
		if err := s.sender.SendSubsystemUpdate(ctx, r, s.maxNewsCount); err != nil {
			log.Printf("[Scheduler] Failed to send update for %s: %v", r.Subsystem, err)
		}
	}
}
