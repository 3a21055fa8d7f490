package feed

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)

// SubsystemLister returns the names of subsystems currently subscribed.
type SubsystemLister interface {
	ListSubscribed(ctx context.Context) ([]string, error)
}

// Monitor loops over subscribed subsystems, runs the processor for each, and
// aggregates one MonitoringResult per cycle. A failing subsystem contributes
// an error entry and an empty result rather than aborting the pass.
type Monitor struct {
	processor  *Processor
	subscribed SubsystemLister
	feedURL    func(subsystem string) string
}

// NewMonitor creates a monitor. feedURL maps a subsystem name to its Atom
// feed URL.
func NewMonitor(processor *Processor, subscribed SubsystemLister, feedURL func(string) string) *Monitor {
	return &Monitor{processor: processor, subscribed: subscribed, feedURL: feedURL}
}

// RunCycle runs one pass over all subscribed subsystems sequentially.
func (m *Monitor) RunCycle(ctx context.Context) (*domain.MonitoringResult, error) {
	startTime := time.Now().UTC()

	subsystems, err := m.subscribed.ListSubscribed(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscribed subsystems: %w", err)
	}
	if len(subsystems) == 0 {
		log.Printf("[Monitor] No subscribed subsystems found, skipping feed monitoring")
		return &domain.MonitoringResult{
			Results:   []domain.SubsystemResult{},
			StartTime: startTime,
			EndTime:   time.Now().UTC(),
		}, nil
	}

	log.Printf("[Monitor] Subscribed subsystems to monitor: %v", subsystems)

	result := &domain.MonitoringResult{
		Results:   make([]domain.SubsystemResult, 0, len(subsystems)),
		StartTime: startTime,
	}

	for _, name := range subsystems {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		feedURL := m.feedURL(name)
		subResult, err := m.processor.ProcessFeed(ctx, name, feedURL)
		if err != nil {
			errMsg := fmt.Sprintf("Failed to process feed for %s (%s): %v", name, feedURL, err)
			log.Printf("[Monitor] %s", errMsg)
			result.Errors = append(result.Errors, errMsg)
		}
		result.Results = append(result.Results, subResult)
		result.Stats.TotalNewCount += subResult.NewCount
		result.Stats.TotalReplyCount += subResult.ReplyCount
	}

	result.Stats.TotalSubsystems = len(subsystems)
	result.Stats.ProcessedSubsystems = len(result.Results)
	result.Stats.ErrorCount = len(result.Errors)
	result.EndTime = time.Now().UTC()
	return result, nil
}
