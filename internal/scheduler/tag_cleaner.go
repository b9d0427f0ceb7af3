// Package scheduler runs periodic maintenance jobs inside the API process
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TagPruner removes tags that no post references
type TagPruner interface {
	PruneOrphans(ctx context.Context) (int64, error)
}

// TagCleaner prunes orphaned tags on a cron schedule
type TagCleaner struct {
	pruner   TagPruner
	schedule cron.Schedule
	logger   *zap.Logger
	timeout  time.Duration
	stopChan chan struct{}
	done     chan struct{}
}

// NewTagCleaner parses cronExpr (standard five-field syntax or a descriptor such as "@daily")
func NewTagCleaner(pruner TagPruner, cronExpr string, logger *zap.Logger) (*TagCleaner, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	return &TagCleaner{
		pruner:   pruner,
		schedule: schedule,
		logger:   logger,
		timeout:  time.Minute,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start runs the cleaner in the background until Stop is called
func (c *TagCleaner) Start() {
	c.logger.Info("Tag cleaner started")
	go c.run()
}

// Stop stops the cleaner and waits for a running prune to finish
func (c *TagCleaner) Stop() {
	close(c.stopChan)
	<-c.done
	c.logger.Info("Tag cleaner stopped")
}

func (c *TagCleaner) run() {
	defer close(c.done)

	for {
		timer := time.NewTimer(time.Until(c.schedule.Next(time.Now())))
		select {
		case <-timer.C:
			c.RunOnce(context.Background())
		case <-c.stopChan:
			timer.Stop()
			return
		}
	}
}

// RunOnce prunes orphaned tags once and reports how many were removed
func (c *TagCleaner) RunOnce(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	removed, err := c.pruner.PruneOrphans(ctx)
	if err != nil {
		c.logger.Error("failed to prune orphaned tags", zap.Error(err))
		return 0
	}

	c.logger.Info("pruned orphaned tags", zap.Int64("removed", removed))
	return removed
}
