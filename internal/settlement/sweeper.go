package settlement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"farmlink/platform/platform-backend/internal/projects"
)

// Settler resolves funding projects whose deadline has passed
type Settler interface {
	SettleExpired(ctx context.Context) ([]projects.SettlementOutcome, error)
}

// Sweeper runs the deadline settlement on a cron schedule
type Sweeper struct {
	cron     *cron.Cron
	settler  Settler
	schedule string
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	entry   cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewSweeper validates schedule, which accepts standard cron specs and descriptors like "@every 1m"
func NewSweeper(settler Settler, schedule string, logger *zap.Logger) (*Sweeper, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid settlement schedule %q: %w", schedule, err)
	}
	return &Sweeper{
		cron:     cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
		settler:  settler,
		schedule: schedule,
		timeout:  time.Minute,
		logger:   logger,
	}, nil
}

// Start schedules the sweep. Jobs stop when ctx is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("settlement sweeper already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	id, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce(s.ctx) })
	if err != nil {
		s.cancel()
		return fmt.Errorf("failed to schedule settlement: %w", err)
	}
	s.entry = id
	s.running = true
	s.cron.Start()
	s.logger.Info("Settlement sweeper started", zap.String("schedule", s.schedule))
	return nil
}

// Stop waits for a running sweep to finish
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.cron.Remove(s.entry)
	s.running = false
	s.logger.Info("Settlement sweeper stopped")
}

// RunOnce performs a single sweep and returns what it settled
func (s *Sweeper) RunOnce(ctx context.Context) []projects.SettlementOutcome {
	if ctx.Err() != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	outcomes, err := s.settler.SettleExpired(ctx)
	if err != nil {
		s.logger.Error("Settlement sweep had failures", zap.Error(err), zap.Int("settled", len(outcomes)))
	}
	for _, o := range outcomes {
		s.logger.Info("Project settled",
			zap.String("project_id", o.ProjectID.String()),
			zap.String("from", string(o.From)),
			zap.String("to", string(o.To)))
	}
	if len(outcomes) > 0 || err != nil {
		s.logger.Info("Settlement sweep finished", zap.Int("settled", len(outcomes)), zap.Duration("took", time.Since(start)))
	}
	return outcomes
}
