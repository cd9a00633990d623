package approval

import (
	"context"

	"go-edu/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Sweeper runs the auto-approve sweep on a cron schedule for the lifetime
// of the process.
type Sweeper struct {
	cron    *cron.Cron
	service ApprovalService
	logger  *zap.Logger
}

func NewSweeper(lc fx.Lifecycle, cfg *config.Config, service ApprovalService, logger *zap.Logger) (*Sweeper, error) {
	s := &Sweeper{
		cron:    cron.New(),
		service: service,
		logger:  logger,
	}

	if _, err := s.cron.AddFunc(cfg.SweepSpec, s.run); err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting auto-approve sweeper", zap.String("spec", cfg.SweepSpec))
			s.cron.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopped := s.cron.Stop()
			select {
			case <-stopped.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
	return s, nil
}

func (s *Sweeper) run() {
	if _, err := s.service.SweepAutoApprovals(context.Background()); err != nil {
		s.logger.Error("auto-approve sweep failed", zap.Error(err))
	}
}
