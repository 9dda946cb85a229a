// Package scheduler runs the periodic ledger reconciliation and cycle totals
// refresh on a gocron scheduler.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/smallbiznis/groupledger/internal/config"
	cycledomain "github.com/smallbiznis/groupledger/internal/cycle/domain"
	ledgerdomain "github.com/smallbiznis/groupledger/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobReconcile = "ledger-reconcile"
	JobTotals    = "cycle-totals"
)

var Module = fx.Module("scheduler",
	fx.Provide(New),
	fx.Invoke(registerLifecycle),
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Config config.Config
	Clock  clockwork.Clock
	Ledger ledgerdomain.Service
	Cycles cycledomain.Service
}

type Scheduler struct {
	scheduler gocron.Scheduler
	log       *zap.Logger
	cfg       config.SchedulerConfig
	ledger    ledgerdomain.Service
	cycles    cycledomain.Service
}

func New(p Params) (*Scheduler, error) {
	s, err := gocron.NewScheduler(
		gocron.WithClock(p.Clock),
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		scheduler: s,
		log:       p.Log.Named("scheduler"),
		cfg:       p.Config.Scheduler,
		ledger:    p.Ledger,
		cycles:    p.Cycles,
	}, nil
}

func registerLifecycle(lc fx.Lifecycle, s *Scheduler) {
	if !s.cfg.Enabled {
		s.log.Info("scheduler disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return s.Start() },
		OnStop:  func(context.Context) error { return s.Stop() },
	})
}

// Start registers the jobs and starts the scheduler. Jobs run in singleton
// mode, so a slow run delays the next one instead of overlapping it.
func (s *Scheduler) Start() error {
	jobs := []struct {
		name     string
		interval time.Duration
		task     func(context.Context)
	}{
		{JobReconcile, s.cfg.ReconcileInterval, s.RunReconcile},
		{JobTotals, s.cfg.TotalsInterval, s.RunTotals},
	}
	for _, job := range jobs {
		if job.interval <= 0 {
			s.log.Warn("job interval not set, job skipped", zap.String("job", job.name))
			continue
		}
		task := job.task
		if _, err := s.scheduler.NewJob(
			gocron.DurationJob(job.interval),
			gocron.NewTask(func() { s.withTimeout(task) }),
			gocron.WithName(job.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return err
		}
	}
	s.scheduler.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.scheduler.Jobs())))
	return nil
}

func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

// JobNames lists the registered jobs.
func (s *Scheduler) JobNames() []string {
	jobs := s.scheduler.Jobs()
	names := make([]string, 0, len(jobs))
	for _, job := range jobs {
		names = append(names, job.Name())
	}
	return names
}

func (s *Scheduler) withTimeout(task func(context.Context)) {
	ctx := context.Background()
	if s.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.JobTimeout)
		defer cancel()
	}
	task(ctx)
}
