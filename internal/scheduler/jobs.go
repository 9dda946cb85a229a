package scheduler

import (
	"context"

	"go.uber.org/zap"
)

// RunReconcile reconciles every active ledger account.
func (s *Scheduler) RunReconcile(ctx context.Context) {
	summary, err := s.ledger.ReconcileAll(ctx)
	if err != nil {
		s.log.Error("reconcile run failed", zap.Error(err))
		return
	}
	fields := []zap.Field{
		zap.Int("checked", summary.Checked),
		zap.Int("repaired", len(summary.Repaired)),
		zap.Int("failed", summary.Failed),
	}
	if summary.Failed > 0 {
		s.log.Warn("reconcile run finished with failures", fields...)
		return
	}
	s.log.Info("reconcile run finished", fields...)
}

// RunTotals refreshes the totals of every active cycle. One cycle failing
// does not stop the others.
func (s *Scheduler) RunTotals(ctx context.Context) {
	cycles, err := s.cycles.ListActive(ctx)
	if err != nil {
		s.log.Error("list active cycles", zap.Error(err))
		return
	}
	failed := 0
	for _, cycle := range cycles {
		if ctx.Err() != nil {
			s.log.Warn("totals run interrupted", zap.Error(ctx.Err()))
			return
		}
		if _, err := s.cycles.CalculateTotals(ctx, cycle.TenantID, cycle.ID); err != nil {
			failed++
			s.log.Warn("cycle totals refresh failed",
				zap.String("tenant_id", cycle.TenantID.String()),
				zap.String("cycle_id", cycle.ID.String()),
				zap.Error(err),
			)
		}
	}
	s.log.Info("totals run finished", zap.Int("cycles", len(cycles)), zap.Int("failed", failed))
}
