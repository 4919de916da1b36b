package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/pharmos-erp/pharmos-erp/internal/ledger"
	"github.com/pharmos-erp/pharmos-erp/internal/sysconfig"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerRebuild recomputes material balance rows from ordered and received quantities.
	TaskLedgerRebuild = "ledger:rebuild"
	// TaskSysconfigRefresh invalidates the cached system configuration.
	TaskSysconfigRefresh = "sysconfig:refresh"
)

// NewLedgerRebuildTask constructs the ledger rebuild task.
func NewLedgerRebuildTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerRebuild, nil)
}

// NewSysconfigRefreshTask constructs the configuration refresh task.
func NewSysconfigRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskSysconfigRefresh, nil)
}

// LedgerRebuildHandler returns an Asynq handler that repairs ledger balance drift.
func LedgerRebuildHandler(service *ledger.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		touched, err := service.Recompute(ctx)
		if err != nil {
			logger.Error("ledger rebuild", slog.Any("error", err))
			return err
		}
		logger.Info("ledger rebuild complete", slog.Int64("rows", touched))
		return nil
	}
}

// SysconfigRefreshHandler returns an Asynq handler that bumps the config cache version.
func SysconfigRefreshHandler(service *sysconfig.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		if err := service.Refresh(ctx); err != nil {
			logger.Error("sysconfig refresh", slog.Any("error", err))
			return err
		}
		return nil
	}
}
