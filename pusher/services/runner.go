package services

import (
	"context"
	"log/slog"
	"time"

	"model_pusher/pusher/config"
	"model_pusher/pusher/executor"
	"model_pusher/pusher/schema"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Runner executes a push that the service has recorded. The in-process
// runner below is the default, tests substitute a stub.
type Runner interface {
	StartPush(spec executor.Spec, cfg *config.PushConfig) error
}

type LocalRunner struct {
	db *gorm.DB
}

func NewLocalRunner(db *gorm.DB) *LocalRunner {
	return &LocalRunner{db: db}
}

func (r *LocalRunner) StartPush(spec executor.Spec, cfg *config.PushConfig) error {
	exec, err := spec.New()
	if err != nil {
		return err
	}

	go r.runPush(exec, cfg)

	return nil
}

func (r *LocalRunner) recordStatus(cfg *config.PushConfig, updates map[string]interface{}) {
	result := r.db.Model(&schema.Push{}).Where("id = ?", cfg.PushId).Updates(updates)
	if result.Error != nil {
		slog.Error("sql error updating push status", "push_id", cfg.PushId, "error", result.Error)
	}
}

// claimPush moves the push from starting to in_progress. The claim fails if
// the push was cancelled before the runner picked it up, in which case the
// push must not run.
func (r *LocalRunner) claimPush(cfg *config.PushConfig) bool {
	result := r.db.Model(&schema.Push{}).
		Where("id = ? AND status = ?", cfg.PushId, schema.Starting).
		Update("status", schema.InProgress)
	if result.Error != nil {
		slog.Error("sql error claiming push", "push_id", cfg.PushId, "error", result.Error)
		return false
	}
	return result.RowsAffected == 1
}

func (r *LocalRunner) runPush(exec executor.Executor, cfg *config.PushConfig) {
	start := time.Now()

	if !r.claimPush(cfg) {
		slog.Info("push is no longer pending, skipping", "push_id", cfg.PushId)
		return
	}

	result, err := exec.Push(context.Background(), cfg)

	completedAt := time.Now()
	if err != nil {
		slog.Error("push failed", "push_id", cfg.PushId, "model_name", cfg.ModelName, "target", cfg.Target, "error", err)
		r.recordStatus(cfg, map[string]interface{}{"status": schema.Failed, "completed_at": &completedAt})

		logEntry := schema.PushLog{Id: uuid.New(), PushId: cfg.PushId, Level: "error", Message: err.Error()}
		if res := r.db.Create(&logEntry); res.Error != nil {
			slog.Error("sql error recording push failure", "push_id", cfg.PushId, "error", res.Error)
		}

		pushesFailedMetric.Inc()
		return
	}

	r.recordStatus(cfg, map[string]interface{}{
		"status":       schema.Complete,
		"version":      result.Version,
		"pushed_path":  result.PushedPath,
		"completed_at": &completedAt,
	})

	pushesCompletedMetric.Inc()
	pushDurationMetric.Observe(time.Since(start).Seconds())

	slog.Info("push completed", "push_id", cfg.PushId, "model_name", cfg.ModelName, "target", cfg.Target, "version", result.Version)
}
