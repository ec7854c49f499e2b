// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 有効期限を過ぎたセッションと、保持期間（デフォルト30日）を超過した
// 監査ログを定期的に削除する。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// SessionPurger は期限切れセッションの削除インターフェース。
type SessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ActivityPurger は古い監査ログの削除インターフェース。
type ActivityPurger interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// CleanupJob は期限切れデータの削除ジョブ。冪等な削除処理を保証する。
type CleanupJob struct {
	sessions      SessionPurger
	activities    ActivityPurger
	logger        *slog.Logger
	now           func() time.Time
	RetentionDays int // 監査ログの保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は30日。
func NewCleanupJob(sessions SessionPurger, activities ActivityPurger, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		sessions:      sessions,
		activities:    activities,
		logger:        logger,
		now:           time.Now,
		RetentionDays: 30,
	}
}

// Run は期限切れセッションと保持期間を超過した監査ログを削除する。
// 一方の削除に失敗してももう一方は実行し、両方のエラーをまとめて返す。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()

	sessionsDeleted, sessErr := j.sessions.DeleteExpired(ctx, start)
	if sessErr != nil {
		j.logger.Error("セッションのクリーンアップに失敗しました",
			slog.String("error", sessErr.Error()),
		)
		sessErr = fmt.Errorf("セッションクリーンアップの実行に失敗: %w", sessErr)
	}

	cutoff := start.AddDate(0, 0, -j.RetentionDays)
	activitiesDeleted, actErr := j.activities.DeleteBefore(ctx, cutoff)
	if actErr != nil {
		j.logger.Error("監査ログのクリーンアップに失敗しました",
			slog.String("error", actErr.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		actErr = fmt.Errorf("監査ログクリーンアップの実行に失敗: %w", actErr)
	}

	if err := errors.Join(sessErr, actErr); err != nil {
		return err
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("sessions_deleted", sessionsDeleted),
		slog.Int64("activities_deleted", activitiesDeleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回、以降intervalごとにRunを実行する。ctxが終了するまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *CleanupJob) runOnce(ctx context.Context) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}
}
