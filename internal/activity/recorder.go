// Package activity はユーザー操作の監査ログを記録する。
// 記録の失敗はログに残すのみで、呼び出し元の処理には影響させない。
package activity

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/nakama/internal/model"
	"github.com/hitoshi/nakama/internal/repository"
)

// Recorder は監査ログを記録するインターフェース。
type Recorder interface {
	Record(ctx context.Context, userID, action string, details map[string]string)
}

// RepoRecorder はActivityRepositoryに監査ログを書き込むRecorder実装。
type RepoRecorder struct {
	repo   repository.ActivityRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewRepoRecorder はRepoRecorderを生成する。
func NewRepoRecorder(repo repository.ActivityRepository, logger *slog.Logger) *RepoRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &RepoRecorder{repo: repo, logger: logger, now: time.Now}
}

// Record は監査ログを1件書き込む。
func (r *RepoRecorder) Record(ctx context.Context, userID, action string, details map[string]string) {
	a := &model.Activity{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Details:   details,
		CreatedAt: r.now(),
	}
	if err := r.repo.Record(ctx, a); err != nil {
		r.logger.Warn("failed to record activity",
			slog.String("user_id", userID),
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
	}
}

// Nop は何も記録しないRecorder。
type Nop struct{}

// Record は何もしない。
func (Nop) Record(context.Context, string, string, map[string]string) {}

// compile-time interface check
var (
	_ Recorder = (*RepoRecorder)(nil)
	_ Recorder = Nop{}
)
