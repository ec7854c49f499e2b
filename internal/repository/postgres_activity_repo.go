package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/nakama/internal/model"
)

// PostgresActivityRepo はPostgreSQLを使用した監査ログリポジトリ。
// detailsはJSONBカラムに保持する。
type PostgresActivityRepo struct {
	db *sql.DB
}

// NewPostgresActivityRepo はPostgresActivityRepoを生成する。
func NewPostgresActivityRepo(db *sql.DB) *PostgresActivityRepo {
	return &PostgresActivityRepo{db: db}
}

// Record は監査ログを1件追加する。
func (r *PostgresActivityRepo) Record(ctx context.Context, a *model.Activity) error {
	details := a.Details
	if details == nil {
		details = map[string]string{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode activity details: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO activities (id, user_id, action, details, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.UserID, a.Action, raw, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// ListByUser はユーザーの監査ログを新しい順に最大limit件返す。
func (r *PostgresActivityRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Activity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, action, details, created_at
		 FROM activities
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	activities := []*model.Activity{}
	for rows.Next() {
		a := &model.Activity{}
		var raw []byte
		if err := rows.Scan(&a.ID, &a.UserID, &a.Action, &raw, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &a.Details); err != nil {
				return nil, fmt.Errorf("failed to decode activity details: %w", err)
			}
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activities: %w", err)
	}
	return activities, nil
}

// DeleteBefore は指定日時より古い監査ログを削除し、削除件数を返す。
func (r *PostgresActivityRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM activities WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old activities: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ ActivityRepository = (*PostgresActivityRepo)(nil)
