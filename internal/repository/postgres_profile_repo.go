package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/nakama/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
// interestsとcommunitiesはtext[]カラムに保持する。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	p := &model.Profile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, interests, communities, joined_at FROM profiles WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Username, pq.Array(&p.Interests), pq.Array(&p.Communities), &p.JoinedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	if p.Interests == nil {
		p.Interests = []string{}
	}
	if p.Communities == nil {
		p.Communities = []string{}
	}
	return p, nil
}

// Set はプロフィール全体を書き込む。既存の場合は置き換える。
func (r *PostgresProfileRepo) Set(ctx context.Context, p *model.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, username, interests, communities, joined_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET username = EXCLUDED.username,
		     interests = EXCLUDED.interests,
		     communities = EXCLUDED.communities,
		     joined_at = EXCLUDED.joined_at`,
		p.ID, p.Username, pq.Array(nonNil(p.Interests)), pq.Array(nonNil(p.Communities)), p.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to set profile: %w", err)
	}
	return nil
}

// Update は指定フィールドのみを更新する。プロフィールがない場合はfalseを返す。
func (r *PostgresProfileRepo) Update(ctx context.Context, id string, update model.ProfileUpdate) (bool, error) {
	if update.Empty() {
		return false, ErrEmptyUpdate
	}

	var (
		sets []string
		args = []any{id}
	)
	if update.Username != nil {
		args = append(args, *update.Username)
		sets = append(sets, fmt.Sprintf("username = $%d", len(args)))
	}
	if update.Interests != nil {
		args = append(args, pq.Array(update.Interests))
		sets = append(sets, fmt.Sprintf("interests = $%d", len(args)))
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET `+strings.Join(sets, ", ")+` WHERE id = $1`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update profile: %w", err)
	}
	return affected(result)
}

// AddCommunity は参加コミュニティIDを冪等に追加する。
// 配列に含まれていない場合のみ追記するため、同時実行でも重複しない。
func (r *PostgresProfileRepo) AddCommunity(ctx context.Context, id, communityID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles
		 SET communities = array_append(communities, $2)
		 WHERE id = $1 AND NOT ($2 = ANY(communities))`,
		id, communityID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to add community to profile: %w", err)
	}
	return affected(result)
}

// RemoveCommunity は参加コミュニティIDを削除する。
func (r *PostgresProfileRepo) RemoveCommunity(ctx context.Context, id, communityID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles
		 SET communities = array_remove(communities, $2)
		 WHERE id = $1 AND $2 = ANY(communities)`,
		id, communityID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove community from profile: %w", err)
	}
	return affected(result)
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
