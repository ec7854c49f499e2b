package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/nakama/internal/model"
)

// PostgresCommunityRepo はPostgreSQLを使用したコミュニティリポジトリ。
type PostgresCommunityRepo struct {
	db *sql.DB
}

// NewPostgresCommunityRepo はPostgresCommunityRepoを生成する。
func NewPostgresCommunityRepo(db *sql.DB) *PostgresCommunityRepo {
	return &PostgresCommunityRepo{db: db}
}

// List は全コミュニティを作成日時の降順で返す。同時刻の場合はID降順。
func (r *PostgresCommunityRepo) List(ctx context.Context) ([]*model.Community, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, creator_id, created_at
		 FROM communities
		 ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list communities: %w", err)
	}
	defer rows.Close()

	communities := []*model.Community{}
	for rows.Next() {
		c := &model.Community{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatorID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan community: %w", err)
		}
		communities = append(communities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate communities: %w", err)
	}
	return communities, nil
}

// Create はコミュニティを作成し、採番されたCreatedAtを書き戻す。
func (r *PostgresCommunityRepo) Create(ctx context.Context, c *model.Community) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO communities (id, name, description, creator_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		c.ID, c.Name, c.Description, c.CreatorID,
	).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert community: %w", err)
	}
	return nil
}

// FindByID は指定IDのコミュニティを取得する。見つからない場合はnilを返す。
// UUIDとして解釈できないIDは存在しないものとして扱う。
func (r *PostgresCommunityRepo) FindByID(ctx context.Context, id string) (*model.Community, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	c := &model.Community{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, creator_id, created_at FROM communities WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.CreatorID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find community: %w", err)
	}
	return c, nil
}

// compile-time interface check
var _ CommunityRepository = (*PostgresCommunityRepo)(nil)
