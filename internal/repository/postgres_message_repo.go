package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/nakama/internal/model"
)

// PostgresMessageRepo はPostgreSQLを使用したチャットメッセージリポジトリ。
// 追記時にmessagesテーブルのトリガーがpg_notifyを発行する。
type PostgresMessageRepo struct {
	db *sql.DB
}

// NewPostgresMessageRepo はPostgresMessageRepoを生成する。
func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

// Append はメッセージを追加し、採番されたSeqとSentAtを書き戻す。
func (r *PostgresMessageRepo) Append(ctx context.Context, msg *model.Message) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO messages (id, community_id, sender_id, sender_name, text)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING seq, sent_at`,
		msg.ID, msg.CommunityID, msg.SenderID, msg.SenderName, msg.Text,
	).Scan(&msg.Seq, &msg.SentAt)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// ListByCommunity はコミュニティの全メッセージを送信時刻の昇順で返す。
func (r *PostgresMessageRepo) ListByCommunity(ctx context.Context, communityID string) ([]*model.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, community_id, sender_id, sender_name, text, sent_at, seq
		 FROM messages
		 WHERE community_id = $1
		 ORDER BY sent_at ASC, seq ASC`,
		communityID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	msgs := []*model.Message{}
	for rows.Next() {
		m := &model.Message{}
		if err := rows.Scan(&m.ID, &m.CommunityID, &m.SenderID, &m.SenderName, &m.Text, &m.SentAt, &m.Seq); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return msgs, nil
}

// compile-time interface check
var _ MessageRepository = (*PostgresMessageRepo)(nil)
