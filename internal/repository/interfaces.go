// Package repository はデータ永続化のインターフェースを定義する。
// アカウント・プロフィール・コミュニティ・メッセージの保存先は
// このパッケージのインターフェース越しにのみ参照する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/nakama/internal/model"
)

var (
	// ErrDuplicateEmail はメールアドレスが既に登録済みであることを示す。
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrNotFound は更新対象のレコードが存在しないことを示す。
	ErrNotFound = errors.New("record not found")
	// ErrEmptyUpdate は部分更新に更新対象のフィールドがないことを示す。
	ErrEmptyUpdate = errors.New("update has no fields")
)

// AccountRepository は認証情報の永続化インターフェース。
type AccountRepository interface {
	// Create はアカウントを作成する。メールアドレス重複時はErrDuplicateEmailを返す。
	Create(ctx context.Context, account *model.Account) error

	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// FindByEmail はメールアドレス（大文字小文字を区別しない）で検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// UpdatePassword はパスワードハッシュを更新する。
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// DeleteByID はアカウントを削除する。プロフィールとセッションも連動して削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ProfileRepository はプロフィールドキュメントの永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// Set はプロフィール全体を書き込む（存在すれば置き換える）。
	Set(ctx context.Context, profile *model.Profile) error

	// Update は指定フィールドのみを更新する。プロフィールがない場合はfalseを返す。
	Update(ctx context.Context, id string, update model.ProfileUpdate) (bool, error)

	// AddCommunity は参加コミュニティIDを冪等に追加する。
	// 新たに追加された場合のみtrueを返す。
	AddCommunity(ctx context.Context, id, communityID string) (bool, error)

	// RemoveCommunity は参加コミュニティIDを削除する。削除された場合のみtrueを返す。
	RemoveCommunity(ctx context.Context, id, communityID string) (bool, error)
}

// CommunityRepository はコミュニティの永続化インターフェース。
type CommunityRepository interface {
	// List は全コミュニティを作成日時の降順で返す。
	List(ctx context.Context) ([]*model.Community, error)

	// Create はコミュニティを作成する。CreatedAtはストレージ側で採番される。
	Create(ctx context.Context, community *model.Community) error

	// FindByID は指定IDのコミュニティを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Community, error)
}

// MessageRepository はチャットメッセージの永続化インターフェース。追記のみを扱う。
type MessageRepository interface {
	// Append はメッセージを追加する。SentAtとSeqはストレージ側で採番される。
	Append(ctx context.Context, msg *model.Message) error

	// ListByCommunity はコミュニティの全メッセージを送信時刻の昇順で返す。
	ListByCommunity(ctx context.Context, communityID string) ([]*model.Message, error)
}

// ActivityRepository は監査ログの永続化インターフェース。
type ActivityRepository interface {
	// Record は監査ログを1件追加する。
	Record(ctx context.Context, activity *model.Activity) error

	// ListByUser はユーザーの監査ログを新しい順に最大limit件返す。
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Activity, error)

	// DeleteBefore は指定日時より古い監査ログを削除し、削除件数を返す。
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
