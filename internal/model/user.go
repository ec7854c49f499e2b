// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Account はメールアドレスとパスワードで認証するユーザーの資格情報を表す。
// PasswordHashはbcryptハッシュで、平文パスワードは保持しない。
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DefaultUsername はプロフィールが存在しない場合の表示名を決める。
// メールアドレスのローカル部を使い、取得できなければ "User" を返す。
func (a *Account) DefaultUsername() string {
	if a == nil {
		return "User"
	}
	local, _, found := strings.Cut(a.Email, "@")
	if !found || strings.TrimSpace(local) == "" {
		return "User"
	}
	return local
}

// Session はユーザーのログインセッションを表す。
// サインイン時に作成され、サインアウトまたはパスワード再設定で破棄される。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired はセッションが期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
