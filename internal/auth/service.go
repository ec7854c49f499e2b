// Package auth はメールアドレスとパスワードによる認証、セッション管理、
// パスワード再設定を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/nakama/internal/activity"
	"github.com/hitoshi/nakama/internal/mail"
	"github.com/hitoshi/nakama/internal/metrics"
	"github.com/hitoshi/nakama/internal/model"
	"github.com/hitoshi/nakama/internal/repository"
	"github.com/hitoshi/nakama/internal/security"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int           // セッション有効期間（秒）
	ResetTokenTTL time.Duration // パスワード再設定トークンの有効期間
	ResetSecret   []byte        // パスワード再設定トークンの署名鍵
	BaseURL       string        // 再設定リンクの生成に使うURL
	BcryptCost    int           // 0の場合はbcrypt.DefaultCost
}

// SignUpInput はサインアップの入力値。
type SignUpInput struct {
	Email     string
	Password  string
	Username  string
	Interests []string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	accounts  repository.AccountRepository
	profiles  repository.ProfileRepository
	sessions  repository.SessionRepository
	mailer    mail.Sender
	sanitizer security.TextSanitizer
	activity  activity.Recorder
	metrics   metrics.MetricsCollector
	config    ServiceConfig
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	accounts repository.AccountRepository,
	profiles repository.ProfileRepository,
	sessions repository.SessionRepository,
	mailer mail.Sender,
	sanitizer security.TextSanitizer,
	recorder activity.Recorder,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		accounts:  accounts,
		profiles:  profiles,
		sessions:  sessions,
		mailer:    mailer,
		sanitizer: sanitizer,
		activity:  recorder,
		metrics:   collector,
		config:    config,
		now:       time.Now,
	}
}

// SignUp はアカウントとプロフィールを作成し、セッションを発行する。
// 入力検証はストレージへのアクセスより前に行う。
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*model.Session, *model.Profile, error) {
	if err := model.ValidateInterests(in.Interests); err != nil {
		return nil, nil, err
	}
	username, err := model.ValidateUsername(s.sanitizer.SanitizeText(in.Username))
	if err != nil {
		return nil, nil, err
	}
	if err := model.ValidatePassword(in.Password); err != nil {
		return nil, nil, err
	}
	email := strings.TrimSpace(in.Email)
	if !security.ValidEmail(email) {
		return nil, nil, model.NewInvalidEmailError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.config.BcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	account := &model.Account{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(email),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, nil, model.NewEmailTakenError()
		}
		return nil, nil, fmt.Errorf("failed to create account: %w", err)
	}

	profile := &model.Profile{
		ID:          account.ID,
		Username:    username,
		Interests:   model.NormalizeInterests(in.Interests),
		Communities: []string{},
		JoinedAt:    now,
	}
	if err := s.profiles.Set(ctx, profile); err != nil {
		// プロフィールのないアカウントは残さない
		if delErr := s.accounts.DeleteByID(ctx, account.ID); delErr != nil {
			slog.Error("failed to roll back account",
				slog.String("user_id", account.ID),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, nil, fmt.Errorf("failed to create profile: %w", err)
	}

	session, err := s.createSession(ctx, account.ID)
	if err != nil {
		return nil, nil, err
	}

	s.metrics.RecordSignup()
	s.activity.Record(ctx, account.ID, model.ActionSignup, map[string]string{
		"username":  username,
		"interests": strings.Join(profile.Interests, ","),
	})
	slog.Info("account created",
		slog.String("user_id", account.ID),
		slog.String("username", username),
	)

	return session, profile, nil
}

// SignIn はメールアドレスとパスワードを検証し、セッションを発行する。
// メールアドレス未登録とパスワード不一致は同じエラーを返す。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	account, err := s.accounts.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		s.metrics.RecordLogin(false)
		return nil, model.NewInvalidCredentialsError()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		s.metrics.RecordLogin(false)
		return nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLogin(true)
	s.activity.Record(ctx, account.ID, model.ActionLogin, nil)
	slog.Info("user signed in", slog.String("user_id", account.ID))
	return session, nil
}

// SignOut はセッションを破棄する。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to find session: %w", err)
	}
	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if session != nil {
		s.activity.Record(ctx, session.UserID, model.ActionLogout, nil)
		slog.Info("user signed out", slog.String("user_id", session.UserID))
	}
	return nil
}

// SendPasswordReset はパスワード再設定リンクをメールで送信する。
// 未登録のメールアドレスでも成功として扱い、登録有無を外部に漏らさない。
func (s *Service) SendPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !security.ValidEmail(email) {
		return model.NewInvalidEmailError()
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		slog.Info("password reset requested for unknown email")
		return nil
	}

	token, err := issueResetToken(s.config.ResetSecret, account.ID, account.PasswordHash, s.now(), s.config.ResetTokenTTL)
	if err != nil {
		return err
	}

	link := strings.TrimRight(s.config.BaseURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
	err = s.mailer.Send(ctx, mail.Message{
		To:      account.Email,
		Subject: "パスワード再設定のご案内",
		Body: "以下のリンクからパスワードを再設定してください。\n\n" + link +
			"\n\nこのリンクの有効期限は" + s.config.ResetTokenTTL.String() + "です。",
	})
	if err != nil {
		return fmt.Errorf("failed to send password reset mail: %w", err)
	}

	slog.Info("password reset mail sent", slog.String("user_id", account.ID))
	return nil
}

// ResetPassword は再設定トークンを検証してパスワードを更新する。
// 資格情報が変わるため、そのユーザーの全セッションを破棄する。
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := parseResetToken(s.config.ResetSecret, token, s.now)
	if err != nil {
		return model.NewInvalidResetTokenError()
	}

	account, err := s.accounts.FindByID(ctx, claims.Subject)
	if err != nil {
		return fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil || passwordFingerprint(account.PasswordHash) != claims.Fingerprint {
		return model.NewInvalidResetTokenError()
	}

	if err := model.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.config.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.accounts.UpdatePassword(ctx, account.ID, string(hash)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if err := s.sessions.DeleteByUserID(ctx, account.ID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	s.activity.Record(ctx, account.ID, model.ActionPasswordReset, nil)
	slog.Info("password reset completed", slog.String("user_id", account.ID))
	return nil
}

// CurrentUser はセッションから現在のアカウントを取得する。
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*model.Account, error) {
	if sessionID == "" {
		return nil, model.NewUnauthorizedError()
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewUnauthorizedError()
	}

	account, err := s.accounts.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, model.NewUnauthorizedError()
	}
	return account, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
