// Package profile はユーザープロフィールとコミュニティ参加状態を管理する。
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/nakama/internal/activity"
	"github.com/hitoshi/nakama/internal/model"
	"github.com/hitoshi/nakama/internal/repository"
	"github.com/hitoshi/nakama/internal/security"
)

// Service はプロフィールのサービス層。
type Service struct {
	profiles    repository.ProfileRepository
	accounts    repository.AccountRepository
	communities repository.CommunityRepository
	sanitizer   security.TextSanitizer
	activity    activity.Recorder
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	profiles repository.ProfileRepository,
	accounts repository.AccountRepository,
	communities repository.CommunityRepository,
	sanitizer security.TextSanitizer,
	recorder activity.Recorder,
) *Service {
	return &Service{
		profiles:    profiles,
		accounts:    accounts,
		communities: communities,
		sanitizer:   sanitizer,
		activity:    recorder,
		now:         time.Now,
	}
}

// Get はプロフィールを取得する。存在しない場合は初期値で作成する。
// 初期ユーザー名はメールアドレスのローカル部。
func (s *Service) Get(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if p != nil {
		return p, nil
	}

	account, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("アカウントの取得に失敗しました: %w", err)
	}
	if account == nil {
		return nil, model.NewProfileNotFoundError()
	}

	p = &model.Profile{
		ID:          userID,
		Username:    account.DefaultUsername(),
		Interests:   []string{},
		Communities: []string{},
		JoinedAt:    s.now(),
	}
	if err := s.profiles.Set(ctx, p); err != nil {
		return nil, fmt.Errorf("プロフィールの作成に失敗しました: %w", err)
	}

	slog.Info("profile created lazily",
		slog.String("user_id", userID),
		slog.String("username", p.Username),
	)
	return p, nil
}

// UpdateInterests は興味タグを置き換える。
func (s *Service) UpdateInterests(ctx context.Context, userID string, interests []string) (*model.Profile, error) {
	if err := model.ValidateInterests(interests); err != nil {
		return nil, err
	}
	return s.update(ctx, userID, model.ProfileUpdate{Interests: model.NormalizeInterests(interests)})
}

// UpdateUsername はユーザー名を変更する。マークアップは除去してから長さを検証する。
func (s *Service) UpdateUsername(ctx context.Context, userID, username string) (*model.Profile, error) {
	name, err := model.ValidateUsername(s.sanitizer.SanitizeText(username))
	if err != nil {
		return nil, err
	}
	return s.update(ctx, userID, model.ProfileUpdate{Username: &name})
}

func (s *Service) update(ctx context.Context, userID string, update model.ProfileUpdate) (*model.Profile, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := s.profiles.Update(ctx, userID, update); err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}

	details := map[string]string{}
	if update.Username != nil {
		details["username"] = *update.Username
	}
	if update.Interests != nil {
		details["interests"] = fmt.Sprint(update.Interests)
	}
	s.activity.Record(ctx, userID, model.ActionProfileUpdate, details)

	return s.Get(ctx, userID)
}

// Join はコミュニティに参加する。既に参加済みの場合は何もしない（冪等）。
func (s *Service) Join(ctx context.Context, userID, communityID string) (*model.Profile, error) {
	community, err := s.communities.FindByID(ctx, communityID)
	if err != nil {
		return nil, fmt.Errorf("コミュニティの取得に失敗しました: %w", err)
	}
	if community == nil {
		return nil, model.NewCommunityNotFoundError(communityID)
	}
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}

	added, err := s.profiles.AddCommunity(ctx, userID, communityID)
	if err != nil {
		return nil, fmt.Errorf("コミュニティへの参加に失敗しました: %w", err)
	}
	if added {
		s.activity.Record(ctx, userID, model.ActionCommunityJoin, map[string]string{
			"community_id":   communityID,
			"community_name": community.Name,
		})
		slog.Info("user joined community",
			slog.String("user_id", userID),
			slog.String("community_id", communityID),
		)
	}

	return s.Get(ctx, userID)
}

// Leave はコミュニティから退出する。参加していない場合は何もしない。
func (s *Service) Leave(ctx context.Context, userID, communityID string) (*model.Profile, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}

	removed, err := s.profiles.RemoveCommunity(ctx, userID, communityID)
	if err != nil {
		return nil, fmt.Errorf("コミュニティからの退出に失敗しました: %w", err)
	}
	if removed {
		s.activity.Record(ctx, userID, model.ActionCommunityLeave, map[string]string{
			"community_id": communityID,
		})
		slog.Info("user left community",
			slog.String("user_id", userID),
			slog.String("community_id", communityID),
		)
	}

	return s.Get(ctx, userID)
}

// IsMember はユーザーがコミュニティに参加済みかどうかを返す。
func (s *Service) IsMember(ctx context.Context, userID, communityID string) (bool, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return p.IsMemberOf(communityID), nil
}
