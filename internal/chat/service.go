// Package chat はコミュニティ内のチャット送信・履歴・ライブ購読を提供する。
// いずれの操作もコミュニティ参加者に限られる。
package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hitoshi/nakama/internal/activity"
	"github.com/hitoshi/nakama/internal/live"
	"github.com/hitoshi/nakama/internal/metrics"
	"github.com/hitoshi/nakama/internal/model"
	"github.com/hitoshi/nakama/internal/repository"
	"github.com/hitoshi/nakama/internal/security"
)

// Profiles はチャット送信者のプロフィールを提供する。profile.Serviceが満たす。
type Profiles interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
}

// Broadcaster はライブ購読を扱う。live.Hubが満たす。
type Broadcaster interface {
	Notify(ctx context.Context, communityID string) error
	Subscribe(ctx context.Context, communityID string) (*live.Subscription, error)
}

// Service はチャットのサービス層。
type Service struct {
	communities repository.CommunityRepository
	messages    repository.MessageRepository
	profiles    Profiles
	hub         Broadcaster
	sanitizer   security.TextSanitizer
	activity    activity.Recorder
	collector   metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	communities repository.CommunityRepository,
	messages repository.MessageRepository,
	profiles Profiles,
	hub Broadcaster,
	sanitizer security.TextSanitizer,
	recorder activity.Recorder,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		communities: communities,
		messages:    messages,
		profiles:    profiles,
		hub:         hub,
		sanitizer:   sanitizer,
		activity:    recorder,
		collector:   collector,
	}
}

// Open はチャット画面を開く。参加者でなければNOT_A_MEMBERを返す。
func (s *Service) Open(ctx context.Context, userID, communityID string) (*model.Community, error) {
	c, _, err := s.authorize(ctx, userID, communityID)
	if err != nil {
		return nil, err
	}
	s.activity.Record(ctx, userID, model.ActionChatVisit, map[string]string{
		"community_id":   c.ID,
		"community_name": c.Name,
	})
	return c, nil
}

// Send はメッセージを送信する。本文は前後の空白を除き、マークアップを除去して保存する。
// 空の本文は保存しない。送信者名は送信時点のユーザー名。
func (s *Service) Send(ctx context.Context, userID, communityID, text string) (*model.Message, error) {
	text, err := model.ValidateMessageText(s.sanitizer.SanitizeText(text))
	if err != nil {
		return nil, err
	}

	_, p, err := s.authorize(ctx, userID, communityID)
	if err != nil {
		return nil, err
	}

	msg := &model.Message{
		ID:          uuid.New().String(),
		CommunityID: communityID,
		SenderID:    userID,
		SenderName:  p.Username,
		Text:        text,
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("メッセージの送信に失敗しました: %w", err)
	}

	if err := s.hub.Notify(ctx, communityID); err != nil {
		slog.Warn("failed to notify subscribers",
			slog.String("community_id", communityID),
			slog.String("error", err.Error()),
		)
	}

	s.collector.RecordMessageSent()
	s.activity.Record(ctx, userID, model.ActionMessageSend, map[string]string{
		"community_id": communityID,
		"message_id":   msg.ID,
	})
	return msg, nil
}

// History はコミュニティの全メッセージをタイムライン順に返す。
func (s *Service) History(ctx context.Context, userID, communityID string) ([]*model.Message, error) {
	if _, _, err := s.authorize(ctx, userID, communityID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByCommunity(ctx, communityID)
	if err != nil {
		return nil, fmt.Errorf("メッセージ履歴の取得に失敗しました: %w", err)
	}
	model.SortMessages(msgs)
	return msgs, nil
}

// Subscribe はコミュニティのライブ購読を開始する。
// 呼び出し元は不要になった時点でSubscription.Closeを呼ぶこと。
func (s *Service) Subscribe(ctx context.Context, userID, communityID string) (*live.Subscription, error) {
	if _, _, err := s.authorize(ctx, userID, communityID); err != nil {
		return nil, err
	}
	sub, err := s.hub.Subscribe(ctx, communityID)
	if err != nil {
		return nil, fmt.Errorf("ライブ購読の開始に失敗しました: %w", err)
	}
	return sub, nil
}

// authorize はコミュニティの存在とユーザーの参加状態を確認する。
func (s *Service) authorize(ctx context.Context, userID, communityID string) (*model.Community, *model.Profile, error) {
	c, err := s.communities.FindByID(ctx, communityID)
	if err != nil {
		return nil, nil, fmt.Errorf("コミュニティの取得に失敗しました: %w", err)
	}
	if c == nil {
		return nil, nil, model.NewCommunityNotFoundError(communityID)
	}
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if !p.IsMemberOf(communityID) {
		return nil, nil, model.NewNotAMemberError()
	}
	return c, p, nil
}
