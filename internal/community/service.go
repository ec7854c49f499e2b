// Package community はコミュニティの一覧・作成・参照を提供する。
package community

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hitoshi/nakama/internal/activity"
	"github.com/hitoshi/nakama/internal/metrics"
	"github.com/hitoshi/nakama/internal/model"
	"github.com/hitoshi/nakama/internal/repository"
	"github.com/hitoshi/nakama/internal/security"
)

// Membership はユーザーのコミュニティ参加状態を扱う。profile.Serviceが満たす。
type Membership interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
	Join(ctx context.Context, userID, communityID string) (*model.Profile, error)
}

// Listing は閲覧ユーザーの参加状態を付与したコミュニティ。
type Listing struct {
	*model.Community
	Joined bool
}

// Service はコミュニティのサービス層。
type Service struct {
	communities repository.CommunityRepository
	membership  Membership
	sanitizer   security.TextSanitizer
	activity    activity.Recorder
	collector   metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	communities repository.CommunityRepository,
	membership Membership,
	sanitizer security.TextSanitizer,
	recorder activity.Recorder,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		communities: communities,
		membership:  membership,
		sanitizer:   sanitizer,
		activity:    recorder,
		collector:   collector,
	}
}

// List は全コミュニティを新しい順に返す。各要素にuserIDの参加状態を付与する。
func (s *Service) List(ctx context.Context, userID string) ([]*Listing, error) {
	communities, err := s.communities.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("コミュニティ一覧の取得に失敗しました: %w", err)
	}
	p, err := s.membership.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	listings := make([]*Listing, 0, len(communities))
	for _, c := range communities {
		listings = append(listings, &Listing{Community: c, Joined: p.IsMemberOf(c.ID)})
	}
	return listings, nil
}

// Get は指定IDのコミュニティを返す。
func (s *Service) Get(ctx context.Context, userID, communityID string) (*Listing, error) {
	c, err := s.communities.FindByID(ctx, communityID)
	if err != nil {
		return nil, fmt.Errorf("コミュニティの取得に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewCommunityNotFoundError(communityID)
	}
	p, err := s.membership.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Listing{Community: c, Joined: p.IsMemberOf(c.ID)}, nil
}

// Create はコミュニティを作成し、作成者を参加させる。
// 名前はマークアップ除去後に3文字以上であること。
func (s *Service) Create(ctx context.Context, userID, name, description string) (*Listing, error) {
	name, err := model.ValidateCommunityName(s.sanitizer.SanitizeText(name))
	if err != nil {
		return nil, err
	}

	c := &model.Community{
		ID:          uuid.New().String(),
		Name:        name,
		Description: s.sanitizer.SanitizeText(description),
		CreatorID:   userID,
	}
	if err := s.communities.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("コミュニティの作成に失敗しました: %w", err)
	}

	if _, err := s.membership.Join(ctx, userID, c.ID); err != nil {
		slog.Error("failed to auto-join community creator",
			slog.String("user_id", userID),
			slog.String("community_id", c.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("作成者のコミュニティ参加に失敗しました: %w", err)
	}

	s.collector.RecordCommunityCreated()
	s.activity.Record(ctx, userID, model.ActionCommunityCreate, map[string]string{
		"community_id":   c.ID,
		"community_name": c.Name,
	})
	slog.Info("community created",
		slog.String("community_id", c.ID),
		slog.String("creator_id", userID),
	)

	return &Listing{Community: c, Joined: true}, nil
}
