package model

import (
	"slices"
	"time"
)

// Profile はユーザーの公開プロフィールを表す。
// IDはAccount.IDと同一。Communitiesは参加済みコミュニティIDの重複なしリスト。
type Profile struct {
	ID          string
	Username    string
	Interests   []string
	Communities []string
	JoinedAt    time.Time
}

// IsMemberOf はコミュニティに参加済みかどうかを返す。
func (p *Profile) IsMemberOf(communityID string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Communities, communityID)
}

// ProfileUpdate はプロフィールの部分更新を表す。nilのフィールドは変更しない。
type ProfileUpdate struct {
	Username  *string
	Interests []string
}

// Empty は更新対象のフィールドが1つもないかどうかを返す。
func (u ProfileUpdate) Empty() bool {
	return u.Username == nil && u.Interests == nil
}

// Interest catalog
const (
	InterestReact    = "React"
	InterestAIML     = "AI/ML"
	InterestWeb3     = "Web3"
	InterestDevOps   = "DevOps"
	InterestDesign   = "Design"
	InterestStartup  = "Startup"
	InterestGaming   = "Gaming"
	InterestTechNews = "Tech News"
)

var interestCatalog = []string{
	InterestReact,
	InterestAIML,
	InterestWeb3,
	InterestDevOps,
	InterestDesign,
	InterestStartup,
	InterestGaming,
	InterestTechNews,
}

// Interests は選択可能な興味タグを表示順で返す。
func Interests() []string {
	return slices.Clone(interestCatalog)
}

// IsKnownInterest は興味タグがカタログに含まれるかどうかを返す。
func IsKnownInterest(tag string) bool {
	return slices.Contains(interestCatalog, tag)
}

// NormalizeInterests は興味タグの重複を除き、カタログ順に並べ替えて返す。
// カタログにないタグは無視する。
func NormalizeInterests(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, c := range interestCatalog {
		if slices.Contains(tags, c) {
			out = append(out, c)
		}
	}
	return out
}
