package model

import (
	"cmp"
	"slices"
	"time"
)

// Community はトピック別のコミュニティを表す。
// 作成後に更新・削除されることはない。名前の一意性は保証しない。
type Community struct {
	ID          string
	Name        string
	Description string
	CreatorID   string
	CreatedAt   time.Time
}

// Message はコミュニティ内のチャットメッセージを表す。
// SentAtとSeqはストレージ側で採番され、追記のみで更新されない。
type Message struct {
	ID          string
	CommunityID string
	SenderID    string
	SenderName  string
	Text        string
	SentAt      time.Time
	Seq         int64
}

// CompareMessages は送信時刻の昇順、同時刻の場合はSeqの昇順で比較する。
func CompareMessages(a, b *Message) int {
	if c := a.SentAt.Compare(b.SentAt); c != 0 {
		return c
	}
	return cmp.Compare(a.Seq, b.Seq)
}

// SortMessages はメッセージをタイムライン順に並べ替える。
func SortMessages(msgs []*Message) {
	slices.SortStableFunc(msgs, CompareMessages)
}
