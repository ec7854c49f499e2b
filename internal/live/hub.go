// Package live はコミュニティチャットのライブ購読を提供する。
//
// 購読者は購読開始時とメッセージ追加のたびに、コミュニティの全メッセージを
// タイムライン順に並べたスナップショットを受け取る。差分ではなく全件を
// 再取得するため、通知が合流・欠落しても次のスナップショットで整合する。
package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/nakama/internal/metrics"
	"github.com/hitoshi/nakama/internal/model"
)

// DefaultQueryTimeout はスナップショット再取得1回あたりのタイムアウト。
const DefaultQueryTimeout = 5 * time.Second

// Snapshot はあるコミュニティのメッセージ全件を表す。
// Errが非nilの場合、Messagesは空で、再取得に失敗したことを示す。
type Snapshot struct {
	CommunityID string
	Messages    []*model.Message
	Err         error
}

// Source はスナップショットの取得元。repository.MessageRepositoryが満たす。
type Source interface {
	ListByCommunity(ctx context.Context, communityID string) ([]*model.Message, error)
}

// Notifier はメッセージ追加の通知を配送する。
type Notifier interface {
	// Publish はコミュニティに変更があったことを通知する。
	Publish(ctx context.Context, communityID string) error
	// Listen はctxが終了するまで通知を受信し、受信ごとにhandleを呼び出す。
	// 通知の取りこぼしがあり得る場合はhandleに空文字列を渡し、全コミュニティの再取得を促す。
	Listen(ctx context.Context, handle func(communityID string)) error
}

// Hub はコミュニティごとの購読者を管理し、通知を受けてスナップショットを配信する。
type Hub struct {
	source    Source
	notifier  Notifier
	collector metrics.MetricsCollector
	logger    *slog.Logger
	timeout   time.Duration

	gen atomic.Uint64

	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
}

// NewHub はHubを生成する。Runを呼び出すまで通知は処理されない。
func NewHub(source Source, notifier Notifier, collector metrics.MetricsCollector, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		source:    source,
		notifier:  notifier,
		collector: collector,
		logger:    logger,
		timeout:   DefaultQueryTimeout,
		subs:      make(map[string]map[*Subscription]struct{}),
	}
}

// Run はctxが終了するまで通知を受信し続ける。
func (h *Hub) Run(ctx context.Context) error {
	h.logger.Info("live hub started")
	err := h.notifier.Listen(ctx, func(communityID string) {
		if communityID == "" {
			h.refreshAll(ctx)
			return
		}
		h.refresh(ctx, communityID)
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("live notifier stopped: %w", err)
	}
	h.logger.Info("live hub stopped")
	return nil
}

// Notify はコミュニティにメッセージが追加されたことを通知する。
func (h *Hub) Notify(ctx context.Context, communityID string) error {
	return h.notifier.Publish(ctx, communityID)
}

// Subscribe はコミュニティの購読を開始する。
// 最初のスナップショットは呼び出し直後に配信される。ctxが終了すると購読は自動的に閉じる。
func (h *Hub) Subscribe(ctx context.Context, communityID string) (*Subscription, error) {
	ch := make(chan Snapshot, 1)
	sub := &Subscription{C: ch, ch: ch, hub: h, communityID: communityID}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, fmt.Errorf("live hub is closed")
	}
	set, ok := h.subs[communityID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[communityID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	h.collector.SubscriptionOpened()
	sub.mu.Lock()
	sub.stop = context.AfterFunc(ctx, sub.Close)
	sub.mu.Unlock()

	gen := h.gen.Add(1)
	sub.deliver(gen, h.query(ctx, communityID))
	h.collector.RecordSnapshotDelivered()
	return sub, nil
}

// Close はすべての購読を閉じ、以降のSubscribeを拒否する。
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*Subscription
	for _, set := range h.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range all {
		sub.Close()
	}
}

// Subscribers は指定コミュニティの購読者数を返す。
func (h *Hub) Subscribers(communityID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[communityID])
}

func (h *Hub) subscribers(communityID string) []*Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[communityID]
	out := make([]*Subscription, 0, len(set))
	for sub := range set {
		out = append(out, sub)
	}
	return out
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[sub.communityID]
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.communityID)
	}
}

// refresh はコミュニティの全件を再取得し、購読者全員に配信する。
func (h *Hub) refresh(ctx context.Context, communityID string) {
	subs := h.subscribers(communityID)
	if len(subs) == 0 {
		return
	}

	gen := h.gen.Add(1)
	snap := h.query(ctx, communityID)
	for _, sub := range subs {
		sub.deliver(gen, snap)
		h.collector.RecordSnapshotDelivered()
	}
}

func (h *Hub) refreshAll(ctx context.Context) {
	h.mu.Lock()
	ids := make([]string, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		h.refresh(ctx, id)
	}
}

func (h *Hub) query(ctx context.Context, communityID string) Snapshot {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
	defer cancel()

	msgs, err := h.source.ListByCommunity(ctx, communityID)
	if err != nil {
		h.logger.Warn("failed to load community snapshot",
			slog.String("community_id", communityID),
			slog.String("error", err.Error()),
		)
		return Snapshot{CommunityID: communityID, Messages: []*model.Message{}, Err: err}
	}
	model.SortMessages(msgs)
	return Snapshot{CommunityID: communityID, Messages: msgs}
}

// Subscription は1つのコミュニティへの購読を表す。
// Cは容量1のチャネルで、読み出されていないスナップショットは最新のものに置き換わる。
// Close後にCは閉じられる。
type Subscription struct {
	C <-chan Snapshot

	ch          chan Snapshot
	hub         *Hub
	communityID string
	stop        func() bool

	mu     sync.Mutex
	gen    uint64
	closed bool
}

// CommunityID は購読中のコミュニティIDを返す。
func (s *Subscription) CommunityID() string {
	return s.communityID
}

// Close は購読を終了する。複数回呼び出しても安全。
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	stop := s.stop
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.hub.remove(s)
	s.hub.collector.SubscriptionClosed()
}

// deliver は自分より新しい世代のスナップショットのみを配信する。
// 未読のスナップショットがあれば破棄して置き換える。
func (s *Subscription) deliver(gen uint64, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen <= s.gen {
		return
	}
	s.gen = gen
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}
