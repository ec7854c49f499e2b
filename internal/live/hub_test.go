package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/nakama/internal/metrics"
	"github.com/hitoshi/nakama/internal/model"
)

// --- モック ---

type mockSource struct {
	mu   sync.Mutex
	msgs map[string][]*model.Message
	err  error
}

func newMockSource() *mockSource {
	return &mockSource{msgs: map[string][]*model.Message{}}
}

func (m *mockSource) ListByCommunity(_ context.Context, communityID string) ([]*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*model.Message, len(m.msgs[communityID]))
	copy(out, m.msgs[communityID])
	return out, nil
}

func (m *mockSource) add(msg *model.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs[msg.CommunityID] = append(m.msgs[msg.CommunityID], msg)
}

func (m *mockSource) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func newTestHub(t *testing.T, source Source) (*Hub, *LocalNotifier) {
	t.Helper()
	notifier := NewLocalNotifier()
	hub := NewHub(source, notifier, metrics.NewCollector(prometheus.NewRegistry()), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		hub.Close()
	})
	return hub, notifier
}

func receive(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.C:
		if !ok {
			t.Fatal("購読チャネルが閉じられています")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("スナップショットが配信されませんでした")
	}
	return Snapshot{}
}

func msg(id, community string, sentAt time.Time, seq int64) *model.Message {
	return &model.Message{ID: id, CommunityID: community, SenderName: "alice", Text: id, SentAt: sentAt, Seq: seq}
}

// --- テスト ---

func TestSubscribe_DeliversInitialSnapshot(t *testing.T) {
	source := newMockSource()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	source.add(msg("m1", "c1", base, 1))
	hub, _ := newTestHub(t, source)

	sub, err := hub.Subscribe(context.Background(), "c1")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	defer sub.Close()

	snap := receive(t, sub)
	if snap.Err != nil {
		t.Fatalf("予期しないエラー: %v", snap.Err)
	}
	if len(snap.Messages) != 1 || snap.Messages[0].ID != "m1" {
		t.Errorf("Messages = %v, want [m1]", snap.Messages)
	}
	if snap.CommunityID != "c1" {
		t.Errorf("CommunityID = %q, want %q", snap.CommunityID, "c1")
	}
}

func TestSubscribe_EmptyCommunity(t *testing.T) {
	hub, _ := newTestHub(t, newMockSource())

	sub, err := hub.Subscribe(context.Background(), "c1")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	defer sub.Close()

	snap := receive(t, sub)
	if snap.Messages == nil || len(snap.Messages) != 0 {
		t.Errorf("Messages = %v, want empty", snap.Messages)
	}
}

func TestNotify_PushesFreshSnapshot(t *testing.T) {
	source := newMockSource()
	hub, _ := newTestHub(t, source)

	sub, _ := hub.Subscribe(context.Background(), "c1")
	defer sub.Close()
	receive(t, sub)

	source.add(msg("m1", "c1", time.Now(), 1))
	if err := hub.Notify(context.Background(), "c1"); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	snap := receive(t, sub)
	if len(snap.Messages) != 1 {
		t.Fatalf("len(Messages) = %d, want 1", len(snap.Messages))
	}
}

func TestNotify_OtherCommunityUnaffected(t *testing.T) {
	source := newMockSource()
	hub, _ := newTestHub(t, source)

	sub, _ := hub.Subscribe(context.Background(), "c1")
	defer sub.Close()
	receive(t, sub)

	source.add(msg("m1", "c2", time.Now(), 1))
	_ = hub.Notify(context.Background(), "c2")

	select {
	case snap := <-sub.C:
		t.Errorf("他コミュニティの通知で配信されました: %+v", snap)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSnapshot_OrderedByTimestamp(t *testing.T) {
	source := newMockSource()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// 配送順と送信時刻の順序が異なる
	source.add(msg("late", "c1", base.Add(2*time.Second), 3))
	source.add(msg("early", "c1", base, 1))
	source.add(msg("tie", "c1", base, 2))
	hub, _ := newTestHub(t, source)

	sub, _ := hub.Subscribe(context.Background(), "c1")
	defer sub.Close()

	snap := receive(t, sub)
	want := []string{"early", "tie", "late"}
	if len(snap.Messages) != len(want) {
		t.Fatalf("len(Messages) = %d, want %d", len(snap.Messages), len(want))
	}
	for i, id := range want {
		if snap.Messages[i].ID != id {
			t.Errorf("Messages[%d] = %q, want %q", i, snap.Messages[i].ID, id)
		}
	}
}

func TestSnapshot_ErrorIsDelivered(t *testing.T) {
	source := newMockSource()
	source.setErr(errors.New("connection refused"))
	hub, _ := newTestHub(t, source)

	sub, _ := hub.Subscribe(context.Background(), "c1")
	defer sub.Close()

	snap := receive(t, sub)
	if snap.Err == nil {
		t.Fatal("エラーが配信されるべきです")
	}
	if len(snap.Messages) != 0 {
		t.Errorf("len(Messages) = %d, want 0", len(snap.Messages))
	}
}

func TestSubscription_LatestWins(t *testing.T) {
	hub := NewHub(newMockSource(), NewLocalNotifier(), metrics.NewCollector(prometheus.NewRegistry()), nil)
	sub, _ := hub.Subscribe(context.Background(), "c1")
	defer sub.Close()

	sub.deliver(10, Snapshot{CommunityID: "c1", Messages: []*model.Message{{ID: "a"}}})
	sub.deliver(11, Snapshot{CommunityID: "c1", Messages: []*model.Message{{ID: "a"}, {ID: "b"}}})
	// 古い世代は無視される
	sub.deliver(5, Snapshot{CommunityID: "c1"})

	snap := receive(t, sub)
	if len(snap.Messages) != 2 {
		t.Errorf("len(Messages) = %d, want 2", len(snap.Messages))
	}
	select {
	case extra := <-sub.C:
		t.Errorf("余分なスナップショット: %+v", extra)
	default:
	}
}

func TestSubscription_Close(t *testing.T) {
	hub, _ := newTestHub(t, newMockSource())

	sub, _ := hub.Subscribe(context.Background(), "c1")
	receive(t, sub)
	if got := hub.Subscribers("c1"); got != 1 {
		t.Errorf("Subscribers = %d, want 1", got)
	}

	sub.Close()
	sub.Close()

	if _, ok := <-sub.C; ok {
		t.Error("Close後にチャネルが閉じられていません")
	}
	if got := hub.Subscribers("c1"); got != 0 {
		t.Errorf("Subscribers = %d, want 0", got)
	}
}

func TestSubscription_ClosedByContext(t *testing.T) {
	hub, _ := newTestHub(t, newMockSource())

	ctx, cancel := context.WithCancel(context.Background())
	sub, _ := hub.Subscribe(ctx, "c1")
	receive(t, sub)
	cancel()

	select {
	case _, ok := <-sub.C:
		if ok {
			t.Error("コンテキスト終了後にスナップショットが配信されました")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("コンテキスト終了で購読が閉じられませんでした")
	}
}

func TestHub_CloseRejectsSubscribe(t *testing.T) {
	hub := NewHub(newMockSource(), NewLocalNotifier(), metrics.NewCollector(prometheus.NewRegistry()), nil)
	sub, _ := hub.Subscribe(context.Background(), "c1")
	hub.Close()

	if _, ok := <-sub.C; !ok {
		t.Fatal("初回スナップショットが失われました")
	}
	if _, ok := <-sub.C; ok {
		t.Error("Hub.Close後もチャネルが開いています")
	}
	if _, err := hub.Subscribe(context.Background(), "c1"); err == nil {
		t.Error("Close後のSubscribeはエラーになるべきです")
	}
}
