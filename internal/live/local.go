package live

import (
	"context"
	"sync"
)

// LocalNotifier は単一プロセス内で通知を配送するNotifier。
// 受信側が処理中に届いた通知はコミュニティ単位で1件に合流する。
type LocalNotifier struct {
	mu      sync.Mutex
	pending map[string]struct{}
	signal  chan struct{}
}

// NewLocalNotifier はLocalNotifierを生成する。
func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{
		pending: make(map[string]struct{}),
		signal:  make(chan struct{}, 1),
	}
}

// Publish は通知を保留キューに積む。ブロックしない。
func (n *LocalNotifier) Publish(_ context.Context, communityID string) error {
	n.mu.Lock()
	n.pending[communityID] = struct{}{}
	n.mu.Unlock()

	select {
	case n.signal <- struct{}{}:
	default:
	}
	return nil
}

// Listen はctxが終了するまで保留中の通知を取り出してhandleに渡す。
func (n *LocalNotifier) Listen(ctx context.Context, handle func(communityID string)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-n.signal:
			for _, id := range n.drain() {
				handle(id)
			}
		}
	}
}

func (n *LocalNotifier) drain() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	ids := make([]string, 0, len(n.pending))
	for id := range n.pending {
		ids = append(ids, id)
	}
	clear(n.pending)
	return ids
}

// compile-time interface check
var _ Notifier = (*LocalNotifier)(nil)
