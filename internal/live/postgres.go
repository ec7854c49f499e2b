package live

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// PGChannel はmessagesテーブルのトリガーがpg_notifyで使用するチャネル名。
const PGChannel = "community_messages"

const (
	pgMinReconnect = 10 * time.Second
	pgMaxReconnect = time.Minute
	pgPingInterval = 90 * time.Second
)

// PGNotifier はPostgreSQLのLISTEN/NOTIFYで通知を受信するNotifier。
// メッセージ追加時はトリガーがNOTIFYを発行するため、Publishは何もしない。
// 複数のサーバープロセス間で通知が共有される。
type PGNotifier struct {
	databaseURL string
	logger      *slog.Logger
}

// NewPGNotifier はPGNotifierを生成する。
func NewPGNotifier(databaseURL string, logger *slog.Logger) *PGNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGNotifier{databaseURL: databaseURL, logger: logger}
}

// Publish は何もしない。通知はmessagesテーブルのトリガーが発行する。
func (n *PGNotifier) Publish(context.Context, string) error {
	return nil
}

// Listen はPGChannelをLISTENし、ペイロードのコミュニティIDをhandleに渡す。
// 再接続時は取りこぼしの可能性があるため空文字列を渡す。
func (n *PGNotifier) Listen(ctx context.Context, handle func(communityID string)) error {
	listener := pq.NewListener(n.databaseURL, pgMinReconnect, pgMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				n.logger.Warn("postgres listener event",
					slog.Int("event", int(ev)),
					slog.String("error", err.Error()),
				)
			}
		})
	defer listener.Close()

	if err := listener.Listen(PGChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", PGChannel, err)
	}
	n.logger.Info("listening for community messages", slog.String("channel", PGChannel))

	ticker := time.NewTicker(pgPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notification := <-listener.Notify:
			if notification == nil {
				// 再接続直後
				handle("")
				continue
			}
			handle(notification.Extra)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					n.logger.Warn("postgres listener ping failed", slog.String("error", err.Error()))
				}
			}()
		}
	}
}

// compile-time interface check
var _ Notifier = (*PGNotifier)(nil)
