package live

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisChannel はRedis Pub/Subで使用するチャネル名。
const RedisChannel = "nakama:community_messages"

// RedisNotifier はRedis Pub/Subで通知を配送するNotifier。
// 複数のサーバープロセス間で通知が共有される。
type RedisNotifier struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisNotifier はRedisNotifierを生成する。
func NewRedisNotifier(client *redis.Client, logger *slog.Logger) *RedisNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisNotifier{client: client, logger: logger}
}

// NewRedisClient はREDIS_URL形式の接続文字列からクライアントを生成する。
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Publish はコミュニティIDをRedisChannelに発行する。
func (n *RedisNotifier) Publish(ctx context.Context, communityID string) error {
	if err := n.client.Publish(ctx, RedisChannel, communityID).Err(); err != nil {
		return fmt.Errorf("failed to publish community message: %w", err)
	}
	return nil
}

// Listen はRedisChannelを購読し、受信したコミュニティIDをhandleに渡す。
func (n *RedisNotifier) Listen(ctx context.Context, handle func(communityID string)) error {
	pubsub := n.client.Subscribe(ctx, RedisChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", RedisChannel, err)
	}
	n.logger.Info("listening for community messages", slog.String("channel", RedisChannel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis subscription closed")
			}
			handle(msg.Payload)
		}
	}
}

// compile-time interface check
var _ Notifier = (*RedisNotifier)(nil)
