package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/nakama/internal/config"
	"github.com/hitoshi/nakama/internal/database"
	"github.com/hitoshi/nakama/internal/live"
	"github.com/hitoshi/nakama/internal/repository"
	"github.com/hitoshi/nakama/internal/repository/memory"
)

// memoryDatabaseURL はインメモリストアを選択するDATABASE_URL。
const memoryDatabaseURL = "memory://"

// sessionStore はセッションリポジトリに期限切れ削除を加えたもの。
type sessionStore interface {
	repository.SessionRepository
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// storage はserveとworkerが利用する永続化層と通知経路の一式。
type storage struct {
	accounts    repository.AccountRepository
	sessions    sessionStore
	profiles    repository.ProfileRepository
	communities repository.CommunityRepository
	messages    repository.MessageRepository
	activities  repository.ActivityRepository

	health   interface{ Ping() error }
	notifier live.Notifier
	closers  []func() error
}

// Close は開いた接続をすべて閉じる。
func (s *storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Warn("failed to close storage", slog.String("error", err.Error()))
		}
	}
}

func isMemoryURL(databaseURL string) bool {
	return strings.HasPrefix(databaseURL, memoryDatabaseURL)
}

// openStorage はDATABASE_URLに応じてストレージを開く。
// memory:// の場合はプロセス内ストアとローカル通知、
// それ以外はPostgreSQLと、REDIS_URLがあればRedis、なければLISTEN/NOTIFYを使う。
func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	if isMemoryURL(cfg.DatabaseURL) {
		store := memory.NewStore()
		slog.Warn("using in-memory storage; data is lost on restart")
		return &storage{
			accounts:    store.Accounts(),
			sessions:    store.Sessions(),
			profiles:    store.Profiles(),
			communities: store.Communities(),
			messages:    store.Messages(),
			activities:  store.Activities(),
			health:      store,
			notifier:    live.NewLocalNotifier(),
		}, nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	s := &storage{
		accounts:    repository.NewPostgresAccountRepo(db),
		sessions:    repository.NewPostgresSessionRepo(db),
		profiles:    repository.NewPostgresProfileRepo(db),
		communities: repository.NewPostgresCommunityRepo(db),
		messages:    repository.NewPostgresMessageRepo(db),
		activities:  repository.NewPostgresActivityRepo(db),
		health:      db,
		closers:     []func() error{db.Close},
	}

	if cfg.RedisURL != "" {
		client, err := live.NewRedisClient(cfg.RedisURL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.notifier = live.NewRedisNotifier(client, slog.Default())
		s.closers = append(s.closers, client.Close)
		slog.Info("live notifications via redis")
	} else {
		s.notifier = live.NewPGNotifier(cfg.DatabaseURL, slog.Default())
		slog.Info("live notifications via postgres listen/notify")
	}

	return s, nil
}
