package app

import (
	"fmt"
	"strconv"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーとライブ配信ハブを起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はクリーンアップワーカーを起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch Command(args[0]) {
	case CommandWorker, CommandMigrate, CommandHealthcheck:
		return Command(args[0])
	default:
		return CommandServe
	}
}

// MigrateOptions はmigrateサブコマンドの引数。
type MigrateOptions struct {
	Down  bool
	Steps int
}

// ParseMigrateArgs はmigrate以降の引数を解析する。
//
//	migrate          未適用のマイグレーションをすべて適用
//	migrate up       同上
//	migrate down [n] 直近n件（デフォルト1件）を巻き戻す
func ParseMigrateArgs(args []string) (MigrateOptions, error) {
	if len(args) == 0 || args[0] == "up" {
		return MigrateOptions{}, nil
	}
	if args[0] != "down" {
		return MigrateOptions{}, fmt.Errorf("unknown migrate direction %q", args[0])
	}

	opts := MigrateOptions{Down: true, Steps: 1}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return MigrateOptions{}, fmt.Errorf("invalid rollback steps %q", args[1])
		}
		opts.Steps = n
	}
	return opts, nil
}
