package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/hitoshi/nakama/internal/model"
)

const (
	// streamWriteWait はクライアントへの1フレームの書き込み期限。
	streamWriteWait = 10 * time.Second

	// defaultStreamPingInterval はpingの送信間隔のデフォルト値。
	defaultStreamPingInterval = 30 * time.Second

	// streamMaxMessageSize はクライアントから受け付けるフレームの最大サイズ。
	streamMaxMessageSize = 512
)

// StreamHandlerConfig はライブ購読ハンドラーの設定。
type StreamHandlerConfig struct {
	// AllowedOrigin はWebSocket接続を許可するOrigin。空の場合はリクエストのHostと一致するOriginのみ許可する。
	AllowedOrigin string
	// PingInterval はpingの送信間隔。pongをこの2倍の時間受信できなければ切断する。
	PingInterval time.Duration
}

// StreamHandler はコミュニティチャットのライブ購読をWebSocketで配信する。
type StreamHandler struct {
	service      ChatServiceInterface
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	pongWait     time.Duration
	logger       *slog.Logger
}

// NewStreamHandler はStreamHandlerを生成する。
func NewStreamHandler(service ChatServiceInterface, config StreamHandlerConfig, logger *slog.Logger) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	ping := config.PingInterval
	if ping <= 0 {
		ping = defaultStreamPingInterval
	}
	return &StreamHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(config.AllowedOrigin),
		},
		pingInterval: ping,
		pongWait:     2 * ping,
		logger:       logger,
	}
}

// snapshotFrame はスナップショット配信フレーム。
type snapshotFrame struct {
	Type     string            `json:"type"`
	Messages []messageResponse `json:"messages"`
}

// errorFrame は再取得失敗を通知するフレーム。
type errorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Stream はライブ購読を開始する。
// 接続直後に現在のスナップショットを送り、以降はメッセージが追加されるたびに全件を送る。
// GET /api/communities/{id}/stream
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	communityID := chi.URLParam(r, "id")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// 参加チェックをアップグレード前に行い、非参加者にはJSONのエラーを返す
	sub, err := h.service.Subscribe(ctx, userID, communityID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgradeがエラーレスポンスを書き込み済み
		h.logger.Warn("websocket upgrade failed",
			slog.String("community_id", communityID),
			slog.String("error", err.Error()),
		)
		return
	}
	defer conn.Close()

	h.logger.Info("live stream opened",
		slog.String("user_id", userID),
		slog.String("community_id", communityID),
	)

	go h.readPump(conn, cancel)

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(streamWriteWait))
			h.logger.Info("live stream closed",
				slog.String("user_id", userID),
				slog.String("community_id", communityID),
			)
			return

		case snap, ok := <-sub.C:
			if !ok {
				// 購読がHub側で閉じられた
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(streamWriteWait))
				return
			}
			if err := h.writeSnapshot(conn, snap.Messages, snap.Err); err != nil {
				h.logger.Warn("failed to write live snapshot",
					slog.String("community_id", communityID),
					slog.String("error", err.Error()),
				)
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

// readPump はクライアントからのフレームを読み捨て、pongで読み取り期限を延長する。
// 接続が閉じられたらcancelを呼び出す。
func (h *StreamHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(streamMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("live stream read error", slog.String("error", err.Error()))
			}
			return
		}
	}
}

func (h *StreamHandler) writeSnapshot(conn *websocket.Conn, msgs []*model.Message, snapErr error) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
		return err
	}
	if snapErr != nil {
		return conn.WriteJSON(toErrorFrame(snapErr))
	}
	return conn.WriteJSON(snapshotFrame{
		Type:     "snapshot",
		Messages: toMessageResponses(msgs),
	})
}

func toErrorFrame(err error) errorFrame {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return errorFrame{Type: "error", Code: apiErr.Code, Message: apiErr.Message}
	}
	internal := model.NewInternalError()
	return errorFrame{Type: "error", Code: internal.Code, Message: "メッセージの取得に失敗しました"}
}

// originChecker はWebSocketのOrigin検証関数を返す。
// Originヘッダーがない（ブラウザ以外の）接続は許可する。
func originChecker(allowedOrigin string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if allowedOrigin != "" {
			return origin == allowedOrigin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	}
}
