package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/nakama/internal/live"
	"github.com/hitoshi/nakama/internal/model"
)

// ChatServiceInterface はチャットハンドラーが必要とするサービスインターフェース。
type ChatServiceInterface interface {
	Open(ctx context.Context, userID, communityID string) (*model.Community, error)
	Send(ctx context.Context, userID, communityID, text string) (*model.Message, error)
	History(ctx context.Context, userID, communityID string) ([]*model.Message, error)
	Subscribe(ctx context.Context, userID, communityID string) (*live.Subscription, error)
}

// ChatHandler はコミュニティチャットのHTTPハンドラー。
type ChatHandler struct {
	service ChatServiceInterface
}

// NewChatHandler はChatHandlerを生成する。
func NewChatHandler(service ChatServiceInterface) *ChatHandler {
	return &ChatHandler{service: service}
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type chatViewResponse struct {
	Community communityResponse `json:"community"`
	Messages  []messageResponse `json:"messages"`
}

// ListMessages はチャット画面を開き、全メッセージをタイムライン順に返す。
// GET /api/communities/{id}/messages
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	communityID := chi.URLParam(r, "id")

	c, err := h.service.Open(r.Context(), userID, communityID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	msgs, err := h.service.History(r.Context(), userID, communityID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatViewResponse{
		Community: communityResponse{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			CreatorID:   c.CreatorID,
			CreatedAt:   c.CreatedAt,
			Joined:      true,
		},
		Messages: toMessageResponses(msgs),
	})
}

// SendMessage はメッセージを送信する。
// 送信したメッセージはライブ購読の次のスナップショットに含まれる。
// POST /api/communities/{id}/messages
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.service.Send(r.Context(), userID, chi.URLParam(r, "id"), req.Text)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMessageResponse(msg))
}
