package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/nakama/internal/community"
	"github.com/hitoshi/nakama/internal/middleware"
	"github.com/hitoshi/nakama/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限。
const maxRequestBodyBytes = 64 << 10

// profileResponse はプロフィールのAPIレスポンス。
type profileResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Interests   []string  `json:"interests"`
	Communities []string  `json:"communities"`
	JoinedAt    time.Time `json:"joined_at"`
}

func toProfileResponse(p *model.Profile) profileResponse {
	resp := profileResponse{
		ID:          p.ID,
		Username:    p.Username,
		Interests:   p.Interests,
		Communities: p.Communities,
		JoinedAt:    p.JoinedAt,
	}
	if resp.Interests == nil {
		resp.Interests = []string{}
	}
	if resp.Communities == nil {
		resp.Communities = []string{}
	}
	return resp
}

// communityResponse はコミュニティのAPIレスポンス。
type communityResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatorID   string    `json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
	Joined      bool      `json:"joined"`
}

func toCommunityResponse(l *community.Listing) communityResponse {
	return communityResponse{
		ID:          l.ID,
		Name:        l.Name,
		Description: l.Description,
		CreatorID:   l.CreatorID,
		CreatedAt:   l.CreatedAt,
		Joined:      l.Joined,
	}
}

// messageResponse はチャットメッセージのAPIレスポンス。
type messageResponse struct {
	ID          string    `json:"id"`
	CommunityID string    `json:"community_id"`
	SenderID    string    `json:"sender_id"`
	SenderName  string    `json:"sender_name"`
	Text        string    `json:"text"`
	SentAt      time.Time `json:"sent_at"`
}

func toMessageResponse(m *model.Message) messageResponse {
	return messageResponse{
		ID:          m.ID,
		CommunityID: m.CommunityID,
		SenderID:    m.SenderID,
		SenderName:  m.SenderName,
		Text:        m.Text,
		SentAt:      m.SentAt,
	}
}

func toMessageResponses(msgs []*model.Message) []messageResponse {
	out := make([]messageResponse, len(msgs))
	for i, m := range msgs {
		out[i] = toMessageResponse(m)
	}
	return out
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをデコードする。失敗時はエラーレスポンスを書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := dec.Decode(v); err != nil {
		reason := "JSONの形式が不正です"
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			reason = "リクエストボディが空です"
		case errors.As(err, &maxErr):
			reason = "リクエストボディが大きすぎます"
		}
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(reason))
		return false
	}
	return true
}

// requireUserID はコンテキストからユーザーIDを取得する。取得できなければ401を書き込む。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest,
		model.ErrCodeInvalidEmail,
		model.ErrCodeUsernameTooShort,
		model.ErrCodeUsernameTooLong,
		model.ErrCodePasswordTooShort,
		model.ErrCodeNoInterests,
		model.ErrCodeUnknownInterest,
		model.ErrCodeInvalidResetToken,
		model.ErrCodeCommunityNameTooShort,
		model.ErrCodeEmptyMessage,
		model.ErrCodeMessageTooLong:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeNotAMember, model.ErrCodeCSRFInvalid:
		return http.StatusForbidden
	case model.ErrCodeCommunityNotFound, model.ErrCodeProfileNotFound:
		return http.StatusNotFound
	case model.ErrCodeEmailTaken:
		return http.StatusConflict
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
