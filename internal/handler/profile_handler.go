package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/nakama/internal/model"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
	UpdateInterests(ctx context.Context, userID string, interests []string) (*model.Profile, error)
	UpdateUsername(ctx context.Context, userID, username string) (*model.Profile, error)
	Join(ctx context.Context, userID, communityID string) (*model.Profile, error)
	Leave(ctx context.Context, userID, communityID string) (*model.Profile, error)
}

// ProfileHandler はプロフィール関連のHTTPハンドラー。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{service: service}
}

type updateInterestsRequest struct {
	Interests []string `json:"interests"`
}

type updateUsernameRequest struct {
	Username string `json:"username"`
}

// GetProfile はログインユーザーのプロフィールを返す。
// GET /api/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	profile, err := h.service.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// UpdateInterests は興味タグを置き換える。
// PUT /api/profile/interests
func (h *ProfileHandler) UpdateInterests(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateInterestsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	profile, err := h.service.UpdateInterests(r.Context(), userID, req.Interests)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// UpdateUsername はユーザー名を変更する。
// PUT /api/profile/username
func (h *ProfileHandler) UpdateUsername(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateUsernameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	profile, err := h.service.UpdateUsername(r.Context(), userID, req.Username)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}
