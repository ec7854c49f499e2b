package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/nakama/internal/community"
)

// CommunityServiceInterface はコミュニティハンドラーが必要とするサービスインターフェース。
type CommunityServiceInterface interface {
	List(ctx context.Context, userID string) ([]*community.Listing, error)
	Get(ctx context.Context, userID, communityID string) (*community.Listing, error)
	Create(ctx context.Context, userID, name, description string) (*community.Listing, error)
}

// CommunityHandler はコミュニティの一覧・作成・参加のHTTPハンドラー。
// 参加と退出はプロフィールの更新として扱う。
type CommunityHandler struct {
	service  CommunityServiceInterface
	profiles ProfileServiceInterface
}

// NewCommunityHandler はCommunityHandlerを生成する。
func NewCommunityHandler(service CommunityServiceInterface, profiles ProfileServiceInterface) *CommunityHandler {
	return &CommunityHandler{
		service:  service,
		profiles: profiles,
	}
}

type createCommunityRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListCommunities は全コミュニティを新しい順に返す。
// GET /api/communities
func (h *CommunityHandler) ListCommunities(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	listings, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]communityResponse, len(listings))
	for i, l := range listings {
		resp[i] = toCommunityResponse(l)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateCommunity はコミュニティを作成する。作成者は自動的に参加する。
// POST /api/communities
func (h *CommunityHandler) CreateCommunity(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createCommunityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	listing, err := h.service.Create(r.Context(), userID, req.Name, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommunityResponse(listing))
}

// GetCommunity はコミュニティの詳細を返す。
// GET /api/communities/{id}
func (h *CommunityHandler) GetCommunity(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	listing, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommunityResponse(listing))
}

// JoinCommunity はコミュニティに参加する。参加済みの場合も成功する。
// POST /api/communities/{id}/join
func (h *CommunityHandler) JoinCommunity(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	profile, err := h.profiles.Join(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// LeaveCommunity はコミュニティから退出する。
// DELETE /api/communities/{id}/join
func (h *CommunityHandler) LeaveCommunity(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	profile, err := h.profiles.Leave(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}
