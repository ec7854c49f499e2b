package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/nakama/internal/model"
)

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *model.APIError
		want int
	}{
		{model.NewInvalidRequestError("x"), http.StatusBadRequest},
		{model.NewInvalidEmailError(), http.StatusBadRequest},
		{model.NewUsernameTooShortError(), http.StatusBadRequest},
		{model.NewUsernameTooLongError(), http.StatusBadRequest},
		{model.NewUnknownInterestError("Cobol"), http.StatusBadRequest},
		{model.NewCommunityNameTooShortError(), http.StatusBadRequest},
		{model.NewEmptyMessageError(), http.StatusBadRequest},
		{model.NewMessageTooLongError(), http.StatusBadRequest},
		{model.NewUnauthorizedError(), http.StatusUnauthorized},
		{model.NewInvalidCredentialsError(), http.StatusUnauthorized},
		{model.NewNotAMemberError(), http.StatusForbidden},
		{model.NewCSRFInvalidError(), http.StatusForbidden},
		{model.NewCommunityNotFoundError("c1"), http.StatusNotFound},
		{model.NewProfileNotFoundError(), http.StatusNotFound},
		{model.NewEmailTakenError(), http.StatusConflict},
		{model.NewRateLimitedError(), http.StatusTooManyRequests},
		{model.NewInternalError(), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
				t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tt.err.Code, got, tt.want)
			}
		})
	}
}

func TestHandleServiceError_WrappedAPIError(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, fmt.Errorf("join: %w", model.NewNotAMemberError()))

	assertErrorCode(t, w, http.StatusForbidden, model.ErrCodeNotAMember)
}

func TestHandleServiceError_PlainError_HidesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, errors.New("pq: connection refused"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if strings.Contains(w.Body.String(), "pq:") {
		t.Error("内部エラーの詳細をレスポンスに含めてはならない")
	}
}

func TestDecodeJSON_TooLarge_ReturnsBadRequest(t *testing.T) {
	body := `{"text":"` + strings.Repeat("a", maxRequestBodyBytes) + `"}`
	req := jsonRequest(http.MethodPost, "/", body)
	w := httptest.NewRecorder()

	var v sendMessageRequest
	if decodeJSON(w, req, &v) {
		t.Fatal("上限を超えるボディはデコードに失敗すべき")
	}
	assertErrorCode(t, w, http.StatusBadRequest, model.ErrCodeInvalidRequest)
}

func TestToProfileResponse_NilSlicesBecomeEmpty(t *testing.T) {
	resp := toProfileResponse(&model.Profile{ID: "u1", Username: "alice"})
	if resp.Interests == nil || resp.Communities == nil {
		t.Errorf("nil slices should be converted to empty: %+v", resp)
	}
}
