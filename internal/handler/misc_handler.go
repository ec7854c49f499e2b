package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/nakama/internal/model"
)

// HealthChecker はストレージの疎通確認インターフェース。*sql.DBとmemory.Storeが満たす。
type HealthChecker interface {
	Ping() error
}

type healthResponse struct {
	Status string `json:"status"`
}

// NewHealthHandler はヘルスチェックのハンドラーを返す。
// GET /health
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.Ping(); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

type interestsResponse struct {
	Interests []string `json:"interests"`
}

// ListInterests は選択可能な興味タグを返す。
// GET /api/interests
func ListInterests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, interestsResponse{Interests: model.Interests()})
}
