package community

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/nakama/internal/activity"
	"github.com/hitoshi/nakama/internal/metrics"
	"github.com/hitoshi/nakama/internal/model"
	"github.com/hitoshi/nakama/internal/profile"
	"github.com/hitoshi/nakama/internal/repository/memory"
	"github.com/hitoshi/nakama/internal/security"
)

type testEnv struct {
	store    *memory.Store
	profiles *profile.Service
	svc      *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	profiles := profile.NewService(store.Profiles(), store.Accounts(), store.Communities(), security.NewTextSanitizer(), activity.Nop{})
	svc := NewService(
		store.Communities(),
		profiles,
		security.NewTextSanitizer(),
		activity.Nop{},
		metrics.NewCollector(prometheus.NewRegistry()),
	)

	for _, id := range []string{"u1", "u2"} {
		now := time.Now()
		if err := store.Accounts().Create(context.Background(), &model.Account{
			ID: id, Email: id + "@example.com", PasswordHash: "x", CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			t.Fatalf("アカウント作成に失敗: %v", err)
		}
	}
	return &testEnv{store: store, profiles: profiles, svc: svc}
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorが返されるべきです: %v", err)
	}
	if apiErr.Code != code {
		t.Errorf("Code = %q, want %q", apiErr.Code, code)
	}
}

func TestCreate_AutoJoinsCreator(t *testing.T) {
	env := newTestEnv(t)

	c, err := env.svc.Create(context.Background(), "u1", "Rustaceans", "Rust lovers")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if c.Name != "Rustaceans" || c.CreatorID != "u1" || !c.Joined {
		t.Errorf("Create() = %+v", c)
	}
	if c.CreatedAt.IsZero() {
		t.Error("CreatedAtが採番されていません")
	}

	member, err := env.profiles.IsMember(context.Background(), "u1", c.ID)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if !member {
		t.Error("作成者がコミュニティに参加していません")
	}
}

func TestCreate_NameValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"2文字", "ab", true},
		{"空白のみ", "      ", true},
		{"前後空白で2文字", "  ab  ", true},
		{"タグのみ", "<b></b>", true},
		{"3文字", "abc", false},
		{"前後空白付き", "  Gophers  ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.svc.Create(context.Background(), "u1", tt.input, "")
			if tt.wantErr {
				assertAPIErrorCode(t, err, model.ErrCodeCommunityNameTooShort)
				list, _ := env.store.Communities().List(context.Background())
				if len(list) != 0 {
					t.Errorf("検証エラー時に保存されました: %d件", len(list))
				}
				return
			}
			if err != nil {
				t.Fatalf("予期しないエラー: %v", err)
			}
		})
	}
}

func TestCreate_SanitizesMarkup(t *testing.T) {
	env := newTestEnv(t)

	c, err := env.svc.Create(context.Background(), "u1", "<b>Gophers</b>", `<script>alert(1)</script>Go & friends`)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if c.Name != "Gophers" {
		t.Errorf("Name = %q, want %q", c.Name, "Gophers")
	}
	if c.Description != "Go & friends" {
		t.Errorf("Description = %q, want %q", c.Description, "Go & friends")
	}
}

func TestList_NewestFirstWithJoined(t *testing.T) {
	env := newTestEnv(t)
	first, _ := env.svc.Create(context.Background(), "u1", "First", "")
	second, _ := env.svc.Create(context.Background(), "u2", "Second", "")

	list, err := env.svc.List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("順序が作成日時の降順ではありません: %s, %s", list[0].Name, list[1].Name)
	}
	if list[0].Joined {
		t.Error("u1はSecondに参加していません")
	}
	if !list[1].Joined {
		t.Error("u1はFirstに参加済みです")
	}
}

func TestList_Empty(t *testing.T) {
	env := newTestEnv(t)

	list, err := env.svc.List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("List() = %v, want empty", list)
	}
}

func TestGet(t *testing.T) {
	env := newTestEnv(t)
	created, _ := env.svc.Create(context.Background(), "u1", "Rustaceans", "")

	got, err := env.svc.Get(context.Background(), "u2", created.ID)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if got.Name != "Rustaceans" || got.Joined {
		t.Errorf("Get() = %+v", got)
	}

	_, err = env.svc.Get(context.Background(), "u2", "missing")
	assertAPIErrorCode(t, err, model.ErrCodeCommunityNotFound)
}
