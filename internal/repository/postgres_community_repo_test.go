package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hitoshi/nakama/internal/model"
)

func TestPostgresCommunityRepo_List_NewestFirst(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresCommunityRepo(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM communities\s+ORDER BY created_at DESC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "creator_id", "created_at"}).
			AddRow("c-2", "Gophers", "", "u-1", now).
			AddRow("c-1", "Rustaceans", "crabs", "u-2", now.Add(-time.Hour)))

	list, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 || list[0].ID != "c-2" || list[1].Description != "crabs" {
		t.Fatalf("list = %+v", list)
	}
}

func TestPostgresCommunityRepo_List_EmptyIsNonNil(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresCommunityRepo(db)

	mock.ExpectQuery(`SELECT .+ FROM communities`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "creator_id", "created_at"}))

	list, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list == nil {
		t.Error("expected empty non-nil slice")
	}
}

func TestPostgresCommunityRepo_Create_ReturnsCreatedAt(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresCommunityRepo(db)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO communities .+ RETURNING created_at`).
		WithArgs("c-1", "Rustaceans", "crabs", "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	c := &model.Community{ID: "c-1", Name: "Rustaceans", Description: "crabs", CreatorID: "u-1"}
	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", c.CreatedAt, created)
	}
}

func TestPostgresCommunityRepo_FindByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresCommunityRepo(db)

	const id = "7d7c9a64-3f52-4c1b-9a57-0d1f1a8b2c11"
	mock.ExpectQuery(`SELECT .+ FROM communities WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	c, err := repo.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != nil {
		t.Errorf("community = %+v, want nil", c)
	}
}

func TestPostgresCommunityRepo_FindByID_MalformedIDSkipsQuery(t *testing.T) {
	// 期待していないクエリが発行されるとsqlmockがエラーを返す
	db, _ := newMockDB(t)
	repo := NewPostgresCommunityRepo(db)

	for _, id := range []string{"abc", "", "1; DROP TABLE communities"} {
		c, err := repo.FindByID(context.Background(), id)
		if err != nil {
			t.Fatalf("FindByID(%q) unexpected error: %v", id, err)
		}
		if c != nil {
			t.Errorf("FindByID(%q) = %+v, want nil", id, c)
		}
	}
}
