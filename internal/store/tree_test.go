package store

import (
	"errors"
	"strings"
	"testing"
	"time"

	"commentroom/internal/models"

	"gorm.io/gorm"
)

func uptr(v uint) *uint { return &v }

func TestBuildTree(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	comments := []models.Comment{
		{ID: 1, PostID: 1, Body: "root a", CreatedAt: base},
		{ID: 2, PostID: 1, Body: "root b", CreatedAt: base.Add(time.Second)},
		{ID: 3, PostID: 1, Body: "reply a1", ParentID: uptr(1), CreatedAt: base.Add(2 * time.Second)},
		{ID: 4, PostID: 1, Body: "reply a1.1", ParentID: uptr(3), CreatedAt: base.Add(3 * time.Second)},
		{ID: 5, PostID: 1, Body: "reply a2", ParentID: uptr(1), CreatedAt: base.Add(4 * time.Second)},
	}

	roots := BuildTree(comments)
	if len(roots) != 2 {
		t.Fatalf("roots = %d, want 2", len(roots))
	}
	if roots[0].Comment.ID != 1 || roots[1].Comment.ID != 2 {
		t.Errorf("root order = %d,%d, want 1,2", roots[0].Comment.ID, roots[1].Comment.ID)
	}
	a := roots[0]
	if len(a.Replies) != 2 || a.Replies[0].Comment.ID != 3 || a.Replies[1].Comment.ID != 5 {
		t.Fatalf("replies of 1 = %+v", a.Replies)
	}
	if len(a.Replies[0].Replies) != 1 || a.Replies[0].Replies[0].Comment.ID != 4 {
		t.Errorf("nested reply missing under 3")
	}
	if len(roots[1].Replies) != 0 {
		t.Errorf("root b should have no replies")
	}
}

func TestBuildTree_DropsOrphans(t *testing.T) {
	// 评论 1 已删除，不在列表中
	comments := []models.Comment{
		{ID: 2, ParentID: uptr(1)},
		{ID: 3, ParentID: uptr(2)},
		{ID: 4},
	}
	roots := BuildTree(comments)
	if len(roots) != 1 || roots[0].Comment.ID != 4 {
		t.Fatalf("roots = %+v, want only comment 4", roots)
	}
}

func TestBuildTree_Empty(t *testing.T) {
	if roots := BuildTree(nil); roots == nil || len(roots) != 0 {
		t.Errorf("BuildTree(nil) = %v, want empty non-nil slice", roots)
	}
}

func TestNormalizeBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		max     int
		want    string
		wantErr bool
	}{
		{"trimmed", "  hi  ", 10, "hi", false},
		{"empty", "", 10, "", true},
		{"whitespace only", " \n\t ", 10, "", true},
		{"at limit", "abcde", 5, "abcde", false},
		{"over limit", "abcdef", 5, "", true},
		{"runes counted not bytes", "你好", 2, "你好", false},
		{"no limit", strings.Repeat("x", 10000), 0, strings.Repeat("x", 10000), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeBody(tt.body, tt.max)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeBody() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("error %T is not *ValidationError", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("NormalizeBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCheckParent(t *testing.T) {
	ok := &models.Comment{ID: 1, PostID: 7}
	if err := CheckParent(ok, 7); err != nil {
		t.Errorf("same post: %v", err)
	}
	if err := CheckParent(ok, 8); err == nil {
		t.Error("different post should fail")
	}
	deleted := &models.Comment{ID: 1, PostID: 7, DeletedAt: gorm.DeletedAt{Time: time.Now(), Valid: true}}
	if err := CheckParent(deleted, 7); err == nil {
		t.Error("deleted parent should fail")
	}
}

func TestBuildTree_ReplyListedBeforeParent(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	comments := []models.Comment{
		{ID: 2, PostID: 1, Body: "reply", ParentID: uptr(1), CreatedAt: now.Add(-time.Second)},
		{ID: 1, PostID: 1, Body: "root", CreatedAt: now},
		{ID: 3, PostID: 1, Body: "orphan", ParentID: uptr(99), CreatedAt: now},
	}

	roots := BuildTree(comments)
	if len(roots) != 1 || roots[0].Comment.ID != 1 {
		t.Fatalf("roots = %+v, want only comment 1", roots)
	}
	if len(roots[0].Replies) != 1 || roots[0].Replies[0].Comment.ID != 2 {
		t.Errorf("replies of 1 = %+v, want comment 2", roots[0].Replies)
	}
}
