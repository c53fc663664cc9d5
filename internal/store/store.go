// Package store 定义评论系统依赖的持久化接口。
//
// 帖子和读者数据由外部子系统维护，这里只做一致性读取；
// 评论由本系统创建，写入成功后才允许广播。
package store

import (
	"context"
	"errors"
	"time"

	"commentroom/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

// ValidationError 表示输入不合法，评论未被写入。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Reason }

func invalid(field, reason string) error { return &ValidationError{Field: field, Reason: reason} }

type Posts interface {
	ByID(ctx context.Context, id uint) (*models.Post, error)
	BySlug(ctx context.Context, slug string) (*models.Post, error)
}

type Users interface {
	ByID(ctx context.Context, id uint) (*models.User, error)
	ByUsername(ctx context.Context, username string) (*models.User, error)
	// Usernames 批量解析展示名，缺失的 ID 不出现在结果中。
	Usernames(ctx context.Context, ids []uint) (map[uint]string, error)
	Create(ctx context.Context, u *models.User) error
	SetSubscription(ctx context.Context, id uint, active bool, expiresAt *time.Time) error
}

type CreateParams struct {
	PostID   uint
	AuthorID uint
	Body     string
	ParentID *uint
}

type Comments interface {
	Create(ctx context.Context, p CreateParams) (*models.Comment, error)
	// List 返回未删除的评论，按 (created_at, id) 升序。
	List(ctx context.Context, postID uint) ([]models.Comment, error)
	Get(ctx context.Context, id uint) (*models.Comment, error)
	Delete(ctx context.Context, id uint) error
}

// Tokens 保存 refresh token。Rotate 原子地吊销旧 token 并写入新 token。
type Tokens interface {
	Save(ctx context.Context, userID uint, token string, expiresAt time.Time) error
	Rotate(ctx context.Context, oldToken, newToken string, expiresAt time.Time) (userID uint, err error)
}

// Store 聚合所有仓储，便于在 postgres 与 memory 实现间切换。
type Store struct {
	Posts    Posts
	Users    Users
	Comments Comments
	Tokens   Tokens
}
