// Package gormstore 是基于 gorm + Postgres 的仓储实现。
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commentroom/internal/models"
	"commentroom/internal/store"

	"gorm.io/gorm"
)

func New(db *gorm.DB, maxBody int) *store.Store {
	return &store.Store{
		Posts:    NewPostRepository(db),
		Users:    NewUserRepository(db),
		Comments: NewCommentRepository(db, maxBody),
		Tokens:   NewTokenRepository(db),
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}

type PostRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) *PostRepository { return &PostRepository{db: db} }

func (r *PostRepository) ByID(ctx context.Context, id uint) (*models.Post, error) {
	var p models.Post
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *PostRepository) BySlug(ctx context.Context, slug string) (*models.Post, error) {
	var p models.Post
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository { return &UserRepository{db: db} }

func (r *UserRepository) ByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *UserRepository) ByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *UserRepository) Usernames(ctx context.Context, ids []uint) (map[uint]string, error) {
	out := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Select("id", "username").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("resolve usernames: %w", err)
	}
	for _, u := range users {
		out[u.ID] = u.Username
	}
	return out, nil
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	if u.Role == "" {
		u.Role = models.RoleReader
	}
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) SetSubscription(ctx context.Context, id uint, active bool, expiresAt *time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"subscription_active":     active,
		"subscription_expires_at": expiresAt,
	})
	if res.Error != nil {
		return fmt.Errorf("set subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CommentRepository 依赖数据库事务保证父评论校验与插入的原子性。
// 回复的 CreatedAt 不早于父评论，时钟回拨时也保证按 (created_at, id) 排序父评论在前。
type CommentRepository struct {
	db      *gorm.DB
	maxBody int
	now     func() time.Time
}

func NewCommentRepository(db *gorm.DB, maxBody int) *CommentRepository {
	return &CommentRepository{db: db, maxBody: maxBody, now: time.Now}
}

func (r *CommentRepository) Create(ctx context.Context, p store.CreateParams) (*models.Comment, error) {
	body, err := store.NormalizeBody(p.Body, r.maxBody)
	if err != nil {
		return nil, err
	}
	c := models.Comment{PostID: p.PostID, AuthorID: p.AuthorID, Body: body, ParentID: p.ParentID, CreatedAt: r.now()}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if p.ParentID != nil {
			var parent models.Comment
			// Unscoped 以便区分“已删除”和“不存在”
			if err := tx.Unscoped().Select("id", "post_id", "created_at", "deleted_at").First(&parent, *p.ParentID).Error; err != nil {
				return notFound(err)
			}
			if err := store.CheckParent(&parent, p.PostID); err != nil {
				return err
			}
			if c.CreatedAt.Before(parent.CreatedAt) {
				c.CreatedAt = parent.CreatedAt
			}
		}
		return tx.Create(&c).Error
	})
	if err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) || errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return &c, nil
}

func (r *CommentRepository) List(ctx context.Context, postID uint) ([]models.Comment, error) {
	var out []models.Comment
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at asc, id asc").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return out, nil
}

func (r *CommentRepository) Get(ctx context.Context, id uint) (*models.Comment, error) {
	var c models.Comment
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *CommentRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Comment{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete comment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository { return &TokenRepository{db: db} }

func (r *TokenRepository) Save(ctx context.Context, userID uint, token string, expiresAt time.Time) error {
	rt := models.RefreshToken{UserID: userID, Token: token, ExpiresAt: expiresAt}
	return r.db.WithContext(ctx).Create(&rt).Error
}

// Rotate 在一个事务中校验、吊销旧 token 并保存新 token。
func (r *TokenRepository) Rotate(ctx context.Context, oldToken, newToken string, expiresAt time.Time) (uint, error) {
	var userID uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.RefreshToken
		now := time.Now()
		err := tx.Where("token = ? AND revoked_at IS NULL AND expires_at > ?", oldToken, now).First(&rec).Error
		if err != nil {
			return notFound(err)
		}
		if err := tx.Model(&models.RefreshToken{}).Where("id = ?", rec.ID).Update("revoked_at", &now).Error; err != nil {
			return err
		}
		next := models.RefreshToken{UserID: rec.UserID, Token: newToken, ExpiresAt: expiresAt}
		if err := tx.Create(&next).Error; err != nil {
			return err
		}
		userID = rec.UserID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return userID, nil
}
