package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleReader = "reader"
	RoleAuthor = "author"

	AccessFree    = "free"
	AccessPremium = "premium"

	StatusDraft     = "draft"
	StatusPublished = "published"
)

type User struct {
	ID                    uint   `gorm:"primaryKey"`
	Username              string `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash          string `gorm:"not null"`
	Role                  string `gorm:"size:16;not null;default:reader"`
	SubscriptionActive    bool   `gorm:"not null;default:false"`
	SubscriptionExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Post struct {
	ID          uint   `gorm:"primaryKey"`
	Slug        string `gorm:"uniqueIndex;size:255;not null"`
	Title       string `gorm:"size:255;not null"`
	Body        string `gorm:"type:text;not null"`
	AuthorID    uint   `gorm:"index;not null"`
	AccessLevel string `gorm:"size:16;not null;default:free"`
	Status      string `gorm:"size:16;not null;default:published"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Comment 的排序键为 (CreatedAt, ID)，ParentID 只能指向同一帖子下更早的评论。
type Comment struct {
	ID        uint           `gorm:"primaryKey"`
	PostID    uint           `gorm:"index:idx_comment_post_created,priority:1;not null"`
	AuthorID  uint           `gorm:"index;not null"`
	ParentID  *uint          `gorm:"index"`
	Body      string         `gorm:"type:text;not null"`
	CreatedAt time.Time      `gorm:"index:idx_comment_post_created,priority:2"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	Token     string    `gorm:"uniqueIndex;size:128;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	RevokedAt *time.Time
	CreatedAt time.Time
}
