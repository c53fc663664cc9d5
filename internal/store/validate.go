package store

import (
	"strings"
	"unicode/utf8"

	"commentroom/internal/models"
)

// NormalizeBody 去除首尾空白并校验长度，两个实现共用同一规则。
func NormalizeBody(body string, maxLen int) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", invalid("body", "must not be empty")
	}
	if maxLen > 0 && utf8.RuneCountInString(body) > maxLen {
		return "", invalid("body", "too long")
	}
	return body, nil
}

// CheckParent 校验父评论属于同一帖子且未被删除。
func CheckParent(parent *models.Comment, postID uint) error {
	if parent.PostID != postID {
		return invalid("parent_id", "belongs to a different post")
	}
	if parent.DeletedAt.Valid {
		return invalid("parent_id", "has been deleted")
	}
	return nil
}
