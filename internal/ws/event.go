package ws

import (
	"encoding/json"
	"time"

	"commentroom/internal/models"
)

const (
	TypeComment = "comment"
	TypeError   = "error"
)

// CommentEvent 是新评论的线上格式，每条评论一条消息，不做批量合并。
type CommentEvent struct {
	Type              string    `json:"type"`
	PostID            uint      `json:"post_id"`
	CommentID         uint      `json:"comment_id"`
	AuthorDisplayName string    `json:"author_display_name"`
	Body              string    `json:"body"`
	ParentID          *uint     `json:"parent_id"`
	CreatedAt         time.Time `json:"created_at"`
}

func NewCommentEvent(c *models.Comment, authorName string) CommentEvent {
	return CommentEvent{
		Type:              TypeComment,
		PostID:            c.PostID,
		CommentID:         c.ID,
		AuthorDisplayName: authorName,
		Body:              c.Body,
		ParentID:          c.ParentID,
		CreatedAt:         c.CreatedAt,
	}
}

// InboundMessage 是客户端通过同一连接提交的评论。
type InboundMessage struct {
	Type     string `json:"type"`
	Body     string `json:"body"`
	ParentID *uint  `json:"parent_id"`
}

type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func errorFrame(msg string) []byte {
	b, _ := json.Marshal(ErrorMessage{Type: TypeError, Error: msg})
	return b
}
