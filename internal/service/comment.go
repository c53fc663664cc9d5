package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"commentroom/internal/entitlement"
	"commentroom/internal/metrics"
	"commentroom/internal/models"
	"commentroom/internal/store"

	"github.com/rs/zerolog/log"
)

// Broadcaster 把已持久化的评论推送给在线读者，返回成功投递的会话数。
type Broadcaster interface {
	Dispatch(c *models.Comment, authorName string) int
}

const postLockStripes = 64

// CommentService 是评论写入的唯一入口，HTTP 与 WebSocket 共用。
// 同一帖子的“写入→广播”在同一把条带锁下串行执行，保证广播顺序与持久化顺序一致。
type CommentService struct {
	store *store.Store
	gate  *entitlement.Gate
	bc    Broadcaster
	locks [postLockStripes]sync.Mutex
}

func NewCommentService(s *store.Store, gate *entitlement.Gate, bc Broadcaster) *CommentService {
	return &CommentService{store: s, gate: gate, bc: bc}
}

// CommentDTO 是对外输出的评论数据。
type CommentDTO struct {
	ID                uint      `json:"id"`
	PostID            uint      `json:"post_id"`
	AuthorID          uint      `json:"author_id"`
	AuthorDisplayName string    `json:"author_display_name"`
	Body              string    `json:"body"`
	ParentID          *uint     `json:"parent_id"`
	CreatedAt         time.Time `json:"created_at"`
}

type SubmitInput struct {
	ViewerID uint
	Body     string
	ParentID *uint
	// Via 仅用于指标标签："http" 或 "ws"。
	Via string
}

type SubmitResult struct {
	Comment   CommentDTO
	Delivered int
}

// SubmitToPost 重新加载读者与帖子，重新评估权限，然后写入并广播。
func (s *CommentService) SubmitToPost(ctx context.Context, postID uint, in SubmitInput) (*SubmitResult, error) {
	post, err := s.store.Posts.ByID(ctx, postID)
	if err != nil {
		return nil, hideNotFound(err)
	}
	return s.submit(ctx, post, in)
}

func (s *CommentService) SubmitToSlug(ctx context.Context, slug string, in SubmitInput) (*SubmitResult, error) {
	post, err := s.store.Posts.BySlug(ctx, slug)
	if err != nil {
		return nil, hideNotFound(err)
	}
	return s.submit(ctx, post, in)
}

func (s *CommentService) submit(ctx context.Context, post *models.Post, in SubmitInput) (*SubmitResult, error) {
	viewer, err := s.store.Users.ByID(ctx, in.ViewerID)
	if err != nil {
		return nil, hideNotFound(err)
	}
	if s.gate.Evaluate("write", viewer, post) != entitlement.Allow {
		return nil, ErrNotPermitted
	}

	mu := &s.locks[post.ID%postLockStripes]
	mu.Lock()
	defer mu.Unlock()

	c, err := s.store.Comments.Create(ctx, store.CreateParams{
		PostID:   post.ID,
		AuthorID: viewer.ID,
		Body:     in.Body,
		ParentID: in.ParentID,
	})
	if err != nil {
		return nil, err
	}
	via := in.Via
	if via == "" {
		via = "http"
	}
	metrics.CommentsTotal.WithLabelValues(via).Inc()

	delivered := 0
	if s.bc != nil {
		delivered = s.bc.Dispatch(c, viewer.Username)
	}
	log.Debug().Uint("post_id", post.ID).Uint("comment_id", c.ID).Uint("user_id", viewer.ID).Int("delivered", delivered).Msg("comment created")
	return &SubmitResult{Comment: toDTO(*c, viewer.Username), Delivered: delivered}, nil
}

// List 返回帖子下的评论（扁平、按时间升序），需要 Allow 权限。viewer 为 nil 表示匿名。
func (s *CommentService) List(ctx context.Context, viewer *models.User, slug string) ([]CommentDTO, error) {
	post, err := s.store.Posts.BySlug(ctx, slug)
	if err != nil {
		return nil, hideNotFound(err)
	}
	if s.gate.Evaluate("read", viewer, post) != entitlement.Allow {
		return nil, ErrNotPermitted
	}
	comments, err := s.store.Comments.List(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	return s.withAuthors(ctx, comments)
}

// Delete 软删除评论，只有评论作者本人可以删除。
// 评论不存在与不属于当前用户返回相同的 ErrNotPermitted，避免探测评论 ID。
func (s *CommentService) Delete(ctx context.Context, viewerID, commentID uint) error {
	c, err := s.store.Comments.Get(ctx, commentID)
	if err != nil {
		return hideNotFound(err)
	}
	if c.AuthorID != viewerID {
		return ErrNotPermitted
	}
	return hideNotFound(s.store.Comments.Delete(ctx, commentID))
}

// withAuthors 批量获取评论涉及的用户名。
func (s *CommentService) withAuthors(ctx context.Context, comments []models.Comment) ([]CommentDTO, error) {
	seen := make(map[uint]struct{}, len(comments))
	ids := make([]uint, 0, len(comments))
	for _, c := range comments {
		if _, ok := seen[c.AuthorID]; ok {
			continue
		}
		seen[c.AuthorID] = struct{}{}
		ids = append(ids, c.AuthorID)
	}
	names, err := s.store.Users.Usernames(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]CommentDTO, 0, len(comments))
	for _, c := range comments {
		out = append(out, toDTO(c, names[c.AuthorID]))
	}
	return out, nil
}

func toDTO(c models.Comment, author string) CommentDTO {
	return CommentDTO{
		ID:                c.ID,
		PostID:            c.PostID,
		AuthorID:          c.AuthorID,
		AuthorDisplayName: author,
		Body:              c.Body,
		ParentID:          c.ParentID,
		CreatedAt:         c.CreatedAt,
	}
}

func hideNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotPermitted
	}
	return err
}
