package service

import (
	"context"
	"errors"

	"commentroom/internal/entitlement"
	"commentroom/internal/models"
	"commentroom/internal/store"
)

// OnlineCounter 报告帖子房间当前在线人数。
type OnlineCounter interface {
	Online(postID uint) int
}

// PostService 为页面渲染提供与实时通道相同的权限判定。
type PostService struct {
	store         *store.Store
	gate          *entitlement.Gate
	online        OnlineCounter
	previewLength int
}

func NewPostService(s *store.Store, gate *entitlement.Gate, online OnlineCounter, previewLength int) *PostService {
	return &PostService{store: s, gate: gate, online: online, previewLength: previewLength}
}

type CommentNode struct {
	CommentDTO
	Replies []*CommentNode `json:"replies"`
}

// PageView 是帖子详情页的数据。Paywall 为 true 时只返回 Preview，不返回正文与评论。
type PageView struct {
	ID          uint           `json:"id"`
	Slug        string         `json:"slug"`
	Title       string         `json:"title"`
	AccessLevel string         `json:"access_level"`
	Decision    string         `json:"decision"`
	Paywall     bool           `json:"paywall"`
	Preview     string         `json:"preview,omitempty"`
	Body        string         `json:"body,omitempty"`
	Online      int            `json:"online"`
	Comments    []*CommentNode `json:"comments"`
}

// View 对草稿或不存在的帖子统一返回 ErrPostNotFound。
func (s *PostService) View(ctx context.Context, viewer *models.User, slug string) (*PageView, error) {
	post, err := s.store.Posts.BySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	decision := s.gate.Evaluate("page", viewer, post)
	if decision == entitlement.Deny {
		return nil, ErrPostNotFound
	}
	view := &PageView{
		ID:          post.ID,
		Slug:        post.Slug,
		Title:       post.Title,
		AccessLevel: post.AccessLevel,
		Decision:    decision.String(),
		Comments:    []*CommentNode{},
	}
	if decision == entitlement.Preview {
		view.Paywall = true
		view.Preview = entitlement.PreviewText(post.Body, s.previewLength)
		return view, nil
	}
	view.Body = post.Body
	if s.online != nil {
		view.Online = s.online.Online(post.ID)
	}

	comments, err := s.store.Comments.List(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.AuthorID)
	}
	names, err := s.store.Users.Usernames(ctx, ids)
	if err != nil {
		return nil, err
	}
	view.Comments = toNodes(store.BuildTree(comments), names)
	return view, nil
}

// Online 返回帖子房间在线人数，需要 Allow 权限。
func (s *PostService) Online(ctx context.Context, viewer *models.User, slug string) (int, error) {
	post, err := s.store.Posts.BySlug(ctx, slug)
	if err != nil {
		return 0, hideNotFound(err)
	}
	if s.gate.Evaluate("read", viewer, post) != entitlement.Allow {
		return 0, ErrNotPermitted
	}
	if s.online == nil {
		return 0, nil
	}
	return s.online.Online(post.ID), nil
}

func toNodes(tree []*store.Node, names map[uint]string) []*CommentNode {
	out := make([]*CommentNode, 0, len(tree))
	for _, n := range tree {
		out = append(out, &CommentNode{
			CommentDTO: toDTO(n.Comment, names[n.Comment.AuthorID]),
			Replies:    toNodes(n.Replies, names),
		})
	}
	return out
}
