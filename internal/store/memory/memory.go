// Package memory 提供进程内仓储实现，用于测试和 STORE_DRIVER=memory。
package memory

import (
	"context"
	"sync"
	"time"

	"commentroom/internal/models"
	"commentroom/internal/store"
)

func New(maxBody int) *store.Store {
	return &store.Store{
		Posts:    NewPostRepository(),
		Users:    NewUserRepository(),
		Comments: NewCommentRepository(maxBody),
		Tokens:   NewTokenRepository(),
	}
}

type PostRepository struct {
	mu     sync.RWMutex
	posts  map[uint]models.Post
	nextID uint
}

func NewPostRepository() *PostRepository {
	return &PostRepository{posts: make(map[uint]models.Post)}
}

// Put 插入或覆盖帖子，ID 为 0 时自动分配。帖子由外部子系统维护，这里仅供装载数据。
func (r *PostRepository) Put(p *models.Post) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		r.nextID++
		p.ID = r.nextID
	} else if p.ID > r.nextID {
		r.nextID = p.ID
	}
	r.posts[p.ID] = *p
}

func (r *PostRepository) ByID(ctx context.Context, id uint) (*models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (r *PostRepository) BySlug(ctx context.Context, slug string) (*models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.posts {
		if p.Slug == slug {
			p := p
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

type UserRepository struct {
	mu     sync.RWMutex
	users  map[uint]models.User
	nextID uint
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[uint]models.User)}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return store.ErrDuplicate
		}
	}
	if u.ID == 0 {
		r.nextID++
		u.ID = r.nextID
	} else if u.ID > r.nextID {
		r.nextID = u.ID
	}
	if u.Role == "" {
		u.Role = models.RoleReader
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	r.users[u.ID] = *u
	return nil
}

func (r *UserRepository) ByID(ctx context.Context, id uint) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepository) ByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *UserRepository) Usernames(ctx context.Context, ids []uint) (map[uint]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[uint]string, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out[id] = u.Username
		}
	}
	return out, nil
}

func (r *UserRepository) SetSubscription(ctx context.Context, id uint, active bool, expiresAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.SubscriptionActive = active
	if expiresAt != nil {
		exp := *expiresAt
		u.SubscriptionExpiresAt = &exp
	} else {
		u.SubscriptionExpiresAt = nil
	}
	u.UpdatedAt = time.Now()
	r.users[id] = u
	return nil
}

// CommentRepository 以单把锁串行化写入，保证 ID 与 CreatedAt 同时单调递增。
type CommentRepository struct {
	mu       sync.RWMutex
	maxBody  int
	comments []models.Comment
	byID     map[uint]int
	nextID   uint
	last     time.Time
	now      func() time.Time
}

func NewCommentRepository(maxBody int) *CommentRepository {
	return &CommentRepository{maxBody: maxBody, byID: make(map[uint]int), now: time.Now}
}

func (r *CommentRepository) Create(ctx context.Context, p store.CreateParams) (*models.Comment, error) {
	body, err := store.NormalizeBody(p.Body, r.maxBody)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ParentID != nil {
		idx, ok := r.byID[*p.ParentID]
		if !ok {
			return nil, store.ErrNotFound
		}
		if err := store.CheckParent(&r.comments[idx], p.PostID); err != nil {
			return nil, err
		}
	}
	ts := r.now()
	if ts.Before(r.last) {
		ts = r.last
	}
	r.last = ts
	r.nextID++
	c := models.Comment{
		ID:        r.nextID,
		PostID:    p.PostID,
		AuthorID:  p.AuthorID,
		Body:      body,
		CreatedAt: ts,
	}
	if p.ParentID != nil {
		parent := *p.ParentID
		c.ParentID = &parent
	}
	r.byID[c.ID] = len(r.comments)
	r.comments = append(r.comments, c)
	return &c, nil
}

func (r *CommentRepository) List(ctx context.Context, postID uint) ([]models.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	// 追加顺序即 (CreatedAt, ID) 顺序
	out := make([]models.Comment, 0)
	for _, c := range r.comments {
		if c.PostID == postID && !c.DeletedAt.Valid {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *CommentRepository) Get(ctx context.Context, id uint) (*models.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.byID[id]
	if !ok || r.comments[idx].DeletedAt.Valid {
		return nil, store.ErrNotFound
	}
	c := r.comments[idx]
	return &c, nil
}

func (r *CommentRepository) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.byID[id]
	if !ok || r.comments[idx].DeletedAt.Valid {
		return store.ErrNotFound
	}
	r.comments[idx].DeletedAt.Time = r.now()
	r.comments[idx].DeletedAt.Valid = true
	return nil
}

type TokenRepository struct {
	mu     sync.Mutex
	tokens map[string]models.RefreshToken
}

func NewTokenRepository() *TokenRepository {
	return &TokenRepository{tokens: make(map[string]models.RefreshToken)}
}

func (r *TokenRepository) Save(ctx context.Context, userID uint, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[token]; ok {
		return store.ErrDuplicate
	}
	r.tokens[token] = models.RefreshToken{UserID: userID, Token: token, ExpiresAt: expiresAt, CreatedAt: time.Now()}
	return nil
}

func (r *TokenRepository) Rotate(ctx context.Context, oldToken, newToken string, expiresAt time.Time) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	rec, ok := r.tokens[oldToken]
	if !ok || rec.RevokedAt != nil || !rec.ExpiresAt.After(now) {
		return 0, store.ErrNotFound
	}
	rec.RevokedAt = &now
	r.tokens[oldToken] = rec
	r.tokens[newToken] = models.RefreshToken{UserID: rec.UserID, Token: newToken, ExpiresAt: expiresAt, CreatedAt: now}
	return rec.UserID, nil
}
