package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"commentroom/internal/auth"
	"commentroom/internal/service"
	"commentroom/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Handler 聚合所有 HTTP handler，依赖注入 service 层。
type Handler struct {
	userSvc    *service.UserService
	postSvc    *service.PostService
	commentSvc *service.CommentService
	subSvc     *service.SubscriptionService
}

func NewHandler(userSvc *service.UserService, postSvc *service.PostService, commentSvc *service.CommentService, subSvc *service.SubscriptionService) *Handler {
	return &Handler{userSvc: userSvc, postSvc: postSvc, commentSvc: commentSvc, subSvc: subSvc}
}

// Register 处理用户注册请求。
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if len(req.Username) < 2 || len(req.Username) > 64 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username"})
		return
	}
	if len(req.Password) < 4 || len(req.Password) > 72 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid password"})
		return
	}
	result, err := h.userSvc.Register(c.Request.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		if errors.Is(err, service.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "username taken"})
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("register")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Login 处理用户登录请求。
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.userSvc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("login")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"user":          gin.H{"id": result.User.ID, "username": result.User.Username, "role": result.User.Role},
	})
}

// RefreshToken 处理 token 刷新请求。
func (h *Handler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.userSvc.RefreshTokens(c.Request.Context(), req.RefreshToken)
	if err != nil {
		log.Warn().Err(err).Msg("refresh token")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ViewPost 返回帖子详情：有权限时返回正文和评论树，否则返回 paywall 与预览。
func (h *Handler) ViewPost(c *gin.Context) {
	view, err := h.postSvc.View(c.Request.Context(), auth.GetUser(c), c.Param("slug"))
	if err != nil {
		if errors.Is(err, service.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
			return
		}
		log.Error().Err(err).Str("slug", c.Param("slug")).Msg("view post")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load post"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListComments 返回帖子的扁平评论列表，客户端根据 parent_id 还原层级。
func (h *Handler) ListComments(c *gin.Context) {
	comments, err := h.commentSvc.List(c.Request.Context(), auth.GetUser(c), c.Param("slug"))
	if err != nil {
		h.commentError(c, err, "list comments")
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

// CreateComment 是评论的 HTTP 写入入口，与 WebSocket 入口走同一条 service 路径。
func (h *Handler) CreateComment(c *gin.Context) {
	var req struct {
		Body     string `json:"body"`
		ParentID *uint  `json:"parent_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	res, err := h.commentSvc.SubmitToSlug(c.Request.Context(), c.Param("slug"), service.SubmitInput{
		ViewerID: auth.GetUserID(c),
		Body:     req.Body,
		ParentID: req.ParentID,
		Via:      "http",
	})
	if err != nil {
		h.commentError(c, err, "create comment")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": res.Comment, "delivered": res.Delivered})
}

// DeleteComment 处理评论作者删除自己评论的请求，不存在的评论与他人的评论同样返回 403。
func (h *Handler) DeleteComment(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, strconv.IntSize)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid comment id"})
		return
	}
	if err := h.commentSvc.Delete(c.Request.Context(), auth.GetUserID(c), uint(id)); err != nil {
		h.commentError(c, err, "delete comment")
		return
	}
	c.Status(http.StatusNoContent)
}

// Online 返回帖子房间的在线人数。
func (h *Handler) Online(c *gin.Context) {
	n, err := h.postSvc.Online(c.Request.Context(), auth.GetUser(c), c.Param("slug"))
	if err != nil {
		h.commentError(c, err, "online")
		return
	}
	c.JSON(http.StatusOK, gin.H{"online": n})
}

// Subscribe 为当前用户开通订阅。
func (h *Handler) Subscribe(c *gin.Context) {
	exp, err := h.subSvc.Subscribe(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		log.Error().Err(err).Uint("user_id", auth.GetUserID(c)).Msg("subscribe")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to subscribe"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": true, "expires_at": exp})
}

func (h *Handler) CancelSubscription(c *gin.Context) {
	if err := h.subSvc.Cancel(c.Request.Context(), auth.GetUserID(c)); err != nil {
		log.Error().Err(err).Uint("user_id", auth.GetUserID(c)).Msg("cancel subscription")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel subscription"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": false})
}

// commentError 把 service/store 错误映射为 HTTP 状态码。
func (h *Handler) commentError(c *gin.Context, err error, op string) {
	var verr *store.ValidationError
	switch {
	case errors.Is(err, service.ErrNotPermitted):
		c.JSON(http.StatusForbidden, gin.H{"error": "not permitted"})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid comment", "field": verr.Field, "reason": verr.Reason})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "parent comment not found"})
	default:
		log.Error().Err(err).Str("slug", c.Param("slug")).Msg(op)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
