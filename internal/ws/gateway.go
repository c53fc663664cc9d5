package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"commentroom/internal/auth"
	"commentroom/internal/entitlement"
	"commentroom/internal/service"
	"commentroom/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	nanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
)

// Gateway 终结每个实时连接：认证、权限判定、加入房间，并处理同一连接上提交的评论。
type Gateway struct {
	hub      *Hub
	store    *store.Store
	gate     *entitlement.Gate
	comments *service.CommentService
	secret   string

	SendBuffer   int
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	SubmitWait   time.Duration
	ReadLimit    int64

	upgrader websocket.Upgrader
}

func NewGateway(h *Hub, s *store.Store, gate *entitlement.Gate, comments *service.CommentService, secret string) *Gateway {
	return &Gateway{
		hub:          h,
		store:        s,
		gate:         gate,
		comments:     comments,
		secret:       secret,
		SendBuffer:   256,
		PingInterval: 30 * time.Second,
		PongWait:     60 * time.Second,
		WriteWait:    10 * time.Second,
		SubmitWait:   5 * time.Second,
		ReadLimit:    64 << 10,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve 处理 GET /ws/posts/:slug。未通过权限判定的连接在升级前被拒绝，不会出现在任何房间中。
// 帖子不存在与无权访问返回相同响应。
func (g *Gateway) Serve(c *gin.Context) {
	slug := c.Param("slug")
	viewer, err := auth.Authenticate(c, g.secret, g.store.Users)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	post, err := g.store.Posts.BySlug(c.Request.Context(), slug)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Error().Err(err).Str("slug", slug).Msg("ws load post")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	// post 为 nil 时 Evaluate 返回 Deny
	if g.gate.Evaluate("join", viewer, post) != entitlement.Allow {
		c.JSON(http.StatusForbidden, gin.H{"error": "not permitted"})
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	id, err := nanoid.New()
	if err != nil {
		log.Error().Err(err).Msg("ws session id")
		_ = conn.Close()
		return
	}
	client := newClient(id, post.ID, viewer.ID, viewer.Username, g.hub, conn, g.SendBuffer)
	if !g.hub.Join(post.ID, client) {
		// 服务正在关闭
		client.Close()
		return
	}
	log.Info().Str("session_id", id).Uint("post_id", post.ID).Uint("user_id", viewer.ID).Msg("ws joined")

	go client.writePump(g.PingInterval, g.WriteWait)
	g.readPump(client)
	log.Info().Str("session_id", id).Uint("post_id", post.ID).Uint("user_id", viewer.ID).Msg("ws closed")
}

func (g *Gateway) readPump(c *Client) {
	defer c.Close()
	c.conn.SetReadLimit(g.ReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(g.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(g.PongWait))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("session_id", c.id).Msg("ws read")
			}
			return
		}
		var in InboundMessage
		if err := json.Unmarshal(data, &in); err != nil || (in.Type != "" && in.Type != TypeComment) {
			_ = c.Send(errorFrame("unsupported message"))
			continue
		}
		g.submit(c, in)
	}
}

// submit 每次写入都经过 CommentService，重新加载读者与帖子并重新评估权限；
// 订阅在连接期间到期时，连接保留但新评论被拒绝。
func (g *Gateway) submit(c *Client, in InboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), g.SubmitWait)
	defer cancel()
	_, err := g.comments.SubmitToPost(ctx, c.postID, service.SubmitInput{
		ViewerID: c.userID,
		Body:     in.Body,
		ParentID: in.ParentID,
		Via:      "ws",
	})
	if err == nil {
		return
	}
	var verr *store.ValidationError
	switch {
	case errors.Is(err, service.ErrNotPermitted):
		_ = c.Send(errorFrame("not permitted"))
	case errors.As(err, &verr):
		_ = c.Send(errorFrame("invalid comment: " + verr.Error()))
	case errors.Is(err, store.ErrNotFound):
		_ = c.Send(errorFrame("parent comment not found"))
	default:
		log.Error().Err(err).Str("session_id", c.id).Uint("post_id", c.postID).Msg("ws submit comment")
		_ = c.Send(errorFrame("failed to post comment"))
	}
}

// Shutdown 关闭所有在线会话，用于进程优雅退出。
func (g *Gateway) Shutdown() { g.hub.Shutdown() }
