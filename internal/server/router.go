package server

import (
	"net/http"
	"time"

	"commentroom/internal/auth"
	"commentroom/internal/config"
	"commentroom/internal/entitlement"
	"commentroom/internal/metrics"
	"commentroom/internal/mw"
	"commentroom/internal/service"
	"commentroom/internal/store"
	"commentroom/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
// HTTP 与实时通道共享同一个 Gate 和 CommentService。
func SetupRouter(cfg config.Config, st *store.Store, hub *ws.Hub) *gin.Engine {
	gate := entitlement.NewGate()
	commentSvc := service.NewCommentService(st, gate, ws.NewDispatcher(hub))
	h := NewHandler(
		service.NewUserService(st.Users, st.Tokens, cfg),
		service.NewPostService(st, gate, hub, cfg.PreviewLength),
		commentSvc,
		service.NewSubscriptionService(st.Users, cfg.SubscriptionDays),
	)
	gw := ws.NewGateway(hub, st, gate, commentSvc, cfg.JWTSecret)
	if cfg.WSSendBuffer > 0 {
		gw.SendBuffer = cfg.WSSendBuffer
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env))
	// 控制单个 IP+路由的速率，评论写入与建连都受限。
	r.Use(mw.RateLimit(rate.Every(time.Second/20), 40))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/refresh", h.RefreshToken)

	// 匿名可读：免费帖子全文、付费帖子预览。
	public := api.Group("")
	public.Use(auth.OptionalAuth(cfg.JWTSecret, st.Users))
	public.GET("/posts/:slug", h.ViewPost)
	public.GET("/posts/:slug/comments", h.ListComments)
	public.GET("/posts/:slug/online", h.Online)

	// 需要 Bearer Token 的业务接口。
	authed := api.Group("")
	authed.Use(auth.AuthMiddleware(cfg.JWTSecret, st.Users))
	authed.POST("/posts/:slug/comments", h.CreateComment)
	authed.DELETE("/comments/:id", h.DeleteComment)
	authed.POST("/subscription", h.Subscribe)
	authed.DELETE("/subscription", h.CancelSubscription)

	r.GET("/ws/posts/:slug", gw.Serve)
	return r
}
