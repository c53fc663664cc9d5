// Package entitlement 决定读者能否查看某篇帖子及其实时评论流。
//
// HTTP 页面渲染、WebSocket 加入和评论写入都调用同一个 Evaluate，
// 避免不同入口的权限策略出现分歧。
package entitlement

import (
	"time"

	"commentroom/internal/metrics"
	"commentroom/internal/models"
)

type Decision int

const (
	Deny Decision = iota
	Preview
	Allow
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Preview:
		return "preview"
	default:
		return "deny"
	}
}

// Evaluate 是纯函数：viewer 为 nil 表示匿名读者。
func Evaluate(viewer *models.User, post *models.Post, now time.Time) Decision {
	if post == nil || post.Status != models.StatusPublished {
		return Deny
	}
	if post.AccessLevel == models.AccessFree {
		return Allow
	}
	if viewer == nil {
		return Preview
	}
	if viewer.ID == post.AuthorID {
		return Allow
	}
	if Subscribed(viewer, now) {
		return Allow
	}
	return Preview
}

// Subscribed 报告订阅在 now 时刻是否有效；未设置到期时间的订阅视为无效。
func Subscribed(viewer *models.User, now time.Time) bool {
	if viewer == nil || !viewer.SubscriptionActive || viewer.SubscriptionExpiresAt == nil {
		return false
	}
	return !now.After(*viewer.SubscriptionExpiresAt)
}

// Gate 为 Evaluate 注入时钟并记录决策指标。
type Gate struct {
	Now func() time.Time
}

func NewGate() *Gate { return &Gate{Now: time.Now} }

// Evaluate 中的 path 仅用于指标标签，例如 "page"、"join"、"write"。
func (g *Gate) Evaluate(path string, viewer *models.User, post *models.Post) Decision {
	now := time.Now
	if g != nil && g.Now != nil {
		now = g.Now
	}
	d := Evaluate(viewer, post, now())
	metrics.GateDecisionsTotal.WithLabelValues(path, d.String()).Inc()
	return d
}

// PreviewText 按字符截取正文前 n 个字符，被截断时追加省略号。
func PreviewText(body string, n int) string {
	if n <= 0 {
		return "..."
	}
	count := 0
	for i := range body {
		if count == n {
			return body[:i] + "..."
		}
		count++
	}
	return body
}
