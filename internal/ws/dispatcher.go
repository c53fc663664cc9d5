package ws

import (
	"encoding/json"

	"commentroom/internal/metrics"
	"commentroom/internal/models"

	"github.com/rs/zerolog/log"
)

// Dispatcher 把已持久化的评论推送给房间内的所有会话。尽力而为，不重试。
type Dispatcher struct {
	hub *Hub
}

func NewDispatcher(h *Hub) *Dispatcher { return &Dispatcher{hub: h} }

// Dispatch 只序列化一次，然后把同一份字节投递给调度时刻的成员快照。
// 单个会话投递失败只记录日志，不影响其他会话，也不向调用方返回错误。
func (d *Dispatcher) Dispatch(c *models.Comment, authorName string) int {
	payload, err := json.Marshal(NewCommentEvent(c, authorName))
	if err != nil {
		log.Error().Err(err).Uint("comment_id", c.ID).Msg("marshal comment event")
		return 0
	}
	delivered := 0
	for _, s := range d.hub.Members(c.PostID) {
		if err := s.Send(payload); err != nil {
			metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
			log.Warn().Err(err).Str("session_id", s.ID()).Uint("post_id", c.PostID).Uint("comment_id", c.ID).Msg("deliver comment")
			continue
		}
		metrics.DeliveriesTotal.WithLabelValues("ok").Inc()
		delivered++
	}
	return delivered
}
