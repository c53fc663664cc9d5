package service

import (
	"context"
	"time"

	"commentroom/internal/store"
)

// SubscriptionService 处理付费订阅。已加入房间的会话不会因订阅到期被踢出，
// 但到期后的新写入会被拒绝。
type SubscriptionService struct {
	users store.Users
	days  int
	now   func() time.Time
}

func NewSubscriptionService(users store.Users, days int) *SubscriptionService {
	return &SubscriptionService{users: users, days: days, now: time.Now}
}

// Subscribe 把订阅有效期设置为从现在起 days 天，返回到期时间。
func (s *SubscriptionService) Subscribe(ctx context.Context, userID uint) (time.Time, error) {
	exp := s.now().Add(time.Duration(s.days) * 24 * time.Hour)
	if err := s.users.SetSubscription(ctx, userID, true, &exp); err != nil {
		return time.Time{}, err
	}
	return exp, nil
}

func (s *SubscriptionService) Cancel(ctx context.Context, userID uint) error {
	return s.users.SetSubscription(ctx, userID, false, nil)
}
