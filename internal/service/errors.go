package service

import "errors"

// 业务层通用错误，handler 可根据错误类型映射到合适的 HTTP 状态码。
// ErrNotPermitted 不区分“帖子不存在”和“无权访问”，防止枚举付费内容。
var (
	ErrUsernameTaken      = errors.New("username taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotPermitted       = errors.New("not permitted")
	ErrPostNotFound       = errors.New("post not found")
)
