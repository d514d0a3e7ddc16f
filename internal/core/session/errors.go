package session

import "errors"

var (
	// ErrSessionNotFound 会话不存在
	ErrSessionNotFound = errors.New("session not found")

	// ErrManagerClosed 管理器已关闭
	ErrManagerClosed = errors.New("session manager closed")

	// ErrDuplicateSession 会话 ID 已存在
	ErrDuplicateSession = errors.New("duplicate session id")

	// ErrHeartbeatLost 连续心跳失败
	ErrHeartbeatLost = errors.New("heartbeat lost")
)
