package config

import "errors"

// BufferConfig 缓冲配置
//
// 注册表变更订阅与事件订阅都使用有界缓冲：缓冲满时
// 丢弃最旧的条目并计数，发布方永不阻塞。
type BufferConfig struct {
	// ChangeBuffer 每个对象变更订阅的缓冲大小
	ChangeBuffer int `json:"change_buffer"`

	// EventBuffer 每个事件订阅的缓冲大小
	EventBuffer int `json:"event_buffer"`
}

// DefaultBufferConfig 返回默认缓冲配置
func DefaultBufferConfig() BufferConfig {
	return BufferConfig{
		ChangeBuffer: 16,
		EventBuffer:  64,
	}
}

// Validate 验证缓冲配置
func (c BufferConfig) Validate() error {
	if c.ChangeBuffer < 1 {
		return errors.New("config: change buffer must be at least 1")
	}
	if c.EventBuffer < 1 {
		return errors.New("config: event buffer must be at least 1")
	}
	return nil
}
