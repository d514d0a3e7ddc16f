package config

import (
	"errors"
	"time"
)

// HeartbeatConfig 心跳配置
//
// 每个活跃会话周期性发送心跳探测；连续错过
// MaxMissed 次应答后会话进入关闭流程。
type HeartbeatConfig struct {
	// Interval 心跳间隔
	Interval Duration `json:"interval"`

	// MaxMissed 连续错过多少次应答判定对端失联
	MaxMissed int `json:"max_missed"`
}

// DefaultHeartbeatConfig 返回默认心跳配置
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Interval:  Duration(30 * time.Second),
		MaxMissed: 3,
	}
}

// Validate 验证心跳配置
func (c HeartbeatConfig) Validate() error {
	if c.Interval <= 0 {
		return errors.New("config: heartbeat interval must be positive")
	}
	if c.MaxMissed < 1 {
		return errors.New("config: heartbeat max missed must be at least 1")
	}
	return nil
}
