package config

import (
	"errors"
	"time"
)

// 传输层默认值
const (
	// DefaultMaxMessageSize 单帧载荷上限（4 MiB）
	DefaultMaxMessageSize = 4 << 20

	// MinMessageSize 允许配置的最小单帧上限（64 KiB）
	MinMessageSize = 64 << 10
)

// TransportConfig 传输层配置
//
// Asinka 在 TCP 之上做多路复用，每条逻辑通道一条流。
// 这里集中了监听、拨号与流治理的全部参数。
type TransportConfig struct {
	// Port 监听端口，0 表示随机端口，默认 8888
	Port int `json:"port"`

	// MaxMessageSize 单帧载荷上限（字节）
	// 超限的出站消息被拒绝，超限的入站帧导致流中断
	MaxMessageSize int `json:"max_message_size"`

	// DialTimeout 拨号超时
	DialTimeout Duration `json:"dial_timeout"`

	// KeepAliveInterval 多路复用层保活间隔
	KeepAliveInterval Duration `json:"keep_alive_interval"`

	// KeepAliveTimeout 多路复用层保活应答超时
	KeepAliveTimeout Duration `json:"keep_alive_timeout"`

	// IdleTimeout 连接空闲回收阈值
	IdleTimeout Duration `json:"idle_timeout"`

	// DrainTimeout 优雅关闭时等待在途帧的时长
	DrainTimeout Duration `json:"drain_timeout"`

	// UnaryTimeout 单次请求/应答交换（握手、事件、心跳）的超时
	UnaryTimeout Duration `json:"unary_timeout"`

	// NoDelay 是否禁用 Nagle 算法
	NoDelay bool `json:"no_delay"`
}

// DefaultPort 默认监听端口
const DefaultPort = 8888

// DefaultTransportConfig 返回默认传输配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Port:              DefaultPort,
		MaxMessageSize:    DefaultMaxMessageSize,
		DialTimeout:       Duration(10 * time.Second),
		KeepAliveInterval: Duration(30 * time.Second),
		KeepAliveTimeout:  Duration(10 * time.Second),
		IdleTimeout:       Duration(5 * time.Minute),
		DrainTimeout:      Duration(5 * time.Second),
		UnaryTimeout:      Duration(5 * time.Second),
		NoDelay:           true,
	}
}

// Validate 验证传输配置
func (c TransportConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.New("config: port must be in [0, 65535]")
	}
	if c.MaxMessageSize < MinMessageSize {
		return errors.New("config: max message size must be at least 64 KiB")
	}
	if c.DialTimeout <= 0 {
		return errors.New("config: dial timeout must be positive")
	}
	if c.KeepAliveInterval <= 0 || c.KeepAliveTimeout <= 0 {
		return errors.New("config: keep alive intervals must be positive")
	}
	if c.IdleTimeout <= 0 {
		return errors.New("config: idle timeout must be positive")
	}
	if c.DrainTimeout <= 0 {
		return errors.New("config: drain timeout must be positive")
	}
	if c.UnaryTimeout <= 0 {
		return errors.New("config: unary timeout must be positive")
	}
	return nil
}
