// Package config 提供统一的配置管理
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义
//   - 支持从 JSON 加载和保存配置
//
// 身份私钥不走配置文件，由嵌入方通过 asinka.WithIdentity
// 在运行时注入。
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.App.ID = "com.example.notes"
//	cfg.Transport.Port = 7655
//
//	// 从 JSON 加载
//	cfg, err := config.FromJSON(data)
package config

import (
	"encoding/json"
	"fmt"
)

// Config 是 Asinka 的完整配置结构
//
// 配置按照功能模块组织：
//   - App: 应用标识与能力声明
//   - Transport: 传输层（TCP + 多路复用）
//   - Heartbeat: 会话心跳
//   - Discovery: 局域网服务发现
//   - Buffers: 观察者缓冲
type Config struct {
	// App 应用配置
	App AppConfig `json:"app"`

	// Transport 传输层配置
	Transport TransportConfig `json:"transport"`

	// Heartbeat 心跳配置
	Heartbeat HeartbeatConfig `json:"heartbeat"`

	// Discovery 服务发现配置
	Discovery DiscoveryConfig `json:"discovery"`

	// Buffers 缓冲配置
	Buffers BufferConfig `json:"buffers"`
}

// NewConfig 创建默认配置
//
// 返回的配置使用所有组件的默认值，适用于大多数场景。
// 可以通过修改字段或使用根包的 Option 函数来定制配置。
func NewConfig() *Config {
	return &Config{
		App:       DefaultAppConfig(),
		Transport: DefaultTransportConfig(),
		Heartbeat: DefaultHeartbeatConfig(),
		Discovery: DefaultDiscoveryConfig(),
		Buffers:   DefaultBufferConfig(),
	}
}

// Validate 验证配置的有效性
//
// 检查所有子配置是否有效，如果发现无效配置则返回错误。
// 建议在使用配置前调用此方法。
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	if err := c.Heartbeat.Validate(); err != nil {
		return err
	}
	if err := c.Discovery.Validate(); err != nil {
		return err
	}
	if err := c.Buffers.Validate(); err != nil {
		return err
	}
	return nil
}

// FromJSON 从 JSON 数据解析配置
//
// 未出现在 JSON 中的字段保持默认值。
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse json: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToJSON 把配置序列化为带缩进的 JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
