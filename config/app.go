package config

import "errors"

// AppConfig 应用配置
//
// 标识运行在本进程里的应用：应用 ID 在握手与发现公告中
// 交换，能力列表与对象 Schema 一起在握手时声明。
type AppConfig struct {
	// ID 应用 ID（如 "com.example.notes"），必填
	ID string `json:"id"`

	// Name 应用显示名
	Name string `json:"name"`

	// Version 应用版本（自由格式）
	Version string `json:"version"`

	// DeviceID 设备 ID
	// 为空时启动阶段自动生成 UUID；同一设备上的多个进程
	// 应配置不同的设备 ID
	DeviceID string `json:"device_id,omitempty"`

	// Capabilities 能力声明（令牌 → 值），随握手交换
	Capabilities map[string]string `json:"capabilities,omitempty"`
}

// DefaultAppConfig 返回默认应用配置
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Name:    "asinka",
		Version: "0.0.0",
	}
}

// Validate 验证应用配置
func (c AppConfig) Validate() error {
	if c.ID == "" {
		return errors.New("config: app id is required")
	}
	return nil
}
