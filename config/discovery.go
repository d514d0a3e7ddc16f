package config

import (
	"errors"
	"time"
)

// DiscoveryConfig 服务发现配置
//
// 内置提供方基于 DNS-SD（mDNS）在局域网内公告与浏览
// "_asinka._tcp" 服务。嵌入方可以通过根包的 WithDiscovery
// 换成自己的提供方，此时本配置只有 Service 字段仍然参与
// 实例名构造。
type DiscoveryConfig struct {
	// Enabled 是否启用发现
	// 关闭后只能通过 Connect 手动建立会话
	Enabled bool `json:"enabled"`

	// Service 服务名，参与实例名（"asinka-<service>-<8hex>"）
	Service string `json:"service"`

	// Domain 浏览域，局域网固定 "local"
	Domain string `json:"domain"`

	// AnnounceInterval 周期性重新公告的间隔
	AnnounceInterval Duration `json:"announce_interval"`
}

// DefaultDiscoveryConfig 返回默认发现配置
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		Enabled:          true,
		Service:          "default-sync",
		Domain:           "local",
		AnnounceInterval: Duration(60 * time.Second),
	}
}

// Validate 验证发现配置
func (c DiscoveryConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Service == "" {
		return errors.New("config: discovery service name is required")
	}
	if c.AnnounceInterval <= 0 {
		return errors.New("config: announce interval must be positive")
	}
	return nil
}
