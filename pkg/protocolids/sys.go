package protocolids

import (
	"strings"

	"github.com/asinka/go-asinka/pkg/types"
)

// ============================================================================
// 协议版本名（握手协商用）
// ============================================================================

// ProtocolV1 当前协议版本名
//
// 握手请求携带发起方支持的版本列表，接受方取交集；
// 交集为空即拒绝握手。
const ProtocolV1 = "asinka-v1"

// SupportedProtocols 返回本实现支持的协议版本列表
//
// 返回新切片，调用方可自由修改。
func SupportedProtocols() []string {
	return []string{ProtocolV1}
}

// ProtocolSupported 判断版本名是否受本实现支持
func ProtocolSupported(name string) bool {
	return name == ProtocolV1
}

// ============================================================================
// 通道前缀常量
// ============================================================================

// SysPrefix 系统通道前缀，所有内置通道以此开头
const SysPrefix = "/asinka/sys/"

// ============================================================================
// 系统通道 ID（/asinka/sys/...）
// ============================================================================

// SysHandshake 握手通道：连接建立后的第一个请求/应答交换
const SysHandshake types.ChannelID = "/asinka/sys/handshake/1.0.0"

// SysSync 同步通道：会话期的双向对象变更流
const SysSync types.ChannelID = "/asinka/sys/sync/1.0.0"

// SysEvent 事件通道：单次事件投递（请求/应答）
const SysEvent types.ChannelID = "/asinka/sys/event/1.0.0"

// SysHeartbeat 心跳通道：周期性存活探测（请求/应答）
const SysHeartbeat types.ChannelID = "/asinka/sys/heartbeat/1.0.0"

// ============================================================================
// 工具函数
// ============================================================================

// IsSystemChannel 检查通道 ID 是否为系统通道
func IsSystemChannel(id types.ChannelID) bool {
	return strings.HasPrefix(string(id), SysPrefix)
}

// AllChannels 返回全部系统通道 ID
//
// 返回新切片，调用方可自由修改。主要供统计与测试使用。
func AllChannels() []types.ChannelID {
	return []types.ChannelID{SysHandshake, SysSync, SysEvent, SysHeartbeat}
}
