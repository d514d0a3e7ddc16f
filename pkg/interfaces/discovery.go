// Package interfaces 定义 Asinka 公共接口
//
// 本文件定义发现端口。内置实现基于 mDNS/DNS-SD，
// 嵌入方可以用操作系统级服务发现替换。
package interfaces

import (
	"context"

	"github.com/asinka/go-asinka/pkg/types"
)

// Discovery 发现端口
//
// 两个方法都返回事件流通道：ctx 结束或端口关闭时通道关闭。
// 错误以事件形式出现在流中，流本身不中断。
type Discovery interface {
	// Advertise 开始公告本机服务
	//
	// 返回公告事件流。重复调用返回 ErrAlreadyAdvertising。
	Advertise(ctx context.Context) (<-chan types.AdvertiseEvent, error)

	// Discover 开始浏览局域网内的同类服务
	//
	// 返回发现事件流。本机实例（实例名与本机相同，或设备 ID
	// 与本机相同）已被过滤。
	Discover(ctx context.Context) (<-chan types.DiscoveryEvent, error)

	// InstanceName 返回本机公告使用的完整实例名
	InstanceName() string

	// Close 停止公告与浏览，关闭所有事件流
	Close() error
}
