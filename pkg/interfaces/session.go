// Package interfaces 定义 Asinka 公共接口
//
// 本文件定义会话管理器接口。
package interfaces

import (
	"context"

	"github.com/asinka/go-asinka/pkg/types"
)

// SessionManager 会话管理器
//
// 持有会话表并驱动每个会话的出站泵、入站泵与心跳。
// 发现流中的新对端自动拨号；Connect 用于显式拨号。
type SessionManager interface {
	// Connect 显式连接到对端并完成握手
	//
	// addr 为 "host:port"。返回进入 Active 的会话快照。
	Connect(ctx context.Context, addr string) (types.SessionInfo, error)

	// Disconnect 主动关闭会话
	//
	// 会话不存在时返回 ErrSessionNotFound。
	Disconnect(sessionID string) error

	// Sessions 返回全部 Active 会话的快照
	Sessions() []types.SessionInfo

	// Session 按 ID 查询会话快照（任意阶段）
	Session(sessionID string) (types.SessionInfo, bool)
}
