package types

import "time"

// ============================================================================
//                              SessionPhase - 会话阶段
// ============================================================================

// SessionPhase 会话所处阶段
//
// 合法迁移：
//
//	Connecting → HandshakingOut → Active
//	HandshakingIn → Active
//	Active → Closing
//	任意阶段 → Failed
type SessionPhase int32

const (
	// PhaseConnecting 出站拨号中
	PhaseConnecting SessionPhase = iota
	// PhaseHandshakingOut 出站握手进行中
	PhaseHandshakingOut
	// PhaseHandshakingIn 入站握手进行中
	PhaseHandshakingIn
	// PhaseActive 会话活跃，同步与事件通道就绪
	PhaseActive
	// PhaseClosing 会话关闭中
	PhaseClosing
	// PhaseFailed 会话失败终态
	PhaseFailed
)

// String 返回会话阶段的字符串表示
func (p SessionPhase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseHandshakingOut:
		return "handshaking_out"
	case PhaseHandshakingIn:
		return "handshaking_in"
	case PhaseActive:
		return "active"
	case PhaseClosing:
		return "closing"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal 判断是否为终态（不再迁移）
func (p SessionPhase) Terminal() bool {
	return p == PhaseFailed
}

// ============================================================================
//                              SessionInfo - 会话信息
// ============================================================================

// SessionInfo 会话的对外快照
//
// 由会话管理器在查询时生成，修改快照不影响会话本身。
type SessionInfo struct {
	// ID 会话 ID（握手时由接受方分配的 UUID）
	ID string

	// Phase 当前阶段
	Phase SessionPhase

	// RemoteAppID 对端应用 ID
	RemoteAppID string

	// RemoteAppName 对端应用名
	RemoteAppName string

	// RemoteAppVersion 对端应用版本
	RemoteAppVersion string

	// RemoteDeviceID 对端设备 ID
	RemoteDeviceID string

	// RemoteFingerprint 对端身份指纹（公钥摘要的 base58）
	RemoteFingerprint string

	// RemoteAddr 对端网络地址（host:port）
	RemoteAddr string

	// RemoteSchemas 对端声明的对象模式
	RemoteSchemas []Schema

	// Capabilities 对端能力表
	Capabilities map[string]string

	// EstablishedAt 会话进入 Active 的时间
	EstablishedAt time.Time
}
