package asinka

import (
	pkgif "github.com/asinka/go-asinka/pkg/interfaces"
	"github.com/asinka/go-asinka/pkg/types"
)

// ============================================================================
//                              客户端状态
// ============================================================================

// ClientState 客户端生命周期状态
type ClientState int32

const (
	// StateIdle 已创建但尚未启动
	StateIdle ClientState = iota
	// StateStarting 正在启动
	StateStarting
	// StateRunning 运行中
	StateRunning
	// StateStopping 正在停止
	StateStopping
	// StateStopped 已停止（可再次 Start）
	StateStopped
	// StateClosed 已关闭（终态）
	StateClosed
)

// String 返回状态的可读名称
func (s ClientState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              公共类型别名
// ============================================================================

// 核心数据类型，别名到 pkg/types，调用方无需额外 import。
type (
	// Object 带版本号的结构化对象
	Object = types.Object
	// Schema 对象类型描述
	Schema = types.Schema
	// FieldDescriptor Schema 中的单个字段描述
	FieldDescriptor = types.FieldDescriptor
	// Fields 字段名到值的映射
	Fields = types.Fields
	// Value 类型化字段值
	Value = types.Value
	// Event 一次性类型化事件
	Event = types.Event
	// Change 对象变更通知
	Change = types.Change
	// SessionInfo 会话快照
	SessionInfo = types.SessionInfo
	// ServiceInfo 发现到的服务描述
	ServiceInfo = types.ServiceInfo
	// StatsSnapshot 运行统计快照
	StatsSnapshot = types.StatsSnapshot
)

// 事件优先级
const (
	PriorityLow    = types.PriorityLow
	PriorityNormal = types.PriorityNormal
	PriorityHigh   = types.PriorityHigh
	PriorityUrgent = types.PriorityUrgent
)

// 核心端口接口，别名到 pkg/interfaces。
type (
	// Registry 对象注册表
	Registry = pkgif.Registry
	// EventBus 事件总线
	EventBus = pkgif.EventBus
	// Envelope 安全信封
	Envelope = pkgif.Envelope
	// Discovery 服务发现
	Discovery = pkgif.Discovery
	// SessionManager 会话管理器
	SessionManager = pkgif.SessionManager
)
