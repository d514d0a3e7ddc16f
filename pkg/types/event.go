package types

import "time"

// ============================================================================
//                              Priority - 事件优先级
// ============================================================================

// Priority 事件优先级
//
// 优先级随事件透传给接收方，核心不做基于优先级的调度。
type Priority int32

const (
	// PriorityLow 低优先级（后台通知）
	PriorityLow Priority = 0
	// PriorityNormal 普通优先级（默认）
	PriorityNormal Priority = 1
	// PriorityHigh 高优先级
	PriorityHigh Priority = 2
	// PriorityUrgent 紧急优先级
	PriorityUrgent Priority = 3
)

// String 返回优先级的字符串表示
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "unknown"
	}
}

// Valid 判断优先级是否在已知范围内
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityUrgent
}

// ============================================================================
//                              Event - 类型化事件
// ============================================================================

// Event 类型化事件
//
// 事件是一次性的通知，不参与版本闸门，按发送顺序尽力
// 投递到所有活跃会话。Origin 记录事件来自哪个会话，
// 本地发送的事件 Origin 为空。
type Event struct {
	// ID 事件唯一标识（UUID）
	ID string

	// Type 事件类型名，观察者按类型过滤
	Type string

	// Timestamp 事件产生时间
	Timestamp time.Time

	// Data 事件数据
	Data Fields

	// Priority 事件优先级
	Priority Priority

	// Origin 来源会话 ID，本地事件为空
	Origin string
}

// Clone 返回事件的深拷贝
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	dup := *e
	dup.Data = e.Data.Clone()
	return &dup
}

// IsRemote 判断事件是否来自远端会话
func (e *Event) IsRemote() bool {
	return e.Origin != ""
}
