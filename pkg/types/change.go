package types

import "time"

// ============================================================================
//                              Change - 对象变更
// ============================================================================

// ChangeKind 变更类型
type ChangeKind int

const (
	// ChangeUpdate 对象创建或更新
	ChangeUpdate ChangeKind = iota
	// ChangeDelete 对象删除
	ChangeDelete
)

// String 返回变更类型的字符串表示
func (ck ChangeKind) String() string {
	switch ck {
	case ChangeUpdate:
		return "update"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Change 注册表的一次对象变更
//
// 注册表向观察者与会话层交付的统一变更记录。
// Update 变更携带变更后对象的快照；Delete 变更只携带
// 对象 ID 与类型。同一对象 ID 的变更按发生顺序交付。
type Change struct {
	// Kind 变更类型
	Kind ChangeKind

	// ObjectID 对象 ID（两种变更都有）
	ObjectID string

	// ObjectType 对象类型（两种变更都有）
	ObjectType string

	// Object 变更后对象快照，仅 Update 变更携带
	Object *Object

	// Version 变更后版本，仅 Update 变更有意义
	Version uint32

	// Timestamp 变更时间
	Timestamp time.Time

	// Origin 变更来源会话 ID，本地变更为空
	Origin string
}
