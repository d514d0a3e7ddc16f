package types

import "time"

// ============================================================================
//                              Object - 同步对象
// ============================================================================

// Object 参与同步的结构化对象
//
// 对象以 ID 为主键，Version 从 1 开始单调递增，
// 版本闸门（仅接受严格更大的版本）保证收敛。
// Origin 记录对象最近一次变更来自哪个会话，
// 本地变更的 Origin 为空字符串。
type Object struct {
	// ID 对象唯一标识
	ID string

	// Type 对象类型名（对应 Schema.Name）
	Type string

	// Version 对象版本，从 1 开始，每次更新加 1
	Version uint32

	// Fields 字段集合
	Fields Fields

	// UpdatedAt 最近变更时间
	UpdatedAt time.Time

	// Origin 最近变更的来源会话 ID，本地变更为空
	Origin string
}

// Clone 返回对象的深拷贝
//
// 注册表对外交付的对象都经过 Clone，调用方可自由修改。
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	dup := *o
	dup.Fields = o.Fields.Clone()
	return &dup
}

// GetString 读取字符串字段；字段缺失或类型不符时 ok 为 false
func (o *Object) GetString(name string) (string, bool) {
	v, ok := o.Fields[name]
	if !ok {
		return "", false
	}
	return v.AsString()
}

// GetInt64 读取 int64 字段
func (o *Object) GetInt64(name string) (int64, bool) {
	v, ok := o.Fields[name]
	if !ok {
		return 0, false
	}
	return v.AsInt64()
}

// GetInt32 读取 int32 字段（从线上 int64 收窄）
func (o *Object) GetInt32(name string) (int32, bool) {
	v, ok := o.Fields[name]
	if !ok {
		return 0, false
	}
	return v.AsInt32()
}

// GetFloat64 读取 float64 字段
func (o *Object) GetFloat64(name string) (float64, bool) {
	v, ok := o.Fields[name]
	if !ok {
		return 0, false
	}
	return v.AsFloat64()
}

// GetBool 读取布尔字段
func (o *Object) GetBool(name string) (bool, bool) {
	v, ok := o.Fields[name]
	if !ok {
		return false, false
	}
	return v.AsBool()
}

// GetBytes 读取字节串字段
func (o *Object) GetBytes(name string) ([]byte, bool) {
	v, ok := o.Fields[name]
	if !ok {
		return nil, false
	}
	return v.AsBytes()
}
