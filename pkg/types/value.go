package types

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// ============================================================================
//                              Kind - 字段值类型
// ============================================================================

// Kind 字段值的类型标签
type Kind int

const (
	// KindNull 空值
	KindNull Kind = iota
	// KindString 字符串
	KindString
	// KindInt64 64 位整数（int32 在线上统一加宽为 int64）
	KindInt64
	// KindFloat64 64 位浮点数
	KindFloat64
	// KindBool 布尔值
	KindBool
	// KindBytes 字节串
	KindBytes
)

// String 返回类型标签的字符串表示
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindBool:
		return "bool"
	case KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              Value - 带标签的字段值
// ============================================================================

// Value 带类型标签的字段值
//
// 对象字段与事件数据的统一值类型，覆盖六种线上类型：
// string、int64、float64、bool、bytes、null。
// int32 字段在进入 Value 时加宽为 int64，读取时再收窄。
//
// 零值即 Null 值。Value 按值传递，Bytes 类型的底层切片
// 不会被本包修改；调用方如需隔离请使用 Clone。
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	by   []byte
}

// Null 返回空值
func Null() Value {
	return Value{kind: KindNull}
}

// String 构造字符串值
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Int64 构造 int64 值
func Int64(i int64) Value {
	return Value{kind: KindInt64, i: i}
}

// Int32 构造 int32 值（线上加宽为 int64）
func Int32(i int32) Value {
	return Value{kind: KindInt64, i: int64(i)}
}

// Float64 构造 float64 值
func Float64(f float64) Value {
	return Value{kind: KindFloat64, f: f}
}

// Bool 构造布尔值
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Bytes 构造字节串值
func Bytes(by []byte) Value {
	return Value{kind: KindBytes, by: by}
}

// Kind 返回值的类型标签
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull 判断是否为空值
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// AsString 以字符串读取；类型不符时 ok 为 false
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsInt64 以 int64 读取；类型不符时 ok 为 false
func (v Value) AsInt64() (int64, bool) {
	if v.kind != KindInt64 {
		return 0, false
	}
	return v.i, true
}

// AsInt32 以 int32 读取（从线上 int64 收窄）
//
// 类型不符或数值超出 int32 范围时 ok 为 false。
func (v Value) AsInt32() (int32, bool) {
	if v.kind != KindInt64 {
		return 0, false
	}
	if v.i < math.MinInt32 || v.i > math.MaxInt32 {
		return 0, false
	}
	return int32(v.i), true
}

// AsFloat64 以 float64 读取；类型不符时 ok 为 false
func (v Value) AsFloat64() (float64, bool) {
	if v.kind != KindFloat64 {
		return 0, false
	}
	return v.f, true
}

// AsBool 以布尔值读取；类型不符时 ok 为 false
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsBytes 以字节串读取；类型不符时 ok 为 false
//
// 返回底层切片，调用方不应修改。
func (v Value) AsBytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return v.by, true
}

// Equal 判断两个值是否相等（类型与内容都相同）
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.s == other.s
	case KindInt64:
		return v.i == other.i
	case KindFloat64:
		return v.f == other.f
	case KindBool:
		return v.b == other.b
	case KindBytes:
		return bytes.Equal(v.by, other.by)
	default:
		return false
	}
}

// Clone 返回值的深拷贝（Bytes 类型复制底层切片）
func (v Value) Clone() Value {
	if v.kind == KindBytes && v.by != nil {
		dup := make([]byte, len(v.by))
		copy(dup, v.by)
		return Value{kind: KindBytes, by: dup}
	}
	return v
}

// String 返回值的调试字符串
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return strconv.Quote(v.s)
	case KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindFloat64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.by))
	default:
		return "invalid"
	}
}

// ============================================================================
//                              Fields - 字段集合
// ============================================================================

// Fields 对象字段集合
type Fields map[string]Value

// Clone 返回字段集合的深拷贝
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	dup := make(Fields, len(f))
	for k, v := range f {
		dup[k] = v.Clone()
	}
	return dup
}

// Equal 判断两个字段集合是否相等
func (f Fields) Equal(other Fields) bool {
	if len(f) != len(other) {
		return false
	}
	for k, v := range f {
		ov, ok := other[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
