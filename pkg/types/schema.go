package types

// ============================================================================
//                              Schema - 对象模式
// ============================================================================

// FieldKind 模式字段类型
//
// 与 Kind 的区别：模式层面区分 int32 与 int64，
// 线上传输时 int32 统一加宽为 int64。
type FieldKind int

const (
	// FieldString 字符串字段
	FieldString FieldKind = iota
	// FieldInt32 32 位整数字段（线上加宽为 int64）
	FieldInt32
	// FieldInt64 64 位整数字段
	FieldInt64
	// FieldFloat64 64 位浮点字段
	FieldFloat64
	// FieldBool 布尔字段
	FieldBool
	// FieldBytes 字节串字段
	FieldBytes
)

// String 返回字段类型的字符串表示
func (fk FieldKind) String() string {
	switch fk {
	case FieldString:
		return "string"
	case FieldInt32:
		return "int32"
	case FieldInt64:
		return "int64"
	case FieldFloat64:
		return "float64"
	case FieldBool:
		return "bool"
	case FieldBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// FieldDescriptor 模式中的单个字段描述
type FieldDescriptor struct {
	// Name 字段名
	Name string

	// Kind 字段类型
	Kind FieldKind

	// Nullable 是否允许空值
	Nullable bool
}

// Schema 对象模式
//
// 握手阶段双方交换各自支持的模式列表。模式只作声明与
// 诊断用途：注册表对未知类型与未知字段保持宽容，
// 不做强制校验。
type Schema struct {
	// Name 模式名（即对象类型名）
	Name string

	// Version 模式版本（语义化版本字符串）
	Version string

	// Fields 字段描述列表
	Fields []FieldDescriptor

	// Permissions 权限令牌（仅随握手透传，核心不做强制）
	Permissions []string
}

// FieldByName 按名称查找字段描述；未找到时 ok 为 false
func (s Schema) FieldByName(name string) (FieldDescriptor, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}
