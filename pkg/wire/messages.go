package wire

import "github.com/asinka/go-asinka/pkg/types"

// ============================================================================
//                              TaggedValue
// ============================================================================

// TaggedValue 带类型标签的字段值（线上结构）
//
// 字段号（oneof kind，冻结）：
//
//	1 string_value (string)   2 int64_value (int64)
//	3 double_value (double)   4 bool_value (bool)
//	5 bytes_value (bytes)     6 null_value (varint 0)
//
// 未知的 kind 字段号在应用层读为 null，但字节原样保留在
// Unknown 中，重新编码时不丢失。
type TaggedValue struct {
	// Value 解码后的值；未知 kind 时为 Null
	Value types.Value

	// Unknown 未识别字段的原始字节
	Unknown []byte
}

// ============================================================================
//                              Schema
// ============================================================================

// FieldDescriptor 模式字段描述（线上结构）
//
// 字段号（冻结）：1 name  2 kind  3 nullable
//
// kind 枚举值与 types.FieldKind 一致：
// 0 STRING  1 INT32  2 INT64  3 FLOAT64  4 BOOL  5 BYTES
type FieldDescriptor struct {
	Name     string
	Kind     types.FieldKind
	Nullable bool

	Unknown []byte
}

// Schema 对象模式（线上结构）
//
// 字段号（冻结）：1 name  2 version  3 fields  4 permissions
type Schema struct {
	Name        string
	Version     string
	Fields      []FieldDescriptor
	Permissions []string

	Unknown []byte
}

// ============================================================================
//                              握手消息
// ============================================================================

// HandshakeRequest 握手请求
//
// 字段号（冻结）：
//
//	1 app_id        2 app_name      3 app_version   4 device_id
//	5 public_key    6 protocols     7 schemas       8 capabilities
type HandshakeRequest struct {
	AppID      string
	AppName    string
	AppVersion string
	DeviceID   string

	// PublicKey 发起方身份公钥（PKIX DER）
	PublicKey []byte

	// Protocols 发起方支持的协议版本名
	Protocols []string

	// Schemas 发起方声明的对象模式
	Schemas []Schema

	// Capabilities 发起方能力表
	Capabilities map[string]string

	Unknown []byte
}

// HandshakeResponse 握手应答
//
// 字段号（冻结）：
//
//	1 success       2 session_id    3 public_key    4 schemas
//	5 capabilities  6 error         7 session_key
//
// session_key 是接受方生成的 256 位会话密钥，用发起方公钥
// RSA-OAEP(SHA-256) 封装后的密文。
type HandshakeResponse struct {
	Success   bool
	SessionID string

	// PublicKey 接受方身份公钥（PKIX DER）
	PublicKey []byte

	Schemas      []Schema
	Capabilities map[string]string

	// Error 拒绝原因（Success 为 false 时有效）
	Error string

	// SessionKeyBox 封装后的会话密钥
	SessionKeyBox []byte

	Unknown []byte
}

// ============================================================================
//                              同步消息
// ============================================================================

// ObjectUpdate 对象创建/更新
//
// 字段号（冻结）：
//
//	1 object_id   2 object_type   3 version   4 timestamp_ms
//	5 fields      6 session_id
type ObjectUpdate struct {
	ObjectID    string
	ObjectType  string
	Version     uint32
	TimestampMs int64
	Fields      map[string]TaggedValue
	SessionID   string

	Unknown []byte
}

// ObjectDelete 对象删除
//
// 字段号（冻结）：1 object_id  2 object_type  3 timestamp_ms  4 session_id
type ObjectDelete struct {
	ObjectID    string
	ObjectType  string
	TimestampMs int64
	SessionID   string

	Unknown []byte
}

// SyncMessage 同步通道上的一条消息
//
// 字段号（oneof，冻结）：1 update  2 delete
//
// Update 与 Delete 恰有一个非 nil；两者都为 nil 的消息
// 编码为空字节串，解码侧用 Validate 拒绝。
type SyncMessage struct {
	Update *ObjectUpdate
	Delete *ObjectDelete

	Unknown []byte
}

// Validate 检查 oneof 恰有一个分支
func (m *SyncMessage) Validate() error {
	if (m.Update == nil) == (m.Delete == nil) {
		return ErrEmptySync
	}
	return nil
}

// ============================================================================
//                              事件消息
// ============================================================================

// EventMessage 事件投递
//
// 字段号（冻结）：
//
//	1 event_id   2 event_type   3 timestamp_ms
//	4 data       5 session_id   6 priority
type EventMessage struct {
	EventID     string
	EventType   string
	TimestampMs int64
	Data        map[string]TaggedValue
	SessionID   string
	Priority    int32

	Unknown []byte
}

// EventResponse 事件投递应答
//
// 字段号（冻结）：1 success  2 event_id
type EventResponse struct {
	Success bool
	EventID string

	Unknown []byte
}

// ============================================================================
//                              心跳消息
// ============================================================================

// HeartbeatRequest 心跳请求
//
// 字段号（冻结）：1 session_id  2 timestamp_ms
type HeartbeatRequest struct {
	SessionID   string
	TimestampMs int64

	Unknown []byte
}

// HeartbeatResponse 心跳应答
//
// 字段号（冻结）：1 success  2 timestamp_ms
type HeartbeatResponse struct {
	Success     bool
	TimestampMs int64

	Unknown []byte
}

// ============================================================================
//                              加密信封
// ============================================================================

// Envelope 加密载荷信封
//
// 握手完成后，同步与事件通道上的消息先序列化、再经
// AES-256-GCM 封装为 Envelope 传输。
//
// 字段号（冻结）：1 nonce（12 字节） 2 ciphertext
type Envelope struct {
	Nonce      []byte
	Ciphertext []byte

	Unknown []byte
}
