package wire

import (
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/asinka/go-asinka/pkg/types"
)

// ============================================================================
//                              编码辅助
// ============================================================================
//
// 遵循 proto3 语义：标量零值不编码（oneof 分支与 repeated
// 元素除外），嵌套消息按出现编码。

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// appendRepeatedString 编码 repeated string（空元素也编码）
func appendRepeatedString(b []byte, num protowire.Number, vs []string) []byte {
	for _, s := range vs {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	return b
}

// appendStringMap 编码 map<string,string>
//
// 按键排序保证确定性输出（与 protobuf deterministic marshal 一致）。
func appendStringMap(b []byte, num protowire.Number, m map[string]string) []byte {
	if len(m) == 0 {
		return b
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var entry []byte
		entry = appendString(entry, 1, k)
		entry = appendString(entry, 2, m[k])
		b = appendMessage(b, num, entry)
	}
	return b
}

// appendValueMap 编码 map<string,TaggedValue>
func appendValueMap(b []byte, num protowire.Number, m map[string]TaggedValue) []byte {
	if len(m) == 0 {
		return b
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var entry []byte
		entry = appendString(entry, 1, k)
		entry = appendMessage(entry, 2, m[k].Marshal())
		b = appendMessage(b, num, entry)
	}
	return b
}

// ============================================================================
//                              消息编码
// ============================================================================

// Marshal 编码 TaggedValue
//
// oneof 分支总是编码（包括零值），未知字段原样追加。
func (v TaggedValue) Marshal() []byte {
	var b []byte
	switch v.Value.Kind() {
	case types.KindString:
		s, _ := v.Value.AsString()
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, s)
	case types.KindInt64:
		i, _ := v.Value.AsInt64()
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(i))
	case types.KindFloat64:
		f, _ := v.Value.AsFloat64()
		b = protowire.AppendTag(b, 3, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(f))
	case types.KindBool:
		bv, _ := v.Value.AsBool()
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		if bv {
			b = protowire.AppendVarint(b, 1)
		} else {
			b = protowire.AppendVarint(b, 0)
		}
	case types.KindBytes:
		by, _ := v.Value.AsBytes()
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, by)
	default:
		b = protowire.AppendTag(b, 6, protowire.VarintType)
		b = protowire.AppendVarint(b, 0)
	}
	return append(b, v.Unknown...)
}

// Marshal 编码 FieldDescriptor
func (f *FieldDescriptor) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, f.Name)
	b = appendVarint(b, 2, uint64(f.Kind))
	b = appendBool(b, 3, f.Nullable)
	return append(b, f.Unknown...)
}

// Marshal 编码 Schema
func (s *Schema) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, s.Name)
	b = appendString(b, 2, s.Version)
	for i := range s.Fields {
		b = appendMessage(b, 3, s.Fields[i].Marshal())
	}
	b = appendRepeatedString(b, 4, s.Permissions)
	return append(b, s.Unknown...)
}

// Marshal 编码 HandshakeRequest
func (m *HandshakeRequest) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.AppID)
	b = appendString(b, 2, m.AppName)
	b = appendString(b, 3, m.AppVersion)
	b = appendString(b, 4, m.DeviceID)
	b = appendBytes(b, 5, m.PublicKey)
	b = appendRepeatedString(b, 6, m.Protocols)
	for i := range m.Schemas {
		b = appendMessage(b, 7, m.Schemas[i].Marshal())
	}
	b = appendStringMap(b, 8, m.Capabilities)
	return append(b, m.Unknown...)
}

// Marshal 编码 HandshakeResponse
func (m *HandshakeResponse) Marshal() []byte {
	var b []byte
	b = appendBool(b, 1, m.Success)
	b = appendString(b, 2, m.SessionID)
	b = appendBytes(b, 3, m.PublicKey)
	for i := range m.Schemas {
		b = appendMessage(b, 4, m.Schemas[i].Marshal())
	}
	b = appendStringMap(b, 5, m.Capabilities)
	b = appendString(b, 6, m.Error)
	b = appendBytes(b, 7, m.SessionKeyBox)
	return append(b, m.Unknown...)
}

// Marshal 编码 ObjectUpdate
func (m *ObjectUpdate) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.ObjectID)
	b = appendString(b, 2, m.ObjectType)
	b = appendVarint(b, 3, uint64(m.Version))
	b = appendVarint(b, 4, uint64(m.TimestampMs))
	b = appendValueMap(b, 5, m.Fields)
	b = appendString(b, 6, m.SessionID)
	return append(b, m.Unknown...)
}

// Marshal 编码 ObjectDelete
func (m *ObjectDelete) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.ObjectID)
	b = appendString(b, 2, m.ObjectType)
	b = appendVarint(b, 3, uint64(m.TimestampMs))
	b = appendString(b, 4, m.SessionID)
	return append(b, m.Unknown...)
}

// Marshal 编码 SyncMessage
func (m *SyncMessage) Marshal() []byte {
	var b []byte
	if m.Update != nil {
		b = appendMessage(b, 1, m.Update.Marshal())
	}
	if m.Delete != nil {
		b = appendMessage(b, 2, m.Delete.Marshal())
	}
	return append(b, m.Unknown...)
}

// Marshal 编码 EventMessage
func (m *EventMessage) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.EventID)
	b = appendString(b, 2, m.EventType)
	b = appendVarint(b, 3, uint64(m.TimestampMs))
	b = appendValueMap(b, 4, m.Data)
	b = appendString(b, 5, m.SessionID)
	b = appendVarint(b, 6, uint64(m.Priority))
	return append(b, m.Unknown...)
}

// Marshal 编码 EventResponse
func (m *EventResponse) Marshal() []byte {
	var b []byte
	b = appendBool(b, 1, m.Success)
	b = appendString(b, 2, m.EventID)
	return append(b, m.Unknown...)
}

// Marshal 编码 HeartbeatRequest
func (m *HeartbeatRequest) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.SessionID)
	b = appendVarint(b, 2, uint64(m.TimestampMs))
	return append(b, m.Unknown...)
}

// Marshal 编码 HeartbeatResponse
func (m *HeartbeatResponse) Marshal() []byte {
	var b []byte
	b = appendBool(b, 1, m.Success)
	b = appendVarint(b, 2, uint64(m.TimestampMs))
	return append(b, m.Unknown...)
}

// Marshal 编码 Envelope
func (m *Envelope) Marshal() []byte {
	var b []byte
	b = appendBytes(b, 1, m.Nonce)
	b = appendBytes(b, 2, m.Ciphertext)
	return append(b, m.Unknown...)
}
