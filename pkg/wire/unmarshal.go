package wire

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/asinka/go-asinka/pkg/types"
)

// ============================================================================
//                              解码辅助
// ============================================================================

// consumeString 读取长度定界字段为字符串
func consumeString(data []byte) (string, int, error) {
	v, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return "", 0, ErrMalformed
	}
	return string(v), n, nil
}

// consumeBytes 读取长度定界字段并复制
//
// ConsumeBytes 返回的是输入的子切片，留存字段必须复制，
// 避免与调用方复用的读缓冲共享内存。
func consumeBytes(data []byte) ([]byte, int, error) {
	v, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return nil, 0, ErrMalformed
	}
	dup := make([]byte, len(v))
	copy(dup, v)
	return dup, n, nil
}

func consumeVarint(data []byte) (uint64, int, error) {
	v, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return 0, 0, ErrMalformed
	}
	return v, n, nil
}

func consumeFixed64(data []byte) (uint64, int, error) {
	v, n := protowire.ConsumeFixed64(data)
	if n < 0 {
		return 0, 0, ErrMalformed
	}
	return v, n, nil
}

// consumeUnknown 跳过一个未识别字段并把原始字节追加到 unknown
func consumeUnknown(num protowire.Number, typ protowire.Type, data, unknown []byte) ([]byte, int, error) {
	n := protowire.ConsumeFieldValue(num, typ, data)
	if n < 0 {
		return unknown, 0, ErrMalformed
	}
	unknown = protowire.AppendTag(unknown, num, typ)
	unknown = append(unknown, data[:n]...)
	return unknown, n, nil
}

// consumeStringMapEntry 解码一个 map<string,string> 条目
func consumeStringMapEntry(entry []byte) (key, value string, err error) {
	for len(entry) > 0 {
		num, typ, n := protowire.ConsumeTag(entry)
		if n < 0 {
			return "", "", ErrMalformed
		}
		entry = entry[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			key, n, err = consumeString(entry)
		case num == 2 && typ == protowire.BytesType:
			value, n, err = consumeString(entry)
		default:
			n = protowire.ConsumeFieldValue(num, typ, entry)
			if n < 0 {
				err = ErrMalformed
			}
		}
		if err != nil {
			return "", "", err
		}
		entry = entry[n:]
	}
	return key, value, nil
}

// consumeValueMapEntry 解码一个 map<string,TaggedValue> 条目
func consumeValueMapEntry(entry []byte) (key string, value TaggedValue, err error) {
	for len(entry) > 0 {
		num, typ, n := protowire.ConsumeTag(entry)
		if n < 0 {
			return "", TaggedValue{}, ErrMalformed
		}
		entry = entry[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			key, n, err = consumeString(entry)
		case num == 2 && typ == protowire.BytesType:
			var raw []byte
			raw, n = protowire.ConsumeBytes(entry)
			if n < 0 {
				err = ErrMalformed
			} else {
				err = value.Unmarshal(raw)
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, entry)
			if n < 0 {
				err = ErrMalformed
			}
		}
		if err != nil {
			return "", TaggedValue{}, err
		}
		entry = entry[n:]
	}
	return key, value, nil
}

// ============================================================================
//                              消息解码
// ============================================================================

// Unmarshal 解码 TaggedValue
//
// oneof 语义：同一消息出现多个分支时，最后一个生效。
// 未知字段号读为 null 并保留原始字节。
func (v *TaggedValue) Unmarshal(data []byte) error {
	*v = TaggedValue{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ErrMalformed
		}
		data = data[n:]
		var err error
		switch {
		case num == 1 && typ == protowire.BytesType:
			var s string
			s, n, err = consumeString(data)
			v.Value = types.String(s)
		case num == 2 && typ == protowire.VarintType:
			var u uint64
			u, n, err = consumeVarint(data)
			v.Value = types.Int64(int64(u))
		case num == 3 && typ == protowire.Fixed64Type:
			var u uint64
			u, n, err = consumeFixed64(data)
			v.Value = types.Float64(math.Float64frombits(u))
		case num == 4 && typ == protowire.VarintType:
			var u uint64
			u, n, err = consumeVarint(data)
			v.Value = types.Bool(u != 0)
		case num == 5 && typ == protowire.BytesType:
			var by []byte
			by, n, err = consumeBytes(data)
			v.Value = types.Bytes(by)
		case num == 6 && typ == protowire.VarintType:
			_, n, err = consumeVarint(data)
			v.Value = types.Null()
		default:
			v.Unknown, n, err = consumeUnknown(num, typ, data, v.Unknown)
		}
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// Unmarshal 解码 FieldDescriptor
func (f *FieldDescriptor) Unmarshal(data []byte) error {
	*f = FieldDescriptor{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ErrMalformed
		}
		data = data[n:]
		var err error
		switch {
		case num == 1 && typ == protowire.BytesType:
			f.Name, n, err = consumeString(data)
		case num == 2 && typ == protowire.VarintType:
			var u uint64
			u, n, err = consumeVarint(data)
			f.Kind = types.FieldKind(u)
		case num == 3 && typ == protowire.VarintType:
			var u uint64
			u, n, err = consumeVarint(data)
			f.Nullable = u != 0
		default:
			f.Unknown, n, err = consumeUnknown(num, typ, data, f.Unknown)
		}
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// Unmarshal 解码 Schema
func (s *Schema) Unmarshal(data []byte) error {
	*s = Schema{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ErrMalformed
		}
		data = data[n:]
		var err error
		switch {
		case num == 1 && typ == protowire.BytesType:
			s.Name, n, err = consumeString(data)
		case num == 2 && typ == protowire.BytesType:
			s.Version, n, err = consumeString(data)
		case num == 3 && typ == protowire.BytesType:
			var raw []byte
			raw, n = protowire.ConsumeBytes(data)
			if n < 0 {
				err = ErrMalformed
			} else {
				var fd FieldDescriptor
				if err = fd.Unmarshal(raw); err == nil {
					s.Fields = append(s.Fields, fd)
				}
			}
		case num == 4 && typ == protowire.BytesType:
			var p string
			p, n, err = consumeString(data)
			s.Permissions = append(s.Permissions, p)
		default:
			s.Unknown, n, err = consumeUnknown(num, typ, data, s.Unknown)
		}
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// Unmarshal 解码 HandshakeRequest
func (m *HandshakeRequest) Unmarshal(data []byte) error {
	*m = HandshakeRequest{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ErrMalformed
		}
		data = data[n:]
		var err error
		switch {
		case num == 1 && typ == protowire.BytesType:
			m.AppID, n, err = consumeString(data)
		case num == 2 && typ == protowire.BytesType:
			m.AppName, n, err = consumeString(data)
		case num == 3 && typ == protowire.BytesType:
			m.AppVersion, n, err = consumeString(data)
		case num == 4 && typ == protowire.BytesType:
			m.DeviceID, n, err = consumeString(data)
		case num == 5 && typ == protowire.BytesType:
			m.PublicKey, n, err = consumeBytes(data)
		case num == 6 && typ == protowire.BytesType:
			var p string
			p, n, err = consumeString(data)
			m.Protocols = append(m.Protocols, p)
		case num == 7 && typ == protowire.BytesType:
			var raw []byte
			raw, n = protowire.ConsumeBytes(data)
			if n < 0 {
				err = ErrMalformed
			} else {
				var sc Schema
				if err = sc.Unmarshal(raw); err == nil {
					m.Schemas = append(m.Schemas, sc)
				}
			}
		case num == 8 && typ == protowire.BytesType:
			var raw []byte
			raw, n = protowire.ConsumeBytes(data)
			if n < 0 {
				err = ErrMalformed
			} else {
				var k, v string
				if k, v, err = consumeStringMapEntry(raw); err == nil {
					if m.Capabilities == nil {
						m.Capabilities = make(map[string]string)
					}
					m.Capabilities[k] = v
				}
			}
		default:
			m.Unknown, n, err = consumeUnknown(num, typ, data, m.Unknown)
		}
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// Unmarshal 解码 HandshakeResponse
func (m *HandshakeResponse) Unmarshal(data []byte) error {
	*m = HandshakeResponse{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ErrMalformed
		}
		data = data[n:]
		var err error
		switch {
		case num == 1 && typ == protowire.VarintType:
			var u uint64
			u, n, err = consumeVarint(data)
			m.Success = u != 0
		case num == 2 && typ == protowire.BytesType:
			m.SessionID, n, err = consumeString(data)
		case num == 3 && typ == protowire.BytesType:
			m.PublicKey, n, err = consumeBytes(data)
		case num == 4 && typ == protowire.BytesType:
			var raw []byte
			raw, n = protowire.ConsumeBytes(data)
			if n < 0 {
				err = ErrMalformed
			} else {
				var sc Schema
				if err = sc.Unmarshal(raw); err == nil {
					m.Schemas = append(m.Schemas, sc)
				}
			}
		case num == 5 && typ == protowire.BytesType:
			var raw []byte
			raw, n = protowire.ConsumeBytes(data)
			if n < 0 {
				err = ErrMalformed
			} else {
				var k, v string
				if k, v, err = consumeStringMapEntry(raw); err == nil {
					if m.Capabilities == nil {
						m.Capabilities = make(map[string]string)
					}
					m.Capabilities[k] = v
				}
			}
		case num == 6 && typ == protowire.BytesType:
			m.Error, n, err = consumeString(data)
		case num == 7 && typ == protowire.BytesType:
			m.SessionKeyBox, n, err = consumeBytes(data)
		default:
			m.Unknown, n, err = consumeUnknown(num, typ, data, m.Unknown)
		}
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// Unmarshal 解码 ObjectUpdate
func (m *ObjectUpdate) Unmarshal(data []byte) error {
	*m = ObjectUpdate{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ErrMalformed
		}
		data = data[n:]
		var err error
		switch {
		case num == 1 && typ == protowire.BytesType:
			m.ObjectID, n, err = consumeString(data)
		case num == 2 && typ == protowire.BytesType:
			m.ObjectType, n, err = consumeString(data)
		case num == 3 && typ == protowire.VarintType:
			var u uint64
			u, n, err = consumeVarint(data)
			m.Version = uint32(u)
		case num == 4 && typ == protowire.VarintType:
			var u uint64
			u, n, err = consumeVarint(data)
			m.TimestampMs = int64(u)
		case num == 5 && typ == protowire.BytesType:
			var raw []byte
			raw, n = protowire.ConsumeBytes(data)
			if n < 0 {
				err = ErrMalformed
			} else {
				var k string
				var v TaggedValue
				if k, v, err = consumeValueMapEntry(raw); err == nil {
					if m.Fields == nil {
						m.Fields = make(map[string]TaggedValue)
					}
					m.Fields[k] = v
				}
			}
		case num == 6 && typ == protowire.BytesType:
			m.SessionID, n, err = consumeString(data)
		default:
			m.Unknown, n, err = consumeUnknown(num, typ, data, m.Unknown)
		}
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// Unmarshal 解码 ObjectDelete
func (m *ObjectDelete) Unmarshal(data []byte) error {
	*m = ObjectDelete{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ErrMalformed
		}
		data = data[n:]
		var err error
		switch {
		case num == 1 && typ == protowire.BytesType:
			m.ObjectID, n, err = consumeString(data)
		case num == 2 && typ == protowire.BytesType:
			m.ObjectType, n, err = consumeString(data)
		case num == 3 && typ == protowire.VarintType:
			var u uint64
			u, n, err = consumeVarint(data)
			m.TimestampMs = int64(u)
		case num == 4 && typ == protowire.BytesType:
			m.SessionID, n, err = consumeString(data)
		default:
			m.Unknown, n, err = consumeUnknown(num, typ, data, m.Unknown)
		}
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// Unmarshal 解码 SyncMessage
func (m *SyncMessage) Unmarshal(data []byte) error {
	*m = SyncMessage{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ErrMalformed
		}
		data = data[n:]
		var err error
		switch {
		case num == 1 && typ == protowire.BytesType:
			var raw []byte
			raw, n = protowire.ConsumeBytes(data)
			if n < 0 {
				err = ErrMalformed
			} else {
				u := new(ObjectUpdate)
				if err = u.Unmarshal(raw); err == nil {
					m.Update, m.Delete = u, nil
				}
			}
		case num == 2 && typ == protowire.BytesType:
			var raw []byte
			raw, n = protowire.ConsumeBytes(data)
			if n < 0 {
				err = ErrMalformed
			} else {
				d := new(ObjectDelete)
				if err = d.Unmarshal(raw); err == nil {
					m.Update, m.Delete = nil, d
				}
			}
		default:
			m.Unknown, n, err = consumeUnknown(num, typ, data, m.Unknown)
		}
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// Unmarshal 解码 EventMessage
func (m *EventMessage) Unmarshal(data []byte) error {
	*m = EventMessage{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ErrMalformed
		}
		data = data[n:]
		var err error
		switch {
		case num == 1 && typ == protowire.BytesType:
			m.EventID, n, err = consumeString(data)
		case num == 2 && typ == protowire.BytesType:
			m.EventType, n, err = consumeString(data)
		case num == 3 && typ == protowire.VarintType:
			var u uint64
			u, n, err = consumeVarint(data)
			m.TimestampMs = int64(u)
		case num == 4 && typ == protowire.BytesType:
			var raw []byte
			raw, n = protowire.ConsumeBytes(data)
			if n < 0 {
				err = ErrMalformed
			} else {
				var k string
				var v TaggedValue
				if k, v, err = consumeValueMapEntry(raw); err == nil {
					if m.Data == nil {
						m.Data = make(map[string]TaggedValue)
					}
					m.Data[k] = v
				}
			}
		case num == 5 && typ == protowire.BytesType:
			m.SessionID, n, err = consumeString(data)
		case num == 6 && typ == protowire.VarintType:
			var u uint64
			u, n, err = consumeVarint(data)
			m.Priority = int32(u)
		default:
			m.Unknown, n, err = consumeUnknown(num, typ, data, m.Unknown)
		}
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// Unmarshal 解码 EventResponse
func (m *EventResponse) Unmarshal(data []byte) error {
	*m = EventResponse{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ErrMalformed
		}
		data = data[n:]
		var err error
		switch {
		case num == 1 && typ == protowire.VarintType:
			var u uint64
			u, n, err = consumeVarint(data)
			m.Success = u != 0
		case num == 2 && typ == protowire.BytesType:
			m.EventID, n, err = consumeString(data)
		default:
			m.Unknown, n, err = consumeUnknown(num, typ, data, m.Unknown)
		}
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// Unmarshal 解码 HeartbeatRequest
func (m *HeartbeatRequest) Unmarshal(data []byte) error {
	*m = HeartbeatRequest{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ErrMalformed
		}
		data = data[n:]
		var err error
		switch {
		case num == 1 && typ == protowire.BytesType:
			m.SessionID, n, err = consumeString(data)
		case num == 2 && typ == protowire.VarintType:
			var u uint64
			u, n, err = consumeVarint(data)
			m.TimestampMs = int64(u)
		default:
			m.Unknown, n, err = consumeUnknown(num, typ, data, m.Unknown)
		}
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// Unmarshal 解码 HeartbeatResponse
func (m *HeartbeatResponse) Unmarshal(data []byte) error {
	*m = HeartbeatResponse{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ErrMalformed
		}
		data = data[n:]
		var err error
		switch {
		case num == 1 && typ == protowire.VarintType:
			var u uint64
			u, n, err = consumeVarint(data)
			m.Success = u != 0
		case num == 2 && typ == protowire.VarintType:
			var u uint64
			u, n, err = consumeVarint(data)
			m.TimestampMs = int64(u)
		default:
			m.Unknown, n, err = consumeUnknown(num, typ, data, m.Unknown)
		}
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// Unmarshal 解码 Envelope
func (m *Envelope) Unmarshal(data []byte) error {
	*m = Envelope{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ErrMalformed
		}
		data = data[n:]
		var err error
		switch {
		case num == 1 && typ == protowire.BytesType:
			m.Nonce, n, err = consumeBytes(data)
		case num == 2 && typ == protowire.BytesType:
			m.Ciphertext, n, err = consumeBytes(data)
		default:
			m.Unknown, n, err = consumeUnknown(num, typ, data, m.Unknown)
		}
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}
