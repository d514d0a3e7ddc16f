package wire

import (
	"time"

	"github.com/asinka/go-asinka/pkg/types"
)

// ============================================================================
//                              线上结构 <-> 内存结构
// ============================================================================

// FieldsToWire 把字段集合转为线上表示
func FieldsToWire(f types.Fields) map[string]TaggedValue {
	if len(f) == 0 {
		return nil
	}
	m := make(map[string]TaggedValue, len(f))
	for k, v := range f {
		m[k] = TaggedValue{Value: v}
	}
	return m
}

// FieldsFromWire 把线上表示转回字段集合
//
// 未知 kind 的值读为 null（原始字节只保留在线上结构中）。
func FieldsFromWire(m map[string]TaggedValue) types.Fields {
	if len(m) == 0 {
		return nil
	}
	f := make(types.Fields, len(m))
	for k, v := range m {
		f[k] = v.Value
	}
	return f
}

// SchemaToWire 把对象模式转为线上表示
func SchemaToWire(s types.Schema) Schema {
	ws := Schema{
		Name:        s.Name,
		Version:     s.Version,
		Permissions: append([]string(nil), s.Permissions...),
	}
	for _, f := range s.Fields {
		ws.Fields = append(ws.Fields, FieldDescriptor{
			Name:     f.Name,
			Kind:     f.Kind,
			Nullable: f.Nullable,
		})
	}
	return ws
}

// SchemasToWire 批量转换对象模式
func SchemasToWire(ss []types.Schema) []Schema {
	if len(ss) == 0 {
		return nil
	}
	out := make([]Schema, 0, len(ss))
	for _, s := range ss {
		out = append(out, SchemaToWire(s))
	}
	return out
}

// SchemaFromWire 把线上模式转回内存结构
func SchemaFromWire(ws Schema) types.Schema {
	s := types.Schema{
		Name:        ws.Name,
		Version:     ws.Version,
		Permissions: append([]string(nil), ws.Permissions...),
	}
	for _, f := range ws.Fields {
		s.Fields = append(s.Fields, types.FieldDescriptor{
			Name:     f.Name,
			Kind:     f.Kind,
			Nullable: f.Nullable,
		})
	}
	return s
}

// SchemasFromWire 批量转换线上模式
func SchemasFromWire(ws []Schema) []types.Schema {
	if len(ws) == 0 {
		return nil
	}
	out := make([]types.Schema, 0, len(ws))
	for _, s := range ws {
		out = append(out, SchemaFromWire(s))
	}
	return out
}

// ============================================================================
//                              同步消息构造
// ============================================================================

// NewObjectUpdate 由对象快照构造更新消息
func NewObjectUpdate(obj *types.Object, sessionID string) *ObjectUpdate {
	return &ObjectUpdate{
		ObjectID:    obj.ID,
		ObjectType:  obj.Type,
		Version:     obj.Version,
		TimestampMs: toMillis(obj.UpdatedAt),
		Fields:      FieldsToWire(obj.Fields),
		SessionID:   sessionID,
	}
}

// ToObject 把更新消息转回对象
//
// Origin 取消息中的会话 ID（两端共享同一会话 ID，
// 接收侧以此标记变更来源）。
func (m *ObjectUpdate) ToObject() *types.Object {
	return &types.Object{
		ID:        m.ObjectID,
		Type:      m.ObjectType,
		Version:   m.Version,
		Fields:    FieldsFromWire(m.Fields),
		UpdatedAt: fromMillis(m.TimestampMs),
		Origin:    m.SessionID,
	}
}

// NewObjectDelete 构造删除消息
func NewObjectDelete(objectID, objectType string, at time.Time, sessionID string) *ObjectDelete {
	return &ObjectDelete{
		ObjectID:    objectID,
		ObjectType:  objectType,
		TimestampMs: toMillis(at),
		SessionID:   sessionID,
	}
}

// Time 返回删除时间（零毫秒还原为零值时间）
func (m *ObjectDelete) Time() time.Time {
	return fromMillis(m.TimestampMs)
}

// NewSyncMessage 由注册表变更构造同步消息
func NewSyncMessage(change types.Change, sessionID string) *SyncMessage {
	if change.Kind == types.ChangeDelete {
		return &SyncMessage{
			Delete: NewObjectDelete(change.ObjectID, change.ObjectType, change.Timestamp, sessionID),
		}
	}
	return &SyncMessage{
		Update: NewObjectUpdate(change.Object, sessionID),
	}
}

// ============================================================================
//                              事件消息构造
// ============================================================================

// NewEventMessage 由事件构造投递消息
func NewEventMessage(e *types.Event, sessionID string) *EventMessage {
	return &EventMessage{
		EventID:     e.ID,
		EventType:   e.Type,
		TimestampMs: toMillis(e.Timestamp),
		Data:        FieldsToWire(e.Data),
		SessionID:   sessionID,
		Priority:    int32(e.Priority),
	}
}

// ToEvent 把投递消息转回事件
func (m *EventMessage) ToEvent() *types.Event {
	return &types.Event{
		ID:        m.EventID,
		Type:      m.EventType,
		Timestamp: fromMillis(m.TimestampMs),
		Data:      FieldsFromWire(m.Data),
		Priority:  types.Priority(m.Priority),
		Origin:    m.SessionID,
	}
}

// ============================================================================
//                              时间戳
// ============================================================================

// 线上时间戳统一为 Unix 毫秒；零值时间编码为 0。

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
