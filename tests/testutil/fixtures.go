package testutil

import (
	"fmt"
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/asinka/go-asinka/pkg/types"
)

// TaskSchema 返回测试用的 task 对象模式
func TaskSchema() types.Schema {
	return types.Schema{
		Name:    "task",
		Version: "1",
		Fields: []types.FieldDescriptor{
			{Name: "title", Kind: types.FieldString},
			{Name: "done", Kind: types.FieldBool},
			{Name: "order", Kind: types.FieldInt64},
		},
	}
}

// NewTask 构造一个 task 对象
func NewTask(id, title string) *types.Object {
	return &types.Object{
		ID:   id,
		Type: "task",
		Fields: types.Fields{
			"title": types.String(title),
			"done":  types.Bool(false),
			"order": types.Int64(0),
		},
	}
}

// NewChatEvent 构造一个聊天事件
func NewChatEvent(text string, priority types.Priority) *types.Event {
	return &types.Event{
		Type:     "chat.message",
		Data:     types.Fields{"text": types.String(text)},
		Priority: priority,
	}
}

// BulkFields 构造一个带大体积字节字段的字段集合
//
// 用于验证大载荷在单帧上限内的同步。
func BulkFields(size int) types.Fields {
	blob := make([]byte, size)
	for i := range blob {
		blob[i] = byte(i % 251)
	}
	return types.Fields{
		"title": types.String("bulk"),
		"blob":  types.Bytes(blob),
	}
}

// SplitAddr 把 "ip:port" 拆为主机与端口
func SplitAddr(t *testing.T, addr string) (string, int) {
	t.Helper()

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err, fmt.Sprintf("地址 %q 无法拆分", addr))
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}
