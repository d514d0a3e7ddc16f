//go:build integration

package integration_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgif "github.com/asinka/go-asinka/pkg/interfaces"
	"github.com/asinka/go-asinka/pkg/types"
	"github.com/asinka/go-asinka/tests/testutil"
)

// recordingReceiver 串行接收器，记录收到的事件
type recordingReceiver struct {
	mu         sync.Mutex
	eventTypes []string
	events     []*types.Event
}

func newRecordingReceiver(eventTypes ...string) *recordingReceiver {
	return &recordingReceiver{eventTypes: eventTypes}
}

func (r *recordingReceiver) EventTypes() []string {
	return r.eventTypes
}

func (r *recordingReceiver) HandleEvent(_ context.Context, event *types.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingReceiver) snapshot() []*types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*types.Event, len(r.events))
	copy(out, r.events)
	return out
}

// TestEventPriorityDelivery 测试带优先级的跨端事件投递
//
// 验证:
//   - 按类型过滤的接收器恰好被调用一次
//   - 事件数据与优先级原样到达
//   - 远端事件携带来源会话
func TestEventPriorityDelivery(t *testing.T) {
	a := testutil.NewTestClient(t).
		WithDeviceID("device-a").
		Start()
	b := testutil.NewTestClient(t).
		WithDeviceID("device-b").
		Start()
	testutil.ConnectClients(t, b, a)

	// 1. A 注册只关心 notify 的接收器
	receiver := newRecordingReceiver("notify")
	require.NoError(t, a.Events().RegisterReceiver(receiver))
	defer func() { _ = a.Events().UnregisterReceiver(receiver) }()

	// 2. B 发送高优先级事件
	require.NoError(t, b.Events().Send(&types.Event{
		Type:     "notify",
		Data:     types.Fields{"msg": types.String("hello")},
		Priority: types.PriorityHigh,
	}))

	// 3. A 的接收器恰好收到一次
	testutil.Eventually(t, 5*time.Second, func() bool {
		return len(receiver.snapshot()) >= 1
	}, "接收器未被调用")

	events := receiver.snapshot()
	require.Len(t, events, 1)
	got := events[0]
	msg, _ := got.Data["msg"].AsString()
	assert.Equal(t, "hello", msg)
	assert.Equal(t, types.PriorityHigh, got.Priority)
	assert.Equal(t, "notify", got.Type)
	assert.True(t, got.IsRemote(), "远端事件必须携带来源会话")
}

// TestEventTypeFiltering 测试订阅的类型过滤
//
// 验证:
//   - 观察者只看到订阅类型的事件
//   - 其他类型的事件不投递
func TestEventTypeFiltering(t *testing.T) {
	a := testutil.NewTestClient(t).
		WithDeviceID("device-a").
		Start()
	b := testutil.NewTestClient(t).
		WithDeviceID("device-b").
		Start()
	testutil.ConnectClients(t, b, a)

	sub := a.Events().Observe("chat.message")
	defer sub.Close()

	// 先发不相关类型，再发订阅类型
	require.NoError(t, b.Events().Send(&types.Event{
		Type: "presence", Data: types.Fields{"state": types.String("online")},
	}))
	require.NoError(t, b.Events().Send(testutil.NewChatEvent("hi", types.PriorityNormal)))

	select {
	case got, ok := <-sub.Out():
		require.True(t, ok)
		assert.Equal(t, "chat.message", got.Type, "不应收到未订阅的类型")
		text, _ := got.Data["text"].AsString()
		assert.Equal(t, "hi", text)
	case <-time.After(5 * time.Second):
		t.Fatal("等待事件超时")
	}

	// 不应再有第二个事件
	select {
	case got := <-sub.Out():
		t.Fatalf("收到了未订阅类型的事件: %+v", got)
	case <-time.After(300 * time.Millisecond):
	}
}

// TestEventFanout 测试事件向多个对端扇出
//
// 验证:
//   - 一个事件到达所有活跃会话
func TestEventFanout(t *testing.T) {
	hub := testutil.NewTestClient(t).
		WithDeviceID("device-hub").
		Start()
	a := testutil.NewTestClient(t).
		WithDeviceID("device-a").
		Start()
	b := testutil.NewTestClient(t).
		WithDeviceID("device-b").
		Start()

	testutil.ConnectClients(t, a, hub)
	testutil.ConnectClients(t, b, hub)

	subA := a.Events().Observe("chat.message")
	defer subA.Close()
	subB := b.Events().Observe("chat.message")
	defer subB.Close()

	require.NoError(t, hub.Events().Send(testutil.NewChatEvent("broadcast", types.PriorityNormal)))

	expectChat := func(name string, sub pkgif.EventSubscription) {
		select {
		case got, ok := <-sub.Out():
			require.True(t, ok)
			text, _ := got.Data["text"].AsString()
			assert.Equal(t, "broadcast", text, "对端 %s 收到的内容不符", name)
		case <-time.After(5 * time.Second):
			t.Fatalf("对端 %s 未收到事件", name)
		}
	}
	expectChat("a", subA)
	expectChat("b", subB)
}
