//go:build integration

package integration_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgif "github.com/asinka/go-asinka/pkg/interfaces"
	"github.com/asinka/go-asinka/pkg/types"
	"github.com/asinka/go-asinka/tests/testutil"
)

// TestSyncPropagation 测试对象跨进程传播
//
// 验证:
//   - 连接后一端注册的对象在另一端可见
//   - 版本、字段逐项一致
func TestSyncPropagation(t *testing.T) {
	// 1. 启动两个客户端并显式连接
	a := testutil.NewTestClient(t).
		WithDeviceID("device-a").
		WithSchemas(testutil.TaskSchema()).
		Start()
	b := testutil.NewTestClient(t).
		WithDeviceID("device-b").
		WithSchemas(testutil.TaskSchema()).
		Start()
	testutil.ConnectClients(t, b, a)

	// 2. A 注册对象
	_, err := a.Registry().Register(testutil.NewTask("t1", "buy milk"))
	require.NoError(t, err)

	// 3. B 在两秒内看到版本 1 的同一对象
	testutil.Eventually(t, 2*time.Second, func() bool {
		_, ok := b.Registry().Get("t1")
		return ok
	}, "对象未传播到 B")

	got, ok := b.Registry().Get("t1")
	require.True(t, ok)
	assert.Equal(t, uint32(1), got.Version)
	title, _ := got.GetString("title")
	assert.Equal(t, "buy milk", title)
	done, _ := got.GetBool("done")
	assert.False(t, done)
}

// TestVersionGateDivergence 测试并发更新的版本闸门
//
// 验证:
//   - 两端同时产生版本 2 时，远端的版本 2 被静默丢弃
//   - 双方状态分叉（已知的 last-writer-wins 局限）
//   - 丢弃只反映在统计中，不产生错误与变更通知
func TestVersionGateDivergence(t *testing.T) {
	a := testutil.NewTestClient(t).
		WithDeviceID("device-a").
		WithSchemas(testutil.TaskSchema()).
		Start()
	b := testutil.NewTestClient(t).
		WithDeviceID("device-b").
		WithSchemas(testutil.TaskSchema()).
		Start()
	testutil.ConnectClients(t, b, a)

	// 1. 建立共同的版本 1
	_, err := a.Registry().Register(testutil.NewTask("t1", "buy milk"))
	require.NoError(t, err)
	testutil.Eventually(t, 2*time.Second, func() bool {
		_, ok := b.Registry().Get("t1")
		return ok
	}, "初始对象未传播")

	// 2. 双方并发更新，各自得到本地版本 2
	_, err = b.Registry().Update("t1", types.Fields{"done": types.Bool(true)})
	require.NoError(t, err)
	_, err = a.Registry().Update("t1", types.Fields{"title": types.String("buy bread")})
	require.NoError(t, err)

	// 3. 双方都收到并丢弃对方的版本 2
	testutil.Eventually(t, 5*time.Second, func() bool {
		return a.Stats().StaleUpdates >= 1 && b.Stats().StaleUpdates >= 1
	}, "过期更新未被统计")

	// 4. 状态保持分叉
	objA, ok := a.Registry().Get("t1")
	require.True(t, ok)
	objB, ok := b.Registry().Get("t1")
	require.True(t, ok)

	assert.Equal(t, uint32(2), objA.Version)
	assert.Equal(t, uint32(2), objB.Version)

	titleA, _ := objA.GetString("title")
	doneA, _ := objA.GetBool("done")
	assert.Equal(t, "buy bread", titleA, "A 保留自己的标题更新")
	assert.False(t, doneA, "A 不接受 B 的完成标记")

	titleB, _ := objB.GetString("title")
	doneB, _ := objB.GetBool("done")
	assert.Equal(t, "buy milk", titleB, "B 不接受 A 的标题更新")
	assert.True(t, doneB, "B 保留自己的完成标记")
}

// TestDeletePropagation 测试删除传播与幂等
//
// 验证:
//   - 删除在两端都产生 Deleted 通知并移除对象
//   - 重复删除无通知、无错误
func TestDeletePropagation(t *testing.T) {
	a := testutil.NewTestClient(t).
		WithDeviceID("device-a").
		WithSchemas(testutil.TaskSchema()).
		Start()
	b := testutil.NewTestClient(t).
		WithDeviceID("device-b").
		WithSchemas(testutil.TaskSchema()).
		Start()
	testutil.ConnectClients(t, b, a)

	_, err := a.Registry().Register(testutil.NewTask("t1", "buy milk"))
	require.NoError(t, err)
	testutil.Eventually(t, 2*time.Second, func() bool {
		_, ok := b.Registry().Get("t1")
		return ok
	}, "初始对象未传播")

	subA := a.Registry().ObserveAll()
	defer subA.Close()
	subB := b.Registry().ObserveAll()
	defer subB.Close()

	// 1. A 删除，双方都观察到 Deleted
	require.NoError(t, a.Registry().Delete("t1"))

	changeA := waitForChange(t, subA)
	assert.Equal(t, types.ChangeDelete, changeA.Kind)
	assert.Equal(t, "t1", changeA.ObjectID)
	assert.Equal(t, "task", changeA.ObjectType)

	changeB := waitForChange(t, subB)
	assert.Equal(t, types.ChangeDelete, changeB.Kind)
	assert.Equal(t, "t1", changeB.ObjectID)

	_, ok := b.Registry().Get("t1")
	assert.False(t, ok, "B 端对象应已移除")

	// 2. 重复删除：无错误、无通知
	require.NoError(t, a.Registry().Delete("t1"))
	select {
	case change := <-subA.Out():
		t.Fatalf("重复删除不应产生通知: %+v", change)
	case <-time.After(300 * time.Millisecond):
	}
}

// TestLargePayload 测试大载荷同步
//
// 验证:
//   - 1 MiB 字节字段在默认 4 MiB 帧上限内逐字节一致地到达
func TestLargePayload(t *testing.T) {
	a := testutil.NewTestClient(t).
		WithDeviceID("device-a").
		WithSchemas(testutil.TaskSchema()).
		Start()
	b := testutil.NewTestClient(t).
		WithDeviceID("device-b").
		WithSchemas(testutil.TaskSchema()).
		Start()
	testutil.ConnectClients(t, b, a)

	fields := testutil.BulkFields(1 << 20)
	want, _ := fields["blob"].AsBytes()

	_, err := a.Registry().Register(&types.Object{
		ID:     "bulk-1",
		Type:   "task",
		Fields: fields,
	})
	require.NoError(t, err)

	testutil.Eventually(t, 5*time.Second, func() bool {
		_, ok := b.Registry().Get("bulk-1")
		return ok
	}, "大对象未传播")

	got, ok := b.Registry().Get("bulk-1")
	require.True(t, ok)
	blob, ok := got.Fields["blob"].AsBytes()
	require.True(t, ok)
	require.Len(t, blob, 1<<20)
	assert.True(t, bytes.Equal(want, blob), "字节内容必须逐位一致")
}

// waitForChange 等待一次变更通知
func waitForChange(t *testing.T, sub pkgif.ChangeSubscription) types.Change {
	t.Helper()
	select {
	case change, ok := <-sub.Out():
		require.True(t, ok, "变更订阅被关闭")
		return change
	case <-time.After(5 * time.Second):
		t.Fatal("等待变更超时")
	}
	return types.Change{}
}
