//go:build integration

package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asinka/go-asinka/tests/testutil"
)

// TestStopTearsDownSessions 测试停止时的会话拆除
//
// 验证:
//   - Stop 后本端会话表立即清空
//   - 对端通过连接断开及时感知
//   - 重启后指纹不变，可重新建立会话
func TestStopTearsDownSessions(t *testing.T) {
	a := testutil.NewTestClient(t).
		WithDeviceID("device-a").
		Start()
	b := testutil.NewTestClient(t).
		WithDeviceID("device-b").
		Start()

	// 1. 建立会话，两端都可见
	testutil.ConnectClients(t, b, a)
	require.Len(t, b.Sessions(), 1)
	testutil.Eventually(t, 5*time.Second, func() bool {
		return len(a.Sessions()) == 1
	}, "接受方未登记会话")

	fingerprint := b.ID()
	require.NotEmpty(t, fingerprint)

	// 2. 停止 B：本端清空，对端及时感知
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, b.Stop(ctx))
	assert.Empty(t, b.Sessions(), "停止后本端会话表应为空")

	testutil.Eventually(t, 10*time.Second, func() bool {
		return len(a.Sessions()) == 0
	}, "对端未感知会话关闭")

	// 3. 重启 B：指纹不变，重连成功
	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()
	require.NoError(t, b.Start(startCtx))
	assert.Equal(t, fingerprint, b.ID(), "重启后指纹应保持不变")

	testutil.ConnectClients(t, b, a)
	testutil.Eventually(t, 5*time.Second, func() bool {
		return len(a.Sessions()) == 1 && len(b.Sessions()) == 1
	}, "重启后未能重新建立会话")
}

// TestDisconnectRemovesSession 测试主动断开
//
// 验证:
//   - Disconnect 后两端会话都消失
//   - 对已回收的会话再次 Disconnect 返回错误
func TestDisconnectRemovesSession(t *testing.T) {
	a := testutil.NewTestClient(t).
		WithDeviceID("device-a").
		Start()
	b := testutil.NewTestClient(t).
		WithDeviceID("device-b").
		Start()

	info := testutil.ConnectClients(t, b, a)
	testutil.Eventually(t, 5*time.Second, func() bool {
		return len(a.Sessions()) == 1
	}, "接受方未登记会话")

	// 1. 主动断开，两端会话消失
	require.NoError(t, b.Disconnect(info.ID))
	assert.Empty(t, b.Sessions(), "断开后会话不应再处于活跃状态")

	testutil.Eventually(t, 10*time.Second, func() bool {
		return len(a.Sessions()) == 0
	}, "对端未感知会话断开")

	// 2. 等会话回收完成后再次断开应报错
	testutil.Eventually(t, 5*time.Second, func() bool {
		_, ok := b.Session(info.ID)
		return !ok
	}, "会话未从会话表移除")
	assert.Error(t, b.Disconnect(info.ID), "重复断开应返回错误")
}

// TestSessionCountStats 测试会话开合计数
//
// 验证:
//   - 建立与断开会话反映到统计快照
func TestSessionCountStats(t *testing.T) {
	a := testutil.NewTestClient(t).
		WithDeviceID("device-a").
		Start()
	b := testutil.NewTestClient(t).
		WithDeviceID("device-b").
		Start()

	info := testutil.ConnectClients(t, b, a)

	require.GreaterOrEqual(t, b.Stats().SessionsOpened, uint64(1))
	testutil.Eventually(t, 5*time.Second, func() bool {
		return a.Stats().SessionsOpened >= 1
	}, "接受方未计入会话建立")

	require.NoError(t, b.Disconnect(info.ID))
	testutil.Eventually(t, 10*time.Second, func() bool {
		return b.Stats().SessionsClosed >= 1 && a.Stats().SessionsClosed >= 1
	}, "断开未计入统计")
}
