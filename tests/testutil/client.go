// Package testutil 提供测试辅助工具
package testutil

import (
	"context"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/asinka/go-asinka"
	pkgif "github.com/asinka/go-asinka/pkg/interfaces"
	"github.com/asinka/go-asinka/pkg/types"
)

// 身份密钥池
//
// RSA 密钥生成较慢，整个测试二进制共享一小池密钥，
// 构建器按序分配。同一进程内的客户端靠设备 ID 区分，
// 指纹重复无碍。
const identityPoolSize = 4

var (
	identityOnce sync.Once
	identityPool []*rsa.PrivateKey
	identityNext int
	identityMu   sync.Mutex
)

// PooledIdentity 从共享池中取一把身份密钥
func PooledIdentity(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	identityOnce.Do(func() {
		identityPool = make([]*rsa.PrivateKey, 0, identityPoolSize)
		for i := 0; i < identityPoolSize; i++ {
			key, err := asinka.GenerateIdentity()
			if err != nil {
				return
			}
			identityPool = append(identityPool, key)
		}
	})
	require.Len(t, identityPool, identityPoolSize, "身份密钥池初始化失败")

	identityMu.Lock()
	defer identityMu.Unlock()
	key := identityPool[identityNext%identityPoolSize]
	identityNext++
	return key
}

// TestClientBuilder 测试客户端构建器
//
// 使用 Builder 模式简化测试客户端的创建和配置。
//
// 示例:
//
//	client := testutil.NewTestClient(t).
//		WithDeviceID("device-a").
//		WithSchemas(testutil.TaskSchema()).
//		Start()
type TestClientBuilder struct {
	t         *testing.T
	appID     string
	deviceID  string
	identity  *rsa.PrivateKey
	schemas   []types.Schema
	discovery pkgif.Discovery
	options   []asinka.Option
}

// NewTestClient 创建测试客户端构建器
//
// 默认配置:
//   - appID: "com.example.test"
//   - 随机回环端口，发现关闭
//   - 身份密钥取自共享池
func NewTestClient(t *testing.T) *TestClientBuilder {
	t.Helper()
	return &TestClientBuilder{
		t:     t,
		appID: "com.example.test",
	}
}

// WithAppID 设置应用 ID
func (b *TestClientBuilder) WithAppID(id string) *TestClientBuilder {
	b.appID = id
	return b
}

// WithDeviceID 设置设备 ID
//
// 同一进程里的多个客户端必须设置不同的设备 ID。
func (b *TestClientBuilder) WithDeviceID(id string) *TestClientBuilder {
	b.deviceID = id
	return b
}

// WithIdentity 设置身份密钥，默认从共享池分配
func (b *TestClientBuilder) WithIdentity(key *rsa.PrivateKey) *TestClientBuilder {
	b.identity = key
	return b
}

// WithSchemas 声明对象模式
func (b *TestClientBuilder) WithSchemas(schemas ...types.Schema) *TestClientBuilder {
	b.schemas = append(b.schemas, schemas...)
	return b
}

// WithDiscovery 注入发现实现（默认关闭发现）
func (b *TestClientBuilder) WithDiscovery(d pkgif.Discovery) *TestClientBuilder {
	b.discovery = d
	return b
}

// WithOptions 追加任意选项
func (b *TestClientBuilder) WithOptions(opts ...asinka.Option) *TestClientBuilder {
	b.options = append(b.options, opts...)
	return b
}

// Build 创建但不启动客户端
func (b *TestClientBuilder) Build() *asinka.Client {
	b.t.Helper()

	identity := b.identity
	if identity == nil {
		identity = PooledIdentity(b.t)
	}

	opts := []asinka.Option{
		asinka.WithAppID(b.appID),
		asinka.WithIdentity(identity),
		asinka.WithServerPort(0),
	}
	if b.deviceID != "" {
		opts = append(opts, asinka.WithDeviceID(b.deviceID))
	}
	if len(b.schemas) > 0 {
		opts = append(opts, asinka.WithSchemas(b.schemas...))
	}
	if b.discovery != nil {
		opts = append(opts, asinka.WithDiscovery(b.discovery))
	} else {
		opts = append(opts, asinka.WithoutDiscovery())
	}
	opts = append(opts, b.options...)

	client, err := asinka.New(opts...)
	require.NoError(b.t, err, "创建测试客户端失败")
	require.NotNil(b.t, client, "客户端不应为 nil")

	b.t.Cleanup(func() { _ = client.Close() })
	return client
}

// Start 创建并启动客户端，测试结束时自动关闭
func (b *TestClientBuilder) Start() *asinka.Client {
	b.t.Helper()

	client := b.Build()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(b.t, client.Start(ctx), "启动测试客户端失败")
	return client
}

// ConnectClients 让 a 显式连接 b，返回 a 侧会话快照
func ConnectClients(t *testing.T, a, b *asinka.Client) types.SessionInfo {
	t.Helper()

	addr := b.Addr()
	require.NotNil(t, addr, "目标客户端未在监听")
	host, port := SplitAddr(t, addr.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := a.Connect(ctx, host, port)
	require.NoError(t, err, "连接失败")
	return info
}
