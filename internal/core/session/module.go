package session

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/asinka/go-asinka/config"
	"github.com/asinka/go-asinka/internal/core/handshake"
	"github.com/asinka/go-asinka/internal/core/stats"
	pkgif "github.com/asinka/go-asinka/pkg/interfaces"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	// Config 配置（可选）
	Config *config.Config `optional:"true"`

	// Clock 时钟源（可选，测试注入）
	Clock clock.Clock `optional:"true"`

	// Stats 统计收集器
	Stats *stats.Collector

	// Params 本机握手材料（取设备 ID）
	Params handshake.Params

	// Engine 握手引擎
	Engine *handshake.Engine `name:"handshake_engine"`

	// Envelope 安全信封
	Envelope pkgif.Envelope `name:"envelope"`

	// Registry 对象注册表
	Registry pkgif.Registry `name:"registry"`

	// EventBus 事件总线
	EventBus pkgif.EventBus `name:"event_bus"`

	// Transport 传输层
	Transport pkgif.Transport `name:"transport"`

	// Discovery 发现端口（可选，缺省时关闭自动拨号）
	Discovery pkgif.Discovery `name:"discovery" optional:"true"`
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// SessionManager 会话管理器
	SessionManager pkgif.SessionManager `name:"session_manager"`
}

// ============================================================================
//                              服务提供
// ============================================================================

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) ModuleOutput {
	opts := Options{
		Envelope:  input.Envelope,
		Registry:  input.Registry,
		EventBus:  input.EventBus,
		Transport: input.Transport,
		Discovery: input.Discovery,
		Engine:    input.Engine,
		Stats:     input.Stats,
		Clock:     input.Clock,
		DeviceID:  input.Params.DeviceID,
	}
	if input.Config != nil {
		opts.HeartbeatInterval = input.Config.Heartbeat.Interval.Duration()
		opts.MaxMissed = input.Config.Heartbeat.MaxMissed
		opts.UnaryTimeout = input.Config.Transport.UnaryTimeout.Duration()
		opts.DialTimeout = input.Config.Transport.DialTimeout.Duration()
	}
	return ModuleOutput{SessionManager: NewManager(opts)}
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("session",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC             fx.Lifecycle
	SessionManager pkgif.SessionManager `name:"session_manager"`
}

// registerLifecycle 注册生命周期
//
// 会话管理器在传输层之后构造、之前停止：fx 按依赖序
// 启动、逆序停止，存量会话先于监听套接字关闭。
func registerLifecycle(input lifecycleInput) {
	m, ok := input.SessionManager.(*Manager)
	if !ok {
		return
	}
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return m.Start()
		},
		OnStop: func(ctx context.Context) error {
			return m.Close(ctx)
		},
	})
}

// ============================================================================
//                              模块元信息
// ============================================================================

// 模块元信息常量
const (
	Version     = "1.0.0"
	Name        = "session"
	Description = "会话管理模块，驱动同步泵、事件扇出与心跳"
)
