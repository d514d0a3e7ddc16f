package transport

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/asinka/go-asinka/config"
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
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// Transport 传输层
	Transport pkgif.Transport `name:"transport"`
}

// ============================================================================
//                              服务提供
// ============================================================================

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) ModuleOutput {
	opts := Options{
		Clock: input.Clock,
		Stats: input.Stats,
	}
	if input.Config != nil {
		tc := input.Config.Transport
		opts.Port = tc.Port
		opts.MaxMessageSize = tc.MaxMessageSize
		opts.DialTimeout = tc.DialTimeout.Duration()
		opts.KeepAliveInterval = tc.KeepAliveInterval.Duration()
		opts.KeepAliveTimeout = tc.KeepAliveTimeout.Duration()
		opts.IdleTimeout = tc.IdleTimeout.Duration()
		opts.NoDelay = tc.NoDelay
	}
	return ModuleOutput{Transport: New(opts)}
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC        fx.Lifecycle
	Config    *config.Config  `optional:"true"`
	Transport pkgif.Transport `name:"transport"`
}

// registerLifecycle 注册生命周期
//
// 监听在 OnStart 执行，此时会话管理器已经注册了连接处理器。
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return input.Transport.Listen(ctx)
		},
		OnStop: func(ctx context.Context) error {
			if input.Config != nil {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, input.Config.Transport.DrainTimeout.Duration())
				defer cancel()
			}
			return input.Transport.Shutdown(ctx)
		},
	})
}

// ============================================================================
//                              模块元信息
// ============================================================================

// 模块元信息常量
const (
	Version     = "1.0.0"
	Name        = "transport"
	Description = "TCP + yamux 传输层模块，提供通道标记的多路复用流"
)
