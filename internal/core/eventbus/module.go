package eventbus

import (
	"context"

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

	// Stats 统计收集器
	Stats *stats.Collector
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// EventBus 事件总线
	EventBus pkgif.EventBus `name:"event_bus"`
}

// ============================================================================
//                              服务提供
// ============================================================================

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) ModuleOutput {
	opts := Options{Stats: input.Stats}
	if input.Config != nil {
		opts.EventBuffer = input.Config.Buffers.EventBuffer
	}
	return ModuleOutput{EventBus: New(opts)}
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("eventbus",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC fx.Lifecycle
}

// registerLifecycle 注册生命周期
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			logger.Info("事件总线模块启动")
			return nil
		},
		OnStop: func(_ context.Context) error {
			logger.Info("事件总线模块停止")
			return nil
		},
	})
}

// ============================================================================
//                              模块元信息
// ============================================================================

// 模块元信息常量
const (
	Version     = "1.0.0"
	Name        = "eventbus"
	Description = "事件总线模块，提供类型化事件的本地与跨进程分发"
)
