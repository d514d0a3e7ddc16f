package registry

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

	// Registry 对象注册表
	Registry pkgif.Registry `name:"registry"`
}

// ============================================================================
//                              服务提供
// ============================================================================

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) ModuleOutput {
	opts := Options{Stats: input.Stats}
	if input.Config != nil {
		opts.ChangeBuffer = input.Config.Buffers.ChangeBuffer
	}
	return ModuleOutput{Registry: New(opts)}
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("registry",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC       fx.Lifecycle
	Registry pkgif.Registry `name:"registry"`
}

// registerLifecycle 注册生命周期
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			logger.Info("注册表模块启动")
			return nil
		},
		OnStop: func(_ context.Context) error {
			logger.Info("注册表模块停止", "objects", input.Registry.Len())
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
	Name        = "registry"
	Description = "对象注册表模块，持有同步对象并提供版本闸门"
)
