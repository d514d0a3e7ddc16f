package mdns

import (
	"context"

	"go.uber.org/fx"

	"github.com/asinka/go-asinka/config"
	"github.com/asinka/go-asinka/internal/core/handshake"
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

	// Params 握手参数（携带应用与设备标识）
	Params handshake.Params

	// Envelope 安全信封（提供身份指纹）
	Envelope pkgif.Envelope `name:"envelope"`

	// Transport 传输层（公告端口来源）
	Transport pkgif.Transport `name:"transport"`
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// Discovery 发现端口
	Discovery pkgif.Discovery `name:"discovery"`
}

// ============================================================================
//                              服务提供
// ============================================================================

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) ModuleOutput {
	opts := Options{
		AppID:       input.Params.AppID,
		DeviceID:    input.Params.DeviceID,
		Fingerprint: input.Envelope.Fingerprint(),
		Transport:   input.Transport,
	}
	if input.Config != nil {
		dc := input.Config.Discovery
		opts.Service = dc.Service
		opts.Domain = dc.Domain
		opts.AnnounceInterval = dc.AnnounceInterval.Duration()
	}
	return ModuleOutput{Discovery: New(opts)}
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("discovery/mdns",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC        fx.Lifecycle
	Discovery pkgif.Discovery `name:"discovery"`
}

// registerLifecycle 注册生命周期
//
// 公告在传输层监听之后启动（模块注册顺序保证）。公告失败
// 不阻止应用启动：发现降级为只浏览，手动 Connect 不受影响。
// 公告 ctx 用 Background，生命周期钩子的 ctx 在钩子返回后
// 即失效，公告的存续由 Close 约束。
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			events, err := input.Discovery.Advertise(context.Background())
			if err != nil {
				logger.Warn("服务公告启动失败，发现降级为只浏览", "error", err)
				return nil
			}
			go func() {
				for range events {
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			return input.Discovery.Close()
		},
	})
}

// ============================================================================
//                              模块元信息
// ============================================================================

// 模块元信息常量
const (
	Version     = "1.0.0"
	Name        = "discovery/mdns"
	Description = "DNS-SD 发现模块，在局域网内公告并浏览同类服务"
)
