package asinka

import (
	"context"
	"crypto/rsa"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/asinka/go-asinka/internal/core/eventbus"
	"github.com/asinka/go-asinka/internal/core/handshake"
	"github.com/asinka/go-asinka/internal/core/registry"
	"github.com/asinka/go-asinka/internal/core/security"
	"github.com/asinka/go-asinka/internal/core/session"
	"github.com/asinka/go-asinka/internal/core/stats"
	"github.com/asinka/go-asinka/internal/core/transport"
	"github.com/asinka/go-asinka/internal/discovery/mdns"
	pkgif "github.com/asinka/go-asinka/pkg/interfaces"
)

// ============================================================================
//                              容器装配
// ============================================================================

// buildApp 组装 fx 容器
//
// 模块顺序决定生命周期钩子顺序：传输先监听，发现随后公告，
// 会话管理器最后启动。停止时按相反顺序执行，会话先于告别
// 报文与监听器关闭。fx 容器不可重复启动，Stop 之后重新
// Start 会调用本函数重建，身份密钥复用保证指纹稳定。
func (c *Client) buildApp() *fx.App {
	modules := []fx.Option{
		fx.Supply(c.cfg),
		fx.Supply(c.params),
		fx.Provide(fx.Annotate(
			func() *rsa.PrivateKey { return c.identity },
			fx.ResultTags(`name:"identity_key"`),
		)),
		stats.Module(),
		security.Module(),
		handshake.Module(),
		registry.Module(),
		eventbus.Module(),
		transport.Module(),
	}

	switch {
	case c.opts.discovery != nil:
		modules = append(modules,
			fx.Provide(fx.Annotate(
				func() pkgif.Discovery { return c.opts.discovery },
				fx.ResultTags(`name:"discovery"`),
			)),
			fx.Invoke(registerDiscoveryLifecycle),
		)
	case c.cfg.Discovery.Enabled:
		modules = append(modules, mdns.Module())
	}

	modules = append(modules, session.Module())
	modules = append(modules, fx.Invoke(c.injectComponents))
	modules = append(modules, c.opts.fxOptions...)
	// fx 自身的事件日志静音，组件日志走 pkg/lib/log
	modules = append(modules,
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
		fx.NopLogger,
	)

	return fx.New(modules...)
}

// clientInjectInput 从容器取回供外部访问的组件
type clientInjectInput struct {
	fx.In

	// Envelope 安全信封
	Envelope pkgif.Envelope `name:"envelope"`

	// Registry 对象注册表
	Registry pkgif.Registry `name:"registry"`

	// EventBus 事件总线
	EventBus pkgif.EventBus `name:"event_bus"`

	// Transport 传输层
	Transport pkgif.Transport `name:"transport"`

	// Sessions 会话管理器
	Sessions pkgif.SessionManager `name:"session_manager"`

	// Discovery 发现端口（关闭发现时缺省）
	Discovery pkgif.Discovery `name:"discovery" optional:"true"`

	// Stats 统计收集器
	Stats *stats.Collector
}

// injectComponents 把容器组件回填到客户端字段
//
// 在 fx.New 阶段执行，Start 之前访问器即可用。
func (c *Client) injectComponents(in clientInjectInput) {
	c.envelope = in.Envelope
	c.registry = in.Registry
	c.eventBus = in.EventBus
	c.transport = in.Transport
	c.sessions = in.Sessions
	c.discovery = in.Discovery
	c.stats = in.Stats
}

// ============================================================================
//                              自定义发现生命周期
// ============================================================================

// discoveryLifecycleInput 自定义发现实现的生命周期依赖
type discoveryLifecycleInput struct {
	fx.In

	Lifecycle fx.Lifecycle
	Discovery pkgif.Discovery `name:"discovery"`
}

// registerDiscoveryLifecycle 为注入的发现实现挂接公告生命周期
//
// 与内置 mDNS 模块不同，注入实现归调用方所有：停止时只取消
// 公告上下文，不调用 Close，同一实例在重启后可以继续使用。
// 公告失败降级为只浏览，不阻止启动。
func registerDiscoveryLifecycle(in discoveryLifecycleInput) {
	var cancel context.CancelFunc

	in.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, stop := context.WithCancel(context.Background())
			cancel = stop

			events, err := in.Discovery.Advertise(ctx)
			if err != nil {
				stop()
				cancel = nil
				logger.Warn("自定义发现公告失败，降级为只浏览", "error", err)
				return nil
			}
			go func() {
				for range events {
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
				cancel = nil
			}
			return nil
		},
	})
}
