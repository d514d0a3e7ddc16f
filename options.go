package asinka

import (
	"crypto/rsa"
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"

	"github.com/asinka/go-asinka/config"
	pkgif "github.com/asinka/go-asinka/pkg/interfaces"
	"github.com/asinka/go-asinka/pkg/types"
)

// ============================================================================
//                              选项定义
// ============================================================================

// Option 配置客户端的函数式选项
//
// 选项在 New 中按传入顺序应用，任何一个返回错误都会使 New 失败。
type Option func(*options) error

// options 聚合所有可配置项
type options struct {
	cfg       *config.Config
	schemas   []types.Schema
	identity  *rsa.PrivateKey
	discovery pkgif.Discovery
	fxOptions []fx.Option
}

// newOptions 返回默认选项
func newOptions() *options {
	return &options{
		cfg: config.NewConfig(),
	}
}

// apply 依次应用选项
func (o *options) apply(opts ...Option) error {
	for _, opt := range opts {
		if opt == nil {
			return ErrNilOption
		}
		if err := opt(o); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
//                              应用标识
// ============================================================================

// WithConfig 整体替换配置
//
// 先应用 WithConfig 再应用细粒度选项，后者覆盖前者。
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return fmt.Errorf("asinka: config cannot be nil")
		}
		c := *cfg
		o.cfg = &c
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("asinka: read config file: %w", err)
		}
		cfg, err := config.FromJSON(data)
		if err != nil {
			return err
		}
		o.cfg = cfg
		return nil
	}
}

// WithAppID 设置应用 ID（必填项）
func WithAppID(id string) Option {
	return func(o *options) error {
		if id == "" {
			return fmt.Errorf("asinka: app id cannot be empty")
		}
		o.cfg.App.ID = id
		return nil
	}
}

// WithAppName 设置应用显示名
func WithAppName(name string) Option {
	return func(o *options) error {
		o.cfg.App.Name = name
		return nil
	}
}

// WithAppVersion 设置应用版本
func WithAppVersion(version string) Option {
	return func(o *options) error {
		o.cfg.App.Version = version
		return nil
	}
}

// WithDeviceID 设置设备 ID
//
// 不设置时 New 自动生成 UUID。同一台机器上跑多个进程时
// 应显式给每个进程不同的设备 ID。
func WithDeviceID(id string) Option {
	return func(o *options) error {
		if id == "" {
			return fmt.Errorf("asinka: device id cannot be empty")
		}
		o.cfg.App.DeviceID = id
		return nil
	}
}

// WithCapabilities 设置能力声明，随握手交换
func WithCapabilities(caps map[string]string) Option {
	return func(o *options) error {
		copied := make(map[string]string, len(caps))
		for k, v := range caps {
			copied[k] = v
		}
		o.cfg.App.Capabilities = copied
		return nil
	}
}

// WithSchemas 声明本端支持的对象 Schema
//
// Schema 在握手时与对端交换，注册表按 Schema 名建同步通道。
func WithSchemas(schemas ...types.Schema) Option {
	return func(o *options) error {
		for _, s := range schemas {
			if s.Name == "" {
				return fmt.Errorf("asinka: schema name cannot be empty")
			}
		}
		o.schemas = append(o.schemas, schemas...)
		return nil
	}
}

// ============================================================================
//                              身份与发现
// ============================================================================

// WithIdentity 注入持久化的 RSA 身份私钥
//
// 省略时每次 New 生成新密钥，指纹随之变化。需要稳定指纹的
// 应用应自行保存 GenerateIdentity 的结果并在启动时注入。
func WithIdentity(key *rsa.PrivateKey) Option {
	return func(o *options) error {
		if key == nil {
			return fmt.Errorf("asinka: identity key cannot be nil")
		}
		o.identity = key
		return nil
	}
}

// WithDiscovery 注入自定义发现实现，替换内置 mDNS
//
// 实例归调用方所有：客户端停止时取消公告但不调用 Close，
// 同一实例可以跨多次 Start/Stop 复用。
func WithDiscovery(d pkgif.Discovery) Option {
	return func(o *options) error {
		if d == nil {
			return fmt.Errorf("asinka: discovery cannot be nil")
		}
		o.discovery = d
		o.cfg.Discovery.Enabled = true
		return nil
	}
}

// WithoutDiscovery 关闭服务发现，只接受显式 Connect
func WithoutDiscovery() Option {
	return func(o *options) error {
		o.cfg.Discovery.Enabled = false
		return nil
	}
}

// WithServiceName 设置发现公告里的服务名
func WithServiceName(name string) Option {
	return func(o *options) error {
		if name == "" {
			return fmt.Errorf("asinka: service name cannot be empty")
		}
		o.cfg.Discovery.Service = name
		return nil
	}
}

// WithAnnounceInterval 设置重新公告周期
func WithAnnounceInterval(interval time.Duration) Option {
	return func(o *options) error {
		if interval <= 0 {
			return fmt.Errorf("asinka: announce interval must be positive, got %v", interval)
		}
		o.cfg.Discovery.AnnounceInterval = config.Duration(interval)
		return nil
	}
}

// ============================================================================
//                              传输与会话
// ============================================================================

// WithServerPort 设置监听端口，0 表示随机端口
func WithServerPort(port int) Option {
	return func(o *options) error {
		if port < 0 || port > 65535 {
			return fmt.Errorf("asinka: invalid port %d", port)
		}
		o.cfg.Transport.Port = port
		return nil
	}
}

// WithMaxMessageSize 设置单帧最大长度（字节）
func WithMaxMessageSize(size int) Option {
	return func(o *options) error {
		if size < config.MinMessageSize {
			return fmt.Errorf("asinka: max message size %d below minimum %d", size, config.MinMessageSize)
		}
		o.cfg.Transport.MaxMessageSize = size
		return nil
	}
}

// WithDialTimeout 设置出站连接超时
func WithDialTimeout(timeout time.Duration) Option {
	return func(o *options) error {
		if timeout <= 0 {
			return fmt.Errorf("asinka: dial timeout must be positive, got %v", timeout)
		}
		o.cfg.Transport.DialTimeout = config.Duration(timeout)
		return nil
	}
}

// WithKeepAlive 设置多路复用层的保活参数
func WithKeepAlive(interval, timeout time.Duration) Option {
	return func(o *options) error {
		if interval <= 0 || timeout <= 0 {
			return fmt.Errorf("asinka: keep alive durations must be positive")
		}
		o.cfg.Transport.KeepAliveInterval = config.Duration(interval)
		o.cfg.Transport.KeepAliveTimeout = config.Duration(timeout)
		return nil
	}
}

// WithIdleTimeout 设置空闲连接回收时间
func WithIdleTimeout(timeout time.Duration) Option {
	return func(o *options) error {
		if timeout <= 0 {
			return fmt.Errorf("asinka: idle timeout must be positive, got %v", timeout)
		}
		o.cfg.Transport.IdleTimeout = config.Duration(timeout)
		return nil
	}
}

// WithHeartbeat 设置会话心跳周期与判死阈值
func WithHeartbeat(interval time.Duration, maxMissed int) Option {
	return func(o *options) error {
		if interval <= 0 {
			return fmt.Errorf("asinka: heartbeat interval must be positive, got %v", interval)
		}
		if maxMissed < 1 {
			return fmt.Errorf("asinka: heartbeat max missed must be at least 1, got %d", maxMissed)
		}
		o.cfg.Heartbeat.Interval = config.Duration(interval)
		o.cfg.Heartbeat.MaxMissed = maxMissed
		return nil
	}
}

// ============================================================================
//                              缓冲与扩展
// ============================================================================

// WithChangeBuffer 设置对象变更观察者的通道容量
func WithChangeBuffer(size int) Option {
	return func(o *options) error {
		if size <= 0 {
			return fmt.Errorf("asinka: change buffer must be positive, got %d", size)
		}
		o.cfg.Buffers.ChangeBuffer = size
		return nil
	}
}

// WithEventBuffer 设置事件订阅者的通道容量
func WithEventBuffer(size int) Option {
	return func(o *options) error {
		if size <= 0 {
			return fmt.Errorf("asinka: event buffer must be positive, got %d", size)
		}
		o.cfg.Buffers.EventBuffer = size
		return nil
	}
}

// WithFxOptions 追加额外的 fx 模块，供测试或深度定制使用
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}
