package asinka

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/asinka/go-asinka/config"
	"github.com/asinka/go-asinka/internal/core/handshake"
	"github.com/asinka/go-asinka/internal/core/stats"
	pkgif "github.com/asinka/go-asinka/pkg/interfaces"
	"github.com/asinka/go-asinka/pkg/lib/log"
	"github.com/asinka/go-asinka/pkg/types"
)

var logger = log.Logger("asinka")

const (
	// startTimeout Start 未带截止时间时的默认超时
	startTimeout = 30 * time.Second
	// stopTimeout Stop 未带截止时间时的默认超时
	stopTimeout = 15 * time.Second
)

// ============================================================================
//                              客户端
// ============================================================================

// Client 是 Asinka 的入口
//
// 一个 Client 代表局域网里的一个进程：持有身份密钥、对象
// 注册表、事件总线和会话管理器。Start 后开始监听、公告并
// 与发现到的对端建立会话；对象与事件的收发通过 Registry
// 与 Events 访问器进行。
//
// 所有方法并发安全。
type Client struct {
	mu    sync.RWMutex
	state ClientState

	opts     *options
	cfg      *config.Config
	params   handshake.Params
	identity *rsa.PrivateKey

	app *fx.App

	envelope  pkgif.Envelope
	registry  pkgif.Registry
	eventBus  pkgif.EventBus
	transport pkgif.Transport
	sessions  pkgif.SessionManager
	discovery pkgif.Discovery
	stats     *stats.Collector
}

// New 创建客户端
//
// 应用 ID 必填（WithAppID 或 WithConfig）。未注入身份密钥时
// 生成新的 RSA-2048 密钥，未设置设备 ID 时生成 UUID。组件
// 在此阶段完成装配，Registry、Events、Security 等访问器在
// Start 之前即可使用。
func New(opts ...Option) (*Client, error) {
	o := newOptions()
	if err := o.apply(opts...); err != nil {
		return nil, err
	}

	if o.cfg.App.DeviceID == "" {
		o.cfg.App.DeviceID = uuid.NewString()
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	identity := o.identity
	if identity == nil {
		key, err := GenerateIdentity()
		if err != nil {
			return nil, err
		}
		identity = key
	}

	c := &Client{
		state:    StateIdle,
		opts:     o,
		cfg:      o.cfg,
		identity: identity,
		params: handshake.Params{
			AppID:        o.cfg.App.ID,
			AppName:      o.cfg.App.Name,
			AppVersion:   o.cfg.App.Version,
			DeviceID:     o.cfg.App.DeviceID,
			Capabilities: o.cfg.App.Capabilities,
			Schemas:      o.schemas,
		},
	}

	app := c.buildApp()
	if err := app.Err(); err != nil {
		return nil, fmt.Errorf("asinka: assemble components: %w", err)
	}
	c.app = app

	logger.Debug("客户端已创建",
		"app", c.cfg.App.ID,
		"device", log.TruncateID(c.cfg.App.DeviceID, 8),
		"fp", log.TruncateID(c.envelope.Fingerprint(), 12))
	return c, nil
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 启动客户端
//
// 开始监听、公告服务并接受入站会话。已在运行时返回 nil。
// Stop 之后再次 Start 会重建内部组件：身份密钥复用、指纹
// 不变，但注册表与事件总线回到空状态。
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return ErrClientClosed
	case StateStarting, StateRunning:
		return nil
	}

	if c.app == nil {
		app := c.buildApp()
		if err := app.Err(); err != nil {
			return fmt.Errorf("asinka: assemble components: %w", err)
		}
		c.app = app
	}

	c.state = StateStarting

	startCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		startCtx, cancel = context.WithTimeout(ctx, startTimeout)
		defer cancel()
	}

	if err := c.app.Start(startCtx); err != nil {
		c.app = nil
		c.state = StateStopped
		return fmt.Errorf("asinka: start: %w", err)
	}

	c.state = StateRunning
	logger.Info("客户端已启动",
		"app", c.cfg.App.ID,
		"device", log.TruncateID(c.cfg.App.DeviceID, 8),
		"fp", log.TruncateID(c.envelope.Fingerprint(), 12),
		"addr", c.transport.Addr())
	return nil
}

// Stop 停止客户端
//
// 依次拆除会话、撤销公告（goodbye）、关闭监听器。
// 未在运行时返回 nil。
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked(ctx)
}

func (c *Client) stopLocked(ctx context.Context) error {
	switch c.state {
	case StateClosed:
		return nil
	case StateIdle, StateStopped:
		return nil
	}

	c.state = StateStopping

	stopCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		stopCtx, cancel = context.WithTimeout(ctx, stopTimeout)
		defer cancel()
	}

	err := c.app.Stop(stopCtx)
	c.app = nil
	c.state = StateStopped

	if err != nil {
		return fmt.Errorf("asinka: stop: %w", err)
	}
	logger.Info("客户端已停止", "app", c.cfg.App.ID)
	return nil
}

// Close 关闭客户端（终态）
//
// 运行中则先停止。Close 之后客户端不可再启动。
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return nil
	}

	err := c.stopLocked(context.Background())
	c.state = StateClosed
	return err
}

// State 返回当前生命周期状态
func (c *Client) State() ClientState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ============================================================================
//                              会话操作
// ============================================================================

// Connect 显式连接指定对端并完成握手
//
// 绕过发现机制，直接拨号 host:port。返回进入 Active 的
// 会话快照。对同一对端重复 Connect 返回已有会话。
func (c *Client) Connect(ctx context.Context, host string, port int) (types.SessionInfo, error) {
	c.mu.RLock()
	sessions, state := c.sessions, c.state
	c.mu.RUnlock()

	if state == StateClosed {
		return types.SessionInfo{}, ErrClientClosed
	}
	if state != StateRunning {
		return types.SessionInfo{}, ErrNotStarted
	}
	return sessions.Connect(ctx, net.JoinHostPort(host, strconv.Itoa(port)))
}

// Disconnect 主动关闭指定会话
func (c *Client) Disconnect(sessionID string) error {
	c.mu.RLock()
	sessions, state := c.sessions, c.state
	c.mu.RUnlock()

	if state == StateClosed {
		return ErrClientClosed
	}
	if state != StateRunning {
		return ErrNotStarted
	}
	return sessions.Disconnect(sessionID)
}

// Sessions 返回全部活跃会话的快照
func (c *Client) Sessions() []types.SessionInfo {
	c.mu.RLock()
	sessions := c.sessions
	c.mu.RUnlock()

	if sessions == nil {
		return nil
	}
	return sessions.Sessions()
}

// Session 按 ID 查询会话快照
func (c *Client) Session(sessionID string) (types.SessionInfo, bool) {
	c.mu.RLock()
	sessions := c.sessions
	c.mu.RUnlock()

	if sessions == nil {
		return types.SessionInfo{}, false
	}
	return sessions.Session(sessionID)
}

// ============================================================================
//                              组件访问器
// ============================================================================

// Registry 返回对象注册表
func (c *Client) Registry() Registry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registry
}

// Events 返回事件总线
func (c *Client) Events() EventBus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.eventBus
}

// Security 返回安全信封
func (c *Client) Security() Envelope {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.envelope
}

// ID 返回本机身份指纹（公钥 SHA-256 的 base58 编码）
func (c *Client) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.envelope == nil {
		return ""
	}
	return c.envelope.Fingerprint()
}

// Addr 返回监听地址，未监听时为 nil
func (c *Client) Addr() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.transport == nil {
		return nil
	}
	return c.transport.Addr()
}

// Stats 返回运行统计快照
func (c *Client) Stats() types.StatsSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stats == nil {
		return types.StatsSnapshot{}
	}
	return c.stats.Snapshot()
}

// Config 返回生效配置的副本
func (c *Client) Config() config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.cfg
}
