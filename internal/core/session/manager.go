package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/asinka/go-asinka/internal/core/handshake"
	"github.com/asinka/go-asinka/internal/core/stats"
	pkgif "github.com/asinka/go-asinka/pkg/interfaces"
	"github.com/asinka/go-asinka/pkg/lib/log"
	"github.com/asinka/go-asinka/pkg/protocolids"
	"github.com/asinka/go-asinka/pkg/types"
	"github.com/asinka/go-asinka/pkg/wire"
)

var logger = log.Logger("core/session")

// 会话管理默认值
const (
	// DefaultHeartbeatInterval 默认心跳间隔
	DefaultHeartbeatInterval = 30 * time.Second

	// DefaultMaxMissed 连续错过多少次心跳判定对端失联
	DefaultMaxMissed = 3

	// DefaultUnaryTimeout 单次请求/应答交换的默认超时
	DefaultUnaryTimeout = 5 * time.Second

	// DefaultDialTimeout 自动拨号的默认超时
	DefaultDialTimeout = 10 * time.Second
)

// instancePrefix 本系统服务实例名的固定前缀
const instancePrefix = "asinka-"

// ============================================================================
//                              Manager - 会话管理器
// ============================================================================

// Options 会话管理器选项
type Options struct {
	// Envelope 安全信封
	Envelope pkgif.Envelope

	// Registry 对象注册表
	Registry pkgif.Registry

	// EventBus 事件总线
	EventBus pkgif.EventBus

	// Transport 传输层
	Transport pkgif.Transport

	// Discovery 发现端口，nil 时关闭自动拨号
	Discovery pkgif.Discovery

	// Engine 握手引擎
	Engine *handshake.Engine

	// Stats 统计收集器，nil 时自建一个私有收集器
	Stats *stats.Collector

	// Clock 时钟源，nil 时使用真实时钟
	Clock clock.Clock

	// DeviceID 本机设备 ID，用于过滤发现流中的自身公告
	DeviceID string

	// HeartbeatInterval 心跳间隔，0 取默认值，负数禁用心跳
	HeartbeatInterval time.Duration

	// MaxMissed 连续错过多少次心跳判定失联
	MaxMissed int

	// UnaryTimeout 握手、事件、心跳交换的超时
	UnaryTimeout time.Duration

	// DialTimeout 自动拨号超时
	DialTimeout time.Duration
}

// Manager 会话管理器实现
//
// 持有会话表并驱动每个会话的后台任务。入站连接由传输层
// 处理器接入并完成握手；发现流中的新对端自动拨号。
// 管理器自持后台上下文，关闭时取消它即联动关闭全部会话。
type Manager struct {
	env       pkgif.Envelope
	registry  pkgif.Registry
	bus       pkgif.EventBus
	transport pkgif.Transport
	discovery pkgif.Discovery
	engine    *handshake.Engine
	stats     *stats.Collector
	clk       clock.Clock

	deviceID          string
	heartbeatInterval time.Duration
	maxMissed         int
	unaryTimeout      time.Duration
	dialTimeout       time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
}

// 确保实现接口
var _ pkgif.SessionManager = (*Manager)(nil)

// NewManager 创建会话管理器
//
// 构造即向传输层登记入站连接处理器，传输层开始监听后
// 入站连接立即可以握手。
func NewManager(opts Options) *Manager {
	if opts.Stats == nil {
		opts.Stats = stats.NewCollector()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.MaxMissed <= 0 {
		opts.MaxMissed = DefaultMaxMissed
	}
	if opts.UnaryTimeout <= 0 {
		opts.UnaryTimeout = DefaultUnaryTimeout
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}

	// 生命周期钩子的 ctx 在钩子返回后即失效，
	// 后台任务使用自持的上下文
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		env:               opts.Envelope,
		registry:          opts.Registry,
		bus:               opts.EventBus,
		transport:         opts.Transport,
		discovery:         opts.Discovery,
		engine:            opts.Engine,
		stats:             opts.Stats,
		clk:               opts.Clock,
		deviceID:          opts.DeviceID,
		heartbeatInterval: opts.HeartbeatInterval,
		maxMissed:         opts.MaxMissed,
		unaryTimeout:      opts.UnaryTimeout,
		dialTimeout:       opts.DialTimeout,
		sessions:          make(map[string]*Session),
		ctx:               ctx,
		cancel:            cancel,
	}
	m.transport.SetConnHandler(m.handleConn)
	return m
}

// ============================================================================
//                              启动与关闭
// ============================================================================

// Start 启动事件扇出泵与自动拨号（幂等）
func (m *Manager) Start() error {
	if !m.started.CompareAndSwap(false, true) {
		return nil
	}

	m.wg.Add(1)
	go m.eventPump()

	if m.discovery != nil {
		events, err := m.discovery.Discover(m.ctx)
		if err != nil {
			logger.Warn("发现浏览启动失败，自动拨号不可用", "error", err)
		} else {
			m.wg.Add(1)
			go m.autoConnectLoop(events)
		}
	}
	return nil
}

// Close 关闭全部会话并等待后台任务退出
//
// 每个会话的回收等待由 ctx 限定时长，超时的会话记录
// 警告后继续。重复调用直接返回。
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	m.cancel()

	for _, s := range sessions {
		select {
		case <-s.done:
		case <-ctx.Done():
			logger.Warn("等待会话回收超时", "session", log.TruncateID(s.id, 8))
		}
	}
	m.wg.Wait()

	logger.Info("会话管理器关闭", "sessions", len(sessions))
	return nil
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// ============================================================================
//                              出站连接
// ============================================================================

// Connect 显式连接到对端并完成握手
func (m *Manager) Connect(ctx context.Context, addr string) (types.SessionInfo, error) {
	return m.dial(ctx, addr, "")
}

// dial 建连、握手并登记会话
//
// knownDeviceID 是发现公告里的对端设备 ID；握手应答不携带
// 设备标识，自动拨号经此补全会话信息。
func (m *Manager) dial(ctx context.Context, addr, knownDeviceID string) (types.SessionInfo, error) {
	if m.isClosed() {
		return types.SessionInfo{}, ErrManagerClosed
	}

	logger.Debug("拨号", "addr", addr)
	conn, err := m.transport.Dial(ctx, addr)
	if err != nil {
		return types.SessionInfo{}, fmt.Errorf("connect %s: %w", addr, err)
	}

	res, err := m.handshakeOut(ctx, conn)
	if err != nil {
		conn.Close()
		return types.SessionInfo{}, err
	}

	// 同步流由拨号方打开，接受方在入站流分发中收编
	stream, err := conn.OpenStream(ctx, protocolids.SysSync)
	if err != nil {
		conn.Close()
		return types.SessionInfo{}, fmt.Errorf("open sync stream: %w", err)
	}

	s := newSession(m, conn, res, knownDeviceID)
	s.adoptSyncStream(stream)
	if err := m.addSession(s); err != nil {
		s.discard()
		conn.Close()
		return types.SessionInfo{}, err
	}
	s.run()

	logger.Info("会话建立（出站）",
		"session", log.TruncateID(s.id, 8), "addr", addr)
	return s.Info(), nil
}

// handshakeOut 出站握手交换
func (m *Manager) handshakeOut(ctx context.Context, conn pkgif.Conn) (*handshake.Result, error) {
	hctx, cancel := context.WithTimeout(ctx, m.unaryTimeout)
	defer cancel()

	stream, err := conn.OpenStream(hctx, protocolids.SysHandshake)
	if err != nil {
		return nil, fmt.Errorf("open handshake stream: %w", err)
	}
	defer stream.Close()
	_ = stream.SetDeadline(time.Now().Add(m.unaryTimeout))

	if err := stream.WriteMsg(m.engine.BuildRequest().Marshal()); err != nil {
		return nil, fmt.Errorf("write handshake request: %w", err)
	}
	data, err := stream.ReadMsg()
	if err != nil {
		return nil, fmt.Errorf("read handshake response: %w", err)
	}
	var resp wire.HandshakeResponse
	if err := resp.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("decode handshake response: %w", err)
	}
	return m.engine.ValidateResponse(&resp)
}

// ============================================================================
//                              入站连接
// ============================================================================

// handleConn 入站连接处理器（传输层回调）
func (m *Manager) handleConn(conn pkgif.Conn) {
	if m.isClosed() {
		conn.Close()
		return
	}

	res, err := m.handshakeIn(conn)
	if err != nil {
		logger.Info("入站握手失败", "remote", conn.RemoteAddr(), "error", err)
		conn.Close()
		return
	}
	if res == nil {
		// 拒绝应答已送出
		conn.Close()
		return
	}

	s := newSession(m, conn, res, "")
	if err := m.addSession(s); err != nil {
		logger.Warn("入站会话登记失败",
			"session", log.TruncateID(res.SessionID, 8), "error", err)
		s.discard()
		conn.Close()
		return
	}
	s.run()

	logger.Info("会话建立（入站）",
		"session", log.TruncateID(s.id, 8),
		"app_id", res.PeerAppID,
		"remote", conn.RemoteAddr())
}

// handshakeIn 入站握手交换
//
// 握手被拒时应答已回写、返回 (nil, nil)，连接由调用方关闭。
func (m *Manager) handshakeIn(conn pkgif.Conn) (*handshake.Result, error) {
	hctx, cancel := context.WithTimeout(m.ctx, m.unaryTimeout)
	defer cancel()

	stream, err := conn.AcceptStream(hctx)
	if err != nil {
		return nil, fmt.Errorf("accept handshake stream: %w", err)
	}
	defer stream.Close()
	_ = stream.SetDeadline(time.Now().Add(m.unaryTimeout))

	if stream.Channel() != protocolids.SysHandshake {
		return nil, fmt.Errorf("unexpected first channel %q", stream.Channel())
	}

	data, err := stream.ReadMsg()
	if err != nil {
		return nil, fmt.Errorf("read handshake request: %w", err)
	}
	var req wire.HandshakeRequest
	if err := req.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("decode handshake request: %w", err)
	}

	resp, res := m.engine.ProcessRequest(&req)
	if err := stream.WriteMsg(resp.Marshal()); err != nil {
		return nil, fmt.Errorf("write handshake response: %w", err)
	}
	return res, nil
}

// ============================================================================
//                              会话表
// ============================================================================

// addSession 登记会话
func (m *Manager) addSession(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	if _, ok := m.sessions[s.id]; ok {
		return ErrDuplicateSession
	}
	m.sessions[s.id] = s
	m.stats.AddSessionOpened()
	return nil
}

// dropSession 从会话表移除（回收路径调用）
func (m *Manager) dropSession(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// snapshotSessions 复制当前会话表
func (m *Manager) snapshotSessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// hasSessionToDevice 判断与设备是否已有活跃会话
func (m *Manager) hasSessionToDevice(deviceID string) bool {
	if deviceID == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.info.RemoteDeviceID == deviceID && s.Phase() == types.PhaseActive {
			return true
		}
	}
	return false
}

// ==================== SessionManager 接口 ====================

// Disconnect 主动关闭会话
func (m *Manager) Disconnect(sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	logger.Info("主动断开会话", "session", log.TruncateID(sessionID, 8))
	return s.Close()
}

// Sessions 返回全部 Active 会话的快照
func (m *Manager) Sessions() []types.SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.Phase() != types.PhaseActive {
			continue
		}
		out = append(out, s.Info())
	}
	return out
}

// Session 按 ID 查询会话快照（任意阶段）
func (m *Manager) Session(sessionID string) (types.SessionInfo, bool) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return types.SessionInfo{}, false
	}
	return s.Info(), true
}

// ============================================================================
//                              事件扇出
// ============================================================================

// eventPump 把本地出站事件扇出到全部活跃会话
func (m *Manager) eventPump() {
	defer m.wg.Done()

	sub := m.bus.ObserveOutbound()
	defer sub.Close()

	for {
		select {
		case <-m.ctx.Done():
			return
		case ev, ok := <-sub.Out():
			if !ok {
				return
			}
			m.broadcastEvent(ev)
		}
	}
}

// broadcastEvent 并行投递事件到每个活跃会话
//
// 尽力而为：单个会话的投递失败记录日志后继续，
// 不影响其他会话。
func (m *Manager) broadcastEvent(ev *types.Event) {
	sessions := m.snapshotSessions()
	if len(sessions) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, s := range sessions {
		if s.Phase() != types.PhaseActive {
			continue
		}
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			if err := s.sendEvent(m.ctx, ev); err != nil {
				logger.Warn("事件投递失败",
					"session", log.TruncateID(s.id, 8),
					"type", ev.Type,
					"error", err)
			}
		}(s)
	}
	wg.Wait()
}

// ============================================================================
//                              自动拨号
// ============================================================================

// autoConnectLoop 消费发现流并向新对端拨号
func (m *Manager) autoConnectLoop(events <-chan types.DiscoveryEvent) {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case types.ServiceFound:
				m.maybeDial(ev.Service)
			case types.ServiceLost:
				logger.Debug("服务离线", "instance", ev.Service.Instance)
			case types.ServiceError:
				logger.Warn("发现流错误", "error", ev.Err)
			}
		}
	}
}

// maybeDial 对发现的服务做过滤后异步拨号
//
// 过滤：非本系统实例、本机公告、同设备已有活跃会话、
// 无可拨地址。
func (m *Manager) maybeDial(si types.ServiceInfo) {
	if !strings.HasPrefix(si.Instance, instancePrefix) {
		return
	}
	if m.discovery != nil && si.Instance == m.discovery.InstanceName() {
		return
	}
	deviceID := si.DeviceID()
	if deviceID != "" && deviceID == m.deviceID {
		return
	}
	if m.hasSessionToDevice(deviceID) {
		return
	}
	addr := si.DialAddr()
	if addr == "" {
		logger.Debug("发现的服务无可拨地址", "instance", si.Instance)
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(m.ctx, m.dialTimeout)
		defer cancel()
		if _, err := m.dial(ctx, addr, deviceID); err != nil {
			logger.Warn("自动拨号失败",
				"instance", si.Instance, "addr", addr, "error", err)
		}
	}()
}
