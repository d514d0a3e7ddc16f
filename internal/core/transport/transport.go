package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/yamux"
	"go.uber.org/multierr"

	"github.com/asinka/go-asinka/internal/core/stats"
	pkgif "github.com/asinka/go-asinka/pkg/interfaces"
	"github.com/asinka/go-asinka/pkg/lib/log"
)

var logger = log.Logger("core/transport")

// 传输层常量
const (
	// DefaultMaxMessageSize 单帧载荷上限（4 MiB）
	DefaultMaxMessageSize = 4 << 20

	// maxChannelFrame 流首帧（通道 ID）的长度上限
	maxChannelFrame = 256

	// channelHeaderTimeout 等待对端写入通道 ID 首帧的上限
	channelHeaderTimeout = 10 * time.Second

	// minReapInterval 空闲回收器的最小扫描间隔
	minReapInterval = time.Second
)

// ============================================================================
//                              选项
// ============================================================================

// Options 传输层选项
type Options struct {
	// Port 监听端口，0 表示由系统分配
	Port int

	// MaxMessageSize 单帧载荷上限（字节），0 表示默认 4 MiB
	MaxMessageSize int

	// DialTimeout 拨号超时，0 表示不限制（由 ctx 约束）
	DialTimeout time.Duration

	// KeepAliveInterval 多路复用层保活间隔，0 表示禁用保活
	KeepAliveInterval time.Duration

	// KeepAliveTimeout 多路复用层写超时
	KeepAliveTimeout time.Duration

	// IdleTimeout 连接空闲回收阈值，0 表示禁用回收器
	IdleTimeout time.Duration

	// NoDelay 是否禁用 Nagle 算法
	NoDelay bool

	// Clock 时钟源，nil 时使用真实时钟
	Clock clock.Clock

	// Stats 统计收集器，nil 时自建一个私有收集器
	Stats *stats.Collector
}

// ============================================================================
//                              Transport - TCP + yamux 传输层
// ============================================================================

// Transport TCP + yamux 传输层实现
//
// Listen 之后每个入站连接在独立 goroutine 中交给注册的
// 处理器；Dial 建立出站连接。两侧的连接都登记在连接表中，
// 供空闲回收器与优雅关闭使用。
type Transport struct {
	opts Options

	mu       sync.Mutex
	listener net.Listener
	handler  func(pkgif.Conn)
	conns    map[*Conn]struct{}
	closed   bool

	// drained 在关闭流程中等待连接表清空
	drained chan struct{}

	stopCh     chan struct{}
	reaperOnce sync.Once
	wg         sync.WaitGroup
}

// 确保实现接口
var _ pkgif.Transport = (*Transport)(nil)

// New 创建传输层
func New(opts Options) *Transport {
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = DefaultMaxMessageSize
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Stats == nil {
		opts.Stats = stats.NewCollector()
	}
	return &Transport{
		opts:   opts,
		conns:  make(map[*Conn]struct{}),
		stopCh: make(chan struct{}),
	}
}

// ============================================================================
//                              监听与拨号
// ============================================================================

// SetConnHandler 注册入站连接处理器
func (t *Transport) SetConnHandler(h func(pkgif.Conn)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

// Listen 开始监听入站连接
func (t *Transport) Listen(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	if t.listener != nil {
		t.mu.Unlock()
		return ErrAlreadyListening
	}
	t.mu.Unlock()

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", t.opts.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		ln.Close()
		return ErrTransportClosed
	}
	t.listener = ln
	t.mu.Unlock()

	t.wg.Add(1)
	go t.acceptLoop(ln)

	logger.Info("传输层开始监听", "addr", ln.Addr().String())
	return nil
}

// Addr 返回实际监听地址
func (t *Transport) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// acceptLoop 接受入站连接并交给处理器
func (t *Transport) acceptLoop(ln net.Listener) {
	defer t.wg.Done()

	for {
		raw, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				logger.Warn("接受连接失败", "error", err)
			}
			return
		}

		conn, err := t.wrapConn(raw, true)
		if err != nil {
			logger.Warn("入站连接初始化失败", "remote", raw.RemoteAddr().String(), "error", err)
			raw.Close()
			continue
		}

		t.mu.Lock()
		handler := t.handler
		t.mu.Unlock()
		if handler == nil {
			logger.Warn("没有注册连接处理器，关闭入站连接", "remote", conn.RemoteAddr())
			conn.Close()
			continue
		}

		logger.Debug("接受入站连接", "remote", conn.RemoteAddr())
		go handler(conn)
	}
}

// Dial 建立到对端的出站连接
func (t *Transport) Dial(ctx context.Context, addr string) (pkgif.Conn, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}
	t.mu.Unlock()

	dialer := &net.Dialer{Timeout: t.opts.DialTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	conn, err := t.wrapConn(raw, false)
	if err != nil {
		raw.Close()
		return nil, err
	}

	logger.Debug("建立出站连接", "remote", conn.RemoteAddr())
	return conn, nil
}

// wrapConn 在原始 TCP 连接上建立多路复用会话并登记
func (t *Transport) wrapConn(raw net.Conn, inbound bool) (*Conn, error) {
	if tcpConn, ok := raw.(*net.TCPConn); ok && t.opts.NoDelay {
		_ = tcpConn.SetNoDelay(true)
	}

	var sess *yamux.Session
	var err error
	if inbound {
		sess, err = yamux.Server(raw, t.yamuxConfig())
	} else {
		sess, err = yamux.Client(raw, t.yamuxConfig())
	}
	if err != nil {
		return nil, fmt.Errorf("mux session: %w", err)
	}

	conn := newConn(t, sess)
	if err := t.addConn(conn); err != nil {
		sess.Close()
		return nil, err
	}
	return conn, nil
}

// yamuxConfig 根据选项构造 yamux 配置
func (t *Transport) yamuxConfig() *yamux.Config {
	cfg := yamux.DefaultConfig()
	cfg.EnableKeepAlive = t.opts.KeepAliveInterval > 0
	if t.opts.KeepAliveInterval > 0 {
		cfg.KeepAliveInterval = t.opts.KeepAliveInterval
	}
	if t.opts.KeepAliveTimeout > 0 {
		cfg.ConnectionWriteTimeout = t.opts.KeepAliveTimeout
	}
	// 窗口放大到 1 MiB，减少大帧的往返等待
	cfg.MaxStreamWindowSize = 1 << 20
	cfg.LogOutput = io.Discard
	return cfg
}

// ============================================================================
//                              连接表
// ============================================================================

// addConn 登记连接并启动清理与回收
func (t *Transport) addConn(c *Conn) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	t.conns[c] = struct{}{}
	t.mu.Unlock()

	// 连接无论因何关闭都从连接表摘除
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		select {
		case <-c.Done():
		case <-t.stopCh:
		}
		t.removeConn(c)
	}()

	if t.opts.IdleTimeout > 0 {
		t.reaperOnce.Do(func() {
			t.wg.Add(1)
			go t.reapLoop()
		})
	}
	return nil
}

// removeConn 从连接表摘除连接
func (t *Transport) removeConn(c *Conn) {
	t.mu.Lock()
	delete(t.conns, c)
	if t.drained != nil && len(t.conns) == 0 {
		close(t.drained)
		t.drained = nil
	}
	t.mu.Unlock()
}

// snapshotConns 返回当前连接表的快照
func (t *Transport) snapshotConns() []*Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	conns := make([]*Conn, 0, len(t.conns))
	for c := range t.conns {
		conns = append(conns, c)
	}
	return conns
}

// ConnCount 返回当前连接数量
func (t *Transport) ConnCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// ============================================================================
//                              空闲回收
// ============================================================================

// reapLoop 周期扫描并关闭空闲连接
func (t *Transport) reapLoop() {
	defer t.wg.Done()

	interval := t.opts.IdleTimeout / 4
	if interval < minReapInterval {
		interval = minReapInterval
	}
	ticker := t.opts.Clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.reapIdle()
		}
	}
}

// reapIdle 关闭超过空闲阈值的连接
func (t *Transport) reapIdle() {
	cutoff := t.opts.Clock.Now().Add(-t.opts.IdleTimeout)
	for _, c := range t.snapshotConns() {
		if c.idleBefore(cutoff) {
			logger.Info("回收空闲连接", "remote", c.RemoteAddr())
			_ = c.Close()
		}
	}
}

// ============================================================================
//                              优雅关闭
// ============================================================================

// Shutdown 优雅关闭传输层
//
// 停止接受新连接，等待存量连接排空；ctx 到期后强制关闭
// 仍然存活的连接。重复调用直接返回 nil。
func (t *Transport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	ln := t.listener
	t.listener = nil

	var drained chan struct{}
	if len(t.conns) > 0 {
		drained = make(chan struct{})
		t.drained = drained
	}
	t.mu.Unlock()

	var errs error
	if ln != nil {
		errs = multierr.Append(errs, ln.Close())
	}

	if drained != nil {
		select {
		case <-drained:
		case <-ctx.Done():
			remaining := t.snapshotConns()
			logger.Warn("排空超时，强制关闭存量连接", "count", len(remaining))
			for _, c := range remaining {
				errs = multierr.Append(errs, c.Close())
			}
		}
	}

	close(t.stopCh)
	t.wg.Wait()
	logger.Info("传输层已关闭")
	return errs
}
