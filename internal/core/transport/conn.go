package transport

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/yamux"

	pkgif "github.com/asinka/go-asinka/pkg/interfaces"
	"github.com/asinka/go-asinka/pkg/types"
	"github.com/asinka/go-asinka/pkg/wire"
)

// ============================================================================
//                              Conn - 多路复用连接
// ============================================================================

// Conn 一条多路复用 TCP 连接
//
// 每次流读写都会刷新活动时间戳，空闲回收器据此判定
// 连接是否可以关闭。
type Conn struct {
	t    *Transport
	sess *yamux.Session

	// lastActive 最近一次流活动的时间（unix 纳秒）
	lastActive atomic.Int64
}

// 确保实现接口
var _ pkgif.Conn = (*Conn)(nil)

// newConn 封装 yamux 会话
func newConn(t *Transport, sess *yamux.Session) *Conn {
	c := &Conn{t: t, sess: sess}
	c.touch()
	return c
}

// touch 刷新活动时间戳
func (c *Conn) touch() {
	c.lastActive.Store(c.t.opts.Clock.Now().UnixNano())
}

// idleBefore 判断最近活动是否早于 cutoff
func (c *Conn) idleBefore(cutoff time.Time) bool {
	return c.lastActive.Load() < cutoff.UnixNano()
}

// ============================================================================
//                              流的打开与接受
// ============================================================================

// OpenStream 打开指定通道的出站流
//
// 首帧写入通道 ID，对端 AcceptStream 时解析。
func (c *Conn) OpenStream(ctx context.Context, ch types.ChannelID) (pkgif.Stream, error) {
	if c.sess.IsClosed() {
		return nil, ErrConnClosed
	}

	raw, err := c.openRaw(ctx)
	if err != nil {
		return nil, err
	}

	deadline := c.headerDeadline(ctx)
	_ = raw.SetWriteDeadline(deadline)
	if err := wire.WriteFrame(raw, []byte(ch), maxChannelFrame); err != nil {
		raw.Close()
		return nil, fmt.Errorf("write channel header: %w", err)
	}
	_ = raw.SetWriteDeadline(time.Time{})

	c.touch()
	return newStream(c, raw, ch), nil
}

// openRaw 打开底层流
//
// yamux 的 OpenStream 不接受 context，在独立 goroutine 中
// 执行并用 select 对齐取消语义；调用方放弃时回收孤立的流。
func (c *Conn) openRaw(ctx context.Context) (*yamux.Stream, error) {
	type result struct {
		stream *yamux.Stream
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		s, err := c.sess.OpenStream()
		select {
		case resultCh <- result{stream: s, err: err}:
		default:
			if s != nil {
				_ = s.Close()
			}
		}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-resultCh:
		if r.err != nil {
			return nil, fmt.Errorf("open stream: %w", r.err)
		}
		return r.stream, nil
	}
}

// AcceptStream 接受一条入站流并解析通道 ID 首帧
func (c *Conn) AcceptStream(ctx context.Context) (pkgif.Stream, error) {
	raw, err := c.sess.AcceptStreamWithContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("accept stream: %w", err)
	}

	s := newStream(c, raw, "")

	// 对端打开流后立即写首帧，这里的读截止只防备不写首帧的对端
	_ = raw.SetReadDeadline(c.headerDeadline(ctx))
	header, err := wire.ReadFrame(s.br, maxChannelFrame)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("read channel header: %w", err)
	}
	_ = raw.SetReadDeadline(time.Time{})

	if len(header) == 0 {
		raw.Close()
		return nil, ErrBadChannelHeader
	}
	s.ch = types.ChannelID(header)

	c.touch()
	return s, nil
}

// headerDeadline 计算首帧交换的截止时间
func (c *Conn) headerDeadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(channelHeaderTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return deadline
}

// ============================================================================
//                              状态与关闭
// ============================================================================

// LocalAddr 本端地址
func (c *Conn) LocalAddr() string {
	return c.sess.LocalAddr().String()
}

// RemoteAddr 对端地址
func (c *Conn) RemoteAddr() string {
	return c.sess.RemoteAddr().String()
}

// Done 连接关闭通知通道
func (c *Conn) Done() <-chan struct{} {
	return c.sess.CloseChan()
}

// IsClosed 连接是否已关闭
func (c *Conn) IsClosed() bool {
	return c.sess.IsClosed()
}

// Close 关闭连接及其全部流
func (c *Conn) Close() error {
	return c.sess.Close()
}
