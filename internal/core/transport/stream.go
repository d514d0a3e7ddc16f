package transport

import (
	"bufio"
	"sync/atomic"
	"time"

	"github.com/hashicorp/yamux"

	pkgif "github.com/asinka/go-asinka/pkg/interfaces"
	"github.com/asinka/go-asinka/pkg/types"
	"github.com/asinka/go-asinka/pkg/wire"
)

// ============================================================================
//                              Stream - 逻辑通道流
// ============================================================================

// Stream 一条逻辑通道上的消息流
type Stream struct {
	conn *Conn
	raw  *yamux.Stream
	br   *bufio.Reader
	ch   types.ChannelID

	closed atomic.Bool
}

// 确保实现接口
var _ pkgif.Stream = (*Stream)(nil)

// newStream 封装 yamux 流
func newStream(c *Conn, raw *yamux.Stream, ch types.ChannelID) *Stream {
	return &Stream{
		conn: c,
		raw:  raw,
		br:   bufio.NewReader(raw),
		ch:   ch,
	}
}

// Channel 返回流所属的通道 ID
func (s *Stream) Channel() types.ChannelID {
	return s.ch
}

// ReadMsg 读取一帧消息
func (s *Stream) ReadMsg() ([]byte, error) {
	data, err := wire.ReadFrame(s.br, uint64(s.conn.t.opts.MaxMessageSize))
	if err != nil {
		return nil, err
	}
	s.conn.touch()
	s.conn.t.opts.Stats.LogMessageIn(s.ch, len(data))
	return data, nil
}

// WriteMsg 写入一帧消息
func (s *Stream) WriteMsg(data []byte) error {
	if err := wire.WriteFrame(s.raw, data, uint64(s.conn.t.opts.MaxMessageSize)); err != nil {
		return err
	}
	s.conn.touch()
	s.conn.t.opts.Stats.LogMessageOut(s.ch, len(data))
	return nil
}

// SetDeadline 设置读写截止时间
func (s *Stream) SetDeadline(t time.Time) error {
	return s.raw.SetDeadline(t)
}

// Close 关闭流
func (s *Stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.raw.Close()
}
