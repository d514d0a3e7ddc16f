// Package interfaces 定义 Asinka 公共接口
//
// 本文件定义传输层接口：TCP + 多路复用之上的逻辑通道。
package interfaces

import (
	"context"
	"net"
	"time"

	"github.com/asinka/go-asinka/pkg/types"
)

// Transport 传输层
//
// 一条 TCP 连接承载多条多路复用流，每条流首帧写入通道 ID。
// 消息帧格式：uvarint 长度前缀 + 载荷，长度受配置的最大
// 消息尺寸约束（默认 4 MiB），读写两侧都强制检查。
type Transport interface {
	// Listen 开始监听入站连接
	//
	// 端口取自配置；配置端口为 0 时由系统分配，
	// 实际地址通过 Addr 查询。
	Listen(ctx context.Context) error

	// Addr 返回实际监听地址；未监听时返回 nil
	Addr() net.Addr

	// Dial 建立到对端的出站连接
	Dial(ctx context.Context, addr string) (Conn, error)

	// SetConnHandler 注册入站连接处理器
	//
	// 必须在 Listen 之前调用。每个入站连接在独立 goroutine
	// 中交给处理器。
	SetConnHandler(h func(Conn))

	// Shutdown 优雅关闭
	//
	// 停止接受新连接，等待存量连接排空（由 ctx 限定时长，
	// 默认 5 秒），超时后强制关闭。
	Shutdown(ctx context.Context) error
}

// Conn 一条多路复用连接
type Conn interface {
	// OpenStream 打开指定通道的出站流（首帧通道 ID 已写入）
	OpenStream(ctx context.Context, ch types.ChannelID) (Stream, error)

	// AcceptStream 接受一条入站流（首帧通道 ID 已解析）
	AcceptStream(ctx context.Context) (Stream, error)

	// LocalAddr 本端地址
	LocalAddr() string

	// RemoteAddr 对端地址
	RemoteAddr() string

	// Done 连接关闭通知通道
	Done() <-chan struct{}

	// IsClosed 连接是否已关闭
	IsClosed() bool

	// Close 关闭连接及其全部流
	Close() error
}

// Stream 一条逻辑通道上的消息流
type Stream interface {
	// Channel 返回流所属的通道 ID
	Channel() types.ChannelID

	// ReadMsg 读取一帧消息
	//
	// 帧长超过最大消息尺寸时返回 ErrMessageTooLarge。
	ReadMsg() ([]byte, error)

	// WriteMsg 写入一帧消息
	WriteMsg(data []byte) error

	// SetDeadline 设置读写截止时间
	SetDeadline(t time.Time) error

	// Close 关闭流
	Close() error
}
