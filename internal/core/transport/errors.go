package transport

import "errors"

var (
	// ErrTransportClosed 传输层已关闭
	ErrTransportClosed = errors.New("transport closed")

	// ErrAlreadyListening 已经在监听
	ErrAlreadyListening = errors.New("transport already listening")

	// ErrConnClosed 连接已关闭
	ErrConnClosed = errors.New("connection closed")

	// ErrBadChannelHeader 流首帧不是合法的通道 ID
	ErrBadChannelHeader = errors.New("bad channel header")
)
