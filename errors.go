package asinka

import "errors"

var (
	// ErrClientClosed 客户端已关闭，不可再使用
	ErrClientClosed = errors.New("asinka: client closed")
	// ErrNotStarted 客户端未处于运行状态
	ErrNotStarted = errors.New("asinka: client not started")
	// ErrNilOption 传入了 nil 选项
	ErrNilOption = errors.New("asinka: nil option")
)
