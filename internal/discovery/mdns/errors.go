package mdns

import "errors"

var (
	// ErrClosed 提供方已关闭
	ErrClosed = errors.New("mdns: provider closed")

	// ErrAlreadyAdvertising 已经在公告中
	ErrAlreadyAdvertising = errors.New("mdns: already advertising")

	// ErrNotListening 传输层尚未监听，公告端口未知
	ErrNotListening = errors.New("mdns: transport not listening")

	// ErrNoAddresses 没有适合公告的本机地址
	ErrNoAddresses = errors.New("mdns: no addresses suitable for advertisement")

	// ErrAdvertise 公告注册失败
	ErrAdvertise = errors.New("mdns: failed to start advertisement")

	// ErrBrowse 浏览启动失败
	ErrBrowse = errors.New("mdns: failed to start browse")
)
