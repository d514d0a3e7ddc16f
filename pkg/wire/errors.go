package wire

import "errors"

var (
	// ErrMalformed 消息字节不是合法的 wire format
	ErrMalformed = errors.New("malformed wire message")

	// ErrMessageTooLarge 帧长度超过最大消息尺寸
	ErrMessageTooLarge = errors.New("message exceeds size limit")

	// ErrEmptySync 同步消息未携带 update 或 delete
	ErrEmptySync = errors.New("sync message carries neither update nor delete")
)
