package handshake

import "errors"

var (
	// ErrRefused 握手被拒绝
	//
	// 协议不相交、应答缺少必要字段或会话密钥无法解封时，
	// 返回包裹本错误的具体原因。
	ErrRefused = errors.New("handshake: refused")

	// ErrNilRequest 握手请求为空
	ErrNilRequest = errors.New("handshake: nil request")
)
