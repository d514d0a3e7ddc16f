package security

import "errors"

var (
	// ErrCryptoFailure 加解密失败（密钥错误、nonce 或密文被篡改）
	ErrCryptoFailure = errors.New("security: crypto failure")

	// ErrNilPrivateKey 私钥为空
	ErrNilPrivateKey = errors.New("security: nil private key")

	// ErrKeyTooSmall 密钥长度不足
	ErrKeyTooSmall = errors.New("security: key too small")

	// ErrBadSessionKey 会话密钥长度不是 32 字节
	ErrBadSessionKey = errors.New("security: session key must be 32 bytes")

	// ErrBadNonce nonce 长度不是 12 字节
	ErrBadNonce = errors.New("security: nonce must be 12 bytes")
)
