// Package interfaces 定义 Asinka 公共接口
//
// 本文件定义安全信封接口：进程身份与会话载荷加密。
package interfaces

// Envelope 安全信封
//
// 身份侧：每个进程持有一对 RSA-2048 密钥，公钥在握手时交换，
// 签名算法为 PKCS#1 v1.5 + SHA-256。
// 会话侧：每个会话持有 256 位对称密钥，载荷用 AES-256-GCM
// 封装，nonce 96 位逐消息随机生成，认证标签 128 位。
type Envelope interface {
	// PublicKey 返回本机身份公钥（PKIX DER 编码）
	//
	// 返回新切片，调用方可自由修改。
	PublicKey() []byte

	// Fingerprint 返回身份指纹
	//
	// base58(SHA-256(PKIX 公钥))，用于日志与服务公告。
	Fingerprint() string

	// Sign 用本机私钥签名数据
	Sign(data []byte) ([]byte, error)

	// Verify 用给定公钥（PKIX DER）验证签名
	//
	// 签名不匹配返回 (false, nil)；公钥无法解析等结构性
	// 问题返回错误。
	Verify(publicKey, data, sig []byte) (bool, error)

	// NewSessionKey 生成 256 位会话密钥（CSPRNG）
	NewSessionKey() ([]byte, error)

	// SealKey 用对端公钥封装会话密钥（RSA-OAEP + SHA-256）
	//
	// 握手应答方调用，密文随握手应答送回发起方。
	SealKey(peerPublicKey, sessionKey []byte) ([]byte, error)

	// OpenKey 用本机私钥解封会话密钥
	OpenKey(box []byte) ([]byte, error)

	// Seal 用会话密钥加密载荷
	//
	// 每次调用生成全新的 96 位随机 nonce，nonce 与密文一起
	// 返回并随消息传输。
	Seal(sessionKey, plaintext []byte) (nonce, ciphertext []byte, err error)

	// Open 用会话密钥解密载荷
	//
	// nonce 或密文被篡改时返回 ErrCryptoFailure。
	Open(sessionKey, nonce, ciphertext []byte) ([]byte, error)
}
