// Package security 实现安全信封
//
// 安全信封承担两类职责：
//
//   - 进程身份：RSA-2048 密钥对，公钥以 PKIX DER 编码在握手时交换，
//     指纹为 base58(SHA-256(公钥))，签名算法 PKCS#1 v1.5 + SHA-256
//   - 会话加密：握手应答方生成 256 位会话密钥并用发起方公钥
//     RSA-OAEP 封装送回；之后同步与事件载荷用 AES-256-GCM 加密，
//     每条消息的 96 位 nonce 由 CSPRNG 独立生成
//
// # 使用示例
//
//	env, _ := security.New()
//
//	key, _ := env.NewSessionKey()
//	nonce, ct, _ := env.Seal(key, plaintext)
//	pt, _ := env.Open(key, nonce, ct)
//
// # Fx 模块
//
//	app := fx.New(
//	    security.Module(),
//	)
//
// 架构层：Core Layer
// 公共接口：pkg/interfaces/security.go
package security
