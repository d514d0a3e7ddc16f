package security

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/asinka/go-asinka/pkg/lib/log"
)

var logger = log.Logger("core/security")

// 密钥与信封参数
const (
	// KeyBits 身份密钥长度（位）
	KeyBits = 2048

	// SessionKeySize 会话密钥长度（字节）
	SessionKeySize = 32

	// NonceSize AEAD nonce 长度（字节）
	NonceSize = 12
)

// ============================================================================
//                              Envelope - 安全信封
// ============================================================================

// Envelope 安全信封实现
//
// 持有进程身份私钥；所有方法并发安全（私钥创建后只读，
// AEAD 随用随建）。
type Envelope struct {
	priv        *rsa.PrivateKey
	pubPKIX     []byte
	fingerprint string
}

// New 生成新身份并创建信封
func New() (*Envelope, error) {
	priv, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate identity key: %w", err)
	}
	return NewFromKey(priv)
}

// NewFromKey 用外部提供的身份私钥创建信封
//
// 密钥不足 2048 位时拒绝。
func NewFromKey(priv *rsa.PrivateKey) (*Envelope, error) {
	if priv == nil {
		return nil, ErrNilPrivateKey
	}
	if priv.N.BitLen() < KeyBits {
		return nil, fmt.Errorf("%w: %d bits, need %d", ErrKeyTooSmall, priv.N.BitLen(), KeyBits)
	}

	pubPKIX, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}

	sum := sha256.Sum256(pubPKIX)
	fp := base58.Encode(sum[:])

	logger.Debug("安全信封就绪", "fingerprint", log.TruncateID(fp, 8))

	return &Envelope{
		priv:        priv,
		pubPKIX:     pubPKIX,
		fingerprint: fp,
	}, nil
}

// ============================================================================
//                              身份
// ============================================================================

// PublicKey 返回 PKIX DER 编码的身份公钥
func (e *Envelope) PublicKey() []byte {
	out := make([]byte, len(e.pubPKIX))
	copy(out, e.pubPKIX)
	return out
}

// Fingerprint 返回身份指纹 base58(SHA-256(公钥))
func (e *Envelope) Fingerprint() string {
	return e.fingerprint
}

// FingerprintOf 计算任意 PKIX 公钥的指纹
//
// 与 Fingerprint 同构，用于展示对端身份。
func FingerprintOf(publicKey []byte) string {
	sum := sha256.Sum256(publicKey)
	return base58.Encode(sum[:])
}

// Sign 用身份私钥签名（PKCS#1 v1.5 + SHA-256）
func (e *Envelope) Sign(data []byte) ([]byte, error) {
	hash := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, e.priv, crypto.SHA256, hash[:])
	if err != nil {
		return nil, fmt.Errorf("%w: sign: %v", ErrCryptoFailure, err)
	}
	return sig, nil
}

// Verify 用给定公钥验证签名
//
// 签名不匹配返回 (false, nil)；公钥无法解析返回错误。
func (e *Envelope) Verify(publicKey, data, sig []byte) (bool, error) {
	pub, err := parsePublicKey(publicKey)
	if err != nil {
		return false, err
	}
	hash := sha256.Sum256(data)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, hash[:], sig); err != nil {
		return false, nil
	}
	return true, nil
}

// parsePublicKey 解析 PKIX DER 编码的 RSA 公钥
func parsePublicKey(der []byte) (*rsa.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: parse public key: %v", ErrCryptoFailure, err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA public key", ErrCryptoFailure)
	}
	return pub, nil
}

// ============================================================================
//                              会话密钥
// ============================================================================

// NewSessionKey 生成 256 位会话密钥
func (e *Envelope) NewSessionKey() ([]byte, error) {
	key := make([]byte, SessionKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%w: generate session key: %v", ErrCryptoFailure, err)
	}
	return key, nil
}

// SealKey 用对端公钥封装会话密钥（RSA-OAEP + SHA-256）
func (e *Envelope) SealKey(peerPublicKey, sessionKey []byte) ([]byte, error) {
	if len(sessionKey) != SessionKeySize {
		return nil, ErrBadSessionKey
	}
	pub, err := parsePublicKey(peerPublicKey)
	if err != nil {
		return nil, err
	}
	box, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, sessionKey, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: seal session key: %v", ErrCryptoFailure, err)
	}
	return box, nil
}

// OpenKey 用身份私钥解封会话密钥
func (e *Envelope) OpenKey(box []byte) ([]byte, error) {
	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, e.priv, box, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open session key: %v", ErrCryptoFailure, err)
	}
	if len(key) != SessionKeySize {
		return nil, ErrBadSessionKey
	}
	return key, nil
}

// ============================================================================
//                              载荷加密
// ============================================================================

// Seal 用会话密钥加密载荷（AES-256-GCM）
//
// 每次调用生成全新的 96 位随机 nonce；nonce 随密文一起返回，
// 由调用方装入 Envelope 线格式传输。
func (e *Envelope) Seal(sessionKey, plaintext []byte) ([]byte, []byte, error) {
	aead, err := newAEAD(sessionKey)
	if err != nil {
		return nil, nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("%w: generate nonce: %v", ErrCryptoFailure, err)
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)
	return nonce, ciphertext, nil
}

// Open 用会话密钥解密载荷
//
// 认证失败（密钥错误、nonce 或密文被篡改）返回 ErrCryptoFailure。
func (e *Envelope) Open(sessionKey, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := newAEAD(sessionKey)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, ErrBadNonce
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open payload: %v", ErrCryptoFailure, err)
	}
	return plaintext, nil
}

// newAEAD 从会话密钥构建 AES-256-GCM
func newAEAD(sessionKey []byte) (cipher.AEAD, error) {
	if len(sessionKey) != SessionKeySize {
		return nil, ErrBadSessionKey
	}
	block, err := aes.NewCipher(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: new cipher: %v", ErrCryptoFailure, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: new gcm: %v", ErrCryptoFailure, err)
	}
	return aead, nil
}
