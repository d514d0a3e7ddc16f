package security

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"testing"

	pkgif "github.com/asinka/go-asinka/pkg/interfaces"
)

// 接口合约检查
var _ pkgif.Envelope = (*Envelope)(nil)

// 密钥生成较慢，测试间共享两个身份
var (
	testOnce sync.Once
	testEnvA *Envelope
	testEnvB *Envelope
)

func testEnvelopes(t *testing.T) (*Envelope, *Envelope) {
	t.Helper()
	testOnce.Do(func() {
		var err error
		if testEnvA, err = New(); err != nil {
			t.Fatalf("New() A: %v", err)
		}
		if testEnvB, err = New(); err != nil {
			t.Fatalf("New() B: %v", err)
		}
	})
	if testEnvA == nil || testEnvB == nil {
		t.Fatal("test envelopes unavailable")
	}
	return testEnvA, testEnvB
}

// ============================================================================
//                              身份测试
// ============================================================================

func TestIdentity(t *testing.T) {
	a, b := testEnvelopes(t)

	if a.Fingerprint() == "" {
		t.Fatal("empty fingerprint")
	}
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("two identities share a fingerprint")
	}

	// PublicKey 返回副本，修改不应影响内部状态
	pub := a.PublicKey()
	pub[0] ^= 0xFF
	if bytes.Equal(pub, a.PublicKey()) {
		t.Error("PublicKey did not return a copy")
	}
}

func TestNewFromKeyRejectsSmallKey(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("generate 1024-bit key: %v", err)
	}
	if _, err := NewFromKey(priv); !errors.Is(err, ErrKeyTooSmall) {
		t.Errorf("NewFromKey(1024-bit) = %v, want ErrKeyTooSmall", err)
	}
}

func TestNewFromKeyNil(t *testing.T) {
	if _, err := NewFromKey(nil); !errors.Is(err, ErrNilPrivateKey) {
		t.Errorf("NewFromKey(nil) = %v, want ErrNilPrivateKey", err)
	}
}

func TestSignVerify(t *testing.T) {
	a, b := testEnvelopes(t)
	data := []byte("asinka handshake payload")

	sig, err := a.Sign(data)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	ok, err := b.Verify(a.PublicKey(), data, sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Error("valid signature rejected")
	}

	// 数据被篡改
	ok, err = b.Verify(a.PublicKey(), []byte("tampered"), sig)
	if err != nil {
		t.Fatalf("Verify tampered: %v", err)
	}
	if ok {
		t.Error("tampered data accepted")
	}

	// 错误的公钥归属
	ok, err = a.Verify(b.PublicKey(), data, sig)
	if err != nil {
		t.Fatalf("Verify wrong key: %v", err)
	}
	if ok {
		t.Error("signature verified under wrong key")
	}

	// 无法解析的公钥是结构性错误
	if _, err := a.Verify([]byte("not a key"), data, sig); err == nil {
		t.Error("garbage public key did not error")
	}
}

// ============================================================================
//                              会话密钥测试
// ============================================================================

func TestSessionKeyTransport(t *testing.T) {
	a, b := testEnvelopes(t)

	key, err := a.NewSessionKey()
	if err != nil {
		t.Fatalf("NewSessionKey: %v", err)
	}
	if len(key) != SessionKeySize {
		t.Fatalf("session key length = %d, want %d", len(key), SessionKeySize)
	}

	// a 为应答方：用 b 的公钥封装，b 解封
	box, err := a.SealKey(b.PublicKey(), key)
	if err != nil {
		t.Fatalf("SealKey: %v", err)
	}
	got, err := b.OpenKey(box)
	if err != nil {
		t.Fatalf("OpenKey: %v", err)
	}
	if !bytes.Equal(got, key) {
		t.Error("session key changed in transport")
	}

	// 非目标身份无法解封
	if _, err := a.OpenKey(box); !errors.Is(err, ErrCryptoFailure) {
		t.Errorf("OpenKey under wrong identity = %v, want ErrCryptoFailure", err)
	}
}

func TestSealKeyRejectsBadLength(t *testing.T) {
	a, b := testEnvelopes(t)
	if _, err := a.SealKey(b.PublicKey(), []byte("short")); !errors.Is(err, ErrBadSessionKey) {
		t.Errorf("SealKey(short) = %v, want ErrBadSessionKey", err)
	}
}

// ============================================================================
//                              载荷加密测试
// ============================================================================

func TestSealOpenRoundTrip(t *testing.T) {
	a, _ := testEnvelopes(t)
	key, err := a.NewSessionKey()
	if err != nil {
		t.Fatalf("NewSessionKey: %v", err)
	}

	payloads := [][]byte{
		{},
		[]byte("x"),
		[]byte("a moderately sized sync message payload"),
		bytes.Repeat([]byte{0xAB}, 1<<20), // 1 MiB
	}
	for _, plaintext := range payloads {
		nonce, ciphertext, err := a.Seal(key, plaintext)
		if err != nil {
			t.Fatalf("Seal(%d bytes): %v", len(plaintext), err)
		}
		if len(nonce) != NonceSize {
			t.Fatalf("nonce length = %d, want %d", len(nonce), NonceSize)
		}
		got, err := a.Open(key, nonce, ciphertext)
		if err != nil {
			t.Fatalf("Open(%d bytes): %v", len(plaintext), err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Errorf("round trip mismatch for %d bytes", len(plaintext))
		}
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	a, _ := testEnvelopes(t)
	key1, _ := a.NewSessionKey()
	key2, _ := a.NewSessionKey()

	nonce, ciphertext, err := a.Seal(key1, []byte("secret"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := a.Open(key2, nonce, ciphertext); !errors.Is(err, ErrCryptoFailure) {
		t.Errorf("Open with wrong key = %v, want ErrCryptoFailure", err)
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	a, _ := testEnvelopes(t)
	key, _ := a.NewSessionKey()

	nonce, ciphertext, err := a.Seal(key, []byte("secret"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	// 篡改密文
	badCT := append([]byte{}, ciphertext...)
	badCT[0] ^= 0x01
	if _, err := a.Open(key, nonce, badCT); !errors.Is(err, ErrCryptoFailure) {
		t.Errorf("Open tampered ciphertext = %v, want ErrCryptoFailure", err)
	}

	// 篡改 nonce
	badNonce := append([]byte{}, nonce...)
	badNonce[0] ^= 0x01
	if _, err := a.Open(key, badNonce, ciphertext); !errors.Is(err, ErrCryptoFailure) {
		t.Errorf("Open tampered nonce = %v, want ErrCryptoFailure", err)
	}
}

func TestSealGeneratesFreshNonce(t *testing.T) {
	a, _ := testEnvelopes(t)
	key, _ := a.NewSessionKey()

	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		nonce, _, err := a.Seal(key, []byte("same plaintext"))
		if err != nil {
			t.Fatalf("Seal: %v", err)
		}
		if seen[string(nonce)] {
			t.Fatal("nonce repeated")
		}
		seen[string(nonce)] = true
	}
}

func TestOpenRejectsBadNonceLength(t *testing.T) {
	a, _ := testEnvelopes(t)
	key, _ := a.NewSessionKey()
	_, ciphertext, _ := a.Seal(key, []byte("x"))

	if _, err := a.Open(key, []byte("short"), ciphertext); !errors.Is(err, ErrBadNonce) {
		t.Errorf("Open(short nonce) = %v, want ErrBadNonce", err)
	}
}
