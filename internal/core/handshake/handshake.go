package handshake

import (
	"fmt"

	"github.com/google/uuid"

	pkgif "github.com/asinka/go-asinka/pkg/interfaces"
	"github.com/asinka/go-asinka/pkg/lib/log"
	"github.com/asinka/go-asinka/pkg/protocolids"
	"github.com/asinka/go-asinka/pkg/types"
	"github.com/asinka/go-asinka/pkg/wire"
)

var logger = log.Logger("core/handshake")

// ============================================================================
//                              握手材料
// ============================================================================

// Params 本机握手材料
//
// 由根包在启动阶段从配置与选项汇出，握手期间只读。
type Params struct {
	// AppID 应用 ID
	AppID string

	// AppName 应用显示名
	AppName string

	// AppVersion 应用版本
	AppVersion string

	// DeviceID 设备 ID
	DeviceID string

	// Capabilities 能力表
	Capabilities map[string]string

	// Schemas 对外声明的对象模式
	Schemas []types.Schema
}

// Result 握手成功后的会话材料
//
// 两侧视角统一：SessionID 由接受方铸造，SessionKey 由接受方
// 生成、发起方解封，PeerXxx 是对端声明的身份与模式。
type Result struct {
	// SessionID 会话 ID（UUID）
	SessionID string

	// SessionKey 256 位会话密钥
	SessionKey []byte

	// PeerPublicKey 对端身份公钥（PKIX DER）
	PeerPublicKey []byte

	// PeerSchemas 对端声明的对象模式
	PeerSchemas []types.Schema

	// PeerCapabilities 对端能力表
	PeerCapabilities map[string]string

	// PeerAppID 对端应用 ID（仅接受方视角有值）
	PeerAppID string

	// PeerAppName 对端应用显示名（仅接受方视角有值）
	PeerAppName string

	// PeerAppVersion 对端应用版本（仅接受方视角有值）
	PeerAppVersion string

	// PeerDeviceID 对端设备 ID（仅接受方视角有值）
	PeerDeviceID string
}

// ============================================================================
//                              Engine - 握手引擎
// ============================================================================

// Engine 握手引擎
//
// 无内部状态，方法可以在任意 goroutine 并发调用。
type Engine struct {
	params Params
	env    pkgif.Envelope
}

// New 创建握手引擎
func New(params Params, env pkgif.Envelope) *Engine {
	return &Engine{params: params, env: env}
}

// ============================================================================
//                              发起方
// ============================================================================

// BuildRequest 构造握手请求
func (e *Engine) BuildRequest() *wire.HandshakeRequest {
	return &wire.HandshakeRequest{
		AppID:        e.params.AppID,
		AppName:      e.params.AppName,
		AppVersion:   e.params.AppVersion,
		DeviceID:     e.params.DeviceID,
		PublicKey:    e.env.PublicKey(),
		Protocols:    protocolids.SupportedProtocols(),
		Schemas:      wire.SchemasToWire(e.params.Schemas),
		Capabilities: cloneCapabilities(e.params.Capabilities),
	}
}

// ValidateResponse 校验握手应答并解封会话密钥
//
// 应答必须报告成功、携带非空会话 ID、对端公钥与会话密钥，
// 且会话密钥必须能用本机私钥解封；否则返回包裹 ErrRefused
// 的原因。
func (e *Engine) ValidateResponse(resp *wire.HandshakeResponse) (*Result, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", ErrRefused)
	}
	if !resp.Success {
		reason := resp.Error
		if reason == "" {
			reason = "peer gave no reason"
		}
		return nil, fmt.Errorf("%w: %s", ErrRefused, reason)
	}
	if resp.SessionID == "" {
		return nil, fmt.Errorf("%w: missing session id", ErrRefused)
	}
	if len(resp.PublicKey) == 0 {
		return nil, fmt.Errorf("%w: missing peer public key", ErrRefused)
	}
	if len(resp.SessionKeyBox) == 0 {
		return nil, fmt.Errorf("%w: missing session key", ErrRefused)
	}

	sessionKey, err := e.env.OpenKey(resp.SessionKeyBox)
	if err != nil {
		return nil, fmt.Errorf("%w: session key unseal: %v", ErrRefused, err)
	}

	return &Result{
		SessionID:        resp.SessionID,
		SessionKey:       sessionKey,
		PeerPublicKey:    resp.PublicKey,
		PeerSchemas:      wire.SchemasFromWire(resp.Schemas),
		PeerCapabilities: resp.Capabilities,
	}, nil
}

// ============================================================================
//                              接受方
// ============================================================================

// ProcessRequest 处理握手请求
//
// 成功时返回携带新会话 ID 与封装会话密钥的应答和会话材料；
// 任何失败（协议不相交、公钥无法使用）都转成 success=false
// 的应答，Result 为 nil。应答总是非空，调用方直接回写。
func (e *Engine) ProcessRequest(req *wire.HandshakeRequest) (*wire.HandshakeResponse, *Result) {
	if req == nil {
		return refusal("empty request"), nil
	}

	if !protocolIntersects(req.Protocols) {
		logger.Info("握手拒绝：协议不相交",
			"app_id", req.AppID,
			"peer_protocols", req.Protocols,
			"ours", protocolids.SupportedProtocols())
		return refusal(fmt.Sprintf("no common protocol (ours: %v)", protocolids.SupportedProtocols())), nil
	}

	if len(req.PublicKey) == 0 {
		return refusal("missing peer public key"), nil
	}

	sessionKey, err := e.env.NewSessionKey()
	if err != nil {
		logger.Error("会话密钥生成失败", "err", err)
		return refusal("session key generation failed"), nil
	}
	box, err := e.env.SealKey(req.PublicKey, sessionKey)
	if err != nil {
		logger.Info("握手拒绝：对端公钥不可用", "app_id", req.AppID, "err", err)
		return refusal("unusable peer public key"), nil
	}

	sessionID := uuid.NewString()

	resp := &wire.HandshakeResponse{
		Success:       true,
		SessionID:     sessionID,
		PublicKey:     e.env.PublicKey(),
		Schemas:       wire.SchemasToWire(e.params.Schemas),
		Capabilities:  cloneCapabilities(e.params.Capabilities),
		SessionKeyBox: box,
	}
	res := &Result{
		SessionID:        sessionID,
		SessionKey:       sessionKey,
		PeerPublicKey:    req.PublicKey,
		PeerSchemas:      wire.SchemasFromWire(req.Schemas),
		PeerCapabilities: req.Capabilities,
		PeerAppID:        req.AppID,
		PeerAppName:      req.AppName,
		PeerAppVersion:   req.AppVersion,
		PeerDeviceID:     req.DeviceID,
	}

	logger.Debug("握手接受",
		"session_id", log.TruncateID(sessionID, 8),
		"app_id", req.AppID)

	return resp, res
}

// refusal 构造拒绝应答
func refusal(reason string) *wire.HandshakeResponse {
	return &wire.HandshakeResponse{
		Success: false,
		Error:   reason,
	}
}

// protocolIntersects 判断对端协议列表与本机是否有交集
func protocolIntersects(peerProtocols []string) bool {
	for _, p := range peerProtocols {
		if protocolids.ProtocolSupported(p) {
			return true
		}
	}
	return false
}

// cloneCapabilities 复制能力表
func cloneCapabilities(caps map[string]string) map[string]string {
	if caps == nil {
		return nil
	}
	out := make(map[string]string, len(caps))
	for k, v := range caps {
		out[k] = v
	}
	return out
}
