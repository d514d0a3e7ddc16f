package security

import (
	"context"
	"crypto/rsa"

	"go.uber.org/fx"

	pkgif "github.com/asinka/go-asinka/pkg/interfaces"
	"github.com/asinka/go-asinka/pkg/lib/log"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	// IdentityKey 外部注入的身份私钥（可选，缺省时自动生成）
	IdentityKey *rsa.PrivateKey `name:"identity_key" optional:"true"`
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// Envelope 安全信封
	Envelope pkgif.Envelope `name:"envelope"`
}

// ============================================================================
//                              服务提供
// ============================================================================

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	var (
		env *Envelope
		err error
	)
	if input.IdentityKey != nil {
		env, err = NewFromKey(input.IdentityKey)
	} else {
		env, err = New()
	}
	if err != nil {
		return ModuleOutput{}, err
	}
	return ModuleOutput{Envelope: env}, nil
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("security",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC       fx.Lifecycle
	Envelope pkgif.Envelope `name:"envelope"`
}

// registerLifecycle 注册生命周期
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			logger.Info("安全模块启动",
				"fingerprint", log.TruncateID(input.Envelope.Fingerprint(), 8))
			return nil
		},
		OnStop: func(_ context.Context) error {
			logger.Info("安全模块停止")
			return nil
		},
	})
}

// ============================================================================
//                              模块元信息
// ============================================================================

// 模块元信息常量
const (
	Version     = "1.0.0"
	Name        = "security"
	Description = "安全信封模块，提供身份签名与会话载荷加密"
)
