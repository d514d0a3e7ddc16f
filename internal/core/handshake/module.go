package handshake

import (
	"go.uber.org/fx"

	pkgif "github.com/asinka/go-asinka/pkg/interfaces"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	// Params 本机握手材料
	Params Params

	// Envelope 安全信封
	Envelope pkgif.Envelope `name:"envelope"`
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// Engine 握手引擎
	Engine *Engine `name:"handshake_engine"`
}

// ============================================================================
//                              服务提供
// ============================================================================

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) ModuleOutput {
	return ModuleOutput{Engine: New(input.Params, input.Envelope)}
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("handshake",
		fx.Provide(ProvideServices),
	)
}

// ============================================================================
//                              模块元信息
// ============================================================================

// 模块元信息常量
const (
	Version     = "1.0.0"
	Name        = "handshake"
	Description = "握手模块，交换身份、协商协议版本并分发会话密钥"
)
