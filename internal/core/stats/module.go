package stats

import (
	"go.uber.org/fx"
)

// ============================================================================
//                              Fx 模块
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("stats",
		fx.Provide(NewCollector),
	)
}

// ============================================================================
//                              模块元信息
// ============================================================================

// 模块元信息常量
const (
	Version     = "1.0.0"
	Name        = "stats"
	Description = "统计模块，收集流量、丢弃与会话计数"
)
