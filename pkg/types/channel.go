package types

// ============================================================================
//                              ChannelID - 逻辑通道标识
// ============================================================================

// ChannelID 逻辑通道标识
//
// 传输层在每条多路复用流的首帧写入通道 ID，
// 对端据此把流路由到握手、同步、事件或心跳处理器。
// 常量集中定义在 pkg/protocolids，本类型只承载标识本身。
type ChannelID string

// String 返回通道 ID 字符串
func (c ChannelID) String() string {
	return string(c)
}

// Empty 判断通道 ID 是否为空
func (c ChannelID) Empty() bool {
	return c == ""
}
