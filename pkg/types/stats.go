package types

// ============================================================================
//                              Stats - 流量与丢弃统计
// ============================================================================

// ChannelStats 单个逻辑通道的流量统计
type ChannelStats struct {
	// MessagesIn 收到的消息数
	MessagesIn uint64

	// MessagesOut 发出的消息数
	MessagesOut uint64

	// BytesIn 收到的字节数（帧载荷）
	BytesIn uint64

	// BytesOut 发出的字节数（帧载荷）
	BytesOut uint64
}

// StatsSnapshot 运行时统计快照
//
// 版本闸门拒绝与缓冲溢出丢弃都不是错误，只体现在
// 这里的计数器上。
type StatsSnapshot struct {
	// Channels 按通道 ID 的流量统计
	Channels map[string]ChannelStats

	// StaleUpdates 被版本闸门拒绝的远端更新数
	StaleUpdates uint64

	// ChangeDrops 观察者缓冲溢出丢弃的变更数
	ChangeDrops uint64

	// EventDrops 观察者缓冲溢出丢弃的事件数
	EventDrops uint64

	// DupEvents 去重丢弃的重复远端事件数
	DupEvents uint64

	// SessionsOpened 累计建立的会话数
	SessionsOpened uint64

	// SessionsClosed 累计关闭的会话数
	SessionsClosed uint64
}
