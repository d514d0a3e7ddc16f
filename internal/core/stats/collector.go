package stats

import (
	"sync"
	"sync/atomic"

	"github.com/asinka/go-asinka/pkg/types"
)

// ============================================================================
//                              通道计量器
// ============================================================================

// channelMeter 单个逻辑通道的流量计量器
type channelMeter struct {
	messagesIn  atomic.Uint64
	messagesOut atomic.Uint64
	bytesIn     atomic.Uint64
	bytesOut    atomic.Uint64
}

func (m *channelMeter) snapshot() types.ChannelStats {
	return types.ChannelStats{
		MessagesIn:  m.messagesIn.Load(),
		MessagesOut: m.messagesOut.Load(),
		BytesIn:     m.bytesIn.Load(),
		BytesOut:    m.bytesOut.Load(),
	}
}

// ============================================================================
//                              Collector - 统计收集器
// ============================================================================

// Collector 统计收集器
//
// 按通道计量收发消息与字节，并维护同步、事件与会话层的
// 丢弃计数。记录方法可以在任意 goroutine 并发调用。
type Collector struct {
	mu       sync.RWMutex
	channels map[types.ChannelID]*channelMeter

	staleUpdates   atomic.Uint64
	changeDrops    atomic.Uint64
	eventDrops     atomic.Uint64
	dupEvents      atomic.Uint64
	sessionsOpened atomic.Uint64
	sessionsClosed atomic.Uint64
}

// NewCollector 创建统计收集器
func NewCollector() *Collector {
	return &Collector{
		channels: make(map[types.ChannelID]*channelMeter),
	}
}

// meter 取出（或懒创建）通道计量器
func (c *Collector) meter(ch types.ChannelID) *channelMeter {
	c.mu.RLock()
	m, ok := c.channels[ch]
	c.mu.RUnlock()
	if ok {
		return m
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok = c.channels[ch]; ok {
		return m
	}
	m = &channelMeter{}
	c.channels[ch] = m
	return m
}

// ==================== 流量记录 ====================

// LogMessageIn 记录一条入站消息
func (c *Collector) LogMessageIn(ch types.ChannelID, bytes int) {
	if bytes < 0 {
		return
	}
	m := c.meter(ch)
	m.messagesIn.Add(1)
	m.bytesIn.Add(uint64(bytes))
}

// LogMessageOut 记录一条出站消息
func (c *Collector) LogMessageOut(ch types.ChannelID, bytes int) {
	if bytes < 0 {
		return
	}
	m := c.meter(ch)
	m.messagesOut.Add(1)
	m.bytesOut.Add(uint64(bytes))
}

// ==================== 丢弃与会话记录 ====================

// AddStaleUpdate 记录一次被版本闸门拒绝的远端更新
func (c *Collector) AddStaleUpdate() {
	c.staleUpdates.Add(1)
}

// AddChangeDrop 记录一次观察者缓冲溢出丢弃的变更
func (c *Collector) AddChangeDrop() {
	c.changeDrops.Add(1)
}

// AddEventDrop 记录一次观察者缓冲溢出丢弃的事件
func (c *Collector) AddEventDrop() {
	c.eventDrops.Add(1)
}

// AddDupEvent 记录一次去重丢弃的重复远端事件
func (c *Collector) AddDupEvent() {
	c.dupEvents.Add(1)
}

// AddSessionOpened 记录一次会话建立
func (c *Collector) AddSessionOpened() {
	c.sessionsOpened.Add(1)
}

// AddSessionClosed 记录一次会话关闭
func (c *Collector) AddSessionClosed() {
	c.sessionsClosed.Add(1)
}

// ==================== 快照 ====================

// Snapshot 返回当前计数的一致快照
//
// 快照是值拷贝，调用方可自由持有。
func (c *Collector) Snapshot() types.StatsSnapshot {
	c.mu.RLock()
	channels := make(map[string]types.ChannelStats, len(c.channels))
	for ch, m := range c.channels {
		channels[ch.String()] = m.snapshot()
	}
	c.mu.RUnlock()

	return types.StatsSnapshot{
		Channels:       channels,
		StaleUpdates:   c.staleUpdates.Load(),
		ChangeDrops:    c.changeDrops.Load(),
		EventDrops:     c.eventDrops.Load(),
		DupEvents:      c.dupEvents.Load(),
		SessionsOpened: c.sessionsOpened.Load(),
		SessionsClosed: c.sessionsClosed.Load(),
	}
}
