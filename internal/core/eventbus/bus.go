package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/asinka/go-asinka/internal/core/stats"
	pkgif "github.com/asinka/go-asinka/pkg/interfaces"
	"github.com/asinka/go-asinka/pkg/lib/log"
	"github.com/asinka/go-asinka/pkg/types"
)

var logger = log.Logger("core/eventbus")

// 默认参数
const (
	// DefaultEventBuffer 事件订阅的默认缓冲大小
	DefaultEventBuffer = 64

	// DefaultDedupSize 远端事件去重 LRU 的容量
	DefaultDedupSize = 1024
)

// ============================================================================
//                              Bus - 事件总线
// ============================================================================

// Options 事件总线选项
type Options struct {
	// EventBuffer 每个订阅的缓冲大小，0 表示默认值 64
	EventBuffer int

	// DedupSize 远端事件去重 LRU 容量，0 表示默认值 1024
	DedupSize int

	// Stats 统计收集器，nil 时总线自建一个私有收集器
	Stats *stats.Collector
}

// Bus 事件总线实现
//
// 单把互斥锁保护订阅表与接收器表；事件发布在持锁状态下
// 完成，保证事件在每个订阅通道上按发送顺序出现。
type Bus struct {
	mu sync.Mutex

	// subs 普通观察者（本地与远端事件都投递）
	subs map[*eventSub]struct{}

	// outboundSubs 出站观察者（只投递本地事件）
	outboundSubs map[*eventSub]struct{}

	// receivers 回调接收器（只在远端事件投递时调用）
	receivers map[pkgif.Receiver]struct{}

	// seen 远端事件 ID 去重
	seen *lru.Cache[string, struct{}]

	bufSize int
	stats   *stats.Collector
}

// 确保实现接口
var _ pkgif.EventBus = (*Bus)(nil)

// New 创建事件总线
func New(opts Options) *Bus {
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	if opts.DedupSize <= 0 {
		opts.DedupSize = DefaultDedupSize
	}
	if opts.Stats == nil {
		opts.Stats = stats.NewCollector()
	}

	// 容量为正时 lru.New 不会失败
	seen, _ := lru.New[string, struct{}](opts.DedupSize)

	return &Bus{
		subs:         make(map[*eventSub]struct{}),
		outboundSubs: make(map[*eventSub]struct{}),
		receivers:    make(map[pkgif.Receiver]struct{}),
		seen:         seen,
		bufSize:      opts.EventBuffer,
		stats:        opts.Stats,
	}
}

// ============================================================================
//                              发送
// ============================================================================

// Send 发送本地事件
//
// 事件进入普通观察者通道与出站通道；出站通道由会话层
// 消费做跨进程扇出。Send 从不因慢消费者阻塞。
func (b *Bus) Send(event *types.Event) error {
	if event == nil {
		return ErrNilEvent
	}
	if event.Type == "" {
		return ErrEmptyType
	}
	if !event.Priority.Valid() {
		return ErrInvalidPriority
	}

	ev := event.Clone()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	// 本地事件来源为空
	ev.Origin = ""

	b.mu.Lock()
	for sub := range b.subs {
		if sub.matches(ev.Type) {
			sub.push(ev)
		}
	}
	for sub := range b.outboundSubs {
		sub.push(ev)
	}
	b.mu.Unlock()

	return nil
}

// ============================================================================
//                              订阅
// ============================================================================

// Observe 订阅事件流
//
// eventTypes 为空表示订阅全部类型。
func (b *Bus) Observe(eventTypes ...string) pkgif.EventSubscription {
	sub := &eventSub{
		bus: b,
		out: make(chan *types.Event, b.bufSize),
	}
	if len(eventTypes) > 0 {
		sub.eventTypes = make(map[string]struct{}, len(eventTypes))
		for _, et := range eventTypes {
			sub.eventTypes[et] = struct{}{}
		}
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// ObserveOutbound 订阅本地出站事件流
//
// 只包含本地 Send 的事件，远端事件永不出现。
func (b *Bus) ObserveOutbound() pkgif.EventSubscription {
	sub := &eventSub{
		bus:      b,
		outbound: true,
		out:      make(chan *types.Event, b.bufSize),
	}

	b.mu.Lock()
	b.outboundSubs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// removeSub 移除订阅（订阅 Close 时调用）
//
// 返回后不再有发布方引用该订阅，之后关闭通道是安全的。
func (b *Bus) removeSub(sub *eventSub) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub.outbound {
		delete(b.outboundSubs, sub)
		return
	}
	delete(b.subs, sub)
}

// ============================================================================
//                              接收器
// ============================================================================

// RegisterReceiver 注册事件接收器（幂等）
func (b *Bus) RegisterReceiver(r pkgif.Receiver) error {
	if r == nil {
		return ErrNilReceiver
	}
	b.mu.Lock()
	b.receivers[r] = struct{}{}
	b.mu.Unlock()
	return nil
}

// UnregisterReceiver 注销事件接收器（幂等）
func (b *Bus) UnregisterReceiver(r pkgif.Receiver) error {
	if r == nil {
		return ErrNilReceiver
	}
	b.mu.Lock()
	delete(b.receivers, r)
	b.mu.Unlock()
	return nil
}

// ============================================================================
//                              远端投递
// ============================================================================

// DeliverRemote 投递远端事件
//
// 重复事件 ID 去重丢弃。接收器按注册顺序之外的任意顺序
// 串行调用并等待返回，单个接收器的错误记录日志后继续；
// 随后事件进入普通观察者通道。远端事件绝不进入出站通道。
func (b *Bus) DeliverRemote(ctx context.Context, event *types.Event) error {
	if event == nil {
		return ErrNilEvent
	}
	if event.Type == "" {
		return ErrEmptyType
	}

	ev := event.Clone()
	if ev.ID == "" {
		// 无 ID 的远端事件无法去重，补一个本地 ID 后继续
		ev.ID = uuid.NewString()
	} else {
		if _, dup := b.seen.Get(ev.ID); dup {
			b.stats.AddDupEvent()
			logger.Debug("重复事件丢弃", "event_id", log.TruncateID(ev.ID, 8))
			return nil
		}
	}
	b.seen.Add(ev.ID, struct{}{})

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	// 接收器快照：回调期间不持有总线锁
	b.mu.Lock()
	receivers := make([]pkgif.Receiver, 0, len(b.receivers))
	for r := range b.receivers {
		receivers = append(receivers, r)
	}
	b.mu.Unlock()

	for _, r := range receivers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !receiverMatches(r, ev.Type) {
			continue
		}
		if err := r.HandleEvent(ctx, ev.Clone()); err != nil {
			logger.Warn("事件接收器返回错误",
				"event_type", ev.Type,
				"event_id", log.TruncateID(ev.ID, 8),
				"err", err)
		}
	}

	b.mu.Lock()
	for sub := range b.subs {
		if sub.matches(ev.Type) {
			sub.push(ev)
		}
	}
	b.mu.Unlock()

	return nil
}

// receiverMatches 判断接收器是否对该事件类型感兴趣
func receiverMatches(r pkgif.Receiver, eventType string) bool {
	eventTypes := r.EventTypes()
	if len(eventTypes) == 0 {
		return true
	}
	for _, et := range eventTypes {
		if et == eventType {
			return true
		}
	}
	return false
}
