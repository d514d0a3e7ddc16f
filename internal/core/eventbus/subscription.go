package eventbus

import (
	"sync"
	"sync/atomic"

	"github.com/asinka/go-asinka/pkg/types"
)

// ============================================================================
//                              事件订阅
// ============================================================================

// eventSub 事件订阅
//
// 有界缓冲：push 在缓冲满时丢弃最旧的事件并累加计数，
// 发布方永不阻塞。
type eventSub struct {
	bus *Bus

	// eventTypes 订阅的事件类型集合，空表示全部
	eventTypes map[string]struct{}

	// outbound 为 true 时本订阅挂在出站通道上
	outbound bool

	out       chan *types.Event
	dropped   atomic.Uint64
	closeOnce sync.Once
	closed    atomic.Bool
}

// Out 返回事件通道
func (s *eventSub) Out() <-chan *types.Event {
	return s.out
}

// Dropped 返回本订阅因缓冲溢出丢弃的事件数
func (s *eventSub) Dropped() uint64 {
	return s.dropped.Load()
}

// Close 取消订阅
//
// Close 是并发安全的，可以多次调用。
// 关闭后会：
//  1. 从总线移除订阅（之后不再有发布方引用本订阅）
//  2. 后台排空通道，防止消费者阻塞在半读状态
//  3. 关闭通道
func (s *eventSub) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		s.bus.removeSub(s)

		go func() {
			for range s.out {
				// 丢弃剩余事件
			}
		}()

		close(s.out)
	})
	return nil
}

// matches 判断事件类型是否命中本订阅的过滤集合
func (s *eventSub) matches(eventType string) bool {
	if len(s.eventTypes) == 0 {
		return true
	}
	_, ok := s.eventTypes[eventType]
	return ok
}

// push 投递一个事件（发布方在总线临界区内调用）
//
// 缓冲满时丢弃最旧的一条再重试，保证新事件总能入队。
func (s *eventSub) push(ev *types.Event) {
	for {
		select {
		case s.out <- ev:
			return
		default:
		}

		select {
		case <-s.out:
			dropped := s.dropped.Add(1)
			s.bus.stats.AddEventDrop()

			// 每丢弃 100 条警告一次，避免日志泛滥
			if dropped%100 == 1 {
				logger.Warn("慢消费者检测",
					"dropped", dropped,
					"event_type", ev.Type,
					"reason", "subscriber buffer full")
			}
		default:
		}
	}
}
