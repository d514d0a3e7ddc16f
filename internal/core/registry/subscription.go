package registry

import (
	"sync"
	"sync/atomic"

	"github.com/asinka/go-asinka/pkg/types"
)

// ============================================================================
//                              变更订阅
// ============================================================================

// changeSub 对象变更订阅
//
// 有界缓冲：push 在缓冲满时丢弃最旧的变更并累加计数，
// 发布方永不阻塞。
type changeSub struct {
	reg *Registry

	// id 订阅的对象 ID，空字符串表示订阅全部对象
	id string

	out       chan types.Change
	dropped   atomic.Uint64
	closeOnce sync.Once
	closed    atomic.Bool
}

// Out 返回变更通道
func (s *changeSub) Out() <-chan types.Change {
	return s.out
}

// Dropped 返回本订阅因缓冲溢出丢弃的变更数
func (s *changeSub) Dropped() uint64 {
	return s.dropped.Load()
}

// Close 取消订阅
//
// Close 是并发安全的，可以多次调用。
// 关闭后会：
//  1. 从注册表移除订阅（之后不再有发布方引用本订阅）
//  2. 后台排空通道，防止消费者阻塞在半读状态
//  3. 关闭通道
func (s *changeSub) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		s.reg.removeSub(s)

		go func() {
			for range s.out {
				// 丢弃剩余变更
			}
		}()

		close(s.out)
	})
	return nil
}

// push 投递一条变更（发布方在注册表临界区内调用）
//
// 缓冲满时丢弃最旧的一条再重试，保证新变更总能入队。
func (s *changeSub) push(ch types.Change) {
	for {
		select {
		case s.out <- ch:
			return
		default:
		}

		select {
		case <-s.out:
			dropped := s.dropped.Add(1)
			s.reg.stats.AddChangeDrop()

			// 每丢弃 100 条警告一次，避免日志泛滥
			if dropped%100 == 1 {
				logger.Warn("慢消费者检测",
					"dropped", dropped,
					"object_id", ch.ObjectID,
					"reason", "subscriber buffer full")
			}
		default:
		}
	}
}
