// Package interfaces 定义 Asinka 公共接口
//
// 本文件定义事件总线接口。
package interfaces

import (
	"context"

	"github.com/asinka/go-asinka/pkg/types"
)

// EventBus 类型化事件总线
//
// 事件是一次性通知：本地 Send 的事件广播到全部活跃会话并
// 回放给本地观察者；远端事件经 DeliverRemote 进入本地观察者
// 与接收器，绝不回流到出站通道（防回声）。
type EventBus interface {
	// Send 发送本地事件
	//
	// event.ID 为空时自动分配 UUID，Timestamp 为零值时取当前
	// 时间，Priority 越界时返回 ErrInvalidPriority。
	// Send 从不因慢消费者阻塞。
	Send(event *types.Event) error

	// Observe 订阅事件流
	//
	// eventTypes 为空表示订阅全部类型。本地与远端事件都会
	// 出现在订阅通道上。
	Observe(eventTypes ...string) EventSubscription

	// ObserveOutbound 订阅本地出站事件流
	//
	// 只包含本地 Send 的事件，供会话层做跨进程扇出；
	// 远端事件永不出现（防回声）。
	ObserveOutbound() EventSubscription

	// RegisterReceiver 注册事件接收器（幂等）
	RegisterReceiver(r Receiver) error

	// UnregisterReceiver 注销事件接收器（幂等）
	UnregisterReceiver(r Receiver) error

	// DeliverRemote 投递远端事件
	//
	// 依次调用每个类型匹配的接收器并等待其返回（串行），
	// 接收器返回的错误记录日志后吞掉。重复事件 ID 去重丢弃。
	// 随后事件进入普通观察者通道。
	DeliverRemote(ctx context.Context, event *types.Event) error
}

// EventSubscription 事件订阅
//
// 与对象变更订阅相同的有界缓冲语义：缓冲满时丢弃最旧
// 事件并累加 Dropped 计数。
type EventSubscription interface {
	// Out 返回事件通道；订阅关闭后通道关闭
	Out() <-chan *types.Event

	// Dropped 返回本订阅因缓冲溢出丢弃的事件数
	Dropped() uint64

	// Close 取消订阅（幂等）
	Close() error
}

// Receiver 事件接收器
//
// 接收器是回调风格的事件消费方，只在远端事件投递时被调用，
// 调用是串行的且等待返回。
type Receiver interface {
	// EventTypes 返回感兴趣的事件类型；空切片表示全部
	EventTypes() []string

	// HandleEvent 处理一个远端事件
	HandleEvent(ctx context.Context, event *types.Event) error
}
