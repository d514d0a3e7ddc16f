// Package eventbus 实现类型化事件总线
//
// 事件是一次性通知，不参与版本闸门：
//
//   - 本地 Send 的事件进入普通观察者通道与出站通道，
//     会话层消费出站通道做跨进程扇出
//   - 远端事件经 DeliverRemote 进入接收器与普通观察者，
//     绝不进入出站通道（防回声）
//   - 重复的远端事件 ID 由 LRU 去重丢弃：两个同时互拨的
//     对端各持一条会话，同一广播否则会投递两次
//
// 接收器（Receiver）是回调风格的消费方，按事件类型过滤，
// 投递是串行的且等待返回；观察者（Observe）是通道风格，
// 有界缓冲，缓冲满时丢最旧。
//
// # 使用示例
//
//	bus := eventbus.New(eventbus.Options{})
//
//	sub := bus.Observe("chat.message")
//	defer sub.Close()
//
//	bus.Send(&types.Event{Type: "chat.message", Data: data})
//	ev := <-sub.Out()
//
// 架构层：Core Layer
// 公共接口：pkg/interfaces/eventbus.go
package eventbus
