// Package registry 实现对象注册表
//
// 注册表是本进程同步对象的真源：
//
//   - 本地写入（Register/Update/Delete）无条件生效，Update 把
//     版本加 1
//   - 远端写入（ApplyRemoteUpdate/ApplyRemoteDelete）经过版本
//     闸门，只接受严格更大的版本；过期更新静默丢弃并计数
//   - 观察者通过有界缓冲订阅变更，缓冲满时丢最旧并计数，
//     写入方永不阻塞
//
// 变更入队发生在注册表的突变临界区内，保证同一对象 ID 的
// 变更按发生顺序出现在每个订阅通道上。
//
// # 使用示例
//
//	reg := registry.New(registry.Options{})
//
//	sub := reg.ObserveAll()
//	defer sub.Close()
//
//	reg.Register(&types.Object{ID: "task-1", Type: "task", Fields: fields})
//	change := <-sub.Out()
//
// 架构层：Core Layer
// 公共接口：pkg/interfaces/registry.go
package registry
