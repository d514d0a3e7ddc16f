// Package interfaces 定义 Asinka 公共接口
//
// 本文件定义对象注册表接口。
package interfaces

import (
	"time"

	"github.com/asinka/go-asinka/pkg/types"
)

// Registry 对象注册表
//
// 注册表持有参与同步的全部对象，是本进程的对象真源。
// 本地写入（Register/Update/Delete）无条件生效；
// 远端写入（ApplyRemote*）经过版本闸门，只接受严格更大的版本。
// 所有返回的对象都是深拷贝，调用方可自由修改。
type Registry interface {
	// Register 注册（或覆盖）本地对象
	//
	// obj.Version 为 0 时置为 1。已存在同 ID 对象时本地注册
	// 无条件覆盖，并把来源重置为本地。返回写入后的对象快照。
	Register(obj *types.Object) (*types.Object, error)

	// Update 更新本地对象的字段
	//
	// 版本加 1，时间戳更新。对象不存在时返回 ErrObjectNotFound。
	// fields 中的字段覆盖同名旧字段，未提及的字段保留。
	// 返回更新后的对象快照。
	Update(id string, fields types.Fields) (*types.Object, error)

	// Delete 删除本地对象
	//
	// 幂等：对象不存在时直接返回 nil，不产生变更。
	Delete(id string) error

	// Get 按 ID 读取对象快照；不存在时 ok 为 false
	Get(id string) (*types.Object, bool)

	// List 返回全部对象快照（顺序不保证）
	List() []*types.Object

	// Len 返回当前对象数
	Len() int

	// Observe 订阅单个对象 ID 的变更流
	Observe(id string) ChangeSubscription

	// ObserveAll 订阅全部对象的变更流
	ObserveAll() ChangeSubscription

	// ApplyRemoteUpdate 应用远端对象更新
	//
	// obj.Origin 必须是来源会话 ID。版本闸门：仅当对象不存在
	// 或 obj.Version 严格大于本地版本时生效。被拒绝的更新
	// 静默丢弃（只计数），返回 false。
	ApplyRemoteUpdate(obj *types.Object) bool

	// ApplyRemoteDelete 应用远端对象删除
	//
	// 幂等：对象不存在时返回 false，不产生变更。
	ApplyRemoteDelete(id, objectType, origin string, at time.Time) bool
}

// ChangeSubscription 对象变更订阅
//
// 每个订阅持有有界缓冲：缓冲满时丢弃最旧的变更并累加
// Dropped 计数，写入方永不阻塞。同一对象 ID 的变更
// 按发生顺序出现在 Out 通道上。
type ChangeSubscription interface {
	// Out 返回变更通道；订阅关闭后通道关闭
	Out() <-chan types.Change

	// Dropped 返回本订阅因缓冲溢出丢弃的变更数
	Dropped() uint64

	// Close 取消订阅（幂等）
	Close() error
}
