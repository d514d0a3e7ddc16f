package registry

import (
	"sync"
	"time"

	"github.com/asinka/go-asinka/internal/core/stats"
	pkgif "github.com/asinka/go-asinka/pkg/interfaces"
	"github.com/asinka/go-asinka/pkg/lib/log"
	"github.com/asinka/go-asinka/pkg/types"
)

var logger = log.Logger("core/registry")

// DefaultChangeBuffer 变更订阅的默认缓冲大小
const DefaultChangeBuffer = 16

// ============================================================================
//                              Registry - 对象注册表
// ============================================================================

// Options 注册表选项
type Options struct {
	// ChangeBuffer 每个订阅的缓冲大小，0 表示默认值 16
	ChangeBuffer int

	// Stats 统计收集器，nil 时注册表自建一个私有收集器
	Stats *stats.Collector
}

// Registry 对象注册表实现
//
// 单把读写锁同时保护对象表与订阅表；变更发布在持锁状态下
// 完成，保证同一对象 ID 的变更在每个订阅通道上按发生顺序
// 出现。
type Registry struct {
	mu      sync.RWMutex
	objects map[string]*types.Object

	// allSubs 订阅全部对象的订阅者
	allSubs map[*changeSub]struct{}

	// idSubs 按对象 ID 的订阅者
	idSubs map[string]map[*changeSub]struct{}

	bufSize int
	stats   *stats.Collector
}

// 确保实现接口
var _ pkgif.Registry = (*Registry)(nil)

// New 创建对象注册表
func New(opts Options) *Registry {
	if opts.ChangeBuffer <= 0 {
		opts.ChangeBuffer = DefaultChangeBuffer
	}
	if opts.Stats == nil {
		opts.Stats = stats.NewCollector()
	}
	return &Registry{
		objects: make(map[string]*types.Object),
		allSubs: make(map[*changeSub]struct{}),
		idSubs:  make(map[string]map[*changeSub]struct{}),
		bufSize: opts.ChangeBuffer,
		stats:   opts.Stats,
	}
}

// ============================================================================
//                              本地写入
// ============================================================================

// Register 注册（或覆盖）本地对象
func (r *Registry) Register(obj *types.Object) (*types.Object, error) {
	if obj == nil {
		return nil, ErrNilObject
	}
	if obj.ID == "" {
		return nil, ErrEmptyID
	}

	stored := obj.Clone()
	if stored.Version == 0 {
		stored.Version = 1
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now()
	}
	// 本地注册无条件生效，来源重置为本地
	stored.Origin = ""

	r.mu.Lock()
	r.objects[stored.ID] = stored
	r.publishLocked(types.Change{
		Kind:       types.ChangeUpdate,
		ObjectID:   stored.ID,
		ObjectType: stored.Type,
		Object:     stored.Clone(),
		Version:    stored.Version,
		Timestamp:  stored.UpdatedAt,
	})
	r.mu.Unlock()

	logger.Debug("对象注册",
		"object_id", stored.ID,
		"type", stored.Type,
		"version", stored.Version)

	return stored.Clone(), nil
}

// Update 更新本地对象的字段
func (r *Registry) Update(id string, fields types.Fields) (*types.Object, error) {
	if id == "" {
		return nil, ErrEmptyID
	}

	r.mu.Lock()
	existing, ok := r.objects[id]
	if !ok {
		r.mu.Unlock()
		return nil, ErrObjectNotFound
	}

	updated := existing.Clone()
	if updated.Fields == nil {
		updated.Fields = make(types.Fields, len(fields))
	}
	for name, v := range fields {
		updated.Fields[name] = v.Clone()
	}
	updated.Version = existing.Version + 1
	updated.UpdatedAt = time.Now()
	updated.Origin = ""

	r.objects[id] = updated
	r.publishLocked(types.Change{
		Kind:       types.ChangeUpdate,
		ObjectID:   updated.ID,
		ObjectType: updated.Type,
		Object:     updated.Clone(),
		Version:    updated.Version,
		Timestamp:  updated.UpdatedAt,
	})
	r.mu.Unlock()

	return updated.Clone(), nil
}

// Delete 删除本地对象
//
// 幂等：对象不存在时直接返回 nil，不产生变更。
func (r *Registry) Delete(id string) error {
	if id == "" {
		return ErrEmptyID
	}

	r.mu.Lock()
	existing, ok := r.objects[id]
	if !ok {
		r.mu.Unlock()
		return nil
	}

	delete(r.objects, id)
	r.publishLocked(types.Change{
		Kind:       types.ChangeDelete,
		ObjectID:   id,
		ObjectType: existing.Type,
		Timestamp:  time.Now(),
	})
	r.mu.Unlock()

	logger.Debug("对象删除", "object_id", id)
	return nil
}

// ============================================================================
//                              读取
// ============================================================================

// Get 按 ID 读取对象快照
func (r *Registry) Get(id string) (*types.Object, bool) {
	r.mu.RLock()
	obj, ok := r.objects[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return obj.Clone(), true
}

// List 返回全部对象快照
func (r *Registry) List() []*types.Object {
	r.mu.RLock()
	out := make([]*types.Object, 0, len(r.objects))
	for _, obj := range r.objects {
		out = append(out, obj.Clone())
	}
	r.mu.RUnlock()
	return out
}

// Len 返回当前对象数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// ============================================================================
//                              订阅
// ============================================================================

// Observe 订阅单个对象 ID 的变更流
func (r *Registry) Observe(id string) pkgif.ChangeSubscription {
	sub := &changeSub{
		reg: r,
		id:  id,
		out: make(chan types.Change, r.bufSize),
	}

	r.mu.Lock()
	m, ok := r.idSubs[id]
	if !ok {
		m = make(map[*changeSub]struct{})
		r.idSubs[id] = m
	}
	m[sub] = struct{}{}
	r.mu.Unlock()

	return sub
}

// ObserveAll 订阅全部对象的变更流
func (r *Registry) ObserveAll() pkgif.ChangeSubscription {
	sub := &changeSub{
		reg: r,
		out: make(chan types.Change, r.bufSize),
	}

	r.mu.Lock()
	r.allSubs[sub] = struct{}{}
	r.mu.Unlock()

	return sub
}

// removeSub 移除订阅（订阅 Close 时调用）
//
// 返回后不再有发布方引用该订阅，之后关闭通道是安全的。
func (r *Registry) removeSub(sub *changeSub) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub.id == "" {
		delete(r.allSubs, sub)
		return
	}
	if m, ok := r.idSubs[sub.id]; ok {
		delete(m, sub)
		if len(m) == 0 {
			delete(r.idSubs, sub.id)
		}
	}
}

// publishLocked 向相关订阅者发布变更（持写锁调用）
func (r *Registry) publishLocked(ch types.Change) {
	for sub := range r.allSubs {
		sub.push(ch)
	}
	if m, ok := r.idSubs[ch.ObjectID]; ok {
		for sub := range m {
			sub.push(ch)
		}
	}
}

// ============================================================================
//                              远端写入
// ============================================================================

// ApplyRemoteUpdate 应用远端对象更新
//
// 版本闸门：仅当对象不存在或远端版本严格大于本地版本时
// 生效；过期更新静默丢弃并计数。
func (r *Registry) ApplyRemoteUpdate(obj *types.Object) bool {
	if obj == nil || obj.ID == "" {
		return false
	}

	r.mu.Lock()
	existing, ok := r.objects[obj.ID]
	if ok && obj.Version <= existing.Version {
		r.mu.Unlock()
		r.stats.AddStaleUpdate()
		logger.Debug("过期更新丢弃",
			"object_id", obj.ID,
			"remote_version", obj.Version,
			"local_version", existing.Version)
		return false
	}

	stored := obj.Clone()
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now()
	}

	r.objects[stored.ID] = stored
	r.publishLocked(types.Change{
		Kind:       types.ChangeUpdate,
		ObjectID:   stored.ID,
		ObjectType: stored.Type,
		Object:     stored.Clone(),
		Version:    stored.Version,
		Timestamp:  stored.UpdatedAt,
		Origin:     stored.Origin,
	})
	r.mu.Unlock()

	return true
}

// ApplyRemoteDelete 应用远端对象删除
//
// 幂等：对象不存在时返回 false，不产生变更。
func (r *Registry) ApplyRemoteDelete(id, objectType, origin string, at time.Time) bool {
	if id == "" {
		return false
	}
	if at.IsZero() {
		at = time.Now()
	}

	r.mu.Lock()
	existing, ok := r.objects[id]
	if !ok {
		r.mu.Unlock()
		return false
	}

	if objectType == "" {
		objectType = existing.Type
	}

	delete(r.objects, id)
	r.publishLocked(types.Change{
		Kind:       types.ChangeDelete,
		ObjectID:   id,
		ObjectType: objectType,
		Timestamp:  at,
		Origin:     origin,
	})
	r.mu.Unlock()

	return true
}
