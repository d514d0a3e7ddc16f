package registry

import (
	"fmt"
	"testing"
	"time"

	"github.com/asinka/go-asinka/internal/core/stats"
	"github.com/asinka/go-asinka/pkg/types"
)

func newTestRegistry() (*Registry, *stats.Collector) {
	collector := stats.NewCollector()
	return New(Options{Stats: collector}), collector
}

func testObject(id string, version uint32) *types.Object {
	return &types.Object{
		ID:      id,
		Type:    "task",
		Version: version,
		Fields: types.Fields{
			"title": types.String("hello"),
			"done":  types.Bool(false),
		},
	}
}

// ============================================================================
//                              本地写入测试
// ============================================================================

func TestRegisterAssignsVersionOne(t *testing.T) {
	reg, _ := newTestRegistry()

	got, err := reg.Register(testObject("task-1", 0))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not stamped")
	}
	if got.Origin != "" {
		t.Errorf("Origin = %q, want local (empty)", got.Origin)
	}
}

func TestRegisterOverwritesAndResetsOrigin(t *testing.T) {
	reg, _ := newTestRegistry()

	remote := testObject("task-1", 7)
	remote.Origin = "session-abc"
	if !reg.ApplyRemoteUpdate(remote) {
		t.Fatal("ApplyRemoteUpdate rejected fresh object")
	}

	// 本地注册无条件覆盖，哪怕版本更低
	got, err := reg.Register(testObject("task-1", 2))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got.Version != 2 {
		t.Errorf("Version = %d, want 2", got.Version)
	}
	if got.Origin != "" {
		t.Errorf("Origin = %q, want local (empty)", got.Origin)
	}
}

func TestRegisterValidation(t *testing.T) {
	reg, _ := newTestRegistry()

	if _, err := reg.Register(nil); err != ErrNilObject {
		t.Errorf("Register(nil) = %v, want ErrNilObject", err)
	}
	if _, err := reg.Register(&types.Object{}); err != ErrEmptyID {
		t.Errorf("Register(empty id) = %v, want ErrEmptyID", err)
	}
}

func TestUpdateBumpsVersion(t *testing.T) {
	reg, _ := newTestRegistry()
	if _, err := reg.Register(testObject("task-1", 0)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := reg.Update("task-1", types.Fields{
		"done":  types.Bool(true),
		"extra": types.Int64(42),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Version != 2 {
		t.Errorf("Version = %d, want 2", got.Version)
	}

	// 更新的字段覆盖，未提及的保留
	if done, _ := got.Fields["done"].AsBool(); !done {
		t.Error("done not updated")
	}
	if title, _ := got.Fields["title"].AsString(); title != "hello" {
		t.Errorf("title = %q, want untouched %q", title, "hello")
	}
	if extra, _ := got.Fields["extra"].AsInt64(); extra != 42 {
		t.Error("new field not added")
	}
}

func TestUpdateMissingObject(t *testing.T) {
	reg, _ := newTestRegistry()
	if _, err := reg.Update("ghost", types.Fields{}); err != ErrObjectNotFound {
		t.Errorf("Update(ghost) = %v, want ErrObjectNotFound", err)
	}
}

func TestUpdateObjectWithoutFields(t *testing.T) {
	reg, _ := newTestRegistry()
	if _, err := reg.Register(&types.Object{ID: "bare-1", Type: "task"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := reg.Update("bare-1", types.Fields{"title": types.String("late")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if title, _ := got.Fields["title"].AsString(); title != "late" {
		t.Errorf("title = %q, want %q", title, "late")
	}
}

func TestDeleteIdempotent(t *testing.T) {
	reg, _ := newTestRegistry()
	if _, err := reg.Register(testObject("task-1", 0)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	sub := reg.ObserveAll()
	defer sub.Close()

	if err := reg.Delete("task-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := reg.Delete("task-1"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, ok := reg.Get("task-1"); ok {
		t.Error("object still present after delete")
	}

	// 第二次删除不产生变更
	if got := len(sub.Out()); got != 1 {
		t.Errorf("pending changes = %d, want 1", got)
	}
}

// ============================================================================
//                              读取隔离测试
// ============================================================================

func TestSnapshotsAreIsolated(t *testing.T) {
	reg, _ := newTestRegistry()
	if _, err := reg.Register(testObject("task-1", 0)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	snap, ok := reg.Get("task-1")
	if !ok {
		t.Fatal("Get: not found")
	}
	snap.Fields["title"] = types.String("mutated")

	again, _ := reg.Get("task-1")
	if title, _ := again.Fields["title"].AsString(); title != "hello" {
		t.Error("snapshot mutation leaked into registry")
	}
}

func TestListAndLen(t *testing.T) {
	reg, _ := newTestRegistry()
	for i := 0; i < 5; i++ {
		if _, err := reg.Register(testObject(fmt.Sprintf("task-%d", i), 0)); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	if reg.Len() != 5 {
		t.Errorf("Len = %d, want 5", reg.Len())
	}
	if got := len(reg.List()); got != 5 {
		t.Errorf("len(List()) = %d, want 5", got)
	}
}

// ============================================================================
//                              版本闸门测试
// ============================================================================

func TestVersionGate(t *testing.T) {
	tests := []struct {
		name          string
		localVersion  uint32
		remoteVersion uint32
		want          bool
	}{
		{"remote newer", 3, 4, true},
		{"remote much newer", 3, 10, true},
		{"equal versions", 3, 3, false},
		{"remote older", 3, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, collector := newTestRegistry()
			if _, err := reg.Register(testObject("task-1", tt.localVersion)); err != nil {
				t.Fatalf("Register: %v", err)
			}

			remote := testObject("task-1", tt.remoteVersion)
			remote.Origin = "session-abc"
			remote.Fields["title"] = types.String("remote")

			if got := reg.ApplyRemoteUpdate(remote); got != tt.want {
				t.Fatalf("ApplyRemoteUpdate = %v, want %v", got, tt.want)
			}

			obj, _ := reg.Get("task-1")
			if tt.want {
				if obj.Version != tt.remoteVersion {
					t.Errorf("Version = %d, want %d", obj.Version, tt.remoteVersion)
				}
				if obj.Origin != "session-abc" {
					t.Errorf("Origin = %q, want session-abc", obj.Origin)
				}
			} else {
				if obj.Version != tt.localVersion {
					t.Errorf("Version = %d, want untouched %d", obj.Version, tt.localVersion)
				}
				if collector.Snapshot().StaleUpdates != 1 {
					t.Error("stale update not counted")
				}
			}
		})
	}
}

func TestApplyRemoteUpdateNewObject(t *testing.T) {
	reg, _ := newTestRegistry()

	remote := testObject("task-9", 5)
	remote.Origin = "session-abc"
	if !reg.ApplyRemoteUpdate(remote) {
		t.Fatal("新对象的远端更新被拒绝")
	}
	obj, ok := reg.Get("task-9")
	if !ok || obj.Version != 5 {
		t.Errorf("Get = (%+v, %v), want version 5", obj, ok)
	}
}

func TestApplyRemoteDelete(t *testing.T) {
	reg, _ := newTestRegistry()
	if _, err := reg.Register(testObject("task-1", 0)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if !reg.ApplyRemoteDelete("task-1", "task", "session-abc", time.Now()) {
		t.Fatal("ApplyRemoteDelete returned false for present object")
	}
	if _, ok := reg.Get("task-1"); ok {
		t.Error("object still present")
	}

	// 幂等：不存在时返回 false 且无副作用
	if reg.ApplyRemoteDelete("task-1", "task", "session-abc", time.Now()) {
		t.Error("ApplyRemoteDelete returned true for absent object")
	}
}

// ============================================================================
//                              订阅测试
// ============================================================================

func TestObserveAllReceivesChanges(t *testing.T) {
	reg, _ := newTestRegistry()
	sub := reg.ObserveAll()
	defer sub.Close()

	if _, err := reg.Register(testObject("task-1", 0)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := reg.Update("task-1", types.Fields{"done": types.Bool(true)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := reg.Delete("task-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	want := []struct {
		kind    types.ChangeKind
		version uint32
	}{
		{types.ChangeUpdate, 1},
		{types.ChangeUpdate, 2},
		{types.ChangeDelete, 0},
	}
	for i, w := range want {
		select {
		case ch := <-sub.Out():
			if ch.Kind != w.kind {
				t.Errorf("change %d: Kind = %v, want %v", i, ch.Kind, w.kind)
			}
			if w.kind == types.ChangeUpdate && ch.Version != w.version {
				t.Errorf("change %d: Version = %d, want %d", i, ch.Version, w.version)
			}
			if ch.ObjectID != "task-1" {
				t.Errorf("change %d: ObjectID = %q", i, ch.ObjectID)
			}
		case <-time.After(time.Second):
			t.Fatalf("change %d not delivered", i)
		}
	}
}

func TestObserveFiltersByID(t *testing.T) {
	reg, _ := newTestRegistry()
	sub := reg.Observe("task-2")
	defer sub.Close()

	if _, err := reg.Register(testObject("task-1", 0)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := reg.Register(testObject("task-2", 0)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	select {
	case ch := <-sub.Out():
		if ch.ObjectID != "task-2" {
			t.Errorf("ObjectID = %q, want task-2", ch.ObjectID)
		}
	case <-time.After(time.Second):
		t.Fatal("change not delivered")
	}
	if got := len(sub.Out()); got != 0 {
		t.Errorf("unexpected extra changes: %d", got)
	}
}

func TestChangeOrderPerObject(t *testing.T) {
	reg, _ := newTestRegistry()
	sub := reg.Observe("task-1")
	defer sub.Close()

	if _, err := reg.Register(testObject("task-1", 0)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	for i := 0; i < 10; i++ {
		if _, err := reg.Update("task-1", types.Fields{"n": types.Int64(int64(i))}); err != nil {
			t.Fatalf("Update %d: %v", i, err)
		}
	}

	// 缓冲 16 > 11 条变更，全部保留且版本严格递增
	var last uint32
	for i := 0; i < 11; i++ {
		select {
		case ch := <-sub.Out():
			if ch.Version <= last {
				t.Fatalf("out-of-order version: %d after %d", ch.Version, last)
			}
			last = ch.Version
		case <-time.After(time.Second):
			t.Fatalf("change %d not delivered", i)
		}
	}
}

func TestSubscriptionOverflowDropsOldest(t *testing.T) {
	reg, collector := newTestRegistry()
	sub := reg.ObserveAll()
	defer sub.Close()

	// 缓冲 16：写入 20 条，最旧的 4 条被丢弃
	if _, err := reg.Register(testObject("task-1", 0)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	for i := 0; i < 19; i++ {
		if _, err := reg.Update("task-1", types.Fields{"n": types.Int64(int64(i))}); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	if got := sub.Dropped(); got != 4 {
		t.Errorf("Dropped = %d, want 4", got)
	}
	if got := collector.Snapshot().ChangeDrops; got != 4 {
		t.Errorf("collector ChangeDrops = %d, want 4", got)
	}

	// 第一条可读到的变更是版本 5（1..4 被丢弃）
	select {
	case ch := <-sub.Out():
		if ch.Version != 5 {
			t.Errorf("first surviving version = %d, want 5", ch.Version)
		}
	case <-time.After(time.Second):
		t.Fatal("no change delivered")
	}
}

func TestSubscriptionCloseIdempotent(t *testing.T) {
	reg, _ := newTestRegistry()
	sub := reg.ObserveAll()

	if err := sub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	// 关闭后通道关闭
	if _, ok := <-sub.Out(); ok {
		t.Error("channel still open after Close")
	}

	// 关闭后的写入不应 panic
	if _, err := reg.Register(testObject("task-1", 0)); err != nil {
		t.Fatalf("Register after close: %v", err)
	}
}
