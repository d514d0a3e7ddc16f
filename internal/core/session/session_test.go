package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/asinka/go-asinka/internal/core/eventbus"
	"github.com/asinka/go-asinka/internal/core/handshake"
	"github.com/asinka/go-asinka/internal/core/registry"
	"github.com/asinka/go-asinka/internal/core/security"
	"github.com/asinka/go-asinka/internal/core/stats"
	"github.com/asinka/go-asinka/internal/core/transport"
	pkgif "github.com/asinka/go-asinka/pkg/interfaces"
	"github.com/asinka/go-asinka/pkg/protocolids"
	"github.com/asinka/go-asinka/pkg/types"
)

// RSA 密钥生成较慢，整个包共享两份身份
var (
	envOnce sync.Once
	envA    *security.Envelope
	envB    *security.Envelope
)

func testEnvelopes(t *testing.T) (*security.Envelope, *security.Envelope) {
	t.Helper()
	envOnce.Do(func() {
		var err error
		if envA, err = security.New(); err != nil {
			t.Fatalf("security.New A: %v", err)
		}
		if envB, err = security.New(); err != nil {
			t.Fatalf("security.New B: %v", err)
		}
	})
	if envA == nil || envB == nil {
		t.Fatal("test envelopes unavailable")
	}
	return envA, envB
}

// ============================================================================
//                              测试对等体
// ============================================================================

// testPeer 一个完整的进程内对等体：注册表、总线、传输层与会话管理器
type testPeer struct {
	name string
	env  *security.Envelope
	st   *stats.Collector
	reg  *registry.Registry
	bus  *eventbus.Bus
	tr   *transport.Transport
	mgr  *Manager
}

func newTestPeer(t *testing.T, name string, env *security.Envelope, tweak func(*Options)) *testPeer {
	t.Helper()

	st := stats.NewCollector()
	reg := registry.New(registry.Options{Stats: st})
	bus := eventbus.New(eventbus.Options{Stats: st})
	tr := transport.New(transport.Options{Port: 0, Stats: st})

	params := handshake.Params{
		AppID:        "com.example." + name,
		AppName:      name,
		AppVersion:   "1.0.0",
		DeviceID:     "device-" + name,
		Capabilities: map[string]string{"sync": "v1"},
		Schemas: []types.Schema{{
			Name:    "task",
			Version: "1",
			Fields: []types.FieldDescriptor{
				{Name: "title", Kind: types.FieldString},
				{Name: "done", Kind: types.FieldBool},
			},
		}},
	}

	opts := Options{
		Envelope:  env,
		Registry:  reg,
		EventBus:  bus,
		Transport: tr,
		Engine:    handshake.New(params, env),
		Stats:     st,
		DeviceID:  params.DeviceID,
		// 心跳在相关用例里单独验证，这里关闭以免干扰计时
		HeartbeatInterval: -1,
		UnaryTimeout:      2 * time.Second,
	}
	if tweak != nil {
		tweak(&opts)
	}
	mgr := NewManager(opts)

	if err := tr.Listen(context.Background()); err != nil {
		t.Fatalf("Listen(%s): %v", name, err)
	}
	if err := mgr.Start(); err != nil {
		t.Fatalf("Start(%s): %v", name, err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = mgr.Close(ctx)
		_ = tr.Shutdown(ctx)
	})

	return &testPeer{name: name, env: env, st: st, reg: reg, bus: bus, tr: tr, mgr: mgr}
}

func (p *testPeer) addr(t *testing.T) string {
	t.Helper()
	tcp, ok := p.tr.Addr().(*net.TCPAddr)
	if !ok {
		t.Fatalf("unexpected listen addr %v", p.tr.Addr())
	}
	return fmt.Sprintf("127.0.0.1:%d", tcp.Port)
}

// waitFor 轮询直到条件满足或超时
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out after %v waiting for %s", timeout, what)
}

// connectPeers 让 from 拨号 to，并等两侧都登记会话
func connectPeers(t *testing.T, from, to *testPeer) types.SessionInfo {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	info, err := from.mgr.Connect(ctx, to.addr(t))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool {
		return len(to.mgr.Sessions()) == 1
	}, "acceptor side session")
	return info
}

// ============================================================================
//                              连接与同步
// ============================================================================

func TestConnectAndSync(t *testing.T) {
	ea, eb := testEnvelopes(t)
	a := newTestPeer(t, "alpha", ea, nil)
	b := newTestPeer(t, "beta", eb, nil)

	info := connectPeers(t, b, a)
	if info.ID == "" {
		t.Fatal("missing session id")
	}
	if info.Phase != types.PhaseActive {
		t.Errorf("phase = %v, want active", info.Phase)
	}
	// 拨号方通过应答里的公钥认出对端身份
	if info.RemoteFingerprint != ea.Fingerprint() {
		t.Errorf("remote fingerprint = %q, want %q", info.RemoteFingerprint, ea.Fingerprint())
	}
	if len(info.RemoteSchemas) != 1 || info.RemoteSchemas[0].Name != "task" {
		t.Errorf("remote schemas = %+v", info.RemoteSchemas)
	}

	// 接受方从握手请求里拿到完整的对端标识
	got := a.mgr.Sessions()
	if len(got) != 1 {
		t.Fatalf("acceptor sessions = %d, want 1", len(got))
	}
	if got[0].ID != info.ID {
		t.Errorf("session id differs across sides: %q vs %q", got[0].ID, info.ID)
	}
	if got[0].RemoteAppID != "com.example.beta" || got[0].RemoteDeviceID != "device-beta" {
		t.Errorf("acceptor remote identity = (%q, %q)", got[0].RemoteAppID, got[0].RemoteDeviceID)
	}

	// A 的本地注册流向 B
	if _, err := a.reg.Register(&types.Object{
		ID:     "t1",
		Type:   "task",
		Fields: types.Fields{"title": types.String("write tests")},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool {
		obj, ok := b.reg.Get("t1")
		return ok && obj.Version == 1
	}, "t1 to reach peer B")

	obj, _ := b.reg.Get("t1")
	if title, _ := obj.GetString("title"); title != "write tests" {
		t.Errorf("title = %q", title)
	}
	if obj.Origin != info.ID {
		t.Errorf("origin = %q, want session id %q", obj.Origin, info.ID)
	}

	// 本地更新推进版本并继续流动
	if _, err := a.reg.Update("t1", types.Fields{
		"title": types.String("write more tests"),
		"done":  types.Bool(true),
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool {
		obj, ok := b.reg.Get("t1")
		if !ok || obj.Version != 2 {
			return false
		}
		done, _ := obj.GetBool("done")
		return done
	}, "t1 v2 to reach peer B")

	// 同一条同步流反方向也通
	if _, err := b.reg.Register(&types.Object{
		ID:     "t2",
		Type:   "task",
		Fields: types.Fields{"title": types.String("review")},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool {
		obj, ok := a.reg.Get("t2")
		return ok && obj.Origin == info.ID
	}, "t2 to reach peer A")
}

func TestDeletePropagation(t *testing.T) {
	ea, eb := testEnvelopes(t)
	a := newTestPeer(t, "alpha", ea, nil)
	b := newTestPeer(t, "beta", eb, nil)
	connectPeers(t, b, a)

	if _, err := a.reg.Register(&types.Object{
		ID:     "gone",
		Type:   "task",
		Fields: types.Fields{"title": types.String("temp")},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool {
		_, ok := b.reg.Get("gone")
		return ok
	}, "object to reach peer B")

	if err := a.reg.Delete("gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool {
		_, ok := b.reg.Get("gone")
		return !ok
	}, "delete to reach peer B")
}

// 回声抑制：远端应用的变更绝不回流到来源会话
func TestNoEcho(t *testing.T) {
	ea, eb := testEnvelopes(t)
	a := newTestPeer(t, "alpha", ea, nil)
	b := newTestPeer(t, "beta", eb, nil)
	connectPeers(t, b, a)

	if _, err := a.reg.Register(&types.Object{
		ID:     "echo1",
		Type:   "task",
		Fields: types.Fields{"title": types.String("once")},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool {
		_, ok := b.reg.Get("echo1")
		return ok
	}, "object to reach peer B")

	// 给潜在的回声留出现的时间
	time.Sleep(200 * time.Millisecond)

	syncKey := protocolids.SysSync.String()
	if out := b.st.Snapshot().Channels[syncKey].MessagesOut; out != 0 {
		t.Errorf("peer B wrote %d sync messages, want 0", out)
	}
	if stale := a.st.Snapshot().StaleUpdates; stale != 0 {
		t.Errorf("peer A rejected %d stale updates, want 0", stale)
	}
	if obj, _ := a.reg.Get("echo1"); obj.Version != 1 {
		t.Errorf("origin object version = %d, want 1", obj.Version)
	}
}

// ============================================================================
//                              事件
// ============================================================================

func TestEventDelivery(t *testing.T) {
	ea, eb := testEnvelopes(t)
	a := newTestPeer(t, "alpha", ea, nil)
	b := newTestPeer(t, "beta", eb, nil)
	info := connectPeers(t, b, a)

	sub := b.bus.Observe("notify")
	defer sub.Close()

	if err := a.bus.Send(&types.Event{
		Type:     "notify",
		Data:     types.Fields{"msg": types.String("hello")},
		Priority: types.PriorityHigh,
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case ev := <-sub.Out():
		if ev.Type != "notify" {
			t.Errorf("type = %q", ev.Type)
		}
		if msg, _ := ev.Data["msg"].AsString(); msg != "hello" {
			t.Errorf("msg = %q", msg)
		}
		if ev.Priority != types.PriorityHigh {
			t.Errorf("priority = %v", ev.Priority)
		}
		if ev.Origin != info.ID {
			t.Errorf("origin = %q, want session id %q", ev.Origin, info.ID)
		}
		if ev.ID == "" {
			t.Error("missing event id")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("event did not reach peer B")
	}
}

// ============================================================================
//                              断开
// ============================================================================

func TestDisconnect(t *testing.T) {
	ea, eb := testEnvelopes(t)
	a := newTestPeer(t, "alpha", ea, nil)
	b := newTestPeer(t, "beta", eb, nil)
	info := connectPeers(t, b, a)

	if err := b.mgr.Disconnect("no-such-session"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}

	if err := b.mgr.Disconnect(info.ID); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool {
		return len(b.mgr.Sessions()) == 0
	}, "dialer side to drop the session")
	waitFor(t, 3*time.Second, func() bool {
		return len(a.mgr.Sessions()) == 0
	}, "acceptor side to drop the session")

	waitFor(t, 3*time.Second, func() bool {
		_, ok := b.mgr.Session(info.ID)
		return !ok
	}, "session table entry removal")
	if err := b.mgr.Disconnect(info.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second Disconnect err = %v, want ErrSessionNotFound", err)
	}
}

func TestConnectAfterClose(t *testing.T) {
	ea, eb := testEnvelopes(t)
	a := newTestPeer(t, "alpha", ea, nil)
	b := newTestPeer(t, "beta", eb, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := b.mgr.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := b.mgr.Connect(ctx, a.addr(t)); !errors.Is(err, ErrManagerClosed) {
		t.Errorf("err = %v, want ErrManagerClosed", err)
	}
}

// ============================================================================
//                              心跳失联
// ============================================================================

// 对端挂起心跳应答时，连续错过判定失联并回收会话
func TestHeartbeatTimeout(t *testing.T) {
	ea, _ := testEnvelopes(t)

	// 哑对端：接受连接但不服务任何流
	srv := transport.New(transport.Options{Port: 0})
	srv.SetConnHandler(func(pkgif.Conn) {})
	if err := srv.Listen(context.Background()); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	cl := transport.New(transport.Options{Port: 0})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = cl.Shutdown(ctx)
		_ = srv.Shutdown(ctx)
	})

	mock := clock.NewMock()
	st := stats.NewCollector()
	mgr := NewManager(Options{
		Envelope:          ea,
		Registry:          registry.New(registry.Options{Stats: st}),
		EventBus:          eventbus.New(eventbus.Options{Stats: st}),
		Transport:         cl,
		Engine:            handshake.New(handshake.Params{AppID: "com.example.hb", DeviceID: "device-hb"}, ea),
		Stats:             st,
		Clock:             mock,
		HeartbeatInterval: 30 * time.Second,
		MaxMissed:         3,
		UnaryTimeout:      100 * time.Millisecond,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = mgr.Close(ctx)
	})

	srvAddr, ok := srv.Addr().(*net.TCPAddr)
	if !ok {
		t.Fatalf("unexpected listen addr %v", srv.Addr())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, err := cl.Dial(ctx, fmt.Sprintf("127.0.0.1:%d", srvAddr.Port))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	// 绕过握手，直接装配一个带密钥的会话
	s := newSession(mgr, conn, &handshake.Result{
		SessionID:  "hb-session",
		SessionKey: make([]byte, 32),
	}, "")
	if err := mgr.addSession(s); err != nil {
		t.Fatalf("addSession: %v", err)
	}
	s.run()

	// 等心跳循环装好定时器再推进模拟时钟
	time.Sleep(100 * time.Millisecond)

	// 三个心跳周期，每轮都等真实的应答超时走完
	for i := 0; i < 3; i++ {
		mock.Add(30 * time.Second)
		time.Sleep(300 * time.Millisecond)
	}

	select {
	case <-s.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("session not reaped after heartbeat loss")
	}
	if _, ok := mgr.Session("hb-session"); ok {
		t.Error("session still registered after reap")
	}
	if got := s.Phase(); got != types.PhaseClosing {
		t.Errorf("phase = %v, want closing", got)
	}
}

// ============================================================================
//                              自动拨号
// ============================================================================

// fakeDiscovery 向管理器注入手工构造的发现事件
type fakeDiscovery struct {
	instance string
	events   chan types.DiscoveryEvent
}

var _ pkgif.Discovery = (*fakeDiscovery)(nil)

func (f *fakeDiscovery) Advertise(context.Context) (<-chan types.AdvertiseEvent, error) {
	ch := make(chan types.AdvertiseEvent)
	close(ch)
	return ch, nil
}

func (f *fakeDiscovery) Discover(context.Context) (<-chan types.DiscoveryEvent, error) {
	return f.events, nil
}

func (f *fakeDiscovery) InstanceName() string { return f.instance }
func (f *fakeDiscovery) Close() error         { return nil }

func found(instance string, port int, deviceID string) types.DiscoveryEvent {
	return types.DiscoveryEvent{
		Kind: types.ServiceFound,
		Service: types.ServiceInfo{
			Instance: instance,
			Service:  "_asinka._tcp",
			Domain:   "local",
			Port:     port,
			Addrs:    []net.IP{net.ParseIP("127.0.0.1")},
			Text:     map[string]string{types.TextDeviceID: deviceID},
		},
	}
}

func TestAutoConnect(t *testing.T) {
	ea, eb := testEnvelopes(t)
	a := newTestPeer(t, "alpha", ea, nil)

	fd := &fakeDiscovery{
		instance: "asinka-test-beta0000",
		events:   make(chan types.DiscoveryEvent, 8),
	}
	b := newTestPeer(t, "beta", eb, func(o *Options) {
		o.Discovery = fd
	})

	port := a.tr.Addr().(*net.TCPAddr).Port

	fd.events <- found("asinka-test-alpha000", port, "device-alpha")
	waitFor(t, 3*time.Second, func() bool {
		return len(b.mgr.Sessions()) == 1 && len(a.mgr.Sessions()) == 1
	}, "auto dial to establish a session")

	sess := b.mgr.Sessions()[0]
	if sess.RemoteDeviceID != "device-alpha" {
		t.Errorf("remote device = %q, want from TXT record", sess.RemoteDeviceID)
	}

	// 以下事件都应被过滤：外来实例、本机实例、本机设备、已连接设备
	fd.events <- found("printer-kitchen", port, "device-printer")
	fd.events <- found(fd.instance, port, "device-beta")
	fd.events <- found("asinka-test-beta9999", port, "device-beta")
	fd.events <- found("asinka-test-alpha000", port, "device-alpha")
	time.Sleep(300 * time.Millisecond)

	if n := len(b.mgr.Sessions()); n != 1 {
		t.Errorf("sessions = %d, want 1 after filtered announcements", n)
	}
	if n := len(a.mgr.Sessions()); n != 1 {
		t.Errorf("acceptor sessions = %d, want 1 after filtered announcements", n)
	}
}

// 发现流报错不影响既有会话
func TestDiscoveryErrorTolerated(t *testing.T) {
	ea, eb := testEnvelopes(t)
	a := newTestPeer(t, "alpha", ea, nil)

	fd := &fakeDiscovery{
		instance: "asinka-test-beta0000",
		events:   make(chan types.DiscoveryEvent, 8),
	}
	b := newTestPeer(t, "beta", eb, func(o *Options) {
		o.Discovery = fd
	})

	port := a.tr.Addr().(*net.TCPAddr).Port
	fd.events <- found("asinka-test-alpha000", port, "device-alpha")
	waitFor(t, 3*time.Second, func() bool {
		return len(b.mgr.Sessions()) == 1
	}, "auto dial to establish a session")

	fd.events <- types.DiscoveryEvent{Kind: types.ServiceError, Err: errors.New("mdns socket hiccup")}
	fd.events <- types.DiscoveryEvent{Kind: types.ServiceLost, Service: types.ServiceInfo{Instance: "asinka-test-alpha000"}}
	time.Sleep(200 * time.Millisecond)

	if n := len(b.mgr.Sessions()); n != 1 {
		t.Errorf("sessions = %d, want 1 after discovery noise", n)
	}
}
