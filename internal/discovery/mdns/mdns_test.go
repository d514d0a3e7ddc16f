package mdns

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	pkgif "github.com/asinka/go-asinka/pkg/interfaces"
	"github.com/asinka/go-asinka/pkg/lib/zeroconf"
	"github.com/asinka/go-asinka/pkg/protocolids"
	"github.com/asinka/go-asinka/pkg/types"
)

// idleTransport 未监听的传输层替身
type idleTransport struct{}

var _ pkgif.Transport = (*idleTransport)(nil)

func (idleTransport) Listen(context.Context) error                     { return nil }
func (idleTransport) Addr() net.Addr                                   { return nil }
func (idleTransport) Dial(context.Context, string) (pkgif.Conn, error) { return nil, nil }
func (idleTransport) SetConnHandler(func(pkgif.Conn))                  {}
func (idleTransport) Shutdown(context.Context) error                   { return nil }

// ============================================================================
//                              实例名测试
// ============================================================================

func TestInstanceName(t *testing.T) {
	p := New(Options{Service: "team-chat"})

	name := p.InstanceName()
	if !strings.HasPrefix(name, "asinka-team-chat-") {
		t.Fatalf("unexpected instance name %q", name)
	}

	suffix := strings.TrimPrefix(name, "asinka-team-chat-")
	if len(suffix) != 8 {
		t.Fatalf("suffix %q is not 8 chars", suffix)
	}
	for _, r := range suffix {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Fatalf("suffix %q is not hex", suffix)
		}
	}

	if p.InstanceName() != name {
		t.Error("instance name changed between calls")
	}
}

func TestInstanceNameUnique(t *testing.T) {
	a := New(Options{Service: "sync"})
	b := New(Options{Service: "sync"})
	if a.InstanceName() == b.InstanceName() {
		t.Fatalf("two providers share instance name %q", a.InstanceName())
	}
}

func TestSanitizeLabel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"default-sync", "default-sync"},
		{"Team Chat", "team-chat"},
		{"my_app.sync", "my-app-sync"},
		{"照片同步", "----"},
		{"a1-b2", "a1-b2"},
	}
	for _, tc := range cases {
		if got := sanitizeLabel(tc.in); got != tc.want {
			t.Errorf("sanitizeLabel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// ============================================================================
//                              TXT 记录测试
// ============================================================================

func TestTxtRecords(t *testing.T) {
	p := New(Options{
		Service:     "sync",
		AppID:       "com.example.app",
		DeviceID:    "device-1",
		Fingerprint: "3abc",
	})

	got := parseText(p.txtRecords())
	want := map[string]string{
		types.TextAppID:       "com.example.app",
		types.TextDeviceID:    "device-1",
		types.TextFingerprint: "3abc",
		types.TextProtocol:    protocolids.ProtocolV1,
	}
	for key, value := range want {
		if got[key] != value {
			t.Errorf("TXT %q = %q, want %q", key, got[key], value)
		}
	}
}

func TestParseText(t *testing.T) {
	got := parseText([]string{"app=com.example", "flag", "", "note=a=b"})

	if got["app"] != "com.example" {
		t.Errorf("app = %q", got["app"])
	}
	if value, ok := got["flag"]; !ok || value != "" {
		t.Errorf("valueless key: %q, %v", value, ok)
	}
	if got["note"] != "a=b" {
		t.Errorf("value with '=' split wrong: %q", got["note"])
	}
	if len(got) != 3 {
		t.Errorf("got %d keys, want 3", len(got))
	}
}

// ============================================================================
//                              条目转换测试
// ============================================================================

func TestToServiceInfo(t *testing.T) {
	entry := zeroconf.NewServiceEntry("asinka-sync-a1b2c3d4", "_asinka._tcp", "local")
	entry.HostName = "asinka-sync-a1b2c3d4.local."
	entry.Port = 8888
	entry.Text = []string{"app=com.example", "device=device-9"}
	entry.AddrIPv4 = []net.IP{net.IPv4(192, 168, 1, 10)}
	entry.AddrIPv6 = []net.IP{net.ParseIP("fd00::1")}

	info := toServiceInfo(entry)

	if info.Instance != "asinka-sync-a1b2c3d4" {
		t.Errorf("instance = %q", info.Instance)
	}
	if info.Service != "_asinka._tcp" || info.Domain != "local" {
		t.Errorf("service/domain = %q/%q", info.Service, info.Domain)
	}
	if info.Port != 8888 {
		t.Errorf("port = %d", info.Port)
	}
	if len(info.Addrs) != 2 {
		t.Fatalf("got %d addrs, want 2", len(info.Addrs))
	}
	if info.DialAddr() != "192.168.1.10:8888" {
		t.Errorf("dial addr = %q", info.DialAddr())
	}
	if info.AppID() != "com.example" || info.DeviceID() != "device-9" {
		t.Errorf("TXT mapping: app=%q device=%q", info.AppID(), info.DeviceID())
	}
	if info.DiscoveredAt.IsZero() {
		t.Error("discovered time not stamped")
	}
}

func TestIsSelf(t *testing.T) {
	p := New(Options{Service: "sync", DeviceID: "device-a"})

	if !p.isSelf(types.ServiceInfo{Instance: p.InstanceName()}) {
		t.Error("own instance name not recognized")
	}
	if !p.isSelf(types.ServiceInfo{
		Instance: "asinka-sync-ffffffff",
		Text:     map[string]string{types.TextDeviceID: "device-a"},
	}) {
		t.Error("own device id not recognized")
	}
	if p.isSelf(types.ServiceInfo{
		Instance: "asinka-sync-ffffffff",
		Text:     map[string]string{types.TextDeviceID: "device-b"},
	}) {
		t.Error("foreign peer treated as self")
	}

	anon := New(Options{Service: "sync"})
	if anon.isSelf(types.ServiceInfo{Instance: "asinka-sync-ffffffff"}) {
		t.Error("empty device id must not match")
	}
}

// ============================================================================
//                              地址筛选测试
// ============================================================================

func TestAnnounceable(t *testing.T) {
	cases := []struct {
		ip   string
		want bool
	}{
		{"192.168.1.10", true},
		{"10.0.0.5", true},
		{"fd00::1", true},
		{"127.0.0.1", false},
		{"169.254.1.1", false},
		{"fe80::1", false},
		{"198.18.0.1", false},
		{"198.19.255.254", false},
		{"100.64.0.1", false},
		{"100.127.255.254", false},
		{"100.128.0.1", true},
		{"0.0.0.0", false},
	}
	for _, tc := range cases {
		if got := announceable(net.ParseIP(tc.ip)); got != tc.want {
			t.Errorf("announceable(%s) = %v, want %v", tc.ip, got, tc.want)
		}
	}
}

func TestIsVirtualBridge(t *testing.T) {
	for _, name := range []string{"docker0", "docker_gwbridge", "br-2f1a", "veth01ab", "cni0", "virbr0"} {
		if !isVirtualBridge(name) {
			t.Errorf("%s not recognized as bridge", name)
		}
	}
	for _, name := range []string{"eth0", "en0", "wlan0", "lo"} {
		if isVirtualBridge(name) {
			t.Errorf("%s misclassified as bridge", name)
		}
	}
}

// ============================================================================
//                              生命周期测试
// ============================================================================

func TestAdvertiseWithoutListener(t *testing.T) {
	p := New(Options{Service: "sync", Transport: idleTransport{}})
	defer p.Close()

	if _, err := p.Advertise(context.Background()); !errors.Is(err, ErrNotListening) {
		t.Fatalf("err = %v, want ErrNotListening", err)
	}
	// 失败的公告必须释放状态，否则重试永远报已在公告
	if _, err := p.Advertise(context.Background()); errors.Is(err, ErrAlreadyAdvertising) {
		t.Fatal("failed advertise left the advertising flag set")
	}
}

func TestClosedProvider(t *testing.T) {
	p := New(Options{Service: "sync", Transport: idleTransport{}})
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if _, err := p.Advertise(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Advertise after close: %v", err)
	}
	if _, err := p.Discover(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Discover after close: %v", err)
	}
}

func TestDefaults(t *testing.T) {
	p := New(Options{})
	defer p.Close()

	if !strings.HasPrefix(p.InstanceName(), "asinka-"+DefaultService+"-") {
		t.Errorf("instance = %q", p.InstanceName())
	}
	if p.domain != DefaultDomain {
		t.Errorf("domain = %q", p.domain)
	}
	if p.announceEvery != DefaultAnnounceInterval {
		t.Errorf("announce interval = %v", p.announceEvery)
	}
}
