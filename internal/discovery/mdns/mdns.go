package mdns

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	pkgif "github.com/asinka/go-asinka/pkg/interfaces"
	"github.com/asinka/go-asinka/pkg/lib/log"
	"github.com/asinka/go-asinka/pkg/lib/zeroconf"
	"github.com/asinka/go-asinka/pkg/protocolids"
	"github.com/asinka/go-asinka/pkg/types"
)

// mdns 模块 logger
var logger = log.Logger("discovery/mdns")

// 默认值
const (
	// DefaultService 默认服务名
	DefaultService = "default-sync"

	// DefaultDomain 默认浏览域
	DefaultDomain = "local"

	// DefaultAnnounceInterval 默认重新公告间隔
	DefaultAnnounceInterval = 60 * time.Second

	// serviceType DNS-SD 服务类型
	serviceType = "_asinka._tcp"

	// instancePrefix 实例名前缀，自动拨号据此识别同类
	instancePrefix = "asinka-"

	// eventBuffer 事件流缓冲
	eventBuffer = 16

	// closeWait 关闭时等待后台 goroutine 的上限
	closeWait = 2 * time.Second
)

// ============================================================================
//                              Provider - mDNS 发现
// ============================================================================

// Options 提供方构造参数
type Options struct {
	// Service 服务名，参与实例名构造
	Service string

	// Domain 浏览域
	Domain string

	// AnnounceInterval 周期性重新公告的间隔
	AnnounceInterval time.Duration

	// AppID 本机应用 ID（TXT "app"）
	AppID string

	// DeviceID 本机设备 ID（TXT "device"，兼作自我过滤依据）
	DeviceID string

	// Fingerprint 本机身份指纹（TXT "fp"）
	Fingerprint string

	// Transport 传输层，公告端口从监听地址读取
	Transport pkgif.Transport
}

// Provider 内置的 DNS-SD 发现提供方
//
// 公告与浏览共用一个固定实例名（"asinka-<service>-<8hex>"），
// 浏览结果里与本机实例名或设备 ID 相同的条目被直接丢弃。
type Provider struct {
	service       string
	domain        string
	announceEvery time.Duration
	appID         string
	deviceID      string
	fingerprint   string
	transport     pkgif.Transport

	// instance 创建时固定，不随重新公告变化
	instance string

	ctx    context.Context
	cancel context.CancelFunc

	advertising atomic.Bool
	closed      atomic.Bool
	wg          sync.WaitGroup
}

var _ pkgif.Discovery = (*Provider)(nil)

// New 创建发现提供方
func New(opts Options) *Provider {
	if opts.Service == "" {
		opts.Service = DefaultService
	}
	if opts.Domain == "" {
		opts.Domain = DefaultDomain
	}
	if opts.AnnounceInterval <= 0 {
		opts.AnnounceInterval = DefaultAnnounceInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Provider{
		service:       opts.Service,
		domain:        opts.Domain,
		announceEvery: opts.AnnounceInterval,
		appID:         opts.AppID,
		deviceID:      opts.DeviceID,
		fingerprint:   opts.Fingerprint,
		transport:     opts.Transport,
		instance:      instanceName(opts.Service),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// InstanceName 返回本机公告使用的完整实例名
func (p *Provider) InstanceName() string {
	return p.instance
}

// ============================================================================
//                              公告
// ============================================================================

// Advertise 开始公告本机服务
//
// 端口从传输层的实际监听地址读取，所以必须在 Listen 之后调用。
// 公告持续到 ctx 取消或提供方关闭，退出前发送 goodbye。
func (p *Provider) Advertise(ctx context.Context) (<-chan types.AdvertiseEvent, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	if p.advertising.Swap(true) {
		return nil, ErrAlreadyAdvertising
	}

	port, err := p.listenPort()
	if err != nil {
		p.advertising.Store(false)
		return nil, err
	}

	ips := localInterfaceIPs()
	if len(ips) == 0 {
		p.advertising.Store(false)
		return nil, ErrNoAddresses
	}

	server, err := zeroconf.RegisterProxy(
		p.instance, serviceType, p.domain,
		port, p.instance, ips, p.txtRecords(), nil,
	)
	if err != nil {
		p.advertising.Store(false)
		return nil, fmt.Errorf("%w: %v", ErrAdvertise, err)
	}

	events := make(chan types.AdvertiseEvent, eventBuffer)
	events <- types.AdvertiseEvent{Kind: types.AdvertiseStarted, Instance: p.instance}

	p.wg.Add(1)
	go p.announceLoop(ctx, server, events)

	logger.Info("服务公告已开始",
		"instance", p.instance,
		"port", port,
		"addrs", len(ips))
	return events, nil
}

// announceLoop 周期性重新公告，直到退出条件出现
//
// mDNS 缓存会随 TTL 过期，周期公告让晚加入的对端也能看到
// 本机，同时为对端的缓存续命。
func (p *Provider) announceLoop(ctx context.Context, server *zeroconf.Server, events chan<- types.AdvertiseEvent) {
	defer p.wg.Done()
	defer close(events)

	ticker := time.NewTicker(p.announceEvery)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-p.ctx.Done():
			break loop
		case <-ticker.C:
			server.Announce()
			trySend(events, types.AdvertiseEvent{Kind: types.AdvertiseRenewed, Instance: p.instance})
			logger.Debug("重新公告完成", "instance", p.instance)
		}
	}

	// Shutdown 内部发送 goodbye（TTL 0）
	server.Shutdown()
	trySend(events, types.AdvertiseEvent{Kind: types.AdvertiseStopped, Instance: p.instance})
	p.advertising.Store(false)
	logger.Info("服务公告已停止", "instance", p.instance)
}

// listenPort 读取传输层实际监听端口
func (p *Provider) listenPort() (int, error) {
	if p.transport == nil {
		return 0, ErrNotListening
	}
	addr := p.transport.Addr()
	if addr == nil {
		return 0, ErrNotListening
	}
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected listen address %T", ErrNotListening, addr)
	}
	return tcp.Port, nil
}

// txtRecords 构造本机的 TXT 记录
func (p *Provider) txtRecords() []string {
	return []string{
		types.TextAppID + "=" + p.appID,
		types.TextDeviceID + "=" + p.deviceID,
		types.TextFingerprint + "=" + p.fingerprint,
		types.TextProtocol + "=" + protocolids.ProtocolV1,
	}
}

// ============================================================================
//                              浏览
// ============================================================================

// Discover 开始浏览局域网内的同类服务
//
// 每次调用建立独立的浏览会话，事件流在 ctx 取消或提供方
// 关闭后结束。TTL 为 0 的公告（goodbye）翻译成 ServiceLost。
func (p *Provider) Discover(ctx context.Context) (<-chan types.DiscoveryEvent, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowse, err)
	}

	// 浏览会话同时受调用方 ctx 与提供方生命周期约束
	browseCtx, cancel := context.WithCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()
		select {
		case <-p.ctx.Done():
		case <-browseCtx.Done():
		}
	}()

	entries := make(chan *zeroconf.ServiceEntry, 32)
	if err := resolver.Browse(browseCtx, serviceType, p.domain, entries); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrBrowse, err)
	}

	events := make(chan types.DiscoveryEvent, eventBuffer)
	p.wg.Add(1)
	go p.translateLoop(browseCtx, entries, events)

	logger.Info("服务浏览已开始", "service", serviceType, "domain", p.domain)
	return events, nil
}

// translateLoop 把 zeroconf 条目翻译成发现事件
//
// entries 在浏览 ctx 结束后由 zeroconf 关闭，循环随之退出。
func (p *Provider) translateLoop(ctx context.Context, entries <-chan *zeroconf.ServiceEntry, events chan<- types.DiscoveryEvent) {
	defer p.wg.Done()
	defer close(events)

	for entry := range entries {
		info := toServiceInfo(entry)
		if p.isSelf(info) {
			continue
		}

		kind := types.ServiceFound
		if entry.TTL == 0 {
			kind = types.ServiceLost
		}
		logger.Debug("发现事件",
			"kind", kind,
			"instance", info.Instance,
			"addr", info.DialAddr())

		select {
		case events <- types.DiscoveryEvent{Kind: kind, Service: info}:
		case <-ctx.Done():
			return
		}
	}
}

// isSelf 识别本机的公告回声
func (p *Provider) isSelf(info types.ServiceInfo) bool {
	if info.Instance == p.instance {
		return true
	}
	return p.deviceID != "" && info.DeviceID() == p.deviceID
}

// ============================================================================
//                              关闭
// ============================================================================

// Close 停止公告与浏览，关闭所有事件流（幂等）
func (p *Provider) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.cancel()

	// zeroconf 的接收循环要等多播连接关闭才退出，限时等待
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(closeWait):
		logger.Debug("发现清理超时，goroutine 在后台继续退出")
	}

	logger.Info("发现提供方已关闭", "instance", p.instance)
	return nil
}

// ============================================================================
//                              工具函数
// ============================================================================

// instanceName 构造实例名："asinka-<service>-<8hex>"
//
// 随机后缀让同一设备上的多个进程可以共存；服务名先规整成
// 合法的 DNS 标签字符。
func instanceName(service string) string {
	return instancePrefix + sanitizeLabel(service) + "-" + shortID()
}

// shortID 返回 8 位十六进制随机后缀
func shortID() string {
	return uuid.NewString()[:8]
}

// sanitizeLabel 把任意服务名规整成 DNS 标签字符集
//
// 小写字母、数字与连字符保留，其余字符替换为连字符。
func sanitizeLabel(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// toServiceInfo 把 zeroconf 条目转换成服务信息
func toServiceInfo(entry *zeroconf.ServiceEntry) types.ServiceInfo {
	info := types.ServiceInfo{
		Instance:     entry.Instance,
		Service:      entry.Service,
		Domain:       entry.Domain,
		Host:         entry.HostName,
		Port:         entry.Port,
		Text:         parseText(entry.Text),
		DiscoveredAt: time.Now(),
	}
	info.Addrs = append(info.Addrs, entry.AddrIPv4...)
	info.Addrs = append(info.Addrs, entry.AddrIPv6...)
	return info
}

// parseText 解析 "key=value" 形式的 TXT 记录
func parseText(txt []string) map[string]string {
	m := make(map[string]string, len(txt))
	for _, kv := range txt {
		if kv == "" {
			continue
		}
		key, value, _ := strings.Cut(kv, "=")
		m[key] = value
	}
	return m
}

// trySend 非阻塞投递公告事件，缓冲满时丢弃
func trySend(events chan<- types.AdvertiseEvent, ev types.AdvertiseEvent) {
	select {
	case events <- ev:
	default:
	}
}

// virtualBridgePrefixes 容器与虚拟化网桥的接口名前缀
//
// 这些接口上的地址只在本机可达，公告出去只会让对端拨号失败。
var virtualBridgePrefixes = []string{
	"docker", "br-", "veth",
	"cni", "flannel", "calico", "weave",
	"virbr", "lxcbr", "lxdbr",
}

// localInterfaceIPs 收集适合公告的本机单播地址
func localInterfaceIPs() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var ips []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if isVirtualBridge(iface.Name) {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if announceable(ipnet.IP) {
				ips = append(ips, ipnet.IP.String())
			}
		}
	}
	return ips
}

// isVirtualBridge 判断接口名是否属于容器或虚拟化网桥
func isVirtualBridge(name string) bool {
	for _, prefix := range virtualBridgePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// announceable 判断地址是否适合对外公告
//
// 除回环与链路本地外，还排除 RFC 2544 基准测试段
// （198.18.0.0/15，VPN/代理虚拟网卡常用）与 RFC 6598
// 运营商级 NAT 段（100.64.0.0/10），两者对其他设备不可达。
func announceable(ip net.IP) bool {
	if ip == nil || ip.IsLoopback() || ip.IsUnspecified() {
		return false
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return false
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return true
	}
	if ip4[0] == 198 && (ip4[1] == 18 || ip4[1] == 19) {
		return false
	}
	if ip4[0] == 100 && ip4[1] >= 64 && ip4[1] <= 127 {
		return false
	}
	return true
}
