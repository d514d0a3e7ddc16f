package zeroconf

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// maxQueryInterval 周期性重查的间隔上限
const maxQueryInterval = 60 * time.Second

// ============================================================================
//                              Resolver - 服务浏览
// ============================================================================

// Resolver 局域网服务浏览器
//
// 一个 Resolver 承载一次 Browse 会话；会话随 ctx 取消而结束，
// 结束时关闭结果通道并释放多播连接。
type Resolver struct {
	ipv4conn *ipv4.PacketConn
	ipv6conn *ipv6.PacketConn
	ifaces   []net.Interface

	closeOnce sync.Once
}

// NewResolver 创建解析器
//
// ifaces 为 nil 时使用全部多播接口，IPv4/IPv6 至少一个可用即可。
func NewResolver(ifaces []net.Interface) (*Resolver, error) {
	if len(ifaces) == 0 {
		ifaces = listMulticastInterfaces()
	}
	if len(ifaces) == 0 {
		return nil, errors.New("zeroconf: no multicast interfaces")
	}

	conn4, err4 := joinUDP4Multicast(ifaces)
	conn6, err6 := joinUDP6Multicast(ifaces)
	if conn4 == nil && conn6 == nil {
		return nil, fmt.Errorf("zeroconf: join multicast: %v / %v", err4, err6)
	}

	return &Resolver{ipv4conn: conn4, ipv6conn: conn6, ifaces: ifaces}, nil
}

// Browse 浏览一个服务类型，把解析出的服务写入 entries
//
// 立即发出首轮 PTR 查询并返回；后台持续接收公告、按指数退避
// 重查（上限 60s）。TTL 为 0 的条目表示服务下线（goodbye）。
// ctx 取消后关闭 entries。
func (r *Resolver) Browse(ctx context.Context, service, domain string, entries chan<- *ServiceEntry) error {
	if service == "" {
		return errors.New("zeroconf: missing service type")
	}
	if domain == "" {
		domain = "local"
	}
	record := NewServiceRecord("", service, domain)

	msgCh := make(chan *dns.Msg, 32)
	if r.ipv4conn != nil {
		go r.recv4(ctx, msgCh)
	}
	if r.ipv6conn != nil {
		go r.recv6(ctx, msgCh)
	}
	go r.mainloop(ctx, record, msgCh, entries)

	if err := r.query(record); err != nil {
		r.shutdown()
		return err
	}
	go r.periodicQuery(ctx, record)

	return nil
}

// shutdown 关闭多播连接，使接收循环退出（幂等）
func (r *Resolver) shutdown() {
	r.closeOnce.Do(func() {
		if r.ipv4conn != nil {
			_ = r.ipv4conn.Close()
		}
		if r.ipv6conn != nil {
			_ = r.ipv6conn.Close()
		}
	})
}

// ============================================================================
//                              接收与解析
// ============================================================================

func (r *Resolver) recv4(ctx context.Context, msgCh chan<- *dns.Msg) {
	buf := make([]byte, 65536)
	for {
		n, _, _, err := r.ipv4conn.ReadFrom(buf)
		if err != nil {
			return
		}
		msg := new(dns.Msg)
		if err := msg.Unpack(buf[:n]); err != nil {
			continue
		}
		select {
		case msgCh <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (r *Resolver) recv6(ctx context.Context, msgCh chan<- *dns.Msg) {
	buf := make([]byte, 65536)
	for {
		n, _, _, err := r.ipv6conn.ReadFrom(buf)
		if err != nil {
			return
		}
		msg := new(dns.Msg)
		if err := msg.Unpack(buf[:n]); err != nil {
			continue
		}
		select {
		case msgCh <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// mainloop 汇聚响应报文，把记录拼装成完整 ServiceEntry
//
// PTR/SRV/TXT 可能分散在 Answer 与 Extra，也可能跨报文到达；
// 以实例完整限定名为键累积，凑齐 SRV 后投递。同一实例只投递
// 一次，收到 goodbye 后重置，便于下次重新上线时再次投递。
func (r *Resolver) mainloop(ctx context.Context, record *ServiceRecord, msgCh <-chan *dns.Msg, entries chan<- *ServiceEntry) {
	defer close(entries)
	defer r.shutdown()

	pending := make(map[string]*ServiceEntry)
	delivered := make(map[string]bool)

	for {
		var msg *dns.Msg
		select {
		case <-ctx.Done():
			return
		case msg = <-msgCh:
		}
		if !msg.Response {
			continue
		}

		sections := append([]dns.RR{}, msg.Answer...)
		sections = append(sections, msg.Ns...)
		sections = append(sections, msg.Extra...)

		for _, raw := range sections {
			switch rr := raw.(type) {
			case *dns.PTR:
				if rr.Hdr.Name != record.ServiceName() {
					continue
				}
				e := ensurePending(pending, rr.Ptr, record)
				e.TTL = rr.Hdr.Ttl
			case *dns.SRV:
				if !strings.HasSuffix(rr.Hdr.Name, "."+record.ServiceName()) {
					continue
				}
				e := ensurePending(pending, rr.Hdr.Name, record)
				e.HostName = rr.Target
				e.Port = int(rr.Port)
				e.TTL = rr.Hdr.Ttl
			case *dns.TXT:
				if !strings.HasSuffix(rr.Hdr.Name, "."+record.ServiceName()) {
					continue
				}
				e := ensurePending(pending, rr.Hdr.Name, record)
				e.Text = rr.Txt
			}
		}

		// 地址记录按主机名关联（通常与 SRV 同报文）
		for _, raw := range sections {
			switch rr := raw.(type) {
			case *dns.A:
				for _, e := range pending {
					if e.HostName == rr.Hdr.Name {
						e.AddrIPv4 = appendIP(e.AddrIPv4, rr.A)
					}
				}
			case *dns.AAAA:
				for _, e := range pending {
					if e.HostName == rr.Hdr.Name {
						e.AddrIPv6 = appendIP(e.AddrIPv6, rr.AAAA)
					}
				}
			}
		}

		for key, e := range pending {
			if e.HostName == "" || e.Port == 0 {
				continue
			}
			if e.TTL == 0 {
				// goodbye：只对已投递过的实例转发
				delete(pending, key)
				if !delivered[key] {
					continue
				}
				delete(delivered, key)
			} else {
				if delivered[key] {
					delete(pending, key)
					continue
				}
				delivered[key] = true
				delete(pending, key)
			}
			select {
			case entries <- e:
			case <-ctx.Done():
				return
			}
		}
	}
}

// ensurePending 取出或新建待拼装条目
func ensurePending(pending map[string]*ServiceEntry, fqName string, record *ServiceRecord) *ServiceEntry {
	if e, ok := pending[fqName]; ok {
		return e
	}
	e := NewServiceEntry(instanceFromServiceInstanceName(fqName), record.Service, record.Domain)
	pending[fqName] = e
	return e
}

// appendIP 去重追加地址
func appendIP(list []net.IP, ip net.IP) []net.IP {
	for _, existing := range list {
		if existing.Equal(ip) {
			return list
		}
	}
	return append(list, ip)
}

// ============================================================================
//                              查询
// ============================================================================

// query 发送一次服务类型的 PTR 查询
func (r *Resolver) query(record *ServiceRecord) error {
	msg := new(dns.Msg)
	msg.SetQuestion(record.ServiceName(), dns.TypePTR)
	msg.RecursionDesired = false

	data, err := msg.Pack()
	if err != nil {
		return err
	}
	multicastSend4(r.ipv4conn, r.ifaces, data)
	multicastSend6(r.ipv6conn, r.ifaces, data)
	return nil
}

// periodicQuery 指数退避重查：1s、2s、4s … 上限 60s
// （响应丢包与晚加入的对端都靠重查兜底）
func (r *Resolver) periodicQuery(ctx context.Context, record *ServiceRecord) {
	interval := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
		if err := r.query(record); err != nil {
			return
		}
		interval *= 2
		if interval > maxQueryInterval {
			interval = maxQueryInterval
		}
	}
}
