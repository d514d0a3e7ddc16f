package zeroconf

import (
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

// cacheFlushBit mDNS 缓存刷新位（RFC 6762 §10.2）
const cacheFlushBit = 1 << 15

// defaultTTL 资源记录默认 TTL（秒）
const defaultTTL = 3200

// ============================================================================
//                              Server - 服务注册
// ============================================================================

// Server 一个已注册服务的 mDNS 应答器
//
// 注册后立即发送一轮公告，并持续应答局域网内对本服务的
// PTR/SRV/TXT/A/AAAA 查询；Shutdown 发送 goodbye（TTL 0）。
type Server struct {
	service  *ServiceEntry
	ipv4conn *ipv4.PacketConn
	ipv6conn *ipv6.PacketConn
	ifaces   []net.Interface
	ttl      uint32

	shouldShutdown chan struct{}
	shutdownOnce   sync.Once
	loops          sync.WaitGroup
}

// RegisterProxy 注册服务（显式指定主机名与地址）
//
// instance/service/domain 构成服务三元组；port 为 SRV 端口；
// host 为目标主机名（可不带域后缀）；ips 为对外公告的地址；
// text 为 TXT 记录；ifaces 为 nil 时使用全部多播接口。
func RegisterProxy(instance, service, domain string, port int, host string, ips []string, text []string, ifaces []net.Interface) (*Server, error) {
	if instance == "" {
		return nil, errors.New("zeroconf: missing service instance name")
	}
	if service == "" {
		return nil, errors.New("zeroconf: missing service type")
	}
	if port == 0 {
		return nil, errors.New("zeroconf: missing service port")
	}
	if host == "" {
		return nil, errors.New("zeroconf: missing host name")
	}
	if domain == "" {
		domain = "local"
	}

	entry := NewServiceEntry(instance, service, domain)
	entry.Port = port
	entry.Text = text
	entry.HostName = host
	if !strings.HasSuffix(entry.HostName, ".") {
		entry.HostName = fmt.Sprintf("%s.%s.", trimDot(host), entry.Domain)
	}

	for _, ip := range ips {
		parsed := net.ParseIP(ip)
		if parsed == nil {
			return nil, fmt.Errorf("zeroconf: invalid address %q", ip)
		}
		if v4 := parsed.To4(); v4 != nil {
			entry.AddrIPv4 = append(entry.AddrIPv4, v4)
		} else {
			entry.AddrIPv6 = append(entry.AddrIPv6, parsed)
		}
	}
	if len(entry.AddrIPv4) == 0 && len(entry.AddrIPv6) == 0 {
		return nil, errors.New("zeroconf: no addresses to announce")
	}

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

	s := &Server{
		service:        entry,
		ipv4conn:       conn4,
		ipv6conn:       conn6,
		ifaces:         ifaces,
		ttl:            defaultTTL,
		shouldShutdown: make(chan struct{}),
	}

	if s.ipv4conn != nil {
		s.loops.Add(1)
		go s.recv4()
	}
	if s.ipv6conn != nil {
		s.loops.Add(1)
		go s.recv6()
	}
	go s.startupAnnounce()

	return s, nil
}

// Announce 立即发送一次服务公告
//
// 注册时已自动发送一轮；周期性重新公告由调用方驱动。
func (s *Server) Announce() {
	resp := new(dns.Msg)
	resp.MsgHdr.Response = true
	resp.MsgHdr.Authoritative = true
	resp.Compress = true
	s.composeLookupAnswers(resp, s.ttl, true)
	s.multicastResponse(resp)
}

// Shutdown 发送 goodbye 并关闭应答器（幂等）
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.goodbye()
		time.Sleep(50 * time.Millisecond)
		s.goodbye()

		close(s.shouldShutdown)
		if s.ipv4conn != nil {
			_ = s.ipv4conn.Close()
		}
		if s.ipv6conn != nil {
			_ = s.ipv6conn.Close()
		}
		s.loops.Wait()
	})
}

// ============================================================================
//                              接收与应答
// ============================================================================

func (s *Server) recv4() {
	defer s.loops.Done()
	buf := make([]byte, 65536)
	for {
		select {
		case <-s.shouldShutdown:
			return
		default:
		}
		n, _, _, err := s.ipv4conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-s.shouldShutdown:
				return
			default:
				continue
			}
		}
		s.parsePacket(buf[:n])
	}
}

func (s *Server) recv6() {
	defer s.loops.Done()
	buf := make([]byte, 65536)
	for {
		select {
		case <-s.shouldShutdown:
			return
		default:
		}
		n, _, _, err := s.ipv6conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-s.shouldShutdown:
				return
			default:
				continue
			}
		}
		s.parsePacket(buf[:n])
	}
}

func (s *Server) parsePacket(packet []byte) {
	msg := new(dns.Msg)
	if err := msg.Unpack(packet); err != nil {
		return
	}
	if msg.Opcode != dns.OpcodeQuery || msg.Response {
		return
	}
	s.handleQuery(msg)
}

func (s *Server) handleQuery(query *dns.Msg) {
	for _, q := range query.Question {
		resp := new(dns.Msg)
		resp.SetReply(query)
		resp.Compress = true
		resp.RecursionDesired = false
		resp.Authoritative = true
		resp.Question = nil
		resp.Answer = nil
		resp.Extra = nil

		switch q.Name {
		case s.service.ServiceTypeName():
			// 元查询：枚举本机提供的服务类型
			if q.Qtype == dns.TypePTR || q.Qtype == dns.TypeANY {
				resp.Answer = append(resp.Answer, &dns.PTR{
					Hdr: dns.RR_Header{
						Name:   s.service.ServiceTypeName(),
						Rrtype: dns.TypePTR,
						Class:  dns.ClassINET,
						Ttl:    s.ttl,
					},
					Ptr: s.service.ServiceName(),
				})
			}
		case s.service.ServiceName():
			if q.Qtype == dns.TypePTR || q.Qtype == dns.TypeANY {
				s.composeBrowsingAnswers(resp)
			}
		case s.service.ServiceInstanceName():
			if q.Qtype == dns.TypeSRV || q.Qtype == dns.TypeTXT || q.Qtype == dns.TypeANY {
				s.composeLookupAnswers(resp, s.ttl, false)
			}
		case s.service.HostName:
			if q.Qtype == dns.TypeA || q.Qtype == dns.TypeAAAA || q.Qtype == dns.TypeANY {
				resp.Answer = append(resp.Answer, s.addrRecords(s.ttl, true)...)
			}
		}

		if len(resp.Answer) > 0 {
			s.multicastResponse(resp)
		}
	}
}

// ============================================================================
//                              记录构造
// ============================================================================

// composeBrowsingAnswers 回答服务类型浏览（PTR 在 Answer，
// 详情记录在 Extra）
func (s *Server) composeBrowsingAnswers(resp *dns.Msg) {
	resp.Answer = append(resp.Answer, &dns.PTR{
		Hdr: dns.RR_Header{
			Name:   s.service.ServiceName(),
			Rrtype: dns.TypePTR,
			Class:  dns.ClassINET,
			Ttl:    s.ttl,
		},
		Ptr: s.service.ServiceInstanceName(),
	})
	resp.Extra = append(resp.Extra, s.srvRecord(s.ttl, false), s.txtRecord(s.ttl, false))
	resp.Extra = append(resp.Extra, s.addrRecords(s.ttl, false)...)
}

// composeLookupAnswers 回答实例详情查询（全部记录在 Answer）
//
// flush 为 true 时在非共享记录上设置缓存刷新位（公告场景）。
func (s *Server) composeLookupAnswers(resp *dns.Msg, ttl uint32, flush bool) {
	resp.Answer = append(resp.Answer, &dns.PTR{
		Hdr: dns.RR_Header{
			Name:   s.service.ServiceName(),
			Rrtype: dns.TypePTR,
			Class:  dns.ClassINET,
			Ttl:    ttl,
		},
		Ptr: s.service.ServiceInstanceName(),
	})
	resp.Answer = append(resp.Answer, s.srvRecord(ttl, flush), s.txtRecord(ttl, flush))
	resp.Answer = append(resp.Answer, s.addrRecords(ttl, flush)...)
}

func (s *Server) srvRecord(ttl uint32, flush bool) *dns.SRV {
	return &dns.SRV{
		Hdr: dns.RR_Header{
			Name:   s.service.ServiceInstanceName(),
			Rrtype: dns.TypeSRV,
			Class:  recordClass(flush),
			Ttl:    ttl,
		},
		Priority: 0,
		Weight:   0,
		Port:     uint16(s.service.Port),
		Target:   s.service.HostName,
	}
}

func (s *Server) txtRecord(ttl uint32, flush bool) *dns.TXT {
	txt := s.service.Text
	if len(txt) == 0 {
		// DNS-SD 要求 TXT 至少有一个（可为空的）字符串
		txt = []string{""}
	}
	return &dns.TXT{
		Hdr: dns.RR_Header{
			Name:   s.service.ServiceInstanceName(),
			Rrtype: dns.TypeTXT,
			Class:  recordClass(flush),
			Ttl:    ttl,
		},
		Txt: txt,
	}
}

func (s *Server) addrRecords(ttl uint32, flush bool) []dns.RR {
	var rrs []dns.RR
	for _, ip := range s.service.AddrIPv4 {
		rrs = append(rrs, &dns.A{
			Hdr: dns.RR_Header{
				Name:   s.service.HostName,
				Rrtype: dns.TypeA,
				Class:  recordClass(flush),
				Ttl:    ttl,
			},
			A: ip,
		})
	}
	for _, ip := range s.service.AddrIPv6 {
		rrs = append(rrs, &dns.AAAA{
			Hdr: dns.RR_Header{
				Name:   s.service.HostName,
				Rrtype: dns.TypeAAAA,
				Class:  recordClass(flush),
				Ttl:    ttl,
			},
			AAAA: ip,
		})
	}
	return rrs
}

func recordClass(flush bool) uint16 {
	if flush {
		return dns.ClassINET | cacheFlushBit
	}
	return dns.ClassINET
}

// ============================================================================
//                              公告与 goodbye
// ============================================================================

// startupAnnounce 注册后的公告突发：1s、2s、4s 间隔共 4 次
// （RFC 6762 §8.3 建议至少 2 次，间隔至少 1 秒）
func (s *Server) startupAnnounce() {
	interval := time.Second
	for i := 0; i < 4; i++ {
		s.Announce()
		select {
		case <-s.shouldShutdown:
			return
		case <-time.After(interval):
		}
		interval *= 2
	}
}

// goodbye 发送 TTL 0 公告，通知对端清除缓存
func (s *Server) goodbye() {
	resp := new(dns.Msg)
	resp.MsgHdr.Response = true
	resp.MsgHdr.Authoritative = true
	resp.Compress = true
	s.composeLookupAnswers(resp, 0, false)
	s.multicastResponse(resp)
}

func (s *Server) multicastResponse(msg *dns.Msg) {
	data, err := msg.Pack()
	if err != nil {
		return
	}
	multicastSend4(s.ipv4conn, s.ifaces, data)
	multicastSend6(s.ipv6conn, s.ifaces, data)
}
