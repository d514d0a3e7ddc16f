package zeroconf

import (
	"fmt"
	"net"
	"strings"
)

// ============================================================================
//                              服务名称
// ============================================================================

// ServiceRecord 服务三元组：实例名、服务类型、域
type ServiceRecord struct {
	// Instance 实例名（如 "asinka-default-sync-a1b2c3d4"）
	Instance string

	// Service 服务类型（如 "_asinka._tcp"）
	Service string

	// Domain 域，局域网固定 "local"
	Domain string
}

// NewServiceRecord 构造服务记录
func NewServiceRecord(instance, service, domain string) *ServiceRecord {
	return &ServiceRecord{
		Instance: trimDot(instance),
		Service:  trimDot(service),
		Domain:   trimDot(domain),
	}
}

// ServiceName 返回服务类型的完整限定名（"_asinka._tcp.local."）
func (s *ServiceRecord) ServiceName() string {
	return fmt.Sprintf("%s.%s.", s.Service, s.Domain)
}

// ServiceInstanceName 返回实例的完整限定名
// （"inst._asinka._tcp.local."）
func (s *ServiceRecord) ServiceInstanceName() string {
	return fmt.Sprintf("%s.%s", s.Instance, s.ServiceName())
}

// ServiceTypeName 返回元查询名（"_services._dns-sd._udp.local."）
func (s *ServiceRecord) ServiceTypeName() string {
	return fmt.Sprintf("_services._dns-sd._udp.%s.", s.Domain)
}

// ============================================================================
//                              服务条目
// ============================================================================

// ServiceEntry 一个已解析的服务
//
// TTL 为 0 表示 goodbye 公告（服务下线）。
type ServiceEntry struct {
	ServiceRecord

	// HostName 目标主机的完整限定名
	HostName string

	// Port 服务端口
	Port int

	// Text TXT 记录（"key=value" 列表）
	Text []string

	// TTL 记录存活时间（秒）
	TTL uint32

	// AddrIPv4 解析出的 IPv4 地址
	AddrIPv4 []net.IP

	// AddrIPv6 解析出的 IPv6 地址
	AddrIPv6 []net.IP
}

// NewServiceEntry 构造服务条目
func NewServiceEntry(instance, service, domain string) *ServiceEntry {
	return &ServiceEntry{
		ServiceRecord: *NewServiceRecord(instance, service, domain),
	}
}

// ============================================================================
//                              名称工具
// ============================================================================

// trimDot 去掉名称两端的点
func trimDot(s string) string {
	return strings.Trim(s, ".")
}

// instanceFromServiceInstanceName 从完整限定名提取实例名
//
// "inst._asinka._tcp.local." → "inst"。实例名中不含点
// （Asinka 实例名只用小写字母、数字与连字符）。
func instanceFromServiceInstanceName(name string) string {
	name = trimDot(name)
	if i := strings.Index(name, "."); i >= 0 {
		return name[:i]
	}
	return name
}
