package types

import (
	"net"
	"strconv"
	"time"
)

// ============================================================================
//                              ServiceInfo - 发现的服务
// ============================================================================

// TXT 记录中约定的键
const (
	// TextAppID 应用 ID
	TextAppID = "app"
	// TextDeviceID 设备 ID
	TextDeviceID = "device"
	// TextFingerprint 身份指纹
	TextFingerprint = "fp"
	// TextProtocol 协议版本
	TextProtocol = "proto"
)

// ServiceInfo 发现端口返回的单个服务
type ServiceInfo struct {
	// Instance 实例名（如 "asinka-default-sync-a1b2c3d4"）
	Instance string

	// Service 服务类型（如 "_asinka._tcp"）
	Service string

	// Domain 域（局域网固定为 "local"）
	Domain string

	// Host 目标主机名
	Host string

	// Port 服务端口
	Port int

	// Addrs 解析出的 IP 地址
	Addrs []net.IP

	// Text TXT 记录键值对
	Text map[string]string

	// DiscoveredAt 发现时间
	DiscoveredAt time.Time
}

// HasAddrs 检查是否解析到地址
func (si ServiceInfo) HasAddrs() bool {
	return len(si.Addrs) > 0
}

// DialAddr 返回首个可拨号地址（"ip:port"）；无地址时返回空串
func (si ServiceInfo) DialAddr() string {
	if len(si.Addrs) == 0 {
		return ""
	}
	return net.JoinHostPort(si.Addrs[0].String(), strconv.Itoa(si.Port))
}

// AppID 读取 TXT 中的应用 ID
func (si ServiceInfo) AppID() string {
	return si.Text[TextAppID]
}

// DeviceID 读取 TXT 中的设备 ID
func (si ServiceInfo) DeviceID() string {
	return si.Text[TextDeviceID]
}

// Fingerprint 读取 TXT 中的身份指纹
func (si ServiceInfo) Fingerprint() string {
	return si.Text[TextFingerprint]
}

// ============================================================================
//                              发现事件流
// ============================================================================

// DiscoveryEventKind 发现事件类型
type DiscoveryEventKind int

const (
	// ServiceFound 发现新服务（或服务重新公告）
	ServiceFound DiscoveryEventKind = iota
	// ServiceLost 服务离线（goodbye 或 TTL 过期）
	ServiceLost
	// ServiceError 发现过程出错（流不中断）
	ServiceError
)

// String 返回发现事件类型的字符串表示
func (k DiscoveryEventKind) String() string {
	switch k {
	case ServiceFound:
		return "found"
	case ServiceLost:
		return "lost"
	case ServiceError:
		return "error"
	default:
		return "unknown"
	}
}

// DiscoveryEvent 发现流中的一个事件
type DiscoveryEvent struct {
	// Kind 事件类型
	Kind DiscoveryEventKind

	// Service 相关服务（Found/Lost 时有效）
	Service ServiceInfo

	// Err 错误信息（Error 时有效）
	Err error
}

// ============================================================================
//                              公告事件流
// ============================================================================

// AdvertiseEventKind 公告事件类型
type AdvertiseEventKind int

const (
	// AdvertiseStarted 公告已开始
	AdvertiseStarted AdvertiseEventKind = iota
	// AdvertiseRenewed 周期性重新公告完成
	AdvertiseRenewed
	// AdvertiseStopped 公告已停止（goodbye 已发出）
	AdvertiseStopped
	// AdvertiseError 公告过程出错（流不中断）
	AdvertiseError
)

// String 返回公告事件类型的字符串表示
func (k AdvertiseEventKind) String() string {
	switch k {
	case AdvertiseStarted:
		return "started"
	case AdvertiseRenewed:
		return "renewed"
	case AdvertiseStopped:
		return "stopped"
	case AdvertiseError:
		return "error"
	default:
		return "unknown"
	}
}

// AdvertiseEvent 公告流中的一个事件
type AdvertiseEvent struct {
	// Kind 事件类型
	Kind AdvertiseEventKind

	// Instance 本机实例名
	Instance string

	// Err 错误信息（Error 时有效）
	Err error
}
