// Package mdns 实现内置的局域网发现提供方
//
// 基于 DNS-SD（服务类型 "_asinka._tcp"）公告本机并浏览同类
// 服务。TXT 记录携带应用 ID、设备 ID、身份指纹与协议版本，
// 会话管理器用它们决定是否自动拨号。实例名形如
// "asinka-<service>-<8hex>"，浏览结果中本机实例（实例名或
// 设备 ID 相同）已被过滤。
//
// 需要系统级 mDNS（Bonjour、Avahi）时，通过根包的
// WithDiscovery 注入自定义 interfaces.Discovery 实现，
// 本包整体被替换。
package mdns
