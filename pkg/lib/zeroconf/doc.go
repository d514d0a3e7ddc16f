// Package zeroconf 提供内置的 mDNS/DNS-SD 实现
//
// 在 UDP/5353 多播组上实现 RFC 6762（mDNS）与 RFC 6763（DNS-SD）
// 的最小子集：服务注册（PTR/SRV/TXT/A/AAAA 应答与周期公告、
// 关闭时的 goodbye）与服务浏览（PTR 查询与应答解析）。
//
// DNS 报文构造与解析使用 github.com/miekg/dns，多播组管理
// 使用 golang.org/x/net/ipv4 与 ipv6。
//
// 本包只面向局域网内的 Asinka 发现场景，不做完整的 mDNS
// 冲突探测与快取管理；需要系统级 mDNS 时，通过
// interfaces.Discovery 端口替换整个发现实现。
package zeroconf
