// Package interfaces 定义 Asinka 公共接口
//
// 这里是门面与实现之间的契约层：注册表、事件总线、发现端口、
// 安全信封、传输与会话管理器都以接口形式声明，实现位于
// internal/ 下的各子系统。嵌入方也可以替换其中的端口
// （最常见的是用系统级 mDNS 替换内置发现实现）。
//
// 习惯用法：导入时使用别名 pkgif。
//
//	import pkgif "github.com/asinka/go-asinka/pkg/interfaces"
package interfaces
