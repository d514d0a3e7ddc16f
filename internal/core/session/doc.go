// Package session 实现会话管理器
//
// 会话是两个对端之间一条握手完成的连接，以接受方铸造的
// UUID 为标识。管理器持有会话表，为每个会话驱动四件事：
// 入站流分发、出站变更泵、入站变更泵与心跳。本地事件经
// 出站事件流扇出到全部活跃会话。发现流中符合命名约定的
// 新对端自动拨号。
package session
