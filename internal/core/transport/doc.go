// Package transport 实现 TCP + 多路复用的传输层
//
// 一条 TCP 连接经 yamux 复用出任意多条流。每条流的首帧写入
// 所属逻辑通道的 ID，之后承载 uvarint 长度前缀的消息帧，
// 读写两侧都强制检查最大消息尺寸。连接级保活由 yamux 负责，
// 长时间没有流活动的连接由回收器定期关闭。
package transport
