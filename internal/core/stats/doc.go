// Package stats 实现流量与丢弃统计
//
// 版本闸门拒绝与缓冲溢出丢弃不作为错误上报，只在这里留下
// 计数，诊断时通过 Snapshot 读取。所有计数器都是原子的，
// 记录路径无锁竞争。
//
// 架构层：Core Layer
package stats
