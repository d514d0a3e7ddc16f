// Package types 定义 Asinka 的公共领域类型
//
// 本包是类型的唯一真源：对象、字段值、模式、事件、变更、
// 会话信息与发现信息都在这里定义，供接口层与实现层共同使用。
//
// 本包不依赖任何实现包，保持零依赖（仅标准库）。
package types
