// Package protocolids 是 Asinka 通道与协议标识的唯一真源
//
// 所有逻辑通道 ID 与协议版本名都在这里定义，实现包一律
// 引用本包常量，禁止散落的字符串字面量。
//
// 命名规则：
//   - 通道 ID 格式为 /asinka/sys/{name}/{version}
//   - 协议版本名格式为 asinka-v{N}，握手阶段用于版本协商
package protocolids
