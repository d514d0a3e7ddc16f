// Package wire 定义 Asinka 的网络协议消息（wire format）
//
// 编码采用 Protobuf wire format（varint tag + 长度定界字段），
// 由 google.golang.org/protobuf/encoding/protowire 手工编解码，
// 与任何按相同字段号生成的 Protobuf 实现字节兼容。
//
// # 字段号冻结
//
// 所有消息的字段号一经发布不得改动（见各消息定义处的注释）。
// 新字段只能追加新字段号；未知字段在解码时原样保留，
// 重新编码时追加回消息尾部（与 Protobuf unknown field 语义一致）。
//
// # 与 pkg/types 的区别
//
// wire 包定义跨网络传输的消息结构（线上结构），
// pkg/types 定义 Go 内部数据结构（内存结构）。
// 两者之间通过本包 convert.go 转换；int32 字段在进入线上
// 结构时加宽为 int64。
//
// # 帧格式
//
// 流上的每条消息封装为一帧：uvarint 长度前缀 + 消息字节，
// 长度受配置的最大消息尺寸约束（见 ReadFrame / WriteFrame）。
package wire
