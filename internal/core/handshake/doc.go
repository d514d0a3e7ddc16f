// Package handshake 实现握手引擎
//
// 握手是会话建立后的第一个请求/应答交换，双方交换应用身份、
// 身份公钥、对象模式与能力表：
//
//   - 发起方 BuildRequest 构造请求
//   - 接受方 ProcessRequest 校验协议交集，铸造会话 ID 与
//     会话密钥（密钥用发起方公钥 RSA-OAEP 封装后随应答送回）
//   - 发起方 ValidateResponse 校验应答并解封会话密钥
//
// v1 不做公钥签名交换，信任在首次使用时建立。
//
// 架构层：Core Layer
package handshake
