// Package mocks 提供公共接口的手写模拟实现
//
// 供集成测试注入：当前包含发现端口的静态实现，
// 用于在不依赖组播的环境里驱动自动拨号。
package mocks
