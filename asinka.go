package asinka

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"github.com/asinka/go-asinka/internal/core/security"
)

// ============================================================================
//                              版本信息
// ============================================================================

// Version 当前库版本
const Version = "1.0.0"

// 构建信息，由构建脚本通过 -ldflags 注入
var (
	// GitCommit 构建时的 git 提交哈希
	GitCommit = "unknown"
	// BuildTime 构建时间
	BuildTime = "unknown"
)

// VersionInfo 返回完整的版本描述
func VersionInfo() string {
	return fmt.Sprintf("asinka %s (commit: %s, built: %s)", Version, GitCommit, BuildTime)
}

// ============================================================================
//                              身份工具
// ============================================================================

// GenerateIdentity 生成一把新的 RSA-2048 身份私钥。
//
// 不传 WithIdentity 时 New 内部会自动生成，本函数供需要把身份
// 持久化（保存到磁盘、下次启动复用指纹）的调用方显式使用。
func GenerateIdentity() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, security.KeyBits)
	if err != nil {
		return nil, fmt.Errorf("生成身份密钥失败: %w", err)
	}
	return key, nil
}
