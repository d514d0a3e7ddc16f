// Package asinka 提供局域网进程间的对象同步与事件分发
//
// Asinka 让同一局域网里的多个进程共享一组带版本号的结构化
// 对象，并互发类型化事件。没有中心服务器：每个进程既是
// 客户端也是服务端，通过 mDNS 互相发现，握手后在加密会话
// 上持续同步。
//
// # 核心概念
//
//   - Client: 入口，一个进程一个实例
//   - Registry: 对象注册表，注册的对象自动同步到所有对端
//   - EventBus: 事件总线，发送一次性事件并按类型订阅
//   - Session: 与单个对端的加密会话，由发现与握手自动建立
//
// # 快速开始
//
//	import (
//	    "github.com/asinka/go-asinka"
//	    "github.com/asinka/go-asinka/pkg/types"
//	)
//
//	// 1. 创建并启动客户端
//	client, err := asinka.New(
//	    asinka.WithAppID("com.example.notes"),
//	    asinka.WithSchemas(noteSchema),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// 2. 共享对象：注册后自动同步到局域网内的同类应用
//	note, _ := client.Registry().Register(note)
//	client.Registry().Update(note.ID, asinka.Fields{
//	    "title": types.String("购物清单"),
//	})
//
//	// 3. 观察变更（本地与远端统一流）
//	sub := client.Registry().ObserveAll()
//	defer sub.Close()
//	for change := range sub.Out() {
//	    fmt.Println(change.Kind, change.ObjectID)
//	}
//
//	// 4. 收发事件
//	client.Events().Send(event)
//	events := client.Events().Observe("chat.message")
//	defer events.Close()
//
// # 同步模型
//
// 对象按 Schema 分通道同步，每个对象带单调递增的版本号。
// 远端更新只有在版本号严格大于本地版本时才被接受，并发写
// 以版本号高者胜出，不做字段级合并。事件与对象不同：一次
// 性投递，不保存，不重放。
//
// # 安全
//
// 每个客户端持有 RSA-2048 身份密钥，公钥指纹即节点 ID。
// 握手阶段互验签名并协商 256 位会话密钥，之后所有载荷用
// AES-256-GCM 加密。密钥默认每次启动重新生成，需要稳定
// 身份时用 GenerateIdentity 生成一次并通过 WithIdentity
// 注入。
package asinka
