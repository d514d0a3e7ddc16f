package mocks

import (
	"context"
	"sync"

	"github.com/asinka/go-asinka/pkg/types"
)

// MockDiscovery 模拟发现端口实现
//
// 默认行为：Advertise 立即成功，Discover 把静态服务表逐个
// 作为 Found 事件发出，之后流保持打开，测试可用 Emit 注入
// 后续事件（如 Lost）。
type MockDiscovery struct {
	mu sync.Mutex

	// Services 静态服务表
	Services []types.ServiceInfo

	// 可覆盖的方法
	AdvertiseFunc func(ctx context.Context) (<-chan types.AdvertiseEvent, error)
	DiscoverFunc  func(ctx context.Context) (<-chan types.DiscoveryEvent, error)

	// 调用记录
	AdvertiseCalls int
	DiscoverCalls  int

	instance string
	closed   bool
	streams  []chan types.DiscoveryEvent
}

// NewMockDiscovery 创建带静态服务表的 MockDiscovery
func NewMockDiscovery(instance string, services ...types.ServiceInfo) *MockDiscovery {
	return &MockDiscovery{
		instance: instance,
		Services: services,
	}
}

// Advertise 开始公告
func (m *MockDiscovery) Advertise(ctx context.Context) (<-chan types.AdvertiseEvent, error) {
	m.mu.Lock()
	m.AdvertiseCalls++
	override := m.AdvertiseFunc
	m.mu.Unlock()

	if override != nil {
		return override(ctx)
	}

	events := make(chan types.AdvertiseEvent, 4)
	events <- types.AdvertiseEvent{Kind: types.AdvertiseStarted, Instance: m.instance}
	go func() {
		<-ctx.Done()
		close(events)
	}()
	return events, nil
}

// Discover 开始浏览
func (m *MockDiscovery) Discover(ctx context.Context) (<-chan types.DiscoveryEvent, error) {
	m.mu.Lock()
	m.DiscoverCalls++
	override := m.DiscoverFunc
	services := make([]types.ServiceInfo, len(m.Services))
	copy(services, m.Services)
	m.mu.Unlock()

	if override != nil {
		return override(ctx)
	}

	events := make(chan types.DiscoveryEvent, 16+len(services))
	for _, si := range services {
		events <- types.DiscoveryEvent{Kind: types.ServiceFound, Service: si}
	}

	m.mu.Lock()
	m.streams = append(m.streams, events)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.removeStream(events)
	}()
	return events, nil
}

// Emit 向所有活跃的发现流注入一个事件
func (m *MockDiscovery) Emit(event types.DiscoveryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.streams {
		select {
		case ch <- event:
		default:
		}
	}
}

// InstanceName 返回实例名
func (m *MockDiscovery) InstanceName() string {
	return m.instance
}

// Close 关闭所有事件流
func (m *MockDiscovery) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for _, ch := range m.streams {
		close(ch)
	}
	m.streams = nil
	return nil
}

func (m *MockDiscovery) removeStream(target chan types.DiscoveryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	for i, ch := range m.streams {
		if ch == target {
			m.streams = append(m.streams[:i], m.streams[i+1:]...)
			close(ch)
			return
		}
	}
}
