package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/asinka/go-asinka/internal/core/handshake"
	"github.com/asinka/go-asinka/internal/core/security"
	pkgif "github.com/asinka/go-asinka/pkg/interfaces"
	"github.com/asinka/go-asinka/pkg/lib/log"
	"github.com/asinka/go-asinka/pkg/protocolids"
	"github.com/asinka/go-asinka/pkg/types"
	"github.com/asinka/go-asinka/pkg/wire"
)

// ============================================================================
//                              Session - 对端会话
// ============================================================================

// Session 一个处于 Active（或正在关闭）的对端会话
//
// 所有后台任务挂在同一个 errgroup 下：任何任务出错都会取消
// 会话上下文并触发整体回收。同步流恰有一条，由拨号方打开、
// 接受方在入站流分发中收编。
type Session struct {
	id   string
	mgr  *Manager
	conn pkgif.Conn

	// key 会话密钥，同步与事件载荷用它做 AEAD 封装
	key []byte

	// info 握手后固定的对端信息（Phase 字段在快照时填充）
	info types.SessionInfo

	// changes 本地注册表变更订阅
	//
	// 构造时即订阅：会话一旦出现在会话表中，其后的本地变更
	// 就不会漏送（同步只传变更，不传存量快照）。
	changes pkgif.ChangeSubscription

	phase atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	// syncStream 在 syncReady 关闭后可读
	syncOnce   sync.Once
	syncReady  chan struct{}
	syncStream pkgif.Stream

	closeOnce sync.Once
	done      chan struct{}
}

// newSession 构造会话（握手已成功）
func newSession(m *Manager, conn pkgif.Conn, res *handshake.Result, knownDeviceID string) *Session {
	ctx, cancel := context.WithCancel(m.ctx)
	group, gctx := errgroup.WithContext(ctx)

	deviceID := res.PeerDeviceID
	if deviceID == "" {
		deviceID = knownDeviceID
	}
	var fp string
	if len(res.PeerPublicKey) > 0 {
		fp = security.FingerprintOf(res.PeerPublicKey)
	}

	s := &Session{
		id:      res.SessionID,
		mgr:     m,
		conn:    conn,
		key:     res.SessionKey,
		changes: m.registry.ObserveAll(),
		info: types.SessionInfo{
			ID:                res.SessionID,
			RemoteAppID:       res.PeerAppID,
			RemoteAppName:     res.PeerAppName,
			RemoteAppVersion:  res.PeerAppVersion,
			RemoteDeviceID:    deviceID,
			RemoteFingerprint: fp,
			RemoteAddr:        conn.RemoteAddr(),
			RemoteSchemas:     res.PeerSchemas,
			Capabilities:      res.PeerCapabilities,
			EstablishedAt:     time.Now(),
		},
		ctx:       gctx,
		cancel:    cancel,
		group:     group,
		syncReady: make(chan struct{}),
		done:      make(chan struct{}),
	}
	s.phase.Store(int32(types.PhaseActive))
	return s
}

// run 启动会话的全部后台任务
func (s *Session) run() {
	s.group.Go(s.watchConn)
	s.group.Go(s.acceptLoop)
	s.group.Go(s.outboundPump)
	s.group.Go(s.inboundPump)
	s.group.Go(s.heartbeatLoop)
	go s.reap()
}

// ============================================================================
//                              状态
// ============================================================================

// ID 返回会话 ID
func (s *Session) ID() string {
	return s.id
}

// Phase 返回当前阶段
func (s *Session) Phase() types.SessionPhase {
	return types.SessionPhase(s.phase.Load())
}

func (s *Session) setPhase(p types.SessionPhase) {
	s.phase.Store(int32(p))
}

// Info 返回会话快照
func (s *Session) Info() types.SessionInfo {
	info := s.info
	info.Phase = s.Phase()
	info.RemoteSchemas = append([]types.Schema(nil), s.info.RemoteSchemas...)
	if len(s.info.Capabilities) > 0 {
		caps := make(map[string]string, len(s.info.Capabilities))
		for k, v := range s.info.Capabilities {
			caps[k] = v
		}
		info.Capabilities = caps
	}
	return info
}

// Done 返回会话回收完成的通知通道
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close 主动关闭会话（幂等）
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.setPhase(types.PhaseClosing)
		s.cancel()
	})
	return nil
}

// discard 释放未能登记进会话表的会话
func (s *Session) discard() {
	s.Close()
	_ = s.changes.Close()
}

// ============================================================================
//                              载荷封装
// ============================================================================

// seal 序列化载荷并做 AEAD 封装
func (s *Session) seal(plaintext []byte) ([]byte, error) {
	nonce, ciphertext, err := s.mgr.env.Seal(s.key, plaintext)
	if err != nil {
		return nil, err
	}
	env := wire.Envelope{Nonce: nonce, Ciphertext: ciphertext}
	return env.Marshal(), nil
}

// open 解开 AEAD 信封
func (s *Session) open(data []byte) ([]byte, error) {
	var env wire.Envelope
	if err := env.Unmarshal(data); err != nil {
		return nil, err
	}
	return s.mgr.env.Open(s.key, env.Nonce, env.Ciphertext)
}

// ============================================================================
//                              后台任务
// ============================================================================

// watchConn 连接或会话任一关闭时，关闭连接解除所有阻塞读写
func (s *Session) watchConn() error {
	select {
	case <-s.ctx.Done():
	case <-s.conn.Done():
	}
	_ = s.conn.Close()
	return nil
}

// acceptLoop 分发对端打开的入站流
func (s *Session) acceptLoop() error {
	for {
		stream, err := s.conn.AcceptStream(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept stream: %w", err)
		}

		switch stream.Channel() {
		case protocolids.SysSync:
			if !s.adoptSyncStream(stream) {
				logger.Warn("收到重复的同步流", "session", log.TruncateID(s.id, 8))
				stream.Close()
			}
		case protocolids.SysHeartbeat:
			st := stream
			s.group.Go(func() error {
				s.serveHeartbeat(st)
				return nil
			})
		case protocolids.SysEvent:
			st := stream
			s.group.Go(func() error {
				s.serveEvent(st)
				return nil
			})
		default:
			logger.Warn("未知通道的入站流", "session", log.TruncateID(s.id, 8), "channel", stream.Channel())
			stream.Close()
		}
	}
}

// adoptSyncStream 收编会话的持久同步流（只收第一条）
func (s *Session) adoptSyncStream(stream pkgif.Stream) bool {
	adopted := false
	s.syncOnce.Do(func() {
		s.syncStream = stream
		close(s.syncReady)
		adopted = true
	})
	return adopted
}

// waitSyncStream 等待同步流就绪
func (s *Session) waitSyncStream() (pkgif.Stream, error) {
	select {
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	case <-s.syncReady:
		return s.syncStream, nil
	}
}

// outboundPump 把本地注册表变更送往对端
//
// 来源等于本会话的变更来自对端，跳过以防回声。
func (s *Session) outboundPump() error {
	stream, err := s.waitSyncStream()
	if err != nil {
		return nil
	}

	for {
		select {
		case <-s.ctx.Done():
			return nil
		case change, ok := <-s.changes.Out():
			if !ok {
				return nil
			}
			if change.Origin == s.id {
				continue
			}
			payload, err := s.seal(wire.NewSyncMessage(change, s.id).Marshal())
			if err != nil {
				return fmt.Errorf("seal sync payload: %w", err)
			}
			if err := stream.WriteMsg(payload); err != nil {
				if s.ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("write sync: %w", err)
			}
		}
	}
}

// inboundPump 读取对端变更并经版本闸门应用
func (s *Session) inboundPump() error {
	stream, err := s.waitSyncStream()
	if err != nil {
		return nil
	}

	for {
		data, err := stream.ReadMsg()
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read sync: %w", err)
		}

		plain, err := s.open(data)
		if err != nil {
			logger.Warn("同步载荷解密失败，丢弃", "session", log.TruncateID(s.id, 8), "error", err)
			continue
		}
		var msg wire.SyncMessage
		if err := msg.Unmarshal(plain); err != nil {
			logger.Warn("同步消息解码失败，丢弃", "session", log.TruncateID(s.id, 8), "error", err)
			continue
		}
		if err := msg.Validate(); err != nil {
			logger.Warn("同步消息非法，丢弃", "session", log.TruncateID(s.id, 8), "error", err)
			continue
		}
		s.applySync(&msg)
	}
}

// applySync 把同步消息路由到注册表
//
// 来源一律盖上本会话 ID，不信任消息自带的会话字段。
func (s *Session) applySync(msg *wire.SyncMessage) {
	switch {
	case msg.Update != nil:
		obj := msg.Update.ToObject()
		obj.Origin = s.id
		if s.mgr.registry.ApplyRemoteUpdate(obj) {
			logger.Debug("应用远端更新",
				"session", log.TruncateID(s.id, 8), "object", obj.ID, "version", obj.Version)
		}
	case msg.Delete != nil:
		del := msg.Delete
		if s.mgr.registry.ApplyRemoteDelete(del.ObjectID, del.ObjectType, s.id, del.Time()) {
			logger.Debug("应用远端删除",
				"session", log.TruncateID(s.id, 8), "object", del.ObjectID)
		}
	}
}

// ============================================================================
//                              心跳
// ============================================================================

// heartbeatLoop 周期发送心跳，连续失败超限即关闭会话
func (s *Session) heartbeatLoop() error {
	if s.mgr.heartbeatInterval <= 0 {
		<-s.ctx.Done()
		return nil
	}

	ticker := s.mgr.clk.Ticker(s.mgr.heartbeatInterval)
	defer ticker.Stop()

	misses := 0
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.heartbeat(); err != nil {
				if s.ctx.Err() != nil {
					return nil
				}
				misses++
				logger.Warn("心跳失败",
					"session", log.TruncateID(s.id, 8), "consecutive", misses, "error", err)
				if misses >= s.mgr.maxMissed {
					return fmt.Errorf("%w: %d consecutive misses", ErrHeartbeatLost, misses)
				}
			} else {
				misses = 0
			}
		}
	}
}

// heartbeat 一次心跳交换
func (s *Session) heartbeat() error {
	ctx, cancel := context.WithTimeout(s.ctx, s.mgr.unaryTimeout)
	defer cancel()

	stream, err := s.conn.OpenStream(ctx, protocolids.SysHeartbeat)
	if err != nil {
		return err
	}
	defer stream.Close()
	_ = stream.SetDeadline(time.Now().Add(s.mgr.unaryTimeout))

	req := wire.HeartbeatRequest{
		SessionID:   s.id,
		TimestampMs: s.mgr.clk.Now().UnixMilli(),
	}
	if err := stream.WriteMsg(req.Marshal()); err != nil {
		return err
	}

	data, err := stream.ReadMsg()
	if err != nil {
		return err
	}
	var resp wire.HeartbeatResponse
	if err := resp.Unmarshal(data); err != nil {
		return err
	}
	if !resp.Success {
		return errors.New("peer reported heartbeat failure")
	}
	return nil
}

// serveHeartbeat 应答对端心跳（总是成功，带本端时间戳）
func (s *Session) serveHeartbeat(stream pkgif.Stream) {
	defer stream.Close()
	_ = stream.SetDeadline(time.Now().Add(s.mgr.unaryTimeout))

	data, err := stream.ReadMsg()
	if err != nil {
		logger.Debug("读心跳请求失败", "session", log.TruncateID(s.id, 8), "error", err)
		return
	}
	var req wire.HeartbeatRequest
	if err := req.Unmarshal(data); err != nil {
		logger.Debug("心跳请求解码失败", "session", log.TruncateID(s.id, 8), "error", err)
		return
	}

	resp := wire.HeartbeatResponse{Success: true, TimestampMs: s.mgr.clk.Now().UnixMilli()}
	if err := stream.WriteMsg(resp.Marshal()); err != nil {
		logger.Debug("写心跳应答失败", "session", log.TruncateID(s.id, 8), "error", err)
	}
}

// ============================================================================
//                              事件
// ============================================================================

// sendEvent 向对端投递一个本地事件（单次请求/应答）
func (s *Session) sendEvent(ctx context.Context, ev *types.Event) error {
	cctx, cancel := context.WithTimeout(ctx, s.mgr.unaryTimeout)
	defer cancel()

	stream, err := s.conn.OpenStream(cctx, protocolids.SysEvent)
	if err != nil {
		return err
	}
	defer stream.Close()
	_ = stream.SetDeadline(time.Now().Add(s.mgr.unaryTimeout))

	payload, err := s.seal(wire.NewEventMessage(ev, s.id).Marshal())
	if err != nil {
		return err
	}
	if err := stream.WriteMsg(payload); err != nil {
		return err
	}

	data, err := stream.ReadMsg()
	if err != nil {
		return err
	}
	var resp wire.EventResponse
	if err := resp.Unmarshal(data); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("peer rejected event %s", ev.ID)
	}
	return nil
}

// serveEvent 接收对端事件并投递到本地总线
//
// 投递完成后才应答成功；解密或解码失败应答失败，
// 会话本身不受影响。
func (s *Session) serveEvent(stream pkgif.Stream) {
	defer stream.Close()
	_ = stream.SetDeadline(time.Now().Add(s.mgr.unaryTimeout))

	data, err := stream.ReadMsg()
	if err != nil {
		logger.Debug("读事件请求失败", "session", log.TruncateID(s.id, 8), "error", err)
		return
	}

	var resp wire.EventResponse
	if plain, err := s.open(data); err != nil {
		logger.Warn("事件载荷解密失败", "session", log.TruncateID(s.id, 8), "error", err)
	} else {
		var msg wire.EventMessage
		if err := msg.Unmarshal(plain); err != nil {
			logger.Warn("事件消息解码失败", "session", log.TruncateID(s.id, 8), "error", err)
		} else {
			ev := msg.ToEvent()
			ev.Origin = s.id
			if err := s.mgr.bus.DeliverRemote(s.ctx, ev); err != nil {
				logger.Warn("远端事件投递失败",
					"session", log.TruncateID(s.id, 8), "type", ev.Type, "error", err)
			} else {
				resp.Success = true
				resp.EventID = ev.ID
			}
		}
	}

	if err := stream.WriteMsg(resp.Marshal()); err != nil {
		logger.Debug("写事件应答失败", "session", log.TruncateID(s.id, 8), "error", err)
	}
}

// ============================================================================
//                              回收
// ============================================================================

// reap 等待全部任务退出后回收会话
func (s *Session) reap() {
	err := s.group.Wait()

	s.setPhase(types.PhaseClosing)
	s.cancel()
	_ = s.changes.Close()
	_ = s.conn.Close()

	s.mgr.dropSession(s.id)
	s.mgr.stats.AddSessionClosed()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("会话异常关闭", "session", log.TruncateID(s.id, 8), "error", err)
	} else {
		logger.Info("会话关闭", "session", log.TruncateID(s.id, 8))
	}
	close(s.done)
}
