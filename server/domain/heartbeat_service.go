package domain

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// HeartbeatService はセッションの死活監視を行います。
type HeartbeatService struct {
	pingInterval time.Duration
	idleTimeout  time.Duration
	session      *Session
	writeCh      chan<- []byte
	onIdle       func(IdleReason)

	dropped atomic.Uint64
}

// NewHeartbeatService は新しいHeartbeatServiceを生成します。
// onIdle はアイドル判定時に1回だけ呼ばれ、その後 Run は戻る。
func NewHeartbeatService(pingInterval, idleTimeout time.Duration, session *Session, writeCh chan<- []byte, onIdle func(IdleReason)) *HeartbeatService {
	if onIdle == nil {
		onIdle = func(IdleReason) {}
	}
	return &HeartbeatService{
		pingInterval: pingInterval,
		idleTimeout:  idleTimeout,
		session:      session,
		writeCh:      writeCh,
		onIdle:       onIdle,
	}
}

// Dropped は書き込みキューが満杯で捨てた ping の数です。
func (h *HeartbeatService) Dropped() uint64 {
	return h.dropped.Load()
}

// Run は ctx がキャンセルされるか、セッションがアイドル・クローズになるまで動きます。
// アイドル判定は idleTimeout/4 ごと、ping は pingInterval ごと。
func (h *HeartbeatService) Run(ctx context.Context) {
	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()
	check := time.NewTicker(max(h.idleTimeout/4, time.Millisecond))
	defer check.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-check.C:
			if idle, reason := h.session.IsIdle(h.idleTimeout); idle {
				if reason != IdleReasonClosed {
					slog.InfoContext(ctx, "heartbeat: session idle", "sessionID", h.session.ID(), "reason", reason)
					h.onIdle(reason)
				}
				return
			}
		case <-ping.C:
			if h.session.IsClosed() {
				return
			}
			select {
			case h.writeCh <- EncodePingMessage(h.session.ID()):
			default:
				h.dropped.Add(1)
				slog.WarnContext(ctx, "heartbeat: writeCh full, ping dropped", "sessionID", h.session.ID())
			}
		}
	}
}
