package domain

import (
	"sync/atomic"
	"time"
)

// Session は論理セッションです。接続の生存状況を時刻で記録する。
type Session struct {
	id        SessionID
	createdAt time.Time

	lastRead  atomic.Int64 // unix nano
	lastWrite atomic.Int64
	lastPong  atomic.Int64

	closed atomic.Bool
}

func NewSession() *Session {
	now := time.Now()
	s := &Session{id: NewSessionID(), createdAt: now}
	s.lastRead.Store(now.UnixNano())
	s.lastWrite.Store(now.UnixNano())
	s.lastPong.Store(now.UnixNano())
	return s
}

func (s *Session) ID() SessionID {
	return s.id
}

func (s *Session) TouchRead()  { s.lastRead.Store(time.Now().UnixNano()) }
func (s *Session) TouchWrite() { s.lastWrite.Store(time.Now().UnixNano()) }
func (s *Session) TouchPong()  { s.lastPong.Store(time.Now().UnixNano()) }

// IsIdle は timeout の間に受信も pong もなければアイドルと判定します。
func (s *Session) IsIdle(timeout time.Duration) (bool, IdleReason) {
	if s.closed.Load() {
		return true, IdleReasonClosed
	}
	now := time.Now().UnixNano()
	if now-s.lastPong.Load() < int64(timeout) {
		return false, IdleReasonNone
	}
	if now-s.lastRead.Load() >= int64(timeout) {
		return true, IdleReasonNoRead
	}
	return true, IdleReasonNoPong
}

func (s *Session) Close() {
	s.closed.Store(true)
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}
