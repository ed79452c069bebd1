package domain

import (
	"context"
	"sync"
)

// CloseCode は接続を閉じるときに相手へ伝える WebSocket のステータスコードです。
type CloseCode int32

const (
	CloseNormal          CloseCode = 1000
	CloseGoingAway       CloseCode = 1001
	ClosePolicyViolation CloseCode = 1008
)

// Connection はセッションに紐づいた Transport です。
// 読み書きが成功するたびにセッションの最終受信・送信時刻を更新する。
type Connection struct {
	session   *Session
	transport Transport
	closeOnce sync.Once
}

func NewConnection(session *Session, transport Transport) *Connection {
	return &Connection{
		session:   session,
		transport: transport,
	}
}

func (c *Connection) SessionID() SessionID {
	return c.session.ID()
}

func (c *Connection) Read(ctx context.Context) ([]byte, error) {
	data, err := c.transport.Read(ctx)
	if err != nil {
		return nil, err
	}
	c.session.TouchRead()
	return data, nil
}

func (c *Connection) Write(ctx context.Context, data []byte) error {
	if err := c.transport.Write(ctx, data); err != nil {
		return err
	}
	c.session.TouchWrite()
	return nil
}

// Close は最初の1回だけ transport を閉じます。
func (c *Connection) Close(code CloseCode, reason string) {
	c.closeOnce.Do(func() {
		_ = c.transport.Close(int32(code), reason)
	})
}
