package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"

	"penbrawl/game"
	adapterwebsocket "penbrawl/server/adapter/websocket"
	"penbrawl/server/domain"
)

const defaultMessageBuffer = 256

var (
	ErrNotSubscribed     = errors.New("not subscribed")
	ErrAlreadySubscribed = errors.New("already subscribed")
	ErrConnectionClosed  = errors.New("connection closed")
)

// WSChannel はリレーサーバーへの WebSocket 接続を engine.Channel として扱います。
// 受信ゴルーチンは1本だけで、messages と presence の送り手はそれだけ。
type WSChannel struct {
	conn *websocket.Conn

	messages chan []byte
	presence chan []game.Member
	done     chan struct{}
	assigned chan struct{}

	id         domain.SessionID
	subscribed atomic.Bool
	seq        atomic.Uint32

	closeOnce sync.Once
	cancel    context.CancelFunc
}

// Dial はリレーに接続し、受信ゴルーチンを開始します。
func Dial(ctx context.Context, url string) (*WSChannel, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	conn.SetReadLimit(adapterwebsocket.ReadLimit)

	readCtx, cancel := context.WithCancel(context.Background())
	c := &WSChannel{
		conn:     conn,
		messages: make(chan []byte, defaultMessageBuffer),
		presence: make(chan []game.Member, 1),
		done:     make(chan struct{}),
		assigned: make(chan struct{}),
		cancel:   cancel,
	}
	go c.readLoop(readCtx)
	return c, nil
}

// Subscribe はセッションIDの割り当てを待ってから Join を送ります。
func (c *WSChannel) Subscribe(ctx context.Context, room string, meta game.Metadata) (string, error) {
	select {
	case <-c.assigned:
	case <-c.done:
		return "", ErrConnectionClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if !c.subscribed.CompareAndSwap(false, true) {
		return "", ErrAlreadySubscribed
	}

	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	data, err := domain.EncodeJoinMessage(c.id, c.nextSeq(), domain.JoinPayload{
		Room:     domain.RoomID(room),
		Metadata: rawMeta,
	})
	if err != nil {
		return "", err
	}
	if err := c.write(ctx, data); err != nil {
		c.subscribed.Store(false)
		return "", err
	}
	return c.id.String(), nil
}

func (c *WSChannel) Publish(ctx context.Context, data []byte) error {
	if !c.subscribed.Load() {
		return ErrNotSubscribed
	}
	return c.write(ctx, domain.EncodeBroadcastMessage(c.id, c.nextSeq(), data))
}

func (c *WSChannel) Messages() <-chan []byte {
	return c.messages
}

func (c *WSChannel) Presence() <-chan []game.Member {
	return c.presence
}

func (c *WSChannel) Done() <-chan struct{} {
	return c.done
}

// Unsubscribe は Leave を送って接続を閉じます。
func (c *WSChannel) Unsubscribe(ctx context.Context) error {
	var leaveErr error
	if c.subscribed.Swap(false) {
		leaveErr = c.write(ctx, domain.EncodeLeaveMessage(c.id))
	}
	return errors.Join(leaveErr, c.Close())
}

// Close は接続を閉じます。複数回呼んでもよい。
func (c *WSChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close(websocket.StatusNormalClosure, "bye")
		c.cancel()
	})
	return err
}

func (c *WSChannel) nextSeq() uint16 {
	return uint16(c.seq.Add(1))
}

func (c *WSChannel) write(ctx context.Context, data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	if err := c.conn.Write(ctx, websocket.MessageBinary, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (c *WSChannel) readLoop(ctx context.Context) {
	defer close(c.done)
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && ctx.Err() == nil {
				slog.WarnContext(ctx, "relay read failed", "session_id", c.id, "err", err)
			}
			return
		}
		if typ != websocket.MessageBinary {
			continue
		}
		frame, err := domain.ParseFrame(data)
		if err != nil {
			slog.DebugContext(ctx, "dropping malformed frame", "err", err)
			continue
		}
		c.handleFrame(ctx, frame)
	}
}

func (c *WSChannel) handleFrame(ctx context.Context, frame *domain.Frame) {
	switch frame.PayloadHeader.DataType {
	case domain.DataTypeBroadcast:
		select {
		case c.messages <- frame.Body:
		default:
			slog.WarnContext(ctx, "message buffer full, dropping", "session_id", c.id)
		}
	case domain.DataTypeControl:
		switch domain.ControlSubType(frame.PayloadHeader.SubType) {
		case domain.ControlSubTypeAssign:
			if c.id.IsEmpty() {
				c.id = frame.SessionID()
				close(c.assigned)
			}
		case domain.ControlSubTypePing:
			if err := c.write(ctx, domain.EncodePongMessage(c.id)); err != nil {
				slog.DebugContext(ctx, "pong failed", "err", err)
			}
		case domain.ControlSubTypePresence:
			members, err := domain.ParsePresencePayload(frame.Body)
			if err != nil {
				slog.WarnContext(ctx, "invalid presence", "err", err)
				return
			}
			c.pushPresence(toGameMembers(ctx, members))
		case domain.ControlSubTypeError:
			slog.WarnContext(ctx, "relay error", "session_id", c.id, "reason", string(frame.Body))
		}
	}
}

// pushPresence は最新のスナップショットだけを残します。
func (c *WSChannel) pushPresence(members []game.Member) {
	select {
	case <-c.presence:
	default:
	}
	c.presence <- members
}

// toGameMembers はリレーのメンバー一覧を変換します。壊れたメタデータは名前なしで扱う。
func toGameMembers(ctx context.Context, members []domain.Member) []game.Member {
	out := make([]game.Member, 0, len(members))
	for _, m := range members {
		var meta game.Metadata
		if len(m.Metadata) > 0 {
			if err := json.Unmarshal(m.Metadata, &meta); err != nil {
				slog.DebugContext(ctx, "dropping malformed member metadata", "member", m.ID, "err", err)
				meta = game.Metadata{}
			}
		}
		out = append(out, game.Member{ID: m.ID.String(), Metadata: meta})
	}
	return out
}
