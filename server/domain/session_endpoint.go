package domain

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrBackpressure は書き込みチャネルが満杯の場合に返されるエラーです。
	ErrBackpressure = errors.New("write channel is full, apply backpressure")
	// ErrInitializationFailed はセッションエンドポイントの初期化に失敗した場合に返されるエラーです。
	ErrInitializationFailed = errors.New("failed to initialize session endpoint")
)

// EndpointConfig はセッションの死活監視設定です。
type EndpointConfig struct {
	IdleTimeout  time.Duration
	PingInterval time.Duration
	WriteBuffer  int
}

func (c *EndpointConfig) setDefaults() {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 5 * time.Second
	}
	if c.WriteBuffer <= 0 {
		c.WriteBuffer = 1024
	}
}

// SessionEndpoint は1本の接続とリレーの pubsub をつなぎます。
type SessionEndpoint struct {
	ctx    context.Context
	cancel context.CancelFunc

	session     *Session
	connection  *Connection
	pubsub      PubSub
	roomManager RoomManager
	cfg         EndpointConfig

	// readLoop のゴルーチンだけが触る
	roomID RoomID

	ctrlCh  chan endpointEvent // 制御用チャネル
	writeCh chan []byte        // 書き込み用チャネル

	// lifecycle
	closed atomic.Bool
}

func NewSessionEndpoint(session *Session, connection *Connection, pubsub PubSub, roomManager RoomManager, cfg EndpointConfig) (*SessionEndpoint, error) {
	if session == nil || connection == nil || pubsub == nil || roomManager == nil {
		return nil, ErrInitializationFailed
	}
	cfg.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionEndpoint{
		ctx:         ctx,
		cancel:      cancel,
		session:     session,
		connection:  connection,
		pubsub:      pubsub,
		roomManager: roomManager,
		cfg:         cfg,
		ctrlCh:      make(chan endpointEvent, 16),
		writeCh:     make(chan []byte, cfg.WriteBuffer),
	}, nil
}

// Run は接続が閉じられるまでブロックします。
func (se *SessionEndpoint) Run() error {
	// 自分宛のメッセージを購読
	sessionTopic := SessionTopic(se.session.ID())
	msgCh := se.pubsub.Subscribe(sessionTopic)
	defer se.pubsub.Unsubscribe(sessionTopic, msgCh)

	// セッションID通知を最初に書き込む
	if err := se.Send(EncodeAssignMessage(se.session.ID())); err != nil {
		se.close()
		return err
	}

	eg, ctx := errgroup.WithContext(se.ctx)
	heartbeat := NewHeartbeatService(se.cfg.PingInterval, se.cfg.IdleTimeout, se.session, se.writeCh, func(reason IdleReason) {
		se.sendCtrlEvent(ctx, endpointEvent{kind: evClose, code: CloseGoingAway, err: errors.New(reason.String())})
	})
	eg.Go(func() error {
		se.ownerLoop(ctx)
		return nil
	})
	eg.Go(func() error {
		se.readLoop(ctx)
		return nil
	})
	eg.Go(func() error {
		se.writeLoop(ctx)
		return nil
	})
	eg.Go(func() error {
		se.subscribeLoop(ctx, msgCh)
		return nil
	})
	eg.Go(func() error {
		heartbeat.Run(ctx)
		return nil
	})

	return eg.Wait()
}

func (se *SessionEndpoint) Send(data []byte) error {
	select {
	case se.writeCh <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

func (se *SessionEndpoint) Close(ctx context.Context) {
	se.sendCtrlEvent(ctx, endpointEvent{kind: evClose})
}

func (se *SessionEndpoint) ForceClose() {
	se.close()
}

// ownerLoop は論理セッションの状態を監視し、必要に応じて接続の管理を行います。
func (se *SessionEndpoint) ownerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-se.ctrlCh:
			se.handleControlEvent(ctx, ev)
		}
	}
}

func (se *SessionEndpoint) readLoop(ctx context.Context) {
	defer se.leaveRoom(context.WithoutCancel(ctx))
	for {
		data, err := se.connection.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				se.sendCtrlEvent(ctx, endpointEvent{kind: evReadError, err: err})
			}
			return
		}
		se.handleData(ctx, data)
	}
}

func (se *SessionEndpoint) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-se.writeCh:
			err := se.connection.Write(ctx, data)
			if err != nil {
				se.sendCtrlEvent(ctx, endpointEvent{kind: evWriteError, err: err})
				return
			}
		}
	}
}

// subscribeLoop はpubsubからのメッセージをwriteChに転送します。
func (se *SessionEndpoint) subscribeLoop(ctx context.Context, msgCh <-chan Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			select {
			case se.writeCh <- msg.Data:
				// 送信成功
			default:
				slog.WarnContext(ctx, "subscribeLoop: writeCh full, message dropped", "sessionID", se.session.ID())
			}
		}
	}
}

func (se *SessionEndpoint) close() {
	se.closeWith(CloseNormal, "")
}

func (se *SessionEndpoint) closeWith(code CloseCode, reason string) {
	if !se.closed.CompareAndSwap(false, true) {
		return
	}
	se.cancel()
	se.session.Close()
	se.connection.Close(code, reason)
}

func (se *SessionEndpoint) handleData(ctx context.Context, data []byte) {
	frame, err := ParseFrame(data)
	if err != nil {
		slog.WarnContext(ctx, "failed to parse frame", "sessionID", se.session.ID(), "err", err)
		return
	}
	if frame.SessionID() != se.session.ID() {
		slog.WarnContext(ctx, "session ID mismatch", "expected", se.session.ID(), "got", frame.SessionID())
		return
	}

	switch frame.PayloadHeader.DataType {
	case DataTypeControl:
		se.handleControlMessage(ctx, ControlSubType(frame.PayloadHeader.SubType), frame, data)
	case DataTypeBroadcast:
		// データメッセージをroom topicに転送
		if se.roomID == "" {
			slog.WarnContext(ctx, "received data message before joining a room", "sessionID", se.session.ID())
			se.trySend(ctx, EncodeErrorMessage(se.session.ID(), "not in a room"))
			return
		}
		se.pubsub.Publish(ctx, RoomTopic(se.roomID), Message{
			SessionID: se.session.ID(),
			Data:      data,
		})
	default:
		slog.WarnContext(ctx, "unknown data type", "dataType", frame.PayloadHeader.DataType)
	}
}

func (se *SessionEndpoint) handleControlMessage(ctx context.Context, subType ControlSubType, frame *Frame, data []byte) {
	switch subType {
	case ControlSubTypeJoin:
		payload, err := ParseJoinPayload(frame.Body)
		if err != nil {
			slog.WarnContext(ctx, "failed to parse join message", "err", err)
			se.trySend(ctx, EncodeErrorMessage(se.session.ID(), err.Error()))
			return
		}
		roomID, err := se.roomManager.Join(ctx, payload.Room)
		if err != nil {
			slog.WarnContext(ctx, "failed to join room", "room", payload.Room, "err", err)
			se.trySend(ctx, EncodeErrorMessage(se.session.ID(), err.Error()))
			return
		}
		if se.roomID != "" && se.roomID != roomID {
			se.leaveRoom(ctx)
		}
		se.roomID = roomID
		slog.InfoContext(ctx, "session joined room", "sessionID", se.session.ID(), "roomID", se.roomID)
		// room ctrl topicにJoinメッセージをpublish（Room側でメンバー追加）
		se.pubsub.Publish(ctx, RoomCtrlTopic(se.roomID), Message{SessionID: se.session.ID(), Data: data})
	case ControlSubTypeLeave:
		if se.roomID == "" {
			slog.WarnContext(ctx, "session not in any room, cannot leave", "sessionID", se.session.ID())
			return
		}
		se.leaveRoom(ctx)
	case ControlSubTypePong:
		se.sendCtrlEvent(ctx, endpointEvent{kind: evPong})
	case ControlSubTypePing:
		se.trySend(ctx, EncodePongMessage(se.session.ID()))
	default:
		slog.WarnContext(ctx, "unexpected control message", "subType", subType)
	}
}

// leaveRoom は参加中のルームに離脱を通知します。切断時にも呼ばれる。
func (se *SessionEndpoint) leaveRoom(ctx context.Context) {
	if se.roomID == "" {
		return
	}
	se.pubsub.Publish(ctx, RoomCtrlTopic(se.roomID), Message{
		SessionID: se.session.ID(),
		Data:      EncodeLeaveMessage(se.session.ID()),
	})
	slog.InfoContext(ctx, "session left room", "sessionID", se.session.ID(), "roomID", se.roomID)
	se.roomID = ""
}

func (se *SessionEndpoint) trySend(ctx context.Context, data []byte) {
	if err := se.Send(data); err != nil {
		slog.WarnContext(ctx, "send failed", "sessionID", se.session.ID(), "err", err)
	}
}

// handleControlEvent は制御チャネルからのイベントを処理し論理セッションの状態を更新する唯一の関数です。
func (se *SessionEndpoint) handleControlEvent(ctx context.Context, ev endpointEvent) {
	switch ev.kind {
	case evClose:
		reason := ""
		if ev.err != nil {
			reason = ev.err.Error()
			slog.InfoContext(ctx, "closing session", "sessionID", se.session.ID(), "reason", reason)
		}
		se.closeWith(ev.closeCode(), reason)
	case evPong:
		se.session.TouchPong()
	case evReadError, evWriteError:
		slog.DebugContext(ctx, "connection error, closing", "sessionID", se.session.ID(), "err", ev.err)
		se.close()
	default:
		slog.WarnContext(ctx, "unknown endpoint event kind", "kind", ev.kind)
	}
}

func (se *SessionEndpoint) sendCtrlEvent(ctx context.Context, ev endpointEvent) {
	select {
	case se.ctrlCh <- ev:
	case <-ctx.Done():
	}
}
