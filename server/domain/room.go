package domain

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type RoomID string

const (
	DefaultRoomID RoomID = "default"
	maxRoomIDLen         = 64
)

var (
	ErrRoomBusy      = errors.New("room control channel is full")
	ErrInvalidRoomID = errors.New("invalid room id")
)

func (id RoomID) Validate() error {
	if len(id) > maxRoomIDLen || strings.ContainsAny(string(id), ":\x00") {
		return ErrInvalidRoomID
	}
	return nil
}

// Room はトピック単位のファンアウトです。ゲームの中身は一切解釈しない。
//
// メンバー表は Run のゴルーチンだけが触る。join/leave は ctrl トピック、
// ゲームメッセージは room トピックから届き、tick ごとにまとめて処理する。
type Room struct {
	ID      RoomID
	members map[SessionID]json.RawMessage

	pubsub PubSub
	tracer trace.Tracer
	ctrlCh <-chan Message
	msgCh  <-chan Message

	tickInterval time.Duration
}

// NewRoom は購読を済ませた Room を返します。Run より前に届いた join も取りこぼさない。
func NewRoom(id RoomID, pubsub PubSub, tickInterval time.Duration) *Room {
	if tickInterval <= 0 {
		tickInterval = time.Second / 60
	}
	return &Room{
		ID:           id,
		members:      make(map[SessionID]json.RawMessage),
		pubsub:       pubsub,
		tracer:       otel.Tracer("penbrawl/relay"),
		ctrlCh:       pubsub.Subscribe(RoomCtrlTopic(id)),
		msgCh:        pubsub.Subscribe(RoomTopic(id)),
		tickInterval: tickInterval,
	}
}

func (r *Room) Run(ctx context.Context) error {
	defer r.pubsub.Unsubscribe(RoomTopic(r.ID), r.msgCh)
	defer r.pubsub.Unsubscribe(RoomCtrlTopic(r.ID), r.ctrlCh)

	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// 制御メッセージを処理（join/leave）
			changed := false
		CTRL_LOOP:
			for {
				select {
				case ctrl := <-r.ctrlCh:
					if r.handleControlMessage(ctx, ctrl) {
						changed = true
					}
				default:
					break CTRL_LOOP
				}
			}
			if changed {
				r.broadcastPresence(ctx)
			}
			// 受信メッセージを送信元以外へ転送
		RECEIVE_LOOP:
			for {
				select {
				case msg := <-r.msgCh:
					r.fanOut(ctx, msg)
				default:
					break RECEIVE_LOOP
				}
			}
		}
	}
}

// handleControlMessage はjoin/leave制御メッセージを処理し、メンバー表が変わったら true を返します。
func (r *Room) handleControlMessage(ctx context.Context, msg Message) bool {
	frame, err := ParseFrame(msg.Data)
	if err != nil {
		slog.WarnContext(ctx, "room: bad control frame", "room", r.ID, "err", err)
		return false
	}
	switch {
	case frame.IsControl(ControlSubTypeJoin):
		payload, err := ParseJoinPayload(frame.Body)
		if err != nil {
			slog.WarnContext(ctx, "room: bad join payload", "room", r.ID, "err", err)
			return false
		}
		r.members[msg.SessionID] = payload.Metadata
		slog.InfoContext(ctx, "room: member joined", "room", r.ID, "sessionID", msg.SessionID, "members", len(r.members))
		return true
	case frame.IsControl(ControlSubTypeLeave):
		if _, ok := r.members[msg.SessionID]; !ok {
			return false
		}
		delete(r.members, msg.SessionID)
		slog.InfoContext(ctx, "room: member left", "room", r.ID, "sessionID", msg.SessionID, "members", len(r.members))
		return true
	default:
		return false
	}
}

// Members は ID 順のメンバー一覧を返します。
func (r *Room) Members() []Member {
	out := make([]Member, 0, len(r.members))
	for id, meta := range r.members {
		out = append(out, Member{ID: id, Metadata: meta})
	}
	slices.SortFunc(out, func(a, b Member) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return out
}

func (r *Room) broadcastPresence(ctx context.Context) {
	data, err := EncodePresenceMessage(r.Members())
	if err != nil {
		slog.ErrorContext(ctx, "room: encode presence failed", "room", r.ID, "err", err)
		return
	}
	for id := range r.members {
		r.pubsub.Publish(ctx, SessionTopic(id), Message{Data: data})
	}
}

// fanOut は送信元を除く全メンバーへ転送します。メンバー以外からのメッセージは捨てる。
func (r *Room) fanOut(ctx context.Context, msg Message) {
	if _, ok := r.members[msg.SessionID]; !ok {
		slog.DebugContext(ctx, "room: message from non-member dropped", "room", r.ID, "sessionID", msg.SessionID)
		return
	}
	ctx, span := r.tracer.Start(ctx, "room.fanout", trace.WithAttributes(
		attribute.String("room", string(r.ID)),
		attribute.Int("recipients", len(r.members)-1),
		attribute.Int("bytes", len(msg.Data)),
	))
	defer span.End()

	for id := range r.members {
		if id == msg.SessionID {
			continue
		}
		r.pubsub.Publish(ctx, SessionTopic(id), msg)
	}
}
