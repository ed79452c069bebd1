package domain

import (
	"context"
	"log/slog"
	"sync"
)

//go:generate go tool mockgen -destination=./mocks/pubsub_mock.go -package=mocks . PubSub

// Topic は配送先の名前です。 "session:<id>" / "room:<id>" / "room:<id>:ctrl"
type Topic string

func SessionTopic(id SessionID) Topic { return Topic("session:" + id.String()) }
func RoomTopic(id RoomID) Topic       { return Topic("room:" + string(id)) }
func RoomCtrlTopic(id RoomID) Topic   { return Topic("room:" + string(id) + ":ctrl") }

// Message は pubsub 上を流れる1フレームです。SessionID は送信元。
type Message struct {
	SessionID SessionID
	Data      []byte
}

// PubSub はプロセス内のトピック配送です。Publish はブロックしない。
type PubSub interface {
	Subscribe(topic Topic) <-chan Message
	Unsubscribe(topic Topic, ch <-chan Message)
	Publish(ctx context.Context, topic Topic, msg Message)
}

const subscriberBuffer = 256

type SimplePubSub struct {
	mu   sync.RWMutex
	subs map[Topic][]chan Message
}

func NewSimplePubSub() *SimplePubSub {
	return &SimplePubSub{subs: make(map[Topic][]chan Message)}
}

func (ps *SimplePubSub) Subscribe(topic Topic) <-chan Message {
	ch := make(chan Message, subscriberBuffer)
	ps.mu.Lock()
	ps.subs[topic] = append(ps.subs[topic], ch)
	ps.mu.Unlock()
	return ch
}

// Unsubscribe は購読を解除してチャネルを閉じます。
func (ps *SimplePubSub) Unsubscribe(topic Topic, ch <-chan Message) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	subs := ps.subs[topic]
	for i, c := range subs {
		if c == ch {
			close(c)
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(ps.subs, topic)
		return
	}
	ps.subs[topic] = subs
}

// Publish は購読者のバッファが満杯ならそのメッセージを捨てる。
func (ps *SimplePubSub) Publish(ctx context.Context, topic Topic, msg Message) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for _, ch := range ps.subs[topic] {
		select {
		case ch <- msg:
		default:
			slog.WarnContext(ctx, "pubsub: subscriber full, message dropped", "topic", topic, "from", msg.SessionID)
		}
	}
}

// Subscribers はトピックの購読者数を返します。
func (ps *SimplePubSub) Subscribers(topic Topic) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subs[topic])
}
