package domain

import (
	"context"
	"testing"
)

func TestSimplePubSub_PublishDeliversToAllSubscribers(t *testing.T) {
	ps := NewSimplePubSub()
	a := ps.Subscribe("t")
	b := ps.Subscribe("t")
	other := ps.Subscribe("other")

	ps.Publish(context.Background(), "t", Message{SessionID: "s", Data: []byte("x")})

	for name, ch := range map[string]<-chan Message{"a": a, "b": b} {
		select {
		case m := <-ch:
			if string(m.Data) != "x" || m.SessionID != "s" {
				t.Errorf("%s got %+v", name, m)
			}
		default:
			t.Errorf("%s did not receive", name)
		}
	}
	select {
	case m := <-other:
		t.Errorf("other topic received %+v", m)
	default:
	}
}

func TestSimplePubSub_UnsubscribeClosesChannel(t *testing.T) {
	ps := NewSimplePubSub()
	ch := ps.Subscribe("t")
	ps.Unsubscribe("t", ch)

	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}
	if n := ps.Subscribers("t"); n != 0 {
		t.Errorf("subscribers = %d, want 0", n)
	}
	// 購読者がいなくても Publish はブロックしない
	ps.Publish(context.Background(), "t", Message{})
}

func TestSimplePubSub_FullSubscriberDrops(t *testing.T) {
	ps := NewSimplePubSub()
	ch := ps.Subscribe("t")

	for range subscriberBuffer + 10 {
		ps.Publish(context.Background(), "t", Message{})
	}
	if len(ch) != subscriberBuffer {
		t.Errorf("buffered = %d, want %d", len(ch), subscriberBuffer)
	}
}
