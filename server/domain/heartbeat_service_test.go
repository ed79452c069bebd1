package domain_test

import (
	"context"
	"testing"
	"time"

	domain "penbrawl/server/domain"
)

func runHeartbeat(ctx context.Context, hb *domain.HeartbeatService) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		hb.Run(ctx)
		close(done)
	}()
	return done
}

func TestHeartbeatService_SendsPingToWriteCh(t *testing.T) {
	session := domain.NewSession()
	writeCh := make(chan []byte, 16)
	hb := domain.NewHeartbeatService(20*time.Millisecond, time.Hour, session, writeCh, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runHeartbeat(ctx, hb)

	select {
	case msg := <-writeCh:
		frame, err := domain.ParseFrame(msg)
		if err != nil {
			t.Fatalf("ParseFrame: %v", err)
		}
		if !frame.IsControl(domain.ControlSubTypePing) {
			t.Errorf("got %+v, want ping", frame.PayloadHeader)
		}
		if frame.SessionID() != session.ID() {
			t.Errorf("session id = %s, want %s", frame.SessionID(), session.ID())
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ping message")
	}
}

func TestHeartbeatService_StopsOnContextCancel(t *testing.T) {
	hb := domain.NewHeartbeatService(20*time.Millisecond, time.Hour, domain.NewSession(), make(chan []byte, 16), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := runHeartbeat(ctx, hb)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("HeartbeatService did not stop after context cancel")
	}
}

func TestHeartbeatService_DropsWhenWriteChFull(t *testing.T) {
	// 受け手のいない unbuffered チャネルは常に満杯扱い
	hb := domain.NewHeartbeatService(10*time.Millisecond, time.Hour, domain.NewSession(), make(chan []byte), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	select {
	case <-runHeartbeat(ctx, hb):
	case <-time.After(time.Second):
		t.Fatal("HeartbeatService blocked on a full writeCh")
	}
	if hb.Dropped() == 0 {
		t.Error("expected dropped pings")
	}
}

func TestHeartbeatService_ReportsIdle(t *testing.T) {
	reasons := make(chan domain.IdleReason, 1)
	hb := domain.NewHeartbeatService(time.Hour, 20*time.Millisecond, domain.NewSession(), make(chan []byte, 1), func(r domain.IdleReason) {
		reasons <- r
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runHeartbeat(ctx, hb)

	select {
	case r := <-reasons:
		if r != domain.IdleReasonNoRead {
			t.Errorf("reason = %v, want %v", r, domain.IdleReasonNoRead)
		}
	case <-time.After(time.Second):
		t.Fatal("idle session not reported")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after reporting idle")
	}
}

func TestHeartbeatService_ClosedSessionStopsQuietly(t *testing.T) {
	session := domain.NewSession()
	session.Close()
	called := make(chan struct{}, 1)
	hb := domain.NewHeartbeatService(time.Hour, 20*time.Millisecond, session, make(chan []byte, 1), func(domain.IdleReason) {
		called <- struct{}{}
	})

	select {
	case <-runHeartbeat(context.Background(), hb):
	case <-time.After(time.Second):
		t.Fatal("Run did not return for a closed session")
	}
	select {
	case <-called:
		t.Error("onIdle should not fire for a closed session")
	default:
	}
}
