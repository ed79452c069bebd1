package domain_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	domain "penbrawl/server/domain"
	"penbrawl/server/domain/mocks"
)

func TestConnection_ReadTouchesSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	s := domain.NewSession()
	conn := domain.NewConnection(s, tr)

	time.Sleep(30 * time.Millisecond)
	if _, reason := s.IsIdle(20 * time.Millisecond); reason != domain.IdleReasonNoRead {
		t.Fatalf("reason before read = %v, want %v", reason, domain.IdleReasonNoRead)
	}

	tr.EXPECT().Read(gomock.Any()).Return([]byte("x"), nil)
	if _, err := conn.Read(context.Background()); err != nil {
		t.Fatal(err)
	}
	// 受信はあったが pong はない
	if _, reason := s.IsIdle(20 * time.Millisecond); reason != domain.IdleReasonNoPong {
		t.Errorf("reason after read = %v, want %v", reason, domain.IdleReasonNoPong)
	}
}

func TestConnection_ErrorsPassThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	conn := domain.NewConnection(domain.NewSession(), tr)
	boom := errors.New("boom")

	tr.EXPECT().Read(gomock.Any()).Return(nil, boom)
	tr.EXPECT().Write(gomock.Any(), gomock.Any()).Return(boom)

	if _, err := conn.Read(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Read err = %v", err)
	}
	if err := conn.Write(context.Background(), []byte("x")); !errors.Is(err, boom) {
		t.Errorf("Write err = %v", err)
	}
}

func TestConnection_CloseOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	conn := domain.NewConnection(domain.NewSession(), tr)

	tr.EXPECT().Close(int32(domain.CloseGoingAway), "idle").Return(nil).Times(1)
	conn.Close(domain.CloseGoingAway, "idle")
	conn.Close(domain.CloseNormal, "")
}
