package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

//go:generate go tool mockgen -destination=./mocks/room_manager_mock.go -package=mocks . RoomManager

var ErrTooManyRooms = errors.New("too many rooms")

// RoomManager はルームの払い出しを行います。
type RoomManager interface {
	// Join は id のルームを用意して実際のルームIDを返します。空なら既定のルーム。
	Join(ctx context.Context, id RoomID) (RoomID, error)
}

type RoomManagerConfig struct {
	DefaultRoom  RoomID
	TickInterval time.Duration
	MaxRooms     int
}

// SimpleRoomManager は要求されたルームを必要に応じて作成し、root ctx の間動かし続けます。
type SimpleRoomManager struct {
	ctx    context.Context
	pubsub PubSub
	cfg    RoomManagerConfig

	mu    sync.Mutex
	rooms map[RoomID]*Room
	wg    sync.WaitGroup
}

func NewSimpleRoomManager(ctx context.Context, pubsub PubSub, cfg RoomManagerConfig) *SimpleRoomManager {
	if cfg.DefaultRoom == "" {
		cfg.DefaultRoom = DefaultRoomID
	}
	if cfg.MaxRooms <= 0 {
		cfg.MaxRooms = 1024
	}
	return &SimpleRoomManager{
		ctx:    ctx,
		pubsub: pubsub,
		cfg:    cfg,
		rooms:  make(map[RoomID]*Room),
	}
}

func (m *SimpleRoomManager) Join(ctx context.Context, id RoomID) (RoomID, error) {
	if id == "" {
		id = m.cfg.DefaultRoom
	}
	if err := id.Validate(); err != nil {
		return "", fmt.Errorf("%w: %q", err, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[id]; ok {
		return id, nil
	}
	if len(m.rooms) >= m.cfg.MaxRooms {
		return "", ErrTooManyRooms
	}

	room := NewRoom(id, m.pubsub, m.cfg.TickInterval)
	m.rooms[id] = room
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := room.Run(m.ctx); err != nil {
			slog.ErrorContext(m.ctx, "room error", "room", id, "err", err)
		}
	}()
	slog.InfoContext(ctx, "room created", "room", id)
	return id, nil
}

// Rooms は稼働中のルーム数です。
func (m *SimpleRoomManager) Rooms() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// Wait は root ctx の終了後、全ルームの停止を待ちます。
func (m *SimpleRoomManager) Wait() {
	m.wg.Wait()
}
