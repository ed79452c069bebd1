package engine

import (
	"context"

	"penbrawl/game"
)

//go:generate go tool mockgen -destination=./mocks/channel_mock.go -package=mocks . Channel

// Channel はルーム単位のブロードキャストとプレゼンスを提供するトランスポートです。
// 配送は at-most-once で順序保証もない。自分の送信が戻ってくるかは実装次第。
type Channel interface {
	// Subscribe はルームに参加し、トランスポートが割り当てた自分のIDを返します。
	Subscribe(ctx context.Context, room string, meta game.Metadata) (string, error)
	Publish(ctx context.Context, data []byte) error
	// Messages は受信したゲームメッセージのバイト列を流します。
	Messages() <-chan []byte
	// Presence はメンバー構成が変わるたびに全体スナップショットを流します。
	Presence() <-chan []game.Member
	// Done は接続が失われたときに閉じられます。
	Done() <-chan struct{}
	Unsubscribe(ctx context.Context) error
}
