package domain

import (
	"context"
	"errors"
)

// ErrInvalidFrameKind はバイナリ以外のフレームを受け取った場合のエラーです。
var ErrInvalidFrameKind = errors.New("transport: binary frame expected")

//go:generate go tool mockgen -destination=./mocks/transport_mock.go -package=mocks . Transport

// Transport は物理的な双方向ストリームです。
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close(code int32, reason string) error
}
