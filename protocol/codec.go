package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrEmptyMessage    = errors.New("protocol: empty message")
	ErrUnknownType     = errors.New("protocol: unknown message type")
	ErrMissingPlayerID = errors.New("protocol: missing player id")
	ErrTypeMismatch    = errors.New("protocol: message type does not match payload")
)

// envelope はワイヤ上の形: { type, playerId, data, timestamp, seq }
type envelope struct {
	Type      Type            `json:"type"`
	PlayerID  string          `json:"playerId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	Seq       uint64          `json:"seq,omitempty"`
}

// Encode は Message を JSON にエンコードします。
func Encode(m Message) ([]byte, error) {
	if m.Payload == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrInvalidPayload)
	}
	if m.Type != m.Payload.Type() {
		return nil, fmt.Errorf("%w: %s vs %s", ErrTypeMismatch, m.Type, m.Payload.Type())
	}
	if m.PlayerID == "" {
		return nil, ErrMissingPlayerID
	}
	data, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Type, err)
	}
	return json.Marshal(envelope{
		Type:      m.Type,
		PlayerID:  m.PlayerID,
		Data:      data,
		Timestamp: m.Timestamp,
		Seq:       m.Seq,
	})
}

// Decode は JSON から Message を復元し、境界でペイロードを検証します。
// 未知の種別は ErrUnknownType を返すので、呼び出し側は無視してよい。
func Decode(b []byte) (Message, error) {
	if len(b) == 0 {
		return Message{}, ErrEmptyMessage
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Message{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.PlayerID == "" {
		return Message{}, ErrMissingPlayerID
	}

	var (
		payload Payload
		err     error
	)
	switch env.Type {
	case TypePlayerMove:
		payload, err = decodePayload[Move](env.Data)
	case TypePenStroke:
		payload, err = decodePayload[PenStroke](env.Data)
	case TypePlayerAttack:
		payload, err = decodePayload[Attack](env.Data)
	case TypePowerUpSpawn:
		payload, err = decodePayload[PowerUpSpawn](env.Data)
	case TypePowerUpCollect:
		payload, err = decodePayload[PowerUpCollect](env.Data)
	case TypePlayerJoin:
		payload, err = decodePayload[Join](env.Data)
	case TypePlayerLeave:
		payload, err = decodePayload[Leave](env.Data)
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if err != nil {
		return Message{}, err
	}

	return Message{
		Type:      env.Type,
		PlayerID:  env.PlayerID,
		Timestamp: env.Timestamp,
		Seq:       env.Seq,
		Payload:   payload,
	}, nil
}

func decodePayload[T Payload](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &out); err != nil {
			return out, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, out.Type(), err)
		}
	}
	if err := out.validate(); err != nil {
		return out, err
	}
	return out, nil
}
