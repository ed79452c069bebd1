package protocol

import (
	"errors"
	"fmt"

	"penbrawl/game"
	"penbrawl/utils"
)

// Type はゲームメッセージの種別です。
type Type string

const (
	TypePlayerMove     Type = "player_move"
	TypePenStroke      Type = "pen_stroke"
	TypePlayerAttack   Type = "player_attack"
	TypePowerUpSpawn   Type = "power_up_spawn"
	TypePowerUpCollect Type = "power_up_collect"
	TypePlayerJoin     Type = "player_join"
	TypePlayerLeave    Type = "player_leave"
)

// MaxStrokePoints は1メッセージに載せられるストロークの点数上限です。
const MaxStrokePoints = 1024

// IsDelta は差分適用型（重複適用してはいけない）メッセージかどうかを返します。
func (t Type) IsDelta() bool {
	return t == TypePenStroke || t == TypePowerUpCollect
}

var ErrInvalidPayload = errors.New("protocol: invalid payload")

// Payload は種別ごとに固定されたペイロードです。このパッケージの型だけが実装できる。
type Payload interface {
	Type() Type
	validate() error
}

// Move は player_move のペイロードです。
type Move struct {
	Position game.Vec3 `json:"position"`
	Rotation game.Vec3 `json:"rotation"`
}

// PenStroke は pen_stroke のペイロードです。
// 当たり判定は送信元で一度だけ行い、受信側は HitPlayers と Damage をそのまま適用する。
type PenStroke struct {
	Stroke     game.Stroke `json:"stroke"`
	HitPlayers []string    `json:"hitPlayers"`
	Damage     int         `json:"damage"`
}

// Attack は player_attack のペイロードです。
type Attack struct {
	Attacking bool `json:"attacking"`
}

// PowerUpSpawn は power_up_spawn のペイロードです。
type PowerUpSpawn struct {
	PowerUp game.PowerUp `json:"powerUp"`
}

// PowerUpCollect は power_up_collect のペイロードです。
type PowerUpCollect struct {
	PowerUpID string            `json:"powerUpId"`
	Effect    game.ActiveEffect `json:"effect"`
}

// Join は player_join のペイロードです。
type Join struct {
	Name     string    `json:"name"`
	Color    string    `json:"color"`
	Position game.Vec3 `json:"position"`
}

// Leave は player_leave のペイロードです。
type Leave struct{}

func (Move) Type() Type           { return TypePlayerMove }
func (PenStroke) Type() Type      { return TypePenStroke }
func (Attack) Type() Type         { return TypePlayerAttack }
func (PowerUpSpawn) Type() Type   { return TypePowerUpSpawn }
func (PowerUpCollect) Type() Type { return TypePowerUpCollect }
func (Join) Type() Type           { return TypePlayerJoin }
func (Leave) Type() Type          { return TypePlayerLeave }

func (m Move) validate() error {
	if !m.Position.IsFinite() || !m.Rotation.IsFinite() {
		return fmt.Errorf("%w: non-finite position or rotation", ErrInvalidPayload)
	}
	return nil
}

func (p PenStroke) validate() error {
	n := len(p.Stroke.Points)
	if n == 0 || n > MaxStrokePoints {
		return fmt.Errorf("%w: stroke has %d points", ErrInvalidPayload, n)
	}
	for _, pt := range p.Stroke.Points {
		if !pt.IsFinite() {
			return fmt.Errorf("%w: non-finite stroke point", ErrInvalidPayload)
		}
	}
	if !utils.FiniteAll(p.Stroke.Thickness) || p.Stroke.Thickness < 0 {
		return fmt.Errorf("%w: bad stroke thickness", ErrInvalidPayload)
	}
	if p.Damage < 0 {
		return fmt.Errorf("%w: negative damage %d", ErrInvalidPayload, p.Damage)
	}
	for _, id := range p.HitPlayers {
		if id == "" {
			return fmt.Errorf("%w: empty hit player id", ErrInvalidPayload)
		}
	}
	return nil
}

func (Attack) validate() error { return nil }

func (p PowerUpSpawn) validate() error {
	pu := p.PowerUp
	if pu.ID == "" {
		return fmt.Errorf("%w: empty power-up id", ErrInvalidPayload)
	}
	if !pu.Type.Valid() {
		return fmt.Errorf("%w: unknown power-up type %q", ErrInvalidPayload, pu.Type)
	}
	if !pu.Position.IsFinite() {
		return fmt.Errorf("%w: non-finite power-up position", ErrInvalidPayload)
	}
	if pu.Duration <= 0 {
		return fmt.Errorf("%w: non-positive duration %d", ErrInvalidPayload, pu.Duration)
	}
	return nil
}

func (p PowerUpCollect) validate() error {
	if p.PowerUpID == "" {
		return fmt.Errorf("%w: empty power-up id", ErrInvalidPayload)
	}
	if !p.Effect.Type.Valid() {
		return fmt.Errorf("%w: unknown effect type %q", ErrInvalidPayload, p.Effect.Type)
	}
	if !utils.FiniteAll(p.Effect.Multiplier) || p.Effect.Multiplier <= 0 {
		return fmt.Errorf("%w: bad effect multiplier", ErrInvalidPayload)
	}
	return nil
}

func (j Join) validate() error {
	if !j.Position.IsFinite() {
		return fmt.Errorf("%w: non-finite join position", ErrInvalidPayload)
	}
	return nil
}

func (Leave) validate() error { return nil }

// Message は1つのゲームメッセージです。
//
//	Seq は送信者ごとの単調増加番号。0 は番号なしとして扱う。
type Message struct {
	Type      Type
	PlayerID  string
	Timestamp int64 // unix ms
	Seq       uint64
	Payload   Payload
}

// New はペイロードの種別をそのまま Type に設定した Message を返します。
func New(playerID string, timestamp int64, seq uint64, payload Payload) Message {
	return Message{
		Type:      payload.Type(),
		PlayerID:  playerID,
		Timestamp: timestamp,
		Seq:       seq,
		Payload:   payload,
	}
}
