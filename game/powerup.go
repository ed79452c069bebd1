package game

import (
	"github.com/google/uuid"
)

// Rand は乱数源です。*rand.Rand (math/rand/v2) がそのまま満たす。
// 乱数は送信元ピアでのみ使い、受信側の畳み込みには持ち込まない。
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// RandomArenaPosition はアリーナ内の一様ランダムな位置を返します。
func RandomArenaPosition(rng Rand, y float64) Vec3 {
	return Vec3{
		X: (rng.Float64()*2 - 1) * ArenaHalfExtent,
		Y: y,
		Z: (rng.Float64()*2 - 1) * ArenaHalfExtent,
	}
}

// NewPowerUp はランダムな位置・種別のパワーアップを生成します。
func NewPowerUp(rng Rand, now int64) *PowerUp {
	return &PowerUp{
		ID:        uuid.NewString(),
		Type:      PowerUpTypes[rng.IntN(len(PowerUpTypes))],
		Position:  RandomArenaPosition(rng, PowerUpHeight),
		SpawnedAt: now,
		Duration:  PowerUpDuration.Milliseconds(),
	}
}

// NewEffect は now に取得した場合の効果を返します。
func NewEffect(t PowerUpType, now int64) ActiveEffect {
	return ActiveEffect{
		Type:       t,
		ExpiresAt:  now + EffectDuration.Milliseconds(),
		Multiplier: EffectMultiplier,
	}
}

// SpawnPowerUp はパワーアップを配置します。同じIDが既にあれば false。
func SpawnPowerUp(s *State, pu *PowerUp) bool {
	if _, ok := s.PowerUps[pu.ID]; ok {
		return false
	}
	c := *pu
	s.PowerUps[pu.ID] = &c
	return true
}

// Collect はパワーアップを取り除き、効果をプレイヤーに付与します。
// 除去と付与はまとめて行い、どちらか片方だけが起きることはない。
// パワーアップかプレイヤーが存在しなければ何もせず false を返す。
func Collect(s *State, playerID, powerUpID string, effect ActiveEffect) (PowerUp, bool) {
	pu, ok := s.PowerUps[powerUpID]
	if !ok {
		return PowerUp{}, false
	}
	p, ok := s.Players[playerID]
	if !ok {
		return PowerUp{}, false
	}
	delete(s.PowerUps, powerUpID)
	p.Effects = append(p.Effects, effect)
	if effect.Type == PowerUpHealth {
		p.Heal(HealthPickupAmount)
	}
	return *pu, true
}

// NearestPowerUp は pos から radius 以内で最も近いパワーアップを返します。
func NearestPowerUp(s *State, pos Vec3, radius float64) (*PowerUp, bool) {
	var nearest *PowerUp
	best := radius
	for _, pu := range s.PowerUps {
		d := pu.Position.Distance(pos)
		if d > best {
			continue
		}
		if nearest == nil || d < best || (d == best && pu.ID < nearest.ID) {
			nearest = pu
			best = d
		}
	}
	return nearest, nearest != nil
}

// SweepResult は期限切れ掃除の結果です。
type SweepResult struct {
	ExpiredPowerUps []PowerUp
	ExpiredEffects  int
}

// Sweep は now 時点で期限切れのパワーアップと効果を取り除きます。
// 各ピアがローカル時刻だけで独立に実行するので送信は不要。
func Sweep(s *State, now int64) SweepResult {
	var res SweepResult
	for id, pu := range s.PowerUps {
		if now >= pu.ExpiresAt() {
			res.ExpiredPowerUps = append(res.ExpiredPowerUps, *pu)
			delete(s.PowerUps, id)
		}
	}
	for _, p := range s.Players {
		kept := p.Effects[:0]
		for _, e := range p.Effects {
			if now >= e.ExpiresAt {
				res.ExpiredEffects++
				continue
			}
			kept = append(kept, e)
		}
		p.Effects = kept
	}
	return res
}
