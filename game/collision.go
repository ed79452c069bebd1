package game

import (
	"math"
	"sort"
)

// StrikeOptions は当たり判定のパラメータです。
type StrikeOptions struct {
	Radius         float64
	DamagePerPoint int
	DamageCap      int
	// DamageMultiplier は上限適用後のダメージに掛ける倍率。0 は 1 とみなす。
	DamageMultiplier float64
	// Now は盾効果の判定に使う時刻（unix ms）。
	Now int64
}

// DefaultStrikeOptions は観測値どおりの判定パラメータです。
func DefaultStrikeOptions(now int64) StrikeOptions {
	return StrikeOptions{
		Radius:           HitRadius,
		DamagePerPoint:   DamagePerPoint,
		DamageCap:        DamageCap,
		DamageMultiplier: 1,
		Now:              now,
	}
}

// StrikeOptionsFor は攻撃者の効果（damage / multishot）を反映した判定パラメータを返します。
func StrikeOptionsFor(attacker *Player, now int64) StrikeOptions {
	opts := DefaultStrikeOptions(now)
	if attacker == nil {
		return opts
	}
	opts.DamageMultiplier = attacker.Multiplier(PowerUpDamage, now)
	opts.Radius *= attacker.Multiplier(PowerUpMultishot, now)
	return opts
}

// Strike は1本のストロークの判定結果です。
type Strike struct {
	HitPlayers []string
	Damage     int
}

// StrokeDamage は点数に応じたダメージを返します: min(n * perPoint, cap) * multiplier。
func StrokeDamage(points int, opts StrikeOptions) int {
	base := points * opts.DamagePerPoint
	if base > opts.DamageCap {
		base = opts.DamageCap
	}
	m := opts.DamageMultiplier
	if m <= 0 {
		m = 1
	}
	return int(math.Round(float64(base) * m))
}

// ResolveStroke は攻撃者が描いた軌跡に触れた相手を求めます。
// 各プレイヤーは何点当たっても1回だけ記録される。点が2未満なら何も当たらない。
// 結果のIDは全ピアで同じ順序になるようソートする。
func ResolveStroke(points []Vec3, attackerID string, players map[string]*Player, opts StrikeOptions) Strike {
	if len(points) < MinStrokePoints {
		return Strike{}
	}

	hits := make([]string, 0)
	for id, p := range players {
		if id == attackerID || !p.IsAlive() {
			continue
		}
		if _, shielded := p.Effect(PowerUpShield, opts.Now); shielded {
			continue
		}
		for _, pt := range points {
			if pt.Distance(p.Position) <= opts.Radius {
				hits = append(hits, id)
				break
			}
		}
	}
	sort.Strings(hits)

	return Strike{
		HitPlayers: hits,
		Damage:     StrokeDamage(len(points), opts),
	}
}
