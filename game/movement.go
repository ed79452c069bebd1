package game

// Keys は現在押下中の方向キーです。
type Keys struct {
	Left    bool `json:"left"`
	Right   bool `json:"right"`
	Forward bool `json:"forward"`
	Back    bool `json:"back"`
}

func (k Keys) Any() bool {
	return k.Left || k.Right || k.Forward || k.Back
}

// Move は押下キーから次の候補位置を計算し、各軸をアリーナ範囲にクランプします。
// 位置が変化しなかった場合は false を返すので、呼び出し側は送信を省略できる。
func Move(pos Vec3, keys Keys, step float64) (Vec3, bool) {
	next := pos
	if keys.Left {
		next.X -= step
	}
	if keys.Right {
		next.X += step
	}
	if keys.Forward {
		next.Z -= step
	}
	if keys.Back {
		next.Z += step
	}
	next = ClampToArena(next)
	return next, next != pos
}

// ClampToArena は X/Z をアリーナの半径内に収めます。Y はそのまま。
func ClampToArena(v Vec3) Vec3 {
	v.X = clamp(v.X, -ArenaHalfExtent, ArenaHalfExtent)
	v.Z = clamp(v.Z, -ArenaHalfExtent, ArenaHalfExtent)
	return v
}

// StepFor は移動速度効果を加味した1tickの移動量を返します。
func StepFor(p *Player, now int64) float64 {
	return MoveStep * p.Multiplier(PowerUpSpeed, now)
}
