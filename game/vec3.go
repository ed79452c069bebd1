package game

import (
	"math"

	"penbrawl/utils"
)

// Vec3 は3次元のワールド座標（または回転のオイラー角）です。
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Distance は2点間のユークリッド距離を返します。
func (v Vec3) Distance(o Vec3) float64 {
	d := v.Sub(o)
	return math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
}

// IsFinite は NaN / Inf を含まないかを返します。
func (v Vec3) IsFinite() bool {
	return utils.FiniteVec3(v.X, v.Y, v.Z)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
