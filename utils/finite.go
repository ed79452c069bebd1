package utils

import (
	"math"
)

// FiniteVec3 は3成分すべてが有限値かどうかを返します。
// ワイヤ境界で NaN / Inf を含む座標を弾くために使用します。
func FiniteVec3(x, y, z float64) bool {
	return isFinite(x) && isFinite(y) && isFinite(z)
}

// FiniteAll は与えられた値がすべて有限値かどうかを返します。
func FiniteAll(vs ...float64) bool {
	for _, v := range vs {
		if !isFinite(v) {
			return false
		}
	}
	return true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
