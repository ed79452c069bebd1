package engine

import "time"

// Clock はテストで差し替え可能な時刻源です。
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock は実時間の Clock です。
var SystemClock Clock = systemClock{}
