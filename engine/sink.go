package engine

import "penbrawl/game"

// Sink は音やエフェクトなどの副作用の出口です。
// ループのゴルーチンから同期的に呼ばれるので、重い処理をしてはいけない。
type Sink interface {
	StrokeLanded(attackerID string, hitPlayers []string, damage int)
	PowerUpCollected(playerID string, t game.PowerUpType)
	PlayerEliminated(victimID, attackerID string)
}

// NopSink は何もしない Sink です。
type NopSink struct{}

func (NopSink) StrokeLanded(string, []string, int)        {}
func (NopSink) PowerUpCollected(string, game.PowerUpType) {}
func (NopSink) PlayerEliminated(string, string)           {}
