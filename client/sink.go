package client

import (
	"log/slog"

	"penbrawl/game"
)

// LogSink はゲーム中の出来事をログに流す engine.Sink です。
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s LogSink) StrokeLanded(attackerID string, hitPlayers []string, damage int) {
	if len(hitPlayers) == 0 {
		return
	}
	s.logger().Info("stroke landed", "attacker", attackerID, "hits", hitPlayers, "damage", damage)
}

func (s LogSink) PowerUpCollected(playerID string, t game.PowerUpType) {
	s.logger().Info("power-up collected", "player", playerID, "type", t)
}

func (s LogSink) PlayerEliminated(victimID, attackerID string) {
	s.logger().Info("player eliminated", "victim", victimID, "attacker", attackerID)
}
