package client

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"penbrawl/engine"
	"penbrawl/game"
)

const (
	keyThreshold    = 0.38 // 方向ベクトルの成分がこれを超えたらキーを押す
	strokePoints    = 8
	lowHealth       = 40
	pickupDetour    = 4.0 // 敵より近い場合に寄り道するパワーアップの距離
	defaultThinkGap = 100 * time.Millisecond
	defaultCooldown = 1200 * time.Millisecond
)

// Action はボットの1回分の判断結果です。Stroke が空なら攻撃しない。
type Action struct {
	Keys   game.Keys
	Stroke []game.Vec3
}

// Controller はルールベースのボットAIです。
// ボットごとに異なる個性パラメータを持ちます。
type Controller struct {
	CloseRange  float64 // 後退を始める距離
	MidRange    float64 // ストレイフを始める距離
	AttackRange float64 // ストロークを描く距離
	StrafeSign  float64 // +1: 反時計回り, -1: 時計回り
	Noise       float64 // 移動方向に加えるノイズの最大角 (rad)
	RushChance  float64 // 毎回この確率で距離に関係なく突撃

	rng game.Rand
}

// NewController はランダムな個性を持つボットAIを生成します。
func NewController(rng game.Rand) *Controller {
	strafeSign := 1.0
	if rng.Float64() < 0.5 {
		strafeSign = -1.0
	}
	return &Controller{
		CloseRange:  1.0 + rng.Float64(),     // 1〜2
		MidRange:    3.0 + rng.Float64()*3.0, // 3〜6
		AttackRange: 2.5,
		StrafeSign:  strafeSign,
		Noise:       0.52, // ±30度
		RushChance:  0.05,
		rng:         rng,
	}
}

func (c *Controller) Decide(selfID string, s game.State) Action {
	self, ok := s.Players[selfID]
	if !ok || !self.IsAlive() || s.Status != game.StatusPlaying {
		return Action{}
	}

	enemy, enemyDist := nearestEnemy(self, s)
	if target, ok := c.pickTarget(self, s, enemyDist); ok {
		return Action{Keys: c.keysToward(target.Sub(self.Position))}
	}
	if enemy == nil {
		return Action{}
	}

	toEnemy := enemy.Position.Sub(self.Position)
	var action Action
	if enemyDist <= c.AttackRange {
		action.Stroke = slash(self.Position, enemy.Position)
	}

	var dir game.Vec3
	switch {
	case c.rng != nil && c.rng.Float64() < c.RushChance:
		dir = toEnemy
	case enemyDist < c.CloseRange:
		// 近距離: 後退
		dir = game.Vec3{X: -toEnemy.X, Z: -toEnemy.Z}
	case enemyDist < c.MidRange:
		// 中距離: 横移動（ストレイフ方向はボットごとに異なる）
		dir = game.Vec3{X: -toEnemy.Z * c.StrafeSign, Z: toEnemy.X * c.StrafeSign}
	default:
		dir = toEnemy
	}
	action.Keys = c.keysToward(dir)
	return action
}

// pickTarget は敵より優先して取りに行くパワーアップの位置を返します。
func (c *Controller) pickTarget(self *game.Player, s game.State, enemyDist float64) (game.Vec3, bool) {
	var best *game.PowerUp
	bestDist := math.MaxFloat64
	for _, pu := range s.PowerUps {
		d := flatDistance(self.Position, pu.Position)
		urgent := pu.Type == game.PowerUpHealth && self.Health <= lowHealth
		if !urgent && (d > pickupDetour || d > enemyDist) {
			continue
		}
		if d < bestDist {
			best, bestDist = pu, d
		}
	}
	if best == nil {
		return game.Vec3{}, false
	}
	return best.Position, true
}

func (c *Controller) keysToward(dir game.Vec3) game.Keys {
	l := math.Hypot(dir.X, dir.Z)
	if l < 1e-3 {
		return game.Keys{}
	}
	x, z := dir.X/l, dir.Z/l
	if c.rng != nil && c.Noise > 0 {
		noise := (c.rng.Float64()*2 - 1) * c.Noise
		cos, sin := math.Cos(noise), math.Sin(noise)
		x, z = x*cos-z*sin, x*sin+z*cos
	}
	return game.Keys{
		Left:    x < -keyThreshold,
		Right:   x > keyThreshold,
		Forward: z < -keyThreshold,
		Back:    z > keyThreshold,
	}
}

// nearestEnemy は最寄りの生存敵を探します。
func nearestEnemy(self *game.Player, s game.State) (*game.Player, float64) {
	var nearest *game.Player
	nearestDist := math.MaxFloat64
	for id, other := range s.Players {
		if id == self.ID || !other.IsAlive() {
			continue
		}
		d := flatDistance(self.Position, other.Position)
		if d < nearestDist || (d == nearestDist && nearest != nil && id < nearest.ID) {
			nearest, nearestDist = other, d
		}
	}
	return nearest, nearestDist
}

// slash は自分から相手の少し先まで伸びる直線ストロークを作ります。
func slash(from, to game.Vec3) []game.Vec3 {
	dir := to.Sub(from)
	l := math.Hypot(dir.X, dir.Z)
	end := to
	if l > 1e-3 {
		end.X += dir.X / l * 0.5
		end.Z += dir.Z / l * 0.5
	}
	points := make([]game.Vec3, strokePoints)
	for i := range points {
		t := float64(i) / float64(strokePoints-1)
		points[i] = game.Vec3{
			X: from.X + (end.X-from.X)*t,
			Y: to.Y,
			Z: from.Z + (end.Z-from.Z)*t,
		}
	}
	return points
}

func flatDistance(a, b game.Vec3) float64 {
	return math.Hypot(a.X-b.X, a.Z-b.Z)
}

// Bot は Controller の判断で Peer を操作します。
type Bot struct {
	peer       *engine.Peer
	controller *Controller
	think      time.Duration
	cooldown   time.Duration
	lastAttack time.Time
}

func NewBot(peer *engine.Peer, controller *Controller) *Bot {
	return &Bot{
		peer:       peer,
		controller: controller,
		think:      defaultThinkGap,
		cooldown:   defaultCooldown,
	}
}

// Run は Peer が参加を終えてから ctx が終わるまで判断を繰り返します。
// Peer のループが止まった場合も戻る。
func (b *Bot) Run(ctx context.Context) error {
	select {
	case <-b.peer.Ready():
	case <-ctx.Done():
		return nil
	}

	ticker := time.NewTicker(b.think)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := b.step(ctx); err != nil {
				if errors.Is(err, engine.ErrLoopStopped) || errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		}
	}
}

func (b *Bot) step(ctx context.Context) error {
	snapshot, err := b.peer.Snapshot(ctx)
	if err != nil {
		return err
	}
	action := b.controller.Decide(b.peer.ID(), snapshot)
	if err := b.peer.SetKeys(ctx, action.Keys); err != nil {
		return err
	}
	if len(action.Stroke) == 0 || time.Since(b.lastAttack) < b.cooldown {
		return nil
	}
	b.lastAttack = time.Now()

	if err := b.peer.StartAttack(ctx); err != nil {
		return ignoreCannotAct(err)
	}
	if err := b.peer.FinishAttack(ctx, action.Stroke); err != nil {
		return ignoreCannotAct(err)
	}
	slog.DebugContext(ctx, "bot attacked", "player", b.peer.ID(), "points", len(action.Stroke))
	return nil
}

// ignoreCannotAct は判断と実行の間に倒された場合を無視します。
func ignoreCannotAct(err error) error {
	if errors.Is(err, engine.ErrCannotAct) {
		return nil
	}
	return err
}
