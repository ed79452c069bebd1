package engine

import (
	"penbrawl/game"
	"penbrawl/protocol"
)

// Result はメッセージ適用の結果種別です。
type Result uint8

const (
	// Ignored は参照先が存在しない等で何も変化しなかった
	Ignored Result = iota
	// Applied は状態に反映された
	Applied
	// Duplicate は同じ送信者・種別で既に適用済みの seq 以下だった
	Duplicate
)

func (r Result) String() string {
	switch r {
	case Applied:
		return "applied"
	case Duplicate:
		return "duplicate"
	default:
		return "ignored"
	}
}

// Outcome は Apply の結果と、エフェクト通知に必要な情報です。
type Outcome struct {
	Result Result

	// pen_stroke
	Hits   []string
	Damage int
	Killed []string

	// power_up_collect
	Collected *game.PowerUp
}

type seqKey struct {
	author string
	typ    protocol.Type
}

// Reducer は受信メッセージを GameState に畳み込む唯一の入口です。
// 乱数や現在時刻は参照しない。必要な値はすべてメッセージに含まれている。
//
// 差分適用型メッセージ (pen_stroke / power_up_collect) は (送信者, 種別) ごとの最終 seq を記録し、
// それ以下の seq を重複として捨てる。seq の記録は player_leave から猶予期間が過ぎるまで残す。
// 消費済みパワーアップは墓標として一定時間覚えておき、
// 遅延・重複した power_up_spawn による復活を防ぐ。
type Reducer struct {
	lastSeq  map[seqKey]uint64
	departed map[string]int64 // author -> player_leave の時刻 (unix ms)
	consumed map[string]int64 // power-up id -> 本来の消滅時刻 (unix ms)
}

func NewReducer() *Reducer {
	return &Reducer{
		lastSeq:  make(map[seqKey]uint64),
		departed: make(map[string]int64),
		consumed: make(map[string]int64),
	}
}

// Apply はメッセージを1つ状態に適用します。未知の種別は無視する。
func (r *Reducer) Apply(s *game.State, m protocol.Message) Outcome {
	if m.Type.IsDelta() && m.Seq > 0 {
		key := seqKey{author: m.PlayerID, typ: m.Type}
		if m.Seq <= r.lastSeq[key] {
			return Outcome{Result: Duplicate}
		}
		r.lastSeq[key] = m.Seq
	}

	switch p := m.Payload.(type) {
	case protocol.Move:
		return r.applyMove(s, m.PlayerID, p)
	case protocol.PenStroke:
		return r.applyPenStroke(s, m.PlayerID, p)
	case protocol.Attack:
		return r.applyAttack(s, m.PlayerID, p)
	case protocol.PowerUpSpawn:
		return r.applySpawn(s, p)
	case protocol.PowerUpCollect:
		return r.applyCollect(s, m.PlayerID, m.Timestamp, p)
	case protocol.Join:
		return r.applyJoin(s, m.PlayerID, p)
	case protocol.Leave:
		return r.applyLeave(s, m.PlayerID, m.Timestamp)
	default:
		return Outcome{Result: Ignored}
	}
}

// 位置は後勝ち。重複配送されても同じ値になるだけ。
func (r *Reducer) applyMove(s *game.State, author string, p protocol.Move) Outcome {
	player, ok := s.Player(author)
	if !ok {
		return Outcome{Result: Ignored}
	}
	player.Position = p.Position
	player.Rotation = p.Rotation
	return Outcome{Result: Applied}
}

// 送信者が未追跡でも、列挙された既知の被弾者にはダメージを適用する。
// 当たり判定は送信者が一度だけ行い、受信側はその結果を信用する。スコアは送信者が既知のときだけ加算。
func (r *Reducer) applyPenStroke(s *game.State, author string, p protocol.PenStroke) Outcome {
	out := Outcome{Result: Applied, Damage: p.Damage}

	attacker, known := s.Player(author)
	if known {
		attacker.Strokes = append(attacker.Strokes, p.Stroke.Clone())
		attacker.Attacking = false
	}

	seen := make(map[string]struct{}, len(p.HitPlayers))
	for _, id := range p.HitPlayers {
		if id == author {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		victim, ok := s.Player(id)
		if !ok {
			continue
		}
		before := victim.Health
		killed := victim.Damage(p.Damage)
		out.Hits = append(out.Hits, id)

		if killed {
			victim.Deaths++
			out.Killed = append(out.Killed, id)
		}
		if known {
			attacker.Score += before - victim.Health
			if killed {
				attacker.Kills++
				attacker.Score += game.KillScore
			}
		}
	}

	if !known && len(out.Hits) == 0 {
		out.Result = Ignored
	}
	return out
}

func (r *Reducer) applyAttack(s *game.State, author string, p protocol.Attack) Outcome {
	player, ok := s.Player(author)
	if !ok {
		return Outcome{Result: Ignored}
	}
	player.Attacking = p.Attacking
	return Outcome{Result: Applied}
}

func (r *Reducer) applySpawn(s *game.State, p protocol.PowerUpSpawn) Outcome {
	if _, gone := r.consumed[p.PowerUp.ID]; gone {
		return Outcome{Result: Ignored}
	}
	if !game.SpawnPowerUp(s, &p.PowerUp) {
		return Outcome{Result: Ignored}
	}
	return Outcome{Result: Applied}
}

// 取得と消滅は早い方が勝つ。取得時刻はメッセージの timestamp で判定するので全ピアで一致する。
func (r *Reducer) applyCollect(s *game.State, author string, at int64, p protocol.PowerUpCollect) Outcome {
	if pu, ok := s.PowerUps[p.PowerUpID]; ok && at > 0 && at >= pu.ExpiresAt() {
		return Outcome{Result: Ignored}
	}
	pu, ok := game.Collect(s, author, p.PowerUpID, p.Effect)
	if !ok {
		return Outcome{Result: Ignored}
	}
	r.consumed[pu.ID] = pu.ExpiresAt()
	return Outcome{Result: Applied, Collected: &pu}
}

// プレゼンス経由で先に追加されたプレイヤーは仮の位置にいるので、宣言された位置を採用する。
// 体力やスコアなどの動的状態はそのまま。
func (r *Reducer) applyJoin(s *game.State, author string, p protocol.Join) Outcome {
	delete(r.departed, author)
	if player, ok := s.Player(author); ok {
		if p.Name != "" {
			player.Name = p.Name
		}
		if p.Color != "" {
			player.Color = p.Color
		}
		player.Position = game.ClampToArena(p.Position)
		return Outcome{Result: Applied}
	}
	s.AddPlayer(game.NewPlayer(author, p.Name, p.Color, game.ClampToArena(p.Position)))
	return Outcome{Result: Applied}
}

func (r *Reducer) applyLeave(s *game.State, author string, at int64) Outcome {
	r.departed[author] = at
	if !s.RemovePlayer(author) {
		return Outcome{Result: Ignored}
	}
	return Outcome{Result: Applied}
}

// Sweep は期限切れのパワーアップと効果を取り除き、古い墓標と退出済みプレイヤーの seq 記録を掃除します。
func (r *Reducer) Sweep(s *game.State, now int64) game.SweepResult {
	res := game.Sweep(s, now)
	for _, pu := range res.ExpiredPowerUps {
		r.consumed[pu.ID] = pu.ExpiresAt()
	}
	grace := game.PowerUpDuration.Milliseconds()
	for id, expiresAt := range r.consumed {
		if now-expiresAt > grace {
			delete(r.consumed, id)
		}
	}
	for author, leftAt := range r.departed {
		if now-leftAt > grace {
			r.forget(author)
		}
	}
	return res
}

func (r *Reducer) forget(author string) {
	delete(r.departed, author)
	for key := range r.lastSeq {
		if key.author == author {
			delete(r.lastSeq, key)
		}
	}
}
