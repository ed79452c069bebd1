package game

import "time"

// PowerUpType はパワーアップの種別です。
type PowerUpType string

const (
	PowerUpSpeed     PowerUpType = "speed"
	PowerUpDamage    PowerUpType = "damage"
	PowerUpHealth    PowerUpType = "health"
	PowerUpShield    PowerUpType = "shield"
	PowerUpMultishot PowerUpType = "multishot"
)

// PowerUpTypes は抽選対象となる全種別です。順序は抽選結果に影響するため変更しないこと。
var PowerUpTypes = []PowerUpType{
	PowerUpSpeed,
	PowerUpDamage,
	PowerUpHealth,
	PowerUpShield,
	PowerUpMultishot,
}

func (t PowerUpType) Valid() bool {
	for _, v := range PowerUpTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Status はゲームのライフサイクル状態です。
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusCountdown Status = "countdown"
	StatusPlaying   Status = "playing"
	StatusFinished  Status = "finished"
)

// Mode はゲームモードの記述子です。Duration が 0 の場合は時間無制限。
type Mode struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Duration   time.Duration `json:"duration"`
	MaxPlayers int           `json:"maxPlayers"`
}

// DefaultMode は時間無制限のフリーフォーオールです。
var DefaultMode = Mode{ID: "ffa", Name: "Free For All", MaxPlayers: 8}

// Stroke は描かれた攻撃軌跡です。確定後は変更しない。
type Stroke struct {
	ID        string  `json:"id"`
	Points    []Vec3  `json:"points"`
	Color     string  `json:"color"`
	Thickness float64 `json:"thickness"`
	CreatedAt int64   `json:"createdAt"` // unix ms
}

// ActiveEffect はプレイヤーに付与中のパワーアップ効果です。
type ActiveEffect struct {
	Type       PowerUpType `json:"type"`
	ExpiresAt  int64       `json:"expiresAt"` // unix ms
	Multiplier float64     `json:"multiplier"`
}

// PowerUp はフィールド上に出現中のパワーアップです。
type PowerUp struct {
	ID        string      `json:"id"`
	Type      PowerUpType `json:"type"`
	Position  Vec3        `json:"position"`
	SpawnedAt int64       `json:"spawnedAt"` // unix ms
	Duration  int64       `json:"duration"`  // ms
}

// ExpiresAt は消滅時刻（unix ms）を返します。
func (p *PowerUp) ExpiresAt() int64 {
	return p.SpawnedAt + p.Duration
}

// Player はピア間で共有されるプレイヤー状態です。
// State を所有するループ以外から直接変更してはいけない。
type Player struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Position  Vec3           `json:"position"`
	Rotation  Vec3           `json:"rotation"`
	Health    int            `json:"health"`
	MaxHealth int            `json:"maxHealth"`
	Color     string         `json:"color"`
	Attacking bool           `json:"isAttacking"`
	Strokes   []Stroke       `json:"strokes"`
	Effects   []ActiveEffect `json:"effects"`
	Score     int            `json:"score"`
	Kills     int            `json:"kills"`
	Deaths    int            `json:"deaths"`
}

// NewPlayer は初期体力・スコアでプレイヤーを生成します。
func NewPlayer(id, name, color string, pos Vec3) *Player {
	return &Player{
		ID:        id,
		Name:      name,
		Color:     color,
		Position:  pos,
		Health:    DefaultMaxHealth,
		MaxHealth: DefaultMaxHealth,
	}
}

func (p *Player) IsAlive() bool {
	return p.Health > 0
}

// Damage は体力を減らし [0, MaxHealth] にクランプします。
// 今回のダメージで体力が 0 になった場合 true を返します。
func (p *Player) Damage(amount int) bool {
	if amount <= 0 {
		return false
	}
	wasAlive := p.IsAlive()
	p.Health = clampHealth(p.Health-amount, p.MaxHealth)
	return wasAlive && !p.IsAlive()
}

// Heal は体力を回復し MaxHealth でクランプします。
func (p *Player) Heal(amount int) {
	if amount <= 0 {
		return
	}
	p.Health = clampHealth(p.Health+amount, p.MaxHealth)
}

// Effect は now 時点で有効な指定種別の効果を返します。
func (p *Player) Effect(t PowerUpType, now int64) (ActiveEffect, bool) {
	for _, e := range p.Effects {
		if e.Type == t && now < e.ExpiresAt {
			return e, true
		}
	}
	return ActiveEffect{}, false
}

// Multiplier は有効な効果の倍率を返します。効果がなければ 1。
func (p *Player) Multiplier(t PowerUpType, now int64) float64 {
	if e, ok := p.Effect(t, now); ok {
		return e.Multiplier
	}
	return 1
}

func clampHealth(h, max int) int {
	if h < 0 {
		return 0
	}
	if h > max {
		return max
	}
	return h
}

// State はルーム1つ分のゲーム状態のルート集約です。
// 各ピアが独立に畳み込んだコピーを1つずつ所有する。
type State struct {
	RoomID    string              `json:"roomId"`
	Players   map[string]*Player  `json:"players"`
	PowerUps  map[string]*PowerUp `json:"powerUps"`
	Status    Status              `json:"status"`
	Mode      Mode                `json:"mode"`
	StartedAt int64               `json:"startedAt,omitempty"` // unix ms, 0 は未設定
	EndedAt   int64               `json:"endedAt,omitempty"`
}

func NewState(roomID string, mode Mode) *State {
	return &State{
		RoomID:   roomID,
		Players:  make(map[string]*Player),
		PowerUps: make(map[string]*PowerUp),
		Status:   StatusWaiting,
		Mode:     mode,
	}
}

// Player は指定IDのプレイヤーを返します。
func (s *State) Player(id string) (*Player, bool) {
	p, ok := s.Players[id]
	return p, ok
}

// AddPlayer は未登録の場合のみプレイヤーを追加します。既存なら false。
func (s *State) AddPlayer(p *Player) bool {
	if _, ok := s.Players[p.ID]; ok {
		return false
	}
	s.Players[p.ID] = p
	return true
}

func (s *State) RemovePlayer(id string) bool {
	if _, ok := s.Players[id]; !ok {
		return false
	}
	delete(s.Players, id)
	return true
}

// Begin はゲームを開始状態にします。
func (s *State) Begin(mode Mode, now int64) {
	s.Mode = mode
	s.Status = StatusPlaying
	s.StartedAt = now
	s.EndedAt = 0
}

// Finish はゲームを終了状態にします。既に終了していれば何もしない。
func (s *State) Finish(now int64) bool {
	if s.Status == StatusFinished {
		return false
	}
	s.Status = StatusFinished
	s.EndedAt = now
	return true
}

// TimeUp はモードの制限時間を過ぎているかを返します。
func (s *State) TimeUp(now int64) bool {
	if s.Status != StatusPlaying || s.Mode.Duration <= 0 {
		return false
	}
	return now-s.StartedAt >= s.Mode.Duration.Milliseconds()
}

// Clone は描画層へ渡すためのディープコピーを返します。
func (s *State) Clone() State {
	out := *s
	out.Players = make(map[string]*Player, len(s.Players))
	for id, p := range s.Players {
		out.Players[id] = p.clone()
	}
	out.PowerUps = make(map[string]*PowerUp, len(s.PowerUps))
	for id, pu := range s.PowerUps {
		c := *pu
		out.PowerUps[id] = &c
	}
	return out
}

func (p *Player) clone() *Player {
	c := *p
	c.Strokes = make([]Stroke, len(p.Strokes))
	for i, st := range p.Strokes {
		c.Strokes[i] = st.Clone()
	}
	c.Effects = append([]ActiveEffect(nil), p.Effects...)
	return &c
}

// Clone は点列を共有しないコピーを返します。
func (s Stroke) Clone() Stroke {
	s.Points = append([]Vec3(nil), s.Points...)
	return s
}
