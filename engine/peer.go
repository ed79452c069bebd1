package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"penbrawl/game"
	"penbrawl/protocol"
	"penbrawl/utils"
)

var (
	ErrNoChannel      = errors.New("engine: channel is required")
	ErrAlreadyRunning = errors.New("engine: peer already running")
	ErrLeftRoom       = errors.New("engine: connection to room lost")
	ErrCannotAct      = errors.New("engine: player cannot act")
	ErrUnknownPowerUp = errors.New("engine: unknown power-up")
	ErrInvalidStroke  = errors.New("engine: invalid stroke")
)

const leaveTimeout = 2 * time.Second

// Options はピアの構成です。ゼロ値の項目は既定値で補われる。
type Options struct {
	Room     string
	Metadata game.Metadata
	Mode     game.Mode

	TickInterval  time.Duration
	SpawnDelay    time.Duration
	SpawnInterval time.Duration
	SweepInterval time.Duration
	QueueSize     int

	Sink  Sink
	Clock Clock
	Rand  game.Rand
}

func (o *Options) setDefaults() {
	if o.Mode.ID == "" {
		o.Mode = game.DefaultMode
	}
	if o.TickInterval <= 0 {
		o.TickInterval = 16 * time.Millisecond
	}
	if o.SpawnDelay <= 0 {
		o.SpawnDelay = game.PowerUpSpawnDelay
	}
	if o.SpawnInterval <= 0 {
		o.SpawnInterval = game.PowerUpSpawnInterval
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = game.SweepInterval
	}
	if o.Sink == nil {
		o.Sink = NopSink{}
	}
	if o.Clock == nil {
		o.Clock = SystemClock
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
}

// Peer は1つのルームに参加しているローカルプレイヤーのゲームエンジンです。
//
// GameState は Run のゴルーチンだけが所有する。受信メッセージ・プレゼンス・ローカル入力・
// タイマーはすべて同じ select で1つずつ最後まで処理されるので、ロックは使わない。
type Peer struct {
	opts    Options
	channel Channel
	reducer *Reducer
	state   *game.State
	inbox   *inbox
	tracer  trace.Tracer

	ready chan struct{}
	id    string
	seq   uint64
	keys  game.Keys
}

func NewPeer(channel Channel, opts Options) (*Peer, error) {
	if channel == nil {
		return nil, ErrNoChannel
	}
	opts.setDefaults()
	return &Peer{
		opts:    opts,
		channel: channel,
		reducer: NewReducer(),
		state:   game.NewState(opts.Room, opts.Mode),
		inbox:   newInbox(opts.QueueSize),
		tracer:  otel.Tracer("penbrawl/engine"),
		ready:   make(chan struct{}),
	}, nil
}

// Ready はルーム参加が完了すると閉じられます。
func (p *Peer) Ready() <-chan struct{} {
	return p.ready
}

// ID はトランスポートが割り当てた自分のIDです。Ready が閉じた後に参照すること。
func (p *Peer) ID() string {
	return p.id
}

// Run はルームに参加し、ctx がキャンセルされるか接続が失われるまでループを回します。
// ctx のキャンセルで終了した場合は退出を通知して nil を返す。
func (p *Peer) Run(ctx context.Context) error {
	if !p.inbox.start() {
		return ErrAlreadyRunning
	}
	defer p.inbox.stop()

	if err := p.join(ctx); err != nil {
		return err
	}

	move := time.NewTicker(p.opts.TickInterval)
	defer move.Stop()
	spawn := time.NewTimer(p.opts.SpawnDelay)
	defer spawn.Stop()
	sweep := time.NewTicker(p.opts.SweepInterval)
	defer sweep.Stop()

	messages := p.channel.Messages()
	presence := p.channel.Presence()

	for {
		select {
		case <-ctx.Done():
			p.leave(ctx)
			return nil
		case <-p.channel.Done():
			slog.WarnContext(ctx, "connection lost", "room", p.opts.Room, "player", p.id)
			return ErrLeftRoom
		case data, ok := <-messages:
			if !ok {
				return ErrLeftRoom
			}
			p.handleData(ctx, data)
		case members, ok := <-presence:
			if !ok {
				return ErrLeftRoom
			}
			p.handlePresence(ctx, members)
		case cmd := <-p.inbox.queue:
			cmd(ctx)
		case <-move.C:
			p.tick(ctx)
		case <-spawn.C:
			p.spawn(ctx)
			spawn.Reset(p.opts.SpawnInterval)
		case <-sweep.C:
			p.sweep(ctx)
		}
	}
}

func (p *Peer) join(ctx context.Context) error {
	ctx, span := p.tracer.Start(ctx, "peer.join", trace.WithAttributes(attribute.String("room", p.opts.Room)))
	defer span.End()

	id, err := p.channel.Subscribe(ctx, p.opts.Room, p.opts.Metadata)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("subscribe %q: %w", p.opts.Room, err)
	}
	p.id = id

	now := p.now()
	meta := p.opts.Metadata
	self := game.NewPlayer(id, meta.Name, meta.Color, game.RandomArenaPosition(p.opts.Rand, 0))
	p.state.AddPlayer(self)
	p.state.Begin(p.opts.Mode, now)
	close(p.ready)

	p.publish(ctx, protocol.Join{Name: meta.Name, Color: meta.Color, Position: self.Position})
	slog.InfoContext(ctx, "joined room", "room", p.opts.Room, "player", id, "mode", p.opts.Mode.ID)
	return nil
}

func (p *Peer) leave(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), leaveTimeout)
	defer cancel()

	p.publish(ctx, protocol.Leave{})
	if err := p.channel.Unsubscribe(ctx); err != nil {
		slog.WarnContext(ctx, "unsubscribe failed", "room", p.opts.Room, "err", err)
	}
	slog.InfoContext(ctx, "left room", "room", p.opts.Room, "player", p.id)
}

func (p *Peer) now() int64 {
	return p.opts.Clock.Now().UnixMilli()
}

func (p *Peer) self() (*game.Player, bool) {
	return p.state.Player(p.id)
}

// actor は操作可能な自分のプレイヤーを返します。
func (p *Peer) actor() (*game.Player, error) {
	if p.state.Status != game.StatusPlaying {
		return nil, fmt.Errorf("%w: game is %s", ErrCannotAct, p.state.Status)
	}
	self, ok := p.self()
	if !ok || !self.IsAlive() {
		return nil, fmt.Errorf("%w: not alive", ErrCannotAct)
	}
	return self, nil
}

// publish は自分の操作をローカルに適用してからブロードキャストします。
// 送信の失敗はログだけ残して捨てる。
func (p *Peer) publish(ctx context.Context, payload protocol.Payload) Outcome {
	p.seq++
	msg := protocol.New(p.id, p.now(), p.seq, payload)
	out := p.reducer.Apply(p.state, msg)
	p.notify(p.id, out)

	data, err := protocol.Encode(msg)
	if err != nil {
		slog.ErrorContext(ctx, "encode failed", "type", msg.Type, "err", err)
		return out
	}
	if err := p.channel.Publish(ctx, data); err != nil {
		slog.WarnContext(ctx, "publish failed", "type", msg.Type, "err", err)
	}
	return out
}

func (p *Peer) notify(author string, out Outcome) {
	if len(out.Hits) > 0 {
		p.opts.Sink.StrokeLanded(author, out.Hits, out.Damage)
	}
	for _, victim := range out.Killed {
		p.opts.Sink.PlayerEliminated(victim, author)
	}
	if out.Collected != nil {
		p.opts.Sink.PowerUpCollected(author, out.Collected.Type)
	}
}

func (p *Peer) handleData(ctx context.Context, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownType) {
			slog.DebugContext(ctx, "ignoring message", "err", err)
			return
		}
		slog.WarnContext(ctx, "dropping malformed message", "err", err)
		return
	}
	// 自分の送信は publish 時に適用済み
	if msg.PlayerID == p.id {
		return
	}

	ctx, span := p.tracer.Start(ctx, "peer.apply", trace.WithAttributes(
		attribute.String("message.type", string(msg.Type)),
		attribute.String("message.author", msg.PlayerID),
	))
	defer span.End()

	out := p.reducer.Apply(p.state, msg)
	span.SetAttributes(attribute.String("message.result", out.Result.String()))
	if out.Result == Duplicate {
		slog.DebugContext(ctx, "duplicate message", "type", msg.Type, "author", msg.PlayerID, "seq", msg.Seq)
		return
	}
	p.notify(msg.PlayerID, out)
}

func (p *Peer) handlePresence(ctx context.Context, members []game.Member) {
	// 自分の参加がまだ反映されていないスナップショットで自分を消さない
	if p.id != "" && !slices.ContainsFunc(members, func(m game.Member) bool { return m.ID == p.id }) {
		members = append(slices.Clone(members), game.Member{ID: p.id, Metadata: p.opts.Metadata})
	}
	// seq の記録は player_leave まで残す。プレゼンスの一時的な欠落で重複判定を失わないため
	diff := game.SyncPresence(p.state, members, p.opts.Rand)
	if diff.Empty() {
		return
	}
	slog.InfoContext(ctx, "presence changed", "room", p.opts.Room, "added", diff.Added, "removed", diff.Removed, "players", len(p.state.Players))

	// 新しいメンバーは自分を仮の位置に置いているので、現在位置を知らせ直す
	if len(diff.Added) > 0 {
		if self, ok := p.self(); ok {
			p.publish(ctx, protocol.Move{Position: self.Position, Rotation: self.Rotation})
		}
	}
}

// tick は移動を1歩進め、近くのパワーアップを自動取得します。
func (p *Peer) tick(ctx context.Context) {
	now := p.expire()
	self, err := p.actor()
	if err != nil {
		return
	}
	if p.keys.Any() {
		next, changed := game.Move(self.Position, p.keys, game.StepFor(self, now))
		if changed {
			rot := self.Rotation
			d := next.Sub(self.Position)
			rot.Y = math.Atan2(d.X, d.Z)
			p.publish(ctx, protocol.Move{Position: next, Rotation: rot})
		}
	}
	if pu, ok := game.NearestPowerUp(p.state, self.Position, game.PickupRadius); ok {
		p.collect(ctx, pu.ID, now)
	}
}

func (p *Peer) collect(ctx context.Context, id string, now int64) error {
	pu, ok := p.state.PowerUps[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPowerUp, id)
	}
	p.publish(ctx, protocol.PowerUpCollect{PowerUpID: id, Effect: game.NewEffect(pu.Type, now)})
	return nil
}

// spawn は自分がスポーン担当のときだけパワーアップを生成します。
func (p *Peer) spawn(ctx context.Context) {
	if p.state.Status != game.StatusPlaying || game.SpawnLeader(p.state) != p.id {
		return
	}
	pu := game.NewPowerUp(p.opts.Rand, p.now())
	p.publish(ctx, protocol.PowerUpSpawn{PowerUp: *pu})
	slog.DebugContext(ctx, "power-up spawned", "id", pu.ID, "type", pu.Type)
}

// expire は期限切れのパワーアップと効果を即座に取り除き、その時刻を返します。
// 状態を読む・使う操作の前に呼び、次の sweep を待たずに消滅を反映する。
func (p *Peer) expire() int64 {
	now := p.now()
	p.reducer.Sweep(p.state, now)
	return now
}

func (p *Peer) sweep(ctx context.Context) {
	now := p.now()
	res := p.reducer.Sweep(p.state, now)
	if len(res.ExpiredPowerUps) > 0 || res.ExpiredEffects > 0 {
		slog.DebugContext(ctx, "swept", "powerUps", len(res.ExpiredPowerUps), "effects", res.ExpiredEffects)
	}
	if p.state.TimeUp(now) && p.state.Finish(now) {
		slog.InfoContext(ctx, "game finished", "room", p.opts.Room, "mode", p.state.Mode.ID)
	}
}

// Snapshot は描画用に現在の状態のディープコピーを返します。
func (p *Peer) Snapshot(ctx context.Context) (game.State, error) {
	return call(ctx, p.inbox, func(context.Context) game.State {
		p.expire()
		return p.state.Clone()
	})
}

// SetKeys は押下中の方向キーを更新します。移動は次の tick で反映される。
func (p *Peer) SetKeys(ctx context.Context, keys game.Keys) error {
	return p.inbox.submit(ctx, func(context.Context) {
		p.keys = keys
	})
}

// StartAttack は描画開始を通知します。
func (p *Peer) StartAttack(ctx context.Context) error {
	return p.do(ctx, func(ctx context.Context) error {
		if _, err := p.actor(); err != nil {
			return err
		}
		p.publish(ctx, protocol.Attack{Attacking: true})
		return nil
	})
}

// FinishAttack はストロークを確定し、当たり判定の結果とともにブロードキャストします。
// 点が2つ未満の場合はストロークを作らず攻撃状態だけを解除する。
func (p *Peer) FinishAttack(ctx context.Context, points []game.Vec3) error {
	if len(points) > protocol.MaxStrokePoints {
		return fmt.Errorf("%w: %d points", ErrInvalidStroke, len(points))
	}
	for _, pt := range points {
		if !utils.FiniteVec3(pt.X, pt.Y, pt.Z) {
			return fmt.Errorf("%w: non-finite point", ErrInvalidStroke)
		}
	}
	points = slices.Clone(points)

	return p.do(ctx, func(ctx context.Context) error {
		self, err := p.actor()
		if err != nil {
			return err
		}
		if len(points) < game.MinStrokePoints {
			if self.Attacking {
				p.publish(ctx, protocol.Attack{Attacking: false})
			}
			return nil
		}

		now := p.now()
		strike := game.ResolveStroke(points, p.id, p.state.Players, game.StrikeOptionsFor(self, now))
		stroke := game.Stroke{
			ID:        uuid.NewString(),
			Points:    points,
			Color:     self.Color,
			Thickness: game.StrokeThickness,
			CreatedAt: now,
		}
		p.publish(ctx, protocol.PenStroke{Stroke: stroke, HitPlayers: strike.HitPlayers, Damage: strike.Damage})
		return nil
	})
}

// CollectPowerUp は指定したパワーアップの取得を試みます。
func (p *Peer) CollectPowerUp(ctx context.Context, id string) error {
	return p.do(ctx, func(ctx context.Context) error {
		now := p.expire()
		if _, err := p.actor(); err != nil {
			return err
		}
		return p.collect(ctx, id, now)
	})
}

func (p *Peer) do(ctx context.Context, fn func(ctx context.Context) error) error {
	err, callErr := call(ctx, p.inbox, fn)
	if callErr != nil {
		return callErr
	}
	return err
}
