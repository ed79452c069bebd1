package game

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func TestMove(t *testing.T) {
	tests := []struct {
		name    string
		start   Vec3
		keys    Keys
		want    Vec3
		changed bool
	}{
		{"left", Vec3{}, Keys{Left: true}, Vec3{X: -0.1}, true},
		{"right", Vec3{}, Keys{Right: true}, Vec3{X: 0.1}, true},
		{"forward", Vec3{}, Keys{Forward: true}, Vec3{Z: -0.1}, true},
		{"back", Vec3{}, Keys{Back: true}, Vec3{Z: 0.1}, true},
		{"no keys", Vec3{X: 1, Z: 1}, Keys{}, Vec3{X: 1, Z: 1}, false},
		{"opposing keys cancel", Vec3{}, Keys{Left: true, Right: true}, Vec3{}, false},
		{"clamped at wall", Vec3{X: ArenaHalfExtent}, Keys{Right: true}, Vec3{X: ArenaHalfExtent}, false},
		{"y untouched", Vec3{Y: 3}, Keys{Back: true}, Vec3{Y: 3, Z: 0.1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := Move(tt.start, tt.keys, MoveStep)
			if changed != tt.changed {
				t.Errorf("changed = %v, want %v", changed, tt.changed)
			}
			if !vecNear(got, tt.want) {
				t.Errorf("position = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMove_LeftClampFromNearWall(t *testing.T) {
	pos := Vec3{X: -7.95}
	for i := 0; i < 10; i++ {
		next, _ := Move(pos, Keys{Left: true}, MoveStep)
		if next.X < -ArenaHalfExtent {
			t.Fatalf("step %d: X = %f, want >= %f", i, next.X, -ArenaHalfExtent)
		}
		pos = next
	}
	if pos.X != -ArenaHalfExtent {
		t.Errorf("X = %f, want %f", pos.X, -ArenaHalfExtent)
	}

	// 壁に張り付いた状態では変化なし（送信も抑止される）
	if _, changed := Move(pos, Keys{Left: true}, MoveStep); changed {
		t.Error("expected no change when pinned against the wall")
	}
}

func TestMove_StaysInArena(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pos := Vec3{
			X: rapid.Float64Range(-ArenaHalfExtent, ArenaHalfExtent).Draw(t, "x"),
			Z: rapid.Float64Range(-ArenaHalfExtent, ArenaHalfExtent).Draw(t, "z"),
		}
		steps := rapid.IntRange(1, 200).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			keys := Keys{
				Left:    rapid.Bool().Draw(t, "left"),
				Right:   rapid.Bool().Draw(t, "right"),
				Forward: rapid.Bool().Draw(t, "forward"),
				Back:    rapid.Bool().Draw(t, "back"),
			}
			pos, _ = Move(pos, keys, MoveStep)
			if pos.X < -ArenaHalfExtent || pos.X > ArenaHalfExtent || pos.Z < -ArenaHalfExtent || pos.Z > ArenaHalfExtent {
				t.Fatalf("position left the arena: %+v", pos)
			}
		}
	})
}

func TestStepFor_SpeedEffect(t *testing.T) {
	p := NewPlayer("p1", "", "", Vec3{})
	if got := StepFor(p, 0); got != MoveStep {
		t.Errorf("step = %f, want %f", got, MoveStep)
	}

	p.Effects = append(p.Effects, NewEffect(PowerUpSpeed, 0))
	if got := StepFor(p, 1); !near(got, MoveStep*EffectMultiplier) {
		t.Errorf("step = %f, want %f", got, MoveStep*EffectMultiplier)
	}
	if got := StepFor(p, EffectDuration.Milliseconds()); got != MoveStep {
		t.Errorf("expired effect: step = %f, want %f", got, MoveStep)
	}
}

func vecNear(a, b Vec3) bool {
	return near(a.Distance(b), 0)
}

func near(a, b float64) bool {
	const epsilon = 1e-9
	return math.Abs(a-b) < epsilon
}
