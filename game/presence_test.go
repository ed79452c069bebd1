package game

import (
	"slices"
	"testing"
)

func TestSyncPresence_AddsAndRemoves(t *testing.T) {
	s := NewState("room", DefaultMode)
	rng := newTestRand()

	diff := SyncPresence(s, []Member{
		{ID: "a", Metadata: Metadata{Name: "Alice", Color: "#f00"}},
		{ID: "b", Metadata: Metadata{Name: "Bob"}},
	}, rng)
	if !slices.Equal(diff.Added, []string{"a", "b"}) {
		t.Errorf("added = %v, want [a b]", diff.Added)
	}
	a := s.Players["a"]
	if a.Health != DefaultMaxHealth || a.Score != 0 || a.Name != "Alice" {
		t.Errorf("unexpected new player: %+v", a)
	}
	if a.Position.X < -ArenaHalfExtent || a.Position.X > ArenaHalfExtent {
		t.Errorf("spawn X out of arena: %f", a.Position.X)
	}

	diff = SyncPresence(s, []Member{{ID: "a"}}, rng)
	if !slices.Equal(diff.Removed, []string{"b"}) || len(diff.Added) != 0 {
		t.Errorf("diff = %+v, want removed [b]", diff)
	}
	if _, ok := s.Players["b"]; ok {
		t.Error("b should be removed")
	}
}

func TestSyncPresence_PreservesTrackedPlayers(t *testing.T) {
	s := NewState("room", DefaultMode)
	rng := newTestRand()
	SyncPresence(s, []Member{{ID: "self"}}, rng)

	self := s.Players["self"]
	self.Health = 42
	self.Position = Vec3{X: 1, Z: 2}
	self.Strokes = append(self.Strokes, Stroke{ID: "s1"})

	// 他ピアの出入りがあっても自分の動的状態は保持される
	SyncPresence(s, []Member{{ID: "self", Metadata: Metadata{Name: "renamed"}}, {ID: "other"}}, rng)
	SyncPresence(s, []Member{{ID: "self"}}, rng)

	got := s.Players["self"]
	if got != self {
		t.Fatal("tracked player was reconstructed")
	}
	if got.Health != 42 || got.Position != (Vec3{X: 1, Z: 2}) || len(got.Strokes) != 1 {
		t.Errorf("dynamic state lost: %+v", got)
	}
	if got.Name != "renamed" {
		t.Errorf("name = %q, want renamed", got.Name)
	}
}

func TestSyncPresence_DuplicateMembers(t *testing.T) {
	s := NewState("room", DefaultMode)
	diff := SyncPresence(s, []Member{{ID: "a"}, {ID: "a"}, {ID: ""}}, newTestRand())
	if len(s.Players) != 1 || len(diff.Added) != 1 {
		t.Errorf("players = %d, added = %v", len(s.Players), diff.Added)
	}
}

func TestSpawnLeader(t *testing.T) {
	s := NewState("room", DefaultMode)
	if got := SpawnLeader(s); got != "" {
		t.Errorf("empty room leader = %q", got)
	}
	s.AddPlayer(NewPlayer("m", "", "", Vec3{}))
	s.AddPlayer(NewPlayer("c", "", "", Vec3{}))
	s.AddPlayer(NewPlayer("x", "", "", Vec3{}))
	if got := SpawnLeader(s); got != "c" {
		t.Errorf("leader = %q, want c", got)
	}
}
