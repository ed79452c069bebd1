package protocol

import (
	"errors"
	"math"
	"slices"
	"testing"

	"penbrawl/game"
)

func TestEncodeDecode_PenStroke(t *testing.T) {
	original := New("attacker", 1234, 7, PenStroke{
		Stroke: game.Stroke{
			ID:        "s1",
			Points:    []game.Vec3{{X: 1}, {X: 2}, {X: 3}},
			Color:     "#222",
			Thickness: 0.05,
			CreatedAt: 1200,
		},
		HitPlayers: []string{"a", "b"},
		Damage:     6,
	})

	data, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decoded.Type != TypePenStroke || decoded.PlayerID != "attacker" || decoded.Timestamp != 1234 || decoded.Seq != 7 {
		t.Errorf("envelope = %+v", decoded)
	}
	stroke, ok := decoded.Payload.(PenStroke)
	if !ok {
		t.Fatalf("payload type = %T, want PenStroke", decoded.Payload)
	}
	if !slices.Equal(stroke.HitPlayers, []string{"a", "b"}) || stroke.Damage != 6 {
		t.Errorf("payload = %+v", stroke)
	}
	if len(stroke.Stroke.Points) != 3 || stroke.Stroke.Points[2].X != 3 {
		t.Errorf("points = %+v", stroke.Stroke.Points)
	}
}

func TestDecode_WireShape(t *testing.T) {
	raw := `{"type":"player_move","playerId":"p1","data":{"position":{"x":1,"y":0,"z":-2},"rotation":{"x":0,"y":1.5,"z":0}},"timestamp":99}`

	m, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	move, ok := m.Payload.(Move)
	if !ok {
		t.Fatalf("payload type = %T, want Move", m.Payload)
	}
	if move.Position != (game.Vec3{X: 1, Z: -2}) || move.Rotation.Y != 1.5 {
		t.Errorf("move = %+v", move)
	}
	if m.Seq != 0 {
		t.Errorf("seq = %d, want 0 when absent", m.Seq)
	}
}

func TestDecode_Leave(t *testing.T) {
	for _, raw := range []string{
		`{"type":"player_leave","playerId":"p1","timestamp":1}`,
		`{"type":"player_leave","playerId":"p1","data":null,"timestamp":1}`,
		`{"type":"player_leave","playerId":"p1","data":{},"timestamp":1}`,
	} {
		m, err := Decode([]byte(raw))
		if err != nil {
			t.Fatalf("Decode(%s) failed: %v", raw, err)
		}
		if _, ok := m.Payload.(Leave); !ok {
			t.Errorf("payload type = %T, want Leave", m.Payload)
		}
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"empty", ``, ErrEmptyMessage},
		{"unknown type", `{"type":"chat","playerId":"p1","data":{}}`, ErrUnknownType},
		{"missing player", `{"type":"player_move","data":{}}`, ErrMissingPlayerID},
		{"bad payload json", `{"type":"player_move","playerId":"p1","data":[1,2]}`, ErrInvalidPayload},
		{"empty stroke", `{"type":"pen_stroke","playerId":"p1","data":{"stroke":{"points":[]},"hitPlayers":[],"damage":0}}`, ErrInvalidPayload},
		{"negative damage", `{"type":"pen_stroke","playerId":"p1","data":{"stroke":{"points":[{"x":0,"y":0,"z":0}]},"damage":-1}}`, ErrInvalidPayload},
		{"unknown power-up type", `{"type":"power_up_spawn","playerId":"p1","data":{"powerUp":{"id":"x","type":"laser","duration":1}}}`, ErrInvalidPayload},
		{"collect without id", `{"type":"power_up_collect","playerId":"p1","data":{"effect":{"type":"speed","multiplier":1.5}}}`, ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecode_MalformedJSON(t *testing.T) {
	if _, err := Decode([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed json")
	}
}

func TestEncode_Errors(t *testing.T) {
	if _, err := Encode(Message{Type: TypePlayerMove, PlayerID: "p1"}); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("nil payload: err = %v", err)
	}
	if _, err := Encode(Message{Type: TypePenStroke, PlayerID: "p1", Payload: Move{}}); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("mismatch: err = %v", err)
	}
	if _, err := Encode(New("", 0, 0, Attack{})); !errors.Is(err, ErrMissingPlayerID) {
		t.Errorf("missing player: err = %v", err)
	}
}

func TestValidate_NonFinite(t *testing.T) {
	nan := math.NaN()
	payloads := []Payload{
		Move{Position: game.Vec3{X: nan}},
		Move{Rotation: game.Vec3{Y: math.Inf(1)}},
		PenStroke{Stroke: game.Stroke{Points: []game.Vec3{{Z: nan}}}},
		PowerUpSpawn{PowerUp: game.PowerUp{ID: "x", Type: game.PowerUpSpeed, Position: game.Vec3{X: nan}, Duration: 1}},
		Join{Position: game.Vec3{X: math.Inf(-1)}},
	}
	for _, p := range payloads {
		if err := p.validate(); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("%T: err = %v, want ErrInvalidPayload", p, err)
		}
	}
}

func TestType_IsDelta(t *testing.T) {
	deltas := map[Type]bool{
		TypePlayerMove:     false,
		TypePenStroke:      true,
		TypePlayerAttack:   false,
		TypePowerUpSpawn:   false,
		TypePowerUpCollect: true,
		TypePlayerJoin:     false,
		TypePlayerLeave:    false,
	}
	for typ, want := range deltas {
		if got := typ.IsDelta(); got != want {
			t.Errorf("%s.IsDelta() = %v, want %v", typ, got, want)
		}
	}
}
