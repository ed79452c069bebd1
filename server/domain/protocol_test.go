package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	original := &Header{
		Version:   1,
		SessionID: [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		Seq:       100,
		Length:    70000,
		Timestamp: 1234567890,
	}

	encoded := original.Encode()
	if len(encoded) != HeaderSize {
		t.Errorf("encoded size = %d, want %d", len(encoded), HeaderSize)
	}

	decoded, err := ParseHeader(encoded)
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}
	if *decoded != *original {
		t.Errorf("decoded = %+v, want %+v", decoded, original)
	}
}

func TestParseHeader_TooShort(t *testing.T) {
	if _, err := ParseHeader(make([]byte, HeaderSize-1)); !errors.Is(err, ErrInvalidHeaderSize) {
		t.Errorf("err = %v, want ErrInvalidHeaderSize", err)
	}
}

func TestEncodeFrame_ParseFrame(t *testing.T) {
	sid := NewSessionID()
	body := []byte(`{"type":"player_move"}`)

	data := EncodeBroadcastMessage(sid, 7, body)
	frame, err := ParseFrame(data)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if frame.SessionID() != sid {
		t.Errorf("session = %s, want %s", frame.SessionID(), sid)
	}
	if frame.Header.Seq != 7 || frame.PayloadHeader.DataType != DataTypeBroadcast {
		t.Errorf("frame = %+v", frame)
	}
	if string(frame.Body) != string(body) {
		t.Errorf("body = %q", frame.Body)
	}
}

func TestParseFrame_Errors(t *testing.T) {
	valid := EncodePingMessage(NewSessionID())

	badVersion := append([]byte(nil), valid...)
	badVersion[0] = 9

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short header", valid[:HeaderSize-1], ErrInvalidHeaderSize},
		{"bad version", badVersion, ErrUnsupportedVersion},
		{"truncated", valid[:HeaderSize+1], ErrInvalidPayloadSize},
		{"trailing bytes", append(append([]byte(nil), valid...), 0), ErrInvalidPayloadSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFrame(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestControlMessages(t *testing.T) {
	sid := NewSessionID()
	tests := []struct {
		name string
		data []byte
		sub  ControlSubType
	}{
		{"assign", EncodeAssignMessage(sid), ControlSubTypeAssign},
		{"leave", EncodeLeaveMessage(sid), ControlSubTypeLeave},
		{"ping", EncodePingMessage(sid), ControlSubTypePing},
		{"pong", EncodePongMessage(sid), ControlSubTypePong},
		{"error", EncodeErrorMessage(sid, "boom"), ControlSubTypeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := ParseFrame(tt.data)
			if err != nil {
				t.Fatalf("ParseFrame: %v", err)
			}
			if !frame.IsControl(tt.sub) {
				t.Errorf("payload header = %+v, want control %d", frame.PayloadHeader, tt.sub)
			}
			if frame.SessionID() != sid {
				t.Errorf("session = %s", frame.SessionID())
			}
		})
	}
}

func TestJoinMessage(t *testing.T) {
	sid := NewSessionID()
	data, err := EncodeJoinMessage(sid, 1, JoinPayload{Room: "arena", Metadata: json.RawMessage(`{"name":"pen"}`)})
	if err != nil {
		t.Fatal(err)
	}
	frame, err := ParseFrame(data)
	if err != nil {
		t.Fatal(err)
	}
	payload, err := ParseJoinPayload(frame.Body)
	if err != nil {
		t.Fatalf("ParseJoinPayload: %v", err)
	}
	if payload.Room != "arena" || string(payload.Metadata) != `{"name":"pen"}` {
		t.Errorf("payload = %+v", payload)
	}

	// 空のペイロードはデフォルトルームへの参加
	empty, err := ParseJoinPayload(nil)
	if err != nil || empty.Room != "" {
		t.Errorf("empty payload = %+v, %v", empty, err)
	}
	if _, err := ParseJoinPayload([]byte("{")); !errors.Is(err, ErrInvalidJoinPayload) {
		t.Errorf("err = %v, want ErrInvalidJoinPayload", err)
	}
}

func TestPresenceMessage(t *testing.T) {
	members := []Member{
		{ID: "a", Metadata: json.RawMessage(`{"name":"A"}`)},
		{ID: "b"},
	}
	data, err := EncodePresenceMessage(members)
	if err != nil {
		t.Fatal(err)
	}
	frame, err := ParseFrame(data)
	if err != nil {
		t.Fatal(err)
	}
	if !frame.IsControl(ControlSubTypePresence) {
		t.Fatalf("payload header = %+v", frame.PayloadHeader)
	}
	got, err := ParsePresencePayload(frame.Body)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "a" || string(got[0].Metadata) != `{"name":"A"}` || got[1].Metadata != nil {
		t.Errorf("members = %+v", got)
	}

	data, err = EncodePresenceMessage(nil)
	if err != nil {
		t.Fatal(err)
	}
	frame, _ = ParseFrame(data)
	if string(frame.Body) != "[]" {
		t.Errorf("empty presence body = %q", frame.Body)
	}
}

func TestSessionIDBytes(t *testing.T) {
	id := NewSessionID()
	if got := SessionIDFromBytes(id.Bytes()); got != id {
		t.Errorf("round trip = %s, want %s", got, id)
	}
	if b := SessionID("not-a-uuid").Bytes(); b != ([16]byte{}) {
		t.Errorf("non-uuid bytes = %v", b)
	}
	if !SessionIDFromBytes([16]byte{}).IsEmpty() {
		t.Error("zero bytes should be empty")
	}
}
