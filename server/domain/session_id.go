package domain

import "github.com/google/uuid"

// SessionID はリレーが接続ごとに払い出す識別子です (UUID 文字列)。
// ピアにとってはこれがそのままプレイヤーIDになる。
type SessionID string

func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// SessionIDFromBytes はヘッダーの16バイトから SessionID を復元します。
func SessionIDFromBytes(b [16]byte) SessionID {
	if b == ([16]byte{}) {
		return ""
	}
	return SessionID(uuid.UUID(b).String())
}

// Bytes はヘッダーに載せる16バイト表現を返します。UUID でなければゼロ値。
func (id SessionID) Bytes() [16]byte {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return [16]byte{}
	}
	return [16]byte(u)
}

func (id SessionID) String() string {
	return string(id)
}

func (id SessionID) IsEmpty() bool {
	return id == ""
}
