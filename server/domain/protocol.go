package domain

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// バイトオーダー: リトルエンディアン
var byteOrder = binary.LittleEndian

const (
	ProtocolVersion   = 1
	HeaderSize        = 27
	PayloadHeaderSize = 2
)

// Header はメッセージヘッダー (27バイト)
//
//	version    u8      (1)
//	sessionID  [16]byte (16)
//	seq        u16     (2)
//	length     u32     (4)  - ペイロード長 (PayloadHeader を含む)
//	timestamp  u32     (4)
type Header struct {
	Version   uint8
	SessionID [16]byte
	Seq       uint16
	Length    uint32
	Timestamp uint32
}

// DataType はメッセージの種別
type DataType uint8

const (
	DataTypeControl   DataType = 1
	DataTypeBroadcast DataType = 2 // ゲームメッセージ。リレーは中身を見ない
)

// ControlSubType はcontrolメッセージのサブタイプ
type ControlSubType uint8

const (
	ControlSubTypeJoin     ControlSubType = 1
	ControlSubTypeLeave    ControlSubType = 2
	ControlSubTypePing     ControlSubType = 4
	ControlSubTypePong     ControlSubType = 5
	ControlSubTypeError    ControlSubType = 6
	ControlSubTypeAssign   ControlSubType = 7
	ControlSubTypePresence ControlSubType = 8
)

// PayloadHeader はペイロードヘッダー (2バイト)
//
//	datatype  u8 (1)
//	subtype   u8 (1)
type PayloadHeader struct {
	DataType DataType
	SubType  uint8
}

var (
	ErrInvalidHeaderSize  = errors.New("invalid header size")
	ErrInvalidPayloadSize = errors.New("invalid payload size")
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
	ErrInvalidJoinPayload = errors.New("invalid join payload")
	ErrInvalidPresence    = errors.New("invalid presence payload")
)

// ParseHeader はバイト列からHeaderをパースする
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, ErrInvalidHeaderSize
	}

	var sessionID [16]byte
	copy(sessionID[:], data[1:17])

	return &Header{
		Version:   data[0],
		SessionID: sessionID,
		Seq:       byteOrder.Uint16(data[17:19]),
		Length:    byteOrder.Uint32(data[19:23]),
		Timestamp: byteOrder.Uint32(data[23:27]),
	}, nil
}

// Encode はHeaderをバイト列にエンコードする
func (h *Header) Encode() []byte {
	data := make([]byte, HeaderSize)
	data[0] = h.Version
	copy(data[1:17], h.SessionID[:])
	byteOrder.PutUint16(data[17:19], h.Seq)
	byteOrder.PutUint32(data[19:23], h.Length)
	byteOrder.PutUint32(data[23:27], h.Timestamp)
	return data
}

// ParsePayloadHeader はバイト列からPayloadHeaderをパースする
func ParsePayloadHeader(data []byte) (*PayloadHeader, error) {
	if len(data) < PayloadHeaderSize {
		return nil, ErrInvalidPayloadSize
	}

	return &PayloadHeader{
		DataType: DataType(data[0]),
		SubType:  data[1],
	}, nil
}

// Encode はPayloadHeaderをバイト列にエンコードする
func (p *PayloadHeader) Encode() []byte {
	data := make([]byte, PayloadHeaderSize)
	data[0] = byte(p.DataType)
	data[1] = p.SubType
	return data
}

// Frame はパース済みの1メッセージです。Body は PayloadHeader より後ろ。
type Frame struct {
	Header        Header
	PayloadHeader PayloadHeader
	Body          []byte
}

func (f *Frame) SessionID() SessionID {
	return SessionIDFromBytes(f.Header.SessionID)
}

func (f *Frame) IsControl(sub ControlSubType) bool {
	return f.PayloadHeader.DataType == DataTypeControl && ControlSubType(f.PayloadHeader.SubType) == sub
}

// ParseFrame はヘッダーを検証してフレームを切り出す
func ParseFrame(data []byte) (*Frame, error) {
	header, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if header.Version != ProtocolVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, header.Version)
	}
	rest := data[HeaderSize:]
	if int(header.Length) != len(rest) {
		return nil, fmt.Errorf("%w: header says %d, got %d", ErrInvalidPayloadSize, header.Length, len(rest))
	}
	payloadHeader, err := ParsePayloadHeader(rest)
	if err != nil {
		return nil, err
	}
	return &Frame{
		Header:        *header,
		PayloadHeader: *payloadHeader,
		Body:          rest[PayloadHeaderSize:],
	}, nil
}

// EncodeFrame はヘッダーとペイロードを連結したメッセージを返す
func EncodeFrame(sessionID SessionID, seq uint16, dataType DataType, subType uint8, body []byte) []byte {
	header := Header{
		Version:   ProtocolVersion,
		SessionID: sessionID.Bytes(),
		Seq:       seq,
		Length:    uint32(PayloadHeaderSize + len(body)),
		Timestamp: uint32(time.Now().UnixMilli() & 0xFFFFFFFF),
	}
	payloadHeader := PayloadHeader{DataType: dataType, SubType: subType}

	data := make([]byte, HeaderSize+PayloadHeaderSize+len(body))
	copy(data[:HeaderSize], header.Encode())
	copy(data[HeaderSize:], payloadHeader.Encode())
	copy(data[HeaderSize+PayloadHeaderSize:], body)
	return data
}

func encodeControl(sessionID SessionID, sub ControlSubType, body []byte) []byte {
	return EncodeFrame(sessionID, 0, DataTypeControl, uint8(sub), body)
}

// EncodeAssignMessage はセッションID通知メッセージをエンコードする
// クライアントに自分のセッションIDを通知するために使用
func EncodeAssignMessage(sessionID SessionID) []byte {
	return encodeControl(sessionID, ControlSubTypeAssign, nil)
}

// EncodeLeaveMessage はルーム離脱メッセージをエンコードする
// 異常切断時にclose()からRoom離脱を通知するために使用
func EncodeLeaveMessage(sessionID SessionID) []byte {
	return encodeControl(sessionID, ControlSubTypeLeave, nil)
}

// EncodePingMessage はPingメッセージをエンコードする
func EncodePingMessage(sessionID SessionID) []byte {
	return encodeControl(sessionID, ControlSubTypePing, nil)
}

func EncodePongMessage(sessionID SessionID) []byte {
	return encodeControl(sessionID, ControlSubTypePong, nil)
}

// EncodeErrorMessage はクライアントへのエラー通知。本文は UTF-8 の理由文字列。
func EncodeErrorMessage(sessionID SessionID, reason string) []byte {
	return encodeControl(sessionID, ControlSubTypeError, []byte(reason))
}

// EncodeBroadcastMessage はゲームメッセージをそのまま包む
func EncodeBroadcastMessage(sessionID SessionID, seq uint16, data []byte) []byte {
	return EncodeFrame(sessionID, seq, DataTypeBroadcast, 0, data)
}

// JoinPayload はルーム参加メッセージのペイロード (JSON)
//
//	room      ルーム名。空ならデフォルトルーム
//	metadata  プレゼンスに載せる任意のJSON。リレーは解釈しない
type JoinPayload struct {
	Room     RoomID          `json:"room"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// ParseJoinPayload はバイト列からJoinPayloadをパースする
func ParseJoinPayload(data []byte) (*JoinPayload, error) {
	var p JoinPayload
	if len(data) == 0 {
		return &p, nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJoinPayload, err)
	}
	return &p, nil
}

// Encode はJoinPayloadをバイト列にエンコードする
func (j *JoinPayload) Encode() ([]byte, error) {
	return json.Marshal(j)
}

func EncodeJoinMessage(sessionID SessionID, seq uint16, payload JoinPayload) ([]byte, error) {
	body, err := payload.Encode()
	if err != nil {
		return nil, err
	}
	return EncodeFrame(sessionID, seq, DataTypeControl, uint8(ControlSubTypeJoin), body), nil
}

// Member はプレゼンススナップショットの1要素です。
type Member struct {
	ID       SessionID       `json:"id"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// EncodePresenceMessage はルームの全メンバー一覧をエンコードする
func EncodePresenceMessage(members []Member) ([]byte, error) {
	if members == nil {
		members = []Member{}
	}
	body, err := json.Marshal(members)
	if err != nil {
		return nil, err
	}
	return encodeControl("", ControlSubTypePresence, body), nil
}

func ParsePresencePayload(data []byte) ([]Member, error) {
	var members []Member
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPresence, err)
	}
	return members, nil
}
