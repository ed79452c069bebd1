package domain

// endpointEventKind は ownerLoop に届くイベントの種別です。
type endpointEventKind uint8

const (
	evUnknown endpointEventKind = iota
	evPong
	evReadError
	evWriteError
	evClose
)

// endpointEvent は ownerLoop への通知です。code は接続を閉じるときに使う。
type endpointEvent struct {
	kind endpointEventKind
	code CloseCode
	err  error
}

// closeCode はイベントに応じたクローズコードを返します。未指定なら正常終了。
func (ev endpointEvent) closeCode() CloseCode {
	if ev.code != 0 {
		return ev.code
	}
	return CloseNormal
}
